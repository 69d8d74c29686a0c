package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/services/ragflow"
)

func newSearchWorld(t *testing.T) (*SearchService, *fakeRAG, fixtures) {
	t.Helper()
	db := testDB(t)
	f := seedFixtures(t, db)
	rag := newFakeRAG()
	return NewSearchService(db, NewScopeService(db), rag, nil), rag, f
}

func TestSearchFormatsHitsAndLogs(t *testing.T) {
	svc, rag, f := newSearchWorld(t)
	ctx := context.Background()

	// One indexed local document the first chunk joins against.
	rfID := "rf-doc-7"
	doc := model.Document{
		KBID: f.KB1.ID, Filename: "cases.pdf", OriginalName: "cases.pdf",
		Status: model.DocumentStatusEmbedded, StoragePath: "k", ContentHash: "h",
		RagflowDocumentID: &rfID,
	}
	require.NoError(t, svc.db.Create(&doc).Error)

	rag.retrieved = []ragflow.RetrievedChunk{
		{ID: "c1", Content: "relevant text", Similarity: 0.91, DocumentID: rfID},
		{ID: "c2", Content: "other text", Similarity: 0.55, DocumentID: "rf-unknown", DocumentN: "external.pdf"},
	}

	result, err := svc.Search(ctx, f.studentActor(), SearchInput{Question: "negligence?"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 2)

	first := result.Hits[0]
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, doc.ID, first.DocumentID)
	assert.Equal(t, "cases.pdf", first.DocumentName)
	assert.Equal(t, "ds-1/rf-doc-7/c1", first.CaseLocator)

	second := result.Hits[1]
	assert.Zero(t, second.DocumentID, "unknown remote documents keep only the upstream name")
	assert.Equal(t, "external.pdf", second.DocumentName)

	var logEntry model.SearchLog
	require.NoError(t, svc.db.First(&logEntry).Error)
	require.NotNil(t, logEntry.StudentID)
	assert.Equal(t, f.Student.ID, *logEntry.StudentID)
	assert.Equal(t, "negligence?", logEntry.Query)
	assert.Equal(t, 2, logEntry.ResultCount)
}

func TestSearchRequiresQuestion(t *testing.T) {
	svc, _, f := newSearchWorld(t)
	_, err := svc.Search(context.Background(), f.studentActor(), SearchInput{Question: "   "})
	requireStatus(t, err, 400)
}

func TestSearchLogsVisibility(t *testing.T) {
	svc, _, f := newSearchWorld(t)

	teacherID, studentID := f.Teacher1.ID, f.Student.ID
	require.NoError(t, svc.db.Create(&model.SearchLog{KBID: f.KB1.ID, Query: "t", TopK: 5, TeacherID: &teacherID}).Error)
	require.NoError(t, svc.db.Create(&model.SearchLog{KBID: f.KB1.ID, Query: "s", TopK: 5, StudentID: &studentID}).Error)

	result, err := svc.Logs(f.studentActor(), LogFilter{})
	require.NoError(t, err)
	require.Len(t, result.Logs, 1)
	assert.Equal(t, "s", result.Logs[0].Query)

	result, err = svc.Logs(f.adminActor(), LogFilter{})
	require.NoError(t, err)
	assert.Len(t, result.Logs, 2)
}

func TestSearchStatsAdminOnly(t *testing.T) {
	svc, _, f := newSearchWorld(t)

	_, err := svc.Stats(f.teacher1Actor(), 0, 30)
	requireStatus(t, err, 403)

	studentID := f.Student.ID
	require.NoError(t, svc.db.Create(&model.SearchLog{KBID: f.KB1.ID, Query: "q", TopK: 5, StudentID: &studentID}).Error)
	require.NoError(t, svc.db.Create(&model.SearchLog{KBID: f.KB1.ID, Query: "q", TopK: 5, StudentID: &studentID}).Error)

	stats, err := svc.Stats(f.adminActor(), 0, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalSearches)
	assert.EqualValues(t, 1, stats.ActiveStudents)
	assert.EqualValues(t, 0, stats.ActiveTeachers)
	require.NotEmpty(t, stats.TopQueries)
	assert.Equal(t, "q", stats.TopQueries[0].Query)
	assert.EqualValues(t, 2, stats.TopQueries[0].Count)
}

func TestAdminSearchIsLoggedAnonymously(t *testing.T) {
	svc, rag, f := newSearchWorld(t)
	rag.retrieved = []ragflow.RetrievedChunk{{ID: "c1", Content: "text", Similarity: 0.7}}

	_, err := svc.Search(context.Background(), f.adminActor(), SearchInput{
		Hint: ScopeHint{ClassCode: "C100"}, Question: "duty of care",
	})
	require.NoError(t, err)

	var entry model.SearchLog
	require.NoError(t, svc.db.First(&entry).Error)
	assert.Nil(t, entry.TeacherID)
	assert.Nil(t, entry.StudentID)
	assert.Equal(t, "duty of care", entry.Query)

	// The anonymous row still counts toward totals.
	stats, err := svc.Stats(f.adminActor(), 0, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalSearches)
}
