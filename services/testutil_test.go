package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/services/ragflow"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Admin{}, &model.Teacher{}, &model.Student{},
		&model.Class{}, &model.KnowledgeBase{},
		&model.Document{}, &model.DocumentAudit{}, &model.DocumentVersion{}, &model.EmbeddingTask{},
		&model.Conversation{}, &model.Message{},
		&model.SearchLog{},
	))
	return db
}

// fixtures is the standard world most service tests start from: one admin,
// two teachers (one with a single class, one with two), and a student in
// class c1.
type fixtures struct {
	Admin    model.Admin
	Teacher1 model.Teacher // owns class1 only
	Teacher2 model.Teacher // owns class2 and class3
	Student  model.Student // in class1
	Class1   model.Class
	Class2   model.Class
	Class3   model.Class
	KB1      model.KnowledgeBase
	KB2      model.KnowledgeBase
	KB3      model.KnowledgeBase
}

func seedFixtures(t *testing.T, db *gorm.DB) fixtures {
	t.Helper()
	f := fixtures{
		Admin:    model.Admin{AdminNo: "A001", Username: "root", PasswordHash: "x", Name: "Root", Status: 1},
		Teacher1: model.Teacher{TeacherNo: "T001", PasswordHash: "x", Name: "Teacher One", Status: 1},
		Teacher2: model.Teacher{TeacherNo: "T002", PasswordHash: "x", Name: "Teacher Two", Status: 1},
	}
	require.NoError(t, db.Create(&f.Admin).Error)
	require.NoError(t, db.Create(&f.Teacher1).Error)
	require.NoError(t, db.Create(&f.Teacher2).Error)

	f.Class1 = model.Class{ClassCode: "C100", ClassName: "Contracts", TeacherID: f.Teacher1.ID}
	f.Class2 = model.Class{ClassCode: "C200", ClassName: "Torts", TeacherID: f.Teacher2.ID}
	f.Class3 = model.Class{ClassCode: "C300", ClassName: "Evidence", TeacherID: f.Teacher2.ID}
	require.NoError(t, db.Create(&f.Class1).Error)
	require.NoError(t, db.Create(&f.Class2).Error)
	require.NoError(t, db.Create(&f.Class3).Error)

	f.KB1 = model.KnowledgeBase{ClassID: f.Class1.ID, Name: "Contracts KB", RagflowDatasetID: "ds-1"}
	f.KB2 = model.KnowledgeBase{ClassID: f.Class2.ID, Name: "Torts KB", RagflowDatasetID: "ds-2"}
	f.KB3 = model.KnowledgeBase{ClassID: f.Class3.ID, Name: "Evidence KB", RagflowDatasetID: "ds-3"}
	require.NoError(t, db.Create(&f.KB1).Error)
	require.NoError(t, db.Create(&f.KB2).Error)
	require.NoError(t, db.Create(&f.KB3).Error)

	f.Student = model.Student{StudentNo: "S001", ClassID: f.Class1.ID, PasswordHash: "x", Name: "Student", Status: 1}
	require.NoError(t, db.Create(&f.Student).Error)
	return f
}

func (f fixtures) adminActor() *Actor { return &Actor{Role: model.RoleAdmin, ID: f.Admin.ID} }

func (f fixtures) teacher1Actor() *Actor { return &Actor{Role: model.RoleTeacher, ID: f.Teacher1.ID} }

func (f fixtures) teacher2Actor() *Actor { return &Actor{Role: model.RoleTeacher, ID: f.Teacher2.ID} }

func (f fixtures) studentActor() *Actor { return &Actor{Role: model.RoleStudent, ID: f.Student.ID} }

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	objects  map[string][]byte // "bucket/key" -> content
	puts     int
	copies   int
	removes  []string
	failPut  bool
	failCopy bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) PendingBucket() string   { return "pending" }
func (s *fakeStore) KnowledgeBucket() string { return "knowledge" }

func (s *fakeStore) Put(_ context.Context, bucket, key string, data []byte, _ string) error {
	if s.failPut {
		return fmt.Errorf("put failed")
	}
	s.puts++
	s.objects[bucket+"/"+key] = data
	return nil
}

func (s *fakeStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, key)
	}
	return data, nil
}

func (s *fakeStore) Remove(_ context.Context, bucket, key string) error {
	delete(s.objects, bucket+"/"+key)
	s.removes = append(s.removes, bucket+"/"+key)
	return nil
}

func (s *fakeStore) Copy(_ context.Context, srcBucket, dstBucket, key string) error {
	if s.failCopy {
		return fmt.Errorf("copy failed")
	}
	data, ok := s.objects[srcBucket+"/"+key]
	if !ok {
		return fmt.Errorf("object %s/%s not found", srcBucket, key)
	}
	s.copies++
	s.objects[dstBucket+"/"+key] = data
	return nil
}

// fakeRAG is an in-memory RAG stub recording calls.
type fakeRAG struct {
	uploads      int
	parses       int
	failUpload   bool
	failParse    bool
	failComplete bool
	lastDataset  ragflow.CreateDatasetRequest
	renamed      map[string]string
	deletedDocs  []string
	chunks       []ragflow.Chunk
	retrieved    []ragflow.RetrievedChunk
	answer       string
	reference    []byte
	nextChatID   string
	nextSessID   string
}

func newFakeRAG() *fakeRAG {
	return &fakeRAG{
		renamed:    map[string]string{},
		answer:     "the answer",
		nextChatID: "chat-1",
		nextSessID: "sess-1",
	}
}

func (r *fakeRAG) CreateDataset(_ context.Context, req ragflow.CreateDatasetRequest) (string, error) {
	r.lastDataset = req
	return "ds-" + req.Name, nil
}

func (r *fakeRAG) UploadDocument(_ context.Context, _, _ string, _ []byte) (string, error) {
	if r.failUpload {
		return "", fmt.Errorf("upload refused")
	}
	r.uploads++
	return fmt.Sprintf("rf-doc-%d", r.uploads), nil
}

func (r *fakeRAG) ParseDocuments(_ context.Context, _ string, _ []string) error {
	if r.failParse {
		return fmt.Errorf("parse refused")
	}
	r.parses++
	return nil
}

func (r *fakeRAG) RenameDocument(_ context.Context, _, documentID, name string) error {
	r.renamed[documentID] = name
	return nil
}

func (r *fakeRAG) DeleteDocuments(_ context.Context, _ string, ids []string) error {
	r.deletedDocs = append(r.deletedDocs, ids...)
	return nil
}

func (r *fakeRAG) ListChunks(_ context.Context, _, _ string, _, _ int) ([]ragflow.Chunk, error) {
	return r.chunks, nil
}

func (r *fakeRAG) Retrieve(_ context.Context, _ ragflow.RetrievalRequest) ([]ragflow.RetrievedChunk, int, error) {
	return r.retrieved, len(r.retrieved), nil
}

func (r *fakeRAG) CreateChat(_ context.Context, _ string, _ []string, _ ragflow.ChatSettings) (string, error) {
	return r.nextChatID, nil
}

func (r *fakeRAG) UpdateChat(_ context.Context, _, _ string, _ ragflow.ChatSettings) error {
	return nil
}

func (r *fakeRAG) DeleteChats(_ context.Context, _ []string) error { return nil }

func (r *fakeRAG) CreateSession(_ context.Context, _, _ string) (string, error) {
	return r.nextSessID, nil
}

func (r *fakeRAG) RenameSession(_ context.Context, _, _, _ string) error { return nil }

func (r *fakeRAG) DeleteSessions(_ context.Context, _ string, _ []string) error { return nil }

func (r *fakeRAG) Complete(_ context.Context, _, _, _ string) (*ragflow.Completion, error) {
	if r.failComplete {
		return nil, fmt.Errorf("completion refused")
	}
	return &ragflow.Completion{Answer: r.answer, Reference: r.reference}, nil
}

// Two tests seeding the same fixture rows must land in distinct databases;
// a shared one would trip the admins.admin_no unique index on the second
// seed.
func TestFixtureDatabasesAreIsolated(t *testing.T) {
	for _, name := range []string{"first", "second"} {
		t.Run(name, func(t *testing.T) {
			db := testDB(t)
			f := seedFixtures(t, db)
			var count int64
			require.NoError(t, db.Model(&model.Admin{}).Count(&count).Error)
			require.EqualValues(t, 1, count)
			require.NotZero(t, f.Admin.ID)
		})
	}
}
