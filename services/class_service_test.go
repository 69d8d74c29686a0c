package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casehub/casehub/model"
)

func newClassWorld(t *testing.T) (*ClassService, *fakeRAG, fixtures) {
	t.Helper()
	db := testDB(t)
	f := seedFixtures(t, db)
	rag := newFakeRAG()
	return NewClassService(db, rag), rag, f
}

func TestCreateClassBuildsKnowledgeBase(t *testing.T) {
	svc, rag, f := newClassWorld(t)

	class, err := svc.CreateClass(context.Background(), f.adminActor(), CreateClassInput{
		ClassCode:      "C400",
		ClassName:      "Property",
		TeacherNo:      f.Teacher1.TeacherNo,
		EmbeddingModel: "BAAI/bge-m3",
	})
	require.NoError(t, err)

	var kb model.KnowledgeBase
	require.NoError(t, svc.db.Where("class_id = ?", class.ID).First(&kb).Error)
	assert.Equal(t, "ds-C400", kb.RagflowDatasetID, "the dataset is created before the class commits")
	assert.Equal(t, "Property knowledge base", kb.Name)

	// Dataset settings flow through, chunking tables by default.
	assert.Equal(t, "BAAI/bge-m3", rag.lastDataset.EmbeddingModel)
	assert.Equal(t, "table", rag.lastDataset.ChunkMethod)

	_, err = svc.CreateClass(context.Background(), f.adminActor(), CreateClassInput{
		ClassCode:      "C500",
		ClassName:      "Remedies",
		TeacherNo:      f.Teacher1.TeacherNo,
		EmbeddingModel: "BAAI/bge-m3",
		ChunkMethod:    "naive",
	})
	require.NoError(t, err)
	assert.Equal(t, "naive", rag.lastDataset.ChunkMethod)
}

func TestCreateClassGuards(t *testing.T) {
	svc, _, f := newClassWorld(t)
	ctx := context.Background()

	_, err := svc.CreateClass(ctx, f.teacher1Actor(), CreateClassInput{ClassCode: "X", ClassName: "X", TeacherNo: f.Teacher1.TeacherNo})
	requireStatus(t, err, 403)

	_, err = svc.CreateClass(ctx, f.adminActor(), CreateClassInput{ClassCode: f.Class1.ClassCode, ClassName: "Dup", TeacherNo: f.Teacher1.TeacherNo})
	requireStatus(t, err, 409)

	_, err = svc.CreateClass(ctx, f.adminActor(), CreateClassInput{ClassCode: "C500", ClassName: "X", TeacherNo: "missing"})
	requireStatus(t, err, 404)
}

func TestRegisterStudent(t *testing.T) {
	svc, _, f := newClassWorld(t)

	student, err := svc.RegisterStudent(RegisterStudentInput{
		StudentNo: "S900",
		Name:      "New Student",
		Password:  "longenough",
		ClassCode: f.Class1.ClassCode,
	})
	require.NoError(t, err)
	assert.Equal(t, f.Class1.ID, student.ClassID)
	assert.NotEqual(t, "longenough", student.PasswordHash, "password is stored hashed")

	// Duplicate student number.
	_, err = svc.RegisterStudent(RegisterStudentInput{
		StudentNo: "S900", Name: "Again", Password: "longenough", ClassCode: f.Class1.ClassCode,
	})
	requireStatus(t, err, 409)

	// Unknown class.
	_, err = svc.RegisterStudent(RegisterStudentInput{
		StudentNo: "S901", Name: "Lost", Password: "longenough", ClassCode: "NOPE",
	})
	requireStatus(t, err, 404)
}

func TestListClassesByRole(t *testing.T) {
	svc, _, f := newClassWorld(t)

	classes, err := svc.ListClasses(f.adminActor())
	require.NoError(t, err)
	assert.Len(t, classes, 3)

	classes, err = svc.ListClasses(f.teacher2Actor())
	require.NoError(t, err)
	assert.Len(t, classes, 2)

	classes, err = svc.ListClasses(f.studentActor())
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, f.Class1.ID, classes[0].ID)
}

func TestTeacherClasses(t *testing.T) {
	svc, _, f := newClassWorld(t)

	classes, err := svc.TeacherClasses(f.Teacher2.ID)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "C200", classes[0].ClassCode)
	assert.Equal(t, "C300", classes[1].ClassCode)
	require.NotNil(t, classes[0].KnowledgeBase)
	assert.Equal(t, "ds-2", classes[0].KnowledgeBase.RagflowDatasetID)

	_, err = svc.TeacherClasses(99999)
	requireStatus(t, err, 404)

	// Disabled teachers are invisible.
	require.NoError(t, svc.db.Model(&model.Teacher{}).Where("id = ?", f.Teacher2.ID).Update("status", model.StatusDisabled).Error)
	_, err = svc.TeacherClasses(f.Teacher2.ID)
	requireStatus(t, err, 404)
}
