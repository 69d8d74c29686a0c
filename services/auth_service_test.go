package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/utils/auth"
)

func TestLoginPerRole(t *testing.T) {
	db := testDB(t)
	svc := NewAuthService(db, false)

	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)

	admin := model.Admin{AdminNo: "A001", Username: "root", PasswordHash: hash, Name: "Root", Status: 1}
	require.NoError(t, db.Create(&admin).Error)
	teacher := model.Teacher{TeacherNo: "T001", PasswordHash: hash, Name: "T", Status: 1}
	require.NoError(t, db.Create(&teacher).Error)
	class := model.Class{ClassCode: "C1", ClassName: "C", TeacherID: teacher.ID}
	require.NoError(t, db.Create(&class).Error)
	student := model.Student{StudentNo: "S001", ClassID: class.ID, PasswordHash: hash, Name: "S", Status: 1}
	require.NoError(t, db.Create(&student).Error)

	// Admin logs in by number or username.
	p, err := svc.Login(model.RoleAdmin, "A001", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, p.ID)
	p, err = svc.Login(model.RoleAdmin, "root", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, p.ID)

	// Student profile carries the class.
	p, err = svc.Login(model.RoleStudent, "S001", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, class.ID, p.ClassID)
	assert.Equal(t, "C1", p.ClassCode)

	// Wrong password and unknown account both come back as 401.
	_, err = svc.Login(model.RoleTeacher, "T001", "wrong")
	requireStatus(t, err, 401)
	_, err = svc.Login(model.RoleTeacher, "T999", "correct horse")
	requireStatus(t, err, 401)
}

func TestLoginDisabledAccount(t *testing.T) {
	db := testDB(t)
	svc := NewAuthService(db, false)

	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	teacher := model.Teacher{TeacherNo: "T001", PasswordHash: hash, Name: "T", Status: 0}
	require.NoError(t, db.Create(&teacher).Error)

	_, err = svc.Login(model.RoleTeacher, "T001", "correct horse")
	requireStatus(t, err, 403)
}

func TestVerifyActor(t *testing.T) {
	db := testDB(t)
	f := seedFixtures(t, db)
	svc := NewAuthService(db, false)

	actor, err := svc.VerifyActor(model.RoleTeacher, f.Teacher1.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Teacher1.Name, actor.Name)

	_, err = svc.VerifyActor(model.RoleTeacher, 9999)
	requireStatus(t, err, 401)

	require.NoError(t, db.Model(&model.Teacher{}).Where("id = ?", f.Teacher1.ID).Update("status", 0).Error)
	_, err = svc.VerifyActor(model.RoleTeacher, f.Teacher1.ID)
	requireStatus(t, err, 403)
}
