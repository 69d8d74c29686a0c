package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/services/ragflow"
	"github.com/casehub/casehub/utils/apperr"
	"github.com/casehub/casehub/utils/auth"
)

// ClassService manages classes, their knowledge bases, and student
// registration.
type ClassService struct {
	db  *gorm.DB
	rag RAG
}

func NewClassService(db *gorm.DB, rag RAG) *ClassService {
	return &ClassService{db: db, rag: rag}
}

// CreateClassInput names a new class, the teacher who runs it, and how its
// dataset is built. ChunkMethod defaults to "table" and Permission to "me".
type CreateClassInput struct {
	ClassCode      string `json:"class_code" validate:"required"`
	ClassName      string `json:"class_name" validate:"required"`
	TeacherNo      string `json:"teacher_no" validate:"required"`
	EmbeddingModel string `json:"embedding_model" validate:"required"`
	ChunkMethod    string `json:"chunk_method"`
	Permission     string `json:"permission"`
	Description    string `json:"description"`
}

// CreateClass creates a class with its knowledge base. The RAGFlow dataset
// is created first; only when that succeeds are the class and knowledge base
// committed together, so a class never exists without an index behind it.
func (s *ClassService) CreateClass(ctx context.Context, actor *Actor, in CreateClassInput) (*model.Class, error) {
	if actor.Role != model.RoleAdmin {
		return nil, apperr.Forbidden("only admins can create classes")
	}

	var teacher model.Teacher
	if err := s.db.Where("teacher_no = ?", in.TeacherNo).First(&teacher).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("teacher not found")
		}
		return nil, apperr.Internal("", err)
	}
	if teacher.Status != model.StatusActive {
		return nil, apperr.Conflict("teacher account is disabled")
	}

	var count int64
	if err := s.db.Model(&model.Class{}).Where("class_code = ?", in.ClassCode).Count(&count).Error; err != nil {
		return nil, apperr.Internal("", err)
	}
	if count > 0 {
		return nil, apperr.Conflict("class code already exists")
	}

	chunkMethod := in.ChunkMethod
	if chunkMethod == "" {
		chunkMethod = "table"
	}
	datasetID, err := s.rag.CreateDataset(ctx, ragflow.CreateDatasetRequest{
		Name:           in.ClassCode,
		EmbeddingModel: in.EmbeddingModel,
		ChunkMethod:    chunkMethod,
		Permission:     in.Permission,
	})
	if err != nil {
		return nil, apperr.Upstream("failed to create dataset", err)
	}

	class := &model.Class{
		ClassCode: in.ClassCode,
		ClassName: in.ClassName,
		TeacherID: teacher.ID,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(class).Error; err != nil {
			return err
		}
		kb := &model.KnowledgeBase{
			ClassID:          class.ID,
			Name:             fmt.Sprintf("%s knowledge base", in.ClassName),
			Description:      in.Description,
			RagflowDatasetID: datasetID,
		}
		return tx.Create(kb).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("class code already exists")
		}
		return nil, apperr.Internal("", err)
	}

	return class, nil
}

// ListClasses returns the classes visible to the actor: admins see all,
// teachers see their own, students see only their class.
func (s *ClassService) ListClasses(actor *Actor) ([]model.Class, error) {
	query := s.db.Preload("Teacher").Preload("KnowledgeBase").Order("class_code ASC")

	switch actor.Role {
	case model.RoleAdmin:
	case model.RoleTeacher:
		query = query.Where("teacher_id = ?", actor.ID)
	case model.RoleStudent:
		var student model.Student
		if err := s.db.First(&student, actor.ID).Error; err != nil {
			return nil, apperr.Internal("", err)
		}
		query = query.Where("id = ?", student.ClassID)
	default:
		return nil, apperr.Forbidden("")
	}

	var classes []model.Class
	if err := query.Find(&classes).Error; err != nil {
		return nil, apperr.Internal("", err)
	}
	return classes, nil
}

// TeacherClasses returns one teacher's classes with their knowledge bases,
// ordered by class code. The teacher must exist and be active.
func (s *ClassService) TeacherClasses(teacherID int64) ([]model.Class, error) {
	var teacher model.Teacher
	if err := s.db.First(&teacher, teacherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("teacher not found")
		}
		return nil, apperr.Internal("", err)
	}
	if teacher.Status != model.StatusActive {
		return nil, apperr.NotFound("teacher not found")
	}

	var classes []model.Class
	err := s.db.Preload("KnowledgeBase").
		Where("teacher_id = ?", teacherID).
		Order("class_code ASC").
		Find(&classes).Error
	if err != nil {
		return nil, apperr.Internal("", err)
	}
	return classes, nil
}

// RegisterStudentInput is the self-service signup payload.
type RegisterStudentInput struct {
	StudentNo string `json:"student_no" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Password  string `json:"password" validate:"required,min=8"`
	ClassCode string `json:"class_code" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
}

// RegisterStudent creates a student account in an existing class. The class
// must have an active teacher so new students never land in a dead class.
func (s *ClassService) RegisterStudent(in RegisterStudentInput) (*model.Student, error) {
	var class model.Class
	err := s.db.Preload("Teacher").Where("class_code = ?", in.ClassCode).First(&class).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("class not found")
		}
		return nil, apperr.Internal("", err)
	}
	if class.Teacher == nil || class.Teacher.Status != model.StatusActive {
		return nil, apperr.Conflict("class has no active teacher")
	}

	var count int64
	if err := s.db.Model(&model.Student{}).Where("student_no = ?", in.StudentNo).Count(&count).Error; err != nil {
		return nil, apperr.Internal("", err)
	}
	if count > 0 {
		return nil, apperr.Conflict("student number already registered")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, apperr.InvalidInput(err.Error())
		}
		return nil, apperr.Internal("", err)
	}

	student := &model.Student{
		StudentNo:    in.StudentNo,
		ClassID:      class.ID,
		PasswordHash: hash,
		Name:         in.Name,
		Email:        in.Email,
		Status:       model.StatusActive,
	}
	if err := s.db.Create(student).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("student number already registered")
		}
		return nil, apperr.Internal("", err)
	}
	return student, nil
}
