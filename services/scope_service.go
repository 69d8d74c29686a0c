package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/utils/apperr"
)

// ScopeService maps an actor plus optional class hints onto the knowledge
// bases the actor may touch. Every document, search and conversation
// operation resolves its scope here before doing anything else.
type ScopeService struct {
	db *gorm.DB
}

func NewScopeService(db *gorm.DB) *ScopeService {
	return &ScopeService{db: db}
}

// ErrAmbiguousScope is returned when a teacher with several classes gives no
// class hint; the caller must ask them to pick one.
var ErrAmbiguousScope = apperr.InvalidInput("multiple classes found, please select a class")

// ScopeHint carries the optional narrowing parameters from a request.
// ClassCode takes precedence over ClassID, which takes precedence over KBID.
type ScopeHint struct {
	ClassCode string
	ClassID   int64
	KBID      int64
}

// ResolveKB resolves the single knowledge base an operation targets.
//
// Students are locked to their own class's knowledge base; any hint pointing
// elsewhere is a Forbidden. Teachers may target any class they own; with no
// hint a teacher with exactly one class gets it, while several classes make
// the request ambiguous. Admins may target any class but must name one.
func (s *ScopeService) ResolveKB(actor *Actor, hint ScopeHint) (*model.KnowledgeBase, error) {
	classID, err := s.resolveClassHint(hint)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case model.RoleStudent:
		var student model.Student
		if err := s.db.First(&student, actor.ID).Error; err != nil {
			return nil, s.wrap(err, "student not found")
		}
		kb, err := s.kbByClass(student.ClassID)
		if err != nil {
			return nil, err
		}
		if classID != 0 && classID != student.ClassID {
			return nil, apperr.Forbidden("students can only access their own class")
		}
		if hint.KBID != 0 && hint.KBID != kb.ID {
			return nil, apperr.Forbidden("students can only access their own class")
		}
		return kb, nil

	case model.RoleTeacher:
		if classID != 0 {
			kb, err := s.kbByClass(classID)
			if err != nil {
				return nil, err
			}
			if err := s.requireOwnClass(actor.ID, classID); err != nil {
				return nil, err
			}
			return kb, nil
		}
		if hint.KBID != 0 {
			kb, err := s.kbByID(hint.KBID)
			if err != nil {
				return nil, err
			}
			if err := s.requireOwnClass(actor.ID, kb.ClassID); err != nil {
				return nil, err
			}
			return kb, nil
		}
		// No hint: auto-select when the teacher owns exactly one class.
		var classes []model.Class
		if err := s.db.Where("teacher_id = ?", actor.ID).Find(&classes).Error; err != nil {
			return nil, apperr.Internal("", err)
		}
		switch len(classes) {
		case 0:
			return nil, apperr.NotFound("no class found for teacher")
		case 1:
			return s.kbByClass(classes[0].ID)
		default:
			return nil, ErrAmbiguousScope
		}

	case model.RoleAdmin:
		if classID != 0 {
			return s.kbByClass(classID)
		}
		if hint.KBID != 0 {
			return s.kbByID(hint.KBID)
		}
		return nil, apperr.InvalidInput("class_code or kb_id is required")
	}

	return nil, apperr.Forbidden("")
}

// ListScope is the set of knowledge bases a listing operation may cover.
// Unscoped is only ever true for admins with no hint.
type ListScope struct {
	KBIDs    []int64
	Unscoped bool
}

// ResolveListScope is ResolveKB relaxed for listing: an admin with no hint
// sees everything, and a teacher with several classes and no hint sees all
// of their classes rather than an error.
func (s *ScopeService) ResolveListScope(actor *Actor, hint ScopeHint) (*ListScope, error) {
	if actor.Role == model.RoleAdmin && hint.ClassCode == "" && hint.ClassID == 0 && hint.KBID == 0 {
		return &ListScope{Unscoped: true}, nil
	}

	if actor.Role == model.RoleTeacher && hint.ClassCode == "" && hint.ClassID == 0 && hint.KBID == 0 {
		var kbIDs []int64
		err := s.db.Model(&model.KnowledgeBase{}).
			Joins("JOIN classes ON classes.id = knowledge_bases.class_id").
			Where("classes.teacher_id = ?", actor.ID).
			Pluck("knowledge_bases.id", &kbIDs).Error
		if err != nil {
			return nil, apperr.Internal("", err)
		}
		if len(kbIDs) == 0 {
			return nil, apperr.NotFound("no class found for teacher")
		}
		return &ListScope{KBIDs: kbIDs}, nil
	}

	kb, err := s.ResolveKB(actor, hint)
	if err != nil {
		return nil, err
	}
	return &ListScope{KBIDs: []int64{kb.ID}}, nil
}

// resolveClassHint turns a class code into a class id. The code wins over a
// raw id when both are present.
func (s *ScopeService) resolveClassHint(hint ScopeHint) (int64, error) {
	if hint.ClassCode == "" {
		return hint.ClassID, nil
	}
	var class model.Class
	if err := s.db.Where("class_code = ?", hint.ClassCode).First(&class).Error; err != nil {
		return 0, s.wrap(err, "class not found")
	}
	return class.ID, nil
}

func (s *ScopeService) kbByClass(classID int64) (*model.KnowledgeBase, error) {
	var kb model.KnowledgeBase
	if err := s.db.Where("class_id = ?", classID).First(&kb).Error; err != nil {
		return nil, s.wrap(err, "knowledge base not found")
	}
	return &kb, nil
}

func (s *ScopeService) kbByID(id int64) (*model.KnowledgeBase, error) {
	var kb model.KnowledgeBase
	if err := s.db.First(&kb, id).Error; err != nil {
		return nil, s.wrap(err, "knowledge base not found")
	}
	return &kb, nil
}

func (s *ScopeService) requireOwnClass(teacherID, classID int64) error {
	var class model.Class
	if err := s.db.First(&class, classID).Error; err != nil {
		return s.wrap(err, "class not found")
	}
	if class.TeacherID != teacherID {
		return apperr.Forbidden("teachers can only access their own classes")
	}
	return nil
}

func (s *ScopeService) wrap(err error, notFound string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(notFound)
	}
	return apperr.Internal("", err)
}

// AuthorizeKB checks that the actor may touch an already-known knowledge
// base, for operations addressed by document or conversation id.
func (s *ScopeService) AuthorizeKB(actor *Actor, kbID int64) (*model.KnowledgeBase, error) {
	kb, err := s.kbByID(kbID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case model.RoleAdmin:
		return kb, nil
	case model.RoleTeacher:
		if err := s.requireOwnClass(actor.ID, kb.ClassID); err != nil {
			return nil, err
		}
		return kb, nil
	case model.RoleStudent:
		var student model.Student
		if err := s.db.First(&student, actor.ID).Error; err != nil {
			return nil, s.wrap(err, "student not found")
		}
		if student.ClassID != kb.ClassID {
			return nil, apperr.Forbidden("students can only access their own class")
		}
		return kb, nil
	}
	return nil, apperr.Forbidden("")
}
