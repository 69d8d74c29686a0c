package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/utils/apperr"
	"github.com/casehub/casehub/utils/auth"
)

// AuthService authenticates accounts and verifies actors on later requests.
type AuthService struct {
	db             *gorm.DB
	allowPlaintext bool
}

func NewAuthService(db *gorm.DB, allowPlaintext bool) *AuthService {
	return &AuthService{db: db, allowPlaintext: allowPlaintext}
}

// Profile is the public identity returned after a successful login.
type Profile struct {
	ID        int64      `json:"id"`
	Role      model.Role `json:"role"`
	AccountNo string     `json:"account_no"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	ClassID   int64      `json:"class_id,omitempty"`
	ClassCode string     `json:"class_code,omitempty"`
}

// Login verifies credentials for the given role. Admins may log in with the
// admin number or the username; teachers and students use their numbers.
// Disabled accounts are rejected the same way as bad credentials are not:
// the caller learns the account is disabled only after the password matches.
func (s *AuthService) Login(role model.Role, accountNo, password string) (*Profile, error) {
	if accountNo == "" || password == "" {
		return nil, apperr.InvalidInput("account number and password are required")
	}

	switch role {
	case model.RoleAdmin:
		var admin model.Admin
		err := s.db.Where("admin_no = ? OR username = ?", accountNo, accountNo).First(&admin).Error
		if err != nil {
			return nil, s.loginErr(err)
		}
		if err := auth.VerifyPassword(admin.PasswordHash, password, s.allowPlaintext); err != nil {
			return nil, apperr.Unauthorized("")
		}
		if admin.Status != model.StatusActive {
			return nil, apperr.Forbidden("account is disabled")
		}
		return &Profile{ID: admin.ID, Role: role, AccountNo: admin.AdminNo, Name: admin.Name, Email: admin.Email}, nil

	case model.RoleTeacher:
		var teacher model.Teacher
		err := s.db.Where("teacher_no = ?", accountNo).First(&teacher).Error
		if err != nil {
			return nil, s.loginErr(err)
		}
		if err := auth.VerifyPassword(teacher.PasswordHash, password, s.allowPlaintext); err != nil {
			return nil, apperr.Unauthorized("")
		}
		if teacher.Status != model.StatusActive {
			return nil, apperr.Forbidden("account is disabled")
		}
		return &Profile{ID: teacher.ID, Role: role, AccountNo: teacher.TeacherNo, Name: teacher.Name, Email: teacher.Email}, nil

	case model.RoleStudent:
		var student model.Student
		err := s.db.Preload("Class").Where("student_no = ?", accountNo).First(&student).Error
		if err != nil {
			return nil, s.loginErr(err)
		}
		if err := auth.VerifyPassword(student.PasswordHash, password, s.allowPlaintext); err != nil {
			return nil, apperr.Unauthorized("")
		}
		if student.Status != model.StatusActive {
			return nil, apperr.Forbidden("account is disabled")
		}
		p := &Profile{ID: student.ID, Role: role, AccountNo: student.StudentNo, Name: student.Name, Email: student.Email, ClassID: student.ClassID}
		if student.Class != nil {
			p.ClassCode = student.Class.ClassCode
		}
		return p, nil
	}

	return nil, apperr.InvalidInput("unknown role")
}

func (s *AuthService) loginErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Unauthorized("")
	}
	return apperr.Internal("", err)
}

// VerifyActor confirms the role/id pair names an existing active account and
// returns the actor. Every privileged operation runs through this.
func (s *AuthService) VerifyActor(role model.Role, id int64) (*Actor, error) {
	if id <= 0 {
		return nil, apperr.Unauthorized("missing identity")
	}

	var (
		name   string
		status int
		err    error
	)
	switch role {
	case model.RoleAdmin:
		var admin model.Admin
		err = s.db.First(&admin, id).Error
		name, status = admin.Name, admin.Status
	case model.RoleTeacher:
		var teacher model.Teacher
		err = s.db.First(&teacher, id).Error
		name, status = teacher.Name, teacher.Status
	case model.RoleStudent:
		var student model.Student
		err = s.db.First(&student, id).Error
		name, status = student.Name, student.Status
	default:
		return nil, apperr.InvalidInput("unknown role")
	}

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorized("account not found")
		}
		return nil, apperr.Internal("", err)
	}
	if status != model.StatusActive {
		return nil, apperr.Forbidden("account is disabled")
	}
	return &Actor{Role: role, ID: id, Name: name}, nil
}
