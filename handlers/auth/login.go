package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/services"
	"github.com/casehub/casehub/utils/response"
	"github.com/casehub/casehub/utils/validation"
)

// AuthHandler serves login and registration.
type AuthHandler struct {
	auth      *services.AuthService
	classes   *services.ClassService
	validator *validation.Validator
}

func NewAuthHandler(auth *services.AuthService, classes *services.ClassService) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		classes:   classes,
		validator: validation.NewValidator(),
	}
}

type loginRequest struct {
	Role      string `json:"role" validate:"required"`
	AccountNo string `json:"account_no" validate:"required"`
	Password  string `json:"password" validate:"required"`
}

// Login authenticates any of the three roles.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	role, ok := model.ParseRole(req.Role)
	if !ok {
		return response.BadRequest(c, "Unknown role")
	}

	profile, err := h.auth.Login(role, req.AccountNo, req.Password)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, profile)
}

// Register creates a student account in an existing class.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req services.RegisterStudentInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	student, err := h.classes.RegisterStudent(req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, fiber.Map{
		"id":         student.ID,
		"student_no": student.StudentNo,
		"name":       student.Name,
		"class_id":   student.ClassID,
	})
}
