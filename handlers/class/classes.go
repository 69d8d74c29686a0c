package class

import (
	"github.com/gofiber/fiber/v2"

	"github.com/casehub/casehub/handlers"
	"github.com/casehub/casehub/services"
	"github.com/casehub/casehub/utils/response"
	"github.com/casehub/casehub/utils/validation"
)

// ClassHandler serves class management endpoints.
type ClassHandler struct {
	auth      *services.AuthService
	classes   *services.ClassService
	validator *validation.Validator
}

func NewClassHandler(auth *services.AuthService, classes *services.ClassService) *ClassHandler {
	return &ClassHandler{
		auth:      auth,
		classes:   classes,
		validator: validation.NewValidator(),
	}
}

// CreateClass creates a class with its knowledge base. Admin only.
func (h *ClassHandler) CreateClass(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}

	var req services.CreateClassInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	class, err := h.classes.CreateClass(c.Context(), actor, req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, class)
}

// ListClasses returns the classes visible to the actor.
func (h *ClassHandler) ListClasses(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}

	classes, err := h.classes.ListClasses(actor)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, classes)
}

// TeacherClasses returns one teacher's classes with their knowledge bases.
func (h *ClassHandler) TeacherClasses(c *fiber.Ctx) error {
	if _, err := handlers.RequireActor(c, h.auth); err != nil {
		return response.FromError(c, err)
	}
	teacherID, err := c.ParamsInt("teacher_id")
	if err != nil {
		return response.BadRequest(c, "Invalid teacher id")
	}

	classes, err := h.classes.TeacherClasses(int64(teacherID))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, classes)
}
