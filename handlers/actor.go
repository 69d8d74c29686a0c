package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/services"
	"github.com/casehub/casehub/utils/apperr"
)

// RequireActor resolves and verifies the request's identity. Role and user
// id arrive in the X-Role / X-User-Id headers, with query parameters as a
// fallback for browser downloads.
func RequireActor(c *fiber.Ctx, auth *services.AuthService) (*services.Actor, error) {
	roleStr := c.Get("X-Role")
	if roleStr == "" {
		roleStr = c.Query("role")
	}
	idStr := c.Get("X-User-Id")
	if idStr == "" {
		idStr = c.Query("user_id")
	}

	role, ok := model.ParseRole(roleStr)
	if !ok {
		return nil, apperr.Unauthorized("missing or invalid role")
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, apperr.Unauthorized("missing or invalid user id")
	}

	return auth.VerifyActor(role, id)
}

// ScopeHintFromQuery picks the optional class/kb narrowing parameters out of
// the query string.
func ScopeHintFromQuery(c *fiber.Ctx) services.ScopeHint {
	hint := services.ScopeHint{ClassCode: c.Query("class_code")}
	if v, err := strconv.ParseInt(c.Query("class_id"), 10, 64); err == nil {
		hint.ClassID = v
	}
	if v, err := strconv.ParseInt(c.Query("kb_id"), 10, 64); err == nil {
		hint.KBID = v
	}
	return hint
}
