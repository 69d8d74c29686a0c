package model

import "strings"

// Role identifies which account table an actor belongs to.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole normalizes and validates a role tag from a request.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleTeacher:
		return RoleTeacher, true
	case RoleStudent:
		return RoleStudent, true
	}
	return "", false
}

// Uploader is a tagged reference to the account that uploaded a document:
// exactly one role and its id. The zero value means "unset".
type Uploader struct {
	Role Role
	ID   int64
}

func (u Uploader) IsZero() bool {
	return u.Role == "" || u.ID == 0
}
