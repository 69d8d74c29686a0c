// Package apperr defines the application error taxonomy. Services return
// *Error values; the HTTP layer maps them to status codes in one place.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error carries an HTTP status, a stable machine code, and a user-facing
// message. Err, when set, holds the underlying cause for logs.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithCause returns a copy of e carrying err as the underlying cause.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func InvalidInput(message string) *Error {
	return New(fiber.StatusBadRequest, "INVALID_INPUT", message)
}

func Unauthorized(message string) *Error {
	if message == "" {
		message = "invalid credentials"
	}
	return New(fiber.StatusUnauthorized, "UNAUTHORIZED", message)
}

func Forbidden(message string) *Error {
	if message == "" {
		message = "access forbidden"
	}
	return New(fiber.StatusForbidden, "FORBIDDEN", message)
}

func NotFound(message string) *Error {
	if message == "" {
		message = "resource not found"
	}
	return New(fiber.StatusNotFound, "NOT_FOUND", message)
}

func Conflict(message string) *Error {
	return New(fiber.StatusConflict, "CONFLICT", message)
}

// Upstream wraps a failure from an external dependency (retrieval service,
// object storage) as a 502.
func Upstream(message string, err error) *Error {
	return &Error{Status: fiber.StatusBadGateway, Code: "UPSTREAM_ERROR", Message: message, Err: err}
}

func Internal(message string, err error) *Error {
	if message == "" {
		message = "internal server error"
	}
	return &Error{Status: fiber.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: message, Err: err}
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
