package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - match with errors.Is()
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("already exists")
	ErrValidation    = errors.New("validation failed")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrMisconfigured = errors.New("server misconfigured")
)

// CycleError is returned when moving a group would make it its own ancestor
type CycleError struct {
	GroupID  string
	ParentID string
}

func (e *CycleError) Error() string {
	if e.GroupID == e.ParentID {
		return "cannot be own parent"
	}
	return "cycle detected"
}

// StatusCode implements HTTPError
func (e *CycleError) StatusCode() int { return http.StatusBadRequest }

// Is allows errors.Is() to match against ErrValidation
func (e *CycleError) Is(target error) bool {
	return target == ErrValidation
}
