package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned after a definitive empty result for a lookup,
	// update or delete.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when a mutation runs without admin claims.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict is returned when the store rejects a write because of a
	// unique or foreign key constraint.
	ErrConflict = errors.New("conflict")
)

// ValidationError describes input rejected before any store access.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(e.Fields, ", "))
}

// NewValidationError builds a ValidationError for the given fields.
func NewValidationError(message string, fields ...string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

// UpstreamError wraps a failure of a remote collaborator (the data store or
// the SMTP relay). Status and Message are kept for logs only.
type UpstreamError struct {
	Source  string
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream failure (status %d): %s", e.Source, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: upstream failure: %s", e.Source, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
