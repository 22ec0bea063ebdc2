// Package common defines shared constants, sentinel errors and small helpers
// used across the server and client. Callers should use errors.Is to match
// the sentinel values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrValidation         = errors.New("validation error")
	ErrDuplicateEmail     = fmt.Errorf("email already registered: %w", ErrValidation)
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrCSRFViolation      = errors.New("csrf token mismatch")
	ErrStoreFailure       = errors.New("store failure")

	// ErrSessionTerminated accompanies a failure that also expired the
	// caller's session, so the transport can drop its credentials.
	ErrSessionTerminated = errors.New("session terminated")
)

// ValidationError reports which input field was rejected. Its message never
// carries the offending value.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %s invalid", e.Field)
}

// Unwrap makes errors.Is(err, ErrValidation) hold for every ValidationError.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError returns a *ValidationError for field.
func NewValidationError(field string) error {
	return &ValidationError{Field: field}
}
