package services

import (
	"errors"
	"fmt"
)

// Common service-layer errors. Handlers map these to HTTP status codes.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource with the same identity exists.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates the request payload failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrForbidden indicates the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition indicates a flow status change that is not
	// allowed from the flow's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConcurrentModification indicates the resource changed underneath
	// the caller.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// ValidationError provides field-level detail for invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a field-level validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
