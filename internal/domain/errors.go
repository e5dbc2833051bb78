package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when input or a domain entity fails validation.
	// Every upload rejection wraps it so callers can test a single sentinel.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyPayload is returned when an uploaded document has no bytes.
	ErrEmptyPayload = fmt.Errorf("%w: uploaded file is empty", ErrValidation)

	// ErrUnsupportedType is returned when the uploaded document is not a
	// type the analyzer pipeline accepts.
	ErrUnsupportedType = fmt.Errorf("%w: unsupported file type", ErrValidation)

	// ErrInvalidStrategy is returned for a parse strategy outside auto, txt and ocr.
	ErrInvalidStrategy = fmt.Errorf("%w: invalid parse strategy", ErrValidation)

	// ErrInvalidTransition is returned when a status change would violate
	// the task state machine.
	ErrInvalidTransition = errors.New("invalid task status transition")

	// ErrInvalidTaskState is returned when a task's fields are inconsistent
	// with its status (for example completed without a result reference).
	ErrInvalidTaskState = errors.New("inconsistent task state")
)

// ValidationError gives field-level context to a validation failure.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
