package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrIO is returned when the underlying storage medium fails a read,
	// write, archive or delete (disk full, permissions, ...).
	ErrIO = errors.New("storage I/O failure")

	// ErrEmptyPayload is returned when asked to persist zero bytes.
	ErrEmptyPayload = errors.New("payload is empty")

	// Entity-specific "not found" errors

	// ErrTaskNotFound indicates that the requested task does not exist in the registry.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrBundleNotFound indicates that a task's artifact directory does not exist.
	ErrBundleNotFound = fmt.Errorf("%w: artifact bundle", ErrNotFound)

	// ErrUploadNotFound indicates that the raw upload is missing from the bundle.
	ErrUploadNotFound = fmt.Errorf("%w: uploaded document", ErrNotFound)

	// ErrResultNotFound indicates that the rendered result file is missing.
	// When the owning task claims to be completed this is a data-integrity
	// fault rather than an ordinary lookup miss.
	ErrResultNotFound = fmt.Errorf("%w: result document", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrDuplicateID indicates a task ID collision in the registry.
	ErrDuplicateID = fmt.Errorf("%w: task id", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
// This includes the generic ErrNotFound and all entity-specific not found errors.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "task", "bundle")
	Operation string // The operation that failed (e.g., "save_upload", "archive")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// NewIOError wraps a filesystem error so that it matches ErrIO while
// keeping the original cause reachable through errors.Is/As.
func NewIOError(entity, operation, message string, err error) *StoreError {
	return NewStoreError(entity, operation, message, fmt.Errorf("%w: %w", ErrIO, err))
}
