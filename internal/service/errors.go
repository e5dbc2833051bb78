// Package service implements the document task orchestrator.
package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/docmine-api/internal/store"
)

// Sentinel errors returned by DocumentService.
//
// Error handling principles:
// 1. Expected conditions are returned as sentinels or typed errors
// 2. Unexpected errors are wrapped in DocumentServiceError
// 3. Callers use errors.Is/errors.As to check for specific conditions
// 4. The API layer maps them to HTTP status codes in one table
var (
	// ErrTaskNotFound indicates that no task has the requested ID.
	// API layer should map this to HTTP 404 Not Found.
	ErrTaskNotFound = errors.New("task not found")

	// ErrResultNotFound indicates a completed task whose result is missing
	// from storage. It is a data-integrity fault distinct from an unknown task.
	// API layer should map this to HTTP 404 Not Found.
	ErrResultNotFound = errors.New("result file not found")

	// ErrNotReady indicates the task has not completed yet.
	// API layer should map this to HTTP 400 Bad Request.
	ErrNotReady = errors.New("task not completed yet")

	// ErrCleanupIncomplete indicates a task record was removed but some of its
	// artifacts could not be deleted.
	// API layer should map this to HTTP 500 Internal Server Error.
	ErrCleanupIncomplete = errors.New("task removed but artifact cleanup is incomplete")

	// ErrStorage indicates an artifact store read or write failed.
	// API layer should map this to HTTP 500 Internal Server Error.
	ErrStorage = errors.New("artifact storage failure")

	// ErrQueueFull is recorded as the failure of an async task the background
	// queue had no room for.
	ErrQueueFull = errors.New("processing queue is full")

	// ErrShuttingDown is recorded as the failure of an async task submitted
	// after the background queue stopped accepting work.
	ErrShuttingDown = errors.New("service is shutting down")

	// ErrAlreadyProcessed indicates process was invoked for a task that has
	// already left the pending state.
	ErrAlreadyProcessed = errors.New("task has already been processed")
)

// TaskFailedError is returned when a result is requested for a failed task.
// Message is the task's recorded error message.
type TaskFailedError struct {
	Message string
}

// Error implements the error interface.
func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task failed: %s", e.Message)
}

// DocumentServiceError wraps errors from the document service with context.
type DocumentServiceError struct {
	// Operation is the operation that failed (e.g., "submit", "fetch_result")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for DocumentServiceError.
func (e *DocumentServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("document service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("document service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *DocumentServiceError) Unwrap() error {
	return e.Err
}

// NewDocumentServiceError creates a new DocumentServiceError.
// Store sentinels with a service-level equivalent are translated and
// returned directly without wrapping.
func NewDocumentServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, store.ErrTaskNotFound):
		return ErrTaskNotFound
	case errors.Is(err, ErrResultNotFound), errors.Is(err, store.ErrResultNotFound):
		return ErrResultNotFound
	case errors.Is(err, store.ErrIO):
		return &DocumentServiceError{
			Operation: operation,
			Message:   message,
			Err:       fmt.Errorf("%w: %w", ErrStorage, err),
		}
	}

	return &DocumentServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
