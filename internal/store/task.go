package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/docmine-api/internal/domain"
)

// TaskMutator applies a state change to a private copy of a task.
// Returning an error aborts the update and leaves the stored record untouched.
type TaskMutator func(task *domain.Task) error

// TaskRegistry is the single source of truth for task state.
// Implementations must be safe for concurrent use by request handlers and
// background workers. Every returned task is a snapshot owned by the caller.
type TaskRegistry interface {
	// Create stores a new task record.
	// Returns ErrDuplicateID if a task with the same ID already exists.
	// Returns domain.ErrInvalidTaskState if the record violates task invariants.
	Create(ctx context.Context, task *domain.Task) (uuid.UUID, error)

	// Get retrieves a snapshot of a task by its ID.
	// Returns ErrTaskNotFound if the task does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update atomically applies mutator to the task identified by id and
	// returns the resulting snapshot.
	// Returns ErrTaskNotFound if the task does not exist (including when it
	// was deleted while a worker was still processing it).
	// Returns domain.ErrInvalidTransition if the mutator would move the task
	// through an illegal status change, and domain.ErrInvalidTaskState if the
	// result would break a field invariant.
	Update(ctx context.Context, id uuid.UUID, mutator TaskMutator) (*domain.Task, error)

	// List returns snapshots of all tasks in creation order.
	List(ctx context.Context) ([]*domain.Task, error)

	// Delete removes a task and returns its last state so the caller can
	// clean up the artifact bundle.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) (*domain.Task, error)
}
