package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the processing state of a document task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further transition can leave the status.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// IsValid reports whether s is one of the known statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a task may move from one status to another.
// Staying in the same status is allowed so that mutators which only touch
// non-status fields pass the check.
func CanTransition(from, to TaskStatus) bool {
	if from == to {
		return from.IsValid()
	}

	switch from {
	case TaskStatusPending:
		return to == TaskStatusProcessing || to == TaskStatusFailed
	case TaskStatusProcessing:
		return to == TaskStatusCompleted || to == TaskStatusFailed
	default:
		return false
	}
}

// Task tracks one upload-to-result unit of work.
//
// Invariants enforced by Validate:
//   - ResultRef is set if and only if Status is completed
//   - ErrorMessage is set if and only if Status is failed
//   - CompletedAt is set if and only if Status is terminal
type Task struct {
	ID           uuid.UUID     `json:"id"`
	Filename     string        `json:"filename"`
	Strategy     ParseStrategy `json:"strategy"`
	Status       TaskStatus    `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ResultRef    string        `json:"result_path,omitempty"`

	// ResultContent caches the rendered document so repeated retrieval does
	// not go back to storage. Never serialized in task summaries.
	ResultContent string `json:"-"`
}

// NewTask creates a pending Task with a fresh identifier.
// An empty filename is replaced with a synthesized document name.
func NewTask(filename string, strategy ParseStrategy) *Task {
	id := uuid.New()
	if filename == "" {
		filename = fmt.Sprintf("document_%s.pdf", id)
	}

	return &Task{
		ID:        id,
		Filename:  filename,
		Strategy:  strategy,
		Status:    TaskStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks that the task's fields agree with its status.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("%w: task ID cannot be empty", ErrInvalidTaskState)
	}

	if !t.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTaskState, t.Status)
	}

	completed := t.Status == TaskStatusCompleted
	if completed != (t.ResultRef != "") {
		return fmt.Errorf("%w: result reference must be set only when completed (status %s)",
			ErrInvalidTaskState, t.Status)
	}

	failed := t.Status == TaskStatusFailed
	if failed != (t.ErrorMessage != "") {
		return fmt.Errorf("%w: error message must be set only when failed (status %s)",
			ErrInvalidTaskState, t.Status)
	}

	if t.Status.IsTerminal() != (t.CompletedAt != nil) {
		return fmt.Errorf("%w: completion time must be set only for terminal status (status %s)",
			ErrInvalidTaskState, t.Status)
	}

	return nil
}

// MarkProcessing moves a pending task to processing.
func (t *Task) MarkProcessing() error {
	return t.transition(TaskStatusProcessing)
}

// Complete records a successful analysis. The reference and content become
// visible together with the status change.
func (t *Task) Complete(resultRef, content string, now time.Time) error {
	if resultRef == "" {
		return fmt.Errorf("%w: completed task requires a result reference", ErrInvalidTaskState)
	}
	if err := t.transition(TaskStatusCompleted); err != nil {
		return err
	}

	completedAt := now.UTC()
	t.ResultRef = resultRef
	t.ResultContent = content
	t.CompletedAt = &completedAt
	return nil
}

// Fail records a terminal failure with a non-empty message.
func (t *Task) Fail(message string, now time.Time) error {
	if message == "" {
		message = "unknown failure"
	}
	if err := t.transition(TaskStatusFailed); err != nil {
		return err
	}

	completedAt := now.UTC()
	t.ErrorMessage = message
	t.CompletedAt = &completedAt
	return nil
}

func (t *Task) transition(to TaskStatus) error {
	if t.Status == to || !CanTransition(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	return nil
}

// Clone returns a deep copy so callers can read or mutate it without
// sharing memory with the registry.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}

	c := *t
	if t.CompletedAt != nil {
		completedAt := *t.CompletedAt
		c.CompletedAt = &completedAt
	}
	return &c
}
