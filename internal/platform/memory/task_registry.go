package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/docmine-api/internal/domain"
	"github.com/phrazzld/docmine-api/internal/platform/logger"
	"github.com/phrazzld/docmine-api/internal/store"
)

// entry pairs a task record with its creation sequence number so List can
// return creation order without keeping a separate slice in sync.
type entry struct {
	seq  uint64
	task *domain.Task
}

// TaskRegistry implements store.TaskRegistry with a mutex-guarded map.
// Stored records are never handed out; callers always receive clones, so a
// reader can never observe a half-applied update.
type TaskRegistry struct {
	mu      sync.RWMutex
	tasks   map[uuid.UUID]*entry
	nextSeq uint64
}

var _ store.TaskRegistry = (*TaskRegistry)(nil)

// NewTaskRegistry creates an empty registry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		tasks: make(map[uuid.UUID]*entry),
	}
}

// Create stores a new task record.
func (r *TaskRegistry) Create(ctx context.Context, task *domain.Task) (uuid.UUID, error) {
	if task == nil {
		return uuid.Nil, store.NewStoreError("task", "create", "task cannot be nil", domain.ErrInvalidTaskState)
	}
	if err := task.Validate(); err != nil {
		return uuid.Nil, store.NewStoreError("task", "create", "invalid task record", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[task.ID]; exists {
		logger.FromContext(ctx).Error("task id collision", "task_id", task.ID)
		return uuid.Nil, store.ErrDuplicateID
	}

	r.nextSeq++
	r.tasks[task.ID] = &entry{seq: r.nextSeq, task: task.Clone()}
	return task.ID, nil
}

// Get retrieves a snapshot of a task by its ID.
func (r *TaskRegistry) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return e.task.Clone(), nil
}

// Update atomically applies mutator to the task identified by id.
// The mutator works on a clone; the stored record is replaced only if the
// result passes both the transition check and the invariant check.
func (r *TaskRegistry) Update(
	ctx context.Context,
	id uuid.UUID,
	mutator store.TaskMutator,
) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}

	next := e.task.Clone()
	if err := mutator(next); err != nil {
		return nil, err
	}

	if next.ID != e.task.ID {
		return nil, fmt.Errorf("%w: task ID is immutable", domain.ErrInvalidTaskState)
	}
	if !domain.CanTransition(e.task.Status, next.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, e.task.Status, next.Status)
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	e.task = next
	return next.Clone(), nil
}

// List returns snapshots of all tasks in creation order.
func (r *TaskRegistry) List(ctx context.Context) ([]*domain.Task, error) {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.tasks))
	for _, e := range r.tasks {
		entries = append(entries, &entry{seq: e.seq, task: e.task.Clone()})
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	tasks := make([]*domain.Task, len(entries))
	for i, e := range entries {
		tasks[i] = e.task
	}
	return tasks, nil
}

// Delete removes a task and returns its last state.
func (r *TaskRegistry) Delete(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return e.task, nil
}

// Contains reports whether a task with the given ID is registered.
func (r *TaskRegistry) Contains(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tasks[id]
	return ok
}

// Count returns the number of registered tasks.
func (r *TaskRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
