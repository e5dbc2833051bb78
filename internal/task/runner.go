package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount: 2,
		QueueSize:   100,
	}
}

// Stats is a point-in-time view of the runner's workload.
type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int   `json:"queued"`
	QueueCap  int   `json:"queue_capacity"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// TaskRunner manages background task processing. It owns a TaskQueue and
// the WorkerPool that consumes it.
type TaskRunner struct {
	queue  *TaskQueue
	pool   *WorkerPool
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	logger = logger.With("component", "task_runner")

	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultTaskRunnerConfig().QueueSize
	}

	queue := NewTaskQueue(queueSize, logger)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger)
	pool.SetErrorHandler(func(task Task, err error) {
		// Default error handler just logs the error
		logger.Error("task execution failed",
			"task_id", task.ID(),
			"task_type", task.Type(),
			"error", err)
	})

	return &TaskRunner{
		queue:  queue,
		pool:   pool,
		logger: logger,
	}
}

// SetErrorHandler allows setting a custom error handler function.
// Must be called before Start.
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.pool.SetErrorHandler(handler)
}

// Submit adds a new task to the queue without blocking.
// Returns ErrQueueFull when the queue is at capacity and ErrQueueClosed after Stop.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}
	if err := r.queue.Enqueue(task); err != nil {
		return fmt.Errorf("failed to submit task %s: %w", task.ID(), err)
	}
	return nil
}

// Start begins processing queued tasks.
func (r *TaskRunner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrQueueClosed
	}
	if r.started {
		return nil
	}

	r.pool.Start()
	r.started = true
	return nil
}

// Stop closes the queue and waits for workers to finish queued and in-flight
// tasks until ctx expires.
func (r *TaskRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	started := r.started
	r.mu.Unlock()

	r.queue.Close()
	if !started {
		return nil
	}

	pending := r.queue.Len()
	r.logger.Info("stopping task runner", "queued", pending)
	return r.pool.Drain(ctx)
}

// Stats reports queue depth and execution counters.
func (r *TaskRunner) Stats() Stats {
	return Stats{
		Workers:   r.pool.WorkerCount(),
		Queued:    r.queue.Len(),
		QueueCap:  r.queue.Cap(),
		Processed: r.pool.Processed(),
		Failed:    r.pool.Failed(),
	}
}
