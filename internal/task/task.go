package task

import (
	"context"

	"github.com/google/uuid"
)

// TaskTypeDocumentAnalysis identifies a queued document analysis.
const TaskTypeDocumentAnalysis = "document_analysis"

// Task is one queued unit of background work. ID and Type are used only for
// logging and error reporting; the pool never inspects them.
type Task interface {
	ID() uuid.UUID
	Type() string

	// Execute runs the work. A returned error is passed to the pool's
	// error handler and counted as a failure.
	Execute(ctx context.Context) error
}

// TaskQueueReader is the consuming side of a queue. The channel is closed
// once the queue is closed and drained.
type TaskQueueReader interface {
	GetChannel() <-chan Task
}

// TaskQueueWriter is the producing side of a queue.
type TaskQueueWriter interface {
	// Enqueue never blocks. It returns ErrQueueFull when the buffer is
	// exhausted and ErrQueueClosed after Close.
	Enqueue(task Task) error

	// Close stops further submissions. Tasks already buffered stay readable.
	Close()
}
