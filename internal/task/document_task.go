package task

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNilProcessor is returned when a DocumentTask is built without a processor.
var ErrNilProcessor = errors.New("processor cannot be nil")

// Processor runs the analysis pipeline for one registered document task.
type Processor interface {
	Process(ctx context.Context, id uuid.UUID) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, id uuid.UUID) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, id uuid.UUID) error {
	return f(ctx, id)
}

// DocumentTask is the queued form of an async upload. The registry record
// carries all task state; the queued value only names it.
type DocumentTask struct {
	id        uuid.UUID
	processor Processor
}

var _ Task = (*DocumentTask)(nil)

// NewDocumentTask creates a DocumentTask for the registry record id.
func NewDocumentTask(id uuid.UUID, processor Processor) (*DocumentTask, error) {
	if id == uuid.Nil {
		return nil, errors.New("task ID cannot be empty")
	}
	if processor == nil {
		return nil, ErrNilProcessor
	}
	return &DocumentTask{id: id, processor: processor}, nil
}

// ID returns the registry task ID.
func (t *DocumentTask) ID() uuid.UUID {
	return t.id
}

// Type returns TaskTypeDocumentAnalysis.
func (t *DocumentTask) Type() string {
	return TaskTypeDocumentAnalysis
}

// Execute runs the processor. Analysis is not cancellable once started, so
// the worker's shutdown signal is not propagated.
func (t *DocumentTask) Execute(ctx context.Context) error {
	return t.processor.Process(context.WithoutCancel(ctx), t.id)
}
