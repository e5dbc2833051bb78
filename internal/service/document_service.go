package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/docmine-api/internal/analysis"
	"github.com/phrazzld/docmine-api/internal/domain"
	"github.com/phrazzld/docmine-api/internal/store"
	"github.com/phrazzld/docmine-api/internal/task"
)

// TaskRunner defines the interface for submitting background tasks
type TaskRunner interface {
	// Submit adds a task to the processing queue without blocking
	Submit(ctx context.Context, task task.Task) error
}

// Analyzer renders a document for a parse strategy.
// It is satisfied by *analysis.Adapter.
type Analyzer interface {
	Analyze(
		ctx context.Context,
		data []byte,
		strategy domain.ParseStrategy,
		images analysis.ImageWriter,
	) (*analysis.Result, error)
}

// Result is a completed task's rendered document.
type Result struct {
	Task    *domain.Task
	Content string
}

// Archive is the location of a completed task's zipped bundle.
type Archive struct {
	Task *domain.Task
	Path string
}

// DocumentService drives the task state machine: it accepts uploads,
// runs analysis inline or through the TaskRunner, records results in the
// registry and keeps the artifact bundles in step with the task records.
//
// A task removed while it is processing is tombstoned by its absence from
// the registry. The worker notices on its next registry write, skips the
// terminal transition and deletes the bundle itself.
type DocumentService struct {
	registry  store.TaskRegistry
	artifacts store.ArtifactStore
	analyzer  Analyzer
	runner    TaskRunner
	logger    *slog.Logger
	now       func() time.Time
}

// NewDocumentService creates a DocumentService.
// It returns an error if any of the required dependencies are nil.
func NewDocumentService(
	registry store.TaskRegistry,
	artifacts store.ArtifactStore,
	analyzer Analyzer,
	runner TaskRunner,
	logger *slog.Logger,
) (*DocumentService, error) {
	if registry == nil {
		return nil, &DocumentServiceError{Operation: "create_service", Message: "registry cannot be nil"}
	}
	if artifacts == nil {
		return nil, &DocumentServiceError{Operation: "create_service", Message: "artifact store cannot be nil"}
	}
	if analyzer == nil {
		return nil, &DocumentServiceError{Operation: "create_service", Message: "analyzer cannot be nil"}
	}
	if runner == nil {
		return nil, &DocumentServiceError{Operation: "create_service", Message: "task runner cannot be nil"}
	}

	// Use provided logger or create default
	if logger == nil {
		logger = slog.Default()
	}

	return &DocumentService{
		registry:  registry,
		artifacts: artifacts,
		analyzer:  analyzer,
		runner:    runner,
		logger:    logger.With("component", "document_service"),
		now:       time.Now,
	}, nil
}

// Submit validates an upload, registers a pending task and processes it.
//
// In sync mode the call returns after the task reaches a terminal state. If
// processing failed, the failed task is returned together with the error.
// In async mode the pending task is returned as soon as it is queued. If it
// cannot be queued (queue full or shutting down) it is failed right away and
// the failed task is returned without an error.
//
// Validation errors (domain.ErrValidation) are returned before any task or
// bundle exists.
func (s *DocumentService) Submit(
	ctx context.Context,
	filename string,
	data []byte,
	strategy domain.ParseStrategy,
	mode domain.ExecutionMode,
) (*domain.Task, error) {
	if err := domain.ValidateUpload(filename, data); err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = domain.StrategyAuto
	}
	if mode != domain.ModeSync && mode != domain.ModeAsync {
		return nil, domain.NewValidationError("mode", fmt.Sprintf("unknown execution mode %q", mode), domain.ErrValidation)
	}

	t := domain.NewTask(filename, strategy)
	log := s.logger.With("task_id", t.ID, "mode", mode, "strategy", strategy)

	// The bundle is written before the record exists, so nothing can remove
	// the task while its upload is only half persisted.
	if _, err := s.artifacts.InitBundle(ctx, t.ID); err != nil {
		log.ErrorContext(ctx, "failed to initialize bundle", "error", err)
		return nil, NewDocumentServiceError("submit", "failed to initialize artifact bundle", err)
	}
	if _, err := s.artifacts.SaveUpload(ctx, t.ID, t.Filename, data); err != nil {
		log.ErrorContext(ctx, "failed to persist upload", "error", err)
		s.discardBundle(ctx, t.ID)
		return nil, NewDocumentServiceError("submit", "failed to persist upload", err)
	}
	if _, err := s.registry.Create(ctx, t); err != nil {
		log.ErrorContext(ctx, "failed to register task", "error", err)
		s.discardBundle(ctx, t.ID)
		return nil, NewDocumentServiceError("submit", "failed to register task", err)
	}

	log.InfoContext(ctx, "task created", "filename", t.Filename, "size_bytes", len(data))

	if mode == domain.ModeSync {
		return s.submitSync(ctx, t.ID)
	}
	return s.submitAsync(ctx, t)
}

func (s *DocumentService) submitSync(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	// The client going away must not leave the task half processed.
	procErr := s.Process(context.WithoutCancel(ctx), id)

	snapshot, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, NewDocumentServiceError("submit", "task disappeared during processing", err)
	}
	if procErr != nil {
		return snapshot, procErr
	}
	return snapshot, nil
}

func (s *DocumentService) submitAsync(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	job, err := task.NewDocumentTask(t.ID, s)
	if err == nil {
		err = s.runner.Submit(ctx, job)
	}
	if err == nil {
		return t.Clone(), nil
	}

	log := s.logger.With("task_id", t.ID)
	log.ErrorContext(ctx, "failed to enqueue task", "error", err)

	reason := ErrQueueFull
	if errors.Is(err, task.ErrQueueClosed) {
		reason = ErrShuttingDown
	}

	// A task nobody will process must not stay pending. The caller still
	// gets the task back and learns of the failure by polling it.
	failed, failErr := s.registry.Update(ctx, t.ID, func(rec *domain.Task) error {
		return rec.Fail(reason.Error(), s.now())
	})
	if failErr != nil {
		log.ErrorContext(ctx, "failed to mark unqueued task as failed", "error", failErr)
		return nil, NewDocumentServiceError("submit", "failed to record enqueue failure", failErr)
	}
	return failed, nil
}

// Process runs the analysis pipeline for a pending task. It is invoked once
// per submitted task, inline for sync uploads or by a worker for async ones.
//
// Failures while processing are recorded as the task's terminal failed state
// and also returned. A task removed while pending or processing is abandoned:
// Process returns nil, writes no terminal state and deletes the bundle.
func (s *DocumentService) Process(ctx context.Context, id uuid.UUID) error {
	log := s.logger.With("task_id", id)

	t, err := s.registry.Update(ctx, id, func(rec *domain.Task) error {
		return rec.MarkProcessing()
	})
	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		log.InfoContext(ctx, "task removed before processing started, abandoning")
		return nil
	case errors.Is(err, domain.ErrInvalidTransition):
		log.WarnContext(ctx, "task is not pending, refusing to process again", "error", err)
		return ErrAlreadyProcessed
	case err != nil:
		log.ErrorContext(ctx, "failed to mark task as processing", "error", err)
		return NewDocumentServiceError("process", "failed to mark task as processing", err)
	}

	log.InfoContext(ctx, "processing started", "filename", t.Filename, "strategy", t.Strategy)
	start := s.now()

	data, err := s.artifacts.ReadUpload(ctx, id, t.Filename)
	if err != nil || len(data) == 0 {
		if err == nil {
			err = store.ErrEmptyPayload
		}
		log.ErrorContext(ctx, "uploaded file unavailable", "error", err)
		return s.fail(ctx, id, "uploaded file is missing or empty", err)
	}

	result, err := s.analyzer.Analyze(ctx, data, t.Strategy, s.imageWriter(id))
	if err != nil {
		if s.tombstoned(ctx, id) {
			return s.abandon(ctx, id)
		}
		return s.fail(ctx, id, err.Error(), err)
	}

	// Check for removal before writing anything else into the bundle.
	if s.tombstoned(ctx, id) {
		return s.abandon(ctx, id)
	}

	ref, err := s.artifacts.SaveResult(ctx, id, result.Content)
	if err != nil {
		log.ErrorContext(ctx, "failed to save result", "error", err)
		return s.fail(ctx, id, "failed to save result", fmt.Errorf("%w: %w", ErrStorage, err))
	}

	_, err = s.registry.Update(ctx, id, func(rec *domain.Task) error {
		return rec.Complete(ref, result.Content, s.now())
	})
	if errors.Is(err, store.ErrTaskNotFound) {
		return s.abandon(ctx, id)
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to record completion", "error", err)
		return NewDocumentServiceError("process", "failed to record completion", err)
	}

	log.InfoContext(ctx, "processing completed",
		"mode", result.Mode,
		"pages", result.Pages,
		"images", len(result.Images),
		"content_length", len(result.Content),
		"duration_ms", s.now().Sub(start).Milliseconds())
	return nil
}

// fail records a terminal failure with message and returns cause.
func (s *DocumentService) fail(ctx context.Context, id uuid.UUID, message string, cause error) error {
	_, err := s.registry.Update(ctx, id, func(rec *domain.Task) error {
		return rec.Fail(message, s.now())
	})
	if errors.Is(err, store.ErrTaskNotFound) {
		return s.abandon(ctx, id)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record task failure", "task_id", id, "error", err)
		return NewDocumentServiceError("process", "failed to record task failure", err)
	}

	s.logger.WarnContext(ctx, "processing failed", "task_id", id, "error_message", message)
	return cause
}

// abandon cleans up after a task that was removed mid-processing.
func (s *DocumentService) abandon(ctx context.Context, id uuid.UUID) error {
	s.logger.InfoContext(ctx, "task removed during processing, discarding artifacts", "task_id", id)
	s.discardBundle(ctx, id)
	return nil
}

func (s *DocumentService) tombstoned(ctx context.Context, id uuid.UUID) bool {
	_, err := s.registry.Get(ctx, id)
	return errors.Is(err, store.ErrTaskNotFound)
}

func (s *DocumentService) discardBundle(ctx context.Context, id uuid.UUID) {
	if err := s.artifacts.DeleteBundle(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete bundle", "task_id", id, "error", err)
	}
}

// imageWriter stores side artifacts in the task's bundle and refuses once
// the task has been removed.
func (s *DocumentService) imageWriter(id uuid.UUID) analysis.ImageWriter {
	return analysis.ImageWriterFunc(func(ctx context.Context, name string, data []byte) (string, error) {
		if s.tombstoned(ctx, id) {
			return "", ErrTaskNotFound
		}
		return s.artifacts.SaveImage(ctx, id, name, data)
	})
}

// GetTask returns a snapshot of one task.
func (s *DocumentService) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	t, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, NewDocumentServiceError("get_task", "failed to retrieve task", err)
	}
	return t, nil
}

// ListTasks returns snapshots of all tasks in creation order.
func (s *DocumentService) ListTasks(ctx context.Context) ([]*domain.Task, error) {
	tasks, err := s.registry.List(ctx)
	if err != nil {
		return nil, NewDocumentServiceError("list_tasks", "failed to list tasks", err)
	}
	return tasks, nil
}

// FetchResult returns the rendered document of a completed task, preferring
// the cached copy. It returns ErrNotReady for a task still in progress and a
// *TaskFailedError for a failed one.
func (s *DocumentService) FetchResult(ctx context.Context, id uuid.UUID) (*Result, error) {
	t, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, NewDocumentServiceError("fetch_result", "failed to retrieve task", err)
	}

	switch t.Status {
	case domain.TaskStatusCompleted:
	case domain.TaskStatusFailed:
		return nil, &TaskFailedError{Message: t.ErrorMessage}
	default:
		return nil, ErrNotReady
	}

	if t.ResultContent != "" {
		return &Result{Task: t, Content: t.ResultContent}, nil
	}

	content, err := s.artifacts.ReadResult(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrResultNotFound) {
			s.logger.ErrorContext(ctx, "completed task has no result in storage", "task_id", id)
		}
		return nil, NewDocumentServiceError("fetch_result", "failed to read result", err)
	}
	return &Result{Task: t, Content: content}, nil
}

// FetchArchive zips a completed task's bundle and returns the archive path.
// It returns ErrNotReady unless the task is completed.
func (s *DocumentService) FetchArchive(ctx context.Context, id uuid.UUID) (*Archive, error) {
	t, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, NewDocumentServiceError("fetch_archive", "failed to retrieve task", err)
	}
	if t.Status != domain.TaskStatusCompleted {
		return nil, ErrNotReady
	}

	path, err := s.artifacts.Archive(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrBundleNotFound) {
			// Either removed concurrently or lost from disk.
			if s.tombstoned(ctx, id) {
				return nil, ErrTaskNotFound
			}
			s.logger.ErrorContext(ctx, "completed task has no bundle in storage", "task_id", id)
			return nil, ErrResultNotFound
		}
		return nil, NewDocumentServiceError("fetch_archive", "failed to build archive", err)
	}
	return &Archive{Task: t, Path: path}, nil
}

// Remove deletes a task and its artifact bundle.
//
// For a terminal task the archive and directory tree are deleted before the
// registry entry. A non-terminal task is removed from the registry first,
// which tombstones it: a pending task's bundle is deleted right away, while
// for a processing task the worker deletes the bundle when it notices.
// If the record was removed but the bundle could not be, the error matches
// ErrCleanupIncomplete.
func (s *DocumentService) Remove(ctx context.Context, id uuid.UUID) error {
	t, err := s.registry.Get(ctx, id)
	if err != nil {
		return NewDocumentServiceError("remove", "failed to retrieve task", err)
	}

	var bundleErr error
	if t.Status.IsTerminal() {
		bundleErr = s.artifacts.DeleteBundle(ctx, id)
	}

	removed, err := s.registry.Delete(ctx, id)
	if err != nil {
		return NewDocumentServiceError("remove", "failed to remove task", err)
	}

	log := s.logger.With("task_id", id, "status", removed.Status)

	switch {
	case t.Status.IsTerminal():
	case removed.Status == domain.TaskStatusProcessing:
		log.InfoContext(ctx, "task removed while processing, worker will discard artifacts")
		return nil
	default:
		// Pending, or finished between the snapshot and the delete.
		bundleErr = s.artifacts.DeleteBundle(ctx, id)
	}

	if bundleErr != nil {
		log.ErrorContext(ctx, "task removed but bundle deletion failed", "error", bundleErr)
		return &DocumentServiceError{
			Operation: "remove",
			Message:   "failed to delete artifacts",
			Err:       fmt.Errorf("%w: %w", ErrCleanupIncomplete, bundleErr),
		}
	}

	log.InfoContext(ctx, "task removed")
	return nil
}
