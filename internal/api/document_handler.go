package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/docmine-api/internal/api/shared"
	"github.com/phrazzld/docmine-api/internal/domain"
	"github.com/phrazzld/docmine-api/internal/platform/logger"
	"github.com/phrazzld/docmine-api/internal/service"
)

const (
	uploadField   = "file"
	strategyField = "strategy"

	markdownContentType = "text/markdown; charset=utf-8"
	zipContentType      = "application/zip"
)

// DocumentService is the orchestrator surface the handlers depend on.
type DocumentService interface {
	Submit(
		ctx context.Context,
		filename string,
		data []byte,
		strategy domain.ParseStrategy,
		mode domain.ExecutionMode,
	) (*domain.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	ListTasks(ctx context.Context) ([]*domain.Task, error)
	FetchResult(ctx context.Context, id uuid.UUID) (*service.Result, error)
	FetchArchive(ctx context.Context, id uuid.UUID) (*service.Archive, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

// DocumentHandler serves the upload, task and download endpoints.
type DocumentHandler struct {
	service        DocumentService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewDocumentHandler creates a DocumentHandler. maxUploadBytes bounds the
// request body of an upload.
func NewDocumentHandler(svc DocumentService, maxUploadBytes int64, logger *slog.Logger) *DocumentHandler {
	if svc == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("document service cannot be nil for DocumentHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for DocumentHandler")
	}

	return &DocumentHandler{
		service:        svc,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "document_handler")),
	}
}

// UploadSync handles POST /upload/sync. The response is sent once the task
// is terminal and carries the rendered document.
func (h *DocumentHandler) UploadSync(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, domain.ModeSync)
}

// UploadAsync handles POST /upload/async. The task is queued and returned
// in the pending state with 202 Accepted.
func (h *DocumentHandler) UploadAsync(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, domain.ModeAsync)
}

func (h *DocumentHandler) upload(w http.ResponseWriter, r *http.Request, mode domain.ExecutionMode) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	upload, err := shared.ReadUpload(w, r, uploadField, h.maxUploadBytes)
	if err != nil {
		log.Debug("rejected upload request", slog.String("error", err.Error()))
		HandleAPIError(w, r, err, "Invalid upload")
		return
	}

	form := UploadForm{
		Strategy: strings.TrimSpace(r.FormValue(strategyField)),
		Filename: upload.Filename,
	}
	if err := shared.ValidateRequest(&form); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	strategy, err := domain.ParseParseStrategy(form.Strategy)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	task, err := h.service.Submit(r.Context(), form.Filename, upload.Data, strategy, mode)
	if err != nil {
		if task != nil {
			log.Warn("synchronous processing failed",
				slog.String("task_id", task.ID.String()),
				slog.String("status", string(task.Status)))
		}
		HandleAPIError(w, r, err, "Failed to process document")
		return
	}

	if mode == domain.ModeAsync {
		message := "File received, processing in background"
		if task.Status == domain.TaskStatusFailed {
			log.Warn("accepted upload could not be queued",
				slog.String("task_id", task.ID.String()),
				slog.String("error_message", task.ErrorMessage))
			message = "File received but could not be queued, see task status"
		}
		shared.RespondWithJSON(w, r, http.StatusAccepted, AsyncUploadResponse{
			TaskResponse: taskToResponse(task),
			Message:      message,
		})
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, SyncUploadResponse{
		TaskResponse: taskToResponse(task),
		Message:      "File processed successfully",
		MDContent:    task.ResultContent,
	})
}

// ListTasks handles GET /tasks.
func (h *DocumentHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.ListTasks(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	resp := TaskListResponse{Tasks: make([]TaskResponse, 0, len(tasks))}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, taskToResponse(t))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetTask handles GET /tasks/{id}.
func (h *DocumentHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	task, err := h.service.GetTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// DeleteTask handles DELETE /tasks/{id}.
func (h *DocumentHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.service.Remove(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{Message: "Task deleted"})
}

// DownloadResult handles GET /download/{id}, serving the rendered document
// as <stem>_result.md.
func (h *DocumentHandler) DownloadResult(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.service.FetchResult(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to fetch result")
		return
	}

	modTime := result.Task.CreatedAt
	if result.Task.CompletedAt != nil {
		modTime = *result.Task.CompletedAt
	}
	shared.RespondWithAttachment(w, r, downloadName(result.Task.Filename, ".md"), markdownContentType,
		modTime, strings.NewReader(result.Content))
}

// DownloadArchive handles GET /download/{id}/zip, serving the zipped bundle
// as <stem>_result.zip.
func (h *DocumentHandler) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	archive, err := h.service.FetchArchive(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to build archive")
		return
	}

	f, err := os.Open(archive.Path)
	if err != nil {
		// Deleted between archiving and opening.
		log.Warn("archive vanished before download", slog.String("task_id", id.String()))
		HandleAPIError(w, r, service.ErrTaskNotFound, "")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read archive")
		return
	}
	shared.RespondWithAttachment(w, r, downloadName(archive.Task.Filename, ".zip"), zipContentType,
		info.ModTime(), f)
}
