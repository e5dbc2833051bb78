package api

import (
	"time"

	"github.com/phrazzld/docmine-api/internal/domain"
)

// UploadForm holds the non-file fields of an upload request. Strategy may
// come from the multipart form or the query string.
type UploadForm struct {
	Strategy string `validate:"omitempty,oneof=auto txt ocr AUTO TXT OCR"`
	Filename string `validate:"max=255"`
}

// TaskResponse is the JSON representation of a task.
type TaskResponse struct {
	TaskID       string     `json:"task_id"`
	Filename     string     `json:"filename"`
	Strategy     string     `json:"strategy"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ResultPath   string     `json:"result_path,omitempty"`
}

// SyncUploadResponse is returned by a synchronous upload that completed.
type SyncUploadResponse struct {
	TaskResponse
	Message   string `json:"message"`
	MDContent string `json:"md_content"`
}

// AsyncUploadResponse is returned when an upload is queued.
type AsyncUploadResponse struct {
	TaskResponse
	Message string `json:"message"`
}

// TaskListResponse wraps the task summaries.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}

// MessageResponse is a body carrying only a message.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports liveness and queue statistics.
type HealthResponse struct {
	Status string      `json:"status"`
	Tasks  int         `json:"tasks"`
	Queue  interface{} `json:"queue,omitempty"`
}

func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		TaskID:       t.ID.String(),
		Filename:     t.Filename,
		Strategy:     string(t.Strategy),
		Status:       string(t.Status),
		CreatedAt:    t.CreatedAt,
		CompletedAt:  t.CompletedAt,
		ErrorMessage: t.ErrorMessage,
		ResultPath:   t.ResultRef,
	}
}
