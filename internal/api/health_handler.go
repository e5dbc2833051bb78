package api

import (
	"net/http"

	"github.com/phrazzld/docmine-api/internal/api/shared"
	"github.com/phrazzld/docmine-api/internal/task"
)

// TaskCounter reports how many tasks are registered.
type TaskCounter interface {
	Count() int
}

// QueueStatser reports background queue statistics.
type QueueStatser interface {
	Stats() task.Stats
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	tasks TaskCounter
	queue QueueStatser
}

// NewHealthHandler creates a HealthHandler. Either dependency may be nil.
func NewHealthHandler(tasks TaskCounter, queue QueueStatser) *HealthHandler {
	return &HealthHandler{tasks: tasks, queue: queue}
}

// Health reports liveness along with the task count and queue statistics.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.tasks != nil {
		resp.Tasks = h.tasks.Count()
	}
	if h.queue != nil {
		resp.Queue = h.queue.Stats()
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
