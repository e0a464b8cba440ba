package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/api/shared"
	"github.com/guojun21/banana-slides/internal/platform/logger"
	"github.com/guojun21/banana-slides/internal/store"
	"github.com/guojun21/banana-slides/internal/task"
)

// TaskResponse is the polling payload for one task.
type TaskResponse struct {
	ID           string         `json:"id"`
	ProjectID    string         `json:"project_id"`
	Type         string         `json:"type"`
	Status       string         `json:"status"`
	Progress     map[string]any `json:"progress"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// TaskHandler handles task status polling requests.
type TaskHandler struct {
	taskStore task.TaskStore
	logger    *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskStore task.TaskStore, logger *slog.Logger) *TaskHandler {
	if taskStore == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("taskStore cannot be nil for TaskHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}
	return &TaskHandler{
		taskStore: taskStore,
		logger:    logger.With(slog.String("component", "task_handler")),
	}
}

// GetTask handles GET /api/tasks/{id} requests.
// Clients poll this endpoint while a background task runs; the response
// carries the authoritative status and the flattened progress object.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	record, err := h.taskStore.GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		log.Error("failed to get task",
			slog.String("task_id", taskID.String()),
			slog.String("error", err.Error()))
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to retrieve task", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, toTaskResponse(record))
}

// toTaskResponse maps a task record to its polling payload. Progress is
// rendered as the same flat object the store persists.
func toTaskResponse(record *task.Record) TaskResponse {
	progress := make(map[string]any, len(record.Progress.Extra)+3)
	for k, v := range record.Progress.Extra {
		progress[k] = v
	}
	progress["total"] = record.Progress.Total
	progress["completed"] = record.Progress.Completed
	progress["failed"] = record.Progress.Failed

	return TaskResponse{
		ID:           record.ID.String(),
		ProjectID:    record.ProjectID.String(),
		Type:         record.Type,
		Status:       string(record.Status),
		Progress:     progress,
		ErrorMessage: record.ErrorMessage,
		CreatedAt:    record.CreatedAt,
		CompletedAt:  record.CompletedAt,
	}
}
