package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/bpm-api/internal/api/shared"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/platform/logger"
	"github.com/phrazzld/bpm-api/internal/service"
)

// TaskHandler serves the task listing and task completion endpoints.
type TaskHandler struct {
	tasks  service.TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(tasks service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		panic("logger cannot be nil for TaskHandler")
	}
	return &TaskHandler{
		tasks:  tasks,
		logger: logger.With("component", "task_handler"),
	}
}

// List handles GET /api/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	user, ok := currentUser(w, r, log)
	if !ok {
		return
	}

	opts, err := parseTaskListOptions(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	page, err := h.tasks.List(r.Context(), user, opts)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskPageToResponse(page))
}

// Get handles GET /api/tasks/{id}. include=user,definition embeds the
// assigned user and the element definition.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	user, ok := currentUser(w, r, log)
	if !ok {
		return
	}
	taskID, err := getPathInt64(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	include := includes(r)
	details, err := h.tasks.Get(r.Context(), user, taskID, include["user"])
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskDetailsToResponse(details, include["definition"]))
}

// Update handles PUT /api/tasks/{id}.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	user, ok := currentUser(w, r, log)
	if !ok {
		return
	}
	taskID, err := getPathInt64(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req TaskUpdateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	status := domain.TaskStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	task, err := h.tasks.Update(r.Context(), user, taskID, status, req.Data)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task")
		return
	}

	log.Info("task completed",
		slog.Int64("task_id", task.ID),
		slog.Int64("process_request_id", task.ProcessRequestID))
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}
