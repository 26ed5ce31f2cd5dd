package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/jobs"
	"github.com/phrazzld/bpm-api/internal/service"
)

// Common request/response structures

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Email     string `json:"email"     validate:"required,email"`
	Password  string `json:"password"  validate:"required,min=12,max=72"`
	Firstname string `json:"firstname" validate:"max=255"`
	Lastname  string `json:"lastname"  validate:"max=255"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	UserID uuid.UUID `json:"user_id"`

	// AccessToken is the JWT token used for API authorization
	AccessToken string `json:"token"`

	// ExpiresAt is the RFC 3339 timestamp when the access token expires
	ExpiresAt string `json:"expires_at,omitempty"`
}

// TranslationRequest asks for a screen to be translated into Language.
type TranslationRequest struct {
	Language string `json:"language" validate:"required,min=2,max=35"`
}

// JobResponse describes a background job.
type JobResponse struct {
	ID           uuid.UUID `json:"id"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    string    `json:"created_at,omitempty"`
	UpdatedAt    string    `json:"updated_at,omitempty"`
}

func jobToResponse(rec *jobs.Record) JobResponse {
	return JobResponse{
		ID:           rec.ID,
		Type:         rec.Type,
		Status:       string(rec.Status),
		ErrorMessage: rec.ErrorMessage,
		CreatedAt:    formatTime(rec.CreatedAt),
		UpdatedAt:    formatTime(rec.UpdatedAt),
	}
}

// ImportRequest carries an export payload and the import options.
// Options accepts the keys "mode", "skip_if_exists", "overwrite",
// "on_validation_error" and "modes" (per-node overrides keyed by stable id).
type ImportRequest struct {
	Payload json.RawMessage `json:"payload" validate:"required"`
	Options map[string]any  `json:"options"`
}

// TaskUpdateRequest completes a task. Only COMPLETED is accepted.
type TaskUpdateRequest struct {
	Status string         `json:"status" validate:"required"`
	Data   map[string]any `json:"data"`
}

// TaskUserResponse is the assigned user embedded with include=user.
type TaskUserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Firstname string    `json:"firstname"`
	Lastname  string    `json:"lastname"`
	Fullname  string    `json:"fullname"`
}

// TaskDefinitionResponse is the element definition embedded with include=definition.
type TaskDefinitionResponse struct {
	ElementID   string `json:"element_id"`
	ElementType string `json:"element_type"`
	ElementName string `json:"element_name"`
}

// TaskResponse is the API representation of a task. Dates are RFC 3339.
type TaskResponse struct {
	ID               int64                   `json:"id"`
	ProcessRequestID int64                   `json:"process_request_id"`
	UserID           *uuid.UUID              `json:"user_id"`
	ElementID        string                  `json:"element_id"`
	ElementType      string                  `json:"element_type"`
	ElementName      string                  `json:"element_name"`
	Status           string                  `json:"status"`
	Data             json.RawMessage         `json:"data,omitempty"`
	CompletedAt      *string                 `json:"completed_at"`
	DueAt            *string                 `json:"due_at"`
	CreatedAt        string                  `json:"created_at"`
	UpdatedAt        string                  `json:"updated_at"`
	User             *TaskUserResponse       `json:"user,omitempty"`
	Definition       *TaskDefinitionResponse `json:"definition,omitempty"`
}

// TaskListMeta is the pagination block of a task list.
type TaskListMeta struct {
	Total       int `json:"total"`
	Count       int `json:"count"`
	PerPage     int `json:"per_page"`
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

// TaskListResponse is a page of tasks.
type TaskListResponse struct {
	Data []TaskResponse `json:"data"`
	Meta TaskListMeta   `json:"meta"`
}

func taskToResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:               task.ID,
		ProcessRequestID: task.ProcessRequestID,
		UserID:           task.UserID,
		ElementID:        task.ElementID,
		ElementType:      task.ElementType,
		ElementName:      task.ElementName,
		Status:           string(task.Status),
		Data:             task.Data,
		CompletedAt:      formatTimePtr(task.CompletedAt),
		DueAt:            formatTimePtr(task.DueAt),
		CreatedAt:        formatTime(task.CreatedAt),
		UpdatedAt:        formatTime(task.UpdatedAt),
	}
}

func taskDetailsToResponse(details *service.TaskDetails, includeDefinition bool) TaskResponse {
	resp := taskToResponse(details.Task)
	if u := details.User; u != nil {
		resp.User = &TaskUserResponse{
			ID:        u.ID,
			Email:     u.Email,
			Firstname: u.Firstname,
			Lastname:  u.Lastname,
			Fullname:  u.FullName(),
		}
	}
	if includeDefinition {
		resp.Definition = &TaskDefinitionResponse{
			ElementID:   details.Task.ElementID,
			ElementType: details.Task.ElementType,
			ElementName: details.Task.ElementName,
		}
	}
	return resp
}

func taskPageToResponse(page *service.TaskPage) TaskListResponse {
	data := make([]TaskResponse, 0, len(page.Tasks))
	for _, t := range page.Tasks {
		data = append(data, taskToResponse(t))
	}
	return TaskListResponse{
		Data: data,
		Meta: TaskListMeta{
			Total:       page.Total,
			Count:       len(data),
			PerPage:     page.PerPage,
			CurrentPage: page.Page,
			TotalPages:  page.TotalPages(),
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
