package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the state of a process request token.
type TaskStatus string

// Possible task status values
const (
	TaskStatusActive    TaskStatus = "ACTIVE"
	TaskStatusClosed    TaskStatus = "CLOSED"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailing   TaskStatus = "FAILING"
)

// Common task errors
var (
	ErrInvalidTaskStatus    = errors.New("invalid task status")
	ErrTaskAlreadyCompleted = errors.New("task is already completed")
	ErrTaskNotActive        = errors.New("task is not active")
)

// ProcessRequest is a running instance of a process definition.
type ProcessRequest struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Task is a token of a process request waiting on a BPMN element,
// typically a human task assigned to a user.
type Task struct {
	ID               int64           `json:"id"`
	ProcessRequestID int64           `json:"process_request_id"`
	UserID           *uuid.UUID      `json:"user_id"`
	ElementID        string          `json:"element_id"`
	ElementType      string          `json:"element_type"`
	ElementName      string          `json:"element_name"`
	Status           TaskStatus      `json:"status"`
	Data             json.RawMessage `json:"data,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at"`
	DueAt            *time.Time      `json:"due_at"`
	InitiatedAt      *time.Time      `json:"initiated_at"`
	RiskchangesAt    *time.Time      `json:"riskchanges_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsAssignedTo reports whether the task belongs to userID.
func (t *Task) IsAssignedTo(userID uuid.UUID) bool {
	return t.UserID != nil && *t.UserID == userID
}

// Complete marks an active task as completed at now.
func (t *Task) Complete(now time.Time) error {
	switch t.Status {
	case TaskStatusCompleted:
		return ErrTaskAlreadyCompleted
	case TaskStatusActive:
	default:
		return ErrTaskNotActive
	}
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// IsValidTaskStatus reports whether s is a known task status.
func IsValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusActive, TaskStatusClosed, TaskStatusCompleted, TaskStatusFailing:
		return true
	default:
		return false
	}
}
