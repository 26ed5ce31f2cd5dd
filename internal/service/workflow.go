package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/store"
)

// WorkflowManager advances process requests when their tasks complete.
type WorkflowManager struct {
	now    func() time.Time
	logger *slog.Logger
}

// NewWorkflowManager creates a WorkflowManager.
func NewWorkflowManager(logger *slog.Logger) *WorkflowManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowManager{
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With("component", "workflow_manager"),
	}
}

// CompleteTask merges data into the data of the task's process request,
// stores data on the task and marks it completed. repo should be bound to
// a transaction so the request and the task change together.
func (m *WorkflowManager) CompleteTask(
	ctx context.Context,
	repo store.Repository,
	task *domain.Task,
	data map[string]any,
) error {
	request, err := repo.ProcessRequests().GetByID(ctx, task.ProcessRequestID)
	if err != nil {
		return fmt.Errorf("failed to load process request %d: %w", task.ProcessRequestID, err)
	}

	merged, err := decodeData(request.Data)
	if err != nil {
		return fmt.Errorf("process request %d has invalid data: %w", request.ID, err)
	}
	for k, v := range data {
		merged[k] = v
	}
	requestData, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to encode process request data: %w", err)
	}

	taskData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode task data: %w", err)
	}
	if data == nil {
		taskData = []byte("{}")
	}

	if err := task.Complete(m.now()); err != nil {
		return err
	}
	task.Data = taskData

	if err := repo.ProcessRequests().UpdateData(ctx, request.ID, requestData); err != nil {
		return fmt.Errorf("failed to update process request %d: %w", request.ID, err)
	}
	if err := repo.Tasks().UpdateStatus(ctx, task); err != nil {
		return fmt.Errorf("failed to update task %d: %w", task.ID, err)
	}

	m.logger.InfoContext(ctx, "task completed",
		slog.Int64("task_id", task.ID),
		slog.Int64("process_request_id", request.ID),
		slog.Int("merged_keys", len(data)))
	return nil
}

func decodeData(raw json.RawMessage) (map[string]any, error) {
	out := make(map[string]any)
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = make(map[string]any)
	}
	return out, nil
}
