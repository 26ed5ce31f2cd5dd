package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/platform/logger"
	"github.com/phrazzld/bpm-api/internal/redact"
	"github.com/phrazzld/bpm-api/internal/store"
)

// taskOrderExpressions maps the sortable column names of a task listing to SQL.
var taskOrderExpressions = map[string]string{
	"id":                    "t.id",
	"due_at":                "t.due_at",
	"completed_at":          "t.completed_at",
	"created_at":            "t.created_at",
	"updated_at":            "t.updated_at",
	"process_request_id":    "t.process_request_id",
	"element_name":          "t.element_name",
	"status":                "t.status",
	"process_requests.id":   "pr.id",
	"process_requests.name": "pr.name",
}

const taskColumns = `
	t.id, t.process_request_id, t.user_id, t.element_id, t.element_type, t.element_name,
	t.status, t.data, t.completed_at, t.due_at, t.initiated_at, t.riskchanges_at,
	t.created_at, t.updated_at`

// PostgresTaskStore implements the store.TaskStore interface over the
// process_request_tokens table.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*PostgresTaskStore)(nil)

// Create implements store.TaskStore.Create.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if !domain.IsValidTaskStatus(task.Status) {
		return domain.NewValidationError("status", "is not supported", domain.ErrInvalidTaskStatus)
	}
	stampTimes(&task.CreatedAt, &task.UpdatedAt)

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO process_request_tokens (process_request_id, user_id, element_id, element_type,
			element_name, status, data, completed_at, due_at, initiated_at, riskchanges_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`,
		task.ProcessRequestID,
		nullUUID(task.UserID),
		task.ElementID,
		task.ElementType,
		task.ElementName,
		task.Status,
		jsonOr(task.Data, "{}"),
		nullTime(task.CompletedAt),
		nullTime(task.DueAt),
		nullTime(task.InitiatedAt),
		nullTime(task.RiskchangesAt),
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create task", redact.Attr(err))
		return MapError(err, store.ErrTaskNotFound)
	}
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM process_request_tokens t WHERE t.id = $1`, id)
	task, err := scanTask(row)
	if err != nil {
		mapped := MapError(err, store.ErrTaskNotFound)
		if mapped == err {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to get task",
				redact.Attr(err), slog.Int64("task_id", id))
		}
		return nil, mapped
	}
	return task, nil
}

// List implements store.TaskStore.List.
//
// Ascending orders put NULLs first and descending orders put them last.
// The task id is appended as the final tiebreaker so pages are stable.
func (s *PostgresTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	limit, offset, err := filter.Window()
	if err != nil {
		return nil, 0, err
	}

	var where []string
	var args []any
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		where = append(where, fmt.Sprintf("t.user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("t.status = $%d", len(args)))
	}

	from := ` FROM process_request_tokens t JOIN process_requests pr ON pr.id = t.process_request_id`
	if len(where) > 0 {
		from += ` WHERE ` + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		log.Error("failed to count tasks", redact.Attr(err))
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	orderBy, err := taskOrderClause(filter.Order)
	if err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := `SELECT ` + taskColumns + from + orderBy +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks", redact.Attr(err))
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", redact.Attr(err))
		}
	}()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating task rows: %w", err)
	}

	log.Debug("listed tasks", slog.Int("count", len(tasks)), slog.Int("total", total))
	return tasks, total, nil
}

func taskOrderClause(order []store.TaskOrder) (string, error) {
	parts := make([]string, 0, len(order)+1)
	for _, o := range order {
		expr, ok := taskOrderExpressions[o.Column]
		if !ok {
			return "", fmt.Errorf("%w: cannot order tasks by %q", store.ErrInvalidEntity, o.Column)
		}
		if o.Desc {
			parts = append(parts, expr+" DESC NULLS LAST")
		} else {
			parts = append(parts, expr+" ASC NULLS FIRST")
		}
	}
	parts = append(parts, "t.id ASC")
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// UpdateStatus implements store.TaskStore.UpdateStatus.
func (s *PostgresTaskStore) UpdateStatus(ctx context.Context, task *domain.Task) error {
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE process_request_tokens
		SET status = $1, completed_at = $2, data = $3, updated_at = $4
		WHERE id = $5
	`,
		task.Status,
		nullTime(task.CompletedAt),
		jsonOr(task.Data, "{}"),
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update task status",
			redact.Attr(err), slog.Int64("task_id", task.ID))
		return MapError(err, store.ErrTaskNotFound)
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// WithTx implements store.TaskStore.WithTx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var userID uuid.NullUUID
	var data []byte
	var completedAt, dueAt, initiatedAt, riskchangesAt sql.NullTime
	err := row.Scan(
		&task.ID,
		&task.ProcessRequestID,
		&userID,
		&task.ElementID,
		&task.ElementType,
		&task.ElementName,
		&task.Status,
		&data,
		&completedAt,
		&dueAt,
		&initiatedAt,
		&riskchangesAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		id := userID.UUID
		task.UserID = &id
	}
	task.Data = json.RawMessage(data)
	task.CompletedAt = timePtr(completedAt)
	task.DueAt = timePtr(dueAt)
	task.InitiatedAt = timePtr(initiatedAt)
	task.RiskchangesAt = timePtr(riskchangesAt)
	return &task, nil
}

// PostgresProcessRequestStore implements store.ProcessRequestStore.
type PostgresProcessRequestStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProcessRequestStore creates a new PostgresProcessRequestStore.
func NewPostgresProcessRequestStore(db store.DBTX, logger *slog.Logger) *PostgresProcessRequestStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProcessRequestStore{
		db:     db,
		logger: logger.With(slog.String("component", "process_request_store")),
	}
}

var _ store.ProcessRequestStore = (*PostgresProcessRequestStore)(nil)

// Create implements store.ProcessRequestStore.Create.
func (s *PostgresProcessRequestStore) Create(ctx context.Context, request *domain.ProcessRequest) error {
	stampTimes(&request.CreatedAt, &request.UpdatedAt)
	if request.Status == "" {
		request.Status = string(domain.TaskStatusActive)
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO process_requests (name, status, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, request.Name, request.Status, jsonOr(request.Data, "{}"), request.CreatedAt, request.UpdatedAt,
	).Scan(&request.ID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create process request", redact.Attr(err))
		return MapError(err, store.ErrProcessRequestNotFound)
	}
	return nil
}

// GetByID implements store.ProcessRequestStore.GetByID.
func (s *PostgresProcessRequestStore) GetByID(ctx context.Context, id int64) (*domain.ProcessRequest, error) {
	var request domain.ProcessRequest
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, data, created_at, updated_at
		FROM process_requests
		WHERE id = $1
	`, id).Scan(&request.ID, &request.Name, &request.Status, &data, &request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		return nil, MapError(err, store.ErrProcessRequestNotFound)
	}
	request.Data = json.RawMessage(data)
	return &request, nil
}

// UpdateData implements store.ProcessRequestStore.UpdateData.
func (s *PostgresProcessRequestStore) UpdateData(ctx context.Context, id int64, data json.RawMessage) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE process_requests SET data = $1, updated_at = $2 WHERE id = $3
	`, jsonOr(data, "{}"), time.Now().UTC(), id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update process request data",
			redact.Attr(err), slog.Int64("process_request_id", id))
		return MapError(err, store.ErrProcessRequestNotFound)
	}
	return CheckRowsAffected(result, store.ErrProcessRequestNotFound)
}

// WithTx implements store.ProcessRequestStore.WithTx.
func (s *PostgresProcessRequestStore) WithTx(tx *sql.Tx) store.ProcessRequestStore {
	return &PostgresProcessRequestStore{db: tx, logger: s.logger}
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
