package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/jobs"
	"github.com/phrazzld/bpm-api/internal/platform/logger"
	"github.com/phrazzld/bpm-api/internal/redact"
	"github.com/phrazzld/bpm-api/internal/store"
)

// PostgresJobStore implements the jobs.Store interface using PostgreSQL.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

var _ jobs.Store = (*PostgresJobStore)(nil)

// SaveJob persists a job to the database in pending state.
func (s *PostgresJobStore) SaveJob(ctx context.Context, job jobs.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	payload := job.Payload()
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, job.ID(), job.Type(), string(payload), jobs.StatusPending, now, now)
	if err != nil {
		log.Error("failed to save job",
			slog.String("job_id", job.ID().String()),
			slog.String("job_type", job.Type()),
			redact.Attr(err))
		return fmt.Errorf("failed to save job to database: %w", MapError(err, jobs.ErrJobNotFound))
	}
	return nil
}

// UpdateJobStatus updates the status of a job in the database.
func (s *PostgresJobStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status jobs.Status, errorMsg string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`, status, redact.String(errorMsg), time.Now().UTC(), id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update job status",
			slog.String("job_id", id.String()),
			slog.String("status", string(status)),
			redact.Attr(err))
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return CheckRowsAffected(result, jobs.ErrJobNotFound)
}

// GetJob returns a single job record.
func (s *PostgresJobStore) GetJob(ctx context.Context, id uuid.UUID) (*jobs.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, payload, status, error_message, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`, id)
	rec, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jobs.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return rec, nil
}

// GetPendingJobs retrieves all jobs with "pending" status.
func (s *PostgresJobStore) GetPendingJobs(ctx context.Context) ([]jobs.Record, error) {
	return s.getJobsByStatus(ctx, jobs.StatusPending, 0)
}

// GetProcessingJobs retrieves jobs with "processing" status.
func (s *PostgresJobStore) GetProcessingJobs(ctx context.Context, olderThan time.Duration) ([]jobs.Record, error) {
	return s.getJobsByStatus(ctx, jobs.StatusProcessing, olderThan)
}

func (s *PostgresJobStore) getJobsByStatus(ctx context.Context, status jobs.Status, olderThan time.Duration) ([]jobs.Record, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, type, payload, status, error_message, created_at, updated_at
		FROM jobs
		WHERE status = $1
		ORDER BY created_at ASC
	`
	args := []any{status}
	if olderThan > 0 {
		query = `
			SELECT id, type, payload, status, error_message, created_at, updated_at
			FROM jobs
			WHERE status = $1 AND updated_at < $2
			ORDER BY created_at ASC
		`
		args = append(args, time.Now().UTC().Add(-olderThan))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query jobs by status", slog.String("status", string(status)), redact.Attr(err))
		return nil, fmt.Errorf("failed to query jobs by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []jobs.Record
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return out, nil
}

// WithTx returns a job store bound to tx.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) *PostgresJobStore {
	return &PostgresJobStore{db: tx, logger: s.logger}
}

func scanJob(row rowScanner) (*jobs.Record, error) {
	var rec jobs.Record
	var payload []byte
	if err := row.Scan(&rec.ID, &rec.Type, &payload, &rec.Status, &rec.ErrorMessage,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Payload = payload
	return &rec, nil
}
