package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/platform/logger"
	"github.com/phrazzld/bpm-api/internal/redact"
	"github.com/phrazzld/bpm-api/internal/store"
)

// PostgresScriptStore implements the store.ScriptStore interface
// using a PostgreSQL database as the storage backend.
type PostgresScriptStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresScriptStore creates a new PostgreSQL implementation of the ScriptStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresScriptStore(db store.DBTX, logger *slog.Logger) *PostgresScriptStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresScriptStore{
		db:     db,
		logger: logger.With(slog.String("component", "script_store")),
	}
}

var _ store.ScriptStore = (*PostgresScriptStore)(nil)

const scriptColumns = `id, uuid, title, description, language, code, timeout, script_category_id, created_at, updated_at`

// Create implements store.ScriptStore.Create.
func (s *PostgresScriptStore) Create(ctx context.Context, script *domain.Script) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := script.Validate(); err != nil {
		log.Warn("script validation failed during create",
			redact.Attr(err),
			slog.String("script_uuid", script.UUID.String()))
		return err
	}
	stampTimes(&script.CreatedAt, &script.UpdatedAt)

	query := `
		INSERT INTO scripts (uuid, title, description, language, code, timeout, script_category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		script.UUID,
		script.Title,
		script.Description,
		script.Language,
		script.Code,
		script.Timeout,
		nullInt64(script.CategoryID),
		script.CreatedAt,
		script.UpdatedAt,
	).Scan(&script.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: script %s", store.ErrUUIDExists, script.UUID)
		}
		if IsForeignKeyViolation(err) {
			log.Warn("script references a missing category",
				slog.String("script_uuid", script.UUID.String()))
			return fmt.Errorf("%w: script category %d not found", store.ErrInvalidEntity, *script.CategoryID)
		}
		log.Error("failed to create script", redact.Attr(err),
			slog.String("script_uuid", script.UUID.String()))
		return MapError(err, store.ErrScriptNotFound)
	}

	log.Debug("script created",
		slog.Int64("script_id", script.ID),
		slog.String("script_uuid", script.UUID.String()))
	return nil
}

// GetByID implements store.ScriptStore.GetByID.
func (s *PostgresScriptStore) GetByID(ctx context.Context, id int64) (*domain.Script, error) {
	return s.getBy(ctx, "id", id)
}

// GetByUUID implements store.ScriptStore.GetByUUID.
func (s *PostgresScriptStore) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.Script, error) {
	return s.getBy(ctx, "uuid", id)
}

func (s *PostgresScriptStore) getBy(ctx context.Context, column string, arg any) (*domain.Script, error) {
	query := fmt.Sprintf(`SELECT %s FROM scripts WHERE %s = $1`, scriptColumns, column)

	var script domain.Script
	var categoryID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&script.ID,
		&script.UUID,
		&script.Title,
		&script.Description,
		&script.Language,
		&script.Code,
		&script.Timeout,
		&categoryID,
		&script.CreatedAt,
		&script.UpdatedAt,
	)
	if err != nil {
		mapped := MapError(err, store.ErrScriptNotFound)
		if mapped == err {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to get script",
				redact.Attr(err), slog.String("by", column))
		}
		return nil, mapped
	}
	if categoryID.Valid {
		script.CategoryID = &categoryID.Int64
	}
	return &script, nil
}

// Update implements store.ScriptStore.Update.
func (s *PostgresScriptStore) Update(ctx context.Context, script *domain.Script) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := script.Validate(); err != nil {
		return err
	}
	script.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE scripts
		SET title = $1, description = $2, language = $3, code = $4, timeout = $5,
		    script_category_id = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := s.db.ExecContext(ctx, query,
		script.Title,
		script.Description,
		script.Language,
		script.Code,
		script.Timeout,
		nullInt64(script.CategoryID),
		script.UpdatedAt,
		script.ID,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: script category %d not found", store.ErrInvalidEntity, *script.CategoryID)
		}
		log.Error("failed to update script", redact.Attr(err), slog.Int64("script_id", script.ID))
		return MapError(err, store.ErrScriptNotFound)
	}
	return CheckRowsAffected(result, store.ErrScriptNotFound)
}

// Delete implements store.ScriptStore.Delete.
func (s *PostgresScriptStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM scripts WHERE id = $1`, id)
	if err != nil {
		return MapError(err, store.ErrScriptNotFound)
	}
	return CheckRowsAffected(result, store.ErrScriptNotFound)
}

// Count implements store.ScriptStore.Count.
func (s *PostgresScriptStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scripts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count scripts: %w", err)
	}
	return n, nil
}

// WithTx implements store.ScriptStore.WithTx.
func (s *PostgresScriptStore) WithTx(tx *sql.Tx) store.ScriptStore {
	return &PostgresScriptStore{db: tx, logger: s.logger}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// stampTimes fills zero creation and update times with the current time.
func stampTimes(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}
