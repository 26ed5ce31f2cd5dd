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

// categoryRow is the shared column set of screen_categories and script_categories.
type categoryRow struct {
	ID        int64
	UUID      uuid.UUID
	Name      string
	Status    domain.CategoryStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// categoryTable runs the statements common to both category tables.
// table is always one of the package constants, never user input.
type categoryTable struct {
	db       store.DBTX
	table    string
	notFound error
	logger   *slog.Logger
}

const (
	screenCategoriesTable = "screen_categories"
	scriptCategoriesTable = "script_categories"
)

func (t categoryTable) insert(ctx context.Context, row *categoryRow) error {
	log := logger.FromContextOrDefault(ctx, t.logger)

	query := fmt.Sprintf(`
		INSERT INTO %s (uuid, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, t.table)

	err := t.db.QueryRowContext(ctx, query,
		row.UUID, row.Name, row.Status, row.CreatedAt, row.UpdatedAt,
	).Scan(&row.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("category uuid already exists", slog.String("uuid", row.UUID.String()))
			return fmt.Errorf("%w: %s %s", store.ErrUUIDExists, t.table, row.UUID)
		}
		log.Error("failed to create category", redact.Attr(err), slog.String("uuid", row.UUID.String()))
		return MapError(err, t.notFound)
	}

	log.Debug("category created", slog.Int64("id", row.ID), slog.String("uuid", row.UUID.String()))
	return nil
}

func (t categoryTable) get(ctx context.Context, column string, arg any) (*categoryRow, error) {
	log := logger.FromContextOrDefault(ctx, t.logger)

	query := fmt.Sprintf(`
		SELECT id, uuid, name, status, created_at, updated_at
		FROM %s
		WHERE %s = $1
	`, t.table, column)

	var row categoryRow
	err := t.db.QueryRowContext(ctx, query, arg).Scan(
		&row.ID, &row.UUID, &row.Name, &row.Status, &row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		mapped := MapError(err, t.notFound)
		if mapped != err {
			return nil, mapped
		}
		log.Error("failed to get category", redact.Attr(err), slog.String("table", t.table))
		return nil, err
	}
	return &row, nil
}

func (t categoryTable) update(ctx context.Context, row *categoryRow) error {
	log := logger.FromContextOrDefault(ctx, t.logger)

	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, status = $2, updated_at = $3
		WHERE id = $4
	`, t.table)

	result, err := t.db.ExecContext(ctx, query, row.Name, row.Status, row.UpdatedAt, row.ID)
	if err != nil {
		log.Error("failed to update category", redact.Attr(err), slog.Int64("id", row.ID))
		return MapError(err, t.notFound)
	}
	return CheckRowsAffected(result, t.notFound)
}

func (t categoryTable) delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, t.table)
	result, err := t.db.ExecContext(ctx, query, id)
	if err != nil {
		logger.FromContextOrDefault(ctx, t.logger).Error("failed to delete category",
			redact.Attr(err), slog.Int64("id", id))
		return MapError(err, t.notFound)
	}
	return CheckRowsAffected(result, t.notFound)
}

func (t categoryTable) count(ctx context.Context) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, t.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.table, err)
	}
	return n, nil
}

func toCategoryRow(id int64, stableID uuid.UUID, name string, status domain.CategoryStatus, created, updated time.Time) *categoryRow {
	now := time.Now().UTC()
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = now
	}
	return &categoryRow{ID: id, UUID: stableID, Name: name, Status: status, CreatedAt: created, UpdatedAt: updated}
}

// PostgresScreenCategoryStore implements store.ScreenCategoryStore.
type PostgresScreenCategoryStore struct {
	t categoryTable
}

// NewPostgresScreenCategoryStore creates a screen category store on db.
// If logger is nil, a default logger will be used.
func NewPostgresScreenCategoryStore(db store.DBTX, logger *slog.Logger) *PostgresScreenCategoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresScreenCategoryStore{t: categoryTable{
		db:       db,
		table:    screenCategoriesTable,
		notFound: store.ErrScreenCategoryNotFound,
		logger:   logger.With(slog.String("component", "screen_category_store")),
	}}
}

var _ store.ScreenCategoryStore = (*PostgresScreenCategoryStore)(nil)

// Create implements store.ScreenCategoryStore.Create.
func (s *PostgresScreenCategoryStore) Create(ctx context.Context, c *domain.ScreenCategory) error {
	if err := c.Validate(); err != nil {
		return err
	}
	row := toCategoryRow(c.ID, c.UUID, c.Name, c.Status, c.CreatedAt, c.UpdatedAt)
	if err := s.t.insert(ctx, row); err != nil {
		return err
	}
	c.ID = row.ID
	return nil
}

// GetByID implements store.ScreenCategoryStore.GetByID.
func (s *PostgresScreenCategoryStore) GetByID(ctx context.Context, id int64) (*domain.ScreenCategory, error) {
	row, err := s.t.get(ctx, "id", id)
	if err != nil {
		return nil, err
	}
	return screenCategoryFromRow(row), nil
}

// GetByUUID implements store.ScreenCategoryStore.GetByUUID.
func (s *PostgresScreenCategoryStore) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.ScreenCategory, error) {
	row, err := s.t.get(ctx, "uuid", id)
	if err != nil {
		return nil, err
	}
	return screenCategoryFromRow(row), nil
}

// Update implements store.ScreenCategoryStore.Update.
func (s *PostgresScreenCategoryStore) Update(ctx context.Context, c *domain.ScreenCategory) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.t.update(ctx, toCategoryRow(c.ID, c.UUID, c.Name, c.Status, c.CreatedAt, c.UpdatedAt))
}

// Delete implements store.ScreenCategoryStore.Delete.
func (s *PostgresScreenCategoryStore) Delete(ctx context.Context, id int64) error {
	return s.t.delete(ctx, id)
}

// Count implements store.ScreenCategoryStore.Count.
func (s *PostgresScreenCategoryStore) Count(ctx context.Context) (int, error) {
	return s.t.count(ctx)
}

// WithTx implements store.ScreenCategoryStore.WithTx.
func (s *PostgresScreenCategoryStore) WithTx(tx *sql.Tx) store.ScreenCategoryStore {
	t := s.t
	t.db = tx
	return &PostgresScreenCategoryStore{t: t}
}

func screenCategoryFromRow(r *categoryRow) *domain.ScreenCategory {
	return &domain.ScreenCategory{
		ID: r.ID, UUID: r.UUID, Name: r.Name, Status: r.Status,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

// PostgresScriptCategoryStore implements store.ScriptCategoryStore.
type PostgresScriptCategoryStore struct {
	t categoryTable
}

// NewPostgresScriptCategoryStore creates a script category store on db.
func NewPostgresScriptCategoryStore(db store.DBTX, logger *slog.Logger) *PostgresScriptCategoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresScriptCategoryStore{t: categoryTable{
		db:       db,
		table:    scriptCategoriesTable,
		notFound: store.ErrScriptCategoryNotFound,
		logger:   logger.With(slog.String("component", "script_category_store")),
	}}
}

var _ store.ScriptCategoryStore = (*PostgresScriptCategoryStore)(nil)

// Create implements store.ScriptCategoryStore.Create.
func (s *PostgresScriptCategoryStore) Create(ctx context.Context, c *domain.ScriptCategory) error {
	if err := c.Validate(); err != nil {
		return err
	}
	row := toCategoryRow(c.ID, c.UUID, c.Name, c.Status, c.CreatedAt, c.UpdatedAt)
	if err := s.t.insert(ctx, row); err != nil {
		return err
	}
	c.ID = row.ID
	return nil
}

// GetByID implements store.ScriptCategoryStore.GetByID.
func (s *PostgresScriptCategoryStore) GetByID(ctx context.Context, id int64) (*domain.ScriptCategory, error) {
	row, err := s.t.get(ctx, "id", id)
	if err != nil {
		return nil, err
	}
	return scriptCategoryFromRow(row), nil
}

// GetByUUID implements store.ScriptCategoryStore.GetByUUID.
func (s *PostgresScriptCategoryStore) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.ScriptCategory, error) {
	row, err := s.t.get(ctx, "uuid", id)
	if err != nil {
		return nil, err
	}
	return scriptCategoryFromRow(row), nil
}

// Update implements store.ScriptCategoryStore.Update.
func (s *PostgresScriptCategoryStore) Update(ctx context.Context, c *domain.ScriptCategory) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.t.update(ctx, toCategoryRow(c.ID, c.UUID, c.Name, c.Status, c.CreatedAt, c.UpdatedAt))
}

// Delete implements store.ScriptCategoryStore.Delete.
func (s *PostgresScriptCategoryStore) Delete(ctx context.Context, id int64) error {
	return s.t.delete(ctx, id)
}

// Count implements store.ScriptCategoryStore.Count.
func (s *PostgresScriptCategoryStore) Count(ctx context.Context) (int, error) {
	return s.t.count(ctx)
}

// WithTx implements store.ScriptCategoryStore.WithTx.
func (s *PostgresScriptCategoryStore) WithTx(tx *sql.Tx) store.ScriptCategoryStore {
	t := s.t
	t.db = tx
	return &PostgresScriptCategoryStore{t: t}
}

func scriptCategoryFromRow(r *categoryRow) *domain.ScriptCategory {
	return &domain.ScriptCategory{
		ID: r.ID, UUID: r.UUID, Name: r.Name, Status: r.Status,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}
