package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/platform/logger"
	"github.com/phrazzld/bpm-api/internal/redact"
	"github.com/phrazzld/bpm-api/internal/store"
)

// PostgresScreenStore implements the store.ScreenStore interface.
//
// Category membership lives in screen_category_links with an explicit
// position so that CategoryIDs keeps its order. Create and Update write
// the screen row and its links with separate statements; run them through
// a Repository transaction when atomicity matters.
type PostgresScreenStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresScreenStore creates a new PostgreSQL implementation of the ScreenStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresScreenStore(db store.DBTX, logger *slog.Logger) *PostgresScreenStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresScreenStore{
		db:     db,
		logger: logger.With(slog.String("component", "screen_store")),
	}
}

var _ store.ScreenStore = (*PostgresScreenStore)(nil)

// Create implements store.ScreenStore.Create.
func (s *PostgresScreenStore) Create(ctx context.Context, screen *domain.Screen) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := screen.Validate(); err != nil {
		log.Warn("screen validation failed during create",
			redact.Attr(err),
			slog.String("screen_uuid", screen.UUID.String()))
		return err
	}
	stampTimes(&screen.CreatedAt, &screen.UpdatedAt)

	query := `
		INSERT INTO screens (uuid, title, description, type, config, computed, watchers,
		                     custom_css, translations, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		screen.UUID,
		screen.Title,
		screen.Description,
		screen.Type,
		jsonOr(screen.Config, "[]"),
		jsonOr(screen.Computed, "[]"),
		jsonOr(screen.Watchers, "[]"),
		screen.CustomCSS,
		jsonOr(screen.Translations, "{}"),
		screen.CreatedAt,
		screen.UpdatedAt,
	).Scan(&screen.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: screen %s", store.ErrUUIDExists, screen.UUID)
		}
		log.Error("failed to create screen", redact.Attr(err),
			slog.String("screen_uuid", screen.UUID.String()))
		return MapError(err, store.ErrScreenNotFound)
	}

	if err := s.writeCategoryLinks(ctx, screen); err != nil {
		return err
	}

	log.Debug("screen created",
		slog.Int64("screen_id", screen.ID),
		slog.String("screen_uuid", screen.UUID.String()),
		slog.Int("categories", len(screen.CategoryIDs)))
	return nil
}

// GetByID implements store.ScreenStore.GetByID.
func (s *PostgresScreenStore) GetByID(ctx context.Context, id int64) (*domain.Screen, error) {
	return s.getBy(ctx, "id", id)
}

// GetByUUID implements store.ScreenStore.GetByUUID.
func (s *PostgresScreenStore) GetByUUID(ctx context.Context, id uuid.UUID) (*domain.Screen, error) {
	return s.getBy(ctx, "uuid", id)
}

func (s *PostgresScreenStore) getBy(ctx context.Context, column string, arg any) (*domain.Screen, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := fmt.Sprintf(`
		SELECT id, uuid, title, description, type, config, computed, watchers,
		       custom_css, translations, created_at, updated_at
		FROM screens
		WHERE %s = $1
	`, column)

	var screen domain.Screen
	var config, computed, watchers, translations []byte
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&screen.ID,
		&screen.UUID,
		&screen.Title,
		&screen.Description,
		&screen.Type,
		&config,
		&computed,
		&watchers,
		&screen.CustomCSS,
		&translations,
		&screen.CreatedAt,
		&screen.UpdatedAt,
	)
	if err != nil {
		mapped := MapError(err, store.ErrScreenNotFound)
		if mapped == err {
			log.Error("failed to get screen", redact.Attr(err), slog.String("by", column))
		}
		return nil, mapped
	}
	screen.Config = json.RawMessage(config)
	screen.Computed = json.RawMessage(computed)
	screen.Watchers = json.RawMessage(watchers)
	screen.Translations = json.RawMessage(translations)

	ids, err := s.categoryLinks(ctx, screen.ID)
	if err != nil {
		log.Error("failed to load screen categories", redact.Attr(err), slog.Int64("screen_id", screen.ID))
		return nil, err
	}
	screen.CategoryIDs = ids

	return &screen, nil
}

func (s *PostgresScreenStore) categoryLinks(ctx context.Context, screenID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT screen_category_id
		FROM screen_category_links
		WHERE screen_id = $1
		ORDER BY position ASC
	`, screenID)
	if err != nil {
		return nil, fmt.Errorf("failed to query screen categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan screen category: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// writeCategoryLinks replaces the category links of screen with CategoryIDs in order.
func (s *PostgresScreenStore) writeCategoryLinks(ctx context.Context, screen *domain.Screen) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM screen_category_links WHERE screen_id = $1`, screen.ID); err != nil {
		return fmt.Errorf("failed to clear screen categories: %w", err)
	}

	seen := make(map[int64]bool, len(screen.CategoryIDs))
	position := 0
	for _, categoryID := range screen.CategoryIDs {
		if seen[categoryID] {
			continue
		}
		seen[categoryID] = true

		_, err := s.db.ExecContext(ctx, `
			INSERT INTO screen_category_links (screen_id, screen_category_id, position)
			VALUES ($1, $2, $3)
		`, screen.ID, categoryID, position)
		if err != nil {
			if IsForeignKeyViolation(err) {
				return fmt.Errorf("%w: screen category %d not found", store.ErrInvalidEntity, categoryID)
			}
			return fmt.Errorf("failed to link screen category: %w", err)
		}
		position++
	}
	return nil
}

// Update implements store.ScreenStore.Update.
func (s *PostgresScreenStore) Update(ctx context.Context, screen *domain.Screen) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := screen.Validate(); err != nil {
		return err
	}
	screen.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE screens
		SET title = $1, description = $2, type = $3, config = $4, computed = $5,
		    watchers = $6, custom_css = $7, translations = $8, updated_at = $9
		WHERE id = $10
	`
	result, err := s.db.ExecContext(ctx, query,
		screen.Title,
		screen.Description,
		screen.Type,
		jsonOr(screen.Config, "[]"),
		jsonOr(screen.Computed, "[]"),
		jsonOr(screen.Watchers, "[]"),
		screen.CustomCSS,
		jsonOr(screen.Translations, "{}"),
		screen.UpdatedAt,
		screen.ID,
	)
	if err != nil {
		log.Error("failed to update screen", redact.Attr(err), slog.Int64("screen_id", screen.ID))
		return MapError(err, store.ErrScreenNotFound)
	}
	if err := CheckRowsAffected(result, store.ErrScreenNotFound); err != nil {
		return err
	}
	return s.writeCategoryLinks(ctx, screen)
}

// Delete implements store.ScreenStore.Delete.
func (s *PostgresScreenStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM screens WHERE id = $1`, id)
	if err != nil {
		return MapError(err, store.ErrScreenNotFound)
	}
	return CheckRowsAffected(result, store.ErrScreenNotFound)
}

// Count implements store.ScreenStore.Count.
func (s *PostgresScreenStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM screens`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count screens: %w", err)
	}
	return n, nil
}

// WithTx implements store.ScreenStore.WithTx.
func (s *PostgresScreenStore) WithTx(tx *sql.Tx) store.ScreenStore {
	return &PostgresScreenStore{db: tx, logger: s.logger}
}

// jsonOr returns raw as a string, or fallback when raw is empty or null.
func jsonOr(raw json.RawMessage, fallback string) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fallback
	}
	return string(trimmed)
}
