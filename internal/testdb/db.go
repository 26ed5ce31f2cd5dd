// Package testdb provides helpers for tests that run against a real
// PostgreSQL database. Tests using it belong behind the integration build tag:
//
//	BPM_TEST_DATABASE_URL=postgres://... go test -tags=integration ./...
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/phrazzld/bpm-api/internal/config"
	"github.com/phrazzld/bpm-api/internal/platform/postgres"
	"github.com/stretchr/testify/require"
)

// Timeout bounds each database operation performed by the helpers.
const Timeout = 10 * time.Second

// tables lists every application table in delete order.
var tables = []string{
	"jobs",
	"process_request_tokens",
	"process_requests",
	"screen_category_links",
	"screens",
	"scripts",
	"script_categories",
	"screen_categories",
	"users",
}

// DatabaseURL returns the database tests should use, or "" when none is configured.
// BPM_TEST_DATABASE_URL takes precedence over DATABASE_URL.
func DatabaseURL() string {
	if url := os.Getenv("BPM_TEST_DATABASE_URL"); url != "" {
		return url
	}
	return os.Getenv("DATABASE_URL")
}

// Open connects to the test database, applies all migrations and empties
// every table. The test is skipped when no database is configured.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	url := DatabaseURL()
	if url == "" {
		t.Skip("BPM_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	db, err := postgres.Open(ctx, config.DatabaseConfig{URL: url, MaxOpenConns: 5, MaxIdleConns: 5})
	require.NoError(t, err, "failed to connect to test database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, postgres.Migrate(ctx, db, "up", Logger()), "failed to apply migrations")
	Reset(t, db)
	return db
}

// Reset deletes all rows from every application table.
func Reset(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	for _, table := range tables {
		_, err := db.ExecContext(ctx, "DELETE FROM "+table)
		require.NoError(t, err, "failed to clear %s", table)
	}
}

// WithTx runs fn inside a transaction that is always rolled back.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err, "failed to begin transaction")
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Errorf("failed to roll back transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// Logger returns a logger that discards everything below error level.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
