package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/bpm-api/internal/config"
	"github.com/phrazzld/bpm-api/internal/platform/postgres"
)

// handleMigrations runs a goose command against the configured database
// instead of starting the server.
func handleMigrations(ctx context.Context, cfg *config.Config, logger *slog.Logger, command string, args ...string) error {
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database connection", "error", err)
		}
	}()

	logger.Info("Executing migrations", "command", command)
	if err := postgres.Migrate(ctx, db, command, logger, args...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
