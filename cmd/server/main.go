// Package main implements the entry point for the BPM API server, which
// serves task completion, screen export/import and screen translation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/phrazzld/bpm-api/internal/config"
	"github.com/phrazzld/bpm-api/internal/platform/logger"
	"github.com/phrazzld/bpm-api/internal/platform/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./config.yaml if present)")
	migrate := flag.String("migrate", "", "run a migration command (up, down, status, version, reset, redo) and exit")
	migrateOnStart := flag.Bool("migrate-on-start", false, "apply pending migrations before serving")
	flag.Parse()

	if err := run(context.Background(), *configPath, *migrate, *migrateOnStart); err != nil {
		log.Fatalf("bpm-api: %v", err)
	}
}

func run(ctx context.Context, configPath, migrate string, migrateOnStart bool) error {
	cfg, l, err := initializeApp(configPath)
	if err != nil {
		return err
	}

	if migrate != "" {
		return handleMigrations(ctx, cfg, l, migrate, flag.Args()...)
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	l.Info("Database connection established")

	if migrateOnStart {
		if err := postgres.Migrate(ctx, db, "up", l); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	app, err := newApplication(ctx, cfg, l, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"pid", os.Getpid())
	if cfg.Auth.JWTSecret != "" {
		l.Debug("Auth configuration", "jwt_secret_present", true)
	}
	return cfg, l, nil
}
