package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/bpm-api/internal/config"
	"github.com/phrazzld/bpm-api/internal/generation"
	"github.com/phrazzld/bpm-api/internal/jobs"
	"github.com/phrazzld/bpm-api/internal/metrics"
	"github.com/phrazzld/bpm-api/internal/platform/gemini"
	"github.com/phrazzld/bpm-api/internal/platform/postgres"
	"github.com/phrazzld/bpm-api/internal/platform/ratelimiter"
	"github.com/phrazzld/bpm-api/internal/service"
	"github.com/phrazzld/bpm-api/internal/service/auth"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	repo    *postgres.Repository
	metrics *metrics.Metrics

	jwtService auth.JWTService
	limiter    *ratelimiter.MapLimiter

	userService        service.UserService
	taskService        service.TaskService
	portabilityService service.PortabilityService

	// translationService and jobRunner are nil when no LLM API key is configured.
	translationService *service.TranslationService
	jobRunner          *jobs.Runner
}

// newApplication creates a new application instance with all dependencies initialized.
// It accepts core dependencies like configuration, logger, and database connection that
// must be established before application initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  logger,
		db:      db,
		repo:    postgres.NewRepository(db, cfg.Auth.BCryptCost, logger),
		metrics: metrics.New(),
		limiter: ratelimiter.NewFromConfig(cfg.RateLimit),
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.userService, err = service.NewUserService(app.repo, app.repo, auth.NewBcryptVerifier(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create user service: %w", err)
	}

	app.taskService, err = service.NewTaskService(app.repo, app.repo, service.NewWorkflowManager(logger), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	app.portabilityService, err = service.NewPortabilityService(app.repo, app.repo, app.metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create portability service: %w", err)
	}

	if cfg.LLM.GeminiAPIKey == "" {
		logger.Warn("no LLM API key configured, screen translation is disabled")
	} else if err := app.setupTranslations(ctx); err != nil {
		return nil, err
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupTranslations wires the Gemini model, the translation service and the
// background job runner. Starting the runner requeues unfinished jobs.
func (app *application) setupTranslations(ctx context.Context) error {
	model, err := gemini.NewModel(ctx, app.logger.With("component", "llm_model"), app.config.LLM)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM model: %w", err)
	}
	translator, err := generation.NewTranslator(model, app.config.LLM.StopSequence, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize translator: %w", err)
	}

	registry := jobs.NewRegistry()
	app.jobRunner = jobs.NewRunner(
		postgres.NewPostgresJobStore(app.db, app.logger),
		registry,
		jobs.RunnerConfig{
			WorkerCount: app.config.Jobs.WorkerCount,
			QueueSize:   app.config.Jobs.QueueSize,
			StuckJobAge: time.Duration(app.config.Jobs.StuckJobAgeMinutes) * time.Minute,
		},
		app.logger,
	)
	app.jobRunner.SetObserver(app.metrics)

	app.translationService, err = service.NewTranslationService(app.repo, app.repo, translator, app.jobRunner, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create translation service: %w", err)
	}
	registry.Register(jobs.TypeScreenTranslation, jobs.ScreenTranslationFactory(app.translationService, app.logger))

	if err := app.jobRunner.Start(); err != nil {
		return fmt.Errorf("failed to start job runner: %w", err)
	}
	app.logger.Info("screen translation enabled", "model", app.config.LLM.ModelName)
	return nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.jobRunner != nil {
		app.jobRunner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
