package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/bpm-api/internal/api"
	apiMiddleware "github.com/phrazzld/bpm-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.Trace(app.logger))
	r.Use(app.metrics.Middleware)
	r.Use(middleware.Recoverer)

	authHandler := api.NewAuthHandler(
		app.userService,
		app.jwtService,
		time.Duration(app.config.Auth.TokenLifetimeMinutes)*time.Minute,
		app.logger,
	)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService, app.repo.Users(), app.logger)
	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	importHandler := api.NewImportHandler(app.portabilityService, app.logger)

	var screenHandler *api.ScreenHandler
	if app.translationService != nil {
		screenHandler = api.NewScreenHandler(app.portabilityService, app.translationService, app.logger)
	} else {
		screenHandler = api.NewScreenHandler(app.portabilityService, nil, app.logger)
	}

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/tasks", taskHandler.List)
			r.Get("/tasks/{id}", taskHandler.Get)
			r.Put("/tasks/{id}", taskHandler.Update)

			r.Get("/screens/{id}/export", screenHandler.Export)
			r.Post("/import", importHandler.Import)

			if app.translationService != nil {
				r.With(apiMiddleware.RateLimit(app.limiter, nil)).
					Post("/screens/{id}/translations", screenHandler.RequestTranslation)
				r.Get("/jobs/{id}", screenHandler.JobStatus)
			}
		})
	})

	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := app.db.PingContext(r.Context()); err != nil {
			app.logger.Error("health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
