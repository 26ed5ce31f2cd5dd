package api

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/api/shared"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/service"
	"github.com/phrazzld/bpm-api/internal/store"
)

// currentUser returns the authenticated user placed in the context by the
// auth middleware. It writes a 401 response when there is none.
func currentUser(w http.ResponseWriter, r *http.Request, log *slog.Logger) (*domain.User, bool) {
	user, ok := shared.GetUser(r.Context())
	if !ok {
		log.Warn("user not found in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return nil, false
	}
	return user, true
}

// getPathInt64 extracts a positive integer ID from the URL path parameters.
func getPathInt64(r *http.Request, paramName string) (int64, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return 0, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(paramName, "must be a positive integer", domain.ErrInvalidID)
	}
	return id, nil
}

// getPathUUID extracts a UUID from the URL path parameters.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}
	return id, nil
}

// parseTaskListOptions reads page, per_page, status, order_by and
// order_direction from the query string. order_by may list several
// comma-separated columns; order_direction applies to all of them.
func parseTaskListOptions(r *http.Request) (service.TaskListOptions, error) {
	q := r.URL.Query()
	var opts service.TaskListOptions

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return opts, domain.NewValidationError("page", "must be a positive integer", nil)
		}
		if page > math.MaxInt/service.MaxTasksPerPage {
			return opts, domain.NewValidationError("page", "is out of range", nil)
		}
		opts.Page = page
	}
	if v := q.Get("per_page"); v != "" {
		perPage, err := strconv.Atoi(v)
		if err != nil || perPage < 1 {
			return opts, domain.NewValidationError("per_page", "must be a positive integer", nil)
		}
		opts.PerPage = perPage
	}

	if v := q.Get("status"); v != "" {
		status := domain.TaskStatus(strings.ToUpper(v))
		if !domain.IsValidTaskStatus(status) {
			return opts, domain.NewValidationError("status", "is not a known task status", nil)
		}
		opts.Status = status
	}

	desc := false
	switch strings.ToLower(q.Get("order_direction")) {
	case "", "asc":
	case "desc":
		desc = true
	default:
		return opts, domain.NewValidationError("order_direction", "must be asc or desc", nil)
	}

	if v := q.Get("order_by"); v != "" {
		for _, col := range strings.Split(v, ",") {
			col = strings.TrimSpace(col)
			if col == "" {
				continue
			}
			if !store.IsSortableTaskColumn(col) {
				return opts, domain.NewValidationError("order_by", "cannot sort by "+strconv.Quote(col), nil)
			}
			opts.Order = append(opts.Order, store.TaskOrder{Column: col, Desc: desc})
		}
	} else if desc {
		opts.Order = []store.TaskOrder{{Column: "id", Desc: true}}
	}

	return opts, nil
}

// includes parses a comma-separated include parameter into a set.
func includes(r *http.Request) map[string]bool {
	set := make(map[string]bool)
	for _, part := range strings.Split(r.URL.Query().Get("include"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			set[part] = true
		}
	}
	return set
}
