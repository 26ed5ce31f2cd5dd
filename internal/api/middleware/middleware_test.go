package middleware_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/api/middleware"
	"github.com/phrazzld/bpm-api/internal/api/shared"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/mocks"
	"github.com/phrazzld/bpm-api/internal/platform/ratelimiter"
	"github.com/phrazzld/bpm-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createUser(t *testing.T, repo *mocks.MemoryRepository) *domain.User {
	t.Helper()
	user, err := domain.NewUser("ada@example.com", "correct horse battery")
	require.NoError(t, err)
	require.NoError(t, repo.Users().Create(context.Background(), user))
	return user
}

// echoUser responds with the authenticated user's email.
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = io.WriteString(w, user.Email)
})

func TestAuthenticate(t *testing.T) {
	repo := mocks.NewMemoryRepository()
	user := createUser(t, repo)

	tests := []struct {
		name       string
		header     string
		jwt        *mocks.MockJWTService
		wantStatus int
		wantError  string
	}{
		{
			name:       "valid token",
			header:     "Bearer good",
			jwt:        mocks.ClaimsFor(user.ID),
			wantStatus: http.StatusOK,
		},
		{
			name:       "lowercase scheme",
			header:     "bearer good",
			jwt:        mocks.ClaimsFor(user.ID),
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			jwt:        mocks.ClaimsFor(user.ID),
			wantStatus: http.StatusUnauthorized,
			wantError:  "Authorization header required",
		},
		{
			name:       "wrong scheme",
			header:     "Basic abc",
			jwt:        mocks.ClaimsFor(user.ID),
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid authorization format",
		},
		{
			name:       "expired token",
			header:     "Bearer old",
			jwt:        &mocks.MockJWTService{ValidateErr: auth.ErrExpiredToken},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Token expired",
		},
		{
			name:       "invalid token",
			header:     "Bearer bad",
			jwt:        &mocks.MockJWTService{ValidateErr: auth.ErrInvalidToken},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid token",
		},
		{
			name:       "unknown user",
			header:     "Bearer ghost",
			jwt:        mocks.ClaimsFor(uuid.New()),
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid token",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mw := middleware.NewAuthMiddleware(tc.jwt, repo.Users(), testLogger())
			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			mw.Authenticate(echoUser).ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantError == "" {
				assert.Equal(t, user.Email, rec.Body.String())
				return
			}
			var resp shared.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantError, resp.Error)
		})
	}
}

func TestNewAuthMiddleware_PanicsWithoutDependencies(t *testing.T) {
	assert.Panics(t, func() { middleware.NewAuthMiddleware(nil, nil, nil) })
}

func TestTrace(t *testing.T) {
	var seen string
	handler := middleware.Trace(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.GetTraceID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Len(t, seen, 32)
		assert.Equal(t, seen, rec.Header().Get(middleware.TraceIDHeader))
	})

	t.Run("reuses request id", func(t *testing.T) {
		r := chi.NewRouter()
		r.Use(chimw.RequestID)
		r.Use(middleware.Trace(testLogger()))
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			seen = shared.GetTraceID(r.Context())
		})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(chimw.RequestIDHeader, "req-42")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", rec.Header().Get(middleware.TraceIDHeader))
	})
}

func TestRateLimit(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := ratelimiter.New(1, 1, time.Minute)
	require.NotNil(t, limiter)

	alice := &domain.User{ID: uuid.New()}
	bob := &domain.User{ID: uuid.New()}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) })
	handler := middleware.RateLimit(limiter, func() time.Time { return now })(ok)

	do := func(user *domain.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/screens/1/translations", nil)
		req = req.WithContext(shared.WithUser(req.Context(), user))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusAccepted, do(alice).Code)

	limited := do(alice)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusAccepted, do(bob).Code)

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusAccepted, do(alice).Code)
}

func TestRateLimit_NilLimiterAllows(t *testing.T) {
	handler := middleware.RateLimit(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
