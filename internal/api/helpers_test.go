package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/api"
	"github.com/phrazzld/bpm-api/internal/api/shared"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/jobs"
	"github.com/phrazzld/bpm-api/internal/mocks"
	"github.com/phrazzld/bpm-api/internal/service"
	"github.com/phrazzld/bpm-api/internal/service/auth"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeTranslations records translation requests.
type fakeTranslations struct {
	requested []string
	err       error
	records   map[uuid.UUID]*jobs.Record
}

func (f *fakeTranslations) RequestTranslation(_ context.Context, screenID int64, language string) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.requested = append(f.requested, language)
	id := uuid.New()
	if f.records == nil {
		f.records = make(map[uuid.UUID]*jobs.Record)
	}
	f.records[id] = &jobs.Record{
		ID:        id,
		Type:      jobs.TypeScreenTranslation,
		Status:    jobs.StatusPending,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	return id, nil
}

func (f *fakeTranslations) JobStatus(_ context.Context, id uuid.UUID) (*jobs.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, jobs.ErrJobNotFound
	}
	return rec, nil
}

// testServer wires the handlers to an in-memory repository. Requests are
// authenticated as the user set with as.
type testServer struct {
	t            *testing.T
	repo         *mocks.MemoryRepository
	translations *fakeTranslations
	router       http.Handler
	viewer       *domain.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := testLogger()
	repo := mocks.NewMemoryRepository()

	users, err := service.NewUserService(repo, repo, auth.NewBcryptVerifier(), log)
	require.NoError(t, err)
	tasks, err := service.NewTaskService(repo, repo, service.NewWorkflowManager(log), log)
	require.NoError(t, err)
	portability, err := service.NewPortabilityService(repo, repo, nil, log)
	require.NoError(t, err)

	srv := &testServer{t: t, repo: repo, translations: &fakeTranslations{}}

	jwt := &mocks.MockJWTService{
		GenerateTokenFn: func(_ context.Context, userID uuid.UUID) (string, error) {
			return "token-" + userID.String(), nil
		},
	}
	authHandler := api.NewAuthHandler(users, jwt, time.Hour, log)
	taskHandler := api.NewTaskHandler(tasks, log)
	screenHandler := api.NewScreenHandler(portability, srv.translations, log)
	importHandler := api.NewImportHandler(portability, log)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if srv.viewer != nil {
						r = r.WithContext(shared.WithUser(r.Context(), srv.viewer))
					}
					next.ServeHTTP(w, r)
				})
			})
			r.Get("/tasks", taskHandler.List)
			r.Get("/tasks/{id}", taskHandler.Get)
			r.Put("/tasks/{id}", taskHandler.Update)
			r.Get("/screens/{id}/export", screenHandler.Export)
			r.Post("/screens/{id}/translations", screenHandler.RequestTranslation)
			r.Get("/jobs/{id}", screenHandler.JobStatus)
			r.Post("/import", importHandler.Import)
		})
	})
	srv.router = r
	return srv
}

func (s *testServer) as(user *domain.User) *testServer {
	s.viewer = user
	return s
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createUser(email string, admin bool) *domain.User {
	s.t.Helper()
	user, err := domain.NewUser(email, "correct horse battery")
	require.NoError(s.t, err)
	user.Firstname = "Test"
	user.Lastname = "User"
	user.IsAdministrator = admin
	require.NoError(s.t, s.repo.Users().Create(context.Background(), user))
	return user
}

func (s *testServer) createTask(requestID int64, owner *domain.User, name string) *domain.Task {
	s.t.Helper()
	task := &domain.Task{
		ProcessRequestID: requestID,
		ElementID:        "node_" + name,
		ElementType:      "task",
		ElementName:      name,
		Status:           domain.TaskStatusActive,
	}
	if owner != nil {
		id := owner.ID
		task.UserID = &id
	}
	require.NoError(s.t, s.repo.Tasks().Create(context.Background(), task))
	return task
}

func (s *testServer) createRequest(name, data string) *domain.ProcessRequest {
	s.t.Helper()
	req := &domain.ProcessRequest{Name: name, Data: json.RawMessage(data)}
	require.NoError(s.t, s.repo.ProcessRequests().Create(context.Background(), req))
	return req
}

func (s *testServer) createScreen() *domain.Screen {
	s.t.Helper()
	ctx := context.Background()
	cat, err := domain.NewScreenCategory("Forms")
	require.NoError(s.t, err)
	require.NoError(s.t, s.repo.ScreenCategories().Create(ctx, cat))

	screen, err := domain.NewScreen("Customer", domain.ScreenTypeForm)
	require.NoError(s.t, err)
	screen.CategoryIDs = []int64{cat.ID}
	screen.Config = json.RawMessage(`[{"name":"page 1","items":[
		{"component":"FormInput","config":{"label":"First name"}}
	]}]`)
	require.NoError(s.t, s.repo.Screens().Create(ctx, screen))
	return screen
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
