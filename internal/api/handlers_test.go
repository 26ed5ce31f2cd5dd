package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/api"
	"github.com/phrazzld/bpm-api/internal/api/shared"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/portability"
	"github.com/phrazzld/bpm-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler(t *testing.T) {
	srv := newTestServer(t)

	t.Run("register", func(t *testing.T) {
		rec := srv.do(http.MethodPost, "/api/auth/register", api.RegisterRequest{
			Email:     "ada@example.com",
			Password:  "correct horse battery",
			Firstname: "Ada",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		resp := decode[api.AuthResponse](t, rec)
		assert.NotEqual(t, uuid.Nil, resp.UserID)
		assert.Equal(t, "token-"+resp.UserID.String(), resp.AccessToken)
		assert.NotEmpty(t, resp.ExpiresAt)
	})

	t.Run("register duplicate email", func(t *testing.T) {
		rec := srv.do(http.MethodPost, "/api/auth/register", api.RegisterRequest{
			Email:    "ada@example.com",
			Password: "correct horse battery",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Email already exists", decode[shared.ErrorResponse](t, rec).Error)
	})

	t.Run("register short password", func(t *testing.T) {
		rec := srv.do(http.MethodPost, "/api/auth/register", api.RegisterRequest{
			Email:    "bob@example.com",
			Password: "short",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid Password: too short", decode[shared.ErrorResponse](t, rec).Error)
	})

	t.Run("login", func(t *testing.T) {
		rec := srv.do(http.MethodPost, "/api/auth/login", api.LoginRequest{
			Email:    "ada@example.com",
			Password: "correct horse battery",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotEmpty(t, decode[api.AuthResponse](t, rec).AccessToken)
	})

	t.Run("login wrong password", func(t *testing.T) {
		rec := srv.do(http.MethodPost, "/api/auth/login", api.LoginRequest{
			Email:    "ada@example.com",
			Password: "wrong password!",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid email or password", decode[shared.ErrorResponse](t, rec).Error)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := srv.do(http.MethodPost, "/api/auth/login", `{"email":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTaskHandler_List(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.createUser("admin@example.com", true)
	alice := srv.createUser("alice@example.com", false)
	bob := srv.createUser("bob@example.com", false)

	req := srv.createRequest("Onboarding", `{}`)
	srv.createTask(req.ID, alice, "Review")
	srv.createTask(req.ID, alice, "Approve")
	srv.createTask(req.ID, bob, "Sign")

	t.Run("admin sees all tasks", func(t *testing.T) {
		rec := srv.as(admin).do(http.MethodGet, "/api/tasks", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[api.TaskListResponse](t, rec)
		assert.Len(t, resp.Data, 3)
		assert.Equal(t, api.TaskListMeta{Total: 3, Count: 3, PerPage: 10, CurrentPage: 1, TotalPages: 1}, resp.Meta)
	})

	t.Run("users see their own tasks", func(t *testing.T) {
		rec := srv.as(alice).do(http.MethodGet, "/api/tasks?order_by=element_name", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[api.TaskListResponse](t, rec)
		require.Len(t, resp.Data, 2)
		assert.Equal(t, "Approve", resp.Data[0].ElementName)
		assert.Equal(t, "Review", resp.Data[1].ElementName)
	})

	t.Run("pagination and direction", func(t *testing.T) {
		rec := srv.as(admin).do(http.MethodGet, "/api/tasks?order_by=element_name&order_direction=desc&per_page=2&page=2", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[api.TaskListResponse](t, rec)
		require.Len(t, resp.Data, 1)
		assert.Equal(t, "Approve", resp.Data[0].ElementName)
		assert.Equal(t, 2, resp.Meta.TotalPages)
		assert.Equal(t, 2, resp.Meta.CurrentPage)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		for _, query := range []string{
			"order_by=password",
			"order_direction=sideways",
			"page=0",
			"page=100000000000000000&per_page=100",
			"page=99999999999999999999",
			"per_page=abc",
			"status=sleeping",
		} {
			rec := srv.as(admin).do(http.MethodGet, "/api/tasks?"+query, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, query)
			assert.NotEmpty(t, decode[shared.ErrorResponse](t, rec).Details, query)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := srv.as(nil).do(http.MethodGet, "/api/tasks", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestTaskHandler_GetAndUpdate(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.createUser("alice@example.com", false)
	bob := srv.createUser("bob@example.com", false)
	req := srv.createRequest("Onboarding", `{"customer":"ACME"}`)
	task := srv.createTask(req.ID, alice, "Review")
	path := fmt.Sprintf("/api/tasks/%d", task.ID)

	t.Run("get with includes", func(t *testing.T) {
		rec := srv.as(alice).do(http.MethodGet, path+"?include=user,definition", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[api.TaskResponse](t, rec)
		require.NotNil(t, resp.User)
		assert.Equal(t, "alice@example.com", resp.User.Email)
		assert.Equal(t, "Test User", resp.User.Fullname)
		require.NotNil(t, resp.Definition)
		assert.Equal(t, "node_Review", resp.Definition.ElementID)
		assert.Nil(t, resp.CompletedAt)
	})

	t.Run("get without includes", func(t *testing.T) {
		rec := srv.as(alice).do(http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[api.TaskResponse](t, rec)
		assert.Nil(t, resp.User)
		assert.Nil(t, resp.Definition)
	})

	t.Run("other users are forbidden", func(t *testing.T) {
		rec := srv.as(bob).do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = srv.as(bob).do(http.MethodPut, path, api.TaskUpdateRequest{Status: "COMPLETED"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing and malformed ids", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, srv.as(alice).do(http.MethodGet, "/api/tasks/999", nil).Code)
		assert.Equal(t, http.StatusBadRequest, srv.as(alice).do(http.MethodGet, "/api/tasks/abc", nil).Code)
	})

	t.Run("only COMPLETED is accepted", func(t *testing.T) {
		rec := srv.as(alice).do(http.MethodPut, path, api.TaskUpdateRequest{Status: "CLOSED"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("complete", func(t *testing.T) {
		rec := srv.as(alice).do(http.MethodPut, path, api.TaskUpdateRequest{
			Status: "completed",
			Data:   map[string]any{"approved": true},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[api.TaskResponse](t, rec)
		assert.Equal(t, string(domain.TaskStatusCompleted), resp.Status)
		assert.NotNil(t, resp.CompletedAt)

		stored, err := srv.repo.ProcessRequests().GetByID(context.Background(), req.ID)
		require.NoError(t, err)
		assert.JSONEq(t, `{"customer":"ACME","approved":true}`, string(stored.Data))
	})

	t.Run("complete twice", func(t *testing.T) {
		rec := srv.as(alice).do(http.MethodPut, path, api.TaskUpdateRequest{Status: "COMPLETED"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "Task is already completed", decode[shared.ErrorResponse](t, rec).Error)
	})
}

func TestScreenHandler_Export(t *testing.T) {
	srv := newTestServer(t)
	user := srv.createUser("ada@example.com", false)
	screen := srv.createScreen()
	path := fmt.Sprintf("/api/screens/%d/export", screen.ID)

	t.Run("payload", func(t *testing.T) {
		rec := srv.as(user).do(http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Disposition"), screen.UUID.String())

		payload := decode[portability.Payload](t, rec)
		assert.Equal(t, []uuid.UUID{screen.UUID}, payload.Root)
		assert.Len(t, payload.Nodes, 2)
	})

	t.Run("tree", func(t *testing.T) {
		rec := srv.as(user).do(http.MethodGet, path+"?view=tree", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		tree := decode[[]portability.TreeNode](t, rec)
		require.Len(t, tree, 1)
		assert.Equal(t, portability.KindScreen, tree[0].Type)
		require.Len(t, tree[0].Dependents, 1)
		assert.Equal(t, portability.KindScreenCategory, tree[0].Dependents[0].Type)
	})

	t.Run("missing screen", func(t *testing.T) {
		rec := srv.as(user).do(http.MethodGet, "/api/screens/999/export", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Screen not found", decode[shared.ErrorResponse](t, rec).Error)
	})
}

func TestScreenHandler_Translation(t *testing.T) {
	srv := newTestServer(t)
	user := srv.createUser("ada@example.com", false)
	screen := srv.createScreen()
	path := fmt.Sprintf("/api/screens/%d/translations", screen.ID)

	rec := srv.as(user).do(http.MethodPost, path, api.TranslationRequest{Language: "es"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	job := decode[api.JobResponse](t, rec)
	assert.Equal(t, "pending", job.Status)
	assert.Equal(t, "/api/jobs/"+job.ID.String(), rec.Header().Get("Location"))
	assert.Equal(t, []string{"es"}, srv.translations.requested)

	rec = srv.as(user).do(http.MethodGet, "/api/jobs/"+job.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[api.JobResponse](t, rec)
	assert.Equal(t, "screen_translation", status.Type)
	assert.Equal(t, "2026-01-02T03:04:05Z", status.CreatedAt)

	rec = srv.as(user).do(http.MethodGet, "/api/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.as(user).do(http.MethodPost, path, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	srv.translations.err = service.ErrNothingToTranslate
	rec = srv.as(user).do(http.MethodPost, path, api.TranslationRequest{Language: "de"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestImportHandler(t *testing.T) {
	source := newTestServer(t)
	user := source.createUser("ada@example.com", false)
	screen := source.createScreen()
	exported := source.as(user).do(http.MethodGet, fmt.Sprintf("/api/screens/%d/export", screen.ID), nil)
	require.Equal(t, http.StatusOK, exported.Code)
	payload := json.RawMessage(exported.Body.Bytes())

	target := newTestServer(t)
	target.as(target.createUser("ada@example.com", false))

	t.Run("creates entities", func(t *testing.T) {
		rec := target.do(http.MethodPost, "/api/import", api.ImportRequest{Payload: payload})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		result := decode[portability.Result](t, rec)
		assert.Equal(t, 1, result.Counts[portability.KindScreen].Created)
		assert.Equal(t, 1, result.Counts[portability.KindScreenCategory].Created)

		imported, err := target.repo.Screens().GetByUUID(context.Background(), screen.UUID)
		require.NoError(t, err)
		assert.Equal(t, "Customer", imported.Title)
	})

	t.Run("skip mode keeps existing entities", func(t *testing.T) {
		rec := target.do(http.MethodPost, "/api/import", api.ImportRequest{
			Payload: payload,
			Options: map[string]any{"mode": "skip"},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		result := decode[portability.Result](t, rec)
		assert.Equal(t, 1, result.Counts[portability.KindScreen].Skipped)
	})

	collisionOptions := []struct {
		name    string
		options map[string]any
		skipped int
		updated int
	}{
		{"skip_if_exists", map[string]any{"skip_if_exists": true}, 1, 0},
		{"overwrite", map[string]any{"overwrite": true}, 0, 1},
		{"overwrite false", map[string]any{"overwrite": false}, 1, 0},
	}
	for _, tt := range collisionOptions {
		t.Run(tt.name, func(t *testing.T) {
			rec := target.do(http.MethodPost, "/api/import", api.ImportRequest{Payload: payload, Options: tt.options})
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			result := decode[portability.Result](t, rec)
			assert.Equal(t, tt.skipped, result.Counts[portability.KindScreen].Skipped)
			assert.Equal(t, tt.updated, result.Counts[portability.KindScreen].Updated)
		})
	}

	t.Run("conflicting collision options", func(t *testing.T) {
		rec := target.do(http.MethodPost, "/api/import", api.ImportRequest{
			Payload: payload,
			Options: map[string]any{"skip_if_exists": true, "overwrite": true},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid options", func(t *testing.T) {
		rec := target.do(http.MethodPost, "/api/import", api.ImportRequest{
			Payload: payload,
			Options: map[string]any{"mode": "merge"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid import options", decode[shared.ErrorResponse](t, rec).Error)
	})

	t.Run("schema violation", func(t *testing.T) {
		rec := target.do(http.MethodPost, "/api/import", api.ImportRequest{
			Payload: json.RawMessage(`{"type":"screen_package","version":2,"root":[],"nodes":[]}`),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decode[shared.ErrorResponse](t, rec)
		assert.Equal(t, "Invalid payload", resp.Error)
		assert.NotEmpty(t, resp.Details)
	})

	id := uuid.NewString()
	category := func(name string) string {
		return fmt.Sprintf(`{"uuid":%q,"type":"screen_category","attributes":{"name":%q}}`, id, name)
	}

	t.Run("duplicate stable ids", func(t *testing.T) {
		body := fmt.Sprintf(`{"type":"screen_package","version":1,"root":[%q],"nodes":[%s,%s]}`,
			id, category("One"), category("Two"))
		rec := target.do(http.MethodPost, "/api/import", api.ImportRequest{Payload: json.RawMessage(body)})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing reference", func(t *testing.T) {
		body := fmt.Sprintf(`{"type":"screen_package","version":1,"root":[%q],"nodes":[]}`, id)
		rec := target.do(http.MethodPost, "/api/import", api.ImportRequest{Payload: json.RawMessage(body)})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Payload references missing entities", decode[shared.ErrorResponse](t, rec).Error)
	})

	t.Run("invalid node aborts by default", func(t *testing.T) {
		body := fmt.Sprintf(`{"type":"screen_package","version":1,"root":[%q],"nodes":[%s]}`, id, category(""))
		rec := target.do(http.MethodPost, "/api/import", api.ImportRequest{Payload: json.RawMessage(body)})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Len(t, decode[shared.ErrorResponse](t, rec).Details, 1)
	})

	t.Run("invalid node skipped on request", func(t *testing.T) {
		body := fmt.Sprintf(`{"type":"screen_package","version":1,"root":[%q],"nodes":[%s]}`, id, category(""))
		rec := target.do(http.MethodPost, "/api/import", api.ImportRequest{
			Payload: json.RawMessage(body),
			Options: map[string]any{"on_validation_error": "skip"},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		result := decode[portability.Result](t, rec)
		assert.Equal(t, 1, result.Counts[portability.KindScreenCategory].Invalid)
		assert.Len(t, result.Errors, 1)
	})

	t.Run("missing payload", func(t *testing.T) {
		rec := target.do(http.MethodPost, "/api/import", `{"options":{}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
