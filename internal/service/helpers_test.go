package service_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/mocks"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func createUser(t *testing.T, repo *mocks.MemoryRepository, email string, admin bool) *domain.User {
	t.Helper()
	user, err := domain.NewUser(email, "correct horse battery")
	require.NoError(t, err)
	user.IsAdministrator = admin
	require.NoError(t, repo.Users().Create(context.Background(), user))
	return user
}

func createRequest(t *testing.T, repo *mocks.MemoryRepository, name, data string) *domain.ProcessRequest {
	t.Helper()
	req := &domain.ProcessRequest{Name: name, Data: json.RawMessage(data)}
	require.NoError(t, repo.ProcessRequests().Create(context.Background(), req))
	return req
}

func createTask(t *testing.T, repo *mocks.MemoryRepository, requestID int64, owner *uuid.UUID, name string) *domain.Task {
	t.Helper()
	task := &domain.Task{
		ProcessRequestID: requestID,
		UserID:           owner,
		ElementID:        "node_" + name,
		ElementType:      "task",
		ElementName:      name,
		Status:           domain.TaskStatusActive,
	}
	require.NoError(t, repo.Tasks().Create(context.Background(), task))
	return task
}

// createFormScreen stores a screen in category "Forms" with two labelled inputs.
func createFormScreen(t *testing.T, repo *mocks.MemoryRepository) *domain.Screen {
	t.Helper()
	ctx := context.Background()

	cat, err := domain.NewScreenCategory("Forms")
	require.NoError(t, err)
	require.NoError(t, repo.ScreenCategories().Create(ctx, cat))

	screen, err := domain.NewScreen("Customer", domain.ScreenTypeForm)
	require.NoError(t, err)
	screen.CategoryIDs = []int64{cat.ID}
	screen.Config = json.RawMessage(`[{"name":"page 1","items":[
		{"component":"FormInput","config":{"label":"First name","placeholder":"Jane"}},
		{"component":"FormHtmlViewer","config":{"content":"<p>Welcome</p>"}}
	]}]`)
	require.NoError(t, repo.Screens().Create(ctx, screen))
	return screen
}
