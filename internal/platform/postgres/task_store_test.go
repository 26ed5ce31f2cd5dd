package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taskRowColumns = []string{
	"id", "process_request_id", "user_id", "element_id", "element_type", "element_name",
	"status", "data", "completed_at", "due_at", "initiated_at", "riskchanges_at",
	"created_at", "updated_at",
}

func TestTaskOrderClause(t *testing.T) {
	tests := []struct {
		name     string
		order    []store.TaskOrder
		expected string
	}{
		{"default", nil, " ORDER BY t.id ASC"},
		{
			"ascending puts nulls first",
			[]store.TaskOrder{{Column: "due_at"}},
			" ORDER BY t.due_at ASC NULLS FIRST, t.id ASC",
		},
		{
			"descending puts nulls last",
			[]store.TaskOrder{{Column: "completed_at", Desc: true}},
			" ORDER BY t.completed_at DESC NULLS LAST, t.id ASC",
		},
		{
			"joined request column",
			[]store.TaskOrder{{Column: "process_requests.name"}, {Column: "status", Desc: true}},
			" ORDER BY pr.name ASC NULLS FIRST, t.status DESC NULLS LAST, t.id ASC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause, err := taskOrderClause(tt.order)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, clause)
		})
	}

	_, err := taskOrderClause([]store.TaskOrder{{Column: "password_hash"}})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestTaskOrderExpressionsMatchSortableColumns(t *testing.T) {
	for column := range taskOrderExpressions {
		assert.True(t, store.IsSortableTaskColumn(column), column)
	}
}

func TestPostgresTaskStore_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresTaskStore(db, testLogger())
	userID := uuid.New()
	due := time.Now().UTC().Add(time.Hour)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM process_request_tokens t JOIN process_requests pr`).
		WithArgs(userID, "ACTIVE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`ORDER BY t.due_at ASC NULLS FIRST, t.id ASC LIMIT \$3 OFFSET \$4`).
		WithArgs(userID, "ACTIVE", 2, 2).
		WillReturnRows(sqlmock.NewRows(taskRowColumns).
			AddRow(9, 1, userID.String(), "node_1", "task", "Approve", "ACTIVE", []byte(`{}`),
				nil, due, nil, nil, now, now))

	tasks, total, err := s.List(context.Background(), store.TaskFilter{
		UserID:  &userID,
		Status:  domain.TaskStatusActive,
		Order:   []store.TaskOrder{{Column: "due_at"}},
		Page:    2,
		PerPage: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(9), tasks[0].ID)
	assert.True(t, tasks[0].IsAssignedTo(userID))
	assert.Nil(t, tasks[0].CompletedAt)
	require.NotNil(t, tasks[0].DueAt)
	assert.True(t, due.Equal(*tasks[0].DueAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_ListDefaultsPaging(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresTaskStore(db, testLogger())

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`LIMIT \$1 OFFSET \$2`).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(taskRowColumns))

	tasks, total, err := s.List(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, tasks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_ListRejectsOverflowingPage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresTaskStore(db, testLogger())

	_, _, err = s.List(context.Background(), store.TaskFilter{Page: 1e17, PerPage: 100})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_ListRejectsUnknownColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresTaskStore(db, testLogger())
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err = s.List(context.Background(), store.TaskFilter{
		Order: []store.TaskOrder{{Column: "data"}},
	})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestPostgresTaskStore_UpdateStatusMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresTaskStore(db, testLogger())
	mock.ExpectExec("UPDATE process_request_tokens").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = s.UpdateStatus(context.Background(), &domain.Task{ID: 4, Status: domain.TaskStatusCompleted})
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestPostgresTaskStore_CreateRejectsUnknownStatus(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresTaskStore(db, testLogger())
	err = s.Create(context.Background(), &domain.Task{Status: "PAUSED"})
	assert.ErrorIs(t, err, domain.ErrInvalidTaskStatus)
}
