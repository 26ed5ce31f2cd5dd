package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/bpm-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound error
		target   error
	}{
		{"no rows with entity error", sql.ErrNoRows, store.ErrScreenNotFound, store.ErrScreenNotFound},
		{"no rows default", fmt.Errorf("scan: %w", sql.ErrNoRows), nil, store.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "screens_uuid_key"}, nil, store.ErrDuplicate},
		{"foreign key violation", &pgconn.PgError{Code: foreignKeyViolationCode}, nil, store.ErrInvalidEntity},
		{"check violation", &pgconn.PgError{Code: checkViolationCode}, nil, store.ErrInvalidEntity},
		{"not null violation", &pgconn.PgError{Code: notNullViolationCode, ColumnName: "title"}, nil, store.ErrInvalidEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, MapError(tt.err, tt.notFound), tt.target)
		})
	}

	assert.NoError(t, MapError(nil, nil))
	other := errors.New("connection reset")
	assert.Same(t, other, MapError(other, nil))
}

func TestMapError_DoesNotLeakDetails(t *testing.T) {
	err := &pgconn.PgError{
		Code:           uniqueViolationCode,
		ConstraintName: "users_email_key",
		Detail:         "Key (email)=(alice@example.com) already exists.",
	}
	assert.NotContains(t, MapError(err, nil).Error(), "alice@example.com")
}

func TestViolationHelpers(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: uniqueViolationCode})))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: foreignKeyViolationCode}))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: uniqueViolationCode}))
}

func TestCheckRowsAffected(t *testing.T) {
	assert.NoError(t, CheckRowsAffected(sqlmock.NewResult(0, 1), store.ErrTaskNotFound))
	assert.ErrorIs(t, CheckRowsAffected(sqlmock.NewResult(0, 0), store.ErrTaskNotFound), store.ErrTaskNotFound)
	assert.ErrorIs(t, CheckRowsAffected(sqlmock.NewResult(0, 0), nil), store.ErrNotFound)
	assert.Error(t, CheckRowsAffected(sqlmock.NewErrorResult(errors.New("boom")), nil))
	assert.Error(t, CheckRowsAffected(nil, nil))
}
