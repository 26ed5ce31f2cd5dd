package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("some error"), false},
		{"ErrNotFound", ErrNotFound, true},
		{"wrapped ErrNotFound", fmt.Errorf("lookup: %w", ErrNotFound), true},
		{"ErrScreenNotFound", ErrScreenNotFound, true},
		{"wrapped ErrScriptCategoryNotFound", fmt.Errorf("import: %w", ErrScriptCategoryNotFound), true},
		{"ErrTaskNotFound", ErrTaskNotFound, true},
		{"ErrDuplicate", ErrDuplicate, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsNotFoundError(tt.err))
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	assert.True(t, IsDuplicateError(ErrEmailExists))
	assert.True(t, IsDuplicateError(fmt.Errorf("create: %w", ErrUUIDExists)))
	assert.False(t, IsDuplicateError(ErrUserNotFound))
	assert.False(t, IsDuplicateError(nil))

	// Entity-specific errors stay distinguishable from each other.
	assert.False(t, errors.Is(ErrEmailExists, ErrUUIDExists))
}

func TestStoreError(t *testing.T) {
	original := errors.New("database connection failed")
	storeErr := NewStoreError("screen", "update", "database error", original)

	assert.Equal(t, "update operation on screen failed: database error: database connection failed", storeErr.Error())
	assert.ErrorIs(t, storeErr, original)

	var target *StoreError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", storeErr), &target))
	assert.Equal(t, "screen", target.Entity)

	bare := &StoreError{Entity: "task", Operation: "create", Message: "validation failed"}
	assert.Equal(t, "create operation on task failed: validation failed", bare.Error())
	assert.Nil(t, bare.Unwrap())
}
