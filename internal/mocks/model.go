package mocks

import (
	"context"

	"github.com/phrazzld/bpm-api/internal/generation"
	"github.com/stretchr/testify/mock"
)

// MockModel is a testify mock of generation.Model.
type MockModel struct {
	mock.Mock
}

var _ generation.Model = (*MockModel)(nil)

// Complete records the call and returns the configured completion.
func (m *MockModel) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}
