// Package shared holds the request context helpers and response writers used
// by the API handlers and middleware.
package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/phrazzld/bpm-api/internal/domain"
)

// ContextKey is the type of the context keys set by the API layer.
type ContextKey string

// Context keys for various values
const (
	// UserContextKey holds the authenticated *domain.User
	UserContextKey ContextKey = "user"

	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of random bytes in a generated trace ID
	TraceIDLength = 16 // 32 hex characters
)

// SetTraceID adds a new random trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, generateTraceID())
}

// WithTraceID adds traceID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// GetUser returns the authenticated user, or false when the request is anonymous.
func GetUser(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*domain.User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	_, _ = rand.Read(b) // never returns an error since Go 1.24
	return hex.EncodeToString(b)
}
