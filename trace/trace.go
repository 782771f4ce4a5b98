// Package trace provides correlation-id propagation for the portal client.
// A correlation id ties one logical client call to the server-side processing
// of the same operation.
package trace

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	// correlationIDKey is the context key for correlation id values
	correlationIDKey contextKey = "correlation_id"
	// HeaderCorrelationID is the header name carrying the correlation id
	HeaderCorrelationID = "X-Correlation-Id"
)

// WithCorrelationID adds a correlation id to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns a correlation id from context if present.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(correlationIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureCorrelationID returns an existing correlation id from context or
// generates a new one.
func EnsureCorrelationID(ctx context.Context) string {
	if id, ok := CorrelationIDFromContext(ctx); ok {
		return id
	}
	return NewCorrelationID()
}

// NewCorrelationID generates a globally unique correlation id.
func NewCorrelationID() string {
	return uuid.New().String()
}
