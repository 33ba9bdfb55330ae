package services

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	backendKey   contextKey = "backend"
)

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// EnsureRequestID returns ctx unchanged when it already carries a correlation
// identifier, otherwise it attaches a fresh random one.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id, ok := RequestIDFromContext(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithRequestID(ctx, id), id
}

// WithBackend annotates context with the backend currently being queried.
func WithBackend(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, backendKey, name)
}

// BackendFromContext returns the backend name if present.
func BackendFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(backendKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
