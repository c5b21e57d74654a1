// Package requestctx carries per-request metadata on a context so middleware
// and handlers can share it without widening signatures.
package requestctx

import (
	"context"
	"time"
)

type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	requestTimeKey contextKey = "request_time"
)

// WithRequestID attaches the request's correlation ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithRequestTime attaches the time the request entered the server.
func WithRequestTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t)
}

// RequestID returns the correlation ID, or "" when none was attached.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestTime returns the arrival time, or the zero time when unset.
func RequestTime(ctx context.Context) time.Time {
	t, _ := ctx.Value(requestTimeKey).(time.Time)
	return t
}
