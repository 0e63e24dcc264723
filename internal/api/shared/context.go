package shared

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type of request-context keys set by the API.
type ContextKey string

// Context keys for request-scoped values
const (
	// CallerContextKey holds the subject of the validated service token
	CallerContextKey ContextKey = "caller"

	// TraceIDKey holds the trace ID of the request
	TraceIDKey ContextKey = "traceID"
)

// SetTraceID stores traceID in the context, generating one when it is empty.
func SetTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(TraceIDKey).(string)
	return traceID
}

// WithCaller stores the authenticated caller in the context.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, CallerContextKey, caller)
}

// GetCaller returns the authenticated caller, if any.
func GetCaller(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(CallerContextKey).(string)
	return caller, ok && caller != ""
}
