package shared

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is the type of the request context keys set by this package.
type ContextKey string

const (
	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// TraceIDHeader carries the trace ID on requests and responses.
	TraceIDHeader = "X-Trace-ID"
)

// traceIDPattern accepts caller-supplied trace IDs that are safe to log.
var traceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// SetTraceID adds a new trace ID to the context.
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

// ValidTraceID reports whether a caller-supplied trace ID can be reused.
func ValidTraceID(traceID string) bool {
	return traceIDPattern.MatchString(traceID)
}

// generateTraceID returns a 32-character hex id. A random UUID is preferred;
// if the random source fails a time-based UUID is used instead.
func generateTraceID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		id, err = uuid.NewUUID()
		if err != nil {
			id = uuid.New()
		}
	}
	return strings.ReplaceAll(id.String(), "-", "")
}
