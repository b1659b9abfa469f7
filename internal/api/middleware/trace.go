// Package middleware holds the HTTP middleware shared by the API routes.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/scry-concepts/internal/api/shared"
	"github.com/phrazzld/scry-concepts/internal/platform/logger"
)

// NewTraceMiddleware adds a trace ID and a request-scoped logger to the
// request context. A valid X-Trace-ID header from the caller is reused.
// It should run early so every later handler can log with the trace ID.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if incoming := r.Header.Get(shared.TraceIDHeader); shared.ValidTraceID(incoming) {
				ctx = shared.WithTraceID(ctx, incoming)
			} else {
				ctx = shared.SetTraceID(ctx)
			}
			traceID := shared.GetTraceID(ctx)

			log := base.With(slog.String("trace_id", traceID))
			ctx = logger.WithLogger(ctx, log)

			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			w.Header().Set(shared.TraceIDHeader, traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
