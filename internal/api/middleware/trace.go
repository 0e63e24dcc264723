package middleware

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/tasklink/internal/api/shared"
	"github.com/phrazzld/tasklink/internal/platform/logger"
)

// NewTraceMiddleware gives every request a trace ID and a request-scoped
// logger carrying it. The chi request ID is reused when present.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context(), middleware.GetReqID(r.Context()))
			traceID := shared.GetTraceID(ctx)

			log := base.With(slog.String("trace_id", traceID))
			ctx = logger.WithLogger(ctx, log)

			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			log.Debug("request finished",
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()))
		})
	}
}
