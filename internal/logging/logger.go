package logging

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// New builds the process logger. Development gets a console writer, production plain JSON.
func New(appName, env string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if env != "production" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339Nano}
	}
	return zerolog.New(out).With().
		Timestamp().
		Str("app", appName).
		Str("env", env).
		Logger()
}

// FromContext returns the logger stored in ctx, or a disabled logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return zerolog.Ctx(ctx)
}

// IntoContext injects a logger into context for downstream use.
func IntoContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// Middleware stores a request-scoped logger tagged with the chi request id and
// logs one line per completed request.
func Middleware(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := base.With().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(IntoContext(r.Context(), logger)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			evt := logger.Info()
			if status >= http.StatusInternalServerError {
				evt = logger.Error()
			}
			evt.Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}
