package logging

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestFromContext_Default(t *testing.T) {
	logger := FromContext(context.Background())
	assert.Equal(t, zerolog.Disabled, logger.GetLevel())

	// Pointer methods chain directly on the returned logger.
	FromContext(context.Background()).Warn().Msg("discarded")
}

func TestIntoContext_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	ctx := IntoContext(context.Background(), zerolog.New(&buf).With().Str("component", "quiz").Logger())

	FromContext(ctx).Error().Msg("stored")
	assert.Contains(t, buf.String(), `"component":"quiz"`)
	assert.Contains(t, buf.String(), `"message":"stored"`)
}

func TestMiddleware_InjectsRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	var inner *zerolog.Logger
	h := middleware.RequestID(Middleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = FromContext(r.Context())
		inner.Info().Msg("inside")
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/quizzes/explore", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-42"`)
	assert.Contains(t, out, `"message":"inside"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/api/quizzes/explore"`)
}
