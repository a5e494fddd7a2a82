// Command quizgen serves POST /generate backed by Gemini, for deployments that
// keep the model key out of the API process.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zart/quizzer/internal/logging"
	"github.com/zart/quizzer/internal/quiz/ai"
	"github.com/zart/quizzer/pkg/http/render"
)

type settings struct {
	Env        string        `env:"APP_ENV" envDefault:"development"`
	Addr       string        `env:"QUIZGEN_ADDR" envDefault:"0.0.0.0:9090"`
	APIKey     string        `env:"AI_GENERATOR_API_KEY"`
	GeminiKey  string        `env:"GEMINI_API_KEY,notEmpty"`
	Model      string        `env:"GEMINI_MODEL" envDefault:"models/gemini-1.5-flash"`
	Timeout    time.Duration `env:"AI_HTTP_TIMEOUT" envDefault:"30s"`
	MaxRetries int           `env:"AI_MAX_RETRIES" envDefault:"2"`
}

func newRouter(h http.Handler, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodPost, "/generate", h)
	return r
}

func main() {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	var s settings
	if err := env.Parse(&s); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New("quizgen", s.Env)

	gen := ai.NewGemini(ai.GeminiConfig{
		APIKey:     s.GeminiKey,
		Model:      s.Model,
		Timeout:    s.Timeout,
		MaxRetries: s.MaxRetries,
	}, logger)

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           newRouter(&generateHandler{generator: gen, apiKey: s.APIKey}, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", s.Addr).Str("model", s.Model).Msg("quiz generator listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
