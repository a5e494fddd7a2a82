package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/zart/quizzer/internal/auth"
	"github.com/zart/quizzer/internal/auth/jwt"
	"github.com/zart/quizzer/internal/auth/oauth"
	"github.com/zart/quizzer/internal/config"
	"github.com/zart/quizzer/internal/db/memstore"
	"github.com/zart/quizzer/internal/db/mongostore"
	"github.com/zart/quizzer/internal/db/pgstore"
	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/leaderboard"
	"github.com/zart/quizzer/internal/logging"
	"github.com/zart/quizzer/internal/metrics"
	"github.com/zart/quizzer/internal/profile"
	"github.com/zart/quizzer/internal/quiz"
	"github.com/zart/quizzer/internal/quiz/ai"
	"github.com/zart/quizzer/internal/ratelimit"
	"github.com/zart/quizzer/internal/rating"
	"github.com/zart/quizzer/internal/search"
	"github.com/zart/quizzer/internal/server"
	"github.com/zart/quizzer/internal/stats"
	ws "github.com/zart/quizzer/pkg/http/ws"
)

// worker is a background loop that runs until its context is cancelled.
type worker interface {
	Run(ctx context.Context) error
}

// Application owns every connection and long-lived component of the API process.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	stores *repository.Stores
	redis  *redis.Client
	http   *http.Server

	workers map[string]worker
}

// New opens the store and Redis, then wires services, handlers and workers.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Str("store", cfg.Store.Driver).Msg("starting application bootstrap")

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Redis backs sessions, rate limits and the leaderboard; the API still serves without it.
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable at startup")
	}

	m := metrics.New("quizzer")
	production := cfg.IsProduction()

	wsHub := ws.NewHub(logger)
	leaderboardSvc := leaderboard.NewService(redisClient, logger, leaderboard.ServiceOptions{
		BroadcastTopN: cfg.Leaderboard.BroadcastTopN,
	})

	tokens := jwt.NewManager(jwt.TokenConfig{
		AccessSecret:  []byte(cfg.Security.JWTAccessSecret),
		RefreshSecret: []byte(cfg.Security.JWTRefreshSecret),
		AccessTTL:     cfg.Security.AccessTokenTTL,
		RefreshTTL:    cfg.Security.RefreshTokenTTL,
		Issuer:        cfg.Name,
	})
	authSvc := auth.NewService(stores, auth.ServiceOptions{
		Tokens:   tokens,
		Hasher:   auth.NewHasher(cfg.Security.BcryptCost),
		Sessions: auth.NewRedisSessionStore(redisClient, cfg.Security.SessionSecret, cfg.Security.SessionTTL),
		Resets:   auth.NewRedisResetStore(redisClient),
		Mailer: auth.NewEmailService(auth.EmailConfig{
			SMTPHost:     cfg.SMTP.Host,
			SMTPPort:     cfg.SMTP.Port,
			SMTPUsername: cfg.SMTP.Username,
			SMTPPassword: cfg.SMTP.Password,
			FromEmail:    cfg.SMTP.FromEmail,
			FrontendURL:  cfg.FrontendURL,
		}, logger),
		ResetTTL: cfg.Security.ResetTokenTTL,
		Metrics:  m,
		OnAccountDeleted: func(ctx context.Context, userID string) {
			if err := leaderboardSvc.RemoveUser(ctx, userID); err != nil {
				logger.Warn().Err(err).Str("user_id", userID).Msg("leaderboard cleanup failed")
			}
		},
	}, logger)

	providers := oauth.FromConfig(cfg.OAuth)
	logger.Info().Strs("providers", providers.Names()).Msg("oauth providers configured")

	cookies := auth.CookieConfig{Secure: production}
	authHandlers := auth.NewHTTPHandlers(authSvc, providers, auth.HandlerOptions{
		Cookies:     cookies,
		FrontendURL: cfg.FrontendURL,
		StateTTL:    cfg.OAuth.StateTTL,
		Production:  production,
	}, logger)

	statsSvc := stats.NewService(stores, logger)
	ratingSvc := rating.NewService(stores, logger)
	tracker := search.NewTracker(stores.Searches, logger)

	quizSvc := quiz.NewService(stores, newGenerator(cfg.AI, logger), quiz.Collaborators{
		Stats:    statsSvc,
		Points:   leaderboardSvc,
		Searches: tracker,
		Trending: quiz.NewRedisTrendingCache(redisClient, cfg.Trending.CacheTTL),
		Metrics:  m,
	}, quiz.ServiceOptions{
		TrendingWindow: cfg.Trending.Window,
		TrendingSize:   cfg.Trending.Size,
	}, logger)

	profileSvc := profile.NewService(stores, statsSvc, logger)

	handler := server.NewRouter(cfg, logger, server.Handlers{
		Auth:          authHandlers,
		Authenticator: auth.NewAuthenticator(authSvc, cookies, logger),
		Quizzes:       quiz.NewHTTPHandlers(quizSvc, production, logger),
		Ratings:       rating.NewHTTPHandlers(ratingSvc, production, logger),
		Stats:         stats.NewHTTPHandlers(statsSvc, production, logger),
		Profiles:      profile.NewHTTPHandlers(profileSvc, production, logger),
		Searches:      search.NewHTTPHandlers(tracker, production),
		Leaderboard:   leaderboard.NewHTTPHandler(leaderboardSvc, wsHub, m, cfg.CORS.AllowedOrigins, production, logger),
		AuthLimiter: ratelimit.New(
			ratelimit.NewRedisCounter(redisClient, ""),
			cfg.RateLimit.AuthRequests,
			cfg.RateLimit.AuthWindow,
			logger,
		),
		Metrics: m,
		Readiness: map[string]server.Checker{
			"store": stores.Ping,
			"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	})

	return &Application{
		cfg:    cfg,
		logger: logger,
		stores: stores,
		redis:  redisClient,
		http:   server.NewHTTPServer(cfg, handler),
		workers: map[string]worker{
			"leaderboard broadcaster": leaderboard.NewBroadcaster(redisClient, wsHub, "", logger),
			"trending refresher":      quiz.NewTrendingWorker(quizSvc, cfg.Trending.RefreshInterval, logger),
		},
	}, nil
}

func openStores(ctx context.Context, cfg *config.App, logger zerolog.Logger) (*repository.Stores, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		return mongostore.Open(ctx, mongostore.Config{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
		}, logger)
	case config.DriverPostgres:
		return pgstore.Open(ctx, pgstore.Config{
			DSN:         cfg.Postgres.DSN(),
			MaxConns:    cfg.Postgres.MaxConns,
			AutoMigrate: cfg.Postgres.AutoMigrate,
		}, logger)
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// newGenerator prefers the remote generator service and falls back to calling
// Gemini directly. Without either, generation requests fail with 502.
func newGenerator(cfg config.AI, logger zerolog.Logger) ai.Generator {
	switch {
	case cfg.GeneratorURL != "":
		return ai.NewRemoteGenerator(ai.Config{
			GeneratorURL: cfg.GeneratorURL,
			GeneratorKey: cfg.GeneratorKey,
			Timeout:      cfg.HTTPTimeout,
		}, logger)
	case cfg.GeminiAPIKey != "":
		return ai.NewGemini(ai.GeminiConfig{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.GeminiModel,
			Timeout:    cfg.HTTPTimeout,
			MaxRetries: cfg.MaxRetries,
		}, logger)
	default:
		logger.Warn().Msg("no quiz generator configured (set AI_GENERATOR_URL or GEMINI_API_KEY)")
		return nil
	}
}

// Run starts the HTTP server and background workers and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	bgCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	workers := a.startBackgroundWorkers(bgCtx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	stopWorkers()
	if err := workers.Wait(); err != nil {
		a.logger.Warn().Err(err).Msg("background worker stopped with error")
	}

	if err := a.stores.Close(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("store shutdown error")
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return runErr
}

func (a *Application) startBackgroundWorkers(ctx context.Context) *errgroup.Group {
	var g errgroup.Group
	for name, w := range a.workers {
		g.Go(func() error {
			a.logger.Info().Str("worker", name).Msg("background worker started")
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	return &g
}
