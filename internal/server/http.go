package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/zart/quizzer/internal/auth"
	"github.com/zart/quizzer/internal/config"
	"github.com/zart/quizzer/internal/leaderboard"
	"github.com/zart/quizzer/internal/logging"
	"github.com/zart/quizzer/internal/metrics"
	"github.com/zart/quizzer/internal/profile"
	"github.com/zart/quizzer/internal/quiz"
	"github.com/zart/quizzer/internal/ratelimit"
	"github.com/zart/quizzer/internal/rating"
	"github.com/zart/quizzer/internal/search"
	"github.com/zart/quizzer/internal/stats"
	httperrors "github.com/zart/quizzer/pkg/http/errors"
	"github.com/zart/quizzer/pkg/http/render"
)

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

// Handlers groups every HTTP surface the server mounts.
type Handlers struct {
	Auth          *auth.HTTPHandlers
	Authenticator *auth.Authenticator
	Quizzes       *quiz.HTTPHandlers
	Ratings       *rating.HTTPHandlers
	Stats         *stats.HTTPHandlers
	Profiles      *profile.HTTPHandlers
	Searches      *search.HTTPHandlers
	Leaderboard   *leaderboard.HTTPHandler
	AuthLimiter   *ratelimit.Limiter
	Metrics       *metrics.Metrics
	Readiness     map[string]Checker
}

// NewRouter builds the route table wrapped in the middleware chain.
func NewRouter(cfg *config.App, logger zerolog.Logger, h Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /readyz", readiness(h.Readiness))
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics.Handler())
	}

	required := h.Authenticator.Middleware
	optional := h.Authenticator.OptionalMiddleware
	limited := h.AuthLimiter.Middleware("auth")

	// auth
	a := h.Auth
	mux.Handle("POST /api/auth/register", limited(http.HandlerFunc(a.Register)))
	mux.Handle("POST /api/auth/login", limited(http.HandlerFunc(a.Login)))
	mux.Handle("POST /api/auth/forgot-password", limited(http.HandlerFunc(a.ForgotPassword)))
	mux.Handle("POST /api/auth/reset-password", limited(http.HandlerFunc(a.ResetPassword)))
	mux.HandleFunc("POST /api/auth/refresh", a.Refresh)
	mux.HandleFunc("POST /api/auth/logout", a.Logout)
	mux.Handle("GET /api/auth/me", required(http.HandlerFunc(a.Me)))
	mux.HandleFunc("GET /api/auth/providers", a.Providers)
	mux.HandleFunc("GET /api/auth/{provider}", a.OAuthStart)
	mux.HandleFunc("GET /api/auth/{provider}/callback", a.OAuthCallback)

	// settings
	mux.Handle("PUT /api/settings/password", required(http.HandlerFunc(a.ChangePassword)))
	mux.Handle("DELETE /api/settings/account", required(http.HandlerFunc(a.DeleteAccount)))

	// quizzes
	q := h.Quizzes
	mux.Handle("POST /api/quizzes/generate", required(http.HandlerFunc(q.Generate)))
	mux.Handle("GET /api/quizzes/recent", required(http.HandlerFunc(q.Recent)))
	mux.Handle("GET /api/quizzes/recommended", required(http.HandlerFunc(q.Recommended)))
	mux.Handle("GET /api/quizzes/saved", required(http.HandlerFunc(q.Saved)))
	mux.Handle("GET /api/quizzes/history", required(http.HandlerFunc(q.History)))
	mux.Handle("GET /api/quizzes/explore", optional(http.HandlerFunc(q.Explore)))
	mux.Handle("GET /api/quizzes/trending", optional(http.HandlerFunc(q.Trending)))
	mux.Handle("GET /api/quizzes/search", optional(http.HandlerFunc(q.Search)))
	mux.HandleFunc("GET /api/quizzes/search/popular", h.Searches.Popular)
	mux.Handle("GET /api/quizzes/user/{userId}", optional(http.HandlerFunc(q.ByUser)))
	mux.Handle("GET /api/quizzes/attempts/{attemptId}", required(http.HandlerFunc(q.Attempt)))
	mux.Handle("POST /api/quizzes/prompts/{promptId}/regenerate", required(http.HandlerFunc(q.Regenerate)))
	mux.Handle("GET /api/quizzes/{id}", optional(http.HandlerFunc(q.Get)))
	mux.Handle("PATCH /api/quizzes/{id}", required(http.HandlerFunc(q.Update)))
	mux.Handle("PATCH /api/quizzes/{id}/visibility", required(http.HandlerFunc(q.Visibility)))
	mux.Handle("DELETE /api/quizzes/{id}", required(http.HandlerFunc(q.Delete)))
	mux.Handle("POST /api/quizzes/{id}/submit", required(http.HandlerFunc(q.Submit)))
	mux.Handle("POST /api/quizzes/{id}/save", required(http.HandlerFunc(q.Save)))
	mux.Handle("DELETE /api/quizzes/{id}/save", required(http.HandlerFunc(q.Unsave)))

	// moderation
	mux.Handle("DELETE /api/admin/quizzes/{id}", required(auth.RequireAdmin(http.HandlerFunc(q.Delete))))

	// ratings
	mux.Handle("POST /api/ratings/{quizId}", required(http.HandlerFunc(h.Ratings.Rate)))
	mux.Handle("GET /api/ratings/{quizId}/stats", optional(http.HandlerFunc(h.Ratings.Stats)))
	mux.Handle("GET /api/ratings/{quizId}/me", required(http.HandlerFunc(h.Ratings.Mine)))

	// statistics
	mux.Handle("GET /api/statistics/me", required(http.HandlerFunc(h.Stats.Me)))
	mux.HandleFunc("GET /api/statistics/users/{userId}", h.Stats.User)
	mux.HandleFunc("GET /api/statistics/global", h.Stats.Global)

	// profiles
	p := h.Profiles
	mux.Handle("GET /api/profile/me", required(http.HandlerFunc(p.Me)))
	mux.Handle("PUT /api/profile/me", required(http.HandlerFunc(p.Update)))
	mux.Handle("PUT /api/profile/me/account", required(http.HandlerFunc(p.UpdateAccount)))
	mux.HandleFunc("GET /api/profile/{username}", p.Public)

	// leaderboard
	if h.Leaderboard != nil {
		mux.HandleFunc("GET /api/leaderboard/{window}", h.Leaderboard.HandleGet)
		mux.HandleFunc("GET /ws/leaderboard", h.Leaderboard.HandleWebSocket)
	}

	return chi.Chain(
		middleware.RequestID,
		echoRequestID,
		middleware.RealIP,
		logging.Middleware(logger),
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   cfg.CORS.AllowedMethods,
			AllowedHeaders:   cfg.CORS.AllowedHeaders,
			ExposedHeaders:   cfg.CORS.ExposedHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		}),
		h.Metrics.Middleware,
	).Handler(mux)
}

// echoRequestID returns the request id to the caller.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

// readiness pings every dependency and answers 503 on the first failure.
func readiness(checks map[string]Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				logging.FromContext(r.Context()).Error().Err(err).Str("dependency", name).Msg("readiness check failed")
				httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, name+" unavailable")
				return
			}
		}
		render.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// NewHTTPServer wraps the router in an http.Server with conservative timeouts.
func NewHTTPServer(cfg *config.App, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
