package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/zart/quizzer/internal/auth/jwt"
	"github.com/zart/quizzer/internal/logging"
	"github.com/zart/quizzer/internal/models"
	httperrors "github.com/zart/quizzer/pkg/http/errors"
)

type userKey struct{}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey{}).(*models.User)
	return u, ok && u != nil
}

// UserID returns the authenticated user id or "".
func UserID(ctx context.Context) string {
	if u, ok := UserFromContext(ctx); ok {
		return u.ID
	}
	return ""
}

// resolution is the outcome of identifying a request.
type resolution struct {
	user      *models.User
	attempted bool // some credential was presented
	err       error
}

// Authenticator identifies requests from a session, an access token or a refresh token.
type Authenticator struct {
	svc     *Service
	cookies CookieConfig
	logger  zerolog.Logger
}

func NewAuthenticator(svc *Service, cookies CookieConfig, logger zerolog.Logger) *Authenticator {
	return &Authenticator{svc: svc, cookies: cookies, logger: logger.With().Str("component", "auth_middleware").Logger()}
}

// resolve runs the session -> access token -> refresh token chain. A refreshed
// access token is written back as a cookie and an X-Access-Token header.
func (a *Authenticator) resolve(w http.ResponseWriter, r *http.Request) resolution {
	ctx := r.Context()
	var res resolution

	if sid := cookieValue(r, SessionCookie); sid != "" && a.svc.sessions != nil {
		res.attempted = true
		userID, err := a.svc.sessions.Lookup(ctx, sid)
		if err == nil {
			user, err := a.svc.ActiveUser(ctx, userID)
			if err == nil {
				return resolution{user: user, attempted: true}
			}
			if errors.Is(err, ErrAccountDisabled) {
				return resolution{attempted: true, err: err}
			}
		} else if !errors.Is(err, ErrSessionNotFound) {
			a.logger.Warn().Err(err).Msg("session lookup failed")
		}
	}

	if token := accessTokenFrom(r); token != "" {
		res.attempted = true
		user, err := a.svc.AuthenticateAccess(ctx, token)
		if err == nil {
			return resolution{user: user, attempted: true}
		}
		if !errors.Is(err, jwt.ErrExpiredToken) && !errors.Is(err, jwt.ErrInvalidToken) {
			return resolution{attempted: true, err: err}
		}
		res.err = err
	}

	if token := refreshTokenFrom(r); token != "" {
		res.attempted = true
		user, access, err := a.svc.RefreshAccess(ctx, token)
		if err != nil {
			res.err = err
			return res
		}
		a.cookies.set(w, AccessCookie, access, a.svc.tokens.AccessTTL())
		w.Header().Set(AccessHeader, access)
		return resolution{user: user, attempted: true}
	}

	return res
}

func (a *Authenticator) withIdentity(r *http.Request, user *models.User) *http.Request {
	ctx := WithUser(r.Context(), user)
	logger := logging.FromContext(ctx).With().Str("user_id", user.ID).Logger()
	return r.WithContext(logging.IntoContext(ctx, logger))
}

// Middleware rejects requests that cannot be identified.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := a.resolve(w, r)
		if res.user != nil {
			next.ServeHTTP(w, a.withIdentity(r, res.user))
			return
		}
		writeAuthFailure(w, res)
	})
}

// OptionalMiddleware identifies the request when possible and otherwise passes
// it through anonymously. Disabled accounts are still rejected.
func (a *Authenticator) OptionalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := a.resolve(w, r)
		switch {
		case res.user != nil:
			next.ServeHTTP(w, a.withIdentity(r, res.user))
		case errors.Is(res.err, ErrAccountDisabled):
			writeAuthFailure(w, res)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// RequireAdmin must run after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok {
			httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
			return
		}
		if u.Role != models.RoleAdmin {
			httperrors.RespondForbidden(w, httperrors.ErrCodeForbidden, "Admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthFailure(w http.ResponseWriter, res resolution) {
	switch {
	case errors.Is(res.err, ErrAccountDisabled):
		httperrors.RespondForbidden(w, httperrors.ErrCodeAccountDisabled, "Account is disabled")
	case !res.attempted:
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
	case errors.Is(res.err, jwt.ErrExpiredToken):
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeTokenExpired, "Session expired, please log in again")
	default:
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid or expired credentials")
	}
}
