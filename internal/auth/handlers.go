package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zart/quizzer/internal/auth/jwt"
	"github.com/zart/quizzer/internal/auth/oauth"
	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/logging"
	"github.com/zart/quizzer/internal/models"
	httperrors "github.com/zart/quizzer/pkg/http/errors"
	"github.com/zart/quizzer/pkg/http/render"
)

// HandlerOptions configures HTTPHandlers.
type HandlerOptions struct {
	Cookies     CookieConfig
	FrontendURL string
	StateTTL    time.Duration
	Production  bool
}

// HTTPHandlers provides REST endpoints for authentication and account settings.
type HTTPHandlers struct {
	svc       *Service
	providers *oauth.Registry
	opts      HandlerOptions
	logger    zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for auth endpoints.
func NewHTTPHandlers(svc *Service, providers *oauth.Registry, opts HandlerOptions, logger zerolog.Logger) *HTTPHandlers {
	if opts.StateTTL <= 0 {
		opts.StateTTL = 10 * time.Minute
	}
	if providers == nil {
		providers = oauth.NewRegistry()
	}
	return &HTTPHandlers{svc: svc, providers: providers, opts: opts, logger: logger}
}

func (h *HTTPHandlers) setTokenCookies(w http.ResponseWriter, tokens *TokenPair) {
	h.opts.Cookies.set(w, AccessCookie, tokens.AccessToken, h.svc.tokens.AccessTTL())
	h.opts.Cookies.set(w, RefreshCookie, tokens.RefreshToken, h.svc.tokens.RefreshTTL())
}

// Register handles POST /api/auth/register
func (h *HTTPHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !render.Decode(w, r, &req) {
		return
	}
	user, tokens, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setTokenCookies(w, tokens)
	render.JSON(w, http.StatusCreated, AuthResponse{User: user, TokenPair: *tokens})
}

// Login handles POST /api/auth/login
func (h *HTTPHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !render.Decode(w, r, &req) {
		return
	}
	user, tokens, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setTokenCookies(w, tokens)
	render.JSON(w, http.StatusOK, AuthResponse{User: user, TokenPair: *tokens})
}

// Refresh handles POST /api/auth/refresh. The token may come from the cookie,
// the X-Refresh-Token header or the JSON body.
func (h *HTTPHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFrom(r)
	if token == "" {
		var req RefreshRequest
		if !render.Decode(w, r, &req) {
			return
		}
		token = req.RefreshToken
	}
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Refresh token required")
		return
	}
	user, tokens, err := h.svc.Refresh(r.Context(), token)
	if err != nil {
		h.opts.Cookies.clear(w, AccessCookie)
		h.opts.Cookies.clear(w, RefreshCookie)
		h.writeError(w, r, err)
		return
	}
	h.setTokenCookies(w, tokens)
	render.JSON(w, http.StatusOK, AuthResponse{User: user, TokenPair: *tokens})
}

// Logout handles POST /api/auth/logout
func (h *HTTPHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sid := cookieValue(r, SessionCookie); sid != "" && h.svc.sessions != nil {
		if err := h.svc.sessions.Destroy(r.Context(), sid); err != nil {
			logging.FromContext(r.Context()).Warn().Err(err).Msg("destroy session failed")
		}
	}
	h.opts.Cookies.clear(w, AccessCookie)
	h.opts.Cookies.clear(w, RefreshCookie)
	h.opts.Cookies.clear(w, SessionCookie)
	render.JSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Me handles GET /api/auth/me
func (h *HTTPHandlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{
		"user":        user,
		"hasPassword": user.HasPassword(),
		"providers":   user.LinkedProviders(),
	})
}

// ForgotPassword handles POST /api/auth/forgot-password. The response never
// reveals whether the address exists.
func (h *HTTPHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !render.Decode(w, r, &req) {
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		logging.FromContext(r.Context()).Warn().Err(err).Msg("password reset request failed")
	}
	render.JSON(w, http.StatusOK, map[string]string{
		"message": "If an account exists with this email, a password reset link has been sent",
	})
}

// ResetPassword handles POST /api/auth/reset-password
func (h *HTTPHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !render.Decode(w, r, &req) {
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}

// Providers handles GET /api/auth/providers
func (h *HTTPHandlers) Providers(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, http.StatusOK, map[string]any{"providers": h.providers.Names()})
}

// OAuthStart handles GET /api/auth/{provider}
func (h *HTTPHandlers) OAuthStart(w http.ResponseWriter, r *http.Request) {
	p, err := h.providers.Get(r.PathValue("provider"))
	if err != nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeOAuthNotConfigured, "OAuth provider is not configured")
		return
	}

	state := uuid.NewString()
	h.opts.Cookies.set(w, StateCookie, state, h.opts.StateTTL)
	authURL := p.AuthCodeURL(state)

	if wantsJSON(r) {
		render.JSON(w, http.StatusOK, map[string]string{"authUrl": authURL, "state": state})
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// OAuthCallback handles GET /api/auth/{provider}/callback
func (h *HTTPHandlers) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	p, err := h.providers.Get(r.PathValue("provider"))
	if err != nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeOAuthNotConfigured, "OAuth provider is not configured")
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.failOAuth(w, r, httperrors.ErrCodeOAuthCallbackFailed, "Provider returned: "+e)
		return
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" {
		h.failOAuth(w, r, httperrors.ErrCodeOAuthMissingCode, "Authorization code required")
		return
	}
	if expected := cookieValue(r, StateCookie); expected == "" || expected != state {
		h.failOAuth(w, r, httperrors.ErrCodeOAuthInvalidState, "Invalid or missing state parameter")
		return
	}
	h.opts.Cookies.clear(w, StateCookie)

	identity, err := p.Exchange(r.Context(), code)
	if err != nil {
		logger.Warn().Err(err).Str("provider", p.Name()).Msg("oauth exchange failed")
		h.failOAuth(w, r, httperrors.ErrCodeOAuthCallbackFailed, "Could not complete sign-in with "+p.Name())
		return
	}

	user, err := h.svc.LinkOAuthIdentity(r.Context(), identity)
	if err != nil {
		switch {
		case errors.Is(err, ErrOAuthEmailRequired):
			h.failOAuth(w, r, httperrors.ErrCodeOAuthMissingEmail, err.Error())
		case errors.Is(err, ErrAccountDisabled):
			h.failOAuth(w, r, httperrors.ErrCodeAccountDisabled, err.Error())
		case errors.Is(err, ErrProviderAlreadyLinked):
			h.failOAuth(w, r, httperrors.ErrCodeOAuthLinkConflict, err.Error())
		default:
			h.writeError(w, r, err)
		}
		return
	}

	tokens, err := h.svc.IssueTokens(user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setTokenCookies(w, tokens)
	if h.svc.sessions != nil {
		sid, err := h.svc.sessions.Create(r.Context(), user.ID)
		if err != nil {
			logger.Warn().Err(err).Msg("create session failed")
		} else {
			h.opts.Cookies.set(w, SessionCookie, sid, 0)
		}
	}

	if wantsJSON(r) {
		render.JSON(w, http.StatusOK, AuthResponse{User: user, TokenPair: *tokens})
		return
	}
	http.Redirect(w, r, h.opts.FrontendURL+"/auth/callback?status=success", http.StatusFound)
}

// failOAuth redirects browsers back to the frontend with an error code.
func (h *HTTPHandlers) failOAuth(w http.ResponseWriter, r *http.Request, code, message string) {
	if wantsJSON(r) || h.opts.FrontendURL == "" {
		httperrors.RespondBadRequest(w, code, message)
		return
	}
	target := h.opts.FrontendURL + "/login?error=" + url.QueryEscape(code)
	http.Redirect(w, r, target, http.StatusFound)
}

func wantsJSON(r *http.Request) bool {
	return r.URL.Query().Get("mode") == "json" || strings.Contains(r.Header.Get("Accept"), "application/json")
}

// ChangePassword handles PUT /api/settings/password
func (h *HTTPHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !render.Decode(w, r, &req) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), UserID(r.Context()), req); err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// DeleteAccount handles DELETE /api/settings/account
func (h *HTTPHandlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req DeleteAccountRequest
	if !render.Decode(w, r, &req) {
		return
	}
	if err := h.svc.DeleteAccount(r.Context(), UserID(r.Context()), req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	if sid := cookieValue(r, SessionCookie); sid != "" && h.svc.sessions != nil {
		_ = h.svc.sessions.Destroy(r.Context(), sid)
	}
	h.opts.Cookies.clear(w, AccessCookie)
	h.opts.Cookies.clear(w, RefreshCookie)
	h.opts.Cookies.clear(w, SessionCookie)
	render.JSON(w, http.StatusOK, map[string]string{"message": "Account deleted"})
}

func (h *HTTPHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidCredentials, err.Error())
	case errors.Is(err, ErrAccountDisabled):
		httperrors.RespondForbidden(w, httperrors.ErrCodeAccountDisabled, err.Error())
	case errors.Is(err, jwt.ErrExpiredToken):
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeTokenExpired, "Refresh token expired")
	case errors.Is(err, jwt.ErrInvalidToken):
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid token")
	case errors.Is(err, ErrUserNotFound):
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeUserNotFound, err.Error())
	case errors.Is(err, ErrEmailTaken):
		httperrors.RespondFieldConflict(w, httperrors.ErrCodeEmailTaken, err.Error(), "email")
	case errors.Is(err, ErrUsernameTaken):
		httperrors.RespondFieldConflict(w, httperrors.ErrCodeUsernameTaken, err.Error(), "username")
	case errors.Is(err, models.ErrInvalidUsername):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "username")
	case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong), errors.Is(err, ErrPasswordTooWeak):
		httperrors.RespondValidationError(w, httperrors.ErrCodeWeakPassword, err.Error(), "password")
	case errors.Is(err, ErrInvalidResetToken):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeResetFailed, err.Error())
	case errors.Is(err, ErrResetUnavailable):
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, err.Error())
	case errors.Is(err, repository.ErrDuplicate):
		httperrors.RespondConflict(w, httperrors.ErrCodeConflict, "Resource already exists")
	default:
		logging.FromContext(r.Context()).Error().Err(err).Msg("auth request failed")
		httperrors.RespondServiceError(w, err, h.opts.Production)
	}
}
