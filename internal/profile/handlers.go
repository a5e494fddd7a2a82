package profile

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/zart/quizzer/internal/auth"
	"github.com/zart/quizzer/internal/logging"
	"github.com/zart/quizzer/internal/models"
	httperrors "github.com/zart/quizzer/pkg/http/errors"
	"github.com/zart/quizzer/pkg/http/render"
)

// HTTPHandlers exposes /api/profile.
type HTTPHandlers struct {
	svc        *Service
	production bool
	logger     zerolog.Logger
}

func NewHTTPHandlers(svc *Service, production bool, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{svc: svc, production: production, logger: logger.With().Str("component", "profile_http").Logger()}
}

// Me handles GET /api/profile/me
func (h *HTTPHandlers) Me(w http.ResponseWriter, r *http.Request) {
	me, err := h.svc.Me(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, me)
}

// Update handles PUT /api/profile/me
func (h *HTTPHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !render.Decode(w, r, &req) {
		return
	}
	p, err := h.svc.Update(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, p)
}

// UpdateAccount handles PUT /api/profile/me/account
func (h *HTTPHandlers) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if !render.Decode(w, r, &req) {
		return
	}
	user, err := h.svc.UpdateAccount(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{"user": user})
}

// Public handles GET /api/profile/{username}
func (h *HTTPHandlers) Public(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Public(r.Context(), r.PathValue("username"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, view)
}

func (h *HTTPHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeUserNotFound, "User not found")
	case errors.Is(err, ErrUsernameTaken):
		httperrors.RespondConflict(w, httperrors.ErrCodeUsernameTaken, "Username is already taken")
	case errors.Is(err, models.ErrInvalidUsername):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "username")
	default:
		logging.FromContext(r.Context()).Error().Err(err).Msg("profile request failed")
		httperrors.RespondServiceError(w, err, h.production)
	}
}
