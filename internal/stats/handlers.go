package stats

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/zart/quizzer/internal/auth"
	"github.com/zart/quizzer/internal/logging"
	httperrors "github.com/zart/quizzer/pkg/http/errors"
	"github.com/zart/quizzer/pkg/http/render"
)

// HTTPHandlers exposes /api/statistics.
type HTTPHandlers struct {
	svc        *Service
	production bool
	logger     zerolog.Logger
}

func NewHTTPHandlers(svc *Service, production bool, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{svc: svc, production: production, logger: logger.With().Str("component", "stats_http").Logger()}
}

// Me handles GET /api/statistics/me
func (h *HTTPHandlers) Me(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Get(r.Context(), auth.UserID(r.Context()))
	h.respond(w, r, summary, err)
}

// User handles GET /api/statistics/users/{userId}
func (h *HTTPHandlers) User(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.ForUser(r.Context(), r.PathValue("userId"))
	h.respond(w, r, summary, err)
}

func (h *HTTPHandlers) respond(w http.ResponseWriter, r *http.Request, summary *Summary, err error) {
	if errors.Is(err, ErrUserNotFound) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeUserNotFound, "User not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Msg("load statistics failed")
		httperrors.RespondServiceError(w, err, h.production)
		return
	}
	render.JSON(w, http.StatusOK, summary)
}

// Global handles GET /api/statistics/global
func (h *HTTPHandlers) Global(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Global(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Msg("load global statistics failed")
		httperrors.RespondServiceError(w, err, h.production)
		return
	}
	render.JSON(w, http.StatusOK, g)
}
