package rating

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/zart/quizzer/internal/auth"
	"github.com/zart/quizzer/internal/logging"
	httperrors "github.com/zart/quizzer/pkg/http/errors"
	"github.com/zart/quizzer/pkg/http/render"
)

// RateRequest is the body of POST /api/ratings/{quizId}.
type RateRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

// HTTPHandlers exposes /api/ratings.
type HTTPHandlers struct {
	svc        *Service
	production bool
	logger     zerolog.Logger
}

func NewHTTPHandlers(svc *Service, production bool, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{svc: svc, production: production, logger: logger.With().Str("component", "rating_http").Logger()}
}

// Rate handles POST /api/ratings/{quizId}
func (h *HTTPHandlers) Rate(w http.ResponseWriter, r *http.Request) {
	var req RateRequest
	if !render.Decode(w, r, &req) {
		return
	}
	res, err := h.svc.Rate(r.Context(), auth.UserID(r.Context()), r.PathValue("quizId"), req.Rating)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{
		"message":    "Rating saved",
		"stats":      res.Stats,
		"userRating": res.UserRating,
	})
}

// Stats handles GET /api/ratings/{quizId}/stats
func (h *HTTPHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), auth.UserID(r.Context()), r.PathValue("quizId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, stats)
}

// Mine handles GET /api/ratings/{quizId}/me
func (h *HTTPHandlers) Mine(w http.ResponseWriter, r *http.Request) {
	rating, err := h.svc.UserRating(r.Context(), auth.UserID(r.Context()), r.PathValue("quizId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var value *int
	if rating != nil {
		value = &rating.Rating
	}
	render.JSON(w, http.StatusOK, map[string]any{"rating": value})
}

func (h *HTTPHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidRating):
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRating, err.Error(), "rating")
	case errors.Is(err, ErrQuizNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeQuizNotFound, "Quiz not found")
	default:
		logging.FromContext(r.Context()).Error().Err(err).Msg("rating request failed")
		httperrors.RespondServiceError(w, err, h.production)
	}
}
