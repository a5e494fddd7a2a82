package search

import (
	"net/http"
	"strconv"

	"github.com/zart/quizzer/internal/logging"
	httperrors "github.com/zart/quizzer/pkg/http/errors"
	"github.com/zart/quizzer/pkg/http/render"
)

// HTTPHandlers exposes the popular search list.
type HTTPHandlers struct {
	tracker    *Tracker
	production bool
}

func NewHTTPHandlers(tracker *Tracker, production bool) *HTTPHandlers {
	return &HTTPHandlers{tracker: tracker, production: production}
}

// Popular handles GET /api/quizzes/search/popular?limit=
func (h *HTTPHandlers) Popular(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "limit must be a positive integer", "limit")
			return
		}
		limit = n
	}
	queries, err := h.tracker.Popular(r.Context(), limit)
	if err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Msg("popular searches failed")
		httperrors.RespondServiceError(w, err, h.production)
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{"searches": queries})
}
