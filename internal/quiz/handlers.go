package quiz

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/zart/quizzer/internal/auth"
	"github.com/zart/quizzer/internal/logging"
	"github.com/zart/quizzer/internal/models"
	httperrors "github.com/zart/quizzer/pkg/http/errors"
	"github.com/zart/quizzer/pkg/http/render"
)

// HTTPHandlers exposes /api/quizzes.
type HTTPHandlers struct {
	svc        *Service
	production bool
	logger     zerolog.Logger
}

func NewHTTPHandlers(svc *Service, production bool, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{svc: svc, production: production, logger: logger.With().Str("component", "quiz_http").Logger()}
}

func currentUser(r *http.Request) *models.User {
	u, _ := auth.UserFromContext(r.Context())
	return u
}

// Generate handles POST /api/quizzes/generate
func (h *HTTPHandlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !render.Decode(w, r, &req) {
		return
	}
	res, err := h.svc.Generate(r.Context(), currentUser(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, res)
}

// Regenerate handles POST /api/quizzes/prompts/{promptId}/regenerate
func (h *HTTPHandlers) Regenerate(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Regenerate(r.Context(), currentUser(r), r.PathValue("promptId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, res)
}

// Get handles GET /api/quizzes/{id}?preview=true
func (h *HTTPHandlers) Get(w http.ResponseWriter, r *http.Request) {
	preview, _ := strconv.ParseBool(r.URL.Query().Get("preview"))
	view, err := h.svc.Get(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), preview)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, view)
}

// Submit handles POST /api/quizzes/{id}/submit
func (h *HTTPHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !render.Decode(w, r, &req) {
		return
	}
	res, err := h.svc.Submit(r.Context(), currentUser(r), r.PathValue("id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, res)
}

// Save handles POST /api/quizzes/{id}/save
func (h *HTTPHandlers) Save(w http.ResponseWriter, r *http.Request) {
	created, err := h.svc.Save(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	msg := "Quiz saved"
	if !created {
		msg = "Quiz already saved"
	}
	render.JSON(w, http.StatusOK, map[string]any{"saved": true, "message": msg})
}

// Unsave handles DELETE /api/quizzes/{id}/save
func (h *HTTPHandlers) Unsave(w http.ResponseWriter, r *http.Request) {
	removed, err := h.svc.Unsave(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{"saved": false, "removed": removed})
}

// Update handles PATCH /api/quizzes/{id}
func (h *HTTPHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !render.Decode(w, r, &req) {
		return
	}
	quiz, err := h.svc.Update(r.Context(), currentUser(r), r.PathValue("id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, quiz)
}

// Visibility handles PATCH /api/quizzes/{id}/visibility
func (h *HTTPHandlers) Visibility(w http.ResponseWriter, r *http.Request) {
	var req VisibilityRequest
	if !render.Decode(w, r, &req) {
		return
	}
	quiz, err := h.svc.SetVisibility(r.Context(), currentUser(r), r.PathValue("id"), *req.IsPublic)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{"id": quiz.ID, "isPublic": quiz.IsPublic})
}

// Delete handles DELETE /api/quizzes/{id}
func (h *HTTPHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), currentUser(r), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]string{"message": "Quiz deleted"})
}

// Recent handles GET /api/quizzes/recent
func (h *HTTPHandlers) Recent(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Recent(r.Context(), auth.UserID(r.Context()))
	h.respondList(w, r, list, err)
}

// Recommended handles GET /api/quizzes/recommended
func (h *HTTPHandlers) Recommended(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Recommended(r.Context(), auth.UserID(r.Context()))
	h.respondList(w, r, list, err)
}

// Saved handles GET /api/quizzes/saved
func (h *HTTPHandlers) Saved(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Saved(r.Context(), auth.UserID(r.Context()))
	h.respondList(w, r, list, err)
}

// Trending handles GET /api/quizzes/trending?limit=
func (h *HTTPHandlers) Trending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.svc.Trending(r.Context(), limit)
	h.respondList(w, r, list, err)
}

func (h *HTTPHandlers) respondList(w http.ResponseWriter, r *http.Request, list []models.QuizSummary, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{"quizzes": list})
}

// Explore handles GET /api/quizzes/explore
func (h *HTTPHandlers) Explore(w http.ResponseWriter, r *http.Request) {
	params, ok := listParams(w, r)
	if !ok {
		return
	}
	page, err := h.svc.Explore(r.Context(), params)
	h.respondPage(w, r, page, err)
}

// Search handles GET /api/quizzes/search?q=
func (h *HTTPHandlers) Search(w http.ResponseWriter, r *http.Request) {
	params, ok := listParams(w, r)
	if !ok {
		return
	}
	page, err := h.svc.Search(r.Context(), params)
	h.respondPage(w, r, page, err)
}

// ByUser handles GET /api/quizzes/user/{userId}
func (h *HTTPHandlers) ByUser(w http.ResponseWriter, r *http.Request) {
	params, ok := listParams(w, r)
	if !ok {
		return
	}
	page, err := h.svc.ByUser(r.Context(), auth.UserID(r.Context()), r.PathValue("userId"), params)
	h.respondPage(w, r, page, err)
}

func (h *HTTPHandlers) respondPage(w http.ResponseWriter, r *http.Request, page *Page, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, page)
}

// History handles GET /api/quizzes/history?page=&limit=
func (h *HTTPHandlers) History(w http.ResponseWriter, r *http.Request) {
	params, ok := listParams(w, r)
	if !ok {
		return
	}
	history, err := h.svc.History(r.Context(), auth.UserID(r.Context()), params.Page, params.Limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, history)
}

// Attempt handles GET /api/quizzes/attempts/{attemptId}
func (h *HTTPHandlers) Attempt(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Attempt(r.Context(), auth.UserID(r.Context()), r.PathValue("attemptId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, view)
}

// listParams parses page, limit, sort and filters, writing a 400 on bad input.
func listParams(w http.ResponseWriter, r *http.Request) (ListParams, bool) {
	q := r.URL.Query()
	p := ListParams{
		Sort:       q.Get("sort"),
		Difficulty: q.Get("difficulty"),
		QuizType:   q.Get("quizType"),
		Tag:        q.Get("tag"),
		Query:      q.Get("q"),
	}
	for name, dst := range map[string]*int{"page": &p.Page, "limit": &p.Limit} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, name+" must be a positive integer", name)
			return p, false
		}
		*dst = n
	}
	switch {
	case !IsValidSort(p.Sort):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "sort must be one of newest, oldest, popular, rating", "sort")
		return p, false
	case p.Difficulty != "" && !models.IsValidDifficulty(p.Difficulty):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "difficulty must be easy, medium or hard", "difficulty")
		return p, false
	case p.QuizType != "" && !models.IsValidQuizType(p.QuizType):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "unknown quizType", "quizType")
		return p, false
	}
	return p, true
}

func (h *HTTPHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrQuizNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeQuizNotFound, "Quiz not found")
	case errors.Is(err, ErrPromptNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodePromptNotFound, "Prompt not found")
	case errors.Is(err, ErrAttemptNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeAttemptNotFound, "Attempt not found")
	case errors.Is(err, ErrForbidden):
		httperrors.RespondForbidden(w, httperrors.ErrCodeForbidden, "Only the creator can modify this quiz")
	case errors.Is(err, ErrEmptySubmission):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "answers")
	case errors.Is(err, ErrEmptyQuery):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "q")
	case errors.Is(err, ErrInvalidTopic):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "topic")
	case errors.Is(err, ErrInvalidQuestions):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "questions")
	case errors.Is(err, ErrGenerationFailed):
		logging.FromContext(r.Context()).Warn().Err(err).Msg("quiz generation failed")
		msg := "Could not generate questions, please try again"
		if !h.production {
			msg = err.Error()
		}
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeGenerationFailed, msg)
	default:
		logging.FromContext(r.Context()).Error().Err(err).Msg("quiz request failed")
		httperrors.RespondServiceError(w, err, h.production)
	}
}
