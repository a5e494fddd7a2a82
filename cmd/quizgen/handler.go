package main

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/zart/quizzer/internal/logging"
	"github.com/zart/quizzer/internal/quiz/ai"
	httperrors "github.com/zart/quizzer/pkg/http/errors"
	"github.com/zart/quizzer/pkg/http/render"
)

type generateRequest struct {
	Topic       string `json:"topic" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Difficulty  string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	QuizType    string `json:"quizType" validate:"omitempty,oneof=multiple-choice true-false mixed"`
	Count       int    `json:"count" validate:"min=1,max=20"`
}

type generateHandler struct {
	generator ai.Generator
	apiKey    string
}

// ServeHTTP handles POST /generate with the same body the API's remote generator sends.
func (h *generateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.apiKey != "" && !h.authorized(r) {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid generator key")
		return
	}

	var req generateRequest
	if !render.Decode(w, r, &req) {
		return
	}

	questions, err := h.generator.Generate(r.Context(), ai.Request(req))
	switch {
	case err == nil:
		render.JSON(w, http.StatusOK, ai.Response{Questions: questions})
	case errors.Is(err, ai.ErrEmptyResult):
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeGenerationFailed, err.Error())
	default:
		logging.FromContext(r.Context()).Error().Err(err).Str("topic", req.Topic).Msg("generation failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeGenerationFailed, "Upstream model call failed")
	}
}

func (h *generateHandler) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(token), []byte(h.apiKey)) == 1
}
