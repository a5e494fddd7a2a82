package ai

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/zart/quizzer/internal/models"
)

var (
	ErrNotConfigured = errors.New("question generator not configured")
	ErrEmptyResult   = errors.New("generator returned no questions")
)

// Request describes the questions to author.
type Request struct {
	Topic       string `json:"topic"`
	Description string `json:"description,omitempty"`
	Difficulty  string `json:"difficulty"`
	QuizType    string `json:"quizType"`
	Count       int    `json:"count"`
}

// Question is the wire shape exchanged with generator services.
type Question struct {
	ID          string   `json:"id,omitempty"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options,omitempty"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
	Type        string   `json:"type,omitempty"`
}

// Response is the body returned by POST /generate.
type Response struct {
	Questions []Question `json:"questions"`
}

// Generator authors raw questions for a topic.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]Question, error)
}

// Normalize converts raw generator output into quiz questions. Missing ids are
// filled, true-false options defaulted, the answer folded into the option set
// and anything still invalid is dropped. At most limit questions are returned
// when limit > 0.
func Normalize(raw []Question, quizType string, limit int) []models.Question {
	out := make([]models.Question, 0, len(raw))
	for _, r := range raw {
		q, ok := normalizeQuestion(r, quizType)
		if !ok {
			continue
		}
		out = append(out, q)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func normalizeQuestion(r Question, quizType string) (models.Question, bool) {
	q := models.Question{
		ID:            strings.TrimSpace(r.ID),
		QuestionText:  strings.TrimSpace(r.Prompt),
		CorrectAnswer: strings.TrimSpace(r.Answer),
		Explanation:   strings.TrimSpace(r.Explanation),
		Options:       cleanOptions(r.Options),
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.Type = questionType(r.Type, quizType, q.Options)

	switch q.Type {
	case models.QuizTypeTrueFalse:
		if len(q.Options) == 0 {
			q.Options = slices.Clone(models.TrueFalseOptions)
		}
	case models.QuizTypeMultipleChoice:
		if q.CorrectAnswer != "" && !slices.Contains(q.Options, q.CorrectAnswer) {
			q.Options = append(q.Options, q.CorrectAnswer)
		}
	}
	q.CorrectAnswer = matchOption(q.Options, q.CorrectAnswer)

	if q.CorrectAnswer == "" || q.Validate() != nil {
		return models.Question{}, false
	}
	return q, true
}

func questionType(raw, quizType string, options []string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true-false", "true_false", "truefalse", "tf", "boolean":
		return models.QuizTypeTrueFalse
	case "multiple-choice", "multiple_choice", "mcq", "mc":
		return models.QuizTypeMultipleChoice
	}
	if quizType == models.QuizTypeTrueFalse || quizType == models.QuizTypeMultipleChoice {
		return quizType
	}
	if len(options) == 0 || isTrueFalse(options) {
		return models.QuizTypeTrueFalse
	}
	return models.QuizTypeMultipleChoice
}

func isTrueFalse(options []string) bool {
	if len(options) != 2 {
		return false
	}
	return strings.EqualFold(options[0], "true") && strings.EqualFold(options[1], "false")
}

// matchOption returns the option spelled like answer, ignoring case.
func matchOption(options []string, answer string) string {
	if slices.Contains(options, answer) {
		return answer
	}
	for _, opt := range options {
		if strings.EqualFold(opt, answer) {
			return opt
		}
	}
	return answer
}

func cleanOptions(options []string) []string {
	if len(options) == 0 {
		return nil
	}
	out := make([]string, 0, len(options))
	for _, opt := range options {
		opt = strings.TrimSpace(opt)
		if opt == "" || slices.Contains(out, opt) {
			continue
		}
		out = append(out, opt)
	}
	return out
}
