package quiz

import (
	"context"
	"errors"

	"github.com/zart/quizzer/internal/models"
	"github.com/zart/quizzer/internal/quiz/scoring"
)

const (
	MaxTopicLength       = 200
	MaxDescriptionLength = 1000
	DefaultQuestionCount = 5
	MaxQuestionCount     = 20
	DefaultPageSize      = 12
	MaxPageSize          = 50
	MaxTimeLimitSeconds  = 3 * 60 * 60
)

var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrPromptNotFound   = errors.New("prompt not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrForbidden        = errors.New("not allowed to modify this quiz")
	ErrGenerationFailed = errors.New("quiz generation failed")
	ErrEmptySubmission  = errors.New("at least one answer is required")
	ErrEmptyQuery       = errors.New("search query is required")
	ErrInvalidQuestions = errors.New("questions are invalid")
	ErrInvalidTopic     = errors.New("topic must be 1-200 characters")
)

// StatsRecorder updates lifetime counters and awards badges.
type StatsRecorder interface {
	RecordQuizCreated(ctx context.Context, userID string) ([]models.Badge, error)
	RecordAttempt(ctx context.Context, attempt *models.QuizAttempt) ([]models.Badge, error)
}

// PointsRecorder feeds the leaderboard.
type PointsRecorder interface {
	RecordPoints(ctx context.Context, userID, username string, points int) error
}

// SearchRecorder counts search strings.
type SearchRecorder interface {
	Record(ctx context.Context, raw string) (string, error)
}

// GenerateRequest is the body of POST /api/quizzes/generate.
type GenerateRequest struct {
	Topic             string   `json:"topic" validate:"required,max=200"`
	Description       string   `json:"description" validate:"max=1000"`
	Difficulty        string   `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	NumberOfQuestions int      `json:"numberOfQuestions" validate:"omitempty,min=1,max=20"`
	QuizType          string   `json:"quizType" validate:"omitempty,oneof=multiple-choice true-false mixed"`
	IsPublic          *bool    `json:"isPublic"`
	IsTimed           bool     `json:"isTimed"`
	TimeLimit         int      `json:"timeLimit" validate:"min=0,max=10800"`
	Tags              []string `json:"tags" validate:"max=10,dive,max=40"`
}

// SubmitRequest is the body of POST /api/quizzes/{id}/submit.
type SubmitRequest struct {
	Answers   []scoring.Submission `json:"answers" validate:"required,min=1,dive"`
	TimeTaken int                  `json:"timeTaken" validate:"min=0"`
}

// SubmitResult is returned after grading an attempt.
type SubmitResult struct {
	AttemptID    string          `json:"attemptId"`
	Score        int             `json:"score"`
	Total        int             `json:"total"`
	Percentage   int             `json:"percentage"`
	PointsEarned int             `json:"pointsEarned"`
	Answers      []models.Answer `json:"answers"`
	NewBadges    []models.Badge  `json:"newBadges,omitempty"`
}

// GenerateResult is returned after a quiz was generated.
type GenerateResult struct {
	Quiz      *models.Quiz   `json:"quiz"`
	PromptID  string         `json:"promptId"`
	NewBadges []models.Badge `json:"newBadges,omitempty"`
}

// UpdateRequest is the body of PATCH /api/quizzes/{id}.
type UpdateRequest struct {
	Topic       *string           `json:"topic" validate:"omitempty,min=1,max=200"`
	Description *string           `json:"description" validate:"omitempty,max=1000"`
	IsPublic    *bool             `json:"isPublic"`
	IsTimed     *bool             `json:"isTimed"`
	TimeLimit   *int              `json:"timeLimit" validate:"omitempty,min=0,max=10800"`
	Tags        []string          `json:"tags" validate:"omitempty,max=10,dive,max=40"`
	Questions   []models.Question `json:"questions" validate:"omitempty,min=1,max=20"`
}

// VisibilityRequest is the body of PATCH /api/quizzes/{id}/visibility.
type VisibilityRequest struct {
	IsPublic *bool `json:"isPublic" validate:"required"`
}

// ListParams are the paging, sort and filter options of list endpoints.
type ListParams struct {
	Page       int
	Limit      int
	Sort       string
	Difficulty string
	QuizType   string
	Tag        string
	Query      string
}

// Page is a paged list of quiz summaries.
type Page struct {
	Quizzes    []models.QuizSummary `json:"quizzes"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
	TotalPages int64                `json:"totalPages"`
}

// QuizView is a quiz plus the caller's relation to it.
type QuizView struct {
	*models.Quiz
	IsOwner bool `json:"isOwner"`
	IsSaved bool `json:"isSaved"`
}

// HistoryEntry is one attempt with a summary of its quiz.
type HistoryEntry struct {
	models.QuizAttempt
	Percentage int                 `json:"percentage"`
	Quiz       *models.QuizSummary `json:"quiz,omitempty"`
}

// History is a paged list of the caller's attempts.
type History struct {
	Attempts []HistoryEntry `json:"attempts"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	Limit    int            `json:"limit"`
}

// AttemptView is a single attempt result with its full quiz.
type AttemptView struct {
	Attempt    *models.QuizAttempt `json:"attempt"`
	Percentage int                 `json:"percentage"`
	Quiz       *models.Quiz        `json:"quiz,omitempty"`
}
