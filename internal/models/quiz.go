package models

import (
	"errors"
	"slices"
	"time"
)

// Quiz types.
const (
	QuizTypeMultipleChoice = "multiple-choice"
	QuizTypeTrueFalse      = "true-false"
	QuizTypeMixed          = "mixed"
)

// Difficulties.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

var (
	ErrTooFewOptions       = errors.New("multiple-choice questions need at least two options")
	ErrAnswerNotInOptions  = errors.New("correct answer must be one of the options")
	ErrEmptyQuestionText   = errors.New("question text is required")
	ErrUnknownQuestionType = errors.New("unknown question type")
)

// TrueFalseOptions is the option set used when a true-false question omits one.
var TrueFalseOptions = []string{"True", "False"}

// Question is embedded in a Quiz, in order.
type Question struct {
	ID            string   `json:"id" bson:"id"`
	QuestionText  string   `json:"questionText" bson:"questionText"`
	Options       []string `json:"options,omitempty" bson:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty" bson:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty" bson:"explanation,omitempty"`
	Type          string   `json:"type" bson:"type"`
}

// Validate checks the option invariants for the question type.
func (q *Question) Validate() error {
	if q.QuestionText == "" {
		return ErrEmptyQuestionText
	}
	switch q.Type {
	case QuizTypeMultipleChoice:
		if len(q.Options) < 2 {
			return ErrTooFewOptions
		}
	case QuizTypeTrueFalse:
		if len(q.Options) == 0 {
			break
		}
	default:
		return ErrUnknownQuestionType
	}
	if len(q.Options) > 0 && !slices.Contains(q.Options, q.CorrectAnswer) {
		return ErrAnswerNotInOptions
	}
	return nil
}

// Quiz is a generated set of questions.
type Quiz struct {
	ID            string     `json:"id" bson:"_id"`
	Topic         string     `json:"topic" bson:"topic"`
	Description   string     `json:"description,omitempty" bson:"description,omitempty"`
	QuizType      string     `json:"quizType" bson:"quizType"`
	Difficulty    string     `json:"difficulty" bson:"difficulty"`
	IsPublic      bool       `json:"isPublic" bson:"isPublic"`
	IsTimed       bool       `json:"isTimed" bson:"isTimed"`
	TimeLimit     int        `json:"timeLimit,omitempty" bson:"timeLimit,omitempty"`
	Questions     []Question `json:"questions" bson:"questions"`
	Tags          []string   `json:"tags,omitempty" bson:"tags,omitempty"`
	PromptID      string     `json:"promptId,omitempty" bson:"promptId,omitempty"`
	CreatedBy     string     `json:"createdBy" bson:"createdBy"`
	AttemptCount  int64      `json:"attemptCount" bson:"attemptCount"`
	RatingCount   int64      `json:"ratingCount" bson:"ratingCount"`
	RatingAverage float64    `json:"ratingAverage" bson:"ratingAverage"`
	CreatedAt     time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// QuestionByID finds an embedded question.
func (q *Quiz) QuestionByID(id string) (*Question, bool) {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return &q.Questions[i], true
		}
	}
	return nil, false
}

// Preview returns a copy with correct answers and explanations removed.
func (q *Quiz) Preview() *Quiz {
	cp := *q
	cp.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.CorrectAnswer = ""
		question.Explanation = ""
		cp.Questions[i] = question
	}
	return &cp
}

// Summary drops the embedded questions for list views.
func (q *Quiz) Summary() QuizSummary {
	return QuizSummary{
		ID:            q.ID,
		Topic:         q.Topic,
		Description:   q.Description,
		QuizType:      q.QuizType,
		Difficulty:    q.Difficulty,
		IsPublic:      q.IsPublic,
		IsTimed:       q.IsTimed,
		TimeLimit:     q.TimeLimit,
		QuestionCount: len(q.Questions),
		Tags:          q.Tags,
		CreatedBy:     q.CreatedBy,
		AttemptCount:  q.AttemptCount,
		RatingCount:   q.RatingCount,
		RatingAverage: q.RatingAverage,
		CreatedAt:     q.CreatedAt,
	}
}

// QuizSummary is the list representation of a quiz.
type QuizSummary struct {
	ID            string    `json:"id"`
	Topic         string    `json:"topic"`
	Description   string    `json:"description,omitempty"`
	QuizType      string    `json:"quizType"`
	Difficulty    string    `json:"difficulty"`
	IsPublic      bool      `json:"isPublic"`
	IsTimed       bool      `json:"isTimed"`
	TimeLimit     int       `json:"timeLimit,omitempty"`
	QuestionCount int       `json:"questionCount"`
	Tags          []string  `json:"tags,omitempty"`
	CreatedBy     string    `json:"createdBy"`
	AttemptCount  int64     `json:"attemptCount"`
	RatingCount   int64     `json:"ratingCount"`
	RatingAverage float64   `json:"ratingAverage"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Summaries maps a slice of quizzes to their list form.
func Summaries(quizzes []Quiz) []QuizSummary {
	out := make([]QuizSummary, 0, len(quizzes))
	for i := range quizzes {
		out = append(out, quizzes[i].Summary())
	}
	return out
}

// QuizPrompt records the generation parameters behind a quiz.
type QuizPrompt struct {
	ID                string    `json:"id" bson:"_id"`
	UserID            string    `json:"userId" bson:"userId"`
	Topic             string    `json:"topic" bson:"topic"`
	Difficulty        string    `json:"difficulty" bson:"difficulty"`
	NumberOfQuestions int       `json:"numberOfQuestions" bson:"numberOfQuestions"`
	QuizType          string    `json:"quizType" bson:"quizType"`
	Description       string    `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt         time.Time `json:"createdAt" bson:"createdAt"`
}

// IsValidDifficulty reports whether d is a known difficulty.
func IsValidDifficulty(d string) bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// IsValidQuizType reports whether t is a known quiz type.
func IsValidQuizType(t string) bool {
	return t == QuizTypeMultipleChoice || t == QuizTypeTrueFalse || t == QuizTypeMixed
}
