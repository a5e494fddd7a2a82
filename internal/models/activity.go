package models

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// Answer is one scored response inside an attempt.
type Answer struct {
	QuestionID     string `json:"questionId" bson:"questionId"`
	SelectedAnswer string `json:"selectedAnswer" bson:"selectedAnswer"`
	IsCorrect      bool   `json:"isCorrect" bson:"isCorrect"`
	CorrectAnswer  string `json:"correctAnswer" bson:"correctAnswer"`
	Explanation    string `json:"explanation,omitempty" bson:"explanation,omitempty"`
}

// QuizAttempt is immutable once written.
type QuizAttempt struct {
	ID             string    `json:"id" bson:"_id"`
	UserID         string    `json:"userId" bson:"userId"`
	QuizID         string    `json:"quizId" bson:"quizId"`
	Answers        []Answer  `json:"answers" bson:"answers"`
	Score          int       `json:"score" bson:"score"`
	TotalQuestions int       `json:"totalQuestions" bson:"totalQuestions"`
	PointsEarned   int       `json:"pointsEarned" bson:"pointsEarned"`
	TimeTaken      int       `json:"timeTaken" bson:"timeTaken"`
	SubmittedAt    time.Time `json:"submittedAt" bson:"submittedAt"`
}

// Percentage is the score as a whole-number percentage of the total.
func (a *QuizAttempt) Percentage() int {
	if a.TotalQuestions == 0 {
		return 0
	}
	return a.Score * 100 / a.TotalQuestions
}

// QuizRating is unique per (user, quiz).
type QuizRating struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"userId" bson:"userId"`
	QuizID    string    `json:"quizId" bson:"quizId"`
	Rating    int       `json:"rating" bson:"rating"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// RatingStats is the aggregate shown next to a quiz.
type RatingStats struct {
	Count   int64   `json:"count"`
	Average float64 `json:"average"`
}

// SavedQuiz is a bookmark, unique per (user, quiz).
type SavedQuiz struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"userId" bson:"userId"`
	QuizID    string    `json:"quizId" bson:"quizId"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// SearchQuery counts uses of a normalized search string.
type SearchQuery struct {
	ID           string    `json:"id" bson:"_id"`
	Query        string    `json:"query" bson:"query"`
	Count        int64     `json:"count" bson:"count"`
	LastSearched time.Time `json:"lastSearched" bson:"lastSearched"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeQuery lower-cases, trims and collapses inner whitespace.
func NormalizeQuery(q string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(q)), " ")
}

// Rounded returns the stats with the average rounded to two decimals.
func (s RatingStats) Rounded() RatingStats {
	s.Average = math.Round(s.Average*100) / 100
	return s
}
