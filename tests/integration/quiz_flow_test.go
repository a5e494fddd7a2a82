//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zart/quizzer/internal/quiz"
	"github.com/zart/quizzer/internal/quiz/scoring"
	"github.com/zart/quizzer/pkg/client"
)

// TestQuizLifecycle needs a configured generator (AI_GENERATOR_URL or GEMINI_API_KEY).
func TestQuizLifecycle(t *testing.T) {
	author := registerUser(t, "author")
	taker := registerUser(t, "taker")

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	gen, err := author.Client.GenerateQuiz(ctx, quiz.GenerateRequest{
		Topic:             "Basic arithmetic",
		Difficulty:        "easy",
		NumberOfQuestions: 3,
		QuizType:          "multiple-choice",
	})
	if client.StatusOf(err) == http.StatusBadGateway {
		t.Skip("quiz generator not available")
	}
	require.NoError(t, err)
	require.NotEmpty(t, gen.Quiz.Questions)
	quizID := gen.Quiz.ID

	// The taker sees the quiz without answers.
	view, err := taker.Client.Quiz(ctx, quizID, false)
	require.NoError(t, err)
	assert.False(t, view.IsOwner)
	for _, q := range view.Questions {
		assert.Empty(t, q.CorrectAnswer)
	}

	// The owner sees answers and can answer everything correctly.
	own, err := author.Client.Quiz(ctx, quizID, false)
	require.NoError(t, err)
	answers := make([]scoring.Submission, 0, len(own.Questions))
	for _, q := range own.Questions {
		answers = append(answers, scoring.Submission{QuestionID: q.ID, SelectedAnswer: q.CorrectAnswer})
	}

	res, err := taker.Client.Submit(ctx, quizID, quiz.SubmitRequest{Answers: answers, TimeTaken: 42})
	require.NoError(t, err)
	assert.Equal(t, len(own.Questions), res.Score)
	assert.Equal(t, 100, res.Percentage)
	assert.Positive(t, res.PointsEarned)

	stats, err := taker.Client.MyStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.QuizzesCompleted)

	rated, err := taker.Client.Rate(ctx, quizID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, rated.UserRating)
	assert.EqualValues(t, 1, rated.Stats.Count)

	require.NoError(t, taker.Client.SaveQuiz(ctx, quizID))

	page, err := taker.Client.Search(ctx, "arithmetic")
	require.NoError(t, err)
	assert.NotZero(t, page.Total)
}

func TestExploreIsPublic(t *testing.T) {
	c := client.New(client.Options{BaseURL: baseURL()})

	page, err := c.Explore(context.Background(), 1, 5, "newest")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(page.Quizzes), 5)
	assert.Equal(t, 1, page.Page)
}
