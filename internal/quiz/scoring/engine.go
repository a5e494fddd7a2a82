package scoring

import "github.com/zart/quizzer/internal/models"

// Config holds the point weights per difficulty.
type Config struct {
	EasyWeight   int     // default: 10
	MediumWeight int     // default: 20
	HardWeight   int     // default: 30
	PerfectBonus float64 // default: 0.50 of the base points
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		EasyWeight:   10,
		MediumWeight: 20,
		HardWeight:   30,
		PerfectBonus: 0.50,
	}
}

// Engine grades submissions and computes leaderboard points.
type Engine struct {
	config Config
}

// NewEngine creates a scoring engine with the provided config.
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// Submission is one answer sent by the client.
type Submission struct {
	QuestionID     string `json:"questionId" validate:"required"`
	SelectedAnswer string `json:"selectedAnswer"`
}

// Result is the outcome of grading one submission set.
type Result struct {
	Answers []models.Answer
	Score   int
	Total   int
	Points  int
}

// Grade scores submitted answers against the quiz. Unknown question ids are
// skipped and only the first answer per question counts. Correctness is exact
// string equality with the stored answer.
func (e *Engine) Grade(quiz *models.Quiz, submitted []Submission) Result {
	res := Result{
		Answers: make([]models.Answer, 0, len(submitted)),
		Total:   len(quiz.Questions),
	}
	seen := make(map[string]struct{}, len(submitted))

	for _, sub := range submitted {
		q, ok := quiz.QuestionByID(sub.QuestionID)
		if !ok {
			continue
		}
		if _, dup := seen[q.ID]; dup {
			continue
		}
		seen[q.ID] = struct{}{}

		correct := sub.SelectedAnswer == q.CorrectAnswer
		if correct {
			res.Score++
		}
		res.Answers = append(res.Answers, models.Answer{
			QuestionID:     q.ID,
			SelectedAnswer: sub.SelectedAnswer,
			IsCorrect:      correct,
			CorrectAnswer:  q.CorrectAnswer,
			Explanation:    q.Explanation,
		})
	}

	res.Points = e.Points(quiz.Difficulty, res.Score, res.Total)
	return res
}

// Points computes base + perfect bonus.
// Formula: correct * weight(difficulty), plus PerfectBonus of that base when
// every question was answered correctly.
func (e *Engine) Points(difficulty string, correct, total int) int {
	if correct <= 0 {
		return 0
	}
	base := correct * e.weight(difficulty)
	if total > 0 && correct == total {
		base += int(float64(base) * e.config.PerfectBonus)
	}
	return base
}

func (e *Engine) weight(difficulty string) int {
	switch difficulty {
	case models.DifficultyEasy:
		return e.config.EasyWeight
	case models.DifficultyHard:
		return e.config.HardWeight
	default:
		return e.config.MediumWeight
	}
}
