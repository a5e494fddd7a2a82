package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// Badge ids.
const (
	BadgeFirstQuiz        = "first_quiz"
	BadgeQuizMaster       = "quiz_master"
	BadgeFirstAttempt     = "first_attempt"
	BadgeDedicatedLearner = "dedicated_learner"
	BadgePerfectScore     = "perfect_score"
)

const (
	quizMasterThreshold       = 10
	dedicatedLearnerThreshold = 25
)

var catalog = map[string]models.Badge{
	BadgeFirstQuiz:        {ID: BadgeFirstQuiz, Name: "Quiz Creator", Description: "Created your first quiz", Icon: "sparkles"},
	BadgeQuizMaster:       {ID: BadgeQuizMaster, Name: "Quiz Master", Description: "Created 10 quizzes", Icon: "crown"},
	BadgeFirstAttempt:     {ID: BadgeFirstAttempt, Name: "First Steps", Description: "Completed your first quiz", Icon: "footprints"},
	BadgeDedicatedLearner: {ID: BadgeDedicatedLearner, Name: "Dedicated Learner", Description: "Completed 25 quizzes", Icon: "book"},
	BadgePerfectScore:     {ID: BadgePerfectScore, Name: "Perfectionist", Description: "Answered every question correctly", Icon: "target"},
}

// Global is the platform-wide summary.
type Global struct {
	TotalUsers    int64 `json:"totalUsers"`
	TotalQuizzes  int64 `json:"totalQuizzes"`
	TotalAttempts int64 `json:"totalAttempts"`
}

// Summary is the statistics view returned to clients.
type Summary struct {
	*models.UserStats
	AverageScore float64        `json:"averageScore"`
	Badges       []models.Badge `json:"badges"`
}

// Service keeps per-user counters and awards badges.
type Service struct {
	stats    repository.StatsStore
	profiles repository.ProfileStore
	users    repository.UserStore
	quizzes  repository.QuizStore
	attempts repository.AttemptStore
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(stores *repository.Stores, logger zerolog.Logger) *Service {
	return &Service{
		stats:    stores.Stats,
		profiles: stores.Profiles,
		users:    stores.Users,
		quizzes:  stores.Quizzes,
		attempts: stores.Attempts,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With().Str("component", "stats").Logger(),
	}
}

// RecordQuizCreated bumps quizzesCreated and returns any newly awarded badges.
func (s *Service) RecordQuizCreated(ctx context.Context, userID string) ([]models.Badge, error) {
	st, err := s.stats.Increment(ctx, userID, models.StatsDelta{QuizzesCreated: 1}, s.now())
	if err != nil {
		return nil, fmt.Errorf("increment stats: %w", err)
	}

	var ids []string
	if st.QuizzesCreated >= 1 {
		ids = append(ids, BadgeFirstQuiz)
	}
	if st.QuizzesCreated >= quizMasterThreshold {
		ids = append(ids, BadgeQuizMaster)
	}
	return s.award(ctx, userID, ids)
}

// RecordAttempt adds an attempt's score, questions, time and points.
func (s *Service) RecordAttempt(ctx context.Context, attempt *models.QuizAttempt) ([]models.Badge, error) {
	st, err := s.stats.Increment(ctx, attempt.UserID, models.StatsDelta{
		QuizzesCompleted: 1,
		TotalScore:       int64(attempt.Score),
		TotalQuestions:   int64(attempt.TotalQuestions),
		TotalTimeSpent:   int64(attempt.TimeTaken),
		Points:           int64(attempt.PointsEarned),
	}, s.now())
	if err != nil {
		return nil, fmt.Errorf("increment stats: %w", err)
	}

	ids := []string{BadgeFirstAttempt}
	if st.QuizzesCompleted >= dedicatedLearnerThreshold {
		ids = append(ids, BadgeDedicatedLearner)
	}
	if attempt.TotalQuestions > 0 && attempt.Score == attempt.TotalQuestions {
		ids = append(ids, BadgePerfectScore)
	}
	return s.award(ctx, attempt.UserID, ids)
}

// award adds each badge at most once. badgesEarned only moves when the
// profile store reports a new badge.
func (s *Service) award(ctx context.Context, userID string, ids []string) ([]models.Badge, error) {
	var awarded []models.Badge
	for _, id := range ids {
		badge := catalog[id]
		badge.AwardedAt = s.now()

		added, err := s.profiles.AddBadge(ctx, userID, badge)
		if err != nil {
			return awarded, fmt.Errorf("award %s: %w", id, err)
		}
		if !added {
			continue
		}
		if _, err := s.stats.Increment(ctx, userID, models.StatsDelta{BadgesEarned: 1}, badge.AwardedAt); err != nil {
			return awarded, fmt.Errorf("count badge: %w", err)
		}
		awarded = append(awarded, badge)
		s.logger.Info().Str("user_id", userID).Str("badge", id).Msg("badge awarded")
	}
	return awarded, nil
}

// Get returns the user's statistics; users without activity get zeros.
func (s *Service) Get(ctx context.Context, userID string) (*Summary, error) {
	st, err := s.stats.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		st = &models.UserStats{UserID: userID}
	} else if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}

	badges := []models.Badge{}
	profile, err := s.profiles.Get(ctx, userID)
	switch {
	case err == nil:
		if profile.Badges != nil {
			badges = profile.Badges
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("load profile: %w", err)
	}

	var avg float64
	if st.QuizzesCompleted > 0 {
		avg = float64(int(st.Accuracy()*100+0.5)) / 100
	}
	return &Summary{UserStats: st, AverageScore: avg, Badges: badges}, nil
}

// ForUser is Get for another user; the user must exist.
func (s *Service) ForUser(ctx context.Context, userID string) (*Summary, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return s.Get(ctx, userID)
}

// Global counts users, quizzes and attempts.
func (s *Service) Global(ctx context.Context) (*Global, error) {
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	quizzes, err := s.quizzes.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count quizzes: %w", err)
	}
	attempts, err := s.attempts.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	return &Global{TotalUsers: users, TotalQuizzes: quizzes, TotalAttempts: attempts}, nil
}
