package rating

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

const (
	MinRating = 1
	MaxRating = 5
)

var (
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrQuizNotFound  = errors.New("quiz not found")
)

// Result is returned after rating a quiz.
type Result struct {
	Stats      models.RatingStats `json:"stats"`
	UserRating int                `json:"userRating"`
}

// Service manages per-user quiz ratings.
type Service struct {
	ratings repository.RatingStore
	quizzes repository.QuizStore
	now     func() time.Time
	logger  zerolog.Logger
}

func NewService(stores *repository.Stores, logger zerolog.Logger) *Service {
	return &Service{
		ratings: stores.Ratings,
		quizzes: stores.Quizzes,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With().Str("component", "rating").Logger(),
	}
}

// Rate upserts the user's rating and returns the fresh aggregate. Private
// quizzes can only be rated by their creator.
func (s *Service) Rate(ctx context.Context, userID, quizID string, value int) (*Result, error) {
	if value < MinRating || value > MaxRating {
		return nil, ErrInvalidRating
	}
	if _, err := s.visibleQuiz(ctx, userID, quizID); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.ratings.Upsert(ctx, &models.QuizRating{
		ID:        uuid.NewString(),
		UserID:    userID,
		QuizID:    quizID,
		Rating:    value,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("upsert rating: %w", err)
	}

	stats, err := s.ratings.Aggregate(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("aggregate ratings: %w", err)
	}
	stats = stats.Rounded()

	if err := s.quizzes.SetRatingStats(ctx, quizID, stats); err != nil {
		s.logger.Warn().Err(err).Str("quiz_id", quizID).Msg("failed to cache rating stats")
	}
	return &Result{Stats: stats, UserRating: value}, nil
}

// Stats returns the aggregate for a quiz.
func (s *Service) Stats(ctx context.Context, userID, quizID string) (models.RatingStats, error) {
	if _, err := s.visibleQuiz(ctx, userID, quizID); err != nil {
		return models.RatingStats{}, err
	}
	stats, err := s.ratings.Aggregate(ctx, quizID)
	if err != nil {
		return models.RatingStats{}, fmt.Errorf("aggregate ratings: %w", err)
	}
	return stats.Rounded(), nil
}

// UserRating returns the caller's rating, or nil when they have not rated.
func (s *Service) UserRating(ctx context.Context, userID, quizID string) (*models.QuizRating, error) {
	r, err := s.ratings.Get(ctx, userID, quizID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load rating: %w", err)
	}
	return r, nil
}

func (s *Service) visibleQuiz(ctx context.Context, userID, quizID string) (*models.Quiz, error) {
	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	if !quiz.IsPublic && quiz.CreatedBy != userID {
		return nil, ErrQuizNotFound
	}
	return quiz, nil
}
