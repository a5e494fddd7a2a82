package repository

import (
	"context"
	"errors"
	"time"

	"github.com/zart/quizzer/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no document.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("duplicate key")
)

// Sort orders accepted by QuizStore.List.
const (
	SortNewest  = "newest"
	SortOldest  = "oldest"
	SortPopular = "popular"
	SortRating  = "rating"
)

// QuizFilter narrows QuizStore.List. Zero values mean "any".
type QuizFilter struct {
	CreatedBy    string
	ExcludeUser  string
	PublicOnly   bool
	Difficulty   string
	Difficulties []string
	QuizType     string
	Tag          string
	Search       string
	Sort         string
	Offset       int64
	Limit        int64
}

// QuizPatch updates editable quiz fields. Nil fields are left untouched.
type QuizPatch struct {
	Topic       *string
	Description *string
	IsPublic    *bool
	IsTimed     *bool
	TimeLimit   *int
	Tags        []string
	Questions   []models.Question
}

// QuizCount pairs a quiz id with a count, used for trending.
type QuizCount struct {
	QuizID string
	Count  int64
}

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByProviderID(ctx context.Context, provider, providerID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// QuizStore persists quizzes.
type QuizStore interface {
	Create(ctx context.Context, quiz *models.Quiz) error
	GetByID(ctx context.Context, id string) (*models.Quiz, error)
	Update(ctx context.Context, id string, patch QuizPatch) (*models.Quiz, error)
	Delete(ctx context.Context, id string) error
	DeleteByCreator(ctx context.Context, userID string) ([]string, error)
	List(ctx context.Context, filter QuizFilter) ([]models.Quiz, int64, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Quiz, error)
	Count(ctx context.Context) (int64, error)
	IncrementAttemptCount(ctx context.Context, id string) error
	SetRatingStats(ctx context.Context, id string, stats models.RatingStats) error
}

// PromptStore persists generation prompts.
type PromptStore interface {
	Create(ctx context.Context, prompt *models.QuizPrompt) error
	GetByID(ctx context.Context, id string) (*models.QuizPrompt, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// AttemptStore persists quiz attempts.
type AttemptStore interface {
	Create(ctx context.Context, attempt *models.QuizAttempt) error
	GetByID(ctx context.Context, id string) (*models.QuizAttempt, error)
	ListByUser(ctx context.Context, userID string, offset, limit int64) ([]models.QuizAttempt, int64, error)
	RecentQuizIDs(ctx context.Context, userID string, limit int) ([]string, error)
	TopQuizzesSince(ctx context.Context, since time.Time, limit int) ([]QuizCount, error)
	DeleteByUser(ctx context.Context, userID string) error
	Count(ctx context.Context) (int64, error)
}

// RatingStore persists quiz ratings.
type RatingStore interface {
	Upsert(ctx context.Context, rating *models.QuizRating) error
	Get(ctx context.Context, userID, quizID string) (*models.QuizRating, error)
	Aggregate(ctx context.Context, quizID string) (models.RatingStats, error)
	QuizIDsByUser(ctx context.Context, userID string) ([]string, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// SavedQuizStore persists bookmarks.
type SavedQuizStore interface {
	// Save reports created=false when the bookmark already existed.
	Save(ctx context.Context, saved *models.SavedQuiz) (bool, error)
	Remove(ctx context.Context, userID, quizID string) (bool, error)
	ListQuizIDs(ctx context.Context, userID string) ([]string, error)
	IsSaved(ctx context.Context, userID, quizID string) (bool, error)
	DeleteByUser(ctx context.Context, userID string) error
	DeleteByQuiz(ctx context.Context, quizID string) error
}

// SearchQueryStore tracks search usage.
type SearchQueryStore interface {
	Record(ctx context.Context, query string, at time.Time) error
	Popular(ctx context.Context, limit int) ([]models.SearchQuery, error)
}

// ProfileStore persists profiles.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
	Upsert(ctx context.Context, profile *models.Profile) error
	// AddBadge reports added=false when the badge was already present.
	AddBadge(ctx context.Context, userID string, badge models.Badge) (bool, error)
	Delete(ctx context.Context, userID string) error
}

// StatsStore persists lifetime counters.
type StatsStore interface {
	Get(ctx context.Context, userID string) (*models.UserStats, error)
	Increment(ctx context.Context, userID string, delta models.StatsDelta, at time.Time) (*models.UserStats, error)
	Delete(ctx context.Context, userID string) error
}

// Stores bundles every store a driver provides.
type Stores struct {
	Users    UserStore
	Quizzes  QuizStore
	Prompts  PromptStore
	Attempts AttemptStore
	Ratings  RatingStore
	Saved    SavedQuizStore
	Searches SearchQueryStore
	Profiles ProfileStore
	Stats    StatsStore

	// Ping checks connectivity for readiness probes.
	Ping func(ctx context.Context) error
	// Close releases the underlying connection.
	Close func(ctx context.Context) error
}
