// Package profile manages user profiles and the public profile page.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
	"github.com/zart/quizzer/internal/stats"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

// StatsReader loads the statistics summary shown on profiles.
type StatsReader interface {
	Get(ctx context.Context, userID string) (*stats.Summary, error)
}

// UpdateRequest is the body of PUT /api/profile/me.
type UpdateRequest struct {
	Bio         string             `json:"bio" validate:"max=500"`
	Location    string             `json:"location" validate:"max=100"`
	Website     string             `json:"website" validate:"omitempty,url,max=300"`
	SocialLinks models.SocialLinks `json:"socialLinks"`
	Extra       map[string]any     `json:"extra" validate:"omitempty,max=20"`
}

// AccountRequest is the body of PUT /api/profile/me/account.
type AccountRequest struct {
	Username       *string `json:"username" validate:"omitempty,min=3,max=30"`
	ProfilePicture *string `json:"profilePicture" validate:"omitempty,url,max=500"`
}

// PublicUser is the part of a user shown to other users.
type PublicUser struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Me is the caller's own profile.
type Me struct {
	User    *models.User    `json:"user"`
	Profile *models.Profile `json:"profile"`
}

// PublicView is GET /api/profile/{username}.
type PublicView struct {
	User            PublicUser      `json:"user"`
	Profile         *models.Profile `json:"profile"`
	Stats           *stats.Summary  `json:"stats,omitempty"`
	PublicQuizCount int64           `json:"publicQuizCount"`
}

// Service reads and writes profiles.
type Service struct {
	users    repository.UserStore
	profiles repository.ProfileStore
	quizzes  repository.QuizStore
	stats    StatsReader
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(stores *repository.Stores, statsReader StatsReader, logger zerolog.Logger) *Service {
	return &Service{
		users:    stores.Users,
		profiles: stores.Profiles,
		quizzes:  stores.Quizzes,
		stats:    statsReader,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With().Str("component", "profile").Logger(),
	}
}

// Me returns the caller's account and profile. A missing profile reads as empty.
func (s *Service) Me(ctx context.Context, userID string) (*Me, error) {
	user, err := foundUser(s.users.GetByID(ctx, userID))
	if err != nil {
		return nil, err
	}
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Me{User: user, Profile: p}, nil
}

// Update replaces the editable profile fields. Badges are never touched.
func (s *Service) Update(ctx context.Context, userID string, req UpdateRequest) (*models.Profile, error) {
	p := &models.Profile{
		UserID:   userID,
		Bio:      strings.TrimSpace(req.Bio),
		Location: strings.TrimSpace(req.Location),
		Website:  strings.TrimSpace(req.Website),
		SocialLinks: models.SocialLinks{
			Twitter:  strings.TrimSpace(req.SocialLinks.Twitter),
			LinkedIn: strings.TrimSpace(req.SocialLinks.LinkedIn),
			GitHub:   strings.TrimSpace(req.SocialLinks.GitHub),
		},
		Extra:     req.Extra,
		UpdatedAt: s.now(),
	}
	if err := s.profiles.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return s.load(ctx, userID)
}

// UpdateAccount changes the username and profile picture.
func (s *Service) UpdateAccount(ctx context.Context, userID string, req AccountRequest) (*models.User, error) {
	user, err := foundUser(s.users.GetByID(ctx, userID))
	if err != nil {
		return nil, err
	}
	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if err := models.ValidateUsername(name); err != nil {
			return nil, err
		}
		user.Username = name
	}
	if req.ProfilePicture != nil {
		user.ProfilePicture = strings.TrimSpace(*req.ProfilePicture)
	}
	user.UpdatedAt = s.now()

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// Public returns the profile page of username.
func (s *Service) Public(ctx context.Context, username string) (*PublicView, error) {
	user, err := foundUser(s.users.GetByUsername(ctx, username))
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserNotFound
	}
	p, err := s.load(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	_, count, err := s.quizzes.List(ctx, repository.QuizFilter{CreatedBy: user.ID, PublicOnly: true, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("count public quizzes: %w", err)
	}

	view := &PublicView{
		User: PublicUser{
			ID:             user.ID,
			Username:       user.Username,
			ProfilePicture: user.ProfilePicture,
			CreatedAt:      user.CreatedAt,
		},
		Profile:         p,
		PublicQuizCount: count,
	}
	if s.stats != nil {
		summary, err := s.stats.Get(ctx, user.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("profile stats unavailable")
		}
		view.Stats = summary
	}
	return view, nil
}

func foundUser(u *models.User, err error) (*models.User, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (s *Service) load(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.Profile{UserID: userID, Badges: []models.Badge{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if p.Badges == nil {
		p.Badges = []models.Badge{}
	}
	return p, nil
}
