package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zart/quizzer/internal/auth/jwt"
	"github.com/zart/quizzer/internal/auth/oauth"
	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/metrics"
	"github.com/zart/quizzer/internal/models"
)

// AccountHook is notified after an account and its data are removed.
type AccountHook func(ctx context.Context, userID string)

// ServiceOptions configures the auth service.
type ServiceOptions struct {
	Tokens           *jwt.Manager
	Hasher           Hasher
	Sessions         SessionStore
	Resets           ResetTokenStore
	Mailer           Mailer
	ResetTTL         time.Duration
	Metrics          *metrics.Metrics
	OnAccountDeleted AccountHook
}

// Service handles authentication and account management.
type Service struct {
	stores   *repository.Stores
	tokens   *jwt.Manager
	hasher   Hasher
	sessions SessionStore
	resets   ResetTokenStore
	mailer   Mailer
	resetTTL time.Duration
	metrics  *metrics.Metrics
	onDelete AccountHook
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService creates an authentication service.
func NewService(stores *repository.Stores, opts ServiceOptions, logger zerolog.Logger) *Service {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	if opts.Hasher.cost == 0 {
		opts.Hasher = NewHasher(defaultBcryptCost)
	}
	return &Service{
		stores:   stores,
		tokens:   opts.Tokens,
		hasher:   opts.Hasher,
		sessions: opts.Sessions,
		resets:   opts.Resets,
		mailer:   opts.Mailer,
		resetTTL: opts.ResetTTL,
		metrics:  opts.Metrics,
		onDelete: opts.OnAccountDeleted,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

// Tokens exposes the token manager for cookie lifetimes.
func (s *Service) Tokens() *jwt.Manager { return s.tokens }

// Sessions exposes the session store used by the OAuth callback and middleware.
func (s *Service) Sessions() SessionStore { return s.sessions }

// Register creates a local account and issues tokens.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, *TokenPair, error) {
	username := strings.TrimSpace(req.Username)
	if err := models.ValidateUsername(username); err != nil {
		return nil, nil, err
	}
	email := models.NormalizeEmail(req.Email)

	if _, err := s.stores.Users.GetByEmail(ctx, email); err == nil {
		return nil, nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, fmt.Errorf("lookup email: %w", err)
	}
	if _, err := s.stores.Users.GetByUsername(ctx, username); err == nil {
		return nil, nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, fmt.Errorf("lookup username: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        &email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		IsActive:     true,
		LastLogin:    &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.stores.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent registration.
			return nil, nil, s.registrationConflict(ctx, username)
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	tokens, err := s.IssueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.AuthEvent("register")
	s.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return user, tokens, nil
}

// Login authenticates by email or username and password.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*models.User, *TokenPair, error) {
	ident := strings.TrimSpace(req.Email)
	var (
		user *models.User
		err  error
	)
	if strings.Contains(ident, "@") {
		user, err = s.stores.Users.GetByEmail(ctx, models.NormalizeEmail(ident))
	} else {
		user, err = s.stores.Users.GetByUsername(ctx, ident)
	}
	if errors.Is(err, repository.ErrNotFound) {
		s.metrics.AuthEvent("login_failed")
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.HasPassword() || s.hasher.Verify(user.PasswordHash, req.Password) != nil {
		s.metrics.AuthEvent("login_failed")
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, ErrAccountDisabled
	}

	now := s.now()
	if err := s.stores.Users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("update last login failed")
	}
	user.LastLogin = &now

	tokens, err := s.IssueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.AuthEvent("login")
	return user, tokens, nil
}

// Refresh validates a refresh token and issues a new pair. Refresh tokens are
// not tracked server side, so the old one stays valid until it expires.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.User, *TokenPair, error) {
	user, err := s.userFromToken(ctx, refreshToken, s.tokens.ValidateRefreshToken)
	if err != nil {
		return nil, nil, err
	}
	tokens, err := s.IssueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.AuthEvent("refresh")
	return user, tokens, nil
}

// RefreshAccess mints only a new access token from a refresh token.
func (s *Service) RefreshAccess(ctx context.Context, refreshToken string) (*models.User, string, error) {
	user, err := s.userFromToken(ctx, refreshToken, s.tokens.ValidateRefreshToken)
	if err != nil {
		return nil, "", err
	}
	access, err := s.tokens.GenerateAccessToken(subjectOf(user))
	if err != nil {
		return nil, "", fmt.Errorf("sign access token: %w", err)
	}
	s.metrics.AuthEvent("silent_refresh")
	return user, access, nil
}

// AuthenticateAccess resolves an access token to an active user.
func (s *Service) AuthenticateAccess(ctx context.Context, accessToken string) (*models.User, error) {
	return s.userFromToken(ctx, accessToken, s.tokens.ValidateAccessToken)
}

func (s *Service) userFromToken(ctx context.Context, token string, validate func(string) (*jwt.Claims, error)) (*models.User, error) {
	claims, err := validate(token)
	if err != nil {
		return nil, err
	}
	return s.ActiveUser(ctx, claims.UserID)
}

// ActiveUser loads a user and rejects disabled accounts.
func (s *Service) ActiveUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

// UserByID loads a user.
func (s *Service) UserByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.stores.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// IssueTokens signs an access and refresh token for user.
func (s *Service) IssueTokens(user *models.User) (*TokenPair, error) {
	sub := subjectOf(user)
	access, err := s.tokens.GenerateAccessToken(sub)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(sub)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// registrationConflict names the field that collided after a duplicate-key error.
func (s *Service) registrationConflict(ctx context.Context, username string) error {
	if _, err := s.stores.Users.GetByUsername(ctx, username); err == nil {
		return ErrUsernameTaken
	}
	return ErrEmailTaken
}

func subjectOf(u *models.User) jwt.Subject {
	return jwt.Subject{ID: u.ID, Username: u.Username, Role: u.Role}
}

// LinkOAuthIdentity maps a provider profile to a user: by provider id, then by
// email, else a new account. Matched accounts gain the provider id, a picture
// when they have none, and a fresh lastLogin.
func (s *Service) LinkOAuthIdentity(ctx context.Context, id *oauth.Identity) (*models.User, error) {
	email := models.NormalizeEmail(id.Email)
	if email == "" && id.Provider == models.ProviderGoogle {
		return nil, ErrOAuthEmailRequired
	}

	user, err := s.stores.Users.GetByProviderID(ctx, id.Provider, id.ProviderID)
	if errors.Is(err, repository.ErrNotFound) && email != "" {
		user, err = s.stores.Users.GetByEmail(ctx, email)
	}
	now := s.now()

	switch {
	case err == nil:
		if !user.IsActive {
			return nil, ErrAccountDisabled
		}
		if linked := user.ProviderID(id.Provider); linked != "" && linked != id.ProviderID {
			return nil, ErrProviderAlreadyLinked
		}
		user.SetProviderID(id.Provider, id.ProviderID)
		if user.ProfilePicture == "" {
			user.ProfilePicture = id.AvatarURL
		}
		user.LastLogin = &now
		user.UpdatedAt = now
		if err := s.stores.Users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("link %s identity: %w", id.Provider, err)
		}
		s.metrics.AuthEvent("oauth_link")
		return user, nil

	case errors.Is(err, repository.ErrNotFound):
		return s.createOAuthUser(ctx, id, email, now)

	default:
		return nil, fmt.Errorf("lookup oauth user: %w", err)
	}
}

func (s *Service) createOAuthUser(ctx context.Context, id *oauth.Identity, email string, now time.Time) (*models.User, error) {
	username, err := s.uniqueUsername(ctx, usernameBase(id, email))
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:             uuid.NewString(),
		Username:       username,
		ProfilePicture: id.AvatarURL,
		Role:           models.RoleUser,
		IsActive:       true,
		LastLogin:      &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if email != "" {
		user.Email = &email
		user.IsEmailVerified = true
	}
	user.SetProviderID(id.Provider, id.ProviderID)

	if err := s.stores.Users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create %s user: %w", id.Provider, err)
	}
	s.metrics.AuthEvent("oauth_signup")
	s.logger.Info().Str("user_id", user.ID).Str("provider", id.Provider).Msg("oauth user created")
	return user, nil
}

var usernameStrip = regexp.MustCompile(`[^a-z0-9_]+`)

func usernameBase(id *oauth.Identity, email string) string {
	var base string
	switch {
	case id.Login != "":
		base = id.Login
	case id.Provider == models.ProviderGoogle && email != "":
		base, _, _ = strings.Cut(email, "@")
	default:
		base = id.Provider + "_" + id.ProviderID
	}
	base = usernameStrip.ReplaceAllString(strings.ToLower(base), "")
	if len(base) > 24 {
		base = base[:24]
	}
	for len(base) < 3 {
		base += "_"
	}
	return base
}

// uniqueUsername appends a numeric suffix until the name is free.
func (s *Service) uniqueUsername(ctx context.Context, base string) (string, error) {
	for i := 0; i < 50; i++ {
		candidate := base
		if i > 0 {
			candidate = base + strconv.Itoa(i)
		}
		_, err := s.stores.Users.GetByUsername(ctx, candidate)
		if errors.Is(err, repository.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("lookup username: %w", err)
		}
	}
	return base + "_" + uuid.NewString()[:5], nil
}

// ChangePassword sets a new password. The current password is required when
// the account already has one.
func (s *Service) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	user, err := s.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasPassword() {
		if req.CurrentPassword == "" || s.hasher.Verify(user.PasswordHash, req.CurrentPassword) != nil {
			return ErrInvalidCredentials
		}
	}
	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.stores.Users.UpdatePassword(ctx, userID, hash, s.now()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.metrics.AuthEvent("password_change")
	s.logger.Info().Str("user_id", userID).Msg("password changed")
	return nil
}

// DeleteAccount removes the user and everything they own. Password accounts
// must confirm with their password. Each collection is cleaned independently.
func (s *Service) DeleteAccount(ctx context.Context, userID, password string) error {
	user, err := s.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasPassword() && s.hasher.Verify(user.PasswordHash, password) != nil {
		return ErrInvalidCredentials
	}

	rated, err := s.stores.Ratings.QuizIDsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list rated quizzes: %w", err)
	}
	quizIDs, err := s.stores.Quizzes.DeleteByCreator(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete quizzes: %w", err)
	}
	for _, qid := range quizIDs {
		if err := s.stores.Saved.DeleteByQuiz(ctx, qid); err != nil {
			return fmt.Errorf("delete saved links: %w", err)
		}
	}

	steps := []struct {
		name string
		fn   func(context.Context, string) error
	}{
		{"attempts", s.stores.Attempts.DeleteByUser},
		{"ratings", s.stores.Ratings.DeleteByUser},
		{"saved quizzes", s.stores.Saved.DeleteByUser},
		{"prompts", s.stores.Prompts.DeleteByUser},
		{"profile", s.stores.Profiles.Delete},
		{"stats", s.stores.Stats.Delete},
	}
	for _, step := range steps {
		if err := step.fn(ctx, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("delete %s: %w", step.name, err)
		}
	}
	if err := s.stores.Users.Delete(ctx, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("delete user: %w", err)
	}
	s.reaggregateRatings(ctx, rated, quizIDs)

	if s.onDelete != nil {
		s.onDelete(ctx, userID)
	}
	s.metrics.AuthEvent("account_delete")
	s.logger.Info().Str("user_id", userID).Int("quizzes", len(quizIDs)).Msg("account deleted")
	return nil
}

// reaggregateRatings refreshes the cached rating stats of surviving quizzes
// the deleted user had rated.
func (s *Service) reaggregateRatings(ctx context.Context, rated, deleted []string) {
	for _, quizID := range rated {
		if slices.Contains(deleted, quizID) {
			continue
		}
		stats, err := s.stores.Ratings.Aggregate(ctx, quizID)
		if err == nil {
			err = s.stores.Quizzes.SetRatingStats(ctx, quizID, stats.Rounded())
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn().Err(err).Str("quiz_id", quizID).Msg("rating re-aggregation failed")
		}
	}
}

// RequestPasswordReset mails a reset token when the address belongs to a
// password account. Unknown addresses succeed silently.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if s.resets == nil || s.mailer == nil {
		return ErrResetUnavailable
	}
	email = models.NormalizeEmail(email)
	user, err := s.stores.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return nil
	}

	token, err := s.resets.Issue(ctx, user.ID, email, s.resetTTL)
	if err != nil {
		return err
	}
	if err := s.mailer.SendPasswordReset(ctx, email, token, s.resetTTL); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	s.metrics.AuthEvent("password_reset_requested")
	s.logger.Info().Str("user_id", user.ID).Msg("password reset requested")
	return nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if s.resets == nil {
		return ErrResetUnavailable
	}
	if err := CheckPasswordPolicy(newPassword); err != nil {
		return err
	}
	userID, err := s.resets.Consume(ctx, token)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.stores.Users.UpdatePassword(ctx, userID, hash, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("update password: %w", err)
	}
	s.metrics.AuthEvent("password_reset")
	s.logger.Info().Str("user_id", userID).Msg("password reset completed")
	return nil
}
