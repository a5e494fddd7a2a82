package auth

import (
	"errors"

	"github.com/zart/quizzer/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrOAuthEmailRequired = errors.New("provider did not return an email address")
	// ErrProviderAlreadyLinked is returned when the email matches an account
	// already linked to a different identity at the same provider.
	ErrProviderAlreadyLinked = errors.New("account is linked to another identity at this provider")
	ErrInvalidResetToken     = errors.New("invalid or expired reset token")
	ErrResetUnavailable      = errors.New("password reset is not configured")
	ErrSessionNotFound       = errors.New("session not found")
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	User *models.User `json:"user"`
	TokenPair
}

// RegisterRequest for email/password registration.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest accepts an email address or a username in Email.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries a refresh token in the body for clients without cookies.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// ChangePasswordRequest may omit CurrentPassword only for accounts without one.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

type DeleteAccountRequest struct {
	Password string `json:"password"`
}
