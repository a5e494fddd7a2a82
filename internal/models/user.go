package models

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// OAuth provider names as stored on the user document.
const (
	ProviderGoogle   = "google"
	ProviderGitHub   = "github"
	ProviderFacebook = "facebook"
)

var (
	// ErrNoCredentials is returned when a user has neither a password nor a linked provider.
	ErrNoCredentials   = errors.New("user must have a password or a linked oauth account")
	ErrInvalidUsername = errors.New("username must be 3-30 letters, digits, '_', '.' or '-'")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,30}$`)

// ValidateUsername checks the allowed username alphabet and length.
func ValidateUsername(name string) error {
	if !usernamePattern.MatchString(name) {
		return ErrInvalidUsername
	}
	return nil
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// User is an account. Pointer fields are unique when present and absent otherwise.
type User struct {
	ID                string     `json:"id" bson:"_id"`
	Username          string     `json:"username" bson:"username"`
	Email             *string    `json:"email,omitempty" bson:"email,omitempty"`
	PasswordHash      string     `json:"-" bson:"passwordHash,omitempty"`
	GoogleID          *string    `json:"-" bson:"googleId,omitempty"`
	GitHubID          *string    `json:"-" bson:"githubId,omitempty"`
	FacebookID        *string    `json:"-" bson:"facebookId,omitempty"`
	ProfilePicture    string     `json:"profilePicture,omitempty" bson:"profilePicture,omitempty"`
	Role              string     `json:"role" bson:"role"`
	IsActive          bool       `json:"isActive" bson:"isActive"`
	IsEmailVerified   bool       `json:"isEmailVerified" bson:"isEmailVerified"`
	LastLogin         *time.Time `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"`
	PasswordChangedAt *time.Time `json:"-" bson:"passwordChangedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// HasPassword reports whether the account can log in locally.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Validate enforces the credential invariant.
func (u *User) Validate() error {
	if u.HasPassword() || len(u.LinkedProviders()) > 0 {
		return nil
	}
	return ErrNoCredentials
}

// ProviderID returns the linked id for provider, or "".
func (u *User) ProviderID(provider string) string {
	var p *string
	switch provider {
	case ProviderGoogle:
		p = u.GoogleID
	case ProviderGitHub:
		p = u.GitHubID
	case ProviderFacebook:
		p = u.FacebookID
	}
	if p == nil {
		return ""
	}
	return *p
}

// SetProviderID links an external identity to the user.
func (u *User) SetProviderID(provider, id string) {
	v := id
	switch provider {
	case ProviderGoogle:
		u.GoogleID = &v
	case ProviderGitHub:
		u.GitHubID = &v
	case ProviderFacebook:
		u.FacebookID = &v
	}
}

// LinkedProviders lists the providers linked to the account.
func (u *User) LinkedProviders() []string {
	var out []string
	for _, p := range []string{ProviderGoogle, ProviderGitHub, ProviderFacebook} {
		if u.ProviderID(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// EmailValue dereferences Email.
func (u *User) EmailValue() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}
