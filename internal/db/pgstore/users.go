package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zart/quizzer/internal/models"
)

const userColumns = `id, username, email, password_hash, google_id, github_id, facebook_id,
	profile_picture, role, is_active, is_email_verified, last_login, password_changed_at,
	created_at, updated_at`

var providerColumns = map[string]string{
	models.ProviderGoogle:   "google_id",
	models.ProviderGitHub:   "github_id",
	models.ProviderFacebook: "facebook_id",
}

type userStore struct {
	db dbtx
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u    models.User
		hash *string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &hash, &u.GoogleID, &u.GitHubID, &u.FacebookID,
		&u.ProfilePicture, &u.Role, &u.IsActive, &u.IsEmailVerified, &u.LastLogin, &u.PasswordChangedAt,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	u.PasswordHash = deref(hash)
	return &u, nil
}

func (s *userStore) Create(ctx context.Context, u *models.User) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("validate user: %w", err)
	}
	_, err := s.db.Exec(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		u.ID, u.Username, u.Email, nullable(u.PasswordHash), u.GoogleID, u.GitHubID, u.FacebookID,
		u.ProfilePicture, u.Role, u.IsActive, u.IsEmailVerified, u.LastLogin, u.PasswordChangedAt,
		u.CreatedAt, u.UpdatedAt)
	return translate(err)
}

func (s *userStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *userStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (s *userStore) GetByProviderID(ctx context.Context, provider, providerID string) (*models.User, error) {
	col, ok := providerColumns[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+col+` = $1`, providerID))
}

func (s *userStore) Update(ctx context.Context, u *models.User) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("validate user: %w", err)
	}
	return mustAffect(s.db.Exec(ctx, `UPDATE users SET
		username = $2, email = $3, password_hash = $4, google_id = $5, github_id = $6, facebook_id = $7,
		profile_picture = $8, role = $9, is_active = $10, is_email_verified = $11, last_login = $12,
		password_changed_at = $13, updated_at = $14
		WHERE id = $1`,
		u.ID, u.Username, u.Email, nullable(u.PasswordHash), u.GoogleID, u.GitHubID, u.FacebookID,
		u.ProfilePicture, u.Role, u.IsActive, u.IsEmailVerified, u.LastLogin,
		u.PasswordChangedAt, u.UpdatedAt))
}

func (s *userStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return mustAffect(s.db.Exec(ctx, `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`, id, at))
}

func (s *userStore) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	return mustAffect(s.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, password_changed_at = $3, updated_at = $3 WHERE id = $1`,
		id, hash, at))
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	return mustAffect(s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id))
}

func (s *userStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, translate(err)
}
