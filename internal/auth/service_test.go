package auth

import (
	"context"
	"encoding/json"
	"net/smtp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zart/quizzer/internal/auth/jwt"
	"github.com/zart/quizzer/internal/auth/oauth"
	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

func TestHasher(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash("testpassword123")
	require.NoError(t, err)
	assert.NoError(t, h.Verify(hash, "testpassword123"))
	assert.ErrorIs(t, h.Verify(hash, "wrongpassword1"), ErrInvalidPassword)
}

func TestCheckPasswordPolicy(t *testing.T) {
	assert.ErrorIs(t, CheckPasswordPolicy("short1"), ErrPasswordTooShort)
	assert.ErrorIs(t, CheckPasswordPolicy("onlyletters"), ErrPasswordTooWeak)
	assert.ErrorIs(t, CheckPasswordPolicy("12345678"), ErrPasswordTooWeak)
	assert.NoError(t, CheckPasswordPolicy("Str0ng!pw"))
}

func TestRegister_SanitizedUser(t *testing.T) {
	f := newFixture(t)
	user, tokens, err := f.svc.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: " Alice@Test.com ", Password: "Str0ng!pw",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@test.com", user.EmailValue())
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, int64(900), tokens.ExpiresIn)

	raw, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")
	assert.NotContains(t, string(raw), "$2a$")
}

func TestRegister_Duplicates(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@test.com")

	_, _, err := f.svc.Register(context.Background(), RegisterRequest{Username: "alice2", Email: "ALICE@test.com", Password: "Str0ng!pw"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, _, err = f.svc.Register(context.Background(), RegisterRequest{Username: "alice", Email: "other@test.com", Password: "Str0ng!pw"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, _, err = f.svc.Register(context.Background(), RegisterRequest{Username: "bob", Email: "bob@test.com", Password: "weak"})
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@test.com")
	ctx := context.Background()

	user, tokens, err := f.svc.Login(ctx, LoginRequest{Email: "alice@test.com", Password: "Str0ng!pw"})
	require.NoError(t, err)
	assert.NotNil(t, user.LastLogin)

	claims, err := f.svc.Tokens().ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, _, err = f.svc.Login(ctx, LoginRequest{Email: "alice", Password: "Str0ng!pw"})
	assert.NoError(t, err, "username login")

	_, _, err = f.svc.Login(ctx, LoginRequest{Email: "alice@test.com", Password: "wrong-pass1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = f.svc.Login(ctx, LoginRequest{Email: "nobody@test.com", Password: "Str0ng!pw"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_Disabled(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "alice", "alice@test.com")
	u.IsActive = false
	require.NoError(t, f.stores.Users.Update(context.Background(), u))

	_, _, err := f.svc.Login(context.Background(), LoginRequest{Email: "alice@test.com", Password: "Str0ng!pw"})
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tokens, err := f.svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@test.com", Password: "Str0ng!pw"})
	require.NoError(t, err)

	user, pair, err := f.svc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, pair.AccessToken)

	_, _, err = f.svc.Refresh(ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

// racingUsers inserts rival just before the first Create, as a concurrent
// registration would between the availability checks and the insert.
type racingUsers struct {
	repository.UserStore
	rival *models.User
}

func (r *racingUsers) Create(ctx context.Context, u *models.User) error {
	if r.rival != nil {
		rival := r.rival
		r.rival = nil
		if err := r.UserStore.Create(ctx, rival); err != nil {
			return err
		}
	}
	return r.UserStore.Create(ctx, u)
}

func TestRegister_RaceReportsCollidingField(t *testing.T) {
	ctx := context.Background()
	req := RegisterRequest{Username: "alice", Email: "alice@test.com", Password: "Str0ng!pw"}

	f := newFixture(t)
	rivalEmail := "other@test.com"
	f.stores.Users = &racingUsers{UserStore: f.stores.Users, rival: &models.User{
		ID: "rival-1", Username: "alice", Email: &rivalEmail, PasswordHash: "x", IsActive: true,
	}}
	_, _, err := f.svc.Register(ctx, req)
	assert.ErrorIs(t, err, ErrUsernameTaken)

	f = newFixture(t)
	sameEmail := "alice@test.com"
	f.stores.Users = &racingUsers{UserStore: f.stores.Users, rival: &models.User{
		ID: "rival-2", Username: "someone", Email: &sameEmail, PasswordHash: "x", IsActive: true,
	}}
	_, _, err = f.svc.Register(ctx, req)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLinkOAuth_EmailMatchWithOtherProviderIDConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice", "alice@test.com")
	gid := "g-1"
	a.GoogleID = &gid
	require.NoError(t, f.stores.Users.Update(ctx, a))

	_, err := f.svc.LinkOAuthIdentity(ctx, &oauth.Identity{Provider: "google", ProviderID: "g-2", Email: "alice@test.com"})
	assert.ErrorIs(t, err, ErrProviderAlreadyLinked)

	reloaded, err := f.stores.Users.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "g-1", reloaded.ProviderID(models.ProviderGoogle))
}

func TestLinkOAuth_ProviderIDFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice", "alice@test.com")
	b := f.register(t, "bob", "bob@test.com")

	gid := "g-1"
	b.GoogleID = &gid
	require.NoError(t, f.stores.Users.Update(ctx, b))

	// Email points at alice but the provider id already belongs to bob.
	got, err := f.svc.LinkOAuthIdentity(ctx, &oauth.Identity{Provider: "google", ProviderID: "g-1", Email: "alice@test.com"})
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	reloaded, err := f.stores.Users.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.GoogleID)
}

func TestLinkOAuth_EmailMatchKeepsPicture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice", "alice@test.com")
	a.ProfilePicture = "http://mine"
	require.NoError(t, f.stores.Users.Update(ctx, a))

	got, err := f.svc.LinkOAuthIdentity(ctx, &oauth.Identity{
		Provider: "github", ProviderID: "77", Email: "Alice@test.com", Login: "al", AvatarURL: "http://theirs",
	})
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "77", got.ProviderID("github"))
	assert.Equal(t, "http://mine", got.ProfilePicture)
	assert.True(t, got.HasPassword())
}

func TestLinkOAuth_GoogleWithoutEmailRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.LinkOAuthIdentity(context.Background(), &oauth.Identity{Provider: "google", ProviderID: "g-9"})
	assert.ErrorIs(t, err, ErrOAuthEmailRequired)
}

func TestLinkOAuth_GitHubWithoutEmailSynthesizesUsername(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "octocat", "octo@test.com")

	got, err := f.svc.LinkOAuthIdentity(ctx, &oauth.Identity{Provider: "github", ProviderID: "42", Login: "OctoCat", AvatarURL: "http://a"})
	require.NoError(t, err)
	assert.Equal(t, "octocat1", got.Username)
	assert.Nil(t, got.Email)
	assert.Equal(t, "http://a", got.ProfilePicture)
	assert.NoError(t, got.Validate())

	again, err := f.svc.LinkOAuthIdentity(ctx, &oauth.Identity{Provider: "github", ProviderID: "42", Login: "OctoCat"})
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)

	fb, err := f.svc.LinkOAuthIdentity(ctx, &oauth.Identity{Provider: "facebook", ProviderID: "555"})
	require.NoError(t, err)
	assert.Equal(t, "facebook_555", fb.Username)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice", "alice@test.com")

	err := f.svc.ChangePassword(ctx, u.ID, ChangePasswordRequest{CurrentPassword: "bad", NewPassword: "N3wpassword"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.svc.ChangePassword(ctx, u.ID, ChangePasswordRequest{CurrentPassword: "Str0ng!pw", NewPassword: "N3wpassword"}))
	_, _, err = f.svc.Login(ctx, LoginRequest{Email: "alice@test.com", Password: "N3wpassword"})
	assert.NoError(t, err)
}

func TestChangePassword_OAuthOnlyNeedsNoCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, err := f.svc.LinkOAuthIdentity(ctx, &oauth.Identity{Provider: "github", ProviderID: "1", Login: "gh", Email: "gh@test.com"})
	require.NoError(t, err)

	require.NoError(t, f.svc.ChangePassword(ctx, u.ID, ChangePasswordRequest{NewPassword: "N3wpassword"}))
	_, _, err = f.svc.Login(ctx, LoginRequest{Email: "gh@test.com", Password: "N3wpassword"})
	assert.NoError(t, err)
}

func TestDeleteAccount_Cascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice", "alice@test.com")
	other := f.register(t, "bob", "bob@test.com")
	now := time.Now()

	require.NoError(t, f.stores.Quizzes.Create(ctx, &models.Quiz{ID: "q1", Topic: "Go", CreatedBy: u.ID, CreatedAt: now}))
	require.NoError(t, f.stores.Attempts.Create(ctx, &models.QuizAttempt{ID: "a1", UserID: u.ID, QuizID: "q1", SubmittedAt: now}))
	_, err := f.stores.Saved.Save(ctx, &models.SavedQuiz{ID: "s1", UserID: other.ID, QuizID: "q1", CreatedAt: now})
	require.NoError(t, err)
	_, err = f.stores.Stats.Increment(ctx, u.ID, models.StatsDelta{QuizzesCreated: 1}, now)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteAccount(ctx, u.ID, "wrong"), ErrInvalidCredentials)
	require.NoError(t, f.svc.DeleteAccount(ctx, u.ID, "Str0ng!pw"))

	_, err = f.stores.Users.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.stores.Quizzes.GetByID(ctx, "q1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	saved, err := f.stores.Saved.IsSaved(ctx, other.ID, "q1")
	require.NoError(t, err)
	assert.False(t, saved)
	_, err = f.stores.Stats.Get(ctx, u.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, []string{u.ID}, f.deleted)
}

func TestPasswordReset_SingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@test.com")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ALICE@test.com"))
	token := f.mailer.sent["alice@test.com"]
	require.NotEmpty(t, token)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "nobody@test.com"))
	assert.Len(t, f.mailer.sent, 1)

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "short"), ErrPasswordTooShort)
	require.NoError(t, f.svc.ResetPassword(ctx, token, "Br4ndnewpw"))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "Br4ndnewpw"), ErrInvalidResetToken)

	_, _, err := f.svc.Login(ctx, LoginRequest{Email: "alice@test.com", Password: "Br4ndnewpw"})
	assert.NoError(t, err)
}

func TestSessionToken_RejectsForgery(t *testing.T) {
	store := NewRedisSessionStore(nil, "session-secret", time.Hour)
	signed, err := store.codec.Encode(SessionCookie, "abc")
	require.NoError(t, err)

	id, ok := store.decode(signed)
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	other := NewRedisSessionStore(nil, "other-secret", time.Hour)
	_, ok = other.decode(signed)
	assert.False(t, ok)
	_, ok = store.decode(signed + "x")
	assert.False(t, ok)
	_, ok = store.decode("abc")
	assert.False(t, ok)
}

func TestEmailService_SendPasswordReset(t *testing.T) {
	svc := NewEmailService(EmailConfig{
		SMTPHost: "smtp.test", SMTPPort: 587, FromEmail: "no-reply@test", FrontendURL: "http://app.test",
	}, zerolog.Nop())

	var gotAddr string
	var gotMsg []byte
	svc.send = func(addr string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotAddr, gotMsg = addr, msg
		return nil
	}

	require.NoError(t, svc.SendPasswordReset(context.Background(), "a@test.com", "tok+1", time.Hour))
	assert.Equal(t, "smtp.test:587", gotAddr)
	assert.Contains(t, string(gotMsg), "http://app.test/reset-password?token=tok%2B1")
	assert.Contains(t, string(gotMsg), "To: a@test.com")

	unconfigured := NewEmailService(EmailConfig{}, zerolog.Nop())
	assert.ErrorIs(t, unconfigured.SendPasswordReset(context.Background(), "a@test.com", "t", time.Hour), ErrEmailNotConfigured)
}
