package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/zart/quizzer/internal/auth/jwt"
	"github.com/zart/quizzer/internal/auth/oauth"
	"github.com/zart/quizzer/internal/db/memstore"
	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

var testTokenConfig = jwt.TokenConfig{
	AccessSecret:  []byte("test-access-secret"),
	RefreshSecret: []byte("test-refresh-secret"),
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]string
	next     int
}

func newFakeSessions() *fakeSessions { return &fakeSessions{sessions: map[string]string{}} }

func (f *fakeSessions) Create(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	sid := fmt.Sprintf("sid-%d", f.next)
	f.sessions[sid] = userID
	return sid, nil
}

func (f *fakeSessions) Lookup(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.sessions[token]
	if !ok {
		return "", ErrSessionNotFound
	}
	return id, nil
}

func (f *fakeSessions) Destroy(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, token)
	return nil
}

type fakeResets struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (f *fakeResets) Issue(_ context.Context, userID, _ string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "reset-" + userID
	f.tokens[token] = userID
	return token, nil
}

func (f *fakeResets) Consume(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[token]
	if !ok {
		return "", ErrInvalidResetToken
	}
	delete(f.tokens, token)
	return id, nil
}

type fakeMailer struct {
	sent map[string]string // to -> token
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, to, token string, _ time.Duration) error {
	f.sent[to] = token
	return nil
}

type fixture struct {
	stores   *repository.Stores
	svc      *Service
	sessions *fakeSessions
	mailer   *fakeMailer
	deleted  []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		stores:   memstore.New(),
		sessions: newFakeSessions(),
		mailer:   &fakeMailer{sent: map[string]string{}},
	}
	f.svc = NewService(f.stores, ServiceOptions{
		Tokens:           jwt.NewManager(testTokenConfig),
		Hasher:           NewHasher(4),
		Sessions:         f.sessions,
		Resets:           &fakeResets{tokens: map[string]string{}},
		Mailer:           f.mailer,
		OnAccountDeleted: func(_ context.Context, id string) { f.deleted = append(f.deleted, id) },
	}, zerolog.Nop())
	return f
}

func (f *fixture) register(t *testing.T, username, email string) *models.User {
	t.Helper()
	u, _, err := f.svc.Register(context.Background(), RegisterRequest{Username: username, Email: email, Password: "Str0ng!pw"})
	require.NoError(t, err)
	return u
}

type fakeProvider struct {
	name     string
	identity *oauth.Identity
	err      error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.test/authorize?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth.Identity, error) {
	if p.err != nil {
		return nil, p.err
	}
	if code != "good-code" {
		return nil, oauth.ErrExchangeFailed
	}
	id := *p.identity
	id.Provider = p.name
	return &id, nil
}
