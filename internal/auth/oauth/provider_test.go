package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/zart/quizzer/internal/config"
	"github.com/zart/quizzer/internal/models"
)

// fakeIdP serves a token endpoint plus the given API routes.
func fakeIdP(t *testing.T, routes map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer"}`))
	})
	for path, body := range routes {
		mux.HandleFunc("GET "+path, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(body)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testProvider(srv *httptest.Server, name string, fn profileFunc) *provider {
	return &provider{
		name: name,
		conf: &oauth2.Config{
			ClientID:     "id",
			ClientSecret: "secret",
			RedirectURL:  "http://localhost/callback",
			Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
		},
		apiBase: srv.URL,
		profile: fn,
	}
}

func TestGoogle_Exchange(t *testing.T) {
	srv := fakeIdP(t, map[string]any{
		"/oauth2/v2/userinfo": map[string]string{"id": "g-1", "email": "a@test.com", "name": "Alice", "picture": "http://pic"},
	})
	p := testProvider(srv, models.ProviderGoogle, googleProfile)

	id, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, &Identity{Provider: "google", ProviderID: "g-1", Email: "a@test.com", Name: "Alice", AvatarURL: "http://pic"}, id)
}

func TestExchange_BadCode(t *testing.T) {
	srv := fakeIdP(t, nil)
	p := testProvider(srv, models.ProviderGoogle, googleProfile)

	_, err := p.Exchange(context.Background(), "bad-code")
	assert.ErrorIs(t, err, ErrExchangeFailed)
}

func TestGitHub_FallsBackToEmailsEndpoint(t *testing.T) {
	srv := fakeIdP(t, map[string]any{
		"/user": map[string]any{"id": 42, "login": "octo", "email": nil},
		"/user/emails": []map[string]any{
			{"email": "secondary@test.com", "primary": false, "verified": true},
			{"email": "octo@test.com", "primary": true, "verified": true},
		},
	})
	p := testProvider(srv, models.ProviderGitHub, githubProfile)

	id, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "42", id.ProviderID)
	assert.Equal(t, "octo", id.Login)
	assert.Equal(t, "octo@test.com", id.Email)
}

func TestGitHub_NoEmailTolerated(t *testing.T) {
	srv := fakeIdP(t, map[string]any{
		"/user":        map[string]any{"id": 7, "login": "ghost"},
		"/user/emails": []map[string]any{},
	})
	p := testProvider(srv, models.ProviderGitHub, githubProfile)

	id, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Empty(t, id.Email)
	assert.Equal(t, "ghost", id.Login)
}

func TestFacebook_Exchange(t *testing.T) {
	srv := fakeIdP(t, map[string]any{
		"/me": map[string]any{"id": "fb-9", "name": "Fay", "picture": map[string]any{"data": map[string]string{"url": "http://fb/pic"}}},
	})
	p := testProvider(srv, models.ProviderFacebook, facebookProfile)

	id, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "fb-9", id.ProviderID)
	assert.Equal(t, "http://fb/pic", id.AvatarURL)
	assert.Empty(t, id.Email)
}

func TestRegistry_FromConfig(t *testing.T) {
	reg := FromConfig(config.OAuth{
		GoogleClientID:     "gid",
		GoogleClientSecret: "gsecret",
		GoogleRedirectURL:  "http://localhost:5000/api/auth/google/callback",
		GitHubClientID:     "only-id",
	})
	assert.Equal(t, []string{"google"}, reg.Names())

	p, err := reg.Get("google")
	require.NoError(t, err)
	u, err := url.Parse(p.AuthCodeURL("state-1"))
	require.NoError(t, err)
	assert.Equal(t, "state-1", u.Query().Get("state"))
	assert.Equal(t, "gid", u.Query().Get("client_id"))

	_, err = reg.Get("github")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
