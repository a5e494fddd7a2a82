package oauth

import (
	"context"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/zart/quizzer/internal/config"
	"github.com/zart/quizzer/internal/models"
)

const (
	googleAPIBase   = "https://www.googleapis.com"
	githubAPIBase   = "https://api.github.com"
	facebookAPIBase = "https://graph.facebook.com/v19.0"
)

func oauthConfig(c config.OAuthProvider, endpoint oauth2.Endpoint, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
}

// NewGoogle builds the Google adapter.
func NewGoogle(c config.OAuthProvider) Provider {
	return &provider{
		name:    models.ProviderGoogle,
		conf:    oauthConfig(c, google.Endpoint, "openid", "email", "profile"),
		apiBase: googleAPIBase,
		profile: googleProfile,
	}
}

func googleProfile(ctx context.Context, client *http.Client, base string) (*Identity, error) {
	var u struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := getJSON(ctx, client, base+"/oauth2/v2/userinfo", &u); err != nil {
		return nil, err
	}
	return &Identity{ProviderID: u.ID, Email: u.Email, Name: u.Name, AvatarURL: u.Picture}, nil
}

// NewGitHub builds the GitHub adapter.
func NewGitHub(c config.OAuthProvider) Provider {
	return &provider{
		name:    models.ProviderGitHub,
		conf:    oauthConfig(c, github.Endpoint, "read:user", "user:email"),
		apiBase: githubAPIBase,
		profile: githubProfile,
	}
}

// githubProfile falls back to /user/emails when the public profile hides the address.
func githubProfile(ctx context.Context, client *http.Client, base string) (*Identity, error) {
	var u struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, base+"/user", &u); err != nil {
		return nil, err
	}
	id := &Identity{
		ProviderID: strconv.FormatInt(u.ID, 10),
		Login:      u.Login,
		Name:       u.Name,
		Email:      u.Email,
		AvatarURL:  u.AvatarURL,
	}
	if u.ID == 0 {
		id.ProviderID = ""
	}
	if id.Email != "" {
		return id, nil
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, base+"/user/emails", &emails); err != nil {
		// The profile is still usable without an address.
		return id, nil
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			id.Email = e.Email
			break
		}
	}
	return id, nil
}

// NewFacebook builds the Facebook adapter.
func NewFacebook(c config.OAuthProvider) Provider {
	return &provider{
		name:    models.ProviderFacebook,
		conf:    oauthConfig(c, facebook.Endpoint, "email", "public_profile"),
		apiBase: facebookAPIBase,
		profile: facebookProfile,
	}
}

func facebookProfile(ctx context.Context, client *http.Client, base string) (*Identity, error) {
	var u struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := getJSON(ctx, client, base+"/me?fields=id,name,email,picture.type(large)", &u); err != nil {
		return nil, err
	}
	return &Identity{ProviderID: u.ID, Email: u.Email, Name: u.Name, AvatarURL: u.Picture.Data.URL}, nil
}
