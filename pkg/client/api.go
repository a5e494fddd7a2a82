package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/zart/quizzer/internal/models"
	"github.com/zart/quizzer/internal/quiz"
	"github.com/zart/quizzer/internal/stats"
)

// AuthResponse is the body of register, login and refresh.
type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
}

// RatingResponse is the body of POST /api/ratings/{quizId}.
type RatingResponse struct {
	Stats      models.RatingStats `json:"stats"`
	UserRating int                `json:"userRating"`
}

// Register creates an account and stores the returned tokens.
func (c *Client) Register(ctx context.Context, username, email, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
}

// Login accepts an email address or a username.
func (c *Client) Login(ctx context.Context, login, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/api/auth/login", map[string]string{"email": login, "password": password})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.Do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	c.SetTokens(out.AccessToken, out.RefreshToken)
	return &out, nil
}

// Logout ends the session server side and forgets local tokens.
func (c *Client) Logout(ctx context.Context) error {
	err := c.Do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.SetTokens("", "")
	return err
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var out struct {
		User *models.User `json:"user"`
	}
	if err := c.Do(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// GenerateQuiz asks the API to author and store a quiz.
func (c *Client) GenerateQuiz(ctx context.Context, req quiz.GenerateRequest) (*quiz.GenerateResult, error) {
	var out quiz.GenerateResult
	if err := c.Do(ctx, http.MethodPost, "/api/quizzes/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Quiz fetches a quiz; preview strips answers even for the owner.
func (c *Client) Quiz(ctx context.Context, id string, preview bool) (*quiz.QuizView, error) {
	path := "/api/quizzes/" + url.PathEscape(id)
	if preview {
		path += "?preview=true"
	}
	var out quiz.QuizView
	if err := c.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit grades a set of answers.
func (c *Client) Submit(ctx context.Context, quizID string, req quiz.SubmitRequest) (*quiz.SubmitResult, error) {
	var out quiz.SubmitResult
	if err := c.Do(ctx, http.MethodPost, "/api/quizzes/"+url.PathEscape(quizID)+"/submit", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveQuiz bookmarks a quiz.
func (c *Client) SaveQuiz(ctx context.Context, quizID string) error {
	return c.Do(ctx, http.MethodPost, "/api/quizzes/"+url.PathEscape(quizID)+"/save", nil, nil)
}

// Explore lists public quizzes.
func (c *Client) Explore(ctx context.Context, page, limit int, sort string) (*quiz.Page, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if sort != "" {
		q.Set("sort", sort)
	}
	return c.page(ctx, "/api/quizzes/explore", q)
}

// Search finds public quizzes matching text.
func (c *Client) Search(ctx context.Context, text string) (*quiz.Page, error) {
	return c.page(ctx, "/api/quizzes/search", url.Values{"q": {text}})
}

func (c *Client) page(ctx context.Context, path string, q url.Values) (*quiz.Page, error) {
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out quiz.Page
	if err := c.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rate stores the caller's 1-5 rating.
func (c *Client) Rate(ctx context.Context, quizID string, value int) (*RatingResponse, error) {
	var out RatingResponse
	if err := c.Do(ctx, http.MethodPost, "/api/ratings/"+url.PathEscape(quizID), map[string]int{"rating": value}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyStats returns the caller's statistics.
func (c *Client) MyStats(ctx context.Context) (*stats.Summary, error) {
	var out stats.Summary
	if err := c.Do(ctx, http.MethodGet, "/api/statistics/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangePassword updates the caller's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.Do(ctx, http.MethodPut, "/api/settings/password", map[string]string{
		"currentPassword": current,
		"newPassword":     next,
	}, nil)
}

// DeleteAccount removes the caller's account and data.
func (c *Client) DeleteAccount(ctx context.Context, password string) error {
	err := c.Do(ctx, http.MethodDelete, "/api/settings/account", map[string]string{"password": password}, nil)
	if err == nil {
		c.SetTokens("", "")
	}
	return err
}
