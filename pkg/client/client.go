// Package client is a typed HTTP client for the quizzer API. It keeps the
// session cookies in a jar, sends the access token as a bearer header and
// refreshes it transparently when a request is rejected with 401.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	httperrors "github.com/zart/quizzer/pkg/http/errors"
)

// ErrSessionExpired is returned when a request was rejected and the refresh
// token could not renew the session.
var ErrSessionExpired = errors.New("session expired")

const (
	refreshPath   = "/api/auth/refresh"
	accessHeader  = "X-Access-Token"
	refreshHeader = "X-Refresh-Token"
)

// APIError is a non-2xx response decoded from the API's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
	Field   string
	Details map[string]any
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("api error %d %s (%s): %s", e.Status, e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Options configures a Client.
type Options struct {
	BaseURL string
	// HTTPClient defaults to a client with a cookie jar and a 30s timeout.
	HTTPClient *http.Client
	// OnSessionExpired runs once for each refresh that fails.
	OnSessionExpired func()
}

// Client talks to the API on behalf of one user.
type Client struct {
	baseURL   string
	http      *http.Client
	onExpired func()

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expired      bool

	refreshes singleflight.Group
}

// New builds a client. The cookie jar cannot fail to initialise with nil options.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		jar, _ := cookiejar.New(nil)
		hc = &http.Client{Jar: jar, Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		http:      hc,
		onExpired: opts.OnSessionExpired,
	}
}

// SetTokens replaces the credentials used for subsequent requests. A non-empty
// access token re-arms refreshing after a session expiry.
func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
	c.refreshToken = refresh
	if access != "" {
		c.expired = false
	}
}

// Tokens returns the current access and refresh tokens.
func (c *Client) Tokens() (access, refresh string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken, c.refreshToken
}

// Do sends a JSON request and decodes a 2xx body into out (when non-nil).
// A 401 triggers one shared refresh, after which the request is replayed once.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	used, _ := c.Tokens()
	resp, err := c.send(ctx, method, path, payload, used)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && !isAuthPath(path) {
		drain(resp)
		token, err := c.refresh(ctx, used)
		if err != nil {
			return err
		}
		if resp, err = c.send(ctx, method, path, payload, token); err != nil {
			return err
		}
	}
	return decode(resp, out)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	// The server renews an expired access token in place when a refresh cookie is present.
	if renewed := resp.Header.Get(accessHeader); renewed != "" {
		c.mu.Lock()
		c.accessToken = renewed
		c.mu.Unlock()
	}
	return resp, nil
}

// refresh renews the access token. Concurrent callers share one call; a caller
// whose token was already replaced by another refresh reuses the new token.
func (c *Client) refresh(ctx context.Context, used string) (string, error) {
	c.mu.RLock()
	current, expired := c.accessToken, c.expired
	c.mu.RUnlock()
	if expired {
		return "", ErrSessionExpired
	}
	if current != "" && current != used {
		return current, nil
	}

	v, err, _ := c.refreshes.Do("refresh", func() (any, error) {
		token, err := c.doRefresh(context.WithoutCancel(ctx))
		if err != nil {
			c.mu.Lock()
			c.accessToken, c.refreshToken, c.expired = "", "", true
			c.mu.Unlock()
			if c.onExpired != nil {
				c.onExpired()
			}
			return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
		}
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) doRefresh(ctx context.Context) (string, error) {
	_, refreshToken := c.Tokens()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, strings.NewReader("{}"))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if refreshToken != "" {
		req.Header.Set(refreshHeader, refreshToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	var out AuthResponse
	if err := decode(resp, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("refresh returned no access token")
	}
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	c.SetTokens(out.AccessToken, out.RefreshToken)
	return out.AccessToken, nil
}

func isAuthPath(path string) bool {
	switch path {
	case refreshPath, "/api/auth/login", "/api/auth/register":
		return true
	}
	return false
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var body httperrors.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil {
			apiErr.Code, apiErr.Message, apiErr.Field, apiErr.Details = body.Error, body.Message, body.Field, body.Details
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
}
