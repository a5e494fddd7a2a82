package auth

import (
	"net/http"
	"strings"
	"time"
)

// Cookie and header names used to carry credentials.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
	SessionCookie = "sid"
	StateCookie   = "oauth_state"

	RefreshHeader = "X-Refresh-Token"
	AccessHeader  = "X-Access-Token"
)

// CookieConfig controls cookie attributes shared by every credential cookie.
type CookieConfig struct {
	Secure bool
	Domain string
}

func (c CookieConfig) set(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func cookieValue(r *http.Request, name string) string {
	if c, err := r.Cookie(name); err == nil {
		return c.Value
	}
	return ""
}

// accessTokenFrom reads the access token cookie, then the Authorization header.
func accessTokenFrom(r *http.Request) string {
	if v := cookieValue(r, AccessCookie); v != "" {
		return v
	}
	h := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// refreshTokenFrom reads the refresh token cookie, then the X-Refresh-Token header.
func refreshTokenFrom(r *http.Request) string {
	if v := cookieValue(r, RefreshCookie); v != "" {
		return v
	}
	return strings.TrimSpace(r.Header.Get(RefreshHeader))
}
