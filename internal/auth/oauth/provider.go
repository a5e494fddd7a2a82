// Package oauth adapts external identity providers to a single Provider interface.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"golang.org/x/oauth2"

	"github.com/zart/quizzer/internal/config"
)

var (
	ErrUnknownProvider = errors.New("unknown oauth provider")
	ErrExchangeFailed  = errors.New("oauth code exchange failed")
	ErrProfileFailed   = errors.New("oauth profile fetch failed")
)

// Identity is a provider profile mapped onto the fields used for linking.
type Identity struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
	Login      string
	AvatarURL  string
}

// Provider is one external identity provider.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

type profileFunc func(ctx context.Context, client *http.Client, apiBase string) (*Identity, error)

type provider struct {
	name    string
	conf    *oauth2.Config
	apiBase string
	profile profileFunc
}

func (p *provider) Name() string { return p.name }

func (p *provider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *provider) Exchange(ctx context.Context, code string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrExchangeFailed, p.name, err)
	}
	id, err := p.profile(ctx, p.conf.Client(ctx, tok), p.apiBase)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProfileFailed, p.name, err)
	}
	if id.ProviderID == "" {
		return nil, fmt.Errorf("%w: %s: empty account id", ErrProfileFailed, p.name)
	}
	id.Provider = p.name
	return id, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", url, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// Registry resolves providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry indexes the given providers by Name.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// FromConfig registers every provider whose client id and secret are set.
func FromConfig(cfg config.OAuth) *Registry {
	var ps []Provider
	if c := cfg.Google(); c.Enabled() {
		ps = append(ps, NewGoogle(c))
	}
	if c := cfg.GitHub(); c.Enabled() {
		ps = append(ps, NewGitHub(c))
	}
	if c := cfg.Facebook(); c.Enabled() {
		ps = append(ps, NewFacebook(c))
	}
	return NewRegistry(ps...)
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names lists enabled providers in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
