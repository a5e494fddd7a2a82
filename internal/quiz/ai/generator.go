package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds connection details for the remote generator service.
type Config struct {
	GeneratorURL string
	GeneratorKey string
	Timeout      time.Duration
}

// RemoteGenerator calls a generator service over HTTP.
type RemoteGenerator struct {
	httpClient  *http.Client
	config      Config
	logger      zerolog.Logger
	generateURL string
}

var _ Generator = (*RemoteGenerator)(nil)

func NewRemoteGenerator(cfg Config, logger zerolog.Logger) *RemoteGenerator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := strings.TrimSuffix(cfg.GeneratorURL, "/")

	return &RemoteGenerator{
		httpClient:  &http.Client{Timeout: timeout},
		config:      cfg,
		logger:      logger.With().Str("component", "ai_generator").Logger(),
		generateURL: base + "/generate",
	}
}

// Generate posts the request to <url>/generate and decodes the questions.
func (g *RemoteGenerator) Generate(ctx context.Context, req Request) ([]Question, error) {
	if g.config.GeneratorURL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.generateURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.config.GeneratorKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.config.GeneratorKey)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("generator returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var genResp Response
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("decode generator payload: %w", err)
	}
	if len(genResp.Questions) == 0 {
		return nil, ErrEmptyResult
	}

	g.logger.Debug().
		Str("topic", req.Topic).
		Int("questions", len(genResp.Questions)).
		Dur("took", time.Since(start)).
		Msg("generator responded")
	return genResp.Questions, nil
}
