package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiConfig configures direct calls to the Gemini generateContent API.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Gemini authors questions with a Gemini model.
type Gemini struct {
	client     *http.Client
	endpoint   string
	apiKey     string
	maxRetries int
	backoff    time.Duration
	logger     zerolog.Logger
}

var _ Generator = (*Gemini)(nil)

func NewGemini(cfg GeminiConfig, logger zerolog.Logger) *Gemini {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 40 * time.Second
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = defaultGeminiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "models/gemini-1.5-flash"
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &Gemini{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		endpoint:   fmt.Sprintf("%s/v1beta/%s:generateContent", base, model),
		apiKey:     cfg.APIKey,
		maxRetries: retries,
		backoff:    250 * time.Millisecond,
		logger:     logger.With().Str("component", "gemini").Logger(),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig map[string]any  `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate asks the model for questions, retrying malformed or failed replies.
func (g *Gemini) Generate(ctx context.Context, req Request) ([]Question, error) {
	if g.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if req.Count <= 0 {
		req.Count = 5
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: BuildPrompt(req)}}}},
		GenerationConfig: map[string]any{
			"temperature":      0.4,
			"maxOutputTokens":  8192,
			"responseMimeType": "application/json",
		},
	})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.backoff * time.Duration(attempt)):
			}
		}

		questions, err := g.call(ctx, body)
		if err == nil {
			return questions, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
		g.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("gemini call failed")
	}
	return nil, fmt.Errorf("gemini: %w", lastErr)
}

func (g *Gemini) call(ctx context.Context, body []byte) ([]Question, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var gResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	for _, c := range gResp.Candidates {
		for _, part := range c.Content.Parts {
			var payload Response
			if err := json.Unmarshal([]byte(cleanJSON(part.Text)), &payload); err == nil && len(payload.Questions) > 0 {
				return payload.Questions, nil
			}
		}
	}
	return nil, errors.New("malformed or empty model output")
}

// cleanJSON strips markdown fences and any text around the outer object.
func cleanJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	if i := strings.Index(raw, "{"); i > 0 {
		raw = raw[i:]
	}
	if j := strings.LastIndex(raw, "}"); j >= 0 && j+1 < len(raw) {
		raw = raw[:j+1]
	}
	return strings.TrimSpace(raw)
}

// BuildPrompt renders the instruction sent to the model.
func BuildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("Return ONLY valid JSON. No markdown. No commentary.\n")
	b.WriteString(`Shape: {"questions":[{"prompt":"string","options":["a","b","c","d"],"answer":"string","explanation":"string","type":"multiple-choice|true-false"}]}`)
	b.WriteString("\nRules:\n")
	fmt.Fprintf(&b, "- Generate exactly %d questions about %q.\n", req.Count, req.Topic)
	if req.Description != "" {
		fmt.Fprintf(&b, "- Context: %s\n", req.Description)
	}
	if req.Difficulty != "" {
		fmt.Fprintf(&b, "- Difficulty: %s.\n", req.Difficulty)
	}
	switch req.QuizType {
	case "true-false":
		b.WriteString(`- Every question is true-false with options ["True","False"].` + "\n")
	case "mixed":
		b.WriteString("- Mix multiple-choice (4 options) and true-false questions.\n")
	default:
		b.WriteString("- Every question is multiple-choice with exactly 4 options.\n")
	}
	b.WriteString("- The answer must appear verbatim inside options.\n")
	b.WriteString("- Keep prompts short and give a one-sentence explanation.\n")
	return b.String()
}
