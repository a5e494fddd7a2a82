package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zart/quizzer/internal/models"
)

func TestNormalize(t *testing.T) {
	raw := []Question{
		{Prompt: " 2 + 2? ", Options: []string{"3", "4", "4", " "}, Answer: "4", Type: "mcq"},
		{Prompt: "The sky is blue", Answer: "true", Type: "true_false"},
		{Prompt: "Capital of France", Options: []string{"Rome", "Berlin"}, Answer: "Paris"},
		{Prompt: "", Options: []string{"a", "b"}, Answer: "a"},
		{Prompt: "No answer", Options: []string{"a", "b"}},
		{Prompt: "Earth is flat", Options: []string{"True", "False"}, Answer: "False"},
	}

	out := Normalize(raw, models.QuizTypeMixed, 0)
	require.Len(t, out, 4)

	assert.NotEmpty(t, out[0].ID)
	assert.Equal(t, "2 + 2?", out[0].QuestionText)
	assert.Equal(t, []string{"3", "4"}, out[0].Options)
	assert.Equal(t, models.QuizTypeMultipleChoice, out[0].Type)

	assert.Equal(t, models.QuizTypeTrueFalse, out[1].Type)
	assert.Equal(t, []string{"True", "False"}, out[1].Options)
	assert.Equal(t, "True", out[1].CorrectAnswer)

	assert.Equal(t, []string{"Rome", "Berlin", "Paris"}, out[2].Options)

	assert.Equal(t, models.QuizTypeTrueFalse, out[3].Type)
	for _, q := range out {
		assert.NoError(t, q.Validate())
	}
}

func TestNormalize_Limit(t *testing.T) {
	raw := []Question{
		{Prompt: "a", Options: []string{"x", "y"}, Answer: "x"},
		{Prompt: "b", Options: []string{"x", "y"}, Answer: "y"},
		{Prompt: "c", Options: []string{"x", "y"}, Answer: "x"},
	}
	assert.Len(t, Normalize(raw, models.QuizTypeMultipleChoice, 2), 2)
}

func TestRemoteGenerator(t *testing.T) {
	var gotAuth string
	var gotReq Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(Response{Questions: []Question{{Prompt: "q", Options: []string{"a", "b"}, Answer: "a"}}})
	}))
	defer srv.Close()

	g := NewRemoteGenerator(Config{GeneratorURL: srv.URL + "/", GeneratorKey: "k"}, zerolog.Nop())
	qs, err := g.Generate(context.Background(), Request{Topic: "Algebra", Count: 5, Difficulty: "medium"})

	require.NoError(t, err)
	assert.Len(t, qs, 1)
	assert.Equal(t, "Bearer k", gotAuth)
	assert.Equal(t, "Algebra", gotReq.Topic)
}

func TestRemoteGenerator_Errors(t *testing.T) {
	_, err := NewRemoteGenerator(Config{}, zerolog.Nop()).Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err = NewRemoteGenerator(Config{GeneratorURL: srv.URL}, zerolog.Nop()).Generate(context.Background(), Request{})
	assert.ErrorContains(t, err, "502")
}

func geminiReply(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
}

func TestGemini_RetriesMalformedOutput(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		if calls.Add(1) == 1 {
			_ = json.NewEncoder(w).Encode(geminiReply("sorry, not json"))
			return
		}
		_ = json.NewEncoder(w).Encode(geminiReply("```json\n{\"questions\":[{\"prompt\":\"p\",\"options\":[\"a\",\"b\"],\"answer\":\"b\"}]}\n```"))
	}))
	defer srv.Close()

	g := NewGemini(GeminiConfig{APIKey: "secret", Model: "gemini-test", BaseURL: srv.URL, MaxRetries: 2}, zerolog.Nop())
	g.backoff = time.Millisecond

	qs, err := g.Generate(context.Background(), Request{Topic: "Go", Count: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "b", qs[0].Answer)
}

func TestGemini_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGemini(GeminiConfig{APIKey: "secret", BaseURL: srv.URL, MaxRetries: 1}, zerolog.Nop())
	g.backoff = time.Millisecond

	_, err := g.Generate(context.Background(), Request{Topic: "Go"})
	assert.ErrorContains(t, err, "status 500")

	_, err = NewGemini(GeminiConfig{}, zerolog.Nop()).Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSON("Here you go: {\"a\":1} hope it helps"))
	assert.Equal(t, `{"a":1}`, cleanJSON("```json\n{\"a\":1}\n```"))
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(Request{Topic: "Algebra", Count: 5, Difficulty: "medium", QuizType: "true-false"})
	assert.Contains(t, p, `exactly 5 questions about "Algebra"`)
	assert.Contains(t, p, "Difficulty: medium")
	assert.Contains(t, p, "true-false")
}
