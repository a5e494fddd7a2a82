package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zart/quizzer/internal/db/memstore"
	"github.com/zart/quizzer/internal/models"
)

func newTracker() *Tracker {
	return NewTracker(memstore.New().Searches, zerolog.Nop())
}

func TestRecord_NormalizesIntoOneCounter(t *testing.T) {
	tr := newTracker()
	ctx := context.Background()

	q, err := tr.Record(ctx, "  Algebra   Basics ")
	require.NoError(t, err)
	assert.Equal(t, "algebra basics", q)
	_, err = tr.Record(ctx, "algebra basics")
	require.NoError(t, err)

	popular, err := tr.Popular(ctx, 10)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, "algebra basics", popular[0].Query)
	assert.Equal(t, int64(2), popular[0].Count)
}

func TestRecord_IgnoresBlank(t *testing.T) {
	tr := newTracker()
	q, err := tr.Record(context.Background(), "   \t ")
	require.NoError(t, err)
	assert.Empty(t, q)

	popular, err := tr.Popular(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, popular)
	assert.NotNil(t, popular)
}

func TestRecord_TruncatesLongQueries(t *testing.T) {
	tr := newTracker()
	q, err := tr.Record(context.Background(), strings.Repeat("a", MaxQueryLength+20))
	require.NoError(t, err)
	assert.Len(t, q, MaxQueryLength)
}

func TestPopular_OrderAndLimit(t *testing.T) {
	tr := newTracker()
	ctx := context.Background()
	for _, q := range []string{"go", "rust", "go", "zig", "go", "rust"} {
		_, err := tr.Record(ctx, q)
		require.NoError(t, err)
	}

	popular, err := tr.Popular(ctx, 2)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, "go", popular[0].Query)
	assert.Equal(t, "rust", popular[1].Query)
}

func TestPopularHandler(t *testing.T) {
	tr := newTracker()
	_, err := tr.Record(context.Background(), "History")
	require.NoError(t, err)
	h := NewHTTPHandlers(tr, false)

	rec := httptest.NewRecorder()
	h.Popular(rec, httptest.NewRequest(http.MethodGet, "/api/quizzes/search/popular?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Searches []models.SearchQuery `json:"searches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Searches, 1)
	assert.Equal(t, "history", body.Searches[0].Query)

	rec = httptest.NewRecorder()
	h.Popular(rec, httptest.NewRequest(http.MethodGet, "/api/quizzes/search/popular?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
