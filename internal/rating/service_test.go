package rating

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zart/quizzer/internal/auth"
	"github.com/zart/quizzer/internal/db/memstore"
	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

func setup(t *testing.T) (*Service, *repository.Stores) {
	t.Helper()
	stores := memstore.New()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, stores.Quizzes.Create(ctx, &models.Quiz{ID: "pub", Topic: "Algebra", IsPublic: true, CreatedBy: "owner", CreatedAt: now}))
	require.NoError(t, stores.Quizzes.Create(ctx, &models.Quiz{ID: "priv", Topic: "Secret", CreatedBy: "owner", CreatedAt: now}))
	return NewService(stores, zerolog.Nop()), stores
}

func TestRate_UpsertsOneRow(t *testing.T) {
	svc, stores := setup(t)
	ctx := context.Background()

	_, err := svc.Rate(ctx, "alice", "pub", 4)
	require.NoError(t, err)
	res, err := svc.Rate(ctx, "alice", "pub", 5)
	require.NoError(t, err)

	assert.Equal(t, models.RatingStats{Count: 1, Average: 5}, res.Stats)
	assert.Equal(t, 5, res.UserRating)

	quiz, err := stores.Quizzes.GetByID(ctx, "pub")
	require.NoError(t, err)
	assert.Equal(t, int64(1), quiz.RatingCount)
	assert.Equal(t, 5.0, quiz.RatingAverage)
}

func TestRate_AverageRounded(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	for user, v := range map[string]int{"a": 4, "b": 5, "c": 5} {
		_, err := svc.Rate(ctx, user, "pub", v)
		require.NoError(t, err)
	}
	stats, err := svc.Stats(ctx, "", "pub")
	require.NoError(t, err)
	assert.Equal(t, models.RatingStats{Count: 3, Average: 4.67}, stats)
}

func TestRate_Validation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Rate(ctx, "alice", "pub", 0)
	assert.ErrorIs(t, err, ErrInvalidRating)
	_, err = svc.Rate(ctx, "alice", "pub", 6)
	assert.ErrorIs(t, err, ErrInvalidRating)
	_, err = svc.Rate(ctx, "alice", "missing", 3)
	assert.ErrorIs(t, err, ErrQuizNotFound)
	_, err = svc.Rate(ctx, "alice", "priv", 3)
	assert.ErrorIs(t, err, ErrQuizNotFound)

	_, err = svc.Rate(ctx, "owner", "priv", 3)
	assert.NoError(t, err)
}

func TestUserRating(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	r, err := svc.UserRating(ctx, "alice", "pub")
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = svc.Rate(ctx, "alice", "pub", 2)
	require.NoError(t, err)
	r, err = svc.UserRating(ctx, "alice", "pub")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Rating)
}

func TestHandlers(t *testing.T) {
	svc, _ := setup(t)
	h := NewHTTPHandlers(svc, false, zerolog.Nop())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ratings/{quizId}", h.Rate)
	mux.HandleFunc("GET /api/ratings/{quizId}/stats", h.Stats)
	mux.HandleFunc("GET /api/ratings/{quizId}/me", h.Mine)

	user := &models.User{ID: "alice", Username: "alice"}
	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(auth.WithUser(req.Context(), user))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodGet, "/api/ratings/pub/me", "")
	assert.JSONEq(t, `{"rating":null}`, rec.Body.String())

	rec = do(http.MethodPost, "/api/ratings/pub", `{"rating":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodPost, "/api/ratings/pub", `{"rating":4}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(http.MethodPost, "/api/ratings/pub", `{"rating":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(http.MethodGet, "/api/ratings/pub/stats", "")
	assert.JSONEq(t, `{"count":1,"average":5}`, rec.Body.String())

	rec = do(http.MethodGet, "/api/ratings/pub/me", "")
	assert.JSONEq(t, `{"rating":5}`, rec.Body.String())

	rec = do(http.MethodPost, "/api/ratings/priv", `{"rating":4}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
