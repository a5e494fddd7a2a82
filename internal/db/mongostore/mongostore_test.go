package mongostore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

func newMock(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func TestUserStore_GetByEmail(t *testing.T) {
	mt := newMock(t)

	mt.Run("found", func(mt *mtest.T) {
		store := &userStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "quizzer.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u-1"},
			{Key: "username", Value: "alice"},
			{Key: "email", Value: "alice@test.com"},
			{Key: "passwordHash", Value: "hash"},
			{Key: "role", Value: models.RoleUser},
			{Key: "isActive", Value: true},
		}))

		user, err := store.GetByEmail(context.Background(), "alice@test.com")
		require.NoError(t, err)
		assert.Equal(t, "u-1", user.ID)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, "alice@test.com", user.EmailValue())
		assert.True(t, user.HasPassword())
	})

	mt.Run("missing", func(mt *mtest.T) {
		store := &userStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "quizzer.users", mtest.FirstBatch))

		_, err := store.GetByEmail(context.Background(), "nobody@test.com")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestUserStore_CreateDuplicate(t *testing.T) {
	mt := newMock(t)

	mt.Run("duplicate email", func(mt *mtest.T) {
		store := &userStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error collection: quizzer.users index: email_1",
		}))

		email := "alice@test.com"
		err := store.Create(context.Background(), &models.User{ID: "u-2", Username: "alice2", Email: &email, PasswordHash: "x"})
		assert.ErrorIs(t, err, repository.ErrDuplicate)
	})
}

func TestUserStore_RejectsUserWithoutCredential(t *testing.T) {
	mt := newMock(t)

	mt.Run("no credential", func(mt *mtest.T) {
		store := &userStore{coll: mt.Coll}
		err := store.Create(context.Background(), &models.User{ID: "u-3", Username: "nocreds"})
		assert.ErrorIs(t, err, models.ErrNoCredentials)
	})
}

func TestUserStore_GetByProviderIDUnknownProvider(t *testing.T) {
	mt := newMock(t)

	mt.Run("unknown", func(mt *mtest.T) {
		store := &userStore{coll: mt.Coll}
		_, err := store.GetByProviderID(context.Background(), "myspace", "1")
		assert.Error(t, err)
	})
}

func TestSavedStore_SaveTwice(t *testing.T) {
	mt := newMock(t)

	mt.Run("second save is a no-op", func(mt *mtest.T) {
		store := &savedStore{coll: mt.Coll}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}),
		)

		saved := &models.SavedQuiz{ID: "s-1", UserID: "u-1", QuizID: "q-1", CreatedAt: time.Now()}
		created, err := store.Save(context.Background(), saved)
		require.NoError(t, err)
		assert.True(t, created)

		saved.ID = "s-2"
		created, err = store.Save(context.Background(), saved)
		require.NoError(t, err)
		assert.False(t, created)
	})
}

func TestSavedStore_Remove(t *testing.T) {
	mt := newMock(t)

	mt.Run("removes exactly one", func(mt *mtest.T) {
		store := &savedStore{coll: mt.Coll}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)

		removed, err := store.Remove(context.Background(), "u-1", "q-1")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = store.Remove(context.Background(), "u-1", "q-1")
		require.NoError(t, err)
		assert.False(t, removed)
	})
}

func TestRatingStore_Aggregate(t *testing.T) {
	mt := newMock(t)

	mt.Run("with ratings", func(mt *mtest.T) {
		store := &ratingStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "quizzer.quizratings", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: nil},
			{Key: "count", Value: int32(2)},
			{Key: "average", Value: 4.5},
		}))

		stats, err := store.Aggregate(context.Background(), "q-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.Count)
		assert.Equal(t, 4.5, stats.Average)
	})

	mt.Run("no ratings", func(mt *mtest.T) {
		store := &ratingStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "quizzer.quizratings", mtest.FirstBatch))

		stats, err := store.Aggregate(context.Background(), "q-1")
		require.NoError(t, err)
		assert.Equal(t, models.RatingStats{}, stats)
	})
}

func TestQuizStore_ListByIDsKeepsOrder(t *testing.T) {
	mt := newMock(t)

	mt.Run("order", func(mt *mtest.T) {
		store := &quizStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "quizzer.quizzes", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "q-1"}, {Key: "topic", Value: "Algebra"}},
			bson.D{{Key: "_id", Value: "q-2"}, {Key: "topic", Value: "Biology"}},
		))

		quizzes, err := store.ListByIDs(context.Background(), []string{"q-2", "q-missing", "q-1"})
		require.NoError(t, err)
		require.Len(t, quizzes, 2)
		assert.Equal(t, "q-2", quizzes[0].ID)
		assert.Equal(t, "q-1", quizzes[1].ID)
	})
}

func TestQuizStore_IncrementAttemptCountMissing(t *testing.T) {
	mt := newMock(t)

	mt.Run("missing quiz", func(mt *mtest.T) {
		store := &quizStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := store.IncrementAttemptCount(context.Background(), "q-404")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestStatsStore_Increment(t *testing.T) {
	mt := newMock(t)

	mt.Run("returns updated counters", func(mt *mtest.T) {
		store := &statsStore{coll: mt.Coll}
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{
				{Key: "_id", Value: "u-1"},
				{Key: "quizzesCompleted", Value: int64(3)},
				{Key: "totalScore", Value: int64(12)},
			}},
		})

		stats, err := store.Increment(context.Background(), "u-1", models.StatsDelta{QuizzesCompleted: 1, TotalScore: 4}, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.QuizzesCompleted)
		assert.Equal(t, int64(12), stats.TotalScore)
	})
}

func TestBuildQuizFilter(t *testing.T) {
	filter := buildQuizFilter(repository.QuizFilter{
		PublicOnly:   true,
		ExcludeUser:  "u-1",
		Difficulties: []string{"easy", "hard"},
		Tag:          "math",
		Search:       "a+b",
	})

	assert.Equal(t, true, filter["isPublic"])
	assert.Equal(t, bson.M{"$ne": "u-1"}, filter["createdBy"])
	assert.Equal(t, bson.M{"$in": []string{"easy", "hard"}}, filter["difficulty"])
	assert.Equal(t, "math", filter["tags"])
	assert.Len(t, filter["$or"], 3)
}

func TestQuizSort(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "createdAt", Value: 1}}, quizSort(repository.SortOldest))
	assert.Equal(t, "attemptCount", quizSort(repository.SortPopular)[0].Key)
	assert.Equal(t, "ratingAverage", quizSort(repository.SortRating)[0].Key)
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}}, quizSort(""))
}
