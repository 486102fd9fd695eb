package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/elivate/elivate-backend/internal/config"
	"github.com/elivate/elivate-backend/internal/examsession"
	"github.com/elivate/elivate-backend/internal/rules"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisSessionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisSessionCache(rdb), mr
}

func sampleSnapshot() examsession.Snapshot {
	q1, q2, q3 := uuid.New(), uuid.New(), uuid.New()
	return examsession.Snapshot{
		SessionID:    uuid.New(),
		LearnerID:    "learner-7",
		Program:      rules.ProgramIOE,
		Status:       examsession.StatusInProgress,
		QuestionIDs:  []uuid.UUID{q1, q2, q3},
		StartedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		CurrentIndex: 1,
		Answers:      map[uuid.UUID]int{q1: 2},
		Review:       []uuid.UUID{q3},
	}
}

func TestRedisSessionCache_SaveLoad(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	snap := sampleSnapshot()

	require.NoError(t, c.Save(ctx, snap, time.Hour))

	got, err := c.Load(ctx, snap.LearnerID)
	require.NoError(t, err)
	assert.Equal(t, snap.SessionID, got.SessionID)
	assert.Equal(t, snap.QuestionIDs, got.QuestionIDs)
	assert.True(t, snap.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, snap.Answers, got.Answers)
	assert.Equal(t, snap.Review, got.Review)
	assert.Equal(t, 1, got.CurrentIndex)

	assert.Equal(t, time.Hour, mr.TTL(config.CacheKey.LearnerSessionKey(snap.LearnerID)))
	assert.Equal(t, time.Hour, mr.TTL(config.CacheKey.LearnerAnswersKey(snap.LearnerID)))
}

func TestRedisSessionCache_IncrementalWrites(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	snap := sampleSnapshot()
	snap.Answers = nil
	snap.Review = nil
	require.NoError(t, c.Save(ctx, snap, 30*time.Minute))

	q := snap.QuestionIDs[1]
	require.NoError(t, c.SaveAnswer(ctx, snap.LearnerID, q, 1))
	require.NoError(t, c.SaveAnswer(ctx, snap.LearnerID, q, 3))
	require.NoError(t, c.SaveReview(ctx, snap.LearnerID, q, true))

	got, err := c.Load(ctx, snap.LearnerID)
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int{q: 3}, got.Answers)
	assert.Equal(t, []uuid.UUID{q}, got.Review)
	assert.Equal(t, 30*time.Minute, mr.TTL(config.CacheKey.LearnerAnswersKey(snap.LearnerID)))

	require.NoError(t, c.SaveReview(ctx, snap.LearnerID, q, false))
	got, err = c.Load(ctx, snap.LearnerID)
	require.NoError(t, err)
	assert.Empty(t, got.Review)
}

func TestRedisSessionCache_SaveReplacesAnswers(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	snap := sampleSnapshot()
	require.NoError(t, c.Save(ctx, snap, time.Hour))

	snap.Answers = map[uuid.UUID]int{snap.QuestionIDs[2]: 0}
	snap.Review = nil
	require.NoError(t, c.Save(ctx, snap, time.Hour))

	got, err := c.Load(ctx, snap.LearnerID)
	require.NoError(t, err)
	assert.Equal(t, snap.Answers, got.Answers)
	assert.Empty(t, got.Review)
}

func TestRedisSessionCache_Missing(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Load(ctx, "nobody")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, c.SaveAnswer(ctx, "nobody", uuid.New(), 0), ErrSessionNotFound)
	assert.ErrorIs(t, c.SaveReview(ctx, "nobody", uuid.New(), true), ErrSessionNotFound)
}

func TestRedisSessionCache_SkipsMalformedEntries(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	snap := sampleSnapshot()
	require.NoError(t, c.Save(ctx, snap, time.Hour))

	mr.HSet(config.CacheKey.LearnerAnswersKey(snap.LearnerID), "not-a-uuid", "1")
	mr.HSet(config.CacheKey.LearnerAnswersKey(snap.LearnerID), uuid.NewString(), "x")
	_, err := mr.SAdd(config.CacheKey.LearnerReviewKey(snap.LearnerID), "junk")
	require.NoError(t, err)

	got, err := c.Load(ctx, snap.LearnerID)
	require.NoError(t, err)
	assert.Equal(t, snap.Answers, got.Answers)
	assert.Equal(t, snap.Review, got.Review)
}

func TestRedisSessionCache_Delete(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	snap := sampleSnapshot()
	require.NoError(t, c.Save(ctx, snap, time.Hour))

	require.NoError(t, c.Delete(ctx, snap.LearnerID))
	assert.False(t, mr.Exists(config.CacheKey.LearnerSessionKey(snap.LearnerID)))
	assert.False(t, mr.Exists(config.CacheKey.LearnerAnswersKey(snap.LearnerID)))
	assert.False(t, mr.Exists(config.CacheKey.LearnerReviewKey(snap.LearnerID)))

	_, err := c.Load(ctx, snap.LearnerID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
