// Package cache keeps live exam sessions in Redis so a reload or a server
// restart can pick them up again.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/elivate/elivate-backend/internal/config"
	"github.com/elivate/elivate-backend/internal/examsession"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a learner has no cached session.
var ErrSessionNotFound = errors.New("session not found in cache")

// SessionCache stores one session per learner.
type SessionCache interface {
	Save(ctx context.Context, snap examsession.Snapshot, ttl time.Duration) error
	SaveAnswer(ctx context.Context, learnerID string, questionID uuid.UUID, option int) error
	SaveReview(ctx context.Context, learnerID string, questionID uuid.UUID, marked bool) error
	Load(ctx context.Context, learnerID string) (*examsession.Snapshot, error)
	Delete(ctx context.Context, learnerID string) error
}

// RedisSessionCache splits a snapshot across three keys: a JSON meta blob,
// an answer hash written per selection and a review set.
type RedisSessionCache struct {
	rdb *redis.Client
}

// NewRedisSessionCache creates a RedisSessionCache.
func NewRedisSessionCache(rdb *redis.Client) *RedisSessionCache {
	return &RedisSessionCache{rdb: rdb}
}

// Save replaces everything cached for the snapshot's learner.
func (c *RedisSessionCache) Save(ctx context.Context, snap examsession.Snapshot, ttl time.Duration) error {
	meta := snap
	meta.Answers = nil
	meta.Review = nil
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal session meta: %w", err)
	}

	metaKey := config.CacheKey.LearnerSessionKey(snap.LearnerID)
	answersKey := config.CacheKey.LearnerAnswersKey(snap.LearnerID)
	reviewKey := config.CacheKey.LearnerReviewKey(snap.LearnerID)

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, metaKey, raw, ttl)
		pipe.Del(ctx, answersKey, reviewKey)

		if len(snap.Answers) > 0 {
			fields := make(map[string]interface{}, len(snap.Answers))
			for qid, opt := range snap.Answers {
				fields[qid.String()] = opt
			}
			pipe.HSet(ctx, answersKey, fields)
			if ttl > 0 {
				pipe.Expire(ctx, answersKey, ttl)
			}
		}
		if len(snap.Review) > 0 {
			members := make([]interface{}, len(snap.Review))
			for i, qid := range snap.Review {
				members[i] = qid.String()
			}
			pipe.SAdd(ctx, reviewKey, members...)
			if ttl > 0 {
				pipe.Expire(ctx, reviewKey, ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SaveAnswer records a single selection. The hash inherits the meta TTL.
func (c *RedisSessionCache) SaveAnswer(ctx context.Context, learnerID string, questionID uuid.UUID, option int) error {
	answersKey := config.CacheKey.LearnerAnswersKey(learnerID)
	ttl, err := c.metaTTL(ctx, learnerID)
	if err != nil {
		return err
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, answersKey, questionID.String(), option)
		if ttl > 0 {
			pipe.Expire(ctx, answersKey, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// SaveReview adds or removes a mark-for-review flag.
func (c *RedisSessionCache) SaveReview(ctx context.Context, learnerID string, questionID uuid.UUID, marked bool) error {
	reviewKey := config.CacheKey.LearnerReviewKey(learnerID)
	ttl, err := c.metaTTL(ctx, learnerID)
	if err != nil {
		return err
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if marked {
			pipe.SAdd(ctx, reviewKey, questionID.String())
		} else {
			pipe.SRem(ctx, reviewKey, questionID.String())
		}
		if ttl > 0 {
			pipe.Expire(ctx, reviewKey, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	return nil
}

// Load reassembles the learner's snapshot. Malformed hash or set entries
// are skipped.
func (c *RedisSessionCache) Load(ctx context.Context, learnerID string) (*examsession.Snapshot, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.LearnerSessionKey(learnerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session meta: %w", err)
	}

	var snap examsession.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal session meta: %w", err)
	}

	answers, err := c.rdb.HGetAll(ctx, config.CacheKey.LearnerAnswersKey(learnerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}
	snap.Answers = make(map[uuid.UUID]int, len(answers))
	for k, v := range answers {
		qid, err := uuid.Parse(k)
		if err != nil {
			continue
		}
		opt, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		snap.Answers[qid] = opt
	}

	members, err := c.rdb.SMembers(ctx, config.CacheKey.LearnerReviewKey(learnerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get review marks: %w", err)
	}
	snap.Review = make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		if qid, err := uuid.Parse(m); err == nil {
			snap.Review = append(snap.Review, qid)
		}
	}

	return &snap, nil
}

// Delete drops every key of the learner's session.
func (c *RedisSessionCache) Delete(ctx context.Context, learnerID string) error {
	err := c.rdb.Del(ctx,
		config.CacheKey.LearnerSessionKey(learnerID),
		config.CacheKey.LearnerAnswersKey(learnerID),
		config.CacheKey.LearnerReviewKey(learnerID),
	).Err()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (c *RedisSessionCache) metaTTL(ctx context.Context, learnerID string) (time.Duration, error) {
	ttl, err := c.rdb.TTL(ctx, config.CacheKey.LearnerSessionKey(learnerID)).Result()
	if err != nil {
		return 0, fmt.Errorf("get session ttl: %w", err)
	}
	// -2: key missing, -1: no expiry.
	if ttl == -2 {
		return 0, ErrSessionNotFound
	}
	return ttl, nil
}
