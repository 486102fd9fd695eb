package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/elivate/elivate-backend/internal/config"
	"github.com/elivate/elivate-backend/internal/model"
	"github.com/redis/go-redis/v9"
)

// AchievementPublisher fans achievement events out over Redis pub/sub.
type AchievementPublisher struct {
	rdb *redis.Client
}

// NewAchievementPublisher creates a new AchievementPublisher.
func NewAchievementPublisher(rdb *redis.Client) *AchievementPublisher {
	return &AchievementPublisher{rdb: rdb}
}

// NotifyAchievement publishes a to the learner's achievement channel.
func (p *AchievementPublisher) NotifyAchievement(ctx context.Context, a model.Achievement) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal achievement: %w", err)
	}
	channel := config.CacheKey.LearnerAchievementChannel(a.LearnerID)
	if err := p.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("publish achievement: %w", err)
	}
	return nil
}
