package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/elivate/elivate-backend/internal/config"
	"github.com/elivate/elivate-backend/internal/model"
	"github.com/elivate/elivate-backend/internal/rules"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAchievementPublisher_Publishes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, config.CacheKey.LearnerAchievementChannel("learner-9"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	a := model.Achievement{
		Kind:            model.AchievementPassed,
		LearnerID:       "learner-9",
		SessionID:       uuid.New(),
		Program:         rules.ProgramIOE,
		ScorePercentage: 55,
		At:              time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, NewAchievementPublisher(rdb).NotifyAchievement(ctx, a))

	select {
	case msg := <-sub.Channel():
		var got model.Achievement
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, a.Kind, got.Kind)
		assert.Equal(t, a.SessionID, got.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("achievement not published")
	}
}
