package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// LearnerSessionKey returns the cache key for a learner's live session metadata
func (r *CacheKeyStruct) LearnerSessionKey(learnerID string) string {
	return fmt.Sprintf("learner:%s:session", learnerID)
}

// LearnerAnswersKey returns the cache key for a learner's answer sheet hash
func (r *CacheKeyStruct) LearnerAnswersKey(learnerID string) string {
	return fmt.Sprintf("learner:%s:session:answers", learnerID)
}

// LearnerReviewKey returns the cache key for a learner's mark-for-review set
func (r *CacheKeyStruct) LearnerReviewKey(learnerID string) string {
	return fmt.Sprintf("learner:%s:session:review", learnerID)
}

// LearnerAchievementChannel returns the Redis PubSub channel for a learner's achievements
func (r *CacheKeyStruct) LearnerAchievementChannel(learnerID string) string {
	return fmt.Sprintf("learner:%s:achievements", learnerID)
}

var CacheKey = NewCacheKeyStruct()
