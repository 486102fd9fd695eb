package model

import (
	"time"

	"github.com/elivate/elivate-backend/internal/rules"
	"github.com/google/uuid"
)

// AttemptRecord is the one persisted trace of a finished exam session.
type AttemptRecord struct {
	ID              uuid.UUID     `json:"id"`
	SessionID       uuid.UUID     `json:"session_id"`
	LearnerID       string        `json:"learner_id"`
	Program         rules.Program `json:"program"`
	ScorePercentage float64       `json:"score_percentage"`
	TotalMarks      float64       `json:"total_marks"`
	CorrectCount    int           `json:"correct_count"`
	WrongCount      int           `json:"wrong_count"`
	UnansweredCount int           `json:"unanswered_count"`
	TotalQuestions  int           `json:"total_questions"`
	DurationMinutes int           `json:"duration_minutes"`
	Passed          bool          `json:"passed"`
	AutoSubmitted   bool          `json:"auto_submitted"`
	SubmittedAt     time.Time     `json:"submitted_at"`
}

// AchievementKind enumerates the one-way achievement events.
type AchievementKind string

const (
	AchievementPassed  AchievementKind = "PASSED"
	AchievementPerfect AchievementKind = "PERFECT_SCORE"
)

// Achievement is emitted when a learner passes or aces a mock test.
type Achievement struct {
	Kind            AchievementKind `json:"kind"`
	LearnerID       string          `json:"learner_id"`
	SessionID       uuid.UUID       `json:"session_id"`
	Program         rules.Program   `json:"program"`
	ScorePercentage float64         `json:"score_percentage"`
	At              time.Time       `json:"at"`
}
