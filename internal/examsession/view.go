package examsession

import (
	"time"

	"github.com/elivate/elivate-backend/internal/model"
	"github.com/elivate/elivate-backend/internal/rules"
	"github.com/elivate/elivate-backend/internal/scoring"
	"github.com/google/uuid"
)

// Results is the frozen outcome of a submitted session.
type Results struct {
	SessionID     uuid.UUID                 `json:"session_id"`
	Program       rules.Program             `json:"program"`
	Score         scoring.ScoreResult       `json:"score"`
	Subjects      []scoring.SubjectProgress `json:"subjects"`
	Review        []scoring.QuestionReview  `json:"review"`
	AutoSubmitted bool                      `json:"auto_submitted"`
	StartedAt     time.Time                 `json:"started_at"`
	SubmittedAt   time.Time                 `json:"submitted_at"`
	Warning       string                    `json:"warning,omitempty"`
}

// Instructions is what the learner reads before starting.
type Instructions struct {
	SessionID            uuid.UUID           `json:"session_id"`
	Program              rules.Program       `json:"program"`
	Title                string              `json:"title"`
	DurationMinutes      int                 `json:"duration_minutes"`
	OfficialQuestions    int                 `json:"official_questions"`
	QuestionCount        int                 `json:"question_count"`
	TotalMarks           float64             `json:"total_marks"`
	NegativeMarkingRatio float64             `json:"negative_marking_ratio"`
	PassingPercentage    float64             `json:"passing_percentage"`
	MaxAttempts          int                 `json:"max_attempts"`
	Subjects             []rules.SubjectRule `json:"subjects"`
	Instructions         []string            `json:"instructions"`
	CanStart             bool                `json:"can_start"`
	Warning              string              `json:"warning,omitempty"`
}

// Summary backs the submit confirmation dialog.
type Summary struct {
	Total            int `json:"total"`
	Answered         int `json:"answered"`
	Unanswered       int `json:"unanswered"`
	MarkedForReview  int `json:"marked_for_review"`
	RemainingSeconds int `json:"remaining_seconds"`
}

// State is the full learner-facing view of a session.
type State struct {
	SessionID        uuid.UUID                  `json:"session_id"`
	Program          rules.Program              `json:"program"`
	Status           Status                     `json:"status"`
	StartedAt        *time.Time                 `json:"started_at,omitempty"`
	DurationMinutes  int                        `json:"duration_minutes"`
	RemainingSeconds int                        `json:"remaining_seconds"`
	CurrentIndex     int                        `json:"current_index"`
	Questions        []model.QuestionForLearner `json:"questions,omitempty"`
	Answers          map[uuid.UUID]int          `json:"answers"`
	MarkedForReview  []uuid.UUID                `json:"marked_for_review"`
	Progress         []scoring.SubjectProgress  `json:"progress"`
	Warning          string                     `json:"warning,omitempty"`
}

// Instructions renders the instructions screen. CanStart is false when no
// question could be drawn.
func (s *Session) Instructions() Instructions {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.rules
	out := Instructions{
		SessionID:            s.cfg.SessionID,
		Program:              rs.Program,
		Title:                rs.Title,
		DurationMinutes:      rs.DurationMinutes,
		OfficialQuestions:    rs.TotalQuestions,
		QuestionCount:        len(s.questions),
		TotalMarks:           rs.TotalMarks,
		NegativeMarkingRatio: rs.NegativeMarkingRatio,
		PassingPercentage:    rs.PassingPercentage,
		MaxAttempts:          rs.MaxAttempts,
		Subjects:             rs.Subjects,
		Instructions:         rs.Instructions,
		CanStart:             s.status == StatusInstructions && len(s.questions) > 0,
		Warning:              s.shortfallWarning(),
	}
	if len(s.questions) == 0 {
		out.Warning = "No questions are available for this test right now."
	}
	return out
}

// Summary counts answered, unanswered and flagged questions.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	answered := 0
	for i := range s.questions {
		if _, ok := s.answers[s.questions[i].ID]; ok {
			answered++
		}
	}
	return Summary{
		Total:            len(s.questions),
		Answered:         answered,
		Unanswered:       len(s.questions) - answered,
		MarkedForReview:  len(s.review),
		RemainingSeconds: s.remainingLocked(),
	}
}

// State renders the current view. Questions are omitted on the instructions
// screen so nobody can read them before the clock starts.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		SessionID:        s.cfg.SessionID,
		Program:          s.rules.Program,
		Status:           s.status,
		DurationMinutes:  s.rules.DurationMinutes,
		RemainingSeconds: s.remainingLocked(),
		CurrentIndex:     s.current,
		Answers:          make(map[uuid.UUID]int, len(s.answers)),
		MarkedForReview:  s.reviewListLocked(),
		Progress:         scoring.SubjectWiseProgress(s.questions, s.answers, false),
		Warning:          s.shortfallWarning(),
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		st.StartedAt = &started
	}
	for k, v := range s.answers {
		st.Answers[k] = v
	}
	if s.status != StatusInstructions {
		st.Questions = make([]model.QuestionForLearner, len(s.questions))
		for i := range s.questions {
			st.Questions[i] = s.questions[i].ForLearner()
		}
	}
	return st
}

// reviewListLocked returns flagged question IDs in display order.
func (s *Session) reviewListLocked() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s.review))
	for i := range s.questions {
		if _, ok := s.review[s.questions[i].ID]; ok {
			out = append(out, s.questions[i].ID)
		}
	}
	return out
}
