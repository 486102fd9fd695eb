package examsession

import (
	"fmt"
	"time"

	"github.com/elivate/elivate-backend/internal/model"
	"github.com/elivate/elivate-backend/internal/rules"
	"github.com/google/uuid"
)

// Snapshot is the persisted shape of a session, enough to rebuild it after
// a reload or a server restart.
type Snapshot struct {
	SessionID    uuid.UUID         `json:"session_id"`
	LearnerID    string            `json:"learner_id"`
	Program      rules.Program     `json:"program"`
	Status       Status            `json:"status"`
	QuestionIDs  []uuid.UUID       `json:"question_ids"`
	StartedAt    time.Time         `json:"started_at"`
	SubmittedAt  time.Time         `json:"submitted_at"`
	AutoSubmit   bool              `json:"auto_submitted"`
	CurrentIndex int               `json:"current_index"`
	Answers      map[uuid.UUID]int `json:"answers"`
	Review       []uuid.UUID       `json:"review"`
}

// Snapshot captures the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uuid.UUID, len(s.questions))
	for i := range s.questions {
		ids[i] = s.questions[i].ID
	}
	answers := make(map[uuid.UUID]int, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}

	return Snapshot{
		SessionID:    s.cfg.SessionID,
		LearnerID:    s.cfg.LearnerID,
		Program:      s.rules.Program,
		Status:       s.status,
		QuestionIDs:  ids,
		StartedAt:    s.startedAt,
		SubmittedAt:  s.submittedAt,
		AutoSubmit:   s.results != nil && s.results.AutoSubmitted,
		CurrentIndex: s.current,
		Answers:      answers,
		Review:       s.reviewListLocked(),
	}
}

// Restore rebuilds a session from snap. questions must hold the questions
// named by snap.QuestionIDs; any that are missing are dropped along with
// their answers. A restored finished session has its results recomputed
// but never hands its attempt to the sinks again.
func Restore(cfg Config, rs rules.RuleSet, questions []model.Question, snap Snapshot) (*Session, error) {
	if snap.Program != rs.Program {
		return nil, fmt.Errorf("restore session: snapshot program %q does not match %q", snap.Program, rs.Program)
	}
	switch snap.Status {
	case StatusInstructions, StatusInProgress, StatusSubmitted, StatusAutoSubmitted, StatusResultsShown:
	default:
		return nil, fmt.Errorf("restore session: unknown status %q", snap.Status)
	}
	if snap.Status != StatusInstructions && snap.StartedAt.IsZero() {
		return nil, fmt.Errorf("restore session: %s without a start time", snap.Status)
	}

	byID := make(map[uuid.UUID]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	ordered := make([]model.Question, 0, len(snap.QuestionIDs))
	for _, id := range snap.QuestionIDs {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}

	cfg.SessionID = snap.SessionID
	cfg.LearnerID = snap.LearnerID
	s := New(cfg, rs, ordered)

	s.status = snap.Status
	s.startedAt = snap.StartedAt
	s.submittedAt = snap.SubmittedAt
	if snap.CurrentIndex >= 0 && snap.CurrentIndex < len(ordered) {
		s.current = snap.CurrentIndex
	}
	for qid, opt := range snap.Answers {
		if _, ok := s.position[qid]; ok && model.ValidOption(opt) {
			s.answers[qid] = opt
		}
	}
	for _, qid := range snap.Review {
		if _, ok := s.position[qid]; ok {
			s.review[qid] = struct{}{}
		}
	}

	if s.status.Finished() {
		if s.submittedAt.IsZero() {
			s.submittedAt = s.startedAt
		}
		s.finished.Store(true)
		s.results = s.computeResultsLocked()
		s.results.AutoSubmitted = snap.AutoSubmit || snap.Status == StatusAutoSubmitted
	}
	return s, nil
}
