// Package examsession drives one learner's mock test from the instructions
// screen to the results view.
package examsession

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elivate/elivate-backend/internal/model"
	"github.com/elivate/elivate-backend/internal/rules"
	"github.com/elivate/elivate-backend/internal/scoring"
	"github.com/elivate/elivate-backend/internal/timer"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"k8s.io/utils/clock"
)

// Status is the lifecycle position of a session. It only moves forward.
type Status string

const (
	StatusInstructions  Status = "INSTRUCTIONS"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusSubmitted     Status = "SUBMITTED"
	StatusAutoSubmitted Status = "AUTO_SUBMITTED"
	StatusResultsShown  Status = "RESULTS_SHOWN"
)

// Finished reports whether the answer sheet is frozen.
func (s Status) Finished() bool {
	return s == StatusSubmitted || s == StatusAutoSubmitted || s == StatusResultsShown
}

var (
	ErrNoQuestions       = errors.New("no questions available for this test")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrNotInProgress     = errors.New("session is not in progress")
	ErrTimeUp            = errors.New("time is up")
	ErrUnknownQuestion   = errors.New("question is not part of this session")
	ErrInvalidOption     = errors.New("option must be between 0 and 3")
	ErrIndexOutOfRange   = errors.New("question index out of range")
)

// persistTimeout bounds one background hand-off to the sinks.
const persistTimeout = 10 * time.Second

// AttemptSink receives the attempt record of a finished session.
type AttemptSink interface {
	SaveAttempt(ctx context.Context, rec model.AttemptRecord) error
}

// Notifier receives one-way achievement events.
type Notifier interface {
	NotifyAchievement(ctx context.Context, a model.Achievement) error
}

// Config carries a session's identity and collaborators.
type Config struct {
	SessionID uuid.UUID
	LearnerID string
	Sink      AttemptSink
	Notifier  Notifier // optional
	Clock     clock.PassiveClock
	Log       zerolog.Logger
}

// Session is one attempt. All methods are safe for concurrent use: HTTP
// handlers, the WebSocket stream and the countdown all reach the same value.
type Session struct {
	mu  sync.Mutex
	cfg Config
	log zerolog.Logger

	rules     rules.RuleSet
	questions []model.Question
	position  map[uuid.UUID]int

	status      Status
	startedAt   time.Time
	submittedAt time.Time
	current     int
	answers     map[uuid.UUID]int
	review      map[uuid.UUID]struct{}
	results     *Results

	finished atomic.Bool
	pending  sync.WaitGroup
}

// New opens a session on the instructions screen. questions is the drawn
// set, in display order; it may be shorter than the official pattern.
func New(cfg Config, rs rules.RuleSet, questions []model.Question) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.SessionID == uuid.Nil {
		cfg.SessionID = uuid.New()
	}

	s := &Session{
		cfg: cfg,
		log: cfg.Log.With().
			Str("component", "exam_session").
			Str("session_id", cfg.SessionID.String()).
			Str("program", string(rs.Program)).
			Logger(),
		rules:     rs,
		questions: questions,
		position:  make(map[uuid.UUID]int, len(questions)),
		status:    StatusInstructions,
		answers:   make(map[uuid.UUID]int),
		review:    make(map[uuid.UUID]struct{}),
	}
	for i := range questions {
		s.position[questions[i].ID] = i
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.cfg.SessionID }

// LearnerID returns the owner of the session.
func (s *Session) LearnerID() string { return s.cfg.LearnerID }

// Rules returns the rule set the session runs under.
func (s *Session) Rules() rules.RuleSet { return s.rules }

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// StartedAt returns the start timestamp, zero before Start.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Start confirms the instructions and starts the clock.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInstructions {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, s.status)
	}
	if len(s.questions) == 0 {
		return ErrNoQuestions
	}

	s.startedAt = s.cfg.Clock.Now()
	s.status = StatusInProgress
	s.log.Info().Int("questions", len(s.questions)).Msg("Session started")
	return nil
}

// SelectAnswer records option for question qid. The last selection wins.
func (s *Session) SelectAnswer(qid uuid.UUID, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMutableLocked(); err != nil {
		return err
	}
	if _, ok := s.position[qid]; !ok {
		return ErrUnknownQuestion
	}
	if !model.ValidOption(option) {
		return ErrInvalidOption
	}
	s.answers[qid] = option
	return nil
}

// ToggleReview flips the mark-for-review flag of qid and returns the new value.
func (s *Session) ToggleReview(qid uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMutableLocked(); err != nil {
		return false, err
	}
	if _, ok := s.position[qid]; !ok {
		return false, ErrUnknownQuestion
	}
	if _, marked := s.review[qid]; marked {
		delete(s.review, qid)
		return false, nil
	}
	s.review[qid] = struct{}{}
	return true, nil
}

// Navigate moves the cursor. It never touches answers.
func (s *Session) Navigate(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return ErrNotInProgress
	}
	if index < 0 || index >= len(s.questions) {
		return ErrIndexOutOfRange
	}
	s.current = index
	return nil
}

// Remaining returns the seconds left. Before Start it is the full duration;
// after submission it is frozen at the moment of submission.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked()
}

func (s *Session) remainingLocked() int {
	switch {
	case s.startedAt.IsZero():
		return s.rules.DurationMinutes * 60
	case s.status.Finished():
		return timer.Remaining(s.startedAt, s.rules.DurationMinutes, s.submittedAt)
	default:
		return timer.Remaining(s.startedAt, s.rules.DurationMinutes, s.cfg.Clock.Now())
	}
}

func (s *Session) checkMutableLocked() error {
	if s.status != StatusInProgress {
		return ErrNotInProgress
	}
	if s.remainingLocked() == 0 {
		return ErrTimeUp
	}
	return nil
}

// Submit is the learner's confirmed submission.
func (s *Session) Submit(ctx context.Context) (*Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return nil, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, s.status)
	}
	// Past the deadline the submission belongs to TimeUp.
	if s.remainingLocked() == 0 {
		return nil, ErrTimeUp
	}
	if !s.finished.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: already finished", ErrInvalidTransition)
	}
	return s.finishLocked(ctx, false), nil
}

// TimeUp auto-submits the session. Only the first call on an in-progress
// session has any effect; every other call reports false and does nothing.
func (s *Session) TimeUp(ctx context.Context) (*Results, bool) {
	if !s.finished.CompareAndSwap(false, true) {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		// Not started yet; let a later TimeUp through.
		s.finished.Store(false)
		return nil, false
	}
	return s.finishLocked(ctx, true), true
}

// finishLocked freezes the answer sheet, computes results once and hands the
// attempt to the sinks without waiting for them.
func (s *Session) finishLocked(ctx context.Context, auto bool) *Results {
	s.submittedAt = s.cfg.Clock.Now()
	if auto {
		s.status = StatusAutoSubmitted
	} else {
		s.status = StatusSubmitted
	}
	s.results = s.computeResultsLocked()

	rec := s.attemptRecordLocked()
	s.log.Info().
		Bool("auto_submitted", auto).
		Float64("percentage", rec.ScorePercentage).
		Bool("passed", rec.Passed).
		Msg("Session submitted")

	s.dispatch(context.WithoutCancel(ctx), rec)
	return s.results
}

func (s *Session) computeResultsLocked() *Results {
	return &Results{
		SessionID:     s.cfg.SessionID,
		Program:       s.rules.Program,
		Score:         scoring.CalculateScore(s.questions, s.answers, s.rules),
		Subjects:      scoring.SubjectWiseProgress(s.questions, s.answers, true),
		Review:        scoring.Review(s.questions, s.answers),
		AutoSubmitted: s.status == StatusAutoSubmitted,
		StartedAt:     s.startedAt,
		SubmittedAt:   s.submittedAt,
		Warning:       s.shortfallWarning(),
	}
}

func (s *Session) attemptRecordLocked() model.AttemptRecord {
	score := s.results.Score
	return model.AttemptRecord{
		ID:              uuid.New(),
		SessionID:       s.cfg.SessionID,
		LearnerID:       s.cfg.LearnerID,
		Program:         s.rules.Program,
		ScorePercentage: score.Percentage,
		TotalMarks:      score.TotalMarks,
		CorrectCount:    score.Correct,
		WrongCount:      score.Wrong,
		UnansweredCount: score.Unanswered,
		TotalQuestions:  score.Total,
		DurationMinutes: elapsedMinutes(s.startedAt, s.submittedAt, s.rules.DurationMinutes),
		Passed:          score.Passed,
		AutoSubmitted:   s.results.AutoSubmitted,
		SubmittedAt:     s.submittedAt,
	}
}

// dispatch persists rec and emits an achievement in the background.
// Failures are logged only.
func (s *Session) dispatch(ctx context.Context, rec model.AttemptRecord) {
	achievement, ok := achievementFor(rec)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(ctx, persistTimeout)
		defer cancel()

		if s.cfg.Sink != nil {
			if err := s.cfg.Sink.SaveAttempt(ctx, rec); err != nil {
				s.log.Error().Err(err).Str("attempt_id", rec.ID.String()).Msg("Failed to persist attempt")
			}
		}
		if ok && s.cfg.Notifier != nil {
			if err := s.cfg.Notifier.NotifyAchievement(ctx, achievement); err != nil {
				s.log.Warn().Err(err).Str("kind", string(achievement.Kind)).Msg("Failed to emit achievement")
			}
		}
	}()
}

// Wait blocks until background hand-offs started by this session are done.
func (s *Session) Wait() {
	s.pending.Wait()
}

// ShowResults moves a submitted session to the results view. Calling it
// again returns the same cached results.
func (s *Session) ShowResults() (*Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.status.Finished() {
		return nil, fmt.Errorf("%w: results from %s", ErrInvalidTransition, s.status)
	}
	s.status = StatusResultsShown
	return s.results, nil
}

// Results returns the cached results, nil while the session is unfinished.
func (s *Session) Results() *Results {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

func (s *Session) shortfallWarning() string {
	n := len(s.questions)
	if n == 0 || n >= s.rules.TotalQuestions {
		return ""
	}
	return fmt.Sprintf("This test has only %d of the %d questions in the official %s pattern.",
		n, s.rules.TotalQuestions, s.rules.Title)
}

func achievementFor(rec model.AttemptRecord) (model.Achievement, bool) {
	a := model.Achievement{
		LearnerID:       rec.LearnerID,
		SessionID:       rec.SessionID,
		Program:         rec.Program,
		ScorePercentage: rec.ScorePercentage,
		At:              rec.SubmittedAt,
	}
	switch {
	case rec.TotalQuestions > 0 && rec.CorrectCount == rec.TotalQuestions:
		a.Kind = model.AchievementPerfect
	case rec.Passed:
		a.Kind = model.AchievementPassed
	default:
		return model.Achievement{}, false
	}
	return a, true
}

// elapsedMinutes is the time spent, rounded up and capped at the duration.
func elapsedMinutes(start, end time.Time, limit int) int {
	if start.IsZero() || !end.After(start) {
		return 0
	}
	m := int(math.Ceil(end.Sub(start).Minutes()))
	if m > limit {
		return limit
	}
	return m
}
