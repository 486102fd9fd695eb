package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/elivate/elivate-backend/internal/cache"
	"github.com/elivate/elivate-backend/internal/examsession"
	"github.com/elivate/elivate-backend/internal/model"
	"github.com/elivate/elivate-backend/internal/rules"
	"github.com/elivate/elivate-backend/internal/timer"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"
)

// ErrSessionNotFound is returned when the learner has no live session.
var ErrSessionNotFound = errors.New("no active exam session")

// QuestionSource is the question bank as the session service sees it.
type QuestionSource interface {
	Draw(ctx context.Context, program rules.Program, subjects []rules.SubjectRule) ([]model.Question, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error)
}

// SessionEventKind names a server-pushed session event.
type SessionEventKind string

const (
	SessionEventTick   SessionEventKind = "tick"
	SessionEventState  SessionEventKind = "state"
	SessionEventGraded SessionEventKind = "graded"
)

// SessionEvent is delivered to stream subscribers.
type SessionEvent struct {
	Kind      SessionEventKind     `json:"kind"`
	Status    examsession.Status   `json:"status"`
	Remaining int                  `json:"remaining_seconds"`
	Results   *examsession.Results `json:"results,omitempty"`
}

// subscriberBuffer bounds how far a slow stream may lag. Ticks are dropped
// when it is full; any other event evicts the oldest pending one.
const subscriberBuffer = 8

type liveSession struct {
	session *examsession.Session
	stop    context.CancelFunc
	subs    map[chan SessionEvent]struct{}
}

// ExamSessionService keeps one live session per learner, mirrors it to the
// cache and runs its countdown.
type ExamSessionService struct {
	questions QuestionSource
	cache     cache.SessionCache
	sink      examsession.AttemptSink
	notifier  examsession.Notifier
	clock     clock.WithTicker
	grace     time.Duration
	log       zerolog.Logger

	baseCtx  context.Context
	shutdown context.CancelFunc
	restore  singleflight.Group
	timers   sync.WaitGroup

	mu   sync.Mutex
	live map[string]*liveSession
}

// ExamSessionDeps groups the collaborators of ExamSessionService.
type ExamSessionDeps struct {
	Questions QuestionSource
	Cache     cache.SessionCache
	Sink      examsession.AttemptSink
	Notifier  examsession.Notifier
	Clock     clock.WithTicker
	Grace     time.Duration
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(deps ExamSessionDeps, log zerolog.Logger) *ExamSessionService {
	if deps.Clock == nil {
		deps.Clock = clock.RealClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ExamSessionService{
		questions: deps.Questions,
		cache:     deps.Cache,
		sink:      deps.Sink,
		notifier:  deps.Notifier,
		clock:     deps.Clock,
		grace:     deps.Grace,
		log:       log.With().Str("component", "exam_session_service").Logger(),
		baseCtx:   ctx,
		shutdown:  cancel,
		live:      make(map[string]*liveSession),
	}
}

// Create draws a fresh question set and opens a session on the instructions
// screen, discarding whatever the learner had before.
func (s *ExamSessionService) Create(ctx context.Context, learnerID, program string) (examsession.Instructions, error) {
	rs, err := rules.Lookup(rules.Program(strings.ToLower(strings.TrimSpace(program))))
	if err != nil {
		return examsession.Instructions{}, err
	}

	questions, err := s.questions.Draw(ctx, rs.Program, rs.Subjects)
	if err != nil {
		return examsession.Instructions{}, fmt.Errorf("draw questions: %w", err)
	}

	if err := s.Abandon(ctx, learnerID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return examsession.Instructions{}, err
	}

	sess := examsession.New(s.sessionConfig(uuid.New(), learnerID), rs, questions)
	ins := sess.Instructions()
	if len(questions) < rs.TotalQuestions {
		s.log.Warn().
			Str("learner_id", learnerID).
			Str("program", string(rs.Program)).
			Int("drawn", len(questions)).
			Int("official", rs.TotalQuestions).
			Msg("Question bank short for program")
	}

	s.mu.Lock()
	s.live[learnerID] = &liveSession{session: sess, subs: make(map[chan SessionEvent]struct{})}
	s.mu.Unlock()

	s.persist(ctx, sess)
	return ins, nil
}

// Current returns the learner's session, restoring it from the cache when
// this process does not hold it.
func (s *ExamSessionService) Current(ctx context.Context, learnerID string) (*examsession.Session, error) {
	if ls := s.lookup(learnerID); ls != nil {
		return ls.session, nil
	}

	v, err, _ := s.restore.Do(learnerID, func() (interface{}, error) {
		if ls := s.lookup(learnerID); ls != nil {
			return ls.session, nil
		}
		return s.restoreFromCache(ctx, learnerID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*examsession.Session), nil
}

func (s *ExamSessionService) restoreFromCache(ctx context.Context, learnerID string) (*examsession.Session, error) {
	snap, err := s.cache.Load(ctx, learnerID)
	if errors.Is(err, cache.ErrSessionNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	rs, err := rules.Lookup(snap.Program)
	if err != nil {
		return nil, err
	}
	questions, err := s.questions.GetByIDs(ctx, snap.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("reload questions: %w", err)
	}

	sess, err := examsession.Restore(s.sessionConfig(snap.SessionID, learnerID), rs, questions, *snap)
	if err != nil {
		return nil, err
	}

	ls := &liveSession{session: sess, subs: make(map[chan SessionEvent]struct{})}
	s.mu.Lock()
	s.live[learnerID] = ls
	s.mu.Unlock()

	s.log.Info().
		Str("learner_id", learnerID).
		Str("session_id", snap.SessionID.String()).
		Str("status", string(snap.Status)).
		Msg("Session restored from cache")

	if sess.Status() == examsession.StatusInProgress {
		if sess.Remaining() == 0 {
			s.timeUp(ctx, learnerID, sess)
		} else {
			s.startCountdown(learnerID, ls)
		}
	}
	return sess, nil
}

// State returns the learner-facing view of the current session.
func (s *ExamSessionService) State(ctx context.Context, learnerID string) (examsession.State, error) {
	sess, err := s.Current(ctx, learnerID)
	if err != nil {
		return examsession.State{}, err
	}
	return sess.State(), nil
}

// Start confirms the instructions and starts the countdown.
func (s *ExamSessionService) Start(ctx context.Context, learnerID string) (examsession.State, error) {
	sess, err := s.Current(ctx, learnerID)
	if err != nil {
		return examsession.State{}, err
	}
	if err := sess.Start(); err != nil {
		return examsession.State{}, err
	}

	s.persist(ctx, sess)
	if ls := s.lookup(learnerID); ls != nil {
		s.startCountdown(learnerID, ls)
	}
	st := sess.State()
	s.broadcast(learnerID, SessionEvent{Kind: SessionEventState, Status: st.Status, Remaining: st.RemainingSeconds})
	return st, nil
}

// SelectAnswer records an answer. An answer that arrives after time ran out
// triggers the auto-submit instead.
func (s *ExamSessionService) SelectAnswer(ctx context.Context, learnerID string, questionID uuid.UUID, option int) error {
	sess, err := s.Current(ctx, learnerID)
	if err != nil {
		return err
	}
	if err := sess.SelectAnswer(questionID, option); err != nil {
		if errors.Is(err, examsession.ErrTimeUp) {
			s.timeUp(ctx, learnerID, sess)
		}
		return err
	}

	if err := s.cache.SaveAnswer(ctx, learnerID, questionID, option); err != nil {
		s.log.Warn().Err(err).Str("learner_id", learnerID).Msg("Failed to cache answer")
	}
	return nil
}

// ToggleReview flips the mark-for-review flag of a question.
func (s *ExamSessionService) ToggleReview(ctx context.Context, learnerID string, questionID uuid.UUID) (bool, error) {
	sess, err := s.Current(ctx, learnerID)
	if err != nil {
		return false, err
	}
	marked, err := sess.ToggleReview(questionID)
	if err != nil {
		if errors.Is(err, examsession.ErrTimeUp) {
			s.timeUp(ctx, learnerID, sess)
		}
		return false, err
	}

	if err := s.cache.SaveReview(ctx, learnerID, questionID, marked); err != nil {
		s.log.Warn().Err(err).Str("learner_id", learnerID).Msg("Failed to cache review mark")
	}
	return marked, nil
}

// Navigate moves the learner's cursor.
func (s *ExamSessionService) Navigate(ctx context.Context, learnerID string, index int) error {
	sess, err := s.Current(ctx, learnerID)
	if err != nil {
		return err
	}
	if err := sess.Navigate(index); err != nil {
		return err
	}
	s.persist(ctx, sess)
	return nil
}

// Summary returns the counts shown on the submit confirmation.
func (s *ExamSessionService) Summary(ctx context.Context, learnerID string) (examsession.Summary, error) {
	sess, err := s.Current(ctx, learnerID)
	if err != nil {
		return examsession.Summary{}, err
	}
	return sess.Summary(), nil
}

// Submit grades the session on the learner's request. A submission that
// arrives after time ran out triggers the auto-submit instead.
func (s *ExamSessionService) Submit(ctx context.Context, learnerID string) (*examsession.Results, error) {
	sess, err := s.Current(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	res, err := sess.Submit(ctx)
	if err != nil {
		if errors.Is(err, examsession.ErrTimeUp) {
			s.timeUp(ctx, learnerID, sess)
		}
		return nil, err
	}

	s.stopCountdown(learnerID)
	s.persist(ctx, sess)
	s.broadcast(learnerID, SessionEvent{Kind: SessionEventGraded, Status: sess.Status(), Results: res})
	return res, nil
}

// Results moves the session to the results view and returns the results.
func (s *ExamSessionService) Results(ctx context.Context, learnerID string) (*examsession.Results, error) {
	sess, err := s.Current(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	res, err := sess.ShowResults()
	if err != nil {
		return nil, err
	}
	s.persist(ctx, sess)
	return res, nil
}

// Abandon discards the learner's session from memory and the cache.
func (s *ExamSessionService) Abandon(ctx context.Context, learnerID string) error {
	s.mu.Lock()
	ls, inMemory := s.live[learnerID]
	delete(s.live, learnerID)
	s.mu.Unlock()

	if inMemory {
		if ls.stop != nil {
			ls.stop()
		}
		s.closeSubscribers(ls)
	}

	snap, err := s.cache.Load(ctx, learnerID)
	cached := err == nil && snap != nil
	if err != nil && !errors.Is(err, cache.ErrSessionNotFound) {
		return fmt.Errorf("load session: %w", err)
	}
	if !inMemory && !cached {
		return ErrSessionNotFound
	}
	if err := s.cache.Delete(ctx, learnerID); err != nil {
		return err
	}
	return nil
}

// Subscribe registers a stream for the learner's session events. The
// returned cancel func must be called when the stream ends.
func (s *ExamSessionService) Subscribe(ctx context.Context, learnerID string) (<-chan SessionEvent, func(), error) {
	if _, err := s.Current(ctx, learnerID); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ls, ok := s.live[learnerID]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	ch := make(chan SessionEvent, subscriberBuffer)
	ls.subs[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := ls.subs[ch]; ok {
				delete(ls.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel, nil
}

// Shutdown stops every countdown and waits for pending attempt hand-offs.
func (s *ExamSessionService) Shutdown() {
	s.shutdown()
	s.timers.Wait()

	s.mu.Lock()
	sessions := make([]*examsession.Session, 0, len(s.live))
	for _, ls := range s.live {
		sessions = append(sessions, ls.session)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Wait()
	}
}

// ----------------------------------------------------------------
// Countdown
// ----------------------------------------------------------------

func (s *ExamSessionService) startCountdown(learnerID string, ls *liveSession) {
	sess := ls.session
	ctx, cancel := context.WithCancel(s.baseCtx)

	s.mu.Lock()
	if ls.stop != nil {
		ls.stop()
	}
	ls.stop = cancel
	s.mu.Unlock()

	cd := timer.NewCountdown(s.clock, sess.StartedAt(), sess.Rules().DurationMinutes)

	s.timers.Add(1)
	go func() {
		defer s.timers.Done()
		defer cancel()

		expired := cd.Run(ctx, func(remaining int) {
			s.broadcast(learnerID, SessionEvent{Kind: SessionEventTick, Status: examsession.StatusInProgress, Remaining: remaining})
		})
		if expired {
			s.timeUp(ctx, learnerID, sess)
		}
	}()
}

func (s *ExamSessionService) stopCountdown(learnerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ls, ok := s.live[learnerID]; ok && ls.stop != nil {
		ls.stop()
		ls.stop = nil
	}
}

// timeUp auto-submits sess. Repeated calls are absorbed by the session.
func (s *ExamSessionService) timeUp(ctx context.Context, learnerID string, sess *examsession.Session) {
	res, fired := sess.TimeUp(ctx)
	if !fired {
		return
	}
	s.log.Info().
		Str("learner_id", learnerID).
		Str("session_id", sess.ID().String()).
		Msg("Time is up, session auto-submitted")

	// An abandoned session stays out of the cache.
	if ls := s.lookup(learnerID); ls == nil || ls.session != sess {
		return
	}
	s.persist(context.WithoutCancel(ctx), sess)
	s.broadcast(learnerID, SessionEvent{Kind: SessionEventGraded, Status: sess.Status(), Results: res})
}

// ----------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------

func (s *ExamSessionService) sessionConfig(id uuid.UUID, learnerID string) examsession.Config {
	return examsession.Config{
		SessionID: id,
		LearnerID: learnerID,
		Sink:      s.sink,
		Notifier:  s.notifier,
		Clock:     s.clock,
		Log:       s.log,
	}
}

func (s *ExamSessionService) lookup(learnerID string) *liveSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[learnerID]
}

// persist mirrors sess into the cache. The entry outlives the remaining
// test time by the configured grace period.
func (s *ExamSessionService) persist(ctx context.Context, sess *examsession.Session) {
	ttl := time.Duration(sess.Remaining())*time.Second + s.grace
	if err := s.cache.Save(ctx, sess.Snapshot(), ttl); err != nil {
		s.log.Warn().Err(err).
			Str("learner_id", sess.LearnerID()).
			Str("session_id", sess.ID().String()).
			Msg("Failed to cache session")
	}
}

func (s *ExamSessionService) broadcast(learnerID string, evt SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ls, ok := s.live[learnerID]
	if !ok {
		return
	}
	for ch := range ls.subs {
		select {
		case ch <- evt:
			continue
		default:
		}
		if evt.Kind == SessionEventTick {
			// Slow reader; it will catch up on the next tick.
			continue
		}
		// Every send happens under s.mu, so after evicting the oldest
		// pending event the buffer has room.
		select {
		case <-ch:
		default:
		}
		ch <- evt
	}
}

func (s *ExamSessionService) closeSubscribers(ls *liveSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range ls.subs {
		delete(ls.subs, ch)
		close(ch)
	}
}
