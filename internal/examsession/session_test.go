package examsession

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elivate/elivate-backend/internal/model"
	"github.com/elivate/elivate-backend/internal/rules"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

type countingSink struct {
	mu      sync.Mutex
	records []model.AttemptRecord
	err     error
}

func (c *countingSink) SaveAttempt(_ context.Context, rec model.AttemptRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return c.err
}

func (c *countingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.Achievement
}

func (r *recordingNotifier) NotifyAchievement(_ context.Context, a model.Achievement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, a)
	return nil
}

func intPtr(v int) *int { return &v }

func testQuestions() []model.Question {
	mk := func(subject string, key int) model.Question {
		return model.Question{
			ID:            uuid.New(),
			Program:       rules.ProgramMBBS,
			Subject:       subject,
			QuestionText:  "q",
			Options:       [model.OptionCount]string{"a", "b", "c", "d"},
			CorrectOption: intPtr(key),
		}
	}
	return []model.Question{mk("Physics", 0), mk("Physics", 1), mk("Physics", 2), mk("Chemistry", 3)}
}

func testRules() rules.RuleSet {
	return rules.RuleSet{
		Program:              rules.ProgramMBBS,
		Title:                "Test",
		TotalQuestions:       4,
		TotalMarks:           4,
		DurationMinutes:      120,
		NegativeMarkingRatio: 0.25,
		PassingPercentage:    50,
	}
}

type fixture struct {
	clock    *testingclock.FakeClock
	sink     *countingSink
	notifier *recordingNotifier
	session  *Session
	qs       []model.Question
}

func newFixture(t *testing.T, qs []model.Question) *fixture {
	t.Helper()
	f := &fixture{
		clock:    testingclock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)),
		sink:     &countingSink{},
		notifier: &recordingNotifier{},
		qs:       qs,
	}
	f.session = New(Config{
		LearnerID: "learner-1",
		Sink:      f.sink,
		Notifier:  f.notifier,
		Clock:     f.clock,
		Log:       zerolog.Nop(),
	}, testRules(), qs)
	return f
}

func TestSession_HappyPath(t *testing.T) {
	f := newFixture(t, testQuestions())
	s := f.session
	ctx := context.Background()

	assert.Equal(t, StatusInstructions, s.Status())
	assert.True(t, s.Instructions().CanStart)
	assert.Equal(t, 7200, s.Remaining())

	require.NoError(t, s.Start())
	assert.Equal(t, StatusInProgress, s.Status())

	require.NoError(t, s.SelectAnswer(f.qs[0].ID, 3))
	require.NoError(t, s.SelectAnswer(f.qs[0].ID, 0)) // last selection wins
	require.NoError(t, s.SelectAnswer(f.qs[1].ID, 1))
	require.NoError(t, s.SelectAnswer(f.qs[2].ID, 0))

	marked, err := s.ToggleReview(f.qs[3].ID)
	require.NoError(t, err)
	assert.True(t, marked)
	require.NoError(t, s.Navigate(3))

	f.clock.Step(30 * time.Minute)
	sum := s.Summary()
	assert.Equal(t, Summary{Total: 4, Answered: 3, Unanswered: 1, MarkedForReview: 1, RemainingSeconds: 5400}, sum)

	res, err := s.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, s.Status())
	assert.Equal(t, 2, res.Score.Correct)
	assert.Equal(t, 1, res.Score.Wrong)
	assert.Equal(t, 1, res.Score.Unanswered)
	assert.InDelta(t, 43.75, res.Score.Percentage, 1e-9)
	assert.False(t, res.AutoSubmitted)
	require.Len(t, res.Subjects, 2)
	require.Len(t, res.Review, 4)

	shown, err := s.ShowResults()
	require.NoError(t, err)
	assert.Same(t, res, shown)
	assert.Equal(t, StatusResultsShown, s.Status())

	s.Wait()
	require.Equal(t, 1, f.sink.count())
	rec := f.sink.records[0]
	assert.Equal(t, "learner-1", rec.LearnerID)
	assert.Equal(t, s.ID(), rec.SessionID)
	assert.Equal(t, 30, rec.DurationMinutes)
	assert.False(t, rec.AutoSubmitted)
	assert.Empty(t, f.notifier.events, "failing score emits no achievement")
}

func TestSession_AnswersFrozenAfterSubmit(t *testing.T) {
	f := newFixture(t, testQuestions())
	s := f.session
	require.NoError(t, s.Start())
	require.NoError(t, s.SelectAnswer(f.qs[0].ID, 0))

	res, err := s.Submit(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, s.SelectAnswer(f.qs[0].ID, 1), ErrNotInProgress)
	_, err = s.ToggleReview(f.qs[0].ID)
	assert.ErrorIs(t, err, ErrNotInProgress)
	assert.ErrorIs(t, s.Navigate(0), ErrNotInProgress)

	_, err = s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	f.clock.Step(time.Hour)
	assert.Equal(t, 7200, s.Remaining(), "remaining freezes at submission")
	assert.Same(t, res, s.Results())
	assert.Equal(t, 1, res.Score.Correct)
}

func TestSession_Transitions(t *testing.T) {
	f := newFixture(t, testQuestions())
	s := f.session

	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.ShowResults()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, s.SelectAnswer(f.qs[0].ID, 0), ErrNotInProgress)

	_, fired := s.TimeUp(context.Background())
	assert.False(t, fired, "time-up before start is ignored")

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrInvalidTransition)
	assert.False(t, s.Instructions().CanStart)
}

func TestSession_InputValidation(t *testing.T) {
	f := newFixture(t, testQuestions())
	s := f.session
	require.NoError(t, s.Start())

	assert.ErrorIs(t, s.SelectAnswer(uuid.New(), 0), ErrUnknownQuestion)
	assert.ErrorIs(t, s.SelectAnswer(f.qs[0].ID, 4), ErrInvalidOption)
	assert.ErrorIs(t, s.SelectAnswer(f.qs[0].ID, -1), ErrInvalidOption)
	assert.ErrorIs(t, s.Navigate(4), ErrIndexOutOfRange)
	_, err := s.ToggleReview(uuid.New())
	assert.ErrorIs(t, err, ErrUnknownQuestion)

	marked, err := s.ToggleReview(f.qs[1].ID)
	require.NoError(t, err)
	assert.True(t, marked)
	marked, err = s.ToggleReview(f.qs[1].ID)
	require.NoError(t, err)
	assert.False(t, marked)
	assert.Empty(t, s.State().MarkedForReview)
}

func TestSession_NoQuestions(t *testing.T) {
	f := newFixture(t, nil)
	s := f.session

	ins := s.Instructions()
	assert.False(t, ins.CanStart)
	assert.NotEmpty(t, ins.Warning)
	assert.ErrorIs(t, s.Start(), ErrNoQuestions)
	assert.Equal(t, StatusInstructions, s.Status())
}

func TestSession_ShortfallWarning(t *testing.T) {
	f := newFixture(t, testQuestions()[:2])
	ins := f.session.Instructions()

	assert.True(t, ins.CanStart)
	assert.Equal(t, 2, ins.QuestionCount)
	assert.Equal(t, 4, ins.OfficialQuestions)
	assert.Contains(t, ins.Warning, "only 2 of the 4")
}

func TestSession_StateHidesQuestionsBeforeStart(t *testing.T) {
	f := newFixture(t, testQuestions())
	s := f.session

	assert.Empty(t, s.State().Questions)

	require.NoError(t, s.Start())
	st := s.State()
	require.Len(t, st.Questions, 4)
	require.NotNil(t, st.StartedAt)
	assert.Len(t, st.Progress, 2)
}

func TestSession_TimeUpFiresOnce(t *testing.T) {
	f := newFixture(t, testQuestions())
	s := f.session
	require.NoError(t, s.Start())
	require.NoError(t, s.SelectAnswer(f.qs[0].ID, 0))

	f.clock.Step(120 * time.Minute)
	assert.Equal(t, 0, s.Remaining())
	assert.ErrorIs(t, s.SelectAnswer(f.qs[1].ID, 1), ErrTimeUp)

	first, fired := s.TimeUp(context.Background())
	require.True(t, fired)
	require.NotNil(t, first)
	assert.True(t, first.AutoSubmitted)

	second, fired := s.TimeUp(context.Background())
	assert.False(t, fired)
	assert.Nil(t, second)

	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	s.Wait()
	assert.Equal(t, 1, f.sink.count())
	assert.Equal(t, StatusAutoSubmitted, s.Status())
	assert.True(t, f.sink.records[0].AutoSubmitted)
	assert.Equal(t, 120, f.sink.records[0].DurationMinutes)
}

func TestSession_SubmitAfterDeadlineIsTimeUp(t *testing.T) {
	f := newFixture(t, testQuestions())
	s := f.session
	require.NoError(t, s.Start())
	require.NoError(t, s.SelectAnswer(f.qs[0].ID, 0))

	f.clock.Step(121 * time.Minute)
	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrTimeUp)
	assert.Equal(t, StatusInProgress, s.Status(), "left for the auto-submit")

	res, fired := s.TimeUp(context.Background())
	require.True(t, fired)
	assert.True(t, res.AutoSubmitted)

	s.Wait()
	require.Equal(t, 1, f.sink.count())
	assert.True(t, f.sink.records[0].AutoSubmitted)
}

func TestSession_ConcurrentTimeUpPersistsOnce(t *testing.T) {
	f := newFixture(t, testQuestions())
	s := f.session
	require.NoError(t, s.Start())
	f.clock.Step(2 * time.Hour)

	var fired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.TimeUp(context.Background()); ok {
				fired.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fired.Load())
	assert.Eventually(t, func() bool { return f.sink.count() == 1 }, time.Second, 5*time.Millisecond)
	s.Wait()
	assert.Equal(t, 1, f.sink.count())
}

func TestSession_PersistFailureDoesNotBlockResults(t *testing.T) {
	f := newFixture(t, testQuestions())
	f.sink.err = errors.New("store down")
	s := f.session
	require.NoError(t, s.Start())

	res, err := s.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)

	shown, err := s.ShowResults()
	require.NoError(t, err)
	assert.Same(t, res, shown)
	s.Wait()
	assert.Equal(t, 1, f.sink.count())
}

func TestSession_Achievements(t *testing.T) {
	t.Run("perfect", func(t *testing.T) {
		f := newFixture(t, testQuestions())
		s := f.session
		require.NoError(t, s.Start())
		for _, q := range f.qs {
			require.NoError(t, s.SelectAnswer(q.ID, *q.CorrectOption))
		}
		_, err := s.Submit(context.Background())
		require.NoError(t, err)
		s.Wait()

		require.Len(t, f.notifier.events, 1)
		assert.Equal(t, model.AchievementPerfect, f.notifier.events[0].Kind)
		assert.InDelta(t, 100, f.notifier.events[0].ScorePercentage, 1e-9)
	})

	t.Run("passed", func(t *testing.T) {
		f := newFixture(t, testQuestions())
		s := f.session
		require.NoError(t, s.Start())
		require.NoError(t, s.SelectAnswer(f.qs[0].ID, 0))
		require.NoError(t, s.SelectAnswer(f.qs[1].ID, 1))
		_, err := s.Submit(context.Background())
		require.NoError(t, err)
		s.Wait()

		require.Len(t, f.notifier.events, 1)
		assert.Equal(t, model.AchievementPassed, f.notifier.events[0].Kind)
	})
}

func TestSession_CancelledRequestStillPersists(t *testing.T) {
	f := newFixture(t, testQuestions())
	s := f.session
	require.NoError(t, s.Start())

	ctx, cancel := context.WithCancel(context.Background())
	_, err := s.Submit(ctx)
	cancel()
	require.NoError(t, err)

	s.Wait()
	assert.Equal(t, 1, f.sink.count())
}
