package scoring

import (
	"testing"

	"github.com/elivate/elivate-backend/internal/model"
	"github.com/elivate/elivate-backend/internal/rules"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func newQuestion(subject string, correct int) model.Question {
	return model.Question{
		ID:            uuid.New(),
		Subject:       subject,
		QuestionText:  "q",
		Options:       [model.OptionCount]string{"a", "b", "c", "d"},
		CorrectOption: intPtr(correct),
	}
}

func fourQuestions() []model.Question {
	return []model.Question{
		newQuestion("Physics", 0),
		newQuestion("Physics", 1),
		newQuestion("Physics", 2),
		newQuestion("Chemistry", 3),
	}
}

func testRules() rules.RuleSet {
	return rules.RuleSet{NegativeMarkingRatio: 0.25, TotalMarks: 4, PassingPercentage: 50}
}

func TestCalculateScore_Scenarios(t *testing.T) {
	qs := fourQuestions()

	tests := []struct {
		name       string
		answers    map[uuid.UUID]int
		correct    int
		wrong      int
		unanswered int
		marks      float64
		percentage float64
		passed     bool
	}{
		{
			name:       "two correct one wrong one unanswered",
			answers:    map[uuid.UUID]int{qs[0].ID: 0, qs[1].ID: 1, qs[2].ID: 0},
			correct:    2,
			wrong:      1,
			unanswered: 1,
			marks:      1.75,
			percentage: 43.75,
			passed:     false,
		},
		{
			name:       "pass boundary is inclusive",
			answers:    map[uuid.UUID]int{qs[0].ID: 0, qs[1].ID: 1},
			correct:    2,
			unanswered: 2,
			marks:      2,
			percentage: 50,
			passed:     true,
		},
		{
			name:       "all wrong clamps at zero",
			answers:    map[uuid.UUID]int{qs[0].ID: 3, qs[1].ID: 3, qs[2].ID: 3, qs[3].ID: 0},
			wrong:      4,
			marks:      0,
			percentage: 0,
			passed:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateScore(qs, tt.answers, testRules())
			assert.Equal(t, tt.correct, got.Correct)
			assert.Equal(t, tt.wrong, got.Wrong)
			assert.Equal(t, tt.unanswered, got.Unanswered)
			assert.Equal(t, 4, got.Total)
			assert.InDelta(t, tt.marks, got.TotalMarks, 1e-9)
			assert.InDelta(t, tt.percentage, got.Percentage, 1e-9)
			assert.Equal(t, tt.passed, got.Passed)
		})
	}
}

func TestCalculateScore_EmptyQuestionList(t *testing.T) {
	rs := testRules()
	rs.PassingPercentage = 0

	got := CalculateScore(nil, map[uuid.UUID]int{}, rs)
	assert.Equal(t, ScoreResult{}, got)
}

func TestCalculateScore_ZeroTotalMarks(t *testing.T) {
	qs := fourQuestions()
	rs := testRules()
	rs.TotalMarks = 0

	got := CalculateScore(qs, map[uuid.UUID]int{qs[0].ID: 0}, rs)
	assert.Equal(t, 1, got.Correct)
	assert.Zero(t, got.Percentage)
	assert.False(t, got.Passed)
}

func TestCalculateScore_MalformedKeyIsNotScored(t *testing.T) {
	qs := fourQuestions()
	qs[0].CorrectOption = nil
	qs[1].CorrectOption = intPtr(7)

	answers := map[uuid.UUID]int{qs[0].ID: 0, qs[1].ID: 7, qs[2].ID: 2}

	assert.NotPanics(t, func() {
		got := CalculateScore(qs, answers, testRules())
		assert.Equal(t, 1, got.Correct)
		assert.Equal(t, 0, got.Wrong)
		assert.Equal(t, 3, got.Unanswered)
	})
}

func TestCalculateScore_OutOfRangeAnswerIsWrong(t *testing.T) {
	qs := fourQuestions()
	got := CalculateScore(qs, map[uuid.UUID]int{qs[0].ID: 9}, testRules())
	assert.Equal(t, 1, got.Wrong)
}

func TestCalculateScore_Properties(t *testing.T) {
	qs := make([]model.Question, 0, 40)
	for i := 0; i < 40; i++ {
		qs = append(qs, newQuestion("Physics", i%4))
	}
	rs := rules.MustLookup(rules.ProgramMBBS)

	for wrong := 0; wrong <= len(qs); wrong += 5 {
		answers := make(map[uuid.UUID]int)
		for i := 0; i < wrong; i++ {
			answers[qs[i].ID] = (*qs[i].CorrectOption + 1) % 4
		}
		for i := wrong; i < wrong+3 && i < len(qs); i++ {
			answers[qs[i].ID] = *qs[i].CorrectOption
		}

		first := CalculateScore(qs, answers, rs)
		second := CalculateScore(qs, answers, rs)

		assert.Equal(t, first, second, "deterministic")
		assert.GreaterOrEqual(t, first.TotalMarks, 0.0, "marks never negative")
		assert.GreaterOrEqual(t, first.Percentage, 0.0, "percentage never negative")
		assert.Equal(t, len(qs), first.Correct+first.Wrong+first.Unanswered, "conservation")
		assert.Equal(t, first.Percentage >= rs.PassingPercentage, first.Passed, "pass threshold")
	}
}

func TestCalculateScore_IOEUsesTenthPenalty(t *testing.T) {
	qs := fourQuestions()
	rs := rules.MustLookup(rules.ProgramIOE)

	got := CalculateScore(qs, map[uuid.UUID]int{qs[0].ID: 0, qs[1].ID: 0}, rs)
	assert.InDelta(t, 0.9, got.TotalMarks, 1e-9)
	assert.InDelta(t, 0.64, got.Percentage, 1e-9)
	assert.False(t, got.Passed)
}
