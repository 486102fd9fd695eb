// Package scoring grades a finished mock test against its program's rules.
package scoring

import (
	"math"

	"github.com/elivate/elivate-backend/internal/model"
	"github.com/elivate/elivate-backend/internal/rules"
	"github.com/google/uuid"
)

// ScoreResult is the graded outcome of one attempt.
type ScoreResult struct {
	Correct    int     `json:"correct"`
	Wrong      int     `json:"wrong"`
	Unanswered int     `json:"unanswered"`
	Total      int     `json:"total"`
	TotalMarks float64 `json:"total_marks"`
	Percentage float64 `json:"percentage"`
	Passed     bool    `json:"passed"`
}

// Outcome classifies a single question's response.
type Outcome int

const (
	OutcomeUnanswered Outcome = iota
	OutcomeCorrect
	OutcomeWrong
)

// Classify grades one question. A question without a usable answer key is
// never credited nor penalised and counts as unanswered.
func Classify(q *model.Question, answers map[uuid.UUID]int) Outcome {
	selected, ok := answers[q.ID]
	if !ok || !q.HasValidKey() {
		return OutcomeUnanswered
	}
	if selected == *q.CorrectOption {
		return OutcomeCorrect
	}
	return OutcomeWrong
}

// CalculateScore grades questions against answers under the given rules.
// It is pure: identical inputs always yield identical results.
func CalculateScore(questions []model.Question, answers map[uuid.UUID]int, rs rules.RuleSet) ScoreResult {
	res := ScoreResult{Total: len(questions)}

	for i := range questions {
		switch Classify(&questions[i], answers) {
		case OutcomeCorrect:
			res.Correct++
		case OutcomeWrong:
			res.Wrong++
		default:
			res.Unanswered++
		}
	}

	raw := float64(res.Correct) - float64(res.Wrong)*rs.NegativeMarkingRatio
	res.TotalMarks = round2(math.Max(0, raw))

	if len(questions) == 0 || rs.TotalMarks <= 0 {
		return res
	}

	res.Percentage = round2(math.Max(0, res.TotalMarks/rs.TotalMarks*100))
	res.Passed = res.Percentage >= rs.PassingPercentage
	return res
}

// round2 rounds to two decimal places so the pass comparison sees the same
// number that is displayed and persisted.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
