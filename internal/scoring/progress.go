package scoring

import (
	"sort"
	"strings"

	"github.com/elivate/elivate-backend/internal/model"
	"github.com/google/uuid"
)

// GeneralSubject buckets questions that carry no subject.
const GeneralSubject = "General"

// SubjectWrongPenalty is deducted per wrong answer in the subject breakdown.
//
// NOTE: this is a fixed 0.25 regardless of the program's own negative
// marking ratio, so subject marks do not add up to the overall score for
// programs whose ratio differs (ioe uses 0.1). Kept as-is until product
// confirms which figure the breakdown should show.
const SubjectWrongPenalty = 0.25

// SubjectProgress is the per-subject breakdown shown on the results screen.
type SubjectProgress struct {
	Subject  string   `json:"subject"`
	Total    int      `json:"total"`
	Answered int      `json:"answered"`
	Correct  *int     `json:"correct,omitempty"`
	Marks    *float64 `json:"marks,omitempty"`
}

// SubjectWiseProgress groups questions by subject and tallies answered
// counts. With includeCorrectness it also tallies correct answers and marks.
// The result is sorted by subject name.
func SubjectWiseProgress(questions []model.Question, answers map[uuid.UUID]int, includeCorrectness bool) []SubjectProgress {
	type tally struct {
		total, answered, correct int
		marks                    float64
	}

	buckets := make(map[string]*tally)
	for i := range questions {
		q := &questions[i]

		subject := strings.TrimSpace(q.Subject)
		if subject == "" {
			subject = GeneralSubject
		}

		t, ok := buckets[subject]
		if !ok {
			t = &tally{}
			buckets[subject] = t
		}

		t.total++
		if _, answered := answers[q.ID]; answered {
			t.answered++
		}

		if !includeCorrectness {
			continue
		}
		switch Classify(q, answers) {
		case OutcomeCorrect:
			t.correct++
			t.marks += q.MarkValue()
		case OutcomeWrong:
			t.marks -= SubjectWrongPenalty
		}
	}

	out := make([]SubjectProgress, 0, len(buckets))
	for subject, t := range buckets {
		sp := SubjectProgress{
			Subject:  subject,
			Total:    t.total,
			Answered: t.answered,
		}
		if includeCorrectness {
			correct := t.correct
			marks := round2(t.marks)
			sp.Correct = &correct
			sp.Marks = &marks
		}
		out = append(out, sp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}
