package scoring

import (
	"github.com/elivate/elivate-backend/internal/model"
	"github.com/google/uuid"
)

// QuestionReview is one row of the post-test answer review.
type QuestionReview struct {
	QuestionID    uuid.UUID                 `json:"question_id"`
	Subject       string                    `json:"subject"`
	QuestionText  string                    `json:"question_text"`
	Options       [model.OptionCount]string `json:"options"`
	Selected      *int                      `json:"selected,omitempty"`
	CorrectOption *int                      `json:"correct_option,omitempty"`
	IsCorrect     bool                      `json:"is_correct"`
	Marks         float64                   `json:"marks"`
	Explanation   *string                   `json:"explanation,omitempty"`
}

// Review lists every question in order with the learner's choice and the key.
func Review(questions []model.Question, answers map[uuid.UUID]int) []QuestionReview {
	out := make([]QuestionReview, len(questions))
	for i := range questions {
		q := &questions[i]
		r := QuestionReview{
			QuestionID:   q.ID,
			Subject:      q.Subject,
			QuestionText: q.QuestionText,
			Options:      q.Options,
			IsCorrect:    Classify(q, answers) == OutcomeCorrect,
			Marks:        q.MarkValue(),
			Explanation:  q.Explanation,
		}
		if sel, ok := answers[q.ID]; ok {
			sel := sel
			r.Selected = &sel
		}
		if q.HasValidKey() {
			key := *q.CorrectOption
			r.CorrectOption = &key
		}
		out[i] = r
	}
	return out
}
