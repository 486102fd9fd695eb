package model

import (
	"github.com/elivate/elivate-backend/internal/rules"
	"github.com/google/uuid"
)

// OptionCount is the number of options every MCQ carries.
const OptionCount = 4

// DefaultMarkValue applies when a question has no mark value of its own.
const DefaultMarkValue = 1.0

// Question is one MCQ item as stored in the question bank.
type Question struct {
	ID            uuid.UUID           `json:"id"`
	Program       rules.Program       `json:"program"`
	Subject       string              `json:"subject"`
	QuestionText  string              `json:"question_text"`
	Options       [OptionCount]string `json:"options"`
	CorrectOption *int                `json:"correct_option,omitempty"`
	Marks         *float64            `json:"marks,omitempty"`
	Difficulty    *string             `json:"difficulty,omitempty"`
	Explanation   *string             `json:"explanation,omitempty"`
}

// MarkValue returns the question's marks, defaulting to DefaultMarkValue.
func (q *Question) MarkValue() float64 {
	if q.Marks == nil {
		return DefaultMarkValue
	}
	return *q.Marks
}

// HasValidKey reports whether CorrectOption points at one of the options.
func (q *Question) HasValidKey() bool {
	return q.CorrectOption != nil && ValidOption(*q.CorrectOption)
}

// ForLearner strips the answer key and explanation.
func (q *Question) ForLearner() QuestionForLearner {
	return QuestionForLearner{
		ID:           q.ID,
		Subject:      q.Subject,
		QuestionText: q.QuestionText,
		Options:      q.Options,
		Marks:        q.MarkValue(),
		Difficulty:   q.Difficulty,
	}
}

// QuestionForLearner is a question without the correct answer, sent during a test.
type QuestionForLearner struct {
	ID           uuid.UUID           `json:"id"`
	Subject      string              `json:"subject"`
	QuestionText string              `json:"question_text"`
	Options      [OptionCount]string `json:"options"`
	Marks        float64             `json:"marks"`
	Difficulty   *string             `json:"difficulty,omitempty"`
}

// ValidOption reports whether idx addresses one of the four options.
func ValidOption(idx int) bool {
	return idx >= 0 && idx < OptionCount
}
