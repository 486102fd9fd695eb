package rules

import (
	"errors"
	"fmt"
	"math"
)

// Program identifies the entrance exam track a learner prepares for.
type Program string

const (
	ProgramIOE  Program = "ioe"
	ProgramMBBS Program = "mbbs"
)

// ErrUnknownProgram is returned by Lookup for a key the catalog does not know.
var ErrUnknownProgram = errors.New("unknown program")

// SubjectRule is one row of a program's subject distribution.
type SubjectRule struct {
	Subject   string  `json:"subject"`
	Questions int     `json:"questions"`
	Marks     float64 `json:"marks"`
}

// RuleSet is the exam policy for one program.
type RuleSet struct {
	Program              Program       `json:"program"`
	Title                string        `json:"title"`
	TotalQuestions       int           `json:"total_questions"`
	TotalMarks           float64       `json:"total_marks"`
	DurationMinutes      int           `json:"duration_minutes"`
	NegativeMarkingRatio float64       `json:"negative_marking_ratio"`
	PassingPercentage    float64       `json:"passing_percentage"`
	Subjects             []SubjectRule `json:"subjects"`
	Instructions         []string      `json:"instructions"`
	MaxAttempts          int           `json:"max_attempts"`
}

// catalog holds every supported program. Policy numbers live here and only here.
var catalog = map[Program]RuleSet{
	ProgramIOE: {
		Program:              ProgramIOE,
		Title:                "IOE Engineering Entrance Mock Test",
		TotalQuestions:       90,
		TotalMarks:           140,
		DurationMinutes:      120,
		NegativeMarkingRatio: 0.1,
		PassingPercentage:    40,
		Subjects: []SubjectRule{
			{Subject: "Mathematics", Questions: 30, Marks: 50},
			{Subject: "Physics", Questions: 30, Marks: 45},
			{Subject: "Chemistry", Questions: 15, Marks: 25},
			{Subject: "English", Questions: 15, Marks: 20},
		},
		Instructions: []string{
			"The test contains 90 multiple choice questions worth 140 marks in total.",
			"You have 120 minutes. The test is submitted automatically when the timer reaches zero.",
			"Each question has four options and exactly one correct answer.",
			"0.1 marks are deducted for every wrong answer. Unanswered questions carry no penalty.",
			"You may change an answer or mark a question for review at any time before submitting.",
			"Stay on this page during the test. Leaving or reloading does not pause the timer.",
		},
		MaxAttempts: 5,
	},
	ProgramMBBS: {
		Program:              ProgramMBBS,
		Title:                "IOM MBBS Entrance Mock Test",
		TotalQuestions:       200,
		TotalMarks:           200,
		DurationMinutes:      180,
		NegativeMarkingRatio: 0.25,
		PassingPercentage:    50,
		Subjects: []SubjectRule{
			{Subject: "Zoology", Questions: 40, Marks: 40},
			{Subject: "Botany", Questions: 40, Marks: 40},
			{Subject: "Chemistry", Questions: 50, Marks: 50},
			{Subject: "Physics", Questions: 50, Marks: 50},
			{Subject: "Mental Agility Test", Questions: 20, Marks: 20},
		},
		Instructions: []string{
			"The test contains 200 multiple choice questions worth one mark each.",
			"You have 180 minutes. The test is submitted automatically when the timer reaches zero.",
			"Each question has four options and exactly one correct answer.",
			"0.25 marks are deducted for every wrong answer. Unanswered questions carry no penalty.",
			"You may change an answer or mark a question for review at any time before submitting.",
			"Stay on this page during the test. Leaving or reloading does not pause the timer.",
		},
		MaxAttempts: 5,
	},
}

// programOrder keeps Programs() stable for listings.
var programOrder = []Program{ProgramIOE, ProgramMBBS}

func init() {
	for _, p := range programOrder {
		rs := catalog[p]
		if err := rs.Validate(); err != nil {
			panic(fmt.Sprintf("rules: invalid catalog entry %q: %v", p, err))
		}
	}
}

// Lookup returns the RuleSet for a program.
func Lookup(p Program) (RuleSet, error) {
	rs, ok := catalog[p]
	if !ok {
		return RuleSet{}, fmt.Errorf("%w: %q", ErrUnknownProgram, p)
	}
	return rs.clone(), nil
}

// MustLookup is Lookup for keys that are known at build time.
// An unknown key is a programming error and panics.
func MustLookup(p Program) RuleSet {
	rs, err := Lookup(p)
	if err != nil {
		panic(err)
	}
	return rs
}

// Programs lists every program in the catalog.
func Programs() []Program {
	out := make([]Program, len(programOrder))
	copy(out, programOrder)
	return out
}

// Valid reports whether p is a catalog key.
func (p Program) Valid() bool {
	_, ok := catalog[p]
	return ok
}

// Validate checks that the subject distribution adds up to the totals.
func (rs RuleSet) Validate() error {
	if rs.TotalQuestions <= 0 {
		return errors.New("total questions must be positive")
	}
	if rs.DurationMinutes <= 0 {
		return errors.New("duration must be positive")
	}
	if rs.NegativeMarkingRatio < 0 {
		return errors.New("negative marking ratio must not be negative")
	}

	questions := 0
	marks := 0.0
	for _, s := range rs.Subjects {
		if s.Subject == "" {
			return errors.New("subject name is required")
		}
		questions += s.Questions
		marks += s.Marks
	}

	if questions != rs.TotalQuestions {
		return fmt.Errorf("subject questions sum to %d, want %d", questions, rs.TotalQuestions)
	}
	if math.Abs(marks-rs.TotalMarks) > 1e-9 {
		return fmt.Errorf("subject marks sum to %g, want %g", marks, rs.TotalMarks)
	}
	return nil
}

// SubjectQuota returns the configured question count for a subject, or 0.
func (rs RuleSet) SubjectQuota(subject string) int {
	for _, s := range rs.Subjects {
		if s.Subject == subject {
			return s.Questions
		}
	}
	return 0
}

// clone keeps callers from mutating the shared catalog slices.
func (rs RuleSet) clone() RuleSet {
	out := rs
	out.Subjects = append([]SubjectRule(nil), rs.Subjects...)
	out.Instructions = append([]string(nil), rs.Instructions...)
	return out
}
