package service

import (
	"context"
	"fmt"

	"github.com/elivate/elivate-backend/internal/rules"
	"golang.org/x/sync/errgroup"
)

// QuestionCounter reports how many questions the bank holds per subject.
type QuestionCounter interface {
	CountBySubject(ctx context.Context, program rules.Program) (map[string]int, error)
}

// SubjectAvailability pairs a subject rule with what the bank can supply.
type SubjectAvailability struct {
	rules.SubjectRule
	Available int `json:"available"`
}

// ProgramOverview is a rule set annotated with question bank coverage.
type ProgramOverview struct {
	rules.RuleSet
	Subjects []SubjectAvailability `json:"subjects"`
	// Complete is false when some subject cannot fill its quota.
	Complete bool `json:"complete"`
}

// CatalogService exposes the rules catalog.
type CatalogService struct {
	counter QuestionCounter
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(counter QuestionCounter) *CatalogService {
	return &CatalogService{counter: counter}
}

// Rules returns the rule set of one program.
func (s *CatalogService) Rules(program string) (rules.RuleSet, error) {
	return rules.Lookup(rules.Program(program))
}

// Overview returns every program with its question bank coverage.
func (s *CatalogService) Overview(ctx context.Context) ([]ProgramOverview, error) {
	programs := rules.Programs()
	out := make([]ProgramOverview, len(programs))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range programs {
		g.Go(func() error {
			rs := rules.MustLookup(p)
			counts, err := s.counter.CountBySubject(gctx, p)
			if err != nil {
				return fmt.Errorf("count %s questions: %w", p, err)
			}

			ov := ProgramOverview{RuleSet: rs, Complete: true}
			ov.Subjects = make([]SubjectAvailability, len(rs.Subjects))
			for j, sr := range rs.Subjects {
				ov.Subjects[j] = SubjectAvailability{SubjectRule: sr, Available: counts[sr.Subject]}
				if counts[sr.Subject] < sr.Questions {
					ov.Complete = false
				}
			}
			out[i] = ov
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
