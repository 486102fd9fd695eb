package service

import (
	"context"
	"fmt"

	"github.com/elivate/elivate-backend/internal/model"
	"github.com/elivate/elivate-backend/internal/repository"
	"golang.org/x/sync/errgroup"
)

// AttemptReader is the read side of the attempt store.
type AttemptReader interface {
	ListByLearner(ctx context.Context, learnerID string, page, perPage int) ([]model.AttemptRecord, error)
	CountByLearner(ctx context.Context, learnerID string) (int64, error)
	StatsByLearner(ctx context.Context, learnerID string) ([]repository.ProgramStats, error)
}

// AttemptHistory is one page of a learner's past attempts plus totals.
type AttemptHistory struct {
	Attempts []model.AttemptRecord     `json:"attempts"`
	Stats    []repository.ProgramStats `json:"stats"`
	Total    int64                     `json:"-"`
}

// AttemptService serves a learner's attempt history.
type AttemptService struct {
	repo AttemptReader
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(repo AttemptReader) *AttemptService {
	return &AttemptService{repo: repo}
}

// History fetches the page, the total count and per-program stats together.
func (s *AttemptService) History(ctx context.Context, learnerID string, page, perPage int) (*AttemptHistory, error) {
	var h AttemptHistory
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		attempts, err := s.repo.ListByLearner(gctx, learnerID, page, perPage)
		if err != nil {
			return fmt.Errorf("list attempts: %w", err)
		}
		h.Attempts = attempts
		return nil
	})
	g.Go(func() error {
		total, err := s.repo.CountByLearner(gctx, learnerID)
		if err != nil {
			return fmt.Errorf("count attempts: %w", err)
		}
		h.Total = total
		return nil
	})
	g.Go(func() error {
		stats, err := s.repo.StatsByLearner(gctx, learnerID)
		if err != nil {
			return fmt.Errorf("attempt stats: %w", err)
		}
		h.Stats = stats
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if h.Attempts == nil {
		h.Attempts = []model.AttemptRecord{}
	}
	if h.Stats == nil {
		h.Stats = []repository.ProgramStats{}
	}
	return &h, nil
}
