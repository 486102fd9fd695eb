package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/elivate/elivate-backend/internal/model"
	"github.com/elivate/elivate-backend/internal/rules"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptRepository handles attempt record data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// ProgramStats summarizes one learner's attempts in one program.
type ProgramStats struct {
	Program        rules.Program `json:"program"`
	Attempts       int           `json:"attempts"`
	Passed         int           `json:"passed"`
	BestPercentage float64       `json:"best_percentage"`
	LastAttemptAt  *time.Time    `json:"last_attempt_at,omitempty"`
}

// Insert stores one attempt. A record for an already stored session is ignored.
func (r *AttemptRepository) Insert(ctx context.Context, a *model.AttemptRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempts (id, session_id, learner_id, program, score_percentage, total_marks,
		                       correct_count, wrong_count, unanswered_count, total_questions,
		                       duration_minutes, passed, auto_submitted, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (session_id) DO NOTHING`,
		a.ID, a.SessionID, a.LearnerID, string(a.Program), a.ScorePercentage, a.TotalMarks,
		a.CorrectCount, a.WrongCount, a.UnansweredCount, a.TotalQuestions,
		a.DurationMinutes, a.Passed, a.AutoSubmitted, a.SubmittedAt,
	)
	return err
}

// BulkInsert stores a batch in one statement using UNNEST.
func (r *AttemptRepository) BulkInsert(ctx context.Context, batch []*model.AttemptRecord) error {
	n := len(batch)
	if n == 0 {
		return nil
	}

	var (
		ids         = make([]uuid.UUID, n)
		sessions    = make([]uuid.UUID, n)
		learners    = make([]string, n)
		programs    = make([]string, n)
		percentages = make([]float64, n)
		marks       = make([]float64, n)
		correct     = make([]int32, n)
		wrong       = make([]int32, n)
		unanswered  = make([]int32, n)
		totals      = make([]int32, n)
		durations   = make([]int32, n)
		passed      = make([]bool, n)
		auto        = make([]bool, n)
		submitted   = make([]time.Time, n)
	)
	for i, a := range batch {
		ids[i] = a.ID
		sessions[i] = a.SessionID
		learners[i] = a.LearnerID
		programs[i] = string(a.Program)
		percentages[i] = a.ScorePercentage
		marks[i] = a.TotalMarks
		correct[i] = int32(a.CorrectCount)
		wrong[i] = int32(a.WrongCount)
		unanswered[i] = int32(a.UnansweredCount)
		totals[i] = int32(a.TotalQuestions)
		durations[i] = int32(a.DurationMinutes)
		passed[i] = a.Passed
		auto[i] = a.AutoSubmitted
		submitted[i] = a.SubmittedAt
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO attempts (id, session_id, learner_id, program, score_percentage, total_marks,
		                      correct_count, wrong_count, unanswered_count, total_questions,
		                      duration_minutes, passed, auto_submitted, submitted_at)
		SELECT *
		FROM UNNEST(
			$1::uuid[], $2::uuid[], $3::text[], $4::text[], $5::float8[], $6::float8[],
			$7::int[], $8::int[], $9::int[], $10::int[],
			$11::int[], $12::bool[], $13::bool[], $14::timestamptz[]
		)
		ON CONFLICT (session_id) DO NOTHING`,
		ids, sessions, learners, programs, percentages, marks,
		correct, wrong, unanswered, totals,
		durations, passed, auto, submitted,
	)
	if err != nil {
		return fmt.Errorf("bulk insert attempts: %w", err)
	}
	return nil
}

// ListByLearner returns one page of a learner's attempts, newest first.
func (r *AttemptRepository) ListByLearner(ctx context.Context, learnerID string, page, perPage int) ([]model.AttemptRecord, error) {
	offset := (page - 1) * perPage
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, learner_id, program, score_percentage, total_marks,
		        correct_count, wrong_count, unanswered_count, total_questions,
		        duration_minutes, passed, auto_submitted, submitted_at
		 FROM attempts
		 WHERE learner_id = $1
		 ORDER BY submitted_at DESC
		 LIMIT $2 OFFSET $3`,
		learnerID, perPage, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]model.AttemptRecord, 0, perPage)
	for rows.Next() {
		var (
			a       model.AttemptRecord
			program string
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.LearnerID, &program, &a.ScorePercentage, &a.TotalMarks,
			&a.CorrectCount, &a.WrongCount, &a.UnansweredCount, &a.TotalQuestions,
			&a.DurationMinutes, &a.Passed, &a.AutoSubmitted, &a.SubmittedAt); err != nil {
			return nil, err
		}
		a.Program = rules.Program(program)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// CountByLearner returns the number of stored attempts for a learner.
func (r *AttemptRepository) CountByLearner(ctx context.Context, learnerID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM attempts WHERE learner_id = $1`, learnerID).Scan(&n)
	return n, err
}

// StatsByLearner aggregates a learner's attempts per program.
func (r *AttemptRepository) StatsByLearner(ctx context.Context, learnerID string) ([]ProgramStats, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT program,
		        COUNT(*),
		        COUNT(*) FILTER (WHERE passed),
		        COALESCE(MAX(score_percentage), 0),
		        MAX(submitted_at)
		 FROM attempts
		 WHERE learner_id = $1
		 GROUP BY program
		 ORDER BY program`,
		learnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("attempt stats: %w", err)
	}
	defer rows.Close()

	var stats []ProgramStats
	for rows.Next() {
		var (
			s       ProgramStats
			program string
		)
		if err := rows.Scan(&program, &s.Attempts, &s.Passed, &s.BestPercentage, &s.LastAttemptAt); err != nil {
			return nil, err
		}
		s.Program = rules.Program(program)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
