package repository

import (
	"context"
	"fmt"

	"github.com/elivate/elivate-backend/internal/model"
	"github.com/elivate/elivate-backend/internal/rules"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository handles question bank access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, program, subject, question_text, options, correct_option, marks, difficulty, explanation`

// Draw picks up to quota random questions per subject of the program.
// Rows come back grouped in the order of subjects, random within a group.
// A subject with too few questions yields what it has.
func (r *QuestionRepository) Draw(ctx context.Context, program rules.Program, subjects []rules.SubjectRule) ([]model.Question, error) {
	names := make([]string, len(subjects))
	quotas := make([]int32, len(subjects))
	for i, s := range subjects {
		names[i] = s.Subject
		quotas[i] = int32(s.Questions)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.program, t.subject, t.question_text, t.options,
		       t.correct_option, t.marks, t.difficulty, t.explanation
		FROM (
			SELECT q.*,
			       row_number() OVER (PARTITION BY q.subject ORDER BY random()) AS rn
			FROM questions q
			WHERE q.program = $1
			  AND q.subject = ANY($2::text[])
		) AS t
		JOIN UNNEST($2::text[], $3::int[]) WITH ORDINALITY AS u (subject, quota, ord)
		  ON u.subject = t.subject
		WHERE t.rn <= u.quota
		ORDER BY u.ord, t.rn`,
		string(program), names, quotas,
	)
	if err != nil {
		return nil, fmt.Errorf("draw questions: %w", err)
	}
	return collectQuestions(rows)
}

// GetByIDs loads the given questions in no particular order. Unknown IDs
// are skipped.
func (r *QuestionRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ANY($1::uuid[])`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	return collectQuestions(rows)
}

// CountBySubject returns how many questions each subject of program has.
func (r *QuestionRepository) CountBySubject(ctx context.Context, program rules.Program) (map[string]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT subject, COUNT(*) FROM questions WHERE program = $1 GROUP BY subject`, string(program),
	)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var subject string
		var n int
		if err := rows.Scan(&subject, &n); err != nil {
			return nil, err
		}
		counts[subject] = n
	}
	return counts, rows.Err()
}

// BulkCreate inserts questions with COPY and returns the number written.
func (r *QuestionRepository) BulkCreate(ctx context.Context, questions []model.Question) (int64, error) {
	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"id", "program", "subject", "question_text", "options", "correct_option", "marks", "difficulty", "explanation"},
		pgx.CopyFromSlice(len(questions), func(i int) ([]any, error) {
			q := questions[i]
			if q.ID == uuid.Nil {
				q.ID = uuid.New()
			}
			return []any{q.ID, string(q.Program), q.Subject, q.QuestionText, q.Options[:], q.CorrectOption, q.Marks, q.Difficulty, q.Explanation}, nil
		}),
	)
}

func collectQuestions(rows pgx.Rows) ([]model.Question, error) {
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var (
			q       model.Question
			program string
			options []string
		)
		if err := rows.Scan(&q.ID, &program, &q.Subject, &q.QuestionText, &options, &q.CorrectOption, &q.Marks, &q.Difficulty, &q.Explanation); err != nil {
			return nil, err
		}
		q.Program = rules.Program(program)
		copy(q.Options[:], options)
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
