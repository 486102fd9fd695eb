package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/elivate/elivate-backend/internal/config"
	"github.com/elivate/elivate-backend/internal/database"
	"github.com/elivate/elivate-backend/internal/logger"
	"github.com/elivate/elivate-backend/internal/model"
	"github.com/elivate/elivate-backend/internal/repository"
	"github.com/elivate/elivate-backend/internal/rules"
)

func main() {
	var (
		program    string
		perSubject int
		file       string
	)
	flag.StringVar(&program, "program", "", "Program to seed (ioe, mbbs); empty seeds every program")
	flag.IntVar(&perSubject, "per-subject", 0, "Placeholder questions per subject; 0 fills each subject's quota")
	flag.StringVar(&file, "file", "", "Import questions from a JSON array instead of generating placeholders")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With().Str("component", "seed_questions").Logger()

	var questions []model.Question
	if file != "" {
		var err error
		questions, err = loadFile(file)
		if err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("Failed to load questions")
		}
	} else {
		programs := rules.Programs()
		if program != "" {
			p := rules.Program(strings.ToLower(program))
			if !p.Valid() {
				log.Fatal().Str("program", program).Msg("Unknown program")
			}
			programs = []rules.Program{p}
		}
		for _, p := range programs {
			questions = append(questions, placeholders(rules.MustLookup(p), perSubject)...)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	n, err := repository.NewQuestionRepository(pool).BulkCreate(ctx, questions)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to insert questions")
	}
	log.Info().Int64("inserted", n).Msg("Seed completed")
}

// placeholders builds n questions per subject of rs; n <= 0 fills the quota.
// The answer key rotates so a blind guesser cannot score above chance.
func placeholders(rs rules.RuleSet, n int) []model.Question {
	var out []model.Question
	for _, sr := range rs.Subjects {
		count := n
		if count <= 0 {
			count = sr.Questions
		}
		marks := sr.Marks / float64(sr.Questions)
		for i := 0; i < count; i++ {
			key := i % model.OptionCount
			m := marks
			out = append(out, model.Question{
				Program:      rs.Program,
				Subject:      sr.Subject,
				QuestionText: fmt.Sprintf("%s practice question %d", sr.Subject, i+1),
				Options: [model.OptionCount]string{
					"Option A", "Option B", "Option C", "Option D",
				},
				CorrectOption: &key,
				Marks:         &m,
			})
		}
	}
	return out
}

// loadFile reads a JSON array of questions and rejects any that the
// catalog or the scorer could not use.
func loadFile(path string) ([]model.Question, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var questions []model.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	for i := range questions {
		if err := checkQuestion(&questions[i]); err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
	}
	return questions, nil
}

func checkQuestion(q *model.Question) error {
	q.Program = rules.Program(strings.ToLower(string(q.Program)))
	rs, err := rules.Lookup(q.Program)
	if err != nil {
		return err
	}
	if rs.SubjectQuota(q.Subject) == 0 {
		return fmt.Errorf("subject %q is not part of %s", q.Subject, q.Program)
	}
	if strings.TrimSpace(q.QuestionText) == "" {
		return fmt.Errorf("empty question text")
	}
	if !q.HasValidKey() {
		return fmt.Errorf("correct_option must be between 0 and %d", model.OptionCount-1)
	}
	return nil
}
