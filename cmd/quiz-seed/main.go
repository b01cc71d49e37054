package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"timed-quiz/internal/cli"
	"timed-quiz/internal/config"
	"timed-quiz/internal/opentdb"
	"timed-quiz/internal/quiz"
	"timed-quiz/internal/quiz/backend"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	quizID := flag.String("quiz-id", "", "quiz id (random when empty)")
	title := flag.String("title", "", "quiz title")
	count := flag.Int("count", 10, "number of questions to fetch")
	duration := flag.Duration("duration", 10*time.Minute, "attempt duration")
	maxAttempts := flag.Int("max-attempts", 0, "attempts per user (0 for unlimited)")
	correct := flag.Float64("correct-marks", 4, "marks for a correct answer")
	incorrect := flag.Float64("incorrect-marks", -1, "marks for an incorrect answer")
	availability := flag.String("availability", quiz.AvailabilityActive, "active, scheduled or inactive")
	startsAt := flag.String("starts-at", "", "window start, RFC 3339")
	endsAt := flag.String("ends-at", "", "window end, RFC 3339")
	category := flag.Int("category", 0, "OpenTriviaDB category id")
	difficulty := flag.String("difficulty", "", "easy, medium or hard")
	questionType := flag.String("type", "", "multiple or boolean")
	dryRun := flag.Bool("dry-run", false, "print the quiz without writing it")
	flag.Parse()

	window, err := parseWindow(*startsAt, *endsAt)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := backend.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close(ctx) }()

	_, err = cli.Seed(ctx, os.Stdout, opentdb.NewClient(&http.Client{Timeout: 15 * time.Second}), store, cli.SeedConfig{
		QuizID:        *quizID,
		Title:         *title,
		QuestionCount: *count,
		Filter: opentdb.Filter{
			Category:   *category,
			Difficulty: *difficulty,
			Type:       *questionType,
		},
		Draft: quiz.QuizDraft{
			Availability:   *availability,
			Window:         window,
			Duration:       *duration,
			MaxAttempts:    *maxAttempts,
			CorrectMarks:   *correct,
			IncorrectMarks: *incorrect,
		},
		DryRun: *dryRun,
	}, time.Now())
	return err
}

func parseWindow(startsAt, endsAt string) (*quiz.Window, error) {
	if startsAt == "" && endsAt == "" {
		return nil, nil
	}
	if startsAt == "" || endsAt == "" {
		return nil, fmt.Errorf("--starts-at and --ends-at must be set together")
	}
	start, err := time.Parse(time.RFC3339, startsAt)
	if err != nil {
		return nil, fmt.Errorf("--starts-at: %w", err)
	}
	end, err := time.Parse(time.RFC3339, endsAt)
	if err != nil {
		return nil, fmt.Errorf("--ends-at: %w", err)
	}
	return &quiz.Window{StartsAt: start, EndsAt: end}, nil
}
