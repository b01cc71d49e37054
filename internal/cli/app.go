// Package cli seeds the catalog with timed quizzes built from OpenTriviaDB.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"timed-quiz/internal/opentdb"
	"timed-quiz/internal/quiz"
)

const defaultQuestionCount = 10

type QuestionFetcher interface {
	FetchFiltered(ctx context.Context, amount int, filter opentdb.Filter) ([]opentdb.RawQuestion, error)
}

type QuizWriter interface {
	CreateQuiz(ctx context.Context, item quiz.Quiz, questions []quiz.Question) error
}

type SeedConfig struct {
	QuizID        string
	Title         string
	QuestionCount int
	Filter        opentdb.Filter
	Draft         quiz.QuizDraft
	// DryRun prints the quiz without writing it.
	DryRun bool
}

// Seed fetches questions, assembles the quiz and writes it through store.
func Seed(ctx context.Context, out io.Writer, fetcher QuestionFetcher, store QuizWriter, cfg SeedConfig, now time.Time) (quiz.Quiz, error) {
	if cfg.Draft.Duration <= 0 {
		return quiz.Quiz{}, errors.New("duration must be positive")
	}
	if window := cfg.Draft.Window; window != nil && !window.EndsAt.After(window.StartsAt) {
		return quiz.Quiz{}, errors.New("window end must be after its start")
	}

	count := cfg.QuestionCount
	if count <= 0 {
		count = defaultQuestionCount
	}

	raw, err := fetcher.FetchFiltered(ctx, count, cfg.Filter)
	if err != nil {
		return quiz.Quiz{}, fmt.Errorf("fetch questions: %w", err)
	}
	if len(raw) == 0 {
		return quiz.Quiz{}, errors.New("no questions returned")
	}

	draft := cfg.Draft
	draft.QuizID = strings.TrimSpace(cfg.QuizID)
	if draft.QuizID == "" {
		draft.QuizID = uuid.NewString()
	}
	draft.Title = strings.TrimSpace(cfg.Title)
	if draft.Title == "" {
		draft.Title = "Trivia " + now.UTC().Format("2006-01-02")
	}

	item, questions := quiz.BuildQuiz(draft, raw, now)

	if cfg.DryRun {
		for idx, question := range questions {
			printQuestion(out, idx+1, question)
		}
	} else if err := store.CreateQuiz(ctx, item, questions); err != nil {
		return quiz.Quiz{}, fmt.Errorf("create quiz: %w", err)
	}

	fmt.Fprintf(out, "quiz_id=%s title=%q questions=%d duration=%s max_attempts=%d total_marks=%g availability=%s\n",
		item.QuizID,
		item.Title,
		len(questions),
		item.Duration,
		item.MaxAttempts,
		item.TotalMarks,
		item.Availability,
	)
	return item, nil
}

func printQuestion(out io.Writer, number int, question quiz.Question) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Q%d: %s\n\n", number, question.Text)
	for idx, option := range question.Options {
		marker := " "
		if option.IsCorrect {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %c. %s\n", marker, 'A'+idx, option.Text)
	}
	fmt.Fprintln(out)
}
