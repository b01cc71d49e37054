package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"timed-quiz/internal/opentdb"
	"timed-quiz/internal/quiz"
)

type fakeFetcher struct {
	raw    []opentdb.RawQuestion
	err    error
	amount int
	filter opentdb.Filter
}

func (f *fakeFetcher) FetchFiltered(_ context.Context, amount int, filter opentdb.Filter) ([]opentdb.RawQuestion, error) {
	f.amount = amount
	f.filter = filter
	return f.raw, f.err
}

type fakeWriter struct {
	calls     int
	item      quiz.Quiz
	questions []quiz.Question
}

func (f *fakeWriter) CreateQuiz(_ context.Context, item quiz.Quiz, questions []quiz.Question) error {
	f.calls++
	f.item = item
	f.questions = questions
	return nil
}

func sampleRaw() []opentdb.RawQuestion {
	return []opentdb.RawQuestion{
		{Question: "2+2?", CorrectAnswer: "4", IncorrectAnswers: []string{"3", "5"}},
		{Question: "Capital of France?", CorrectAnswer: "Paris", IncorrectAnswers: []string{"Rome"}},
	}
}

func TestSeedWritesQuiz(t *testing.T) {
	fetcher := &fakeFetcher{raw: sampleRaw()}
	writer := &fakeWriter{}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var out bytes.Buffer

	item, err := Seed(context.Background(), &out, fetcher, writer, SeedConfig{
		QuizID:        "weekly",
		QuestionCount: 2,
		Filter:        opentdb.Filter{Difficulty: "easy"},
		Draft:         quiz.QuizDraft{Duration: 15 * time.Minute, MaxAttempts: 2, CorrectMarks: 4, IncorrectMarks: -1},
	}, now)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	if fetcher.amount != 2 || fetcher.filter.Difficulty != "easy" {
		t.Fatalf("unexpected fetch: amount=%d filter=%+v", fetcher.amount, fetcher.filter)
	}
	if writer.calls != 1 || writer.item.QuizID != "weekly" || len(writer.questions) != 2 {
		t.Fatalf("unexpected write: %+v", writer)
	}
	if item.TotalMarks != 8 || item.Title != "Trivia 2026-03-01" || item.Availability != quiz.AvailabilityActive {
		t.Fatalf("unexpected quiz: %+v", item)
	}
	if !strings.Contains(out.String(), "quiz_id=weekly") {
		t.Fatalf("missing summary line: %s", out.String())
	}
}

func TestSeedDryRunOnlyPrints(t *testing.T) {
	writer := &fakeWriter{}
	var out bytes.Buffer

	_, err := Seed(context.Background(), &out, &fakeFetcher{raw: sampleRaw()}, writer, SeedConfig{
		Draft:  quiz.QuizDraft{Duration: time.Minute * 10},
		DryRun: true,
	}, time.Now())
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if writer.calls != 0 {
		t.Fatalf("dry run must not write")
	}
	if !strings.Contains(out.String(), "Q1: 2+2?") || !strings.Contains(out.String(), "* ") {
		t.Fatalf("expected question preview, got: %s", out.String())
	}
}

func TestSeedValidation(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		fetcher *fakeFetcher
		cfg     SeedConfig
	}{
		{name: "no duration", fetcher: &fakeFetcher{raw: sampleRaw()}, cfg: SeedConfig{}},
		{name: "inverted window", fetcher: &fakeFetcher{raw: sampleRaw()}, cfg: SeedConfig{Draft: quiz.QuizDraft{
			Duration: time.Minute,
			Window:   &quiz.Window{StartsAt: now, EndsAt: now.Add(-time.Hour)},
		}}},
		{name: "fetch failure", fetcher: &fakeFetcher{err: errors.New("rate limited")}, cfg: SeedConfig{Draft: quiz.QuizDraft{Duration: time.Minute}}},
		{name: "empty result", fetcher: &fakeFetcher{}, cfg: SeedConfig{Draft: quiz.QuizDraft{Duration: time.Minute}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			writer := &fakeWriter{}
			var out bytes.Buffer
			if _, err := Seed(context.Background(), &out, tc.fetcher, writer, tc.cfg, now); err == nil {
				t.Fatalf("expected error")
			}
			if writer.calls != 0 {
				t.Fatalf("nothing should be written")
			}
		})
	}
}
