package quiz

import (
	"context"
	"time"

	"timed-quiz/internal/jobs"
)

// CatalogRepository is the narrow view of the quiz catalog the engine needs.
type CatalogRepository interface {
	GetQuiz(ctx context.Context, quizID string) (Quiz, error)
	GetQuestion(ctx context.Context, questionID string) (Question, error)
	GetQuestions(ctx context.Context, questionIDs []string) ([]Question, error)
	// IncrementUserAttempt bumps the user's counter only while it is below
	// maxAttempts and returns the new count, or ErrMaxAttempts. A maxAttempts
	// of zero or less means unlimited.
	IncrementUserAttempt(ctx context.Context, quizID, userID string, maxAttempts int) (int, error)
	// ReleaseUserAttempt undoes one increment when the attempt it reserved
	// could not be created.
	ReleaseUserAttempt(ctx context.Context, quizID, userID string) error
}

// AttemptRepository is the system of record for attempts.
type AttemptRepository interface {
	// CreateAttempt fails with ErrAttemptInProgress when the user already has
	// an open attempt for the quiz.
	CreateAttempt(ctx context.Context, attempt Attempt) error
	GetAttempt(ctx context.Context, attemptID string) (Attempt, error)
	FindOpenAttempt(ctx context.Context, userID, quizID string) (Attempt, error)
	// UpdateAttempt replaces answers, scores and completion state together and
	// fails with ErrAttemptCompleted if the stored attempt is already final.
	UpdateAttempt(ctx context.Context, attempt Attempt) error
	ListOverdueAttempts(ctx context.Context, now time.Time) ([]Attempt, error)
	CountOpenAttempts(ctx context.Context) (int, error)
	ListUserAttempts(ctx context.Context, userID, quizID string) ([]Attempt, error)
}

// FastCache is the expiring key/value and set store used as the answer
// write buffer. Get reports a miss with ok=false and a nil error.
type FastCache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// JobQueue schedules typed tasks for later execution.
type JobQueue interface {
	Enqueue(ctx context.Context, task jobs.Task, runAt time.Time) error
}

// SweepRunner is the single-instance handle of the periodic sweep.
type SweepRunner interface {
	Start(task func(ctx context.Context)) bool
	Stop() bool
	Running() bool
}

// EventPublisher receives attempt lifecycle events. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}
