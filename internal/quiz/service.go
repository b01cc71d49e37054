package quiz

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"timed-quiz/internal/events"
	"timed-quiz/internal/jobs"
	"timed-quiz/internal/metrics"
)

const (
	DefaultBufferTTL    = 5 * time.Minute
	DefaultCacheTimeout = 2 * time.Second
	DefaultMinRemaining = time.Minute
)

// Dependencies are the collaborators the engine orchestrates. Events and
// Metrics are optional.
type Dependencies struct {
	Catalog  CatalogRepository
	Attempts AttemptRepository
	Cache    FastCache
	Jobs     JobQueue
	Sweep    SweepRunner
	Events   EventPublisher
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type Options struct {
	BufferTTL    time.Duration
	CacheTimeout time.Duration
	MinRemaining time.Duration
	Now          func() time.Time
}

// Service is the attempt engine: it validates and starts attempts, buffers
// answers in the fast cache and finalizes every attempt exactly once.
type Service struct {
	catalog  CatalogRepository
	attempts AttemptRepository
	cache    FastCache
	jobs     JobQueue
	sweep    SweepRunner
	events   EventPublisher
	metrics  *metrics.Metrics
	log      *slog.Logger

	bufferTTL    time.Duration
	cacheTimeout time.Duration
	minRemaining time.Duration
	now          func() time.Time
}

func NewService(deps Dependencies, opts Options) *Service {
	if opts.BufferTTL <= 0 {
		opts.BufferTTL = DefaultBufferTTL
	}
	if opts.CacheTimeout <= 0 {
		opts.CacheTimeout = DefaultCacheTimeout
	}
	if opts.MinRemaining <= 0 {
		opts.MinRemaining = DefaultMinRemaining
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Service{
		catalog:      deps.Catalog,
		attempts:     deps.Attempts,
		cache:        deps.Cache,
		jobs:         deps.Jobs,
		sweep:        deps.Sweep,
		events:       deps.Events,
		metrics:      deps.Metrics,
		log:          deps.Logger,
		bufferTTL:    opts.BufferTTL,
		cacheTimeout: opts.CacheTimeout,
		minRemaining: opts.MinRemaining,
		now:          opts.Now,
	}
}

// StartPlan is the outcome of a successful start validation.
type StartPlan struct {
	CanStart        bool          `json:"can_start"`
	QuizID          string        `json:"quiz_id"`
	DurationMinutes int           `json:"duration_minutes"`
	Remaining       time.Duration `json:"-"`
	StartTime       time.Time     `json:"start_time"`
	ExpectedEndTime time.Time     `json:"expected_end_time"`
}

type StartResult struct {
	AttemptID       string    `json:"attempt_id"`
	QuizID          string    `json:"quiz_id"`
	AttemptNumber   int       `json:"attempt_number"`
	DurationMinutes int       `json:"duration_minutes"`
	StartTime       time.Time `json:"start_time"`
	ExpectedEndTime time.Time `json:"expected_end_time"`
}

// ValidateStart reports whether userID may start quizID now without changing
// any state.
func (s *Service) ValidateStart(ctx context.Context, quizID, userID string) (StartPlan, error) {
	now := s.now().UTC()

	quiz, err := s.checkStartable(ctx, quizID, userID, now)
	if err != nil {
		return StartPlan{}, err
	}

	open, err := s.attempts.FindOpenAttempt(ctx, userID, quiz.QuizID)
	switch {
	case err == nil:
		return StartPlan{}, &Error{
			Kind:    ErrConflict,
			Message: ErrAttemptInProgress.Message,
			Details: map[string]any{"attempt_id": open.AttemptID},
		}
	case !errors.Is(err, ErrNotFound):
		return StartPlan{}, internal("find open attempt", err)
	}

	return s.plan(quiz, now)
}

// Start creates an in-progress attempt, schedules its deadline job and makes
// sure the sweep is running.
func (s *Service) Start(ctx context.Context, quizID, userID string) (StartResult, error) {
	now := s.now().UTC()

	quiz, err := s.checkStartable(ctx, quizID, userID, now)
	if err != nil {
		return StartResult{}, err
	}
	plan, err := s.plan(quiz, now)
	if err != nil {
		return StartResult{}, err
	}

	count, err := s.catalog.IncrementUserAttempt(ctx, quiz.QuizID, userID, quiz.MaxAttempts)
	if err != nil {
		if errors.Is(err, ErrMaxAttempts) {
			return StartResult{}, maxAttemptsError(quiz.MaxAttempts, quiz.MaxAttempts)
		}
		return StartResult{}, internal("increment user attempts", err)
	}

	attempt := Attempt{
		AttemptID:       uuid.NewString(),
		UserID:          userID,
		QuizID:          quiz.QuizID,
		AttemptNumber:   count,
		StartTime:       now,
		ExpectedEndTime: plan.ExpectedEndTime,
		TotalMarks:      quiz.TotalMarks,
		Answers:         []Answer{},
		Status:          StatusInProgress,
	}
	if err := s.attempts.CreateAttempt(ctx, attempt); err != nil {
		if releaseErr := s.catalog.ReleaseUserAttempt(ctx, quiz.QuizID, userID); releaseErr != nil {
			s.log.Error("release user attempt", slog.String("quiz_id", quiz.QuizID), slog.String("user_id", userID), slog.Any("error", releaseErr))
		}
		if errors.Is(err, ErrConflict) {
			return StartResult{}, err
		}
		return StartResult{}, internal("create attempt", err)
	}

	logger := s.log.With(slog.String("attempt_id", attempt.AttemptID))
	if err := s.jobs.Enqueue(ctx, jobs.DeadlineTask(attempt.AttemptID), attempt.ExpectedEndTime); err != nil {
		logger.Warn("schedule deadline job, relying on sweep", slog.Any("error", err))
	}
	s.ensureSweep()

	s.metrics.AttemptStarted()
	s.publish(ctx, events.AttemptStarted, attempt)
	logger.Info("attempt started",
		slog.String("quiz_id", attempt.QuizID),
		slog.String("user_id", attempt.UserID),
		slog.Time("expected_end_time", attempt.ExpectedEndTime),
	)

	return StartResult{
		AttemptID:       attempt.AttemptID,
		QuizID:          attempt.QuizID,
		AttemptNumber:   attempt.AttemptNumber,
		DurationMinutes: plan.DurationMinutes,
		StartTime:       attempt.StartTime,
		ExpectedEndTime: attempt.ExpectedEndTime,
	}, nil
}

// Resume starts the sweep when in-progress attempts survived a restart.
func (s *Service) Resume(ctx context.Context) error {
	open, err := s.attempts.CountOpenAttempts(ctx)
	if err != nil {
		return internal("count open attempts", err)
	}
	if open > 0 {
		s.log.Info("resuming sweep for open attempts", slog.Int("open", open))
		s.ensureSweep()
	}
	return nil
}

// checkStartable runs the quiz existence, availability and attempt limit
// checks in that order.
func (s *Service) checkStartable(ctx context.Context, quizID, userID string, now time.Time) (Quiz, error) {
	if strings.TrimSpace(userID) == "" {
		return Quiz{}, ErrInvalidUserID
	}

	quiz, err := s.catalog.GetQuiz(ctx, strings.TrimSpace(quizID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Quiz{}, err
		}
		return Quiz{}, internal("load quiz", err)
	}

	if err := checkAvailability(quiz, now); err != nil {
		return Quiz{}, err
	}

	if used := quiz.AttemptsBy(userID); quiz.MaxAttempts > 0 && used >= quiz.MaxAttempts {
		return Quiz{}, maxAttemptsError(quiz.MaxAttempts, used)
	}
	return quiz, nil
}

func (s *Service) plan(quiz Quiz, now time.Time) (StartPlan, error) {
	end := expectedEnd(quiz, now)
	remaining := end.Sub(now)
	if remaining < s.minRemaining {
		return StartPlan{}, forbidden("not enough time", map[string]any{
			"remaining_seconds": int(remaining.Seconds()),
		})
	}

	return StartPlan{
		CanStart:        true,
		QuizID:          quiz.QuizID,
		DurationMinutes: int(remaining / time.Minute),
		Remaining:       remaining,
		StartTime:       now,
		ExpectedEndTime: end,
	}, nil
}

func checkAvailability(quiz Quiz, now time.Time) error {
	switch quiz.Availability {
	case AvailabilityActive:
		return nil
	case AvailabilityScheduled:
		if quiz.Window == nil {
			return forbidden("not active", nil)
		}
		if now.Before(quiz.Window.StartsAt) {
			return forbidden("not yet available", map[string]any{"starts_at": quiz.Window.StartsAt})
		}
		if !now.Before(quiz.Window.EndsAt) {
			return forbidden("window passed", map[string]any{"ends_at": quiz.Window.EndsAt})
		}
		return nil
	default:
		return forbidden("not active", nil)
	}
}

// expectedEnd is now plus the quiz duration, capped by the window end.
func expectedEnd(quiz Quiz, now time.Time) time.Time {
	end := now.Add(quiz.Duration)
	if quiz.Window != nil && !quiz.Window.EndsAt.IsZero() && quiz.Window.EndsAt.Before(end) {
		end = quiz.Window.EndsAt
	}
	return end
}

func maxAttemptsError(maxAttempts, used int) *Error {
	return &Error{
		Kind:    ErrForbidden,
		Message: ErrMaxAttempts.Message,
		Details: map[string]any{"max_attempts": maxAttempts, "user_attempts": used},
		Err:     ErrMaxAttempts,
	}
}

func (s *Service) ensureSweep() {
	if s.sweep == nil {
		return
	}
	s.sweep.Start(s.Sweep)
}

// stopSweepIfIdle stops the sweep once no attempt is in progress. A start
// that races the stop is caught by the recount. On the sweep path ctx belongs
// to the runner and Stop cancels it, so the counts run detached from it.
func (s *Service) stopSweepIfIdle(ctx context.Context) {
	if s.sweep == nil || !s.sweep.Running() {
		return
	}
	ctx = context.WithoutCancel(ctx)

	open, err := s.attempts.CountOpenAttempts(ctx)
	if err != nil {
		s.log.Warn("count open attempts", slog.Any("error", err))
		return
	}
	if open > 0 {
		return
	}
	s.sweep.Stop()

	open, err = s.attempts.CountOpenAttempts(ctx)
	if err != nil {
		s.log.Warn("recount open attempts after sweep stop", slog.Any("error", err))
		return
	}
	if open > 0 {
		s.ensureSweep()
	}
}

type attemptEvent struct {
	AttemptID       string        `json:"attempt_id"`
	UserID          string        `json:"user_id"`
	QuizID          string        `json:"quiz_id"`
	Status          AttemptStatus `json:"status"`
	Score           float64       `json:"score"`
	ExpectedEndTime time.Time     `json:"expected_end_time"`
	OccurredAt      time.Time     `json:"occurred_at"`
}

func (s *Service) publish(ctx context.Context, eventType string, attempt Attempt) {
	if s.events == nil {
		return
	}

	err := s.events.Publish(ctx, eventType, attemptEvent{
		AttemptID:       attempt.AttemptID,
		UserID:          attempt.UserID,
		QuizID:          attempt.QuizID,
		Status:          attempt.Status,
		Score:           attempt.Score,
		ExpectedEndTime: attempt.ExpectedEndTime,
		OccurredAt:      s.now().UTC(),
	})
	if err != nil {
		s.log.Warn("publish event", slog.String("event", eventType), slog.String("attempt_id", attempt.AttemptID), slog.Any("error", err))
	}
}
