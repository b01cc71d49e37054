package quiz

import (
	"context"
	"errors"
	"log/slog"

	"timed-quiz/internal/events"
)

// Finish is the user's explicit submission. Finishing an already completed
// attempt returns it unchanged.
func (s *Service) Finish(ctx context.Context, attemptID string) (Attempt, error) {
	return s.finalize(ctx, attemptID, StatusCompleted, true)
}

// HandleDeadline is the deadline job's effect: finalize the attempt as
// auto-submitted if it is still open. A returned error makes the job retry.
func (s *Service) HandleDeadline(ctx context.Context, attemptID string) error {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if errors.Is(err, ErrNotFound) {
		s.log.Warn("deadline for unknown attempt", slog.String("attempt_id", attemptID))
		return nil
	}
	if err != nil {
		return internal("load attempt", err)
	}
	if attempt.Completed {
		return nil
	}

	_, err = s.finalize(ctx, attemptID, StatusAutoSubmitted, true)
	return err
}

// Sweep drains pending buffers and force-finishes every overdue attempt.
// Failures are logged per attempt and never stop the pass.
func (s *Service) Sweep(ctx context.Context) {
	s.metrics.SweepRun()

	drained := true
	if _, err := s.ProcessPendingWrites(ctx); err != nil {
		drained = false
		s.log.Error("sweep drain", slog.Any("error", err))
	}

	overdue, err := s.attempts.ListOverdueAttempts(ctx, s.now().UTC())
	if err != nil {
		s.log.Error("sweep list overdue attempts", slog.Any("error", err))
		return
	}

	for _, attempt := range overdue {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.finalize(ctx, attempt.AttemptID, StatusAutoSubmitted, !drained); err != nil {
			s.log.Error("sweep finalize attempt", slog.String("attempt_id", attempt.AttemptID), slog.Any("error", err))
		}
	}

	s.stopSweepIfIdle(ctx)
}

// finalize performs the single durable write that completes an attempt. It
// is idempotent: a completed attempt, or one completed by a concurrent
// trigger, is returned as stored without error.
func (s *Service) finalize(ctx context.Context, attemptID string, status AttemptStatus, drainAll bool) (Attempt, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if attempt.Completed {
		return attempt, nil
	}

	if drainAll {
		if _, err := s.ProcessPendingWrites(ctx); err != nil {
			return Attempt{}, err
		}
	}

	// The buffer is read before the reload. A concurrent drain clears the
	// buffer only after its durable write, so whatever it flushed after this
	// read is already in the reloaded attempt.
	buffered, _, _, err := s.readBuffer(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if attempt, err = s.loadAttempt(ctx, attemptID); err != nil {
		return Attempt{}, err
	}
	if attempt.Completed {
		return attempt, nil
	}

	now := s.now().UTC()
	attempt.Answers = MergeAnswers(attempt.Answers, buffered)
	attempt.applyScore(CalculateScore(attempt.Answers))
	attempt.Completed = true
	attempt.AutoSubmitted = status == StatusAutoSubmitted
	attempt.Status = status
	attempt.EndTime = &now

	if err := s.attempts.UpdateAttempt(ctx, attempt); err != nil {
		if errors.Is(err, ErrAttemptCompleted) {
			return s.loadAttempt(ctx, attemptID)
		}
		return Attempt{}, internal("finalize attempt", err)
	}

	logger := s.log.With(slog.String("attempt_id", attemptID))
	if err := s.dropBuffer(ctx, attemptID); err != nil {
		logger.Warn("clear answer buffer after finalize", slog.Any("error", err))
	}

	eventType := events.AttemptFinished
	if attempt.AutoSubmitted {
		eventType = events.AttemptExpired
	}
	s.metrics.AttemptFinalized(string(status))
	s.publish(ctx, eventType, attempt)
	logger.Info("attempt finalized",
		slog.String("status", string(status)),
		slog.Float64("score", attempt.Score),
		slog.Int("answers", len(attempt.Answers)),
	)

	s.stopSweepIfIdle(ctx)
	return attempt, nil
}
