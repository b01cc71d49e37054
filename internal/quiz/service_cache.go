package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// Cache-specific helpers are isolated here so the service files can focus on
// orchestration.

const (
	pendingWritesKey = "attempts:pending_writes"
	bufferVersion    = 1
)

func bufferKey(attemptID string) string {
	return "attempt:" + attemptID + ":answers"
}

// bufferRecord is the cached, not yet durable delta of an attempt's answers.
type bufferRecord struct {
	Version   int       `json:"v"`
	AttemptID string    `json:"attempt_id"`
	Answers   []Answer  `json:"answers"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DrainReport summarizes one ProcessPendingWrites pass.
type DrainReport struct {
	Pending int `json:"pending"`
	Flushed int `json:"flushed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func (s *Service) cacheContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cacheTimeout)
}

// readBuffer returns the buffered answers, the raw cached value they came
// from and whether a value was present. A value that does not decode into a
// current bufferRecord for attemptID is logged and read as empty.
func (s *Service) readBuffer(ctx context.Context, attemptID string) ([]Answer, string, bool, error) {
	cacheCtx, cancel := s.cacheContext(ctx)
	defer cancel()

	raw, ok, err := s.cache.Get(cacheCtx, bufferKey(attemptID))
	if err != nil {
		s.metrics.CacheError("get")
		return nil, "", false, unavailable("answer buffer", err)
	}
	if !ok {
		return nil, "", false, nil
	}

	var record bufferRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		s.log.Warn("discard undecodable answer buffer", slog.String("attempt_id", attemptID), slog.Any("error", err))
		return nil, raw, true, nil
	}
	if record.Version != bufferVersion || record.AttemptID != attemptID {
		s.log.Warn("discard foreign answer buffer",
			slog.String("attempt_id", attemptID),
			slog.Int("version", record.Version),
			slog.String("record_attempt_id", record.AttemptID),
		)
		return nil, raw, true, nil
	}
	return record.Answers, raw, true, nil
}

// writeBuffer stores answers with a fresh expiry, so an active attempt keeps
// its buffer and a stalled one self-cleans.
func (s *Service) writeBuffer(ctx context.Context, attemptID string, answers []Answer, now time.Time) error {
	body, err := json.Marshal(bufferRecord{
		Version:   bufferVersion,
		AttemptID: attemptID,
		Answers:   answers,
		UpdatedAt: now,
	})
	if err != nil {
		return internal("encode answer buffer", err)
	}

	cacheCtx, cancel := s.cacheContext(ctx)
	defer cancel()

	if err := s.cache.SetEX(cacheCtx, bufferKey(attemptID), string(body), s.bufferTTL); err != nil {
		s.metrics.CacheError("set")
		return unavailable("answer buffer", err)
	}
	return nil
}

func (s *Service) markPending(ctx context.Context, attemptID string) error {
	cacheCtx, cancel := s.cacheContext(ctx)
	defer cancel()

	if err := s.cache.SAdd(cacheCtx, pendingWritesKey, attemptID); err != nil {
		s.metrics.CacheError("sadd")
		return unavailable("pending writes index", err)
	}
	return nil
}

// clearBuffer removes a flushed buffer only if it still holds raw. A buffer
// rewritten after the flush keeps its index entry for the next drain.
func (s *Service) clearBuffer(ctx context.Context, attemptID, raw string) error {
	cacheCtx, cancel := s.cacheContext(ctx)
	defer cancel()

	deleted, err := s.cache.CompareAndDelete(cacheCtx, bufferKey(attemptID), raw)
	if err != nil {
		s.metrics.CacheError("cad")
		return unavailable("answer buffer", err)
	}
	if !deleted {
		_, ok, err := s.cache.Get(cacheCtx, bufferKey(attemptID))
		if err != nil {
			s.metrics.CacheError("get")
			s.log.Warn("check answer buffer after clear", slog.String("attempt_id", attemptID), slog.Any("error", err))
			return nil
		}
		if ok {
			return nil
		}
	}

	if err := s.cache.SRem(cacheCtx, pendingWritesKey, attemptID); err != nil {
		s.metrics.CacheError("srem")
		return unavailable("pending writes index", err)
	}
	return nil
}

// dropBuffer unconditionally forgets the buffer and index entry of an
// attempt that no longer accepts answers.
func (s *Service) dropBuffer(ctx context.Context, attemptID string) error {
	cacheCtx, cancel := s.cacheContext(ctx)
	defer cancel()

	if err := s.cache.Del(cacheCtx, bufferKey(attemptID)); err != nil {
		s.metrics.CacheError("del")
		return unavailable("answer buffer", err)
	}
	if err := s.cache.SRem(cacheCtx, pendingWritesKey, attemptID); err != nil {
		s.metrics.CacheError("srem")
		return unavailable("pending writes index", err)
	}
	return nil
}

// ProcessPendingWrites merges every pending buffer into its durable attempt.
// A failure on one attempt is logged and leaves its index entry for the next
// pass; only an unreachable index fails the call.
func (s *Service) ProcessPendingWrites(ctx context.Context) (DrainReport, error) {
	cacheCtx, cancel := s.cacheContext(ctx)
	pending, err := s.cache.SMembers(cacheCtx, pendingWritesKey)
	cancel()
	if err != nil {
		s.metrics.CacheError("smembers")
		return DrainReport{}, unavailable("pending writes index", err)
	}

	report := DrainReport{Pending: len(pending)}
	for _, attemptID := range pending {
		flushed, err := s.flushAttempt(ctx, attemptID)
		switch {
		case err != nil:
			report.Failed++
			s.metrics.Flush("failed")
			s.log.Error("flush answer buffer", slog.String("attempt_id", attemptID), slog.Any("error", err))
		case flushed:
			report.Flushed++
			s.metrics.Flush("flushed")
		default:
			report.Skipped++
			s.metrics.Flush("skipped")
		}
	}

	if report.Pending > 0 {
		s.log.Debug("drained pending writes",
			slog.Int("pending", report.Pending),
			slog.Int("flushed", report.Flushed),
			slog.Int("skipped", report.Skipped),
			slog.Int("failed", report.Failed),
		)
	}
	return report, nil
}

// flushAttempt reports whether a durable write happened.
func (s *Service) flushAttempt(ctx context.Context, attemptID string) (bool, error) {
	buffered, raw, found, err := s.readBuffer(ctx, attemptID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, s.dropBuffer(ctx, attemptID)
	}

	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if errors.Is(err, ErrNotFound) || (err == nil && attempt.Completed) {
		return false, s.dropBuffer(ctx, attemptID)
	}
	if err != nil {
		return false, internal("load attempt", err)
	}

	if len(buffered) == 0 {
		return false, s.clearBuffer(ctx, attemptID, raw)
	}

	attempt.Answers = MergeAnswers(attempt.Answers, buffered)
	attempt.applyScore(CalculateScore(attempt.Answers))
	if err := s.attempts.UpdateAttempt(ctx, attempt); err != nil {
		if errors.Is(err, ErrAttemptCompleted) {
			return false, s.dropBuffer(ctx, attemptID)
		}
		return false, internal("flush attempt answers", err)
	}

	return true, s.clearBuffer(ctx, attemptID, raw)
}
