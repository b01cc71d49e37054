package quiz

import (
	"context"
	"errors"
	"log/slog"

	"timed-quiz/internal/events"
)

type SubmitResult struct {
	AttemptID  string       `json:"attempt_id"`
	QuestionID string       `json:"question_id"`
	Updated    bool         `json:"updated"`
	IsCorrect  bool         `json:"is_correct"`
	Marks      float64      `json:"marks"`
	Running    ScoreSummary `json:"running_score"`
	TotalMarks float64      `json:"total_marks"`
}

// SubmitAnswer grades one answer and stores it in the attempt's cache buffer.
// Nothing is written to the durable store unless the deadline has passed, in
// which case the attempt is finalized and ErrTimeExpired is returned.
func (s *Service) SubmitAnswer(ctx context.Context, attemptID, questionID string, selected []string) (SubmitResult, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return SubmitResult{}, err
	}

	question, err := s.catalog.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return SubmitResult{}, err
		}
		return SubmitResult{}, internal("load question", err)
	}
	if question.QuizID != attempt.QuizID {
		return SubmitResult{}, ErrQuestionNotFound
	}

	if attempt.Completed {
		return SubmitResult{}, ErrAttemptCompleted
	}

	now := s.now().UTC()
	if now.After(attempt.ExpectedEndTime) {
		if _, err := s.finalize(ctx, attempt.AttemptID, StatusAutoSubmitted, true); err != nil {
			s.log.Error("finalize expired attempt", slog.String("attempt_id", attempt.AttemptID), slog.Any("error", err))
		}
		return SubmitResult{}, ErrTimeExpired
	}

	isCorrect, marks := EvaluateAnswer(question, selected)
	answer := Answer{
		QuestionID:        question.QuestionID,
		SelectedOptionIDs: uniqueIDs(selected),
		IsCorrect:         isCorrect,
		Marks:             marks,
		AnsweredAt:        now,
	}

	buffered, _, _, err := s.readBuffer(ctx, attempt.AttemptID)
	if err != nil {
		return SubmitResult{}, err
	}
	buffered, replaced := upsertAnswer(buffered, answer)

	if err := s.writeBuffer(ctx, attempt.AttemptID, buffered, now); err != nil {
		return SubmitResult{}, err
	}
	if err := s.markPending(ctx, attempt.AttemptID); err != nil {
		return SubmitResult{}, err
	}

	if !replaced {
		for _, existing := range attempt.Answers {
			if existing.QuestionID == answer.QuestionID {
				replaced = true
				break
			}
		}
	}

	s.metrics.AnswerSubmitted(isCorrect)
	s.publish(ctx, events.AttemptAnswered, attempt)

	return SubmitResult{
		AttemptID:  attempt.AttemptID,
		QuestionID: answer.QuestionID,
		Updated:    replaced,
		IsCorrect:  isCorrect,
		Marks:      marks,
		Running:    CalculateScore(MergeAnswers(attempt.Answers, buffered)),
		TotalMarks: attempt.TotalMarks,
	}, nil
}

func (s *Service) loadAttempt(ctx context.Context, attemptID string) (Attempt, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Attempt{}, err
		}
		return Attempt{}, internal("load attempt", err)
	}
	return attempt, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
