package quiz

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// QuestionView is a question as shown inside an attempt. Correct options are
// revealed only once the attempt is completed.
type QuestionView struct {
	QuestionID       string   `json:"question_id"`
	Text             string   `json:"text"`
	Options          []Option `json:"options"`
	CorrectMarks     float64  `json:"correct_marks"`
	IncorrectMarks   float64  `json:"incorrect_marks"`
	Answer           *Answer  `json:"answer,omitempty"`
	CorrectOptionIDs []string `json:"correct_option_ids,omitempty"`
}

type AttemptView struct {
	Attempt
	RemainingSeconds int            `json:"remaining_seconds"`
	Questions        []QuestionView `json:"questions"`
}

type HistorySummary struct {
	TotalAttempts     int     `json:"total_attempts"`
	CompletedAttempts int     `json:"completed_attempts"`
	MaxAttempts       int     `json:"max_attempts"`
	RemainingAttempts int     `json:"remaining_attempts"`
	TotalMarks        float64 `json:"total_marks"`
	BestScore         float64 `json:"best_score"`
	AverageScore      float64 `json:"average_score"`
}

type History struct {
	QuizID   string         `json:"quiz_id"`
	UserID   string         `json:"user_id"`
	Summary  HistorySummary `json:"summary"`
	Attempts []Attempt      `json:"attempts"`
}

// CheckOwner fails with Forbidden unless attemptID was started by userID.
func (s *Service) CheckOwner(ctx context.Context, attemptID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt.UserID != strings.TrimSpace(userID) {
		return forbidden("attempt belongs to another user", nil)
	}
	return nil
}

// GetAttempt returns the attempt with its quiz's questions resolved. While
// the attempt is open, buffered answers are overlaid on a best-effort basis.
func (s *Service) GetAttempt(ctx context.Context, attemptID string) (AttemptView, error) {
	attempt, err := s.loadAttempt(ctx, attemptID)
	if err != nil {
		return AttemptView{}, err
	}

	if !attempt.Completed {
		buffered, _, _, err := s.readBuffer(ctx, attemptID)
		if err != nil {
			s.log.Warn("read answer buffer for view", slog.String("attempt_id", attemptID), slog.Any("error", err))
		}
		attempt.Answers = MergeAnswers(attempt.Answers, buffered)
		attempt.applyScore(CalculateScore(attempt.Answers))
	}

	quiz, err := s.catalog.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return AttemptView{}, internal("load quiz", err)
	}

	questionIDs := append([]string(nil), quiz.QuestionIDs...)
	listed := make(map[string]struct{}, len(questionIDs))
	for _, id := range questionIDs {
		listed[id] = struct{}{}
	}
	for _, answer := range attempt.Answers {
		if _, ok := listed[answer.QuestionID]; !ok {
			questionIDs = append(questionIDs, answer.QuestionID)
		}
	}

	questions, err := s.catalog.GetQuestions(ctx, questionIDs)
	if err != nil {
		return AttemptView{}, internal("load questions", err)
	}

	answers := make(map[string]Answer, len(attempt.Answers))
	for _, answer := range attempt.Answers {
		answers[answer.QuestionID] = answer
	}

	view := AttemptView{Attempt: attempt, Questions: make([]QuestionView, 0, len(questions))}
	if !attempt.Completed {
		if remaining := attempt.ExpectedEndTime.Sub(s.now()); remaining > 0 {
			view.RemainingSeconds = int(remaining / time.Second)
		}
	}
	for _, question := range questions {
		item := QuestionView{
			QuestionID:     question.QuestionID,
			Text:           question.Text,
			Options:        question.Options,
			CorrectMarks:   question.CorrectMarks,
			IncorrectMarks: question.IncorrectMarks,
		}
		if answer, ok := answers[question.QuestionID]; ok {
			item.Answer = &answer
		}
		if attempt.Completed {
			item.CorrectOptionIDs = question.CorrectOptionIDs()
		}
		view.Questions = append(view.Questions, item)
	}
	return view, nil
}

// GetHistory aggregates the user's durable attempts at a quiz. It never
// reads the cache.
func (s *Service) GetHistory(ctx context.Context, userID, quizID string) (History, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return History{}, ErrInvalidUserID
	}

	quiz, err := s.catalog.GetQuiz(ctx, strings.TrimSpace(quizID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return History{}, err
		}
		return History{}, internal("load quiz", err)
	}

	attempts, err := s.attempts.ListUserAttempts(ctx, userID, quiz.QuizID)
	if err != nil {
		return History{}, internal("list attempts", err)
	}

	summary := HistorySummary{
		TotalAttempts: len(attempts),
		MaxAttempts:   quiz.MaxAttempts,
		TotalMarks:    quiz.TotalMarks,
	}
	if quiz.MaxAttempts > 0 {
		summary.RemainingAttempts = max(quiz.MaxAttempts-quiz.AttemptsBy(userID), 0)
	}

	total := 0.0
	for _, attempt := range attempts {
		if !attempt.Completed {
			continue
		}
		if summary.CompletedAttempts == 0 || attempt.Score > summary.BestScore {
			summary.BestScore = attempt.Score
		}
		summary.CompletedAttempts++
		total += attempt.Score
	}
	if summary.CompletedAttempts > 0 {
		summary.AverageScore = total / float64(summary.CompletedAttempts)
	}

	if attempts == nil {
		attempts = []Attempt{}
	}
	return History{
		QuizID:   quiz.QuizID,
		UserID:   userID,
		Summary:  summary,
		Attempts: attempts,
	}, nil
}
