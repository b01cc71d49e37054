package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"timed-quiz/internal/quiz"
)

// storedOption keeps the correctness flag that quiz.Option hides from JSON.
type storedOption struct {
	OptionID  string `json:"option_id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// CreateQuiz replaces a quiz and its questions. Per-user attempt counters and
// attempts are kept.
func (s *SQLiteStore) CreateQuiz(ctx context.Context, item quiz.Quiz, questions []quiz.Question) error {
	if item.QuizID == "" {
		return errors.New("quiz id is required")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	var startsAt, endsAt sql.NullInt64
	if item.Window != nil {
		startsAt = nullableUnix(&item.Window.StartsAt)
		endsAt = nullableUnix(&item.Window.EndsAt)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE quiz_id = ?`, item.QuizID); err != nil {
		return err
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO quizzes
			(quiz_id, title, availability, starts_at_unix, ends_at_unix, duration_seconds, max_attempts, total_marks, created_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.QuizID,
		item.Title,
		item.Availability,
		startsAt,
		endsAt,
		int64(item.Duration/time.Second),
		item.MaxAttempts,
		item.TotalMarks,
		unixNano(item.CreatedAt),
	)
	if err != nil {
		return err
	}

	for idx, question := range questions {
		if question.QuestionID == "" {
			question.QuizID = item.QuizID
			question.QuestionID = quiz.MakeQuestionID(question)
		}

		options := make([]storedOption, len(question.Options))
		for optIdx, option := range question.Options {
			options[optIdx] = storedOption{OptionID: option.OptionID, Text: option.Text, IsCorrect: option.IsCorrect}
		}
		optionsJSON, err := json.Marshal(options)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO questions (question_id, quiz_id, position, prompt, options_json, correct_marks, incorrect_marks)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(question_id) DO UPDATE SET
				quiz_id = excluded.quiz_id,
				position = excluded.position,
				prompt = excluded.prompt,
				options_json = excluded.options_json,
				correct_marks = excluded.correct_marks,
				incorrect_marks = excluded.incorrect_marks`,
			question.QuestionID,
			item.QuizID,
			idx,
			question.Text,
			string(optionsJSON),
			question.CorrectMarks,
			question.IncorrectMarks,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetQuiz(ctx context.Context, quizID string) (quiz.Quiz, error) {
	var (
		item            quiz.Quiz
		startsAt        sql.NullInt64
		endsAt          sql.NullInt64
		durationSeconds int64
		createdAtUnix   int64
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT quiz_id, title, availability, starts_at_unix, ends_at_unix, duration_seconds, max_attempts, total_marks, created_at_unix
		 FROM quizzes WHERE quiz_id = ?`,
		quizID,
	).Scan(&item.QuizID, &item.Title, &item.Availability, &startsAt, &endsAt, &durationSeconds, &item.MaxAttempts, &item.TotalMarks, &createdAtUnix)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Quiz{}, quiz.ErrQuizNotFound
		}
		return quiz.Quiz{}, err
	}

	item.Duration = time.Duration(durationSeconds) * time.Second
	item.CreatedAt = fromUnixNano(createdAtUnix)
	if startsAt.Valid || endsAt.Valid {
		item.Window = &quiz.Window{}
		if startsAt.Valid {
			item.Window.StartsAt = fromUnixNano(startsAt.Int64)
		}
		if endsAt.Valid {
			item.Window.EndsAt = fromUnixNano(endsAt.Int64)
		}
	}

	if item.QuestionIDs, err = s.questionIDs(ctx, quizID); err != nil {
		return quiz.Quiz{}, err
	}
	if item.UserAttempts, err = s.userAttempts(ctx, quizID); err != nil {
		return quiz.Quiz{}, err
	}
	return item, nil
}

func (s *SQLiteStore) questionIDs(ctx context.Context, quizID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT question_id FROM questions WHERE quiz_id = ? ORDER BY position ASC`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) userAttempts(ctx context.Context, quizID string) ([]quiz.UserAttempts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, attempt_count FROM quiz_user_attempts WHERE quiz_id = ? ORDER BY user_id`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]quiz.UserAttempts, 0)
	for rows.Next() {
		var item quiz.UserAttempts
		if err := rows.Scan(&item.UserID, &item.Count); err != nil {
			return nil, err
		}
		counts = append(counts, item)
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) GetQuestion(ctx context.Context, questionID string) (quiz.Question, error) {
	questions, err := s.GetQuestions(ctx, []string{questionID})
	if err != nil {
		return quiz.Question{}, err
	}
	if len(questions) == 0 {
		return quiz.Question{}, quiz.ErrQuestionNotFound
	}
	return questions[0], nil
}

// GetQuestions returns the questions found, in the order their ids were given.
// Unknown ids are skipped.
func (s *SQLiteStore) GetQuestions(ctx context.Context, questionIDs []string) ([]quiz.Question, error) {
	if len(questionIDs) == 0 {
		return []quiz.Question{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(questionIDs)), ",")
	args := make([]any, len(questionIDs))
	for idx, id := range questionIDs {
		args[idx] = id
	}

	rows, err := s.db.QueryContext(
		ctx,
		fmt.Sprintf(`SELECT question_id, quiz_id, prompt, options_json, correct_marks, incorrect_marks
		 FROM questions WHERE question_id IN (%s)`, placeholders),
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]quiz.Question, len(questionIDs))
	for rows.Next() {
		var (
			question    quiz.Question
			optionsJSON string
		)
		if err := rows.Scan(&question.QuestionID, &question.QuizID, &question.Text, &optionsJSON, &question.CorrectMarks, &question.IncorrectMarks); err != nil {
			return nil, err
		}

		var options []storedOption
		if err := json.Unmarshal([]byte(optionsJSON), &options); err != nil {
			return nil, err
		}
		question.Options = make([]quiz.Option, len(options))
		for idx, option := range options {
			question.Options[idx] = quiz.Option{OptionID: option.OptionID, Text: option.Text, IsCorrect: option.IsCorrect}
		}
		byID[question.QuestionID] = question
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]quiz.Question, 0, len(byID))
	for _, id := range questionIDs {
		if question, ok := byID[id]; ok {
			ordered = append(ordered, question)
			delete(byID, id)
		}
	}
	return ordered, nil
}

// IncrementUserAttempt relies on the upsert's WHERE clause so the check and
// the increment are one statement.
func (s *SQLiteStore) IncrementUserAttempt(ctx context.Context, quizID, userID string, maxAttempts int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var found int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM quizzes WHERE quiz_id = ?`, quizID).Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, quiz.ErrQuizNotFound
		}
		return 0, err
	}

	result, err := tx.ExecContext(
		ctx,
		`INSERT INTO quiz_user_attempts (quiz_id, user_id, attempt_count) VALUES (?, ?, 1)
		 ON CONFLICT(quiz_id, user_id) DO UPDATE SET attempt_count = attempt_count + 1
		 WHERE ? <= 0 OR attempt_count < ?`,
		quizID,
		userID,
		maxAttempts,
		maxAttempts,
	)
	if err != nil {
		return 0, err
	}
	changed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if changed == 0 {
		return 0, quiz.ErrMaxAttempts
	}

	var count int
	if err := tx.QueryRowContext(
		ctx,
		`SELECT attempt_count FROM quiz_user_attempts WHERE quiz_id = ? AND user_id = ?`,
		quizID,
		userID,
	).Scan(&count); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SQLiteStore) ReleaseUserAttempt(ctx context.Context, quizID, userID string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE quiz_user_attempts SET attempt_count = attempt_count - 1
		 WHERE quiz_id = ? AND user_id = ? AND attempt_count > 0`,
		quizID,
		userID,
	)
	return err
}
