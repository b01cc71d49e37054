package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"timed-quiz/internal/quiz"
)

const attemptColumns = `attempt_id, user_id, quiz_id, attempt_number, start_time_unix, expected_end_unix, end_time_unix,
	total_marks, score, correct_count, incorrect_count, completed, auto_submitted, status`

// CreateAttempt inserts an in-progress attempt. The partial unique index on
// open attempts turns a concurrent second start into ErrAttemptInProgress.
func (s *SQLiteStore) CreateAttempt(ctx context.Context, attempt quiz.Attempt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO attempts (`+attemptColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.AttemptID,
		attempt.UserID,
		attempt.QuizID,
		attempt.AttemptNumber,
		unixNano(attempt.StartTime),
		unixNano(attempt.ExpectedEndTime),
		nullableUnix(attempt.EndTime),
		attempt.TotalMarks,
		attempt.Score,
		attempt.CorrectCount,
		attempt.IncorrectCount,
		boolInt(attempt.Completed),
		boolInt(attempt.AutoSubmitted),
		string(attempt.Status),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return quiz.ErrAttemptInProgress
		}
		return err
	}

	if err := insertAnswers(ctx, tx, attempt.AttemptID, attempt.Answers); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetAttempt(ctx context.Context, attemptID string) (quiz.Attempt, error) {
	attempt, err := scanAttempt(s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE attempt_id = ?`, attemptID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Attempt{}, quiz.ErrAttemptNotFound
		}
		return quiz.Attempt{}, err
	}

	if attempt.Answers, err = loadAnswers(ctx, s.db, attemptID); err != nil {
		return quiz.Attempt{}, err
	}
	return attempt, nil
}

func (s *SQLiteStore) FindOpenAttempt(ctx context.Context, userID, quizID string) (quiz.Attempt, error) {
	var attemptID string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT attempt_id FROM attempts WHERE user_id = ? AND quiz_id = ? AND completed = 0 LIMIT 1`,
		userID,
		quizID,
	).Scan(&attemptID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Attempt{}, quiz.ErrAttemptNotFound
		}
		return quiz.Attempt{}, err
	}
	return s.GetAttempt(ctx, attemptID)
}

// UpdateAttempt writes scores, completion state and the full answer set in
// one transaction, and only while the stored attempt is still open.
func (s *SQLiteStore) UpdateAttempt(ctx context.Context, attempt quiz.Attempt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(
		ctx,
		`UPDATE attempts SET
			score = ?, correct_count = ?, incorrect_count = ?,
			completed = ?, auto_submitted = ?, status = ?, end_time_unix = ?
		 WHERE attempt_id = ? AND completed = 0`,
		attempt.Score,
		attempt.CorrectCount,
		attempt.IncorrectCount,
		boolInt(attempt.Completed),
		boolInt(attempt.AutoSubmitted),
		string(attempt.Status),
		nullableUnix(attempt.EndTime),
		attempt.AttemptID,
	)
	if err != nil {
		return err
	}

	changed, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if changed == 0 {
		var found int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM attempts WHERE attempt_id = ?`, attempt.AttemptID).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.ErrAttemptNotFound
		}
		if err != nil {
			return err
		}
		return quiz.ErrAttemptCompleted
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM attempt_answers WHERE attempt_id = ?`, attempt.AttemptID); err != nil {
		return err
	}
	if err := insertAnswers(ctx, tx, attempt.AttemptID, attempt.Answers); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListOverdueAttempts(ctx context.Context, now time.Time) ([]quiz.Attempt, error) {
	return s.listAttempts(
		ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE completed = 0 AND expected_end_unix <= ?
		 ORDER BY expected_end_unix ASC`,
		unixNano(now),
	)
}

func (s *SQLiteStore) CountOpenAttempts(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts WHERE completed = 0`).Scan(&count)
	return count, err
}

func (s *SQLiteStore) ListUserAttempts(ctx context.Context, userID, quizID string) ([]quiz.Attempt, error) {
	return s.listAttempts(
		ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE user_id = ? AND quiz_id = ?
		 ORDER BY attempt_number DESC, start_time_unix DESC`,
		userID,
		quizID,
	)
}

// listAttempts reads the attempt rows fully before loading answers, since the
// store holds a single connection.
func (s *SQLiteStore) listAttempts(ctx context.Context, query string, args ...any) ([]quiz.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	attempts := make([]quiz.Attempt, 0)
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for idx := range attempts {
		if attempts[idx].Answers, err = loadAnswers(ctx, s.db, attempts[idx].AttemptID); err != nil {
			return nil, err
		}
	}
	return attempts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (quiz.Attempt, error) {
	var (
		attempt       quiz.Attempt
		startUnix     int64
		expectedUnix  int64
		endUnix       sql.NullInt64
		completed     int
		autoSubmitted int
		status        string
	)
	err := row.Scan(
		&attempt.AttemptID,
		&attempt.UserID,
		&attempt.QuizID,
		&attempt.AttemptNumber,
		&startUnix,
		&expectedUnix,
		&endUnix,
		&attempt.TotalMarks,
		&attempt.Score,
		&attempt.CorrectCount,
		&attempt.IncorrectCount,
		&completed,
		&autoSubmitted,
		&status,
	)
	if err != nil {
		return quiz.Attempt{}, err
	}

	attempt.StartTime = fromUnixNano(startUnix)
	attempt.ExpectedEndTime = fromUnixNano(expectedUnix)
	if endUnix.Valid {
		end := fromUnixNano(endUnix.Int64)
		attempt.EndTime = &end
	}
	attempt.Completed = completed == 1
	attempt.AutoSubmitted = autoSubmitted == 1
	attempt.Status = quiz.AttemptStatus(status)
	return attempt, nil
}

func loadAnswers(ctx context.Context, q querier, attemptID string) ([]quiz.Answer, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT question_id, selected_json, is_correct, marks, answered_at_unix
		 FROM attempt_answers WHERE attempt_id = ? ORDER BY position ASC`,
		attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make([]quiz.Answer, 0)
	for rows.Next() {
		var (
			answer       quiz.Answer
			selectedJSON string
			isCorrect    int
			answeredUnix int64
		)
		if err := rows.Scan(&answer.QuestionID, &selectedJSON, &isCorrect, &answer.Marks, &answeredUnix); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(selectedJSON), &answer.SelectedOptionIDs); err != nil {
			return nil, err
		}
		answer.IsCorrect = isCorrect == 1
		answer.AnsweredAt = fromUnixNano(answeredUnix)
		answers = append(answers, answer)
	}
	return answers, rows.Err()
}

func insertAnswers(ctx context.Context, tx *sql.Tx, attemptID string, answers []quiz.Answer) error {
	for idx, answer := range answers {
		selected := answer.SelectedOptionIDs
		if selected == nil {
			selected = []string{}
		}
		selectedJSON, err := json.Marshal(selected)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO attempt_answers (attempt_id, question_id, position, selected_json, is_correct, marks, answered_at_unix)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			attemptID,
			answer.QuestionID,
			idx,
			string(selectedJSON),
			boolInt(answer.IsCorrect),
			answer.Marks,
			unixNano(answer.AnsweredAt),
		); err != nil {
			return err
		}
	}
	return nil
}
