package sqlite

import (
	"context"
)

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	// No FK constraints: quiz reseeding replaces catalog rows inside one
	// application transaction.
	statements := []string{
		`CREATE TABLE IF NOT EXISTS quizzes (
			quiz_id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			availability TEXT NOT NULL,
			starts_at_unix INTEGER,
			ends_at_unix INTEGER,
			duration_seconds INTEGER NOT NULL,
			max_attempts INTEGER NOT NULL,
			total_marks REAL NOT NULL,
			created_at_unix INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS questions (
			question_id TEXT PRIMARY KEY,
			quiz_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			prompt TEXT NOT NULL,
			options_json TEXT NOT NULL,
			correct_marks REAL NOT NULL,
			incorrect_marks REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS quiz_user_attempts (
			quiz_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			attempt_count INTEGER NOT NULL,
			PRIMARY KEY (quiz_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS attempts (
			attempt_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			quiz_id TEXT NOT NULL,
			attempt_number INTEGER NOT NULL,
			start_time_unix INTEGER NOT NULL,
			expected_end_unix INTEGER NOT NULL,
			end_time_unix INTEGER,
			total_marks REAL NOT NULL,
			score REAL NOT NULL DEFAULT 0,
			correct_count INTEGER NOT NULL DEFAULT 0,
			incorrect_count INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			auto_submitted INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS attempt_answers (
			attempt_id TEXT NOT NULL,
			question_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			selected_json TEXT NOT NULL,
			is_correct INTEGER NOT NULL,
			marks REAL NOT NULL,
			answered_at_unix INTEGER NOT NULL,
			PRIMARY KEY (attempt_id, question_id)
		);`,
		// At most one open attempt per user and quiz.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_open ON attempts(user_id, quiz_id) WHERE completed = 0;`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_deadline ON attempts(completed, expected_end_unix);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_user_quiz ON attempts(user_id, quiz_id, attempt_number);`,
		`CREATE INDEX IF NOT EXISTS idx_questions_quiz ON questions(quiz_id, position);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
