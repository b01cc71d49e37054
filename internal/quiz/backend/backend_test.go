package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"timed-quiz/internal/config"
	"timed-quiz/internal/quiz"
)

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, config.Config{StoreDriver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "quiz.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(ctx) })

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.CreateQuiz(ctx, quiz.Quiz{
		QuizID:       "quiz-1",
		Availability: quiz.AvailabilityActive,
		Duration:     5 * time.Minute,
	}, nil))

	item, err := store.GetQuiz(ctx, "quiz-1")
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, item.Duration)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.Config{StoreDriver: "postgres"})
	require.Error(t, err)
}
