package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()

	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewQueue(rdb, "")
}

func newTestWorker(queue *Queue, now time.Time) *Worker {
	worker := NewWorker(queue, WorkerConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	worker.now = func() time.Time { return now }
	return worker
}

func TestWorkerRunsOnlyDueTasks(t *testing.T) {
	ctx := context.Background()
	queue := newTestQueue(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, queue.Enqueue(ctx, DeadlineTask("due"), now.Add(-time.Second)))
	require.NoError(t, queue.Enqueue(ctx, DeadlineTask("later"), now.Add(time.Minute)))

	var seen []string
	worker := newTestWorker(queue, now)
	worker.Handle(TypeAttemptDeadline, func(_ context.Context, task Task) error {
		seen = append(seen, task.AttemptID)
		return nil
	})

	claimed, err := worker.Poll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, claimed)
	require.Equal(t, []string{"due"}, seen)

	remaining, err := queue.Len(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, remaining)
}

func TestWorkerRetriesWithBackoffThenDrops(t *testing.T) {
	ctx := context.Background()
	queue := newTestQueue(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, queue.Enqueue(ctx, DeadlineTask("a1"), now))

	calls := 0
	worker := newTestWorker(queue, now)
	worker.Handle(TypeAttemptDeadline, func(context.Context, Task) error {
		calls++
		return errors.New("store down")
	})

	_, err := worker.Poll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	// Not due again until the first backoff has elapsed.
	worker.now = func() time.Time { return now.Add(time.Second) }
	claimed, err := worker.Poll(ctx)
	require.NoError(t, err)
	require.Zero(t, claimed)

	worker.now = func() time.Time { return now.Add(2 * time.Second) }
	_, err = worker.Poll(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	worker.now = func() time.Time { return now.Add(2*time.Second + 4*time.Second) }
	_, err = worker.Poll(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	remaining, err := queue.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, remaining, "task should be dropped after the third failure")
}

func TestWorkerBackoffDoubles(t *testing.T) {
	worker := NewWorker(nil, WorkerConfig{BaseBackoff: 2 * time.Second}, nil)
	require.Equal(t, 2*time.Second, worker.Backoff(1))
	require.Equal(t, 4*time.Second, worker.Backoff(2))
	require.Equal(t, 8*time.Second, worker.Backoff(3))
}

func TestWorkerDropsTaskWithoutHandler(t *testing.T) {
	ctx := context.Background()
	queue := newTestQueue(t)
	now := time.Now()

	require.NoError(t, queue.Enqueue(ctx, Task{Type: "unknown"}, now))

	claimed, err := newTestWorker(queue, now).Poll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, claimed)

	remaining, err := queue.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, remaining)
}
