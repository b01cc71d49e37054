package sweep

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunnerStartIsIdempotent(t *testing.T) {
	runner := NewRunner(time.Hour, nil)
	noop := func(context.Context) {}

	require.True(t, runner.Start(noop))
	require.False(t, runner.Start(noop))
	require.True(t, runner.Running())

	require.True(t, runner.Stop())
	require.False(t, runner.Stop())
	require.False(t, runner.Running())
}

func TestRunnerTicksUntilStopped(t *testing.T) {
	runner := NewRunner(5*time.Millisecond, nil)
	var ticks atomic.Int32

	require.True(t, runner.Start(func(context.Context) { ticks.Add(1) }))
	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)

	done := runner.Done()
	require.True(t, runner.Stop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, runner.Wait(ctx, done))
}

func TestRunnerCanStopFromInsideTask(t *testing.T) {
	runner := NewRunner(5*time.Millisecond, nil)
	stopped := make(chan bool, 1)

	require.True(t, runner.Start(func(context.Context) {
		select {
		case stopped <- runner.Stop():
		default:
		}
	}))

	select {
	case ok := <-stopped:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	require.False(t, runner.Running())

	// A stopped runner can be started again.
	require.True(t, runner.Start(func(context.Context) {}))
	require.True(t, runner.Stop())
}
