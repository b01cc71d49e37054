// Package sweep owns the periodic safety-net task that finalizes overdue
// attempts whose deadline job was lost.
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultInterval = 3 * time.Minute

// Runner is a single periodic task that can be started and stopped from any
// goroutine, including from inside the task itself.
type Runner struct {
	interval time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(interval time.Duration, log *slog.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{interval: interval, log: log}
}

// Start launches task on the runner's interval. It returns false when the
// runner was already running.
func (r *Runner) Start(task func(ctx context.Context)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done

	go r.loop(ctx, done, task)
	r.log.Info("sweep started", slog.Duration("interval", r.interval))
	return true
}

// Stop cancels the running task without waiting for an in-flight tick. It
// returns false when nothing was running.
func (r *Runner) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	r.done = nil
	r.log.Info("sweep stopped")
	return true
}

func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Wait blocks until the loop started by the most recent Start exits, or ctx
// ends. It is meant for shutdown after Stop.
func (r *Runner) Wait(ctx context.Context, done <-chan struct{}) error {
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns the completion channel of the current loop, or nil.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *Runner) loop(ctx context.Context, done chan struct{}, task func(ctx context.Context)) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			task(ctx)
		}
	}
}
