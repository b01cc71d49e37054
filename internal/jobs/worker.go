package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const (
	defaultPollInterval   = time.Second
	defaultBaseBackoff    = 2 * time.Second
	defaultMaxAttempts    = 3
	defaultBatchSize      = 50
	defaultHandlerTimeout = 30 * time.Second
)

type Handler func(ctx context.Context, task Task) error

type WorkerConfig struct {
	PollInterval   time.Duration
	BaseBackoff    time.Duration
	MaxAttempts    int
	BatchSize      int
	HandlerTimeout time.Duration
}

// Worker polls a Queue and dispatches due tasks to handlers by type. A failed
// task is re-enqueued with exponential backoff until MaxAttempts executions
// have failed, then dropped.
type Worker struct {
	queue    *Queue
	cfg      WorkerConfig
	handlers map[string]Handler
	log      *slog.Logger
	now      func() time.Time
}

func NewWorker(queue *Queue, cfg WorkerConfig, log *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = defaultHandlerTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		queue:    queue,
		cfg:      cfg,
		handlers: make(map[string]Handler),
		log:      log,
		now:      time.Now,
	}
}

func (w *Worker) Handle(taskType string, handler Handler) {
	w.handlers[taskType] = handler
}

// Backoff returns the delay before the retry that follows the given number of
// failed executions.
func (w *Worker) Backoff(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	return w.cfg.BaseBackoff << (failures - 1)
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.log.Info("job worker started", slog.Duration("poll_interval", w.cfg.PollInterval))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("job worker stopped")
			return
		case <-ticker.C:
			if _, err := w.Poll(ctx); err != nil && ctx.Err() == nil {
				w.log.Error("poll job queue", slog.Any("error", err))
			}
		}
	}
}

// Poll runs every task that is due now and returns how many it claimed.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	members, err := w.queue.due(ctx, w.now(), int64(w.cfg.BatchSize))
	if err != nil {
		return 0, err
	}

	claimed := 0
	for _, member := range members {
		owned, err := w.queue.claim(ctx, member)
		if err != nil {
			return claimed, err
		}
		if !owned {
			continue
		}
		claimed++
		w.process(ctx, member)
	}
	return claimed, nil
}

func (w *Worker) process(ctx context.Context, member string) {
	var task Task
	if err := json.Unmarshal([]byte(member), &task); err != nil {
		w.log.Error("drop undecodable task", slog.Any("error", err))
		return
	}

	logger := w.log.With(
		slog.String("task_id", task.ID),
		slog.String("task_type", task.Type),
		slog.String("attempt_id", task.AttemptID),
	)

	handler, ok := w.handlers[task.Type]
	if !ok {
		logger.Error("drop task without handler")
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, w.cfg.HandlerTimeout)
	err := handler(runCtx, task)
	cancel()
	if err == nil {
		return
	}

	task.Tries++
	if task.Tries >= w.cfg.MaxAttempts {
		logger.Error("task exhausted retries", slog.Int("tries", task.Tries), slog.Any("error", err))
		return
	}

	delay := w.Backoff(task.Tries)
	logger.Warn("task failed, retrying", slog.Int("tries", task.Tries), slog.Duration("backoff", delay), slog.Any("error", err))
	if err := w.queue.Enqueue(ctx, task, w.now().Add(delay)); err != nil {
		logger.Error("re-enqueue task", slog.Any("error", err))
	}
}
