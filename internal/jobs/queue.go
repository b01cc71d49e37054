// Package jobs is a Redis-backed delayed task queue. Tasks live in a sorted
// set scored by their run-at time; a worker claims due tasks with ZREM so
// each delivery runs in exactly one process.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKey = "jobs:delayed"

	TypeAttemptDeadline = "attempt.deadline"
)

// Task is a typed unit of deferred work.
type Task struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	AttemptID  string    `json:"attempt_id"`
	Tries      int       `json:"tries"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DeadlineTask builds the task that finalizes attemptID once it fires.
func DeadlineTask(attemptID string) Task {
	return Task{Type: TypeAttemptDeadline, AttemptID: attemptID}
}

type Queue struct {
	rdb redis.UniversalClient
	key string
}

func NewQueue(rdb redis.UniversalClient, key string) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{rdb: rdb, key: key}
}

func (q *Queue) Enqueue(ctx context.Context, task Task, runAt time.Time) error {
	if task.Type == "" {
		return fmt.Errorf("enqueue task: type is required")
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}

	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}

	return q.rdb.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(runAt.UnixMilli()),
		Member: string(body),
	}).Err()
}

// due lists up to limit raw members whose run-at is not after now.
func (q *Queue) due(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	return q.rdb.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: limit,
	}).Result()
}

// claim removes member and reports whether this caller was the one to do so.
func (q *Queue) claim(ctx context.Context, member string) (bool, error) {
	removed, err := q.rdb.ZRem(ctx, q.key, member).Result()
	if err != nil {
		return false, err
	}
	return removed == 1, nil
}

// Len reports how many tasks are waiting, due or not.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, q.key).Result()
}
