package quiz

import (
	"context"
	"errors"
	"sync"
	"time"

	"timed-quiz/internal/jobs"
)

type fakeCatalog struct {
	mu        sync.Mutex
	quizzes   map[string]Quiz
	questions map[string]Question

	incrementCalls int
	releaseCalls   int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		quizzes:   make(map[string]Quiz),
		questions: make(map[string]Question),
	}
}

func (f *fakeCatalog) add(item Quiz, questions ...Question) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, question := range questions {
		question.QuizID = item.QuizID
		f.questions[question.QuestionID] = question
		item.QuestionIDs = append(item.QuestionIDs, question.QuestionID)
	}
	f.quizzes[item.QuizID] = item
}

func (f *fakeCatalog) GetQuiz(_ context.Context, quizID string) (Quiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.quizzes[quizID]
	if !ok {
		return Quiz{}, ErrQuizNotFound
	}
	item.UserAttempts = append([]UserAttempts(nil), item.UserAttempts...)
	return item, nil
}

func (f *fakeCatalog) GetQuestion(_ context.Context, questionID string) (Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	question, ok := f.questions[questionID]
	if !ok {
		return Question{}, ErrQuestionNotFound
	}
	return question, nil
}

func (f *fakeCatalog) GetQuestions(_ context.Context, questionIDs []string) ([]Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Question, 0, len(questionIDs))
	for _, id := range questionIDs {
		if question, ok := f.questions[id]; ok {
			out = append(out, question)
		}
	}
	return out, nil
}

func (f *fakeCatalog) IncrementUserAttempt(_ context.Context, quizID, userID string, maxAttempts int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incrementCalls++

	item, ok := f.quizzes[quizID]
	if !ok {
		return 0, ErrQuizNotFound
	}
	for idx := range item.UserAttempts {
		if item.UserAttempts[idx].UserID != userID {
			continue
		}
		if maxAttempts > 0 && item.UserAttempts[idx].Count >= maxAttempts {
			return 0, ErrMaxAttempts
		}
		item.UserAttempts[idx].Count++
		f.quizzes[quizID] = item
		return item.UserAttempts[idx].Count, nil
	}
	item.UserAttempts = append(item.UserAttempts, UserAttempts{UserID: userID, Count: 1})
	f.quizzes[quizID] = item
	return 1, nil
}

func (f *fakeCatalog) ReleaseUserAttempt(_ context.Context, quizID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls++

	item := f.quizzes[quizID]
	for idx := range item.UserAttempts {
		if item.UserAttempts[idx].UserID == userID && item.UserAttempts[idx].Count > 0 {
			item.UserAttempts[idx].Count--
		}
	}
	f.quizzes[quizID] = item
	return nil
}

type fakeAttempts struct {
	mu       sync.Mutex
	attempts map[string]Attempt
	order    []string

	updateCalls int
	updateErr   error
	// updateErrFor fails updates of single attempts.
	updateErrFor map[string]error
	countCalls   int
	// afterCount runs outside the lock once a count has been taken.
	afterCount func()
	// beforeUpdate runs outside the lock just before an update is applied.
	beforeUpdate func(Attempt)
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{attempts: make(map[string]Attempt)}
}

func cloneAttempt(attempt Attempt) Attempt {
	attempt.Answers = append([]Answer(nil), attempt.Answers...)
	return attempt
}

func (f *fakeAttempts) CreateAttempt(_ context.Context, attempt Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.attempts {
		if existing.UserID == attempt.UserID && existing.QuizID == attempt.QuizID && !existing.Completed {
			return ErrAttemptInProgress
		}
	}
	f.attempts[attempt.AttemptID] = cloneAttempt(attempt)
	f.order = append(f.order, attempt.AttemptID)
	return nil
}

func (f *fakeAttempts) GetAttempt(_ context.Context, attemptID string) (Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	attempt, ok := f.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	return cloneAttempt(attempt), nil
}

func (f *fakeAttempts) FindOpenAttempt(_ context.Context, userID, quizID string) (Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, attempt := range f.attempts {
		if attempt.UserID == userID && attempt.QuizID == quizID && !attempt.Completed {
			return cloneAttempt(attempt), nil
		}
	}
	return Attempt{}, ErrAttemptNotFound
}

func (f *fakeAttempts) UpdateAttempt(_ context.Context, attempt Attempt) error {
	if f.beforeUpdate != nil {
		f.beforeUpdate(attempt)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++

	if f.updateErr != nil {
		return f.updateErr
	}
	if err := f.updateErrFor[attempt.AttemptID]; err != nil {
		return err
	}
	stored, ok := f.attempts[attempt.AttemptID]
	if !ok {
		return ErrAttemptNotFound
	}
	if stored.Completed {
		return ErrAttemptCompleted
	}
	f.attempts[attempt.AttemptID] = cloneAttempt(attempt)
	return nil
}

func (f *fakeAttempts) ListOverdueAttempts(_ context.Context, now time.Time) ([]Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Attempt, 0)
	for _, id := range f.order {
		attempt := f.attempts[id]
		if !attempt.Completed && !attempt.ExpectedEndTime.After(now) {
			out = append(out, cloneAttempt(attempt))
		}
	}
	return out, nil
}

func (f *fakeAttempts) CountOpenAttempts(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f.mu.Lock()
	f.countCalls++
	open := 0
	for _, attempt := range f.attempts {
		if !attempt.Completed {
			open++
		}
	}
	hook := f.afterCount
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return open, nil
}

func (f *fakeAttempts) counted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countCalls
}

func (f *fakeAttempts) ListUserAttempts(_ context.Context, userID, quizID string) ([]Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Attempt, 0)
	for idx := len(f.order) - 1; idx >= 0; idx-- {
		attempt := f.attempts[f.order[idx]]
		if attempt.UserID == userID && attempt.QuizID == quizID {
			out = append(out, cloneAttempt(attempt))
		}
	}
	return out, nil
}

type scheduledTask struct {
	task  jobs.Task
	runAt time.Time
}

type fakeJobs struct {
	mu    sync.Mutex
	tasks []scheduledTask
	err   error
}

func (f *fakeJobs) Enqueue(_ context.Context, task jobs.Task, runAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, scheduledTask{task: task, runAt: runAt})
	return nil
}

type fakeSweep struct {
	mu         sync.Mutex
	running    bool
	startCalls int
	stopCalls  int
	task       func(ctx context.Context)
}

func (f *fakeSweep) Start(task func(ctx context.Context)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.startCalls++
	if f.running {
		return false
	}
	f.running = true
	f.task = task
	return true
}

func (f *fakeSweep) Stop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopCalls++
	if !f.running {
		return false
	}
	f.running = false
	return true
}

func (f *fakeSweep) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// brokenCache fails every call, standing in for an unreachable cache.
type brokenCache struct{}

var errCacheDown = errors.New("dial tcp: connection refused")

func (brokenCache) Get(context.Context, string) (string, bool, error) { return "", false, errCacheDown }
func (brokenCache) SetEX(context.Context, string, string, time.Duration) error {
	return errCacheDown
}
func (brokenCache) Del(context.Context, ...string) error { return errCacheDown }
func (brokenCache) CompareAndDelete(context.Context, string, string) (bool, error) {
	return false, errCacheDown
}
func (brokenCache) SAdd(context.Context, string, ...string) error       { return errCacheDown }
func (brokenCache) SRem(context.Context, string, ...string) error       { return errCacheDown }
func (brokenCache) SMembers(context.Context, string) ([]string, error) { return nil, errCacheDown }

// hookCache runs beforeGet once, ahead of the next Get.
type hookCache struct {
	FastCache

	mu        sync.Mutex
	beforeGet func()
}

func (c *hookCache) onNextGet(hook func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.beforeGet = hook
}

func (c *hookCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	hook := c.beforeGet
	c.beforeGet = nil
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
	return c.FastCache.Get(ctx, key)
}

// failingGetCache fails reads only.
type failingGetCache struct {
	FastCache
}

func (failingGetCache) Get(context.Context, string) (string, bool, error) {
	return "", false, errCacheDown
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
