package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type mockJobLocker struct {
	acquired   bool
	acquireErr error
	lastLockID string
	calls      int
	released   []string
}

func (m *mockJobLocker) Acquire(_ context.Context, lockID string, _ string, _ time.Duration) (bool, error) {
	m.calls++
	m.lastLockID = lockID
	return m.acquired, m.acquireErr
}

func (m *mockJobLocker) Release(_ context.Context, lockID string, _ string) error {
	m.released = append(m.released, lockID)
	return nil
}

type mockJobHistorian struct {
	startCalled  bool
	finishCalled bool
	lastJobType  string
	lastStatus   string
	lastItems    int
	returnID     int64
	startErr     error
}

func (m *mockJobHistorian) Start(_ context.Context, jobType string) (int64, error) {
	m.startCalled = true
	m.lastJobType = jobType
	return m.returnID, m.startErr
}

func (m *mockJobHistorian) Finish(_ context.Context, _ int64, status string, items int, _ error) error {
	m.finishCalled = true
	m.lastStatus = status
	m.lastItems = items
	return nil
}

type mockCelebrationTasks struct {
	lastTask   TaskType
	lastRef    time.Time
	lastDryRun bool
	items      int
	err        error
}

func (m *mockCelebrationTasks) Celebrate(_ context.Context, task TaskType, ref time.Time, dryRun bool) (int, error) {
	m.lastTask, m.lastRef, m.lastDryRun = task, ref, dryRun
	return m.items, m.err
}

type mockCleanupTasks struct {
	called        bool
	lastRetention time.Duration
	items         int
}

func (m *mockCleanupTasks) Cleanup(_ context.Context, _ time.Time, retention time.Duration) (int, error) {
	m.called = true
	m.lastRetention = retention
	return m.items, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type runnerFixture struct {
	lock    *mockJobLocker
	history *mockJobHistorian
	celebs  *mockCelebrationTasks
	cleanup *mockCleanupTasks
	runner  *Runner
}

func newRunnerFixture() *runnerFixture {
	f := &runnerFixture{
		lock:    &mockJobLocker{acquired: true},
		history: &mockJobHistorian{returnID: 42},
		celebs:  &mockCelebrationTasks{items: 3},
		cleanup: &mockCleanupTasks{items: 7},
	}
	f.runner = NewRunner(RunnerDeps{
		Celebrations: f.celebs,
		Cleanup:      f.cleanup,
		JobLock:      f.lock,
		JobHistory:   f.history,
		WorkerID:     "worker-1",
		Retention:    720 * time.Hour,
		Clock:        fixedClock{time.Date(2026, 7, 5, 9, 42, 0, 0, time.UTC)},
		Logger:       testLogger(),
	})
	return f
}

func TestRunner_CelebrationTask(t *testing.T) {
	f := newRunnerFixture()

	result, err := f.runner.Run(ctx(), Payload{Task: TaskCelebrateTimezone})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, "3 items") {
		t.Errorf("unexpected result %q", result)
	}
	if f.lock.lastLockID != "celebrate_timezone:2026-07-05T09" {
		t.Errorf("unexpected lock ID %q", f.lock.lastLockID)
	}
	if f.celebs.lastTask != TaskCelebrateTimezone {
		t.Errorf("expected timezone task, got %q", f.celebs.lastTask)
	}
	if !f.history.finishCalled || f.history.lastStatus != "success" || f.history.lastItems != 3 {
		t.Errorf("unexpected history: %+v", f.history)
	}
	if len(f.lock.released) != 0 {
		t.Error("a successful run keeps its lock for the hour")
	}
}

func TestRunner_ReferenceTimeOverride(t *testing.T) {
	f := newRunnerFixture()
	refTime := time.Date(2026, 2, 6, 3, 15, 0, 0, time.UTC)

	if _, err := f.runner.Run(ctx(), Payload{Task: TaskCelebrateDaily, ReferenceTime: &refTime}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.celebs.lastRef.Equal(refTime) {
		t.Errorf("expected reference time %v, got %v", refTime, f.celebs.lastRef)
	}
	if f.lock.lastLockID != "celebrate_daily:2026-02-06T03" {
		t.Errorf("unexpected lock ID %q", f.lock.lastLockID)
	}
}

func TestRunner_LockHeldSkips(t *testing.T) {
	f := newRunnerFixture()
	f.lock.acquired = false

	result, err := f.runner.Run(ctx(), Payload{Task: TaskCelebrateDaily})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(result, "skipped") {
		t.Errorf("expected skipped result, got %q", result)
	}
	if f.history.startCalled || f.celebs.lastTask != "" {
		t.Error("nothing should run without the lock")
	}
}

func TestRunner_LockError(t *testing.T) {
	f := newRunnerFixture()
	f.lock.acquireErr = errors.New("db down")

	if _, err := f.runner.Run(ctx(), Payload{Task: TaskCelebrateDaily}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunner_TaskFailureRecordsHistory(t *testing.T) {
	f := newRunnerFixture()
	f.celebs.err = errors.New("slack unavailable")
	f.celebs.items = 0

	_, err := f.runner.Run(ctx(), Payload{Task: TaskCelebrateMissed})
	if err == nil || !strings.Contains(err.Error(), "slack unavailable") {
		t.Fatalf("expected task failure, got %v", err)
	}
	if f.history.lastStatus != "failed" {
		t.Errorf("expected failed status, got %q", f.history.lastStatus)
	}
	if len(f.lock.released) != 1 || f.lock.released[0] != "celebrate_missed:2026-07-05T09" {
		t.Errorf("expected the lock to be released, got %v", f.lock.released)
	}
}

func TestRunner_HistoryStartFailureStillRuns(t *testing.T) {
	f := newRunnerFixture()
	f.history.startErr = errors.New("insert failed")

	if _, err := f.runner.Run(ctx(), Payload{Task: TaskCelebrateDaily}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.celebs.lastTask != TaskCelebrateDaily {
		t.Error("expected task to run")
	}
	if f.history.finishCalled {
		t.Error("Finish must be skipped when Start failed")
	}
}

func TestRunner_CleanupUsesRetention(t *testing.T) {
	f := newRunnerFixture()

	if _, err := f.runner.Run(ctx(), Payload{Task: TaskCleanupAnnouncements}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.cleanup.called || f.cleanup.lastRetention != 720*time.Hour {
		t.Errorf("unexpected cleanup call: %+v", f.cleanup)
	}
}

func TestRunner_DryRunSkipsLock(t *testing.T) {
	f := newRunnerFixture()

	result, err := f.runner.Run(ctx(), Payload{Task: TaskCelebrateDaily, DryRun: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.lock.calls != 0 || f.history.startCalled {
		t.Error("dry run must not take the lock or write history")
	}
	if !f.celebs.lastDryRun {
		t.Error("expected dry run to reach the service")
	}
	if !strings.HasPrefix(result, "dry run") {
		t.Errorf("unexpected result %q", result)
	}

	if _, err := f.runner.Run(ctx(), Payload{Task: TaskCleanupAnnouncements, DryRun: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.cleanup.called {
		t.Error("dry run must not purge")
	}
}

func TestRunner_InvalidTasks(t *testing.T) {
	f := newRunnerFixture()

	if _, err := f.runner.Run(ctx(), Payload{}); err == nil {
		t.Error("expected error for empty task")
	}
	if _, err := f.runner.Run(ctx(), Payload{Task: "unknown_task"}); err == nil {
		t.Error("expected error for unknown task")
	}
}

func TestParseTask(t *testing.T) {
	for _, task := range AllTasks() {
		got, err := ParseTask(string(task))
		if err != nil || got != task {
			t.Errorf("ParseTask(%q) = %q, %v", task, got, err)
		}
	}
	if _, err := ParseTask("send_reminders"); err == nil {
		t.Error("expected error for unknown task")
	}
	if _, ok := TaskCleanupAnnouncements.Mode(); ok {
		t.Error("cleanup task has no celebration mode")
	}
}
