package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"birthdaybot/internal/types"
)

// lockTTL covers a Lambda execution with margin.
const lockTTL = 15 * time.Minute

// JobLocker abstracts the distributed lock acquisition.
type JobLocker interface {
	Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, lockID string, workerID string) error
}

// JobHistorian abstracts the job history recording.
type JobHistorian interface {
	Start(ctx context.Context, jobType string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, err error) error
}

// CelebrationTasks runs the celebrate_* tasks.
type CelebrationTasks interface {
	Celebrate(ctx context.Context, task TaskType, ref time.Time, dryRun bool) (int, error)
}

// CleanupTasks runs the cleanup_* tasks.
type CleanupTasks interface {
	Cleanup(ctx context.Context, now time.Time, retention time.Duration) (int, error)
}

// RunnerDeps wires a Runner.
type RunnerDeps struct {
	Celebrations CelebrationTasks
	Cleanup      CleanupTasks
	JobLock      JobLocker
	JobHistory   JobHistorian
	WorkerID     string
	// Retention is how long celebration markers are kept.
	Retention time.Duration
	Clock     types.Clock
	Logger    *slog.Logger
}

// Runner executes scheduled tasks at most once per task and hour.
type Runner struct {
	celebrations CelebrationTasks
	cleanup      CleanupTasks
	jobLock      JobLocker
	jobHistory   JobHistorian
	workerID     string
	retention    time.Duration
	clock        types.Clock
	logger       *slog.Logger
}

// NewRunner creates a Runner from deps.
func NewRunner(deps RunnerDeps) *Runner {
	r := &Runner{
		celebrations: deps.Celebrations,
		cleanup:      deps.Cleanup,
		jobLock:      deps.JobLock,
		jobHistory:   deps.JobHistory,
		workerID:     deps.WorkerID,
		retention:    deps.Retention,
		clock:        deps.Clock,
		logger:       deps.Logger,
	}
	if r.clock == nil {
		r.clock = types.RealClock{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run processes a Payload:
//  1. Determine the reference time.
//  2. Acquire the job lock "task:YYYY-MM-DDTHH". Dry runs skip the lock.
//  3. Record job start in job_history.
//  4. Dispatch to the celebration or cleanup service.
//  5. Record job completion with status and item count.
//  6. Release the lock if the task failed.
func (r *Runner) Run(ctx context.Context, payload Payload) (string, error) {
	now := r.clock.Now().UTC()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}

	if payload.Task == "" {
		return "", fmt.Errorf("empty task type in payload")
	}
	taskStr := string(payload.Task)
	logger := r.logger.With("task", taskStr, "worker_id", r.workerID)
	logger.InfoContext(ctx, "scheduled task invoked",
		"reference_time", now.Format(time.RFC3339),
		"dry_run", payload.DryRun,
	)

	if payload.DryRun {
		items, err := r.dispatch(ctx, payload, now)
		if err != nil {
			return "", fmt.Errorf("task %s failed: %w", taskStr, err)
		}
		return fmt.Sprintf("dry run %s: %d items", taskStr, items), nil
	}

	lockID := fmt.Sprintf("%s:%s", payload.Task, now.Truncate(time.Hour).Format("2006-01-02T15"))
	acquired, err := r.jobLock.Acquire(ctx, lockID, r.workerID, lockTTL)
	if err != nil {
		logger.ErrorContext(ctx, "failed to acquire job lock", "lock_id", lockID, "error", err)
		return "", fmt.Errorf("acquiring job lock %s: %w", lockID, err)
	}
	if !acquired {
		logger.InfoContext(ctx, "job lock not acquired, another worker is processing", "lock_id", lockID)
		return fmt.Sprintf("skipped: lock %s held by another worker", lockID), nil
	}

	// History is best effort; jobID 0 skips Finish.
	jobID, err := r.jobHistory.Start(ctx, taskStr)
	if err != nil {
		logger.ErrorContext(ctx, "failed to start job history", "error", err)
		jobID = 0
	}

	items, execErr := r.dispatch(ctx, payload, now)

	status := "success"
	if execErr != nil {
		status = "failed"
	}
	if jobID != 0 {
		if finishErr := r.jobHistory.Finish(context.WithoutCancel(ctx), jobID, status, items, execErr); finishErr != nil {
			logger.ErrorContext(ctx, "failed to finish job history", "job_id", jobID, "error", finishErr)
		}
	}

	if execErr != nil {
		logger.ErrorContext(ctx, "task execution failed", "error", execErr, "items_before_error", items)
		// A failed run gives up the hour so the invocation retry can run it
		// again. Markers keep already-posted people from being celebrated twice.
		if relErr := r.jobLock.Release(context.WithoutCancel(ctx), lockID, r.workerID); relErr != nil {
			logger.ErrorContext(ctx, "failed to release job lock", "lock_id", lockID, "error", relErr)
		}
		return "", fmt.Errorf("task %s failed: %w", taskStr, execErr)
	}

	result := fmt.Sprintf("task %s complete: %d items processed", taskStr, items)
	logger.InfoContext(ctx, result, "items", items)
	return result, nil
}

func (r *Runner) dispatch(ctx context.Context, payload Payload, now time.Time) (int, error) {
	switch payload.Task {
	case TaskCelebrateTimezone, TaskCelebrateDaily, TaskCelebrateMissed:
		return r.celebrations.Celebrate(ctx, payload.Task, now, payload.DryRun)

	case TaskCleanupAnnouncements:
		if payload.DryRun {
			return 0, nil
		}
		return r.cleanup.Cleanup(ctx, now, r.retention)

	default:
		return 0, fmt.Errorf("unknown task type: %q", payload.Task)
	}
}
