// Package scheduler implements the scheduled jobs of the birthday bot.
//
// EventBridge rules (or the operator CLI) send a Payload naming the task to
// execute. The Runner guards each invocation with a per-hour job lock and
// records it in job history before routing to the celebration or cleanup
// service.
package scheduler

import (
	"fmt"
	"time"

	"birthdaybot/internal/types"
)

// TaskType identifies which scheduled job should handle an event.
type TaskType string

const (
	TaskCelebrateTimezone    TaskType = "celebrate_timezone"
	TaskCelebrateDaily       TaskType = "celebrate_daily"
	TaskCelebrateMissed      TaskType = "celebrate_missed"
	TaskCleanupAnnouncements TaskType = "cleanup_announcements"
)

// AllTasks lists every task the Runner can dispatch, in display order.
func AllTasks() []TaskType {
	return []TaskType{
		TaskCelebrateTimezone,
		TaskCelebrateDaily,
		TaskCelebrateMissed,
		TaskCleanupAnnouncements,
	}
}

// ParseTask validates a task name.
func ParseTask(s string) (TaskType, error) {
	for _, t := range AllTasks() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown task type: %q", s)
}

// Mode returns the celebration mode a task runs the pipeline in. The second
// return value is false for tasks that do not celebrate anyone.
func (t TaskType) Mode() (types.Mode, bool) {
	switch t {
	case TaskCelebrateTimezone:
		return types.ModeTimezone, true
	case TaskCelebrateDaily:
		return types.ModeSimple, true
	case TaskCelebrateMissed:
		return types.ModeMissed, true
	default:
		return "", false
	}
}

// Payload is the JSON event sent by EventBridge to the celebrator Lambda:
//
//	{
//	  "task": "celebrate_timezone",
//	  "reference_time": "2026-07-05T09:00:00Z",  // optional
//	  "dry_run": false                           // optional
//	}
type Payload struct {
	Task TaskType `json:"task"`
	// ReferenceTime overrides "now" for manual invocation and backfilling.
	// If nil, the clock's current time is used.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
	// DryRun selects candidates and logs them without posting or marking.
	DryRun bool `json:"dry_run,omitempty"`
}
