// Package celebration implements the posting-time half of a birthday
// celebration: re-validating candidates against live data, reconciling a
// previously generated draft with that result, posting once and marking the
// people that were celebrated.
package celebration

import (
	"context"
	"time"

	"birthdaybot/internal/external"
	"birthdaybot/internal/types"
)

// BirthdayStore loads the stored birthdays as they are right now.
type BirthdayStore interface {
	LoadLive(ctx context.Context) (map[string]types.BirthdayRecord, error)
}

// CelebrationStore is the durable "celebrated on date" marker set.
type CelebrationStore interface {
	CelebratedOn(ctx context.Context, date string) (map[string]struct{}, error)
	Mark(ctx context.Context, date string, mode types.Mode, keys []types.MarkerKey) error
	TryMark(ctx context.Context, date string, mode types.Mode, key types.MarkerKey) (bool, error)
}

// Directory answers membership and account-status questions about Slack users.
type Directory interface {
	ChannelMembers(ctx context.Context, channelID string) (map[string]struct{}, error)
	UserStatus(ctx context.Context, userID string) (types.UserStatus, error)
}

// Publisher uploads images and sends the celebration post.
type Publisher interface {
	UploadImage(ctx context.Context, img types.ImageRef) (external.UploadedFile, error)
	PostMessage(ctx context.Context, msg external.SlackMessage) (string, error)
}

// Generator produces a draft celebration for a set of people.
type Generator interface {
	Generate(ctx context.Context, people []types.BirthdayPerson, opts types.GenerationOptions) (types.GeneratedContent, error)
}

// ThreadRecorder stores where a celebration was posted.
type ThreadRecorder interface {
	Record(ctx context.Context, t types.CelebrationThread) error
}

// RaceStore persists per-run validation reports for later summaries.
type RaceStore interface {
	Record(ctx context.Context, rep types.RaceReport) error
	ListSince(ctx context.Context, since time.Time) ([]types.RaceReport, error)
}

// EventPublisher announces completed celebrations to downstream consumers.
type EventPublisher interface {
	PublishPosted(ctx context.Context, evt PostedEvent) error
}

// Metrics is the telemetry surface of the pipeline. Implementations must not
// fail the caller; emission errors are logged and dropped.
type Metrics interface {
	RecordRun(ctx context.Context, mode types.Mode, success bool)
	RecordPeople(ctx context.Context, mode types.Mode, celebrated, filtered int)
	RecordImagesSent(ctx context.Context, mode types.Mode, n int)
	RecordGenerationDuration(ctx context.Context, mode types.Mode, d time.Duration)
	RecordRaceCondition(ctx context.Context, mode types.Mode, reason types.ReasonCode, count int)
	RecordRaceAlert(ctx context.Context, mode types.Mode)
}

// NopMetrics discards all metrics.
type NopMetrics struct{}

func (NopMetrics) RecordRun(context.Context, types.Mode, bool)                            {}
func (NopMetrics) RecordPeople(context.Context, types.Mode, int, int)                     {}
func (NopMetrics) RecordImagesSent(context.Context, types.Mode, int)                      {}
func (NopMetrics) RecordGenerationDuration(context.Context, types.Mode, time.Duration)    {}
func (NopMetrics) RecordRaceCondition(context.Context, types.Mode, types.ReasonCode, int) {}
func (NopMetrics) RecordRaceAlert(context.Context, types.Mode)                            {}
