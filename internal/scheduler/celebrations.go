package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"birthdaybot/internal/birthday"
	"birthdaybot/internal/celebration"
	"birthdaybot/internal/types"
)

// BirthdaySource lists every stored birthday. The second return value names
// rows that could not be parsed.
type BirthdaySource interface {
	ListAll(ctx context.Context) ([]types.BirthdayRecord, []string, error)
}

// CelebratedSource reports which users were marked on a date.
type CelebratedSource interface {
	CelebratedOn(ctx context.Context, date string) (map[string]struct{}, error)
}

// Celebrator runs the posting pipeline for one batch.
type Celebrator interface {
	Celebrate(ctx context.Context, candidates []types.BirthdayPerson, opts celebration.Options) types.PipelineResult
}

// CelebrationSettings configure the celebration tasks.
type CelebrationSettings struct {
	ChannelID string
	// CelebrationHour is the local hour at which timezone-mode people are
	// celebrated.
	CelebrationHour int
	// PipelineTimeout bounds a single pipeline run. Zero disables the bound.
	PipelineTimeout time.Duration
	Generation      types.GenerationOptions
}

// CelebrationService selects who is due for a task and hands them to the
// pipeline as one batch.
type CelebrationService struct {
	birthdays BirthdaySource
	markers   CelebratedSource
	pipeline  Celebrator
	settings  CelebrationSettings
	logger    *slog.Logger
}

// NewCelebrationService creates a new CelebrationService.
func NewCelebrationService(birthdays BirthdaySource, markers CelebratedSource, pipeline Celebrator, settings CelebrationSettings, logger *slog.Logger) *CelebrationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CelebrationService{
		birthdays: birthdays,
		markers:   markers,
		pipeline:  pipeline,
		settings:  settings,
		logger:    logger,
	}
}

// Candidates returns the people a celebration task would post for at ref.
//
//   - celebrate_timezone: people whose local clock reads CelebrationHour on
//     their birthday.
//   - celebrate_daily and celebrate_missed: people whose birthday is ref's
//     day and who carry no marker for ref's day or the day before. The
//     previous day covers timezone runs that fired before UTC midnight.
func (s *CelebrationService) Candidates(ctx context.Context, task TaskType, ref time.Time) ([]types.BirthdayPerson, error) {
	records, skipped, err := s.birthdays.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing birthdays: %w", err)
	}
	if len(skipped) > 0 {
		s.logger.WarnContext(ctx, "skipping malformed birthday rows",
			"count", len(skipped),
			"user_ids", skipped,
		)
	}

	switch task {
	case TaskCelebrateTimezone:
		return birthday.DueAtLocalHour(records, ref, s.settings.CelebrationHour), nil

	case TaskCelebrateDaily, TaskCelebrateMissed:
		return s.uncelebrated(ctx, birthday.DueToday(records, ref), ref)

	default:
		return nil, fmt.Errorf("task %q does not celebrate", task)
	}
}

// uncelebrated drops the people in due who were marked on ref's day or the
// day before.
func (s *CelebrationService) uncelebrated(ctx context.Context, due []types.BirthdayPerson, ref time.Time) ([]types.BirthdayPerson, error) {
	if len(due) == 0 {
		return nil, nil
	}
	done := make(map[string]struct{})
	for _, day := range []time.Time{ref, ref.AddDate(0, 0, -1)} {
		ids, err := s.markers.CelebratedOn(ctx, types.DateKey(day))
		if err != nil {
			return nil, fmt.Errorf("reading celebration markers for %s: %w", types.DateKey(day), err)
		}
		for id := range ids {
			done[id] = struct{}{}
		}
	}
	var remaining []types.BirthdayPerson
	for _, p := range due {
		if _, ok := done[p.UserID]; !ok {
			remaining = append(remaining, p)
		}
	}
	return remaining, nil
}

// Celebrate runs a celebration task at ref and returns the number of people
// celebrated. A batch in which everyone became invalid is not an error.
func (s *CelebrationService) Celebrate(ctx context.Context, task TaskType, ref time.Time, dryRun bool) (int, error) {
	mode, ok := task.Mode()
	if !ok {
		return 0, fmt.Errorf("task %q does not celebrate", task)
	}

	candidates, err := s.Candidates(ctx, task, ref)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		s.logger.InfoContext(ctx, "no birthdays due", "task", string(task))
		return 0, nil
	}

	if dryRun {
		ids := make([]string, len(candidates))
		for i, p := range candidates {
			ids[i] = p.UserID
		}
		s.logger.InfoContext(ctx, "dry run, not posting",
			"task", string(task),
			"mode", string(mode),
			"user_ids", ids,
		)
		return len(candidates), nil
	}

	if s.settings.PipelineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.PipelineTimeout)
		defer cancel()
	}

	gen := s.settings.Generation
	gen.Mode = mode
	res := s.pipeline.Celebrate(ctx, candidates, celebration.Options{
		ChannelID:  s.settings.ChannelID,
		Mode:       mode,
		Reference:  ref,
		Generation: gen,
	})

	if !res.Success {
		if res.Error == celebration.ErrAllInvalid.Error() {
			s.logger.WarnContext(ctx, "every candidate became invalid before posting",
				"task", string(task),
				"filtered", len(res.FilteredPeople),
			)
			return 0, nil
		}
		return len(res.CelebratedPeople), fmt.Errorf("celebration pipeline: %s", res.Error)
	}
	return len(res.CelebratedPeople), nil
}
