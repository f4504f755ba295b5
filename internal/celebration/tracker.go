package celebration

import (
	"context"
	"fmt"
	"time"

	"birthdaybot/internal/types"
)

// Tracker records who has been celebrated on a given day.
type Tracker struct {
	store  CelebrationStore
	logger types.Logger
}

// NewTracker creates a Tracker.
func NewTracker(store CelebrationStore, logger types.Logger) *Tracker {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Tracker{store: store, logger: logger}
}

// Mark records people as celebrated on ref's date. TEST runs are never
// recorded. TIMEZONE runs key each marker by the person's timezone (UTC when
// unset); SIMPLE and MISSED runs use a single bucket per user. Marking an
// already-marked person is a no-op.
func (t *Tracker) Mark(ctx context.Context, people []types.BirthdayPerson, mode types.Mode, ref time.Time) error {
	if mode == types.ModeTest || len(people) == 0 {
		return nil
	}

	seen := make(map[types.MarkerKey]struct{}, len(people))
	keys := make([]types.MarkerKey, 0, len(people))
	for _, p := range people {
		k := markerKey(p, mode)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	date := types.DateKey(ref)
	if err := t.store.Mark(ctx, date, mode, keys); err != nil {
		return fmt.Errorf("mark %d people celebrated on %s: %w", len(keys), date, err)
	}
	t.logger.Info("people marked celebrated", "date", date, "mode", string(mode), "count", len(keys))
	return nil
}

// Claim atomically marks one person if nobody has marked them today. It
// returns false when a marker already exists. TEST runs never claim.
func (t *Tracker) Claim(ctx context.Context, p types.BirthdayPerson, mode types.Mode, ref time.Time) (bool, error) {
	if mode == types.ModeTest {
		return false, nil
	}
	return t.store.TryMark(ctx, types.DateKey(ref), mode, markerKey(p, mode))
}

func markerKey(p types.BirthdayPerson, mode types.Mode) types.MarkerKey {
	if mode == types.ModeTimezone {
		return types.MarkerKey{UserID: p.UserID, Bucket: p.TimezoneOrUTC()}
	}
	return types.MarkerKey{UserID: p.UserID, Bucket: types.SimpleBucket}
}
