package celebration

import (
	"context"
	"time"

	"birthdaybot/internal/types"
)

// Validator re-checks a batch of candidates against live data right before
// posting.
type Validator struct {
	birthdays BirthdayStore
	markers   CelebrationStore
	directory Directory
	checker   *EligibilityChecker
	logger    types.Logger
}

// NewValidator creates a Validator.
func NewValidator(birthdays BirthdayStore, markers CelebrationStore, directory Directory, logger types.Logger) *Validator {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Validator{
		birthdays: birthdays,
		markers:   markers,
		directory: directory,
		checker:   NewEligibilityChecker(directory.UserStatus, logger),
		logger:    logger,
	}
}

// Validate partitions people into valid and invalid, preserving input order.
//
// Live birthdays, today's celebrated set and the channel members are fetched
// once for the whole batch. When the birthdays or the celebrated set cannot be
// read, every person is returned as valid with a single validation_failed
// reason in the summary. A membership fetch failure only disables the channel
// check. An empty batch is not an error.
func (v *Validator) Validate(ctx context.Context, people []types.BirthdayPerson, ref time.Time, channelID string, mode types.Mode) types.ValidationOutcome {
	out := types.ValidationOutcome{
		Valid:   []types.BirthdayPerson{},
		Invalid: []types.InvalidPerson{},
		Summary: types.ValidationSummary{Total: len(people), Reasons: map[types.ReasonCode]int{}},
	}
	if len(people) == 0 {
		return out
	}

	snap, err := v.snapshot(ctx, ref, channelID, mode)
	if err != nil {
		v.logger.Error("failed to load live data for validation, passing everyone",
			"people", len(people),
			"error", err.Error(),
		)
		out.Valid = append(out.Valid, people...)
		out.Summary.Valid = len(people)
		out.Summary.Reasons[types.ReasonValidationFailed] = 1
		return out
	}

	for _, p := range people {
		ok, reason := v.checker.Check(ctx, p, snap)
		if ok {
			out.Valid = append(out.Valid, p)
			continue
		}
		out.Invalid = append(out.Invalid, types.InvalidPerson{Person: p, Reason: reason})
		out.Summary.Reasons[reason]++
	}
	out.Summary.Valid = len(out.Valid)
	out.Summary.Invalid = len(out.Invalid)

	v.logger.Info("validation complete",
		"total", out.Summary.Total,
		"valid", out.Summary.Valid,
		"invalid", out.Summary.Invalid,
	)
	return out
}

func (v *Validator) snapshot(ctx context.Context, ref time.Time, channelID string, mode types.Mode) (Snapshot, error) {
	snap := Snapshot{Ref: ref, Mode: mode}
	if mode == types.ModeTest {
		return snap, nil
	}

	live, err := v.birthdays.LoadLive(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	celebrated, err := v.markers.CelebratedOn(ctx, types.DateKey(ref))
	if err != nil {
		return Snapshot{}, err
	}
	snap.Live = live
	snap.Celebrated = celebrated

	members, err := v.directory.ChannelMembers(ctx, channelID)
	if err != nil {
		v.logger.Warn("channel membership unavailable, skipping membership check",
			"channel", channelID,
			"error", err.Error(),
		)
		return snap, nil
	}
	snap.Members = members
	return snap, nil
}
