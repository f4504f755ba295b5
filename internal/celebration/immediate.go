package celebration

import (
	"context"
	"fmt"
	"sort"
	"time"

	"birthdaybot/internal/types"
)

// Decision is the outcome of an immediate-celebration check.
type Decision string

const (
	// DecisionImmediate means the registrant is the only person due today and
	// can be celebrated straight away.
	DecisionImmediate Decision = "immediate_celebration"
	// DecisionNotificationOnly means others share the day; the registrant is
	// left to the consolidated scheduled post.
	DecisionNotificationOnly Decision = "notification_only"
	// DecisionNotToday means the registered birthday is not today.
	DecisionNotToday Decision = "not_today"
)

// ImmediateResult is returned by ImmediateDecider.Decide.
type ImmediateResult struct {
	Decision Decision               `json:"decision"`
	SameDay  []types.BirthdayPerson `json:"same_day_people"`
}

// ImmediateDecider decides what to do when someone registers a birthday that
// falls on the current day.
type ImmediateDecider struct {
	birthdays BirthdayStore
	markers   CelebrationStore
	directory Directory
	channelID string
	logger    types.Logger
}

// NewImmediateDecider creates an ImmediateDecider for the birthday channel.
func NewImmediateDecider(birthdays BirthdayStore, markers CelebrationStore, directory Directory, channelID string, logger types.Logger) *ImmediateDecider {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &ImmediateDecider{
		birthdays: birthdays,
		markers:   markers,
		directory: directory,
		channelID: channelID,
		logger:    logger,
	}
}

// Decide looks for other people whose birthday is also today, who are active,
// in the channel and not yet celebrated. With none, the registrant can be
// celebrated immediately; otherwise only a notification is sent so that the
// day's celebration stays consolidated.
func (d *ImmediateDecider) Decide(ctx context.Context, userID string, date types.BirthdayDate, ref time.Time) (ImmediateResult, error) {
	if !date.Matches(ref) {
		return ImmediateResult{Decision: DecisionNotToday, SameDay: []types.BirthdayPerson{}}, nil
	}

	sameDay, err := d.sameDayPeople(ctx, userID, date, ref)
	if err != nil {
		return ImmediateResult{}, err
	}

	res := ImmediateResult{Decision: DecisionImmediate, SameDay: sameDay}
	if len(sameDay) > 0 {
		res.Decision = DecisionNotificationOnly
	}
	d.logger.Info("immediate celebration decision",
		"user_id", userID,
		"decision", string(res.Decision),
		"same_day", len(sameDay),
	)
	return res, nil
}

func (d *ImmediateDecider) sameDayPeople(ctx context.Context, exclude string, date types.BirthdayDate, ref time.Time) ([]types.BirthdayPerson, error) {
	live, err := d.birthdays.LoadLive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load birthdays: %w", err)
	}
	celebrated, err := d.markers.CelebratedOn(ctx, types.DateKey(ref))
	if err != nil {
		return nil, fmt.Errorf("load celebrated set: %w", err)
	}
	members, err := d.directory.ChannelMembers(ctx, d.channelID)
	if err != nil {
		d.logger.Warn("channel membership unavailable for immediate check",
			"channel", d.channelID,
			"error", err.Error(),
		)
		members = nil
	}

	ids := make([]string, 0, len(live))
	for id, rec := range live {
		if id == exclude || rec.Date != date {
			continue
		}
		if _, done := celebrated[id]; done {
			continue
		}
		if members != nil {
			if _, in := members[id]; !in {
				continue
			}
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	people := make([]types.BirthdayPerson, 0, len(ids))
	for _, id := range ids {
		st, err := d.directory.UserStatus(ctx, id)
		if err == nil && (st.Deleted || st.IsBot) {
			continue
		}
		p := types.PersonFromRecord(live[id])
		if err == nil && st.DisplayName != "" {
			p.Username = st.DisplayName
		}
		people = append(people, p)
	}
	return people, nil
}
