package celebration

import (
	"context"
	"time"

	"birthdaybot/internal/birthday"
	"birthdaybot/internal/types"
)

// StatusFunc looks up the live account status of a user.
type StatusFunc func(ctx context.Context, userID string) (types.UserStatus, error)

// Snapshot is the live data one validation batch checks against. It is read
// once per batch and shared by every person in it.
type Snapshot struct {
	Ref  time.Time
	Mode types.Mode

	Live       map[string]types.BirthdayRecord
	Celebrated map[string]struct{}

	// Members is nil when the channel membership could not be fetched, which
	// disables the membership check.
	Members map[string]struct{}
}

// today returns the moment a stored birthday is compared against. Timezone
// runs celebrate people at their local morning, so the comparison uses the
// person's own calendar day. All other modes use ref's day in ref's location.
func (s Snapshot) today(rec types.BirthdayRecord) time.Time {
	if s.Mode == types.ModeTimezone {
		return birthday.LocalMoment(s.Ref, rec.Timezone)
	}
	return s.Ref
}

// EligibilityChecker decides whether one candidate may still be celebrated.
// It never writes anything.
type EligibilityChecker struct {
	status StatusFunc
	logger types.Logger
}

// NewEligibilityChecker creates a checker that uses status for the
// active-account check.
func NewEligibilityChecker(status StatusFunc, logger types.Logger) *EligibilityChecker {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &EligibilityChecker{status: status, logger: logger}
}

// Check runs the eligibility checks in order and stops at the first failure:
//
//  1. birthday still stored and still today
//  2. not already celebrated today
//  3. still a member of the birthday channel (when membership is known)
//  4. account neither deleted nor a bot
//
// TEST runs only perform check 4. A status lookup error passes the person.
func (c *EligibilityChecker) Check(ctx context.Context, p types.BirthdayPerson, snap Snapshot) (bool, types.ReasonCode) {
	if snap.Mode != types.ModeTest {
		rec, ok := snap.Live[p.UserID]
		if !ok {
			return false, types.ReasonBirthdayRemoved
		}
		if !rec.Date.Matches(snap.today(rec)) {
			return false, types.ReasonBirthdayChangedAway
		}

		if _, done := snap.Celebrated[p.UserID]; done {
			return false, types.ReasonAlreadyCelebrated
		}

		if snap.Members != nil {
			if _, in := snap.Members[p.UserID]; !in {
				return false, types.ReasonLeftChannel
			}
		}
	}

	if c.status == nil {
		return true, ""
	}
	st, err := c.status(ctx, p.UserID)
	if err != nil {
		c.logger.Warn("user status check failed, assuming active",
			"user_id", p.UserID,
			"error", err.Error(),
		)
		return true, ""
	}
	if st.Deleted || st.IsBot {
		return false, types.ReasonUserInactive
	}
	return true, ""
}
