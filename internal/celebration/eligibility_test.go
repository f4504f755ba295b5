package celebration

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"

	"birthdaybot/internal/types"
)

func TestEligibilityChecker_Check(t *testing.T) {
	dir := &fakeDirectory{
		status: map[string]types.UserStatus{
			"UDEL": {Deleted: true},
			"UBOT": {IsBot: true, Active: true},
		},
		statusErr: map[string]error{"UERR": errors.New("slack timeout")},
	}
	checker := NewEligibilityChecker(dir.UserStatus, nil)

	live := liveToday("U1", "UDONE", "UGONE", "UBOTH", "UDEL", "UBOT", "UERR")
	live["UMOVED"] = record("UMOVED", 6, time.July)

	snap := Snapshot{
		Ref:        testRef,
		Mode:       types.ModeSimple,
		Live:       live,
		Celebrated: set("UDONE", "UBOTH"),
		Members:    set("U1", "UDONE", "UMOVED", "UDEL", "UBOT", "UERR"),
	}

	tests := []struct {
		name       string
		userID     string
		wantValid  bool
		wantReason types.ReasonCode
	}{
		{"eligible", "U1", true, ""},
		{"birthday removed", "UMISSING", false, types.ReasonBirthdayRemoved},
		{"birthday changed away", "UMOVED", false, types.ReasonBirthdayChangedAway},
		{"already celebrated", "UDONE", false, types.ReasonAlreadyCelebrated},
		{"left channel", "UGONE", false, types.ReasonLeftChannel},
		{"already celebrated wins over left channel", "UBOTH", false, types.ReasonAlreadyCelebrated},
		{"deleted account", "UDEL", false, types.ReasonUserInactive},
		{"bot account", "UBOT", false, types.ReasonUserInactive},
		{"status lookup error fails open", "UERR", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, reason := checker.Check(context.Background(), person(tt.userID), snap)
			assert.Equal(t, tt.wantValid, valid)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestEligibilityChecker_UnknownMembershipSkipsChannelCheck(t *testing.T) {
	checker := NewEligibilityChecker((&fakeDirectory{}).UserStatus, nil)
	snap := Snapshot{Ref: testRef, Mode: types.ModeSimple, Live: liveToday("U1"), Celebrated: set()}

	valid, reason := checker.Check(context.Background(), person("U1"), snap)
	assert.True(t, valid)
	assert.Empty(t, reason)
}

func TestEligibilityChecker_TestModeOnlyChecksStatus(t *testing.T) {
	dir := &fakeDirectory{status: map[string]types.UserStatus{"UBOT": {IsBot: true}}}
	checker := NewEligibilityChecker(dir.UserStatus, nil)
	snap := Snapshot{Ref: testRef, Mode: types.ModeTest} // no live data at all

	valid, _ := checker.Check(context.Background(), person("U1"), snap)
	assert.True(t, valid)

	valid, reason := checker.Check(context.Background(), person("UBOT"), snap)
	assert.False(t, valid)
	assert.Equal(t, types.ReasonUserInactive, reason)
}

func TestEligibilityChecker_TimezoneModeUsesLocalDay(t *testing.T) {
	checker := NewEligibilityChecker((&fakeDirectory{}).UserStatus, nil)

	// 21:00 UTC on 4 July is 09:00 on 5 July in Auckland.
	ref := time.Date(2026, 7, 4, 21, 0, 0, 0, time.UTC)
	rec := record("U1", 5, time.July)
	rec.Timezone = "Pacific/Auckland"
	snap := Snapshot{
		Ref:        ref,
		Mode:       types.ModeTimezone,
		Live:       map[string]types.BirthdayRecord{"U1": rec},
		Celebrated: set(),
	}

	valid, reason := checker.Check(context.Background(), person("U1"), snap)
	assert.True(t, valid)
	assert.Empty(t, reason)

	snap.Mode = types.ModeSimple
	valid, reason = checker.Check(context.Background(), person("U1"), snap)
	assert.False(t, valid)
	assert.Equal(t, types.ReasonBirthdayChangedAway, reason)
}
