package celebration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birthdaybot/internal/types"
)

func TestSeverityOf(t *testing.T) {
	tests := []struct {
		fraction float64
		want     Severity
	}{
		{0, SeverityNone},
		{0.1, SeverityMinor},
		{0.29, SeverityMinor},
		{0.3, SeverityModerate},
		{0.49, SeverityModerate},
		{0.5, SeverityCritical},
		{1, SeverityCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityOf(tt.fraction), "fraction %v", tt.fraction)
	}
}

func TestRaceReporter_Detected(t *testing.T) {
	t.Run("no drift", func(t *testing.T) {
		m := &spyMetrics{}
		alert := NewRaceReporter(m, nil, 0, nil, nil).Detected(context.Background(), types.ModeSimple, outcomeOf(3, 0), time.Second)
		assert.False(t, alert)
		assert.Zero(t, m.alerts)
		assert.Empty(t, m.reasons)
	})

	t.Run("below alert threshold", func(t *testing.T) {
		m := &spyMetrics{}
		alert := NewRaceReporter(m, nil, 0.2, nil, nil).Detected(context.Background(), types.ModeSimple, outcomeOf(4, 1), time.Second)
		assert.False(t, alert)
		assert.Equal(t, 1, m.reasons[types.ReasonLeftChannel])
	})

	t.Run("above alert threshold", func(t *testing.T) {
		m := &spyMetrics{}
		alert := NewRaceReporter(m, nil, 0.2, nil, nil).Detected(context.Background(), types.ModeTimezone, outcomeOf(2, 1), 40*time.Second)
		assert.True(t, alert)
		assert.Equal(t, 1, m.alerts)
	})
}

func TestRaceReporter_ActionTakenPersists(t *testing.T) {
	store := &memRaceStore{}
	at := time.Date(2026, 7, 5, 9, 1, 0, 0, time.UTC)
	r := NewRaceReporter(nil, store, 0, fixedClock{at}, nil)

	ctx := types.WithRunID(context.Background(), "run-7")
	r.ActionTaken(ctx, types.ModeSimple, outcomeOf(2, 1), types.ActionFiltered)

	require.Len(t, store.reports, 1)
	rep := store.reports[0]
	assert.Equal(t, "run-7", rep.RunID)
	assert.Equal(t, types.ActionFiltered, rep.Action)
	assert.Equal(t, at, rep.RecordedAt)
	assert.Equal(t, 3, rep.Summary.Total)
}

func TestRaceReporter_ActionTakenStoreErrorIsSwallowed(t *testing.T) {
	r := NewRaceReporter(nil, &memRaceStore{err: errBoom}, 0, nil, nil)
	assert.NotPanics(t, func() {
		r.ActionTaken(context.Background(), types.ModeSimple, outcomeOf(1, 0), types.ActionProceeded)
	})
}

func TestSummarize(t *testing.T) {
	reports := []types.RaceReport{
		{Summary: types.ValidationSummary{Total: 4, Valid: 4}},
		{Summary: types.ValidationSummary{Total: 3, Valid: 1, Invalid: 2, Reasons: map[types.ReasonCode]int{
			types.ReasonAlreadyCelebrated: 1, types.ReasonLeftChannel: 1,
		}}},
		{Summary: types.ValidationSummary{Total: 3, Valid: 2, Invalid: 1, Reasons: map[types.ReasonCode]int{
			types.ReasonLeftChannel: 1,
		}}},
	}

	sum := Summarize(reports)
	assert.Equal(t, 3, sum.TotalCelebrations)
	assert.Equal(t, 2, sum.WithRaceConditions)
	assert.InDelta(t, 2.0/3.0, sum.RaceConditionRate, 1e-9)
	assert.Equal(t, 10, sum.PeopleProcessed)
	assert.Equal(t, 3, sum.PeopleFiltered)
	assert.InDelta(t, 0.3, sum.OverallInvalidRate, 1e-9)
	assert.Equal(t, []ReasonCount{
		{Reason: types.ReasonLeftChannel, Count: 2},
		{Reason: types.ReasonAlreadyCelebrated, Count: 1},
	}, sum.TopReasons)
}

func TestSummarize_Empty(t *testing.T) {
	sum := Summarize(nil)
	assert.Zero(t, sum.TotalCelebrations)
	assert.Zero(t, sum.RaceConditionRate)
	assert.Empty(t, sum.TopReasons)
}

func TestRaceReporter_Summary(t *testing.T) {
	since := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	store := &memRaceStore{reports: []types.RaceReport{
		{RecordedAt: since.Add(-time.Hour), Summary: types.ValidationSummary{Total: 9, Invalid: 9}},
		{RecordedAt: since.Add(time.Hour), Summary: types.ValidationSummary{Total: 2, Valid: 2}},
	}}
	sum, err := NewRaceReporter(nil, store, 0, nil, nil).Summary(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalCelebrations)
	assert.Zero(t, sum.PeopleFiltered)

	_, err = NewRaceReporter(nil, &memRaceStore{err: errBoom}, 0, nil, nil).Summary(context.Background(), since)
	assert.ErrorIs(t, err, errBoom)
}
