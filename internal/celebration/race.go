package celebration

import (
	"context"
	"sort"
	"strings"
	"time"

	"birthdaybot/internal/types"
)

// DefaultRaceAlertThreshold is the invalid fraction above which a run raises
// a race-condition alert.
const DefaultRaceAlertThreshold = 0.2

// Severity grades how much of a batch drifted between generation and posting.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityCritical Severity = "critical"
)

// SeverityOf grades an invalid fraction.
func SeverityOf(fraction float64) Severity {
	switch {
	case fraction <= 0:
		return SeverityNone
	case fraction >= 0.5:
		return SeverityCritical
	case fraction >= 0.3:
		return SeverityModerate
	default:
		return SeverityMinor
	}
}

// RaceReporter logs, measures and stores the validation drift of each run.
type RaceReporter struct {
	metrics        Metrics
	store          RaceStore
	alertThreshold float64
	clock          types.Clock
	logger         types.Logger
}

// NewRaceReporter creates a RaceReporter. store may be nil, in which case
// reports are only logged. A non-positive threshold selects
// DefaultRaceAlertThreshold.
func NewRaceReporter(metrics Metrics, store RaceStore, alertThreshold float64, clock types.Clock, logger types.Logger) *RaceReporter {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if alertThreshold <= 0 {
		alertThreshold = DefaultRaceAlertThreshold
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &RaceReporter{
		metrics:        metrics,
		store:          store,
		alertThreshold: alertThreshold,
		clock:          clock,
		logger:         logger,
	}
}

// Detected logs the outcome of a validation batch and reports whether it
// crossed the alert threshold. generation is how long the draft took to
// produce; longer generation widens the window for drift.
func (r *RaceReporter) Detected(ctx context.Context, mode types.Mode, outcome types.ValidationOutcome, generation time.Duration) bool {
	s := outcome.Summary
	if s.Invalid == 0 {
		r.logger.Info("no race condition detected", "mode", string(mode), "valid", s.Valid, "total", s.Total)
		return false
	}

	fraction := s.InvalidFraction()
	severity := SeverityOf(fraction)
	r.logger.Warn("race condition detected",
		"mode", string(mode),
		"invalid", s.Invalid,
		"total", s.Total,
		"invalid_fraction", fraction,
		"severity", string(severity),
		"generation_ms", generation.Milliseconds(),
	)

	for _, reason := range sortedReasons(s.Reasons) {
		count := s.Reasons[reason]
		r.logger.Warn("race condition reason",
			"mode", string(mode),
			"reason", string(reason),
			"count", count,
			"people", strings.Join(namesFor(outcome.Invalid, reason), ", "),
		)
		r.metrics.RecordRaceCondition(ctx, mode, reason, count)
	}

	if fraction > r.alertThreshold {
		r.logger.Error("race condition alert threshold exceeded",
			"mode", string(mode),
			"invalid_fraction", fraction,
			"threshold", r.alertThreshold,
		)
		r.metrics.RecordRaceAlert(ctx, mode)
		return true
	}
	return false
}

// ActionTaken logs the reconciliation branch and persists the run's report.
// Storage failures are logged, not returned.
func (r *RaceReporter) ActionTaken(ctx context.Context, mode types.Mode, outcome types.ValidationOutcome, action types.ReconcileAction) {
	r.logger.Info("race condition action",
		"mode", string(mode),
		"action", string(action),
		"valid", outcome.Summary.Valid,
		"total", outcome.Summary.Total,
	)
	if r.store == nil {
		return
	}
	rep := types.RaceReport{
		RunID:      types.GetRunID(ctx),
		Mode:       mode,
		Summary:    outcome.Summary,
		Action:     action,
		RecordedAt: r.clock.Now(),
	}
	if err := r.store.Record(ctx, rep); err != nil {
		r.logger.Error("failed to store race report", "error", err.Error())
	}
}

// Summary loads the reports recorded since the given time and summarizes them.
func (r *RaceReporter) Summary(ctx context.Context, since time.Time) (RaceSummary, error) {
	if r.store == nil {
		return Summarize(nil), nil
	}
	reports, err := r.store.ListSince(ctx, since)
	if err != nil {
		return RaceSummary{}, err
	}
	sum := Summarize(reports)
	r.logger.Info("race condition summary",
		"celebrations", sum.TotalCelebrations,
		"with_race_conditions", sum.WithRaceConditions,
		"race_condition_rate", sum.RaceConditionRate,
		"overall_invalid_rate", sum.OverallInvalidRate,
	)
	return sum, nil
}

// ReasonCount is one row of a reason histogram.
type ReasonCount struct {
	Reason types.ReasonCode `json:"reason"`
	Count  int              `json:"count"`
}

// RaceSummary aggregates race-condition reports across runs.
type RaceSummary struct {
	TotalCelebrations  int           `json:"total_celebrations"`
	WithRaceConditions int           `json:"celebrations_with_race_conditions"`
	RaceConditionRate  float64       `json:"race_condition_rate"`
	PeopleProcessed    int           `json:"total_people_processed"`
	PeopleFiltered     int           `json:"total_people_filtered"`
	OverallInvalidRate float64       `json:"overall_invalid_rate"`
	TopReasons         []ReasonCount `json:"top_reasons"`
}

// Summarize aggregates reports. TopReasons is ordered by count, then reason.
func Summarize(reports []types.RaceReport) RaceSummary {
	sum := RaceSummary{TotalCelebrations: len(reports), TopReasons: []ReasonCount{}}
	totals := map[types.ReasonCode]int{}
	for _, rep := range reports {
		sum.PeopleProcessed += rep.Summary.Total
		sum.PeopleFiltered += rep.Summary.Invalid
		if rep.Summary.Invalid > 0 {
			sum.WithRaceConditions++
		}
		for reason, n := range rep.Summary.Reasons {
			totals[reason] += n
		}
	}
	if sum.TotalCelebrations > 0 {
		sum.RaceConditionRate = float64(sum.WithRaceConditions) / float64(sum.TotalCelebrations)
	}
	if sum.PeopleProcessed > 0 {
		sum.OverallInvalidRate = float64(sum.PeopleFiltered) / float64(sum.PeopleProcessed)
	}
	for reason, n := range totals {
		sum.TopReasons = append(sum.TopReasons, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(sum.TopReasons, func(i, j int) bool {
		a, b := sum.TopReasons[i], sum.TopReasons[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Reason < b.Reason
	})
	return sum
}

func sortedReasons(m map[types.ReasonCode]int) []types.ReasonCode {
	out := make([]types.ReasonCode, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func namesFor(invalid []types.InvalidPerson, reason types.ReasonCode) []string {
	var names []string
	for _, ip := range invalid {
		if ip.Reason == reason {
			names = append(names, ip.Person.DisplayName())
		}
	}
	return names
}
