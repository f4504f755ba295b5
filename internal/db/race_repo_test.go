package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"birthdaybot/internal/types"
)

func TestRaceReportRepository_Record(t *testing.T) {
	db := new(mockDBTX)
	at := time.Date(2026, 7, 5, 9, 0, 0, 0, time.UTC)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		reasons, ok := args[5].([]byte)
		return ok && string(reasons) == `{"left_channel":1}` && args[6] == "filtered" && args[7] == at
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := NewRaceReportRepository(db).Record(context.Background(), types.RaceReport{
		RunID: "run-1", Mode: types.ModeSimple, Action: types.ActionFiltered, RecordedAt: at,
		Summary: types.ValidationSummary{Total: 4, Valid: 3, Invalid: 1,
			Reasons: map[types.ReasonCode]int{types.ReasonLeftChannel: 1}},
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestRaceReportRepository_ListSince(t *testing.T) {
	db := new(mockDBTX)
	since := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	at := since.Add(48 * time.Hour)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), []any{since}).
		Return(newMockRows(
			[]any{"run-1", "TIMEZONE", 3, 1, 2, []byte(`{"already_celebrated":2}`), "regenerated", at},
		), nil)

	reports, err := NewRaceReportRepository(db).ListSince(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, types.ModeTimezone, reports[0].Mode)
	assert.Equal(t, types.ActionRegenerated, reports[0].Action)
	assert.Equal(t, 2, reports[0].Summary.Reasons[types.ReasonAlreadyCelebrated])
	assert.Equal(t, 3, reports[0].Summary.Total)
}
