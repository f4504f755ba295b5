package db

import (
	"context"
	"encoding/json"
	"time"

	"birthdaybot/internal/types"
)

// RaceReportRepository persists per-run validation summaries so race
// conditions can be summarized across runs.
type RaceReportRepository struct {
	db DBTX
}

func NewRaceReportRepository(db DBTX) *RaceReportRepository {
	return &RaceReportRepository{db: db}
}

func (r *RaceReportRepository) Record(ctx context.Context, rep types.RaceReport) error {
	reasons, err := json.Marshal(rep.Summary.Reasons)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode race reasons", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO race_reports (run_id, mode, total, valid, invalid, reasons, action, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (run_id) DO NOTHING`,
		rep.RunID, string(rep.Mode), rep.Summary.Total, rep.Summary.Valid, rep.Summary.Invalid,
		reasons, string(rep.Action), rep.RecordedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record race report", err)
	}
	return nil
}

// ListSince returns reports recorded at or after since, oldest first.
func (r *RaceReportRepository) ListSince(ctx context.Context, since time.Time) ([]types.RaceReport, error) {
	rows, err := r.db.Query(ctx,
		`SELECT run_id, mode, total, valid, invalid, reasons, action, recorded_at
		 FROM race_reports
		 WHERE recorded_at >= $1
		 ORDER BY recorded_at`,
		since,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list race reports", err)
	}
	defer rows.Close()

	var reports []types.RaceReport
	for rows.Next() {
		var (
			rep          types.RaceReport
			mode, action string
			reasons      []byte
		)
		if err := rows.Scan(&rep.RunID, &mode, &rep.Summary.Total, &rep.Summary.Valid, &rep.Summary.Invalid,
			&reasons, &action, &rep.RecordedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan race report", err)
		}
		rep.Mode = types.Mode(mode)
		rep.Action = types.ReconcileAction(action)
		if len(reasons) > 0 {
			if err := json.Unmarshal(reasons, &rep.Summary.Reasons); err != nil {
				return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode race reasons", err)
			}
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating race reports", err)
	}
	return reports, nil
}
