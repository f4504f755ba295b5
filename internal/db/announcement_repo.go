package db

import (
	"context"
	"time"

	"birthdaybot/internal/types"
)

// AnnouncementRepository stores celebration markers: which people have been
// celebrated on which date.
//
// A person counts as celebrated on a date if any bucket holds a marker for
// them. Buckets only separate who wrote the marker (the daily run or a
// per-timezone run).
type AnnouncementRepository struct {
	db DBTX
}

func NewAnnouncementRepository(db DBTX) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// CelebratedOn returns the set of user IDs with a marker on date (YYYY-MM-DD).
func (r *AnnouncementRepository) CelebratedOn(ctx context.Context, date string) (map[string]struct{}, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT user_id FROM celebration_markers WHERE celebrated_on = $1::date`,
		date,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load celebrated users", err)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan celebrated user", err)
		}
		set[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating celebrated users", err)
	}
	return set, nil
}

// IsCelebrated reports whether userID has any marker on date.
func (r *AnnouncementRepository) IsCelebrated(ctx context.Context, date, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM celebration_markers WHERE celebrated_on = $1::date AND user_id = $2
		 )`,
		date, userID,
	).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check celebration marker", err)
	}
	return exists, nil
}

// Mark writes markers for keys on date. Existing markers are left untouched,
// so marking twice has the same effect as marking once.
func (r *AnnouncementRepository) Mark(ctx context.Context, date string, mode types.Mode, keys []types.MarkerKey) error {
	if len(keys) == 0 {
		return nil
	}
	userIDs := make([]string, len(keys))
	buckets := make([]string, len(keys))
	for i, k := range keys {
		userIDs[i] = k.UserID
		buckets[i] = k.Bucket
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO celebration_markers (celebrated_on, user_id, bucket, mode, marked_at)
		 SELECT $1::date, u.user_id, u.bucket, $4, NOW()
		 FROM unnest($2::text[], $3::text[]) AS u(user_id, bucket)
		 ON CONFLICT (celebrated_on, user_id, bucket) DO NOTHING`,
		date, userIDs, buckets, string(mode),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark people as celebrated", err)
	}
	return nil
}

// TryMark marks key on date only if the person has no marker in any bucket,
// and reports whether this call wrote it. Two concurrent callers for the same
// person and bucket cannot both win; callers racing across different buckets
// are only separated by the NOT EXISTS check.
func (r *AnnouncementRepository) TryMark(ctx context.Context, date string, mode types.Mode, key types.MarkerKey) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO celebration_markers (celebrated_on, user_id, bucket, mode, marked_at)
		 SELECT $1::date, $2, $3, $4, NOW()
		 WHERE NOT EXISTS (
		   SELECT 1 FROM celebration_markers WHERE celebrated_on = $1::date AND user_id = $2
		 )
		 ON CONFLICT (celebrated_on, user_id, bucket) DO NOTHING`,
		date, key.UserID, key.Bucket, string(mode),
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to claim celebration marker", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListBefore returns markers dated strictly before cutoff, oldest first.
func (r *AnnouncementRepository) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]types.CelebrationMarker, error) {
	rows, err := r.db.Query(ctx,
		`SELECT to_char(celebrated_on, 'YYYY-MM-DD'), user_id, bucket, mode, marked_at
		 FROM celebration_markers
		 WHERE celebrated_on < $1::date
		 ORDER BY celebrated_on, user_id, bucket
		 LIMIT $2`,
		types.DateKey(cutoff), limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list old celebration markers", err)
	}
	defer rows.Close()

	var markers []types.CelebrationMarker
	for rows.Next() {
		var (
			m    types.CelebrationMarker
			mode string
		)
		if err := rows.Scan(&m.Date, &m.UserID, &m.Bucket, &mode, &m.MarkedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan celebration marker", err)
		}
		m.Mode = types.Mode(mode)
		markers = append(markers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating celebration markers", err)
	}
	return markers, nil
}

// PurgeBefore deletes markers dated strictly before cutoff and returns how
// many were removed.
func (r *AnnouncementRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM celebration_markers WHERE celebrated_on < $1::date`,
		types.DateKey(cutoff),
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to purge celebration markers", err)
	}
	return tag.RowsAffected(), nil
}
