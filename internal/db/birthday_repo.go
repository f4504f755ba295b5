package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"birthdaybot/internal/types"
)

// BirthdayRepository reads and writes the birthdays table.
type BirthdayRepository struct {
	db DBTX
}

func NewBirthdayRepository(db DBTX) *BirthdayRepository {
	return &BirthdayRepository{db: db}
}

const birthdayColumns = `user_id, username, birth_date, birth_year, timezone, updated_at`

// ListAll returns every stored birthday ordered by user ID. Rows whose
// birth_date does not parse are skipped and reported in the second return
// value so the caller can log them.
func (r *BirthdayRepository) ListAll(ctx context.Context) ([]types.BirthdayRecord, []string, error) {
	rows, err := r.db.Query(ctx, `SELECT `+birthdayColumns+` FROM birthdays ORDER BY user_id`)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list birthdays", err)
	}
	defer rows.Close()

	var (
		records []types.BirthdayRecord
		skipped []string
	)
	for rows.Next() {
		rec, raw, err := scanBirthday(rows)
		if err != nil {
			return nil, nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan birthday row", err)
		}
		if rec == nil {
			skipped = append(skipped, raw)
			continue
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating birthday rows", err)
	}
	return records, skipped, nil
}

// LoadLive returns the current birthdays keyed by user ID. The celebration
// pipeline reads this once per batch to detect birthdays that were removed or
// changed after candidates were selected.
func (r *BirthdayRepository) LoadLive(ctx context.Context) (map[string]types.BirthdayRecord, error) {
	records, _, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	live := make(map[string]types.BirthdayRecord, len(records))
	for _, rec := range records {
		live[rec.UserID] = rec
	}
	return live, nil
}

// Get returns one stored birthday.
func (r *BirthdayRepository) Get(ctx context.Context, userID string) (*types.BirthdayRecord, error) {
	row := r.db.QueryRow(ctx, `SELECT `+birthdayColumns+` FROM birthdays WHERE user_id = $1`, userID)
	rec, raw, err := scanBirthday(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundBirthday, fmt.Sprintf("no birthday stored for %s", userID), nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load birthday", err)
	}
	if rec == nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidDate, fmt.Sprintf("stored birthday for %s is malformed", raw), nil)
	}
	return rec, nil
}

// Upsert stores or replaces a birthday.
func (r *BirthdayRepository) Upsert(ctx context.Context, rec types.BirthdayRecord) error {
	if err := rec.Date.Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO birthdays (user_id, username, birth_date, birth_year, timezone, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (user_id) DO UPDATE
		   SET username = EXCLUDED.username,
		       birth_date = EXCLUDED.birth_date,
		       birth_year = EXCLUDED.birth_year,
		       timezone = EXCLUDED.timezone,
		       updated_at = NOW()`,
		rec.UserID, rec.Username, rec.Date.String(), rec.Year, rec.Timezone,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert birthday", err)
	}
	return nil
}

// Delete removes a stored birthday. Deleting an absent row is not an error.
func (r *BirthdayRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM birthdays WHERE user_id = $1`, userID); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete birthday", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanBirthday returns a nil record (and the user ID) when the stored date is
// malformed.
func scanBirthday(s scanner) (*types.BirthdayRecord, string, error) {
	var (
		rec       types.BirthdayRecord
		birthDate string
		year      *int
		updatedAt time.Time
	)
	if err := s.Scan(&rec.UserID, &rec.Username, &birthDate, &year, &rec.Timezone, &updatedAt); err != nil {
		return nil, "", err
	}
	date, err := types.ParseBirthdayDate(birthDate)
	if err != nil {
		return nil, rec.UserID, nil
	}
	rec.Date = date
	rec.Year = year
	rec.UpdatedAt = updatedAt
	return &rec, rec.UserID, nil
}
