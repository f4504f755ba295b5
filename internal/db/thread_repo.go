package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"birthdaybot/internal/types"
)

// ThreadRepository records posted celebration messages.
type ThreadRepository struct {
	db DBTX
}

func NewThreadRepository(db DBTX) *ThreadRepository {
	return &ThreadRepository{db: db}
}

// Record stores a posted celebration. Recording the same message twice keeps
// the first row.
func (r *ThreadRepository) Record(ctx context.Context, t types.CelebrationThread) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO celebration_threads (channel_id, message_ts, user_ids, personality, run_id, posted_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (channel_id, message_ts) DO NOTHING`,
		t.ChannelID, t.MessageTS, t.UserIDs, t.Personality, t.RunID, t.PostedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record celebration thread", err)
	}
	return nil
}

// Get returns the celebration posted as (channelID, messageTS).
func (r *ThreadRepository) Get(ctx context.Context, channelID, messageTS string) (*types.CelebrationThread, error) {
	var t types.CelebrationThread
	err := r.db.QueryRow(ctx,
		`SELECT channel_id, message_ts, user_ids, personality, run_id, posted_at
		 FROM celebration_threads
		 WHERE channel_id = $1 AND message_ts = $2`,
		channelID, messageTS,
	).Scan(&t.ChannelID, &t.MessageTS, &t.UserIDs, &t.Personality, &t.RunID, &t.PostedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundThread, fmt.Sprintf("no celebration thread %s in %s", messageTS, channelID), nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load celebration thread", err)
	}
	return &t, nil
}
