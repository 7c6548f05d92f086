package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"agenda-service/internal/model"
)

// GetSyncCursor returns a zero-valued cursor for users that have never
// synced, so the first reconciliation does a full fetch.
func (s *Store) GetSyncCursor(ctx context.Context, userID string) (model.SyncCursor, error) {
	cursor := model.SyncCursor{UserID: userID}
	q := `SELECT COALESCE(sync_token, ''), last_synced_at FROM sync_cursors WHERE user_id=$1`
	err := s.pool.QueryRow(ctx, q, userID).Scan(&cursor.SyncToken, &cursor.LastSyncedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return cursor, nil
	}
	return cursor, err
}

// AdvanceSyncCursor persists the watermark. Called only after the batch it
// covers has been durably applied.
func (s *Store) AdvanceSyncCursor(ctx context.Context, userID, syncToken string, syncedAt time.Time) error {
	q := `INSERT INTO sync_cursors (user_id, sync_token, last_synced_at)
	      VALUES ($1,$2,$3)
	      ON CONFLICT (user_id) DO UPDATE SET sync_token=$2, last_synced_at=$3`
	_, err := s.pool.Exec(ctx, q, userID, nullable(syncToken), syncedAt)
	return err
}

func (s *Store) DeleteSyncCursor(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sync_cursors WHERE user_id=$1`, userID)
	return err
}
