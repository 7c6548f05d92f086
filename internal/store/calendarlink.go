package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"agenda-service/internal/apperr"
	"agenda-service/internal/model"
)

const linkColumns = `user_id, access_token, refresh_token, token_expiry, status, calendar_id,
       COALESCE(webhook_channel_id, ''), COALESCE(webhook_resource_id, ''),
       COALESCE(webhook_expires_at, 'epoch'::timestamptz), sync_enabled, created_at, updated_at`

func scanLink(row pgx.Row) (*model.CalendarLink, error) {
	l := &model.CalendarLink{}
	err := row.Scan(&l.UserID, &l.AccessToken, &l.RefreshToken, &l.TokenExpiry,
		&l.Status, &l.CalendarID, &l.WebhookChannelID, &l.WebhookResource,
		&l.WebhookExpiresAt, &l.SyncEnabled, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// SaveCalendarLink upserts the link created or refreshed by the
// authorization manager.
func (s *Store) SaveCalendarLink(ctx context.Context, l *model.CalendarLink) error {
	q := `INSERT INTO calendar_links
	      (user_id, access_token, refresh_token, token_expiry, status, calendar_id, sync_enabled, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
	      ON CONFLICT (user_id)
	      DO UPDATE SET access_token=$2, refresh_token=$3, token_expiry=$4, status=$5,
	                    calendar_id=$6, sync_enabled=$7, updated_at=now()`
	_, err := s.pool.Exec(ctx, q, l.UserID, l.AccessToken, l.RefreshToken,
		l.TokenExpiry, l.Status, l.CalendarID, l.SyncEnabled)
	return err
}

func (s *Store) GetCalendarLink(ctx context.Context, userID string) (*model.CalendarLink, error) {
	q := `SELECT ` + linkColumns + ` FROM calendar_links WHERE user_id=$1`
	return scanLink(s.pool.QueryRow(ctx, q, userID))
}

func (s *Store) UpdateLinkTokens(ctx context.Context, userID, accessToken, refreshToken string, expiry time.Time) error {
	q := `UPDATE calendar_links
	      SET access_token=$2, refresh_token=$3, token_expiry=$4, status='active', updated_at=now()
	      WHERE user_id=$1`
	tag, err := s.pool.Exec(ctx, q, userID, accessToken, refreshToken, expiry)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *Store) SetLinkStatus(ctx context.Context, userID, status string) error {
	q := `UPDATE calendar_links SET status=$2, updated_at=now() WHERE user_id=$1`
	tag, err := s.pool.Exec(ctx, q, userID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *Store) SetLinkWebhook(ctx context.Context, userID, channelID, resourceID string, expiresAt time.Time) error {
	q := `UPDATE calendar_links
	      SET webhook_channel_id=$2, webhook_resource_id=$3, webhook_expires_at=$4, updated_at=now()
	      WHERE user_id=$1`
	tag, err := s.pool.Exec(ctx, q, userID, nullable(channelID), nullable(resourceID), expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteCalendarLink(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM calendar_links WHERE user_id=$1`, userID)
	return err
}

// GetLinkByChannel resolves a webhook notification back to its link.
func (s *Store) GetLinkByChannel(ctx context.Context, channelID string) (*model.CalendarLink, error) {
	q := `SELECT ` + linkColumns + ` FROM calendar_links WHERE webhook_channel_id=$1`
	return scanLink(s.pool.QueryRow(ctx, q, channelID))
}

// ListSyncableLinks returns active links with sync enabled, for the
// reconciler's renewal and polling loops.
func (s *Store) ListSyncableLinks(ctx context.Context) ([]model.CalendarLink, error) {
	q := `SELECT ` + linkColumns + ` FROM calendar_links WHERE status='active' AND sync_enabled`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CalendarLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
