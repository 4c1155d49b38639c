package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agendo/calsync/internal/core/domain"
)

// Timestamps are stored as RFC 3339 text so the schema stays portable
// across drivers.
func timeArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// connectionStore implements driven.ConnectionStore.
type connectionStore struct {
	store *Store
}

const connectionColumns = `user_id, connected, access_token, refresh_token, token_expiry, email,
	sync_token, webhook_channel_id, webhook_resource_id, webhook_expiration,
	last_sync_at, refresh_failures, created_at, updated_at`

func (c *connectionStore) Save(ctx context.Context, conn domain.Connection) error {
	var channelID, resourceID any
	var expiration any
	if conn.Webhook != nil {
		channelID = conn.Webhook.ChannelID
		resourceID = conn.Webhook.ResourceID
		expiration = timeArg(conn.Webhook.Expiration)
	}
	now := time.Now()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}

	_, err := c.store.db.ExecContext(ctx, `
		INSERT INTO connections (`+connectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			connected = excluded.connected,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expiry = excluded.token_expiry,
			email = excluded.email,
			sync_token = excluded.sync_token,
			webhook_channel_id = excluded.webhook_channel_id,
			webhook_resource_id = excluded.webhook_resource_id,
			webhook_expiration = excluded.webhook_expiration,
			last_sync_at = excluded.last_sync_at,
			refresh_failures = excluded.refresh_failures,
			updated_at = excluded.updated_at`,
		conn.UserID, conn.Connected, conn.AccessToken, conn.RefreshToken,
		timeArg(conn.TokenExpiry), conn.Email, conn.SyncToken,
		channelID, resourceID, expiration,
		timeArg(conn.LastSyncAt), conn.RefreshFailures,
		timeArg(conn.CreatedAt), timeArg(now),
	)
	if err != nil {
		return fmt.Errorf("saving connection: %w", err)
	}
	return nil
}

func (c *connectionStore) Get(ctx context.Context, userID string) (*domain.Connection, error) {
	row := c.store.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE user_id = ?`, userID)
	return scanConnection(row)
}

func (c *connectionStore) GetByChannel(ctx context.Context, channelID, resourceID string) (*domain.Connection, error) {
	row := c.store.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM connections
		 WHERE webhook_channel_id = ? AND webhook_resource_id = ? AND connected = 1`,
		channelID, resourceID)
	return scanConnection(row)
}

func (c *connectionStore) ListConnected(ctx context.Context) ([]domain.Connection, error) {
	rows, err := c.store.db.QueryContext(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE connected = 1 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	defer rows.Close()

	var result []domain.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *conn)
	}
	return result, rows.Err()
}

func (c *connectionStore) SaveTokens(ctx context.Context, userID, accessToken string, expiry time.Time) error {
	return c.exec(ctx,
		`UPDATE connections SET access_token = ?, token_expiry = ?, updated_at = ? WHERE user_id = ?`,
		accessToken, timeArg(expiry), timeArg(time.Now()), userID)
}

func (c *connectionStore) SaveCursor(ctx context.Context, userID, cursor string) error {
	return c.exec(ctx,
		`UPDATE connections SET sync_token = ?, updated_at = ? WHERE user_id = ?`,
		cursor, timeArg(time.Now()), userID)
}

func (c *connectionStore) ClearCursor(ctx context.Context, userID string) error {
	return c.SaveCursor(ctx, userID, "")
}

func (c *connectionStore) SaveWebhook(ctx context.Context, userID string, ch *domain.WebhookChannel) error {
	var channelID, resourceID, expiration any
	if ch != nil {
		channelID = ch.ChannelID
		resourceID = ch.ResourceID
		expiration = timeArg(ch.Expiration)
	}
	return c.exec(ctx,
		`UPDATE connections SET webhook_channel_id = ?, webhook_resource_id = ?,
		 webhook_expiration = ?, updated_at = ? WHERE user_id = ?`,
		channelID, resourceID, expiration, timeArg(time.Now()), userID)
}

func (c *connectionStore) TouchLastSync(ctx context.Context, userID string, at time.Time) error {
	return c.exec(ctx,
		`UPDATE connections SET last_sync_at = ?, updated_at = ? WHERE user_id = ?`,
		timeArg(at), timeArg(time.Now()), userID)
}

func (c *connectionStore) RecordRefreshFailure(ctx context.Context, userID string) error {
	return c.exec(ctx,
		`UPDATE connections SET refresh_failures = refresh_failures + 1, updated_at = ? WHERE user_id = ?`,
		timeArg(time.Now()), userID)
}

func (c *connectionStore) ResetRefreshFailures(ctx context.Context, userID string) error {
	return c.exec(ctx,
		`UPDATE connections SET refresh_failures = 0, updated_at = ? WHERE user_id = ?`,
		timeArg(time.Now()), userID)
}

func (c *connectionStore) Disconnect(ctx context.Context, userID string) error {
	return c.exec(ctx,
		`UPDATE connections SET connected = 0, access_token = '', refresh_token = '',
		 token_expiry = NULL, sync_token = '', webhook_channel_id = NULL,
		 webhook_resource_id = NULL, webhook_expiration = NULL, updated_at = ?
		 WHERE user_id = ?`,
		timeArg(time.Now()), userID)
}

func (c *connectionStore) ClearExpiredWebhooks(ctx context.Context, now time.Time) (int, error) {
	res, err := c.store.db.ExecContext(ctx,
		`UPDATE connections SET webhook_channel_id = NULL, webhook_resource_id = NULL,
		 webhook_expiration = NULL, updated_at = ?
		 WHERE webhook_expiration IS NOT NULL AND webhook_expiration < ?`,
		timeArg(time.Now()), timeArg(now))
	if err != nil {
		return 0, fmt.Errorf("clearing expired webhooks: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (c *connectionStore) exec(ctx context.Context, query string, args ...any) error {
	res, err := c.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating connection: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanConnection(row scanner) (*domain.Connection, error) {
	var conn domain.Connection
	var tokenExpiry, lastSync, createdAt, updatedAt sql.NullString
	var channelID, resourceID sql.NullString
	var expiration sql.NullString

	err := row.Scan(
		&conn.UserID, &conn.Connected, &conn.AccessToken, &conn.RefreshToken,
		&tokenExpiry, &conn.Email, &conn.SyncToken,
		&channelID, &resourceID, &expiration,
		&lastSync, &conn.RefreshFailures, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning connection: %w", err)
	}

	conn.TokenExpiry = parseTime(tokenExpiry)
	conn.LastSyncAt = parseTime(lastSync)
	conn.CreatedAt = parseTime(createdAt)
	conn.UpdatedAt = parseTime(updatedAt)
	if channelID.Valid && channelID.String != "" {
		conn.Webhook = &domain.WebhookChannel{
			ChannelID:  channelID.String,
			ResourceID: resourceID.String,
			Expiration: parseTime(expiration),
		}
	}
	return &conn, nil
}
