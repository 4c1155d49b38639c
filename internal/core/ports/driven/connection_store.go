package driven

import (
	"context"
	"time"

	"github.com/agendo/calsync/internal/core/domain"
)

// ConnectionStore persists connection records: one per user.
// Implementations are responsible for encrypting tokens at rest.
type ConnectionStore interface {
	// Save stores or replaces the connection record for its user.
	Save(ctx context.Context, conn domain.Connection) error

	// Get retrieves the connection for a user.
	// Returns domain.ErrNotFound when no record exists.
	Get(ctx context.Context, userID string) (*domain.Connection, error)

	// GetByChannel resolves a connected connection by exact match on the
	// webhook (channel id, resource id) pair.
	// Returns domain.ErrNotFound when no connected record matches.
	GetByChannel(ctx context.Context, channelID, resourceID string) (*domain.Connection, error)

	// ListConnected returns all currently connected connections.
	ListConnected(ctx context.Context) ([]domain.Connection, error)

	// SaveTokens persists a refreshed access token and its expiry.
	SaveTokens(ctx context.Context, userID, accessToken string, expiry time.Time) error

	// SaveCursor stores the delta cursor for a user.
	SaveCursor(ctx context.Context, userID, cursor string) error

	// ClearCursor discards the stored delta cursor.
	ClearCursor(ctx context.Context, userID string) error

	// SaveWebhook stores the webhook registration. A nil channel clears it.
	SaveWebhook(ctx context.Context, userID string, ch *domain.WebhookChannel) error

	// TouchLastSync records when a sync pass completed.
	TouchLastSync(ctx context.Context, userID string, at time.Time) error

	// RecordRefreshFailure increments the consecutive refresh-failure
	// counter. The counter is append-only from the core's perspective.
	RecordRefreshFailure(ctx context.Context, userID string) error

	// ResetRefreshFailures zeroes the refresh-failure counter.
	ResetRefreshFailures(ctx context.Context, userID string) error

	// Disconnect clears credentials, cursor and webhook registration and
	// marks the connection as disconnected. The record itself is preserved.
	Disconnect(ctx context.Context, userID string) error

	// ClearExpiredWebhooks removes webhook registrations whose expiration
	// has passed, returning how many were cleared.
	ClearExpiredWebhooks(ctx context.Context, now time.Time) (int, error)
}
