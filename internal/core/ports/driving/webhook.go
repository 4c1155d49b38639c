package driving

import (
	"context"

	"github.com/agendo/calsync/internal/core/domain"
)

// WebhookDispatcher handles inbound push notifications from the provider.
type WebhookDispatcher interface {
	// Receive validates a notification, resolves its connection,
	// deduplicates against the last sync time and, when warranted, starts
	// a detached sync. The returned outcome is for observability; only
	// DispatchRejected maps to a client error on the HTTP surface — every
	// other outcome is acknowledged as success to keep the provider from
	// disabling the channel.
	Receive(ctx context.Context, n domain.Notification) (domain.DispatchOutcome, error)
}
