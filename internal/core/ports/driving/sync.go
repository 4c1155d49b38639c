package driving

import (
	"context"

	"github.com/agendo/calsync/internal/core/domain"
)

// SyncEngine drives full and incremental synchronisation against the remote
// calendar for one connection at a time.
type SyncEngine interface {
	// PerformSync runs one sync pass for a user: delta sync when a cursor
	// is stored, full windowed sync otherwise, with a single fallback from
	// delta to full when the cursor is invalidated.
	PerformSync(ctx context.Context, userID string) (*domain.SyncResult, error)

	// ManualSync is PerformSync behind a user-facing rate limit: a request
	// inside the manual window fails with domain.ErrSyncTooSoon.
	ManualSync(ctx context.Context, userID string) (*domain.SyncResult, error)
}

// Sweeper runs periodic synchronisation over all connected users.
type Sweeper interface {
	// SweepAll syncs every connected connection in small batches,
	// isolating per-connection failures and renewing webhook channels
	// close to expiry.
	SweepAll(ctx context.Context) (*domain.SweepResult, error)
}

// Pusher propagates local-origin event changes to the remote calendar.
// It is the outbound half of the loop-prevention convention: rows written
// with the sync-origin marker are never pushed.
type Pusher interface {
	// PushLocalChanges pushes a user's eligible unpushed rows to the
	// remote, recording each assigned external id. Returns how many rows
	// were pushed.
	PushLocalChanges(ctx context.Context, userID string) (int, error)

	// PushDelete removes a pushed row's remote counterpart. A remote
	// "already gone" answer counts as success.
	PushDelete(ctx context.Context, userID, externalID string) error
}
