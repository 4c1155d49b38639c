package driven

import (
	"context"
	"time"

	"github.com/agendo/calsync/internal/core/domain"
)

// EventStore persists local event rows, keyed by (user, external id) for
// remote-origin rows.
//
// The SyncOrigin field on a written event is the loop-prevention marker: it
// travels with the write call so that any local change trigger layered on
// the store can skip re-pushing remote-origin writes. Implementations must
// not persist it as row state.
type EventStore interface {
	// GetByExternalID retrieves the event row for a user's external id.
	// Returns domain.ErrNotFound when no row exists.
	GetByExternalID(ctx context.Context, userID, externalID string) (*domain.Event, error)

	// Insert creates a new event row. An empty ID is assigned by the store.
	Insert(ctx context.Context, event *domain.Event) error

	// Update rewrites an existing event row, matched by its local ID.
	Update(ctx context.Context, event *domain.Event) error

	// DeleteByExternalID removes the row for a user's external id.
	// Deleting an absent row is a no-op, not an error.
	DeleteByExternalID(ctx context.Context, userID, externalID string) error

	// DeleteRemoteOrigin removes all rows carrying an external id for a
	// user, returning how many were removed. Local-only rows are preserved.
	// Used on disconnect.
	DeleteRemoteOrigin(ctx context.Context, userID string) (int, error)

	// ListWindow returns a user's active rows relevant to a time window:
	// rows overlapping it plus all recurrence masters (whose occurrences
	// may fall inside regardless of the master's own span).
	ListWindow(ctx context.Context, userID string, from, to time.Time) ([]domain.Event, error)

	// ListUnpushed returns a user's active local-origin rows that have
	// never been pushed to the remote (no external id).
	ListUnpushed(ctx context.Context, userID string) ([]domain.Event, error)

	// SetExternalID records the remote id assigned to a pushed row, making
	// it ineligible for a second push.
	SetExternalID(ctx context.Context, eventID, externalID string) error
}
