package services

import (
	"context"
	"fmt"
	"time"

	"github.com/agendo/calsync/internal/core/domain"
	"github.com/agendo/calsync/internal/core/ports/driven"
	"github.com/agendo/calsync/internal/core/ports/driving"
	"github.com/agendo/calsync/internal/logger"
)

// Ensure PushService implements the interface.
var _ driving.Pusher = (*PushService)(nil)

// PushService propagates local-origin event changes to the remote calendar.
//
// It is the outbound half of loop prevention: rows written by a merge carry
// the sync-origin marker and are never pushed, and a row becomes ineligible
// for a second create push the moment its external id is recorded.
type PushService struct {
	events driven.EventStore
	api    driven.CalendarAPI
	tokens TokenSource
}

// NewPushService creates a push service over the given ports.
func NewPushService(events driven.EventStore, api driven.CalendarAPI, tokens TokenSource) *PushService {
	return &PushService{events: events, api: api, tokens: tokens}
}

// PushLocalChanges creates remote counterparts for the user's unpushed
// local rows. Per-row failures are logged and skipped; the assigned remote
// id is recorded on each success.
func (p *PushService) PushLocalChanges(ctx context.Context, userID string) (int, error) {
	token, err := p.tokens.ValidAccessToken(ctx, userID)
	if err != nil {
		return 0, err
	}

	rows, err := p.events.ListUnpushed(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list unpushed: %w", err)
	}

	pushed := 0
	for i := range rows {
		row := &rows[i]
		if row.SyncOrigin || row.Pushed() {
			continue
		}

		externalID, err := p.api.Insert(ctx, token, remoteFromEvent(row))
		if err != nil {
			logger.Warn("Failed to push event %s for %s: %v", row.ID, userID, err)
			continue
		}
		if err := p.events.SetExternalID(ctx, row.ID, externalID); err != nil {
			// The remote copy exists but the link was lost; the next merge
			// of the remote item will land as a separate row.
			logger.Error("Failed to record external id for event %s: %v", row.ID, err)
			continue
		}
		pushed++
	}
	return pushed, nil
}

// PushDelete removes a pushed row's remote counterpart. The calendar
// adapter reports an already-deleted remote event as success, so the call
// is idempotent.
func (p *PushService) PushDelete(ctx context.Context, userID, externalID string) error {
	token, err := p.tokens.ValidAccessToken(ctx, userID)
	if err != nil {
		return err
	}
	if err := p.api.Delete(ctx, token, externalID); err != nil {
		return fmt.Errorf("delete remote event: %w", err)
	}
	return nil
}

// remoteFromEvent converts a local row into the provider's representation.
func remoteFromEvent(e *domain.Event) *driven.RemoteEvent {
	remote := &driven.RemoteEvent{
		Summary:     e.Title,
		Description: e.Description,
		Start: driven.RemoteEventTime{
			DateTime: e.StartsAt.Format(time.RFC3339),
			TimeZone: e.Timezone,
		},
		End: driven.RemoteEventTime{
			DateTime: e.EndsAt.Format(time.RFC3339),
			TimeZone: e.Timezone,
		},
	}
	if e.Recurring && e.RRule != "" {
		remote.Recurrence = []string{"RRULE:" + e.RRule}
	}
	return remote
}
