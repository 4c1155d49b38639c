package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agendo/calsync/internal/core/domain"
	"github.com/agendo/calsync/internal/core/ports/driven"
	"github.com/agendo/calsync/internal/core/ports/driving"
	"github.com/agendo/calsync/internal/logger"
	"github.com/agendo/calsync/internal/recurrence"
)

const (
	// syncPageSize caps the items per listing page.
	syncPageSize = 250

	// instanceFetchCap bounds the expanded instances fetched for one
	// recurring master.
	instanceFetchCap = 366

	// manualSyncWindow is the user-facing rate limit between manual syncs.
	manualSyncWindow = 5 * time.Minute
)

// syncWindow returns the bounded time window for full syncs and instance
// fetches: one month back to six months ahead.
func syncWindow(now time.Time) (time.Time, time.Time) {
	return now.AddDate(0, -1, 0), now.AddDate(0, 6, 0)
}

// Ensure SyncEngine implements the interface.
var _ driving.SyncEngine = (*SyncEngine)(nil)

// SyncEngine pulls remote calendar changes into the local event store.
//
// Each connection moves through a three-state cursor machine: no cursor
// (full windowed sync), valid cursor (delta sync) and invalidated cursor
// (cleared, then one full-sync fallback within the same invocation).
type SyncEngine struct {
	connections driven.ConnectionStore
	events      driven.EventStore
	api         driven.CalendarAPI
	tokens      TokenSource

	now func() time.Time
}

// NewSyncEngine creates a sync engine over the given ports.
func NewSyncEngine(
	connections driven.ConnectionStore,
	events driven.EventStore,
	api driven.CalendarAPI,
	tokens TokenSource,
) *SyncEngine {
	return &SyncEngine{
		connections: connections,
		events:      events,
		api:         api,
		tokens:      tokens,
		now:         time.Now,
	}
}

// PerformSync runs one sync pass for a user. A stored cursor selects the
// delta path; a cursor the provider has invalidated is cleared and the pass
// completes through a single full-sync fallback, never recursing.
func (s *SyncEngine) PerformSync(ctx context.Context, userID string) (*domain.SyncResult, error) {
	conn, err := s.connections.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	if !conn.Connected {
		return nil, domain.ErrNotConnected
	}

	token, err := s.tokens.ValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	var result *domain.SyncResult
	if conn.HasCursor() {
		result, err = s.deltaSync(ctx, token, conn)
		if domain.IsCursorInvalidated(err) {
			logger.Warn("Sync cursor invalidated for %s, falling back to full sync", userID)
			if cerr := s.connections.ClearCursor(ctx, userID); cerr != nil {
				return nil, fmt.Errorf("clear cursor: %w", cerr)
			}
			result, err = s.fullSync(ctx, token, userID)
		}
	} else {
		result, err = s.fullSync(ctx, token, userID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.connections.TouchLastSync(ctx, userID, s.now()); err != nil {
		logger.Warn("Failed to record last sync for %s: %v", userID, err)
	}

	logger.Info("Sync for %s: %d imported, %d updated, %d deleted, %d skipped, %d errors",
		userID, result.Imported, result.Updated, result.Deleted, result.Skipped, len(result.Errors))
	return result, nil
}

// ManualSync is PerformSync behind the manual rate limit.
func (s *SyncEngine) ManualSync(ctx context.Context, userID string) (*domain.SyncResult, error) {
	conn, err := s.connections.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	if conn.SyncedWithin(s.now(), manualSyncWindow) {
		return nil, domain.ErrSyncTooSoon
	}
	return s.PerformSync(ctx, userID)
}

// fullSync pages through the bounded window with provider-side instance
// expansion, so recurring events arrive as concrete instances. The cursor
// returned on the final page becomes the stored delta cursor.
func (s *SyncEngine) fullSync(ctx context.Context, token, userID string) (*domain.SyncResult, error) {
	result := &domain.SyncResult{FullSync: true}
	from, to := syncWindow(s.now())

	query := driven.ListQuery{
		TimeMin:          from,
		TimeMax:          to,
		SingleEvents:     true,
		OrderByStartTime: true,
		ShowDeleted:      true,
		MaxResults:       syncPageSize,
	}

	for {
		page, err := s.api.List(ctx, token, query)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}

		for i := range page.Items {
			s.mergeTolerant(ctx, userID, &page.Items[i], result)
		}

		if page.NextPageToken == "" {
			if page.NextSyncToken != "" {
				if err := s.connections.SaveCursor(ctx, userID, page.NextSyncToken); err != nil {
					return nil, fmt.Errorf("save cursor: %w", err)
				}
			}
			return result, nil
		}
		query.PageToken = page.NextPageToken
	}
}

// deltaSync pages through changes since the stored cursor. The cursor query
// carries no time window and no instance expansion (the provider rejects
// either combination), so recurring masters arrive whole and their window
// instances are fetched separately.
func (s *SyncEngine) deltaSync(ctx context.Context, token string, conn *domain.Connection) (*domain.SyncResult, error) {
	result := &domain.SyncResult{}
	from, to := syncWindow(s.now())

	query := driven.ListQuery{
		SyncToken:   conn.SyncToken,
		ShowDeleted: true,
		MaxResults:  syncPageSize,
	}

	for {
		page, err := s.api.List(ctx, token, query)
		if err != nil {
			return nil, fmt.Errorf("list changes: %w", err)
		}

		for i := range page.Items {
			item := &page.Items[i]
			s.mergeTolerant(ctx, conn.UserID, item, result)

			if item.RecurringMaster() && !item.Cancelled() {
				s.mergeInstances(ctx, token, conn.UserID, item.ID, from, to, result)
			}
		}

		if page.NextPageToken == "" {
			if page.NextSyncToken != "" {
				if err := s.connections.SaveCursor(ctx, conn.UserID, page.NextSyncToken); err != nil {
					return nil, fmt.Errorf("save cursor: %w", err)
				}
			}
			return result, nil
		}
		query.PageToken = page.NextPageToken
	}
}

// mergeInstances fetches a recurring master's expanded instances for the
// bounded window and merges each. The fetch is capped rather than
// paginated; a failure is confined to the master it belongs to.
func (s *SyncEngine) mergeInstances(ctx context.Context, token, userID, eventID string, from, to time.Time, result *domain.SyncResult) {
	page, err := s.api.Instances(ctx, token, eventID, from, to, instanceFetchCap)
	if err != nil {
		logger.Warn("Failed to fetch instances of %s: %v", eventID, err)
		result.Errors = append(result.Errors, fmt.Sprintf("instances of %s: %v", eventID, err))
		return
	}
	for i := range page.Items {
		s.mergeTolerant(ctx, userID, &page.Items[i], result)
	}
}

// mergeTolerant applies one remote item, recording a failure on the result
// instead of aborting the pass.
func (s *SyncEngine) mergeTolerant(ctx context.Context, userID string, item *driven.RemoteEvent, result *domain.SyncResult) {
	if err := s.merge(ctx, userID, item, result); err != nil {
		logger.Warn("Failed to merge event %s for %s: %v", item.ID, userID, err)
		result.Errors = append(result.Errors, fmt.Sprintf("event %s: %v", item.ID, err))
	}
}

// merge applies one remote item to the local store. Every write it performs
// carries the sync-origin marker so the push path never echoes it back.
func (s *SyncEngine) merge(ctx context.Context, userID string, item *driven.RemoteEvent, result *domain.SyncResult) error {
	if item.Cancelled() {
		_, err := s.events.GetByExternalID(ctx, userID, item.ID)
		if errors.Is(err, domain.ErrNotFound) {
			result.Skipped++
			return nil
		}
		if err != nil {
			return fmt.Errorf("lookup for delete: %w", err)
		}
		if err := s.events.DeleteByExternalID(ctx, userID, item.ID); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		result.Deleted++
		return nil
	}

	// All-day items carry a date without an instant and are out of scope.
	if !item.Start.Timed() || !item.End.Timed() {
		result.Skipped++
		return nil
	}

	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return fmt.Errorf("parse start %q: %w", item.Start.DateTime, err)
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return fmt.Errorf("parse end %q: %w", item.End.DateTime, err)
	}

	rrule := ""
	if item.RecurringMaster() {
		rrule = recurrence.Normalise(item.Recurrence, start)
	}

	existing, err := s.events.GetByExternalID(ctx, userID, item.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("lookup: %w", err)
	}

	if existing == nil {
		event := &domain.Event{
			UserID:       userID,
			ExternalID:   item.ID,
			Title:        item.Summary,
			Description:  item.Description,
			StartsAt:     start,
			EndsAt:       end,
			Timezone:     item.Start.TimeZone,
			CreatorEmail: item.CreatorEmail,
			Active:       true,
			SyncOrigin:   true,
		}
		if rrule != "" {
			event.Recurring = true
			event.RRule = rrule
			event.ExDates = recurrence.ExDates(item.Recurrence, start)
			if rule, perr := recurrence.Parse(rrule); perr == nil {
				event.RepeatsUntil = rule.Until
				event.NextOccurrence = rule.Next(start, s.now())
			} else {
				logger.Warn("Stored unparseable rule for event %s: %v", item.ID, perr)
			}
		}
		if err := s.events.Insert(ctx, event); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		result.Imported++
		return nil
	}

	changed := existing.Title != item.Summary ||
		existing.Description != item.Description ||
		!existing.StartsAt.Equal(start) ||
		!existing.EndsAt.Equal(end) ||
		existing.RRule != rrule
	if !changed {
		result.Skipped++
		return nil
	}

	existing.Title = item.Summary
	existing.Description = item.Description
	existing.StartsAt = start
	existing.EndsAt = end
	existing.Timezone = item.Start.TimeZone
	existing.CreatorEmail = item.CreatorEmail
	existing.Recurring = rrule != ""
	existing.RRule = rrule
	existing.SyncOrigin = true
	if rrule != "" {
		existing.ExDates = recurrence.ExDates(item.Recurrence, start)
		if rule, perr := recurrence.Parse(rrule); perr == nil {
			existing.RepeatsUntil = rule.Until
			existing.NextOccurrence = rule.Next(start, s.now())
		}
	} else {
		existing.RepeatsUntil = nil
		existing.ExDates = nil
		existing.NextOccurrence = nil
	}
	if err := s.events.Update(ctx, existing); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	result.Updated++
	return nil
}
