package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agendo/calsync/internal/core/domain"
	"github.com/agendo/calsync/internal/core/ports/driven"
)

// Ensure EventStore implements the interface.
var _ driven.EventStore = (*EventStore)(nil)

// EventStore is an in-memory implementation of driven.EventStore.
//
// The sync-origin marker on written events is transient and dropped before
// the row is stored, mirroring the persistence contract.
type EventStore struct {
	mu     sync.RWMutex
	events map[string]domain.Event
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		events: make(map[string]domain.Event),
	}
}

// GetByExternalID retrieves the event row for a user's external id.
func (s *EventStore) GetByExternalID(_ context.Context, userID, externalID string) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, event := range s.events {
		if event.UserID == userID && event.ExternalID == externalID && externalID != "" {
			e := event
			return &e, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Insert creates a new event row, assigning an ID when empty.
func (s *EventStore) Insert(_ context.Context, event *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if _, exists := s.events[event.ID]; exists {
		return domain.ErrAlreadyExists
	}
	row := *event
	row.SyncOrigin = false
	row.CreatedAt = time.Now()
	row.UpdatedAt = row.CreatedAt
	s.events[row.ID] = row
	return nil
}

// Update rewrites an existing event row, matched by its local ID.
func (s *EventStore) Update(_ context.Context, event *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.events[event.ID]
	if !ok {
		return domain.ErrNotFound
	}
	row := *event
	row.SyncOrigin = false
	row.CreatedAt = existing.CreatedAt
	row.UpdatedAt = time.Now()
	s.events[row.ID] = row
	return nil
}

// DeleteByExternalID removes the row for a user's external id. Deleting an
// absent row is a no-op.
func (s *EventStore) DeleteByExternalID(_ context.Context, userID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, event := range s.events {
		if event.UserID == userID && event.ExternalID == externalID && externalID != "" {
			delete(s.events, id)
			return nil
		}
	}
	return nil
}

// DeleteRemoteOrigin removes all rows carrying an external id for a user.
func (s *EventStore) DeleteRemoteOrigin(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, event := range s.events {
		if event.UserID == userID && event.ExternalID != "" {
			delete(s.events, id)
			removed++
		}
	}
	return removed, nil
}

// ListWindow returns a user's active rows overlapping the window plus all
// recurrence masters.
func (s *EventStore) ListWindow(_ context.Context, userID string, from, to time.Time) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Event
	for _, event := range s.events {
		if event.UserID != userID || !event.Active {
			continue
		}
		if event.Recurring || (event.StartsAt.Before(to) && event.EndsAt.After(from)) {
			result = append(result, event)
		}
	}
	return result, nil
}

// ListUnpushed returns a user's active rows that have never been pushed.
func (s *EventStore) ListUnpushed(_ context.Context, userID string) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Event
	for _, event := range s.events {
		if event.UserID == userID && event.Active && event.ExternalID == "" {
			result = append(result, event)
		}
	}
	return result, nil
}

// SetExternalID records the remote id assigned to a pushed row.
func (s *EventStore) SetExternalID(_ context.Context, eventID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return domain.ErrNotFound
	}
	event.ExternalID = externalID
	event.UpdatedAt = time.Now()
	s.events[eventID] = event
	return nil
}
