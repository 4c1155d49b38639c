// Package memory provides in-memory implementations of the storage ports,
// used in tests and as a reference for the persistence semantics.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/agendo/calsync/internal/core/domain"
	"github.com/agendo/calsync/internal/core/ports/driven"
)

// Ensure ConnectionStore implements the interface.
var _ driven.ConnectionStore = (*ConnectionStore)(nil)

// ConnectionStore is an in-memory implementation of driven.ConnectionStore.
type ConnectionStore struct {
	mu          sync.RWMutex
	connections map[string]domain.Connection
}

// NewConnectionStore creates a new in-memory connection store.
func NewConnectionStore() *ConnectionStore {
	return &ConnectionStore{
		connections: make(map[string]domain.Connection),
	}
}

// Save stores or replaces the connection record for its user.
func (s *ConnectionStore) Save(_ context.Context, conn domain.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[conn.UserID] = conn
	return nil
}

// Get retrieves the connection for a user.
func (s *ConnectionStore) Get(_ context.Context, userID string) (*domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.connections[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &conn, nil
}

// GetByChannel resolves a connected connection by its webhook pair.
func (s *ConnectionStore) GetByChannel(_ context.Context, channelID, resourceID string) (*domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, conn := range s.connections {
		if conn.Connected && conn.Webhook != nil &&
			conn.Webhook.ChannelID == channelID && conn.Webhook.ResourceID == resourceID {
			c := conn
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListConnected returns all currently connected connections.
func (s *ConnectionStore) ListConnected(_ context.Context) ([]domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		if conn.Connected {
			result = append(result, conn)
		}
	}
	return result, nil
}

// SaveTokens persists a refreshed access token and its expiry.
func (s *ConnectionStore) SaveTokens(_ context.Context, userID, accessToken string, expiry time.Time) error {
	return s.update(userID, func(conn *domain.Connection) {
		conn.AccessToken = accessToken
		conn.TokenExpiry = expiry
	})
}

// SaveCursor stores the delta cursor for a user.
func (s *ConnectionStore) SaveCursor(_ context.Context, userID, cursor string) error {
	return s.update(userID, func(conn *domain.Connection) {
		conn.SyncToken = cursor
	})
}

// ClearCursor discards the stored delta cursor.
func (s *ConnectionStore) ClearCursor(_ context.Context, userID string) error {
	return s.update(userID, func(conn *domain.Connection) {
		conn.SyncToken = ""
	})
}

// SaveWebhook stores the webhook registration. A nil channel clears it.
func (s *ConnectionStore) SaveWebhook(_ context.Context, userID string, ch *domain.WebhookChannel) error {
	return s.update(userID, func(conn *domain.Connection) {
		if ch == nil {
			conn.Webhook = nil
			return
		}
		c := *ch
		conn.Webhook = &c
	})
}

// TouchLastSync records when a sync pass completed.
func (s *ConnectionStore) TouchLastSync(_ context.Context, userID string, at time.Time) error {
	return s.update(userID, func(conn *domain.Connection) {
		conn.LastSyncAt = at
	})
}

// RecordRefreshFailure increments the consecutive refresh-failure counter.
func (s *ConnectionStore) RecordRefreshFailure(_ context.Context, userID string) error {
	return s.update(userID, func(conn *domain.Connection) {
		conn.RefreshFailures++
	})
}

// ResetRefreshFailures zeroes the refresh-failure counter.
func (s *ConnectionStore) ResetRefreshFailures(_ context.Context, userID string) error {
	return s.update(userID, func(conn *domain.Connection) {
		conn.RefreshFailures = 0
	})
}

// Disconnect clears credentials, cursor and webhook registration and marks
// the connection as disconnected. The record itself is preserved.
func (s *ConnectionStore) Disconnect(_ context.Context, userID string) error {
	return s.update(userID, func(conn *domain.Connection) {
		conn.Connected = false
		conn.AccessToken = ""
		conn.RefreshToken = ""
		conn.TokenExpiry = time.Time{}
		conn.SyncToken = ""
		conn.Webhook = nil
	})
}

// ClearExpiredWebhooks removes webhook registrations whose expiration has
// passed.
func (s *ConnectionStore) ClearExpiredWebhooks(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := 0
	for id, conn := range s.connections {
		if conn.Webhook != nil && conn.Webhook.Expiration.Before(now) {
			conn.Webhook = nil
			s.connections[id] = conn
			cleared++
		}
	}
	return cleared, nil
}

func (s *ConnectionStore) update(userID string, fn func(*domain.Connection)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.connections[userID]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&conn)
	conn.UpdatedAt = time.Now()
	s.connections[userID] = conn
	return nil
}
