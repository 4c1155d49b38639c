package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agendo/calsync/internal/core/domain"
	"github.com/agendo/calsync/internal/core/ports/driven"
	"github.com/agendo/calsync/internal/logger"
)

// tokenRefreshMargin is the safety window before expiry inside which the
// stored access token is no longer trusted and a refresh is attempted.
const tokenRefreshMargin = 5 * time.Minute

// TokenSource yields a usable access token for a user, refreshing it with
// the provider when the stored one is about to expire.
type TokenSource interface {
	ValidAccessToken(ctx context.Context, userID string) (string, error)
}

// Ensure TokenManager implements the interface.
var _ TokenSource = (*TokenManager)(nil)

// TokenManager maintains the access-token lifecycle for connections.
//
// There is no refresh lock: concurrent callers for the same user may each
// trigger a refresh, and the last persisted result wins. The provider keeps
// earlier refresh tokens valid, so this is safe.
type TokenManager struct {
	connections driven.ConnectionStore
	endpoint    driven.TokenEndpoint

	now func() time.Time
}

// NewTokenManager creates a token manager over the given stores.
func NewTokenManager(connections driven.ConnectionStore, endpoint driven.TokenEndpoint) *TokenManager {
	return &TokenManager{
		connections: connections,
		endpoint:    endpoint,
		now:         time.Now,
	}
}

// ValidAccessToken returns an access token usable for at least the refresh
// margin. It refreshes through the token endpoint when the stored token is
// within the margin of expiry, persisting the new token and expiry.
//
// Returns domain.ErrNotConnected when the user has no usable connection and
// a wrapped domain.ErrAuthFailed when the refresh is rejected. Each failed
// refresh increments the connection's failure counter; any success resets it.
func (m *TokenManager) ValidAccessToken(ctx context.Context, userID string) (string, error) {
	conn, err := m.connections.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrNotConnected
	}
	if err != nil {
		return "", fmt.Errorf("get connection: %w", err)
	}
	if !conn.Connected || conn.RefreshToken == "" {
		return "", domain.ErrNotConnected
	}

	now := m.now()
	if conn.TokenValidFor(now, tokenRefreshMargin) {
		if conn.RefreshFailures > 0 {
			if err := m.connections.ResetRefreshFailures(ctx, userID); err != nil {
				logger.Warn("Failed to reset refresh failures for %s: %v", userID, err)
			}
		}
		return conn.AccessToken, nil
	}

	logger.Debug("Access token for %s expires at %s, refreshing", userID, conn.TokenExpiry.Format(time.RFC3339))

	grant, err := m.endpoint.Refresh(ctx, conn.RefreshToken)
	if err != nil {
		if rerr := m.connections.RecordRefreshFailure(ctx, userID); rerr != nil {
			logger.Warn("Failed to record refresh failure for %s: %v", userID, rerr)
		}
		return "", fmt.Errorf("%w: refresh token: %w", domain.ErrAuthFailed, err)
	}

	if err := m.connections.SaveTokens(ctx, userID, grant.AccessToken, grant.Expiry); err != nil {
		return "", fmt.Errorf("save refreshed token: %w", err)
	}
	if err := m.connections.ResetRefreshFailures(ctx, userID); err != nil {
		logger.Warn("Failed to reset refresh failures for %s: %v", userID, err)
	}

	return grant.AccessToken, nil
}
