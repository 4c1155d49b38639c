package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendo/calsync/internal/adapters/driven/storage/memory"
	"github.com/agendo/calsync/internal/core/domain"
	"github.com/agendo/calsync/internal/core/ports/driven"
)

// mockTokenEndpoint implements driven.TokenEndpoint for testing.
type mockTokenEndpoint struct {
	exchangeGrant *driven.TokenGrant
	exchangeErr   error
	refreshGrant  *driven.TokenGrant
	refreshErr    error
	refreshCalls  int
	revoked       []string
}

func (m *mockTokenEndpoint) Exchange(_ context.Context, _ string) (*driven.TokenGrant, error) {
	if m.exchangeErr != nil {
		return nil, m.exchangeErr
	}
	return m.exchangeGrant, nil
}

func (m *mockTokenEndpoint) Refresh(_ context.Context, _ string) (*driven.TokenGrant, error) {
	m.refreshCalls++
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return m.refreshGrant, nil
}

func (m *mockTokenEndpoint) Revoke(_ context.Context, token string) error {
	m.revoked = append(m.revoked, token)
	return nil
}

func newTokenFixture(t *testing.T, conn *domain.Connection, endpoint *mockTokenEndpoint, now time.Time) (*TokenManager, *memory.ConnectionStore) {
	t.Helper()
	store := memory.NewConnectionStore()
	if conn != nil {
		require.NoError(t, store.Save(context.Background(), *conn))
	}
	manager := NewTokenManager(store, endpoint)
	manager.now = func() time.Time { return now }
	return manager, store
}

func TestValidAccessToken_NoConnection(t *testing.T) {
	manager, _ := newTokenFixture(t, nil, &mockTokenEndpoint{}, time.Now())

	_, err := manager.ValidAccessToken(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestValidAccessToken_Disconnected(t *testing.T) {
	conn := &domain.Connection{UserID: "u1", Connected: false, RefreshToken: "rt"}
	manager, _ := newTokenFixture(t, conn, &mockTokenEndpoint{}, time.Now())

	_, err := manager.ValidAccessToken(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestValidAccessToken_WithinMargin_NoRefresh(t *testing.T) {
	now := time.Now()
	endpoint := &mockTokenEndpoint{}
	conn := &domain.Connection{
		UserID:       "u1",
		Connected:    true,
		AccessToken:  "stored",
		RefreshToken: "rt",
		TokenExpiry:  now.Add(30 * time.Minute),
	}
	manager, _ := newTokenFixture(t, conn, endpoint, now)

	token, err := manager.ValidAccessToken(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "stored", token)
	assert.Equal(t, 0, endpoint.refreshCalls)
}

func TestValidAccessToken_NearExpiry_Refreshes(t *testing.T) {
	now := time.Now()
	endpoint := &mockTokenEndpoint{
		refreshGrant: &driven.TokenGrant{
			AccessToken: "fresh",
			Expiry:      now.Add(time.Hour),
		},
	}
	conn := &domain.Connection{
		UserID:          "u1",
		Connected:       true,
		AccessToken:     "stale",
		RefreshToken:    "rt",
		TokenExpiry:     now.Add(2 * time.Minute),
		RefreshFailures: 3,
	}
	manager, store := newTokenFixture(t, conn, endpoint, now)

	token, err := manager.ValidAccessToken(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	assert.Equal(t, 1, endpoint.refreshCalls)

	saved, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.AccessToken)
	assert.Equal(t, now.Add(time.Hour), saved.TokenExpiry)
	assert.Equal(t, 0, saved.RefreshFailures)
}

func TestValidAccessToken_RefreshFails(t *testing.T) {
	now := time.Now()
	endpoint := &mockTokenEndpoint{refreshErr: errors.New("invalid_grant")}
	conn := &domain.Connection{
		UserID:       "u1",
		Connected:    true,
		AccessToken:  "stale",
		RefreshToken: "rt",
		TokenExpiry:  now.Add(-time.Minute),
	}
	manager, store := newTokenFixture(t, conn, endpoint, now)

	_, err := manager.ValidAccessToken(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrAuthFailed)

	saved, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, saved.RefreshFailures)
}

func TestValidAccessToken_ValidToken_ResetsFailureCounter(t *testing.T) {
	now := time.Now()
	conn := &domain.Connection{
		UserID:          "u1",
		Connected:       true,
		AccessToken:     "stored",
		RefreshToken:    "rt",
		TokenExpiry:     now.Add(time.Hour),
		RefreshFailures: 2,
	}
	manager, store := newTokenFixture(t, conn, &mockTokenEndpoint{}, now)

	_, err := manager.ValidAccessToken(context.Background(), "u1")
	require.NoError(t, err)

	saved, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, saved.RefreshFailures)
}
