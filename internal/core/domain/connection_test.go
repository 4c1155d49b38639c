package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnection_TokenValidFor(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	margin := 5 * time.Minute

	tests := []struct {
		name   string
		conn   Connection
		expect bool
	}{
		{
			name:   "well before expiry",
			conn:   Connection{AccessToken: "tok", TokenExpiry: now.Add(time.Hour)},
			expect: true,
		},
		{
			name:   "inside the margin",
			conn:   Connection{AccessToken: "tok", TokenExpiry: now.Add(3 * time.Minute)},
			expect: false,
		},
		{
			name:   "exactly at the margin",
			conn:   Connection{AccessToken: "tok", TokenExpiry: now.Add(margin)},
			expect: false,
		},
		{
			name:   "already expired",
			conn:   Connection{AccessToken: "tok", TokenExpiry: now.Add(-time.Minute)},
			expect: false,
		},
		{
			name:   "no token stored",
			conn:   Connection{TokenExpiry: now.Add(time.Hour)},
			expect: false,
		},
		{
			name:   "no expiry stored",
			conn:   Connection{AccessToken: "tok"},
			expect: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.conn.TokenValidFor(now, margin))
		})
	}
}

func TestConnection_SyncedWithin(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	conn := Connection{LastSyncAt: now.Add(-10 * time.Second)}
	assert.True(t, conn.SyncedWithin(now, 30*time.Second))
	assert.False(t, conn.SyncedWithin(now, 5*time.Second))

	// A connection that never synced is never "recent".
	never := Connection{}
	assert.False(t, never.SyncedWithin(now, time.Hour))
}

func TestConnection_HasCursor(t *testing.T) {
	assert.False(t, (&Connection{}).HasCursor())
	assert.True(t, (&Connection{SyncToken: "CPDAlvWDx70CEPDAlvWDx70CGAU"}).HasCursor())
}

func TestWebhookChannel_ExpiresWithin(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	ch := WebhookChannel{
		ChannelID:  "calendar-user-1",
		ResourceID: "res-1",
		Expiration: now.Add(12 * time.Hour),
	}
	assert.True(t, ch.ExpiresWithin(now, 24*time.Hour))
	assert.False(t, ch.ExpiresWithin(now, time.Hour))
}
