package domain

import "time"

// WebhookChannel identifies a registered push-notification subscription.
// ChannelID and ResourceID are always set together: the provider assigns the
// resource id when the channel is created, and both are required to stop it.
type WebhookChannel struct {
	// ChannelID is the client-chosen channel identifier.
	ChannelID string

	// ResourceID is the provider-assigned identifier for the watched resource.
	ResourceID string

	// Expiration is when the provider will stop delivering notifications.
	Expiration time.Time
}

// ExpiresWithin reports whether the channel expires before now+d.
func (w *WebhookChannel) ExpiresWithin(now time.Time, d time.Duration) bool {
	return w.Expiration.Before(now.Add(d))
}

// Connection represents a user's link to their external calendar account.
// There is at most one connection per user.
//
// The access and refresh tokens are opaque to the core; the ConnectionStore
// is trusted to encrypt them at rest.
type Connection struct {
	// UserID identifies the owning user.
	UserID string

	// Connected is false after a disconnect. A disconnected connection keeps
	// its row (historical events are preserved) but holds no credentials.
	Connected bool

	// AccessToken is the current bearer token for the provider API.
	AccessToken string

	// RefreshToken is used to obtain new access tokens.
	RefreshToken string

	// TokenExpiry is when the access token expires.
	TokenExpiry time.Time

	// Email is the connected account's address, reported at token exchange.
	Email string

	// SyncToken is the opaque delta cursor from the provider.
	// Empty means no cursor is stored and the next sync is a full sync.
	SyncToken string

	// Webhook is the active push-notification channel, nil when none is
	// registered.
	Webhook *WebhookChannel

	// LastSyncAt is when the last sync pass completed for this connection.
	LastSyncAt time.Time

	// RefreshFailures counts consecutive failed token refreshes.
	RefreshFailures int

	// CreatedAt is when the connection was first established.
	CreatedAt time.Time
	// UpdatedAt is when the connection was last modified.
	UpdatedAt time.Time
}

// TokenValidFor reports whether the stored access token is still usable at
// now with the given safety margin before expiry.
func (c *Connection) TokenValidFor(now time.Time, margin time.Duration) bool {
	if c.AccessToken == "" || c.TokenExpiry.IsZero() {
		return false
	}
	return c.TokenExpiry.Sub(now) > margin
}

// HasCursor reports whether a delta cursor is stored.
func (c *Connection) HasCursor() bool {
	return c.SyncToken != ""
}

// SyncedWithin reports whether the connection synced less than d ago.
func (c *Connection) SyncedWithin(now time.Time, d time.Duration) bool {
	if c.LastSyncAt.IsZero() {
		return false
	}
	return now.Sub(c.LastSyncAt) < d
}
