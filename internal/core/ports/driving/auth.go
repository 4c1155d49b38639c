package driving

import "context"

// CallbackResult reports a completed OAuth callback.
type CallbackResult struct {
	// UserID is the user recovered from the round-tripped state value.
	UserID string
	// Origin is the frontend base URL to redirect back to.
	Origin string
}

// AuthFlow manages the OAuth connection lifecycle for a user.
type AuthFlow interface {
	// AuthorizeURL builds the provider authorize URL, with a state value
	// that round-trips the user id and redirect origin.
	AuthorizeURL(userID, origin string) string

	// HandleCallback exchanges the authorization code, stores the
	// connection and kicks off the initial sync and webhook registration
	// in the background.
	HandleCallback(ctx context.Context, state, code string) (*CallbackResult, error)

	// Disconnect tears the connection down: webhook cancelled and token
	// revoked best-effort, remote-origin events removed, credentials and
	// sync state cleared. Historical local rows are preserved.
	Disconnect(ctx context.Context, userID string) error

	// RegisterWebhook registers a fresh push channel for the user.
	RegisterWebhook(ctx context.Context, userID string) error

	// CancelWebhook stops the user's push channel, when one is registered.
	CancelWebhook(ctx context.Context, userID string) error
}
