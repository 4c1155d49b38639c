package driven

import (
	"context"
	"time"
)

// TokenGrant holds the result of an OAuth token exchange or refresh.
type TokenGrant struct {
	// AccessToken is the bearer token for API access.
	AccessToken string
	// RefreshToken is used to obtain new access tokens. Refresh responses
	// usually omit it; the stored one stays valid.
	RefreshToken string
	// Expiry is when the access token expires.
	Expiry time.Time
	// Email is the connected account's address, when the provider reports it.
	Email string
	// Scope is the granted scope string.
	Scope string
}

// TokenEndpoint talks to the provider's OAuth token endpoint family.
type TokenEndpoint interface {
	// Exchange trades an authorization code for tokens.
	Exchange(ctx context.Context, code string) (*TokenGrant, error)

	// Refresh trades a refresh token for a new access token.
	Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error)

	// Revoke invalidates a token with the provider. Best effort: callers
	// treat failures as non-fatal.
	Revoke(ctx context.Context, token string) error
}
