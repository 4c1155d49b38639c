package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/agendo/calsync/internal/core/domain"
	"github.com/agendo/calsync/internal/core/ports/driven"
	"github.com/agendo/calsync/internal/core/ports/driving"
	"github.com/agendo/calsync/internal/logger"
)

// webhookTTL is the requested lifetime of a push channel. The provider may
// grant less; the granted expiration is what gets stored.
const webhookTTL = 7 * 24 * time.Hour

// Ensure AuthService implements the interface.
var _ driving.AuthFlow = (*AuthService)(nil)

// AuthService manages the OAuth connection lifecycle and the webhook
// channel registration that rides on it.
type AuthService struct {
	connections driven.ConnectionStore
	events      driven.EventStore
	api         driven.CalendarAPI
	endpoint    driven.TokenEndpoint
	tokens      TokenSource
	engine      driving.SyncEngine

	oauth *oauth2.Config

	// webhookAddress is the public URL the provider posts notifications to.
	webhookAddress string

	now    func() time.Time
	detach func(fn func())
}

// NewAuthService creates an auth service over the given ports. The oauth
// config supplies the authorize URL; token calls go through the endpoint
// port.
func NewAuthService(
	connections driven.ConnectionStore,
	events driven.EventStore,
	api driven.CalendarAPI,
	endpoint driven.TokenEndpoint,
	tokens TokenSource,
	engine driving.SyncEngine,
	oauth *oauth2.Config,
	webhookAddress string,
) *AuthService {
	return &AuthService{
		connections:    connections,
		events:         events,
		api:            api,
		endpoint:       endpoint,
		tokens:         tokens,
		engine:         engine,
		oauth:          oauth,
		webhookAddress: webhookAddress,
		now:            time.Now,
		detach:         func(fn func()) { go fn() },
	}
}

// stateData round-trips through the OAuth state parameter. It is plain
// base64-encoded JSON, readable and unsigned; the callback treats it as
// routing data, not as proof of identity.
type stateData struct {
	UserID string `json:"user_id"`
	Origin string `json:"origin"`
}

func encodeState(userID, origin string) string {
	raw, _ := json.Marshal(stateData{UserID: userID, Origin: origin})
	return base64.StdEncoding.EncodeToString(raw)
}

// parseState recovers the user id and origin. A value that does not decode
// as state JSON is taken as a bare user id.
func parseState(state string) (userID, origin string) {
	raw, err := base64.StdEncoding.DecodeString(state)
	if err == nil {
		var data stateData
		if jerr := json.Unmarshal(raw, &data); jerr == nil && data.UserID != "" {
			return data.UserID, data.Origin
		}
	}
	return state, ""
}

// AuthorizeURL builds the provider consent URL for a user. Offline access
// with forced consent guarantees a refresh token on every connect.
func (a *AuthService) AuthorizeURL(userID, origin string) string {
	return a.oauth.AuthCodeURL(encodeState(userID, origin),
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// HandleCallback exchanges the authorization code and stores the
// connection, then kicks off the initial sync and webhook registration in
// the background so the user's redirect is not held up.
func (a *AuthService) HandleCallback(ctx context.Context, state, code string) (*driving.CallbackResult, error) {
	userID, origin := parseState(state)
	if userID == "" {
		return nil, fmt.Errorf("%w: empty state", domain.ErrInvalidInput)
	}
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", domain.ErrInvalidInput)
	}

	grant, err := a.endpoint.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %w", domain.ErrAuthFailed, err)
	}

	conn := domain.Connection{UserID: userID, CreatedAt: a.now()}
	if existing, gerr := a.connections.Get(ctx, userID); gerr == nil {
		conn = *existing
	}
	conn.Connected = true
	conn.AccessToken = grant.AccessToken
	if grant.RefreshToken != "" {
		conn.RefreshToken = grant.RefreshToken
	}
	conn.TokenExpiry = grant.Expiry
	if grant.Email != "" {
		conn.Email = grant.Email
	}
	conn.RefreshFailures = 0
	conn.UpdatedAt = a.now()

	if err := a.connections.Save(ctx, conn); err != nil {
		return nil, fmt.Errorf("save connection: %w", err)
	}

	logger.Info("Connected calendar for %s (%s)", userID, conn.Email)

	a.detach(func() {
		bg := context.Background()
		if _, serr := a.engine.PerformSync(bg, userID); serr != nil {
			logger.Error("Initial sync failed for %s: %v", userID, serr)
		}
		if werr := a.RegisterWebhook(bg, userID); werr != nil {
			logger.Error("Webhook registration failed for %s: %v", userID, werr)
		}
	})

	return &driving.CallbackResult{UserID: userID, Origin: origin}, nil
}

// Disconnect tears a user's connection down. The webhook stop and the token
// revocation are best effort; rows that came from the remote are removed
// while local-origin rows stay.
func (a *AuthService) Disconnect(ctx context.Context, userID string) error {
	conn, err := a.connections.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotConnected
	}
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}

	if werr := a.CancelWebhook(ctx, userID); werr != nil {
		logger.Warn("Failed to cancel webhook for %s: %v", userID, werr)
	}
	if conn.RefreshToken != "" {
		if rerr := a.endpoint.Revoke(ctx, conn.RefreshToken); rerr != nil {
			logger.Warn("Failed to revoke token for %s: %v", userID, rerr)
		}
	}

	removed, err := a.events.DeleteRemoteOrigin(ctx, userID)
	if err != nil {
		return fmt.Errorf("remove synced events: %w", err)
	}
	if err := a.connections.Disconnect(ctx, userID); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}

	logger.Info("Disconnected calendar for %s, removed %d synced events", userID, removed)
	return nil
}

// RegisterWebhook registers a fresh push channel for the user and persists
// the granted registration.
func (a *AuthService) RegisterWebhook(ctx context.Context, userID string) error {
	if a.webhookAddress == "" {
		logger.Debug("No webhook address configured, skipping registration for %s", userID)
		return nil
	}

	token, err := a.tokens.ValidAccessToken(ctx, userID)
	if err != nil {
		return err
	}

	channelID := fmt.Sprintf("calendar-%s-%s", userID, uuid.NewString())
	reg, err := a.api.Watch(ctx, token, channelID, a.webhookAddress, a.now().Add(webhookTTL))
	if err != nil {
		return fmt.Errorf("watch calendar: %w", err)
	}

	ch := &domain.WebhookChannel{
		ChannelID:  channelID,
		ResourceID: reg.ResourceID,
		Expiration: reg.Expiration,
	}
	if err := a.connections.SaveWebhook(ctx, userID, ch); err != nil {
		return fmt.Errorf("save webhook: %w", err)
	}

	logger.Info("Registered webhook channel %s for %s, expires %s", channelID, userID, reg.Expiration.Format(time.RFC3339))
	return nil
}

// CancelWebhook stops the user's push channel when one is registered. The
// stored registration is cleared even when the provider-side stop fails:
// an orphaned channel expires on its own.
func (a *AuthService) CancelWebhook(ctx context.Context, userID string) error {
	conn, err := a.connections.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotConnected
	}
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	if conn.Webhook == nil {
		return nil
	}

	token, err := a.tokens.ValidAccessToken(ctx, userID)
	if err == nil {
		if serr := a.api.Stop(ctx, token, conn.Webhook.ChannelID, conn.Webhook.ResourceID); serr != nil {
			logger.Warn("Failed to stop channel %s: %v", conn.Webhook.ChannelID, serr)
		}
	} else {
		logger.Warn("No token to stop channel %s: %v", conn.Webhook.ChannelID, err)
	}

	return a.connections.SaveWebhook(ctx, userID, nil)
}
