// Package oauth implements the token endpoint port against Google's OAuth
// token and revocation endpoints.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agendo/calsync/internal/core/ports/driven"
)

// Google endpoint defaults, overridable for tests.
const (
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultRevokeURL   = "https://oauth2.googleapis.com/revoke"
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// tokenResponse holds a token endpoint answer.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// Ensure Endpoint implements the interface.
var _ driven.TokenEndpoint = (*Endpoint)(nil)

// Endpoint exchanges, refreshes and revokes tokens against the provider.
type Endpoint struct {
	clientID     string
	clientSecret string
	redirectURI  string

	tokenURL    string
	revokeURL   string
	userInfoURL string

	client *http.Client
}

// Option adjusts an Endpoint, used by tests to point at a fake server.
type Option func(*Endpoint)

// WithURLs overrides the provider endpoints.
func WithURLs(tokenURL, revokeURL, userInfoURL string) Option {
	return func(e *Endpoint) {
		e.tokenURL = tokenURL
		e.revokeURL = revokeURL
		e.userInfoURL = userInfoURL
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Endpoint) { e.client = client }
}

// NewEndpoint creates a token endpoint client for an OAuth application.
func NewEndpoint(clientID, clientSecret, redirectURI string, opts ...Option) *Endpoint {
	e := &Endpoint{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		tokenURL:     defaultTokenURL,
		revokeURL:    defaultRevokeURL,
		userInfoURL:  defaultUserInfoURL,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Exchange trades an authorization code for tokens and resolves the
// connected account's email. An email lookup failure is not fatal.
func (e *Endpoint) Exchange(ctx context.Context, code string) (*driven.TokenGrant, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", e.clientID)
	data.Set("client_secret", e.clientSecret)
	data.Set("code", code)
	data.Set("redirect_uri", e.redirectURI)

	grant, err := e.post(ctx, data)
	if err != nil {
		return nil, err
	}

	if email, eerr := e.userEmail(ctx, grant.AccessToken); eerr == nil {
		grant.Email = email
	}
	return grant, nil
}

// Refresh trades a refresh token for a new access token.
func (e *Endpoint) Refresh(ctx context.Context, refreshToken string) (*driven.TokenGrant, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", e.clientID)
	data.Set("client_secret", e.clientSecret)
	data.Set("refresh_token", refreshToken)

	return e.post(ctx, data)
}

// Revoke invalidates a token with the provider.
func (e *Endpoint) Revoke(ctx context.Context, token string) error {
	data := url.Values{}
	data.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.revokeURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke request failed with status %d", resp.StatusCode)
	}
	return nil
}

func (e *Endpoint) post(ctx context.Context, data url.Values) (*driven.TokenGrant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if derr := json.NewDecoder(resp.Body).Decode(&errResp); derr == nil && errResp.Error != "" {
			return nil, fmt.Errorf("token error: %s - %s", errResp.Error, errResp.Description)
		}
		return nil, fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	grant := &driven.TokenGrant{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		Scope:        body.Scope,
	}
	if body.ExpiresIn > 0 {
		grant.Expiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	}
	return grant, nil
}

// userEmail fetches the connected account's address.
func (e *Endpoint) userEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.userInfoURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("user info request failed with status %d", resp.StatusCode)
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decode user info: %w", err)
	}
	return info.Email, nil
}
