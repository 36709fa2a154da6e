package transport

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Auth applies credentials to an outgoing request.
type Auth interface {
	Apply(req *http.Request) error
}

// TokenAuth is the destination-style token header scheme
// (Authorization: Token token=..., plus the JSON:API content headers).
type TokenAuth struct {
	Token      string
	APIVersion string
}

// Apply sets the token and JSON:API headers.
func (a *TokenAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", fmt.Sprintf("Token token=%s", a.Token))
	if a.APIVersion != "" {
		req.Header.Set("X-Api-Version", a.APIVersion)
	}
	req.Header.Set("Content-Type", "application/vnd.api+json")
	req.Header.Set("Accept", "application/vnd.api+json")
	return nil
}

// BasicAuth is the source-style basic scheme: API key as username, empty
// password.
type BasicAuth struct {
	APIKey string
}

// Apply sets basic credentials.
func (a *BasicAuth) Apply(req *http.Request) error {
	req.SetBasicAuth(a.APIKey, "")
	req.Header.Set("Accept", "application/json")
	return nil
}

// OAuthClientCredentials obtains bearer tokens via the OAuth2
// client-credentials flow and attaches them to each request. The token
// source caches and refreshes tokens internally.
type OAuthClientCredentials struct {
	source oauth2.TokenSource
}

// NewOAuthClientCredentials builds an auth from client-credentials settings.
func NewOAuthClientCredentials(ctx context.Context, tokenURL, clientID, clientSecret string, scopes []string) *OAuthClientCredentials {
	cfg := &clientcredentials.Config{
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       scopes,
	}
	return &OAuthClientCredentials{source: cfg.TokenSource(ctx)}
}

// Apply fetches (or reuses) a token and sets the bearer header.
func (a *OAuthClientCredentials) Apply(req *http.Request) error {
	tok, err := a.source.Token()
	if err != nil {
		return fmt.Errorf("oauth token: %w", err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/vnd.api+json")
	req.Header.Set("Accept", "application/vnd.api+json")
	return nil
}

// NoAuth sends requests without credentials (tests, local stubs).
type NoAuth struct{}

// Apply is a no-op.
func (NoAuth) Apply(*http.Request) error { return nil }
