// package services implements the outbound API surface: the X bookmarks
// client, the Raindrop.io client, the OAuth2 PKCE authenticator, and the
// rate-limit-aware executor every outbound request flows through.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/desertthunder/x2raindrop/internal/shared"
)

// TokenProvider supplies bearer tokens for outbound requests.
//
// Refresh is invoked by the executor after a 401 to force a new token; a
// provider that cannot renew (static tokens) returns an auth error, which the
// executor treats as fatal.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticTokenProvider is a TokenProvider for fixed API tokens that cannot be
// refreshed, like the Raindrop.io test token.
type StaticTokenProvider string

func (s StaticTokenProvider) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%w: no API token configured", shared.ErrNotAuthenticated)
	}
	return string(s), nil
}

func (s StaticTokenProvider) Refresh(ctx context.Context) (string, error) {
	return "", fmt.Errorf("%w: token rejected and cannot be refreshed", shared.ErrAuthFailed)
}

// APIResponse represents a successful (2xx) API response.
type APIResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the response body into v.
func (r *APIResponse) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return nil
}
