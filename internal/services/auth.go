package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/x2raindrop/internal/server"
	"github.com/desertthunder/x2raindrop/internal/shared"
	"golang.org/x/oauth2"
)

const (
	xAuthURL  = "https://x.com/i/oauth2/authorize"
	xTokenURL = "https://api.x.com/2/oauth2/token"

	// Tokens expiring within this window are refreshed before use.
	expirySkew = 60 * time.Second

	defaultLoginTimeout = 2 * time.Minute
)

// AuthState describes the authenticator's position in its lifecycle.
type AuthState int

const (
	StateUnauthenticated AuthState = iota
	StatePendingAuthorization
	StateAuthorized
	StateExpired
)

func (s AuthState) String() string {
	switch s {
	case StatePendingAuthorization:
		return "pending authorization"
	case StateAuthorized:
		return "authorized"
	case StateExpired:
		return "expired"
	default:
		return "unauthenticated"
	}
}

// TokenSet holds one user's OAuth2 credentials. At most one valid TokenSet
// exists per user; it is owned by the Authenticator and persisted through a
// [TokenStore].
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
	Scope        []string  `json:"scope"`
}

// ExpiringWithin reports whether the token expires inside the given window.
func (t *TokenSet) ExpiringWithin(window time.Duration) bool {
	return !time.Now().Before(t.ExpiresAt.Add(-window))
}

// TokenStore persists a TokenSet. No component other than the Authenticator
// may read or write the underlying file.
type TokenStore interface {
	Load() (*TokenSet, error) // (nil, nil) when no token is stored
	Save(*TokenSet) error
	Clear() error
}

// FileTokenStore stores the TokenSet as a single JSON file with 0600 permissions.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore creates a store backed by the given path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Load() (*TokenSet, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token TokenSet
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("%w: malformed token file %s: %v", shared.ErrValidation, s.path, err)
	}
	return &token, nil
}

func (s *FileTokenStore) Save(token *TokenSet) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func (s *FileTokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// AuthenticatorOpts contains configuration options for creating an Authenticator.
type AuthenticatorOpts struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	AccessToken  string // Direct token mode: no PKCE flow, no refresh
	Store        TokenStore
	HTTPClient   *http.Client
	Logger       *log.Logger
	LoginTimeout time.Duration
	OpenBrowser  func(url string) error
}

// Authenticator owns the OAuth2 PKCE lifecycle against the X API: interactive
// login, silent refresh, status, and logout. It implements [TokenProvider] so
// the executor can attach and renew bearer tokens.
type Authenticator struct {
	config       *oauth2.Config
	store        TokenStore
	token        *TokenSet
	direct       bool
	httpClient   *http.Client
	logger       *log.Logger
	loginTimeout time.Duration
	openBrowser  func(url string) error
	state        AuthState
}

// NewAuthenticator creates an Authenticator. When opts.AccessToken is set the
// authenticator runs in direct-token mode and never attempts a refresh;
// otherwise opts.ClientID is required for the PKCE flow.
func NewAuthenticator(opts AuthenticatorOpts) (*Authenticator, error) {
	if opts.AccessToken == "" && opts.ClientID == "" {
		return nil, fmt.Errorf("%w: either x.access_token or x.client_id must be set", shared.ErrInvalidConfig)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: token store is required", shared.ErrInvalidConfig)
	}
	if opts.RedirectURI == "" {
		opts.RedirectURI = "http://127.0.0.1:8765/callback"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = defaultLoginTimeout
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	a := &Authenticator{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Scopes:       opts.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  xAuthURL,
				TokenURL: xTokenURL,
			},
		},
		store:        opts.Store,
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger,
		loginTimeout: opts.LoginTimeout,
		openBrowser:  opts.OpenBrowser,
		state:        StateUnauthenticated,
	}

	if opts.AccessToken != "" {
		a.direct = true
		a.token = &TokenSet{
			AccessToken: opts.AccessToken,
			TokenType:   "bearer",
			// Expiry of direct tokens is the caller's responsibility.
			ExpiresAt: time.Now().Add(365 * 24 * time.Hour),
		}
		a.state = StateAuthorized
	}

	return a, nil
}

// Login runs the interactive PKCE flow: generates a verifier/challenge pair
// and a random state, binds the loopback callback listener, opens the browser,
// waits for the callback (bounded by the login timeout), exchanges the code,
// and persists the resulting TokenSet.
//
// The listener is released on every exit path.
func (a *Authenticator) Login(ctx context.Context) (*TokenSet, error) {
	if a.direct {
		return nil, fmt.Errorf("%w: direct access token configured, login flow not available", shared.ErrInvalidArgument)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	addr, err := callbackAddr(a.config.RedirectURL)
	if err != nil {
		return nil, err
	}

	handler := server.NewOAuthHandler(a.config, state, oauth2.VerifierOption(verifier))
	router := server.NewBasicRouter()
	router.Handler(handler)

	httpServer := &http.Server{Addr: addr, Handler: router}

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("starting OAuth callback listener", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("error shutting down callback listener", "error", err)
		}
	}()

	a.state = StatePendingAuthorization

	authURL := a.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	if err := a.openBrowser(authURL); err != nil {
		a.logger.Warn("failed to open browser automatically", "error", err)
		a.logger.Info("open this URL in your browser", "url", authURL)
	}

	timeout := time.NewTimer(a.loginTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		a.state = StateUnauthenticated
		return nil, fmt.Errorf("callback listener error: %w", err)
	case <-timeout.C:
		a.state = StateUnauthenticated
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, a.loginTimeout)
	case <-ctx.Done():
		a.state = StateUnauthenticated
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		a.state = StateUnauthenticated
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}
	if result.Token == nil {
		a.state = StateUnauthenticated
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	token := fromOAuth2Token(result.Token)
	if err := a.store.Save(token); err != nil {
		return nil, err
	}

	a.token = token
	a.state = StateAuthorized
	a.logger.Info("login successful", "expires_at", token.ExpiresAt, "scope", strings.Join(token.Scope, " "))
	return token, nil
}

// EnsureValidToken returns a bearer token that is valid for at least the
// expiry skew, refreshing silently when possible. Implements [TokenProvider].
func (a *Authenticator) EnsureValidToken(ctx context.Context) (string, error) {
	if a.token == nil {
		stored, err := a.store.Load()
		if err != nil {
			return "", err
		}
		if stored == nil {
			a.state = StateUnauthenticated
			return "", fmt.Errorf("%w: run `x2raindrop x login` first", shared.ErrNotAuthenticated)
		}
		a.token = stored
		a.state = StateAuthorized
	}

	if a.direct {
		return a.token.AccessToken, nil
	}

	if a.token.ExpiringWithin(expirySkew) {
		if a.token.RefreshToken == "" {
			a.state = StateExpired
			return "", fmt.Errorf("%w: no refresh token available, run `x2raindrop x login`", shared.ErrTokenExpired)
		}
		if _, err := a.refresh(ctx); err != nil {
			return "", err
		}
	}

	return a.token.AccessToken, nil
}

// Token implements [TokenProvider].
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	return a.EnsureValidToken(ctx)
}

// Refresh forces a token refresh regardless of expiry. Implements
// [TokenProvider]; the executor calls it after a 401.
func (a *Authenticator) Refresh(ctx context.Context) (string, error) {
	if a.direct {
		return "", fmt.Errorf("%w: direct access token rejected by upstream", shared.ErrAuthFailed)
	}
	if a.token == nil || a.token.RefreshToken == "" {
		a.state = StateUnauthenticated
		return "", fmt.Errorf("%w: no refresh token available", shared.ErrAuthFailed)
	}
	return a.refresh(ctx)
}

func (a *Authenticator) refresh(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)

	src := a.config.TokenSource(ctx, &oauth2.Token{RefreshToken: a.token.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			a.token = nil
			a.state = StateUnauthenticated
			return "", fmt.Errorf("%w: refresh rejected (%s), run `x2raindrop x login` again", shared.ErrAuthFailed, retrieveErr.ErrorCode)
		}
		return "", fmt.Errorf("%w: token refresh failed: %v", shared.ErrTransient, err)
	}

	token := fromOAuth2Token(fresh)
	if token.RefreshToken == "" {
		token.RefreshToken = a.token.RefreshToken
	}
	if err := a.store.Save(token); err != nil {
		return "", err
	}

	a.token = token
	a.state = StateAuthorized
	a.logger.Debug("token refreshed", "expires_at", token.ExpiresAt)
	return token.AccessToken, nil
}

// Status reports the current lifecycle state and, when authorized, the time
// remaining until expiry.
func (a *Authenticator) Status() (AuthState, time.Duration) {
	if a.token == nil {
		if stored, err := a.store.Load(); err == nil && stored != nil {
			a.token = stored
		}
	}
	if a.token == nil {
		return StateUnauthenticated, 0
	}
	remaining := time.Until(a.token.ExpiresAt)
	if remaining <= 0 {
		return StateExpired, 0
	}
	return StateAuthorized, remaining
}

// CurrentToken returns the cached TokenSet, loading it from the store if needed.
func (a *Authenticator) CurrentToken() *TokenSet {
	if a.token == nil {
		if stored, err := a.store.Load(); err == nil {
			a.token = stored
		}
	}
	return a.token
}

// Logout deletes the persisted TokenSet and returns to the unauthenticated state.
func (a *Authenticator) Logout() error {
	if err := a.store.Clear(); err != nil {
		return err
	}
	a.token = nil
	a.state = StateUnauthenticated
	return nil
}

// fromOAuth2Token converts an [oauth2.Token] into the persisted TokenSet shape.
func fromOAuth2Token(t *oauth2.Token) *TokenSet {
	tokenType := t.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	expires := t.Expiry
	if expires.IsZero() {
		expires = time.Now().Add(2 * time.Hour)
	}

	var scope []string
	if raw, ok := t.Extra("scope").(string); ok && raw != "" {
		scope = strings.Fields(raw)
	}

	return &TokenSet{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    expires,
		TokenType:    tokenType,
		Scope:        scope,
	}
}

// callbackAddr derives the loopback listen address from the redirect URI.
func callbackAddr(redirectURI string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("%w: invalid redirect URI %q: %v", shared.ErrInvalidConfig, redirectURI, err)
	}
	host := u.Hostname()
	if host == "" {
		host = "127.0.0.1"
	}
	port := u.Port()
	if port == "" {
		port = "8765"
	}
	return host + ":" + port, nil
}
