package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/x2raindrop/internal/shared"
)

func tempStore(t *testing.T) *FileTokenStore {
	t.Helper()
	return NewFileTokenStore(filepath.Join(t.TempDir(), "x_token.json"))
}

func TestFileTokenStore(t *testing.T) {
	t.Run("load returns nil when no token is stored", func(t *testing.T) {
		store := tempStore(t)
		token, err := store.Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != nil {
			t.Errorf("expected nil token, got %+v", token)
		}
	})

	t.Run("round trips a token set", func(t *testing.T) {
		store := tempStore(t)
		saved := &TokenSet{
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second),
			TokenType:    "bearer",
			Scope:        []string{"bookmark.read", "offline.access"},
		}
		if err := store.Save(saved); err != nil {
			t.Fatalf("save: %v", err)
		}

		loaded, err := store.Load()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if loaded.AccessToken != saved.AccessToken || loaded.RefreshToken != saved.RefreshToken {
			t.Errorf("expected %+v, got %+v", saved, loaded)
		}
		if !loaded.ExpiresAt.Equal(saved.ExpiresAt) {
			t.Errorf("expected expiry %s, got %s", saved.ExpiresAt, loaded.ExpiresAt)
		}
	})

	t.Run("token file is private", func(t *testing.T) {
		store := tempStore(t)
		if err := store.Save(&TokenSet{AccessToken: "secret"}); err != nil {
			t.Fatalf("save: %v", err)
		}
		info, err := os.Stat(store.path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("expected 0600, got %o", perm)
		}
	})

	t.Run("malformed file is a validation error", func(t *testing.T) {
		store := tempStore(t)
		if err := os.WriteFile(store.path, []byte("{nope"), 0600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := store.Load(); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("clear removes the file and tolerates absence", func(t *testing.T) {
		store := tempStore(t)
		if err := store.Save(&TokenSet{AccessToken: "a"}); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("clear: %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("second clear: %v", err)
		}
	})
}

func TestTokenSetExpiringWithin(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Duration
		window  time.Duration
		want    bool
	}{
		{"fresh token", 2 * time.Hour, time.Minute, false},
		{"expires inside the window", 30 * time.Second, time.Minute, true},
		{"already expired", -time.Minute, time.Minute, true},
		{"exactly at the boundary is expiring", time.Minute, time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := &TokenSet{ExpiresAt: time.Now().Add(tt.expires)}
			if got := token.ExpiringWithin(tt.window); got != tt.want {
				t.Errorf("expected %t, got %t", tt.want, got)
			}
		})
	}
}

// tokenEndpoint fakes the OAuth2 token endpoint.
func tokenEndpoint(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAuthenticator(t *testing.T, store TokenStore, tokenURL string) *Authenticator {
	t.Helper()
	auth, err := NewAuthenticator(AuthenticatorOpts{
		ClientID: "client",
		Store:    store,
	})
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	if tokenURL != "" {
		auth.config.Endpoint.TokenURL = tokenURL
	}
	return auth
}

func TestAuthenticatorTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("requires credentials or a direct token", func(t *testing.T) {
		_, err := NewAuthenticator(AuthenticatorOpts{Store: tempStore(t)})
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected config error, got %v", err)
		}
	})

	t.Run("unauthenticated without a stored token", func(t *testing.T) {
		auth := newTestAuthenticator(t, tempStore(t), "")
		if _, err := auth.Token(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected not authenticated, got %v", err)
		}
	})

	t.Run("returns a fresh stored token without refreshing", func(t *testing.T) {
		store := tempStore(t)
		store.Save(&TokenSet{AccessToken: "good", ExpiresAt: time.Now().Add(time.Hour)})
		auth := newTestAuthenticator(t, store, "")

		token, err := auth.Token(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != "good" {
			t.Errorf("expected stored token, got %q", token)
		}
	})

	t.Run("refreshes a token expiring within the skew", func(t *testing.T) {
		srv := tokenEndpoint(t, 200, `{"access_token":"renewed","token_type":"bearer","expires_in":7200,"refresh_token":"next","scope":"bookmark.read tweet.read"}`)
		store := tempStore(t)
		store.Save(&TokenSet{
			AccessToken:  "stale",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(10 * time.Second),
		})
		auth := newTestAuthenticator(t, store, srv.URL)

		token, err := auth.Token(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != "renewed" {
			t.Errorf("expected renewed token, got %q", token)
		}

		persisted, _ := store.Load()
		if persisted.AccessToken != "renewed" || persisted.RefreshToken != "next" {
			t.Errorf("expected refreshed token persisted, got %+v", persisted)
		}
		if len(persisted.Scope) != 2 {
			t.Errorf("expected scope parsed from response, got %v", persisted.Scope)
		}
	})

	t.Run("keeps the old refresh token when the response omits one", func(t *testing.T) {
		srv := tokenEndpoint(t, 200, `{"access_token":"renewed","token_type":"bearer","expires_in":7200}`)
		store := tempStore(t)
		store.Save(&TokenSet{
			AccessToken:  "stale",
			RefreshToken: "keepme",
			ExpiresAt:    time.Now().Add(-time.Minute),
		})
		auth := newTestAuthenticator(t, store, srv.URL)

		if _, err := auth.Token(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		persisted, _ := store.Load()
		if persisted.RefreshToken != "keepme" {
			t.Errorf("expected refresh token retained, got %q", persisted.RefreshToken)
		}
	})

	t.Run("invalid grant clears the token", func(t *testing.T) {
		srv := tokenEndpoint(t, 400, `{"error":"invalid_grant"}`)
		store := tempStore(t)
		store.Save(&TokenSet{
			AccessToken:  "stale",
			RefreshToken: "revoked",
			ExpiresAt:    time.Now().Add(-time.Minute),
		})
		auth := newTestAuthenticator(t, store, srv.URL)

		if _, err := auth.Token(ctx); !errors.Is(err, shared.ErrAuthFailed) {
			t.Fatalf("expected auth error, got %v", err)
		}
		if auth.CurrentToken() != nil {
			t.Error("expected cached token cleared")
		}
	})

	t.Run("expired without refresh token is a token expiry error", func(t *testing.T) {
		store := tempStore(t)
		store.Save(&TokenSet{AccessToken: "stale", ExpiresAt: time.Now().Add(-time.Minute)})
		auth := newTestAuthenticator(t, store, "")

		if _, err := auth.Token(ctx); !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected token expiry error, got %v", err)
		}
	})

	t.Run("direct token mode never refreshes", func(t *testing.T) {
		auth, err := NewAuthenticator(AuthenticatorOpts{
			AccessToken: "direct",
			Store:       tempStore(t),
		})
		if err != nil {
			t.Fatalf("new authenticator: %v", err)
		}

		token, err := auth.Token(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != "direct" {
			t.Errorf("expected direct token, got %q", token)
		}
		if _, err := auth.Refresh(ctx); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected refresh rejection, got %v", err)
		}
	})

	t.Run("status reflects the stored token", func(t *testing.T) {
		store := tempStore(t)
		auth := newTestAuthenticator(t, store, "")
		if state, _ := auth.Status(); state != StateUnauthenticated {
			t.Errorf("expected unauthenticated, got %s", state)
		}

		store.Save(&TokenSet{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)})
		auth = newTestAuthenticator(t, store, "")
		state, remaining := auth.Status()
		if state != StateAuthorized {
			t.Errorf("expected authorized, got %s", state)
		}
		if remaining <= 0 {
			t.Errorf("expected positive remaining time, got %s", remaining)
		}
	})

	t.Run("logout clears the store", func(t *testing.T) {
		store := tempStore(t)
		store.Save(&TokenSet{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)})
		auth := newTestAuthenticator(t, store, "")

		if err := auth.Logout(); err != nil {
			t.Fatalf("logout: %v", err)
		}
		if stored, _ := store.Load(); stored != nil {
			t.Error("expected token removed from store")
		}
		if state, _ := auth.Status(); state != StateUnauthenticated {
			t.Errorf("expected unauthenticated after logout, got %s", state)
		}
	})
}
