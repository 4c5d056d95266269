package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    "client",
		RedirectURL: "http://127.0.0.1:8765/callback",
		Endpoint:    oauth2.Endpoint{TokenURL: tokenURL},
	}
}

func TestOAuthHandler(t *testing.T) {
	t.Run("exchanges the code and delivers the token", func(t *testing.T) {
		var gotVerifier string
		tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.ParseForm()
			gotVerifier = r.FormValue("code_verifier")
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"granted","token_type":"bearer","expires_in":7200}`)
		}))
		defer tokenSrv.Close()

		verifier := oauth2.GenerateVerifier()
		handler := NewOAuthHandler(testConfig(tokenSrv.URL), "state123", oauth2.VerifierOption(verifier))

		req := httptest.NewRequest(http.MethodGet, "/callback?state=state123&code=authcode", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Authorization Successful") {
			t.Error("expected success page")
		}
		if gotVerifier != verifier {
			t.Errorf("expected PKCE verifier sent to the token endpoint, got %q", gotVerifier)
		}

		result := <-handler.Result()
		if result.Error() != nil {
			t.Fatalf("unexpected error: %v", result.Error())
		}
		if result.Token.AccessToken != "granted" {
			t.Errorf("expected granted token, got %q", result.Token.AccessToken)
		}
	})

	t.Run("rejects a state mismatch", func(t *testing.T) {
		handler := NewOAuthHandler(testConfig("http://invalid"), "expected-state")

		req := httptest.NewRequest(http.MethodGet, "/callback?state=forged&code=authcode", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		result := <-handler.Result()
		if result.Error() == nil {
			t.Fatal("expected an error result")
		}
	})

	t.Run("reports provider errors", func(t *testing.T) {
		handler := NewOAuthHandler(testConfig("http://invalid"), "state123")

		req := httptest.NewRequest(http.MethodGet, "/callback?state=state123&error=access_denied&error_description=user+said+no", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		result := <-handler.Result()
		if result.Error() == nil || !strings.Contains(result.Error().Error(), "access_denied") {
			t.Errorf("expected access_denied in error, got %v", result.Error())
		}
	})

	t.Run("only the first callback is processed", func(t *testing.T) {
		handler := NewOAuthHandler(testConfig("http://invalid"), "state123")

		first := httptest.NewRequest(http.MethodGet, "/callback?state=wrong", nil)
		handler.ServeHTTP(httptest.NewRecorder(), first)

		second := httptest.NewRequest(http.MethodGet, "/callback?state=state123&code=late", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, second)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected repeat callback rejected, got %d", rec.Code)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("applies middleware in order", func(t *testing.T) {
		var trace []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					trace = append(trace, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mw("outer"), mw("inner"))
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			trace = append(trace, "handler")
		}))

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)

		want := []string{"outer", "inner", "handler"}
		if len(trace) != len(want) {
			t.Fatalf("expected %v, got %v", want, trace)
		}
		for i := range want {
			if trace[i] != want[i] {
				t.Errorf("expected %v, got %v", want, trace)
				break
			}
		}
	})

	t.Run("rejects the wrong method", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodPost, "/ping", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("registers every handler route", func(t *testing.T) {
		router := NewBasicRouter()
		handler := NewOAuthHandler(testConfig("http://invalid"), "s")
		router.Handler(handler)

		req := httptest.NewRequest(http.MethodGet, "/callback?state=wrong", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code == http.StatusNotFound {
			t.Error("expected /callback registered")
		}
	})
}
