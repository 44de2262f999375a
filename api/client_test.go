package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	authkit "github.com/vantagecms/authkit"
)

func grantJSON() map[string]any {
	return map[string]any{
		"user": map[string]any{
			"id":    "user-1",
			"email": "alice@example.com",
			"name":  "Alice",
		},
		"access_token":  "at-1",
		"refresh_token": "rt-1",
		"permissions":   []string{"articles:read"},
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	return c
}

func TestLoginSuccess(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != DefaultLoginPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("unexpected content type %q", got)
		}
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request failed: %v", err)
		}
		if body.Email != "alice@example.com" || body.Password != "secret" {
			t.Errorf("unexpected credentials %+v", body)
		}
		_ = json.NewEncoder(w).Encode(grantJSON())
	}))

	grant, err := c.Login(context.Background(), "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if grant.User.ID != "user-1" || grant.AccessToken != "at-1" || grant.RefreshToken != "rt-1" {
		t.Fatalf("unexpected grant %+v", grant)
	}
	if len(grant.Permissions) != 1 || grant.Permissions[0] != "articles:read" {
		t.Fatalf("unexpected permissions %v", grant.Permissions)
	}
}

func TestLoginUnauthorized(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.Login(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(err, authkit.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if authkit.IsTransient(err) {
		t.Fatal("credential failure must not look transient")
	}
}

func TestLoginEmptyCredentials(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected for empty credentials")
	}))

	if _, err := c.Login(context.Background(), "", "secret"); !errors.Is(err, authkit.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRenewSuccess(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultRenewPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request failed: %v", err)
		}
		if body.RefreshToken != "rt-old" {
			t.Errorf("unexpected refresh token %q", body.RefreshToken)
		}
		_ = json.NewEncoder(w).Encode(grantJSON())
	}))

	grant, err := c.Renew(context.Background(), "rt-old")
	if err != nil {
		t.Fatalf("renew failed: %v", err)
	}
	if grant.AccessToken != "at-1" {
		t.Fatalf("unexpected grant %+v", grant)
	}
}

func TestRenewUnauthorizedIsTerminal(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.Renew(context.Background(), "rt-revoked")
	if !authkit.IsAuthRejected(err) {
		t.Fatalf("expected auth rejection, got %v", err)
	}
	if authkit.IsTransient(err) {
		t.Fatal("rejection must not look transient")
	}
}

func TestRenewServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.Renew(context.Background(), "rt-1")
	if !authkit.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if authkit.IsAuthRejected(err) {
		t.Fatal("server error must not look like a rejection")
	}
}

func TestRenewNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	_, err = c.Renew(context.Background(), "rt-1")
	if !authkit.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestRenewEmptyToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected for empty token")
	}))

	if _, err := c.Renew(context.Background(), ""); !errors.Is(err, authkit.ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
}

func TestRenewRejectsIncompleteGrant(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at-1"})
	}))

	_, err := c.Renew(context.Background(), "rt-1")
	if !authkit.IsTransient(err) {
		t.Fatalf("expected transient error for incomplete grant, got %v", err)
	}
}

func TestLogoutSendsBearer(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultLogoutPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer at-1" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := c.Logout(context.Background(), "at-1"); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
}

func TestNewValidatesBaseURL(t *testing.T) {
	for _, base := range []string{"", "not-a-url", "/relative/only"} {
		if _, err := New(Config{BaseURL: base}); err == nil {
			t.Fatalf("expected error for base URL %q", base)
		}
	}
}

func TestAuthExemptPaths(t *testing.T) {
	c, err := New(Config{BaseURL: "https://api.example.com", RenewPath: "/v2/refresh"})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	paths := c.AuthExemptPaths()
	want := map[string]bool{DefaultLoginPath: true, "/v2/refresh": true, DefaultLogoutPath: true}
	if len(paths) != len(want) {
		t.Fatalf("expected %d paths, got %v", len(want), paths)
	}
	for _, p := range paths {
		if !want[p] {
			t.Fatalf("unexpected exempt path %q", p)
		}
	}
}
