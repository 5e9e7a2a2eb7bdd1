package qbo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aliada/ms_informes_qbo/internal/core/credential"
	"aliada/ms_informes_qbo/internal/testutil"
)

func newTokenServer(t *testing.T, response string, status int, gotGrant *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST to token endpoint, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if gotGrant != nil {
			*gotGrant = r.Form.Get("grant_type")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
}

func newManager(store credential.Store, tokenURL string) *SessionManager {
	return NewSessionManager(OAuthSettings{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example.com/callback",
		Scopes:       []string{"com.intuit.quickbooks.accounting"},
		TokenURL:     tokenURL,
		Skew:         60 * time.Second,
	}, store, testutil.NewNullLogger())
}

func TestSessionManager_AuthCodeURL(t *testing.T) {
	manager := newManager(testutil.NewMockStore(nil), "")

	got := manager.AuthCodeURL("state-123")
	if !strings.Contains(got, "appcenter.intuit.com") {
		t.Errorf("expected Intuit authorize URL, got %q", got)
	}
	if !strings.Contains(got, "state=state-123") {
		t.Errorf("expected state parameter, got %q", got)
	}
	if !strings.Contains(got, "client_id=client-id") {
		t.Errorf("expected client id parameter, got %q", got)
	}
}

func TestSessionManager_Exchange_PersistsCredential(t *testing.T) {
	var grant string
	server := newTokenServer(t, `{
		"access_token": "access-1",
		"refresh_token": "refresh-1",
		"token_type": "bearer",
		"expires_in": 3600
	}`, http.StatusOK, &grant)
	defer server.Close()

	store := testutil.NewMockStore(nil)
	manager := newManager(store, server.URL)

	if err := manager.Exchange(context.Background(), "auth-code", "realm-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if grant != "authorization_code" {
		t.Errorf("expected authorization_code grant, got %q", grant)
	}

	cred := store.Current()
	if cred == nil {
		t.Fatal("expected credential to be persisted")
	}
	if cred.RealmID != "realm-9" || cred.AccessToken != "access-1" || cred.RefreshToken != "refresh-1" {
		t.Errorf("unexpected persisted credential: %+v", cred)
	}
	if cred.AccessExpiresAt.Before(time.Now().Add(30 * time.Minute)) {
		t.Errorf("expected expiry about an hour out, got %v", cred.AccessExpiresAt)
	}
}

func TestSessionManager_Exchange_MissingCode(t *testing.T) {
	manager := newManager(testutil.NewMockStore(nil), "")
	if err := manager.Exchange(context.Background(), "", "realm"); err == nil {
		t.Fatal("expected error for missing code, got nil")
	}
	if err := manager.Exchange(context.Background(), "code", ""); err == nil {
		t.Fatal("expected error for missing realm, got nil")
	}
}

func TestSessionManager_Token_ValidTokenUsedDirectly(t *testing.T) {
	store := testutil.NewMockStore(&credential.Credential{
		RealmID:         "realm-1",
		AccessToken:     "live-token",
		RefreshToken:    "refresh-1",
		AccessExpiresAt: time.Now().Add(1 * time.Hour),
	})
	manager := newManager(store, "")

	token, realm, err := manager.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "live-token" || realm != "realm-1" {
		t.Errorf("expected stored token, got %q/%q", token, realm)
	}
	if store.SwapCalls != 0 {
		t.Errorf("expected no refresh, got %d swap calls", store.SwapCalls)
	}
}

func TestSessionManager_Token_RefreshesExpiredAndRotates(t *testing.T) {
	var grant string
	server := newTokenServer(t, `{
		"access_token": "access-2",
		"refresh_token": "refresh-2",
		"token_type": "bearer",
		"expires_in": 3600
	}`, http.StatusOK, &grant)
	defer server.Close()

	store := testutil.NewMockStore(&credential.Credential{
		RealmID:         "realm-1",
		AccessToken:     "stale-token",
		RefreshToken:    "refresh-1",
		AccessExpiresAt: time.Now().Add(-1 * time.Hour),
	})
	manager := newManager(store, server.URL)

	token, realm, err := manager.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if grant != "refresh_token" {
		t.Errorf("expected refresh_token grant, got %q", grant)
	}
	if token != "access-2" || realm != "realm-1" {
		t.Errorf("expected refreshed token, got %q/%q", token, realm)
	}

	// Rotation persisted atomically: new access token, new refresh token,
	// new expiry.
	cred := store.Current()
	if cred.AccessToken != "access-2" {
		t.Errorf("expected stored access token 'access-2', got %q", cred.AccessToken)
	}
	if cred.RefreshToken != "refresh-2" {
		t.Errorf("expected rotated refresh token 'refresh-2', got %q", cred.RefreshToken)
	}
	if !cred.AccessExpiresAt.After(time.Now()) {
		t.Errorf("expected future expiry, got %v", cred.AccessExpiresAt)
	}
}

func TestSessionManager_Token_LostSwapUsesStoredCredential(t *testing.T) {
	server := newTokenServer(t, `{
		"access_token": "my-refresh-result",
		"refresh_token": "my-rotation",
		"expires_in": 3600
	}`, http.StatusOK, nil)
	defer server.Close()

	store := testutil.NewMockStore(&credential.Credential{
		RealmID:         "realm-1",
		AccessToken:     "stale-token",
		RefreshToken:    "refresh-1",
		AccessExpiresAt: time.Now().Add(-1 * time.Hour),
	})
	store.ForceSwapFailure = true
	manager := newManager(store, server.URL)

	token, _, err := manager.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The concurrent winner's stored token is used, not this refresh result.
	if token != "stale-token" {
		t.Errorf("expected the stored credential after a lost swap, got %q", token)
	}
	if store.Current().RefreshToken != "refresh-1" {
		t.Error("expected the stored refresh token to stay untouched after a lost swap")
	}
}

func TestSessionManager_Token_RefreshRejectedSurfacesReconnect(t *testing.T) {
	server := newTokenServer(t, `{"error": "invalid_grant"}`, http.StatusBadRequest, nil)
	defer server.Close()

	store := testutil.NewMockStore(&credential.Credential{
		RealmID:         "realm-1",
		AccessToken:     "stale-token",
		RefreshToken:    "revoked",
		AccessExpiresAt: time.Now().Add(-1 * time.Hour),
	})
	manager := newManager(store, server.URL)

	_, _, err := manager.Token(context.Background())
	if !errors.Is(err, ErrReconnectRequired) {
		t.Fatalf("expected ErrReconnectRequired, got %v", err)
	}
}

func TestSessionManager_Token_NotConnected(t *testing.T) {
	manager := newManager(testutil.NewMockStore(nil), "")

	_, _, err := manager.Token(context.Background())
	if !errors.Is(err, credential.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}
