// Package qbo talks to QuickBooks Online: the OAuth2 token lifecycle and the
// authenticated REST calls (entity queries and report fetches).
package qbo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"aliada/ms_informes_qbo/internal/core/credential"
)

const (
	// Intuit OAuth2 endpoints. The token endpoint is shared by the
	// authorization-code exchange and refresh-token rotation.
	defaultAuthURL  = "https://appcenter.intuit.com/connect/oauth2"
	defaultTokenURL = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
)

// ErrReconnectRequired indicates the refresh token was rejected (revoked or
// already rotated away) and the user must run the connect flow again.
var ErrReconnectRequired = errors.New("quickbooks session expired, reconnect the company")

// OAuthSettings configures the session manager. AuthURL/TokenURL default to
// the Intuit endpoints when empty.
type OAuthSettings struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	Skew         time.Duration
}

// SessionManager drives the authorization-code exchange and refresh-token
// rotation, with the credential store as the source of truth across
// restarts and processes.
type SessionManager struct {
	oauth *oauth2.Config
	store credential.Store
	skew  time.Duration
	log   *slog.Logger
	now   func() time.Time
	mu    sync.Mutex // serializes refresh within this process
}

// NewSessionManager creates an OAuth session manager over the given store.
func NewSessionManager(settings OAuthSettings, store credential.Store, log *slog.Logger) *SessionManager {
	authURL := settings.AuthURL
	if authURL == "" {
		authURL = defaultAuthURL
	}
	tokenURL := settings.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	skew := settings.Skew
	if skew <= 0 {
		skew = 60 * time.Second
	}

	return &SessionManager{
		oauth: &oauth2.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			RedirectURL:  settings.RedirectURI,
			Scopes:       settings.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		store: store,
		skew:  skew,
		log:   log,
		now:   time.Now,
	}
}

// AuthCodeURL builds the provider authorization URL carrying the
// anti-forgery state token.
func (m *SessionManager) AuthCodeURL(state string) string {
	return m.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token pair and persists it
// together with the company realm. The exchange result is authoritative, so
// the store row is overwritten unconditionally.
func (m *SessionManager) Exchange(ctx context.Context, code, realmID string) error {
	if code == "" {
		return errors.New("authorization code is required")
	}
	if realmID == "" {
		return errors.New("realm id is required")
	}

	token, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if token.RefreshToken == "" {
		return errors.New("provider response missing refresh token")
	}

	cred := credential.Credential{
		RealmID:         realmID,
		AccessToken:     token.AccessToken,
		RefreshToken:    token.RefreshToken,
		AccessExpiresAt: token.Expiry,
	}
	if err := m.store.Save(ctx, cred); err != nil {
		return err
	}

	m.log.Info("QuickBooks company connected", "realm_id", realmID, "expires_at", token.Expiry)
	return nil
}

// Token returns a valid access token and the connected realm, transparently
// refreshing and persisting the rotated refresh token when the access token
// is expired. Callers get credential.ErrNotConnected when no company is
// connected and ErrReconnectRequired when the refresh token was rejected.
func (m *SessionManager) Token(ctx context.Context) (accessToken, realmID string, err error) {
	cred, err := m.store.Load(ctx)
	if err != nil {
		return "", "", err
	}

	if cred.AccessTokenValid(m.now(), m.skew) {
		return cred.AccessToken, cred.RealmID, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-read after acquiring the lock: another request on this process may
	// have refreshed already.
	cred, err = m.store.Load(ctx)
	if err != nil {
		return "", "", err
	}
	if cred.AccessTokenValid(m.now(), m.skew) {
		return cred.AccessToken, cred.RealmID, nil
	}

	return m.refresh(ctx, cred)
}

// refresh performs the refresh-token exchange and persists the rotation
// through a compare-and-swap. Losing the swap means another process rotated
// first; its stored result is used instead.
func (m *SessionManager) refresh(ctx context.Context, cred *credential.Credential) (string, string, error) {
	source := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
	token, err := source.Token()
	if err != nil {
		m.log.Error("QuickBooks token refresh failed", "error", err)
		return "", "", fmt.Errorf("%w: %v", ErrReconnectRequired, err)
	}

	newRefresh := token.RefreshToken
	if newRefresh == "" {
		newRefresh = cred.RefreshToken
	}

	next := credential.Credential{
		RealmID:         cred.RealmID,
		AccessToken:     token.AccessToken,
		RefreshToken:    newRefresh,
		AccessExpiresAt: token.Expiry,
	}

	swapped, err := m.store.CompareAndSwap(ctx, cred.RefreshToken, next)
	if err != nil {
		return "", "", err
	}
	if !swapped {
		// A concurrent refresh won; the stored credential is the live one.
		stored, err := m.store.Load(ctx)
		if err != nil {
			return "", "", err
		}
		return stored.AccessToken, stored.RealmID, nil
	}

	m.log.Debug("QuickBooks access token refreshed", "realm_id", next.RealmID, "expires_at", next.AccessExpiresAt)
	return next.AccessToken, next.RealmID, nil
}
