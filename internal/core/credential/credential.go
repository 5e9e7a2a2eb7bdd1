// Package credential defines the OAuth credential set for the connected
// QuickBooks company and the contract for persisting it.
package credential

import (
	"context"
	"errors"
	"time"
)

// ErrNotConnected indicates no QuickBooks company has been connected yet
// (or the stored credential has been cleared).
var ErrNotConnected = errors.New("no quickbooks connection stored")

// Credential is the single OAuth credential set for the connected company.
// It is overwritten as a whole on every refresh or (re)connect.
type Credential struct {
	RealmID         string
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
	UpdatedAt       time.Time
}

// AccessTokenValid reports whether the access token is still usable,
// leaving skew of safety margin before the recorded expiry.
func (c Credential) AccessTokenValid(now time.Time, skew time.Duration) bool {
	if c.AccessToken == "" || c.AccessExpiresAt.IsZero() {
		return false
	}
	return c.AccessExpiresAt.Sub(now) > skew
}

// Store persists the single credential row across process restarts.
//
// CompareAndSwap exists because the provider rotates refresh tokens on every
// refresh call: two workers racing past an expired access token must not both
// persist a refresh result. The swap only succeeds while the stored refresh
// token still equals oldRefreshToken.
type Store interface {
	// Load returns the stored credential, or ErrNotConnected when the row
	// is empty.
	Load(ctx context.Context) (*Credential, error)

	// Save unconditionally overwrites the stored credential. Used by the
	// OAuth callback, where the authorization-code exchange is authoritative.
	Save(ctx context.Context, cred Credential) error

	// CompareAndSwap overwrites the stored credential only if the stored
	// refresh token still equals oldRefreshToken. Returns false when another
	// writer rotated the credential first.
	CompareAndSwap(ctx context.Context, oldRefreshToken string, next Credential) (bool, error)
}
