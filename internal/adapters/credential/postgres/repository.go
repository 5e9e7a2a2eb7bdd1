// Package postgres persists the single QuickBooks credential row.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"aliada/ms_informes_qbo/internal/core/credential"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements credential.Store on the qbo_tokens single-row table.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewStore creates a new PostgreSQL credential store.
func NewStore(pool *pgxpool.Pool, log *slog.Logger) credential.Store {
	return &Store{pool: pool, log: log}
}

// Load returns the stored credential, or credential.ErrNotConnected when the
// row holds no refresh token.
func (s *Store) Load(ctx context.Context) (*credential.Credential, error) {
	query := `
		SELECT realm_id, access_token, refresh_token, access_expires_at, updated_at
		FROM qbo_tokens
		WHERE id = 1
	`

	var (
		realmID, accessToken, refreshToken *string
		expiresAt                          *time.Time
		updatedAt                          time.Time
	)

	err := s.pool.QueryRow(ctx, query).Scan(&realmID, &accessToken, &refreshToken, &expiresAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, credential.ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	cred := &credential.Credential{UpdatedAt: updatedAt}
	if realmID != nil {
		cred.RealmID = *realmID
	}
	if accessToken != nil {
		cred.AccessToken = *accessToken
	}
	if refreshToken != nil {
		cred.RefreshToken = *refreshToken
	}
	if expiresAt != nil {
		cred.AccessExpiresAt = *expiresAt
	}

	if cred.RefreshToken == "" {
		return nil, credential.ErrNotConnected
	}

	return cred, nil
}

// Save unconditionally overwrites the credential row.
func (s *Store) Save(ctx context.Context, cred credential.Credential) error {
	query := `
		UPDATE qbo_tokens
		SET realm_id = $1,
		    access_token = $2,
		    refresh_token = $3,
		    access_expires_at = $4,
		    updated_at = NOW()
		WHERE id = 1
	`

	tag, err := s.pool.Exec(ctx, query, cred.RealmID, cred.AccessToken, cred.RefreshToken, cred.AccessExpiresAt)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New("save credential: token row missing, run migrations")
	}

	s.log.Debug("Credential saved", "realm_id", cred.RealmID, "expires_at", cred.AccessExpiresAt)
	return nil
}

// CompareAndSwap overwrites the row only while the stored refresh token still
// equals oldRefreshToken, serializing refresh-token rotation across
// concurrent requests and processes.
func (s *Store) CompareAndSwap(ctx context.Context, oldRefreshToken string, next credential.Credential) (bool, error) {
	query := `
		UPDATE qbo_tokens
		SET realm_id = $1,
		    access_token = $2,
		    refresh_token = $3,
		    access_expires_at = $4,
		    updated_at = NOW()
		WHERE id = 1 AND refresh_token = $5
	`

	tag, err := s.pool.Exec(ctx, query,
		next.RealmID, next.AccessToken, next.RefreshToken, next.AccessExpiresAt, oldRefreshToken)
	if err != nil {
		return false, fmt.Errorf("swap credential: %w", err)
	}

	swapped := tag.RowsAffected() == 1
	if !swapped {
		s.log.Warn("Credential swap lost the race, another writer rotated first")
	}
	return swapped, nil
}
