package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
	"github.com/custodia-labs/o365connect/internal/logger"
)

// Ensure TokenCache implements the interface.
var _ driven.TokenCache = (*TokenCache)(nil)

// Sealer encrypts refresh tokens at rest.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// TokenCache is the token_cache table. Refresh tokens are sealed before
// they are written.
type TokenCache struct {
	store  *Store
	sealer Sealer
}

// NewTokenCache returns the token cache of store.
func NewTokenCache(store *Store, sealer Sealer) *TokenCache {
	return &TokenCache{store: store, sealer: sealer}
}

// Get returns the entry for userID. An entry that can no longer be opened is
// treated as absent, which sends the user back to the sign-in prompt.
func (c *TokenCache) Get(ctx context.Context, userID string) (*domain.TokenCacheEntry, bool, error) {
	var (
		entry     = domain.TokenCacheEntry{UserID: userID}
		sealed    []byte
		expiresAt int64
	)
	err := c.store.db.QueryRowContext(ctx,
		`SELECT resource, refresh_token, id_token, expires_at FROM token_cache WHERE user_id = ?`,
		userID).Scan(&entry.Resource, &sealed, &entry.IDToken, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get token cache entry: %w", err)
	}

	refreshToken, err := c.sealer.Open(sealed)
	if err != nil {
		logger.Warn("sqlite: discarding unreadable token cache entry: %v", err)
		return nil, false, nil
	}
	entry.RefreshToken = string(refreshToken)
	if expiresAt > 0 {
		entry.ExpiresAt = time.Unix(expiresAt, 0)
	}
	return &entry, true, nil
}

// Put stores or replaces the entry for entry.UserID.
func (c *TokenCache) Put(ctx context.Context, entry domain.TokenCacheEntry) error {
	if entry.UserID == "" {
		return errors.New("token cache entry has no user id")
	}
	sealed, err := c.sealer.Seal([]byte(entry.RefreshToken))
	if err != nil {
		return err
	}

	var expiresAt int64
	if !entry.ExpiresAt.IsZero() {
		expiresAt = entry.ExpiresAt.Unix()
	}

	_, err = c.store.db.ExecContext(ctx,
		`INSERT INTO token_cache (user_id, resource, refresh_token, id_token, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   resource = excluded.resource,
		   refresh_token = excluded.refresh_token,
		   id_token = excluded.id_token,
		   expires_at = excluded.expires_at`,
		entry.UserID, entry.Resource, sealed, entry.IDToken, expiresAt)
	if err != nil {
		return fmt.Errorf("put token cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (c *TokenCache) Clear(ctx context.Context) error {
	if _, err := c.store.db.ExecContext(ctx, `DELETE FROM token_cache`); err != nil {
		return fmt.Errorf("clear token cache: %w", err)
	}
	return nil
}
