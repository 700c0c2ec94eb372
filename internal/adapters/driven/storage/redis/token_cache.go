package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

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

// TokenCache stores one hash per user. Refresh tokens are sealed.
type TokenCache struct {
	redis  *redis.Client
	prefix string
	sealer Sealer
}

// NewTokenCache returns a token cache over client.
func NewTokenCache(client *redis.Client, prefix string, sealer Sealer) *TokenCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &TokenCache{redis: client, prefix: prefix, sealer: sealer}
}

func (c *TokenCache) key(userID string) string {
	return c.prefix + "tokens:" + userID
}

func (c *TokenCache) indexKey() string {
	return c.prefix + "tokens"
}

// Get returns the entry for userID.
func (c *TokenCache) Get(ctx context.Context, userID string) (*domain.TokenCacheEntry, bool, error) {
	fields, err := c.redis.HGetAll(ctx, c.key(userID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis get token cache entry: %w", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}

	refreshToken, err := c.sealer.Open([]byte(fields["refresh_token"]))
	if err != nil {
		logger.Warn("redis: discarding unreadable token cache entry: %v", err)
		return nil, false, nil
	}

	entry := &domain.TokenCacheEntry{
		UserID:       userID,
		Resource:     fields["resource"],
		RefreshToken: string(refreshToken),
		IDToken:      fields["id_token"],
	}
	if unix, err := strconv.ParseInt(fields["expires_at"], 10, 64); err == nil && unix > 0 {
		entry.ExpiresAt = time.Unix(unix, 0)
	}
	return entry, true, nil
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

	key := c.key(entry.UserID)
	_, err = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"resource", entry.Resource,
			"refresh_token", string(sealed),
			"id_token", entry.IDToken,
			"expires_at", strconv.FormatInt(expiresAt, 10),
		)
		pipe.SAdd(ctx, c.indexKey(), entry.UserID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put token cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry written through this cache.
func (c *TokenCache) Clear(ctx context.Context) error {
	users, err := c.redis.SMembers(ctx, c.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("redis clear token cache: %w", err)
	}
	keys := make([]string, 0, len(users)+1)
	for _, u := range users {
		keys = append(keys, c.key(u))
	}
	keys = append(keys, c.indexKey())
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis clear token cache: %w", err)
	}
	return nil
}
