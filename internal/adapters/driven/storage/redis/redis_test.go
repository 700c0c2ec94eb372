package redis

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/o365connect/internal/adapters/driven/secret"
	"github.com/custodia-labs/o365connect/internal/core/domain"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func testSealer(t *testing.T) *secret.Sealer {
	t.Helper()
	sealer, err := secret.NewSealer("p", bytes.Repeat([]byte{2}, 16))
	require.NoError(t, err)
	return sealer
}

func TestKV(t *testing.T) {
	mr, rdb := setupRedis(t)
	kv := NewKV(rdb, "")
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "session.user_id")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Put(ctx, "session.user_id", "user-1"))
	value, ok, err := kv.Get(ctx, "session.user_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user-1", value)
	assert.True(t, mr.Exists("o365connect:kv:session.user_id"))

	require.NoError(t, kv.Remove(ctx, "session.user_id"))
	_, ok, err = kv.Get(ctx, "session.user_id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKV_Prefix(t *testing.T) {
	mr, rdb := setupRedis(t)
	kv := NewKV(rdb, "team-a:")

	require.NoError(t, kv.Put(context.Background(), "k", "v"))

	assert.True(t, mr.Exists("team-a:kv:k"))
	assert.False(t, mr.Exists("o365connect:kv:k"))
}

func TestKV_Unavailable(t *testing.T) {
	mr, rdb := setupRedis(t)
	kv := NewKV(rdb, "")
	mr.Close()

	_, _, err := kv.Get(context.Background(), "k")

	assert.Error(t, err)
}

func TestTokenCache(t *testing.T) {
	mr, rdb := setupRedis(t)
	cache := NewTokenCache(rdb, "", testSealer(t))
	ctx := context.Background()
	expires := time.Unix(1_800_000_000, 0)

	_, ok, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, domain.TokenCacheEntry{
		UserID:       "user-1",
		Resource:     "https://outlook.office365.com/",
		RefreshToken: "refresh-1",
		IDToken:      "id-token",
		ExpiresAt:    expires,
	}))

	entry, ok, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "refresh-1", entry.RefreshToken)
	assert.Equal(t, "https://outlook.office365.com/", entry.Resource)
	assert.Equal(t, "id-token", entry.IDToken)
	assert.True(t, expires.Equal(entry.ExpiresAt))

	assert.NotContains(t, mr.HGet("o365connect:tokens:user-1", "refresh_token"), "refresh-1")

	require.NoError(t, cache.Clear(ctx))
	_, ok, err = cache.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("o365connect:tokens"))
}

func TestTokenCache_UnreadableEntryIsAbsent(t *testing.T) {
	mr, rdb := setupRedis(t)
	cache := NewTokenCache(rdb, "", testSealer(t))
	mr.HSet("o365connect:tokens:u", "refresh_token", "garbage")

	_, ok, err := cache.Get(context.Background(), "u")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenCache_PutWithoutUser(t *testing.T) {
	_, rdb := setupRedis(t)
	cache := NewTokenCache(rdb, "", testSealer(t))

	assert.Error(t, cache.Put(context.Background(), domain.TokenCacheEntry{}))
}
