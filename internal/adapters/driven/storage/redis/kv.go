// Package redis keeps the session and token cache in Redis, so several
// machines can share one sign-in.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "o365connect:"

// Ensure KV implements the interface.
var _ driven.KeyValueStore = (*KV)(nil)

// KV stores string values under prefixed keys.
type KV struct {
	redis  *redis.Client
	prefix string
}

// NewKV returns a key-value store over client. An empty prefix uses
// DefaultPrefix.
func NewKV(client *redis.Client, prefix string) *KV {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &KV{redis: client, prefix: prefix}
}

func (k *KV) key(name string) string {
	return k.prefix + "kv:" + name
}

// Get returns the value for key.
func (k *KV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := k.redis.Get(ctx, k.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

// Put stores value under key without expiry.
func (k *KV) Put(ctx context.Context, key, value string) error {
	if err := k.redis.Set(ctx, k.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (k *KV) Remove(ctx context.Context, key string) error {
	if err := k.redis.Del(ctx, k.key(key)).Err(); err != nil {
		return fmt.Errorf("redis remove %s: %w", key, err)
	}
	return nil
}
