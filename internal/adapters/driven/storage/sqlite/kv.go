package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
)

// Ensure KV implements the interface.
var _ driven.KeyValueStore = (*KV)(nil)

// KV is the key-value table.
type KV struct {
	store *Store
}

// NewKV returns the key-value table of store.
func NewKV(store *Store) *KV {
	return &KV{store: store}
}

// Get returns the value for key.
func (k *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := k.store.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Put stores value under key.
func (k *KV) Put(ctx context.Context, key, value string) error {
	_, err := k.store.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (k *KV) Remove(ctx context.Context, key string) error {
	if _, err := k.store.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
