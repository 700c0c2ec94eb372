package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
)

// sessionUserIDKey is the key holding the signed-in user's object id.
const sessionUserIDKey = "session.user_id"

// SessionStore persists the identifier of the last signed-in user.
// Its presence is what makes Connect try silent acquisition first.
type SessionStore struct {
	kv driven.KeyValueStore
}

// NewSessionStore creates a session store over kv.
func NewSessionStore(kv driven.KeyValueStore) *SessionStore {
	return &SessionStore{kv: kv}
}

// UserID returns the stored user id. ok is false if no session is stored.
func (s *SessionStore) UserID(ctx context.Context) (userID string, ok bool, err error) {
	userID, ok, err = s.kv.Get(ctx, sessionUserIDKey)
	if err != nil {
		return "", false, fmt.Errorf("read session: %w", err)
	}
	return userID, ok, nil
}

// SetUserID stores userID as the current session.
func (s *SessionStore) SetUserID(ctx context.Context, userID string) error {
	if err := s.kv.Put(ctx, sessionUserIDKey, userID); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Clear forgets the stored session. Clearing an empty store is a no-op.
func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, sessionUserIDKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
