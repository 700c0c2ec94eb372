package driven

import (
	"context"

	"github.com/custodia-labs/o365connect/internal/core/domain"
)

// IdentityProvider acquires tokens from the directory service.
// Implementations own the wire protocol; callers only pick the path.
type IdentityProvider interface {
	// AcquireTokenInteractive prompts the user for credentials and returns the
	// signed-in identity with a token for resource.
	AcquireTokenInteractive(ctx context.Context, resource string) (*domain.Identity, error)

	// AcquireTokenSilent returns a token for resource using cached credentials
	// for userID, without user interaction.
	AcquireTokenSilent(ctx context.Context, resource, userID string) (*domain.Identity, error)

	// ClearCache removes every cached credential.
	ClearCache(ctx context.Context) error
}

// TokenCache persists refresh credentials between runs.
type TokenCache interface {
	// Get returns the entry for userID. ok is false if none is stored.
	Get(ctx context.Context, userID string) (entry *domain.TokenCacheEntry, ok bool, err error)
	// Put stores or replaces the entry for entry.UserID.
	Put(ctx context.Context, entry domain.TokenCacheEntry) error
	// Clear removes every entry.
	Clear(ctx context.Context) error
}

// TokenSource returns bearer tokens for a fixed resource.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
