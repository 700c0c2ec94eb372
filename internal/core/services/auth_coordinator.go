package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/o365connect/internal/core/async"
	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
	"github.com/custodia-labs/o365connect/internal/core/ports/driving"
	"github.com/custodia-labs/o365connect/internal/logger"
)

// Ensure AuthCoordinator implements the interface.
var _ driving.AuthCoordinator = (*AuthCoordinator)(nil)

// AuthCoordinator signs the user in and hands out token sources bound to one
// resource audience at a time.
type AuthCoordinator struct {
	provider        driven.IdentityProvider
	sessions        *SessionStore
	defaultResource string
	now             func() time.Time

	mu       sync.RWMutex
	resource string
	userID   string
	identity *domain.Identity
	signer   *resourceSigner
}

// NewAuthCoordinator creates a coordinator whose initial resource audience is
// defaultResource, normally the discovery service resource.
func NewAuthCoordinator(
	provider driven.IdentityProvider,
	sessions *SessionStore,
	defaultResource string,
) *AuthCoordinator {
	return &AuthCoordinator{
		provider:        provider,
		sessions:        sessions,
		defaultResource: defaultResource,
		resource:        defaultResource,
		now:             time.Now,
	}
}

// Connect signs the user in on a background goroutine.
//
// Without a stored session the user is prompted. With one, a silent
// acquisition is attempted first and any failure falls back to exactly one
// interactive prompt.
func (a *AuthCoordinator) Connect(ctx context.Context) *async.Future[*domain.Identity] {
	return async.Go(func() (*domain.Identity, error) {
		return a.connect(ctx)
	})
}

func (a *AuthCoordinator) connect(ctx context.Context) (*domain.Identity, error) {
	if a.provider == nil || a.sessions == nil {
		return nil, fmt.Errorf("%w: identity provider and session store are required", domain.ErrConfiguration)
	}

	userID, ok, err := a.sessions.UserID(ctx)
	if err != nil {
		return nil, err
	}

	resource := a.ResourceID()
	if ok && userID != "" {
		identity, err := a.authenticateSilent(ctx, resource, userID)
		if err == nil {
			return identity, nil
		}
		logger.Debug("auth: silent acquisition failed, prompting: %v", err)
	}

	return a.authenticatePrompt(ctx, resource)
}

func (a *AuthCoordinator) authenticateSilent(ctx context.Context, resource, userID string) (*domain.Identity, error) {
	identity, err := a.provider.AcquireTokenSilent(ctx, resource, userID)
	if err != nil {
		return nil, err
	}
	if !identity.HasAccount() {
		return nil, errors.New("silent acquisition returned no account")
	}

	a.bind(resource, userID, identity)
	logger.Debug("auth: signed in silently as %s", identity.DisplayableID)
	return identity, nil
}

func (a *AuthCoordinator) authenticatePrompt(ctx context.Context, resource string) (*domain.Identity, error) {
	identity, err := a.provider.AcquireTokenInteractive(ctx, resource)
	if err != nil {
		a.clearAfterFailure(ctx)
		if errors.Is(err, domain.ErrWrongAccountType) || errors.Is(err, domain.ErrConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrAuth, err)
	}

	if !identity.HasAccount() {
		// Reported as success but without an organisational account,
		// e.g. a personal Microsoft account.
		a.clearAfterFailure(ctx)
		return nil, domain.WrongAccountTypeError("")
	}

	if err := a.sessions.SetUserID(ctx, identity.UserID); err != nil {
		return nil, err
	}

	a.bind(resource, identity.UserID, identity)
	logger.Debug("auth: signed in as %s", identity.DisplayableID)
	return identity, nil
}

// bind rebuilds the signer for resource and records the signed-in identity.
func (a *AuthCoordinator) bind(resource, userID string, identity *domain.Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.userID = userID
	a.identity = identity
	if a.resource == resource {
		a.signer = newResourceSigner(a.provider, resource, userID, identity, a.now)
		return
	}
	// The resource changed while the prompt was open. Bind to the new one
	// and let the first Token call acquire silently.
	a.signer = newResourceSigner(a.provider, a.resource, userID, nil, a.now)
}

func (a *AuthCoordinator) clearAfterFailure(ctx context.Context) {
	if err := a.Disconnect(ctx); err != nil {
		logger.Warn("auth: failed to clear session after failed sign-in: %v", err)
	}
}

// Disconnect clears the token cache and stored session and resets the
// coordinator to its initial resource. It is safe to call repeatedly.
func (a *AuthCoordinator) Disconnect(ctx context.Context) error {
	var errs []error

	if a.provider != nil {
		if err := a.provider.ClearCache(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear token cache: %w", err))
		}
	}
	if a.sessions != nil {
		if err := a.sessions.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	a.mu.Lock()
	a.resource = a.defaultResource
	a.userID = ""
	a.identity = nil
	a.signer = nil
	a.mu.Unlock()

	return errors.Join(errs...)
}

// SetResourceID switches the active resource audience. The signer is rebuilt
// for the new resource; no prompt is needed because the sign-in session is
// valid across resources.
func (a *AuthCoordinator) SetResourceID(resourceID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bindResourceLocked(resourceID)
}

// SignerFor switches to resourceID and returns its signer in one step, so a
// concurrent switch cannot hand back a signer for another audience.
func (a *AuthCoordinator) SignerFor(resourceID string) (driven.TokenSource, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bindResourceLocked(resourceID)

	if a.signer == nil {
		return nil, domain.ErrNotConnected
	}
	return a.signer, nil
}

func (a *AuthCoordinator) bindResourceLocked(resourceID string) {
	if a.resource == resourceID && a.signer != nil {
		return
	}
	a.resource = resourceID
	if a.userID != "" {
		a.signer = newResourceSigner(a.provider, resourceID, a.userID, nil, a.now)
	}
}

// ResourceID returns the active resource audience.
func (a *AuthCoordinator) ResourceID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.resource
}

// Signer returns the token source bound to the active resource.
func (a *AuthCoordinator) Signer() (driven.TokenSource, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.signer == nil {
		return nil, domain.ErrNotConnected
	}
	return a.signer, nil
}

// Identity returns the signed-in identity, or nil.
func (a *AuthCoordinator) Identity() *domain.Identity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.identity
}

// IsConnected reports whether a session identifier is stored.
func (a *AuthCoordinator) IsConnected(ctx context.Context) (bool, error) {
	if a.sessions == nil {
		return false, nil
	}
	userID, ok, err := a.sessions.UserID(ctx)
	if err != nil {
		return false, err
	}
	return ok && userID != "", nil
}

// resourceSigner supplies bearer tokens for a single resource audience.
// A new signer is built whenever the resource changes.
type resourceSigner struct {
	provider driven.IdentityProvider
	resource string
	userID   string
	now      func() time.Time

	mu      sync.Mutex
	current *domain.Identity
}

func newResourceSigner(
	provider driven.IdentityProvider,
	resource, userID string,
	seed *domain.Identity,
	now func() time.Time,
) *resourceSigner {
	s := &resourceSigner{
		provider: provider,
		resource: resource,
		userID:   userID,
		now:      now,
	}
	if seed != nil && seed.Resource == resource {
		s.current = seed
	}
	return s
}

// Token returns a valid access token, acquiring one silently when needed.
func (s *resourceSigner) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Refresh slightly early so a token does not expire in flight.
	if s.current != nil && !s.current.Expired(s.now().Add(time.Minute)) {
		return s.current.AccessToken, nil
	}

	identity, err := s.provider.AcquireTokenSilent(ctx, s.resource, s.userID)
	if err != nil {
		return "", fmt.Errorf("%w: acquire token for %s: %w", domain.ErrAuth, s.resource, err)
	}
	s.current = identity
	return identity.AccessToken, nil
}
