package microsoft

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
	"github.com/custodia-labs/o365connect/internal/logger"
)

// Ensure IdentityProvider implements the interface.
var _ driven.IdentityProvider = (*IdentityProvider)(nil)

// Authorizer shows the user the authorize page and returns the code Azure AD
// redirects back with.
type Authorizer interface {
	Authorize(ctx context.Context, authURL, state string) (code string, err error)
}

// AuthorizationError is an error redirected back from the authorize page.
type AuthorizationError struct {
	Code        string
	Description string
}

func (e *AuthorizationError) Error() string {
	if e.Description == "" {
		return "authorization failed: " + e.Code
	}
	return fmt.Sprintf("authorization failed: %s: %s", e.Code, e.Description)
}

// Azure AD error codes for accounts that cannot sign in to an organisational
// app, such as personal Microsoft accounts.
var wrongAccountCodes = []string{"AADSTS50020", "AADSTS500200", "AADSTS50177"}

// IdentityProvider acquires Azure AD tokens. Interactive sign-in goes through
// an Authorizer; silent acquisition redeems the cached refresh token.
type IdentityProvider struct {
	app        AppConfig
	oauth      *OAuthHandler
	authorizer Authorizer
	cache      driven.TokenCache
}

// NewIdentityProvider creates an identity provider for app.
func NewIdentityProvider(app AppConfig, authorizer Authorizer, cache driven.TokenCache) *IdentityProvider {
	return &IdentityProvider{
		app:        app,
		oauth:      NewOAuthHandler(app),
		authorizer: authorizer,
		cache:      cache,
	}
}

// AcquireTokenInteractive prompts the user to sign in and returns the
// identity for resource. An identity without a UserID means the sign-in
// succeeded with an account that has no organisational object id.
func (p *IdentityProvider) AcquireTokenInteractive(ctx context.Context, resource string) (*domain.Identity, error) {
	if err := p.app.Validate(); err != nil {
		return nil, err
	}
	if p.authorizer == nil {
		return nil, fmt.Errorf("%w: interactive sign-in is not available", domain.ErrConfiguration)
	}

	state := uuid.New().String()
	verifier := oauth2.GenerateVerifier()
	authURL := p.oauth.BuildAuthURL(resource, state, verifier)

	logger.Debug("microsoft: opening authorize page for %s", resource)
	code, err := p.authorizer.Authorize(ctx, authURL, state)
	if err != nil {
		return nil, classifyAuthorizeError(err)
	}

	tokens, err := p.oauth.ExchangeCode(ctx, code, verifier, resource)
	if err != nil {
		return nil, classifyAuthorizeError(err)
	}

	claims, err := ParseIDToken(tokens.IDToken)
	if err != nil {
		return nil, err
	}
	identity := claims.Identity(tokens)
	if !identity.HasAccount() {
		return identity, nil
	}

	if err := p.store(ctx, identity.UserID, tokens); err != nil {
		return nil, err
	}
	return identity, nil
}

// AcquireTokenSilent redeems the refresh token cached for userID for an
// access token to resource.
func (p *IdentityProvider) AcquireTokenSilent(
	ctx context.Context, resource, userID string,
) (*domain.Identity, error) {
	if p.cache == nil {
		return nil, fmt.Errorf("%w: token cache is required", domain.ErrConfiguration)
	}

	entry, ok, err := p.cache.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read token cache: %w", err)
	}
	if !ok || entry.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no cached refresh token for user %s", domain.ErrNotConnected, userID)
	}

	tokens, err := p.oauth.RefreshToken(ctx, entry.RefreshToken, resource)
	if err != nil {
		return nil, err
	}
	if tokens.IDToken == "" {
		tokens.IDToken = entry.IDToken
	}

	claims, err := ParseIDToken(tokens.IDToken)
	if err != nil {
		return nil, err
	}
	identity := claims.Identity(tokens)
	if identity.UserID == "" {
		identity.UserID = userID
	}

	if err := p.store(ctx, identity.UserID, tokens); err != nil {
		// The token is still usable for this run
		logger.Warn("microsoft: failed to update token cache: %v", err)
	}
	return identity, nil
}

// ClearCache forgets every cached refresh token.
func (p *IdentityProvider) ClearCache(ctx context.Context) error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Clear(ctx)
}

// SetupHint returns guidance for registering the Azure AD application.
func (p *IdentityProvider) SetupHint() string {
	return p.oauth.SetupHint()
}

func (p *IdentityProvider) store(ctx context.Context, userID string, tokens *TokenSet) error {
	if p.cache == nil || tokens.RefreshToken == "" {
		return nil
	}
	return p.cache.Put(ctx, domain.TokenCacheEntry{
		UserID:       userID,
		Resource:     tokens.Resource,
		RefreshToken: tokens.RefreshToken,
		IDToken:      tokens.IDToken,
		ExpiresAt:    tokens.Expiry,
	})
}

// classifyAuthorizeError maps account-type rejections to ErrWrongAccountType.
// Everything else is returned unchanged and classified by the caller.
func classifyAuthorizeError(err error) error {
	var authErr *AuthorizationError
	desc := err.Error()
	if errors.As(err, &authErr) {
		desc = authErr.Description
	}
	for _, code := range wrongAccountCodes {
		if strings.Contains(desc, code) {
			return domain.WrongAccountTypeError(desc)
		}
	}
	return err
}
