package microsoft

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/o365connect/internal/core/domain"
)

// Office 365 defaults.
const (
	// DefaultAuthority is the multi-tenant Azure AD authority.
	DefaultAuthority = "https://login.microsoftonline.com/common"
	// DefaultDiscoveryURL is the Office 365 discovery service root.
	DefaultDiscoveryURL = "https://api.office.com/discovery/v1.0/me/"
	// DefaultDiscoveryResource is the audience for discovery service tokens.
	DefaultDiscoveryResource = "https://api.office.com/discovery/"
	// DefaultRedirectURI is used when no redirect URI is configured.
	DefaultRedirectURI = "http://localhost:18080/callback"
)

// AppConfig identifies the Azure AD application the user signs in to.
type AppConfig struct {
	ClientID    string
	RedirectURI string
	Authority   string
}

// Validate checks the client id is a UUID and the redirect URI is absolute.
func (c AppConfig) Validate() error {
	clientID := strings.TrimSpace(c.ClientID)
	if clientID == "" {
		return fmt.Errorf("%w: client id is not set; register an app at portal.azure.com and run 'o365connect configure'",
			domain.ErrConfiguration)
	}
	if _, err := uuid.Parse(clientID); err != nil {
		return fmt.Errorf("%w: client id %q is not a valid UUID", domain.ErrConfiguration, clientID)
	}

	if strings.TrimSpace(c.RedirectURI) == "" {
		return fmt.Errorf("%w: redirect URI is not set", domain.ErrConfiguration)
	}
	u, err := url.Parse(c.RedirectURI)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: redirect URI %q is not an absolute URI", domain.ErrConfiguration, c.RedirectURI)
	}

	if c.Authority != "" {
		a, err := url.Parse(c.Authority)
		if err != nil || !a.IsAbs() || a.Host == "" {
			return fmt.Errorf("%w: authority %q is not an absolute URL", domain.ErrConfiguration, c.Authority)
		}
	}
	return nil
}

func (c AppConfig) authority() string {
	if c.Authority == "" {
		return DefaultAuthority
	}
	return strings.TrimSuffix(c.Authority, "/")
}
