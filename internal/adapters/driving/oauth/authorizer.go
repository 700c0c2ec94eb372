package oauth

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/custodia-labs/o365connect/internal/connectors/microsoft"
)

// DefaultTimeout bounds how long the user has to finish signing in.
const DefaultTimeout = 5 * time.Minute

// Ensure LoopbackAuthorizer implements the interface.
var _ microsoft.Authorizer = (*LoopbackAuthorizer)(nil)

// LoopbackAuthorizer opens the authorize page in a browser and receives the
// redirect on the configured loopback redirect URI.
type LoopbackAuthorizer struct {
	RedirectURI string
	// Open shows authURL to the user. Defaults to OpenBrowser.
	Open func(authURL string) error
	// Out receives the fallback instructions. May be nil.
	Out     io.Writer
	Timeout time.Duration
}

// NewLoopbackAuthorizer returns an authorizer for redirectURI that prints
// instructions to out.
func NewLoopbackAuthorizer(redirectURI string, out io.Writer) *LoopbackAuthorizer {
	return &LoopbackAuthorizer{
		RedirectURI: redirectURI,
		Open:        OpenBrowser,
		Out:         out,
		Timeout:     DefaultTimeout,
	}
}

// Authorize runs one sign-in and returns the authorization code.
func (a *LoopbackAuthorizer) Authorize(ctx context.Context, authURL, state string) (string, error) {
	u, err := url.Parse(a.RedirectURI)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid redirect URI %q", a.RedirectURI)
	}
	if u.Scheme != "http" {
		return "", fmt.Errorf("redirect URI %q must use http on a loopback address", a.RedirectURI)
	}

	server := NewCallbackServer(u.Host, u.Path, state)
	if err := server.Start(); err != nil {
		return "", fmt.Errorf("failed to start callback server: %w", err)
	}
	defer server.Stop()

	a.printf("\nOpening browser for sign-in...\n")
	a.printf("If the browser doesn't open, visit:\n%s\n", authURL)

	open := a.Open
	if open == nil {
		open = OpenBrowser
	}
	if err := open(authURL); err != nil {
		a.printf("Failed to open browser: %v\n", err)
	}

	a.printf("\nWaiting for authorization...\n")
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return server.WaitForCode(ctx, timeout)
}

func (a *LoopbackAuthorizer) printf(format string, args ...any) {
	if a.Out == nil {
		return
	}
	fmt.Fprintf(a.Out, format, args...)
}
