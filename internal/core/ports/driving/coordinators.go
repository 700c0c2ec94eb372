package driving

import (
	"context"

	"github.com/custodia-labs/o365connect/internal/core/async"
	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
)

// AuthCoordinator owns the signed-in session.
type AuthCoordinator interface {
	// Connect signs the user in, silently when a session is stored.
	Connect(ctx context.Context) *async.Future[*domain.Identity]
	// Disconnect clears cached tokens and the stored session. Idempotent.
	Disconnect(ctx context.Context) error
	// SetResourceID rebinds token acquisition to another resource audience.
	SetResourceID(resourceID string)
	// ResourceID returns the active resource audience.
	ResourceID() string
	// Signer returns the token source bound to the active resource.
	// It returns ErrNotConnected before a successful Connect.
	Signer() (driven.TokenSource, error)
	// IsConnected reports whether a session identifier is stored.
	IsConnected(ctx context.Context) (bool, error)
}

// DiscoveryCoordinator resolves capabilities to service endpoints.
type DiscoveryCoordinator interface {
	// GetServiceInfo resolves capability, fetching the service list at most once.
	GetServiceInfo(ctx context.Context, capability domain.Capability) *async.Future[domain.ServiceDescriptor]
	// Services returns a copy of the cached service list.
	Services() []domain.ServiceDescriptor
	// Reset forgets the cached service list.
	Reset()
}

// MailCoordinator sends mail through the discovered mail service.
type MailCoordinator interface {
	// SetService stores the discovered mail endpoint and resource.
	SetService(svc domain.ServiceDescriptor)
	// IsReady reports whether SetService stored a complete descriptor.
	IsReady() bool
	// SendMail sends one HTML message to a single recipient.
	SendMail(ctx context.Context, to, subject, htmlBody string) *async.Future[domain.MessageID]
	// Reset forgets the stored endpoint and resource.
	Reset()
}

// ConnectFlow sequences connect, discover and send for a user interface.
type ConnectFlow interface {
	State() domain.FlowState
	Snapshot() domain.FlowEvent
	Subscribe(listener func(domain.FlowEvent)) (unsubscribe func())
	Connect(ctx context.Context) error
	Discover(ctx context.Context) error
	Send(ctx context.Context, to, subject, htmlBody string) error
	Disconnect(ctx context.Context) error
	// Await blocks until the flow is in one of states.
	Await(ctx context.Context, states ...domain.FlowState) (domain.FlowEvent, error)
}
