package driven

import (
	"context"

	"github.com/custodia-labs/o365connect/internal/core/domain"
)

// DiscoveryClient lists the Office 365 services available to the user.
type DiscoveryClient interface {
	Services(ctx context.Context, tokens TokenSource) ([]domain.ServiceDescriptor, error)
}

// MailClient delivers one message through a discovered mail endpoint.
type MailClient interface {
	SendMail(ctx context.Context, endpointURI string, tokens TokenSource, msg domain.OutboundMessage) (domain.MessageID, error)
}

// SentArchive keeps a local copy of delivered messages.
type SentArchive interface {
	Store(ctx context.Context, id domain.MessageID, msg domain.OutboundMessage) error
}
