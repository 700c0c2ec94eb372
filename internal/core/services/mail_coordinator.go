package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/custodia-labs/o365connect/internal/core/async"
	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
	"github.com/custodia-labs/o365connect/internal/core/ports/driving"
	"github.com/custodia-labs/o365connect/internal/logger"
)

// Ensure MailCoordinator implements the interface.
var _ driving.MailCoordinator = (*MailCoordinator)(nil)

// MailCoordinator sends a single HTML message through the discovered mail
// service. It must be given the mail service descriptor before sending.
type MailCoordinator struct {
	auth    resourceBinder
	client  driven.MailClient
	archive driven.SentArchive

	mu          sync.Mutex
	endpointURI string
	resourceID  string
}

// NewMailCoordinator creates a mail coordinator. archive may be nil.
func NewMailCoordinator(auth resourceBinder, client driven.MailClient, archive driven.SentArchive) *MailCoordinator {
	return &MailCoordinator{
		auth:    auth,
		client:  client,
		archive: archive,
	}
}

// SetService stores the endpoint and resource of the discovered mail service.
func (m *MailCoordinator) SetService(svc domain.ServiceDescriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpointURI = svc.EndpointURI
	m.resourceID = svc.ResourceID
}

// IsReady reports whether both endpoint and resource are known.
func (m *MailCoordinator) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpointURI != "" && m.resourceID != ""
}

// Reset forgets the mail service.
func (m *MailCoordinator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpointURI = ""
	m.resourceID = ""
}

// SendMail sends one message. It fails immediately, without any network
// call, if the mail service has not been discovered. Send errors are
// returned as-is; there is no retry.
func (m *MailCoordinator) SendMail(
	ctx context.Context, to, subject, htmlBody string,
) *async.Future[domain.MessageID] {
	m.mu.Lock()
	endpointURI, resourceID := m.endpointURI, m.resourceID
	m.mu.Unlock()

	if endpointURI == "" || resourceID == "" {
		return async.Failed[domain.MessageID](fmt.Errorf(
			"%w: the mail service endpoint and resource must be discovered before sending", domain.ErrPrecondition))
	}

	recipient, err := normaliseRecipient(to)
	if err != nil {
		return async.Failed[domain.MessageID](err)
	}

	msg := domain.OutboundMessage{
		Recipient: recipient,
		Subject:   subject,
		HTMLBody:  htmlBody,
	}

	return async.Go(func() (domain.MessageID, error) {
		return m.send(ctx, endpointURI, resourceID, msg)
	})
}

func (m *MailCoordinator) send(
	ctx context.Context, endpointURI, resourceID string, msg domain.OutboundMessage,
) (domain.MessageID, error) {
	if m.client == nil {
		return "", fmt.Errorf("%w: mail client is required", domain.ErrConfiguration)
	}

	signer, err := m.auth.SignerFor(resourceID)
	if err != nil {
		return "", err
	}

	id, err := m.client.SendMail(ctx, endpointURI, signer, msg)
	if err != nil {
		return "", err
	}
	logger.Debug("mail: message %s sent to %s", id, msg.Recipient)

	if m.archive != nil {
		if err := m.archive.Store(ctx, id, msg); err != nil {
			logger.Warn("mail: failed to archive message %s: %v", id, err)
		}
	}
	return id, nil
}

// normaliseRecipient accepts "addr" or "Name <addr>" and returns the address.
func normaliseRecipient(to string) (string, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "", fmt.Errorf("%w: recipient address is required", domain.ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return "", fmt.Errorf("%w: recipient %q: %w", domain.ErrInvalidInput, to, err)
	}
	return addr.Address, nil
}
