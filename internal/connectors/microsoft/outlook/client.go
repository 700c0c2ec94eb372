// Package outlook sends mail through the Exchange Online REST API at the
// endpoint returned by discovery.
package outlook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/custodia-labs/o365connect/internal/connectors/microsoft"
	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
	"github.com/custodia-labs/o365connect/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.MailClient = (*Client)(nil)

// Client sends mail. Each SendMail is exactly one POST.
type Client struct {
	http   *microsoft.Client
	config *Config
}

// NewClient creates a mail client. A nil cfg uses DefaultConfig.
func NewClient(httpClient *http.Client, cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Client{
		http:   microsoft.NewClient(httpClient, microsoft.ServiceMail),
		config: cfg,
	}
}

// SendMail posts msg to {endpointURI}/me/sendmail. The service answers
// 202 Accepted without a body, so the returned id is the request id.
func (c *Client) SendMail(
	ctx context.Context, endpointURI string, tokens driven.TokenSource, msg domain.OutboundMessage,
) (domain.MessageID, error) {
	body, err := json.Marshal(NewSendMailRequest(msg, c.config.SaveToSentItems))
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.sendURL(endpointURI), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", domain.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req, tokens)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	id := microsoft.RequestID(resp)
	logger.Debug("outlook: sendmail accepted with status %d, request id %s", resp.StatusCode, id)
	return domain.MessageID(id), nil
}
