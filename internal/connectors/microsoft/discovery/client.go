// Package discovery lists the Office 365 services available to the signed-in
// user through the Office 365 discovery service.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/custodia-labs/o365connect/internal/connectors/microsoft"
	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
	"github.com/custodia-labs/o365connect/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.DiscoveryClient = (*Client)(nil)

// selectFields limits the service list to what the app reads.
const selectFields = "serviceResourceId,serviceEndpointUri,capability,serviceName"

// ServiceInfo is one entry of the discovery service response.
type ServiceInfo struct {
	Capability         string `json:"capability"`
	ServiceName        string `json:"serviceName"`
	ServiceEndpointURI string `json:"serviceEndpointUri"`
	ServiceResourceID  string `json:"serviceResourceId"`
}

// ServicesResponse is the OData collection returned by /me/services.
type ServicesResponse struct {
	Value []ServiceInfo `json:"value"`
}

// Client calls the discovery service. Each Services call is one GET.
type Client struct {
	http    *microsoft.Client
	baseURL string
}

// NewClient creates a discovery client rooted at baseURL, normally
// microsoft.DefaultDiscoveryURL.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = microsoft.DefaultDiscoveryURL
	}
	return &Client{
		http:    microsoft.NewClient(httpClient, microsoft.ServiceDiscovery),
		baseURL: baseURL,
	}
}

// ServicesURL returns the services collection URL.
func (c *Client) ServicesURL() string {
	q := url.Values{}
	q.Set("$select", selectFields)
	return strings.TrimSuffix(c.baseURL, "/") + "/services?" + q.Encode()
}

// Services returns every service the user can reach, in response order.
func (c *Client) Services(ctx context.Context, tokens driven.TokenSource) ([]domain.ServiceDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ServicesURL(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", domain.ErrTransport, err)
	}

	resp, err := c.http.Do(ctx, req, tokens)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body ServicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode services: %w", domain.ErrTransport, err)
	}

	services := make([]domain.ServiceDescriptor, 0, len(body.Value))
	for _, info := range body.Value {
		services = append(services, info.Descriptor())
	}
	logger.Debug("discovery: %d services returned", len(services))
	return services, nil
}

// Descriptor converts the wire entry to a domain descriptor.
func (s ServiceInfo) Descriptor() domain.ServiceDescriptor {
	return domain.ServiceDescriptor{
		Capability:  domain.Capability(s.Capability),
		ServiceName: s.ServiceName,
		EndpointURI: s.ServiceEndpointURI,
		ResourceID:  s.ServiceResourceID,
	}
}
