package microsoft

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
)

// UserAgent is sent with every Office 365 request.
var UserAgent = "o365connect"

// Client sends authenticated requests to one Office 365 REST endpoint.
type Client struct {
	httpClient *http.Client
	limiter    *RateLimiter
}

// NewClient creates a client paced for service. A nil httpClient uses a
// client with a 30 second timeout.
func NewClient(httpClient *http.Client, service ServiceType) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		limiter:    NewRateLimiter(service),
	}
}

// Do sends req with a bearer token from tokens. A request id is generated
// when req has none. Non-2xx responses are closed and returned as a
// ResponseError; the caller closes the body of a successful response.
func (c *Client) Do(ctx context.Context, req *http.Request, tokens driven.TokenSource) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	req = req.WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("client-request-id") == "" {
		req.Header.Set("client-request-id", uuid.New().String())
	}
	req.Header.Set("return-client-request-id", "true")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrTransport, req.Method, req.URL.Path, err)
	}
	c.limiter.Observe(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, ResponseError(req.Method+" "+req.URL.Path, resp)
	}
	return resp, nil
}

// RequestID returns the service's request-id for resp, falling back to the
// client-request-id that was sent.
func RequestID(resp *http.Response) string {
	if id := resp.Header.Get("request-id"); id != "" {
		return id
	}
	if id := resp.Header.Get("client-request-id"); id != "" {
		return id
	}
	if resp.Request != nil {
		return resp.Request.Header.Get("client-request-id")
	}
	return ""
}
