package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
)

const (
	testDiscoveryResource = "https://api.office.com/discovery/"
	testMailResource      = "https://outlook.office365.com/"
	testMailEndpoint      = "https://outlook.office365.com/api/v1.0"
)

// mockKV implements driven.KeyValueStore in memory.
type mockKV struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
}

func newMockKV() *mockKV {
	return &mockKV{values: make(map[string]string)}
}

func (m *mockKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mockKV) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *mockKV) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// mockIdentityProvider implements driven.IdentityProvider and records calls.
type mockIdentityProvider struct {
	mu sync.Mutex

	interactiveIdentity *domain.Identity
	interactiveErr      error
	silentErr           error

	interactiveCalls int
	silentCalls      int
	clearCalls       int
	silentResources  []string
}

func (m *mockIdentityProvider) AcquireTokenInteractive(_ context.Context, resource string) (*domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactiveCalls++
	if m.interactiveErr != nil {
		return nil, m.interactiveErr
	}
	if m.interactiveIdentity == nil {
		return testIdentity(resource), nil
	}
	id := *m.interactiveIdentity
	id.Resource = resource
	return &id, nil
}

func (m *mockIdentityProvider) AcquireTokenSilent(_ context.Context, resource, userID string) (*domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.silentCalls++
	m.silentResources = append(m.silentResources, resource)
	if m.silentErr != nil {
		return nil, m.silentErr
	}
	id := testIdentity(resource)
	id.UserID = userID
	return id, nil
}

func (m *mockIdentityProvider) ClearCache(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	return nil
}

func (m *mockIdentityProvider) counts() (interactive, silent, clear int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interactiveCalls, m.silentCalls, m.clearCalls
}

func testIdentity(resource string) *domain.Identity {
	return &domain.Identity{
		UserID:        "user-1",
		DisplayableID: "megan@contoso.onmicrosoft.com",
		GivenName:     "Megan",
		Resource:      resource,
		AccessToken:   "token-for-" + resource,
		ExpiresOn:     time.Now().Add(time.Hour),
	}
}

// mockBinder implements resourceBinder without an identity provider.
type mockBinder struct {
	mu        sync.Mutex
	resources []string
	signerErr error
}

func (m *mockBinder) SetResourceID(resourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources = append(m.resources, resourceID)
}

func (m *mockBinder) SignerFor(resourceID string) (driven.TokenSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources = append(m.resources, resourceID)
	if m.signerErr != nil {
		return nil, m.signerErr
	}
	resource := ""
	if len(m.resources) > 0 {
		resource = m.resources[len(m.resources)-1]
	}
	return staticToken("token-for-" + resource), nil
}

func (m *mockBinder) lastResource() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resources) == 0 {
		return ""
	}
	return m.resources[len(m.resources)-1]
}

type staticToken string

func (s staticToken) Token(_ context.Context) (string, error) {
	return string(s), nil
}

// mockDiscoveryClient implements driven.DiscoveryClient and counts calls.
type mockDiscoveryClient struct {
	mu       sync.Mutex
	services []domain.ServiceDescriptor
	err      error
	calls    int
	tokens   []string
}

func (m *mockDiscoveryClient) Services(ctx context.Context, tokens driven.TokenSource) ([]domain.ServiceDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if tok, err := tokens.Token(ctx); err == nil {
		m.tokens = append(m.tokens, tok)
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.ServiceDescriptor, len(m.services))
	copy(out, m.services)
	return out, nil
}

func (m *mockDiscoveryClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockMailClient implements driven.MailClient and records sent messages.
type mockMailClient struct {
	mu        sync.Mutex
	err       error
	sent      []domain.OutboundMessage
	endpoints []string
	tokens    []string
}

func (m *mockMailClient) SendMail(
	ctx context.Context, endpointURI string, tokens driven.TokenSource, msg domain.OutboundMessage,
) (domain.MessageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok, err := tokens.Token(ctx); err == nil {
		m.tokens = append(m.tokens, tok)
	}
	m.endpoints = append(m.endpoints, endpointURI)
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	return domain.MessageID("msg-1"), nil
}

func (m *mockMailClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.endpoints)
}

// mockArchive implements driven.SentArchive.
type mockArchive struct {
	mu     sync.Mutex
	stored []domain.MessageID
	err    error
}

func (m *mockArchive) Store(_ context.Context, id domain.MessageID, _ domain.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.stored = append(m.stored, id)
	return nil
}

var errNetwork = errors.New("dial tcp: connection refused")

func mailService() domain.ServiceDescriptor {
	return domain.ServiceDescriptor{
		Capability:  domain.CapabilityMail,
		ServiceName: "Exchange",
		EndpointURI: testMailEndpoint,
		ResourceID:  testMailResource,
	}
}
