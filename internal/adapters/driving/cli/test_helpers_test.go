package cli

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/o365connect/internal/adapters/driven/config"
	"github.com/custodia-labs/o365connect/internal/core/async"
	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driven"
	"github.com/custodia-labs/o365connect/internal/core/ports/driving"
	"github.com/custodia-labs/o365connect/internal/core/services"
)

const testClientID = "6e3e0e8b-5b0b-4c5e-9f0e-3d7f0f2d9a11"

var megan = &domain.Identity{
	UserID:        "user-1",
	DisplayableID: "megan@contoso.com",
	GivenName:     "Megan",
	FamilyName:    "Bowen",
}

var mailService = domain.ServiceDescriptor{
	Capability:  domain.CapabilityMail,
	ServiceName: "Exchange",
	EndpointURI: "https://outlook.office365.com/api/v1.0",
	ResourceID:  "https://outlook.office365.com/",
}

// mockAuthCoordinator implements driving.AuthCoordinator for testing.
type mockAuthCoordinator struct {
	connected     bool
	disconnectErr error
	disconnects   int
}

func (m *mockAuthCoordinator) Connect(context.Context) *async.Future[*domain.Identity] {
	return async.Resolved(megan)
}

func (m *mockAuthCoordinator) Disconnect(context.Context) error {
	m.disconnects++
	return m.disconnectErr
}

func (m *mockAuthCoordinator) SetResourceID(string) {}

func (m *mockAuthCoordinator) ResourceID() string { return "" }

func (m *mockAuthCoordinator) Signer() (driven.TokenSource, error) {
	return nil, domain.ErrNotConnected
}

func (m *mockAuthCoordinator) IsConnected(context.Context) (bool, error) {
	return m.connected, nil
}

// mockDiscoveryCoordinator implements driving.DiscoveryCoordinator for testing.
type mockDiscoveryCoordinator struct {
	services []domain.ServiceDescriptor
	resets   int
}

func (m *mockDiscoveryCoordinator) GetServiceInfo(
	_ context.Context, capability domain.Capability,
) *async.Future[domain.ServiceDescriptor] {
	for _, svc := range m.services {
		if svc.Capability == capability {
			return async.Resolved(svc)
		}
	}
	return async.Failed[domain.ServiceDescriptor](fmt.Errorf("%w: %s", domain.ErrNotFound, capability))
}

func (m *mockDiscoveryCoordinator) Services() []domain.ServiceDescriptor { return m.services }

func (m *mockDiscoveryCoordinator) Reset() { m.resets++ }

// mockMailCoordinator implements driving.MailCoordinator for testing.
type mockMailCoordinator struct {
	resets int
}

func (m *mockMailCoordinator) SetService(domain.ServiceDescriptor) {}

func (m *mockMailCoordinator) IsReady() bool { return true }

func (m *mockMailCoordinator) SendMail(context.Context, string, string, string) *async.Future[domain.MessageID] {
	return async.Resolved(domain.MessageID("req-1"))
}

func (m *mockMailCoordinator) Reset() { m.resets++ }

// mockFlow completes every action synchronously.
type mockFlow struct {
	ev          domain.FlowEvent
	connectErr  error
	discoverErr error
	sendErr     error

	sentTo    []string
	subjects  []string
	bodies    []string
	listeners []func(domain.FlowEvent)
}

func (m *mockFlow) move(ev domain.FlowEvent) {
	ev.From = m.ev.To
	m.ev = ev
	for _, l := range m.listeners {
		l(ev)
	}
}

func (m *mockFlow) State() domain.FlowState    { return m.ev.To }
func (m *mockFlow) Snapshot() domain.FlowEvent { return m.ev }

func (m *mockFlow) Subscribe(l func(domain.FlowEvent)) func() {
	m.listeners = append(m.listeners, l)
	return func() { m.listeners = nil }
}

func (m *mockFlow) Connect(context.Context) error {
	m.move(domain.FlowEvent{To: domain.StateConnecting})
	if m.connectErr != nil {
		m.move(domain.FlowEvent{To: domain.StateConnectError, Err: m.connectErr})
		return nil
	}
	m.move(domain.FlowEvent{To: domain.StateDiscovering, Identity: megan})
	if m.discoverErr != nil {
		m.move(domain.FlowEvent{To: domain.StateDiscoverError, Identity: megan, Err: m.discoverErr})
		return nil
	}
	m.move(domain.FlowEvent{To: domain.StateReady, Identity: megan, Service: mailService})
	return nil
}

func (m *mockFlow) Discover(context.Context) error { return nil }

func (m *mockFlow) Send(_ context.Context, to, subject, body string) error {
	m.sentTo = append(m.sentTo, to)
	m.subjects = append(m.subjects, subject)
	m.bodies = append(m.bodies, body)
	if m.sendErr != nil {
		m.move(domain.FlowEvent{To: domain.StateSendError, Identity: megan, Err: m.sendErr})
		return nil
	}
	m.move(domain.FlowEvent{To: domain.StateSent, Identity: megan, Service: mailService, MessageID: "req-1"})
	return nil
}

func (m *mockFlow) Disconnect(context.Context) error {
	m.move(domain.FlowEvent{To: domain.StateDisconnected})
	return nil
}

func (m *mockFlow) Await(context.Context, ...domain.FlowState) (domain.FlowEvent, error) {
	return m.ev, nil
}

// testEnv holds the mocks injected for one test.
type testEnv struct {
	auth      *mockAuthCoordinator
	discovery *mockDiscoveryCoordinator
	mail      *mockMailCoordinator
	flow      *mockFlow
	cfg       *config.Config
}

// setupServices injects mocks and restores the previous services when the
// test ends.
func setupServices(t *testing.T) *testEnv {
	t.Helper()

	oldAuth, oldDiscovery, oldMail := authCoordinator, discoveryCoordinator, mailCoordinator
	oldFlow, oldTemplate, oldConfig, oldPath := newFlow, mailTemplate, appConfig, configPath
	oldTerminal, oldHint := isTerminal, setupHint
	t.Cleanup(func() {
		authCoordinator, discoveryCoordinator, mailCoordinator = oldAuth, oldDiscovery, oldMail
		newFlow, mailTemplate, appConfig, configPath = oldFlow, oldTemplate, oldConfig, oldPath
		isTerminal, setupHint = oldTerminal, oldHint
	})

	tmpl, err := services.NewMailTemplate("", "")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.ClientID = testClientID

	env := &testEnv{
		auth:      &mockAuthCoordinator{},
		discovery: &mockDiscoveryCoordinator{services: []domain.ServiceDescriptor{mailService}},
		mail:      &mockMailCoordinator{},
		flow:      &mockFlow{},
		cfg:       cfg,
	}
	SetServices(&Services{
		Auth:       env.auth,
		Discovery:  env.discovery,
		Mail:       env.mail,
		NewFlow:    func(async.Dispatcher) driving.ConnectFlow { return env.flow },
		Template:   tmpl,
		Config:     cfg,
		ConfigPath: t.TempDir() + "/config.toml",
		SetupHint:  "Register an app at portal.azure.com",
	})
	isTerminal = func() bool { return true }
	return env
}

// newTestCmd returns a command whose output is captured.
func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetContext(context.Background())
	return cmd, buf
}
