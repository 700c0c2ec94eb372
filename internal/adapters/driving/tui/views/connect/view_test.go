package connect

import (
	"context"
	"errors"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/o365connect/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/o365connect/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/o365connect/internal/core/async"
	"github.com/custodia-labs/o365connect/internal/core/domain"
)

// fakeFlow is a scripted connect flow. Completions go through the queue like
// the real flow's.
type fakeFlow struct {
	queue *async.Queue
	ev    domain.FlowEvent

	connectErr  error
	discoverErr error
	sendErr     error

	sentTo      []string
	sentSubject []string
	disconnects int
}

func newFakeFlow() *fakeFlow {
	return &fakeFlow{queue: async.NewQueue(), ev: domain.FlowEvent{To: domain.StateDisconnected}}
}

var megan = &domain.Identity{UserID: "u1", DisplayableID: "megan@contoso.com", GivenName: "Megan"}

func (f *fakeFlow) move(to domain.FlowState, err error) {
	f.ev = domain.FlowEvent{From: f.ev.To, To: to, Identity: f.ev.Identity, Err: err}
}

func (f *fakeFlow) State() domain.FlowState    { return f.ev.To }
func (f *fakeFlow) Snapshot() domain.FlowEvent { return f.ev }

func (f *fakeFlow) Subscribe(func(domain.FlowEvent)) func() { return func() {} }

func (f *fakeFlow) Connect(context.Context) error {
	if f.ev.To != domain.StateDisconnected && f.ev.To != domain.StateConnectError {
		return fmt.Errorf("%w: connect", domain.ErrInvalidTransition)
	}
	f.move(domain.StateConnecting, nil)
	f.queue.Dispatch(func() {
		if f.connectErr != nil {
			f.move(domain.StateConnectError, f.connectErr)
			return
		}
		f.ev.Identity = megan
		if f.discoverErr != nil {
			f.move(domain.StateDiscoverError, f.discoverErr)
			return
		}
		f.move(domain.StateReady, nil)
	})
	return nil
}

func (f *fakeFlow) Discover(context.Context) error {
	f.move(domain.StateDiscovering, nil)
	f.queue.Dispatch(func() { f.move(domain.StateReady, nil) })
	return nil
}

func (f *fakeFlow) Send(_ context.Context, to, subject, _ string) error {
	f.move(domain.StateSending, nil)
	f.sentTo = append(f.sentTo, to)
	f.sentSubject = append(f.sentSubject, subject)
	f.queue.Dispatch(func() {
		if f.sendErr != nil {
			f.move(domain.StateSendError, f.sendErr)
			return
		}
		f.move(domain.StateSent, nil)
	})
	return nil
}

func (f *fakeFlow) Disconnect(context.Context) error {
	if f.ev.To == domain.StateConnecting {
		return fmt.Errorf("%w: disconnect", domain.ErrInvalidTransition)
	}
	f.disconnects++
	f.ev = domain.FlowEvent{From: f.ev.To, To: domain.StateDisconnected}
	return nil
}

func (f *fakeFlow) Await(context.Context, ...domain.FlowState) (domain.FlowEvent, error) {
	return f.ev, nil
}

func compose(identity *domain.Identity) (string, string, error) {
	return "Welcome", "<p>Hi " + identity.GivenName + "</p>", nil
}

func newTestView(flow *fakeFlow) *View {
	return NewView(context.Background(), styles.DefaultStyles(), flow, flow.queue, compose)
}

func press(v *View, key tea.KeyType) tea.Cmd {
	_, cmd := v.Update(tea.KeyMsg{Type: key})
	return cmd
}

func drain(v *View) {
	v.Update(messages.DispatchReady{})
}

func TestNewView_NilParams(t *testing.T) {
	v := NewView(nil, nil, nil, nil, nil) //nolint:staticcheck // nil context is defaulted

	require.NotNil(t, v)
	assert.NotNil(t, v.styles)
	assert.Equal(t, domain.StateDisconnected, v.State())
}

func TestView_Init(t *testing.T) {
	v := newTestView(newFakeFlow())

	assert.NotNil(t, v.Init())
	assert.Contains(t, v.View(), "Connect to Office 365")
	assert.Contains(t, v.View(), "enter: connect")
}

func TestView_HappyPath(t *testing.T) {
	flow := newFakeFlow()
	v := newTestView(flow)

	press(v, tea.KeyEnter)
	assert.Equal(t, domain.StateConnecting, v.State())
	assert.Contains(t, v.View(), "Signing in")

	drain(v)
	assert.Equal(t, domain.StateReady, v.State())
	assert.True(t, v.input.Focused())
	assert.Equal(t, "megan@contoso.com", v.input.Value())
	assert.Contains(t, v.View(), "Hi Megan!")

	press(v, tea.KeyEnter)
	assert.Equal(t, domain.StateSending, v.State())
	drain(v)

	assert.Equal(t, domain.StateSent, v.State())
	assert.Equal(t, []string{"megan@contoso.com"}, flow.sentTo)
	assert.Equal(t, []string{"Welcome"}, flow.sentSubject)
	assert.Contains(t, v.View(), "Check your inbox!")
}

func TestView_SendAgainToEditedRecipient(t *testing.T) {
	flow := newFakeFlow()
	v := newTestView(flow)
	press(v, tea.KeyEnter)
	drain(v)
	press(v, tea.KeyEnter)
	drain(v)

	v.input.SetValue("alex@contoso.com")
	press(v, tea.KeyEnter)
	drain(v)

	assert.Equal(t, []string{"megan@contoso.com", "alex@contoso.com"}, flow.sentTo)
	assert.Equal(t, "alex@contoso.com", v.input.Value())
}

func TestView_ConnectErrorThenRetry(t *testing.T) {
	flow := newFakeFlow()
	flow.connectErr = domain.WrongAccountTypeError("personal account")
	v := newTestView(flow)

	press(v, tea.KeyEnter)
	drain(v)

	assert.Equal(t, domain.StateConnectError, v.State())
	assert.Contains(t, v.View(), "work or school account")
	assert.False(t, v.input.Focused())

	flow.connectErr = nil
	press(v, tea.KeyEnter)
	drain(v)
	assert.Equal(t, domain.StateReady, v.State())
}

func TestView_DiscoverErrorRetry(t *testing.T) {
	flow := newFakeFlow()
	flow.discoverErr = fmt.Errorf("%w: Mail", domain.ErrNotFound)
	v := newTestView(flow)

	press(v, tea.KeyEnter)
	drain(v)
	assert.Equal(t, domain.StateDiscoverError, v.State())
	assert.Contains(t, v.View(), "no mail service")

	press(v, tea.KeyEnter)
	assert.Equal(t, domain.StateDiscovering, v.State())
	drain(v)
	assert.Equal(t, domain.StateReady, v.State())
}

func TestView_SendError(t *testing.T) {
	flow := newFakeFlow()
	flow.sendErr = fmt.Errorf("%w: status 500", domain.ErrTransport)
	v := newTestView(flow)
	press(v, tea.KeyEnter)
	drain(v)

	press(v, tea.KeyEnter)
	drain(v)

	assert.Equal(t, domain.StateSendError, v.State())
	assert.Contains(t, v.View(), "Could not reach Office 365")
	assert.True(t, v.input.Focused())
}

func TestView_ComposeError(t *testing.T) {
	flow := newFakeFlow()
	v := NewView(context.Background(), nil, flow, flow.queue, func(*domain.Identity) (string, string, error) {
		return "", "", fmt.Errorf("%w: bad template", domain.ErrConfiguration)
	})
	press(v, tea.KeyEnter)
	drain(v)

	press(v, tea.KeyEnter)

	assert.Equal(t, domain.StateReady, v.State())
	assert.Empty(t, flow.sentTo)
	assert.Contains(t, v.View(), "not configured")
}

func TestView_Disconnect(t *testing.T) {
	flow := newFakeFlow()
	v := newTestView(flow)
	press(v, tea.KeyEnter)
	drain(v)

	press(v, tea.KeyCtrlD)

	assert.Equal(t, domain.StateDisconnected, v.State())
	assert.Equal(t, 1, flow.disconnects)
	assert.Empty(t, v.input.Value())
	assert.False(t, v.input.Focused())
}

func TestView_DisconnectWhileConnecting(t *testing.T) {
	flow := newFakeFlow()
	v := newTestView(flow)
	press(v, tea.KeyEnter)

	press(v, tea.KeyCtrlD)

	assert.Equal(t, domain.StateConnecting, v.State())
	assert.ErrorIs(t, v.notice, domain.ErrInvalidTransition)
	assert.Contains(t, v.View(), "wait for the current step")
}

func TestView_Quit(t *testing.T) {
	v := newTestView(newFakeFlow())

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	cmd = press(v, tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestView_QTypesIntoRecipient(t *testing.T) {
	flow := newFakeFlow()
	v := newTestView(flow)
	press(v, tea.KeyEnter)
	drain(v)
	v.input.SetValue("")

	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	assert.Equal(t, "q", v.input.Value())
}

func TestView_Messages(t *testing.T) {
	v := newTestView(newFakeFlow())

	v.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Equal(t, 80, v.width)

	v.Update(messages.DispatchReady{})
	assert.Equal(t, domain.StateDisconnected, v.State())
}

func TestView_Help(t *testing.T) {
	tests := []struct {
		state domain.FlowState
		want  string
	}{
		{domain.StateDisconnected, "enter: connect"},
		{domain.StateConnecting, "ctrl+c: quit"},
		{domain.StateDiscovering, "ctrl+c: quit"},
		{domain.StateSending, "ctrl+c: quit"},
		{domain.StateDiscoverError, "enter: try again • ctrl+d: disconnect"},
		{domain.StateReady, "enter: send"},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			v := newTestView(newFakeFlow())
			v.event = domain.FlowEvent{To: tt.state}

			assert.Contains(t, v.help(), tt.want)
			if tt.state.IsBusy() {
				assert.Equal(t, "ctrl+c: quit", v.help())
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{domain.WrongAccountTypeError("x"), "personal account"},
		{domain.ErrConfiguration, "not configured"},
		{domain.ErrAuth, "Sign-in failed"},
		{domain.ErrNotFound, "no mail service"},
		{domain.ErrInvalidInput, "valid email"},
		{domain.ErrTransport, "Could not reach"},
		{domain.ErrInvalidTransition, "wait"},
		{errors.New("other"), "other"},
	}

	for _, tt := range tests {
		assert.Contains(t, errorMessage(tt.err), tt.want)
	}
}
