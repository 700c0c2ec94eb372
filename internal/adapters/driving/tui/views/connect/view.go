// Package connect is the TUI view that walks the user through connecting to
// Office 365 and sending the welcome message.
package connect

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/o365connect/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/o365connect/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/o365connect/internal/core/async"
	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driving"
)

// Composer builds the subject and HTML body for the signed-in user.
type Composer func(identity *domain.Identity) (subject, body string, err error)

// View is the connect screen.
type View struct {
	styles  *styles.Styles
	flow    driving.ConnectFlow
	queue   *async.Queue
	compose Composer
	ctx     context.Context

	spinner spinner.Model
	input   textinput.Model

	event  domain.FlowEvent
	notice error
	width  int
}

// NewView creates the view. queue must be the dispatcher the flow was built
// with so results are applied on the bubbletea goroutine.
func NewView(
	ctx context.Context,
	s *styles.Styles,
	flow driving.ConnectFlow,
	queue *async.Queue,
	compose Composer,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Spinner

	input := textinput.New()
	input.Placeholder = "recipient@contoso.com"
	input.Prompt = "To: "
	input.CharLimit = 320

	v := &View{
		styles:  s,
		flow:    flow,
		queue:   queue,
		compose: compose,
		ctx:     ctx,
		spinner: sp,
		input:   input,
	}
	if flow != nil {
		v.event = flow.Snapshot()
	}
	return v
}

// Init starts the spinner and waits for queued results.
func (v *View) Init() tea.Cmd {
	return tea.Batch(v.spinner.Tick, v.waitForDispatch())
}

func (v *View) waitForDispatch() tea.Cmd {
	if v.queue == nil {
		return nil
	}
	q := v.queue
	return func() tea.Msg {
		<-q.Ready()
		return messages.DispatchReady{}
	}
}

// Update handles a message.
func (v *View) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		return v, nil

	case messages.DispatchReady:
		v.queue.Drain()
		v.refresh()
		return v, v.waitForDispatch()

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return v, nil
}

func (v *View) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return v, tea.Quit
	case tea.KeyCtrlD:
		v.act(v.flow.Disconnect(v.ctx))
		v.input.SetValue("")
		return v, nil
	case tea.KeyEnter:
		v.enter()
		return v, nil
	}

	if v.input.Focused() {
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}
	if msg.String() == "q" {
		return v, tea.Quit
	}
	return v, nil
}

func (v *View) enter() {
	switch v.event.To {
	case domain.StateDisconnected, domain.StateConnectError:
		v.act(v.flow.Connect(v.ctx))
	case domain.StateDiscoverError:
		v.act(v.flow.Discover(v.ctx))
	case domain.StateReady, domain.StateSent, domain.StateSendError:
		subject, body, err := v.compose(v.event.Identity)
		if err != nil {
			v.notice = err
			return
		}
		v.act(v.flow.Send(v.ctx, v.input.Value(), subject, body))
	}
}

// act records the result of starting an action and picks up the state it
// moved to.
func (v *View) act(err error) {
	v.notice = err
	v.refresh()
}

func (v *View) refresh() {
	v.apply(v.flow.Snapshot())
}

func (v *View) apply(ev domain.FlowEvent) {
	prev := v.event.To
	v.event = ev

	switch ev.To {
	case domain.StateReady, domain.StateSent, domain.StateSendError:
		if prev != domain.StateReady && v.input.Value() == "" && ev.Identity != nil {
			v.input.SetValue(ev.Identity.DisplayableID)
		}
		v.input.Focus()
	default:
		v.input.Blur()
	}
}

// State returns the flow state the view is showing.
func (v *View) State() domain.FlowState {
	return v.event.To
}

// View renders the screen.
func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Office 365 Connect"))
	b.WriteString("\n")

	ev := v.event
	switch ev.To {
	case domain.StateDisconnected:
		b.WriteString("Connect to Office 365 with your work or school account.\n")
	case domain.StateConnecting:
		b.WriteString(v.spinner.View() + " Signing in... finish in your browser.\n")
	case domain.StateDiscovering:
		b.WriteString(v.spinner.View() + " Discovering services...\n")
	case domain.StateSending:
		b.WriteString(v.spinner.View() + " Sending...\n")
	case domain.StateConnectError, domain.StateDiscoverError:
		b.WriteString(v.styles.Error.Render(errorMessage(ev.Err)) + "\n")
	case domain.StateReady, domain.StateSent, domain.StateSendError:
		b.WriteString(v.greeting(ev.Identity) + "\n\n")
		b.WriteString(v.input.View() + "\n")
		switch ev.To {
		case domain.StateSent:
			b.WriteString("\n" + v.styles.Success.Render("Check your inbox!") + "\n")
		case domain.StateSendError:
			b.WriteString("\n" + v.styles.Error.Render(errorMessage(ev.Err)) + "\n")
		}
	}

	if v.notice != nil {
		b.WriteString("\n" + v.styles.Error.Render(errorMessage(v.notice)) + "\n")
	}
	b.WriteString(v.styles.Help.Render(v.help()))
	return v.styles.Box.Render(b.String())
}

func (v *View) greeting(identity *domain.Identity) string {
	name := "there"
	if identity != nil && identity.GivenName != "" {
		name = identity.GivenName
	}
	return "Hi " + name + "! Send yourself a welcome message."
}

func (v *View) help() string {
	if v.event.To.IsBusy() {
		return "ctrl+c: quit"
	}
	switch v.event.To {
	case domain.StateDisconnected:
		return "enter: connect • q: quit"
	case domain.StateConnectError:
		return "enter: try again • q: quit"
	case domain.StateDiscoverError:
		return "enter: try again • ctrl+d: disconnect • q: quit"
	case domain.StateReady, domain.StateSent, domain.StateSendError:
		return "enter: send • ctrl+d: disconnect • ctrl+c: quit"
	}
	return ""
}

// errorMessage maps an error class to something the user can act on.
func errorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrWrongAccountType):
		return "That is a personal account. Sign in with a work or school account."
	case errors.Is(err, domain.ErrConfiguration):
		return "The app is not configured. Run 'o365connect configure'."
	case errors.Is(err, domain.ErrAuth):
		return "Sign-in failed. Press enter to try again."
	case errors.Is(err, domain.ErrNotFound):
		return "Your account has no mail service."
	case errors.Is(err, domain.ErrInvalidInput):
		return "Enter a valid email address."
	case errors.Is(err, domain.ErrTransport):
		return "Could not reach Office 365. Check your connection and try again."
	case errors.Is(err, domain.ErrInvalidTransition):
		return "Please wait for the current step to finish."
	default:
		return err.Error()
	}
}
