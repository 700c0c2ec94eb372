package services

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/custodia-labs/o365connect/internal/core/async"
	"github.com/custodia-labs/o365connect/internal/core/domain"
	"github.com/custodia-labs/o365connect/internal/core/ports/driving"
	"github.com/custodia-labs/o365connect/internal/logger"
)

// Ensure ConnectFlow implements the interface.
var _ driving.ConnectFlow = (*ConnectFlow)(nil)

// FlowListener receives state changes on the flow's dispatcher.
type FlowListener = func(domain.FlowEvent)

// ConnectFlow drives connect, discover and send in order and tracks which
// step the user is on.
//
//	Disconnected -> Connecting -> Discovering -> Ready -> Sending -> Sent | SendError
//
// Connecting, Discovering and Sending may also end in ConnectError or
// DiscoverError; every error state can retry the action that failed.
// Disconnect returns to Disconnected from any state except Connecting and
// drops results of operations still in flight.
type ConnectFlow struct {
	auth       driving.AuthCoordinator
	discovery  driving.DiscoveryCoordinator
	mail       driving.MailCoordinator
	dispatcher async.Dispatcher
	capability domain.Capability

	mu           sync.Mutex
	state        domain.FlowState
	generation   uint64
	identity     *domain.Identity
	service      domain.ServiceDescriptor
	messageID    domain.MessageID
	lastErr      error
	listeners    map[int]FlowListener
	nextListener int
}

// NewConnectFlow creates a flow in the Disconnected state. Operation results
// are applied through dispatcher; nil means they are applied on the goroutine
// that completes the operation.
func NewConnectFlow(
	auth driving.AuthCoordinator,
	discovery driving.DiscoveryCoordinator,
	mail driving.MailCoordinator,
	dispatcher async.Dispatcher,
) *ConnectFlow {
	if dispatcher == nil {
		dispatcher = async.Inline{}
	}
	return &ConnectFlow{
		auth:       auth,
		discovery:  discovery,
		mail:       mail,
		dispatcher: dispatcher,
		capability: domain.CapabilityMail,
		state:      domain.StateDisconnected,
		listeners:  make(map[int]FlowListener),
	}
}

// State returns the current state.
func (f *ConnectFlow) State() domain.FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Snapshot returns the current state and associated data.
func (f *ConnectFlow) Snapshot() domain.FlowEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked(f.state)
}

// Subscribe registers l for every subsequent state change.
func (f *ConnectFlow) Subscribe(l FlowListener) (unsubscribe func()) {
	f.mu.Lock()
	id := f.addListenerLocked(l)
	f.mu.Unlock()
	return func() { f.removeListener(id) }
}

// Connect signs the user in and, on success, discovers the mail service.
func (f *ConnectFlow) Connect(ctx context.Context) error {
	gen, err := f.begin(domain.StateConnecting, domain.StateDisconnected, domain.StateConnectError)
	if err != nil {
		return err
	}

	f.auth.Connect(ctx).Then(f.dispatcher, func(identity *domain.Identity, err error) {
		if err != nil {
			logger.Debug("flow: connect failed: %v", err)
			f.complete(gen, domain.StateConnectError, func() { f.lastErr = err })
			return
		}
		if f.complete(gen, domain.StateDiscovering, func() { f.identity = identity }) {
			f.startDiscovery(ctx, gen)
		}
	})
	return nil
}

// Discover retries service discovery after a discovery error.
func (f *ConnectFlow) Discover(ctx context.Context) error {
	gen, err := f.begin(domain.StateDiscovering, domain.StateDiscoverError)
	if err != nil {
		return err
	}
	f.startDiscovery(ctx, gen)
	return nil
}

func (f *ConnectFlow) startDiscovery(ctx context.Context, gen uint64) {
	f.discovery.GetServiceInfo(ctx, f.capability).Then(f.dispatcher, func(svc domain.ServiceDescriptor, err error) {
		if err != nil {
			logger.Debug("flow: discovery failed: %v", err)
			f.complete(gen, domain.StateDiscoverError, func() { f.lastErr = err })
			return
		}
		f.complete(gen, domain.StateReady, func() {
			f.service = svc
			f.mail.SetService(svc)
		})
	})
}

// Send sends one message through the discovered mail service.
func (f *ConnectFlow) Send(ctx context.Context, to, subject, htmlBody string) error {
	gen, err := f.begin(domain.StateSending, domain.StateReady, domain.StateSent, domain.StateSendError)
	if err != nil {
		return err
	}

	f.mail.SendMail(ctx, to, subject, htmlBody).Then(f.dispatcher, func(id domain.MessageID, err error) {
		if err != nil {
			logger.Debug("flow: send failed: %v", err)
			f.complete(gen, domain.StateSendError, func() { f.lastErr = err })
			return
		}
		f.complete(gen, domain.StateSent, func() { f.messageID = id })
	})
	return nil
}

// Disconnect clears the session, the discovery cache and the mail service and
// returns to Disconnected. It is a no-op when already disconnected.
// A sign-in in progress cannot be interrupted.
func (f *ConnectFlow) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	switch f.state {
	case domain.StateDisconnected:
		f.mu.Unlock()
		return nil
	case domain.StateConnecting:
		f.mu.Unlock()
		return fmt.Errorf("%w: cannot disconnect while signing in", domain.ErrInvalidTransition)
	}
	from := f.state
	f.generation++
	f.state = domain.StateDisconnected
	f.identity = nil
	f.service = domain.ServiceDescriptor{}
	f.messageID = ""
	f.lastErr = nil
	f.mu.Unlock()

	f.discovery.Reset()
	f.mail.Reset()
	err := f.auth.Disconnect(ctx)

	f.mu.Lock()
	ev := f.snapshotLocked(from)
	f.mu.Unlock()
	ev.Err = err
	f.emit(ev)
	return err
}

// Await blocks until the flow is in one of states and returns that event.
func (f *ConnectFlow) Await(ctx context.Context, states ...domain.FlowState) (domain.FlowEvent, error) {
	ch := make(chan domain.FlowEvent, 1)

	f.mu.Lock()
	if slices.Contains(states, f.state) {
		ev := f.snapshotLocked(f.state)
		f.mu.Unlock()
		return ev, nil
	}
	id := f.addListenerLocked(func(ev domain.FlowEvent) {
		if slices.Contains(states, ev.To) {
			select {
			case ch <- ev:
			default:
			}
		}
	})
	f.mu.Unlock()
	defer f.removeListener(id)

	select {
	case ev := <-ch:
		return ev, nil
	case <-ctx.Done():
		return domain.FlowEvent{}, ctx.Err()
	}
}

// begin moves to `to` when the current state is one of allowed.
func (f *ConnectFlow) begin(to domain.FlowState, allowed ...domain.FlowState) (uint64, error) {
	f.mu.Lock()
	if !slices.Contains(allowed, f.state) {
		from := f.state
		f.mu.Unlock()
		return 0, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	from := f.state
	f.generation++
	f.state = to
	f.lastErr = nil
	gen := f.generation
	ev := f.snapshotLocked(from)
	f.mu.Unlock()

	f.emit(ev)
	return gen, nil
}

// complete applies the result of the operation started at gen. Results of
// operations overtaken by Disconnect are dropped. It reports whether the
// result was applied.
func (f *ConnectFlow) complete(gen uint64, to domain.FlowState, apply func()) bool {
	f.mu.Lock()
	if gen != f.generation {
		f.mu.Unlock()
		logger.Debug("flow: dropping stale result for %s", to)
		return false
	}
	from := f.state
	f.state = to
	apply()
	ev := f.snapshotLocked(from)
	f.mu.Unlock()

	f.emit(ev)
	return true
}

func (f *ConnectFlow) snapshotLocked(from domain.FlowState) domain.FlowEvent {
	ev := domain.FlowEvent{
		From:      from,
		To:        f.state,
		Identity:  f.identity,
		Service:   f.service,
		MessageID: f.messageID,
	}
	if f.state.IsError() {
		ev.Err = f.lastErr
	}
	return ev
}

func (f *ConnectFlow) addListenerLocked(l FlowListener) int {
	id := f.nextListener
	f.nextListener++
	f.listeners[id] = l
	return id
}

func (f *ConnectFlow) removeListener(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listeners, id)
}

func (f *ConnectFlow) emit(ev domain.FlowEvent) {
	f.mu.Lock()
	listeners := make([]FlowListener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}
