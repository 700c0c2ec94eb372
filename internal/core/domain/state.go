package domain

// FlowState is a step of the connect/send sequence shown to the user.
type FlowState int

const (
	StateDisconnected FlowState = iota
	StateConnecting
	StateConnectError
	StateDiscovering
	StateDiscoverError
	StateReady
	StateSending
	StateSent
	StateSendError
)

var flowStateNames = map[FlowState]string{
	StateDisconnected:  "disconnected",
	StateConnecting:    "connecting",
	StateConnectError:  "connect-error",
	StateDiscovering:   "discovering",
	StateDiscoverError: "discover-error",
	StateReady:         "ready",
	StateSending:       "sending",
	StateSent:          "sent",
	StateSendError:     "send-error",
}

// String returns the state name.
func (s FlowState) String() string {
	if name, ok := flowStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsBusy reports whether an operation is in flight.
func (s FlowState) IsBusy() bool {
	return s == StateConnecting || s == StateDiscovering || s == StateSending
}

// IsConnected reports whether the state follows a successful connect.
func (s FlowState) IsConnected() bool {
	switch s {
	case StateDiscovering, StateDiscoverError, StateReady, StateSending, StateSent, StateSendError:
		return true
	default:
		return false
	}
}

// IsError reports whether the state is one of the stable error states.
func (s FlowState) IsError() bool {
	return s == StateConnectError || s == StateDiscoverError || s == StateSendError
}

// FlowEvent describes the connect flow after a state change.
type FlowEvent struct {
	From FlowState
	To   FlowState

	Identity  *Identity
	Service   ServiceDescriptor
	MessageID MessageID
	// Err is set when To is an error state, or when Disconnect could not
	// clear every piece of session state.
	Err error
}
