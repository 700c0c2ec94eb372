package domain

import "errors"

// Error taxonomy shared by the coordinators and adapters.
var (
	// ErrConfiguration indicates missing or malformed settings such as an
	// unset client id or redirect URI.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuth indicates interactive or silent authentication failed.
	ErrAuth = errors.New("authentication failed")

	// ErrWrongAccountType indicates the provider reported success without an
	// organisational account, typically a personal Microsoft account.
	ErrWrongAccountType = errors.New("signed in with an account that cannot use Office 365")

	// ErrNotFound indicates a capability is absent from the discovered services.
	ErrNotFound = errors.New("not found")

	// ErrPrecondition indicates an operation was attempted out of order,
	// e.g. sending before the mail service was discovered.
	ErrPrecondition = errors.New("precondition not met")

	// ErrTransport indicates a network or service failure talking to Office 365.
	ErrTransport = errors.New("transport error")

	// ErrNotConnected indicates no authenticated session is active.
	ErrNotConnected = errors.New("not connected")

	// ErrInvalidTransition indicates a UI action that is not valid from the
	// current flow state.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// WrongAccountTypeError returns an error matching both ErrWrongAccountType and
// ErrAuth. The description from the provider is kept when present.
func WrongAccountTypeError(description string) error {
	if description == "" {
		return errors.Join(ErrWrongAccountType, ErrAuth)
	}
	return errors.Join(ErrWrongAccountType, ErrAuth, errors.New(description))
}

// ErrInvalidInput indicates a caller supplied a malformed value, such as an
// empty recipient address.
var ErrInvalidInput = errors.New("invalid input")
