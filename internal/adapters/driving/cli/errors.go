package cli

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/o365connect/internal/core/domain"
)

// describeError turns a coordinator error into a message for the user. The
// most specific class wins: a wrong account type is also an auth error.
func describeError(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, domain.ErrWrongAccountType):
		return "This app needs a work or school account. Personal Microsoft accounts cannot sign in.\n" +
			"Run 'o365connect connect' again and choose an organisational account."
	case errors.Is(err, domain.ErrConfiguration):
		msg := fmt.Sprintf("Configuration problem: %v\nRun 'o365connect configure' to fix it.", err)
		if setupHint != "" {
			msg += "\n" + setupHint + "."
		}
		return msg
	case errors.Is(err, domain.ErrAuth):
		return fmt.Sprintf("Sign-in failed: %v\nRun 'o365connect connect' to try again.", err)
	case errors.Is(err, domain.ErrNotConnected):
		return "Not connected. Run 'o365connect connect' first."
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Sprintf("Your account does not offer that service: %v", err)
	case errors.Is(err, domain.ErrPrecondition):
		return fmt.Sprintf("Mail is not ready: %v", err)
	case errors.Is(err, domain.ErrInvalidInput):
		return fmt.Sprintf("Invalid input: %v", err)
	case errors.Is(err, domain.ErrTransport):
		return fmt.Sprintf("Could not reach Office 365: %v", err)
	case errors.Is(err, domain.ErrInvalidTransition):
		return fmt.Sprintf("That action is not available right now: %v", err)
	default:
		return err.Error()
	}
}

// userError wraps err so cobra prints the friendly description while
// errors.Is still sees the original.
type userError struct {
	err error
}

func (e *userError) Error() string { return describeError(e.err) }

func (e *userError) Unwrap() error { return e.err }

func friendly(err error) error {
	if err == nil {
		return nil
	}
	return &userError{err: err}
}
