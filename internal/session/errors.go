package session

import (
	"errors"
	"slices"
	"strings"

	"github.com/weiawesome/chat-client/internal/gateway"
)

// InvalidCredentialsMessage is reported for a rejected login whose response
// carried no messages.
const InvalidCredentialsMessage = "The provided credentials were invalid."

var ErrInvalidCredentials = errors.New("invalid credentials")

// FormError is a rejected login or signup. Details holds the messages to show
// the user, in the order the server sent them.
type FormError struct {
	Err     error
	Details []string

	invalidCredentials bool
}

func (e *FormError) Error() string {
	return strings.Join(e.Details, "; ")
}

func (e *FormError) Messages() []string {
	return slices.Clone(e.Details)
}

func (e *FormError) Unwrap() []error {
	if e.invalidCredentials {
		return []error{ErrInvalidCredentials, e.Err}
	}
	return []error{e.Err}
}

func formError(err error, login bool) error {
	var httpErr *gateway.HTTPError
	if !errors.As(err, &httpErr) {
		return err
	}

	invalid := login && httpErr.Status == 401
	details := slices.Clone(httpErr.Details)
	if len(details) == 0 {
		if invalid {
			details = []string{InvalidCredentialsMessage}
		} else {
			details = httpErr.Messages()
		}
	}
	return &FormError{Err: err, Details: details, invalidCredentials: invalid}
}
