package subscription

import (
	"errors"
)

var (
	// ErrInvalidRequest is returned when checkout input is missing or malformed
	ErrInvalidRequest = errors.New("invalid request")
	// ErrPaymentProvider is returned when Stripe rejects or fails a call
	ErrPaymentProvider = errors.New("payment provider error")
	// ErrAuthenticationFailure is returned when a webhook signature does not verify
	ErrAuthenticationFailure = errors.New("webhook signature verification failed")
	// ErrReconciliation is returned when a recognized event could not be applied
	ErrReconciliation = errors.New("webhook processing failed")
	// ErrConfiguration is returned when a valid plan has no configured price
	ErrConfiguration = errors.New("subscription configuration error")
)

// Error pairs one of the sentinel errors above with a caller-facing message
// and, optionally, the underlying cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Is matches the sentinel kind
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, msg string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: msg,
		Err:     cause,
	}
}

// messageOf returns the caller-facing message of err
func messageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
