package payment

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error is returned for every failed exchange with the provider.
type Error struct {
	Op         string
	Provider   Provider
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("payment %s", e.Op)
	if e.Provider != "" {
		msg += fmt.Sprintf(" (%s)", e.Provider)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": provider returned %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Timeout reports whether the provider did not answer in time.
func (e *Error) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

var (
	ErrMissingTransactionID = errors.New("response carries no transaction id")
	ErrUndecodableBody      = errors.New("response body is not JSON")
)
