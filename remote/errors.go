package remote

import (
	"errors"
	"fmt"
)

// ErrQuotaExhausted is the sentinel wrapped by every *QuotaError;
// errors.Is(err, ErrQuotaExhausted) identifies denials regardless of kind.
var ErrQuotaExhausted = errors.New("remote: quota exhausted")

// QuotaError reports a denied admission: the call was never dispatched
// and nothing was consumed.
type QuotaError struct {
	Kind      string // resource kind of the denied call
	Need      int64  // units the call would have cost
	Remaining int64  // budget left at denial time
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("remote: quota exhausted: %s needs %d units, %d remaining today", e.Kind, e.Need, e.Remaining)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExhausted }

// Category classifies transport failures. The split callers care about is
// billed versus unbilled; see TransportError.Billed.
type Category int

const (
	// Timeout: the request deadline elapsed before the remote answered.
	Timeout Category = iota
	// NoConnectivity: the remote was unreachable (DNS, dial, link down).
	NoConnectivity
	// RemoteRejected: the remote answered with a client error (4xx).
	RemoteRejected
	// RemoteUnavailable: the remote answered with a server error (5xx).
	RemoteUnavailable
	// Malformed: the remote answered but the body did not parse.
	Malformed
)

// String returns the label used for logs and metrics.
func (c Category) String() string {
	switch c {
	case Timeout:
		return "timeout"
	case NoConnectivity:
		return "no_connectivity"
	case RemoteRejected:
		return "remote_rejected"
	case RemoteUnavailable:
		return "remote_unavailable"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// TransportError is a categorized failure from the Transport. Status is
// the HTTP status when one was received, zero otherwise.
type TransportError struct {
	Category Category
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	msg := "remote: " + e.Category.String()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// Billed reports whether the remote answered the request. Answered calls
// are charged by the provider even when they failed, so the local budget
// charges them too; timeouts and unreachable remotes are free.
func (e *TransportError) Billed() bool {
	switch e.Category {
	case RemoteRejected, RemoteUnavailable, Malformed:
		return true
	default:
		return false
	}
}
