package model

import (
	"errors"
	"fmt"
)

// Reason classifies why a load failed.
type Reason int

const (
	ReasonUnknown Reason = iota
	NetworkUnavailable
	Timeout
	HTTPError
	TransportError
	MalformedFeed
)

func (r Reason) String() string {
	switch r {
	case NetworkUnavailable:
		return "network_unavailable"
	case Timeout:
		return "timeout"
	case HTTPError:
		return "http_error"
	case TransportError:
		return "transport_error"
	case MalformedFeed:
		return "malformed_feed"
	default:
		return "unknown"
	}
}

// LoadError carries a classified failure. Status is set for HTTPError only.
type LoadError struct {
	Reason Reason
	Status int
	Err    error
}

func (e *LoadError) Error() string {
	msg := e.Reason.String()
	if e.Reason == HTTPError {
		msg = fmt.Sprintf("%s %d", msg, e.Status)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is matches another *LoadError by reason (and status, when the target sets one).
func (e *LoadError) Is(target error) bool {
	t, ok := target.(*LoadError)
	if !ok {
		return false
	}
	if t.Reason != e.Reason {
		return false
	}
	return t.Status == 0 || t.Status == e.Status
}

func NewLoadError(reason Reason, err error) *LoadError {
	return &LoadError{Reason: reason, Err: err}
}

// Sentinels for errors.Is checks.
var (
	ErrNetworkUnavailable = &LoadError{Reason: NetworkUnavailable}
	ErrTimeout            = &LoadError{Reason: Timeout}
	ErrHTTP               = &LoadError{Reason: HTTPError}
	ErrTransport          = &LoadError{Reason: TransportError}
	ErrMalformedFeed      = &LoadError{Reason: MalformedFeed}
)

// ReasonOf extracts the failure reason from err, or ReasonUnknown.
func ReasonOf(err error) Reason {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Reason
	}
	return ReasonUnknown
}
