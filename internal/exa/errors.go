package exa

import (
	"fmt"
)

// ErrorKind classifies a failed upstream call.
type ErrorKind string

const (
	// ErrClient is a 4xx response. It is never retried.
	ErrClient ErrorKind = "client_error"
	// ErrUnavailable means the service could not be reached or kept failing
	// until the retry budget ran out.
	ErrUnavailable ErrorKind = "unavailable"
	// ErrCanceled means the caller's context ended the call.
	ErrCanceled ErrorKind = "canceled"
)

// TransportError is returned for every failure between sending the request
// and receiving a 2xx body.
type TransportError struct {
	Kind     ErrorKind
	Endpoint string
	Status   int    // HTTP status of the last response, 0 if none
	Attempts int    // attempts made, including the first
	Body     string // bounded excerpt of the error body
	Err      error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("exa %s: %s", e.Endpoint, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
