package tools

import (
	"errors"
	"fmt"

	"github.com/hession/exatool/internal/exa"
)

// ValidationKind names the constraint a parameter violated.
type ValidationKind string

const (
	MissingField ValidationKind = "missing_field"
	OutOfRange   ValidationKind = "out_of_range"
	InvalidEnum  ValidationKind = "invalid_enum"
	InvalidDate  ValidationKind = "invalid_date"
	TooLong      ValidationKind = "too_long"
	InvalidType  ValidationKind = "invalid_type"
)

// ValidationError reports a caller-supplied parameter that cannot be used.
// It is never retried.
type ValidationError struct {
	Kind    ValidationKind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Message)
}

func invalid(kind ValidationKind, field, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NormalizationError means the service answered 2xx but the body broke its
// own response contract.
type NormalizationError struct {
	Tool    string
	Field   string
	Message string
	Err     error
}

func (e *NormalizationError) Error() string {
	msg := fmt.Sprintf("%s: unexpected upstream response", e.Tool)
	if e.Field != "" {
		msg += fmt.Sprintf(" (field %s)", e.Field)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NormalizationError) Unwrap() error {
	return e.Err
}

// ErrToolNotFound is returned when a call names a tool that is not registered.
type ErrToolNotFound struct {
	Name string
}

func (e *ErrToolNotFound) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// Outcome kinds.
const (
	KindValidation    = "validation"
	KindTransport     = "transport"
	KindNormalization = "normalization"
	KindNotFound      = "not_found"
	KindInternal      = "internal"
)

// ErrorOutcome is the structured failure handed to hosts.
type ErrorOutcome struct {
	Kind    string `json:"kind"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

// Outcome classifies err for the host. Normalization failures get a generic
// message; the detail is only logged.
func Outcome(err error) ErrorOutcome {
	var verr *ValidationError
	var terr *exa.TransportError
	var nerr *NormalizationError
	var nf *ErrToolNotFound

	switch {
	case errors.As(err, &verr):
		return ErrorOutcome{Kind: KindValidation, Code: string(verr.Kind), Field: verr.Field, Message: verr.Error()}
	case errors.As(err, &terr):
		return ErrorOutcome{Kind: KindTransport, Code: string(terr.Kind), Status: terr.Status, Message: terr.Error()}
	case errors.As(err, &nerr):
		return ErrorOutcome{Kind: KindNormalization, Message: nerr.Tool + ": the search service returned an unexpected response"}
	case errors.As(err, &nf):
		return ErrorOutcome{Kind: KindNotFound, Message: nf.Error()}
	default:
		return ErrorOutcome{Kind: KindInternal, Message: err.Error()}
	}
}
