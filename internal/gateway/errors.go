package gateway

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidationRejected ErrorKind = "validation_rejected"
	KindExecutionFailed    ErrorKind = "execution_failed"
	KindSynthesisFailed    ErrorKind = "synthesis_failed"
	KindUnrecognized       ErrorKind = "unrecognized"
	KindInvalidInput       ErrorKind = "invalid_input"
	KindNotFound           ErrorKind = "not_found"
	KindForbidden          ErrorKind = "forbidden"
	KindUnavailable        ErrorKind = "unavailable"
	KindUnexpected         ErrorKind = "unexpected"
)

// Error carries a kind the transport layer maps to a status. Message is safe
// to show to callers; Err is for logs only.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of a gateway error, or KindUnexpected.
func KindOf(err error) ErrorKind {
	var gatewayErr *Error
	if errors.As(err, &gatewayErr) {
		return gatewayErr.Kind
	}
	return KindUnexpected
}
