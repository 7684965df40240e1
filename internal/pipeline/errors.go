package pipeline

import (
	"errors"
)

// Kind classifies a pipeline failure for callers.
type Kind string

// Failure kinds reported to callers.
const (
	KindInvalidInput Kind = "invalid_input"
	KindResolution   Kind = "resolution_failure"
	KindNoData       Kind = "no_data"
	KindUpstream     Kind = "upstream_failure"
	KindInternal     Kind = "internal"
)

// User-facing messages.
const (
	MsgUnresolved   = "could not determine location for address"
	MsgNoSurfaces   = "no roof surfaces found"
	MsgUpstream     = "roof data provider failed"
	MsgAddressEmpty = "address is required"
)

// Error is a classified pipeline failure. Message is safe to show to users;
// Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the Kind of err, KindInternal for unclassified errors and
// "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message of a classified error, or the
// error text otherwise.
func MessageOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
