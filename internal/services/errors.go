package services

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Handlers map them to HTTP status codes with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrUpstream          = errors.New("upstream service failed")
	ErrInvalidSignature  = errors.New("invalid payment signature")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyProcessed  = errors.New("already processed")
)

// Error is a service failure with a client-safe message. It matches its kind
// and, when set, its underlying cause under errors.Is.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind error, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// Message returns the client-safe message carried by err.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Msg
	}
	return err.Error()
}
