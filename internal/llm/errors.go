package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrChat matches every *Error via errors.Is.
var ErrChat = errors.New("llm chat failed")

// ErrorKind is the closed set of transport failure categories.
type ErrorKind int

const (
	ConnectionFailure ErrorKind = iota + 1
	Timeout
	RequestFailure
	UnexpectedFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ConnectionFailure:
		return "connection failure"
	case Timeout:
		return "timeout"
	case RequestFailure:
		return "request failure"
	case UnexpectedFailure:
		return "unexpected failure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is returned by every Client on an unrecoverable condition.
type Error struct {
	Kind  ErrorKind
	Model string
	// Status is the last HTTP status for RequestFailure, zero otherwise.
	Status int
	Cause  string
	Err    error
}

func (e *Error) Error() string {
	msg := "llm " + e.Kind.String()
	if e.Model != "" {
		msg += " (model " + e.Model + ")"
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" status %d", e.Status)
	}
	if e.Cause != "" {
		msg += ": " + e.Cause
	}
	if e.Err != nil && e.Err.Error() != e.Cause {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrChat }

// KindOf reports the kind of err, or zero when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(kind ErrorKind, model, cause string, err error) *Error {
	return &Error{Kind: kind, Model: model, Cause: cause, Err: err}
}

// classify maps a failed round trip (no usable response) to an error kind.
func classify(model string, err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return newError(Timeout, model, err.Error(), err)
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) || errors.Is(err, syscall.ECONNREFUSED) {
		return newError(ConnectionFailure, model, err.Error(), err)
	}

	return newError(UnexpectedFailure, model, err.Error(), err)
}
