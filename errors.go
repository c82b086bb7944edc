package isn

import (
	"errors"
	"fmt"
)

// Code classifies the failure modes a layer can report. The set is
// closed and mirrors the taxonomy a resource-constrained device core
// actually needs to distinguish: none of these carry a syscall errno,
// since the core never talks to hardware directly.
type Code string

const (
	// CodeCapacity means a send or reservation request exceeded the
	// layer's maximum frame or buffer size.
	CodeCapacity Code = "capacity"
	// CodeBackpressure means the layer has no free buffer right now
	// and the caller should retry once woken.
	CodeBackpressure Code = "backpressure"
	// CodeWireFormat means bytes received from the transport did not
	// parse as a valid frame, envelope, or message record.
	CodeWireFormat Code = "wire_format"
	// CodeTimeout means a framing or query-wait deadline elapsed
	// before completion.
	CodeTimeout Code = "timeout"
	// CodeReservation means the caller violated the single-live-
	// reservation-per-layer invariant (double reserve, send without
	// reserve, free of a foreign buffer).
	CodeReservation Code = "reservation"
	// CodeMessageMismatch means a reply arrived for a message number
	// that was not outstanding, or a query targeted an unknown entry.
	CodeMessageMismatch Code = "message_mismatch"
	// CodeClosed means the operation was attempted on a stack or
	// layer that has already been torn down.
	CodeClosed Code = "closed"
)

// Error is the structured error type returned throughout the stack.
// It carries which operation failed, on which layer, a closed-set
// Code for programmatic matching, and an optional wrapped cause.
type Error struct {
	Op     string
	Layer  string
	Code   Code
	Msg    string
	Inner  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Inner != nil {
		msg = e.Inner.Error()
	}
	if e.Layer != "" {
		return fmt.Sprintf("isn: %s: %s: %s: %s", e.Op, e.Layer, e.Code, msg)
	}
	return fmt.Sprintf("isn: %s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Inner }

// Is reports whether target is an *Error with the same Code, so
// errors.Is matches any two *Error values by Code alone. To test an
// error against a bare Code, use CodeOf or IsCode below.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// NewError constructs an *Error for the given operation and code.
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewLayerError constructs an *Error scoped to a named layer.
func NewLayerError(op, layer string, code Code, msg string) *Error {
	return &Error{Op: op, Layer: layer, Code: code, Msg: msg}
}

// WrapError wraps an underlying error with operation/layer/code
// context, attaching enough to diagnose a syscall failure without
// losing the original error.
func WrapError(op, layer string, code Code, inner error) *Error {
	return &Error{Op: op, Layer: layer, Code: code, Inner: inner}
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error,
// and reports ok=false otherwise.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// IsCode reports whether err is an *Error carrying the given code.
func IsCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
