// Package errtype defines the SCXML error taxonomy of spec.md §7: document
// errors (reported to the host at load time), execution errors and
// communication errors (synthesized as platform events on the raising
// session's internal queue), and fatal errors (which stop the session).
package errtype

import (
	"errors"
	"fmt"
)

// Kind classifies an engine-internal failure.
type Kind int

const (
	// Document errors are parse/validation-time and never become SCXML events.
	Document Kind = iota
	// Execution errors become error.execution on the internal queue.
	Execution
	// Communication errors become error.communication on the internal queue.
	Communication
	// Fatal errors stop the owning session.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Document:
		return "document"
	case Execution:
		return "execution"
	case Communication:
		return "communication"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with its taxonomy Kind and, for
// send-originated execution/communication errors, the sendid of the
// action that failed (spec.md §6 "Each error event carries sendid if the
// failing action was a <send> with one", test 332).
type Error struct {
	Kind   Kind
	SendID string
	Cause  error
}

func (e *Error) Error() string {
	if e.SendID != "" {
		return fmt.Sprintf("%s error (sendid=%s): %v", e.Kind, e.SendID, e.Cause)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Execution builds an Execution-kind Error.
func Execution(sendID string, cause error) *Error {
	return &Error{Kind: Execution, SendID: sendID, Cause: cause}
}

// Executionf is Execution with fmt.Errorf-style formatting of the cause.
func Executionf(sendID, format string, args ...any) *Error {
	return &Error{Kind: Execution, SendID: sendID, Cause: fmt.Errorf(format, args...)}
}

// Communication builds a Communication-kind Error.
func Communication(sendID string, cause error) *Error {
	return &Error{Kind: Communication, SendID: sendID, Cause: cause}
}

// Communicationf is Communication with fmt.Errorf-style formatting.
func Communicationf(sendID, format string, args ...any) *Error {
	return &Error{Kind: Communication, SendID: sendID, Cause: fmt.Errorf(format, args...)}
}

// Fatalf builds a Fatal-kind Error; the caller must stop the session.
func Fatalf(format string, args ...any) *Error {
	return &Error{Kind: Fatal, Cause: fmt.Errorf(format, args...)}
}

// Sentinel document-time errors, mirroring the teacher's core.ErrNotFound/
// ErrExists/ErrInvalidState style (comalice/statechartx/internal/core/registry.go).
var (
	ErrNotRunning     = errors.New("scxml: session is not running")
	ErrAlreadyRunning = errors.New("scxml: session is already running")
	ErrNoSuchState    = errors.New("scxml: no such state")
	ErrNoSuchSession  = errors.New("scxml: no such session")
	ErrNoParser       = errors.New("scxml: no parser configured for LoadFromFile/LoadFromString")
)

// As is a thin re-export of errors.As so callers don't need a second import
// when they only care about unwrapping *Error.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}
