// Package perrors defines the error kinds shared across the daemon and client so
// callers can distinguish "no such task" from "filesystem hiccup" from
// "illegal transition" without string-matching error text.
package perrors

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a task-handler error.
type Kind string

const (
	// Io covers filesystem or socket failures. Non-fatal to the daemon.
	Io Kind = "io"
	// LogRead covers log-file read failures, returned to clients requesting a log.
	LogRead Kind = "log_read"
	// UnknownTask means a task id in a request doesn't exist in the registry.
	UnknownTask Kind = "unknown_task"
	// UnknownGroup means a group name in a request doesn't exist.
	UnknownGroup Kind = "unknown_group"
	// IllegalTransition means the requested status change isn't allowed from the
	// task's current status (e.g. starting an already-running task).
	IllegalTransition Kind = "illegal_transition"
	// NoStdin means a send was attempted after the task's stdin pipe was closed.
	NoStdin Kind = "no_stdin"
	// DependencyFailed is never returned to a client directly; it labels the
	// terminal status of a task whose dependency failed.
	DependencyFailed Kind = "dependency_failed"
	// Generic wraps an error that doesn't fit any of the above.
	Generic Kind = "generic"
)

// Error is the concrete error type returned by registry/supervisor/logstore
// operations. Kind lets callers branch with errors.Is against the sentinels
// below; Unwrap preserves the underlying cause for logging.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "registry.enqueue"
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// Is makes errors.Is(err, perrors.ErrUnknownTask) work by comparing Kind against
// a bare Kind value wrapped as a sentinel *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error of the given kind for operation op, wrapping cause
// (which may be nil).
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, err: cause}
}

// sentinel returns a zero-cause *Error of kind k, usable as an errors.Is target:
//
//	if errors.Is(err, perrors.ErrUnknownTask) { ... }
func sentinel(k Kind) *Error { return &Error{Kind: k} }

var (
	ErrIo                = sentinel(Io)
	ErrLogRead           = sentinel(LogRead)
	ErrUnknownTask       = sentinel(UnknownTask)
	ErrUnknownGroup      = sentinel(UnknownGroup)
	ErrIllegalTransition = sentinel(IllegalTransition)
	ErrNoStdin           = sentinel(NoStdin)
	ErrDependencyFailed  = sentinel(DependencyFailed)
	ErrGeneric           = sentinel(Generic)
)

// KindOf extracts the Kind of err if it is (or wraps) a *Error, defaulting to
// Generic for any other error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Generic
}
