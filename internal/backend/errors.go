package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
)

// ErrorKind classifies a backend command failure. Classification happens
// once, at the boundary with the protocol adapter; the orchestration layer
// switches on kinds and never inspects error text.
type ErrorKind string

const (
	ErrUnknown          ErrorKind = "unknown"
	ErrConnectionLost   ErrorKind = "connection-lost"
	ErrNotFound         ErrorKind = "not-found"
	ErrPermissionDenied ErrorKind = "permission-denied"
	ErrAuthExpired      ErrorKind = "auth-expired"
	ErrAlreadyExists    ErrorKind = "already-exists"
	ErrCancelled        ErrorKind = "cancelled"
)

// Error is a classified backend command failure. The original error is
// preserved for display and unwrapping.
type Error struct {
	Op   Operation
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified error for an operation. Adapters use this
// when their protocol library exposes a typed failure they can map
// directly.
func NewError(op Operation, kind ErrorKind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the classification of err, or ErrUnknown when err does
// not carry one.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ErrUnknown
}

// IsNotFound reports whether err is classified as not-found.
func IsNotFound(err error) bool { return KindOf(err) == ErrNotFound }

// IsConnectionLost reports whether err is classified as connection-lost.
func IsConnectionLost(err error) bool { return KindOf(err) == ErrConnectionLost }

// Classify wraps err with a classification derived from common error
// shapes: context cancellation, filesystem not-exist/permission, and net
// errors. Adapters call this as a fallback after mapping their own typed
// failures. A nil err returns nil; an already-classified err is returned
// unchanged.
func Classify(op Operation, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	return &Error{Op: op, Kind: classifyKind(err), Err: err}
}

func classifyKind(err error) ErrorKind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCancelled
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, os.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission), errors.Is(err, os.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, fs.ErrExist):
		return ErrAlreadyExists
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrConnectionLost
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnectionLost
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrConnectionLost
	}

	// Last resort for errors that reach us as bare strings from protocol
	// libraries without typed failures.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "unexpected eof"),
		strings.Contains(msg, "use of closed"):
		return ErrConnectionLost
	}
	return ErrUnknown
}
