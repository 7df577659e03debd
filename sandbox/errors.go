package sandbox

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an execution failed.
type ErrorKind string

const (
	KindUnsupportedLanguage ErrorKind = "unsupported_language"
	KindToolchainMissing    ErrorKind = "toolchain_missing"
	KindCompileError        ErrorKind = "compile_error"
	KindRuntimeError        ErrorKind = "runtime_error"
	KindTimeout             ErrorKind = "timeout"
	KindValidationError     ErrorKind = "validation_error"
	// KindStatementError marks a single failed SQL statement. It is rendered
	// inline in the batch output and never fails the execution.
	KindStatementError ErrorKind = "statement_error"
	KindInternal       ErrorKind = "internal_error"
)

// Error is the failure type returned across the adapter boundary.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so callers can
// write errors.Is(err, &sandbox.Error{Kind: sandbox.KindTimeout}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or KindInternal for errors that did not
// originate in an adapter.
func KindOf(err error) ErrorKind {
	var sbErr *Error
	if errors.As(err, &sbErr) {
		return sbErr.Kind
	}
	return KindInternal
}

// IsTimeout reports whether err is a wall-clock budget expiry.
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}

// asError converts any adapter failure into an *Error.
func asError(err error) *Error {
	var sbErr *Error
	if errors.As(err, &sbErr) {
		return sbErr
	}
	return newError(KindInternal, err, "internal error: %v", err)
}
