package o11y

import (
	"context"
	"errors"
)

// NewWarning returns an error that AddResultToSpan records as a warning rather than an error.
// No two errors created with NewWarning will be tested as equal with Is.
func NewWarning(warn string) error {
	return &wrapWarnError{
		msg: warn,
		err: errWarning,
	}
}

// AsWarning keeps err's message and chain but marks it as a warning.
func AsWarning(err error) error {
	if err == nil {
		return nil
	}
	return &wrapWarnError{
		msg:   err.Error(),
		err:   errWarning,
		cause: err,
	}
}

var errWarning = errors.New("")

// IsWarning returns true if any error in the chain is a warning.
func IsWarning(err error) bool {
	return errors.Is(err, errWarning)
}

// IsWarningNoUnwrap returns true if err itself is the warning sentinel. It is intended
// for use inside Is methods of other error types.
func IsWarningNoUnwrap(err error) bool {
	// nolint: errorlint // intentionally not unwrapping
	return err == errWarning
}

// DontErrorTrace returns true if the error is a warning or a context cancellation or deadline.
func DontErrorTrace(err error) bool {
	return IsWarning(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type wrapWarnError struct {
	msg   string
	err   error
	cause error
}

func (e *wrapWarnError) Error() string {
	return e.msg
}

func (e *wrapWarnError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.err}
	}
	return []error{e.err, e.cause}
}
