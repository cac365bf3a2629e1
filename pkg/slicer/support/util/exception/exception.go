// Package exception provides the error types used by the lamina slicing
// pipeline. It standardizes errors raised mid-pipeline so callers can tell a
// hard slicing failure apart from a cooperative cancellation.
//
// Validator findings are deliberately not represented here: a validation
// failure is returned as data (a message string), never raised as an error.
package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrCanceled is the sentinel observed when the cancellation signal was raised
// and a stage unwound cooperatively. It is not a defect: the affected steps
// stay non-Done and a retry reruns them.
var ErrCanceled = errors.New("slicing canceled")

// SliceError is a fatal error raised mid-pipeline when a precondition assumed
// valid by an earlier stage turns out false at execution time. It holds the
// module where the error occurred, a message and the wrapped original error.
type SliceError struct {
	// Module indicates the pipeline module where the error occurred
	// (e.g., "wipetower", "skirt", "export").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error, if any.
	OriginalErr error
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewSliceError creates a new SliceError instance.
func NewSliceError(module, message string, originalErr error) *SliceError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &SliceError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  string(buf[:n]),
	}
}

// NewSliceErrorf creates a new SliceError with a formatted message. If the
// last argument is an error it is extracted and wrapped instead of being
// formatted into the message.
func NewSliceErrorf(module, format string, a ...interface{}) *SliceError {
	var originalErr error
	if len(a) > 0 {
		if err, ok := a[len(a)-1].(error); ok {
			originalErr = err
			a = a[:len(a)-1]
		}
	}
	return NewSliceError(module, fmt.Sprintf(format, a...), originalErr)
}

// Error implements the error interface.
func (e *SliceError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *SliceError) Unwrap() error {
	return e.OriginalErr
}

// IsSliceError determines if the given error is (or wraps) a SliceError.
func IsSliceError(err error) bool {
	var se *SliceError
	return errors.As(err, &se)
}

// IsCanceled reports whether the error chain originates from a cooperative
// cancellation rather than a slicing failure.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// ExtractErrorMessage extracts the message string from an error.
// For SliceError, it returns the cleaner Message field.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *SliceError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}
