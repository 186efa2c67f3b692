package device

import (
	"errors"
	"fmt"
)

// Error reports a failed buffer or kernel operation. It is recoverable: the
// caller decides whether to abort or retry with a smaller budget.
type Error struct {
	Op     string
	Buffer string
	Err    error
}

func (e *Error) Error() string {
	if e.Buffer == "" {
		return fmt.Sprintf("device: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("device: %s (%s): %v", e.Op, e.Buffer, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrDevice constructs an Error for op on the named buffer.
func ErrDevice(op, buffer string, err error) error {
	return &Error{Op: op, Buffer: buffer, Err: err}
}

// IsDeviceFailure reports whether err came from a device operation.
func IsDeviceFailure(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
