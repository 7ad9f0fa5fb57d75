// Package kerror provides error-handling wrappers
//
// These wrappers allow callers to attach an errno-style error value to
// regular Go errors while still conforming to the Go error interface. The
// kernel core uses them to report recoverable failures (device I/O errors)
// upward without losing the underlying cause or the stack trace of the
// point of failure.
//
// This package is currently implemented on top of the ansel1/merry package:
//   https://github.com/ansel1/merry
//
// merry comes with built-in support for adding information to errors:
// stacktraces, overriding the error message, and arbitrary key/values. We
// use the key "errno" to carry the error value.
package kerror

import (
	"fmt"

	"github.com/ansel1/merry"
	"golang.org/x/sys/unix"

	"github.com/minikern/minikern/logger"
)

// Error constants used by the kernel core.
//
// Constants correspond to linux/POSIX errnos as defined in errno.h; using
// these makes it easy for filesystem and process code layered above this
// core to map failures onto the errno space it already speaks.
//
// NOTE: unix.Errno is used here because these errno constants exist in
// Go-land. The type implements the error interface; we cast to an int to
// get the errno value.
type KernError int

const (
	// IOError indicates a block transport read or write failure
	IOError KernError = KernError(int(unix.EIO))
	// TryAgainError indicates a resource was busy
	TryAgainError KernError = KernError(int(unix.EAGAIN))
	// InvalidArgError indicates a malformed request
	InvalidArgError KernError = KernError(int(unix.EINVAL))
	// OutOfRangeError indicates a block number beyond the device
	OutOfRangeError KernError = KernError(int(unix.ERANGE))
	// OutOfMemoryError indicates an allocation failure
	OutOfMemoryError KernError = KernError(int(unix.ENOMEM))
	// TableOverflowError indicates a fixed table/pool is full
	TableOverflowError KernError = KernError(int(unix.ENFILE))
	// DevBusyError indicates the device or resource is busy
	DevBusyError KernError = KernError(int(unix.EBUSY))
	// NoDeviceError indicates an unknown device id
	NoDeviceError KernError = KernError(int(unix.ENODEV))
	// CorruptDataError indicates a block failed its integrity check
	CorruptDataError KernError = KernError(int(unix.EBADMSG))
)

// SuccessError is the not-an-error error value
const SuccessError KernError = 0

// Default errno values for success and failure
const successErrno = 0
const failureErrno = -1

// Value returns the int value for the specified KernError constant
func (err KernError) Value() int {
	return int(err)
}

// NewError creates a new merry/KernError-annotated error using the given
// format string and arguments.
func NewError(errValue KernError, format string, a ...interface{}) error {
	return merry.WrapSkipping(fmt.Errorf(format, a...), 1).WithValue("errno", int(errValue))
}

// AddError is used to add a KernError value to a Go error.
//
// NOTE: Checks whether the error value has already been set; merry would
// otherwise silently replace the old value with the new.
func AddError(e error, errValue KernError) error {
	if e == nil {
		// The caller obviously intends this to be a non-nil error, so
		// manufacture one even though no underlying error was supplied.
		return merry.New("kernel error").WithValue("errno", int(errValue))
	}

	prevValue := Errno(e)
	if prevValue != successErrno && prevValue != failureErrno {
		logger.Warnf("replacing error value %v with value %v for error %v", prevValue, int(errValue), e)
	}

	return merry.WrapSkipping(e, 1).WithValue("errno", int(errValue))
}

// Errno extracts the errno from the error, if it was previously wrapped.
// Otherwise a default value is returned.
func Errno(e error) int {
	if e == nil {
		// nil error = success
		return successErrno
	}

	// If the "errno" key/value was not present, merry.Value returns nil.
	var errno = failureErrno
	tmp := merry.Value(e, "errno")
	if tmp != nil {
		errno = tmp.(int)
	}

	return errno
}

// ErrorString returns the error string annotated with the error value, if set.
func ErrorString(e error) string {
	if e == nil {
		return ""
	}

	errPlusVal := e.Error()

	tmp := merry.Value(e, "errno")
	if tmp != nil {
		errPlusVal = fmt.Sprintf("%s. Error Value: %v", errPlusVal, tmp.(int))
	}

	return errPlusVal
}

// Is checks whether an error matches a particular KernError.
//
// NOTE: Because the underlying errno value is used for the check, Is cannot
// distinguish between KernErrors sharing an errno value.
func Is(e error, theError KernError) bool {
	return Errno(e) == theError.Value()
}

// IsNot checks whether an error is NOT a particular KernError.
func IsNot(e error, theError KernError) bool {
	return Errno(e) != theError.Value()
}

// IsSuccess checks whether an error is the success KernError.
func IsSuccess(e error) bool {
	return Errno(e) == successErrno
}

// Location returns the file and line number of the code that generated the
// error. Returns zero values if e has no stacktrace.
func Location(e error) (file string, line int) {
	file, line = merry.Location(e)
	return
}

// Details wraps merry.Details, which returns all error details including the
// stacktrace in a string.
func Details(e error) string {
	return merry.Details(e)
}
