package kerror

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

func TestNewError(t *testing.T) {
	err := NewError(IOError, "read of block %v failed", 17)

	if !Is(err, IOError) {
		t.Errorf("expected error to match IOError, Errno() == %v", Errno(err))
	}
	if Is(err, TryAgainError) {
		t.Errorf("error unexpectedly matches TryAgainError")
	}
	if Errno(err) != int(unix.EIO) {
		t.Errorf("Errno() == %v, expected %v", Errno(err), int(unix.EIO))
	}
	if !strings.Contains(err.Error(), "read of block 17 failed") {
		t.Errorf("error message mangled: %q", err.Error())
	}
}

func TestAddError(t *testing.T) {
	base := errors.New("device went away")
	err := AddError(base, NoDeviceError)

	if !Is(err, NoDeviceError) {
		t.Errorf("expected error to match NoDeviceError, Errno() == %v", Errno(err))
	}
	if !strings.Contains(ErrorString(err), "Error Value:") {
		t.Errorf("ErrorString() lacks error value annotation: %q", ErrorString(err))
	}

	// A nil underlying error still yields a usable annotated error
	err = AddError(nil, InvalidArgError)
	if !Is(err, InvalidArgError) {
		t.Errorf("AddError(nil,) did not produce an InvalidArgError")
	}
}

func TestSuccessAndDefaults(t *testing.T) {
	if !IsSuccess(nil) {
		t.Errorf("IsSuccess(nil) returned false")
	}
	if Errno(nil) != 0 {
		t.Errorf("Errno(nil) == %v, expected 0", Errno(nil))
	}

	// An unannotated error maps to the default failure errno
	plain := errors.New("plain error")
	if Errno(plain) != -1 {
		t.Errorf("Errno(plain) == %v, expected -1", Errno(plain))
	}
	if IsSuccess(plain) {
		t.Errorf("IsSuccess(plain) returned true")
	}
}

func TestLocationAndDetails(t *testing.T) {
	err := NewError(CorruptDataError, "checksum mismatch")

	file, line := Location(err)
	if "" == file || 0 == line {
		t.Errorf("Location() returned zero values: %q:%v", file, line)
	}
	if !strings.Contains(Details(err), "checksum mismatch") {
		t.Errorf("Details() lacks original message")
	}
}
