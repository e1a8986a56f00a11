// Package process defines the types and capability interfaces shared by the
// platform adapters and the remote execution engine.
package process

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrNotSupported is returned by adapters for primitives the platform binding does not provide.
	ErrNotSupported = errors.New("operation not supported on this platform")

	ErrModuleNotFound = errors.New("module not found")
)

// PlatformError carries the raw platform error code of a failed OS call
// together with its human-readable text. Adapters build it right after the
// failing call, before anything else can overwrite the platform's last error.
type PlatformError struct {
	Op      string
	Code    uint32
	Message string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s failed: error %d: %s", e.Op, e.Code, e.Message)
}

// NewPlatformError captures code and message for op. A nil err yields a
// PlatformError with code 0, which some Win32 calls report on failure.
func NewPlatformError(op string, code uint32, err error) *PlatformError {
	pe := &PlatformError{Op: op, Code: code}
	if err != nil {
		pe.Message = err.Error()
	}
	return pe
}

// CodeOf returns the platform error code carried by err, or 0.
func CodeOf(err error) uint32 {
	var pe *PlatformError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return 0
}

// MessageOf returns the platform error message carried by err, or err's own text.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var pe *PlatformError
	if errors.As(err, &pe) {
		return fmt.Sprintf("Error %d: %s", pe.Code, pe.Message)
	}
	return err.Error()
}
