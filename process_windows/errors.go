//go:build windows

package process_windows

import (
	"errors"

	"remotemem/process"

	"golang.org/x/sys/windows"
)

// platformError captures the Win32 error carried by err. Call it directly
// after the failing call. The message comes from Errno.Error, which asks
// FormatMessage for the system text.
func platformError(op string, err error) *process.PlatformError {
	var errno windows.Errno
	if errors.As(err, &errno) {
		return process.NewPlatformError(op, uint32(errno), errno)
	}
	return process.NewPlatformError(op, 0, err)
}
