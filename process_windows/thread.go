//go:build windows

package process_windows

import (
	"time"
	"unsafe"

	"remotemem/process"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// CreateThread starts a remote thread at start with no parameter
func (p *WindowsProcess) CreateThread(start process.RemoteAddress) (process.RemoteThread, error) {
	handle, err := p.getHandle()
	if err != nil {
		return nil, err
	}

	var threadID uint32
	thread, _, callErr := procCreateRemoteThread.Call(
		uintptr(handle),
		0, // default security attributes
		0, // default stack size
		uintptr(start),
		0, // no parameter
		0, // run immediately
		uintptr(unsafe.Pointer(&threadID)),
	)
	if thread == 0 {
		return nil, errors.Wrapf(platformError("CreateRemoteThread", callErr), "start thread at %s", start)
	}

	p.log.Debugln("Remote thread", threadID, "started at", start.ToString())
	return &windowsThread{handle: windows.Handle(thread), id: threadID}, nil
}

type windowsThread struct {
	handle windows.Handle
	id     uint32
}

// waitMilliseconds converts a timeout to the WaitForSingleObject argument
func waitMilliseconds(timeout time.Duration) uint32 {
	if timeout < 0 {
		return windows.INFINITE
	}
	ms := (timeout + time.Millisecond - 1) / time.Millisecond
	if ms >= windows.INFINITE {
		return windows.INFINITE - 1
	}
	return uint32(ms)
}

func (t *windowsThread) Wait(timeout time.Duration) (process.WaitStatus, error) {
	event, err := windows.WaitForSingleObject(t.handle, waitMilliseconds(timeout))
	if err != nil {
		return 0, platformError("WaitForSingleObject", err)
	}

	switch event {
	case windows.WAIT_OBJECT_0:
		return process.WaitCompleted, nil
	case uint32(windows.WAIT_TIMEOUT):
		return process.WaitTimedOut, nil
	}
	return 0, errors.Errorf("WaitForSingleObject returned %#x for thread %d", event, t.id)
}

func (t *windowsThread) ExitCode() (uint32, error) {
	var code uint32
	ok, _, callErr := procGetExitCodeThread.Call(uintptr(t.handle), uintptr(unsafe.Pointer(&code)))
	if ok == 0 {
		return 0, platformError("GetExitCodeThread", callErr)
	}
	return code, nil
}

func (t *windowsThread) Close() error {
	if err := windows.CloseHandle(t.handle); err != nil {
		return platformError("CloseHandle", err)
	}
	return nil
}
