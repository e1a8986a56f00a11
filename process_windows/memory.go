//go:build windows

package process_windows

import (
	"unsafe"

	"remotemem/process"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

var (
	modkernel32            = windows.NewLazySystemDLL("kernel32.dll")
	procVirtualAllocEx     = modkernel32.NewProc("VirtualAllocEx")
	procVirtualFreeEx      = modkernel32.NewProc("VirtualFreeEx")
	procCreateRemoteThread = modkernel32.NewProc("CreateRemoteThread")
	procGetExitCodeThread  = modkernel32.NewProc("GetExitCodeThread")
)

const (
	memCommit  = 0x00001000
	memReserve = 0x00002000
	memRelease = 0x00008000
	memFree    = 0x00010000
)

// QueryRegion describes the region containing addr with VirtualQueryEx
func (p *WindowsProcess) QueryRegion(addr process.RemoteAddress) (process.MemoryRegionInfo, error) {
	handle, err := p.getHandle()
	if err != nil {
		return process.MemoryRegionInfo{}, err
	}

	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQueryEx(handle, uintptr(addr), &mbi, unsafe.Sizeof(mbi)); err != nil {
		return process.MemoryRegionInfo{}, platformError("VirtualQueryEx", err)
	}

	info := process.MemoryRegionInfo{
		BaseAddress:    process.RemoteAddress(mbi.BaseAddress),
		AllocationBase: process.RemoteAddress(mbi.AllocationBase),
		Size:           process.ProcessMemorySize(mbi.RegionSize),
		Protect:        process.Protection(mbi.Protect),
	}

	switch mbi.State {
	case memFree:
		info.State = process.RegionFree
	case memReserve:
		info.State = process.RegionReserved
	default:
		info.State = process.RegionCommitted
	}

	return info, nil
}

func (p *WindowsProcess) ReadMemory(addr process.RemoteAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	handle, err := p.getHandle()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	var bytesRead uintptr
	if err := windows.ReadProcessMemory(handle, uintptr(addr), &buf[0], uintptr(size), &bytesRead); err != nil {
		return nil, errors.Wrapf(platformError("ReadProcessMemory", err), "read %d bytes at %s", size, addr)
	}

	if bytesRead != uintptr(size) {
		return nil, errors.Errorf("read incomplete: expected %d, got %d", size, bytesRead)
	}

	return buf, nil
}

func (p *WindowsProcess) WriteMemory(addr process.RemoteAddress, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	handle, err := p.getHandle()
	if err != nil {
		return err
	}

	var written uintptr
	if err := windows.WriteProcessMemory(handle, uintptr(addr), &data[0], uintptr(len(data)), &written); err != nil {
		return errors.Wrapf(platformError("WriteProcessMemory", err), "write %d bytes at %s", len(data), addr)
	}

	if written != uintptr(len(data)) {
		return errors.Errorf("only wrote %d of %d bytes", written, len(data))
	}

	return nil
}

// Allocate reserves and commits size bytes with VirtualAllocEx
func (p *WindowsProcess) Allocate(addr process.RemoteAddress, size process.ProcessMemorySize, protect process.Protection) (process.RemoteAddress, error) {
	handle, err := p.getHandle()
	if err != nil {
		return 0, err
	}

	base, _, callErr := procVirtualAllocEx.Call(
		uintptr(handle),
		uintptr(addr),
		uintptr(size),
		uintptr(memCommit|memReserve),
		uintptr(protect),
	)
	if base == 0 {
		return 0, errors.Wrapf(platformError("VirtualAllocEx", callErr), "allocate %d bytes", size)
	}

	return process.RemoteAddress(base), nil
}

// Free releases a whole allocation with VirtualFreeEx
func (p *WindowsProcess) Free(addr process.RemoteAddress) error {
	handle, err := p.getHandle()
	if err != nil {
		return err
	}

	ok, _, callErr := procVirtualFreeEx.Call(uintptr(handle), uintptr(addr), 0, uintptr(memRelease))
	if ok == 0 {
		return errors.Wrapf(platformError("VirtualFreeEx", callErr), "free %s", addr)
	}

	return nil
}

func (p *WindowsProcess) Protect(addr process.RemoteAddress, size process.ProcessMemorySize, protect process.Protection) (process.Protection, error) {
	handle, err := p.getHandle()
	if err != nil {
		return 0, err
	}

	var old uint32
	if err := windows.VirtualProtectEx(handle, uintptr(addr), uintptr(size), uint32(protect), &old); err != nil {
		return 0, errors.Wrapf(platformError("VirtualProtectEx", err), "protect %s", addr)
	}

	return process.Protection(old), nil
}
