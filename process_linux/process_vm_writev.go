//go:build linux

package process_linux

import (
	"fmt"
	"unsafe"

	"remotemem/process"
	"remotemem/process/memory_map"

	"golang.org/x/sys/unix"
)

// process_vm_writev uses the process_vm_writev syscall to write memory to another process
func process_vm_writev(
	pid process.ProcessID,
	localBuf []byte,
	remoteAddr process.RemoteAddress,
) (int, error) {
	if len(localBuf) == 0 {
		return 0, nil
	}

	// Create iovec for local buffer
	localIov := unix.Iovec{
		Base: &localBuf[0],
		Len:  uint64(len(localBuf)),
	}

	// Create iovec for remote buffer
	remoteIov := unix.RemoteIovec{
		Base: uintptr(remoteAddr),
		Len:  len(localBuf),
	}

	n, _, errno := unix.Syscall6(
		unix.SYS_PROCESS_VM_WRITEV,
		uintptr(pid),                        // Remote process PID
		uintptr(unsafe.Pointer(&localIov)),  // Local iovec
		uintptr(1),                          // Number of local iovecs
		uintptr(unsafe.Pointer(&remoteIov)), // Remote iovec
		uintptr(1),                          // Number of remote iovecs
		uintptr(0),                          // Flags (reserved for future use)
	)

	if errno != 0 {
		return 0, process.NewPlatformError("process_vm_writev", uint32(errno), errno)
	}

	return int(n), nil
}

// WriteMemory writes data to the process memory at the specified address.
// The destination must lie in a writable mapping.
func (p *LinuxProcess) WriteMemory(addr process.RemoteAddress, data []byte) error {
	p.mu.Lock()

	if p.pid == 0 {
		p.mu.Unlock()
		return process.ErrProcessNotOpen
	}

	// Make a copy of the PID to avoid race conditions
	pid := p.pid

	if !p.isValidAddressInternal(addr) {
		p.mu.Unlock()
		return process.ErrAddressNotMapped
	}

	// isValidAddressInternal guarantees a containing item
	item := *memory_map.FindItem(uint64(addr), p.mm)

	// Release the lock before the system call
	p.mu.Unlock()

	if !item.IsWritable() {
		return fmt.Errorf("memory region at %s is not writable", addr)
	}

	// Create a copy of the data to avoid potential modification during the write
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	written, err := process_vm_writev(pid, dataCopy, addr)
	if err != nil {
		return fmt.Errorf("failed to write process memory at %s: %w", addr, err)
	}

	if written != len(data) {
		return fmt.Errorf("only wrote %d of %d bytes", written, len(data))
	}

	return nil
}
