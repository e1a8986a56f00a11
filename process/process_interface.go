package process

import (
	"time"

	"remotemem/process/memory_map"
)

// Process is an opened target process. The caller owns its lifecycle:
// nothing that receives a Process or Target closes it.
type Process interface {
	// Open opens a process with the given PID for memory operations
	Open(pid ProcessID) error

	// Close closes the process and releases resources
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	Target
	Protector
	ModuleLocator
	MemoryMapper
}

// Target is the set of OS primitives the remote execution engine drives.
type Target interface {
	RegionQuerier
	MemoryAccess
	Allocator
	ThreadCreator
}

// RegionQuerier resolves an address to the region that contains it
type RegionQuerier interface {
	// QueryRegion returns the region containing addr. addr need not be a
	// region start.
	QueryRegion(addr RemoteAddress) (MemoryRegionInfo, error)
}

// MemoryAccess reads and writes byte ranges in the target
type MemoryAccess interface {
	// ReadMemory reads memory from the process at the specified address
	ReadMemory(addr RemoteAddress, size ProcessMemorySize) ([]byte, error)

	// WriteMemory writes data to the process memory at the specified address
	WriteMemory(addr RemoteAddress, data []byte) error
}

// Allocator reserves and releases memory in the target
type Allocator interface {
	// Allocate commits size bytes with the given protection. A zero addr
	// lets the platform choose the location.
	Allocate(addr RemoteAddress, size ProcessMemorySize, protect Protection) (RemoteAddress, error)

	// Free releases an allocation previously returned by Allocate
	Free(addr RemoteAddress) error
}

// ThreadCreator starts threads of execution inside the target
type ThreadCreator interface {
	// CreateThread starts a thread at start with no argument
	CreateThread(start RemoteAddress) (RemoteThread, error)
}

// WaitStatus is the outcome of waiting on a remote thread
type WaitStatus int

const (
	WaitCompleted WaitStatus = iota
	WaitTimedOut
)

// RemoteThread is a thread created inside the target. Close must be called
// exactly once whatever Wait returned.
type RemoteThread interface {
	// Wait blocks up to timeout; InfiniteTimeout waits without bound.
	Wait(timeout time.Duration) (WaitStatus, error)

	// ExitCode returns the thread's exit code once it has completed
	ExitCode() (uint32, error)

	Close() error
}

// ModuleLocator looks up modules mapped in the target
type ModuleLocator interface {
	// ModuleBase returns base and size of the named module
	ModuleBase(name string) (ModuleInfo, error)

	// Modules lists the modules mapped in the target
	Modules() ([]ModuleInfo, error)
}

// Protector changes page protection in the target
type Protector interface {
	// Protect sets protect on [addr, addr+size) and returns the previous value
	Protect(addr RemoteAddress, size ProcessMemorySize, protect Protection) (Protection, error)
}

// MemoryMapper keeps a cached map of the target's mapped regions
type MemoryMapper interface {
	// UpdateMemoryMap refreshes the memory map for the process
	UpdateMemoryMap() error

	// GetMemoryMap returns a copy of the current memory map
	GetMemoryMap() ([]memory_map.MemoryMapItem, error)

	// IsValidAddress checks if the given memory address is valid and readable
	IsValidAddress(addr RemoteAddress) bool
}
