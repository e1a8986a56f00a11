package process

import (
	"fmt"
	"time"
)

// RemoteAddress is an address inside the target process's address space.
// It is never dereferenced locally.
type RemoteAddress uint64

func (ra RemoteAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(ra))
}

func (ra RemoteAddress) String() string {
	return ra.ToString()
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}

// InfiniteTimeout disables the bound on a remote thread wait.
const InfiniteTimeout time.Duration = -1

// RegionState is the allocation state of a region in the target
type RegionState int

const (
	RegionFree RegionState = iota
	RegionReserved
	RegionCommitted
)

func (s RegionState) String() string {
	switch s {
	case RegionFree:
		return "free"
	case RegionReserved:
		return "reserved"
	case RegionCommitted:
		return "committed"
	}
	return fmt.Sprintf("RegionState(%d)", int(s))
}

// Protection holds page protection flags, using the Windows PAGE_* values.
type Protection uint32

const (
	ProtectNoAccess         Protection = 0x01
	ProtectReadOnly         Protection = 0x02
	ProtectReadWrite        Protection = 0x04
	ProtectExecute          Protection = 0x10
	ProtectExecuteRead      Protection = 0x20
	ProtectExecuteReadWrite Protection = 0x40
	ProtectGuard            Protection = 0x100
)

func (p Protection) IsReadable() bool {
	switch p &^ ProtectGuard {
	case ProtectReadOnly, ProtectReadWrite, ProtectExecuteRead, ProtectExecuteReadWrite:
		return true
	}
	return false
}

func (p Protection) IsWritable() bool {
	switch p &^ ProtectGuard {
	case ProtectReadWrite, ProtectExecuteReadWrite:
		return true
	}
	return false
}

func (p Protection) IsExecutable() bool {
	switch p &^ ProtectGuard {
	case ProtectExecute, ProtectExecuteRead, ProtectExecuteReadWrite:
		return true
	}
	return false
}

// ProtectionFromPerms converts a /proc/<pid>/maps permission string ("r-xp")
// into the closest Protection value.
func ProtectionFromPerms(perms string) Protection {
	r := len(perms) > 0 && perms[0] == 'r'
	w := len(perms) > 1 && perms[1] == 'w'
	x := len(perms) > 2 && perms[2] == 'x'

	switch {
	case x && w:
		return ProtectExecuteReadWrite
	case x && r:
		return ProtectExecuteRead
	case x:
		return ProtectExecute
	case w:
		return ProtectReadWrite
	case r:
		return ProtectReadOnly
	}
	return ProtectNoAccess
}

// MemoryRegionInfo describes one contiguous range in the target's address
// space. It is a snapshot: the target may change the layout right after it
// is produced.
type MemoryRegionInfo struct {
	BaseAddress    RemoteAddress
	AllocationBase RemoteAddress
	Size           ProcessMemorySize
	State          RegionState
	Protect        Protection
}

// End returns the first address past the region
func (mri MemoryRegionInfo) End() RemoteAddress {
	return mri.BaseAddress + RemoteAddress(mri.Size)
}

// Contains reports whether addr lies inside the region
func (mri MemoryRegionInfo) Contains(addr RemoteAddress) bool {
	return addr >= mri.BaseAddress && addr < mri.End()
}

func (mri MemoryRegionInfo) String() string {
	return fmt.Sprintf("Base: %s, AllocationBase: %s, Size: %#x, State: %s, Protect: %#x",
		mri.BaseAddress, mri.AllocationBase, uint64(mri.Size), mri.State, uint32(mri.Protect))
}
