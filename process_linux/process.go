//go:build linux

package process_linux

import (
	"fmt"
	"os"
	"sync"
	"time"

	"remotemem/process"
	"remotemem/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	// userSpaceLimit is the first address past the x86-64 user address space
	userSpaceLimit = 0x800000000000

	// memoryMapMaxAge bounds how stale the cached map may be when a region
	// is queried
	memoryMapMaxAge = 250 * time.Millisecond
)

// LinuxProcess implements the process.Process interface for Linux systems.
// Allocation, protection changes and remote threads are not available
// without ptrace and report process.ErrNotSupported.
type LinuxProcess struct {
	pid    process.ProcessID
	log    *logger.Logger
	mm     []memory_map.MemoryMapItem
	mmTime time.Time
	mu     sync.Mutex
}

// New creates a new LinuxProcess instance
func New() process.Process {
	return &LinuxProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
}

// NewWithPID creates a new LinuxProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (process.Process, error) {
	p := &LinuxProcess{}
	err := p.Open(pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// NewWithName opens the lowest PID whose comm or exe basename equals name
func NewWithName(name string) (process.Process, error) {
	proc, err := OneByName(name)
	if err != nil {
		return nil, errors.Wrapf(err, "find process '%s'", name)
	}
	return NewWithPID(process.ProcessID(proc.PID))
}

func (p *LinuxProcess) Open(pid process.ProcessID) error {
	// Check if process exists
	procPath := fmt.Sprintf("/proc/%d", pid)
	if _, err := os.Stat(procPath); os.IsNotExist(err) {
		return fmt.Errorf("process with PID %d does not exist", pid)
	}

	p.mu.Lock()
	p.pid = pid
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))
	p.mu.Unlock()

	if err := p.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("failed to initialize memory map: %w", err)
	}

	p.log.Infoln("Process opened")

	return nil
}

func (p *LinuxProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.log.Infoln("Closing process")

	p.pid = 0
	p.mm = nil
	p.mmTime = time.Time{}

	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))

	p.log.Infoln("Process closed")

	return nil
}

// GetPID returns the process ID
func (p *LinuxProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *LinuxProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updateMemoryMapInternal()
}

// updateMemoryMapInternal assumes the mutex is held
func (p *LinuxProcess) updateMemoryMapInternal() error {
	if p.pid == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memory_map.ReadMemoryMap(int(p.pid))
	if err != nil {
		return platformError("read /proc/pid/maps", err)
	}

	// FindItem and SpanAt require the memory map to be sorted by address
	memory_map.Sort(mm)

	p.mm = mm
	p.mmTime = time.Now()
	return nil
}

func (p *LinuxProcess) IsValidAddress(addr process.RemoteAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.isValidAddressInternal(addr)
}

// isValidAddressInternal assumes the mutex is held
func (p *LinuxProcess) isValidAddressInternal(addr process.RemoteAddress) bool {
	if addr <= 0x10000 || addr >= userSpaceLimit {
		return false
	}

	item := memory_map.FindItem(uint64(addr), p.mm)
	return item != nil && item.IsReadable()
}

func (p *LinuxProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	// Make a copy of the memory map to prevent external modification
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)

	return result, nil
}

// QueryRegion derives the region containing addr from /proc/[pid]/maps.
// Mapped ranges are committed; the gaps between them are free.
func (p *LinuxProcess) QueryRegion(addr process.RemoteAddress) (process.MemoryRegionInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return process.MemoryRegionInfo{}, process.ErrProcessNotOpen
	}

	if time.Since(p.mmTime) > memoryMapMaxAge {
		if err := p.updateMemoryMapInternal(); err != nil {
			return process.MemoryRegionInfo{}, err
		}
	}

	span, ok := memory_map.SpanAt(uint64(addr), p.mm, userSpaceLimit)
	if !ok {
		return process.MemoryRegionInfo{}, process.NewPlatformError("QueryRegion", uint32(unix.EFAULT), unix.EFAULT)
	}

	info := process.MemoryRegionInfo{
		BaseAddress:    process.RemoteAddress(span.Start),
		AllocationBase: process.RemoteAddress(span.Start),
		Size:           process.ProcessMemorySize(span.End - span.Start),
		State:          process.RegionFree,
	}
	if span.Mapped {
		info.State = process.RegionCommitted
		info.Protect = process.ProtectionFromPerms(span.Item.Perms)
	}

	return info, nil
}

func (p *LinuxProcess) Allocate(addr process.RemoteAddress, size process.ProcessMemorySize, protect process.Protection) (process.RemoteAddress, error) {
	return 0, errors.Wrap(process.ErrNotSupported, "allocate in remote process")
}

func (p *LinuxProcess) Free(addr process.RemoteAddress) error {
	return errors.Wrap(process.ErrNotSupported, "free in remote process")
}

func (p *LinuxProcess) Protect(addr process.RemoteAddress, size process.ProcessMemorySize, protect process.Protection) (process.Protection, error) {
	return 0, errors.Wrap(process.ErrNotSupported, "change protection in remote process")
}

func (p *LinuxProcess) CreateThread(start process.RemoteAddress) (process.RemoteThread, error) {
	return nil, errors.Wrap(process.ErrNotSupported, "create remote thread")
}

// platformError captures the errno carried by err
func platformError(op string, err error) error {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return process.NewPlatformError(op, uint32(errno), errno)
	}
	return errors.Wrap(err, op)
}
