//go:build windows

package process_windows

import (
	"fmt"
	"sync"

	"remotemem/process"
	"remotemem/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// Rights needed to query, allocate, write and start threads in the target
const processAccess = windows.PROCESS_CREATE_THREAD |
	windows.PROCESS_QUERY_INFORMATION |
	windows.PROCESS_VM_OPERATION |
	windows.PROCESS_VM_WRITE |
	windows.PROCESS_VM_READ

// WindowsProcess implements the process.Process interface for Windows systems
type WindowsProcess struct {
	pid    process.ProcessID
	handle windows.Handle
	log    *logger.Logger
	mm     []memory_map.MemoryMapItem
	mu     sync.Mutex
}

// New creates a new WindowsProcess instance
func New() process.Process {
	return &WindowsProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
}

// NewWithPID creates a new WindowsProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (process.Process, error) {
	p := &WindowsProcess{}
	err := p.Open(pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// NewWithName opens the first process whose executable name matches
func NewWithName(name string) (process.Process, error) {
	pid, err := OneByName(name)
	if err != nil {
		return nil, err
	}
	return NewWithPID(pid)
}

func (p *WindowsProcess) Open(pid process.ProcessID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	handle, err := windows.OpenProcess(processAccess, false, uint32(pid))
	if err != nil {
		return errors.Wrapf(platformError("OpenProcess", err), "open process %d", pid)
	}

	p.pid = pid
	p.handle = handle
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))

	// Initialize memory map
	if err := p.updateMemoryMapInternal(); err != nil {
		p.log.Warn("Failed to initialize memory map: ", err)
	}

	p.log.Infoln("Process opened")
	return nil
}

func (p *WindowsProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != 0 {
		if err := windows.CloseHandle(p.handle); err != nil {
			return errors.Wrap(platformError("CloseHandle", err), "close process")
		}
		p.handle = 0
	}

	p.pid = 0
	p.mm = nil
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))
	p.log.Infoln("Process closed")

	return nil
}

func (p *WindowsProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// getHandle returns the open handle without holding the lock across the
// system call that follows.
func (p *WindowsProcess) getHandle() (windows.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return 0, process.ErrProcessNotOpen
	}
	return p.handle, nil
}

func (p *WindowsProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updateMemoryMapInternal()
}

func (p *WindowsProcess) updateMemoryMapInternal() error {
	if p.handle == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memory_map.ReadMemoryMapHandle(p.handle)
	if err != nil {
		return errors.Wrap(err, "failed to read memory map")
	}

	// FindItem requires the memory map to be sorted by address
	memory_map.Sort(mm)

	p.mm = mm
	return nil
}

func (p *WindowsProcess) IsValidAddress(addr process.RemoteAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	item := memory_map.FindItem(uint64(addr), p.mm)
	return item != nil && item.IsReadable()
}

func (p *WindowsProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return nil, process.ErrProcessNotOpen
	}
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)
	return result, nil
}
