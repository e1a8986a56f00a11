package remote

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"remotemem/process"
	"remotemem/process/memory_map"
)

const fakeLimit = 0x800000000000

// fakeTarget is an in-memory process.Target. Explicit regions are laid over
// a committed background; allocations at address 0 land above fakeLimit.
type fakeTarget struct {
	mu sync.Mutex

	regions []process.MemoryRegionInfo
	memory  map[process.RemoteAddress][]byte
	prot    map[process.RemoteAddress]process.Protection

	queryErr  func(addr process.RemoteAddress) error
	allocErr  error
	writeErr  error
	createErr error
	waitErr   error
	freeErr   error
	exitErr   error
	protErr   error

	writePanic bool
	exitPanic  bool

	nextAlloc   process.RemoteAddress
	queries     int
	allocCalls  int
	freeCalls   map[process.RemoteAddress]int
	threadCalls int
	closeCalls  int
}

func newFakeTarget(regions ...process.MemoryRegionInfo) *fakeTarget {
	f := &fakeTarget{
		memory:    make(map[process.RemoteAddress][]byte),
		prot:      make(map[process.RemoteAddress]process.Protection),
		freeCalls: make(map[process.RemoteAddress]int),
		nextAlloc: fakeLimit,
	}
	f.regions = append(f.regions, regions...)
	f.sortRegions()
	return f
}

func (f *fakeTarget) sortRegions() {
	sort.Slice(f.regions, func(i, j int) bool {
		return f.regions[i].BaseAddress < f.regions[j].BaseAddress
	})
}

// outstanding counts allocations that were never freed
func (f *fakeTarget) outstanding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.memory)
}

func (f *fakeTarget) QueryRegion(addr process.RemoteAddress) (process.MemoryRegionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries++
	if f.queryErr != nil {
		if err := f.queryErr(addr); err != nil {
			return process.MemoryRegionInfo{}, err
		}
	}

	var mm []memory_map.MemoryMapItem
	for _, r := range f.regions {
		mm = append(mm, memory_map.MemoryMapItem{Address: uint64(r.BaseAddress), Size: uint(r.Size)})
	}

	span, ok := memory_map.SpanAt(uint64(addr), mm, fakeLimit)
	if !ok {
		return process.MemoryRegionInfo{}, &process.PlatformError{Op: "VirtualQueryEx", Code: 87, Message: "The parameter is incorrect."}
	}

	if span.Mapped {
		for _, r := range f.regions {
			if r.Contains(addr) {
				return r, nil
			}
		}
	}

	return process.MemoryRegionInfo{
		BaseAddress:    process.RemoteAddress(span.Start),
		AllocationBase: process.RemoteAddress(span.Start),
		Size:           process.ProcessMemorySize(span.End - span.Start),
		State:          process.RegionCommitted,
		Protect:        process.ProtectReadOnly,
	}, nil
}

func (f *fakeTarget) ReadMemory(addr process.RemoteAddress, size process.ProcessMemorySize) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.memory[addr]
	if !ok || len(data) < int(size) {
		return nil, process.ErrAddressNotMapped
	}
	return append([]byte(nil), data[:size]...), nil
}

func (f *fakeTarget) WriteMemory(addr process.RemoteAddress, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writePanic {
		panic("adapter exploded")
	}
	if f.writeErr != nil {
		return f.writeErr
	}

	buf, ok := f.memory[addr]
	if !ok || len(buf) < len(data) {
		return process.ErrAddressNotMapped
	}
	copy(buf, data)
	return nil
}

func (f *fakeTarget) Allocate(addr process.RemoteAddress, size process.ProcessMemorySize, protect process.Protection) (process.RemoteAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.allocCalls++
	if f.allocErr != nil {
		return 0, f.allocErr
	}

	if addr == 0 {
		addr = f.nextAlloc
		f.nextAlloc += 0x10000
	} else {
		idx := -1
		for i, r := range f.regions {
			if r.Contains(addr) {
				idx = i
			}
		}
		if idx < 0 || f.regions[idx].State != process.RegionFree || f.regions[idx].End() < addr+process.RemoteAddress(size) {
			return 0, &process.PlatformError{Op: "VirtualAllocEx", Code: 487, Message: "Attempt to access invalid address."}
		}

		free := f.regions[idx]
		f.regions = append(f.regions[:idx], f.regions[idx+1:]...)
		if addr > free.BaseAddress {
			f.regions = append(f.regions, process.MemoryRegionInfo{
				BaseAddress: free.BaseAddress,
				Size:        process.ProcessMemorySize(addr - free.BaseAddress),
				State:       process.RegionFree,
			})
		}
		f.regions = append(f.regions, process.MemoryRegionInfo{
			BaseAddress:    addr,
			AllocationBase: addr,
			Size:           size,
			State:          process.RegionCommitted,
			Protect:        protect,
		})
		if end := addr + process.RemoteAddress(size); end < free.End() {
			f.regions = append(f.regions, process.MemoryRegionInfo{
				BaseAddress: end,
				Size:        process.ProcessMemorySize(free.End() - end),
				State:       process.RegionFree,
			})
		}
		f.sortRegions()
	}

	f.memory[addr] = make([]byte, size)
	f.prot[addr] = protect
	return addr, nil
}

func (f *fakeTarget) Free(addr process.RemoteAddress) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.freeCalls[addr]++
	if f.freeErr != nil {
		return f.freeErr
	}
	if _, ok := f.memory[addr]; !ok {
		return fmt.Errorf("double free at %s", addr)
	}
	delete(f.memory, addr)
	delete(f.prot, addr)

	for i, r := range f.regions {
		if r.BaseAddress == addr && r.State == process.RegionCommitted {
			f.regions[i].State = process.RegionFree
			f.regions[i].Protect = 0
			break
		}
	}
	return nil
}

func (f *fakeTarget) Protect(addr process.RemoteAddress, size process.ProcessMemorySize, protect process.Protection) (process.Protection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.protErr != nil {
		return 0, f.protErr
	}
	old, ok := f.prot[addr]
	if !ok {
		return 0, process.ErrAddressNotMapped
	}
	f.prot[addr] = protect
	return old, nil
}

// CreateThread "runs" the code at start: a payload containing a ret (0xC3)
// completes, anything else spins forever.
func (f *fakeTarget) CreateThread(start process.RemoteAddress) (process.RemoteThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.threadCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}

	if _, ok := f.memory[start]; ok && !f.prot[start].IsExecutable() {
		return nil, &process.PlatformError{Op: "CreateRemoteThread", Code: 998, Message: "Invalid access to memory location."}
	}

	t := &fakeThread{target: f, done: make(chan struct{})}
	if code, ok := f.memory[start]; ok && bytes.IndexByte(code, 0xC3) >= 0 {
		close(t.done)
	}
	return t, nil
}

type fakeThread struct {
	target *fakeTarget
	done   chan struct{}
}

func (t *fakeThread) Wait(timeout time.Duration) (process.WaitStatus, error) {
	if t.target.waitErr != nil {
		return 0, t.target.waitErr
	}

	if timeout < 0 {
		<-t.done
		return process.WaitCompleted, nil
	}

	select {
	case <-t.done:
		return process.WaitCompleted, nil
	case <-time.After(timeout):
		return process.WaitTimedOut, nil
	}
}

func (t *fakeThread) ExitCode() (uint32, error) {
	if t.target.exitPanic {
		panic("exit code lookup exploded")
	}
	if t.target.exitErr != nil {
		return 0, t.target.exitErr
	}
	return 0, nil
}

func (t *fakeThread) Close() error {
	t.target.mu.Lock()
	defer t.target.mu.Unlock()
	t.target.closeCalls++
	return nil
}
