package remote

import (
	"fmt"
	"sync"

	"remotemem/process"
)

// maxLowAllocAttempts bounds how often a below-4GB allocation rescans after
// the target took the region it found.
const maxLowAllocAttempts = 4

type runConfig struct {
	protect      process.Protection
	finalProtect process.Protection
	below4GB     bool
	scan         []ScanOption
}

// RunOption configures Allocate and RunBytes
type RunOption func(*runConfig)

// WithBelow4GB places the allocation in a free region found by
// FindFreeRegion instead of letting the platform choose.
func WithBelow4GB(opts ...ScanOption) RunOption {
	return func(c *runConfig) {
		c.below4GB = true
		c.scan = append(c.scan, opts...)
	}
}

func WithProtection(protect process.Protection) RunOption {
	return func(c *runConfig) {
		c.protect = protect
	}
}

// WithWriteThenProtect allocates the payload read-write and switches it to
// protect after the write, so the pages are never writable and executable at
// once. The target must implement process.Protector.
func WithWriteThenProtect(protect process.Protection) RunOption {
	return func(c *runConfig) {
		c.protect = process.ProtectReadWrite
		c.finalProtect = protect
	}
}

func newRunConfig(opts []RunOption) runConfig {
	c := runConfig{protect: process.ProtectExecuteReadWrite}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Allocation is a block of memory committed in the target. Its owner must
// call Release once it is done; further calls are no-ops.
type Allocation struct {
	Address process.RemoteAddress
	Size    process.ProcessMemorySize

	exec     *Executor
	once     sync.Once
	released error
}

// Release frees the allocation in the target. Only the first call reaches
// the target; later calls return the first call's result.
func (a *Allocation) Release() error {
	a.once.Do(func() {
		if err := a.exec.target.Free(a.Address); err != nil {
			a.released = a.exec.fail(ErrFree, "Free", a.Address, err)
			a.exec.log.Warn("remote allocation leaked at ", a.Address.ToString(), ": ", err)
			return
		}
		a.exec.log.Debugln("released", a.Size.ToString(), "at", a.Address.ToString())
	})
	return a.released
}

// Allocate commits size bytes in the target with execute-read-write
// protection unless WithProtection says otherwise.
func (e *Executor) Allocate(size process.ProcessMemorySize, opts ...RunOption) (*Allocation, error) {
	cfg := newRunConfig(opts)

	var addr process.RemoteAddress
	var err error
	if cfg.below4GB {
		addr, err = e.allocateBelow4GB(size, cfg)
	} else {
		addr, err = e.target.Allocate(0, size, cfg.protect)
	}
	if err != nil {
		return nil, e.fail(ErrAllocation, "Allocate", 0, err)
	}

	e.log.Debugln("allocated", size.ToString(), "at", addr.ToString())
	return &Allocation{Address: addr, Size: size, exec: e}, nil
}

// allocateBelow4GB treats each scan result as a hint: the region is queried
// again and the block is placed on the lowest granularity-aligned address
// that keeps it inside the region and below the boundary. A region with no
// such address is skipped and the scan resumes under it. Layout changes and
// failed allocations are retried at most maxLowAllocAttempts times.
func (e *Executor) allocateBelow4GB(size process.ProcessMemorySize, cfg runConfig) (process.RemoteAddress, error) {
	scan := newScanConfig(cfg.scan)
	padded := size + process.ProcessMemorySize(scan.granularity-1)
	boundary := scan.boundary

	var lastErr error
	for attempt := 0; attempt < maxLowAllocAttempts; {
		opts := append(append([]ScanOption(nil), cfg.scan...), WithBoundary(boundary))
		candidate, err := FindFreeRegion(e.target, padded, opts...)
		if err != nil {
			return 0, err
		}

		info, err := e.target.QueryRegion(candidate)
		if err != nil {
			return 0, &Error{Kind: ErrQuery, Op: "QueryRegion", Address: candidate, Err: err}
		}
		if info.State != process.RegionFree {
			e.log.Debugln("free region at", candidate.ToString(), "changed before use, rescanning")
			lastErr = &Error{Kind: ErrRegionNotFound, Op: "QueryRegion", Address: candidate}
			attempt++
			continue
		}

		addr, ok := placeBelow(info, size, scan.granularity, scan.boundary)
		if !ok {
			next := alignDown(uint64(info.BaseAddress), scan.granularity)
			if next >= boundary || next < scan.pageSize {
				return 0, &Error{
					Kind: ErrRegionNotFound,
					Op:   "FindFreeRegion",
					Err:  fmt.Errorf("no aligned block of %#x bytes below %#x", uint64(size), scan.boundary),
				}
			}
			e.log.Debugln("free region at", info.BaseAddress.ToString(), "has no aligned fit, scanning below it")
			boundary = next
			continue
		}

		allocated, err := e.target.Allocate(addr, size, cfg.protect)
		if err == nil {
			return allocated, nil
		}
		e.log.Debugln("allocation at", addr.ToString(), "failed, rescanning:", err)
		lastErr = err
		attempt++
	}

	return 0, lastErr
}

// placeBelow returns the lowest granularity-aligned address at which size
// bytes lie inside info and end at or below boundary. Address 0 is never
// returned since it asks the platform to choose.
func placeBelow(info process.MemoryRegionInfo, size process.ProcessMemorySize, granularity, boundary uint64) (process.RemoteAddress, bool) {
	top := min(uint64(info.End()), boundary)
	start := alignUp(max(uint64(info.BaseAddress), granularity), granularity)
	if start >= top || top-start < uint64(size) {
		return 0, false
	}
	return process.RemoteAddress(start), true
}
