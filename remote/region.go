package remote

import (
	"fmt"

	"remotemem/process"
)

const (
	// DefaultBoundary is the exclusive upper bound of the free-region scan
	DefaultBoundary uint64 = 0x100000000

	DefaultPageSize uint64 = 0x1000

	// DefaultGranularity is the fixed downward step of the scan, matching
	// the Windows allocation granularity.
	DefaultGranularity uint64 = 0x10000
)

type scanConfig struct {
	boundary    uint64
	pageSize    uint64
	granularity uint64
}

// ScanOption configures FindFreeRegion
type ScanOption func(*scanConfig)

func WithBoundary(boundary uint64) ScanOption {
	return func(c *scanConfig) {
		c.boundary = boundary
	}
}

func WithPageSize(size uint64) ScanOption {
	return func(c *scanConfig) {
		c.pageSize = size
	}
}

func WithGranularity(granularity uint64) ScanOption {
	return func(c *scanConfig) {
		c.granularity = granularity
	}
}

func newScanConfig(opts []ScanOption) scanConfig {
	c := scanConfig{
		boundary:    DefaultBoundary,
		pageSize:    DefaultPageSize,
		granularity: DefaultGranularity,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// FindFreeRegion scans the target downward from one page below the boundary
// and returns the base of the first free region of at least minimumSize
// bytes. ErrRegionNotFound is a normal outcome on a fragmented or full
// address space; a failing query aborts the scan with ErrQuery instead.
//
// The result is a snapshot. The region may be taken by the target before the
// caller uses it.
func FindFreeRegion(q process.RegionQuerier, minimumSize process.ProcessMemorySize, opts ...ScanOption) (process.RemoteAddress, error) {
	cfg := newScanConfig(opts)
	if cfg.granularity == 0 || cfg.pageSize == 0 || cfg.boundary < cfg.pageSize {
		return 0, &Error{
			Kind: ErrRegionNotFound,
			Op:   "FindFreeRegion",
			Err:  fmt.Errorf("invalid scan bounds: boundary=%#x page=%#x granularity=%#x", cfg.boundary, cfg.pageSize, cfg.granularity),
		}
	}

	addr := cfg.boundary - cfg.pageSize
	maxSteps := cfg.boundary/cfg.granularity + 1

	for step := uint64(0); step <= maxSteps; step++ {
		info, err := q.QueryRegion(process.RemoteAddress(addr))
		if err != nil {
			return 0, &Error{Kind: ErrQuery, Op: "QueryRegion", Address: process.RemoteAddress(addr), Err: err}
		}

		if info.State == process.RegionFree && info.Size >= minimumSize {
			return info.BaseAddress, nil
		}

		// Step from the region base so the next query lands below it.
		base := uint64(info.BaseAddress)
		if base > addr {
			base = addr
		}
		if base == 0 {
			break
		}

		next := uint64(0)
		if base > cfg.granularity {
			next = base - cfg.granularity
		}
		if next >= addr {
			break
		}
		addr = next
	}

	return 0, &Error{Kind: ErrRegionNotFound, Op: "FindFreeRegion", Err: fmt.Errorf("minimum size %#x", uint64(minimumSize))}
}

func alignUp(addr, align uint64) uint64 {
	if align == 0 {
		return addr
	}
	return (addr + align - 1) / align * align
}

func alignDown(addr, align uint64) uint64 {
	if align == 0 {
		return addr
	}
	return addr / align * align
}
