package remote

import (
	"errors"
	"testing"

	"remotemem/process"
)

type querierFunc func(addr process.RemoteAddress) (process.MemoryRegionInfo, error)

func (fn querierFunc) QueryRegion(addr process.RemoteAddress) (process.MemoryRegionInfo, error) {
	return fn(addr)
}

func TestFindFreeRegion(t *testing.T) {
	const a = process.RemoteAddress(0xFFFFF000)
	const b = process.RemoteAddress(0xFFFEF000)

	target := newFakeTarget(
		process.MemoryRegionInfo{BaseAddress: a, AllocationBase: a, Size: 0x1000, State: process.RegionCommitted},
		process.MemoryRegionInfo{BaseAddress: b, Size: 0x2000, State: process.RegionFree},
	)

	addr, err := FindFreeRegion(target, 0x2000)
	if err != nil {
		t.Fatal(err)
	}
	if addr != b {
		t.Fatalf("expected %s - got %s", b, addr)
	}

	_, err = FindFreeRegion(target, 0x2001)
	if !errors.Is(err, ErrRegionNotFound) {
		t.Fatalf("expected ErrRegionNotFound - got %v", err)
	}
}

func TestFindFreeRegionSkipsReserved(t *testing.T) {
	target := newFakeTarget(
		process.MemoryRegionInfo{BaseAddress: 0xFFFF0000, Size: 0x10000, State: process.RegionReserved},
		process.MemoryRegionInfo{BaseAddress: 0xFFFE0000, Size: 0x10000, State: process.RegionFree},
	)

	addr, err := FindFreeRegion(target, 0x1000)
	if err != nil {
		t.Fatal(err)
	}
	if addr != 0xFFFE0000 {
		t.Fatalf("expected 0xFFFE0000 - got %s", addr)
	}
}

func TestFindFreeRegionFullyCommitted(t *testing.T) {
	target := newFakeTarget()

	_, err := FindFreeRegion(target, 0x1000)
	if !errors.Is(err, ErrRegionNotFound) {
		t.Fatalf("expected ErrRegionNotFound - got %v", err)
	}

	const boundary = 0x100000
	var regions []process.MemoryRegionInfo
	for base := uint64(0); base < boundary; base += DefaultGranularity {
		regions = append(regions, process.MemoryRegionInfo{
			BaseAddress: process.RemoteAddress(base),
			Size:        process.ProcessMemorySize(DefaultGranularity),
			State:       process.RegionCommitted,
		})
	}
	target = newFakeTarget(regions...)

	_, err = FindFreeRegion(target, 0x1000, WithBoundary(boundary))
	if !errors.Is(err, ErrRegionNotFound) {
		t.Fatalf("expected ErrRegionNotFound - got %v", err)
	}

	maxQueries := int(boundary/DefaultGranularity + 1)
	if target.queries > maxQueries {
		t.Fatalf("expected at most %d queries - got %d", maxQueries, target.queries)
	}
}

func TestFindFreeRegionTerminatesNearZero(t *testing.T) {
	queries := 0
	q := querierFunc(func(addr process.RemoteAddress) (process.MemoryRegionInfo, error) {
		queries++
		// A region base above the queried address must not stall the scan.
		return process.MemoryRegionInfo{BaseAddress: 0xFFFFFFFF0000, Size: 0x1000, State: process.RegionCommitted}, nil
	})

	_, err := FindFreeRegion(q, 0x1000, WithBoundary(0x100000))
	if !errors.Is(err, ErrRegionNotFound) {
		t.Fatalf("expected ErrRegionNotFound - got %v", err)
	}
	if queries > 0x100000/int(DefaultGranularity)+1 {
		t.Fatalf("scan did not stay bounded: %d queries", queries)
	}

	queries = 0
	q = querierFunc(func(addr process.RemoteAddress) (process.MemoryRegionInfo, error) {
		queries++
		return process.MemoryRegionInfo{BaseAddress: addr, Size: 0x1000, State: process.RegionCommitted}, nil
	})

	_, err = FindFreeRegion(q, 0x1000, WithBoundary(0x100000), WithGranularity(0x3000))
	if !errors.Is(err, ErrRegionNotFound) {
		t.Fatalf("expected ErrRegionNotFound - got %v", err)
	}
	if queries > 0x100000/0x3000+1 {
		t.Fatalf("scan did not stay bounded: %d queries", queries)
	}
}

func TestFindFreeRegionQueryFailure(t *testing.T) {
	target := newFakeTarget()
	target.queryErr = func(addr process.RemoteAddress) error {
		return &process.PlatformError{Op: "VirtualQueryEx", Code: 5, Message: "Access is denied."}
	}

	_, err := FindFreeRegion(target, 0x1000)
	if !errors.Is(err, ErrQuery) {
		t.Fatalf("expected ErrQuery - got %v", err)
	}
	if errors.Is(err, ErrRegionNotFound) {
		t.Fatalf("query failure reported as not found: %v", err)
	}
	if code := process.CodeOf(err); code != 5 {
		t.Fatalf("expected code 5 - got %d", code)
	}
}

func TestFindFreeRegionInvalidBounds(t *testing.T) {
	_, err := FindFreeRegion(newFakeTarget(), 0x1000, WithGranularity(0))
	if !errors.Is(err, ErrRegionNotFound) {
		t.Fatalf("expected ErrRegionNotFound - got %v", err)
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		addr, align, exp uint64
	}{
		{0x0, 0x10000, 0x0},
		{0x1, 0x10000, 0x10000},
		{0x10000, 0x10000, 0x10000},
		{0x12345, 0x3000, 0x15000},
	}

	for _, test := range tests {
		if res := alignUp(test.addr, test.align); res != test.exp {
			t.Fatalf("alignUp(%#x, %#x): expected %#x - got %#x", test.addr, test.align, test.exp, res)
		}
	}
}

func TestAlignDown(t *testing.T) {
	tests := []struct {
		addr, align, exp uint64
	}{
		{0x0, 0x10000, 0x0},
		{0xFFFF, 0x10000, 0x0},
		{0xFFFFF000, 0x10000, 0xFFFF0000},
		{0x12345, 0x3000, 0x12000},
	}

	for _, test := range tests {
		if res := alignDown(test.addr, test.align); res != test.exp {
			t.Fatalf("alignDown(%#x, %#x): expected %#x - got %#x", test.addr, test.align, test.exp, res)
		}
	}
}

func TestPlaceBelow(t *testing.T) {
	tests := []struct {
		name string
		info process.MemoryRegionInfo
		size process.ProcessMemorySize
		exp  process.RemoteAddress
		ok   bool
	}{
		{
			name: "aligned base",
			info: process.MemoryRegionInfo{BaseAddress: 0xFFFE0000, Size: 0x20000},
			size: 0x100,
			exp:  0xFFFE0000,
			ok:   true,
		},
		{
			name: "straddles the boundary",
			info: process.MemoryRegionInfo{BaseAddress: 0xFFFE8000, Size: 0x100000000},
			size: 0x100,
			exp:  0xFFFF0000,
			ok:   true,
		},
		{
			name: "only unaligned room below the boundary",
			info: process.MemoryRegionInfo{BaseAddress: 0xFFFFF000, Size: 0x7FFF0000},
			size: 0x100,
		},
		{
			name: "exactly fills up to the boundary",
			info: process.MemoryRegionInfo{BaseAddress: 0xFFFF0000, Size: 0x10000},
			size: 0x10000,
			exp:  0xFFFF0000,
			ok:   true,
		},
		{
			name: "one byte past the boundary",
			info: process.MemoryRegionInfo{BaseAddress: 0xFFFF0000, Size: 0x20000},
			size: 0x10001,
		},
		{
			name: "region at zero",
			info: process.MemoryRegionInfo{BaseAddress: 0, Size: 0x40000},
			size: 0x100,
			exp:  0x10000,
			ok:   true,
		},
		{
			name: "region at zero too small once skipped",
			info: process.MemoryRegionInfo{BaseAddress: 0, Size: 0x100FF},
			size: 0x100,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			addr, ok := placeBelow(test.info, test.size, DefaultGranularity, DefaultBoundary)
			if ok != test.ok || addr != test.exp {
				t.Fatalf("expected %s, %v - got %s, %v", test.exp, test.ok, addr, ok)
			}
			if ok && uint64(addr)+uint64(test.size) > DefaultBoundary {
				t.Fatalf("block at %s of %#x bytes crosses the boundary", addr, uint64(test.size))
			}
		})
	}
}
