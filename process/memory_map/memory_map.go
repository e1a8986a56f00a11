package memory_map

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// MemoryMapItem represents a memory region in a process's address space
type MemoryMapItem struct {
	Address uint64 // The starting address of the memory region
	Size    uint   // The size of the memory region in bytes
	Perms   string // Permissions (e.g., "r-xp" for read, execute, private)
	Path    string // Backing file or pseudo path ("[heap]"), empty for anonymous mappings
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s, Path: %s", mmItem.Address, mmItem.Size, mmItem.Perms, mmItem.Path)
}

func (mmItem MemoryMapItem) End() uint64 {
	return mmItem.Address + uint64(mmItem.Size)
}

func (mmItem MemoryMapItem) IsReadable() bool {
	return len(mmItem.Perms) > 0 && mmItem.Perms[0] == 'r'
}

func (mmItem MemoryMapItem) IsWritable() bool {
	return len(mmItem.Perms) > 1 && mmItem.Perms[1] == 'w'
}

// Sort orders the map by address, which FindItem and Span require
func Sort(memoryMap []MemoryMapItem) {
	sort.Slice(memoryMap, func(i, j int) bool {
		return memoryMap[i].Address < memoryMap[j].Address
	})
}

// FindItem returns the item containing addr. memoryMap must be sorted.
func FindItem(addr uint64, memoryMap []MemoryMapItem) *MemoryMapItem {
	i := sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].End() > addr
	})
	if i < len(memoryMap) && memoryMap[i].Address <= addr {
		return &memoryMap[i]
	}

	return nil
}

// Span describes the range around an address: either a mapped item or the
// unmapped gap between two items.
type Span struct {
	Start  uint64
	End    uint64
	Mapped bool
	Item   *MemoryMapItem
}

// SpanAt returns the mapped item or the gap containing addr. limit is the
// first address past the usable address space; addresses at or above it
// have no span. memoryMap must be sorted.
func SpanAt(addr uint64, memoryMap []MemoryMapItem, limit uint64) (Span, bool) {
	if addr >= limit {
		return Span{}, false
	}

	i := sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].End() > addr
	})

	if i < len(memoryMap) && memoryMap[i].Address <= addr {
		item := &memoryMap[i]
		return Span{Start: item.Address, End: item.End(), Mapped: true, Item: item}, true
	}

	gap := Span{Start: 0, End: limit}
	if i > 0 {
		gap.Start = memoryMap[i-1].End()
	}
	if i < len(memoryMap) && memoryMap[i].Address < limit {
		gap.End = memoryMap[i].Address
	}
	return gap, true
}

// ParseMaps parses the /proc/[pid]/maps format. Malformed lines are skipped.
func ParseMaps(r io.Reader) ([]MemoryMapItem, error) {
	var memoryMap []MemoryMapItem
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		// Parse address range (e.g., "00400000-0040b000")
		addrRange := strings.Split(fields[0], "-")
		if len(addrRange) != 2 {
			continue
		}

		startAddr, err := strconv.ParseUint(addrRange[0], 16, 64)
		if err != nil {
			continue
		}

		endAddr, err := strconv.ParseUint(addrRange[1], 16, 64)
		if err != nil || endAddr <= startAddr {
			continue
		}

		item := MemoryMapItem{
			Address: startAddr,
			Size:    uint(endAddr - startAddr),
			Perms:   fields[1],
		}
		// address perms offset dev inode [path]
		if len(fields) >= 6 {
			item.Path = strings.Join(fields[5:], " ")
		}

		memoryMap = append(memoryMap, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return memoryMap, nil
}
