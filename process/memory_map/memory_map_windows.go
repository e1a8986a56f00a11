//go:build windows

package memory_map

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	memCommit   = 0x1000
	pageGuard   = 0x100
	pageNoCache = 0x200
)

// ReadMemoryMapHandle walks the committed regions of an already opened process
func ReadMemoryMapHandle(handle windows.Handle) ([]MemoryMapItem, error) {
	var memoryMap []MemoryMapItem
	var addr uintptr

	for {
		var mbi windows.MemoryBasicInformation
		if err := windows.VirtualQueryEx(handle, addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
			// Past the last region
			break
		}

		if mbi.State == memCommit {
			memoryMap = append(memoryMap, MemoryMapItem{
				Address: uint64(mbi.BaseAddress),
				Size:    uint(mbi.RegionSize),
				Perms:   PermsFromProtect(mbi.Protect),
			})
		}

		next := mbi.BaseAddress + mbi.RegionSize
		if next <= addr {
			break
		}
		addr = next
	}

	return memoryMap, nil
}

// PermsFromProtect renders a PAGE_* value in the /proc/[pid]/maps style
func PermsFromProtect(protect uint32) string {
	perms := []byte("---p")
	switch protect &^ (pageGuard | pageNoCache) {
	case windows.PAGE_READONLY:
		perms[0] = 'r'
	case windows.PAGE_READWRITE, windows.PAGE_WRITECOPY:
		perms[0], perms[1] = 'r', 'w'
	case windows.PAGE_EXECUTE:
		perms[2] = 'x'
	case windows.PAGE_EXECUTE_READ:
		perms[0], perms[2] = 'r', 'x'
	case windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		perms[0], perms[1], perms[2] = 'r', 'w', 'x'
	}
	return string(perms)
}
