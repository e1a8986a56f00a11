//go:build windows

package process_windows

import (
	"strings"
	"unsafe"

	"remotemem/process"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// Modules lists the modules loaded in the target
func (p *WindowsProcess) Modules() ([]process.ModuleInfo, error) {
	handle, err := p.getHandle()
	if err != nil {
		return nil, err
	}

	modules := make([]windows.Handle, 256)
	for {
		var needed uint32
		size := uint32(len(modules)) * uint32(unsafe.Sizeof(modules[0]))
		if err := windows.EnumProcessModules(handle, &modules[0], size, &needed); err != nil {
			return nil, errors.Wrap(platformError("EnumProcessModules", err), "list modules")
		}
		count := int(needed / uint32(unsafe.Sizeof(modules[0])))
		if count <= len(modules) {
			modules = modules[:count]
			break
		}
		modules = make([]windows.Handle, count)
	}

	result := make([]process.ModuleInfo, 0, len(modules))
	for _, module := range modules {
		var name [windows.MAX_PATH]uint16
		if err := windows.GetModuleBaseName(handle, module, &name[0], uint32(len(name))); err != nil {
			p.log.Debugln("GetModuleBaseName failed for module", module, err)
			continue
		}

		var info windows.ModuleInfo
		if err := windows.GetModuleInformation(handle, module, &info, uint32(unsafe.Sizeof(info))); err != nil {
			p.log.Debugln("GetModuleInformation failed for module", module, err)
			continue
		}

		result = append(result, process.ModuleInfo{
			Name: windows.UTF16ToString(name[:]),
			Base: process.RemoteAddress(info.BaseOfDll),
			Size: process.ProcessMemorySize(info.SizeOfImage),
		})
	}

	return result, nil
}

// ModuleBase finds a module by name, case-insensitively
func (p *WindowsProcess) ModuleBase(name string) (process.ModuleInfo, error) {
	modules, err := p.Modules()
	if err != nil {
		return process.ModuleInfo{}, err
	}

	for _, module := range modules {
		if strings.EqualFold(module.Name, name) {
			return module, nil
		}
	}

	return process.ModuleInfo{}, errors.Wrapf(process.ErrModuleNotFound, "module '%s'", name)
}

// OneByName returns the lowest PID whose executable name matches name,
// case-insensitively.
func OneByName(name string) (process.ProcessID, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return 0, errors.Wrap(platformError("CreateToolhelp32Snapshot", err), "list processes")
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	found := process.ProcessID(0)
	for err = windows.Process32First(snapshot, &entry); err == nil; err = windows.Process32Next(snapshot, &entry) {
		if !strings.EqualFold(windows.UTF16ToString(entry.ExeFile[:]), name) {
			continue
		}
		pid := process.ProcessID(entry.ProcessID)
		if found == 0 || pid < found {
			found = pid
		}
	}

	if found == 0 {
		return 0, errors.Errorf("no process found with name '%s'", name)
	}
	return found, nil
}
