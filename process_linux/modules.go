//go:build linux

package process_linux

import (
	"path/filepath"
	"sort"

	"remotemem/process"

	"github.com/pkg/errors"
)

// Modules groups the file-backed mappings by path. A module spans from its
// lowest mapping to the end of its highest one.
func (p *LinuxProcess) Modules() ([]process.ModuleInfo, error) {
	mm, err := p.GetMemoryMap()
	if err != nil {
		return nil, err
	}

	byPath := make(map[string]*process.ModuleInfo)
	var order []string
	for _, item := range mm {
		// anonymous and pseudo mappings ("[heap]", "[stack]") are not modules
		if item.Path == "" || item.Path[0] != '/' {
			continue
		}

		start := process.RemoteAddress(item.Address)
		end := process.RemoteAddress(item.End())

		mod, ok := byPath[item.Path]
		if !ok {
			byPath[item.Path] = &process.ModuleInfo{
				Name: filepath.Base(item.Path),
				Base: start,
				Size: process.ProcessMemorySize(end - start),
			}
			order = append(order, item.Path)
			continue
		}

		if start < mod.Base {
			mod.Size += process.ProcessMemorySize(mod.Base - start)
			mod.Base = start
		}
		if end > mod.Base+process.RemoteAddress(mod.Size) {
			mod.Size = process.ProcessMemorySize(end - mod.Base)
		}
	}

	modules := make([]process.ModuleInfo, 0, len(order))
	for _, path := range order {
		modules = append(modules, *byPath[path])
	}
	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Base < modules[j].Base
	})

	return modules, nil
}

// ModuleBase returns the module whose file name equals name
func (p *LinuxProcess) ModuleBase(name string) (process.ModuleInfo, error) {
	modules, err := p.Modules()
	if err != nil {
		return process.ModuleInfo{}, err
	}

	for _, mod := range modules {
		if mod.Name == name {
			return mod, nil
		}
	}

	return process.ModuleInfo{}, errors.Wrapf(process.ErrModuleNotFound, "module '%s'", name)
}
