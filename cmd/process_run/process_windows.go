//go:build windows

package main

import (
	"remotemem/process"
	"remotemem/process_windows"
)

func getProcess(pid int, name string) (process.Process, error) {
	if name != "" {
		return process_windows.NewWithName(name)
	}
	return process_windows.NewWithPID(process.ProcessID(pid))
}
