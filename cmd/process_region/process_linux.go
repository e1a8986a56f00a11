//go:build linux

package main

import (
	"remotemem/process"
	"remotemem/process_linux"
)

func getProcess(pid int, name string) (process.Process, error) {
	if name != "" {
		return process_linux.NewWithName(name)
	}
	return process_linux.NewWithPID(process.ProcessID(pid))
}
