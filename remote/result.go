package remote

import (
	"fmt"
	"time"

	"remotemem/process"
)

// ExecutionStatus is the outcome of a remote execution
type ExecutionStatus int

const (
	// NotExecuted means no remote thread ran: allocation, write or thread
	// creation failed first.
	NotExecuted ExecutionStatus = iota
	Completed
	TimedOut
	WaitFailed
)

func (s ExecutionStatus) String() string {
	switch s {
	case NotExecuted:
		return "not-executed"
	case Completed:
		return "completed"
	case TimedOut:
		return "timed-out"
	case WaitFailed:
		return "wait-failed"
	}
	return fmt.Sprintf("ExecutionStatus(%d)", int(s))
}

// ExecutionResult describes what happened to a remote thread. ExitCode is
// only meaningful when Status is Completed.
type ExecutionResult struct {
	Status   ExecutionStatus
	Address  process.RemoteAddress
	ExitCode uint32
	Duration time.Duration
}

func (r ExecutionResult) String() string {
	if r.Status == Completed {
		return fmt.Sprintf("%s at %s (exit code %d, %s)", r.Status, r.Address, r.ExitCode, r.Duration)
	}
	return fmt.Sprintf("%s at %s", r.Status, r.Address)
}
