// Package remote runs machine code inside another process: it allocates
// executable memory in the target, writes the payload, runs it on a remote
// thread and releases the memory on every exit path.
package remote

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"remotemem/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Executor drives remote execution against one target. Separate RunBytes
// calls on the same Executor are independent transactions.
type Executor struct {
	target process.Target
	log    *logger.Logger

	mu   sync.Mutex
	last *process.PlatformError
}

// NewExecutor returns an Executor for target. The Executor never closes it.
func NewExecutor(target process.Target) *Executor {
	name := "remote"
	if p, ok := target.(interface{ GetPID() process.ProcessID }); ok {
		name = fmt.Sprintf("remote-%d", p.GetPID())
	}

	return &Executor{
		target: target,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, name)),
	}
}

// LastError returns the platform code of the most recent failure this
// Executor observed, or 0.
func (e *Executor) LastError() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return 0
	}
	return e.last.Code
}

// LastErrorMessage renders the most recent failure as "Error <code>: <text>"
func (e *Executor) LastErrorMessage() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return ""
	}
	return fmt.Sprintf("Error %d: %s", e.last.Code, e.last.Message)
}

// record keeps the platform error carried by err, or a code 0 entry for
// failures that have none.
func (e *Executor) record(op string, err error) {
	var pe *process.PlatformError
	if !errors.As(err, &pe) {
		pe = &process.PlatformError{Op: op, Message: err.Error()}
	}

	e.mu.Lock()
	e.last = pe
	e.mu.Unlock()
}

// fail records the failure before anything else runs, then builds the
// returned error and logs it.
func (e *Executor) fail(kind error, op string, addr process.RemoteAddress, err error) error {
	if err == nil {
		err = kind
	}
	e.record(op, err)

	rerr := &Error{Kind: kind, Op: op, Address: addr}
	if err != kind {
		rerr.Err = err
	}
	e.log.Debugln(rerr.Error())
	return rerr
}

// FindFreeRegion searches the target below the 4GB boundary, see FindFreeRegion
func (e *Executor) FindFreeRegion(minimumSize process.ProcessMemorySize, opts ...ScanOption) (process.RemoteAddress, error) {
	addr, err := FindFreeRegion(e.target, minimumSize, opts...)
	if errors.Is(err, ErrQuery) {
		e.record("QueryRegion", err)
	}
	return addr, err
}

// RunAt starts a thread at addr and waits up to timeout for it. The thread
// handle is released whatever the wait returns. A failed thread creation
// yields NotExecuted and ErrExecutionCreation; there is nothing to release.
func (e *Executor) RunAt(addr process.RemoteAddress, timeout time.Duration) (ExecutionResult, error) {
	result := ExecutionResult{Status: NotExecuted, Address: addr}
	err := e.runAt(addr, timeout, &result)
	return result, err
}

// runAt fills result as the thread progresses, so a caller recovering from
// a panic still sees how far execution got.
func (e *Executor) runAt(addr process.RemoteAddress, timeout time.Duration, result *ExecutionResult) error {
	thread, err := e.target.CreateThread(addr)
	if err != nil {
		return e.fail(ErrExecutionCreation, "CreateThread", addr, err)
	}
	defer func() {
		if cerr := thread.Close(); cerr != nil {
			e.log.Warn("failed to close remote thread at ", addr.ToString(), ": ", cerr)
		}
	}()

	start := time.Now()
	status, err := thread.Wait(timeout)
	result.Duration = time.Since(start)

	if err != nil {
		result.Status = WaitFailed
		return e.fail(ErrWaitFailure, "Wait", addr, err)
	}

	if status == process.WaitTimedOut {
		result.Status = TimedOut
		return e.fail(ErrWaitTimeout, "Wait", addr, fmt.Errorf("after %s", timeout))
	}

	result.Status = Completed
	code, err := thread.ExitCode()
	if err != nil {
		e.log.Debugln("exit code unavailable for thread at", addr.ToString(), err)
	} else {
		result.ExitCode = code
	}

	e.log.Debugln("remote thread", result.String())
	return nil
}

// RunBytes allocates executable memory for code, writes it, runs it with
// RunAt and frees the memory. The allocation is released exactly once on
// every path after it succeeds, including panics raised by the target
// adapter, which are returned as ErrUnexpected. After such a panic the
// result keeps the status execution had reached. A release failure is
// joined to the returned error as ErrFree.
func (e *Executor) RunBytes(code []byte, timeout time.Duration, opts ...RunOption) (result ExecutionResult, err error) {
	if len(code) == 0 {
		return ExecutionResult{Status: NotExecuted}, &Error{Kind: ErrEmptyPayload, Op: "RunBytes"}
	}

	cfg := newRunConfig(opts)

	alloc, err := e.Allocate(process.ProcessMemorySize(len(code)), opts...)
	if err != nil {
		return ExecutionResult{Status: NotExecuted}, err
	}

	result = ExecutionResult{Status: NotExecuted, Address: alloc.Address}

	defer func() {
		if r := recover(); r != nil {
			err = e.fail(ErrUnexpected, "RunBytes", alloc.Address, fmt.Errorf("panic: %v", r))
		}
		if ferr := alloc.Release(); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}()

	if werr := e.target.WriteMemory(alloc.Address, code); werr != nil {
		return result, e.fail(ErrWrite, "WriteMemory", alloc.Address, werr)
	}

	e.log.Debugln("wrote", len(code), "bytes at", alloc.Address.ToString())

	if cfg.finalProtect != 0 {
		protector, ok := e.target.(process.Protector)
		if !ok {
			return result, e.fail(ErrProtect, "Protect", alloc.Address, process.ErrNotSupported)
		}
		if _, perr := protector.Protect(alloc.Address, alloc.Size, cfg.finalProtect); perr != nil {
			return result, e.fail(ErrProtect, "Protect", alloc.Address, perr)
		}
	}

	err = e.runAt(alloc.Address, timeout, &result)
	return result, err
}
