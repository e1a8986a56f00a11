package remote

import (
	"errors"
	"strings"

	"remotemem/process"
)

// Error kinds. Match them with errors.Is; the platform code of the failing
// call, when there is one, is reachable with errors.As on *process.PlatformError.
var (
	ErrAllocation        = errors.New("allocation failed")
	ErrWrite             = errors.New("payload write failed")
	ErrProtect           = errors.New("protection change failed")
	ErrExecutionCreation = errors.New("remote thread creation failed")
	ErrWaitFailure       = errors.New("remote thread wait failed")
	ErrWaitTimeout       = errors.New("remote thread wait timed out")
	ErrRegionNotFound    = errors.New("no free region found")
	ErrQuery             = errors.New("region query failed")
	ErrFree              = errors.New("release of remote allocation failed")
	ErrUnexpected        = errors.New("unexpected failure")
	ErrEmptyPayload      = errors.New("empty payload")
)

// Error is returned by every fallible operation of this package
type Error struct {
	Kind    error
	Op      string
	Address process.RemoteAddress
	Err     error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.Error())
	if e.Address != 0 {
		sb.WriteString(" at ")
		sb.WriteString(e.Address.ToString())
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
