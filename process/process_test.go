package process

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestPlatformErrorThroughWrapping(t *testing.T) {
	pe := NewPlatformError("VirtualAllocEx", 8, errors.New("Not enough memory resources are available to process this command."))
	err := fmt.Errorf("allocate 4096 bytes: %w", pe)

	if code := CodeOf(err); code != 8 {
		t.Fatalf("expected code 8 - got %d", code)
	}

	exp := "Error 8: Not enough memory resources are available to process this command."
	if msg := MessageOf(err); msg != exp {
		t.Fatalf("expected '%s' - got '%s'", exp, msg)
	}

	if pe.Error() != "VirtualAllocEx failed: error 8: "+pe.Message {
		t.Fatalf("unexpected error text '%s'", pe.Error())
	}
}

func TestMessageOfWithoutPlatformError(t *testing.T) {
	if msg := MessageOf(nil); msg != "" {
		t.Fatalf("expected empty message - got '%s'", msg)
	}

	err := errors.New("plain failure")
	if CodeOf(err) != 0 {
		t.Fatalf("expected code 0 - got %d", CodeOf(err))
	}
	if msg := MessageOf(err); msg != "plain failure" {
		t.Fatalf("expected 'plain failure' - got '%s'", msg)
	}
}

func TestNewPlatformErrorNilCause(t *testing.T) {
	pe := NewPlatformError("CreateRemoteThread", 0, nil)
	if pe.Code != 0 || pe.Message != "" {
		t.Fatalf("expected empty platform error - got %+v", pe)
	}

	pe = NewPlatformError("process_vm_readv", uint32(syscall.EFAULT), syscall.EFAULT)
	if MessageOf(pe) != fmt.Sprintf("Error %d: %s", uint32(syscall.EFAULT), syscall.EFAULT.Error()) {
		t.Fatalf("unexpected message '%s'", MessageOf(pe))
	}
}
