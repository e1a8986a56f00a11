// Package payload prepares machine code for remote execution: decoding hex
// strings, building the stub that returns immediately and disassembling a
// payload for a log preview.
package payload

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// ReturnStub returns a 5 byte thread routine that sets the exit code to 0
// and returns. bits is 32 or 64.
func ReturnStub(bits int) ([]byte, error) {
	switch bits {
	case 64:
		return []byte{0x31, 0xC0, 0xC3, 0x90, 0x90}, nil // xor eax, eax; ret; nop; nop
	case 32:
		return []byte{0x31, 0xC0, 0xC2, 0x04, 0x00}, nil // xor eax, eax; ret 4
	}
	return nil, fmt.Errorf("unsupported bits: %d", bits)
}

// Decode parses hex encoded machine code. It accepts "\x31\xc0" escapes,
// "0x31 0xc0", comma or space separated bytes and plain "31c0".
func Decode(s string) ([]byte, error) {
	replacer := strings.NewReplacer(`\x`, "", "0x", "", "0X", "", ",", "", " ", "", "\t", "", "\n", "", "\r", "", `"`, "")
	cleaned := replacer.Replace(s)
	if cleaned == "" {
		return nil, fmt.Errorf("empty payload")
	}

	code, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload - %w", err)
	}
	return code, nil
}

// Inst is one decoded instruction
type Inst struct {
	Offset int
	Bin    []byte
	Dis    string
}

func (i Inst) String() string {
	return fmt.Sprintf("%04x: %-20x %s", i.Offset, i.Bin, i.Dis)
}

// Disassemble decodes code in Intel syntax. bits is 16, 32 or 64.
func Disassemble(code []byte, bits int) ([]Inst, error) {
	var insts []Inst

	for index := 0; index < len(code); {
		inst, err := x86asm.Decode(code[index:], bits)
		if err != nil {
			return insts, fmt.Errorf("failed to decode instruction at offset %d - %w - remaining data: 0x%x",
				index, err, code[index:])
		}

		// Decode reports a truncated instruction as a lone prefix byte
		if inst.Op == 0 || inst.Len == 0 {
			return insts, fmt.Errorf("failed to decode instruction at offset %d - %w - remaining data: 0x%x",
				index, x86asm.ErrTruncated, code[index:])
		}

		bin := make([]byte, inst.Len)
		copy(bin, code[index:index+inst.Len])

		insts = append(insts, Inst{
			Offset: index,
			Bin:    bin,
			Dis:    x86asm.IntelSyntax(inst, uint64(index), nil),
		})

		index += inst.Len
	}

	return insts, nil
}

// Format renders a disassembly listing, one instruction per line
func Format(insts []Inst) string {
	var sb strings.Builder
	for _, inst := range insts {
		sb.WriteString(inst.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
