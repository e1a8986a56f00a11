package main

import (
	"flag"
	"fmt"
	"os"

	"remotemem/payload"
	"remotemem/process"
	"remotemem/remote"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/pkg/errors"
)

func main() {
	pidFlag := flag.Int("pid", 0, "Process ID to run the payload in")
	nameFlag := flag.String("name", "", "Process name to run the payload in (lowest PID wins)")
	hexFlag := flag.String("hex", "", "Payload as hex (e.g. '31c0c3' or '\\x31\\xc0\\xc3')")
	fileFlag := flag.String("file", "", "Read the raw payload from a file")
	timeoutFlag := flag.Duration("timeout", process.InfiniteTimeout, "How long to wait for the remote thread (negative waits forever)")
	below4gFlag := flag.Bool("below4g", false, "Place the payload below the 4GB boundary")
	wxFlag := flag.Bool("wx", false, "Write the payload read-write, then flip it to execute-read before running")
	disasmFlag := flag.Bool("disasm", false, "Print the disassembled payload before running it")
	bitsFlag := flag.Int("bits", 64, "Target architecture for the return stub and disassembly (32 or 64)")
	flag.Parse()

	if *pidFlag == 0 && *nameFlag == "" {
		fmt.Println("Error: --pid or --name is required")
		flag.Usage()
		os.Exit(1)
	}

	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "process_run"))

	code, err := loadPayload(*hexFlag, *fileFlag, *bitsFlag)
	if err != nil {
		fmt.Printf("Error loading payload: %v\n", err)
		os.Exit(1)
	}

	if *disasmFlag {
		insts, err := payload.Disassemble(code, *bitsFlag)
		if err != nil {
			log.Warn("Payload does not fully disassemble: ", err)
		}
		fmt.Print(payload.Format(insts))
	}

	proc, err := getProcess(*pidFlag, *nameFlag)
	if err != nil {
		fmt.Printf("Error attaching to process: %v\n", err)
		if process.CodeOf(err) != 0 {
			fmt.Println(process.MessageOf(err))
		}
		os.Exit(1)
	}
	defer proc.Close()

	log.Infoln("Attached to process", proc.GetPID())

	var opts []remote.RunOption
	if *below4gFlag {
		opts = append(opts, remote.WithBelow4GB())
	}
	if *wxFlag {
		opts = append(opts, remote.WithWriteThenProtect(process.ProtectExecuteRead))
	}

	exec := remote.NewExecutor(proc)
	result, err := exec.RunBytes(code, *timeoutFlag, opts...)
	if err != nil {
		fmt.Printf("Error running payload: %v\n", err)
		if msg := exec.LastErrorMessage(); msg != "" {
			fmt.Println(msg)
		}
		os.Exit(1)
	}

	fmt.Println(result)
}

// loadPayload returns the payload from -hex or -file, or the return stub
// when neither is given
func loadPayload(hexPayload, file string, bits int) ([]byte, error) {
	switch {
	case hexPayload != "" && file != "":
		return nil, errors.New("--hex and --file are mutually exclusive")
	case hexPayload != "":
		return payload.Decode(hexPayload)
	case file != "":
		code, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "read payload file '%s'", file)
		}
		return code, nil
	}
	return payload.ReturnStub(bits)
}
