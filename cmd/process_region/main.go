package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"remotemem/process"
	"remotemem/remote"
)

func main() {
	pidFlag := flag.Int("pid", 0, "Process ID to inspect")
	nameFlag := flag.String("name", "", "Process name to inspect (lowest PID wins)")
	addrFlag := flag.String("addr", "", "Query the region containing this address (e.g. 0x7ffe0000)")
	sizeFlag := flag.String("size", "0x1000", "Minimum size of the free region to search for below 4GB")
	mapFlag := flag.Bool("map", false, "Print the memory map")
	modulesFlag := flag.Bool("modules", false, "Print the mapped modules")
	flag.Parse()

	if *pidFlag == 0 && *nameFlag == "" {
		fmt.Println("Error: --pid or --name is required")
		flag.Usage()
		os.Exit(1)
	}

	minimumSize, err := strconv.ParseUint(*sizeFlag, 0, 64)
	if err != nil || minimumSize == 0 {
		fmt.Printf("Error parsing size '%s'\n", *sizeFlag)
		os.Exit(1)
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

	fmt.Printf("Attached to process %d\n", proc.GetPID())

	if *mapFlag {
		mm, err := proc.GetMemoryMap()
		if err != nil {
			fmt.Printf("Error reading memory map: %v\n", err)
			os.Exit(1)
		}
		for _, item := range mm {
			fmt.Println(item)
		}
	}

	if *modulesFlag {
		modules, err := proc.Modules()
		if err != nil {
			fmt.Printf("Error listing modules: %v\n", err)
			os.Exit(1)
		}
		for _, mod := range modules {
			fmt.Printf("%-32s %s %s\n", mod.Name, mod.Base.ToString(), mod.Size.ToString())
		}
	}

	if *addrFlag != "" {
		addr, err := strconv.ParseUint(*addrFlag, 0, 64)
		if err != nil {
			fmt.Printf("Error parsing address '%s': %v\n", *addrFlag, err)
			os.Exit(1)
		}

		info, err := proc.QueryRegion(process.RemoteAddress(addr))
		if err != nil {
			fmt.Printf("Error querying region at %#x: %v\n", addr, err)
			if process.CodeOf(err) != 0 {
				fmt.Println(process.MessageOf(err))
			}
			os.Exit(1)
		}
		fmt.Println("Region:", info)
	}

	exec := remote.NewExecutor(proc)
	free, err := exec.FindFreeRegion(process.ProcessMemorySize(minimumSize))
	if err != nil {
		fmt.Printf("Error searching for a free region: %v\n", err)
		if msg := exec.LastErrorMessage(); msg != "" {
			fmt.Println(msg)
		}
		os.Exit(1)
	}

	fmt.Printf("Free region of at least %#x bytes below 4GB at %s\n", minimumSize, free.ToString())
}
