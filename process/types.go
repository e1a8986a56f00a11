package process

// ProcessID represents a unique identifier for a process
type ProcessID int

// ModuleInfo describes a module mapped into the target
type ModuleInfo struct {
	Name string
	Base RemoteAddress
	Size ProcessMemorySize
}
