// Copyright 2025 ICN Federation
//
package wasmhost

// ExecutionOutcome is the result of one execute() call (SPEC_FULL §4.11).
type ExecutionOutcome struct {
	ResultBytes []byte
	ExitCode    int32
	CPUMs       uint64
	MemPeakMB   uint64
	Success     bool
}
