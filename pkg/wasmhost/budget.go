// Copyright 2025 ICN Federation
//
package wasmhost

import (
	"fmt"
	"time"
)

// Limits are the per-invocation resource caps, sourced from
// wasm_fuel_per_ms / wasm_mem_cap_mb configuration and the job manifest's
// deadline. Grounded on Mindburn-Labs-helm's budget.ComputeBudget, renamed
// to this domain's vocabulary (cpu_ms/mem_mb/fuel instead of
// gas_limit_steps/time_limit_ms/memory_limit_bytes).
type Limits struct {
	CPUMs uint64
	MemMB uint64
	Fuel  uint64
}

// BudgetError is a typed, deterministic budget-violation error.
type BudgetError struct {
	Code     string
	Limit    uint64
	Consumed uint64
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("%s: limit=%d consumed=%d", e.Code, e.Limit, e.Consumed)
}

const (
	ErrOutOfFuel   = "ERR_OUT_OF_FUEL"
	ErrTimeout     = "ERR_TIMEOUT"
	ErrOutOfMemory = "ERR_OUT_OF_MEMORY"
)

// CheckFuel returns a BudgetError if consumed fuel exceeds the limit.
func CheckFuel(limits Limits, consumed uint64) error {
	if consumed > limits.Fuel {
		return &BudgetError{Code: ErrOutOfFuel, Limit: limits.Fuel, Consumed: consumed}
	}
	return nil
}

// CheckTime returns a BudgetError if elapsed wall time exceeds cpu_ms.
func CheckTime(limits Limits, elapsed time.Duration) error {
	if uint64(elapsed.Milliseconds()) > limits.CPUMs {
		return &BudgetError{Code: ErrTimeout, Limit: limits.CPUMs, Consumed: uint64(elapsed.Milliseconds())}
	}
	return nil
}

// CheckMemory returns a BudgetError if peak memory exceeds mem_mb.
func CheckMemory(limits Limits, usedMB uint64) error {
	if usedMB > limits.MemMB {
		return &BudgetError{Code: ErrOutOfMemory, Limit: limits.MemMB, Consumed: usedMB}
	}
	return nil
}
