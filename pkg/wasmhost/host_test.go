// Copyright 2025 ICN Federation
//
package wasmhost

import (
	"context"
	"testing"

	"github.com/icn-federation/icn-core/pkg/mana"
)

func TestExecuteEchoBypassReturnsPayloadVerbatim(t *testing.T) {
	ctx := context.Background()
	h, err := NewHost(ctx)
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	defer h.Close(ctx)

	outcome, err := h.Execute(ctx, "Echo", nil, [][]byte{[]byte("hello mesh")}, Limits{CPUMs: 10, MemMB: 1, Fuel: 100}, HostDeps{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !outcome.Success {
		t.Fatal("expected echo bypass to succeed")
	}
	if string(outcome.ResultBytes) != "hello mesh" {
		t.Fatalf("expected verbatim echo, got %q", outcome.ResultBytes)
	}
	if outcome.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", outcome.ExitCode)
	}
}

func TestExecuteGenericPlaceholderAlwaysFails(t *testing.T) {
	ctx := context.Background()
	h, err := NewHost(ctx)
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	defer h.Close(ctx)

	outcome, err := h.Execute(ctx, "Generic", nil, nil, Limits{CPUMs: 10, MemMB: 1, Fuel: 100}, HostDeps{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if outcome.Success {
		t.Fatal("Generic spec_kind must never report success, per its undefined-semantics placeholder contract")
	}
	if len(outcome.ResultBytes) != 0 {
		t.Fatalf("expected no result bytes, got %v", outcome.ResultBytes)
	}
}

func TestExecuteWasmModuleFailsToCompileReturnsError(t *testing.T) {
	ctx := context.Background()
	h, err := NewHost(ctx)
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	defer h.Close(ctx)

	deps := HostDeps{Mana: mana.NewInMemoryLedger(1000, 10, nil, nil)}
	_, err = h.Execute(ctx, "CclWasm", []byte("not a real wasm module"), nil, Limits{CPUMs: 50, MemMB: 4, Fuel: 5000}, deps)
	if err == nil {
		t.Fatal("expected a compile error for invalid wasm bytes")
	}
}

func TestFuelCostFallsBackToDefaultForUnknownCall(t *testing.T) {
	if got := FuelCost(HostCall(999)); got != DefaultFuelCost {
		t.Fatalf("expected default fuel cost %d, got %d", DefaultFuelCost, got)
	}
}

func TestCheckFuelRejectsOverBudgetConsumption(t *testing.T) {
	limits := Limits{Fuel: 100}
	if err := CheckFuel(limits, 150); err == nil {
		t.Fatal("expected budget error for fuel over limit")
	}
	if err := CheckFuel(limits, 50); err != nil {
		t.Fatalf("unexpected error under budget: %v", err)
	}
}
