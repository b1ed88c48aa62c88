// Copyright 2025 ICN Federation
//
package mana

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/icn-federation/icn-core/pkg/identity"
)

func TestDebitCreditBasic(t *testing.T) {
	ctx := context.Background()
	ledger := NewInMemoryLedger(1000, 0, nil, nil)
	alice := identity.DID("did:key:alice")
	SeedBalance(ledger, alice, 1000, 1000)

	if err := ledger.Debit(ctx, alice, 50, "submit"); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	bal, err := ledger.Balance(ctx, alice)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal != 950 {
		t.Fatalf("expected balance 950, got %d", bal)
	}

	if err := ledger.Credit(ctx, alice, 25, "refund"); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	bal, _ = ledger.Balance(ctx, alice)
	if bal != 975 {
		t.Fatalf("expected balance 975 after credit, got %d", bal)
	}
}

func TestDebitInsufficientMana(t *testing.T) {
	ctx := context.Background()
	ledger := NewInMemoryLedger(1000, 0, nil, nil)
	alice := identity.DID("did:key:alice")
	SeedBalance(ledger, alice, 10, 1000)

	err := ledger.Debit(ctx, alice, 50, "submit")
	if err == nil {
		t.Fatalf("expected InsufficientManaError")
	}
	var insufficient *InsufficientManaError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected *InsufficientManaError, got %T: %v", err, err)
	}
	if insufficient.Required != 50 || insufficient.Available != 10 {
		t.Fatalf("unexpected error fields: %+v", insufficient)
	}
}

func TestCreditSaturatesAtCapacity(t *testing.T) {
	ctx := context.Background()
	ledger := NewInMemoryLedger(100, 0, nil, nil)
	bob := identity.DID("did:key:bob")
	SeedBalance(ledger, bob, 90, 100)

	if err := ledger.Credit(ctx, bob, 50, "payment"); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	bal, _ := ledger.Balance(ctx, bob)
	if bal != 100 {
		t.Fatalf("expected balance capped at capacity 100, got %d", bal)
	}
}

type fixedReputation struct{ score int64 }

func (f fixedReputation) ReputationScore(_ context.Context, _ identity.DID) (int64, error) {
	return f.score, nil
}

func TestRefillIfDueRegenerates(t *testing.T) {
	ctx := context.Background()
	ledger := NewInMemoryLedger(1000, 10, fixedReputation{score: 0}, LinearRefillCurve)
	alice := identity.DID("did:key:alice")
	SeedBalance(ledger, alice, 500, 1000)

	now := time.Now()
	if err := ledger.RefillIfDue(ctx, alice, now); err != nil {
		t.Fatalf("RefillIfDue: %v", err)
	}
	later := now.Add(10 * time.Second)
	if err := ledger.RefillIfDue(ctx, alice, later); err != nil {
		t.Fatalf("RefillIfDue: %v", err)
	}
	bal, _ := ledger.Balance(ctx, alice)
	if bal != 600 {
		t.Fatalf("expected 10s * 10/s = 100 mana regenerated (600 total), got %d", bal)
	}
}

func TestRefillIdempotentWithinSameNow(t *testing.T) {
	ctx := context.Background()
	ledger := NewInMemoryLedger(1000, 10, nil, nil)
	alice := identity.DID("did:key:alice")
	SeedBalance(ledger, alice, 500, 1000)

	now := time.Now()
	_ = ledger.RefillIfDue(ctx, alice, now)
	firstBal, _ := ledger.Balance(ctx, alice)
	_ = ledger.RefillIfDue(ctx, alice, now)
	secondBal, _ := ledger.Balance(ctx, alice)

	if firstBal != secondBal {
		t.Fatalf("expected idempotent refill within the same now, got %d then %d", firstBal, secondBal)
	}
}
