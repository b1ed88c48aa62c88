// Copyright 2025 ICN Federation
//
// Package mana implements the regenerating per-DID resource credit ledger
// (SPEC_FULL §4.2): balance queries, atomic debit/credit, and lazy
// refill-on-access. Writes are serialized per owner; concurrent owners may
// progress in parallel.
package mana

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/icn-federation/icn-core/pkg/identity"
)

// Account mirrors the data model's Mana Account entity.
type Account struct {
	Owner        identity.DID
	Balance      uint64
	Capacity     uint64
	LastRefillAt time.Time
}

// RefillCurve maps a reputation score to a refill-rate multiplier. The
// exact curve (linear vs. step) is a pluggable pure function per
// SPEC_FULL §9's open question; LinearRefillCurve is the default.
type RefillCurve func(reputation int64) float64

// LinearRefillCurve scales the base rate linearly with reputation,
// clamped to never go negative: rate = base * max(0, 1 + reputation/100).
func LinearRefillCurve(reputation int64) float64 {
	factor := 1.0 + float64(reputation)/100.0
	if factor < 0 {
		return 0
	}
	return factor
}

// ReputationRatio is the narrow view of the reputation store the ledger
// needs to compute a per-DID refill rate, without importing the
// reputation package's full contract (avoids a cyclic dependency: receipt
// settlement reads a reputation snapshot before mutating mana, and the
// next refill naturally observes the updated reputation — see SPEC_FULL §9).
type ReputationRatio interface {
	ReputationScore(ctx context.Context, owner identity.DID) (int64, error)
}

// Ledger is the Mana Ledger contract (SPEC_FULL §4.2).
type Ledger interface {
	Balance(ctx context.Context, owner identity.DID) (uint64, error)
	Debit(ctx context.Context, owner identity.DID, amount uint64, reason string) error
	Credit(ctx context.Context, owner identity.DID, amount uint64, reason string) error
	RefillIfDue(ctx context.Context, owner identity.DID, now time.Time) error
}

// perOwnerLedger provides the per-owner logical locking and refill
// mechanics shared by every backend; concrete backends supply load/store.
type perOwnerLedger struct {
	mu         sync.Mutex
	locks      map[identity.DID]*sync.Mutex
	reputation ReputationRatio
	curve      RefillCurve
	baseRate   float64 // mana units per second at reputation factor 1.0
	defaultCap uint64
	store      accountStore
}

// accountStore is the minimal persistence seam perOwnerLedger depends on;
// InMemoryLedger and KVLedger each provide one.
type accountStore interface {
	load(owner identity.DID, defaultCapacity uint64) (Account, error)
	save(acct Account) error
}

func (l *perOwnerLedger) lockFor(owner identity.DID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[owner]
	if !ok {
		m = &sync.Mutex{}
		l.locks[owner] = m
	}
	return m
}

func (l *perOwnerLedger) Balance(_ context.Context, owner identity.DID) (uint64, error) {
	lock := l.lockFor(owner)
	lock.Lock()
	defer lock.Unlock()

	acct, err := l.store.load(owner, l.defaultCap)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return acct.Balance, nil
}

func (l *perOwnerLedger) Debit(ctx context.Context, owner identity.DID, amount uint64, reason string) error {
	lock := l.lockFor(owner)
	lock.Lock()
	defer lock.Unlock()

	acct, err := l.store.load(owner, l.defaultCap)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	if err := l.refillLocked(ctx, &acct, time.Now()); err != nil {
		return err
	}
	if acct.Balance < amount {
		return &InsufficientManaError{Required: amount, Available: acct.Balance}
	}
	acct.Balance -= amount
	if err := l.store.save(acct); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

func (l *perOwnerLedger) Credit(_ context.Context, owner identity.DID, amount uint64, reason string) error {
	lock := l.lockFor(owner)
	lock.Lock()
	defer lock.Unlock()

	acct, err := l.store.load(owner, l.defaultCap)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	acct.Balance += amount
	if acct.Balance > acct.Capacity {
		acct.Balance = acct.Capacity // saturating at capacity
	}
	if err := l.store.save(acct); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

func (l *perOwnerLedger) RefillIfDue(ctx context.Context, owner identity.DID, now time.Time) error {
	lock := l.lockFor(owner)
	lock.Lock()
	defer lock.Unlock()

	acct, err := l.store.load(owner, l.defaultCap)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	if err := l.refillLocked(ctx, &acct, now); err != nil {
		return err
	}
	return l.store.save(acct)
}

// refillLocked regenerates balance based on elapsed time since last
// refill, the configured base rate, and the owner's reputation-derived
// curve factor. Idempotent within the same `now`: calling twice with an
// unchanged now is a no-op on the second call because LastRefillAt already
// equals now.
func (l *perOwnerLedger) refillLocked(ctx context.Context, acct *Account, now time.Time) error {
	if acct.LastRefillAt.IsZero() {
		acct.LastRefillAt = now
		return nil
	}
	elapsed := now.Sub(acct.LastRefillAt)
	if elapsed <= 0 {
		return nil
	}

	factor := 1.0
	if l.reputation != nil {
		rep, err := l.reputation.ReputationScore(ctx, acct.Owner)
		if err != nil {
			return fmt.Errorf("%w: reputation lookup: %v", ErrLedgerUnavailable, err)
		}
		curve := l.curve
		if curve == nil {
			curve = LinearRefillCurve
		}
		factor = curve(rep)
	}

	regen := uint64(elapsed.Seconds() * l.baseRate * factor)
	acct.Balance += regen
	if acct.Balance > acct.Capacity {
		acct.Balance = acct.Capacity
	}
	acct.LastRefillAt = now
	return nil
}
