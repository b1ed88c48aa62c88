// Copyright 2025 ICN Federation
//
package mana

import (
	"sync"
	"time"

	"github.com/icn-federation/icn-core/pkg/identity"
)

// memoryStore is an accountStore backed by a plain map, guarded by its own
// mutex (distinct from perOwnerLedger's per-owner locks, which serialize
// logical operations; this one only protects the map itself).
type memoryStore struct {
	mu       sync.Mutex
	accounts map[identity.DID]Account
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: make(map[identity.DID]Account)}
}

func (s *memoryStore) load(owner identity.DID, defaultCapacity uint64) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[owner]
	if !ok {
		acct = Account{Owner: owner, Balance: defaultCapacity, Capacity: defaultCapacity}
	}
	return acct, nil
}

func (s *memoryStore) save(acct Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acct.Owner] = acct
	return nil
}

// NewInMemoryLedger builds a Ledger for tests and single-process
// deployments. reputation may be nil, in which case refills always use a
// factor of 1.0.
func NewInMemoryLedger(defaultCapacity uint64, baseRefillRate float64, reputation ReputationRatio, curve RefillCurve) Ledger {
	return &perOwnerLedger{
		locks:      make(map[identity.DID]*sync.Mutex),
		reputation: reputation,
		curve:      curve,
		baseRate:   baseRefillRate,
		defaultCap: defaultCapacity,
		store:      newMemoryStore(),
	}
}

// SeedBalance directly sets an account's starting balance/capacity,
// bypassing debit/credit bookkeeping. Used by tests to construct the
// literal fixtures in SPEC_FULL §8 (e.g. "Alice balance 1000, capacity 1000").
func SeedBalance(l Ledger, owner identity.DID, balance, capacity uint64) {
	pl, ok := l.(*perOwnerLedger)
	if !ok {
		return
	}
	_ = pl.store.save(Account{Owner: owner, Balance: balance, Capacity: capacity, LastRefillAt: time.Now()})
}
