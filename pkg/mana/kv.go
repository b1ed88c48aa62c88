// Copyright 2025 ICN Federation
//
package mana

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/icn-federation/icn-core/pkg/identity"
	"github.com/icn-federation/icn-core/pkg/kvstore"
)

// keyPrefix namespaces mana account keys within a shared KV store, the
// same way the teacher's ledger package prefixes its own key families
// (keySysMeta, keyAnchorMeta, ...).
const keyPrefix = "mana/account/"

func accountKey(owner identity.DID) []byte {
	return []byte(keyPrefix + string(owner))
}

type kvRecord struct {
	Balance      uint64    `json:"balance"`
	Capacity     uint64    `json:"capacity"`
	LastRefillAt time.Time `json:"last_refill_at"`
}

// kvAccountStore is an accountStore backed by a kvstore.KV. A process-local
// mutex still guards the read-modify-write cycle; perOwnerLedger's
// per-owner lock already serializes logical operations, but a fresh
// kvAccountStore for each process still needs its own guard against
// concurrent raw KV access outside the ledger (e.g. an admin tool).
type kvAccountStore struct {
	mu sync.Mutex
	kv kvstore.KV
}

func newKVAccountStore(kv kvstore.KV) *kvAccountStore {
	return &kvAccountStore{kv: kv}
}

func (s *kvAccountStore) load(owner identity.DID, defaultCapacity uint64) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.kv.Get(accountKey(owner))
	if err != nil {
		return Account{}, fmt.Errorf("mana: kv get: %w", err)
	}
	if raw == nil {
		return Account{Owner: owner, Balance: defaultCapacity, Capacity: defaultCapacity}, nil
	}
	var rec kvRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Account{}, fmt.Errorf("mana: decode account for %s: %w", owner, err)
	}
	return Account{
		Owner:        owner,
		Balance:      rec.Balance,
		Capacity:     rec.Capacity,
		LastRefillAt: rec.LastRefillAt,
	}, nil
}

func (s *kvAccountStore) save(acct Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(kvRecord{
		Balance:      acct.Balance,
		Capacity:     acct.Capacity,
		LastRefillAt: acct.LastRefillAt,
	})
	if err != nil {
		return fmt.Errorf("mana: encode account for %s: %w", acct.Owner, err)
	}
	if err := s.kv.Set(accountKey(acct.Owner), raw); err != nil {
		return fmt.Errorf("mana: kv set: %w", err)
	}
	return nil
}

// NewKVLedger builds a Ledger persisted through kv, suitable for
// multi-process or restart-surviving deployments (SPEC_FULL §5's recovery
// requirement: pending jobs are re-hydrated, which depends on mana state
// surviving a restart).
func NewKVLedger(kv kvstore.KV, defaultCapacity uint64, baseRefillRate float64, reputation ReputationRatio, curve RefillCurve) Ledger {
	return &perOwnerLedger{
		locks:      make(map[identity.DID]*sync.Mutex),
		reputation: reputation,
		curve:      curve,
		baseRate:   baseRefillRate,
		defaultCap: defaultCapacity,
		store:      newKVAccountStore(kv),
	}
}
