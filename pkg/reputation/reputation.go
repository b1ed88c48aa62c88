// Copyright 2025 ICN Federation
//
// Package reputation implements the per-DID reputation store (SPEC_FULL
// §4.3): monotone completed/failed counters and a score that can decrease
// but never wraps, updated exclusively by the receipt pipeline.
package reputation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/icn-federation/icn-core/pkg/identity"
)

// Entry mirrors the data model's Reputation Entry.
type Entry struct {
	Owner      identity.DID
	Score      int64
	Completed  uint64
	Failed     uint64
	LastUpdate time.Time
}

// Store is the Reputation Store contract (SPEC_FULL §4.3). It also
// satisfies pkg/mana.ReputationRatio via ReputationScore, so a Store can be
// passed directly to mana.NewInMemoryLedger/NewKVLedger without either
// package importing the other.
type Store interface {
	Get(ctx context.Context, owner identity.DID) (Entry, error)
	RecordSuccess(ctx context.Context, owner identity.DID, delta int64) error
	RecordFailure(ctx context.Context, owner identity.DID, delta int64) error
	ReputationScore(ctx context.Context, owner identity.DID) (int64, error)
}

// entryStore is the persistence seam concrete backends implement.
type entryStore interface {
	load(owner identity.DID) (Entry, error)
	save(entry Entry) error
}

type store struct {
	mu    sync.Mutex
	locks map[identity.DID]*sync.Mutex
	back  entryStore
}

func (s *store) lockFor(owner identity.DID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[owner]
	if !ok {
		m = &sync.Mutex{}
		s.locks[owner] = m
	}
	return m
}

func (s *store) Get(_ context.Context, owner identity.DID) (Entry, error) {
	lock := s.lockFor(owner)
	lock.Lock()
	defer lock.Unlock()
	return s.back.load(owner)
}

func (s *store) RecordSuccess(_ context.Context, owner identity.DID, delta int64) error {
	lock := s.lockFor(owner)
	lock.Lock()
	defer lock.Unlock()

	entry, err := s.back.load(owner)
	if err != nil {
		return fmt.Errorf("reputation: load %s: %w", owner, err)
	}
	entry.Owner = owner
	entry.Score += delta
	entry.Completed++
	entry.LastUpdate = time.Now()
	return s.back.save(entry)
}

func (s *store) RecordFailure(_ context.Context, owner identity.DID, delta int64) error {
	lock := s.lockFor(owner)
	lock.Lock()
	defer lock.Unlock()

	entry, err := s.back.load(owner)
	if err != nil {
		return fmt.Errorf("reputation: load %s: %w", owner, err)
	}
	entry.Owner = owner
	entry.Score -= delta // score may go negative; it never wraps since it's a signed i64
	entry.Failed++
	entry.LastUpdate = time.Now()
	return s.back.save(entry)
}

func (s *store) ReputationScore(ctx context.Context, owner identity.DID) (int64, error) {
	entry, err := s.Get(ctx, owner)
	if err != nil {
		return 0, err
	}
	return entry.Score, nil
}
