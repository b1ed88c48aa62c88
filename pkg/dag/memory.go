// Copyright 2025 ICN Federation
//
package dag

import (
	"context"
	"sync"

	ipfscid "github.com/ipfs/go-cid"
)

// MemoryStore is an in-memory Store for tests and single-process
// deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	blocks  map[ipfscid.Cid][]byte
	pinned  map[ipfscid.Cid]bool
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blocks: make(map[ipfscid.Cid][]byte),
		pinned: make(map[ipfscid.Cid]bool),
	}
}

func (s *MemoryStore) Put(_ context.Context, data []byte) (ipfscid.Cid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := computeAndCheck(data, nil, false)
	if err != nil {
		return ipfscid.Undef, err
	}
	if prior, ok := s.blocks[id]; ok {
		if _, err := computeAndCheck(data, prior, true); err != nil {
			return ipfscid.Undef, err
		}
		return id, nil
	}
	s.blocks[id] = append([]byte(nil), data...)
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id ipfscid.Cid) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blocks[id]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (s *MemoryStore) Pin(_ context.Context, id ipfscid.Cid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned[id] = true
	return nil
}

func (s *MemoryStore) Unpin(_ context.Context, id ipfscid.Cid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pinned, id)
	return nil
}

// IsPinned reports whether id is currently pinned. Exposed for tests
// exercising SPEC_FULL §9's "pin receipts by default" decision.
func (s *MemoryStore) IsPinned(id ipfscid.Cid) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pinned[id]
}
