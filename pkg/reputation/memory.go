// Copyright 2025 ICN Federation
//
package reputation

import (
	"sync"

	"github.com/icn-federation/icn-core/pkg/identity"
)

type memoryBackend struct {
	mu      sync.Mutex
	entries map[identity.DID]Entry
}

func (b *memoryBackend) load(owner identity.DID) (Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[owner]
	if !ok {
		return Entry{Owner: owner}, nil
	}
	return entry, nil
}

func (b *memoryBackend) save(entry Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entries == nil {
		b.entries = make(map[identity.DID]Entry)
	}
	b.entries[entry.Owner] = entry
	return nil
}

// NewInMemoryStore builds a Store for tests and single-process nodes.
func NewInMemoryStore() Store {
	return &store{
		locks: make(map[identity.DID]*sync.Mutex),
		back:  &memoryBackend{entries: make(map[identity.DID]Entry)},
	}
}
