// Copyright 2025 ICN Federation
//
package reputation

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/icn-federation/icn-core/pkg/identity"
	"github.com/icn-federation/icn-core/pkg/kvstore"
)

const keyPrefix = "reputation/entry/"

func entryKey(owner identity.DID) []byte {
	return []byte(keyPrefix + string(owner))
}

type kvRecord struct {
	Score      int64     `json:"score"`
	Completed  uint64    `json:"completed"`
	Failed     uint64    `json:"failed"`
	LastUpdate time.Time `json:"last_update"`
}

type kvBackend struct {
	mu sync.Mutex
	kv kvstore.KV
}

func (b *kvBackend) load(owner identity.DID) (Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	raw, err := b.kv.Get(entryKey(owner))
	if err != nil {
		return Entry{}, fmt.Errorf("reputation: kv get: %w", err)
	}
	if raw == nil {
		return Entry{Owner: owner}, nil
	}
	var rec kvRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Entry{}, fmt.Errorf("reputation: decode entry for %s: %w", owner, err)
	}
	return Entry{
		Owner:      owner,
		Score:      rec.Score,
		Completed:  rec.Completed,
		Failed:     rec.Failed,
		LastUpdate: rec.LastUpdate,
	}, nil
}

func (b *kvBackend) save(entry Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	raw, err := json.Marshal(kvRecord{
		Score:      entry.Score,
		Completed:  entry.Completed,
		Failed:     entry.Failed,
		LastUpdate: entry.LastUpdate,
	})
	if err != nil {
		return fmt.Errorf("reputation: encode entry for %s: %w", entry.Owner, err)
	}
	return b.kv.Set(entryKey(entry.Owner), raw)
}

// NewKVStore builds a Store persisted through kv.
func NewKVStore(kv kvstore.KV) Store {
	return &store{
		locks: make(map[identity.DID]*sync.Mutex),
		back:  &kvBackend{kv: kv},
	}
}
