// Copyright 2025 ICN Federation
//
package dag

import (
	"context"
	"testing"

	"github.com/icn-federation/icn-core/pkg/cid"
)

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.Put(ctx, []byte("manifest-bytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, ok, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected block to be found")
	}
	if string(data) != "manifest-bytes" {
		t.Fatalf("unexpected data: %q", data)
	}
}

func TestPutIdempotentByContent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id1, err := store.Put(ctx, []byte("same"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	id2, err := store.Put(ctx, []byte("same"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected identical content to produce identical CID, got %s vs %s", id1, id2)
	}
}

func TestGetMissingReturnsNotOK(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, ok, err := store.Get(ctx, cid.MustOf([]byte("nonexistent")))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected missing block to report ok=false")
	}
}

func TestPinUnpin(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	id, _ := store.Put(ctx, []byte("pinned-content"))

	if store.IsPinned(id) {
		t.Fatalf("expected unpinned by default")
	}
	if err := store.Pin(ctx, id); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if !store.IsPinned(id) {
		t.Fatalf("expected pinned after Pin")
	}
	if err := store.Unpin(ctx, id); err != nil {
		t.Fatalf("Unpin: %v", err)
	}
	if store.IsPinned(id) {
		t.Fatalf("expected unpinned after Unpin")
	}
}
