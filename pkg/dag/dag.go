// Copyright 2025 ICN Federation
//
// Package dag implements the DAG Store contract (SPEC_FULL §4.4):
// content-addressed block put/get with pinning. Every implementation here
// shares the invariant get(cid).hash == cid — violating it is a
// programming error, not a recoverable condition.
package dag

import (
	"context"

	ipfscid "github.com/ipfs/go-cid"

	"github.com/icn-federation/icn-core/pkg/cid"
)

// Store is the DAG Store contract.
type Store interface {
	// Put writes bytes and returns their content identifier. Idempotent:
	// putting the same bytes twice returns the same CID and does not
	// duplicate storage.
	Put(ctx context.Context, data []byte) (ipfscid.Cid, error)
	// Get returns the bytes for a CID, or ok=false if absent.
	Get(ctx context.Context, id ipfscid.Cid) (data []byte, ok bool, err error)
	// Pin marks a CID as not eligible for eviction.
	Pin(ctx context.Context, id ipfscid.Cid) error
	// Unpin reverses Pin.
	Unpin(ctx context.Context, id ipfscid.Cid) error
}

// computeAndCheck hashes data, and if a prior value is already stored
// under the resulting CID, verifies the bytes match (fatal collision
// otherwise) before returning.
func computeAndCheck(data []byte, existing []byte, existingOK bool) (ipfscid.Cid, error) {
	id, err := cid.Of(data)
	if err != nil {
		return ipfscid.Undef, err
	}
	if existingOK {
		if err := cid.VerifyNoCollision(existing, data); err != nil {
			return ipfscid.Undef, err
		}
	}
	return id, nil
}
