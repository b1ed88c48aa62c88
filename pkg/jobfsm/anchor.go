// Copyright 2025 ICN Federation
//
package jobfsm

import (
	"context"
	"fmt"
	"time"

	ipfscid "github.com/ipfs/go-cid"

	"github.com/icn-federation/icn-core/pkg/dag"
	"github.com/icn-federation/icn-core/pkg/telemetry"
)

// anchorWithRetry anchors data into store, retrying with exponential
// backoff (doubling from base, capped at max) until it succeeds or
// deadline passes. Grounded on the teacher's discovery.go retry loop,
// generalized from a fixed five-attempt cap to a deadline-bounded one
// since §4.12 ties the retry budget to execution_deadline +
// grace_after_deadline rather than a fixed attempt count.
//
// Per SPEC_FULL §9's resolution of the anchoring-pin open question, a
// successfully anchored receipt is pinned so it is never evicted; a pin
// failure does not unwind the anchor — the bytes are already durable and
// retrying the whole anchor for a pin-only failure would double-write.
func anchorWithRetry(ctx context.Context, store dag.Store, data []byte, deadline time.Time, base, max time.Duration, tel *telemetry.Telemetry) (ipfscid.Cid, error) {
	backoff := base
	var lastErr error
	for {
		id, err := store.Put(ctx, data)
		if err == nil {
			if pinErr := store.Pin(ctx, id); pinErr != nil {
				return id, fmt.Errorf("%w: anchored but failed to pin: %v", ErrUnavailable, pinErr)
			}
			return id, nil
		}
		lastErr = err

		if time.Now().After(deadline) {
			return ipfscid.Undef, fmt.Errorf("%w: anchoring exhausted retry budget: %v", ErrUnavailable, lastErr)
		}
		tel.AnchorRetry()
		select {
		case <-ctx.Done():
			return ipfscid.Undef, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > max {
			backoff = max
		}
	}
}
