// Copyright 2025 ICN Federation
//
package jobfsm

import "time"

// Config holds the job state machine's tunable parameters (SPEC_FULL §4.8
// and the configuration table in §6). Defaults match the spec exactly.
type Config struct {
	BiddingWindow      time.Duration
	ExecutionDeadline  time.Duration // fallback when manifest.Deadline is zero
	MinBids            int
	MaxBids            int
	GraceAfterDeadline time.Duration

	ReputationSuccessDelta  int64
	ReputationFailureDelta  int64
	ReputationTimeoutDelta  int64

	AnchorRetryBase time.Duration
	AnchorRetryMax  time.Duration

	// AllowSelfBid resolves SPEC_FULL §9's open question on self-bidding
	// in a single-node test federation. Default false; flip to true only
	// for local/test deployments where the submitter is also the sole
	// executor.
	AllowSelfBid bool
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		BiddingWindow:          10 * time.Second,
		ExecutionDeadline:      60 * time.Second,
		MinBids:                1,
		MaxBids:                64,
		GraceAfterDeadline:     5 * time.Second,
		ReputationSuccessDelta: 1,
		ReputationFailureDelta: 1,
		ReputationTimeoutDelta: 1,
		AnchorRetryBase:        50 * time.Millisecond,
		AnchorRetryMax:         2 * time.Second,
		AllowSelfBid:           false,
	}
}

func (c Config) executionDeadlineFor(manifestDeadline time.Duration) time.Duration {
	if manifestDeadline > 0 {
		return manifestDeadline
	}
	return c.ExecutionDeadline
}
