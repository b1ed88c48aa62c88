// Copyright 2025 ICN Federation
//
// Package evaluator implements the deterministic Bid Evaluator (SPEC_FULL
// §4.7): a pure function from (bids, manifest, reputation snapshot, now)
// to an optional winner. It performs no I/O.
package evaluator

import (
	"sort"
	"time"

	"github.com/icn-federation/icn-core/pkg/identity"
	"github.com/icn-federation/icn-core/pkg/jobmodel"
)

// Weights are the scoring coefficients: score = alpha*reputation -
// beta*price + gamma*capability_match.
type Weights struct {
	Alpha float64
	Beta  float64
	Gamma float64
}

// DefaultWeights returns the spec's default scoring weights.
func DefaultWeights() Weights {
	return Weights{Alpha: 1.0, Beta: 0.01, Gamma: 0.5}
}

// ReputationSnapshot is a read-only view of bidder reputations at
// evaluation time, taken once so the evaluator stays a pure function of
// its inputs rather than reaching back into a live store mid-evaluation.
type ReputationSnapshot map[identity.DID]int64

func (s ReputationSnapshot) of(did identity.DID) int64 {
	return s[did]
}

// Evaluate ranks bids and returns the winning bidder, or ok=false if no
// bid is eligible. Rejected bids (self-bid, over cap, insufficient
// resources, expired) never reach scoring — they have no effect on the
// result, satisfying S7 (a Byzantine over-cap bid never reaches the
// evaluator's input set).
func Evaluate(
	bids []jobmodel.Bid,
	manifest jobmodel.Manifest,
	reputation ReputationSnapshot,
	now time.Time,
	weights Weights,
) (identity.DID, bool) {
	return EvaluateWithPolicy(bids, manifest, reputation, now, weights, false)
}

// EvaluateWithPolicy is Evaluate with the allow_self_bid configuration
// flag (SPEC_FULL §9) threaded through explicitly. Evaluate is the
// common case (allowSelfBid=false); jobfsm calls this variant directly
// so the evaluator's own eligibility filter stays consistent with
// whatever policy the job state machine's Config carries.
func EvaluateWithPolicy(
	bids []jobmodel.Bid,
	manifest jobmodel.Manifest,
	reputation ReputationSnapshot,
	now time.Time,
	weights Weights,
	allowSelfBid bool,
) (identity.DID, bool) {
	type scored struct {
		bid   jobmodel.Bid
		score float64
		rep   int64
	}

	var candidates []scored
	for _, b := range bids {
		if !eligible(b, manifest, now, allowSelfBid) {
			continue
		}
		rep := reputation.of(b.Bidder)
		capMatch := 0.0
		if b.ClaimedResources.Satisfies(manifest.RequiredResources) {
			capMatch = 1.0
		}
		score := weights.Alpha*float64(rep) - weights.Beta*float64(b.PriceMana) + weights.Gamma*capMatch
		candidates = append(candidates, scored{bid: b, score: score, rep: rep})
	}
	if len(candidates) == 0 {
		return "", false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score // higher score wins
		}
		// Deterministic tie-break: lexicographic on (-reputation, price_mana, bidder_did).
		if candidates[i].rep != candidates[j].rep {
			return candidates[i].rep > candidates[j].rep
		}
		if candidates[i].bid.PriceMana != candidates[j].bid.PriceMana {
			return candidates[i].bid.PriceMana < candidates[j].bid.PriceMana
		}
		return candidates[i].bid.Bidder < candidates[j].bid.Bidder
	})

	return candidates[0].bid.Bidder, true
}

// eligible applies the evaluator's rejection policies: self-bid, over-cap
// price, insufficient claimed resources, and expired validity.
func eligible(b jobmodel.Bid, manifest jobmodel.Manifest, now time.Time, allowSelfBid bool) bool {
	if b.Bidder == manifest.Submitter && !allowSelfBid {
		return false
	}
	if b.PriceMana > manifest.MaxCostMana {
		return false
	}
	if !b.ClaimedResources.Satisfies(manifest.RequiredResources) {
		return false
	}
	if !b.ValidUntil.After(now) {
		return false
	}
	return true
}
