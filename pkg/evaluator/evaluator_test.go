// Copyright 2025 ICN Federation
//
package evaluator

import (
	"testing"
	"time"

	"github.com/icn-federation/icn-core/pkg/identity"
	"github.com/icn-federation/icn-core/pkg/jobmodel"
)

func manifestFixture() jobmodel.Manifest {
	return jobmodel.Manifest{
		SpecKind:    jobmodel.SpecKindEcho,
		Submitter:   identity.DID("did:key:submitter"),
		MaxCostMana: 100,
		RequiredResources: jobmodel.ResourceRequirements{
			CPUCores: 1, MemoryMB: 64, StorageMB: 16,
		},
	}
}

func bidFixture(bidder identity.DID, price uint64) jobmodel.Bid {
	return jobmodel.Bid{
		Bidder:     bidder,
		PriceMana:  price,
		ValidUntil: time.Now().Add(time.Hour),
		ClaimedResources: jobmodel.ResourceRequirements{
			CPUCores: 2, MemoryMB: 128, StorageMB: 32,
		},
	}
}

func TestEvaluateRejectsSelfBid(t *testing.T) {
	m := manifestFixture()
	bid := bidFixture(m.Submitter, 10)
	_, ok := Evaluate([]jobmodel.Bid{bid}, m, ReputationSnapshot{}, time.Now(), DefaultWeights())
	if ok {
		t.Fatalf("expected self-bid to be rejected")
	}
}

func TestEvaluateRejectsOverCapPrice(t *testing.T) {
	m := manifestFixture()
	bid := bidFixture(identity.DID("did:key:bob"), m.MaxCostMana+1)
	_, ok := Evaluate([]jobmodel.Bid{bid}, m, ReputationSnapshot{}, time.Now(), DefaultWeights())
	if ok {
		t.Fatalf("expected over-cap bid to be rejected")
	}
}

func TestEvaluateRejectsExpiredBid(t *testing.T) {
	m := manifestFixture()
	bid := bidFixture(identity.DID("did:key:bob"), 10)
	bid.ValidUntil = time.Now().Add(-time.Minute)
	_, ok := Evaluate([]jobmodel.Bid{bid}, m, ReputationSnapshot{}, time.Now(), DefaultWeights())
	if ok {
		t.Fatalf("expected expired bid to be rejected")
	}
}

func TestEvaluatePicksHigherReputationAtEqualPrice(t *testing.T) {
	m := manifestFixture()
	alice := bidFixture(identity.DID("did:key:alice"), 10)
	bob := bidFixture(identity.DID("did:key:bob"), 10)
	rep := ReputationSnapshot{
		alice.Bidder: 50,
		bob.Bidder:   10,
	}
	winner, ok := Evaluate([]jobmodel.Bid{alice, bob}, m, rep, time.Now(), DefaultWeights())
	if !ok {
		t.Fatalf("expected a winner")
	}
	if winner != alice.Bidder {
		t.Fatalf("expected alice to win on reputation, got %s", winner)
	}
}

func TestEvaluateTieBreaksOnPriceThenDID(t *testing.T) {
	m := manifestFixture()
	a := bidFixture(identity.DID("did:key:aaa"), 10)
	b := bidFixture(identity.DID("did:key:bbb"), 10)
	rep := ReputationSnapshot{a.Bidder: 0, b.Bidder: 0}
	winner, ok := Evaluate([]jobmodel.Bid{b, a}, m, rep, time.Now(), DefaultWeights())
	if !ok {
		t.Fatalf("expected a winner")
	}
	if winner != a.Bidder {
		t.Fatalf("expected lexicographically smaller DID to win tie, got %s", winner)
	}
}

func TestEvaluateNoEligibleBidsReturnsFalse(t *testing.T) {
	m := manifestFixture()
	_, ok := Evaluate(nil, m, ReputationSnapshot{}, time.Now(), DefaultWeights())
	if ok {
		t.Fatalf("expected no winner for empty bid set")
	}
}
