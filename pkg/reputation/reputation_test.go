// Copyright 2025 ICN Federation
//
package reputation

import (
	"context"
	"testing"

	"github.com/icn-federation/icn-core/pkg/identity"
)

func TestRecordSuccessIncrementsScoreAndCounter(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	bob := identity.DID("did:key:bob")

	if err := s.RecordSuccess(ctx, bob, 10); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	entry, err := s.Get(ctx, bob)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Score != 10 || entry.Completed != 1 || entry.Failed != 0 {
		t.Fatalf("unexpected entry after one success: %+v", entry)
	}
}

func TestRecordFailureCanGoNegative(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	bob := identity.DID("did:key:bob")

	if err := s.RecordFailure(ctx, bob, 20); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	entry, _ := s.Get(ctx, bob)
	if entry.Score != -20 || entry.Failed != 1 {
		t.Fatalf("expected score -20 and failed=1, got %+v", entry)
	}
}

func TestReputationScoreMatchesEntry(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	bob := identity.DID("did:key:bob")
	_ = s.RecordSuccess(ctx, bob, 5)
	_ = s.RecordSuccess(ctx, bob, 5)

	score, err := s.ReputationScore(ctx, bob)
	if err != nil {
		t.Fatalf("ReputationScore: %v", err)
	}
	if score != 10 {
		t.Fatalf("expected score 10, got %d", score)
	}
}

func TestUnknownOwnerDefaultsZero(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	entry, err := s.Get(ctx, identity.DID("did:key:nobody"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Score != 0 || entry.Completed != 0 || entry.Failed != 0 {
		t.Fatalf("expected zero-value entry for unknown owner, got %+v", entry)
	}
}
