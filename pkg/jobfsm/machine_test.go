// Copyright 2025 ICN Federation
//
package jobfsm

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	ipfscid "github.com/ipfs/go-cid"

	"github.com/icn-federation/icn-core/pkg/dag"
	"github.com/icn-federation/icn-core/pkg/evaluator"
	"github.com/icn-federation/icn-core/pkg/identity"
	"github.com/icn-federation/icn-core/pkg/jobmodel"
	"github.com/icn-federation/icn-core/pkg/mana"
	"github.com/icn-federation/icn-core/pkg/reputation"
)

func ed25519Sign(kp *identity.KeyPair, msg []byte) []byte {
	return ed25519.Sign(kp.PrivateKey, msg)
}

type fixture struct {
	engine     *Engine
	manaLedger mana.Ledger
	repStore   reputation.Store
	dagStore   dag.Store
	alice      *identity.KeyPair
	bob        *identity.KeyPair
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	rep := reputation.NewInMemoryStore()
	ledger := mana.NewInMemoryLedger(1000, 0, rep, nil)
	store := dag.NewMemoryStore()

	alice, err := identity.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate alice: %v", err)
	}
	bob, err := identity.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate bob: %v", err)
	}
	mana.SeedBalance(ledger, alice.DID, 1000, 1000)
	mana.SeedBalance(ledger, bob.DID, 500, 1000)

	eng := NewEngine(cfg, Deps{
		Mana:       ledger,
		Reputation: rep,
		DAG:        store,
		Net:        nil,
		Weights:    evaluator.DefaultWeights(),
	})
	return &fixture{engine: eng, manaLedger: ledger, repStore: rep, dagStore: store, alice: alice, bob: bob}
}

func TestS1HappyPathEchoJob(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BiddingWindow = 20 * time.Millisecond
	cfg.MinBids = 1
	f := newFixture(t, cfg)
	ctx := context.Background()

	m := jobmodel.Manifest{
		SpecKind:    jobmodel.SpecKindEcho,
		Payload:     []byte("hello"),
		MaxCostMana: 50,
		Deadline:    60 * time.Second,
		Submitter:   f.alice.DID,
		SubmittedAt: time.Now(),
	}
	jobID, err := f.engine.SubmitJob(ctx, m)
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}

	bid := jobmodel.Bid{
		JobID:     jobID,
		Bidder:    f.bob.DID,
		PriceMana: 25,
		ClaimedResources: jobmodel.ResourceRequirements{
			CPUCores: 1, MemoryMB: 64, StorageMB: 16,
		},
		ValidUntil: time.Now().Add(time.Hour),
	}
	bid.Sig = ed25519Sign(f.bob, bid.SigningBytes())
	if err := f.engine.HandleBid(ctx, bid); err != nil {
		t.Fatalf("HandleBid: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	job, ok := f.engine.GetJob(jobID)
	if !ok {
		t.Fatalf("expected job to exist")
	}
	if job.State.Kind != jobmodel.JobStateAssigned {
		t.Fatalf("expected Assigned, got %s", job.State.Kind)
	}
	if job.State.Winner != f.bob.DID {
		t.Fatalf("expected bob as winner")
	}

	receipt := jobmodel.Receipt{
		JobID:     jobID,
		Executor:  f.bob.DID,
		ResultCID: mustResultCID(t, f.dagStore, "hello"),
		CPUMs:     10,
		MemPeakMB: 16,
		Success:   true,
		ExitCode:  0,
	}
	receipt.Sig = ed25519Sign(f.bob, receipt.SigningBytes())
	if err := f.engine.HandleReceipt(ctx, receipt); err != nil {
		t.Fatalf("HandleReceipt: %v", err)
	}

	job, _ = f.engine.GetJob(jobID)
	if job.State.Kind != jobmodel.JobStateCompleted {
		t.Fatalf("expected Completed, got %s", job.State.Kind)
	}

	aliceBal, _ := f.manaLedger.Balance(ctx, f.alice.DID)
	bobBal, _ := f.manaLedger.Balance(ctx, f.bob.DID)
	if aliceBal != 975 {
		t.Fatalf("expected alice balance 975, got %d", aliceBal)
	}
	if bobBal != 525 {
		t.Fatalf("expected bob balance 525, got %d", bobBal)
	}

	entry, _ := f.repStore.Get(ctx, f.bob.DID)
	if entry.Completed != 1 {
		t.Fatalf("expected bob completed count 1, got %d", entry.Completed)
	}
}

func TestS2NoBids(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BiddingWindow = 20 * time.Millisecond
	f := newFixture(t, cfg)
	ctx := context.Background()

	m := jobmodel.Manifest{
		SpecKind:    jobmodel.SpecKindEcho,
		Payload:     []byte("x"),
		MaxCostMana: 50,
		Submitter:   f.alice.DID,
		SubmittedAt: time.Now(),
	}
	jobID, err := f.engine.SubmitJob(ctx, m)
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	job, _ := f.engine.GetJob(jobID)
	if job.State.Kind != jobmodel.JobStateFailed || job.State.FailureReason != jobmodel.FailureNoBids {
		t.Fatalf("expected Failed{NoBids}, got %v", job.State)
	}
	aliceBal, _ := f.manaLedger.Balance(ctx, f.alice.DID)
	if aliceBal != 1000 {
		t.Fatalf("expected full refund, got balance %d", aliceBal)
	}
}

func TestS5DuplicateSubmission(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BiddingWindow = time.Hour
	f := newFixture(t, cfg)
	ctx := context.Background()

	m := jobmodel.Manifest{
		SpecKind:    jobmodel.SpecKindEcho,
		Payload:     []byte("x"),
		MaxCostMana: 50,
		Submitter:   f.alice.DID,
		SubmittedAt: time.Now(),
		Nonce:       1,
	}
	if _, err := f.engine.SubmitJob(ctx, m); err != nil {
		t.Fatalf("first SubmitJob: %v", err)
	}
	_, err := f.engine.SubmitJob(ctx, m)
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}

	bal, _ := f.manaLedger.Balance(ctx, f.alice.DID)
	if bal != 950 {
		t.Fatalf("expected mana debited exactly once, got balance %d", bal)
	}
}

func TestS6InsufficientMana(t *testing.T) {
	cfg := DefaultConfig()
	f := newFixture(t, cfg)
	ctx := context.Background()
	mana.SeedBalance(f.manaLedger, f.alice.DID, 10, 1000)

	m := jobmodel.Manifest{
		SpecKind:    jobmodel.SpecKindEcho,
		Payload:     []byte("x"),
		MaxCostMana: 50,
		Submitter:   f.alice.DID,
		SubmittedAt: time.Now(),
	}
	_, err := f.engine.SubmitJob(ctx, m)
	var insuff *InsufficientManaError
	if !errors.As(err, &insuff) {
		t.Fatalf("expected InsufficientManaError, got %v", err)
	}
	if insuff.Required != 50 || insuff.Available != 10 {
		t.Fatalf("unexpected error detail: %+v", insuff)
	}
}

func TestS7ByzantineBidOverCapRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BiddingWindow = time.Hour
	f := newFixture(t, cfg)
	ctx := context.Background()

	m := jobmodel.Manifest{
		SpecKind:    jobmodel.SpecKindEcho,
		Payload:     []byte("x"),
		MaxCostMana: 50,
		Submitter:   f.alice.DID,
		SubmittedAt: time.Now(),
	}
	jobID, err := f.engine.SubmitJob(ctx, m)
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}

	bid := jobmodel.Bid{
		JobID:     jobID,
		Bidder:    f.bob.DID,
		PriceMana: 1000,
		ClaimedResources: jobmodel.ResourceRequirements{
			CPUCores: 1, MemoryMB: 64, StorageMB: 16,
		},
		ValidUntil: time.Now().Add(time.Hour),
	}
	bid.Sig = ed25519Sign(f.bob, bid.SigningBytes())
	if err := f.engine.HandleBid(ctx, bid); err != nil {
		t.Fatalf("HandleBid: %v", err)
	}

	job, _ := f.engine.GetJob(jobID)
	if job.State.Kind != jobmodel.JobStateBiddingOpen {
		t.Fatalf("expected job to remain BiddingOpen with no state effect")
	}
}

func TestS3TimeoutAfterAssignment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BiddingWindow = 20 * time.Millisecond
	cfg.MinBids = 1
	cfg.ExecutionDeadline = 30 * time.Millisecond
	cfg.GraceAfterDeadline = 20 * time.Millisecond
	f := newFixture(t, cfg)
	ctx := context.Background()

	m := jobmodel.Manifest{
		SpecKind:    jobmodel.SpecKindEcho,
		Payload:     []byte("hello"),
		MaxCostMana: 100,
		Submitter:   f.alice.DID,
		SubmittedAt: time.Now(),
	}
	jobID, err := f.engine.SubmitJob(ctx, m)
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}

	bid := jobmodel.Bid{
		JobID:     jobID,
		Bidder:    f.bob.DID,
		PriceMana: 60,
		ClaimedResources: jobmodel.ResourceRequirements{
			CPUCores: 1, MemoryMB: 64, StorageMB: 16,
		},
		ValidUntil: time.Now().Add(time.Hour),
	}
	bid.Sig = ed25519Sign(f.bob, bid.SigningBytes())
	if err := f.engine.HandleBid(ctx, bid); err != nil {
		t.Fatalf("HandleBid: %v", err)
	}

	// Bob never submits a receipt. Wait past execution_deadline + grace.
	time.Sleep(20*time.Millisecond + cfg.ExecutionDeadline + cfg.GraceAfterDeadline + 40*time.Millisecond)

	job, ok := f.engine.GetJob(jobID)
	if !ok {
		t.Fatalf("expected job to exist")
	}
	if job.State.Kind != jobmodel.JobStateFailed || job.State.FailureReason != jobmodel.FailureTimeout {
		t.Fatalf("expected Failed{Timeout}, got %v", job.State)
	}

	aliceBal, _ := f.manaLedger.Balance(ctx, f.alice.DID)
	if aliceBal != 1000 {
		t.Fatalf("expected full refund, got balance %d", aliceBal)
	}

	entry, _ := f.repStore.Get(ctx, f.bob.DID)
	if entry.Failed != 1 {
		t.Fatalf("expected bob failure count 1, got %d", entry.Failed)
	}
}

func TestS4InvalidReceiptDroppedThenTimesOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BiddingWindow = 20 * time.Millisecond
	cfg.MinBids = 1
	cfg.ExecutionDeadline = 30 * time.Millisecond
	cfg.GraceAfterDeadline = 20 * time.Millisecond
	f := newFixture(t, cfg)
	ctx := context.Background()

	carol, err := identity.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate carol: %v", err)
	}

	m := jobmodel.Manifest{
		SpecKind:    jobmodel.SpecKindEcho,
		Payload:     []byte("hello"),
		MaxCostMana: 100,
		Submitter:   f.alice.DID,
		SubmittedAt: time.Now(),
	}
	jobID, err := f.engine.SubmitJob(ctx, m)
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}

	bid := jobmodel.Bid{
		JobID:     jobID,
		Bidder:    f.bob.DID,
		PriceMana: 60,
		ClaimedResources: jobmodel.ResourceRequirements{
			CPUCores: 1, MemoryMB: 64, StorageMB: 16,
		},
		ValidUntil: time.Now().Add(time.Hour),
	}
	bid.Sig = ed25519Sign(f.bob, bid.SigningBytes())
	if err := f.engine.HandleBid(ctx, bid); err != nil {
		t.Fatalf("HandleBid: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	job, ok := f.engine.GetJob(jobID)
	if !ok {
		t.Fatalf("expected job to exist")
	}
	if job.State.Kind != jobmodel.JobStateAssigned {
		t.Fatalf("expected Assigned, got %s", job.State.Kind)
	}

	// Receipt names carol, not the winner (bob), as executor and is signed by carol.
	receipt := jobmodel.Receipt{
		JobID:     jobID,
		Executor:  carol.DID,
		ResultCID: mustResultCID(t, f.dagStore, "hello"),
		CPUMs:     10,
		MemPeakMB: 16,
		Success:   true,
		ExitCode:  0,
	}
	receipt.Sig = ed25519Sign(carol, receipt.SigningBytes())
	if err := f.engine.HandleReceipt(ctx, receipt); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for executor != winner, got %v", err)
	}

	job, _ = f.engine.GetJob(jobID)
	if job.State.Kind != jobmodel.JobStateAssigned {
		t.Fatalf("expected job to remain Assigned after dropped receipt, got %s", job.State.Kind)
	}

	time.Sleep(cfg.ExecutionDeadline + cfg.GraceAfterDeadline + 40*time.Millisecond)

	job, _ = f.engine.GetJob(jobID)
	if job.State.Kind != jobmodel.JobStateFailed || job.State.FailureReason != jobmodel.FailureTimeout {
		t.Fatalf("expected Failed{Timeout} after grace period, got %v", job.State)
	}

	aliceBal, _ := f.manaLedger.Balance(ctx, f.alice.DID)
	if aliceBal != 1000 {
		t.Fatalf("expected full refund, got balance %d", aliceBal)
	}
}

func mustResultCID(t *testing.T, store dag.Store, payload string) ipfscid.Cid {
	t.Helper()
	id, err := store.Put(context.Background(), []byte(payload))
	if err != nil {
		t.Fatalf("anchor result: %v", err)
	}
	return id
}
