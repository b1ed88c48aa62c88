// Copyright 2025 ICN Federation
//
// Package jobfsm implements the per-job state machine owned by the
// submitter node (SPEC_FULL §4.8): one logical task per active job_id,
// driven by submit/bid/timer/receipt events, with settlement effects
// applied exactly once per job_id.
package jobfsm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	ipfscid "github.com/ipfs/go-cid"

	"github.com/icn-federation/icn-core/pkg/dag"
	"github.com/icn-federation/icn-core/pkg/evaluator"
	"github.com/icn-federation/icn-core/pkg/identity"
	"github.com/icn-federation/icn-core/pkg/jobmodel"
	"github.com/icn-federation/icn-core/pkg/mana"
	"github.com/icn-federation/icn-core/pkg/network"
	"github.com/icn-federation/icn-core/pkg/reputation"
	"github.com/icn-federation/icn-core/pkg/signer"
	"github.com/icn-federation/icn-core/pkg/telemetry"
)

// Deps bundles the Engine's collaborators so construction stays one call
// rather than a long positional parameter list. Every field is an
// interface; the composition root (pkg/corecontext) decides concrete
// backends.
type Deps struct {
	Mana       mana.Ledger
	Reputation reputation.Store
	DAG        dag.Store
	Net        network.Service
	Signer     signer.Signer
	Weights    evaluator.Weights
	Telemetry  *telemetry.Telemetry
}

// handle is the mutable state the Engine tracks per active job_id,
// single-owner: all reads/writes go through the handle's mutex, which
// plays the role of the "single task at a time" guarantee §5 describes
// without needing a dedicated goroutine per job.
type handle struct {
	mu            sync.Mutex
	job           jobmodel.Job
	bids          map[identity.DID]jobmodel.Bid
	biddingTimer  *time.Timer
	deadlineTimer *time.Timer
	winningBid    jobmodel.Bid // the evaluator's chosen bid, kept for settlement pricing
	settling      bool         // a receipt is mid-anchor; the deadline timer must not preempt it
	settled       bool         // Completed/Failed settlement effects already applied exactly once
}

// Engine drives every job_id's state machine for one submitter node.
type Engine struct {
	cfg  Config
	deps Deps

	mu   sync.RWMutex
	jobs map[ipfscid.Cid]*handle
}

// NewEngine constructs an Engine. cfg should usually be DefaultConfig()
// with overrides from loaded configuration.
func NewEngine(cfg Config, deps Deps) *Engine {
	return &Engine{cfg: cfg, deps: deps, jobs: make(map[ipfscid.Cid]*handle)}
}

// SubmitJob validates and admits a manifest, debiting max_cost_mana and
// immediately advancing Submitted -> BiddingOpen. Matches S5/S6: duplicate
// submissions and insufficient mana never create a job or broadcast.
func (e *Engine) SubmitJob(ctx context.Context, m jobmodel.Manifest) (ipfscid.Cid, error) {
	if err := validateManifest(m); err != nil {
		return ipfscid.Undef, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	jobID, err := m.JobID()
	if err != nil {
		return ipfscid.Undef, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	e.mu.Lock()
	if _, exists := e.jobs[jobID]; exists {
		e.mu.Unlock()
		return ipfscid.Undef, ErrDuplicateSubmission
	}
	// Reserve the slot before releasing the lock so a second concurrent
	// SubmitJob for the same manifest cannot both pass the existence check.
	e.jobs[jobID] = &handle{}
	e.mu.Unlock()

	if err := e.deps.Mana.Debit(ctx, m.Submitter, m.MaxCostMana, "submit_job"); err != nil {
		e.mu.Lock()
		delete(e.jobs, jobID)
		e.mu.Unlock()
		var insuff *mana.InsufficientManaError
		if errors.As(err, &insuff) {
			return ipfscid.Undef, &InsufficientManaError{Required: insuff.Required, Available: insuff.Available}
		}
		return ipfscid.Undef, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := e.deps.DAG.Put(ctx, m.CanonicalBytes()); err != nil {
		return ipfscid.Undef, fmt.Errorf("%w: anchor manifest: %v", ErrUnavailable, err)
	}

	h := &handle{
		job: jobmodel.Job{
			JobID:     jobID,
			Manifest:  m,
			State:     jobmodel.JobState{Kind: jobmodel.JobStateSubmitted},
			CreatedAt: time.Now(),
		},
		bids: make(map[identity.DID]jobmodel.Bid),
	}
	e.mu.Lock()
	e.jobs[jobID] = h
	e.mu.Unlock()

	e.deps.Telemetry.JobSubmitted()
	e.openBidding(ctx, h)
	return jobID, nil
}

// openBidding transitions Submitted -> BiddingOpen: broadcasts the
// announcement and starts the bidding-window timer.
func (e *Engine) openBidding(ctx context.Context, h *handle) {
	h.mu.Lock()
	h.job.State = jobmodel.JobState{Kind: jobmodel.JobStateBiddingOpen}
	jobID := h.job.JobID
	m := h.job.Manifest
	h.mu.Unlock()

	ann := network.MeshJobAnnouncement{
		ManifestCID: jobID,
		Submitter:   m.Submitter,
		SubmittedAt: m.SubmittedAt,
	}
	_ = e.broadcast(ctx, TopicAnnouncements, network.KindMeshJobAnnouncement, ann)

	h.mu.Lock()
	h.biddingTimer = time.AfterFunc(e.cfg.BiddingWindow, func() {
		e.onBiddingWindowEnd(context.Background(), jobID)
	})
	h.mu.Unlock()
}

// HandleBid processes an inbound BidSubmission. Self-bids, over-cap
// prices, and bids lacking required resources are rejected at reception
// and never reach the evaluator's input set (S7). Duplicate bids from the
// same bidder are ignored (invariant 6).
func (e *Engine) HandleBid(ctx context.Context, bid jobmodel.Bid) error {
	if !bid.Bidder.Verify(bid.SigningBytes(), bid.Sig) {
		e.deps.Telemetry.BidRejected("invalid_signature")
		return ErrInvalidSignature
	}
	e.deps.Telemetry.BidReceived()

	h := e.lookup(bid.JobID)
	if h == nil {
		e.deps.Telemetry.BidRejected("unknown_job")
		return ErrUnknownJob
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.job.State.Kind != jobmodel.JobStateBiddingOpen {
		e.deps.Telemetry.BidRejected("state_conflict")
		return ErrStateConflict
	}
	if bid.Bidder == h.job.Manifest.Submitter && !e.cfg.AllowSelfBid {
		e.deps.Telemetry.BidRejected("self_bid")
		return nil // self-bid: silently rejected unless allow_self_bid is set
	}
	if bid.PriceMana > h.job.Manifest.MaxCostMana {
		e.deps.Telemetry.BidRejected("over_cap_price")
		return nil // Byzantine over-cap bid: silently rejected (S7)
	}
	if !bid.ClaimedResources.Satisfies(h.job.Manifest.RequiredResources) {
		e.deps.Telemetry.BidRejected("insufficient_resources")
		return nil
	}
	if _, dup := h.bids[bid.Bidder]; dup {
		e.deps.Telemetry.BidRejected("duplicate")
		return nil // idempotent duplicate
	}
	if len(h.bids) >= e.cfg.MaxBids {
		e.deps.Telemetry.BidRejected("bid_cap_reached")
		return nil // bounded bid set; excess bids dropped
	}
	h.bids[bid.Bidder] = bid
	return nil
}

// onBiddingWindowEnd runs when the bidding timer fires: closes bidding and
// either assigns a winner or fails the job for lack of (eligible) bids.
func (e *Engine) onBiddingWindowEnd(ctx context.Context, jobID ipfscid.Cid) {
	h := e.lookup(jobID)
	if h == nil {
		return
	}

	h.mu.Lock()
	if h.job.State.Kind != jobmodel.JobStateBiddingOpen {
		h.mu.Unlock()
		return // already advanced (e.g. cancelled); idempotent no-op
	}
	h.job.State = jobmodel.JobState{Kind: jobmodel.JobStateBiddingClosed}

	if len(h.bids) < e.cfg.MinBids {
		e.failAndRefundLocked(ctx, h, jobmodel.FailureNoBids)
		h.mu.Unlock()
		return
	}

	bids := make([]jobmodel.Bid, 0, len(h.bids))
	for _, b := range h.bids {
		bids = append(bids, b)
	}
	manifest := h.job.Manifest
	h.mu.Unlock()

	rep := e.reputationSnapshot(ctx, bids)
	winner, ok := evaluator.EvaluateWithPolicy(bids, manifest, rep, time.Now(), e.deps.Weights, e.cfg.AllowSelfBid)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.job.State.Kind != jobmodel.JobStateBiddingClosed {
		return
	}
	if !ok {
		e.failAndRefundLocked(ctx, h, jobmodel.FailureNoEligible)
		return
	}

	deadline := time.Now().Add(e.cfg.executionDeadlineFor(manifest.Deadline))
	h.job.State = jobmodel.JobState{
		Kind:              jobmodel.JobStateAssigned,
		Winner:            winner,
		AssignedAt:        time.Now(),
		ExecutionDeadline: deadline,
	}
	h.job.AssignedAt = time.Now()
	for _, b := range bids {
		if b.Bidder == winner {
			h.winningBid = b
			break
		}
	}

	notice := network.JobAssignmentNotification{
		JobID:      jobID,
		Winner:     winner,
		AssignedAt: h.job.State.AssignedAt,
		Deadline:   deadline,
	}
	_ = e.broadcast(ctx, TopicAssignments, network.KindJobAssignmentNotification, notice)

	h.deadlineTimer = time.AfterFunc(time.Until(deadline)+e.cfg.GraceAfterDeadline, func() {
		e.onExecutionDeadline(context.Background(), jobID)
	})
}

// reputationSnapshot takes a one-shot reputation read per candidate
// bidder, keeping the evaluator a pure function of its inputs (§8
// invariant 8) rather than letting it query a live store mid-evaluation.
func (e *Engine) reputationSnapshot(ctx context.Context, bids []jobmodel.Bid) evaluator.ReputationSnapshot {
	snap := make(evaluator.ReputationSnapshot, len(bids))
	for _, b := range bids {
		if _, ok := snap[b.Bidder]; ok {
			continue
		}
		score, err := e.deps.Reputation.ReputationScore(ctx, b.Bidder)
		if err != nil {
			score = 0
		}
		snap[b.Bidder] = score
	}
	return snap
}

// onExecutionDeadline runs when a job's execution timer (execution
// deadline plus grace_after_deadline) fires without a settled receipt. A receipt mid-anchor (h.settling) is allowed to finish
// rather than being preempted; its own retry budget is bounded by
// execution_deadline + grace_after_deadline in anchorWithRetry.
func (e *Engine) onExecutionDeadline(ctx context.Context, jobID ipfscid.Cid) {
	h := e.lookup(jobID)
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.job.State.Kind != jobmodel.JobStateAssigned || h.settling || h.settled {
		return
	}
	winner := h.job.State.Winner
	e.failAndRefundLocked(ctx, h, jobmodel.FailureTimeout)
	if winner != "" {
		_ = e.deps.Reputation.RecordFailure(ctx, winner, e.cfg.ReputationTimeoutDelta)
	}
}

// failAndRefundLocked transitions to Failed{reason} and refunds
// max_cost_mana to the submitter, exactly once. Caller must hold h.mu.
func (e *Engine) failAndRefundLocked(ctx context.Context, h *handle, reason jobmodel.FailureReason) {
	if h.settled {
		return
	}
	h.settled = true
	h.job.State = jobmodel.JobState{Kind: jobmodel.JobStateFailed, FailureReason: reason}
	e.deps.Telemetry.JobFailed(string(reason))
	if err := e.deps.Mana.Credit(ctx, h.job.Manifest.Submitter, h.job.Manifest.MaxCostMana, string(reason)); err != nil {
		// Refund failed to land; the ledger is the source of truth and a
		// retried credit is safe since this path only runs once per job.
		_ = err
	}
}

// HandleReceipt implements the receipt pipeline (§4.12): verify, match,
// anchor, settle, and transition to Completed — or fail the job if
// anchoring cannot complete within the grace period.
func (e *Engine) HandleReceipt(ctx context.Context, r jobmodel.Receipt) error {
	if !r.Executor.Verify(r.SigningBytes(), r.Sig) {
		return ErrInvalidSignature
	}

	h := e.lookup(r.JobID)
	if h == nil {
		return ErrUnknownJob
	}

	h.mu.Lock()
	if h.job.State.Kind != jobmodel.JobStateAssigned || h.settled {
		h.mu.Unlock()
		return ErrStateConflict // first-valid-wins; late/duplicate receipts are no-ops
	}
	if r.Executor != h.job.State.Winner {
		h.mu.Unlock()
		return ErrInvalidSignature // executor != winner: drop, continue waiting
	}
	budgetMs := uint64(h.job.Manifest.Deadline.Milliseconds())
	if budgetMs > 0 && r.CPUMs > budgetMs {
		h.mu.Unlock()
		return ErrStateConflict // over budget: drop, continue waiting
	}
	h.settling = true
	deadline := h.job.State.ExecutionDeadline.Add(e.cfg.GraceAfterDeadline)
	manifest := h.job.Manifest
	winner := h.job.State.Winner
	winningPrice := h.winningBid.PriceMana
	h.mu.Unlock()

	receiptCID, err := anchorWithRetry(ctx, e.deps.DAG, receiptBytesFor(r), deadline, e.cfg.AnchorRetryBase, e.cfg.AnchorRetryMax, e.deps.Telemetry)
	if err != nil {
		h.mu.Lock()
		h.settling = false
		if h.job.State.Kind == jobmodel.JobStateAssigned && !h.settled {
			e.failAndRefundLocked(ctx, h, jobmodel.FailureAnchoringFailed)
		}
		h.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := e.settle(ctx, manifest, winningPrice, winner); err != nil {
		h.mu.Lock()
		h.settling = false
		h.mu.Unlock()
		return fmt.Errorf("%w: settlement: %v", ErrUnavailable, err)
	}

	h.mu.Lock()
	h.settling = false
	h.settled = true
	h.job.State = jobmodel.JobState{Kind: jobmodel.JobStateCompleted, Winner: winner, ReceiptCID: receiptCID}
	h.job.CompletedAt = time.Now()
	if h.deadlineTimer != nil {
		h.deadlineTimer.Stop()
	}
	latency := h.job.CompletedAt.Sub(h.job.CreatedAt).Seconds()
	h.mu.Unlock()
	e.deps.Telemetry.JobCompleted()
	e.deps.Telemetry.ObserveJobLatencySeconds(latency)
	return nil
}

// settle applies the Mana Settlement Policy (§4.9) and the reputation
// success update as one logical operation: payment to the executor,
// refund of the remainder to the submitter.
func (e *Engine) settle(ctx context.Context, m jobmodel.Manifest, bidPrice uint64, winner identity.DID) error {
	payment := bidPrice
	if payment > m.MaxCostMana {
		payment = m.MaxCostMana
	}
	refund := m.MaxCostMana - payment

	if payment > 0 {
		if err := e.deps.Mana.Credit(ctx, winner, payment, "job_payment"); err != nil {
			return err
		}
		e.deps.Telemetry.ManaSettled(payment)
	}
	if refund > 0 {
		if err := e.deps.Mana.Credit(ctx, m.Submitter, refund, "job_refund"); err != nil {
			return err
		}
	}
	return e.deps.Reputation.RecordSuccess(ctx, winner, e.cfg.ReputationSuccessDelta)
}

// Cancel implements the Cancel event: stops a non-terminal job's timers
// and refunds max_cost_mana, exactly once. Per §5, cancellation is always
// safe — a job already mid-settlement runs to completion untouched and
// Cancel becomes a no-op for it.
func (e *Engine) Cancel(ctx context.Context, jobID ipfscid.Cid) error {
	h := e.lookup(jobID)
	if h == nil {
		return ErrUnknownJob
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.job.State.IsTerminal() || h.settling || h.settled {
		return nil
	}
	if h.biddingTimer != nil {
		h.biddingTimer.Stop()
	}
	if h.deadlineTimer != nil {
		h.deadlineTimer.Stop()
	}
	e.failAndRefundLocked(ctx, h, jobmodel.FailureTimeout)
	return nil
}

// GetJob returns a snapshot of a tracked job's current state.
func (e *Engine) GetJob(jobID ipfscid.Cid) (jobmodel.Job, bool) {
	h := e.lookup(jobID)
	if h == nil {
		return jobmodel.Job{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.job, true
}

func (e *Engine) lookup(jobID ipfscid.Cid) *handle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.jobs[jobID]
}

// broadcast JSON-encodes payload and broadcasts it on topic. The network
// Service signs the envelope internally (see network.sign), so jobfsm
// never touches signatures directly here.
func (e *Engine) broadcast(ctx context.Context, topic string, kind network.MessageKind, payload any) error {
	if e.deps.Net == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("jobfsm: encode %s message: %w", topic, err)
	}
	// Discriminator byte first, per SPEC_FULL §6's four-variant wire format.
	data := append([]byte{byte(kind)}, body...)
	return e.deps.Net.Broadcast(ctx, topic, data)
}

func validateManifest(m jobmodel.Manifest) error {
	if m.Submitter == "" {
		return fmt.Errorf("missing submitter")
	}
	if m.MaxCostMana == 0 {
		return fmt.Errorf("max_cost_mana must be positive")
	}
	if m.SpecKind == jobmodel.SpecKindCclWasm && !m.WasmCID.Defined() {
		return fmt.Errorf("wasm_cid required for CclWasm jobs")
	}
	return nil
}

