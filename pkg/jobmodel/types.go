// Copyright 2025 ICN Federation
//
// Package jobmodel defines the canonical data types of the mesh job
// runtime: manifests, jobs, bids, and execution receipts, plus their
// deterministic byte encodings used for content-addressing and signing.
package jobmodel

import (
	"time"

	ipfscid "github.com/ipfs/go-cid"

	"github.com/icn-federation/icn-core/pkg/identity"
)

// SpecKind tags which execution path a manifest requires.
type SpecKind string

const (
	// SpecKindEcho bypasses WASM entirely and returns the payload verbatim.
	SpecKindEcho SpecKind = "Echo"
	// SpecKindCclWasm runs a compiled WASM module loaded from wasm_cid.
	SpecKindCclWasm SpecKind = "CclWasm"
	// SpecKindGeneric is an undefined-semantics placeholder. Implementers
	// must not assume behavior beyond "returns failure" (see SPEC_FULL §9).
	SpecKindGeneric SpecKind = "Generic"
)

// ResourceRequirements describes the compute footprint a job needs (or, in
// a Bid, what an executor claims to offer).
type ResourceRequirements struct {
	CPUCores  uint64
	MemoryMB  uint64
	StorageMB uint64
}

// Satisfies reports whether claimed resources meet or exceed required ones
// along every dimension.
func (claimed ResourceRequirements) Satisfies(required ResourceRequirements) bool {
	return claimed.CPUCores >= required.CPUCores &&
		claimed.MemoryMB >= required.MemoryMB &&
		claimed.StorageMB >= required.StorageMB
}

// Manifest is the immutable description of a job. Its canonical encoding
// defines job_id = CID(canonical(manifest)).
type Manifest struct {
	SpecKind          SpecKind
	WasmCID           ipfscid.Cid // valid only when SpecKind == SpecKindCclWasm
	Payload           []byte      // used verbatim by SpecKindEcho
	Inputs            []ipfscid.Cid
	Outputs           []string
	RequiredResources ResourceRequirements
	MaxCostMana       uint64
	Deadline          time.Duration
	Submitter         identity.DID
	SubmittedAt       time.Time
	Nonce             uint64
}

// JobStateKind enumerates the job lifecycle's discriminant. Per SPEC_FULL
// §9's design note, job state is a single tagged variant with per-state
// payload rather than hidden behind polymorphism.
type JobStateKind string

const (
	JobStateSubmitted     JobStateKind = "Submitted"
	JobStateBiddingOpen   JobStateKind = "BiddingOpen"
	JobStateBiddingClosed JobStateKind = "BiddingClosed"
	JobStateAssigned      JobStateKind = "Assigned"
	JobStateExecuting     JobStateKind = "Executing"
	JobStateCompleted     JobStateKind = "Completed"
	JobStateFailed        JobStateKind = "Failed"
)

// FailureReason enumerates why a job terminated in JobStateFailed.
type FailureReason string

const (
	FailureNoBids          FailureReason = "NoBids"
	FailureNoEligible      FailureReason = "NoEligible"
	FailureTimeout         FailureReason = "Timeout"
	FailureAnchoringFailed FailureReason = "AnchoringFailed"
)

// JobState is the discriminated state value a Job carries. Only the fields
// relevant to Kind are meaningful; this mirrors a tagged union in a
// language that has one natively.
type JobState struct {
	Kind            JobStateKind
	Winner          identity.DID  // set from JobStateAssigned onward
	AssignedAt      time.Time     // set from JobStateAssigned onward
	ExecutionDeadline time.Time   // set from JobStateAssigned onward
	ReceiptCID      ipfscid.Cid   // set when JobStateCompleted
	FailureReason   FailureReason // set when JobStateFailed
}

// IsTerminal reports whether this state is absorbing (Completed or Failed).
func (s JobState) IsTerminal() bool {
	return s.Kind == JobStateCompleted || s.Kind == JobStateFailed
}

// Job is a unit of work tracked through the lifecycle state machine.
// job_id equals CID(manifest), guaranteeing deduplication and
// tamper-evidence: two manifests with identical canonical bytes produce the
// same job_id and are therefore the same job.
type Job struct {
	JobID       ipfscid.Cid
	Manifest    Manifest
	State       JobState
	CreatedAt   time.Time
	AssignedAt  time.Time
	CompletedAt time.Time
}

// Bid is a signed offer by a potential executor to perform a job.
type Bid struct {
	JobID             ipfscid.Cid
	Bidder            identity.DID
	PriceMana         uint64
	ClaimedResources  ResourceRequirements
	ValidUntil        time.Time
	Sig               []byte
}

// Receipt is a signed record of an execution attempt.
type Receipt struct {
	JobID      ipfscid.Cid
	Executor   identity.DID
	ResultCID  ipfscid.Cid
	CPUMs      uint64
	MemPeakMB  uint64
	Success    bool
	ExitCode   int32
	Sig        []byte
}
