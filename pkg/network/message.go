// Copyright 2025 ICN Federation
//
// Package network implements the Network Service contract (SPEC_FULL
// §4.5): signed pub/sub broadcast, direct messaging, and peer identity.
// It ships an in-memory implementation for tests and a libp2p/GossipSub
// implementation for real deployments, grounded on
// orbas1-Synnergy/core/network.go.
package network

import (
	"time"

	ipfscid "github.com/ipfs/go-cid"

	"github.com/icn-federation/icn-core/pkg/identity"
	"github.com/icn-federation/icn-core/pkg/jobmodel"
)

// MessageKind discriminates the four wire variants of SPEC_FULL §6.
type MessageKind byte

const (
	KindMeshJobAnnouncement    MessageKind = 1
	KindBidSubmission          MessageKind = 2
	KindJobAssignmentNotification MessageKind = 3
	KindSubmitReceipt          MessageKind = 4
)

// MeshJobAnnouncement announces a newly submitted job to the mesh.
type MeshJobAnnouncement struct {
	ManifestCID ipfscid.Cid
	Submitter   identity.DID
	SubmittedAt time.Time
}

// BidSubmission carries a signed bid to the job's submitter/evaluator.
type BidSubmission struct {
	JobID            ipfscid.Cid
	Bidder           identity.DID
	PriceMana        uint64
	ClaimedResources jobmodel.ResourceRequirements
	ValidUntil       time.Time
	Sig              []byte
}

// ToBid converts the wire form back into the domain Bid jobfsm.Engine
// operates on.
func (s BidSubmission) ToBid() jobmodel.Bid {
	return jobmodel.Bid{
		JobID:            s.JobID,
		Bidder:           s.Bidder,
		PriceMana:        s.PriceMana,
		ClaimedResources: s.ClaimedResources,
		ValidUntil:       s.ValidUntil,
		Sig:              s.Sig,
	}
}

// JobAssignmentNotification informs the mesh which bidder won a job.
type JobAssignmentNotification struct {
	JobID      ipfscid.Cid
	Winner     identity.DID
	AssignedAt time.Time
	Deadline   time.Time
	Sig        []byte
}

// SubmitReceipt carries a signed execution receipt from the executor back
// to the job's submitter, mirroring jobmodel.Receipt field-for-field the
// same way BidSubmission mirrors jobmodel.Bid.
type SubmitReceipt struct {
	JobID     ipfscid.Cid
	Executor  identity.DID
	ResultCID ipfscid.Cid
	CPUMs     uint64
	MemPeakMB uint64
	Success   bool
	ExitCode  int32
	Sig       []byte
}

// ToReceipt converts the wire form back into the domain Receipt
// jobfsm.Engine operates on.
func (s SubmitReceipt) ToReceipt() jobmodel.Receipt {
	return jobmodel.Receipt{
		JobID:     s.JobID,
		Executor:  s.Executor,
		ResultCID: s.ResultCID,
		CPUMs:     s.CPUMs,
		MemPeakMB: s.MemPeakMB,
		Success:   s.Success,
		ExitCode:  s.ExitCode,
		Sig:       s.Sig,
	}
}

// Envelope wraps every message with sender identity and signature, as
// required by SPEC_FULL §4.5: inbound messages are verified before
// delivery, and unverified messages are dropped silently by the
// transport (with an observability counter increment left to the
// caller, since Envelope itself does no I/O).
type Envelope struct {
	Kind      MessageKind
	MsgBytes  []byte
	SenderDID identity.DID
	SenderSig []byte
}

// Verify checks the envelope's signature against its sender's DID.
func (e Envelope) Verify() bool {
	return e.SenderDID.Verify(e.MsgBytes, e.SenderSig)
}

// InboundMessage is what Subscribe delivers once an envelope has
// verified successfully.
type InboundMessage struct {
	From  identity.DID
	Topic string
	Data  []byte
}
