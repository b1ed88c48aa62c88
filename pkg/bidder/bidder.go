// Copyright 2025 ICN Federation
//
// Package bidder implements the Executor Bidder (SPEC_FULL §4.10): a
// long-running task that watches job announcements and submits priced
// bids for jobs this node is willing and able to execute.
package bidder

import (
	"context"
	"encoding/json"
	"fmt"

	ipfscid "github.com/ipfs/go-cid"

	"github.com/icn-federation/icn-core/pkg/jobmodel"
	"github.com/icn-federation/icn-core/pkg/network"
	"github.com/icn-federation/icn-core/pkg/signer"
	"github.com/icn-federation/icn-core/pkg/telemetry"
)

// ManifestLookup resolves an announced manifest CID to its content,
// typically backed by the local DAG store (possibly after fetching the
// block from a peer). ok=false means the manifest isn't retrievable yet;
// a later re-announcement may succeed.
type ManifestLookup func(ctx context.Context, manifestCID ipfscid.Cid) (jobmodel.Manifest, bool, error)

// PricingStrategy computes the price_mana a bid should offer for a
// manifest. DefaultPricingStrategy implements the spec's default:
// price = floor(0.5 * max_cost_mana).
type PricingStrategy func(m jobmodel.Manifest) uint64

// DefaultPricingStrategy returns floor(ratio * max_cost_mana).
func DefaultPricingStrategy(ratio float64) PricingStrategy {
	return func(m jobmodel.Manifest) uint64 {
		return uint64(ratio * float64(m.MaxCostMana))
	}
}

// CapabilityChecker reports whether the local node can satisfy a job's
// required resources, and if so what it would claim to offer.
type CapabilityChecker func(required jobmodel.ResourceRequirements) (claimed jobmodel.ResourceRequirements, ok bool)

// Config configures a Bidder's policy knobs.
type Config struct {
	Pricing   PricingStrategy
	Capacity  CapabilityChecker
	Telemetry *telemetry.Telemetry
}

// Bidder watches announcements on a Service and submits signed bids for
// eligible jobs.
type Bidder struct {
	net      network.Service
	signer   signer.Signer
	pricing  PricingStrategy
	capacity CapabilityChecker
	tel      *telemetry.Telemetry
}

// New constructs a Bidder bound to a node's Service and Signer.
func New(net network.Service, s signer.Signer, cfg Config) *Bidder {
	if cfg.Pricing == nil {
		cfg.Pricing = DefaultPricingStrategy(0.5)
	}
	return &Bidder{net: net, signer: s, pricing: cfg.Pricing, capacity: cfg.Capacity, tel: cfg.Telemetry}
}

// Run subscribes to job announcements and bids on each eligible one until
// ctx is cancelled. It is meant to run as one of a node's worker tasks
// (§5's "pool of worker tasks" model).
func (b *Bidder) Run(ctx context.Context, announcementTopic string, lookup ManifestLookup) error {
	inbound, err := b.net.Subscribe(ctx, announcementTopic)
	if err != nil {
		return fmt.Errorf("bidder: subscribe announcements: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			_ = b.handleAnnouncement(ctx, msg, announcementTopic, lookup) // best-effort: one bad message must not stop the loop
		}
	}
}

func (b *Bidder) handleAnnouncement(ctx context.Context, msg network.InboundMessage, topic string, lookup ManifestLookup) error {
	if len(msg.Data) < 1 {
		b.tel.AnnouncementDropped("empty_payload")
		return fmt.Errorf("bidder: empty announcement payload")
	}
	var ann network.MeshJobAnnouncement
	if err := json.Unmarshal(msg.Data[1:], &ann); err != nil {
		b.tel.AnnouncementDropped("decode_error")
		return fmt.Errorf("bidder: decode announcement: %w", err)
	}

	// Step 1: never bid on our own job.
	if ann.Submitter == b.signer.DID() {
		b.tel.AnnouncementDropped("own_job")
		return nil
	}

	manifest, ok, err := lookup(ctx, ann.ManifestCID)
	if err != nil {
		b.tel.AnnouncementDropped("manifest_lookup_error")
		return err
	}
	if !ok {
		b.tel.AnnouncementDropped("manifest_unavailable")
		return nil
	}

	// Step 3: capability check.
	var claimed jobmodel.ResourceRequirements
	if b.capacity != nil {
		var capOK bool
		claimed, capOK = b.capacity(manifest.RequiredResources)
		if !capOK {
			b.tel.AnnouncementDropped("insufficient_capacity")
			return nil
		}
	} else {
		claimed = manifest.RequiredResources
	}

	jobID, err := manifest.JobID()
	if err != nil {
		return fmt.Errorf("bidder: recompute job_id: %w", err)
	}

	bid := jobmodel.Bid{
		JobID:            jobID,
		Bidder:           b.signer.DID(),
		PriceMana:        b.pricing(manifest),
		ClaimedResources: claimed,
		ValidUntil:       manifest.SubmittedAt.Add(manifest.Deadline),
	}
	sig, err := b.signer.Sign(bid.SigningBytes())
	if err != nil {
		return fmt.Errorf("bidder: sign bid: %w", err)
	}
	bid.Sig = sig

	submission := network.BidSubmission{
		JobID:            bid.JobID,
		Bidder:           bid.Bidder,
		PriceMana:        bid.PriceMana,
		ClaimedResources: bid.ClaimedResources,
		ValidUntil:       bid.ValidUntil,
		Sig:              bid.Sig,
	}
	body, err := json.Marshal(submission)
	if err != nil {
		return fmt.Errorf("bidder: encode bid: %w", err)
	}
	wire := append([]byte{byte(network.KindBidSubmission)}, body...)

	// Step 5: direct to submitter preferred; fall back to broadcast if
	// direct delivery fails (e.g. the submitter is unreachable point to
	// point over this transport).
	if err := b.net.Send(ctx, ann.Submitter, wire); err != nil {
		return b.net.Broadcast(ctx, topic+"/bids", wire)
	}
	return nil
}
