// Copyright 2025 ICN Federation
//
package bidder

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	ipfscid "github.com/ipfs/go-cid"

	"github.com/icn-federation/icn-core/pkg/identity"
	"github.com/icn-federation/icn-core/pkg/jobmodel"
	"github.com/icn-federation/icn-core/pkg/network"
	"github.com/icn-federation/icn-core/pkg/signer"
)

func TestBidderSubmitsDirectBidForEligibleAnnouncement(t *testing.T) {
	submitterKP, _ := identity.GenerateKeyPair()
	executorKP, _ := identity.GenerateKeyPair()
	submitter := signer.NewEd25519Signer(submitterKP)
	executor := signer.NewEd25519Signer(executorKP)

	peers := network.NewMemoryNetwork([]signer.Signer{submitter, executor})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	direct, err := peers[submitter.DID()].SubscribeDirect(ctx)
	if err != nil {
		t.Fatalf("subscribe direct: %v", err)
	}

	manifest := jobmodel.Manifest{
		SpecKind:    jobmodel.SpecKindEcho,
		Payload:     []byte("hi"),
		MaxCostMana: 40,
		Deadline:    time.Minute,
		Submitter:   submitter.DID(),
		SubmittedAt: time.Now(),
		RequiredResources: jobmodel.ResourceRequirements{
			CPUCores: 1, MemoryMB: 32, StorageMB: 8,
		},
	}
	jobID, err := manifest.JobID()
	if err != nil {
		t.Fatalf("job id: %v", err)
	}

	b := New(peers[executor.DID()], executor, Config{})
	lookup := func(_ context.Context, cid ipfscid.Cid) (jobmodel.Manifest, bool, error) {
		if cid != jobID {
			return jobmodel.Manifest{}, false, nil
		}
		return manifest, true, nil
	}

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, "jobs", lookup) }()

	ann := network.MeshJobAnnouncement{ManifestCID: jobID, Submitter: submitter.DID(), SubmittedAt: manifest.SubmittedAt}
	body, _ := json.Marshal(ann)
	wire := append([]byte{byte(network.KindMeshJobAnnouncement)}, body...)
	if err := peers[submitter.DID()].Broadcast(ctx, "jobs", wire); err != nil {
		t.Fatalf("broadcast announcement: %v", err)
	}

	select {
	case msg := <-direct:
		var sub network.BidSubmission
		if err := json.Unmarshal(msg.Data[1:], &sub); err != nil {
			t.Fatalf("decode bid: %v", err)
		}
		if sub.PriceMana != 20 {
			t.Fatalf("expected default 0.5 ratio price 20, got %d", sub.PriceMana)
		}
		if sub.Bidder != executor.DID() {
			t.Fatalf("unexpected bidder: %s", sub.Bidder)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for direct bid delivery")
	}
	cancel()
	<-done
}
