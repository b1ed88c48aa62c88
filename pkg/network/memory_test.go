// Copyright 2025 ICN Federation
//
package network

import (
	"context"
	"testing"
	"time"

	"github.com/icn-federation/icn-core/pkg/signer"
)

func TestBroadcastDeliversToSubscriber(t *testing.T) {
	alice, err := signer.Generate()
	if err != nil {
		t.Fatalf("generate alice: %v", err)
	}
	bob, err := signer.Generate()
	if err != nil {
		t.Fatalf("generate bob: %v", err)
	}
	peers := NewMemoryNetwork([]signer.Signer{alice, bob})

	ctx := context.Background()
	ch, err := peers[bob.DID()].Subscribe(ctx, "jobs")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := peers[alice.DID()].Broadcast(ctx, "jobs", []byte("hello")); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	select {
	case msg := <-ch:
		if string(msg.Data) != "hello" {
			t.Fatalf("unexpected payload: %q", msg.Data)
		}
		if msg.From != alice.DID() {
			t.Fatalf("unexpected sender: %s", msg.From)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast delivery")
	}
}

func TestSendDeliversOnlyToTarget(t *testing.T) {
	alice, _ := signer.Generate()
	bob, _ := signer.Generate()
	carol, _ := signer.Generate()
	peers := NewMemoryNetwork([]signer.Signer{alice, bob, carol})

	ctx := context.Background()
	bobCh, err := peers[bob.DID()].SubscribeDirect(ctx)
	if err != nil {
		t.Fatalf("subscribe direct: %v", err)
	}
	carolCh, err := peers[carol.DID()].SubscribeDirect(ctx)
	if err != nil {
		t.Fatalf("subscribe direct: %v", err)
	}

	if err := peers[alice.DID()].Send(ctx, bob.DID(), []byte("psst")); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case msg := <-bobCh:
		if string(msg.Data) != "psst" {
			t.Fatalf("unexpected payload: %q", msg.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for direct delivery")
	}

	select {
	case <-carolCh:
		t.Fatal("carol should not have received the direct message")
	case <-time.After(50 * time.Millisecond):
	}
}
