// Copyright 2025 ICN Federation
//
package network

import (
	"context"

	"github.com/icn-federation/icn-core/pkg/identity"
	"github.com/icn-federation/icn-core/pkg/signer"
)

// Service is the Network Service contract (SPEC_FULL §4.5). Implementations
// offer no delivery guarantee: broadcast and send are best-effort,
// unordered, may drop, and may duplicate. The job state machine is built
// around that assumption via timers and bounded retries, never around
// network-level reliability.
type Service interface {
	LocalPeer() identity.DID
	Broadcast(ctx context.Context, topic string, msg []byte) error
	Send(ctx context.Context, peer identity.DID, msg []byte) error
	Subscribe(ctx context.Context, topic string) (<-chan InboundMessage, error)
	Close() error
}

// DirectTopic is the topic a peer's direct (Send-targeted) deliveries
// arrive on. Exported so callers that subscribe for their own inbound
// direct messages (e.g. jobfsm.Engine.Run) don't have to reconstruct the
// convention by hand.
func DirectTopic(peer identity.DID) string {
	return directTopic(peer)
}

// sign produces a signed Envelope ready for transport, shared by every
// Service implementation so the signing/verification idiom stays uniform
// regardless of transport.
func sign(s signer.Signer, kind MessageKind, payload []byte) (Envelope, error) {
	sig, err := s.Sign(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Kind:      kind,
		MsgBytes:  payload,
		SenderDID: s.DID(),
		SenderSig: sig,
	}, nil
}
