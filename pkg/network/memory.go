// Copyright 2025 ICN Federation
//
package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/icn-federation/icn-core/pkg/identity"
	"github.com/icn-federation/icn-core/pkg/signer"
)

// bus is the shared medium a set of in-memory peers publish to and
// subscribe from. It models the lossy, unordered, best-effort delivery
// the contract requires. It never duplicates, and drops a message only for
// a subscriber whose buffer is full; tests that want to exercise other
// loss inject it themselves above this layer.
type bus struct {
	mu   sync.Mutex
	subs map[string][]chan InboundMessage
}

func newBus() *bus {
	return &bus{subs: make(map[string][]chan InboundMessage)}
}

func (b *bus) subscribe(topic string) <-chan InboundMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan InboundMessage, 64)
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

func (b *bus) publish(topic string, msg InboundMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- msg:
		default:
			// Slow subscriber: drop rather than block, matching the
			// contract's "best-effort, may drop" delivery model.
		}
	}
}

// MemoryService is an in-process Service for tests and single-binary
// deployments: every peer sharing the same *bus sees every broadcast.
type MemoryService struct {
	signer signer.Signer
	bus    *bus
	peers  map[identity.DID]*MemoryService
	peersMu *sync.Mutex
}

// NewMemoryNetwork builds a connected set of in-memory peers sharing one
// bus, keyed by signer DID, for wiring into single-process tests.
func NewMemoryNetwork(signers []signer.Signer) map[identity.DID]*MemoryService {
	b := newBus()
	peers := make(map[identity.DID]*MemoryService)
	var mu sync.Mutex
	for _, s := range signers {
		svc := &MemoryService{signer: s, bus: b, peers: peers, peersMu: &mu}
		peers[s.DID()] = svc
	}
	return peers
}

func (m *MemoryService) LocalPeer() identity.DID { return m.signer.DID() }

func (m *MemoryService) Broadcast(_ context.Context, topic string, msg []byte) error {
	env, err := sign(m.signer, 0, msg)
	if err != nil {
		return fmt.Errorf("network: sign broadcast: %w", err)
	}
	m.bus.publish(topic, InboundMessage{From: env.SenderDID, Topic: topic, Data: env.MsgBytes})
	return nil
}

func (m *MemoryService) Send(_ context.Context, peer identity.DID, msg []byte) error {
	env, err := sign(m.signer, 0, msg)
	if err != nil {
		return fmt.Errorf("network: sign send: %w", err)
	}
	m.peersMu.Lock()
	target, ok := m.peers[peer]
	m.peersMu.Unlock()
	if !ok {
		return fmt.Errorf("network: unknown peer %s", peer)
	}
	target.bus.publish(directTopic(peer), InboundMessage{From: env.SenderDID, Topic: directTopic(peer), Data: env.MsgBytes})
	return nil
}

func (m *MemoryService) Subscribe(ctx context.Context, topic string) (<-chan InboundMessage, error) {
	return m.bus.subscribe(topic), nil
}

// SubscribeDirect listens for direct Send deliveries to this peer.
func (m *MemoryService) SubscribeDirect(ctx context.Context) (<-chan InboundMessage, error) {
	return m.bus.subscribe(directTopic(m.LocalPeer())), nil
}

func (m *MemoryService) Close() error { return nil }

func directTopic(peer identity.DID) string {
	return "direct/" + string(peer)
}
