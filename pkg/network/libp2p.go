// Copyright 2025 ICN Federation
//
package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	libp2phost "github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/sirupsen/logrus"

	"github.com/icn-federation/icn-core/pkg/identity"
	"github.com/icn-federation/icn-core/pkg/signer"
)

// LibP2PService is the production Service, grounded on
// orbas1-Synnergy/core/network.go's host+GossipSub construction: a libp2p
// host joins GossipSub topics lazily and dials the configured bootstrap
// peers at construction; those dials do not fill in the peers map.
type LibP2PService struct {
	host   libp2phost.Host
	pubsub *pubsub.PubSub
	signer signer.Signer

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
	subs   map[string]*pubsub.Subscription

	peerMu sync.RWMutex
	peers  map[identity.DID]peer.AddrInfo

	ctx    context.Context
	cancel context.CancelFunc
}

// LibP2PConfig configures a LibP2PService at construction.
type LibP2PConfig struct {
	ListenAddr     string
	BootstrapPeers []string
}

// NewLibP2PService creates and bootstraps a libp2p-backed network node.
func NewLibP2PService(cfg LibP2PConfig, s signer.Signer) (*LibP2PService, error) {
	ctx, cancel := context.WithCancel(context.Background())

	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.ListenAddr))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("network: create host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("network: create gossipsub: %w", err)
	}

	svc := &LibP2PService{
		host:   h,
		pubsub: ps,
		signer: s,
		topics: make(map[string]*pubsub.Topic),
		subs:   make(map[string]*pubsub.Subscription),
		peers:  make(map[identity.DID]peer.AddrInfo),
		ctx:    ctx,
		cancel: cancel,
	}

	if err := svc.dialSeeds(cfg.BootstrapPeers); err != nil {
		logrus.Warnf("network: bootstrap dial warning: %v", err)
	}

	return svc, nil
}

func (s *LibP2PService) dialSeeds(seeds []string) error {
	var firstErr error
	for _, addr := range seeds {
		pi, err := peer.AddrInfoFromString(addr)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("network: invalid bootstrap addr %s: %w", addr, err)
			}
			continue
		}
		if err := s.host.Connect(s.ctx, *pi); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("network: connect %s: %w", addr, err)
			}
			continue
		}
		logrus.Infof("network: bootstrapped to %s", addr)
	}
	return firstErr
}

func (s *LibP2PService) LocalPeer() identity.DID { return s.signer.DID() }

func (s *LibP2PService) topicFor(name string) (*pubsub.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[name]
	if ok {
		return t, nil
	}
	t, err := s.pubsub.Join(name)
	if err != nil {
		return nil, fmt.Errorf("network: join topic %s: %w", name, err)
	}
	s.topics[name] = t
	return t, nil
}

func (s *LibP2PService) Broadcast(ctx context.Context, topic string, msg []byte) error {
	env, err := sign(s.signer, 0, msg)
	if err != nil {
		return fmt.Errorf("network: sign broadcast: %w", err)
	}
	t, err := s.topicFor(topic)
	if err != nil {
		return err
	}
	wire, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	if err := t.Publish(ctx, wire); err != nil {
		return fmt.Errorf("network: publish topic %s: %w", topic, err)
	}
	return nil
}

// Send delivers msg directly over a dedicated per-peer topic, since
// libp2p-pubsub has no native unicast primitive; this keeps the transport
// uniform with Broadcast while still only reaching one peer in practice
// (only that peer's handler acts on it).
func (s *LibP2PService) Send(ctx context.Context, peerDID identity.DID, msg []byte) error {
	return s.Broadcast(ctx, directTopic(peerDID), msg)
}

func (s *LibP2PService) Subscribe(ctx context.Context, topic string) (<-chan InboundMessage, error) {
	s.mu.Lock()
	sub, ok := s.subs[topic]
	if !ok {
		t, err := s.topicFor(topic)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		sub, err = t.Subscribe()
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("network: subscribe topic %s: %w", topic, err)
		}
		s.subs[topic] = sub
	}
	s.mu.Unlock()

	out := make(chan InboundMessage)
	go func() {
		defer close(out)
		for {
			raw, err := sub.Next(s.ctx)
			if err != nil {
				logrus.Debugf("network: subscription %s ended: %v", topic, err)
				return
			}
			env, err := decodeEnvelope(raw.Data)
			if err != nil {
				continue
			}
			if !env.Verify() {
				logrus.Warnf("network: dropped unverified message on %s from %s", topic, env.SenderDID)
				continue
			}
			select {
			case out <- InboundMessage{From: env.SenderDID, Topic: topic, Data: env.MsgBytes}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *LibP2PService) Close() error {
	s.cancel()
	return s.host.Close()
}
