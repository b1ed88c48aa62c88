// Copyright 2025 ICN Federation
//
package jobfsm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/icn-federation/icn-core/pkg/network"
)

// Run subscribes to this node's direct-delivery topic and the bid
// fallback topic, decoding inbound BidSubmission/SubmitReceipt wire
// messages and feeding them to HandleBid/HandleReceipt. It is meant to
// run as one of a node's worker tasks (§5's "pool of worker tasks"
// model), the submitter-side counterpart to bidder.Bidder.Run.
func (e *Engine) Run(ctx context.Context) error {
	if e.deps.Net == nil {
		return nil
	}
	direct, err := e.deps.Net.Subscribe(ctx, network.DirectTopic(e.deps.Signer.DID()))
	if err != nil {
		return fmt.Errorf("jobfsm: subscribe direct topic: %w", err)
	}
	fallback, err := e.deps.Net.Subscribe(ctx, topicBidFallback)
	if err != nil {
		return fmt.Errorf("jobfsm: subscribe bid fallback topic: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-direct:
			if !ok {
				direct = nil
				continue
			}
			e.handleInbound(ctx, msg)
		case msg, ok := <-fallback:
			if !ok {
				fallback = nil
				continue
			}
			e.handleInbound(ctx, msg)
		}
	}
}

// handleInbound dispatches one decoded InboundMessage by its leading
// MessageKind discriminator byte (§6). A malformed or unrecognized
// message is dropped silently, matching §4.5's drop-on-failure contract
// for the transport layer; jobfsm has no reason counter of its own for
// this since HandleBid/HandleReceipt already record rejections once the
// payload decodes.
func (e *Engine) handleInbound(ctx context.Context, msg network.InboundMessage) {
	if len(msg.Data) < 1 {
		return
	}
	kind := network.MessageKind(msg.Data[0])
	body := msg.Data[1:]

	switch kind {
	case network.KindBidSubmission:
		var sub network.BidSubmission
		if err := json.Unmarshal(body, &sub); err != nil {
			return
		}
		_ = e.HandleBid(ctx, sub.ToBid())
	case network.KindSubmitReceipt:
		var rcpt network.SubmitReceipt
		if err := json.Unmarshal(body, &rcpt); err != nil {
			return
		}
		_ = e.HandleReceipt(ctx, rcpt.ToReceipt())
	}
}
