// Copyright 2025 ICN Federation
//
package jobfsm

import "errors"

// Sentinel and typed errors implementing the §7 error taxonomy. Matched
// with errors.Is/errors.As at call sites rather than returned as
// untyped (nil, nil), per the teacher's documented move away from that
// idiom.
var (
	ErrInvalidManifest     = errors.New("jobfsm: invalid manifest")
	ErrInvalidSignature    = errors.New("jobfsm: invalid signature")
	ErrUnknownJob          = errors.New("jobfsm: unknown job")
	ErrUnknownBidder       = errors.New("jobfsm: unknown bidder")
	ErrDuplicateSubmission = errors.New("jobfsm: duplicate submission")
	ErrNoBids              = errors.New("jobfsm: no bids received")
	ErrNoEligibleBid       = errors.New("jobfsm: no eligible bid")
	ErrStateConflict       = errors.New("jobfsm: transition attempted from incompatible state")
	ErrUnavailable         = errors.New("jobfsm: backend unavailable")
)

// InsufficientManaError mirrors mana.InsufficientManaError at the
// submission boundary so callers of SubmitJob can type-switch without
// importing pkg/mana directly.
type InsufficientManaError struct {
	Required  uint64
	Available uint64
}

func (e *InsufficientManaError) Error() string {
	return "jobfsm: insufficient mana"
}
