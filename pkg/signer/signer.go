// Copyright 2025 ICN Federation
//
// Package signer implements the Signer contract (§4.6): sign, expose the
// public key, and expose the DID, with private key material isolated
// behind the interface.
package signer

import (
	"crypto/ed25519"
	"fmt"

	"github.com/icn-federation/icn-core/pkg/identity"
)

// Signer is implemented by every key-holding backend the core can be
// wired to. Production and test variants share this contract; the
// composition root decides which one a node runs with (see pkg/corecontext).
type Signer interface {
	// Sign returns an Ed25519 signature over msg.
	Sign(msg []byte) ([]byte, error)
	// PublicKey returns the raw Ed25519 public key.
	PublicKey() ed25519.PublicKey
	// DID returns the identity this signer speaks for. It MUST verify
	// signatures produced by Sign.
	DID() identity.DID
}

// Ed25519Signer is the in-process reference Signer: it holds a private key
// directly in memory. A production deployment might instead back this
// contract with an HSM or remote KMS, but the interface is identical.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	did  identity.DID
}

// NewEd25519Signer wraps an existing keypair as a Signer.
func NewEd25519Signer(kp *identity.KeyPair) *Ed25519Signer {
	return &Ed25519Signer{
		priv: kp.PrivateKey,
		pub:  kp.PublicKey,
		did:  kp.DID,
	}
}

// Generate creates a brand new Ed25519 identity and wraps it as a Signer.
func Generate() (*Ed25519Signer, error) {
	kp, err := identity.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("signer: generate: %w", err)
	}
	return NewEd25519Signer(kp), nil
}

func (s *Ed25519Signer) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, msg), nil
}

func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	return s.pub
}

func (s *Ed25519Signer) DID() identity.DID {
	return s.did
}

// Verify is a free function mirroring DID.Verify, kept here so callers that
// only import pkg/signer (not pkg/identity) have a verification entry
// point matching the Signer contract's vocabulary.
func Verify(did identity.DID, msg, sig []byte) bool {
	return did.Verify(msg, sig)
}
