// Copyright 2025 ICN Federation
//
// Package identity implements DIDs (Decentralized Identifiers) backed by
// Ed25519 keypairs: string identities of the form did:<method>:<id> whose
// method-specific id encodes the holder's public key.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Method is the DID method this package implements. Other methods may
// exist on the wire but this implementation only binds to Ed25519 keys
// under this one.
const Method = "key"

// Prefix is the literal "did:key:" prefix every DID minted here carries.
const Prefix = "did:" + Method + ":"

// DID is a decentralized identifier string of the form did:<method>:<id>.
// Treated as an immutable value type once constructed.
type DID string

// ErrMalformedDID is returned when a string does not parse as a DID of the
// method this package supports.
var ErrMalformedDID = errors.New("identity: malformed DID")

// ErrKeyMismatch is returned when a DID's embedded public key does not
// match the key material presented alongside it.
var ErrKeyMismatch = errors.New("identity: DID does not match public key")

// FromPublicKey derives the DID corresponding to an Ed25519 public key.
// Encoding: did:key:<URL-safe no-pad base64 of the raw 32-byte key>.
func FromPublicKey(pub ed25519.PublicKey) DID {
	return DID(Prefix + base64.RawURLEncoding.EncodeToString(pub))
}

// PublicKey recovers the Ed25519 public key embedded in a DID, failing if
// the DID is malformed or not of this method.
func (d DID) PublicKey() (ed25519.PublicKey, error) {
	s := string(d)
	if !strings.HasPrefix(s, Prefix) {
		return nil, fmt.Errorf("%w: %q missing prefix %q", ErrMalformedDID, s, Prefix)
	}
	encoded := strings.TrimPrefix(s, Prefix)
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrMalformedDID, s, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %q: expected %d key bytes, got %d", ErrMalformedDID, s, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// Verify reports whether sig is a valid Ed25519 signature over msg for the
// key embedded in this DID.
func (d DID) Verify(msg, sig []byte) bool {
	pub, err := d.PublicKey()
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

// Validate reports whether s parses as a well-formed DID of this method.
func Validate(s string) error {
	_, err := DID(s).PublicKey()
	return err
}

// KeyPair is an Ed25519 keypair together with its derived DID. Used by key
// generation tooling and in-memory signer implementations; production
// signers should keep the private key isolated and never expose it outside
// the Signer contract (see pkg/signer).
type KeyPair struct {
	DID        DID
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh random Ed25519 keypair and its DID.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	return &KeyPair{
		DID:        FromPublicKey(pub),
		PublicKey:  pub,
		PrivateKey: priv,
	}, nil
}

// KeyPairFromPrivateKey reconstructs a KeyPair from a full 64-byte Ed25519
// private key (as persisted by cmd/icn-keygen), recovering the public key
// and DID from it rather than requiring them to be stored separately.
func KeyPairFromPrivateKey(priv ed25519.PrivateKey) (*KeyPair, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("identity: private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	pub := priv.Public().(ed25519.PublicKey)
	return &KeyPair{
		DID:        FromPublicKey(pub),
		PublicKey:  pub,
		PrivateKey: priv,
	}, nil
}

// KeyPairFromSeed deterministically derives a keypair from a 32-byte seed.
// Used by tests that need stable, reproducible identities (e.g. the
// fixed-seed round trip in did_test.go).
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("identity: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &KeyPair{
		DID:        FromPublicKey(pub),
		PublicKey:  pub,
		PrivateKey: priv,
	}, nil
}
