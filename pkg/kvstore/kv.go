// Copyright 2025 ICN Federation
//
// Package kvstore defines the narrow key-value abstraction that the mana
// ledger, reputation store, and DAG store's persistent backends are built
// on, plus a cometbft-db-backed implementation of it.
//
// Grounded on the teacher's pkg/ledger.KV interface and its
// pkg/kvdb.KVAdapter wrapper: a KV interface decoupled from any specific
// storage engine, with a thin adapter translating a concrete engine's API
// onto it.
package kvstore

import (
	dbm "github.com/cometbft/cometbft-db"
)

// KV is the minimal persistence contract every durable store in this
// module is built on.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
}

// CometBFTAdapter adapts github.com/cometbft/cometbft-db's DB interface to
// KV. cometbft-db is used here purely as an embeddable key-value engine;
// it is unrelated to (and does not pull in) the CometBFT consensus/ABCI
// engine, which SPEC_FULL explicitly excludes as a non-goal.
type CometBFTAdapter struct {
	db dbm.DB
}

// NewCometBFTAdapter wraps an already-open cometbft-db database.
func NewCometBFTAdapter(db dbm.DB) *CometBFTAdapter {
	return &CometBFTAdapter{db: db}
}

func (a *CometBFTAdapter) Get(key []byte) ([]byte, error) {
	return a.db.Get(key)
}

// Set writes synchronously so that a crash immediately after a settlement
// cannot silently lose it — the same durability reasoning as the teacher's
// adapter, which always calls SetSync rather than the async Set.
func (a *CometBFTAdapter) Set(key, value []byte) error {
	return a.db.SetSync(key, value)
}
