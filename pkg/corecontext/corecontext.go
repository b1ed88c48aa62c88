// Copyright 2025 ICN Federation
//
// Package corecontext is the explicit composition root (SPEC_FULL §9/§10):
// one struct of interfaces built once by cmd/icn-node/main.go and passed
// by reference into the job state machine and executor bidder. No
// package-level mutable singletons exist anywhere in this module;
// everything that needs shared state receives a *CoreContext.
package corecontext

import (
	"context"
	"fmt"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/icn-federation/icn-core/pkg/bidder"
	"github.com/icn-federation/icn-core/pkg/config"
	"github.com/icn-federation/icn-core/pkg/dag"
	"github.com/icn-federation/icn-core/pkg/evaluator"
	"github.com/icn-federation/icn-core/pkg/identity"
	"github.com/icn-federation/icn-core/pkg/jobfsm"
	"github.com/icn-federation/icn-core/pkg/kvstore"
	"github.com/icn-federation/icn-core/pkg/mana"
	"github.com/icn-federation/icn-core/pkg/network"
	"github.com/icn-federation/icn-core/pkg/reputation"
	"github.com/icn-federation/icn-core/pkg/signer"
	"github.com/icn-federation/icn-core/pkg/telemetry"
	"github.com/icn-federation/icn-core/pkg/wasmhost"
)

// CoreContext is the one place every subsystem's concrete backend is
// decided. Per SPEC_FULL §9: "the core never chooses between stub and
// real; the composition root does."
type CoreContext struct {
	Config     *config.Config
	Mana       mana.Ledger
	Reputation reputation.Store
	DAG        dag.Store
	Net        network.Service
	Signer     signer.Signer
	WasmHost   *wasmhost.Host
	Telemetry  *telemetry.Telemetry

	Engine *jobfsm.Engine
	Bidder *bidder.Bidder
}

// Build wires a CoreContext from cfg and a local signer's keypair. sharedNet
// lets tests and single-process demos pass an already-constructed
// in-memory network fabric (see network.NewMemoryNetwork); production
// deployments pass nil and get a LibP2PService instead.
func Build(ctx context.Context, cfg *config.Config, kp *identity.KeyPair, sharedNet network.Service) (*CoreContext, error) {
	s := signer.NewEd25519Signer(kp)
	tel := telemetry.New()

	manaLedger, repStore, dagStore, err := buildBackends(cfg)
	if err != nil {
		return nil, fmt.Errorf("corecontext: build backends: %w", err)
	}

	net := sharedNet
	if net == nil {
		libp2pNet, err := network.NewLibP2PService(network.LibP2PConfig{
			ListenAddr:     cfg.ListenP2PAddr,
			BootstrapPeers: cfg.BootstrapPeers,
		}, s)
		if err != nil {
			return nil, fmt.Errorf("corecontext: start p2p network: %w", err)
		}
		net = libp2pNet
	}

	host, err := wasmhost.NewHost(ctx)
	if err != nil {
		return nil, fmt.Errorf("corecontext: start wasm host: %w", err)
	}

	engineCfg := jobfsm.Config{
		BiddingWindow:          cfg.BiddingWindow(),
		ExecutionDeadline:      cfg.ExecutionDeadline(),
		MinBids:                cfg.MinBids,
		MaxBids:                cfg.MaxBids,
		GraceAfterDeadline:     cfg.GraceAfterDeadline(),
		ReputationSuccessDelta: cfg.ReputationSuccessDelta,
		ReputationFailureDelta: cfg.ReputationFailureDelta,
		ReputationTimeoutDelta: cfg.ReputationTimeoutPenalty,
		AnchorRetryBase:        jobfsm.DefaultConfig().AnchorRetryBase,
		AnchorRetryMax:         jobfsm.DefaultConfig().AnchorRetryMax,
		AllowSelfBid:           cfg.AllowSelfBid,
	}
	engine := jobfsm.NewEngine(engineCfg, jobfsm.Deps{
		Mana:       manaLedger,
		Reputation: repStore,
		DAG:        dagStore,
		Net:        net,
		Signer:     s,
		Weights:    evaluator.Weights{Alpha: cfg.EvaluatorAlpha, Beta: cfg.EvaluatorBeta, Gamma: cfg.EvaluatorGamma},
		Telemetry:  tel,
	})

	b := bidder.New(net, s, bidder.Config{
		Pricing:   bidder.DefaultPricingStrategy(cfg.DefaultBidRatio),
		Telemetry: tel,
	})

	return &CoreContext{
		Config:     cfg,
		Mana:       manaLedger,
		Reputation: repStore,
		DAG:        dagStore,
		Net:        net,
		Signer:     s,
		WasmHost:   host,
		Telemetry:  tel,
		Engine:     engine,
		Bidder:     b,
	}, nil
}

// buildBackends constructs the mana/reputation/DAG backends per
// cfg.BackendKind, matching §6's three-tier persistence contract
// (memory for tests, KV for single-node, SQL for production).
func buildBackends(cfg *config.Config) (mana.Ledger, reputation.Store, dag.Store, error) {
	switch cfg.BackendKind {
	case "memory":
		repStore := reputation.NewInMemoryStore()
		manaLedger := mana.NewInMemoryLedger(cfg.ManaCapacityDefault, cfg.ManaRefillRate, repStore, mana.LinearRefillCurve)
		dagStore := dag.NewMemoryStore()
		return manaLedger, repStore, dagStore, nil

	case "kv":
		db, err := dbm.NewGoLevelDB("icn", cfg.KVStorePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open goleveldb at %s: %w", cfg.KVStorePath, err)
		}
		kv := kvstore.NewCometBFTAdapter(db)
		repStore := reputation.NewKVStore(kv)
		manaLedger := mana.NewKVLedger(kv, cfg.ManaCapacityDefault, cfg.ManaRefillRate, repStore, mana.LinearRefillCurve)
		dagStore := dag.NewKVStore(kv)
		return manaLedger, repStore, dagStore, nil

	case "sql":
		dagStore, err := dag.NewSQLStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sql dag store: %w", err)
		}
		// Mana and reputation still use the kv tier even under backend_kind=sql,
		// since only the DAG store has a SQL-backed implementation in this repo
		// (see SPEC_FULL §4.2/§4.3's two-tier, not three-tier, persistence need).
		db, err := dbm.NewGoLevelDB("icn", cfg.KVStorePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open goleveldb at %s: %w", cfg.KVStorePath, err)
		}
		kv := kvstore.NewCometBFTAdapter(db)
		repStore := reputation.NewKVStore(kv)
		manaLedger := mana.NewKVLedger(kv, cfg.ManaCapacityDefault, cfg.ManaRefillRate, repStore, mana.LinearRefillCurve)
		return manaLedger, repStore, dagStore, nil

	default:
		return nil, nil, nil, fmt.Errorf("unrecognized backend_kind %q", cfg.BackendKind)
	}
}

// Close releases long-lived resources (wasm runtime, network service).
func (c *CoreContext) Close(ctx context.Context) error {
	if c.WasmHost != nil {
		if err := c.WasmHost.Close(ctx); err != nil {
			return err
		}
	}
	if c.Net != nil {
		return c.Net.Close()
	}
	return nil
}
