// Copyright 2025 ICN Federation
//
// Package config loads the mesh job runtime's tunable parameters
// (SPEC_FULL §6/§10): defaults, then an optional YAML file, then
// environment variable overrides. Grounded on the teacher's
// pkg/config/config.go Load()/Validate() split and its getEnv-family
// helpers, rewritten against this spec's recognized options instead of
// the teacher's Accumulate/Ethereum/Firestore/CometBFT fields.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable named in SPEC_FULL §6's configuration table.
type Config struct {
	// Server configuration.
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	// Job state machine (§4.8).
	BiddingWindowMs      int64 `yaml:"bidding_window_ms"`
	MinBids              int   `yaml:"min_bids"`
	MaxBids              int   `yaml:"max_bids"`
	ExecutionDeadlineMs  int64 `yaml:"execution_deadline_ms"`
	GraceAfterDeadlineMs int64 `yaml:"grace_after_deadline_ms"`
	AllowSelfBid         bool  `yaml:"allow_self_bid"`

	// Bid evaluator (§4.7).
	EvaluatorAlpha float64 `yaml:"evaluator_alpha"`
	EvaluatorBeta  float64 `yaml:"evaluator_beta"`
	EvaluatorGamma float64 `yaml:"evaluator_gamma"`

	// Executor bidder (§4.10).
	DefaultBidRatio float64 `yaml:"default_bid_ratio"`

	// Mana ledger (§4.2).
	ManaRefillRate      float64 `yaml:"mana_refill_rate"`
	ManaCapacityDefault uint64  `yaml:"mana_capacity_default"`

	// Reputation store (§4.3).
	ReputationSuccessDelta   int64 `yaml:"reputation_success_delta"`
	ReputationFailureDelta   int64 `yaml:"reputation_failure_delta"`
	ReputationTimeoutPenalty int64 `yaml:"reputation_timeout_penalty"`

	// WASM host runtime (§4.11).
	WasmFuelPerMs        uint64 `yaml:"wasm_fuel_per_ms"`
	WasmMemCapMB         uint64 `yaml:"wasm_mem_cap_mb"`
	WasmMaxHostCallBytes uint64 `yaml:"wasm_max_host_call_bytes"`

	// Persistence backend selection.
	DatabaseURL string `yaml:"database_url"`
	KVStorePath string `yaml:"kv_store_path"`
	BackendKind string `yaml:"backend_kind"` // "memory", "kv", or "sql"

	// Networking (§4.5).
	ListenP2PAddr  string   `yaml:"listen_p2p_addr"`
	BootstrapPeers []string `yaml:"bootstrap_peers"`

	// Identity.
	Ed25519KeyPath string `yaml:"ed25519_key_path"`

	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the spec's documented defaults (SPEC_FULL §6).
func DefaultConfig() Config {
	return Config{
		ListenAddr:  "0.0.0.0:8080",
		MetricsAddr: "0.0.0.0:9090",

		BiddingWindowMs:      10000,
		MinBids:              1,
		MaxBids:              64,
		ExecutionDeadlineMs:  60000,
		GraceAfterDeadlineMs: 5000,
		AllowSelfBid:         false,

		EvaluatorAlpha: 1.0,
		EvaluatorBeta:  0.01,
		EvaluatorGamma: 0.5,

		DefaultBidRatio: 0.5,

		ManaRefillRate:      10.0,
		ManaCapacityDefault: 1000,

		ReputationSuccessDelta:   1,
		ReputationFailureDelta:   1,
		ReputationTimeoutPenalty: 1,

		WasmFuelPerMs:        1000,
		WasmMemCapMB:         64,
		WasmMaxHostCallBytes: 1 << 20,

		BackendKind: "memory",

		ListenP2PAddr: "/ip4/0.0.0.0/tcp/0",

		LogLevel: "info",
	}
}

// Load builds a Config from defaults, overlaid by yamlPath (if non-empty
// and present), overlaid by environment variables. Mirrors the teacher's
// defaults-then-overrides Load() shape.
func Load(yamlPath string) (*Config, error) {
	cfg := DefaultConfig()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", yamlPath, err)
		}
	}

	cfg.ListenAddr = getEnv("ICN_LISTEN_ADDR", cfg.ListenAddr)
	cfg.MetricsAddr = getEnv("ICN_METRICS_ADDR", cfg.MetricsAddr)

	cfg.BiddingWindowMs = getEnvInt64("ICN_BIDDING_WINDOW_MS", cfg.BiddingWindowMs)
	cfg.MinBids = getEnvInt("ICN_MIN_BIDS", cfg.MinBids)
	cfg.MaxBids = getEnvInt("ICN_MAX_BIDS", cfg.MaxBids)
	cfg.ExecutionDeadlineMs = getEnvInt64("ICN_EXECUTION_DEADLINE_MS", cfg.ExecutionDeadlineMs)
	cfg.GraceAfterDeadlineMs = getEnvInt64("ICN_GRACE_AFTER_DEADLINE_MS", cfg.GraceAfterDeadlineMs)
	cfg.AllowSelfBid = getEnvBool("ICN_ALLOW_SELF_BID", cfg.AllowSelfBid)

	cfg.EvaluatorAlpha = getEnvFloat("ICN_EVALUATOR_ALPHA", cfg.EvaluatorAlpha)
	cfg.EvaluatorBeta = getEnvFloat("ICN_EVALUATOR_BETA", cfg.EvaluatorBeta)
	cfg.EvaluatorGamma = getEnvFloat("ICN_EVALUATOR_GAMMA", cfg.EvaluatorGamma)

	cfg.DefaultBidRatio = getEnvFloat("ICN_DEFAULT_BID_RATIO", cfg.DefaultBidRatio)

	cfg.ManaRefillRate = getEnvFloat("ICN_MANA_REFILL_RATE", cfg.ManaRefillRate)
	cfg.ManaCapacityDefault = getEnvUint64("ICN_MANA_CAPACITY_DEFAULT", cfg.ManaCapacityDefault)

	cfg.ReputationSuccessDelta = getEnvInt64("ICN_REPUTATION_SUCCESS_DELTA", cfg.ReputationSuccessDelta)
	cfg.ReputationFailureDelta = getEnvInt64("ICN_REPUTATION_FAILURE_DELTA", cfg.ReputationFailureDelta)
	cfg.ReputationTimeoutPenalty = getEnvInt64("ICN_REPUTATION_TIMEOUT_PENALTY", cfg.ReputationTimeoutPenalty)

	cfg.WasmFuelPerMs = getEnvUint64("ICN_WASM_FUEL_PER_MS", cfg.WasmFuelPerMs)
	cfg.WasmMemCapMB = getEnvUint64("ICN_WASM_MEM_CAP_MB", cfg.WasmMemCapMB)
	cfg.WasmMaxHostCallBytes = getEnvUint64("ICN_WASM_MAX_HOST_CALL_BYTES", cfg.WasmMaxHostCallBytes)

	cfg.DatabaseURL = getEnv("ICN_DATABASE_URL", cfg.DatabaseURL)
	cfg.KVStorePath = getEnv("ICN_KV_STORE_PATH", cfg.KVStorePath)
	cfg.BackendKind = getEnv("ICN_BACKEND_KIND", cfg.BackendKind)

	cfg.ListenP2PAddr = getEnv("ICN_LISTEN_P2P_ADDR", cfg.ListenP2PAddr)
	cfg.BootstrapPeers = parsePeerList(getEnv("ICN_BOOTSTRAP_PEERS", strings.Join(cfg.BootstrapPeers, ",")))

	cfg.Ed25519KeyPath = getEnv("ICN_ED25519_KEY_PATH", cfg.Ed25519KeyPath)
	cfg.LogLevel = getEnv("ICN_LOG_LEVEL", cfg.LogLevel)

	return &cfg, nil
}

// Validate checks structural consistency of recognized options, per
// §6's configuration contract (min_bids/max_bids bounds, positive
// windows, a recognized backend kind).
func (c *Config) Validate() error {
	var errs []string

	if c.MinBids < 1 {
		errs = append(errs, "min_bids must be >= 1")
	}
	if c.MaxBids < c.MinBids {
		errs = append(errs, "max_bids must be >= min_bids")
	}
	if c.BiddingWindowMs <= 0 {
		errs = append(errs, "bidding_window_ms must be positive")
	}
	if c.ExecutionDeadlineMs <= 0 {
		errs = append(errs, "execution_deadline_ms must be positive")
	}
	if c.DefaultBidRatio <= 0 || c.DefaultBidRatio > 1 {
		errs = append(errs, "default_bid_ratio must be in (0, 1]")
	}
	switch c.BackendKind {
	case "memory", "kv", "sql":
	default:
		errs = append(errs, fmt.Sprintf("backend_kind %q is not one of memory|kv|sql", c.BackendKind))
	}
	if c.BackendKind == "sql" && c.DatabaseURL == "" {
		errs = append(errs, "database_url is required when backend_kind=sql")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// BiddingWindow, ExecutionDeadline, and GraceAfterDeadline convert the
// millisecond config fields into time.Duration for jobfsm.Config.
func (c *Config) BiddingWindow() time.Duration {
	return time.Duration(c.BiddingWindowMs) * time.Millisecond
}

func (c *Config) ExecutionDeadline() time.Duration {
	return time.Duration(c.ExecutionDeadlineMs) * time.Millisecond
}

func (c *Config) GraceAfterDeadline() time.Duration {
	return time.Duration(c.GraceAfterDeadlineMs) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func parsePeerList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
