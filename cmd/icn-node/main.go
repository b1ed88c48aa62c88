// Copyright 2025 ICN Federation
//
// Command icn-node is the mesh job runtime's composition-root binary.
// Grounded on the teacher's top-level main.go: CLI flags, config load,
// a health endpoint, signal-driven graceful shutdown. The teacher wires
// CometBFT/Ethereum/Accumulate/Firestore clients by hand in main(); here
// that whole wiring job belongs to pkg/corecontext.Build, so main() only
// loads config, resolves identity, builds the CoreContext, and serves.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ipfscid "github.com/ipfs/go-cid"

	"github.com/icn-federation/icn-core/pkg/bidder"
	"github.com/icn-federation/icn-core/pkg/config"
	"github.com/icn-federation/icn-core/pkg/corecontext"
	"github.com/icn-federation/icn-core/pkg/identity"
	"github.com/icn-federation/icn-core/pkg/jobfsm"
	"github.com/icn-federation/icn-core/pkg/jobmodel"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file (optional, env vars always apply)")
		showHelp   = flag.Bool("help", false, "show help message")
	)
	flag.Parse()

	if *showHelp {
		flag.Usage()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("validate configuration", err)
	}

	kp, err := loadOrGenerateIdentity(cfg)
	if err != nil {
		fatal("resolve node identity", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cc, err := corecontext.Build(ctx, cfg, kp, nil)
	if err != nil {
		fatal("build core context", err)
	}
	cc.Telemetry.Log.WithField("did", string(kp.DID)).Info("node identity resolved")

	metricsSrv := cc.Telemetry.StartMetricsServer(cfg.MetricsAddr)
	cc.Telemetry.Log.WithField("addr", cfg.MetricsAddr).Info("metrics server listening")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"did":    string(kp.DID),
		})
	})

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	go func() {
		cc.Telemetry.Log.WithField("addr", cfg.ListenAddr).Info("http api listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			cc.Telemetry.Log.WithError(err).Error("http server failed")
		}
	}()

	go func() {
		if err := cc.Bidder.Run(ctx, jobfsm.TopicAnnouncements, manifestLookup(cc)); err != nil && ctx.Err() == nil {
			cc.Telemetry.Log.WithError(err).Error("bidder loop stopped")
		}
	}()
	go func() {
		if err := cc.Engine.Run(ctx); err != nil && ctx.Err() == nil {
			cc.Telemetry.Log.WithError(err).Error("engine subscription loop stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cc.Telemetry.Log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		cc.Telemetry.Log.WithError(err).Error("http server shutdown error")
	}
	if err := cc.Telemetry.ShutdownMetricsServer(shutdownCtx, metricsSrv); err != nil {
		cc.Telemetry.Log.WithError(err).Error("metrics server shutdown error")
	}
	if err := cc.Close(shutdownCtx); err != nil {
		cc.Telemetry.Log.WithError(err).Error("core context close error")
	}
	cc.Telemetry.Log.Info("stopped")
}

// loadOrGenerateIdentity loads an Ed25519 private key from cfg.Ed25519KeyPath
// (as written by cmd/icn-keygen) or, if the path is empty or the file does
// not exist, generates a fresh keypair and persists it there. Mirrors the
// teacher's loadOrGenerateEd25519Key, but keyed through identity.KeyPair
// rather than a bare ed25519.PrivateKey.
func loadOrGenerateIdentity(cfg *config.Config) (*identity.KeyPair, error) {
	path := cfg.Ed25519KeyPath
	if path == "" {
		return identity.GenerateKeyPair()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		kp, genErr := identity.GenerateKeyPair()
		if genErr != nil {
			return nil, genErr
		}
		encoded := base64.StdEncoding.EncodeToString(kp.PrivateKey)
		if writeErr := os.WriteFile(path, []byte(encoded+"\n"), 0o600); writeErr != nil {
			return nil, writeErr
		}
		return kp, nil
	}

	raw, err := base64.StdEncoding.DecodeString(trimNewline(data))
	if err != nil {
		return nil, err
	}
	return identity.KeyPairFromPrivateKey(ed25519.PrivateKey(raw))
}

// manifestLookup resolves an announced manifest_cid against the node's own
// DAG store, the manifest having been anchored there by the submitter's
// Engine.SubmitJob before the announcement was ever broadcast.
func manifestLookup(cc *corecontext.CoreContext) bidder.ManifestLookup {
	return func(ctx context.Context, manifestCID ipfscid.Cid) (jobmodel.Manifest, bool, error) {
		data, ok, err := cc.DAG.Get(ctx, manifestCID)
		if err != nil {
			return jobmodel.Manifest{}, false, err
		}
		if !ok {
			return jobmodel.Manifest{}, false, nil
		}
		m, err := jobmodel.ManifestFromCanonicalBytes(data)
		if err != nil {
			return jobmodel.Manifest{}, false, err
		}
		return m, true, nil
	}
}

func trimNewline(b []byte) string {
	s := string(b)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func fatal(step string, err error) {
	println("icn-node: " + step + ": " + err.Error())
	os.Exit(1)
}
