// Copyright 2025 ICN Federation
//
// Package telemetry provides structured logging and Prometheus metrics for
// the mesh job runtime (SPEC_FULL §10), grounded on
// orbas1-Synnergy/core/system_health_logging.go's HealthLogger: a logrus
// logger paired with a dedicated prometheus.Registry exposed over HTTP.
package telemetry

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Telemetry bundles the runtime's logger and job-lifecycle counters.
type Telemetry struct {
	Log *logrus.Logger

	registry *prometheus.Registry

	jobsSubmitted        prometheus.Counter
	jobsCompleted        prometheus.Counter
	jobsFailed           *prometheus.CounterVec
	bidsReceived         prometheus.Counter
	bidsRejected         *prometheus.CounterVec
	announcementsDropped *prometheus.CounterVec
	settlementsMana      prometheus.Counter
	anchorRetries        prometheus.Counter
	jobLatency           prometheus.Histogram
}

// New builds a Telemetry with a fresh registry and logrus logger writing
// JSON to stderr (logrus's default output), matching the teacher's JSONFormatter convention.
func New() *Telemetry {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	reg := prometheus.NewRegistry()
	t := &Telemetry{
		Log:      log,
		registry: reg,
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icn_jobs_submitted_total",
			Help: "Total number of jobs submitted.",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icn_jobs_completed_total",
			Help: "Total number of jobs that reached Completed.",
		}),
		jobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "icn_jobs_failed_total",
			Help: "Total number of jobs that reached Failed, by reason.",
		}, []string{"reason"}),
		bidsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icn_bids_received_total",
			Help: "Total number of bids received across all jobs.",
		}),
		bidsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "icn_bids_rejected_total",
			Help: "Total number of bids rejected at the eligibility boundary, by reason.",
		}, []string{"reason"}),
		announcementsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "icn_announcements_dropped_total",
			Help: "Total number of job announcements the bidder did not bid on, by reason.",
		}, []string{"reason"}),
		settlementsMana: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icn_mana_settled_total",
			Help: "Total mana units settled (paid to executors) across all jobs.",
		}),
		anchorRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icn_receipt_anchor_retries_total",
			Help: "Total number of receipt-anchoring retry attempts.",
		}),
		jobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "icn_job_latency_seconds",
			Help:    "Wall-clock time from job submission to Completed.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		t.jobsSubmitted,
		t.jobsCompleted,
		t.jobsFailed,
		t.bidsReceived,
		t.bidsRejected,
		t.announcementsDropped,
		t.settlementsMana,
		t.anchorRetries,
		t.jobLatency,
	)
	return t
}

// Every method below tolerates a nil receiver so callers (and tests) that
// construct a jobfsm.Deps/bidder.Config without a *Telemetry don't need a
// separate nil-check at each call site — SPEC_FULL's observability
// requirements (§4.5, §7) are additive instrumentation, never a
// precondition for the domain logic they sit next to.

func (t *Telemetry) JobSubmitted() {
	if t == nil {
		return
	}
	t.jobsSubmitted.Inc()
}

func (t *Telemetry) JobCompleted() {
	if t == nil {
		return
	}
	t.jobsCompleted.Inc()
}

func (t *Telemetry) JobFailed(reason string) {
	if t == nil {
		return
	}
	t.jobsFailed.WithLabelValues(reason).Inc()
}

func (t *Telemetry) BidReceived() {
	if t == nil {
		return
	}
	t.bidsReceived.Inc()
}

func (t *Telemetry) BidRejected(reason string) {
	if t == nil {
		return
	}
	t.bidsRejected.WithLabelValues(reason).Inc()
}

func (t *Telemetry) AnnouncementDropped(reason string) {
	if t == nil {
		return
	}
	t.announcementsDropped.WithLabelValues(reason).Inc()
}

func (t *Telemetry) ManaSettled(amount uint64) {
	if t == nil {
		return
	}
	t.settlementsMana.Add(float64(amount))
}

func (t *Telemetry) AnchorRetry() {
	if t == nil {
		return
	}
	t.anchorRetries.Inc()
}

func (t *Telemetry) ObserveJobLatencySeconds(s float64) {
	if t == nil {
		return
	}
	t.jobLatency.Observe(s)
}

// StartMetricsServer exposes /metrics on addr, mirroring the teacher's
// StartMetricsServer/ShutdownMetricsServer pair.
func (t *Telemetry) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Log.WithError(err).Error("metrics server stopped")
		}
	}()
	return srv
}

// ShutdownMetricsServer gracefully stops the metrics HTTP server.
func (t *Telemetry) ShutdownMetricsServer(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
