// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for the vidsync engine.
// No per-account or per-video labels: cardinality stays bounded.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncTotal counts engine operations by operation and outcome.
	SyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidsync_sync_total",
		Help: "Total number of sync engine operations, by operation (upload/download/sync/delete) and outcome (ok/error).",
	}, []string{"operation", "outcome"})

	// RetryTotal counts remote read retries by failure classification.
	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidsync_retry_total",
		Help: "Total number of remote read attempts that failed, by failure classification (transient/permanent/malformed).",
	}, []string{"classification"})

	// CacheFallbackTotal counts downloads served from the snapshot cache
	// tier, by reason (offline/exhausted).
	CacheFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidsync_cache_fallback_total",
		Help: "Total number of downloads served from the snapshot cache, by reason.",
	}, []string{"reason"})

	// PreconditionRejectTotal counts operations rejected before any I/O.
	PreconditionRejectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidsync_precondition_reject_total",
		Help: "Total number of operations rejected by a precondition gate, by gate (signed-in/anonymous/consent).",
	}, []string{"gate"})

	// MergeDuration observes merge resolver latency.
	MergeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vidsync_merge_duration_seconds",
		Help:    "Merge resolver latency.",
		Buckets: prometheus.DefBuckets,
	})

	// SyncDuration observes end-to-end operation latency by operation.
	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidsync_sync_duration_seconds",
		Help:    "End-to-end sync operation latency, by operation.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation"})
)

// RecordOutcome increments SyncTotal for the operation.
func RecordOutcome(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	SyncTotal.WithLabelValues(operation, outcome).Inc()
}
