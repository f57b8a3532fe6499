// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

// Package metrics exposes Prometheus instrumentation for syncd:
// run outcomes and duration, per-entity operation counts, remote API call
// latency, and opqueue sizes per bucket.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRuns counts completed runs by outcome: success, error, timeout,
	// locked, precondition.
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdaa_sync_runs_total",
			Help: "Total number of synchronization runs by outcome",
		},
		[]string{"outcome"},
	)

	// SyncRunDuration observes wall-clock run duration.
	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crowdaa_sync_run_duration_seconds",
			Help:    "Duration of synchronization runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	// EntityOps counts applied entity operations by collection
	// (badges, categories, articles), operation (create, update, delete)
	// and target side (wp, api).
	EntityOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdaa_sync_entity_operations_total",
			Help: "Total entity operations applied, by collection, operation and target",
		},
		[]string{"collection", "operation", "target"},
	)

	// EntityErrors counts non-fatal per-entity failures.
	EntityErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdaa_sync_entity_errors_total",
			Help: "Total non-fatal per-entity synchronization failures",
		},
		[]string{"collection", "target"},
	)

	// EntitySkips counts entities skipped by design (missing media,
	// filtered category, hook denial).
	EntitySkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdaa_sync_entity_skips_total",
			Help: "Total entities skipped during synchronization",
		},
		[]string{"collection", "target"},
	)

	// OpQueueSize records bucket sizes of the latest diff per collection.
	OpQueueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crowdaa_sync_opqueue_entries",
			Help: "Entries per opqueue bucket from the latest diff",
		},
		[]string{"collection", "bucket"},
	)

	// RemoteRequestDuration observes Crowdaa API call latency.
	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crowdaa_api_request_duration_seconds",
			Help:    "Duration of Crowdaa API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
)

// ObserveRemoteRequest records one remote API call.
func ObserveRemoteRequest(method, endpoint, status string, start time.Time) {
	RemoteRequestDuration.WithLabelValues(method, endpoint, status).
		Observe(time.Since(start).Seconds())
}
