// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

// Package metrics provides Prometheus instrumentation for the catalog
// services, import pipeline, download orchestrator, scrobble dispatcher,
// and the two wire surfaces.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CatalogOperationDuration tracks latency of catalog service calls by
	// entity and operation (create/update/delete/get/list/find_or_create).
	CatalogOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sonar_catalog_operation_duration_seconds",
			Help:    "Duration of catalog service operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity", "operation"},
	)

	// CatalogOperationErrors counts catalog operation failures by kind.
	CatalogOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonar_catalog_operation_errors_total",
			Help: "Total catalog operation errors",
		},
		[]string{"entity", "operation", "error_kind"},
	)

	// ImportsTotal counts completed imports by outcome.
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonar_imports_total",
			Help: "Total number of import pipeline runs",
		},
		[]string{"outcome"}, // "success" | "invalid" | "internal"
	)

	// ImportDuration tracks end-to-end import pipeline latency.
	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sonar_import_duration_seconds",
			Help:    "Duration of a single import pipeline run in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// ImportBytesTotal sums the bytes ingested by the import pipeline.
	ImportBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sonar_import_bytes_total",
			Help: "Total bytes ingested by the import pipeline",
		},
	)

	// ImportSemaphoreInUse reports the current number of held import slots.
	ImportSemaphoreInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sonar_import_semaphore_in_use",
			Help: "Number of import pipeline concurrency slots currently held",
		},
	)

	// DownloadTasksTotal counts completed download orchestrator tasks by
	// media type and outcome.
	DownloadTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonar_download_tasks_total",
			Help: "Total download orchestrator tasks by media type and outcome",
		},
		[]string{"media_type", "outcome"}, // outcome: "complete" | "failed"
	)

	// DownloadTasksInFlight reports currently-running download tasks.
	DownloadTasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sonar_download_tasks_in_flight",
			Help: "Number of download orchestrator tasks currently running",
		},
	)

	// ExternalAdapterCallDuration tracks per-adapter call latency.
	ExternalAdapterCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sonar_external_adapter_call_duration_seconds",
			Help:    "Duration of external service adapter calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"adapter", "operation"},
	)

	// ExternalAdapterCircuitState reports 0=closed, 1=half-open, 2=open
	// for each registered adapter's gobreaker circuit.
	ExternalAdapterCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sonar_external_adapter_circuit_state",
			Help: "Circuit breaker state per external adapter (0=closed,1=half-open,2=open)",
		},
		[]string{"adapter"},
	)

	// ScrobbleSubmissionsTotal counts scrobble dispatch outcomes per
	// scrobbler.
	ScrobbleSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonar_scrobble_submissions_total",
			Help: "Total scrobble submissions attempted per scrobbler",
		},
		[]string{"scrobbler", "outcome"}, // outcome: "success" | "failure"
	)

	// SubsonicRequestsTotal counts subsonic adapter requests by method and
	// status.
	SubsonicRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonar_subsonic_requests_total",
			Help: "Total subsonic adapter requests",
		},
		[]string{"method", "status"}, // status: "ok" | "failed"
	)

	// SubsonicRequestDuration tracks subsonic adapter handler latency.
	SubsonicRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sonar_subsonic_request_duration_seconds",
			Help:    "Duration of subsonic adapter requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method"},
	)

	// RPCRequestsTotal counts typed RPC surface requests by verb and
	// status.
	RPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonar_rpc_requests_total",
			Help: "Total typed RPC surface requests",
		},
		[]string{"verb", "status"},
	)

	// SearchIndexSyncDuration tracks the latency of the CRUD-to-search
	// projection sync.
	SearchIndexSyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sonar_search_index_sync_duration_seconds",
			Help:    "Duration of search index projection sync in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
