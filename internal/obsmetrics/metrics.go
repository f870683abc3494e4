// Package obsmetrics registers the Prometheus metrics shared by the catalog
// pool, the engine driver, and the broadcast bus. Grounded on the teacher's
// internal/escrow/metrics.go use of promauto vectors.
package obsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CatalogPoolInUse reports the number of leased catalog connections.
	CatalogPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cratec_catalog_pool_in_use",
		Help: "Number of catalog store connections currently leased.",
	})

	// CatalogRetries counts busy/locked retries per operation kind.
	CatalogRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cratec_catalog_retries_total",
		Help: "Total number of SQLITE_BUSY/SQLITE_LOCKED retries.",
	}, []string{"operation"})

	// EngineJobsTotal counts terminal job outcomes per dialect and status.
	EngineJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cratec_engine_jobs_total",
		Help: "Total number of acquisition jobs reaching a terminal status.",
	}, []string{"dialect", "status"})

	// EngineJobDuration observes wall-clock acquisition duration in seconds.
	EngineJobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cratec_engine_job_duration_seconds",
		Help:    "Acquisition job duration from spawn to termination.",
		Buckets: prometheus.ExponentialBuckets(30, 2, 12),
	}, []string{"dialect"})

	// BroadcastSubscribers tracks connected WebSocket subscribers.
	BroadcastSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cratec_broadcast_subscribers",
		Help: "Number of currently connected broadcast bus subscribers.",
	})

	// ReportBuildFailures counts report render/compile failures.
	ReportBuildFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cratec_report_build_failures_total",
		Help: "Total number of report render or compile failures.",
	}, []string{"stage"})
)
