// Package metrics exposes Prometheus collectors for the backend layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackendCallsTotal tracks terminal call outcomes per operation
	BackendCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumebase_backend_calls_total",
			Help: "Total number of backend calls by terminal outcome",
		},
		[]string{"operation", "outcome"},
	)

	// BackendRetriesTotal tracks retry attempts per operation
	BackendRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumebase_backend_retries_total",
			Help: "Total number of backend call retries",
		},
		[]string{"operation"},
	)

	// BackendCallLatency tracks per-attempt call latency
	BackendCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resumebase_backend_call_latency_seconds",
			Help:    "Backend call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// PoolRebuildsTotal counts wholesale handle-set rebuilds
	PoolRebuildsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resumebase_pool_rebuilds_total",
			Help: "Total number of handle pool rebuilds",
		},
	)

	// BackendReachable reports the reachability state (1 active, 0 lost)
	BackendReachable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resumebase_backend_reachable",
			Help: "Whether the backend is currently reachable (1 active, 0 lost)",
		},
	)
)
