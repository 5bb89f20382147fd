// Package metrics holds the prometheus collectors for snapshot assembly,
// the snapshot cache and the HTTP API.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SnapshotDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maxvis_snapshot_duration_seconds",
			Help:    "Time to assemble a visibility snapshot",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"status"},
	)

	SnapshotTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maxvis_snapshot_total",
			Help: "Snapshots assembled, by outcome status",
		},
		[]string{"status"},
	)

	DegradedSections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maxvis_snapshot_degraded_sections_total",
			Help: "Secondary reads that failed and were degraded to empty",
		},
		[]string{"section"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maxvis_cache_hits_total",
			Help: "Snapshot cache hits",
		},
		[]string{"backend"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maxvis_cache_misses_total",
			Help: "Snapshot cache misses",
		},
		[]string{"backend"},
	)

	CacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maxvis_cache_invalidations_total",
			Help: "Explicit snapshot cache invalidations",
		},
		[]string{"backend"},
	)

	MonitoringAlerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maxvis_monitoring_alerts_total",
			Help: "Run health alerts raised, by alert type",
		},
		[]string{"type"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maxvis_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"route", "code"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SnapshotDuration,
			SnapshotTotal,
			DegradedSections,
			CacheHits,
			CacheMisses,
			CacheInvalidations,
			MonitoringAlerts,
			HTTPRequests,
		)
	})
}

// Handler serves the default registry in the exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
