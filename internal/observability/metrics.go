package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// enrichment and distribution core.
type Metrics struct {
	// Mutation metrics.
	Mutations *prometheus.CounterVec // labels: action={create,update,delete}, outcome={success,unauthorized,forbidden,not_found,invalid,persistence_error}

	// Enrichment metrics.
	EnrichRequests *prometheus.CounterVec   // labels: capability, outcome={success,fallback,degraded,error}
	CacheLookups   *prometheus.CounterVec   // labels: capability, result={hit,miss}
	RemoteDuration *prometheus.HistogramVec // labels: capability

	// Broadcast metrics.
	BroadcastEvents    *prometheus.CounterVec // labels: kind
	ObserversConnected prometheus.Gauge
	ObserversDropped   prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Mutations,
		m.EnrichRequests,
		m.CacheLookups,
		m.RemoteDuration,
		m.BroadcastEvents,
		m.ObserversConnected,
		m.ObserversDropped,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_core",
			Name:      "mutations_total",
			Help:      "Record mutations by action and outcome.",
		}, []string{"action", "outcome"}),
		EnrichRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_core",
			Name:      "enrich_requests_total",
			Help:      "Enrichment resolutions by capability and outcome.",
		}, []string{"capability", "outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_core",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by capability and result.",
		}, []string{"capability", "result"}),
		RemoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "disaster_core",
			Name:      "remote_call_duration_seconds",
			Help:      "Remote enrichment call duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"capability"}),
		BroadcastEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_core",
			Name:      "broadcast_events_total",
			Help:      "Events published to the observer registry by kind.",
		}, []string{"kind"}),
		ObserversConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "disaster_core",
			Name:      "observers_connected",
			Help:      "Currently registered observer connections.",
		}),
		ObserversDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_core",
			Name:      "observers_dropped_total",
			Help:      "Observer connections dropped after a failed send or ping.",
		}),
	}
}
