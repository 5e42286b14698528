package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storm_radar"

// Metrics holds the Prometheus counters, histograms, and gauges for the radar service.
type Metrics struct {
	// Manifest metrics.
	ManifestFetches       *prometheus.CounterVec   // labels: provider, outcome={success,network,malformed,error}
	ManifestCache         *prometheus.CounterVec   // labels: provider, result={hit,miss,shared,stale}
	ManifestFetchDuration *prometheus.HistogramVec // labels: provider
	ManifestFrames        *prometheus.GaugeVec     // labels: provider
	ProviderFallbacks     *prometheus.CounterVec   // labels: provider

	// Session metrics.
	SessionsActive prometheus.Gauge

	// Warm/publish loop metrics.
	ManifestsPublished prometheus.Counter
	PipelineRunning    prometheus.Gauge

	// Geocoding metrics.
	GeocodeCache   *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeEnabled prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		ManifestFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manifest_fetch_total",
			Help:      "Upstream manifest fetches by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ManifestCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manifest_cache_total",
			Help:      "Manifest cache lookups by provider and result.",
		}, []string{"provider", "result"}),
		ManifestFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "manifest_fetch_duration_seconds",
			Help:      "Upstream manifest fetch duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		ManifestFrames: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "manifest_frames",
			Help:      "Frame count of the current cached manifest.",
		}, []string{"provider"}),
		ProviderFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallback_total",
			Help:      "Times a provider failed and the chain fell through to the next one.",
		}, []string{"provider"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Open map sessions.",
		}),
		ManifestsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manifests_published_total",
			Help:      "Manifest refresh events handed to the loader.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the warm/publish loop is active, 0 when shut down.",
		}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Place label cache lookups by result.",
		}, []string{"result"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when place labels are enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ManifestFetches,
		m.ManifestCache,
		m.ManifestFetchDuration,
		m.ManifestFrames,
		m.ProviderFallbacks,
		m.SessionsActive,
		m.ManifestsPublished,
		m.PipelineRunning,
		m.GeocodeCache,
		m.GeocodeEnabled,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
