package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "burn_severity"

// Metrics holds the Prometheus counters and histograms for the analysis service.
type Metrics struct {
	AnalysesTotal    *prometheus.CounterVec // labels: outcome={success,invalid,no_imagery,remote_error,canceled}
	AnalysisDuration prometheus.Histogram
	AnalysesInFlight prometheus.Gauge

	// Remote engine metrics.
	EngineRequests *prometheus.CounterVec   // labels: operation={compute,map}, outcome={success,error,unauthorized}
	EngineDuration *prometheus.HistogramVec // labels: operation={compute,map}
	EngineCache    *prometheus.CounterVec   // labels: tier={memory,redis}, result={hit,miss}

	// AOI parsing.
	AOIFeaturesRejected prometheus.Counter

	// Report sinks.
	SinkDeliveries *prometheus.CounterVec // labels: sink={kafka,minio}, outcome={success,error}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.AnalysesInFlight,
		m.EngineRequests,
		m.EngineDuration,
		m.EngineCache,
		m.AOIFeaturesRejected,
		m.SinkDeliveries,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Burn-severity analyses by outcome.",
		}, []string{"outcome"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of a complete analysis run.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}),
		AnalysesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analyses_in_flight",
			Help:      "Analyses currently running.",
		}),
		EngineRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_requests_total",
			Help:      "Remote engine requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		EngineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_request_duration_seconds",
			Help:      "Remote engine request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"}),
		EngineCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_cache_total",
			Help:      "Engine result cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		AOIFeaturesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aoi_features_rejected_total",
			Help:      "Uploaded AOI features or files skipped as invalid.",
		}),
		SinkDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_deliveries_total",
			Help:      "Report deliveries to downstream sinks by outcome.",
		}, []string{"sink", "outcome"}),
	}
}
