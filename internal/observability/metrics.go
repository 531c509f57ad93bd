package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// reconciliation engine.
type Metrics struct {
	IncidentsProcessed prometheus.Counter
	MatchesTotal       *prometheus.CounterVec // labels: method={SPATIAL,FALLBACK}
	UnmatchedTotal     *prometheus.CounterVec // labels: reason={no_coordinate,coordinate_too_far,key_not_found}
	ReconcileRunning   prometheus.Gauge

	MatchDistanceMeters prometheus.Histogram
	IndexBuildSeconds   prometheus.Histogram
	RunSeconds          prometheus.Histogram

	RegistryRecords prometheus.Gauge
	RegistryIndexed prometheus.Gauge
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.IncidentsProcessed,
		m.MatchesTotal,
		m.UnmatchedTotal,
		m.ReconcileRunning,
		m.MatchDistanceMeters,
		m.IndexBuildSeconds,
		m.RunSeconds,
		m.RegistryRecords,
		m.RegistryIndexed,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, so
// tests never hit "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		IncidentsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "milepost_linkage",
			Name:      "incidents_processed_total",
			Help:      "Total incident records run through the matcher.",
		}),
		MatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "milepost_linkage",
			Name:      "matches_total",
			Help:      "Accepted matches by method.",
		}, []string{"method"}),
		UnmatchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "milepost_linkage",
			Name:      "unmatched_total",
			Help:      "Unmatched incidents by cause.",
		}, []string{"reason"}),
		ReconcileRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "milepost_linkage",
			Name:      "reconcile_running",
			Help:      "1 while a reconciliation run is in progress.",
		}),
		MatchDistanceMeters: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "milepost_linkage",
			Name:      "match_distance_meters",
			Help:      "Great-circle distance of accepted spatial matches.",
			Buckets:   []float64{10, 25, 50, 100, 200, 300, 400},
		}),
		IndexBuildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "milepost_linkage",
			Name:      "index_build_seconds",
			Help:      "Ball tree construction time over the milepost registry.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		RunSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "milepost_linkage",
			Name:      "run_seconds",
			Help:      "Duration of a complete reconciliation run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		RegistryRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "milepost_linkage",
			Name:      "registry_records",
			Help:      "Milepost registry records loaded.",
		}),
		RegistryIndexed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "milepost_linkage",
			Name:      "registry_indexed",
			Help:      "Registry records with valid coordinates in the spatial index.",
		}),
	}
}
