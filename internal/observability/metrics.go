package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "precip_bench"

// Metrics holds the Prometheus counters, histograms, and gauges for a benchmark run.
type Metrics struct {
	DatasetsLoaded prometheus.Counter
	LoadDuration   prometheus.Histogram
	RunSucceeded   prometheus.Gauge

	// Metric evaluation.
	MetricEvaluations *prometheus.CounterVec   // labels: metric, outcome={success,error}
	MetricDuration    *prometheus.HistogramVec // labels: metric
	Score             *prometheus.GaugeVec     // labels: metric, candidate

	// Spectrum cache lookups.
	SpectrumCache *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all benchmark metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		DatasetsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datasets_loaded_total",
			Help:      "Total dataset files read and restricted.",
		}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_load_duration_seconds",
			Help:      "Duration of reading one dataset file.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RunSucceeded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_succeeded",
			Help:      "1 when the last benchmark run completed, 0 otherwise.",
		}),
		MetricEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metric_evaluations_total",
			Help:      "Metric evaluations by metric and outcome.",
		}, []string{"metric", "outcome"}),
		MetricDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "metric_duration_seconds",
			Help:      "Duration of one metric evaluation for one candidate.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}, []string{"metric"}),
		Score: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "score",
			Help:      "Latest score of a candidate against the reference.",
		}, []string{"metric", "candidate"}),
		SpectrumCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spectrum_cache_total",
			Help:      "Spectrum cache lookups by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.DatasetsLoaded,
		m.LoadDuration,
		m.RunSucceeded,
		m.MetricEvaluations,
		m.MetricDuration,
		m.Score,
		m.SpectrumCache,
	}
}
