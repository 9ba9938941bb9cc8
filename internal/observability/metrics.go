package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_monitor"

// Metrics holds the Prometheus collectors for the monitoring loop.
type Metrics struct {
	SamplesIngested prometheus.Counter
	SamplesDropped  prometheus.Counter
	SamplesEvicted  prometheus.Counter
	SamplesBuffered prometheus.Gauge

	// labels: endpoint={current,forecast}
	FetchErrors *prometheus.CounterVec

	SummariesPersisted prometheus.Counter
	PersistErrors      prometheus.Counter

	// labels: kind={High Temperature,Heavy Rain,Strong Winds}
	AlertsFired *prometheus.CounterVec

	SweepDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.SamplesIngested,
		m.SamplesDropped,
		m.SamplesEvicted,
		m.SamplesBuffered,
		m.FetchErrors,
		m.SummariesPersisted,
		m.PersistErrors,
		m.AlertsFired,
		m.SweepDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as many
// as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		SamplesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_ingested_total",
			Help:      help("Current-conditions samples appended to the store."),
		}),
		SamplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_dropped_total",
			Help:      help("Samples rejected for missing city or timestamp."),
		}),
		SamplesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_evicted_total",
			Help:      help("Samples removed by retention eviction."),
		}),
		SamplesBuffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "samples_buffered",
			Help:      help("Samples currently held in the store across all cities."),
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      help("Provider fetch failures by endpoint."),
		}, []string{"endpoint"}),
		SummariesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_persisted_total",
			Help:      help("Daily summaries upserted into the database."),
		}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      help("Failed daily summary upserts."),
		}),
		AlertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_fired_total",
			Help:      help("Alerts emitted by kind."),
		}, []string{"kind"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      help("Duration of one pass over all configured cities."),
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}
