// Package metrics exposes collector and query counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "proclens"

// Query outcomes, used as the "outcome" label
const (
	OutcomeAnswer       = "answer"
	OutcomeEmpty        = "empty"
	OutcomeHTTPError    = "http_error"
	OutcomeNetworkError = "network_error"
	OutcomeDecodeError  = "decode_error"
)

// Metrics groups every instrument the app records. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ticks         prometheus.Counter
	skipped       prometheus.Counter
	snapshotSize  prometheus.Gauge
	queries       *prometheus.CounterVec
	queryDuration prometheus.Histogram
	launches      prometheus.Counter
}

// New creates the instruments on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "ticks_total",
			Help:      "Completed process table collections.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "skipped_processes_total",
			Help:      "Processes dropped because a field could not be read.",
		}),
		snapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "snapshot_size",
			Help:      "Number of processes in the current snapshot.",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ollama",
			Name:      "queries_total",
			Help:      "Questions forwarded to the inference server, by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ollama",
			Name:      "query_duration_seconds",
			Help:      "Wall time of generate requests.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		launches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ollama",
			Name:      "server_launches_total",
			Help:      "Times the inference server was started as a subprocess.",
		}),
	}
	m.registry.MustRegister(
		m.ticks, m.skipped, m.snapshotSize,
		m.queries, m.queryDuration, m.launches,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveTick(size, skipped int) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.skipped.Add(float64(skipped))
	m.snapshotSize.Set(float64(size))
}

func (m *Metrics) ObserveQuery(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(seconds)
}

func (m *Metrics) ObserveLaunch() {
	if m == nil {
		return
	}
	m.launches.Inc()
}
