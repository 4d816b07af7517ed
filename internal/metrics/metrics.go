// Package metrics provides Prometheus metrics for the trigger engine and screener.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "volspike"

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Engine metrics
	Ticks           prometheus.Counter
	BatchFailures   prometheus.Counter
	MissingSymbols  prometheus.Counter
	Alerts          *prometheus.CounterVec
	Checkpoints     *prometheus.CounterVec
	TrackedSymbols  prometheus.Gauge
	UniverseSize    prometheus.Gauge
	SessionFraction prometheus.Gauge

	// Latency metrics
	PollLatency prometheus.Histogram

	// Screener metrics
	CandidatesScreened *prometheus.GaugeVec
}

// New creates a Metrics instance registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "Total number of polling ticks executed",
		}),
		BatchFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "batch_failures_total",
			Help:      "Total number of quote batches that failed and were skipped",
		}),
		MissingSymbols: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "missing_symbols_total",
			Help:      "Total number of requested symbols absent from a quote response",
		}),
		Alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "alerts_total",
			Help:      "Total number of volume breakout alerts by exchange",
		}, []string{"exchange"}),
		Checkpoints: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "checkpoints_total",
			Help:      "Total number of session state checkpoints by status",
		}, []string{"status"}),
		TrackedSymbols: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tracked_symbols",
			Help:      "Number of symbols with session state",
		}),
		UniverseSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "universe_size",
			Help:      "Number of candidates being watched",
		}),
		SessionFraction: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "session_fraction",
			Help:      "Elapsed fraction of the trading session at the last tick",
		}),
		PollLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "poll_duration_seconds",
			Help:      "Latency of batched quote requests",
			Buckets:   prometheus.DefBuckets,
		}),
		CandidatesScreened: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "screener",
			Name:      "candidates",
			Help:      "Number of candidates produced by the last screening run by exchange",
		}, []string{"exchange"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordTick(fraction float64) {
	if m == nil {
		return
	}
	m.Ticks.Inc()
	m.SessionFraction.Set(fraction)
}

func (m *Metrics) RecordBatchFailure() {
	if m == nil {
		return
	}
	m.BatchFailures.Inc()
}

func (m *Metrics) RecordMissing(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MissingSymbols.Add(float64(n))
}

func (m *Metrics) RecordAlert(exchange string) {
	if m == nil {
		return
	}
	m.Alerts.WithLabelValues(exchange).Inc()
}

func (m *Metrics) RecordCheckpoint(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Checkpoints.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordPollLatency(seconds float64) {
	if m == nil {
		return
	}
	m.PollLatency.Observe(seconds)
}

func (m *Metrics) SetTracked(n int) {
	if m == nil {
		return
	}
	m.TrackedSymbols.Set(float64(n))
}

func (m *Metrics) SetUniverse(n int) {
	if m == nil {
		return
	}
	m.UniverseSize.Set(float64(n))
}

func (m *Metrics) SetCandidates(exchange string, n int) {
	if m == nil {
		return
	}
	m.CandidatesScreened.WithLabelValues(exchange).Set(float64(n))
}
