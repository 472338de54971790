// Package metrics exposes Prometheus collectors for ingestion and scoring.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "landscout"

// Item outcomes recorded per mailbox item.
const (
	ItemCreated     = "created"
	ItemDuplicate   = "duplicate"
	ItemUnparseable = "unparseable"
	ItemFailed      = "failed"
	ItemMissing     = "missing"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Runs        *prometheus.CounterVec
	Items       *prometheus.CounterVec
	RunDuration prometheus.Histogram
	Watermark   *prometheus.GaugeVec
	Rescored    prometheus.Counter
	ScoreErrors prometheus.Counter
}

// New registers all collectors plus Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "runs_total",
			Help:      "Ingestion runs by outcome.",
		}, []string{"outcome"}),
		Items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "items_total",
			Help:      "Mailbox items processed by outcome.",
		}, []string{"outcome"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "run_duration_seconds",
			Help:      "Wall time of ingestion runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		Watermark: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "watermark",
			Help:      "Highest attempted mailbox item per scope.",
		}, []string{"scope"}),
		Rescored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "rescored_lands_total",
			Help:      "Records rewritten by full rescoring.",
		}),
		ScoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "failures_total",
			Help:      "Records whose score could not be saved.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRun records one finished ingestion run.
func (m *Metrics) ObserveRun(started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Runs.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(time.Since(started).Seconds())
}

// Item counts one item outcome.
func (m *Metrics) Item(outcome string) {
	if m == nil {
		return
	}
	m.Items.WithLabelValues(outcome).Inc()
}

// SetWatermark publishes the current watermark of a scope.
func (m *Metrics) SetWatermark(scope string, value uint64) {
	if m == nil {
		return
	}
	m.Watermark.WithLabelValues(scope).Set(float64(value))
}

// AddRescored counts records rewritten by a rescore.
func (m *Metrics) AddRescored(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Rescored.Add(float64(n))
}

// ScoreFailed counts a failed score write.
func (m *Metrics) ScoreFailed() {
	if m == nil {
		return
	}
	m.ScoreErrors.Inc()
}
