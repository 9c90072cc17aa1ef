// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "botpulse"

// Metrics is a private registry plus the service's collectors.
type Metrics struct {
	registry *prometheus.Registry

	Ticks         *prometheus.CounterVec
	TickDuration  prometheus.Histogram
	Bots          *prometheus.CounterVec
	Decisions     *prometheus.CounterVec
	Trades        prometheus.Counter
	RPCRetries    prometheus.Counter
	IndexedEvents *prometheus.CounterVec
	LastTick      prometheus.Gauge
	BlockHeight   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Scheduler ticks by result (ok, error, overlap).",
		}, []string{"result"}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of a full tick.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		Bots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bots_total",
			Help:      "Per-bot tick outcomes (processed, skipped, failed).",
		}, []string{"outcome"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Simulated decisions by tag.",
		}, []string{"decision"}),
		Trades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_executed_total",
			Help:      "Simulated trades executed.",
		}),
		RPCRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_retries_total",
			Help:      "Chain reads retried after a failure.",
		}),
		IndexedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexed_events_total",
			Help:      "Events emitted by the backfill collector, by kind.",
		}, []string{"kind"}),
		LastTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_tick_timestamp_seconds",
			Help:      "Unix time of the last completed tick.",
		}),
		BlockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "block_height",
			Help:      "Latest chain height observed by a tick.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Ticks, m.TickDuration, m.Bots, m.Decisions, m.Trades,
		m.RPCRetries, m.IndexedEvents, m.LastTick, m.BlockHeight,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RetryHook counts retries; it matches retry.Policy.OnRetry.
func (m *Metrics) RetryHook(attempt int, wait time.Duration, err error) {
	m.RPCRetries.Inc()
}
