// Package metrics exposes engine counters and latencies in Prometheus format
// on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// Metrics holds every collector the engine updates.
type Metrics struct {
	registry *prometheus.Registry

	cycles           prometheus.Counter
	cycleDuration    prometheus.Histogram
	fetchErrors      *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	opportunities    *prometheus.CounterVec
	lastEdgePercent  *prometheus.GaugeVec
	signals          *prometheus.CounterVec
	openPositions    prometheus.Gauge
	backtests        *prometheus.CounterVec
	alertsSuppressed prometheus.Counter
}

// New registers all collectors under namespace, plus the Go and process
// collectors.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mmsignal"
	}
	reg := prometheus.NewRegistry()
	latency := []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

	m := &Metrics{
		registry: reg,
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed polling cycles.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time from first fetch to cycle completion.",
			Buckets:   latency,
		}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed or timed-out order book fetches.",
		}, []string{"exchange"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Order book fetch latency.",
			Buckets:   latency,
		}, []string{"exchange"}),
		opportunities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opportunities_detected_total",
			Help:      "Arbitrage opportunities detected.",
		}, []string{"instrument"}),
		lastEdgePercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_edge_percent",
			Help:      "Edge percent of the most recent opportunity.",
		}, []string{"instrument"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_emitted_total",
			Help:      "Non-hold signals emitted by live strategies.",
		}, []string{"strategy", "signal"}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Strategy instances currently holding a position.",
		}),
		backtests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backtests_run_total",
			Help:      "Backtests completed.",
		}, []string{"strategy"}),
		alertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Opportunity alerts dropped by the cooldown throttle.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles, m.cycleDuration, m.fetchErrors, m.fetchDuration,
		m.opportunities, m.lastEdgePercent, m.signals, m.openPositions,
		m.backtests, m.alertsSuppressed,
	)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveFetch records one exchange fetch.
func (m *Metrics) ObserveFetch(exchange string, elapsed time.Duration, err error) {
	m.fetchDuration.WithLabelValues(exchange).Observe(elapsed.Seconds())
	if err != nil {
		m.fetchErrors.WithLabelValues(exchange).Inc()
	}
}

// ObserveCycle records one completed cycle.
func (m *Metrics) ObserveCycle(elapsed time.Duration) {
	m.cycles.Inc()
	m.cycleDuration.Observe(elapsed.Seconds())
}

// OpportunityDetected counts an opportunity and tracks its edge.
func (m *Metrics) OpportunityDetected(o domain.ArbitrageOpportunity) {
	m.opportunities.WithLabelValues(o.Instrument).Inc()
	m.lastEdgePercent.WithLabelValues(o.Instrument).Set(o.EdgePercent.InexactFloat64())
}

// AlertSuppressed counts a throttled alert.
func (m *Metrics) AlertSuppressed() { m.alertsSuppressed.Inc() }

// SignalEmitted counts a live signal.
func (m *Metrics) SignalEmitted(ev domain.SignalEvent) {
	m.signals.WithLabelValues(ev.Strategy, ev.Signal.String()).Inc()
}

// SetOpenPositions sets the open-position gauge.
func (m *Metrics) SetOpenPositions(n int) { m.openPositions.Set(float64(n)) }

// BacktestCompleted counts a finished backtest.
func (m *Metrics) BacktestCompleted(strategy string) {
	m.backtests.WithLabelValues(strategy).Inc()
}
