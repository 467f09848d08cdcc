// Package metrics exposes prometheus collectors for the rotation engine,
// feed client, and watchdog. A disabled instance is a no-op so preview runs
// and tests can pass nil-equivalent wiring.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marquee"

// Metrics holds the collectors. The zero/disabled instance records nothing.
type Metrics struct {
	registry *prometheus.Registry

	rotations          prometheus.Counter
	viewActivations    *prometheus.CounterVec
	viewReadySeconds   *prometheus.HistogramVec
	viewLoadTimeouts   *prometheus.CounterVec
	strategyPanics     prometheus.Counter
	fetchRequests      *prometheus.CounterVec
	fetchRetries       *prometheus.CounterVec
	fetchDuration      *prometheus.HistogramVec
	feedEntries        *prometheus.GaugeVec
	watchdogRecoveries prometheus.Counter
	engineRunning      prometheus.Gauge
	enginePosition     prometheus.Gauge
}

// New creates a metrics collector. When enabled is false the instance is a
// no-op and Handler serves 404.
func New(enabled bool) *Metrics {
	if !enabled {
		return &Metrics{}
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,

		rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rotations_total",
			Help:      "Total number of rotation advances",
		}),
		viewActivations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "view_activations_total",
				Help:      "Total view activations",
			},
			[]string{"view", "kind"},
		),
		viewReadySeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "view_ready_seconds",
				Help:      "Time from activation to readiness for embed views",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"reason"},
		),
		viewLoadTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "view_load_timeouts_total",
				Help:      "Activations resumed by the safety timer",
			},
			[]string{"view"},
		),
		strategyPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_panics_total",
			Help:      "Loader panics contained at the engine boundary",
		}),
		fetchRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_requests_total",
				Help:      "Feed fetches by final outcome",
			},
			[]string{"source", "outcome"},
		),
		fetchRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_retries_total",
				Help:      "Feed fetch retries by error kind",
			},
			[]string{"source", "kind"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Feed fetch duration including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		feedEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "feed_entries",
				Help:      "Entries in the last successful fetch",
			},
			[]string{"source"},
		),
		watchdogRecoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watchdog_recoveries_total",
			Help:      "Stuck rotations force-resumed by the watchdog",
		}),
		engineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_running",
			Help:      "1 while the rotation engine is running",
		}),
		enginePosition: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_position",
			Help:      "Current playlist position",
		}),
	}

	registry.MustRegister(
		m.rotations,
		m.viewActivations,
		m.viewReadySeconds,
		m.viewLoadTimeouts,
		m.strategyPanics,
		m.fetchRequests,
		m.fetchRetries,
		m.fetchDuration,
		m.feedEntries,
		m.watchdogRecoveries,
		m.engineRunning,
		m.enginePosition,
	)
	return m
}

// Enabled reports whether the instance records anything.
func (m *Metrics) Enabled() bool {
	return m != nil && m.registry != nil
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRotation counts one advance.
func (m *Metrics) RecordRotation() {
	if !m.Enabled() {
		return
	}
	m.rotations.Inc()
}

// RecordActivation counts a view activation and updates the position gauge.
func (m *Metrics) RecordActivation(viewID, kind string, position int) {
	if !m.Enabled() {
		return
	}
	m.viewActivations.WithLabelValues(viewID, kind).Inc()
	m.enginePosition.Set(float64(position))
}

// RecordViewReady observes activation-to-ready latency.
func (m *Metrics) RecordViewReady(reason string, wait time.Duration) {
	if !m.Enabled() {
		return
	}
	m.viewReadySeconds.WithLabelValues(reason).Observe(wait.Seconds())
}

// RecordLoadTimeout counts a safety-timer resume.
func (m *Metrics) RecordLoadTimeout(viewID string) {
	if !m.Enabled() {
		return
	}
	m.viewLoadTimeouts.WithLabelValues(viewID).Inc()
}

// RecordStrategyPanic counts a contained loader panic.
func (m *Metrics) RecordStrategyPanic() {
	if !m.Enabled() {
		return
	}
	m.strategyPanics.Inc()
}

// RecordFetch counts a finished fetch with its outcome ("ok" or the error
// kind) and duration.
func (m *Metrics) RecordFetch(source, outcome string, d time.Duration) {
	if !m.Enabled() {
		return
	}
	m.fetchRequests.WithLabelValues(source, outcome).Inc()
	m.fetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordFetchRetry counts one retried attempt.
func (m *Metrics) RecordFetchRetry(source, kind string) {
	if !m.Enabled() {
		return
	}
	m.fetchRetries.WithLabelValues(source, kind).Inc()
}

// SetFeedEntries records the row count of the last successful fetch.
func (m *Metrics) SetFeedEntries(source string, n int) {
	if !m.Enabled() {
		return
	}
	m.feedEntries.WithLabelValues(source).Set(float64(n))
}

// RecordWatchdogRecovery counts a forced resume.
func (m *Metrics) RecordWatchdogRecovery() {
	if !m.Enabled() {
		return
	}
	m.watchdogRecoveries.Inc()
}

// SetRunning flips the engine running gauge.
func (m *Metrics) SetRunning(running bool) {
	if !m.Enabled() {
		return
	}
	if running {
		m.engineRunning.Set(1)
	} else {
		m.engineRunning.Set(0)
	}
}
