// Package metrics exposes Prometheus collectors for reconciliation, the
// monitoring bridge and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "focusguard"

// Metrics holds every collector registered by the process.
type Metrics struct {
	registry *prometheus.Registry

	// Reconciliation
	ReconcileRuns     *prometheus.CounterVec
	ReconcileDuration prometheus.Histogram
	LockedPackages    prometheus.Gauge
	EnabledSchedules  prometheus.Gauge

	// Bridge
	BridgeCalls    *prometheus.CounterVec
	BridgeFailures *prometheus.CounterVec
	AppsBlocked    *prometheus.CounterVec

	// HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RateLimited     prometheus.Counter
}

// New registers the collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ReconcileRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_runs_total",
				Help:      "Reconciliation passes by outcome",
			},
			[]string{"outcome"},
		),
		ReconcileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_duration_seconds",
				Help:      "Duration of reconciliation passes",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		LockedPackages: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "locked_packages",
				Help:      "Packages in the locked set after the last pass",
			},
		),
		EnabledSchedules: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "enabled_schedules",
				Help:      "Enabled schedules after the last pass",
			},
		),

		BridgeCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridge_calls_total",
				Help:      "Commands pushed to the monitoring bridge",
			},
			[]string{"op"},
		),
		BridgeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridge_failures_total",
				Help:      "Failed monitoring bridge commands",
			},
			[]string{"op"},
		),
		AppsBlocked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "apps_blocked_total",
				Help:      "Blocked app launches reported by the agent",
			},
			[]string{"package"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),
	}
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WatchAgent exports whether a monitoring agent is connected.
func (m *Metrics) WatchAgent(connected func() bool) {
	promauto.With(m.registry).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridge_agent_connected",
			Help:      "1 when a monitoring agent is connected",
		},
		func() float64 {
			if connected() {
				return 1
			}
			return 0
		},
	)
}

// AppBlocked implements application.LockObserver.
func (m *Metrics) AppBlocked(packageName string) {
	m.AppsBlocked.WithLabelValues(packageName).Inc()
}

// ObserveReconcile records one reconciliation pass.
func (m *Metrics) ObserveReconcile(outcome string, took time.Duration, locked, schedules int) {
	m.ReconcileRuns.WithLabelValues(outcome).Inc()
	m.ReconcileDuration.Observe(took.Seconds())
	m.LockedPackages.Set(float64(locked))
	m.EnabledSchedules.Set(float64(schedules))
}

// ObserveBridgeCall records one bridge command and whether it failed.
func (m *Metrics) ObserveBridgeCall(op string, err error) {
	m.BridgeCalls.WithLabelValues(op).Inc()
	if err != nil {
		m.BridgeFailures.WithLabelValues(op).Inc()
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, took time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// ObserveRateLimited counts one request rejected by the rate limiter.
func (m *Metrics) ObserveRateLimited() {
	m.RateLimited.Inc()
}
