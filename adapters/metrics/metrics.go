// Package metrics provides Prometheus metrics collection for usagemeter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for usagemeter.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Auth metrics
	AuthFailures *prometheus.CounterVec

	// Accounting metrics
	EventsTotal    *prometheus.CounterVec
	BytesTotal     *prometheus.CounterVec
	QuotaDenials   prometheus.Counter
	AlertsReported *prometheus.CounterVec

	// Store metrics
	StoreDuration *prometheus.HistogramVec
	StoreErrors   *prometheus.CounterVec

	// Collaborator metrics
	CollaboratorErrors *prometheus.CounterVec

	// Reset sweeper metrics
	ResetSweeps     prometheus.Counter
	ResetSweepFails prometheus.Counter
}

// New creates a new metrics collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "usagemeter",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "usagemeter",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "usagemeter",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "usagemeter",
				Name:      "auth_failures_total",
				Help:      "Total number of identity resolution failures",
			},
			[]string{"reason"},
		),
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "usagemeter",
				Name:      "accounting_events_total",
				Help:      "Total accounting events recorded",
			},
			[]string{"kind"},
		),
		BytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "usagemeter",
				Name:      "accounting_bytes_total",
				Help:      "Total bytes recorded by event kind",
			},
			[]string{"kind"},
		),
		QuotaDenials: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "usagemeter",
				Name:      "quota_denials_total",
				Help:      "Total bandwidth checks that reported not-allowed",
			},
		),
		AlertsReported: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "usagemeter",
				Name:      "alerts_reported_total",
				Help:      "Total usage alerts reported by stage",
			},
			[]string{"stage"},
		),
		StoreDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "usagemeter",
				Name:      "store_duration_seconds",
				Help:      "Usage store operation duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"op"},
		),
		StoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "usagemeter",
				Name:      "store_errors_total",
				Help:      "Total usage store failures",
			},
			[]string{"op"},
		),
		CollaboratorErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "usagemeter",
				Name:      "collaborator_errors_total",
				Help:      "Total failures calling external collaborators",
			},
			[]string{"service"},
		),
		ResetSweeps: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "usagemeter",
				Name:      "reset_sweeps_total",
				Help:      "Total successful daily reset sweeps",
			},
		),
		ResetSweepFails: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "usagemeter",
				Name:      "reset_sweep_failures_total",
				Help:      "Total failed daily reset sweeps",
			},
		),
	}
}
