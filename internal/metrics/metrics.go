// Package metrics provides Prometheus metrics for the gday rendezvous
// server.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gday"

// Metrics contains all Prometheus metrics for the rendezvous server
// and the hole-punching client.
type Metrics struct {
	// Rendezvous server metrics
	RoomsActive       prometheus.Gauge
	RoomsCreated      prometheus.Counter
	RoomsExpired      prometheus.Counter
	RateLimitRejects  prometheus.Counter
	ContactsShared    prometheus.Counter
	RequestErrors     *prometheus.CounterVec

	// Hole-punch client metrics
	PunchAttempts  *prometheus.CounterVec
	PunchLatency   prometheus.Histogram
	PunchOutcomes  *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the process-wide default metrics instance,
// registered against the default Prometheus registry.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a Metrics instance registered against the default
// Prometheus registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a Metrics instance registered against
// reg, so tests can use their own registry instead of the global one.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RoomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of rendezvous rooms currently open",
		}),
		RoomsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Total number of rendezvous rooms created",
		}),
		RoomsExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_expired_total",
			Help:      "Total number of rooms discarded after waiting for a second occupant",
		}),
		RateLimitRejects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejects_total",
			Help:      "Total requests rejected by the per-IP rate limiter",
		}),
		ContactsShared: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contacts_shared_total",
			Help:      "Total ShareContact requests handled",
		}),
		RequestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      "Total rendezvous requests rejected, by error code",
		}, []string{"code"}),

		PunchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "punch_attempts_total",
			Help:      "Total hole-punch dial/accept attempts, by kind",
		}, []string{"kind"}),
		PunchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "punch_latency_seconds",
			Help:      "Time from starting a hole-punch attempt to a verified connection",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		}),
		PunchOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "punch_outcomes_total",
			Help:      "Total hole-punch attempts, by outcome",
		}, []string{"outcome"}),
	}
}
