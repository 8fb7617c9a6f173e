// Package metrics exposes Prometheus instrumentation for the attribution
// engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for linkpulse.
type Metrics struct {
	// Recalculation metrics
	Recalculations        *prometheus.CounterVec
	RecalculationDuration prometheus.Histogram
	LockWaitDuration      prometheus.Histogram

	// Association lifecycle metrics
	AssociationsCreated *prometheus.CounterVec
	AssociationsDeleted *prometheus.CounterVec
}

// Recalculation result labels
const (
	ResultOK                 = "ok"
	ResultSourceUnavailable  = "source_unavailable"
	ResultLockTimeout        = "lock_timeout"
	ResultPersistenceFailure = "persistence_failure"
	ResultError              = "error"
)

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns the process-wide metrics instance, registering it on first
// use.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = NewMetrics("linkpulse", prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewMetrics creates and registers all linkpulse metrics on the given
// registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Recalculations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recalculations_total",
				Help:      "Total number of per-link recalculations by result",
			},
			[]string{"result"},
		),
		RecalculationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "recalculation_duration_seconds",
				Help:      "Duration of per-link recalculations",
				Buckets:   prometheus.DefBuckets,
			},
		),
		LockWaitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lock_wait_duration_seconds",
				Help:      "Time spent waiting for a link's recalculation lock",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5},
			},
		),
		AssociationsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "associations_created_total",
				Help:      "Total number of link associations created by mode",
			},
			[]string{"mode"},
		),
		AssociationsDeleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "associations_deleted_total",
				Help:      "Total number of link associations deleted by mode",
			},
			[]string{"mode"},
		),
	}
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
