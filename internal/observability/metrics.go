// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	ObservationsAdmitted  *prometheus.CounterVec
	ObservationsDuplicate prometheus.Counter
	ObservationsFiltered  prometheus.Counter
	IngestErrors          *prometheus.CounterVec

	// Ingestion state
	DedupCacheSize prometheus.Gauge

	// Matching metrics
	RoundsClosed   *prometheus.CounterVec
	UnmatchedExits prometheus.Counter

	// Evaluation metrics
	EvaluationCycles   *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec
	Transitions        *prometheus.CounterVec
	NotifyFailures     prometheus.Counter

	// Signal tracking metrics
	SignalsRegistered prometheus.Counter
	SignalsFinalized  *prometheus.CounterVec
	PriceLookupErrors prometheus.Counter

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "signal_tracker"
	}

	return &Metrics{
		// Ingestion metrics
		ObservationsAdmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "observations_admitted_total",
			Help:      "Total number of observations admitted by type",
		}, []string{"type"}),
		ObservationsDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "observations_duplicate_total",
			Help:      "Total number of observations rejected as duplicates",
		}),
		ObservationsFiltered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "observations_filtered_total",
			Help:      "Total number of observations dropped by the materiality filter",
		}),
		IngestErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by stage",
		}, []string{"stage"}),

		DedupCacheSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "dedup_cache_size",
			Help:      "Current number of entries in the dedup cache",
		}),

		// Matching metrics
		RoundsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "rounds_closed_total",
			Help:      "Total number of matched rounds by result",
		}, []string{"result"}),
		UnmatchedExits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "unmatched_exits_total",
			Help:      "Total number of exit observations with no matching entry",
		}),

		// Evaluation metrics
		EvaluationCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "evaluation_cycles_total",
			Help:      "Total number of evaluation cycles by entity kind",
		}, []string{"kind"}),
		EvaluationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "evaluation_cycle_duration_seconds",
			Help:      "Evaluation cycle duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Total number of status transitions by kind and target status",
		}, []string{"kind", "status"}),
		NotifyFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "notify_failures_total",
			Help:      "Total number of failed transition notifications",
		}),

		// Signal tracking metrics
		SignalsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "registered_total",
			Help:      "Total number of signals registered for tracking",
		}),
		SignalsFinalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "finalized_total",
			Help:      "Total number of signals finalized by outcome",
		}, []string{"outcome"}),
		PriceLookupErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "price_lookup_errors_total",
			Help:      "Total number of failed price lookups",
		}),

		// Health metrics
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of last successful evaluation cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
