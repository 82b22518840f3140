// Package metrics provides Prometheus metrics for the dosage pattern engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	PatternsCreated       prometheus.Counter
	PatternsClosed        prometheus.Counter
	SchedulesGenerated    prometheus.Counter
	ScheduleDuration      prometheus.Histogram
	DoseLogsReconciled    prometheus.Counter
	VarianceFlagged       prometheus.Counter
	IntegrityFaults       prometheus.Counter
	KafkaMessagesProduced prometheus.Counter
	KafkaMessagesConsumed prometheus.Counter
	OutboxPending         prometheus.Gauge
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		PatternsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dosage_patterns_created_total",
			Help: "Total dosage patterns created",
		}),
		PatternsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dosage_patterns_closed_total",
			Help: "Total dosage patterns closed by a superseding pattern",
		}),
		SchedulesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dosage_schedules_generated_total",
			Help: "Total dosage schedules generated",
		}),
		ScheduleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dosage_schedule_generation_duration_seconds",
			Help:    "Schedule generation duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		DoseLogsReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dose_logs_reconciled_total",
			Help: "Total dose logs reconciled against expected doses",
		}),
		VarianceFlagged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dose_variance_flagged_total",
			Help: "Total dose logs flagged with a variance",
		}),
		IntegrityFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pattern_integrity_faults_total",
			Help: "Total resolutions that found more than one active pattern",
		}),
		KafkaMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		KafkaMessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.PatternsCreated,
		m.PatternsClosed,
		m.SchedulesGenerated,
		m.ScheduleDuration,
		m.DoseLogsReconciled,
		m.VarianceFlagged,
		m.IntegrityFaults,
		m.KafkaMessagesProduced,
		m.KafkaMessagesConsumed,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
