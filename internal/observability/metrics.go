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
	// Classification metrics
	TransactionsClassified *prometheus.CounterVec
	ClassificationErrors   prometheus.Counter

	// Ledger metrics
	DisposalsMatched  prometheus.Counter
	InsufficientLots  prometheus.Counter
	SnapshotsExported prometheus.Counter
	SnapshotsImported prometheus.Counter

	// Recovery metrics
	RecoveryAttempts    *prometheus.CounterVec
	DuplicatesResolved  *prometheus.CounterVec
	LowConfidenceEvents prometheus.Counter

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	EventsEmitted     *prometheus.CounterVec
	ReportsGenerated  prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "crypto_tax_core"
	}

	return &Metrics{
		// Classification metrics
		TransactionsClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "transactions_total",
			Help:      "Total number of transactions classified by event type",
		}, []string{"event_type"}),
		ClassificationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "errors_total",
			Help:      "Total number of malformed transactions rejected",
		}),

		// Ledger metrics
		DisposalsMatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "disposals_matched_total",
			Help:      "Total number of disposals resolved against acquisition lots",
		}),
		InsufficientLots: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "insufficient_lots_total",
			Help:      "Total number of disposals exceeding recorded holdings",
		}),
		SnapshotsExported: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "snapshots_exported_total",
			Help:      "Total number of ledger state exports",
		}),
		SnapshotsImported: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "snapshots_imported_total",
			Help:      "Total number of ledger state imports",
		}),

		// Recovery metrics
		RecoveryAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recovery",
			Name:      "attempts_total",
			Help:      "Total number of recovery attempts by kind and outcome",
		}, []string{"kind", "outcome"}),
		DuplicatesResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recovery",
			Name:      "duplicates_resolved_total",
			Help:      "Total number of duplicate resolutions by action",
		}, []string{"action"}),
		LowConfidenceEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recovery",
			Name:      "low_confidence_events_total",
			Help:      "Total number of taxable events built from recovered data",
		}),

		// Pipeline metrics
		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"status"}),
		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"jurisdiction"}),
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_emitted_total",
			Help:      "Total number of taxable events emitted by type",
		}, []string{"event_type"}),
		ReportsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "reports_generated_total",
			Help:      "Total number of tax reports generated",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordClassification increments the classified transactions counter.
func RecordClassification(eventType string) {
	DefaultMetrics.TransactionsClassified.WithLabelValues(eventType).Inc()
}

// RecordDisposalMatched increments the matched disposals counter.
func RecordDisposalMatched() {
	DefaultMetrics.DisposalsMatched.Inc()
}

// RecordInsufficientLots increments the insufficient lots counter.
func RecordInsufficientLots() {
	DefaultMetrics.InsufficientLots.Inc()
}

// RecordRecovery records a recovery attempt outcome.
func RecordRecovery(kind, outcome string) {
	DefaultMetrics.RecoveryAttempts.WithLabelValues(kind, outcome).Inc()
}

// RecordDuplicateResolution increments the duplicate resolutions counter.
func RecordDuplicateResolution(action string) {
	DefaultMetrics.DuplicatesResolved.WithLabelValues(action).Inc()
}

// RecordEventEmitted increments the emitted events counter.
func RecordEventEmitted(eventType string) {
	DefaultMetrics.EventsEmitted.WithLabelValues(eventType).Inc()
}

// RecordPipelineRun records a pipeline run.
func RecordPipelineRun(jurisdiction, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(jurisdiction).Observe(durationSeconds)
}

// RecordReportGenerated increments the reports generated counter.
func RecordReportGenerated() {
	DefaultMetrics.ReportsGenerated.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
