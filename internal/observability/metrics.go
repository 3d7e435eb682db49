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
	// Simulation metrics
	DaysSimulated  *prometheus.CounterVec
	TicksProcessed prometheus.Counter
	TicksSkipped   *prometheus.CounterVec
	TradesClosed   prometheus.Counter
	DayDuration    prometheus.Histogram
	BatchDuration  prometheus.Histogram

	// Search metrics
	CacheLookups     *prometheus.CounterVec
	Evaluations      prometheus.Counter
	SearchIteration  prometheus.Gauge
	BestPnL          prometheus.Gauge
	CheckpointWrites *prometheus.CounterVec

	// Storage metrics
	StoreOperationDuration *prometheus.HistogramVec
	StoreErrors            *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with the default
// registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "backtest"
	}

	return &Metrics{
		DaysSimulated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "days_total",
			Help:      "Day simulations by status (ok, failed)",
		}, []string{"status"}),
		TicksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "ticks_total",
			Help:      "Ticks replayed through the strategy",
		}),
		TicksSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "ticks_skipped_total",
			Help:      "Ticks dropped by reason (malformed, invalid_price)",
		}, []string{"reason"}),
		TradesClosed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_closed_total",
			Help:      "Simulated trades closed",
		}),
		DayDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "day_duration_seconds",
			Help:      "Wall time of one day simulation",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of one multi-day batch",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}),

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "cache_lookups_total",
			Help:      "Configuration cache lookups by result (hit, miss)",
		}, []string{"result"}),
		Evaluations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "evaluations_total",
			Help:      "Configurations simulated",
		}),
		SearchIteration: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "iteration",
			Help:      "Current outer iteration of the search",
		}),
		BestPnL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "best_pnl",
			Help:      "Best aggregate pnl found so far",
		}),
		CheckpointWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "checkpoint_writes_total",
			Help:      "Best-config checkpoint writes by status",
		}, []string{"status"}),

		StoreOperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Result store operation duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Result store errors",
		}, []string{"backend", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordDay records a finished day simulation.
func RecordDay(failed bool, seconds float64, ticks, malformed, invalid, closed int) {
	status := "ok"
	if failed {
		status = "failed"
	}
	DefaultMetrics.DaysSimulated.WithLabelValues(status).Inc()
	DefaultMetrics.DayDuration.Observe(seconds)
	DefaultMetrics.TicksProcessed.Add(float64(ticks))
	DefaultMetrics.TicksSkipped.WithLabelValues("malformed").Add(float64(malformed))
	DefaultMetrics.TicksSkipped.WithLabelValues("invalid_price").Add(float64(invalid))
	DefaultMetrics.TradesClosed.Add(float64(closed))
}

// RecordBatch records a finished batch.
func RecordBatch(seconds float64) {
	DefaultMetrics.BatchDuration.Observe(seconds)
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		DefaultMetrics.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	DefaultMetrics.CacheLookups.WithLabelValues("miss").Inc()
}

// RecordEvaluation increments the simulated configurations counter.
func RecordEvaluation() {
	DefaultMetrics.Evaluations.Inc()
}

// RecordSearchProgress updates the iteration and best pnl gauges.
func RecordSearchProgress(iteration int, bestPnL float64) {
	DefaultMetrics.SearchIteration.Set(float64(iteration))
	DefaultMetrics.BestPnL.Set(bestPnL)
}

// RecordCheckpoint records a checkpoint write.
func RecordCheckpoint(err error) {
	if err != nil {
		DefaultMetrics.CheckpointWrites.WithLabelValues("error").Inc()
		return
	}
	DefaultMetrics.CheckpointWrites.WithLabelValues("ok").Inc()
}

// RecordStoreOp records result store operation metrics.
func RecordStoreOp(backend, operation string, seconds float64, err error) {
	DefaultMetrics.StoreOperationDuration.WithLabelValues(backend, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.StoreErrors.WithLabelValues(backend, operation).Inc()
	}
}
