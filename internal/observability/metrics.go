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
	SimulationsTotal    *prometheus.CounterVec
	SimulationDuration  prometheus.Histogram
	TradesExecuted      prometheus.Counter
	LiquidationsTotal   prometheus.Counter
	SimulationErrors    *prometheus.CounterVec

	// Sweep metrics
	SweepRunsTotal     *prometheus.CounterVec
	SweepDuration      prometheus.Histogram
	SweepCombinations  prometheus.Gauge
	SweepWindows       prometheus.Gauge
	FilteredParamSets  prometheus.Counter

	// Cache metrics
	CacheLookups   *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec
	CacheEntries   *prometheus.GaugeVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
	RowsPersisted   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSweep prometheus.Gauge
	UptimeSeconds       prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "fgi_strategy_lab"
	}

	return &Metrics{
		// Simulation metrics
		SimulationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of simulations run by strategy mode",
		}, []string{"mode"}),
		SimulationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "duration_seconds",
			Help:      "Single simulation duration in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		TradesExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_executed_total",
			Help:      "Total number of simulated trades executed",
		}),
		LiquidationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "liquidations_total",
			Help:      "Total number of simulated liquidations",
		}),
		SimulationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "errors_total",
			Help:      "Total number of simulation errors by type",
		}, []string{"error_type"}),

		// Sweep metrics
		SweepRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Total number of sweep runs by status",
		}, []string{"status"}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Sweep execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		SweepCombinations: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "combinations",
			Help:      "Number of parameter combinations in the last sweep",
		}),
		SweepWindows: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "windows",
			Help:      "Number of series windows in the last sweep",
		}),
		FilteredParamSets: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "filtered_param_sets_total",
			Help:      "Total number of grid points rejected by validation",
		}),

		// Cache metrics
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of result cache lookups by outcome",
		}, []string{"outcome"}),
		CacheEvictions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total number of cache evictions by reason",
		}, []string{"reason"}),
		CacheEntries: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Current number of cache entries by partition",
		}, []string{"partition"}),

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
		RowsPersisted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "rows_persisted_total",
			Help:      "Total number of simulation run rows persisted",
		}, []string{"database"}),

		// Health metrics
		LastSuccessfulSweep: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sweep_timestamp",
			Help:      "Unix timestamp of last successful sweep run",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSimulation records one completed simulation.
func RecordSimulation(mode string, seconds float64, trades, liquidations int) {
	DefaultMetrics.SimulationsTotal.WithLabelValues(mode).Inc()
	DefaultMetrics.SimulationDuration.Observe(seconds)
	DefaultMetrics.TradesExecuted.Add(float64(trades))
	DefaultMetrics.LiquidationsTotal.Add(float64(liquidations))
}

// RecordSimulationError records a failed simulation.
func RecordSimulationError(errorType string) {
	DefaultMetrics.SimulationErrors.WithLabelValues(errorType).Inc()
}

// RecordSweepRun records a sweep run and its shape.
func RecordSweepRun(status string, durationSeconds float64, combinations, windows, filtered int) {
	DefaultMetrics.SweepRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.SweepDuration.Observe(durationSeconds)
	DefaultMetrics.SweepCombinations.Set(float64(combinations))
	DefaultMetrics.SweepWindows.Set(float64(windows))
	DefaultMetrics.FilteredParamSets.Add(float64(filtered))
}

// RecordCacheLookups adds cache lookup outcomes from a stats snapshot.
func RecordCacheLookups(hits, misses, stale, errors int64) {
	DefaultMetrics.CacheLookups.WithLabelValues("hit").Add(float64(hits))
	DefaultMetrics.CacheLookups.WithLabelValues("miss").Add(float64(misses))
	DefaultMetrics.CacheLookups.WithLabelValues("stale").Add(float64(stale))
	DefaultMetrics.CacheLookups.WithLabelValues("error").Add(float64(errors))
}

// RecordCacheEvictions adds evicted entries under one reason.
func RecordCacheEvictions(reason string, n int) {
	DefaultMetrics.CacheEvictions.WithLabelValues(reason).Add(float64(n))
}

// UpdateCacheEntries updates the per-partition entry gauges.
func UpdateCacheEntries(permanent, ephemeral int) {
	DefaultMetrics.CacheEntries.WithLabelValues("permanent").Set(float64(permanent))
	DefaultMetrics.CacheEntries.WithLabelValues("ephemeral").Set(float64(ephemeral))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordRowsPersisted records stored simulation run rows.
func RecordRowsPersisted(database string, rows int) {
	DefaultMetrics.RowsPersisted.WithLabelValues(database).Add(float64(rows))
}

// MarkSweepSuccess sets the last successful sweep timestamp.
func MarkSweepSuccess(unixSeconds float64) {
	DefaultMetrics.LastSuccessfulSweep.Set(unixSeconds)
}
