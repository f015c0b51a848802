package analytics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricReportsTotal      = "analytics_reports_total"
	MetricReportDuration    = "analytics_report_duration_seconds"
	MetricDegradedTotal     = "analytics_degraded_reports_total"
	MetricTimeseriesQueries = "analytics_timeseries_queries_total"
	MetricReportCacheHits   = "analytics_report_cache_hits_total"
	MetricReportCacheMisses = "analytics_report_cache_misses_total"
)

// Outcome constants for report labeling.
const (
	OutcomeOK       = "ok"
	OutcomeEmpty    = "empty"
	OutcomeError    = "error"
	OutcomeCacheHit = "cache_hit"
)

// Metrics contains Prometheus metrics for the aggregation engine.
// All operations are thread-safe.
type Metrics struct {
	reportsTotal      *prometheus.CounterVec
	reportDuration    *prometheus.HistogramVec
	degradedTotal     prometheus.Counter
	timeseriesQueries *prometheus.CounterVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register them
// with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		reportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricReportsTotal,
				Help: "Total number of engagement reports produced by outcome",
			},
			[]string{"outcome"},
		),
		reportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricReportDuration,
				Help:    "Histogram of report build duration in seconds by outcome",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
			[]string{"outcome"},
		),
		degradedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricDegradedTotal,
				Help: "Total number of reports served with analytics disabled",
			},
		),
		timeseriesQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricTimeseriesQueries,
				Help: "Total number of time-series backend queries by pipe and outcome",
			},
			[]string{"pipe", "outcome"},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricReportCacheHits,
				Help: "Total number of report cache hits",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricReportCacheMisses,
				Help: "Total number of report cache misses",
			},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveReport records one report build with its outcome and elapsed time.
func (m *Metrics) ObserveReport(outcome string, elapsed time.Duration) {
	m.reportsTotal.WithLabelValues(outcome).Inc()
	m.reportDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// IncDegraded increments the degraded report counter.
func (m *Metrics) IncDegraded() {
	m.degradedTotal.Inc()
}

// IncTimeseriesQuery increments the backend query counter.
// pipe: The queried pipe name
// outcome: "ok", "unauthorized", or "error"
func (m *Metrics) IncTimeseriesQuery(pipe, outcome string) {
	m.timeseriesQueries.WithLabelValues(pipe, outcome).Inc()
}

// IncCacheHit increments the report cache hit counter.
func (m *Metrics) IncCacheHit() {
	m.cacheHits.Inc()
}

// IncCacheMiss increments the report cache miss counter.
func (m *Metrics) IncCacheMiss() {
	m.cacheMisses.Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.reportsTotal,
		m.reportDuration,
		m.degradedTotal,
		m.timeseriesQueries,
		m.cacheHits,
		m.cacheMisses,
	}
}
