package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "epi_metrics"

// Metrics holds the Prometheus counters, histograms, and gauges for report runs.
type Metrics struct {
	// Loader metrics. labels: table
	RowsLoaded     *prometheus.CounterVec
	RowsSkipped    *prometheus.CounterVec
	ColumnsDropped *prometheus.CounterVec
	InvalidCells   *prometheus.CounterVec

	ReportsBuilt        *prometheus.CounterVec   // labels: kind
	ReportBuildDuration *prometheus.HistogramVec // labels: kind

	// Sink metrics. labels: sink
	RowsExported *prometheus.CounterVec
	ExportErrors *prometheus.CounterVec

	RankingCache  *prometheus.CounterVec // labels: result={hit,miss}
	PipelineReady prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates metrics registered with reg. cmd/etl uses a
// private registry so the text exposition holds only run metrics.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Region rows parsed from each source table.",
		}, []string{"table"}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Rows skipped because they carry no country name.",
		}, []string{"table"}),
		ColumnsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "header_columns_dropped_total",
			Help:      "Header columns dropped as unparseable or duplicate dates.",
		}, []string{"table"}),
		InvalidCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_cells_total",
			Help:      "Non-numeric cells coerced to absent values.",
		}, []string{"table"}),
		ReportsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_built_total",
			Help:      "Reports built by kind.",
		}, []string{"kind"}),
		ReportBuildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_build_duration_seconds",
			Help:      "Time spent building a single report.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"kind"}),
		RowsExported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_exported_total",
			Help:      "Report rows or series written per sink.",
		}, []string{"sink"}),
		ExportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_errors_total",
			Help:      "Failed report exports per sink.",
		}, []string{"sink"}),
		RankingCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_cache_total",
			Help:      "Ad-hoc ranking cache lookups by result.",
		}, []string{"result"}),
		PipelineReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_ready",
			Help:      "1 once a run has completed, 0 before.",
		}),
	}

	reg.MustRegister(
		m.RowsLoaded,
		m.RowsSkipped,
		m.ColumnsDropped,
		m.InvalidCells,
		m.ReportsBuilt,
		m.ReportBuildDuration,
		m.RowsExported,
		m.ExportErrors,
		m.RankingCache,
		m.PipelineReady,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}
