package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/epidemic-metrics-etl/internal/domain"
	"github.com/couchcryptid/epidemic-metrics-etl/internal/observability"
)

// Exporter writes a built report to a sink.
type Exporter interface {
	Name() string
	Export(ctx context.Context, report domain.Report) error
}

// Pipeline builds reports from a dataset and hands them to every exporter.
type Pipeline struct {
	dataset   *Dataset
	exporters []Exporter
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool

	mu      sync.RWMutex
	reports []domain.Report
}

// New creates a Pipeline reading tables from source.
func New(source TableSource, tables Tables, exporters []Exporter, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		dataset:   NewDataset(source, tables, logger, metrics),
		exporters: exporters,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a run has completed, or an error describing
// why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Run validates specs, loads the tables they need, builds each report and
// exports it. A load failure aborts the run. Export failures do not stop
// other reports or sinks; they are joined into the returned error alongside
// the reports that were built.
func (p *Pipeline) Run(ctx context.Context, specs []domain.ReportSpec) ([]domain.Report, error) {
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.dataset.Load(ctx, needs(specs)...); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	p.logger.Info("pipeline run started", "run_id", runID, "reports", len(specs))

	reports := make([]domain.Report, 0, len(specs))
	var exportErrs []error
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		start := time.Now()
		report := p.build(spec)
		report.RunID = runID
		p.metrics.ReportBuildDuration.WithLabelValues(string(spec.Kind)).Observe(time.Since(start).Seconds())
		p.metrics.ReportsBuilt.WithLabelValues(string(spec.Kind)).Inc()

		exportErrs = append(exportErrs, p.export(ctx, report)...)
		p.logger.Info("report built", "report", report.Name, "kind", report.Kind, "rows", size(report))
		reports = append(reports, report)
	}

	p.reports = reports
	p.ready.Store(true)
	p.metrics.PipelineReady.Set(1)
	p.logger.Info("pipeline run complete", "run_id", runID, "export_errors", len(exportErrs))

	return reports, errors.Join(exportErrs...)
}

func (p *Pipeline) build(spec domain.ReportSpec) domain.Report {
	switch spec.Kind {
	case domain.KindRanking:
		return domain.BuildRanking(spec, p.dataset.MetricTable())
	case domain.KindTrend:
		return domain.BuildTrend(spec, p.dataset.Records(domain.MetricConfirmed), p.dataset.Records(domain.MetricDeaths))
	default:
		return domain.BuildBreakdown(spec, p.dataset.Records(domain.MetricConfirmed))
	}
}

func (p *Pipeline) export(ctx context.Context, report domain.Report) []error {
	var errs []error
	for _, ex := range p.exporters {
		if err := ex.Export(ctx, report); err != nil {
			p.logger.Error("export failed", "report", report.Name, "sink", ex.Name(), "error", err)
			p.metrics.ExportErrors.WithLabelValues(ex.Name()).Inc()
			errs = append(errs, fmt.Errorf("export %s to %s: %w", report.Name, ex.Name(), err))
			continue
		}
		p.metrics.RowsExported.WithLabelValues(ex.Name()).Add(float64(size(report)))
	}
	return errs
}

// Reports returns the reports of the last completed run.
func (p *Pipeline) Reports() []domain.Report {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.reports)
}

// Report returns a report of the last completed run by name.
func (p *Pipeline) Report(name string) (domain.Report, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, r := range p.reports {
		if r.Name == name {
			return r, true
		}
	}
	return domain.Report{}, false
}

// MetricTable returns the metric table over all three source tables, loading
// any the last run did not need.
func (p *Pipeline) MetricTable(ctx context.Context) (domain.MetricTable, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.dataset.Load(ctx, domain.Metrics...); err != nil {
		return domain.MetricTable{}, err
	}
	return p.dataset.MetricTable(), nil
}

// needs returns the union of the tables specs read, in load order.
func needs(specs []domain.ReportSpec) []domain.Metric {
	want := make(map[domain.Metric]bool)
	for _, s := range specs {
		for _, m := range s.Needs() {
			want[m] = true
		}
	}
	out := make([]domain.Metric, 0, len(want))
	for _, m := range domain.Metrics {
		if want[m] {
			out = append(out, m)
		}
	}
	return out
}

func size(r domain.Report) int {
	if r.Kind == domain.KindRanking {
		return len(r.Rows)
	}
	return len(r.Series)
}
