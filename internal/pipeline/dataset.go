package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/epidemic-metrics-etl/internal/domain"
	"github.com/couchcryptid/epidemic-metrics-etl/internal/observability"
)

// TableSource opens a source table by name.
type TableSource interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Tables maps each metric to the name of the table that counts it.
type Tables map[domain.Metric]string

// Dataset loads source tables on demand and keeps them for the run.
// It is not safe for concurrent use.
type Dataset struct {
	source  TableSource
	tables  Tables
	logger  *slog.Logger
	metrics *observability.Metrics

	loaded      map[domain.Metric]domain.Table
	metricTable *domain.MetricTable
}

// NewDataset creates an empty Dataset reading from source.
func NewDataset(source TableSource, tables Tables, logger *slog.Logger, metrics *observability.Metrics) *Dataset {
	return &Dataset{
		source:  source,
		tables:  tables,
		logger:  logger,
		metrics: metrics,
		loaded:  make(map[domain.Metric]domain.Table),
	}
}

// Load reads every table in ms that is not loaded yet. Any read failure is
// fatal and returned as a *domain.SourceError.
func (d *Dataset) Load(ctx context.Context, ms ...domain.Metric) error {
	for _, m := range ms {
		if _, ok := d.loaded[m]; ok {
			continue
		}
		name := d.tables[m]
		if name == "" {
			return fmt.Errorf("no table configured for %s", m)
		}
		table, err := d.read(ctx, name)
		if err != nil {
			return err
		}
		d.loaded[m] = table
		d.metricTable = nil
	}
	return nil
}

func (d *Dataset) read(ctx context.Context, name string) (domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, &domain.SourceError{Name: name, Err: err}
	}
	rc, err := d.source.Open(ctx, name)
	if err != nil {
		return domain.Table{}, &domain.SourceError{Name: name, Err: err}
	}
	defer rc.Close()

	table, err := domain.ParseTable(name, rc)
	if err != nil {
		return domain.Table{}, err
	}
	d.observe(table)
	return table, nil
}

func (d *Dataset) observe(t domain.Table) {
	s := t.Stats
	d.metrics.RowsLoaded.WithLabelValues(t.Name).Add(float64(s.Rows))
	d.metrics.RowsSkipped.WithLabelValues(t.Name).Add(float64(s.SkippedRows))
	d.metrics.ColumnsDropped.WithLabelValues(t.Name).Add(float64(len(s.DroppedColumns)))
	d.metrics.InvalidCells.WithLabelValues(t.Name).Add(float64(s.InvalidCells))

	if len(s.DroppedColumns) > 0 {
		d.logger.Warn("dropped unparseable header columns",
			"table", t.Name, "count", len(s.DroppedColumns), "columns", s.DroppedColumns)
	}
	if s.InvalidCells > 0 {
		d.logger.Warn("coerced non-numeric cells to absent", "table", t.Name, "count", s.InvalidCells)
	}
	if s.SkippedRows > 0 {
		d.logger.Warn("skipped rows without country", "table", t.Name, "count", s.SkippedRows)
	}
	d.logger.Info("table loaded", "table", t.Name, "rows", s.Rows, "dates", len(t.Dates))
}

// Records returns the rows of a loaded table, or nil if it was never loaded.
func (d *Dataset) Records(m domain.Metric) []domain.RegionRecord {
	return d.loaded[m].Records
}

// MetricTable builds the per-country metric table from the loaded tables.
// Metrics whose table is not loaded read as absent.
func (d *Dataset) MetricTable() domain.MetricTable {
	if d.metricTable == nil {
		mt := domain.BuildMetricTable(
			d.byCountry(domain.MetricConfirmed),
			d.byCountry(domain.MetricDeaths),
			d.byCountry(domain.MetricRecovered),
		)
		d.metricTable = &mt
	}
	return *d.metricTable
}

func (d *Dataset) byCountry(m domain.Metric) []domain.CountryAggregate {
	t, ok := d.loaded[m]
	if !ok {
		return nil
	}
	return domain.Aggregate(t.Records, domain.ByCountry)
}
