// Package sqlstore persists reports to SQLite or PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/epidemic-metrics-etl/internal/domain"
)

const (
	rowsTable   = "report_rows"
	seriesTable = "report_series"

	// insertChunk bounds the rows of one INSERT so that the bind parameter
	// count stays under the SQLite and PostgreSQL limits.
	insertChunk = 500
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS report_rows (
		report TEXT NOT NULL,
		run_id TEXT NOT NULL,
		generated_at TIMESTAMP NOT NULL,
		ordinal INTEGER NOT NULL,
		country TEXT NOT NULL,
		confirmed DOUBLE PRECISION,
		deaths DOUBLE PRECISION,
		recovered DOUBLE PRECISION,
		mortality_rate DOUBLE PRECISION NOT NULL,
		recovery_rate DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (report, ordinal)
	)`,
	`CREATE TABLE IF NOT EXISTS report_series (
		report TEXT NOT NULL,
		run_id TEXT NOT NULL,
		generated_at TIMESTAMP NOT NULL,
		series TEXT NOT NULL,
		day TEXT NOT NULL,
		value DOUBLE PRECISION,
		PRIMARY KEY (report, series, day)
	)`,
}

// Store writes reports into report_rows (rankings) and report_series
// (trends and breakdowns). It implements pipeline.Exporter.
type Store struct {
	db     *sql.DB
	sq     squirrel.StatementBuilderType
	logger *slog.Logger
}

// Open connects with driver ("sqlite3" or "postgres") and creates the
// schema if it is missing.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := New(db, driver, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. driver selects the placeholder style.
func New(db *sql.DB, driver string, logger *slog.Logger) *Store {
	format := squirrel.PlaceholderFormat(squirrel.Question)
	if driver == "postgres" {
		format = squirrel.Dollar
	}
	return &Store{
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(format),
		logger: logger,
	}
}

// Migrate creates the report tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Name identifies the sink in logs and metrics.
func (s *Store) Name() string { return "sql" }

func (s *Store) Close() error {
	return s.db.Close()
}

// Export replaces every stored row of the report with the new run inside one
// transaction, so readers see either the previous run or this one.
func (s *Store) Export(ctx context.Context, report domain.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{rowsTable, seriesTable} {
		query, args, err := s.sq.Delete(table).Where(squirrel.Eq{"report": report.Name}).ToSql()
		if err != nil {
			return fmt.Errorf("build delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear %s for %s: %w", table, report.Name, err)
		}
	}

	var inserts []squirrel.InsertBuilder
	if report.Kind == domain.KindRanking {
		inserts = s.rowInserts(report)
	} else {
		inserts = s.seriesInserts(report)
	}
	for _, ins := range inserts {
		query, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %s: %w", report.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", report.Name, err)
	}
	s.logger.Debug("report stored", "report", report.Name, "statements", len(inserts))
	return nil
}

func (s *Store) rowInserts(report domain.Report) []squirrel.InsertBuilder {
	var out []squirrel.InsertBuilder
	for start := 0; start < len(report.Rows); start += insertChunk {
		end := min(start+insertChunk, len(report.Rows))
		ins := s.sq.Insert(rowsTable).Columns(
			"report", "run_id", "generated_at", "ordinal", "country",
			"confirmed", "deaths", "recovered", "mortality_rate", "recovery_rate",
		)
		for i := start; i < end; i++ {
			r := report.Rows[i]
			ins = ins.Values(
				report.Name, report.RunID, report.GeneratedAt, i+1, r.Country,
				nullable(r.Confirmed), nullable(r.Deaths), nullable(r.Recovered), r.MortalityRate, r.RecoveryRate,
			)
		}
		out = append(out, ins)
	}
	return out
}

func (s *Store) seriesInserts(report domain.Report) []squirrel.InsertBuilder {
	var out []squirrel.InsertBuilder
	var ins squirrel.InsertBuilder
	n := 0
	for _, series := range report.Series {
		for _, p := range series.Points {
			if n%insertChunk == 0 {
				if n > 0 {
					out = append(out, ins)
				}
				ins = s.sq.Insert(seriesTable).Columns("report", "run_id", "generated_at", "series", "day", "value")
			}
			ins = ins.Values(report.Name, report.RunID, report.GeneratedAt, series.Name, p.Date.Format(domain.DateLayout), nullable(p.Value))
			n++
		}
	}
	if n > 0 {
		out = append(out, ins)
	}
	return out
}

// Rows returns the stored ranking rows of a report in rank order.
func (s *Store) Rows(ctx context.Context, report string) ([]domain.MetricRow, error) {
	query, args, err := s.sq.
		Select("country", "confirmed", "deaths", "recovered", "mortality_rate", "recovery_rate").
		From(rowsTable).
		Where(squirrel.Eq{"report": report}).
		OrderBy("ordinal ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", rowsTable, err)
	}
	defer rows.Close()

	var out []domain.MetricRow
	for rows.Next() {
		var r domain.MetricRow
		var confirmed, deaths, recovered sql.NullFloat64
		if err := rows.Scan(&r.Country, &confirmed, &deaths, &recovered, &r.MortalityRate, &r.RecoveryRate); err != nil {
			return nil, fmt.Errorf("scan %s: %w", rowsTable, err)
		}
		r.Confirmed, r.Deaths, r.Recovered = value(confirmed), value(deaths), value(recovered)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SeriesValues returns the stored values of one series of a report, keyed by
// day in DateLayout.
func (s *Store) SeriesValues(ctx context.Context, report, series string) (map[string]domain.Value, error) {
	query, args, err := s.sq.
		Select("day", "value").
		From(seriesTable).
		Where(squirrel.Eq{"report": report, "series": series}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", seriesTable, err)
	}
	defer rows.Close()

	out := make(map[string]domain.Value)
	for rows.Next() {
		var (
			day string
			v   sql.NullFloat64
		)
		if err := rows.Scan(&day, &v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", seriesTable, err)
		}
		out[day] = value(v)
	}
	return out, rows.Err()
}

func nullable(v domain.Value) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v.V, Valid: v.OK}
}

func value(n sql.NullFloat64) domain.Value {
	if !n.Valid {
		return domain.None()
	}
	return domain.Some(n.Float64)
}
