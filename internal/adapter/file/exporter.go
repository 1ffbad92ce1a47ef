// Package file writes reports to local CSV and JSON files.
package file

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/epidemic-metrics-etl/internal/domain"
)

// Exporter writes <dir>/<report>.<format> for every configured format.
type Exporter struct {
	dir     string
	formats []string
	logger  *slog.Logger
}

// NewExporter creates an exporter writing the given formats ("csv", "json")
// into dir.
func NewExporter(dir string, formats []string, logger *slog.Logger) *Exporter {
	return &Exporter{dir: dir, formats: formats, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (e *Exporter) Name() string { return "file" }

// Export writes one file per format. Each file is written to a temporary
// name and renamed into place.
func (e *Exporter) Export(ctx context.Context, report domain.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var errs []error
	for _, format := range e.formats {
		path := filepath.Join(e.dir, report.Name+"."+format)
		var err error
		switch format {
		case "csv":
			err = writeAtomic(path, func(w *bufio.Writer) error { return writeCSV(w, report.Grid()) })
		case "json":
			err = writeAtomic(path, func(w *bufio.Writer) error { return writeJSON(w, report) })
		default:
			err = fmt.Errorf("unsupported format %q", format)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		e.logger.Debug("report written", "report", report.Name, "path", path)
	}
	return errors.Join(errs...)
}

func writeAtomic(path string, write func(*bufio.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writeCSV(w *bufio.Writer, g domain.Grid) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{g.Index}, g.Columns...)); err != nil {
		return err
	}
	record := make([]string, len(g.Columns)+1)
	for i, key := range g.Keys {
		record[0] = key
		for j, v := range g.Cells[i] {
			record[j+1] = v.String()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w *bufio.Writer, report domain.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
