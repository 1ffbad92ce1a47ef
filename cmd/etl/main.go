// Command etl runs the report pipeline once against the configured source
// tables and writes every report to the enabled sinks.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/epidemic-metrics-etl/internal/adapter/file"
	kafkaadapter "github.com/couchcryptid/epidemic-metrics-etl/internal/adapter/kafka"
	"github.com/couchcryptid/epidemic-metrics-etl/internal/adapter/source"
	"github.com/couchcryptid/epidemic-metrics-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/epidemic-metrics-etl/internal/config"
	"github.com/couchcryptid/epidemic-metrics-etl/internal/observability"
	"github.com/couchcryptid/epidemic-metrics-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	specs, err := cfg.ReportSpecs()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetricsWithRegistry(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exporters, closers, err := buildExporters(ctx, cfg, logger)
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Error("sink close error", "error", err)
			}
		}
	}()
	if err != nil {
		return err
	}
	if len(exporters) == 0 {
		logger.Warn("no sinks enabled, reports are built but not written")
	}

	p := pipeline.New(source.FromConfig(cfg, logger), cfg.Tables(), exporters, logger, metrics)
	reports, runErr := p.Run(ctx, specs)

	if cfg.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsTextfile, registry); err != nil {
			logger.Error("metrics textfile write error", "path", cfg.MetricsTextfile, "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	logger.Info("run complete", "reports", len(reports), "sinks", len(exporters))
	return nil
}

// buildExporters returns the enabled sinks and the ones that must be closed,
// in construction order. On error the closers built so far are still returned.
func buildExporters(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]pipeline.Exporter, []io.Closer, error) {
	var (
		exporters []pipeline.Exporter
		closers   []io.Closer
	)

	if len(cfg.OutputFormats) > 0 {
		exporters = append(exporters, file.NewExporter(cfg.OutputDir, cfg.OutputFormats, logger))
		logger.Info("file sink enabled", "dir", cfg.OutputDir, "formats", cfg.OutputFormats)
	}

	if cfg.SQLEnabled() {
		store, err := sqlstore.Open(ctx, cfg.SQLDriver, cfg.SQLDSN, logger)
		if err != nil {
			return exporters, closers, fmt.Errorf("open sql sink: %w", err)
		}
		exporters = append(exporters, store)
		closers = append(closers, store)
		logger.Info("sql sink enabled", "driver", cfg.SQLDriver)
	}

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		exporters = append(exporters, writer)
		closers = append(closers, writer)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	return exporters, closers, nil
}
