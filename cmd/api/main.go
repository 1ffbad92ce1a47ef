// Command api builds the configured reports once and serves them, together
// with ad-hoc rankings, over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/epidemic-metrics-etl/internal/adapter/http"
	"github.com/couchcryptid/epidemic-metrics-etl/internal/adapter/source"
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
	metrics := observability.NewMetrics()

	specs, err := cfg.ReportSpecs()
	if err != nil {
		logger.Error("failed to resolve reports", "error", err)
		os.Exit(1)
	}

	p := pipeline.New(source.FromConfig(cfg, logger), cfg.Tables(), nil, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, httpadapter.Options{
		DefaultTopN: cfg.TopN,
		CacheSize:   cfg.CacheSize,
	}, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server. /readyz fails until the first run completes.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Build reports.
	go func() {
		if _, err := p.Run(ctx, specs); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
