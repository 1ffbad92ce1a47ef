// Package http serves health checks, metrics, and built reports over HTTP.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/epidemic-metrics-etl/internal/domain"
	"github.com/couchcryptid/epidemic-metrics-etl/internal/observability"
)

// ReportService is the read side of a completed pipeline run.
type ReportService interface {
	sharedobs.ReadinessChecker
	Reports() []domain.Report
	Report(name string) (domain.Report, bool)
	MetricTable(ctx context.Context) (domain.MetricTable, error)
}

// Options configures the report endpoints.
type Options struct {
	// DefaultTopN is the ranking size when the request names none.
	DefaultTopN int
	CacheSize   int
}

// Server exposes health, readiness, metrics, and report HTTP endpoints.
type Server struct {
	httpServer *http.Server
	service    ReportService
	cache      *lruCache[domain.Report]
	opts       Options
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /reports, /reports/{name} and /rankings routes.
func NewServer(addr string, service ReportService, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		service: service,
		cache:   newLRUCache[domain.Report](opts.CacheSize),
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(service))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /reports", s.handleListReports)
	mux.HandleFunc("GET /reports/{name}", s.handleGetReport)
	mux.HandleFunc("GET /rankings", s.handleRankings)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
