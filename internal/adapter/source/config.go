package source

import (
	"log/slog"

	"github.com/couchcryptid/epidemic-metrics-etl/internal/config"
	"github.com/couchcryptid/epidemic-metrics-etl/internal/pipeline"
)

// FromConfig returns the HTTP source when DATA_BASE_URL is set and the
// DATA_DIR source otherwise.
func FromConfig(cfg *config.Config, logger *slog.Logger) pipeline.TableSource {
	if cfg.DataBaseURL != "" {
		logger.Info("reading tables over http", "base_url", cfg.DataBaseURL, "timeout", cfg.SourceTimeout)
		return NewHTTP(cfg.DataBaseURL, cfg.SourceTimeout, logger)
	}
	logger.Info("reading tables from directory", "dir", cfg.DataDir)
	return NewDir(cfg.DataDir)
}
