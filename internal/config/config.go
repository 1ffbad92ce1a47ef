package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/epidemic-metrics-etl/internal/domain"
)

// Config holds all settings, populated from environment variables.
type Config struct {
	// Source tables.
	DataDir        string
	DataBaseURL    string
	SourceTimeout  time.Duration
	ConfirmedTable string
	DeathsTable    string
	RecoveredTable string

	// Report selection and defaults.
	ProfilesPath  string
	Reports       []string
	CountryFilter string
	MinConfirmed  *float64
	MaxRate       *float64
	RollingWindow int
	TopN          int

	// Sinks.
	OutputDir       string
	OutputFormats   []string
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaSinkTopic  string
	SQLDriver       string
	SQLDSN          string
	MetricsTextfile string

	HTTPAddr        string
	CacheSize       int
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	sourceTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("SOURCE_TIMEOUT", "30s"))
	if err != nil || sourceTimeout <= 0 {
		return nil, errors.New("invalid SOURCE_TIMEOUT")
	}

	window, err := parsePositiveInt("ROLLING_WINDOW", 7, 1)
	if err != nil {
		return nil, err
	}
	topN, err := parsePositiveInt("TOP_N", 20, 0)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("CACHE_SIZE", 256, 1)
	if err != nil {
		return nil, err
	}

	minConfirmed, err := parseOptionalFloat("MIN_CONFIRMED")
	if err != nil {
		return nil, err
	}
	maxRate, err := parseOptionalFloat("MAX_RATE")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:        sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		DataBaseURL:    os.Getenv("DATA_BASE_URL"),
		SourceTimeout:  sourceTimeout,
		ConfirmedTable: sharedcfg.EnvOrDefault("CONFIRMED_TABLE", "time_series_covid19_confirmed_global.csv"),
		DeathsTable:    sharedcfg.EnvOrDefault("DEATHS_TABLE", "time_series_covid19_deaths_global.csv"),
		RecoveredTable: sharedcfg.EnvOrDefault("RECOVERED_TABLE", "time_series_covid19_recovered_global.csv"),

		ProfilesPath:  os.Getenv("PROFILES_PATH"),
		Reports:       splitList(os.Getenv("REPORTS")),
		CountryFilter: strings.TrimSpace(os.Getenv("COUNTRY_FILTER")),
		MinConfirmed:  minConfirmed,
		MaxRate:       maxRate,
		RollingWindow: window,
		TopN:          topN,

		OutputDir:       sharedcfg.EnvOrDefault("OUTPUT_DIR", "output"),
		OutputFormats:   splitList(sharedcfg.EnvOrDefault("OUTPUT_FORMATS", "csv,json")),
		KafkaEnabled:    os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:  sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "epidemic-metrics"),
		SQLDriver:       sharedcfg.EnvOrDefault("SQL_DRIVER", "sqlite3"),
		SQLDSN:          os.Getenv("SQL_DSN"),
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		CacheSize:       cacheSize,
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	for _, f := range cfg.OutputFormats {
		if f != "csv" && f != "json" {
			return nil, fmt.Errorf("OUTPUT_FORMATS: unsupported format %q", f)
		}
	}
	if cfg.SQLDriver != "sqlite3" && cfg.SQLDriver != "postgres" {
		return nil, fmt.Errorf("SQL_DRIVER: unsupported driver %q", cfg.SQLDriver)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}

	return cfg, nil
}

// SQLEnabled reports whether the SQL exporter is configured.
func (c *Config) SQLEnabled() bool { return c.SQLDSN != "" }

func parsePositiveInt(key string, def, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}

func parseOptionalFloat(key string) (*float64, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return nil, fmt.Errorf("invalid %s: must be a non-negative number", key)
	}
	return &f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Tables maps each metric to its configured table name.
func (c *Config) Tables() map[domain.Metric]string {
	return map[domain.Metric]string{
		domain.MetricConfirmed: c.ConfirmedTable,
		domain.MetricDeaths:    c.DeathsTable,
		domain.MetricRecovered: c.RecoveredTable,
	}
}
