package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/epidemic-metrics-etl/internal/domain"
)

const testProfiles = `
reports:
  - name: deadliest
    kind: ranking
    sort_by: mortality_rate
    top_n: 5
    min_confirmed: 1000
    columns: [confirmed, deaths, mortality_rate]
  - name: italy_trend
    kind: trend
    country: Italy
    window: 3
    series: [confirmed, daily_new]
  - name: everything
    kind: ranking
    sort_by: confirmed
    countries: [Italy, Spain]
    max_rate: 100
    max_rate_exclusive: true
  - name: provinces
    kind: breakdown
    country: China
    sub_regions_only: true
`

func defaultsConfig() *Config {
	return &Config{TopN: 20, RollingWindow: 7}
}

func writeProfiles(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDecodeProfiles(t *testing.T) {
	specs, err := DecodeProfiles(strings.NewReader(testProfiles), defaultsConfig())
	require.NoError(t, err)
	require.Len(t, specs, 4)

	deadliest := specs[0]
	assert.Equal(t, "deadliest", deadliest.Name)
	assert.Equal(t, domain.KindRanking, deadliest.Kind)
	assert.Equal(t, domain.KeyMortalityRate, deadliest.SortBy)
	assert.Equal(t, 5, deadliest.TopN)
	require.NotNil(t, deadliest.MinConfirmed)
	assert.Equal(t, 1000.0, *deadliest.MinConfirmed)
	assert.Nil(t, deadliest.MaxRate)
	assert.Equal(t, []domain.SortKey{domain.KeyConfirmed, domain.KeyDeaths, domain.KeyMortalityRate}, deadliest.Columns)

	trend := specs[1]
	assert.Equal(t, domain.KindTrend, trend.Kind)
	assert.Equal(t, "Italy", trend.Country)
	assert.Equal(t, 3, trend.Window)
	assert.Equal(t, []string{"confirmed", "daily_new"}, trend.Series)

	everything := specs[2]
	assert.Equal(t, 20, everything.TopN, "top_n falls back to TOP_N")
	assert.Equal(t, 7, everything.Window, "window falls back to ROLLING_WINDOW")
	assert.Equal(t, []string{"Italy", "Spain"}, everything.Countries)
	assert.True(t, everything.MaxRateExclusive)
	assert.False(t, deadliest.MaxRateExclusive)

	provinces := specs[3]
	assert.Equal(t, domain.KindBreakdown, provinces.Kind)
	assert.True(t, provinces.SubRegionsOnly)
	assert.False(t, trend.SubRegionsOnly)
}

func TestDecodeProfiles_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"empty document", "", "empty"},
		{"no reports", "reports: []\n", "no reports"},
		{"unknown field", "reports:\n  - name: x\n    colour: red\n", "colour"},
		{"bad sort key", "reports:\n  - name: x\n    kind: ranking\n    sort_by: gdp\n", "gdp"},
		{"bad column", "reports:\n  - name: x\n    kind: ranking\n    sort_by: deaths\n    columns: [gdp]\n", "column"},
		{"malformed yaml", "reports: [\n", "profiles"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeProfiles(strings.NewReader(tt.body), defaultsConfig())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReportSpecs_BuiltIn(t *testing.T) {
	cfg := defaultsConfig()

	specs, err := cfg.ReportSpecs()
	require.NoError(t, err)
	assert.Len(t, specs, len(domain.DefaultProfiles(20, 7)))
}

func TestReportSpecs_EnvironmentDefaults(t *testing.T) {
	minConfirmed, maxRate := 250.0, 40.0
	cfg := defaultsConfig()
	cfg.MinConfirmed = &minConfirmed
	cfg.MaxRate = &maxRate
	cfg.CountryFilter = "Italy"

	specs, err := cfg.ReportSpecs()
	require.NoError(t, err)

	byName := make(map[string]domain.ReportSpec)
	for _, s := range specs {
		byName[s.Name] = s
	}

	confirmed := byName["top_20_confirmed"]
	require.NotNil(t, confirmed.MinConfirmed)
	assert.Equal(t, 250.0, *confirmed.MinConfirmed)
	require.NotNil(t, confirmed.MaxRate)
	assert.Equal(t, 40.0, *confirmed.MaxRate)

	// Profile thresholds win over the environment.
	rank := byName["mortality_rate_rank"]
	assert.Equal(t, 100.0, *rank.MinConfirmed)
	assert.Equal(t, 100.0, *rank.MaxRate)

	assert.Equal(t, "Italy", byName["china_trend"].Country)
	assert.Equal(t, "Italy", byName["china_provinces"].Country)
}

func TestReportSpecs_Selection(t *testing.T) {
	cfg := defaultsConfig()
	cfg.Reports = []string{"china_trend", "top_20_mortality"}

	specs, err := cfg.ReportSpecs()
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "china_trend", specs[0].Name)
	assert.Equal(t, "top_20_mortality", specs[1].Name)

	cfg.Reports = []string{"does_not_exist"}
	_, err = cfg.ReportSpecs()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does_not_exist")
}

func TestReportSpecs_FromFile(t *testing.T) {
	cfg := defaultsConfig()
	cfg.ProfilesPath = writeProfiles(t, testProfiles)

	specs, err := cfg.ReportSpecs()
	require.NoError(t, err)
	require.Len(t, specs, 4)
	assert.Equal(t, "deadliest", specs[0].Name)
}

func TestReportSpecs_FileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		cfg := defaultsConfig()
		cfg.ProfilesPath = filepath.Join(t.TempDir(), "nope.yaml")
		_, err := cfg.ReportSpecs()
		require.Error(t, err)
	})

	t.Run("duplicate names", func(t *testing.T) {
		cfg := defaultsConfig()
		cfg.ProfilesPath = writeProfiles(t, "reports:\n  - {name: a, kind: ranking, sort_by: deaths}\n  - {name: a, kind: ranking, sort_by: confirmed}\n")
		_, err := cfg.ReportSpecs()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("invalid report", func(t *testing.T) {
		cfg := defaultsConfig()
		cfg.ProfilesPath = writeProfiles(t, "reports:\n  - {name: t, kind: trend}\n")
		_, err := cfg.ReportSpecs()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "country")
	})
}
