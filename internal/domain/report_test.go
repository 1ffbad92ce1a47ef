package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, time.March, 10, 6, 0, 0, 0, time.UTC)

func freezeClock(t *testing.T) {
	t.Helper()
	SetClock(clockwork.NewFakeClockAt(fixedTime))
	t.Cleanup(func() { SetClock(nil) })
}

func floatPtr(f float64) *float64 { return &f }

func seriesNames(r Report) []string {
	out := make([]string, len(r.Series))
	for i, s := range r.Series {
		out[i] = s.Name
	}
	return out
}

func TestReportSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    ReportSpec
		wantErr string
	}{
		{"valid ranking", ReportSpec{Name: "r", Kind: KindRanking, SortBy: KeyConfirmed, TopN: 20}, ""},
		{"valid trend", ReportSpec{Name: "t", Kind: KindTrend, Country: "China", Window: 7}, ""},
		{"breakdown ignores window", ReportSpec{Name: "b", Kind: KindBreakdown, Country: "China"}, ""},
		{"missing name", ReportSpec{Kind: KindRanking, SortBy: KeyConfirmed}, "name"},
		{"unknown kind", ReportSpec{Name: "x", Kind: "pie"}, "unknown kind"},
		{"unknown sort key", ReportSpec{Name: "x", Kind: KindRanking, SortBy: "population"}, "sort key"},
		{"negative top n", ReportSpec{Name: "x", Kind: KindRanking, SortBy: KeyDeaths, TopN: -1}, "top_n"},
		{"unknown column", ReportSpec{Name: "x", Kind: KindRanking, SortBy: KeyDeaths, Columns: []SortKey{"gdp"}}, "column"},
		{"trend without country", ReportSpec{Name: "x", Kind: KindTrend, Window: 7}, "country"},
		{"trend window zero", ReportSpec{Name: "x", Kind: KindTrend, Country: "Italy"}, "window"},
		{"unknown series", ReportSpec{Name: "x", Kind: KindTrend, Country: "Italy", Window: 3, Series: []string{"r0"}}, "series"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReportSpec_Needs(t *testing.T) {
	tests := []struct {
		name string
		spec ReportSpec
		want []Metric
	}{
		{
			"confirmed only",
			ReportSpec{Kind: KindRanking, SortBy: KeyConfirmed, Columns: []SortKey{KeyConfirmed}},
			[]Metric{MetricConfirmed},
		},
		{
			"confirmed and recovered",
			ReportSpec{Kind: KindRanking, SortBy: KeyConfirmed, Columns: []SortKey{KeyConfirmed, KeyRecovered}},
			[]Metric{MetricConfirmed, MetricRecovered},
		},
		{
			"max rate on a count key reads deaths",
			ReportSpec{Kind: KindRanking, SortBy: KeyConfirmed, Columns: []SortKey{KeyConfirmed}, MaxRate: floatPtr(100)},
			[]Metric{MetricConfirmed, MetricDeaths},
		},
		{
			"default columns read everything",
			ReportSpec{Kind: KindRanking, SortBy: KeyConfirmed},
			[]Metric{MetricConfirmed, MetricDeaths, MetricRecovered},
		},
		{
			"default trend",
			ReportSpec{Kind: KindTrend},
			[]Metric{MetricConfirmed},
		},
		{
			"trend with deaths",
			ReportSpec{Kind: KindTrend, Series: []string{SeriesDailyDeaths}},
			[]Metric{MetricConfirmed, MetricDeaths},
		},
		{
			"breakdown",
			ReportSpec{Kind: KindBreakdown},
			[]Metric{MetricConfirmed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.Needs())
		})
	}
}

func TestBuildRanking(t *testing.T) {
	freezeClock(t)

	table := MetricTable{Rows: []MetricRow{
		{Country: "A", Confirmed: Some(30), Deaths: Some(3), MortalityRate: 10},
		{Country: "B", Confirmed: Some(5), Deaths: Some(1), MortalityRate: 20},
		{Country: "C", Confirmed: Some(200), Deaths: Some(400), MortalityRate: 200},
		{Country: "D", Confirmed: Some(1000), Deaths: Some(50), MortalityRate: 5},
	}}

	t.Run("filters and truncates", func(t *testing.T) {
		spec := ReportSpec{
			Name: "mortality_rate_rank", Kind: KindRanking, SortBy: KeyMortalityRate, TopN: 2,
			MinConfirmed: floatPtr(10), MaxRate: floatPtr(100),
			Columns: []SortKey{KeyConfirmed, KeyMortalityRate},
		}
		report := BuildRanking(spec, table)

		assert.Equal(t, "mortality_rate_rank", report.Name)
		assert.Equal(t, KindRanking, report.Kind)
		assert.Equal(t, fixedTime, report.GeneratedAt)
		assert.Equal(t, KeyMortalityRate, report.SortBy)
		assert.Equal(t, []SortKey{KeyConfirmed, KeyMortalityRate}, report.Columns)
		assert.Equal(t, []string{"A", "D"}, countries(report.Rows))
	})

	t.Run("top n zero keeps every row", func(t *testing.T) {
		report := BuildRanking(ReportSpec{Name: "table", Kind: KindRanking, SortBy: KeyConfirmed}, table)

		assert.Equal(t, []string{"D", "C", "A", "B"}, countries(report.Rows))
		assert.Equal(t, SortKeys, report.Columns)
	})

	t.Run("max rate on count key filters mortality", func(t *testing.T) {
		spec := ReportSpec{Name: "x", Kind: KindRanking, SortBy: KeyConfirmed, TopN: 10, MaxRate: floatPtr(100)}
		report := BuildRanking(spec, table)

		assert.Equal(t, []string{"D", "A", "B"}, countries(report.Rows))
	})

	t.Run("country list", func(t *testing.T) {
		spec := ReportSpec{Name: "x", Kind: KindRanking, SortBy: KeyDeaths, Countries: []string{"b", "C "}}
		report := BuildRanking(spec, table)

		assert.Equal(t, []string{"C", "B"}, countries(report.Rows))
	})
}

func TestBuildRanking_RateAtHundredPercent(t *testing.T) {
	freezeClock(t)

	table := MetricTable{Rows: []MetricRow{
		{Country: "Tiny", Confirmed: Some(1), Deaths: Some(1), MortalityRate: 100},
		{Country: "Big", Confirmed: Some(100), Deaths: Some(3), MortalityRate: 3},
		{Country: "Whole", Confirmed: Some(150), Deaths: Some(150), MortalityRate: 100},
	}}
	profiles := make(map[string]ReportSpec)
	for _, p := range DefaultProfiles(20, 7) {
		profiles[p.Name] = p
	}

	t.Run("top_20_mortality excludes the bound", func(t *testing.T) {
		report := BuildRanking(profiles["top_20_mortality"], table)
		assert.Equal(t, []string{"Big"}, countries(report.Rows))
	})

	t.Run("mortality_rate_rank includes the bound", func(t *testing.T) {
		report := BuildRanking(profiles["mortality_rate_rank"], table)
		assert.Equal(t, []string{"Whole", "Big"}, countries(report.Rows))
	})
}

func TestBuildTrend(t *testing.T) {
	freezeClock(t)

	confirmed := []RegionRecord{
		record("China", "Hubei", nums(100, 105, 110, 120)...),
		record("China", "Anhui", nums(0, 5, 11, 1)...),
		record("Italy", "", nums(1, 2, 3, 4)...),
	}
	deaths := []RegionRecord{
		record("China", "Hubei", nums(1, 2, 4, 8)...),
	}

	t.Run("default series", func(t *testing.T) {
		spec := ReportSpec{Name: "china_trend", Kind: KindTrend, Country: "China", Window: 2}
		report := BuildTrend(spec, confirmed, nil)

		assert.Equal(t, fixedTime, report.GeneratedAt)
		assert.Equal(t, "China", report.Country)
		require.Equal(t, DefaultTrendSeries, seriesNames(report))

		assertValues(t, nums(100, 110, 121, 121), report.Series[0])
		assertValues(t, []Value{None(), Some(10), Some(11), Some(0)}, report.Series[1])
		assertValues(t, []Value{None(), None(), Some(10.5), Some(5.5)}, report.Series[2])
		assertValues(t, []Value{None(), Some(10), Some(10), Some(0)}, report.Series[3])
		assertValues(t, []Value{None(), None(), Some(10), Some(5)}, report.Series[4])
	})

	t.Run("death series", func(t *testing.T) {
		spec := ReportSpec{
			Name: "t", Kind: KindTrend, Country: "china", Window: 7,
			Series: []string{SeriesDeaths, SeriesDailyDeaths},
		}
		report := BuildTrend(spec, confirmed, deaths)

		require.Equal(t, []string{SeriesDeaths, SeriesDailyDeaths}, seriesNames(report))
		assertValues(t, nums(1, 2, 4, 8), report.Series[0])
		assertValues(t, []Value{None(), Some(1), Some(2), Some(4)}, report.Series[1])
	})

	t.Run("unknown country is empty", func(t *testing.T) {
		spec := ReportSpec{Name: "t", Kind: KindTrend, Country: "Atlantis", Window: 7}
		report := BuildTrend(spec, confirmed, deaths)

		assert.Empty(t, report.Series)
		assert.Equal(t, "t", report.Name)
	})
}

func TestBuildBreakdown(t *testing.T) {
	freezeClock(t)

	confirmed := []RegionRecord{
		record("China", "Hubei", nums(444, 549)...),
		record("China", "Anhui", nums(1, 9)...),
		record("Italy", "", nums(1, 2)...),
	}

	report := BuildBreakdown(ReportSpec{Name: "china_provinces", Kind: KindBreakdown, Country: "China"}, confirmed)

	assert.Equal(t, KindBreakdown, report.Kind)
	assert.Equal(t, []string{"Anhui", "Hubei"}, seriesNames(report))
	assertValues(t, nums(444, 549), report.Series[1])

	empty := BuildBreakdown(ReportSpec{Name: "x", Kind: KindBreakdown, Country: "Atlantis"}, confirmed)
	assert.Empty(t, empty.Series)
}

func TestBuildBreakdown_CountryLevelRows(t *testing.T) {
	freezeClock(t)

	confirmed := []RegionRecord{
		record("France", "", nums(10, 12)...),
		record("France", "Reunion", nums(1, 2)...),
		record("France", "Mayotte", nums(0, 1)...),
	}

	t.Run("grouped under the country", func(t *testing.T) {
		report := BuildBreakdown(ReportSpec{Name: "x", Kind: KindBreakdown, Country: "France"}, confirmed)

		assert.Equal(t, []string{"France", "Mayotte", "Reunion"}, seriesNames(report))
		assertValues(t, nums(10, 12), report.Series[0])
	})

	t.Run("sub-regions only", func(t *testing.T) {
		spec := ReportSpec{Name: "x", Kind: KindBreakdown, Country: "France", SubRegionsOnly: true}
		report := BuildBreakdown(spec, confirmed)

		assert.Equal(t, []string{"Mayotte", "Reunion"}, seriesNames(report))
		assert.Len(t, confirmed, 3, "input is not modified")
	})

	t.Run("built-in province breakdown drops country rows", func(t *testing.T) {
		for _, p := range DefaultProfiles(20, 7) {
			if p.Kind == KindBreakdown {
				assert.True(t, p.SubRegionsOnly, p.Name)
			}
		}
	})
}

func TestDefaultProfiles(t *testing.T) {
	profiles := DefaultProfiles(20, 7)

	names := make(map[string]bool)
	for _, p := range profiles {
		require.NoError(t, p.Validate(), p.Name)
		assert.False(t, names[p.Name], "duplicate profile %s", p.Name)
		names[p.Name] = true
	}
	assert.Len(t, profiles, 8)
	assert.True(t, names["mortality_rate_rank"])
	assert.True(t, names["china_trend"])
}
