package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ReportKind selects the shape of a report.
type ReportKind string

const (
	// KindRanking is a filtered, sorted, truncated MetricTable.
	KindRanking ReportKind = "ranking"
	// KindTrend is a single country's cumulative series and its derivations.
	KindTrend ReportKind = "trend"
	// KindBreakdown is one cumulative series per sub-region of a country.
	KindBreakdown ReportKind = "breakdown"
)

// Trend series names.
const (
	SeriesConfirmed               = "confirmed"
	SeriesDailyNew                = "daily_new"
	SeriesDailyNewRolling         = "daily_new_rolling"
	SeriesTransmissionRate        = "transmission_rate" // PercentChange of confirmed; 0 after a zero day
	SeriesTransmissionRateRolling = "transmission_rate_rolling"
	SeriesDeaths                  = "deaths"
	SeriesDailyDeaths             = "daily_deaths"
)

// TrendSeries lists every series a trend report can produce.
var TrendSeries = []string{
	SeriesConfirmed, SeriesDailyNew, SeriesDailyNewRolling,
	SeriesTransmissionRate, SeriesTransmissionRateRolling,
	SeriesDeaths, SeriesDailyDeaths,
}

// DefaultTrendSeries is used when a trend spec names none.
var DefaultTrendSeries = TrendSeries[:5]

// ReportSpec is the configuration object for one report. Each former
// analysis script is one ReportSpec over the shared pipeline.
type ReportSpec struct {
	Name    string     `json:"name"`
	Kind    ReportKind `json:"kind"`
	Country string     `json:"country,omitempty"`

	// Ranking options.
	SortBy           SortKey   `json:"sort_by,omitempty"`
	TopN             int       `json:"top_n"` // 0 keeps every row
	MinConfirmed     *float64  `json:"min_confirmed,omitempty"`
	MaxRate          *float64  `json:"max_rate,omitempty"`
	MaxRateExclusive bool      `json:"max_rate_exclusive,omitempty"` // MaxRate is a strict bound
	Countries        []string  `json:"countries,omitempty"`
	Columns          []SortKey `json:"columns,omitempty"`

	// Trend options.
	Window int      `json:"window,omitempty"`
	Series []string `json:"series,omitempty"`

	// Breakdown options. SubRegionsOnly drops rows reported for the whole
	// country instead of grouping them under the country name.
	SubRegionsOnly bool `json:"sub_regions_only,omitempty"`
}

// Validate checks the spec is buildable.
func (s ReportSpec) Validate() error {
	if s.Name == "" {
		return errors.New("report name is required")
	}
	switch s.Kind {
	case KindRanking:
		if !slices.Contains(SortKeys, s.SortBy) {
			return fmt.Errorf("report %s: unknown sort key %q", s.Name, s.SortBy)
		}
		if s.TopN < 0 {
			return fmt.Errorf("report %s: top_n must be >= 0", s.Name)
		}
		for _, c := range s.Columns {
			if !slices.Contains(SortKeys, c) {
				return fmt.Errorf("report %s: unknown column %q", s.Name, c)
			}
		}
	case KindTrend, KindBreakdown:
		if s.Country == "" {
			return fmt.Errorf("report %s: country is required for %s reports", s.Name, s.Kind)
		}
		if s.Kind == KindTrend && s.Window < 1 {
			return fmt.Errorf("report %s: window must be >= 1", s.Name)
		}
		for _, name := range s.Series {
			if !slices.Contains(TrendSeries, name) {
				return fmt.Errorf("report %s: unknown series %q", s.Name, name)
			}
		}
	default:
		return fmt.Errorf("report %s: unknown kind %q", s.Name, s.Kind)
	}
	return nil
}

// Needs returns the source tables the report reads.
func (s ReportSpec) Needs() []Metric {
	needs := []Metric{MetricConfirmed}
	switch s.Kind {
	case KindRanking:
		keys := append([]SortKey{s.SortBy}, s.columns()...)
		if s.MaxRate != nil {
			keys = append(keys, s.rateKey())
		}
		if slices.Contains(keys, KeyDeaths) || slices.Contains(keys, KeyMortalityRate) {
			needs = append(needs, MetricDeaths)
		}
		if slices.Contains(keys, KeyRecovered) || slices.Contains(keys, KeyRecoveryRate) {
			needs = append(needs, MetricRecovered)
		}
	case KindTrend:
		series := s.trendSeries()
		if slices.Contains(series, SeriesDeaths) || slices.Contains(series, SeriesDailyDeaths) {
			needs = append(needs, MetricDeaths)
		}
	}
	return needs
}

// Filters compiles the spec thresholds. MinConfirmed filters confirmed
// cases; MaxRate filters the sort key when it is a rate and the mortality
// rate otherwise, inclusively unless MaxRateExclusive is set. A non-empty Countries restricts the ranking to those names.
func (s ReportSpec) Filters() []Filter {
	var fs []Filter
	if s.MinConfirmed != nil {
		fs = append(fs, MinFilter(KeyConfirmed, *s.MinConfirmed))
	}
	if s.MaxRate != nil {
		if s.MaxRateExclusive {
			fs = append(fs, BelowFilter(s.rateKey(), *s.MaxRate))
		} else {
			fs = append(fs, MaxFilter(s.rateKey(), *s.MaxRate))
		}
	}
	if len(s.Countries) > 0 {
		fs = append(fs, CountryFilter(s.Countries...))
	}
	return fs
}

func (s ReportSpec) rateKey() SortKey {
	if s.SortBy.IsRate() {
		return s.SortBy
	}
	return KeyMortalityRate
}

func (s ReportSpec) columns() []SortKey {
	if len(s.Columns) == 0 {
		return SortKeys
	}
	return s.Columns
}

func (s ReportSpec) trendSeries() []string {
	if len(s.Series) == 0 {
		return DefaultTrendSeries
	}
	return s.Series
}

// Report is the output handed to exporters: a category index with named
// numeric columns (rankings) or a date index with named series.
type Report struct {
	Name        string       `json:"name"`
	Kind        ReportKind   `json:"kind"`
	RunID       string       `json:"run_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Country     string       `json:"country,omitempty"`
	SortBy      SortKey      `json:"sort_by,omitempty"`
	Columns     []SortKey    `json:"columns,omitempty"`
	Rows        []MetricRow  `json:"rows,omitempty"`
	Series      []TimeSeries `json:"series,omitempty"`
}

// BuildRanking ranks table by the spec sort key and thresholds. TopN 0 keeps every
// surviving row.
func BuildRanking(spec ReportSpec, table MetricTable) Report {
	n := spec.TopN
	if n == 0 {
		n = table.Len()
	}
	return Report{
		Name:        spec.Name,
		Kind:        KindRanking,
		GeneratedAt: clock.Now().UTC(),
		SortBy:      spec.SortBy,
		Columns:     slices.Clone(spec.columns()),
		Rows:        TopN(table.Rows, spec.SortBy, n, spec.Filters()...),
	}
}

// BuildTrend derives the country-level series of a trend report. deaths may
// be nil when no death series is requested. A country with no rows yields a
// report without series.
func BuildTrend(spec ReportSpec, confirmed, deaths []RegionRecord) Report {
	report := Report{
		Name:        spec.Name,
		Kind:        KindTrend,
		GeneratedAt: clock.Now().UTC(),
		Country:     spec.Country,
	}

	total, ok := countryTotal(confirmed, spec.Country)
	if !ok {
		return report
	}
	daily := Diff(total)
	transmission := PercentChange(total)

	var deathTotal TimeSeries
	for _, name := range spec.trendSeries() {
		var s TimeSeries
		switch name {
		case SeriesConfirmed:
			s = total
		case SeriesDailyNew:
			s = daily
		case SeriesDailyNewRolling:
			s = RollingMean(daily, spec.Window)
		case SeriesTransmissionRate:
			s = transmission
		case SeriesTransmissionRateRolling:
			s = RollingMean(transmission, spec.Window)
		case SeriesDeaths, SeriesDailyDeaths:
			if deathTotal.Points == nil {
				deathTotal, _ = countryTotal(deaths, spec.Country)
			}
			s = deathTotal
			if name == SeriesDailyDeaths {
				s = Diff(deathTotal)
			}
		default:
			continue
		}
		report.Series = append(report.Series, s.Rename(name))
	}
	return report
}

// BuildBreakdown returns one cumulative series per sub-region of the
// spec's country, in sub-region name order. Rows without a sub-region form a
// series named after the country, or are dropped when spec.SubRegionsOnly is
// set.
func BuildBreakdown(spec ReportSpec, confirmed []RegionRecord) Report {
	report := Report{
		Name:        spec.Name,
		Kind:        KindBreakdown,
		GeneratedAt: clock.Now().UTC(),
		Country:     spec.Country,
	}
	records := FilterCountry(confirmed, spec.Country)
	if spec.SubRegionsOnly {
		records = slices.DeleteFunc(records, func(r RegionRecord) bool { return r.SubRegion == "" })
	}
	for _, agg := range Aggregate(records, BySubRegion) {
		report.Series = append(report.Series, agg.Series())
	}
	return report
}

// countryTotal sums every record of a country into one series.
func countryTotal(records []RegionRecord, country string) (TimeSeries, bool) {
	aggs := Aggregate(FilterCountry(records, country), func(RegionRecord) string { return country })
	if len(aggs) == 0 {
		return TimeSeries{}, false
	}
	return aggs[0].Series(), true
}
