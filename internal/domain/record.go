package domain

import (
	"errors"
	"fmt"
	"time"
)

// Metric names the quantity a source table counts.
type Metric string

const (
	MetricConfirmed Metric = "confirmed"
	MetricDeaths    Metric = "deaths"
	MetricRecovered Metric = "recovered"
)

// Metrics lists every table the pipeline can load, in load order.
var Metrics = []Metric{MetricConfirmed, MetricDeaths, MetricRecovered}

// Point is one dated value of a series.
type Point struct {
	Date  time.Time `json:"date"`
	Value Value     `json:"value"`
}

// RegionRecord is one row of a source table: a country, an optional
// sub-region, and the cumulative counts of a single metric by date.
// Points are in strictly increasing date order.
type RegionRecord struct {
	Country   string  `json:"country"`
	SubRegion string  `json:"sub_region,omitempty"`
	Lat       Value   `json:"lat"`
	Lon       Value   `json:"lon"`
	Points    []Point `json:"points"`
}

// ParseStats counts the data problems tolerated while loading a table.
type ParseStats struct {
	Rows           int      `json:"rows"`
	SkippedRows    int      `json:"skipped_rows"`
	DroppedColumns []string `json:"dropped_columns,omitempty"`
	InvalidCells   int      `json:"invalid_cells"`
}

// Table is a parsed source table.
type Table struct {
	Name    string         `json:"name"`
	Dates   []time.Time    `json:"dates"`
	Records []RegionRecord `json:"records"`
	Stats   ParseStats     `json:"stats"`
}

// SourceError reports a table that could not be read at all.
type SourceError struct {
	Name string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("read table %q: %v", e.Name, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// ErrNoIdentityColumns is returned when a table header has no Country/Region column.
var ErrNoIdentityColumns = errors.New("header has no Country/Region column")

// CountryAggregate is the per-date sum of all records sharing a group key.
// It is not modified after Aggregate returns it.
type CountryAggregate struct {
	Name    string  `json:"name"`
	Members int     `json:"members"`
	Points  []Point `json:"points"`
}

// TimeSeries is a named, date-indexed sequence of values. Positions that
// cannot be computed hold an absent Value.
type TimeSeries struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Values returns the series values in order.
func (s TimeSeries) Values() []Value {
	out := make([]Value, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Dates returns the series dates in order.
func (s TimeSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Date
	}
	return out
}

// MetricRow holds the headline figures of one country.
type MetricRow struct {
	Country       string  `json:"country"`
	Confirmed     Value   `json:"confirmed"`
	Deaths        Value   `json:"deaths"`
	Recovered     Value   `json:"recovered"`
	MortalityRate float64 `json:"mortality_rate"`
	RecoveryRate  float64 `json:"recovery_rate"`
}

// MetricTable is the per-country table built from the three sources.
// Rows are ordered by country name.
type MetricTable struct {
	Rows  []MetricRow `json:"rows"`
	index map[string]int
}

// Lookup returns the row for a country.
func (t MetricTable) Lookup(country string) (MetricRow, bool) {
	if t.index == nil {
		for _, r := range t.Rows {
			if r.Country == country {
				return r, true
			}
		}
		return MetricRow{}, false
	}
	i, ok := t.index[country]
	if !ok {
		return MetricRow{}, false
	}
	return t.Rows[i], true
}

// Len returns the number of countries.
func (t MetricTable) Len() int { return len(t.Rows) }
