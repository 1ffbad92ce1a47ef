package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order. The two-digit year form comes first so that
// "1/22/20" is not read as year 20 AD.
var dateLayouts = []string{"1/2/06", "1/2/2006", "2006-01-02"}

type dateColumn struct {
	index int
	date  time.Time
}

// headerLayout maps CSV column positions to record fields.
type headerLayout struct {
	subRegion int
	country   int
	lat       int
	lon       int
	dates     []dateColumn
	dropped   []string
}

// ParseTable reads a wide time-series CSV. Header tokens that are neither
// identity columns nor parseable dates are dropped; non-numeric cells become
// absent values. Only an unreadable stream, a CSV syntax error, or a header
// without a country column fails the whole table.
func ParseTable(name string, r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, &SourceError{Name: name, Err: errors.New("empty table")}
		}
		return Table{}, &SourceError{Name: name, Err: err}
	}

	layout := parseHeader(header)
	if layout.country < 0 {
		return Table{}, &SourceError{Name: name, Err: ErrNoIdentityColumns}
	}

	table := Table{
		Name:  name,
		Dates: make([]time.Time, len(layout.dates)),
		Stats: ParseStats{DroppedColumns: layout.dropped},
	}
	for i, dc := range layout.dates {
		table.Dates[i] = dc.date
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, &SourceError{Name: name, Err: fmt.Errorf("parse csv: %w", err)}
		}

		country := strings.TrimSpace(cell(row, layout.country))
		if country == "" {
			table.Stats.SkippedRows++
			continue
		}

		rec := RegionRecord{
			Country:   country,
			SubRegion: strings.TrimSpace(cell(row, layout.subRegion)),
			Points:    make([]Point, len(layout.dates)),
		}
		rec.Lat, _ = parseCell(cell(row, layout.lat))
		rec.Lon, _ = parseCell(cell(row, layout.lon))

		for i, dc := range layout.dates {
			v, valid := parseCell(cell(row, dc.index))
			if !valid {
				table.Stats.InvalidCells++
			}
			rec.Points[i] = Point{Date: dc.date, Value: v}
		}

		table.Records = append(table.Records, rec)
		table.Stats.Rows++
	}

	return table, nil
}

// parseHeader classifies header tokens and orders the date columns
// chronologically. Duplicate dates keep the first column.
func parseHeader(header []string) headerLayout {
	layout := headerLayout{subRegion: -1, country: -1, lat: -1, lon: -1}
	seen := make(map[time.Time]bool)

	for i, raw := range header {
		token := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		switch strings.ToLower(token) {
		case "province/state", "province_state":
			layout.subRegion = i
			continue
		case "country/region", "country_region":
			layout.country = i
			continue
		case "lat":
			layout.lat = i
			continue
		case "long", "long_", "lon":
			layout.lon = i
			continue
		}

		d, ok := parseDate(token)
		if !ok || seen[d] {
			layout.dropped = append(layout.dropped, token)
			continue
		}
		seen[d] = true
		layout.dates = append(layout.dates, dateColumn{index: i, date: d})
	}

	sort.SliceStable(layout.dates, func(a, b int) bool {
		return layout.dates[a].date.Before(layout.dates[b].date)
	})
	return layout
}

// parseDate tries each accepted layout and returns a UTC midnight date.
func parseDate(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, token); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseCell coerces a cell to a number. The second result is false only for a
// non-empty cell that failed coercion; empty cells are absent but not invalid.
func parseCell(s string) (Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return None(), true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return None(), false
	}
	return Some(v), true
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
