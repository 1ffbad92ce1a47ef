package domain

import (
	"math"
	"sort"
)

// Rate returns numerator/denominator*100. It returns 0 when the denominator
// is zero, negative or absent, when the numerator is absent, and for any
// non-finite intermediate result. A 0 therefore also means "unknown".
func Rate(numerator, denominator Value) float64 {
	if !numerator.OK || !denominator.OK || denominator.V <= 0 {
		return 0
	}
	return finiteOrZero(numerator.V / denominator.V * 100)
}

func finiteOrZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// BuildMetricTable joins the per-country aggregates of the three sources.
// Confirmed and deaths use the latest value, recovered the maximum to date.
// Any source may be nil; a country missing from a source gets an absent
// count and therefore a zero rate.
func BuildMetricTable(confirmed, deaths, recovered []CountryAggregate) MetricTable {
	c := indexAggregates(confirmed)
	d := indexAggregates(deaths)
	r := indexAggregates(recovered)

	nameSet := make(map[string]struct{}, len(c))
	for _, src := range []map[string]CountryAggregate{c, d, r} {
		for name := range src {
			nameSet[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)

	table := MetricTable{
		Rows:  make([]MetricRow, 0, len(names)),
		index: make(map[string]int, len(names)),
	}
	for _, name := range names {
		row := MetricRow{Country: name}
		if a, ok := c[name]; ok {
			row.Confirmed = a.Latest()
		}
		if a, ok := d[name]; ok {
			row.Deaths = a.Latest()
		}
		if a, ok := r[name]; ok {
			row.Recovered = a.MaxToDate()
		}
		row.MortalityRate = Rate(row.Deaths, row.Confirmed)
		row.RecoveryRate = Rate(row.Recovered, row.Confirmed)

		table.index[name] = len(table.Rows)
		table.Rows = append(table.Rows, row)
	}
	return table
}
