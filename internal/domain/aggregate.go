package domain

import (
	"sort"
	"strings"
	"time"
)

// GroupKey maps a record to the name of the group it is summed into.
type GroupKey func(RegionRecord) string

// ByCountry groups records by country name.
func ByCountry(r RegionRecord) string { return r.Country }

// BySubRegion groups records by sub-region. Rows reported for a whole country
// have no sub-region and are grouped under the country name.
func BySubRegion(r RegionRecord) string {
	if r.SubRegion == "" {
		return r.Country
	}
	return r.SubRegion
}

// FilterCountry keeps the records of one country. Matching ignores case and
// surrounding whitespace. An unknown country yields an empty slice.
func FilterCountry(records []RegionRecord, country string) []RegionRecord {
	want := strings.TrimSpace(country)
	out := make([]RegionRecord, 0)
	for _, r := range records {
		if strings.EqualFold(r.Country, want) {
			out = append(out, r)
		}
	}
	return out
}

// Aggregate sums records per date within each group. A member with no value
// at a date contributes zero as long as some other member of the group has a
// value there; a date where no member has a value stays absent. Groups are
// returned in name order, so the result does not depend on record order.
func Aggregate(records []RegionRecord, key GroupKey) []CountryAggregate {
	type acc struct {
		members int
		sums    map[time.Time]Value
	}
	groups := make(map[string]*acc)
	dateSet := make(map[time.Time]struct{})

	for _, r := range records {
		name := key(r)
		g, ok := groups[name]
		if !ok {
			g = &acc{sums: make(map[time.Time]Value)}
			groups[name] = g
		}
		g.members++
		for _, p := range r.Points {
			dateSet[p.Date] = struct{}{}
			if !p.Value.OK {
				continue
			}
			cur := g.sums[p.Date]
			g.sums[p.Date] = Some(cur.V + p.Value.V)
		}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]CountryAggregate, 0, len(names))
	for _, name := range names {
		g := groups[name]
		points := make([]Point, len(dates))
		for i, d := range dates {
			points[i] = Point{Date: d, Value: g.sums[d]}
		}
		out = append(out, CountryAggregate{Name: name, Members: g.members, Points: points})
	}
	return out
}

// Latest returns the value at the maximum date. Points are scanned for the
// maximum date rather than trusting the last position.
func (a CountryAggregate) Latest() Value {
	var (
		latest time.Time
		v      Value
		found  bool
	)
	for _, p := range a.Points {
		if !found || p.Date.After(latest) {
			latest = p.Date
			v = p.Value
			found = true
		}
	}
	return v
}

// MaxToDate returns the largest value observed over all dates, or an absent
// value when the aggregate has none.
func (a CountryAggregate) MaxToDate() Value {
	var best Value
	for _, p := range a.Points {
		if !p.Value.OK {
			continue
		}
		if !best.OK || p.Value.V > best.V {
			best = p.Value
		}
	}
	return best
}

// Series returns the aggregate as a time series named after the group.
func (a CountryAggregate) Series() TimeSeries {
	points := make([]Point, len(a.Points))
	copy(points, a.Points)
	return TimeSeries{Name: a.Name, Points: points}
}

// indexAggregates maps aggregate name to aggregate.
func indexAggregates(aggs []CountryAggregate) map[string]CountryAggregate {
	m := make(map[string]CountryAggregate, len(aggs))
	for _, a := range aggs {
		m[a.Name] = a
	}
	return m
}
