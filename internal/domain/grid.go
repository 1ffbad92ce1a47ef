package domain

import (
	"slices"
	"time"
)

// DateLayout is the index format of exported series.
const DateLayout = "2006-01-02"

// Value returns the row's cell for the key. Rates are always present.
func (k SortKey) Value(r MetricRow) Value {
	switch k {
	case KeyConfirmed:
		return r.Confirmed
	case KeyDeaths:
		return r.Deaths
	case KeyRecovered:
		return r.Recovered
	case KeyMortalityRate:
		return Some(r.MortalityRate)
	case KeyRecoveryRate:
		return Some(r.RecoveryRate)
	default:
		return None()
	}
}

// Grid is a report flattened to an index column and named numeric columns,
// the shape every tabular sink writes.
type Grid struct {
	Index   string
	Columns []string
	Keys    []string
	Cells   [][]Value
}

// Grid flattens the report. Rankings are indexed by country with one column
// per report column. Series reports are indexed by date over the union of
// all series dates, with one column per series.
func (r Report) Grid() Grid {
	if r.Kind == KindRanking {
		return r.rankingGrid()
	}
	return r.seriesGrid()
}

func (r Report) rankingGrid() Grid {
	g := Grid{Index: "country", Columns: make([]string, len(r.Columns))}
	for i, c := range r.Columns {
		g.Columns[i] = string(c)
	}
	for _, row := range r.Rows {
		cells := make([]Value, len(r.Columns))
		for i, c := range r.Columns {
			cells[i] = c.Value(row)
		}
		g.Keys = append(g.Keys, row.Country)
		g.Cells = append(g.Cells, cells)
	}
	return g
}

func (r Report) seriesGrid() Grid {
	g := Grid{Index: "date", Columns: make([]string, len(r.Series))}

	var dates []time.Time
	for i, s := range r.Series {
		g.Columns[i] = s.Name
		for _, p := range s.Points {
			dates = append(dates, p.Date)
		}
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	dates = slices.CompactFunc(dates, func(a, b time.Time) bool { return a.Equal(b) })

	pos := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		pos[d] = i
		g.Keys = append(g.Keys, d.Format(DateLayout))
		g.Cells = append(g.Cells, make([]Value, len(r.Series)))
	}
	for col, s := range r.Series {
		for _, p := range s.Points {
			g.Cells[pos[p.Date]][col] = p.Value
		}
	}
	return g
}
