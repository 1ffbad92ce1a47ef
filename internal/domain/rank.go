package domain

import (
	"fmt"
	"slices"
	"strings"
)

// SortKey names a MetricRow column that rows can be ranked or filtered by.
type SortKey string

const (
	KeyConfirmed     SortKey = "confirmed"
	KeyDeaths        SortKey = "deaths"
	KeyRecovered     SortKey = "recovered"
	KeyMortalityRate SortKey = "mortality_rate"
	KeyRecoveryRate  SortKey = "recovery_rate"
)

// SortKeys lists every valid key in table column order.
var SortKeys = []SortKey{KeyConfirmed, KeyDeaths, KeyRecovered, KeyMortalityRate, KeyRecoveryRate}

// ParseSortKey validates a key name.
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(SortKeys, k) {
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// IsRate reports whether the key is a percentage column.
func (k SortKey) IsRate() bool {
	return k == KeyMortalityRate || k == KeyRecoveryRate
}

// Of returns the row's value for the key. Absent counts read as 0.
func (k SortKey) Of(r MetricRow) float64 {
	switch k {
	case KeyConfirmed:
		return r.Confirmed.Float()
	case KeyDeaths:
		return r.Deaths.Float()
	case KeyRecovered:
		return r.Recovered.Float()
	case KeyMortalityRate:
		return r.MortalityRate
	case KeyRecoveryRate:
		return r.RecoveryRate
	default:
		return 0
	}
}

// Filter decides whether a row is eligible for ranking.
type Filter func(MetricRow) bool

// MinFilter keeps rows whose key value is at least min.
func MinFilter(key SortKey, minimum float64) Filter {
	return func(r MetricRow) bool { return key.Of(r) >= minimum }
}

// MaxFilter keeps rows whose key value is at most max.
func MaxFilter(key SortKey, maximum float64) Filter {
	return func(r MetricRow) bool { return key.Of(r) <= maximum }
}

// BelowFilter keeps rows whose key value is strictly below limit.
func BelowFilter(key SortKey, limit float64) Filter {
	return func(r MetricRow) bool { return key.Of(r) < limit }
}

// CountryFilter keeps the named countries (case-insensitive).
func CountryFilter(names ...string) Filter {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	return func(r MetricRow) bool {
		_, ok := want[strings.ToLower(r.Country)]
		return ok
	}
}

// TopN applies every filter, sorts the survivors by key in descending order
// and keeps the first n. The sort is stable: rows with equal keys keep their
// input order. n <= 0 returns an empty slice.
func TopN(rows []MetricRow, key SortKey, n int, filters ...Filter) []MetricRow {
	if n <= 0 {
		return []MetricRow{}
	}

	kept := make([]MetricRow, 0, len(rows))
rows:
	for _, r := range rows {
		for _, f := range filters {
			if !f(r) {
				continue rows
			}
		}
		kept = append(kept, r)
	}

	slices.SortStableFunc(kept, func(a, b MetricRow) int {
		va, vb := key.Of(a), key.Of(b)
		switch {
		case va > vb:
			return -1
		case va < vb:
			return 1
		default:
			return 0
		}
	})

	if len(kept) > n {
		kept = kept[:n]
	}
	return kept
}
