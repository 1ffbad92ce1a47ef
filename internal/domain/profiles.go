package domain

// DefaultProfiles returns the built-in reports, one per former analysis
// script. topN and rollingWindow fill the configured defaults.
func DefaultProfiles(topN, rollingWindow int) []ReportSpec {
	hundred := 100.0
	minConfirmed := 100.0

	return []ReportSpec{
		{
			Name:    "top_20_confirmed",
			Kind:    KindRanking,
			SortBy:  KeyConfirmed,
			TopN:    topN,
			Columns: []SortKey{KeyConfirmed, KeyRecovered},
		},
		{
			Name:             "top_20_mortality",
			Kind:             KindRanking,
			SortBy:           KeyMortalityRate,
			TopN:             topN,
			MaxRate:          &hundred,
			MaxRateExclusive: true,
			Columns:          []SortKey{KeyMortalityRate},
		},
		{
			Name:         "mortality_rate_rank",
			Kind:         KindRanking,
			SortBy:       KeyMortalityRate,
			TopN:         topN,
			MinConfirmed: &minConfirmed,
			MaxRate:      &hundred,
			Columns:      []SortKey{KeyConfirmed, KeyDeaths, KeyMortalityRate},
		},
		{
			Name:    "top_20_recovered",
			Kind:    KindRanking,
			SortBy:  KeyRecoveryRate,
			TopN:    topN,
			Columns: []SortKey{KeyRecoveryRate},
		},
		{
			Name:   "mortality_table",
			Kind:   KindRanking,
			SortBy: KeyConfirmed,
			TopN:   0,
		},
		{
			Name:    "top_10_recovery_rate",
			Kind:    KindRanking,
			SortBy:  KeyRecoveryRate,
			TopN:    10,
			Columns: SortKeys,
		},
		{
			Name:    "china_trend",
			Kind:    KindTrend,
			Country: "China",
			Window:  rollingWindow,
		},
		{
			Name:           "china_provinces",
			Kind:           KindBreakdown,
			Country:        "China",
			Window:         rollingWindow,
			SubRegionsOnly: true,
		},
	}
}
