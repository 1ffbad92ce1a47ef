// Package domain models public epidemiological time-series tables and the
// metric pipeline that turns them into ranked tables and derived series.
//
// # Data Source
//
// The input tables follow the layout of the Johns Hopkins CSSE global
// time-series CSV files (time_series_covid19_{confirmed,deaths,recovered}_global.csv).
// Each table holds a single metric. Rows are keyed by region and every date is
// its own column:
//
//	Province/State,Country/Region,Lat,Long,1/22/20,1/23/20,...
//	,Afghanistan,33.93911,67.709953,0,0,...
//	Hubei,China,30.9756,112.2707,444,444,...
//
// Province/State is empty for countries reported as a single row. Values are
// cumulative counts up to and including the column date.
//
// # Coercion Rules
//
// Header tokens:
//
//	Identity columns are recognised by name (case-insensitive):
//	Province/State, Country/Region, Lat, Long (or Long_).
//	Every other header is a date in M/D/YY form; M/D/YYYY and YYYY-MM-DD
//	are also accepted. Tokens that parse as none of these are dropped from
//	the date axis and counted. Date columns are re-ordered chronologically,
//	so the rightmost column of the file is never trusted to be the latest.
//
// Cells:
//
//	Non-numeric or empty cells are absent, not zero. Absent values are skipped
//	by sums and make derived series positions undefined.
//
// # Extraction
//
//	Confirmed, deaths: value at the maximum date ("latest").
//	Recovered:         maximum value over all dates ("max to date"). Recovery
//	                   counts were reported inconsistently and drop to zero for
//	                   many countries late in the series, so the running maximum
//	                   stands in for "recovered so far".
//
// # Rates
//
// Rates are percentages of confirmed cases. A zero or absent denominator, or an
// absent numerator, yields a rate of 0. This conflates "no data" with a true
// 0% rate; consumers that care must check the underlying counts, which keep
// their absent marker. See [Rate].
package domain
