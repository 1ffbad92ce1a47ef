// Command validate checks the integrity of a set of cumulative time-series
// tables before they are fed to the pipeline: every table parses, the three
// tables share a date axis and a country list, and the counts are consistent
// with each other.
//
// Usage:
//
//	go run ./cmd/validate -data-dir data
//	go run ./cmd/validate -data-dir data -deaths deaths.csv
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/couchcryptid/epidemic-metrics-etl/internal/domain"
)

// maxListed caps the per-record findings printed for one phase.
const maxListed = 20

// phase tracks pass/fail for a validation phase. Warnings are printed but do
// not fail the run.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "data", "directory containing the source tables")
	confirmed := flag.String("confirmed", "time_series_covid19_confirmed_global.csv", "confirmed cases table")
	deaths := flag.String("deaths", "time_series_covid19_deaths_global.csv", "deaths table")
	recovered := flag.String("recovered", "time_series_covid19_recovered_global.csv", "recovered table")
	flag.Parse()

	files := map[domain.Metric]string{
		domain.MetricConfirmed: *confirmed,
		domain.MetricDeaths:    *deaths,
		domain.MetricRecovered: *recovered,
	}
	os.Exit(run(*dataDir, files))
}

func run(dir string, files map[domain.Metric]string) int {
	fmt.Println("=== Epidemic Table Integrity Validation ===")
	fmt.Println()

	tables, err := loadTables(dir, files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateCells(tables),
		validateDateAxis(tables),
		validateCoverage(tables),
		validateConsistency(tables),
		validateMonotonic(tables),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		} else if len(p.warnings) > 0 {
			status = fmt.Sprintf("\033[33mPASS (%d warnings)\033[0m", len(p.warnings))
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	for _, m := range domain.Metrics {
		t := tables[m]
		fmt.Printf("%-10s %5d rows, %4d dates, %d skipped rows, %d dropped columns, %d invalid cells\n",
			m, t.Stats.Rows, len(t.Dates), t.Stats.SkippedRows, len(t.Stats.DroppedColumns), t.Stats.InvalidCells)
	}

	for _, p := range phases {
		printFindings(p.name, "errors", p.errors)
		printFindings(p.name, "warnings", p.warnings)
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func printFindings(phase, kind string, findings []string) {
	if len(findings) == 0 {
		return
	}
	fmt.Printf("\n--- %s (%s) ---\n", phase, kind)
	for i, f := range findings {
		if i == maxListed {
			fmt.Printf("  ... %d more\n", len(findings)-maxListed)
			break
		}
		fmt.Printf("  [%d] %s\n", i+1, f)
	}
}

// ── Data loading ──

func loadTables(dir string, files map[domain.Metric]string) (map[domain.Metric]domain.Table, error) {
	tables := make(map[domain.Metric]domain.Table, len(files))
	for _, m := range domain.Metrics {
		t, err := loadTable(filepath.Join(dir, files[m]))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		tables[m] = t
	}
	return tables, nil
}

func loadTable(path string) (domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Table{}, err
	}
	defer f.Close()
	return domain.ParseTable(filepath.Base(path), f)
}

// ── Validation phases ──

// validateCells fails on non-numeric cells and warns on tolerated header and
// row problems.
func validateCells(tables map[domain.Metric]domain.Table) *phase {
	p := &phase{name: "Cells are numeric"}
	for _, m := range domain.Metrics {
		t := tables[m]
		if t.Stats.InvalidCells > 0 {
			p.errorf("%s: %d non-numeric cells", t.Name, t.Stats.InvalidCells)
		}
		if t.Stats.SkippedRows > 0 {
			p.warnf("%s: %d rows without a country skipped", t.Name, t.Stats.SkippedRows)
		}
		for _, col := range t.Stats.DroppedColumns {
			p.warnf("%s: column %q is not a date", t.Name, col)
		}
		if len(t.Records) == 0 {
			p.errorf("%s: no records", t.Name)
		}
	}
	return p
}

// validateDateAxis checks that every table covers the confirmed table's dates.
func validateDateAxis(tables map[domain.Metric]domain.Table) *phase {
	p := &phase{name: "Tables share a date axis"}
	ref := tables[domain.MetricConfirmed]
	for _, m := range domain.Metrics[1:] {
		t := tables[m]
		if len(t.Dates) != len(ref.Dates) {
			p.errorf("%s has %d dates, %s has %d", t.Name, len(t.Dates), ref.Name, len(ref.Dates))
			continue
		}
		for i := range t.Dates {
			if !t.Dates[i].Equal(ref.Dates[i]) {
				p.errorf("%s date %d is %s, %s has %s", t.Name, i,
					t.Dates[i].Format(domain.DateLayout), ref.Name, ref.Dates[i].Format(domain.DateLayout))
				break
			}
		}
	}
	return p
}

// validateCoverage checks that the tables name the same countries. Missing
// countries only warn: the pipeline treats them as absent values.
func validateCoverage(tables map[domain.Metric]domain.Table) *phase {
	p := &phase{name: "Country coverage matches"}
	sets := make(map[domain.Metric]map[string]bool, len(tables))
	union := make(map[string]bool)
	for _, m := range domain.Metrics {
		set := make(map[string]bool)
		for _, r := range tables[m].Records {
			set[r.Country] = true
			union[r.Country] = true
		}
		sets[m] = set
	}

	countries := make([]string, 0, len(union))
	for c := range union {
		countries = append(countries, c)
	}
	slices.Sort(countries)

	for _, c := range countries {
		for _, m := range domain.Metrics {
			if !sets[m][c] {
				p.warnf("%s missing from %s", c, tables[m].Name)
			}
		}
	}
	return p
}

// validateConsistency checks that latest deaths and recovered do not exceed
// latest confirmed for any country.
func validateConsistency(tables map[domain.Metric]domain.Table) *phase {
	p := &phase{name: "Deaths and recoveries within confirmed"}
	latest := make(map[domain.Metric]map[string]domain.Value, len(tables))
	for _, m := range domain.Metrics {
		byCountry := make(map[string]domain.Value)
		for _, agg := range domain.Aggregate(tables[m].Records, domain.ByCountry) {
			byCountry[agg.Name] = agg.Latest()
		}
		latest[m] = byCountry
	}

	countries := make([]string, 0, len(latest[domain.MetricConfirmed]))
	for c := range latest[domain.MetricConfirmed] {
		countries = append(countries, c)
	}
	slices.Sort(countries)

	for _, c := range countries {
		confirmed := latest[domain.MetricConfirmed][c]
		if !confirmed.OK {
			continue
		}
		for _, m := range []domain.Metric{domain.MetricDeaths, domain.MetricRecovered} {
			v := latest[m][c]
			if v.OK && v.V > confirmed.V {
				p.errorf("%s: latest %s %s exceeds confirmed %s", c, m, v, confirmed)
			}
		}
	}
	return p
}

// validateMonotonic warns on cumulative counts that decrease. Published
// tables carry such corrections, so they never fail the run.
func validateMonotonic(tables map[domain.Metric]domain.Table) *phase {
	p := &phase{name: "Cumulative counts non-decreasing"}
	for _, m := range domain.Metrics {
		t := tables[m]
		for _, r := range t.Records {
			prev := domain.None()
			for _, pt := range r.Points {
				if !pt.Value.OK {
					continue
				}
				if prev.OK && pt.Value.V < prev.V {
					p.warnf("%s: %s drops from %s to %s on %s", t.Name, regionName(r), prev, pt.Value,
						pt.Date.Format(domain.DateLayout))
				}
				prev = pt.Value
			}
		}
	}
	return p
}

func regionName(r domain.RegionRecord) string {
	if r.SubRegion == "" {
		return r.Country
	}
	return r.SubRegion + ", " + r.Country
}
