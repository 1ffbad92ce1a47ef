// Command genmock writes a deterministic set of synthetic cumulative
// time-series tables in the Johns Hopkins CSSE wide layout, plus the metric
// table the pipeline computes from them. It uses the domain package to build
// the expected fixture so it matches real pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -days 60 -seed 7
//	go run ./cmd/genmock -out data/mock -quirks
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/epidemic-metrics-etl/internal/domain"
)

var baseDate = time.Date(2020, time.January, 22, 0, 0, 0, 0, time.UTC)

// region is one synthetic row. Confirmed counts follow a logistic curve;
// deaths and recoveries trail it by a fixed lag.
type region struct {
	subRegion string
	country   string
	lat, lon  float64
}

var regions = []region{
	{subRegion: "Hubei", country: "China", lat: 30.9756, lon: 112.2707},
	{subRegion: "Guangdong", country: "China", lat: 23.3417, lon: 113.4244},
	{subRegion: "Zhejiang", country: "China", lat: 29.1832, lon: 120.0934},
	{country: "Italy", lat: 41.8719, lon: 12.5674},
	{country: "Spain", lat: 40.4637, lon: -3.7492},
	{country: "Germany", lat: 51.1657, lon: 10.4515},
	{country: "Korea, South", lat: 35.9078, lon: 127.7669},
	{subRegion: "Ontario", country: "Canada", lat: 51.2538, lon: -85.3232},
	{subRegion: "Quebec", country: "Canada", lat: 52.9399, lon: -73.5491},
	{country: "Brazil", lat: -14.235, lon: -51.9253},
}

type curve struct {
	capacity  float64
	growth    float64
	midpoint  float64
	fatality  float64
	deathLag  int
	recovered float64
	recLag    int
}

const (
	confirmedFile = "time_series_covid19_confirmed_global.csv"
	deathsFile    = "time_series_covid19_deaths_global.csv"
	recoveredFile = "time_series_covid19_recovered_global.csv"
	expectedFile  = "expected_metric_table.json"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for the generated tables")
	days := flag.Int("days", 60, "number of date columns")
	seed := flag.Uint64("seed", 7, "random seed")
	quirks := flag.Bool("quirks", false, "inject blank, non-numeric, and decreasing cells")
	flag.Parse()

	if *out == "" || *days < 1 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out, -days >= 1")
	}

	tables := generate(*days, *seed, *quirks)
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	for name, rows := range tables {
		path := filepath.Join(*out, name)
		if err := writeCSV(path, rows); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		log.Printf("wrote %s: %d regions, %d days", path, len(rows)-1, *days)
	}

	table, err := expected(tables)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(table.Rows, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(*out, expectedFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing expected fixture: %w", err)
	}
	log.Printf("wrote expected fixture: %s (%d countries)", path, table.Len())
	return nil
}

// generate returns the rows of the three tables keyed by file name, header
// first. The same days, seed, and quirks always produce the same output.
func generate(days int, seed uint64, quirks bool) map[string][][]string {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	header := []string{"Province/State", "Country/Region", "Lat", "Long"}
	for d := range days {
		header = append(header, baseDate.AddDate(0, 0, d).Format("1/2/06"))
	}

	tables := map[string][][]string{
		confirmedFile: {header},
		deathsFile:    {header},
		recoveredFile: {header},
	}

	for _, r := range regions {
		c := curve{
			capacity:  math.Round(1000 + rng.Float64()*70000),
			growth:    0.15 + rng.Float64()*0.25,
			midpoint:  float64(days) * (0.3 + rng.Float64()*0.5),
			fatality:  0.005 + rng.Float64()*0.06,
			deathLag:  3 + rng.IntN(5),
			recovered: 0.6 + rng.Float64()*0.35,
			recLag:    10 + rng.IntN(8),
		}

		confirmed := make([]float64, days)
		for d := range days {
			confirmed[d] = math.Round(c.capacity / (1 + math.Exp(-c.growth*(float64(d)-c.midpoint))))
		}

		id := []string{r.subRegion, r.country, ftoa(r.lat), ftoa(r.lon)}
		tables[confirmedFile] = append(tables[confirmedFile], row(id, confirmed))
		tables[deathsFile] = append(tables[deathsFile], row(id, lagged(confirmed, c.deathLag, c.fatality)))
		tables[recoveredFile] = append(tables[recoveredFile], row(id, lagged(confirmed, c.recLag, c.recovered)))
	}

	if quirks && days >= 3 {
		last := len(header) - 1
		// Italy: a not-yet-reported recovered cell and a placeholder token.
		tables[recoveredFile][4][last] = ""
		tables[recoveredFile][4][last-1] = "n/a"
		// Spain: a downward correction in the confirmed counts.
		v, _ := strconv.ParseFloat(tables[confirmedFile][5][last-1], 64)
		tables[confirmedFile][5][last] = ftoa(math.Max(0, v-1))
	}

	return tables
}

// lagged scales the series shifted right by lag days.
func lagged(series []float64, lag int, ratio float64) []float64 {
	out := make([]float64, len(series))
	for i := range series {
		if i >= lag {
			out[i] = math.Floor(series[i-lag] * ratio)
		}
	}
	return out
}

func row(id []string, values []float64) []string {
	out := append([]string(nil), id...)
	for _, v := range values {
		out = append(out, ftoa(v))
	}
	return out
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// expected runs the generated tables through the domain package and returns
// the metric table the pipeline will compute.
func expected(tables map[string][][]string) (domain.MetricTable, error) {
	aggs := make(map[string][]domain.CountryAggregate, len(tables))
	for name, rows := range tables {
		var buf bytes.Buffer
		if err := csv.NewWriter(&buf).WriteAll(rows); err != nil {
			return domain.MetricTable{}, err
		}
		t, err := domain.ParseTable(name, &buf)
		if err != nil {
			return domain.MetricTable{}, err
		}
		aggs[name] = domain.Aggregate(t.Records, domain.ByCountry)
	}
	return domain.BuildMetricTable(aggs[confirmedFile], aggs[deathsFile], aggs[recoveredFile]), nil
}
