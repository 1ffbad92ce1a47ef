package http

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/epidemic-metrics-etl/internal/domain"
)

// reportSummary is one entry of the GET /reports listing.
type reportSummary struct {
	Name        string            `json:"name"`
	Kind        domain.ReportKind `json:"kind"`
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
}

func (s *Server) handleListReports(w http.ResponseWriter, _ *http.Request) {
	reports := s.service.Reports()
	out := make([]reportSummary, len(reports))
	for i, r := range reports {
		out[i] = reportSummary{Name: r.Name, Kind: r.Kind, RunID: r.RunID, GeneratedAt: r.GeneratedAt}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"reports": out})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	report, ok := s.service.Report(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown report %q", name))
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, report)
}

// handleRankings serves an ad-hoc ranking over the loaded metric table.
// Built rankings are cached by normalised query.
func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	spec, err := s.parseRankingQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := cacheKey(spec)
	if report, ok := s.cache.get(key); ok {
		s.metrics.RankingCache.WithLabelValues("hit").Inc()
		sharedobs.WriteJSON(w, http.StatusOK, report)
		return
	}
	s.metrics.RankingCache.WithLabelValues("miss").Inc()

	table, err := s.service.MetricTable(r.Context())
	if err != nil {
		s.logger.Error("load metric table", "error", err)
		writeError(w, http.StatusServiceUnavailable, "metric table unavailable")
		return
	}

	report := domain.BuildRanking(spec, table)
	s.cache.put(key, report)
	sharedobs.WriteJSON(w, http.StatusOK, report)
}

func (s *Server) parseRankingQuery(q url.Values) (domain.ReportSpec, error) {
	spec := domain.ReportSpec{
		Name:   "ranking",
		Kind:   domain.KindRanking,
		SortBy: domain.KeyConfirmed,
		TopN:   s.opts.DefaultTopN,
	}

	if v := q.Get("sort_by"); v != "" {
		key, err := domain.ParseSortKey(v)
		if err != nil {
			return spec, err
		}
		spec.SortBy = key
	}
	if v := q.Get("n"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return spec, fmt.Errorf("invalid n %q: must be an integer >= 0", v)
		}
		spec.TopN = n
	}
	var err error
	if spec.MinConfirmed, err = parseThreshold(q, "min_confirmed"); err != nil {
		return spec, err
	}
	if spec.MaxRate, err = parseThreshold(q, "max_rate"); err != nil {
		return spec, err
	}
	if v := q.Get("max_rate_exclusive"); v != "" {
		if spec.MaxRateExclusive, err = strconv.ParseBool(strings.TrimSpace(v)); err != nil {
			return spec, fmt.Errorf("invalid max_rate_exclusive %q: must be a boolean", v)
		}
	}
	spec.Countries = parseCountries(q["country"])
	return spec, spec.Validate()
}

func parseThreshold(q url.Values, name string) (*float64, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 {
		return nil, fmt.Errorf("invalid %s %q: must be a non-negative number", name, v)
	}
	return &f, nil
}

// parseCountries accepts repeated and comma-separated country parameters and
// returns the lower-cased names sorted and without duplicates.
func parseCountries(values []string) []string {
	var out []string
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
				out = append(out, name)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func cacheKey(spec domain.ReportSpec) string {
	return fmt.Sprintf("%s|%d|%s|%s|%t|%s", spec.SortBy, spec.TopN,
		formatThreshold(spec.MinConfirmed), formatThreshold(spec.MaxRate), spec.MaxRateExclusive,
		strings.Join(spec.Countries, ","))
}

func formatThreshold(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
