package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/epidemic-metrics-etl/internal/domain"
)

// profileFile is the YAML document shape of PROFILES_PATH.
type profileFile struct {
	Reports []profile `yaml:"reports"`
}

// profile is one report entry. Pointer fields fall back to the
// environment defaults when omitted.
type profile struct {
	Name         string   `yaml:"name"`
	Kind         string   `yaml:"kind"`
	Country      string   `yaml:"country"`
	SortBy       string   `yaml:"sort_by"`
	TopN         *int     `yaml:"top_n"`
	MinConfirmed *float64 `yaml:"min_confirmed"`
	MaxRate      *float64 `yaml:"max_rate"`
	MaxRateExcl  bool     `yaml:"max_rate_exclusive"`
	Countries    []string `yaml:"countries"`
	Window       *int     `yaml:"window"`
	Columns      []string `yaml:"columns"`
	Series       []string `yaml:"series"`
	SubRegions   bool     `yaml:"sub_regions_only"`
}

// DecodeProfiles parses a YAML profile document. Unknown fields are rejected.
func DecodeProfiles(r io.Reader, defaults *Config) ([]domain.ReportSpec, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc profileFile
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("profiles: document is empty")
		}
		return nil, fmt.Errorf("profiles: %w", err)
	}
	if len(doc.Reports) == 0 {
		return nil, errors.New("profiles: no reports defined")
	}

	specs := make([]domain.ReportSpec, 0, len(doc.Reports))
	for _, p := range doc.Reports {
		spec, err := p.toSpec(defaults)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (p profile) toSpec(defaults *Config) (domain.ReportSpec, error) {
	spec := domain.ReportSpec{
		Name:         strings.TrimSpace(p.Name),
		Kind:         domain.ReportKind(strings.ToLower(strings.TrimSpace(p.Kind))),
		Country:      strings.TrimSpace(p.Country),
		TopN:         defaults.TopN,
		MinConfirmed: p.MinConfirmed,
		MaxRate:      p.MaxRate,
		Countries:    p.Countries,
		Window:       defaults.RollingWindow,
		Series:       p.Series,

		MaxRateExclusive: p.MaxRateExcl,
		SubRegionsOnly:   p.SubRegions,
	}
	if p.TopN != nil {
		spec.TopN = *p.TopN
	}
	if p.Window != nil {
		spec.Window = *p.Window
	}
	if p.SortBy != "" {
		key, err := domain.ParseSortKey(p.SortBy)
		if err != nil {
			return domain.ReportSpec{}, fmt.Errorf("profiles: report %s: %w", spec.Name, err)
		}
		spec.SortBy = key
	}
	for _, c := range p.Columns {
		key, err := domain.ParseSortKey(c)
		if err != nil {
			return domain.ReportSpec{}, fmt.Errorf("profiles: report %s: column: %w", spec.Name, err)
		}
		spec.Columns = append(spec.Columns, key)
	}
	return spec, nil
}

// ReportSpecs returns the validated reports to build: the YAML profiles when
// PROFILES_PATH is set, the built-in profiles otherwise. Environment defaults
// fill unset thresholds, COUNTRY_FILTER overrides the country of trend and
// breakdown reports, and REPORTS narrows the selection.
func (c *Config) ReportSpecs() ([]domain.ReportSpec, error) {
	var specs []domain.ReportSpec
	if c.ProfilesPath != "" {
		data, err := os.ReadFile(c.ProfilesPath)
		if err != nil {
			return nil, fmt.Errorf("profiles: %w", err)
		}
		specs, err = DecodeProfiles(bytes.NewReader(data), c)
		if err != nil {
			return nil, err
		}
	} else {
		specs = domain.DefaultProfiles(c.TopN, c.RollingWindow)
	}

	seen := make(map[string]bool, len(specs))
	for i := range specs {
		s := &specs[i]
		if seen[s.Name] {
			return nil, fmt.Errorf("profiles: duplicate report %q", s.Name)
		}
		seen[s.Name] = true

		switch s.Kind {
		case domain.KindRanking:
			if s.MinConfirmed == nil {
				s.MinConfirmed = c.MinConfirmed
			}
			if s.MaxRate == nil {
				s.MaxRate = c.MaxRate
			}
		case domain.KindTrend, domain.KindBreakdown:
			if c.CountryFilter != "" {
				s.Country = c.CountryFilter
			}
		}
	}

	if len(c.Reports) > 0 {
		byName := make(map[string]domain.ReportSpec, len(specs))
		for _, s := range specs {
			byName[s.Name] = s
		}
		selected := make([]domain.ReportSpec, 0, len(c.Reports))
		for _, name := range c.Reports {
			s, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("REPORTS: unknown report %q", name)
			}
			selected = append(selected, s)
		}
		specs = selected
	}

	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return specs, nil
}
