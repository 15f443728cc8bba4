package rollup

import (
	"maps"
	"sort"
	"strings"

	"github.com/vinodismyname/branchrollup/internal/branches"
)

// AggregatedPoint is one calendar-date record of a node's series.
type AggregatedPoint struct {
	Date       string             `json:"date"`
	FileName   string             `json:"file_name"`
	ReportID   string             `json:"report_id"`
	Metrics    map[string]float64 `json:"metrics"`
	Attributes map[string]string  `json:"attributes,omitempty"`
	RowCount   int                `json:"row_count"`
}

// Value returns the named metric, or 0 when the point does not carry it.
func (p AggregatedPoint) Value(metric string) float64 {
	return p.Metrics[metric]
}

// ExemptSet names the pre-aggregated branches whose rows are never summed
// across reports: the first row observed for a date wins.
type ExemptSet struct {
	names map[string]string
}

// NewExemptSet builds a set over names, compared normalized and case-folded.
func NewExemptSet(names ...string) ExemptSet {
	s := ExemptSet{names: make(map[string]string, len(names))}
	for _, n := range names {
		norm := branches.NormalizeName(n)
		if norm == "" {
			continue
		}
		s.names[strings.ToLower(norm)] = norm
	}
	return s
}

// DefaultExempt is the set of branch names the source system pre-aggregates.
func DefaultExempt() ExemptSet {
	return NewExemptSet(branches.CSCallCenter, branches.Zanzibar)
}

// Contains reports whether name is exempt from summation.
func (s ExemptSet) Contains(name string) bool {
	_, ok := s.names[strings.ToLower(branches.NormalizeName(name))]
	return ok
}

// Names returns the exempt names, sorted.
func (s ExemptSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// AggregateByDate collapses rows into one point per UTC calendar date, sorted
// ascending. Numeric metrics are summed, attributes keep the last value seen,
// file name and report ID come from the first row of each date. When exemptKey
// is in exempt, the first row per date is kept verbatim and later rows for that
// date are discarded.
func AggregateByDate(rows []MetricRow, exemptKey string, exempt ExemptSet) []AggregatedPoint {
	if len(rows) == 0 {
		return nil
	}
	firstWins := exemptKey != "" && exempt.Contains(exemptKey)

	byDate := make(map[string]*AggregatedPoint)
	for _, r := range rows {
		key := DateKey(r.ReportDate)
		p, ok := byDate[key]
		if !ok {
			byDate[key] = &AggregatedPoint{
				Date:       key,
				FileName:   r.FileName,
				ReportID:   r.ReportID,
				Metrics:    cloneMetrics(r.Metrics),
				Attributes: maps.Clone(r.Attributes),
				RowCount:   1,
			}
			continue
		}
		if firstWins {
			continue
		}
		for k, v := range r.Metrics {
			p.Metrics[k] += v
		}
		if len(r.Attributes) > 0 && p.Attributes == nil {
			p.Attributes = make(map[string]string, len(r.Attributes))
		}
		for k, v := range r.Attributes {
			p.Attributes[k] = v
		}
		p.RowCount++
	}
	return sortedPoints(byDate)
}

// sumSeries adds several series together date by date. File name and report ID
// come from the first series carrying the date.
func sumSeries(series ...[]AggregatedPoint) []AggregatedPoint {
	byDate := make(map[string]*AggregatedPoint)
	for _, s := range series {
		for _, p := range s {
			acc, ok := byDate[p.Date]
			if !ok {
				cp := clonePoint(p)
				byDate[p.Date] = &cp
				continue
			}
			for k, v := range p.Metrics {
				acc.Metrics[k] += v
			}
			if len(p.Attributes) > 0 && acc.Attributes == nil {
				acc.Attributes = make(map[string]string, len(p.Attributes))
			}
			for k, v := range p.Attributes {
				acc.Attributes[k] = v
			}
			acc.RowCount += p.RowCount
		}
	}
	return sortedPoints(byDate)
}

func sortedPoints(byDate map[string]*AggregatedPoint) []AggregatedPoint {
	if len(byDate) == 0 {
		return nil
	}
	out := make([]AggregatedPoint, 0, len(byDate))
	for _, p := range byDate {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func cloneMetrics(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clonePoint(p AggregatedPoint) AggregatedPoint {
	p.Metrics = cloneMetrics(p.Metrics)
	p.Attributes = maps.Clone(p.Attributes)
	return p
}

func cloneRows(rows []MetricRow) []MetricRow {
	if rows == nil {
		return nil
	}
	out := make([]MetricRow, len(rows))
	for i, r := range rows {
		r.Metrics = cloneMetrics(r.Metrics)
		r.Attributes = maps.Clone(r.Attributes)
		out[i] = r
	}
	return out
}
