package rollup

import (
	"slices"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/vinodismyname/branchrollup/internal/branches"
)

// BranchColumn is the header that carries the branch-like name of a row.
const BranchColumn = "Branch"

// RawRow is one flattened sheet row keyed by column header.
type RawRow map[string]any

// Report is one uploaded report snapshot.
type Report struct {
	ID       string
	FileName string
	Date     time.Time
	Rows     []RawRow
}

// MetricRow is one observation for one branch-like entity from one report.
// Kind, OrgType, Cluster and Zone record where the builder placed the row.
type MetricRow struct {
	BranchName string             `json:"branch_name"`
	ReportDate time.Time          `json:"report_date"`
	ReportID   string             `json:"report_id"`
	FileName   string             `json:"file_name"`
	Kind       branches.Kind      `json:"-"`
	OrgType    branches.OrgType   `json:"org_type"`
	Cluster    string             `json:"cluster"`
	Zone       string             `json:"zone,omitempty"`
	Metrics    map[string]float64 `json:"metrics"`
	Attributes map[string]string  `json:"attributes,omitempty"`
}

// DateKey returns the calendar date of t in UTC as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// ZoneNode holds a zone's own rollup rows and the distinct leaf branches placed in it.
type ZoneNode struct {
	name     string
	rows     []MetricRow
	branches []string
}

func (z *ZoneNode) Name() string { return z.name }

// Rows returns the zone's own rollup rows.
func (z *ZoneNode) Rows() []MetricRow { return cloneRows(z.rows) }

// Branches returns the leaf branch names of the zone, sorted.
func (z *ZoneNode) Branches() []string { return slices.Clone(z.branches) }

// HasRollup reports whether the zone carries its own rollup rows.
func (z *ZoneNode) HasRollup() bool { return len(z.rows) > 0 }

// ClusterNode holds every row attributed to a cluster: its own rollup rows,
// the rollup rows of its zones and all leaf rows.
type ClusterNode struct {
	name     string
	orgType  branches.OrgType
	rows     []MetricRow
	zones    map[string]*ZoneNode
	branches []string
}

func (c *ClusterNode) Name() string              { return c.name }
func (c *ClusterNode) OrgType() branches.OrgType { return c.orgType }

// Rows returns all rows attributed to the cluster in canonical order.
func (c *ClusterNode) Rows() []MetricRow { return cloneRows(c.rows) }

// Branches returns the leaf branches attached directly to the cluster (no zone).
func (c *ClusterNode) Branches() []string { return slices.Clone(c.branches) }

// LeafBranches returns every leaf branch of the cluster, zoned or not, sorted.
func (c *ClusterNode) LeafBranches() []string {
	out := slices.Clone(c.branches)
	for _, z := range c.zones {
		out = append(out, z.branches...)
	}
	sort.Strings(out)
	return out
}

// HasRollup reports whether the cluster carries its own rollup rows.
func (c *ClusterNode) HasRollup() bool {
	return lo.ContainsBy(c.rows, func(r MetricRow) bool { return r.Kind == branches.KindClusterRollup })
}

// Zones returns the zone names present under the cluster, sorted.
func (c *ClusterNode) Zones() []string {
	names := lo.Keys(c.zones)
	sort.Strings(names)
	return names
}

// Zone returns the named zone, matched on the normalized, case-folded name.
func (c *ClusterNode) Zone(name string) (*ZoneNode, bool) {
	for k, z := range c.zones {
		if branches.SameName(k, name) {
			return z, true
		}
	}
	return nil, false
}

func (c *ClusterNode) rowsOf(kind branches.Kind) []MetricRow {
	return lo.Filter(c.rows, func(r MetricRow, _ int) bool { return r.Kind == kind })
}

// Stats describes what the builder kept and dropped.
type Stats struct {
	Reports       int      `json:"reports"`
	Rows          int      `json:"rows"`
	KeptRows      int      `json:"kept_rows"`
	DroppedRows   int      `json:"dropped_rows"`
	DroppedNames  []string `json:"dropped_names,omitempty"`
	BlankRows     int      `json:"blank_rows"`
	ExemptSkipped int      `json:"exempt_skipped"`
}

// Hierarchy is the OrgType → Cluster → Zone → Branch view of a dataset.
// It is never mutated after Build returns; accessors hand out copies.
type Hierarchy struct {
	orgs    map[branches.OrgType]map[string]*ClusterNode
	columns []string
	exempt  ExemptSet
	stats   Stats
}

// OrgTypes returns the org types that have at least one cluster, in display order.
func (h *Hierarchy) OrgTypes() []branches.OrgType {
	return lo.Filter(branches.OrgTypes(), func(o branches.OrgType, _ int) bool {
		return len(h.orgs[o]) > 0
	})
}

// Clusters returns the cluster names present under org, sorted.
func (h *Hierarchy) Clusters(org branches.OrgType) []string {
	names := lo.Keys(h.orgs[org])
	sort.Strings(names)
	return names
}

// Cluster returns the named cluster of org, matched on the normalized, case-folded name.
func (h *Hierarchy) Cluster(org branches.OrgType, name string) (*ClusterNode, bool) {
	for k, c := range h.orgs[org] {
		if branches.SameName(k, name) {
			return c, true
		}
	}
	return nil, false
}

// NumericColumns returns the metric columns detected for the dataset.
func (h *Hierarchy) NumericColumns() []string { return slices.Clone(h.columns) }

// Exempt returns the exempt set the hierarchy was built with.
func (h *Hierarchy) Exempt() ExemptSet { return h.exempt }

func (h *Hierarchy) Stats() Stats {
	s := h.stats
	s.DroppedNames = slices.Clone(h.stats.DroppedNames)
	return s
}

// Empty reports whether no row was kept.
func (h *Hierarchy) Empty() bool { return h.stats.KeptRows == 0 }
