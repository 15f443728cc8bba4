package rollup

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/vinodismyname/branchrollup/internal/branches"
)

// Total selects every child of a level.
const Total = "Total"

// ErrZonesUnsupported is returned when a zone is selected under an org type without zones.
var ErrZonesUnsupported = errors.New("rollup: org type has no zones")

// SelectionPath picks one node of the hierarchy. Empty levels mean Total.
type SelectionPath struct {
	OrgType branches.OrgType `json:"org_type"`
	Cluster string           `json:"cluster"`
	Zone    string           `json:"zone"`
	Branch  string           `json:"branch"`
}

func (p SelectionPath) normalized() SelectionPath {
	level := func(s string) string {
		s = branches.NormalizeName(s)
		if s == "" || branches.SameName(s, Total) {
			return Total
		}
		return s
	}
	return SelectionPath{OrgType: p.OrgType, Cluster: level(p.Cluster), Zone: level(p.Zone), Branch: level(p.Branch)}
}

func (p SelectionPath) validate() error {
	if !p.OrgType.Valid() {
		return fmt.Errorf("%w: %q", branches.ErrUnknownOrgType, p.OrgType)
	}
	if p.Zone != Total && !p.OrgType.HasZones() {
		return fmt.Errorf("%w: %s", ErrZonesUnsupported, p.OrgType)
	}
	return nil
}

// Resolve returns the date series for the selected node. Exactly one layer of
// pre-aggregated truth is used per node: a node's own rollup rows when present,
// otherwise the sum of what lies below it. Selections that match nothing yield
// an empty series.
func Resolve(h *Hierarchy, path SelectionPath) ([]AggregatedPoint, error) {
	p := path.normalized()
	if err := p.validate(); err != nil {
		return nil, err
	}
	if h == nil {
		return nil, nil
	}

	switch {
	case p.Branch != Total:
		return resolveBranch(h, p), nil
	case p.Zone != Total:
		cn, ok := h.Cluster(p.OrgType, p.Cluster)
		if !ok {
			return nil, nil
		}
		zn, ok := cn.Zone(p.Zone)
		if !ok {
			return nil, nil
		}
		return resolveZone(h, cn, zn), nil
	case p.Cluster != Total:
		cn, ok := h.Cluster(p.OrgType, p.Cluster)
		if !ok {
			return nil, nil
		}
		return resolveCluster(h, cn), nil
	default:
		return resolveOrg(h, p.OrgType), nil
	}
}

// resolveBranch aggregates the rows carrying the branch name. With cluster
// Total every cluster of the org type is searched.
func resolveBranch(h *Hierarchy, p SelectionPath) []AggregatedPoint {
	var clusters []*ClusterNode
	if p.Cluster != Total {
		cn, ok := h.Cluster(p.OrgType, p.Cluster)
		if !ok {
			return nil
		}
		clusters = append(clusters, cn)
	} else {
		for _, name := range h.Clusters(p.OrgType) {
			clusters = append(clusters, h.orgs[p.OrgType][name])
		}
	}
	var rows []MetricRow
	for _, cn := range clusters {
		rows = append(rows, lo.Filter(cn.rows, func(r MetricRow, _ int) bool {
			return branches.SameName(r.BranchName, p.Branch)
		})...)
	}
	return AggregateByDate(rows, p.Branch, h.exempt)
}

// resolveZone uses the zone's own rollup rows, falling back to the leaf rows
// placed in the zone.
func resolveZone(h *Hierarchy, cn *ClusterNode, zn *ZoneNode) []AggregatedPoint {
	if len(zn.rows) > 0 {
		return AggregateByDate(zn.rows, zn.name, h.exempt)
	}
	leaves := lo.Filter(cn.rows, func(r MetricRow, _ int) bool {
		return r.Kind == branches.KindLeaf && r.Zone == zn.name
	})
	return AggregateByDate(leaves, "", h.exempt)
}

// resolveCluster uses the cluster's own rollup rows. Without them, a zoned
// cluster sums its zones (each resolved on its own) plus any unzoned leaves,
// and an unzoned cluster sums its leaf rows.
func resolveCluster(h *Hierarchy, cn *ClusterNode) []AggregatedPoint {
	if own := cn.rowsOf(branches.KindClusterRollup); len(own) > 0 {
		return AggregateByDate(own, cn.name, h.exempt)
	}
	unzoned := lo.Filter(cn.rows, func(r MetricRow, _ int) bool {
		return r.Kind == branches.KindLeaf && r.Zone == ""
	})
	parts := [][]AggregatedPoint{AggregateByDate(unzoned, "", h.exempt)}
	for _, name := range cn.Zones() {
		parts = append(parts, resolveZone(h, cn, cn.zones[name]))
	}
	return sumSeries(parts...)
}

// resolveOrg pools the own rollup rows of every cluster of an org type and
// sums them per date. Clusters are disjoint, so their totals add up without
// double counting. Clusters that report no rollup row contribute nothing.
func resolveOrg(h *Hierarchy, org branches.OrgType) []AggregatedPoint {
	var pooled []MetricRow
	for _, name := range h.Clusters(org) {
		pooled = append(pooled, h.orgs[org][name].rowsOf(branches.KindClusterRollup)...)
	}
	return AggregateByDate(pooled, "", h.exempt)
}
