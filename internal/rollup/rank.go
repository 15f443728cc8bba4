package rollup

import (
	"fmt"
	"math"
	"sort"

	"github.com/vinodismyname/branchrollup/internal/branches"
)

// Ranked is one sibling of the selected node with its latest value in the window.
type Ranked struct {
	Name   string            `json:"name"`
	Value  float64           `json:"value"`
	Date   string            `json:"date"`
	Share  float64           `json:"share"`
	Series []AggregatedPoint `json:"series,omitempty"`
}

// Level names the hierarchy level the siblings of a selection live on.
type Level string

const (
	LevelOrgType Level = "org_type"
	LevelCluster Level = "cluster"
	LevelZone    Level = "zone"
	LevelBranch  Level = "branch"
)

// SiblingLevel returns the level Rank compares for a selection.
func SiblingLevel(path SelectionPath) Level {
	p := path.normalized()
	switch {
	case p.Cluster == Total:
		return LevelOrgType
	case p.Branch != Total:
		return LevelBranch
	case p.Zone != Total:
		return LevelZone
	default:
		return LevelCluster
	}
}

// Rank resolves every sibling of the selected node and orders them by the
// metric's value at their latest point inside the window, highest first.
// Siblings without a point in the window are left out. Ties keep enumeration
// order: CS, LBF, SME for org types, names ascending otherwise.
func Rank(h *Hierarchy, path SelectionPath, metric string, window Window) ([]Ranked, error) {
	p := path.normalized()
	if err := p.validate(); err != nil {
		return nil, err
	}
	if h == nil {
		return nil, nil
	}

	var candidates []SelectionPath
	var names []string
	add := func(name string, sp SelectionPath) {
		names = append(names, name)
		candidates = append(candidates, sp)
	}

	switch SiblingLevel(p) {
	case LevelOrgType:
		for _, org := range branches.OrgTypes() {
			add(string(org), SelectionPath{OrgType: org})
		}
	case LevelBranch:
		cn, ok := h.Cluster(p.OrgType, p.Cluster)
		if !ok {
			return nil, nil
		}
		leaves := cn.LeafBranches()
		if p.Zone != Total {
			zn, ok := cn.Zone(p.Zone)
			if !ok {
				return nil, nil
			}
			leaves = zn.Branches()
		}
		for _, b := range leaves {
			add(b, SelectionPath{OrgType: p.OrgType, Cluster: cn.name, Branch: b})
		}
	case LevelZone:
		cn, ok := h.Cluster(p.OrgType, p.Cluster)
		if !ok {
			return nil, nil
		}
		for _, z := range cn.Zones() {
			add(z, SelectionPath{OrgType: p.OrgType, Cluster: cn.name, Zone: z})
		}
	default:
		for _, c := range h.Clusters(p.OrgType) {
			add(c, SelectionPath{OrgType: p.OrgType, Cluster: c})
		}
	}

	out := make([]Ranked, 0, len(candidates))
	for i, sp := range candidates {
		series, err := Resolve(h, sp)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", names[i], err)
		}
		series = window.Filter(series)
		last, ok := Latest(series)
		if !ok {
			continue
		}
		out = append(out, Ranked{Name: names[i], Value: last.Value(metric), Date: last.Date, Series: series})
	}

	var total float64
	for _, r := range out {
		total += r.Value
	}
	if total != 0 {
		for i := range out {
			out[i].Share = out[i].Value / total
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out, nil
}

// Concentration bands for the Herfindahl-Hirschman index over shares.
const (
	BandUnconcentrated = "unconcentrated"
	BandModerate       = "moderately_concentrated"
	BandHigh           = "highly_concentrated"
)

// Concentration returns the HHI of the ranked values and its band. Negative
// values are ignored. ok is false when the positive total is zero.
func Concentration(ranked []Ranked) (hhi float64, band string, ok bool) {
	var total float64
	for _, r := range ranked {
		if r.Value > 0 {
			total += r.Value
		}
	}
	if total == 0 {
		return 0, "", false
	}
	for _, r := range ranked {
		if r.Value <= 0 {
			continue
		}
		sh := r.Value / total
		hhi += sh * sh
	}
	hhi = math.Round(hhi*1000) / 1000
	switch {
	case hhi < 0.15:
		band = BandUnconcentrated
	case hhi < 0.25:
		band = BandModerate
	default:
		band = BandHigh
	}
	return hhi, band, true
}
