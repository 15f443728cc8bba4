package insights

import (
	"context"

	"github.com/vinodismyname/branchrollup/internal/rollup"
	"github.com/vinodismyname/branchrollup/internal/sheets"
)

// BuildHierarchyInput names the report set to load.
type BuildHierarchyInput struct {
	Reports []sheets.ReportRef `json:"reports" validate:"required,min=1,dive" jsonschema_description:"Report workbooks with their dates"`
}

// ZoneOutline lists a zone and its leaf branches.
type ZoneOutline struct {
	Name      string   `json:"name"`
	HasRollup bool     `json:"has_rollup" jsonschema_description:"True when the reports carry the zone's own total row"`
	Branches  []string `json:"branches"`
}

// ClusterOutline lists a cluster's zones and the branches attached directly to it.
type ClusterOutline struct {
	Name      string        `json:"name"`
	HasRollup bool          `json:"has_rollup" jsonschema_description:"True when the reports carry the cluster's own total row"`
	Zones     []ZoneOutline `json:"zones,omitempty"`
	Branches  []string      `json:"branches,omitempty"`
}

// OrgOutline lists the clusters of one org type present in the reports.
type OrgOutline struct {
	OrgType  string           `json:"org_type"`
	Clusters []ClusterOutline `json:"clusters"`
}

// BuildHierarchyOutput is the tree outline of a dataset plus build diagnostics.
type BuildHierarchyOutput struct {
	Dataset        string       `json:"dataset" jsonschema_description:"Fingerprint of the report set"`
	OrgTypes       []OrgOutline `json:"org_types"`
	NumericColumns []string     `json:"numeric_columns"`
	Exempt         []string     `json:"exempt_branches"`
	Stats          rollup.Stats `json:"stats"`
}

// BuildHierarchy loads the reports and outlines the resulting tree.
func (a *Analyzer) BuildHierarchy(ctx context.Context, in BuildHierarchyInput) (BuildHierarchyOutput, error) {
	var out BuildHierarchyOutput
	ds, err := a.Dataset(ctx, in.Reports)
	if err != nil {
		return out, err
	}
	h := ds.Hierarchy
	out.Dataset = ds.Key
	out.NumericColumns = h.NumericColumns()
	out.Exempt = h.Exempt().Names()
	out.Stats = h.Stats()
	out.OrgTypes = []OrgOutline{}

	for _, org := range h.OrgTypes() {
		oo := OrgOutline{OrgType: string(org)}
		for _, name := range h.Clusters(org) {
			cn, ok := h.Cluster(org, name)
			if !ok {
				continue
			}
			co := ClusterOutline{Name: cn.Name(), HasRollup: cn.HasRollup(), Branches: cn.Branches()}
			for _, zname := range cn.Zones() {
				zn, ok := cn.Zone(zname)
				if !ok {
					continue
				}
				co.Zones = append(co.Zones, ZoneOutline{Name: zn.Name(), HasRollup: zn.HasRollup(), Branches: zn.Branches()})
			}
			oo.Clusters = append(oo.Clusters, co)
		}
		out.OrgTypes = append(out.OrgTypes, oo)
	}
	return out, nil
}
