package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vinodismyname/branchrollup/internal/branches"
	"github.com/vinodismyname/branchrollup/internal/rollup"
	"github.com/vinodismyname/branchrollup/internal/sheets"
)

// RankSiblingsInput ranks the siblings of a selected node by one metric.
type RankSiblingsInput struct {
	Reports       []sheets.ReportRef `json:"reports" validate:"required,min=1,dive" jsonschema_description:"Report workbooks with their dates"`
	Selection     Selection          `json:"selection" jsonschema_description:"Node whose siblings are ranked; a Total level ranks its children"`
	Metric        string             `json:"metric" validate:"required" jsonschema_description:"Numeric column to rank by"`
	From          string             `json:"from,omitempty" validate:"omitempty,isodate" jsonschema_description:"Inclusive start date YYYY-MM-DD"`
	To            string             `json:"to,omitempty" validate:"omitempty,isodate" jsonschema_description:"Inclusive end date YYYY-MM-DD"`
	TopN          int                `json:"top_n,omitempty" validate:"omitempty,min=1,max=100" jsonschema_description:"Return only the first N siblings"`
	IncludeSeries bool               `json:"include_series,omitempty" jsonschema_description:"Attach each sibling's windowed series"`
}

// RankSiblingsOutput is the ranked sibling list with share and concentration.
type RankSiblingsOutput struct {
	Dataset   string          `json:"dataset"`
	Level     rollup.Level    `json:"level"`
	Metric    string          `json:"metric"`
	Siblings  []rollup.Ranked `json:"siblings"`
	Total     float64         `json:"total"`
	HHI       float64         `json:"hhi,omitempty"`
	Band      string          `json:"band,omitempty"`
	Truncated bool            `json:"truncated"`
}

// RankSiblings ranks every sibling at the selection's level by the metric's
// latest value inside the window.
func (a *Analyzer) RankSiblings(ctx context.Context, in RankSiblingsInput) (RankSiblingsOutput, error) {
	out := RankSiblingsOutput{Metric: strings.TrimSpace(in.Metric)}
	w, err := window(in.From, in.To)
	if err != nil {
		return out, err
	}
	path, err := in.Selection.Path()
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}
	ds, err := a.Dataset(ctx, in.Reports)
	if err != nil {
		return out, err
	}
	out.Dataset = ds.Key
	out.Level = rollup.SiblingLevel(path)

	ranked, err := rollup.Rank(ds.Hierarchy, path, out.Metric, w)
	if err != nil {
		if errors.Is(err, rollup.ErrZonesUnsupported) || errors.Is(err, branches.ErrUnknownOrgType) {
			return out, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
		}
		return out, err
	}
	for _, r := range ranked {
		out.Total += r.Value
	}
	if hhi, band, ok := rollup.Concentration(ranked); ok {
		out.HHI = hhi
		out.Band = band
	}
	if in.TopN > 0 && len(ranked) > in.TopN {
		ranked = ranked[:in.TopN]
		out.Truncated = true
	}
	if !in.IncludeSeries {
		for i := range ranked {
			ranked[i].Series = nil
		}
	}
	out.Siblings = ranked
	if out.Siblings == nil {
		out.Siblings = []rollup.Ranked{}
	}
	return out, nil
}
