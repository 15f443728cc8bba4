package insights

import (
	"context"
	"strings"

	"github.com/vinodismyname/branchrollup/internal/rollup"
	"github.com/vinodismyname/branchrollup/internal/sheets"
)

// SeriesStatsInput summarizes one metric of a selected node's series.
type SeriesStatsInput struct {
	Reports     []sheets.ReportRef `json:"reports" validate:"required,min=1,dive" jsonschema_description:"Report workbooks with their dates"`
	Selection   Selection          `json:"selection" jsonschema_description:"Node to summarize"`
	Metric      string             `json:"metric" validate:"required" jsonschema_description:"Numeric column to summarize"`
	From        string             `json:"from,omitempty" validate:"omitempty,isodate" jsonschema_description:"Inclusive start date YYYY-MM-DD"`
	To          string             `json:"to,omitempty" validate:"omitempty,isodate" jsonschema_description:"Inclusive end date YYYY-MM-DD"`
	Granularity string             `json:"granularity,omitempty" validate:"omitempty,oneof=daily monthly" jsonschema_description:"daily (default) or monthly"`
}

// SeriesStatsOutput carries the summary; Found is false when no point has the metric.
type SeriesStatsOutput struct {
	Dataset   string             `json:"dataset"`
	Selection Selection          `json:"selection"`
	Found     bool               `json:"found"`
	Stats     rollup.SeriesStats `json:"stats"`
}

// SeriesStats resolves the selection and summarizes the metric over the window.
func (a *Analyzer) SeriesStats(ctx context.Context, in SeriesStatsInput) (SeriesStatsOutput, error) {
	out := SeriesStatsOutput{Selection: in.Selection}
	w, err := window(in.From, in.To)
	if err != nil {
		return out, err
	}
	ds, err := a.Dataset(ctx, in.Reports)
	if err != nil {
		return out, err
	}
	out.Dataset = ds.Key

	points, err := series(ds.Hierarchy, in.Selection, w, granularity(in.Granularity))
	if err != nil {
		return out, err
	}
	out.Stats, out.Found = rollup.Summarize(points, strings.TrimSpace(in.Metric))
	return out, nil
}
