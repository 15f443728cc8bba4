package insights

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"
	"github.com/vinodismyname/branchrollup/config"
	"github.com/vinodismyname/branchrollup/internal/rollup"
	"github.com/vinodismyname/branchrollup/internal/sheets"
	"github.com/vinodismyname/branchrollup/pkg/pagination"
)

// ErrCursorMismatch indicates a cursor issued for another report set or selection.
var ErrCursorMismatch = errors.New("insights: cursor does not match dataset or selection")

// ResolveSelectionInput selects a node and the slice of its series to return.
type ResolveSelectionInput struct {
	Reports     []sheets.ReportRef `json:"reports" validate:"required,min=1,dive" jsonschema_description:"Report workbooks with their dates"`
	Selection   Selection          `json:"selection" jsonschema_description:"Node to resolve"`
	From        string             `json:"from,omitempty" validate:"omitempty,isodate" jsonschema_description:"Inclusive start date YYYY-MM-DD"`
	To          string             `json:"to,omitempty" validate:"omitempty,isodate" jsonschema_description:"Inclusive end date YYYY-MM-DD"`
	Granularity string             `json:"granularity,omitempty" validate:"omitempty,oneof=daily monthly" jsonschema_description:"daily (default) or monthly (latest report of each month)"`
	Metrics     []string           `json:"metrics,omitempty" jsonschema_description:"Only return these metric columns"`
	PageSize    int                `json:"page_size,omitempty" validate:"omitempty,min=1,max=1000" jsonschema_description:"Points per page (default 100)"`
	Cursor      string             `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"Opaque cursor from a previous page"`
}

// PageMeta captures paging metadata.
type PageMeta struct {
	Total      int    `json:"total"`
	Returned   int    `json:"returned"`
	Truncated  bool   `json:"truncated"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// ResolveSelectionOutput carries one page of the resolved series.
type ResolveSelectionOutput struct {
	Dataset     string                   `json:"dataset"`
	Selection   Selection                `json:"selection"`
	Granularity string                   `json:"granularity"`
	Points      []rollup.AggregatedPoint `json:"points"`
	Meta        PageMeta                 `json:"meta"`
}

// ResolveSelection resolves the selected node's date series and returns one page of it.
func (a *Analyzer) ResolveSelection(ctx context.Context, in ResolveSelectionInput) (ResolveSelectionOutput, error) {
	out := ResolveSelectionOutput{Selection: in.Selection, Granularity: granularity(in.Granularity)}
	w, err := window(in.From, in.To)
	if err != nil {
		return out, err
	}
	ds, err := a.Dataset(ctx, in.Reports)
	if err != nil {
		return out, err
	}
	out.Dataset = ds.Key

	selKey := strings.Join([]string{in.Selection.key(), in.From, in.To, out.Granularity, strings.Join(in.Metrics, ",")}, "|")
	offset, pageSize := 0, pageSize(in.PageSize)
	if in.Cursor != "" {
		cur, err := pagination.DecodeCursor(in.Cursor)
		if err != nil {
			return out, err
		}
		if !cur.Matches(ds.Key, selKey) {
			return out, ErrCursorMismatch
		}
		offset, pageSize = cur.Off, cur.Ps
	}

	points, err := series(ds.Hierarchy, in.Selection, w, out.Granularity)
	if err != nil {
		return out, err
	}
	if len(in.Metrics) > 0 {
		for i := range points {
			points[i].Metrics = lo.PickByKeys(points[i].Metrics, in.Metrics)
		}
	}

	out.Meta.Total = len(points)
	start := min(offset, len(points))
	end := min(start+pageSize, len(points))
	out.Points = points[start:end]
	out.Meta.Returned = len(out.Points)
	if end < len(points) {
		out.Meta.Truncated = true
		next, err := pagination.EncodeCursor(pagination.Cursor{
			Ds:  ds.Key,
			Sel: selKey,
			Off: pagination.NextOffset(offset, out.Meta.Returned),
			Ps:  pageSize,
		})
		if err != nil {
			return out, err
		}
		out.Meta.NextCursor = next
	}
	if out.Points == nil {
		out.Points = []rollup.AggregatedPoint{}
	}
	return out, nil
}

func granularity(g string) string {
	if strings.EqualFold(strings.TrimSpace(g), Monthly) {
		return Monthly
	}
	return Daily
}

func pageSize(n int) int {
	if n <= 0 {
		return config.DefaultSeriesPageSize
	}
	return min(n, config.MaxSeriesPageSize)
}
