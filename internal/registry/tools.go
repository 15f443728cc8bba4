package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/lo"
	"github.com/vinodismyname/branchrollup/internal/insights"
	"github.com/vinodismyname/branchrollup/internal/rollup"
	"github.com/vinodismyname/branchrollup/internal/runtime"
	"github.com/vinodismyname/branchrollup/internal/sheets"
	"github.com/vinodismyname/branchrollup/pkg/mcperr"
	"github.com/vinodismyname/branchrollup/pkg/validation"
)

const maxSummaryLines = 8

// RegisterReportTools wires the branch rollup tools onto the server and the registry.
func RegisterReportTools(s *server.MCPServer, reg *Registry, limits runtime.Limits, a *insights.Analyzer) {
	// build_hierarchy
	bh := mcp.NewTool(
		"build_hierarchy",
		mcp.WithDescription("Load a set of dated branch reports (Country sheet) and outline the org type > cluster > zone > branch tree present in them. Returns a dataset fingerprint, numeric metric columns, exempt branch names and build stats (rows kept, rows dropped for unmapped names, blank rows). Call this first to learn valid selection names and metrics. Errors include OPEN_FAILED, LOAD_FAILED, PERMISSION_DENIED and LIMIT_EXCEEDED."),
		mcp.WithInputSchema[insights.BuildHierarchyInput](),
		mcp.WithOutputSchema[insights.BuildHierarchyOutput](),
	)
	s.AddTool(bh, mcp.NewTypedToolHandler(handle(limits, mcperr.LoadFailed, a.BuildHierarchy, describeHierarchy)))
	reg.Register(bh)

	// resolve_selection
	rs := mcp.NewTool(
		"resolve_selection",
		mcp.WithDescription("Resolve the per-date series of one node (org_type, cluster, zone, branch; omitted levels mean Total). Each node uses its own total rows from the reports when present, otherwise the sum of what lies below it, so no branch is counted twice. Supports an inclusive from/to window, monthly granularity (latest report of each month), metric filtering and cursor paging. Errors include INVALID_SELECTION and CURSOR_INVALID."),
		mcp.WithInputSchema[insights.ResolveSelectionInput](),
		mcp.WithOutputSchema[insights.ResolveSelectionOutput](),
	)
	s.AddTool(rs, mcp.NewTypedToolHandler(handle(limits, mcperr.ResolveFailed, a.ResolveSelection, describeSelection)))
	reg.Register(rs)

	// rank_siblings
	rk := mcp.NewTool(
		"rank_siblings",
		mcp.WithDescription("Rank the siblings of a selected node by one metric at their latest report inside the window: org types when cluster is Total, clusters when a cluster is picked, zones when a zone is picked, branches when a branch is picked. Returns value, share of total and the HHI concentration band. Use top_n to cap the list and include_series to attach each sibling's series."),
		mcp.WithInputSchema[insights.RankSiblingsInput](),
		mcp.WithOutputSchema[insights.RankSiblingsOutput](),
	)
	s.AddTool(rk, mcp.NewTypedToolHandler(handle(limits, mcperr.RankFailed, a.RankSiblings, describeRanking)))
	reg.Register(rk)

	// series_stats
	st := mcp.NewTool(
		"series_stats",
		mcp.WithDescription("Summarize one metric of a selected node's series: latest and previous values with dates, trend direction and percentage, max and min with dates, average, median, sum, count and range. found is false when no report in the window carries the metric."),
		mcp.WithInputSchema[insights.SeriesStatsInput](),
		mcp.WithOutputSchema[insights.SeriesStatsOutput](),
	)
	s.AddTool(st, mcp.NewTypedToolHandler(handle(limits, mcperr.StatsFailed, a.SeriesStats, describeStats)))
	reg.Register(st)

	// detect_tables
	dt := mcp.NewTool(
		"detect_tables",
		mcp.WithDescription("Detect rectangular table regions within a report sheet (default Country) and mark the one carrying the Branch column, which is the table the loader reads. Use when a report fails to load or carries side tables. Errors include INVALID_SHEET and DETECTION_FAILED."),
		mcp.WithInputSchema[sheets.DetectTablesInput](),
		mcp.WithOutputSchema[sheets.DetectTablesOutput](),
	)
	s.AddTool(dt, mcp.NewTypedToolHandler(handle(limits, mcperr.DetectionFailed, a.Loader.DetectTables, describeTables)))
	reg.Register(dt)
}

// handle validates the typed input, runs the analysis and shapes the result
// as structured output with a short text summary.
func handle[In, Out any](limits runtime.Limits, fallback mcperr.Code, run func(context.Context, In) (Out, error), describe func(Out) (string, []string)) mcp.TypedToolHandlerFunc[In] {
	return func(ctx context.Context, req mcp.CallToolRequest, in In) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		out, err := run(ctx, in)
		if err != nil {
			return toolError(err, fallback), nil
		}
		summary, lines := describe(out)
		if limits.MaxPayloadBytes > 0 {
			b, err := json.Marshal(out)
			if err != nil {
				return toolError(err, fallback), nil
			}
			if len(b) > limits.MaxPayloadBytes {
				return mcperr.Wrapf(mcperr.LimitExceeded, "response of %d bytes exceeds the %d byte limit; lower page_size or top_n, or narrow the window", len(b), limits.MaxPayloadBytes), nil
			}
		}
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(strings.Join(append([]string{summary}, lines...), "\n"))}
		return res, nil
	}
}

func describeHierarchy(out insights.BuildHierarchyOutput) (string, []string) {
	summary := fmt.Sprintf("dataset=%s org_types=%d kept_rows=%d dropped_rows=%d metrics=%d",
		out.Dataset, len(out.OrgTypes), out.Stats.KeptRows, out.Stats.DroppedRows, len(out.NumericColumns))
	var lines []string
	for _, org := range out.OrgTypes {
		names := lo.Map(org.Clusters, func(c insights.ClusterOutline, _ int) string {
			if len(c.Zones) > 0 {
				return fmt.Sprintf("%s (zones=%d)", c.Name, len(c.Zones))
			}
			return c.Name
		})
		lines = append(lines, fmt.Sprintf("- %s: %s", org.OrgType, strings.Join(names, ", ")))
	}
	if len(out.Stats.DroppedNames) > 0 {
		lines = append(lines, "dropped: "+strings.Join(previewHeader(out.Stats.DroppedNames, maxSummaryLines), ", "))
	}
	return summary, lines
}

func describeSelection(out insights.ResolveSelectionOutput) (string, []string) {
	summary := fmt.Sprintf("points=%d total=%d truncated=%v granularity=%s", out.Meta.Returned, out.Meta.Total, out.Meta.Truncated, out.Granularity)
	var lines []string
	for _, p := range lo.Slice(out.Points, 0, maxSummaryLines) {
		keys := lo.Keys(p.Metrics)
		sort.Strings(keys)
		vals := lo.Map(previewHeader(keys, 4), func(k string, _ int) string { return fmt.Sprintf("%s=%g", k, p.Metrics[k]) })
		lines = append(lines, fmt.Sprintf("- %s %s", p.Date, strings.Join(vals, " ")))
	}
	return summary, lines
}

func describeRanking(out insights.RankSiblingsOutput) (string, []string) {
	summary := fmt.Sprintf("level=%s metric=%s siblings=%d total=%g", out.Level, out.Metric, len(out.Siblings), out.Total)
	if out.Band != "" {
		summary += fmt.Sprintf(" hhi=%.3f band=%s", out.HHI, out.Band)
	}
	lines := lo.Map(lo.Slice(out.Siblings, 0, maxSummaryLines), func(r rollup.Ranked, i int) string {
		return fmt.Sprintf("%d. %s value=%g share=%.1f%% date=%s", i+1, r.Name, r.Value, r.Share*100, r.Date)
	})
	return summary, lines
}

func describeStats(out insights.SeriesStatsOutput) (string, []string) {
	s := out.Stats
	if !out.Found {
		return "metric not found in the selected series", nil
	}
	summary := fmt.Sprintf("metric=%s latest=%g (%s) count=%d", s.Metric, s.Latest, s.LatestDate, s.Count)
	var lines []string
	if s.Previous != nil && s.TrendPercentage != nil {
		lines = append(lines, fmt.Sprintf("trend=%s %.1f%% vs %g (%s)", s.Trend, *s.TrendPercentage, *s.Previous, s.PreviousDate))
	}
	lines = append(lines, fmt.Sprintf("max=%g (%s) min=%g (%s) avg=%g median=%g sum=%g", s.Max, s.MaxDate, s.Min, s.MinDate, s.Avg, s.Median, s.Sum))
	return summary, lines
}

func describeTables(out sheets.DetectTablesOutput) (string, []string) {
	summary := fmt.Sprintf("candidates=%d scanned_rows=%d scanned_cols=%d truncated=%v", len(out.Candidates), out.Meta.ScannedRows, out.Meta.ScannedCols, out.Meta.Truncated)
	lines := lo.Map(lo.Slice(out.Candidates, 0, 5), func(c sheets.Block, _ int) string {
		mark := ""
		if c.Range == out.BranchTable {
			mark = " [branch table]"
		}
		return fmt.Sprintf("- %s rows=%d cols=%d conf=%.3f hdr=%v%s", c.Range, c.Rows, c.Cols, c.Confidence, previewHeader(c.Header, 6), mark)
	})
	return summary, lines
}

func previewHeader(xs []string, n int) []string {
	if len(xs) <= n {
		return xs
	}
	return append(xs[:n:n], "…")
}
