package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/branchrollup/internal/insights"
	"github.com/vinodismyname/branchrollup/internal/runtime"
	"github.com/vinodismyname/branchrollup/internal/security"
	"github.com/vinodismyname/branchrollup/internal/sheets"
	"github.com/vinodismyname/branchrollup/pkg/mcperr"
	"github.com/vinodismyname/branchrollup/pkg/pagination"
)

func errorText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return tc.Text
}

func TestRegisterReportTools(t *testing.T) {
	srv := server.NewMCPServer("test", "0", server.WithToolCapabilities(true))
	reg := New()
	RegisterReportTools(srv, reg, runtime.NewLimits(0, 0), &insights.Analyzer{Loader: &sheets.Loader{}})

	tools, err := reg.Tools(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	require.Equal(t, []string{"build_hierarchy", "detect_tables", "rank_siblings", "resolve_selection", "series_stats"}, names)

	tool, ok := reg.Get("rank_siblings")
	require.True(t, ok)
	require.Contains(t, tool.Description, "HHI")
}

func TestHandle_ValidationAndErrors(t *testing.T) {
	limits := runtime.NewLimits(0, 0)
	calls := 0
	h := handle(limits, mcperr.StatsFailed, func(ctx context.Context, in insights.SeriesStatsInput) (insights.SeriesStatsOutput, error) {
		calls++
		return insights.SeriesStatsOutput{}, fmt.Errorf("load: %w", sheets.ErrSheetNotFound)
	}, describeStats)

	res, err := h(context.Background(), mcp.CallToolRequest{}, insights.SeriesStatsInput{})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(errorText(t, res), "VALIDATION: reports is required"))
	require.Zero(t, calls)

	in := insights.SeriesStatsInput{
		Reports:   []sheets.ReportRef{{Path: "/data/2024-01-01.xlsx", Date: "2024-01-01"}},
		Selection: insights.Selection{OrgType: "CS"},
		Metric:    "Disbursements",
	}
	res, err = h(context.Background(), mcp.CallToolRequest{}, in)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(errorText(t, res), "INVALID_SHEET:"))
	require.Equal(t, 1, calls)

	in.Selection.OrgType = "XYZ"
	res, _ = h(context.Background(), mcp.CallToolRequest{}, in)
	require.Contains(t, errorText(t, res), "org_type must be one of")
}

func TestHandle_StructuredAndPayloadLimit(t *testing.T) {
	out := insights.SeriesStatsOutput{Dataset: "abc", Found: true}
	out.Stats.Metric = "Disbursements"
	out.Stats.Latest = 42
	out.Stats.LatestDate = "2024-01-05"
	out.Stats.Count = 1
	run := func(ctx context.Context, in sheets.DetectTablesInput) (insights.SeriesStatsOutput, error) {
		return out, nil
	}

	limits := runtime.NewLimits(0, 0)
	res, err := handle(limits, mcperr.StatsFailed, run, describeStats)(context.Background(), mcp.CallToolRequest{}, sheets.DetectTablesInput{Path: "/data/r.xlsx"})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, out, res.StructuredContent)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	require.True(t, strings.HasPrefix(tc.Text, "metric=Disbursements latest=42 (2024-01-05)"))

	limits.MaxPayloadBytes = 16
	res, err = handle(limits, mcperr.StatsFailed, run, describeStats)(context.Background(), mcp.CallToolRequest{}, sheets.DetectTablesInput{Path: "/data/r.xlsx"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(errorText(t, res), "LIMIT_EXCEEDED:"))
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want mcperr.Code
	}{
		{context.DeadlineExceeded, mcperr.Timeout},
		{fmt.Errorf("open: %w", security.ErrNotAllowed), mcperr.PermissionDenied},
		{sheets.ErrRowLimit, mcperr.LimitExceeded},
		{sheets.ErrTooManyReports, mcperr.LimitExceeded},
		{sheets.ErrNoBranchColumn, mcperr.LoadFailed},
		{fmt.Errorf("x: %w", insights.ErrInvalidSelection), mcperr.InvalidSelection},
		{insights.ErrCursorMismatch, mcperr.CursorInvalid},
		{pagination.ErrInvalidCursor, mcperr.CursorInvalid},
		{errors.New("boom"), mcperr.RankFailed},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, errorCode(tc.err, mcperr.RankFailed), tc.err.Error())
	}
}

func TestPayloadBudget(t *testing.T) {
	reg := New()
	size := reg.ModelContextSize("gpt-4")
	require.Positive(t, size)
	require.Equal(t, size, reg.PayloadBudget("gpt-4", 0))
	require.Equal(t, 100, reg.PayloadBudget("gpt-4", 100))
}

func TestPreviewHeader(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, previewHeader([]string{"a", "b"}, 3))
	require.Equal(t, []string{"a", "…"}, previewHeader([]string{"a", "b", "c"}, 1))
}
