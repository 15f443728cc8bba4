package mcperr

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Code defines a canonical MCP error code used across tools.
type Code string

const (
	// Validation & Input
	Validation        Code = "VALIDATION"
	InvalidSheet      Code = "INVALID_SHEET"
	InvalidSelection  Code = "INVALID_SELECTION"
	CursorInvalid     Code = "CURSOR_INVALID"
	CursorBuildFailed Code = "CURSOR_BUILD_FAILED"

	// Resource & Limits
	BusyResource  Code = "BUSY_RESOURCE"
	Timeout       Code = "TIMEOUT"
	LimitExceeded Code = "LIMIT_EXCEEDED"

	// IO & Formats
	OpenFailed        Code = "OPEN_FAILED"
	LoadFailed        Code = "LOAD_FAILED"
	DetectionFailed   Code = "DETECTION_FAILED"
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	PermissionDenied  Code = "PERMISSION_DENIED"

	// Rollup
	ResolveFailed Code = "RESOLVE_FAILED"
	RankFailed    Code = "RANK_FAILED"
	StatsFailed   Code = "STATS_FAILED"
)

// Entry documents a code's standard message, retry semantics, and next steps.
type Entry struct {
	Code      Code
	Message   string
	Retryable bool
	NextSteps []string
}

// catalog maps canonical codes to guidance. Messages can be overridden per error.
var catalog = map[Code]Entry{
	Validation:        {Code: Validation, Message: "invalid inputs", Retryable: true, NextSteps: []string{"Correct the inputs per schema and retry", "See examples in tool description"}},
	InvalidSheet:      {Code: InvalidSheet, Message: "report sheet not found", Retryable: true, NextSteps: []string{"Check that each report has a Country sheet", "Call detect_tables to inspect the sheet layout"}},
	InvalidSelection:  {Code: InvalidSelection, Message: "selection does not fit the hierarchy", Retryable: true, NextSteps: []string{"Call build_hierarchy to list org types, clusters and zones", "Use Total for levels you do not want to fix"}},
	CursorInvalid:     {Code: CursorInvalid, Message: "cursor is invalid for current context", Retryable: true, NextSteps: []string{"Restart pagination from the first page", "Send the same reports and selection as the first page"}},
	CursorBuildFailed: {Code: CursorBuildFailed, Message: "failed to encode next page cursor", Retryable: true, NextSteps: []string{"Retry or use a smaller page_size"}},

	BusyResource:  {Code: BusyResource, Message: "concurrent request limit reached", Retryable: true, NextSteps: []string{"Retry after a short delay"}},
	Timeout:       {Code: Timeout, Message: "operation exceeded configured time limit", Retryable: true, NextSteps: []string{"Send fewer reports per call or increase timeout"}},
	LimitExceeded: {Code: LimitExceeded, Message: "operation exceeded configured limits", Retryable: true, NextSteps: []string{"Send fewer reports or split the date range"}},

	OpenFailed:        {Code: OpenFailed, Message: "failed to open report workbook", Retryable: true, NextSteps: []string{"Verify path, permissions, and format"}},
	LoadFailed:        {Code: LoadFailed, Message: "failed to load report rows", Retryable: true, NextSteps: []string{"Verify the Branch header is present in the report sheet", "Call detect_tables on the failing report"}},
	DetectionFailed:   {Code: DetectionFailed, Message: "table detection failed", Retryable: true, NextSteps: []string{"Verify the sheet name", "Reduce max_tables"}},
	UnsupportedFormat: {Code: UnsupportedFormat, Message: "unsupported workbook format", Retryable: false, NextSteps: []string{"Convert to .xlsx and retry"}},
	PermissionDenied:  {Code: PermissionDenied, Message: "insufficient permissions to access path", Retryable: false, NextSteps: []string{"Adjust permissions or choose an allowed directory"}},

	ResolveFailed: {Code: ResolveFailed, Message: "failed to resolve selection", Retryable: true, NextSteps: []string{"Check org_type, cluster and zone names"}},
	RankFailed:    {Code: RankFailed, Message: "failed to rank siblings", Retryable: true, NextSteps: []string{"Check the metric name against build_hierarchy numeric_columns"}},
	StatsFailed:   {Code: StatsFailed, Message: "no values for metric in series", Retryable: true, NextSteps: []string{"Check the metric name", "Widen the date window"}},
}

// normalize builds a standard error string including next steps for MCP clients that
// surface only a message string. Format: "CODE: message" followed by a guidance tail.
func normalize(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		// Unknown code; preserve as-is
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", string(code), base)
	}
	if base == "" {
		base = e.Message
	}
	// Append compact nextSteps guidance inline to aid clients lacking structured fields.
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Code, base, guidance)
}

// FromText parses a "CODE: message" string, enriches it with catalog guidance,
// and returns an MCP tool error result.
func FromText(text string) *mcp.CallToolResult {
	t := strings.TrimSpace(text)
	if t == "" {
		return mcp.NewToolResultError(normalize(Validation, ""))
	}
	parts := strings.SplitN(t, ":", 2)
	if len(parts) == 0 {
		return mcp.NewToolResultError(normalize(Validation, t))
	}
	code := Code(strings.TrimSpace(parts[0]))
	msg := ""
	if len(parts) > 1 {
		msg = strings.TrimSpace(parts[1])
	}
	return mcp.NewToolResultError(normalize(code, msg))
}

// New returns an MCP error result for a given code and optional message override.
func New(code Code, message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, message))
}

// Wrapf formats details and returns an MCP error result for the code.
func Wrapf(code Code, format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, fmt.Sprintf(format, args...)))
}

// Helpers for common mappings

// IsInvalidSheet returns true if an error matches common excelize "sheet does not exist" messages.
func IsInvalidSheet(err error) bool {
	if err == nil {
		return false
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "doesn't exist") || strings.Contains(low, "does not exist")
}
