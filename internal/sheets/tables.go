package sheets

import (
	"context"
	"strings"
)

// DetectTablesInput controls table block detection within a report sheet.
type DetectTablesInput struct {
	Path      string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Absolute or allowed path to a report workbook"`
	Sheet     string `json:"sheet,omitempty" jsonschema_description:"Sheet name to scan; defaults to the report sheet"`
	MaxTables int    `json:"max_tables,omitempty" validate:"omitempty,min=1,max=10" jsonschema_description:"Max number of table candidates to return (Top-K)"`
}

// DetectTablesOutput carries ranked block candidates with basic scan metadata.
type DetectTablesOutput struct {
	Path       string  `json:"path"`
	Sheet      string  `json:"sheet"`
	Candidates []Block `json:"candidates"`
	// BranchTable is the range the loader reads report rows from, empty when no
	// block carries the branch column.
	BranchTable string `json:"branch_table,omitempty"`
	Meta        struct {
		ScannedRows int  `json:"scanned_rows"`
		ScannedCols int  `json:"scanned_cols"`
		Truncated   bool `json:"truncated"`
	} `json:"meta"`
}

// DetectTables scans a sheet for rectangular table blocks and marks the one
// the loader would use.
func (l *Loader) DetectTables(ctx context.Context, in DetectTablesInput) (DetectTablesOutput, error) {
	var out DetectTablesOutput
	out.Sheet = strings.TrimSpace(in.Sheet)
	if out.Sheet == "" {
		out.Sheet = l.sheet()
	}
	maxTables := in.MaxTables
	if maxTables <= 0 || maxTables > 10 {
		maxTables = 5
	}

	_, canonical, err := l.Mgr.GetOrOpenByPath(ctx, in.Path)
	if err != nil {
		return out, err
	}
	out.Path = canonical

	grid, found, err := l.readSheet(ctx, canonical, out.Sheet)
	if err != nil {
		return out, err
	}
	if !found {
		return out, ErrSheetNotFound
	}
	out.Meta.ScannedRows = len(grid)
	for _, r := range grid {
		out.Meta.ScannedCols = max(out.Meta.ScannedCols, len(r))
	}

	blocks := DetectBlocks(grid)
	if b, _, ok := FindHeaderRow(grid, blocks, l.branchColumn()); ok {
		out.BranchTable = b.Range
	}
	if len(blocks) > maxTables {
		out.Meta.Truncated = true
		blocks = blocks[:maxTables]
	}
	out.Candidates = blocks
	if out.Candidates == nil {
		out.Candidates = []Block{}
	}
	return out, nil
}
