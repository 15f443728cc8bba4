package sheets

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vinodismyname/branchrollup/config"
	"github.com/vinodismyname/branchrollup/internal/rollup"
	"github.com/vinodismyname/branchrollup/internal/runtime"
	"github.com/vinodismyname/branchrollup/internal/workbooks"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

// ReportRef names one report workbook and the calendar date it covers.
type ReportRef struct {
	Path     string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Absolute or allowed path to a report workbook"`
	ID       string `json:"id,omitempty" jsonschema_description:"Optional report identifier; defaults to the file name"`
	FileName string `json:"file_name,omitempty" jsonschema_description:"Optional display name; defaults to the base name of path"`
	Date     string `json:"date" validate:"required,isodate" jsonschema_description:"Report date as YYYY-MM-DD"`
}

// ErrRowLimit indicates a report sheet larger than the configured row budget.
var ErrRowLimit = errors.New("sheets: row limit exceeded")

// ErrTooManyReports indicates a call naming more reports than allowed.
var ErrTooManyReports = errors.New("sheets: too many reports")

// ErrSheetNotFound indicates a workbook without the requested sheet.
var ErrSheetNotFound = errors.New("sheets: sheet not found")

// ErrNoBranchColumn indicates that no table on the sheet has the branch header.
var ErrNoBranchColumn = errors.New("sheets: branch column not found")

// Loader reads report sheets into rollup reports.
type Loader struct {
	Limits       runtime.Limits
	Mgr          *workbooks.Manager
	SheetName    string
	BranchColumn string
}

func (l *Loader) sheet() string {
	if l.SheetName == "" {
		return config.DefaultSheetName
	}
	return l.SheetName
}

func (l *Loader) branchColumn() string {
	if l.BranchColumn == "" {
		return config.DefaultBranchColumn
	}
	return l.BranchColumn
}

// Load reads every referenced report concurrently and returns them in input order.
// A workbook without the report sheet yields a report with no rows.
func (l *Loader) Load(ctx context.Context, refs []ReportRef) ([]rollup.Report, error) {
	if n := l.Limits.MaxReportsPerCall; n > 0 && len(refs) > n {
		return nil, fmt.Errorf("%w: %d exceeds limit %d", ErrTooManyReports, len(refs), n)
	}
	out := make([]rollup.Report, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	limit := l.Limits.MaxConcurrentLoads
	if limit <= 0 {
		limit = config.DefaultMaxConcurrentLoads
	}
	g.SetLimit(limit)
	for i, ref := range refs {
		g.Go(func() error {
			rep, err := l.loadOne(gctx, ref)
			if err != nil {
				return fmt.Errorf("%s: %w", ref.Path, err)
			}
			out[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Loader) loadOne(ctx context.Context, ref ReportRef) (rollup.Report, error) {
	date, err := time.Parse(time.DateOnly, strings.TrimSpace(ref.Date))
	if err != nil {
		return rollup.Report{}, fmt.Errorf("sheets: invalid report date %q", ref.Date)
	}
	rep := rollup.Report{ID: ref.ID, FileName: ref.FileName, Date: date}
	if rep.FileName == "" {
		rep.FileName = filepath.Base(ref.Path)
	}
	if rep.ID == "" {
		rep.ID = rep.FileName
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	grid, found, err := l.readSheet(ctx, ref.Path, l.sheet())
	if err != nil {
		return rep, err
	}
	log := zerolog.Ctx(ctx)
	if !found {
		log.Warn().Str("file", rep.FileName).Str("sheet", l.sheet()).Msg("report sheet missing")
		return rep, nil
	}
	rows, err := tableRows(grid, l.branchColumn())
	if err != nil {
		return rep, err
	}
	rep.Rows = rows
	log.Debug().Str("file", rep.FileName).Int("rows", len(rows)).Msg("report loaded")
	return rep, nil
}

// readSheet returns the raw cell grid of a sheet and whether the sheet exists.
func (l *Loader) readSheet(ctx context.Context, path, sheet string) ([][]string, bool, error) {
	var (
		grid  [][]string
		found bool
	)
	read := func(f *excelize.File) error {
		idx, err := f.GetSheetIndex(sheet)
		if err != nil || idx < 0 {
			return nil
		}
		found = true
		grid, err = readGrid(f, sheet, l.Limits.MaxRowsPerSheet, l.Limits.MaxCellsPerOp)
		return err
	}
	// a concurrent open may evict the handle between lookup and read
	for attempt := 0; ; attempt++ {
		id, _, err := l.Mgr.GetOrOpenByPath(ctx, path)
		if err != nil {
			return nil, false, err
		}
		err = l.Mgr.WithRead(id, read)
		if errors.Is(err, workbooks.ErrHandleNotFound) && attempt < 2 {
			continue
		}
		return grid, found, err
	}
}

// readGrid streams the sheet's raw cell values. maxRows and maxCells <= 0 disable the checks.
func readGrid(f *excelize.File, sheet string, maxRows, maxCells int) ([][]string, error) {
	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grid [][]string
	cells := 0
	for rows.Next() {
		vals, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, err
		}
		if maxRows > 0 && len(grid) >= maxRows {
			return nil, fmt.Errorf("%w: more than %d rows in %q", ErrRowLimit, maxRows, sheet)
		}
		cells += len(vals)
		if maxCells > 0 && cells > maxCells {
			return nil, fmt.Errorf("%w: more than %d cells in %q", ErrRowLimit, maxCells, sheet)
		}
		grid = append(grid, vals)
	}
	return grid, rows.Error()
}

// tableRows locates the table carrying the branch column and flattens its data
// rows. Numeric text becomes float64; empty cells are omitted.
func tableRows(grid [][]string, branchColumn string) ([]rollup.RawRow, error) {
	block, headerRow, ok := FindHeaderRow(grid, DetectBlocks(grid), branchColumn)
	if !ok {
		if len(grid) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrNoBranchColumn, branchColumn)
	}

	headers := make([]string, block.Col2-block.Col1+1)
	seen := make(map[string]int)
	for c := block.Col1; c <= block.Col2; c++ {
		h := strings.TrimSpace(cell(grid, headerRow, c))
		if h == "" {
			continue
		}
		if strings.EqualFold(h, branchColumn) {
			h = rollup.BranchColumn
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = h + "_" + strconv.Itoa(n)
		} else {
			seen[h] = 1
		}
		headers[c-block.Col1] = h
	}

	out := make([]rollup.RawRow, 0, block.Row2-headerRow)
	for r := headerRow + 1; r <= block.Row2; r++ {
		row := make(rollup.RawRow)
		for i, h := range headers {
			if h == "" {
				continue
			}
			v := strings.TrimSpace(cell(grid, r, block.Col1+i))
			if v == "" {
				continue
			}
			if h == rollup.BranchColumn {
				row[h] = v
				continue
			}
			if f, ok := parseNumeric(v); ok {
				row[h] = f
			} else {
				row[h] = v
			}
		}
		if len(row) > 0 {
			out = append(out, row)
		}
	}
	return out, nil
}

func cell(grid [][]string, r, c int) string {
	if r < 0 || r >= len(grid) || c < 0 || c >= len(grid[r]) {
		return ""
	}
	return grid[r][c]
}
