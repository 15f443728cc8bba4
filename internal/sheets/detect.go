package sheets

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"
)

// Block is a rectangular region of non-empty cells that likely forms a table.
// Row and column bounds are 0-based and inclusive within the scanned grid.
type Block struct {
	Range      string   `json:"range"`
	Header     []string `json:"header,omitempty"`
	Confidence float64  `json:"confidence"`
	Rows       int      `json:"rows"`
	Cols       int      `json:"cols"`

	Row1 int `json:"-"`
	Col1 int `json:"-"`
	Row2 int `json:"-"`
	Col2 int `json:"-"`
}

// DetectBlocks finds connected components of non-empty cells (4-directional
// adjacency) in grid and returns them ranked by confidence, highest first.
// Components smaller than 2x2 are ignored. Equal confidences keep top-to-bottom order.
func DetectBlocks(grid [][]string) []Block {
	rows := len(grid)
	cols := 0
	for _, r := range grid {
		cols = max(cols, len(r))
	}
	if rows == 0 || cols == 0 {
		return nil
	}
	filled := func(r, c int) bool {
		return c < len(grid[r]) && strings.TrimSpace(grid[r][c]) != ""
	}

	visited := make([][]bool, rows)
	for i := range visited {
		visited[i] = make([]bool, cols)
	}

	type rect struct{ r1, c1, r2, c2 int }
	var comps []rect
	var queue [][2]int
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if visited[r][c] || !filled(r, c) {
				continue
			}
			visited[r][c] = true
			queue = append(queue[:0], [2]int{r, c})
			b := rect{r, c, r, c}
			for len(queue) > 0 {
				p := queue[0]
				queue = queue[1:]
				cr, cc := p[0], p[1]
				b.r1, b.r2 = min(b.r1, cr), max(b.r2, cr)
				b.c1, b.c2 = min(b.c1, cc), max(b.c2, cc)
				for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
					nr, nc := cr+d[0], cc+d[1]
					if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
						continue
					}
					if visited[nr][nc] || !filled(nr, nc) {
						continue
					}
					visited[nr][nc] = true
					queue = append(queue, [2]int{nr, nc})
				}
			}
			if b.r2-b.r1+1 >= 2 && b.c2-b.c1+1 >= 2 {
				comps = append(comps, b)
			}
		}
	}

	maxArea := float64(rows * cols)
	blocks := make([]Block, 0, len(comps))
	for _, rc := range comps {
		header := make([]string, 0, rc.c2-rc.c1+1)
		for c := rc.c1; c <= rc.c2; c++ {
			v := ""
			if c < len(grid[rc.r1]) {
				v = strings.TrimSpace(grid[rc.r1][c])
			}
			header = append(header, v)
		}
		area := float64((rc.r2 - rc.r1 + 1) * (rc.c2 - rc.c1 + 1))
		sizeConf := 0.0
		if area > 1 && maxArea > 1 {
			sizeConf = clamp01(math.Log2(area) / math.Log2(maxArea))
		}
		tl, _ := excelize.CoordinatesToCellName(rc.c1+1, rc.r1+1)
		br, _ := excelize.CoordinatesToCellName(rc.c2+1, rc.r2+1)
		blocks = append(blocks, Block{
			Range:      tl + ":" + br,
			Header:     trimTrailingEmpties(header),
			Confidence: round3(0.6*headerConfidence(header) + 0.4*sizeConf),
			Rows:       rc.r2 - rc.r1 + 1,
			Cols:       rc.c2 - rc.c1 + 1,
			Row1:       rc.r1,
			Col1:       rc.c1,
			Row2:       rc.r2,
			Col2:       rc.c2,
		})
	}
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Confidence > blocks[j].Confidence })
	return blocks
}

// headerScanRows bounds how far into a block a header row is searched for,
// so title lines directly above a table do not hide it.
const headerScanRows = 5

// FindHeaderRow returns the highest ranked block having a row, among its first
// few, that names column (trimmed, case-insensitive), and the grid index of that row.
func FindHeaderRow(grid [][]string, blocks []Block, column string) (Block, int, bool) {
	want := strings.TrimSpace(column)
	for _, b := range blocks {
		for r := b.Row1; r <= b.Row2 && r < b.Row1+headerScanRows; r++ {
			if r >= len(grid) {
				break
			}
			from, to := min(b.Col1, len(grid[r])), min(b.Col2+1, len(grid[r]))
			if lo.ContainsBy(grid[r][from:to], func(v string) bool { return strings.EqualFold(strings.TrimSpace(v), want) }) {
				return b, r, true
			}
		}
	}
	return Block{}, -1, false
}

func headerConfidence(hdr []string) float64 {
	nonEmpty, numeric := 0, 0
	uniq := map[string]struct{}{}
	for _, v := range hdr {
		s := strings.TrimSpace(v)
		if s == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			numeric++
		}
		uniq[strings.ToLower(s)] = struct{}{}
	}
	if nonEmpty == 0 {
		return 0
	}
	uniqRatio := float64(len(uniq)) / float64(nonEmpty)
	numericRatio := float64(numeric) / float64(nonEmpty)
	// unique, mostly text-like headers score higher
	return clamp01(0.5*uniqRatio + 0.5*(1.0-numericRatio))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

func trimTrailingEmpties(xs []string) []string {
	i := len(xs)
	for i > 0 && strings.TrimSpace(xs[i-1]) == "" {
		i--
	}
	return xs[:i]
}
