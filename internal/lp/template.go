// Package lp translates a built network into sparse LP data: one column
// per realised edge (plus compound-node internal columns), one row per
// mass-balance/capacity/aggregation/exclusivity/loss rule. See spec §4.3.
package lp

import (
	"fmt"
	"sort"
)

// Template is the immutable, compiled LP structure shared read-only across
// scenario workers. Coefficients are stored in CSC order (column pointers,
// row indices, values) as spec §4.3 specifies.
type Template struct {
	NCols, NRows int

	ColPtr []int     // length NCols+1
	RowIdx []int     // length == len(Coef), row index of each nonzero
	Coef   []float64 // length == len(RowIdx), base coefficient of each nonzero

	ColLower, ColUpper, ColObj []float64 // length NCols
	RowLower, RowUpper         []float64 // length NRows

	ColNames []string
	RowNames []string

	// ColIsBinary flags columns that must be treated as {0,1} by a MILP
	// wrapper; the base LP relaxation still bounds them [0,1] like any
	// other continuous column.
	ColIsBinary []bool

	// entryIndex maps (row,col) -> position in RowIdx/Coef, so per-step
	// coefficient updates can address a specific nonzero without
	// re-scanning the sparse structure.
	entryIndex map[[2]int]int
}

// entry is one nonzero during construction, before CSC compaction.
type entry struct {
	row, col int
	coef     float64
}

// Builder accumulates columns, rows, and nonzero entries, then compiles
// them into a Template.
type Builder struct {
	nCols, nRows int
	colLower, colUpper, colObj []float64
	colNames                  []string
	colIsBinary               []bool
	rowLower, rowUpper        []float64
	rowNames                  []string
	entries                   []entry
}

// NewBuilder creates an empty LP builder.
func NewBuilder() *Builder { return &Builder{} }

// AddColumn appends a new LP column and returns its index.
func (b *Builder) AddColumn(name string, lower, upper, obj float64) int {
	idx := b.nCols
	b.nCols++
	b.colLower = append(b.colLower, lower)
	b.colUpper = append(b.colUpper, upper)
	b.colObj = append(b.colObj, obj)
	b.colNames = append(b.colNames, name)
	b.colIsBinary = append(b.colIsBinary, false)
	return idx
}

// AddBinaryColumn appends a {0,1}-flagged column for MILP exclusivity
// indicators.
func (b *Builder) AddBinaryColumn(name string, obj float64) int {
	idx := b.AddColumn(name, 0, 1, obj)
	b.colIsBinary[idx] = true
	return idx
}

// AddRow appends a new constraint row and returns its index.
func (b *Builder) AddRow(name string, lower, upper float64) int {
	idx := b.nRows
	b.nRows++
	b.rowLower = append(b.rowLower, lower)
	b.rowUpper = append(b.rowUpper, upper)
	b.rowNames = append(b.rowNames, name)
	return idx
}

// AddEntry records a nonzero LP coefficient at (row, col). Calling this
// more than once for the same (row,col) accumulates the coefficients,
// matching how several expanders (e.g. loss + capacity rows touching the
// same column) may each contribute a term. A zero coefficient is dropped:
// use AddDynamicEntry instead when the coefficient is known to be driven by
// a parameter that may start at (or return to) zero at runtime.
func (b *Builder) AddEntry(row, col int, coef float64) {
	if coef == 0 {
		return
	}
	b.entries = append(b.entries, entry{row: row, col: col, coef: coef})
}

// AddDynamicEntry records an LP coefficient that internal/simulate will
// refresh every step via Template.EntryIndex, even if its build-time value
// happens to be zero (a named parameter's initial value, say). Build still
// merges it with any other entry at the same (row,col).
func (b *Builder) AddDynamicEntry(row, col int, coef float64) {
	b.entries = append(b.entries, entry{row: row, col: col, coef: coef})
}

// Build compiles the accumulated columns/rows/entries into an immutable
// CSC Template.
func (b *Builder) Build() (*Template, error) {
	for _, e := range b.entries {
		if e.col < 0 || e.col >= b.nCols {
			return nil, fmt.Errorf("lp: entry references out-of-range column %d", e.col)
		}
		if e.row < 0 || e.row >= b.nRows {
			return nil, fmt.Errorf("lp: entry references out-of-range row %d", e.row)
		}
	}

	// Merge duplicate (row,col) entries by summation, then sort by column
	// then row for CSC layout.
	merged := make(map[[2]int]float64, len(b.entries))
	order := make([][2]int, 0, len(b.entries))
	for _, e := range b.entries {
		k := [2]int{e.col, e.row}
		if _, ok := merged[k]; !ok {
			order = append(order, k)
		}
		merged[k] += e.coef
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i][0] != order[j][0] {
			return order[i][0] < order[j][0]
		}
		return order[i][1] < order[j][1]
	})

	t := &Template{
		NCols:       b.nCols,
		NRows:       b.nRows,
		ColLower:    append([]float64(nil), b.colLower...),
		ColUpper:    append([]float64(nil), b.colUpper...),
		ColObj:      append([]float64(nil), b.colObj...),
		RowLower:    append([]float64(nil), b.rowLower...),
		RowUpper:    append([]float64(nil), b.rowUpper...),
		ColNames:    append([]string(nil), b.colNames...),
		RowNames:    append([]string(nil), b.rowNames...),
		ColIsBinary: append([]bool(nil), b.colIsBinary...),
		ColPtr:      make([]int, b.nCols+1),
		entryIndex:  make(map[[2]int]int, len(order)),
	}
	t.RowIdx = make([]int, len(order))
	t.Coef = make([]float64, len(order))

	curCol := 0
	for i, k := range order {
		col, row := k[0], k[1]
		for curCol < col {
			curCol++
			t.ColPtr[curCol] = i
		}
		t.RowIdx[i] = row
		t.Coef[i] = merged[k]
		t.entryIndex[[2]int{row, col}] = i
	}
	for curCol < b.nCols {
		curCol++
		t.ColPtr[curCol] = len(order)
	}
	return t, nil
}

// EntryIndex returns the position in RowIdx/Coef of the nonzero at
// (row,col), and whether it exists (entries that were never added, i.e.
// structurally zero, cannot be updated later — the builder must add a
// zero-valued placeholder if a coefficient is known to vary to/from zero
// at runtime).
func (t *Template) EntryIndex(row, col int) (int, bool) {
	idx, ok := t.entryIndex[[2]int{row, col}]
	return idx, ok
}

// Column returns the (rowIdx, coef) slices for column c, a view into the
// shared CSC arrays.
func (t *Template) Column(c int) ([]int, []float64) {
	start, end := t.ColPtr[c], t.ColPtr[c+1]
	return t.RowIdx[start:end], t.Coef[start:end]
}
