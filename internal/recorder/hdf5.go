package recorder

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/pywr-go/pywr/internal/calendar"
	"github.com/pywr-go/pywr/internal/scenario"
)

// HDF5Writer buffers every pushed row and WriteTo writes a compact
// binary column store: a plain-text manifest (a format line, the dataset
// count, then one "name row-count" line per dataset) followed by each
// dataset's float64s as
// little-endian binary, one dataset per (set,label) column.
//
// This is a deliberate simplification, not a real HDF5 file: none of the
// example repos this module was grown from carries an HDF5 binding
// (cgo-based bindings are the only ones the ecosystem offers), so writing
// actual HDF5 would mean fabricating a dependency this codebase never
// otherwise needs. The manifest+column layout gives the same "named
// datasets of typed arrays" shape HDF5 output is used for, readable by any
// consumer without a C library, at the cost of not being real HDF5.
type HDF5Writer struct {
	rows []Row
}

// NewHDF5Writer returns an empty writer; every Push call buffers a row.
func NewHDF5Writer() *HDF5Writer {
	return &HDF5Writer{}
}

// Push implements simulate.Sink.
func (h *HDF5Writer) Push(idx scenario.Index, ts calendar.Timestep, setName string, labels []string, values []float64) {
	h.rows = append(h.rows, expand(idx, ts, setName, labels, values)...)
}

// WriteTo writes the manifest+column binary format to w.
func (h *HDF5Writer) WriteTo(w io.Writer) (int64, error) {
	type column struct {
		name string
		vals []float64
	}
	byName := make(map[string]*column)
	var order []string
	for _, r := range h.rows {
		name := fmt.Sprintf("/%d/%s/%s", r.Scenario.SimulationID, r.Set, r.Label)
		c, ok := byName[name]
		if !ok {
			c = &column{name: name}
			byName[name] = c
			order = append(order, name)
		}
		c.vals = append(c.vals, r.Value)
	}
	sort.Strings(order)

	bw := bufio.NewWriter(w)
	var written int64

	n, err := fmt.Fprintf(bw, "PYWRCOLS1\n%d\n", len(order))
	written += int64(n)
	if err != nil {
		return written, err
	}
	for _, name := range order {
		c := byName[name]
		n, err := fmt.Fprintf(bw, "%s %d\n", name, len(c.vals))
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	for _, name := range order {
		c := byName[name]
		for _, v := range c.vals {
			if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
				return written, err
			}
			written += 8
		}
	}
	if err := bw.Flush(); err != nil {
		return written, err
	}
	return written, nil
}
