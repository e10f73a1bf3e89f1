package recorder

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/pywr-go/pywr/internal/calendar"
	"github.com/pywr-go/pywr/internal/scenario"
)

// Format selects a CSVWriter's row shape.
type Format int

const (
	// Long emits one row per (scenario, timestep, label): the tidy-data
	// shape, easiest to load into any downstream analysis tool.
	Long Format = iota
	// Wide emits one row per (scenario, timestep) with one column per
	// label, buffered in memory until Close since the column set (every
	// label ever pushed) isn't known until the run finishes.
	Wide
)

// CSVWriter is a mutex-guarded simulate.Sink that streams (Long) or
// buffers-then-flushes (Wide) metric pushes as CSV. Multiple scenario
// workers push into the same writer concurrently, matching the teacher's
// "dedicated writer under a mutex" pattern for its own metrics aggregation.
type CSVWriter struct {
	mu     sync.Mutex
	w      *csv.Writer
	format Format

	wideHeader map[string]int // label -> column index, built up as new labels appear
	wideRows   []wideRow
	wideIdx    map[[2]int]int // (scenario_index, timestep) -> index into wideRows
	headerSet  bool
}

type wideRow struct {
	sim   int
	step  int
	start string
	end   string
	cells map[string]float64
}

// NewCSVWriter wraps an io.Writer. Callers own closing the underlying
// writer; call Close to flush buffered (Wide) data or the trailing (Long)
// buffer before doing so.
func NewCSVWriter(w io.Writer, format Format) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w), format: format, wideHeader: make(map[string]int), wideIdx: make(map[[2]int]int)}
}

// Push implements simulate.Sink.
func (c *CSVWriter) Push(idx scenario.Index, ts calendar.Timestep, setName string, labels []string, values []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, row := range expand(idx, ts, setName, labels, values) {
		switch c.format {
		case Long:
			c.writeLongRow(row)
		case Wide:
			c.bufferWideRow(row)
		}
	}
}

func (c *CSVWriter) writeLongRow(row Row) {
	if !c.headerSet {
		_ = c.w.Write([]string{"time_start", "time_end", "scenario_index", "metric_set", "name", "value"})
		c.headerSet = true
	}
	_ = c.w.Write([]string{
		row.Step.Date.Format("2006-01-02"),
		row.Step.EndDate().Format("2006-01-02"),
		strconv.Itoa(row.Scenario.SimulationID),
		row.Set,
		row.Label,
		strconv.FormatFloat(row.Value, 'g', -1, 64),
	})
}

func (c *CSVWriter) bufferWideRow(row Row) {
	col := fmt.Sprintf("%s.%s", row.Set, row.Label)
	if _, ok := c.wideHeader[col]; !ok {
		c.wideHeader[col] = len(c.wideHeader)
	}
	key := [2]int{row.Scenario.SimulationID, row.Step.Index}
	if i, ok := c.wideIdx[key]; ok {
		c.wideRows[i].cells[col] = row.Value
		return
	}
	c.wideIdx[key] = len(c.wideRows)
	c.wideRows = append(c.wideRows, wideRow{
		sim:   row.Scenario.SimulationID,
		step:  row.Step.Index,
		start: row.Step.Date.Format("2006-01-02"),
		end:   row.Step.EndDate().Format("2006-01-02"),
		cells: map[string]float64{col: row.Value},
	})
}

// Close flushes any buffered output. For Wide format this is where the
// full table (header known only now) is actually written; a Long writer
// that received no rows writes its header here.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.format == Wide {
		if err := c.flushWide(); err != nil {
			return err
		}
	}
	if c.format == Long && !c.headerSet {
		_ = c.w.Write([]string{"time_start", "time_end", "scenario_index", "metric_set", "name", "value"})
		c.headerSet = true
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) flushWide() error {
	cols := make([]string, len(c.wideHeader))
	for name, i := range c.wideHeader {
		cols[i] = name
	}
	header := append([]string{"scenario_index", "time_start", "time_end"}, cols...)
	if err := c.w.Write(header); err != nil {
		return err
	}

	sort.Slice(c.wideRows, func(i, j int) bool {
		if c.wideRows[i].sim != c.wideRows[j].sim {
			return c.wideRows[i].sim < c.wideRows[j].sim
		}
		return c.wideRows[i].step < c.wideRows[j].step
	})

	for _, r := range c.wideRows {
		rec := make([]string, 0, len(header))
		rec = append(rec, strconv.Itoa(r.sim), r.start, r.end)
		for _, col := range cols {
			v, ok := r.cells[col]
			if !ok {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := c.w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}
