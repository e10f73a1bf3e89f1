// Package recorder turns a simulation run's per-timestep metric pushes into
// durable output: CSV tables, a plain-text dataset dump, and
// calendar-bucketed scalar summaries.
// Grounded on the teacher's sim/trace package, which records pure-data
// decision records and aggregates them with a running Summarize pass; here
// the records are typed metric values instead of admission/routing
// decisions. AggregatedScalar keeps every pushed value per bucket and
// computes its statistics when Summarize is called.
package recorder

import (
	"strconv"

	"github.com/pywr-go/pywr/internal/calendar"
	"github.com/pywr-go/pywr/internal/scenario"
)

// Row is one flattened metric push: a single named value for one label
// within one metric set, at one scenario/timestep.
type Row struct {
	Scenario scenario.Index
	Step     calendar.Timestep
	Set      string
	Label    string
	Value    float64
}

// expand splits a Sink.Push call's parallel labels/values slices into
// individual Rows. A metric set with no Labels gets a single unlabeled row
// per value (labeled with its positional index as a string), matching
// internal/metric.Set's documented "Labels optional, parallel to Metrics"
// contract.
func expand(idx scenario.Index, ts calendar.Timestep, setName string, labels []string, values []float64) []Row {
	rows := make([]Row, len(values))
	for i, v := range values {
		label := strconv.Itoa(i)
		if i < len(labels) {
			label = labels[i]
		}
		rows[i] = Row{Scenario: idx, Step: ts, Set: setName, Label: label, Value: v}
	}
	return rows
}
