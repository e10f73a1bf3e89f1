// Package schema decodes a model document into the typed objects
// internal/network, internal/param, internal/metric, internal/calendar, and
// internal/scenario need to build and run a simulation. A document is a flat
// JSON tree; nodes, parameters, and metrics use a "type" discriminator field
// to select one of several shapes, decoded via encoding/json.RawMessage and
// a type switch rather than one giant struct with every family's fields
// optional.
package schema

import "encoding/json"

// ModelDoc is the top-level document. Version is not read by Build;
// schema/v1's converter sets it on the documents it produces.
type ModelDoc struct {
	Version    string             `json:"version"`
	Calendar   CalendarDoc        `json:"calendar"`
	Scenarios  []ScenarioGroupDoc `json:"scenarios,omitempty"`
	Nodes      []json.RawMessage  `json:"nodes"`
	Edges      []EdgeDoc          `json:"edges"`
	Parameters []json.RawMessage  `json:"parameters,omitempty"`
	Timeseries []TimeseriesDoc    `json:"timeseries,omitempty"`
	Tables     []TableDoc         `json:"tables,omitempty"`
	MetricSets []MetricSetDoc     `json:"metric_sets,omitempty"`
	Outputs    []OutputDoc        `json:"outputs,omitempty"`
	Solver     string             `json:"solver,omitempty"`
	Threads    int                `json:"threads,omitempty"`
}

// TimeseriesDoc names a per-step data column exposed to Timeseries-class
// parameters at runtime (see internal/param.NewTimeseriesParameter), either
// given inline or sourced from a named TableDoc.
type TimeseriesDoc struct {
	Name   string    `json:"name"`
	Column string    `json:"column,omitempty"` // key the values are looked up by at runtime; defaults to Name
	Values []float64 `json:"values,omitempty"`
	Table  string    `json:"table,omitempty"` // references a TableDoc.Name
}

// TableDoc is a named external data source: a single-column CSV of one
// value per timestep, resolved relative to the CLI's --data-path when URL
// is a relative path.
type TableDoc struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// OutputDoc names a recorder sink bound to one already-declared metric
// set, matching the v2 schema's per-output CSV/HDF5 declarations.
type OutputDoc struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"` // "csv" or "hdf5"
	Filename  string `json:"filename"`
	MetricSet string `json:"metric_set"`
	Format    string `json:"format,omitempty"` // csv only: "long" (default) or "wide"
}

// CalendarDoc describes the model's timestep sequence.
type CalendarDoc struct {
	Start string  `json:"start"` // "2006-01-02"
	End   string  `json:"end"`
	Step  StepDoc `json:"step"`
}

// StepDoc is the calendar cadence: Kind one of "days"/"hours"/"monthly"/
// "annual" ("days" if empty), N the multiplier (1 if zero).
type StepDoc struct {
	Kind string `json:"kind"`
	N    int    `json:"n"`
}

// ScenarioGroupDoc is one axis of the scenario cartesian product.
type ScenarioGroupDoc struct {
	Name   string   `json:"name"`
	Size   int      `json:"size"`
	Labels []string `json:"labels,omitempty"`
	Subset []int    `json:"subset,omitempty"`
}

// EdgeDoc connects two nodes by name; slots are used by RiverSplit outgoing
// edges and compound-node sub-ports.
type EdgeDoc struct {
	From     string `json:"from"`
	To       string `json:"to"`
	FromSlot string `json:"from_slot,omitempty"`
	ToSlot   string `json:"to_slot,omitempty"`
}

// MetricSetDoc is a named group of metrics pulled together every timestep.
type MetricSetDoc struct {
	Name    string            `json:"name"`
	Metrics []json.RawMessage `json:"metrics"`
	Labels  []string          `json:"labels,omitempty"`
}

// ParamRefDoc mirrors network.ParamRef's literal-or-named convention: an
// empty Name means Const is a literal value.
type ParamRefDoc struct {
	Name  string  `json:"name,omitempty"`
	Const float64 `json:"const,omitempty"`
}
