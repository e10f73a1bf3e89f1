package schema

import (
	"fmt"
	"time"

	"github.com/pywr-go/pywr/internal/calendar"
	"github.com/pywr-go/pywr/internal/metric"
	"github.com/pywr-go/pywr/internal/network"
	"github.com/pywr-go/pywr/internal/param"
	"github.com/pywr-go/pywr/internal/pywrerr"
	"github.com/pywr-go/pywr/internal/scenario"
)

func schemaErr(entity string, reason string, err error) error {
	return &pywrerr.SchemaError{
		Ctx:     pywrerr.Context{Component: "schema", Entity: entity, Scenario: -1, Timestep: -1},
		Reason:  reason,
		Wrapped: err,
	}
}

func buildErr(entity string, reason string) error {
	return &pywrerr.BuildError{
		Ctx:    pywrerr.Context{Component: "schema", Entity: entity, Scenario: -1, Timestep: -1},
		Reason: reason,
	}
}

// Built collects everything a ModelDoc resolves to: the network ready for
// internal/lp, the parameter evaluation order, the calendar, and the
// scenario grid. internal/simulate.Config is assembled from these fields.
type Built struct {
	Net     *network.Network
	Params  []param.Parameter
	Order   *param.Order
	Steps   *calendar.Timestepper
	Grid    *scenario.Grid
	Solver  string
	Threads int

	// Tables and Timeseries are carried unresolved: resolving a table's URL
	// into values requires a --data-path the schema package doesn't know
	// about. Call ResolveTimeseries once a data path is known.
	Tables     map[string]TableDoc
	Timeseries []TimeseriesDoc
	Outputs    []OutputDoc
}

// Build turns a decoded ModelDoc into a Built model. Sections are resolved
// in dependency order: nodes before edges (edges reference node names),
// nodes+edges before metrics (metrics reference node/edge identity),
// parameter names before parameter bodies (parameter_value metrics may
// reference a parameter declared later in the document).
func Build(doc *ModelDoc) (*Built, error) {
	steps, err := buildCalendar(doc.Calendar)
	if err != nil {
		return nil, schemaErr("calendar", "invalid calendar", err)
	}

	groups := make([]scenario.Group, len(doc.Scenarios))
	for i, g := range doc.Scenarios {
		groups[i] = scenario.Group{Name: g.Name, Size: g.Size, Labels: g.Labels, Subset: g.Subset}
	}
	grid, err := scenario.Build(groups, nil)
	if err != nil {
		return nil, schemaErr("scenarios", "invalid scenario groups", err)
	}

	net := network.New()
	for i, raw := range doc.Nodes {
		entity := fmt.Sprintf("node[%d]", i)
		node, err := decodeNode(raw)
		if err != nil {
			return nil, schemaErr(entity, "invalid node document", err)
		}
		entity = fmt.Sprintf("node[%d] %q", i, node.Name)
		if _, err := net.AddNode(node); err != nil {
			return nil, buildErr(entity, err.Error())
		}
	}
	for i, e := range doc.Edges {
		entity := fmt.Sprintf("edge[%d] %s->%s", i, e.From, e.To)
		from, err := net.MustNodeByName(e.From)
		if err != nil {
			return nil, buildErr(entity, err.Error())
		}
		to, err := net.MustNodeByName(e.To)
		if err != nil {
			return nil, buildErr(entity, err.Error())
		}
		if _, err := net.AddEdge(from, to, e.FromSlot, e.ToSlot); err != nil {
			return nil, buildErr(entity, err.Error())
		}
	}

	paramIdx := make(map[string]int, len(doc.Parameters))
	for i, raw := range doc.Parameters {
		entity := fmt.Sprintf("parameter[%d]", i)
		name, _, err := paramNameAndType(raw)
		if err != nil {
			return nil, schemaErr(entity, "invalid parameter document", err)
		}
		entity = fmt.Sprintf("parameter[%d] %q", i, name)
		if _, exists := paramIdx[name]; exists {
			return nil, schemaErr(entity, "duplicate parameter name", nil)
		}
		paramIdx[name] = i
	}

	params := make([]param.Parameter, len(doc.Parameters))
	for i, raw := range doc.Parameters {
		p, err := decodeParameter(raw, net, paramIdx)
		if err != nil {
			entity := fmt.Sprintf("parameter[%d]", i)
			return nil, schemaErr(entity, "invalid parameter document", err)
		}
		params[i] = p
	}
	order, err := param.Build(params)
	if err != nil {
		return nil, fmt.Errorf("schema: parameter ordering: %w", err)
	}

	for i, ms := range doc.MetricSets {
		entity := fmt.Sprintf("metric_set[%d] %q", i, ms.Name)
		metrics, err := decodeMetrics(ms.Metrics, net, paramIdx)
		if err != nil {
			return nil, schemaErr(entity, "invalid metric set document", err)
		}
		net.MetricSets = append(net.MetricSets, metric.Set{Name: ms.Name, Metrics: metrics, Labels: ms.Labels})
	}

	if err := net.Validate(); err != nil {
		return nil, buildErr("network", err.Error())
	}

	tables := make(map[string]TableDoc, len(doc.Tables))
	for i, tbl := range doc.Tables {
		entity := fmt.Sprintf("table[%d]", i)
		if tbl.Name == "" {
			return nil, schemaErr(entity, "table missing name", nil)
		}
		entity = fmt.Sprintf("table[%d] %q", i, tbl.Name)
		if tbl.URL == "" {
			return nil, schemaErr(entity, "table missing url", nil)
		}
		if _, exists := tables[tbl.Name]; exists {
			return nil, schemaErr(entity, "duplicate table name", nil)
		}
		tables[tbl.Name] = tbl
	}

	seenTS := make(map[string]bool, len(doc.Timeseries))
	for i, ts := range doc.Timeseries {
		entity := fmt.Sprintf("timeseries[%d]", i)
		if ts.Name == "" {
			return nil, schemaErr(entity, "timeseries missing name", nil)
		}
		entity = fmt.Sprintf("timeseries[%d] %q", i, ts.Name)
		if seenTS[ts.Name] {
			return nil, schemaErr(entity, "duplicate timeseries name", nil)
		}
		seenTS[ts.Name] = true
		hasValues := len(ts.Values) > 0
		hasTable := ts.Table != ""
		if hasValues == hasTable {
			return nil, schemaErr(entity, "timeseries must set exactly one of values or table", nil)
		}
		if hasTable {
			if _, ok := tables[ts.Table]; !ok {
				return nil, schemaErr(entity, fmt.Sprintf("references unknown table %q", ts.Table), nil)
			}
		}
	}

	for i, out := range doc.Outputs {
		entity := fmt.Sprintf("output[%d]", i)
		if out.Name == "" {
			return nil, schemaErr(entity, "output missing name", nil)
		}
		entity = fmt.Sprintf("output[%d] %q", i, out.Name)
		if out.Filename == "" {
			return nil, schemaErr(entity, "output missing filename", nil)
		}
		switch out.Kind {
		case "csv", "hdf5":
		default:
			return nil, schemaErr(entity, fmt.Sprintf("unknown output kind %q, want csv or hdf5", out.Kind), nil)
		}
		found := false
		for _, ms := range net.MetricSets {
			if ms.Name == out.MetricSet {
				found = true
				break
			}
		}
		if !found {
			return nil, schemaErr(entity, fmt.Sprintf("references unknown metric_set %q", out.MetricSet), nil)
		}
	}

	solverName := doc.Solver
	if solverName == "" {
		solverName = "simplex"
	}

	return &Built{
		Net: net, Params: params, Order: order,
		Steps: steps, Grid: grid,
		Solver: solverName, Threads: doc.Threads,
		Tables: tables, Timeseries: doc.Timeseries, Outputs: doc.Outputs,
	}, nil
}

func buildCalendar(c CalendarDoc) (*calendar.Timestepper, error) {
	start, err := time.Parse("2006-01-02", c.Start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := time.Parse("2006-01-02", c.End)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	kind, err := parseStepKind(c.Step.Kind)
	if err != nil {
		return nil, err
	}
	n := c.Step.N
	if n == 0 {
		n = 1
	}
	return calendar.New(start, end, calendar.StepSpec{Kind: kind, N: n})
}

func parseStepKind(s string) (calendar.StepKind, error) {
	switch s {
	case "days", "":
		return calendar.StepDays, nil
	case "hours":
		return calendar.StepHours, nil
	case "monthly":
		return calendar.StepMonthly, nil
	case "annual":
		return calendar.StepAnnual, nil
	default:
		return 0, fmt.Errorf("unknown calendar step kind %q", s)
	}
}
