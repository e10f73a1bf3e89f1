// Package param implements the parameter dependency resolver and the
// built-in parameter families. A Parameter is a named, typed function of
// (timestep, scenario, state) producing a scalar or multi-value result; see
// spec §4.2.
package param

import (
	"fmt"

	"github.com/pywr-go/pywr/internal/calendar"
	"github.com/pywr-go/pywr/internal/metric"
	"github.com/pywr-go/pywr/internal/pywrerr"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Class is a parameter's evaluation tier, determined by the resolver from
// the metrics it transitively reads.
type Class int

const (
	Const Class = iota
	Simple
	General
)

func (c Class) String() string {
	switch c {
	case Const:
		return "Const"
	case Simple:
		return "Simple"
	case General:
		return "General"
	default:
		return "Unknown"
	}
}

// Phase selects whether a General parameter is evaluated before the LP
// solve (to set coefficients) or after it (recorders, next-step coupling).
type Phase int

const (
	Before Phase = iota
	After
)

// Parameter is the vtable-style interface every built-in and external
// parameter family implements. Parameter objects are stateless and shared
// read-only across scenarios; mutable per-scenario carry lives in the
// opaque Internal value threaded by the caller (internal/simulate), never
// inside the Parameter itself.
type Parameter interface {
	// Name is the parameter's unique identifier.
	Name() string
	// Deps lists the metrics this parameter reads, used both for dependency
	// ordering and for class inference.
	Deps() []metric.Metric
	// Baseline is the class this parameter would have if none of its Deps
	// forced a higher tier — Const for pure literals/arithmetic, Simple for
	// anything inherently calendar-driven (profiles, time series readers).
	Baseline() Class
	// EvalPhase matters only for General parameters: Before the solve (to
	// set LP coefficients) or After it (recorders, next-step coupling).
	EvalPhase() Phase
	// NewInternal returns the zero-value private carry for a fresh scenario.
	NewInternal() any
	// Compute evaluates the parameter for one timestep/scenario.
	Compute(ts calendar.Timestep, sr metric.StateReader, internal any) (value float64, multi map[string]float64, next any, err error)
	// After runs once per timestep, after the LP solve, and may use
	// resolved flows to update internal. Parameters with no after-phase
	// work just return internal unchanged.
	After(ts calendar.Timestep, sr metric.StateReader, internal any) (next any, err error)
}

// Order holds the three totally-ordered evaluation lists and the resolved
// class of every parameter, indexed by declaration position in the slice
// passed to Build.
type Order struct {
	ConstOrder   []int
	SimpleOrder  []int
	GeneralOrder []int
	Classes      []Class
}

// metricClass classifies a single metric dependency, recursing into
// AggregatedMetric and resolving ParameterValue against already-computed
// parameter classes (classes[i] must already be final for any i reachable
// via ParameterValue — guaranteed by evaluating in topological order).
func metricClass(m metric.Metric, classes []Class) Class {
	switch v := m.(type) {
	case metric.Constant:
		return Const
	case metric.NodeInflow, metric.NodeOutflow, metric.NodeVolume, metric.NodeLoss, metric.EdgeFlow:
		return General
	case metric.Timeseries:
		return Simple
	case metric.ParameterValue:
		if v.ParamIdx >= 0 && v.ParamIdx < len(classes) {
			return classes[v.ParamIdx]
		}
		return General // unresolved index, fail safe to the most conservative tier
	case metric.AggregatedMetric:
		best := Const
		for _, sub := range v.Metrics {
			if c := metricClass(sub, classes); c > best {
				best = c
			}
		}
		return best
	default:
		// Unknown/external metric kinds: assume the worst so we never
		// evaluate something before its true dependency is ready.
		return General
	}
}

// paramDepIndices returns the indices of other parameters referenced via a
// ParameterValue metric, directly or nested inside an AggregatedMetric.
func paramDepIndices(m metric.Metric, out map[int]bool) {
	switch v := m.(type) {
	case metric.ParameterValue:
		if v.ParamIdx >= 0 {
			out[v.ParamIdx] = true
		}
	case metric.AggregatedMetric:
		for _, sub := range v.Metrics {
			paramDepIndices(sub, out)
		}
	}
}

// Build constructs the parameter dependency DAG, detects cycles, computes
// each parameter's class, and produces the three totally-ordered evaluation
// lists required by spec §4.2. Ties within a class are broken by
// declaration order (the index of the parameter in params).
func Build(params []Parameter) (*Order, error) {
	n := len(params)
	nameIdx := make(map[string]int, n)
	for i, p := range params {
		if _, exists := nameIdx[p.Name()]; exists {
			return nil, fmt.Errorf("param: duplicate parameter name %q", p.Name())
		}
		nameIdx[p.Name()] = i
	}

	// Collect each parameter's direct dependencies from the ParamIdx of its
	// ParameterValue metrics; a negative (unset) index is skipped, not
	// resolved by name.
	adj := make([][]int, n) // adj[i] = parameters i directly depends on
	for i, p := range params {
		deps := make(map[int]bool)
		for _, m := range p.Deps() {
			paramDepIndices(m, deps)
		}
		for j := range deps {
			if j < 0 || j >= n {
				return nil, fmt.Errorf("param: %q depends on out-of-range parameter index %d", p.Name(), j)
			}
			adj[i] = append(adj[i], j)
		}
	}

	order, err := topoOrder(n, adj)
	if err != nil {
		chain := make([]string, len(err.cycle))
		for i, idx := range err.cycle {
			chain[i] = params[idx].Name()
		}
		return nil, &pywrerr.CircularDependencyError{Chain: chain}
	}

	classes := make([]Class, n)
	for _, i := range order {
		cls := params[i].Baseline()
		for _, m := range params[i].Deps() {
			if c := metricClass(m, classes); c > cls {
				cls = c
			}
		}
		classes[i] = cls
	}

	o := &Order{Classes: classes}
	// Within each class, evaluation order must still respect the
	// dependency DAG (a Simple param may depend on another Simple param),
	// so we filter the topological order rather than re-sort by class.
	for _, i := range order {
		switch classes[i] {
		case Const:
			o.ConstOrder = append(o.ConstOrder, i)
		case Simple:
			o.SimpleOrder = append(o.SimpleOrder, i)
		case General:
			o.GeneralOrder = append(o.GeneralOrder, i)
		}
	}
	return o, nil
}

type cycleError struct{ cycle []int }

// topoOrder builds the dependency graph with gonum/graph/simple and orders
// it with gonum/graph/topo.SortStabilized (adj[i] lists the nodes i depends
// on, i.e. edges point from a dependent to its dependency). With a nil order
// function SortStabilized takes nodes in ascending ID wherever the edges
// leave the order open, which coincides with declaration order since
// parameter i is graph node i.
func topoOrder(n int, adj [][]int) ([]int, *cycleError) {
	g := simple.NewDirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for i, deps := range adj {
		for _, j := range deps {
			// Edge i->j: i must be evaluated after j, so topo.Sort (which
			// yields sources before sinks) needs the edge pointing the
			// other way for "dependency before dependent" ordering.
			g.SetEdge(simple.Edge{F: simple.Node(j), T: simple.Node(i)})
		}
	}

	sorted, err := topo.SortStabilized(g, nil)
	if err != nil {
		unorderable, ok := err.(topo.Unorderable)
		if !ok || len(unorderable) == 0 {
			return nil, &cycleError{cycle: []int{0}}
		}
		cyc := make([]int, len(unorderable[0]))
		for i, node := range unorderable[0] {
			cyc[i] = int(node.ID())
		}
		return nil, &cycleError{cycle: cyc}
	}

	order := make([]int, len(sorted))
	for i, node := range sorted {
		order[i] = int(node.ID())
	}
	return order, nil
}
