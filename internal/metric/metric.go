// Package metric defines the read-only scalar accessors used to compose
// parameters, recorders, and LP coefficients. A Metric never mutates state;
// it is evaluated against a StateReader snapshot of the current timestep.
package metric

import (
	"fmt"
	"math"
)

// StateReader is the read-only view of simulator state that a Metric
// evaluates against. The simulate package's per-scenario state implements
// this interface; metric itself never depends on network/simulate types.
type StateReader interface {
	NodeInflow(nodeIdx int) (float64, error)
	NodeOutflow(nodeIdx int) (float64, error)
	NodeVolume(nodeIdx int) (float64, error)
	NodeLoss(nodeIdx int) (float64, error)
	EdgeFlow(edgeIdx int) (float64, error)
	ParameterValue(paramIdx int) (float64, error)
	TimeseriesValue(column string, rowSelector RowSelector) (float64, error)
}

// RowSelector picks a row out of a time-series table: either the current
// timestep (CurrentStep) or a number of steps back from it (Offset).
type RowSelector struct {
	CurrentStep bool
	Offset      int // steps back from current; used when CurrentStep is false
}

// Metric is a read-only scalar accessor.
type Metric interface {
	// Eval computes the metric's current value.
	Eval(sr StateReader) (float64, error)
	// Kind identifies the metric variant, for diagnostics.
	Kind() string
}

// Constant always returns the same value.
type Constant struct{ V float64 }

func (c Constant) Eval(StateReader) (float64, error) { return c.V, nil }
func (c Constant) Kind() string                      { return "Constant" }

// NodeInflow reads a node's total inflow for the current timestep.
type NodeInflow struct {
	NodeIdx  int
	NodeName string
}

func (m NodeInflow) Eval(sr StateReader) (float64, error) {
	v, err := sr.NodeInflow(m.NodeIdx)
	if err != nil {
		return 0, fmt.Errorf("metric NodeInflow(%s): %w", m.NodeName, err)
	}
	return v, nil
}
func (m NodeInflow) Kind() string { return "NodeInflow" }

// NodeOutflow reads a node's total outflow for the current timestep.
type NodeOutflow struct {
	NodeIdx  int
	NodeName string
}

func (m NodeOutflow) Eval(sr StateReader) (float64, error) {
	v, err := sr.NodeOutflow(m.NodeIdx)
	if err != nil {
		return 0, fmt.Errorf("metric NodeOutflow(%s): %w", m.NodeName, err)
	}
	return v, nil
}
func (m NodeOutflow) Kind() string { return "NodeOutflow" }

// NodeVolume reads a storage-like node's current volume.
type NodeVolume struct {
	NodeIdx  int
	NodeName string
}

func (m NodeVolume) Eval(sr StateReader) (float64, error) {
	v, err := sr.NodeVolume(m.NodeIdx)
	if err != nil {
		return 0, fmt.Errorf("metric NodeVolume(%s): %w", m.NodeName, err)
	}
	return v, nil
}
func (m NodeVolume) Kind() string { return "NodeVolume" }

// NodeLoss reads a LossLink-like node's loss column value.
type NodeLoss struct {
	NodeIdx  int
	NodeName string
}

func (m NodeLoss) Eval(sr StateReader) (float64, error) {
	v, err := sr.NodeLoss(m.NodeIdx)
	if err != nil {
		return 0, fmt.Errorf("metric NodeLoss(%s): %w", m.NodeName, err)
	}
	return v, nil
}
func (m NodeLoss) Kind() string { return "NodeLoss" }

// EdgeFlow reads a single LP column's resolved flow.
type EdgeFlow struct {
	EdgeIdx int
}

func (m EdgeFlow) Eval(sr StateReader) (float64, error) {
	v, err := sr.EdgeFlow(m.EdgeIdx)
	if err != nil {
		return 0, fmt.Errorf("metric EdgeFlow(%d): %w", m.EdgeIdx, err)
	}
	return v, nil
}
func (m EdgeFlow) Kind() string { return "EdgeFlow" }

// ParameterValue reads another parameter's already-evaluated value for the
// current timestep. ParamIdx must refer to a parameter ordered before this
// metric's owner in the resolver's evaluation order.
type ParameterValue struct {
	ParamIdx  int
	ParamName string
}

func (m ParameterValue) Eval(sr StateReader) (float64, error) {
	v, err := sr.ParameterValue(m.ParamIdx)
	if err != nil {
		return 0, fmt.Errorf("metric ParameterValue(%s): %w", m.ParamName, err)
	}
	return v, nil
}
func (m ParameterValue) Kind() string { return "ParameterValue" }

// Timeseries reads one column of an external time-series table at the
// current (or offset) row.
type Timeseries struct {
	Column   string
	Selector RowSelector
}

func (m Timeseries) Eval(sr StateReader) (float64, error) {
	v, err := sr.TimeseriesValue(m.Column, m.Selector)
	if err != nil {
		return 0, fmt.Errorf("metric Timeseries(%s): %w", m.Column, err)
	}
	return v, nil
}
func (m Timeseries) Kind() string { return "Timeseries" }

// AggOp enumerates the reduction applied by an AggregatedMetric.
type AggOp int

const (
	AggSum AggOp = iota
	AggProduct
	AggMin
	AggMax
	AggMean
)

// AggregatedMetric reduces several metrics with a single operator.
type AggregatedMetric struct {
	Op      AggOp
	Metrics []Metric
}

func (m AggregatedMetric) Eval(sr StateReader) (float64, error) {
	if len(m.Metrics) == 0 {
		return 0, fmt.Errorf("metric AggregatedMetric: no metrics to aggregate")
	}
	vals := make([]float64, len(m.Metrics))
	for i, sub := range m.Metrics {
		v, err := sub.Eval(sr)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}
	switch m.Op {
	case AggSum:
		s := 0.0
		for _, v := range vals {
			s += v
		}
		return s, nil
	case AggProduct:
		p := 1.0
		for _, v := range vals {
			p *= v
		}
		return p, nil
	case AggMin:
		mn := vals[0]
		for _, v := range vals[1:] {
			mn = math.Min(mn, v)
		}
		return mn, nil
	case AggMax:
		mx := vals[0]
		for _, v := range vals[1:] {
			mx = math.Max(mx, v)
		}
		return mx, nil
	case AggMean:
		s := 0.0
		for _, v := range vals {
			s += v
		}
		return s / float64(len(vals)), nil
	default:
		return 0, fmt.Errorf("metric AggregatedMetric: unknown op %d", m.Op)
	}
}
func (m AggregatedMetric) Kind() string { return "AggregatedMetric" }

// Set is a named list of metrics with an optional aggregator, matching
// spec's MetricSet entity. Aggregation across time (monthly mean, annual
// sum, ...) is handled by the recorder package; Set itself just groups the
// per-step values pulled for a single push.
type Set struct {
	Name    string
	Metrics []Metric
	Labels  []string // optional, parallel to Metrics, for recorder output
}

// PullAll evaluates every metric in the set for the current timestep.
func (s Set) PullAll(sr StateReader) ([]float64, error) {
	out := make([]float64, len(s.Metrics))
	for i, m := range s.Metrics {
		v, err := m.Eval(sr)
		if err != nil {
			return nil, fmt.Errorf("metric set %q: %w", s.Name, err)
		}
		out[i] = v
	}
	return out, nil
}
