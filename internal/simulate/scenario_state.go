package simulate

import (
	"fmt"
	"math"

	"github.com/pywr-go/pywr/internal/calendar"
	"github.com/pywr-go/pywr/internal/lp"
	"github.com/pywr-go/pywr/internal/metric"
	"github.com/pywr-go/pywr/internal/network"
	"github.com/pywr-go/pywr/internal/param"
	"github.com/pywr-go/pywr/internal/simulate/state"
	"github.com/pywr-go/pywr/internal/solver"
)

// scenarioState is the mutable, worker-owned state for exactly one
// simulation: its own LP instance and solver handle, its own parameter
// carry, and its own per-node state machines. Nothing here is shared with
// any other scenario, so a worker goroutine can own one scenarioState
// exclusively for the run's whole duration without synchronisation.
type scenarioState struct {
	net  *network.Network
	tmpl *lp.Template
	topo *lp.Topology
	inst *lp.Instance

	backend solver.Solver
	handle  solver.Handle

	params        []param.Parameter
	order         *param.Order
	paramIdx      map[string]int
	paramValues   []float64
	paramInternal []any

	storage map[int]*state.StorageState
	rolling map[int]*state.RollingVirtualStorageState
	delay   map[int]*state.DelayState
	routed  map[int]float64

	x  []float64
	ts calendar.Timestep
	dt float64

	timeseries map[string][]float64

	// scenarioID identifies this scenario in pywrerr.Context for any error
	// raised while stepping it (spec §7). Set once at construction from the
	// scenario.Index the engine dispatched to this worker.
	scenarioID int
}

func newScenarioState(net *network.Network, tmpl *lp.Template, topo *lp.Topology, params []param.Parameter, order *param.Order, timeseries map[string][]float64, scenarioID int) *scenarioState {
	paramIdx := make(map[string]int, len(params))
	for i, p := range params {
		paramIdx[p.Name()] = i
	}
	internal := make([]any, len(params))
	for i, p := range params {
		internal[i] = p.NewInternal()
	}

	s := &scenarioState{
		net:           net,
		tmpl:          tmpl,
		topo:          topo,
		inst:          tmpl.NewInstance(),
		params:        params,
		order:         order,
		paramIdx:      paramIdx,
		paramValues:   make([]float64, len(params)),
		paramInternal: internal,
		storage:       make(map[int]*state.StorageState),
		rolling:       make(map[int]*state.RollingVirtualStorageState),
		delay:         make(map[int]*state.DelayState),
		routed:        make(map[int]float64),
		x:             make([]float64, tmpl.NCols),
		timeseries:    timeseries,
		scenarioID:    scenarioID,
	}

	horizonWindow := 1 << 30 // effectively infinite: a plain VirtualStorage never evicts
	for _, node := range net.Nodes {
		acc := topo.Accessors[node.Index]
		switch {
		case acc.IsVirtualStorage && node.Kind == network.RollingVirtualStorage:
			s.rolling[node.Index] = state.NewRollingVirtualStorageState(acc.VSWindow)
		case acc.IsVirtualStorage:
			s.rolling[node.Index] = state.NewRollingVirtualStorageState(horizonWindow)
		}
		if acc.DelayOutflowCol >= 0 && acc.DelaySteps > 0 {
			s.delay[node.Index] = state.NewDelayState(acc.DelaySteps, acc.DelayInitial)
		}
	}
	// Storage.Seed reads MaxVolumeRef through resolve, which for a
	// named/non-literal max_volume is only meaningful once the Const-tier
	// parameters have been evaluated -- paramValues is still a freshly
	// zero-allocated slice here. seedStorage is deferred to the first
	// step(), after that eval runs (see its ts.IsFirst branch).
	return s
}

// seedStorage constructs every Storage/PiecewiseStorage/VirtualStorage
// node's StorageState, resolving each one's MaxVolumeRef through the
// scenario's own resolve. Must run after the Const-tier parameter eval so a
// named max_volume parameter is seeded from its real value rather than 0.
func (s *scenarioState) seedStorage() {
	for _, node := range s.net.Nodes {
		acc := s.topo.Accessors[node.Index]
		if !acc.IsStorage {
			continue
		}
		st := &state.StorageState{}
		maxVol := s.resolve(acc.MaxVolumeRef)
		st.Seed(acc.InitialVolume.Kind == network.Proportional, acc.InitialVolume.Value, maxVol)
		s.storage[node.Index] = st
	}
}

// --- metric.StateReader ---

var _ metric.StateReader = (*scenarioState)(nil)

func (s *scenarioState) NodeInflow(nodeIdx int) (float64, error) {
	if nodeIdx < 0 || nodeIdx >= len(s.topo.Accessors) {
		return 0, fmt.Errorf("simulate: node index %d out of range", nodeIdx)
	}
	return s.sumCols(s.topo.Accessors[nodeIdx].InflowCols), nil
}

func (s *scenarioState) NodeOutflow(nodeIdx int) (float64, error) {
	if nodeIdx < 0 || nodeIdx >= len(s.topo.Accessors) {
		return 0, fmt.Errorf("simulate: node index %d out of range", nodeIdx)
	}
	return s.sumCols(s.topo.Accessors[nodeIdx].OutflowCols), nil
}

func (s *scenarioState) NodeVolume(nodeIdx int) (float64, error) {
	st, ok := s.storage[nodeIdx]
	if !ok {
		return 0, fmt.Errorf("simulate: node %d has no volume state", nodeIdx)
	}
	return st.Volume, nil
}

func (s *scenarioState) NodeLoss(nodeIdx int) (float64, error) {
	if nodeIdx < 0 || nodeIdx >= len(s.topo.Accessors) {
		return 0, fmt.Errorf("simulate: node index %d out of range", nodeIdx)
	}
	acc := s.topo.Accessors[nodeIdx]
	if acc.LossCol < 0 {
		return 0, nil
	}
	return s.colVal(acc.LossCol), nil
}

func (s *scenarioState) EdgeFlow(edgeIdx int) (float64, error) {
	if edgeIdx < 0 || edgeIdx >= len(s.topo.EdgeCol) {
		return 0, fmt.Errorf("simulate: edge index %d out of range", edgeIdx)
	}
	return s.colVal(s.topo.EdgeCol[edgeIdx]), nil
}

func (s *scenarioState) ParameterValue(paramIdx int) (float64, error) {
	if paramIdx < 0 || paramIdx >= len(s.paramValues) {
		return 0, fmt.Errorf("simulate: parameter index %d out of range", paramIdx)
	}
	return s.paramValues[paramIdx], nil
}

func (s *scenarioState) TimeseriesValue(column string, sel metric.RowSelector) (float64, error) {
	col, ok := s.timeseries[column]
	if !ok {
		return 0, fmt.Errorf("simulate: unknown timeseries column %q", column)
	}
	row := s.ts.Index
	if !sel.CurrentStep {
		row -= sel.Offset
	}
	if row < 0 || row >= len(col) {
		return 0, fmt.Errorf("simulate: timeseries column %q has no row %d", column, row)
	}
	return col[row], nil
}

func (s *scenarioState) sumCols(cols []int) float64 {
	sum := 0.0
	for _, c := range cols {
		sum += s.colVal(c)
	}
	return sum
}

func (s *scenarioState) colVal(c int) float64 {
	if c < 0 || c >= len(s.x) {
		return 0
	}
	return s.x[c]
}

// resolve returns a ParamRef's current value: the literal constant, or the
// named parameter's last-evaluated value.
func (s *scenarioState) resolve(ref network.ParamRef) float64 {
	if ref.IsLiteral() {
		return ref.Const
	}
	idx, ok := s.paramIdx[ref.Name]
	if !ok {
		return 0
	}
	return s.paramValues[idx]
}

// resolveMax mirrors internal/lp's maxOr build-time convention at runtime: a
// literal zero (the ParamRef zero value) reads as "unset", not "closed".
func (s *scenarioState) resolveMax(ref network.ParamRef) float64 {
	if ref.IsLiteral() {
		if ref.Const == 0 {
			return math.Inf(1)
		}
		return ref.Const
	}
	idx, ok := s.paramIdx[ref.Name]
	if !ok {
		return math.Inf(1)
	}
	return s.paramValues[idx]
}
