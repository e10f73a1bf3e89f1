package lp

import (
	"fmt"
	"math"

	"github.com/pywr-go/pywr/internal/network"
)

// Tranche is one PiecewiseLink/PiecewiseStorage internal column, with the
// ParamRef driving its per-step cost/capacity.
type Tranche struct {
	Col        int
	CostRef    network.ParamRef
	MaxFlowRef network.ParamRef
}

// NodeAccessors is the wiring table the LP builder hands back to
// internal/simulate: for every node, which LP columns carry its
// inflow/outflow/loss, and which rows/columns/coefficients the per-step
// protocol must refresh from resolved parameter values and state.
type NodeAccessors struct {
	Kind network.Kind

	InflowCols  []int
	OutflowCols []int
	LossCol     int // -1 if this kind has no loss

	// FlowRow is the node's primary flow-limiting row. For Input/Output/
	// Link/Catchment it bounds Σflow to [MinFlowRef,MaxFlowRef]. For
	// Storage it bounds the net inflow rate Σin-Σout to the draw/fill
	// envelope implied by remaining volume (see spec §4.5); in that case
	// IsStorage is true and MinFlowRef/MaxFlowRef are unused.
	FlowRow     int // -1 if none
	MinFlowRef  network.ParamRef
	MaxFlowRef  network.ParamRef
	IsStorage   bool
	MaxVolumeRef network.ParamRef
	InitialVolume network.InitialVolume

	CostCols []int
	CostRef  network.ParamRef

	Tranches []Tranche // PiecewiseLink

	Slices []PiecewiseStorageSliceAccessor // PiecewiseStorage

	LossFactorRef network.ParamRef
	LossKind      network.LossKind
	LossRow       int   // -1 if none
	LossBaseCols  []int // columns whose coefficient on LossRow encodes -factor; refresh via Template.EntryIndex(LossRow, col)

	DelaySteps      int
	DelayInitial    float64
	DelayOutflowCol int // -1 if this is not a Delay node

	IsVirtualStorage bool
	VSRow            int
	VSWindow         int
	VSFactorRefs     []network.ParamRef

	ExclusiveRow   int
	BigMRow        int   // -1 if none; first of the per-indicator rows x_i - M*y_i <= 0
	IndicatorCols  []int
	IndicatorNodes []int
	ExclusiveXCols []int // parallel to IndicatorCols: the flow column each big-M term bounds

	SplitCols       []int
	SplitFactorRefs []network.ParamRef
	SplitEntries    []int // row indices of the ratio-tie rows, one per extra slot; refresh via Template.EntryIndex(row, col)

	RoutingRef network.ParamRef
	RoutedCol  int // -1 unless River/Reservoir has a RoutingParam set
}

// Topology is the full per-node wiring table plus the edge->column map,
// returned alongside the compiled Template.
type Topology struct {
	EdgeCol   []int // edge index -> LP column index
	Accessors []NodeAccessors
}

func litOr(ref network.ParamRef, fallback float64) float64 {
	if ref.IsLiteral() {
		return ref.Const
	}
	return fallback
}

// maxOr resolves a MaxFlow/MaxVolume-style ParamRef to its build-time base
// value. A literal zero is indistinguishable from an unset field (both are
// ParamRef's zero value), so it is treated as "no limit" rather than "closed";
// a deliberate zero upper bound must be expressed through a named parameter
// instead of a bare literal.
func maxOr(ref network.ParamRef) float64 {
	if ref.IsLiteral() && ref.Const != 0 {
		return ref.Const
	}
	return math.Inf(1)
}

// Build walks net in declaration order, emitting one LP column per edge
// plus whatever additional internal columns/rows a node's Kind requires,
// and returns the compiled Template plus the Topology simulate needs to
// drive per-step updates.
func Build(net *network.Network) (*Template, *Topology, error) {
	b := NewBuilder()

	edgeCol := make([]int, len(net.Edges))
	for _, e := range net.Edges {
		edgeCol[e.Index] = b.AddColumn(fmt.Sprintf("edge[%d]", e.Index), 0, math.Inf(1), 0)
	}

	acc := make([]NodeAccessors, len(net.Nodes))
	for _, node := range net.Nodes {
		acc[node.Index] = NodeAccessors{Kind: node.Kind, LossCol: -1, FlowRow: -1, LossRow: -1, DelayOutflowCol: -1, VSRow: -1, ExclusiveRow: -1, BigMRow: -1, RoutedCol: -1}
	}

	// Pass 1: every kind except VirtualStorage/RollingVirtualStorage and
	// Aggregated, which reference other nodes' accessors by name.
	for _, node := range net.Nodes {
		inCols := colsOf(net.InEdges(node.Index), edgeCol)
		outCols := colsOf(net.OutEdges(node.Index), edgeCol)

		switch node.Kind {
		case network.Input, network.Catchment:
			expandSource(b, &acc[node.Index], node, outCols)
		case network.Output:
			expandSink(b, &acc[node.Index], node, inCols)
		case network.Link:
			expandLink(b, &acc[node.Index], node, inCols, outCols)
		case network.Storage:
			expandStorage(b, &acc[node.Index], node, inCols, outCols)
		case network.PiecewiseLink:
			expandPiecewiseLink(b, &acc[node.Index], node, inCols, outCols)
		case network.PiecewiseStorage:
			expandPiecewiseStorage(b, &acc[node.Index], node, inCols, outCols)
		case network.LossLink, network.WaterTreatmentWorks:
			expandLossLink(b, &acc[node.Index], node, inCols, outCols)
		case network.Delay:
			expandDelay(b, &acc[node.Index], node, inCols, outCols)
		case network.RiverSplit:
			if err := expandRiverSplit(b, &acc[node.Index], net, node, inCols, edgeCol); err != nil {
				return nil, nil, err
			}
		case network.River:
			expandRiver(b, &acc[node.Index], node, inCols, outCols)
		case network.Reservoir:
			expandReservoir(b, &acc[node.Index], node, inCols, outCols)
		}
	}

	// Pass 2: cross-node references.
	for _, node := range net.Nodes {
		switch node.Kind {
		case network.VirtualStorage, network.RollingVirtualStorage:
			if err := expandVirtualStorage(b, &acc[node.Index], net, acc, node); err != nil {
				return nil, nil, err
			}
		case network.Aggregated:
			if err := expandAggregated(b, &acc[node.Index], net, acc, node); err != nil {
				return nil, nil, err
			}
		}
	}

	tmpl, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	return tmpl, &Topology{EdgeCol: edgeCol, Accessors: acc}, nil
}

func colsOf(edgeIdx []int, edgeCol []int) []int {
	out := make([]int, len(edgeIdx))
	for i, e := range edgeIdx {
		out[i] = edgeCol[e]
	}
	return out
}

// applyCost picks the side ("through-flow") a node's Cost applies to:
// outgoing edges if any exist, else incoming.
func applyCost(b *Builder, acc *NodeAccessors, cost network.ParamRef, inCols, outCols []int) {
	acc.CostRef = cost
	if len(outCols) > 0 {
		acc.CostCols = outCols
	} else {
		acc.CostCols = inCols
	}
	base := litOr(cost, 0)
	for _, c := range acc.CostCols {
		b.colObj[c] = base
	}
}

func expandSource(b *Builder, acc *NodeAccessors, node network.Node, outCols []int) {
	acc.OutflowCols = outCols
	if len(outCols) > 0 {
		row := b.AddRow(node.Name+".flow", litOr(node.MinFlow, 0), maxOr(node.MaxFlow))
		for _, c := range outCols {
			b.AddEntry(row, c, 1)
		}
		acc.FlowRow = row
	}
	acc.MinFlowRef, acc.MaxFlowRef = node.MinFlow, node.MaxFlow
	applyCost(b, acc, node.Cost, nil, outCols)
}

func expandSink(b *Builder, acc *NodeAccessors, node network.Node, inCols []int) {
	acc.InflowCols = inCols
	if len(inCols) > 0 {
		row := b.AddRow(node.Name+".flow", litOr(node.MinFlow, 0), maxOr(node.MaxFlow))
		for _, c := range inCols {
			b.AddEntry(row, c, 1)
		}
		acc.FlowRow = row
	}
	acc.MinFlowRef, acc.MaxFlowRef = node.MinFlow, node.MaxFlow
	applyCost(b, acc, node.Cost, inCols, nil)
}

func expandLink(b *Builder, acc *NodeAccessors, node network.Node, inCols, outCols []int) {
	acc.InflowCols, acc.OutflowCols = inCols, outCols
	if len(inCols) > 0 && len(outCols) > 0 {
		bal := b.AddRow(node.Name+".balance", 0, 0)
		for _, c := range inCols {
			b.AddEntry(bal, c, 1)
		}
		for _, c := range outCols {
			b.AddEntry(bal, c, -1)
		}
	}
	if len(outCols) > 0 {
		row := b.AddRow(node.Name+".flow", litOr(node.MinFlow, 0), maxOr(node.MaxFlow))
		for _, c := range outCols {
			b.AddEntry(row, c, 1)
		}
		acc.FlowRow = row
	}
	acc.MinFlowRef, acc.MaxFlowRef = node.MinFlow, node.MaxFlow
	applyCost(b, acc, node.Cost, inCols, outCols)
}

// expandStorage adds the single draw/fill row: R = Σin - Σout, bounded
// each step to [-vol_prev/dt, (maxVol-vol_prev)/dt]. The initial bounds
// here are placeholders; internal/simulate must push a RowBoundDelta
// before the very first solve using the node's InitialVolume.
func expandStorage(b *Builder, acc *NodeAccessors, node network.Node, inCols, outCols []int) {
	acc.InflowCols, acc.OutflowCols = inCols, outCols
	acc.IsStorage = true
	acc.MaxVolumeRef = node.MaxVolume
	acc.InitialVolume = node.InitialVolume
	row := b.AddRow(node.Name+".volume", math.Inf(-1), math.Inf(1))
	for _, c := range inCols {
		b.AddEntry(row, c, 1)
	}
	for _, c := range outCols {
		b.AddEntry(row, c, -1)
	}
	acc.FlowRow = row
	applyCost(b, acc, node.Cost, inCols, outCols)
}

// expandPiecewiseLink adds k tranche columns in parallel between the
// node's inflow pool and outflow pool, tying total inflow to tranche
// throughput and tranche throughput to total outflow.
func expandPiecewiseLink(b *Builder, acc *NodeAccessors, node network.Node, inCols, outCols []int) {
	acc.InflowCols, acc.OutflowCols = inCols, outCols
	tieIn := b.AddRow(node.Name+".tie_in", 0, 0)
	tieOut := b.AddRow(node.Name+".tie_out", 0, 0)
	for _, c := range inCols {
		b.AddEntry(tieIn, c, 1)
	}
	for _, c := range outCols {
		b.AddEntry(tieOut, c, -1)
	}
	for i, step := range node.Steps {
		col := b.AddColumn(fmt.Sprintf("%s.tranche[%d]", node.Name, i), 0, maxOr(step.MaxFlow), litOr(step.Cost, 0))
		b.AddEntry(tieIn, col, -1)
		b.AddEntry(tieOut, col, 1)
		acc.Tranches = append(acc.Tranches, Tranche{Col: col, CostRef: step.Cost, MaxFlowRef: step.MaxFlow})
	}
}

// PiecewiseStorageSliceAccessor is one stacked slice of a PiecewiseStorage
// node: a column whose upper bound tracks the slice's remaining band
// width (between its control curve and the next one up) and whose
// objective tracks its cost, both refreshed every step.
type PiecewiseStorageSliceAccessor struct {
	Col             int
	ControlCurveRef network.ParamRef
	CostRef         network.ParamRef
}

// expandPiecewiseStorage models a PiecewiseStorage node as stacked
// slices: one column per slice, bounded each step to that slice's share
// of the remaining volume, tied to total outflow. The overall volume row
// is the same draw/fill envelope Storage uses.
func expandPiecewiseStorage(b *Builder, acc *NodeAccessors, node network.Node, inCols, outCols []int) {
	acc.InflowCols, acc.OutflowCols = inCols, outCols
	acc.IsStorage = true
	acc.MaxVolumeRef = node.MaxVolume
	acc.InitialVolume = node.InitialVolume
	volRow := b.AddRow(node.Name+".volume", math.Inf(-1), math.Inf(1))
	for _, c := range inCols {
		b.AddEntry(volRow, c, 1)
	}
	for _, c := range outCols {
		b.AddEntry(volRow, c, -1)
	}
	acc.FlowRow = volRow

	tie := b.AddRow(node.Name+".slice_tie", 0, 0)
	for _, c := range outCols {
		b.AddEntry(tie, c, -1)
	}
	for i, slice := range node.Slices {
		col := b.AddColumn(fmt.Sprintf("%s.slice[%d]", node.Name, i), 0, math.Inf(1), litOr(slice.Cost, 0))
		b.AddEntry(tie, col, 1)
		acc.Slices = append(acc.Slices, PiecewiseStorageSliceAccessor{Col: col, ControlCurveRef: slice.ControlCurve, CostRef: slice.Cost})
	}
}

// expandLossLink (and WaterTreatmentWorks, which is the same shape plus
// an extra outflow capacity row) adds a loss column and the mass-balance
// rows tying inflow, outflow, and loss together.
func expandLossLink(b *Builder, acc *NodeAccessors, node network.Node, inCols, outCols []int) {
	acc.InflowCols, acc.OutflowCols = inCols, outCols
	lossCol := b.AddColumn(node.Name+".loss", 0, math.Inf(1), 0)
	acc.LossCol = lossCol

	bal := b.AddRow(node.Name+".balance", 0, 0)
	for _, c := range inCols {
		b.AddEntry(bal, c, 1)
	}
	for _, c := range outCols {
		b.AddEntry(bal, c, -1)
	}
	b.AddEntry(bal, lossCol, -1)

	lossRow := b.AddRow(node.Name+".loss_eq", 0, 0)
	b.AddEntry(lossRow, lossCol, 1)
	factor := litOr(node.LossFactor, 0)
	var baseCols []int
	if node.LossKind == network.LossGross {
		baseCols = inCols
	} else {
		baseCols = outCols
	}
	for _, c := range baseCols {
		b.AddDynamicEntry(lossRow, c, -factor)
	}
	acc.LossRow = lossRow
	acc.LossFactorRef = node.LossFactor
	acc.LossKind = node.LossKind
	acc.LossBaseCols = baseCols

	if node.Kind == network.WaterTreatmentWorks {
		row := b.AddRow(node.Name+".flow", litOr(node.MinFlow, 0), maxOr(node.MaxFlow))
		for _, c := range outCols {
			b.AddEntry(row, c, 1)
		}
		acc.FlowRow = row
		acc.MinFlowRef, acc.MaxFlowRef = node.MinFlow, node.MaxFlow
	}
	applyCost(b, acc, node.Cost, inCols, outCols)
}

// expandDelay models the FIFO lag as two pools with no structural tie: a
// free inflow pool and an outflow pool whose column bounds get fixed each
// step to the value dequeued from internal/simulate's ring buffer. A
// zero-step Delay degenerates to a plain Link (see spec §3 boundary
// behaviour) so it keeps the equality tie in that case.
func expandDelay(b *Builder, acc *NodeAccessors, node network.Node, inCols, outCols []int) {
	acc.InflowCols, acc.OutflowCols = inCols, outCols
	acc.DelaySteps = node.DelaySteps
	acc.DelayInitial = node.DelayInitial
	if len(outCols) > 0 {
		acc.DelayOutflowCol = outCols[0]
	}
	if node.DelaySteps == 0 && len(inCols) > 0 && len(outCols) > 0 {
		bal := b.AddRow(node.Name+".balance", 0, 0)
		for _, c := range inCols {
			b.AddEntry(bal, c, 1)
		}
		for _, c := range outCols {
			b.AddEntry(bal, c, -1)
		}
	}
	applyCost(b, acc, node.Cost, inCols, outCols)
}

// expandRiverSplit ties each outgoing slot's flow to the first slot by
// its declared ratio: factor[0]*x_i - factor[i]*x_0 = 0, plus a balance
// row tying total inflow to the sum of all slots.
func expandRiverSplit(b *Builder, acc *NodeAccessors, net *network.Network, node network.Node, inCols []int, edgeCol []int) error {
	acc.InflowCols = inCols
	outCols := make([]int, len(node.Splits))
	for i, split := range node.Splits {
		found := false
		for _, e := range net.Edges {
			if e.From == node.Index && e.FromSlot == split.Slot {
				outCols[i] = edgeCol[e.Index]
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("lp: RiverSplit %q: no outgoing edge for slot %q", node.Name, split.Slot)
		}
	}

	bal := b.AddRow(node.Name+".balance", 0, 0)
	for _, c := range inCols {
		b.AddEntry(bal, c, 1)
	}
	for _, c := range outCols {
		b.AddEntry(bal, c, -1)
	}

	entries := make([]int, 0, len(node.Splits)-1)
	f0 := litOr(node.Splits[0].Factor, 1)
	for i := 1; i < len(node.Splits); i++ {
		fi := litOr(node.Splits[i].Factor, 1)
		row := b.AddRow(fmt.Sprintf("%s.ratio[%d]", node.Name, i), 0, 0)
		b.AddDynamicEntry(row, outCols[i], f0)
		b.AddDynamicEntry(row, outCols[0], -fi)
		entries = append(entries, row)
	}

	acc.OutflowCols = outCols
	acc.SplitCols = outCols
	acc.SplitFactorRefs = make([]network.ParamRef, len(node.Splits))
	for i, split := range node.Splits {
		acc.SplitFactorRefs[i] = split.Factor
	}
	acc.SplitEntries = entries
	return nil
}

func expandRiver(b *Builder, acc *NodeAccessors, node network.Node, inCols, outCols []int) {
	expandLink(b, acc, node, inCols, outCols)
	acc.RoutingRef = node.RoutingParam
	if !node.RoutingParam.IsLiteral() || node.RoutingParam.Const != 0 {
		if len(outCols) > 0 {
			acc.RoutedCol = outCols[0]
		}
	} else {
		acc.RoutedCol = -1
	}
}

func expandReservoir(b *Builder, acc *NodeAccessors, node network.Node, inCols, outCols []int) {
	if node.LossFactor.IsLiteral() && node.LossFactor.Const == 0 {
		expandStorage(b, acc, node, inCols, outCols)
		return
	}
	expandLossLink(b, acc, node, inCols, outCols)
	acc.IsStorage = true
	acc.MaxVolumeRef = node.MaxVolume
	acc.InitialVolume = node.InitialVolume
}

// expandVirtualStorage (and RollingVirtualStorage, same row shape, the
// window is tracked by internal/simulate's state machine) adds a single
// one-directional depletion row: Σ factor_i * monitored_node_outflow,
// bounded above by remaining capacity / dt.
func expandVirtualStorage(b *Builder, acc *NodeAccessors, net *network.Network, all []NodeAccessors, node network.Node) error {
	row := b.AddRow(node.Name+".vs", math.Inf(-1), math.Inf(1))
	refs := make([]network.ParamRef, len(node.VSNodes))
	for i, name := range node.VSNodes {
		idx, ok := net.NodeByName(name)
		if !ok {
			return fmt.Errorf("lp: VirtualStorage %q: unknown monitored node %q", node.Name, name)
		}
		factor := 1.0
		if i < len(node.VSFactors) {
			factor = node.VSFactors[i]
		}
		for _, c := range all[idx].OutflowCols {
			b.AddEntry(row, c, factor)
		}
		refs[i] = network.ParamRef{Const: factor}
	}
	acc.IsVirtualStorage = true
	acc.VSRow = row
	acc.VSWindow = node.VSWindow
	acc.VSFactorRefs = refs
	acc.MaxVolumeRef = node.MaxVolume
	acc.InitialVolume = node.InitialVolume
	return nil
}

// expandAggregated adds the plain-relationship capacity row and,
// when Exclusive is enabled, one binary indicator column per referenced
// node plus its big-M coupling row and the active-count row. The indicator
// columns are flagged in ColIsBinary but bounded [0, 1] like any other
// column, so the simplex and ipm backends solve the continuous relaxation
// of this constraint, not the integer one.
func expandAggregated(b *Builder, acc *NodeAccessors, net *network.Network, all []NodeAccessors, node network.Node) error {
	nodeIdxs := make([]int, len(node.AggregatedNodes))
	for i, name := range node.AggregatedNodes {
		idx, ok := net.NodeByName(name)
		if !ok {
			return fmt.Errorf("lp: Aggregated %q: unknown referenced node %q", node.Name, name)
		}
		nodeIdxs[i] = idx
	}

	if !node.Exclusive.Enabled {
		row := b.AddRow(node.Name+".flow", litOr(node.MinFlow, 0), maxOr(node.MaxFlow))
		for _, idx := range nodeIdxs {
			for _, c := range all[idx].OutflowCols {
				b.AddEntry(row, c, 1)
			}
		}
		acc.FlowRow = row
		acc.MinFlowRef, acc.MaxFlowRef = node.MinFlow, node.MaxFlow
		return nil
	}

	for i, idx := range nodeIdxs {
		if len(all[idx].OutflowCols) != 1 {
			return fmt.Errorf("lp: Aggregated %q: exclusive relationship requires node %q to have exactly one representative flow column", node.Name, node.AggregatedNodes[i])
		}
	}

	activeRow := b.AddRow(node.Name+".exclusive_count", float64(node.Exclusive.MinActive), exclusiveUpper(node.Exclusive))

	acc.ExclusiveRow = activeRow
	for i, idx := range nodeIdxs {
		x := all[idx].OutflowCols[0]
		y := b.AddBinaryColumn(fmt.Sprintf("%s.active[%d]", node.Name, i), 0)
		bigM := 1e9
		if node.MaxFlow.IsLiteral() && node.MaxFlow.Const > 0 {
			bigM = node.MaxFlow.Const
		}
		if all[idx].MaxFlowRef.IsLiteral() && all[idx].MaxFlowRef.Const > 0 {
			bigM = all[idx].MaxFlowRef.Const
		}
		bigMRow := b.AddRow(fmt.Sprintf("%s.exclusive_bigm[%d]", node.Name, i), math.Inf(-1), 0)
		if i == 0 {
			acc.BigMRow = bigMRow
		}
		b.AddEntry(bigMRow, x, 1)
		b.AddEntry(bigMRow, y, -bigM)
		b.AddEntry(activeRow, y, 1)
		acc.IndicatorCols = append(acc.IndicatorCols, y)
		acc.IndicatorNodes = append(acc.IndicatorNodes, idx)
		acc.ExclusiveXCols = append(acc.ExclusiveXCols, x)
	}
	return nil
}

func exclusiveUpper(rel network.ExclusiveRelationship) float64 {
	if rel.MaxActive <= 0 {
		return math.Inf(1)
	}
	return float64(rel.MaxActive)
}
