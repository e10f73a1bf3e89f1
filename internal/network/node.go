package network

// Kind enumerates every node type the network can express. Compound kinds
// (those IsCompound reports) expand into a fixed sub-structure of internal
// LP columns/rows at build time — see internal/lp's per-kind expanders.
type Kind int

const (
	Input Kind = iota
	Output
	Link
	Storage
	Catchment
	VirtualStorage
	RollingVirtualStorage
	PiecewiseLink
	PiecewiseStorage
	Aggregated
	LossLink
	WaterTreatmentWorks
	Delay
	River
	RiverSplit
	Reservoir
)

func (k Kind) String() string {
	switch k {
	case Input:
		return "Input"
	case Output:
		return "Output"
	case Link:
		return "Link"
	case Storage:
		return "Storage"
	case Catchment:
		return "Catchment"
	case VirtualStorage:
		return "VirtualStorage"
	case RollingVirtualStorage:
		return "RollingVirtualStorage"
	case PiecewiseLink:
		return "PiecewiseLink"
	case PiecewiseStorage:
		return "PiecewiseStorage"
	case Aggregated:
		return "Aggregated"
	case LossLink:
		return "LossLink"
	case WaterTreatmentWorks:
		return "WaterTreatmentWorks"
	case Delay:
		return "Delay"
	case River:
		return "River"
	case RiverSplit:
		return "RiverSplit"
	case Reservoir:
		return "Reservoir"
	default:
		return "Unknown"
	}
}

// IsCompound reports whether this kind expands into more than one LP
// column/row at build time.
func (k Kind) IsCompound() bool {
	switch k {
	case PiecewiseLink, PiecewiseStorage, Aggregated, LossLink, WaterTreatmentWorks,
		Delay, River, RiverSplit, Reservoir:
		return true
	default:
		return false
	}
}

// InitialVolumeKind distinguishes how a Storage node's initial volume is
// specified.
type InitialVolumeKind int

const (
	Absolute InitialVolumeKind = iota
	Proportional
)

// InitialVolume is either an absolute volume or a proportion of max_volume
// at t=0.
type InitialVolume struct {
	Kind  InitialVolumeKind
	Value float64 // absolute volume, or proportion in [0,1]
}

// ExclusiveRelationship configures an Aggregated node's mutual-exclusivity
// rule: at most/least this many of the referenced nodes may carry flow.
type ExclusiveRelationship struct {
	Enabled   bool
	MinActive int
	MaxActive int // 0 means unbounded
}

// PiecewiseStep is one tranche of a PiecewiseLink: its own cost and
// max_flow, expanded into a parallel internal edge.
type PiecewiseStep struct {
	Cost    ParamRef
	MaxFlow ParamRef
}

// PiecewiseStorageSlice is one stacked slice of a PiecewiseStorage node.
type PiecewiseStorageSlice struct {
	ControlCurve ParamRef // value in [0,1], upper bound = MaxVolume * ControlCurve(t)
	Cost         ParamRef
}

// RiverSplitTarget is one outgoing slot of a RiverSplit node with its fixed
// flow-ratio factor.
type RiverSplitTarget struct {
	Slot   string
	Factor ParamRef
}

// LossKind distinguishes how a LossLink's loss factor is interpreted.
type LossKind int

const (
	LossNet LossKind = iota
	LossGross
)

// ParamRef points at a parameter by name; resolved to a dense ParamId by
// the parameter resolver at build time. A nil-valued ParamRef (Name=="")
// means "use the literal Const value instead".
type ParamRef struct {
	Name  string
	Const float64 // used when Name == ""
}

// IsLiteral reports whether this reference is an inline constant rather
// than a named parameter.
func (p ParamRef) IsLiteral() bool { return p.Name == "" }

// Node is one vertex of the network graph. Attribute fields not relevant
// to Kind are left zero. Node is declarative only: compound expansion into
// LP columns/rows happens in internal/lp at build time.
type Node struct {
	Index   int
	Name    string
	Kind    Kind
	Comment string

	// Flow bounds, used by Input/Output/Link/Catchment/simple edges.
	MinFlow ParamRef
	MaxFlow ParamRef
	Cost    ParamRef

	// Storage.
	MaxVolume     ParamRef
	InitialVolume InitialVolume

	// VirtualStorage / RollingVirtualStorage.
	VSNodes   []string // names of flow nodes this virtual storage monitors
	VSFactors []float64 // per-node factor, parallel to VSNodes; defaults to 1
	VSWindow  int       // RollingVirtualStorage window length in steps; 0 for plain VirtualStorage

	// PiecewiseLink.
	Steps []PiecewiseStep

	// PiecewiseStorage.
	Slices []PiecewiseStorageSlice

	// Aggregated.
	AggregatedNodes []string
	Exclusive       ExclusiveRelationship

	// LossLink / WaterTreatmentWorks.
	LossFactor ParamRef
	LossKind   LossKind

	// Delay.
	DelaySteps    int
	DelayInitial  float64

	// RiverSplit.
	Splits []RiverSplitTarget

	// River / Reservoir sugar.
	RoutingParam ParamRef // Muskingum-style routing coefficient, optional
}
