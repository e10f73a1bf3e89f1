package network

import (
	"fmt"

	"github.com/pywr-go/pywr/internal/metric"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// Edge is a directed connection between two nodes, optionally naming a slot
// on either end (RiverSplit outgoing slots, compound-node sub-ports).
type Edge struct {
	Index    int
	From     int
	FromSlot string
	To       int
	ToSlot   string
}

// Network is the typed graph of nodes and directed edges, plus the
// metric sets that read from it. It is immutable once Build
// returns successfully; the simulator holds it read-only and shared across
// scenario workers.
type Network struct {
	Nodes      []Node
	Edges      []Edge
	MetricSets []metric.Set

	nameIdx map[string]int
}

// New creates an empty network ready for incremental construction via
// AddNode/AddEdge (used by internal/schema's builder).
func New() *Network {
	return &Network{nameIdx: make(map[string]int)}
}

// AddNode appends a node, assigning it a stable dense index. Names must be
// unique.
func (n *Network) AddNode(node Node) (int, error) {
	if node.Name == "" {
		return 0, fmt.Errorf("network: node at index %d has no name", len(n.Nodes))
	}
	if _, exists := n.nameIdx[node.Name]; exists {
		return 0, fmt.Errorf("network: duplicate node name %q", node.Name)
	}
	node.Index = len(n.Nodes)
	n.Nodes = append(n.Nodes, node)
	n.nameIdx[node.Name] = node.Index
	return node.Index, nil
}

// AddEdge appends a directed edge, assigning it a stable dense index.
func (n *Network) AddEdge(from, to int, fromSlot, toSlot string) (int, error) {
	if from < 0 || from >= len(n.Nodes) {
		return 0, fmt.Errorf("network: edge from-index %d out of range", from)
	}
	if to < 0 || to >= len(n.Nodes) {
		return 0, fmt.Errorf("network: edge to-index %d out of range", to)
	}
	e := Edge{Index: len(n.Edges), From: from, FromSlot: fromSlot, To: to, ToSlot: toSlot}
	n.Edges = append(n.Edges, e)
	return e.Index, nil
}

// NodeByName looks up a node's dense index by name.
func (n *Network) NodeByName(name string) (int, bool) {
	idx, ok := n.nameIdx[name]
	return idx, ok
}

// MustNodeByName looks up a node's dense index, returning an error instead
// of a bool for call sites that want %w-wrappable failures.
func (n *Network) MustNodeByName(name string) (int, error) {
	idx, ok := n.nameIdx[name]
	if !ok {
		return 0, fmt.Errorf("network: unknown node %q", name)
	}
	return idx, nil
}

// Graph materializes the node/edge set as a gonum directed graph, used by
// Roots to find nodes with no incoming edges.
func (n *Network) Graph() *simple.DirectedGraph {
	g := simple.NewDirectedGraph()
	for _, node := range n.Nodes {
		g.AddNode(simple.Node(node.Index))
	}
	for _, e := range n.Edges {
		if g.HasEdgeFromTo(int64(e.From), int64(e.To)) {
			continue // parallel edges between the same two nodes collapse to one graph edge
		}
		g.SetEdge(simple.Edge{F: simple.Node(e.From), T: simple.Node(e.To)})
	}
	return g
}

// OutEdges returns the indices of edges leaving node idx.
func (n *Network) OutEdges(idx int) []int {
	var out []int
	for _, e := range n.Edges {
		if e.From == idx {
			out = append(out, e.Index)
		}
	}
	return out
}

// InEdges returns the indices of edges arriving at node idx.
func (n *Network) InEdges(idx int) []int {
	var out []int
	for _, e := range n.Edges {
		if e.To == idx {
			out = append(out, e.Index)
		}
	}
	return out
}

// Validate checks the structural invariants spec §3 requires: every edge
// endpoint resolves, slot semantics match for slotted kinds, initial
// volumes are in range, and the node graph has no dangling references in
// aggregation/virtual-storage node lists.
func (n *Network) Validate() error {
	for _, e := range n.Edges {
		if e.From < 0 || e.From >= len(n.Nodes) {
			return fmt.Errorf("network: edge %d: invalid from-index %d", e.Index, e.From)
		}
		if e.To < 0 || e.To >= len(n.Nodes) {
			return fmt.Errorf("network: edge %d: invalid to-index %d", e.Index, e.To)
		}
	}

	for _, node := range n.Nodes {
		switch node.Kind {
		case RiverSplit:
			if len(node.Splits) < 2 {
				return fmt.Errorf("network: RiverSplit %q needs at least 2 slots", node.Name)
			}
			seen := make(map[string]bool)
			for _, s := range node.Splits {
				if s.Slot == "" {
					return fmt.Errorf("network: RiverSplit %q has a split with no slot name", node.Name)
				}
				if seen[s.Slot] {
					return fmt.Errorf("network: RiverSplit %q has duplicate slot %q", node.Name, s.Slot)
				}
				seen[s.Slot] = true
			}
		case Storage:
			if node.InitialVolume.Kind == Proportional {
				if node.InitialVolume.Value < 0 || node.InitialVolume.Value > 1 {
					return fmt.Errorf("network: Storage %q: proportional initial volume %g out of [0,1]", node.Name, node.InitialVolume.Value)
				}
			}
			if node.InitialVolume.Kind == Absolute && node.MaxVolume.IsLiteral() {
				if node.InitialVolume.Value > node.MaxVolume.Const {
					return fmt.Errorf("network: Storage %q: absolute initial volume %g exceeds max_volume %g", node.Name, node.InitialVolume.Value, node.MaxVolume.Const)
				}
			}
		case VirtualStorage, RollingVirtualStorage:
			if len(node.VSNodes) == 0 {
				return fmt.Errorf("network: %s %q needs at least one monitored flow node", node.Kind, node.Name)
			}
			for _, vn := range node.VSNodes {
				if _, ok := n.nameIdx[vn]; !ok {
					return fmt.Errorf("network: %s %q references unknown node %q", node.Kind, node.Name, vn)
				}
			}
			if node.Kind == RollingVirtualStorage && node.VSWindow <= 0 {
				return fmt.Errorf("network: RollingVirtualStorage %q needs a positive window", node.Name)
			}
		case Aggregated:
			if len(node.AggregatedNodes) == 0 {
				return fmt.Errorf("network: Aggregated %q needs at least one referenced node", node.Name)
			}
			for _, an := range node.AggregatedNodes {
				if _, ok := n.nameIdx[an]; !ok {
					return fmt.Errorf("network: Aggregated %q references unknown node %q", node.Name, an)
				}
			}
			if node.Exclusive.Enabled && node.Exclusive.MaxActive > 0 && node.Exclusive.MinActive > node.Exclusive.MaxActive {
				return fmt.Errorf("network: Aggregated %q: min_active %d > max_active %d", node.Name, node.Exclusive.MinActive, node.Exclusive.MaxActive)
			}
		case PiecewiseLink:
			if len(node.Steps) == 0 {
				return fmt.Errorf("network: PiecewiseLink %q needs at least one step", node.Name)
			}
		case PiecewiseStorage:
			if len(node.Slices) == 0 {
				return fmt.Errorf("network: PiecewiseStorage %q needs at least one slice", node.Name)
			}
		case Delay:
			if node.DelaySteps < 0 {
				return fmt.Errorf("network: Delay %q: negative delay %d", node.Name, node.DelaySteps)
			}
		}
	}
	return nil
}

// Roots returns node indices with no incoming edges — catchments, inputs,
// and any other network source.
func (n *Network) Roots() []int {
	g := n.Graph()
	var roots []int
	nodes := g.Nodes()
	for nodes.Next() {
		id := nodes.Node().ID()
		if g.To(id).Len() == 0 {
			roots = append(roots, int(id))
		}
	}
	return roots
}

var _ graph.Directed = (*simple.DirectedGraph)(nil)
