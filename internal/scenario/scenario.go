// Package scenario builds the cartesian product of scenario groups that the
// simulator runs independently, in parallel, along the full time axis.
package scenario

import "fmt"

// Group is one axis of the scenario cartesian product.
type Group struct {
	Name   string
	Size   int
	Labels []string // optional, len(Labels) == Size if present
	Subset []int    // optional; restricts this group's indices
}

// Validate checks a single group's internal consistency.
func (g Group) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("scenario group: name is required")
	}
	if g.Size <= 0 {
		return fmt.Errorf("scenario group %q: size must be positive, got %d", g.Name, g.Size)
	}
	if g.Labels != nil && len(g.Labels) != g.Size {
		return fmt.Errorf("scenario group %q: labels length %d != size %d", g.Name, len(g.Labels), g.Size)
	}
	for _, s := range g.Subset {
		if s < 0 || s >= g.Size {
			return fmt.Errorf("scenario group %q: subset index %d out of range [0,%d)", g.Name, s, g.Size)
		}
	}
	return nil
}

func (g Group) indices() []int {
	if g.Subset != nil {
		return g.Subset
	}
	out := make([]int, g.Size)
	for i := range out {
		out[i] = i
	}
	return out
}

// Index uniquely identifies one simulation: a point in the cartesian
// product of scenario groups.
type Index struct {
	SimulationID  int
	IndicesPerGroup []int
}

// Grid is the materialized set of scenario indices for a model run.
type Grid struct {
	Groups      []Group
	Combinations [][]int // optional explicit whitelist of index-tuples
	indices     []Index
}

// Build validates the groups and materializes the scenario index set,
// either as the full (optionally subset-restricted) cartesian product or,
// if Combinations is non-empty, as exactly those explicit tuples.
func Build(groups []Group, combinations [][]int) (*Grid, error) {
	for _, g := range groups {
		if err := g.Validate(); err != nil {
			return nil, err
		}
	}
	grid := &Grid{Groups: groups, Combinations: combinations}

	if len(combinations) > 0 {
		for _, c := range combinations {
			if len(c) != len(groups) {
				return nil, fmt.Errorf("scenario combination %v: length %d != %d groups", c, len(c), len(groups))
			}
			for gi, idx := range c {
				if idx < 0 || idx >= groups[gi].Size {
					return nil, fmt.Errorf("scenario combination %v: group %q index %d out of range", c, groups[gi].Name, idx)
				}
			}
		}
		grid.indices = make([]Index, len(combinations))
		for i, c := range combinations {
			grid.indices[i] = Index{SimulationID: i, IndicesPerGroup: append([]int(nil), c...)}
		}
		return grid, nil
	}

	grid.indices = cartesian(groups)
	return grid, nil
}

func cartesian(groups []Group) []Index {
	if len(groups) == 0 {
		return []Index{{SimulationID: 0, IndicesPerGroup: nil}}
	}
	axes := make([][]int, len(groups))
	for i, g := range groups {
		axes[i] = g.indices()
	}

	total := 1
	for _, a := range axes {
		total *= len(a)
	}
	out := make([]Index, 0, total)
	combo := make([]int, len(axes))
	var rec func(depth int)
	rec = func(depth int) {
		if depth == len(axes) {
			out = append(out, Index{SimulationID: len(out), IndicesPerGroup: append([]int(nil), combo...)})
			return
		}
		for _, v := range axes[depth] {
			combo[depth] = v
			rec(depth + 1)
		}
	}
	rec(0)
	return out
}

// Indices returns the materialized scenario index set in deterministic
// order.
func (g *Grid) Indices() []Index { return g.indices }

// Len returns the number of simulations in the grid.
func (g *Grid) Len() int { return len(g.indices) }

// Label returns the human-readable label for group gi at index value v, or
// a numeric fallback if the group carries no Labels.
func (g *Grid) Label(gi, v int) string {
	if gi < 0 || gi >= len(g.Groups) {
		return fmt.Sprintf("%d", v)
	}
	grp := g.Groups[gi]
	if grp.Labels != nil && v >= 0 && v < len(grp.Labels) {
		return grp.Labels[v]
	}
	return fmt.Sprintf("%d", v)
}
