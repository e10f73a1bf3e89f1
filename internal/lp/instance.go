package lp

// Instance is a per-scenario mutable working copy of a Template's variable
// data (coefficients, bounds, objective). The sparsity pattern (ColPtr,
// RowIdx) is shared and never mutated; only the parallel value arrays are
// copied so concurrent scenario workers never touch each other's memory.
type Instance struct {
	Tmpl *Template

	Coef     []float64
	ColLower []float64
	ColUpper []float64
	ColObj   []float64
	RowLower []float64
	RowUpper []float64
}

// NewInstance copies a Template's mutable arrays into a fresh per-scenario
// Instance.
func (t *Template) NewInstance() *Instance {
	return &Instance{
		Tmpl:     t,
		Coef:     append([]float64(nil), t.Coef...),
		ColLower: append([]float64(nil), t.ColLower...),
		ColUpper: append([]float64(nil), t.ColUpper...),
		ColObj:   append([]float64(nil), t.ColObj...),
		RowLower: append([]float64(nil), t.RowLower...),
		RowUpper: append([]float64(nil), t.RowUpper...),
	}
}

// Reset restores an Instance's mutable arrays to the Template's base
// values, letting a scenario worker reuse one Instance across timesteps
// instead of re-allocating (only necessary when a caller wants to replay a
// step, e.g. in interactive debugging; the normal per-step flow only calls
// Apply).
func (inst *Instance) Reset() {
	copy(inst.Coef, inst.Tmpl.Coef)
	copy(inst.ColLower, inst.Tmpl.ColLower)
	copy(inst.ColUpper, inst.Tmpl.ColUpper)
	copy(inst.ColObj, inst.Tmpl.ColObj)
	copy(inst.RowLower, inst.Tmpl.RowLower)
	copy(inst.RowUpper, inst.Tmpl.RowUpper)
}

// CoefDelta overrides the coefficient of an existing nonzero, addressed by
// its position in the shared CSC arrays (from Template.EntryIndex).
type CoefDelta struct {
	EntryIdx int
	Coef     float64
}

// ObjDelta overrides a column's objective coefficient.
type ObjDelta struct {
	Col int
	Obj float64
}

// ColBoundDelta overrides a column's [lower,upper] bounds.
type ColBoundDelta struct {
	Col          int
	Lower, Upper float64
}

// RowBoundDelta overrides a row's [lower,upper] bounds.
type RowBoundDelta struct {
	Row          int
	Lower, Upper float64
}

// Delta batches every update the simulator wants to apply before the next
// solve, per spec §4.3's per-step protocol.
type Delta struct {
	Coefs     []CoefDelta
	Objs      []ObjDelta
	ColBounds []ColBoundDelta
	RowBounds []RowBoundDelta
}

// Apply mutates the Instance's working arrays in place. Call once per
// timestep, after evaluating Before-phase parameters and before handing
// the Instance to a Solver.
func (inst *Instance) Apply(d Delta) {
	for _, c := range d.Coefs {
		inst.Coef[c.EntryIdx] = c.Coef
	}
	for _, o := range d.Objs {
		inst.ColObj[o.Col] = o.Obj
	}
	for _, cb := range d.ColBounds {
		inst.ColLower[cb.Col] = cb.Lower
		inst.ColUpper[cb.Col] = cb.Upper
	}
	for _, rb := range d.RowBounds {
		inst.RowLower[rb.Row] = rb.Lower
		inst.RowUpper[rb.Row] = rb.Upper
	}
}

// ColumnValue returns column col's value in the solved column vector x.
func (inst *Instance) ColumnValue(col int, x []float64) float64 {
	return x[col]
}
