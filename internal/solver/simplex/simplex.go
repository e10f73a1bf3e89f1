// Package simplex implements pywr's default deterministic LP backend: a
// dense, full-tableau bounded-variable primal simplex method (see
// Vanderbei, "Linear Programming: Foundations and Extensions", ch. on
// bounded variables). Every LP row is converted to an equality by adding
// one slack column per row (slack_i = Σ A_ij x_j), so row bounds and
// column bounds are handled by exactly the same bounded-variable pivoting
// rule. This keeps the tableau small for pywr-sized networks and, unlike
// a two-phase artificial-variable method, never needs a separate basis
// for phase 1: the slacks are the initial basis directly.
package simplex

import (
	"math"

	"github.com/pywr-go/pywr/internal/lp"
	"github.com/pywr-go/pywr/internal/solver"
	"gonum.org/v1/gonum/mat"
)

const maxIterations = 20000

// status of a nonbasic variable: which of its two bounds it currently
// sits at.
type boundStatus int

const (
	atLower boundStatus = iota
	atUpper
)

// tableau holds the live, row-reduced working state of one solve. Built
// fresh per Solve call from the Instance (not reused across timesteps —
// the handle only carries the compiled dense Abar matrix, which depends
// only on the immutable sparsity pattern).
type tableau struct {
	m, n int // m rows (constraints incl. slacks), n = totalVars = NCols+NRows

	T    *mat.Dense // m x n row-reduced tableau, B^-1 * Abar
	cost []float64  // current phase's cost row, length n
	cbar []float64  // reduced costs, length n

	lower, upper []float64 // bounds per variable, length n
	status       []boundStatus
	inBasis      []bool
	basis        []int // basis[row] = variable index occupying that row
	value        []float64
}

// handle caches the dense constraint matrix (x-columns from the CSC
// template, slack columns appended as -I) so repeated Solve calls across
// timesteps don't re-expand the sparse structure every time.
type handle struct {
	tmpl *lp.Template
	abar *mat.Dense // m x (NCols+NRows)
	m, n int
}

// Backend is the registered "simplex" Solver.
type Backend struct{}

func (Backend) Name() string { return "simplex" }

func (Backend) Build(tmpl *lp.Template) (solver.Handle, error) {
	m := tmpl.NRows
	n := tmpl.NCols + tmpl.NRows
	abar := mat.NewDense(m, n, nil)
	for c := 0; c < tmpl.NCols; c++ {
		rows, coefs := tmpl.Column(c)
		for k, r := range rows {
			abar.Set(r, c, coefs[k])
		}
	}
	for r := 0; r < m; r++ {
		abar.Set(r, tmpl.NCols+r, -1)
	}
	return &handle{tmpl: tmpl, abar: abar, m: m, n: n}, nil
}

func (Backend) Solve(h solver.Handle, inst *lp.Instance) (solver.Result, error) {
	hd := h.(*handle)
	return solve(hd, inst)
}

func solve(hd *handle, inst *lp.Instance) (solver.Result, error) {
	m, n := hd.m, hd.n
	nCols := hd.tmpl.NCols

	lower := make([]float64, n)
	upper := make([]float64, n)
	copy(lower[:nCols], inst.ColLower)
	copy(upper[:nCols], inst.ColUpper)
	for i := 0; i < m; i++ {
		lower[nCols+i] = inst.RowLower[i]
		upper[nCols+i] = inst.RowUpper[i]
	}

	// Abar's x-columns are structurally shared but their nonzero values
	// can vary per step (e.g. loss factors), so rebuild from inst.Coef
	// rather than reusing hd.abar's initial snapshot verbatim.
	abar := mat.DenseCopyOf(hd.abar)
	for c := 0; c < nCols; c++ {
		start, end := hd.tmpl.ColPtr[c], hd.tmpl.ColPtr[c+1]
		for k := start; k < end; k++ {
			abar.Set(hd.tmpl.RowIdx[k], c, inst.Coef[k])
		}
	}

	// The starting basis is the slack columns, each with raw coefficient
	// -1 on its own row (B = -I), so the canonical tableau T = B^-1*Abar
	// negates every row of the raw constraint matrix before any pivot
	// happens; skipping this turns every reduced-cost sign backwards.
	T := mat.NewDense(m, n, nil)
	T.Scale(-1, abar)

	tb := &tableau{
		m: m, n: n,
		T:       T,
		lower:   lower,
		upper:   upper,
		status:  make([]boundStatus, n),
		inBasis: make([]bool, n),
		basis:   make([]int, m),
		value:   make([]float64, n),
	}
	for i := 0; i < m; i++ {
		tb.basis[i] = nCols + i
		tb.inBasis[nCols+i] = true
	}
	for j := 0; j < n; j++ {
		if tb.inBasis[j] {
			continue
		}
		tb.status[j] = chooseBound(lower[j], upper[j])
		tb.value[j] = boundValue(tb.status[j], lower[j], upper[j])
	}
	tb.recomputeBasics()

	if infeasible := tb.maxInfeasibility(); infeasible > 1e-7 {
		status, err := tb.runPhase1()
		if err != nil {
			return solver.Result{Status: solver.NumericFailure}, err
		}
		if status != solver.Optimal {
			return solver.Result{Status: status}, nil
		}
		if tb.maxInfeasibility() > 1e-6 {
			return solver.Result{Status: solver.Infeasible}, nil
		}
	}

	cost := make([]float64, n)
	copy(cost[:nCols], inst.ColObj)
	tb.cost = cost
	status, err := tb.runPhase2()
	if err != nil {
		return solver.Result{Status: solver.NumericFailure}, err
	}
	if status != solver.Optimal {
		return solver.Result{Status: status}, nil
	}

	x := make([]float64, nCols)
	copy(x, tb.value[:nCols])
	obj := 0.0
	for j := 0; j < nCols; j++ {
		obj += cost[j] * x[j]
	}
	return solver.Result{Status: solver.Optimal, X: x, ObjectiveVal: obj}, nil
}

func chooseBound(lo, hi float64) boundStatus {
	if !math.IsInf(lo, -1) {
		return atLower
	}
	if !math.IsInf(hi, 1) {
		return atUpper
	}
	return atLower // free variable, parked at an assumed value of 0 via boundValue
}

func boundValue(s boundStatus, lo, hi float64) float64 {
	if s == atLower {
		if math.IsInf(lo, -1) {
			return 0
		}
		return lo
	}
	if math.IsInf(hi, 1) {
		return 0
	}
	return hi
}

// recomputeBasics sets every basic variable's value from the current
// tableau and nonbasic values: x_B = -T[:,N]*x_N restricted to the basis
// row's own column equal to 1 (tableau already row-reduced so each basic
// column is a unit vector).
func (tb *tableau) recomputeBasics() {
	for i := 0; i < tb.m; i++ {
		sum := 0.0
		for j := 0; j < tb.n; j++ {
			if tb.inBasis[j] {
				continue
			}
			sum += tb.T.At(i, j) * tb.value[j]
		}
		tb.value[tb.basis[i]] = -sum
	}
}

func (tb *tableau) maxInfeasibility() float64 {
	worst := 0.0
	for i := 0; i < tb.m; i++ {
		v := tb.basis[i]
		if d := tb.lower[v] - tb.value[v]; d > worst {
			worst = d
		}
		if d := tb.value[v] - tb.upper[v]; d > worst {
			worst = d
		}
	}
	return worst
}

// runPhase1 minimizes total bound violation of the basic variables using
// the same pivoting machinery as phase 2, with a composite cost that is
// +1/-1 for infeasible basics and 0 otherwise, recomputed every iteration
// since which basics are infeasible changes as pivots happen.
func (tb *tableau) runPhase1() (solver.Status, error) {
	for iter := 0; iter < maxIterations; iter++ {
		cost := make([]float64, tb.n)
		anyInfeasible := false
		for i := 0; i < tb.m; i++ {
			v := tb.basis[i]
			switch {
			case tb.value[v] < tb.lower[v]-1e-9:
				cost[v] = -1
				anyInfeasible = true
			case tb.value[v] > tb.upper[v]+1e-9:
				cost[v] = 1
				anyInfeasible = true
			}
		}
		if !anyInfeasible {
			return solver.Optimal, nil
		}
		tb.cost = cost
		tb.computeReducedCosts()
		enter := tb.chooseEntering()
		if enter < 0 {
			return solver.Infeasible, nil
		}
		if !tb.pivot(enter) {
			return solver.Optimal, nil
		}
	}
	return solver.NumericFailure, nil
}

func (tb *tableau) runPhase2() (solver.Status, error) {
	for iter := 0; iter < maxIterations; iter++ {
		tb.computeReducedCosts()
		enter := tb.chooseEntering()
		if enter < 0 {
			return solver.Optimal, nil
		}
		if !tb.pivot(enter) {
			return solver.Unbounded, nil
		}
	}
	return solver.NumericFailure, nil
}

// computeReducedCosts sets cbar_j = cost_j - Σ_i cost_basis[i] * T[i][j]
// for every nonbasic j.
func (tb *tableau) computeReducedCosts() {
	tb.cbar = make([]float64, tb.n)
	yc := make([]float64, tb.m)
	for i := 0; i < tb.m; i++ {
		yc[i] = tb.cost[tb.basis[i]]
	}
	for j := 0; j < tb.n; j++ {
		if tb.inBasis[j] {
			continue
		}
		s := tb.cost[j]
		for i := 0; i < tb.m; i++ {
			if yc[i] != 0 {
				s -= yc[i] * tb.T.At(i, j)
			}
		}
		tb.cbar[j] = s
	}
}

// chooseEntering picks a nonbasic variable that can improve the
// objective: cbar<0 while at its lower bound (increasing it helps), or
// cbar>0 while at its upper bound (decreasing it helps). Ties broken by
// lowest index (Bland's rule) to guarantee termination.
func (tb *tableau) chooseEntering() int {
	const eps = 1e-9
	for j := 0; j < tb.n; j++ {
		if tb.inBasis[j] {
			continue
		}
		if tb.status[j] == atLower && tb.cbar[j] < -eps {
			return j
		}
		if tb.status[j] == atUpper && tb.cbar[j] > eps {
			return j
		}
	}
	return -1
}

// pivot drives the entering variable from its current bound toward the
// opposite one, either until a basic variable hits one of its own
// bounds (a normal simplex pivot, exchanging enter for that basic) or
// until the entering variable itself reaches its opposite bound (a
// bound flip with no basis change). Returns false if the entering
// variable is unbounded in the improving direction and no row limits it
// (declares the problem unbounded).
func (tb *tableau) pivot(enter int) bool {
	increasing := tb.status[enter] == atLower
	dir := 1.0
	if !increasing {
		dir = -1.0
	}

	bestRow := -1
	bestLimit := math.Inf(1)
	for i := 0; i < tb.m; i++ {
		coef := tb.T.At(i, enter)
		if math.Abs(coef) < 1e-11 {
			continue
		}
		v := tb.basis[i]
		// d(value_v)/d(enter) = -coef*dir
		rate := -coef * dir
		var limit float64
		switch {
		case rate > 0:
			if math.IsInf(tb.upper[v], 1) {
				continue
			}
			limit = (tb.upper[v] - tb.value[v]) / rate
		case rate < 0:
			if math.IsInf(tb.lower[v], -1) {
				continue
			}
			limit = (tb.value[v] - tb.lower[v]) / -rate
		default:
			continue
		}
		if limit < -1e-9 {
			limit = 0
		}
		if limit < bestLimit-1e-12 {
			bestLimit = limit
			bestRow = i
		}
	}

	flipLimit := math.Inf(1)
	if increasing && !math.IsInf(tb.upper[enter], 1) {
		flipLimit = tb.upper[enter] - tb.value[enter]
	} else if !increasing && !math.IsInf(tb.lower[enter], -1) {
		flipLimit = tb.value[enter] - tb.lower[enter]
	}

	if bestRow < 0 && math.IsInf(flipLimit, 1) {
		return false // unbounded
	}

	step := bestLimit
	flip := bestRow < 0 || flipLimit < bestLimit
	if flip {
		step = flipLimit
	}

	delta := step * dir
	tb.value[enter] += delta
	for i := 0; i < tb.m; i++ {
		tb.value[tb.basis[i]] -= tb.T.At(i, enter) * delta
	}

	if flip {
		if increasing {
			tb.status[enter] = atUpper
		} else {
			tb.status[enter] = atLower
		}
		return true
	}

	leave := tb.basis[bestRow]
	pivotVal := tb.T.At(bestRow, enter)
	for j := 0; j < tb.n; j++ {
		tb.T.Set(bestRow, j, tb.T.At(bestRow, j)/pivotVal)
	}
	for i := 0; i < tb.m; i++ {
		if i == bestRow {
			continue
		}
		f := tb.T.At(i, enter)
		if f == 0 {
			continue
		}
		for j := 0; j < tb.n; j++ {
			tb.T.Set(i, j, tb.T.At(i, j)-f*tb.T.At(bestRow, j))
		}
	}

	tb.inBasis[leave] = false
	tb.inBasis[enter] = true
	tb.basis[bestRow] = enter
	if tb.value[leave] <= tb.lower[leave]+1e-7 {
		tb.status[leave] = atLower
	} else {
		tb.status[leave] = atUpper
	}
	return true
}
