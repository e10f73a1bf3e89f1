// Package ipm implements pywr's optional interior-point LP backend: a
// primal-dual path-following method over the same box-constrained
// equality-form LP internal/solver/simplex solves (Abar*y=0, l<=y<=u,
// with row slacks folded into y exactly like the simplex backend). Unlike
// simplex, this backend is not the default: it trades the simplex
// method's exact vertex solutions and easy warm restarts for the
// possibility of solving many large, similarly-structured LPs with a
// handful of Newton steps each, which matters more for very large
// networks than for pywr's typical per-scenario sizes. See spec's
// solver-backend design notes.
package ipm

import (
	"fmt"
	"math"

	"github.com/pywr-go/pywr/internal/lp"
	"github.com/pywr-go/pywr/internal/solver"
	"gonum.org/v1/gonum/mat"
)

const (
	maxIterations = 100
	tol           = 1e-8
)

// Backend is the registered "ipm" Solver.
type Backend struct{}

func (Backend) Name() string { return "ipm" }

type handle struct {
	tmpl *lp.Template
	abar *mat.Dense // m x n, n = NCols+NRows
	m, n int
}

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

// bounds classifies each variable's finite-ness so the complementarity
// system only tracks multipliers for sides that actually constrain it.
type boundKind int

const (
	boxed boundKind = iota // both l,u finite
	lowerOnly
	upperOnly
	free
)

func classify(l, u float64) boundKind {
	loFin, hiFin := !math.IsInf(l, -1), !math.IsInf(u, 1)
	switch {
	case loFin && hiFin:
		return boxed
	case loFin:
		return lowerOnly
	case hiFin:
		return upperOnly
	default:
		return free
	}
}

func (Backend) Solve(h solver.Handle, inst *lp.Instance) (solver.Result, error) {
	hd := h.(*handle)
	m, n := hd.m, hd.n
	nCols := hd.tmpl.NCols

	A := mat.DenseCopyOf(hd.abar)
	for c := 0; c < nCols; c++ {
		start, end := hd.tmpl.ColPtr[c], hd.tmpl.ColPtr[c+1]
		for k := start; k < end; k++ {
			A.Set(hd.tmpl.RowIdx[k], c, inst.Coef[k])
		}
	}

	l := make([]float64, n)
	u := make([]float64, n)
	c := make([]float64, n)
	copy(l[:nCols], inst.ColLower)
	copy(u[:nCols], inst.ColUpper)
	copy(c[:nCols], inst.ColObj)
	for i := 0; i < m; i++ {
		l[nCols+i] = inst.RowLower[i]
		u[nCols+i] = inst.RowUpper[i]
	}
	kind := make([]boundKind, n)
	for j := 0; j < n; j++ {
		kind[j] = classify(l[j], u[j])
	}

	y := make([]float64, n)   // primal
	s := make([]float64, n)   // y - l, tracked only where finite
	t := make([]float64, n)   // u - y, tracked only where finite
	z := make([]float64, n)   // dual for lower bound
	w := make([]float64, n)   // dual for upper bound
	pi := make([]float64, m)  // equality multipliers

	for j := 0; j < n; j++ {
		switch kind[j] {
		case boxed:
			y[j] = (l[j] + u[j]) / 2
			s[j] = y[j] - l[j]
			t[j] = u[j] - y[j]
			z[j], w[j] = 1, 1
		case lowerOnly:
			y[j] = l[j] + 1
			s[j] = y[j] - l[j]
			z[j] = 1
		case upperOnly:
			y[j] = u[j] - 1
			t[j] = u[j] - y[j]
			w[j] = 1
		case free:
			y[j] = 0
		}
	}

	for iter := 0; iter < maxIterations; iter++ {
		mu := dualityGap(kind, s, z, t, w) / float64(2*countFinite(kind))
		if mu < tol && residualNorm(A, y, m) < tol {
			break
		}

		// Diagonal scaling D_j = z_j/s_j + w_j/t_j restricted to finite
		// sides, per spec's normal-equations form
		// (W/Y + A diag(x/z) A^T) dy = r, specialised to box bounds.
		d := make([]float64, n)
		rd := make([]float64, n) // reduced dual residual, folded into rhs
		for j := 0; j < n; j++ {
			switch kind[j] {
			case boxed:
				d[j] = z[j]/s[j] + w[j]/t[j]
			case lowerOnly:
				d[j] = z[j] / s[j]
			case upperOnly:
				d[j] = w[j] / t[j]
			case free:
				d[j] = 1e-10 // tiny regularisation so free columns don't singularize D
			}
			dualRes := c[j] - rowDot(A, pi, j)
			switch kind[j] {
			case boxed:
				dualRes = dualRes - z[j] + w[j]
			case lowerOnly:
				dualRes = dualRes - z[j]
			case upperOnly:
				dualRes = dualRes + w[j]
			}
			rd[j] = dualRes
		}

		// Normal equations: (A * D^-1 * A^T) * dpi = A*D^-1*rd - (b - Ay),
		// b=0 here since the equality is homogeneous by construction.
		AD := mat.NewDense(m, n, nil)
		for j := 0; j < n; j++ {
			col := mat.Col(nil, j, A)
			for i := range col {
				col[i] /= d[j]
			}
			AD.SetCol(j, col)
		}
		normal := mat.NewDense(m, m, nil)
		normal.Mul(AD, A.T())

		rhs := make([]float64, m)
		ay := make([]float64, m)
		for i := 0; i < m; i++ {
			ay[i] = rowVecDot(A, y, i)
		}
		adrd := make([]float64, m)
		for i := 0; i < m; i++ {
			sum := 0.0
			for j := 0; j < n; j++ {
				sum += A.At(i, j) * rd[j] / d[j]
			}
			adrd[i] = sum
		}
		for i := 0; i < m; i++ {
			rhs[i] = adrd[i] - (0 - ay[i])
		}

		var chol mat.Cholesky
		symNormal := mat.NewSymDense(m, nil)
		for i := 0; i < m; i++ {
			for j := 0; j < m; j++ {
				symNormal.SetSym(i, j, normal.At(i, j))
			}
		}
		if ok := chol.Factorize(symNormal); !ok {
			return solver.Result{Status: solver.NumericFailure}, fmt.Errorf("ipm: normal equations not positive definite at iteration %d", iter)
		}
		dpiVec := mat.NewVecDense(m, nil)
		if err := chol.SolveVecTo(dpiVec, mat.NewVecDense(m, rhs)); err != nil {
			return solver.Result{Status: solver.NumericFailure}, fmt.Errorf("ipm: cholesky solve failed: %w", err)
		}
		dpi := dpiVec.RawVector().Data

		dy := make([]float64, n)
		for j := 0; j < n; j++ {
			dy[j] = (rowDot(A, dpi, j) - rd[j]) / d[j]
		}

		alpha := fractionToBoundary(kind, s, t, z, w, dy)
		for j := 0; j < n; j++ {
			y[j] += alpha * dy[j]
			switch kind[j] {
			case boxed:
				s[j] = y[j] - l[j]
				t[j] = u[j] - y[j]
				z[j] = mu / s[j]
				w[j] = mu / t[j]
			case lowerOnly:
				s[j] = y[j] - l[j]
				z[j] = mu / s[j]
			case upperOnly:
				t[j] = u[j] - y[j]
				w[j] = mu / t[j]
			}
		}
		for i := 0; i < m; i++ {
			pi[i] += alpha * dpi[i]
		}
	}

	if residualNorm(A, y, m) > 1e-4 {
		return solver.Result{Status: solver.NumericFailure}, nil
	}

	x := make([]float64, nCols)
	obj := 0.0
	for j := 0; j < nCols; j++ {
		x[j] = clamp(y[j], l[j], u[j])
		obj += c[j] * x[j]
	}
	return solver.Result{Status: solver.Optimal, X: x, ObjectiveVal: obj, Iterations: maxIterations}, nil
}

func clamp(v, lo, hi float64) float64 {
	if !math.IsInf(lo, -1) && v < lo {
		return lo
	}
	if !math.IsInf(hi, 1) && v > hi {
		return hi
	}
	return v
}

func countFinite(kind []boundKind) int {
	n := 0
	for _, k := range kind {
		switch k {
		case boxed:
			n += 2
		case lowerOnly, upperOnly:
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

func dualityGap(kind []boundKind, s, z, t, w []float64) float64 {
	sum := 0.0
	for j := range kind {
		switch kind[j] {
		case boxed:
			sum += s[j]*z[j] + t[j]*w[j]
		case lowerOnly:
			sum += s[j] * z[j]
		case upperOnly:
			sum += t[j] * w[j]
		}
	}
	return sum
}

func residualNorm(A *mat.Dense, y []float64, m int) float64 {
	norm := 0.0
	for i := 0; i < m; i++ {
		v := rowVecDot(A, y, i)
		norm += v * v
	}
	return math.Sqrt(norm)
}

func rowVecDot(A *mat.Dense, v []float64, row int) float64 {
	sum := 0.0
	_, n := A.Dims()
	for j := 0; j < n; j++ {
		sum += A.At(row, j) * v[j]
	}
	return sum
}

// rowDot computes column j of A^T dotted with v, i.e. Σ_i A[i][j]*v[i].
func rowDot(A *mat.Dense, v []float64, col int) float64 {
	sum := 0.0
	m, _ := A.Dims()
	for i := 0; i < m; i++ {
		sum += A.At(i, col) * v[i]
	}
	return sum
}

// fractionToBoundary scales the Newton step so no bounded variable or its
// dual overshoots its own feasible side, with the standard 0.995 safety
// margin.
func fractionToBoundary(kind []boundKind, s, t, z, w, dy []float64) float64 {
	const eta = 0.995
	alpha := 1.0
	for j := range kind {
		switch kind[j] {
		case boxed:
			if dy[j] < 0 && s[j] > 0 {
				alpha = math.Min(alpha, -eta*s[j]/dy[j])
			}
			if dy[j] > 0 && t[j] > 0 {
				alpha = math.Min(alpha, eta*t[j]/dy[j])
			}
		case lowerOnly:
			if dy[j] < 0 && s[j] > 0 {
				alpha = math.Min(alpha, -eta*s[j]/dy[j])
			}
		case upperOnly:
			if dy[j] > 0 && t[j] > 0 {
				alpha = math.Min(alpha, eta*t[j]/dy[j])
			}
		}
	}
	if alpha < 0 {
		return 0
	}
	return alpha
}
