// Package solver defines the pluggable LP/MILP backend contract and a
// name-keyed registry, mirroring the teacher's plugin pattern (see
// internal/solver/simplex and internal/solver/ipm for the two built-ins).
package solver

import (
	"fmt"

	"github.com/pywr-go/pywr/internal/lp"
)

// Status classifies the outcome of a Solve call.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
	NumericFailure
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case NumericFailure:
		return "numeric_failure"
	default:
		return "unknown"
	}
}

// Result is one solve's outcome: the resolved column vector and status.
// X is nil unless Status == Optimal.
type Result struct {
	Status       Status
	X            []float64
	ObjectiveVal float64
	Iterations   int
}

// Handle is solver-specific warm-start/workspace state created by Build and
// passed to every subsequent Solve call, letting a backend reuse a
// factorization or basis across solves. The simulation engine builds one
// per worker and reuses it for every scenario that worker runs.
type Handle interface{}

// Solver is the interface every LP backend implements. Build is called
// once per engine worker against the compiled Template; Solve is called
// once per timestep against the current scenario's Instance.
type Solver interface {
	Name() string
	Build(tmpl *lp.Template) (Handle, error)
	Solve(h Handle, inst *lp.Instance) (Result, error)
}

// IntegerSolver is implemented by backends that can additionally respect
// ColIsBinary
// columns exactly rather than relaxing them to continuous [0,1].
type IntegerSolver interface {
	Solver
	SolveInteger(h Handle, inst *lp.Instance, binaryCols []int) (Result, error)
}

// Factory constructs a fresh Solver instance, e.g. so each scenario
// worker can hold its own handle-free Solver value if the backend is not
// itself safe to share.
type Factory func() Solver

var registry = map[string]Factory{}

// Register adds a named backend to the registry. Backends register
// themselves from an init() in their own package so importing the
// backend package for its side effect is enough to make it available,
// without internal/solver needing to import every backend directly.
func Register(name string, f Factory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("solver: backend %q already registered", name))
	}
	registry[name] = f
}

// New looks up a registered backend by name and constructs a fresh
// instance.
func New(name string) (Solver, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("solver: unknown backend %q", name)
	}
	return f(), nil
}

// Names lists every registered backend, for CLI help text and config
// validation.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}
