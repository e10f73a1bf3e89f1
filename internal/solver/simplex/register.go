package simplex

import "github.com/pywr-go/pywr/internal/solver"

func init() {
	solver.Register("simplex", func() solver.Solver { return Backend{} })
}
