package ipm

import "github.com/pywr-go/pywr/internal/solver"

func init() {
	solver.Register("ipm", func() solver.Solver { return Backend{} })
}
