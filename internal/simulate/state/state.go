// Package state implements the small stateful machines the simulator
// carries between timesteps for storage-like and memory-like nodes:
// running volume, a rolling depletion window, and a fixed-lag FIFO. Each
// type is a plain value-carrying struct with no dependency on
// internal/network or internal/lp, so internal/simulate can embed one per
// node per scenario without any import cycle.
package state

import (
	"math"

	"github.com/pywr-go/pywr/internal/pywrerr"
)

// StorageState tracks a Storage/PiecewiseStorage/VirtualStorage node's
// current volume across the run. The very first timestep seeds Volume from
// InitialVolume (absolute or proportional-to-MaxVolume, spec §4.5); every
// following timestep advances it by the LP-resolved net inflow rate for the
// step that just solved.
type StorageState struct {
	Volume float64
}

// Seed resolves the initial volume from either an absolute value or a
// proportion of maxVolume, per network.InitialVolume's two kinds.
func (s *StorageState) Seed(proportional bool, value, maxVolume float64) {
	if proportional {
		s.Volume = value * maxVolume
	} else {
		s.Volume = value
	}
}

// Advance applies one step's resolved net inflow rate (Σin - Σout) over
// duration dt, clamping the result into [0, maxVolume] to absorb solver
// rounding at the bounds rather than letting it drift outside the physical
// range. A pre-clamp excursion beyond a 1e-6*maxVolume tolerance is not
// ordinary solver rounding but numerical divergence between the LP solution
// and the state update, and is reported as a *pywrerr.StateError; the
// volume is still clamped either way so the run can continue. Ctx is left
// zero-valued here since this package has no node name or timestep to
// attach; callers fill it in before surfacing the error.
func (s *StorageState) Advance(netInflowRate, dt, maxVolume float64) error {
	s.Volume += netInflowRate * dt

	tol := math.Abs(1e-6 * maxVolume)
	var delta float64
	switch {
	case s.Volume < -tol:
		delta = -s.Volume
	case s.Volume > maxVolume+tol:
		delta = s.Volume - maxVolume
	}

	if s.Volume < 0 {
		s.Volume = 0
	}
	if s.Volume > maxVolume {
		s.Volume = maxVolume
	}

	if delta != 0 {
		return &pywrerr.StateError{Tolerance: tol, Delta: delta}
	}
	return nil
}

// DrawFillBounds computes the LP row bounds spec §4.5 assigns a storage
// node's draw/fill row for the step about to be solved: net inflow rate is
// bounded so volume cannot go negative (lower bound) or exceed capacity
// (upper bound) once integrated over dt.
func (s *StorageState) DrawFillBounds(dt, maxVolume float64) (lower, upper float64) {
	if dt <= 0 {
		return math.Inf(-1), math.Inf(1)
	}
	return -s.Volume / dt, (maxVolume - s.Volume) / dt
}

// RollingVirtualStorageState tracks a fixed-length window of per-step
// depletions and their running sum, so a RollingVirtualStorage node's
// available capacity reflects only the last VSWindow steps rather than the
// whole run (spec §3/§4.5). A window equal to the run horizon degenerates
// to a plain VirtualStorage's monotonic depletion, since nothing ever falls
// out of the window.
type RollingVirtualStorageState struct {
	Window   int
	buf      []float64
	pos      int
	filled   int
	Depleted float64 // running sum of buf's contents
}

// NewRollingVirtualStorageState allocates the ring buffer for a window of
// the given length. A non-positive window is treated as length 1.
func NewRollingVirtualStorageState(window int) *RollingVirtualStorageState {
	if window <= 0 {
		window = 1
	}
	return &RollingVirtualStorageState{Window: window, buf: make([]float64, window)}
}

// Push records this step's depletion (Σ factor_i * outflow_i * dt),
// evicting the oldest step's contribution once the window is full.
func (r *RollingVirtualStorageState) Push(amount float64) {
	if r.filled == r.Window {
		r.Depleted -= r.buf[r.pos]
	} else {
		r.filled++
	}
	r.buf[r.pos] = amount
	r.Depleted += amount
	r.pos = (r.pos + 1) % r.Window
}

// Remaining returns the capacity left in the window given maxVolume.
func (r *RollingVirtualStorageState) Remaining(maxVolume float64) float64 {
	return maxVolume - r.Depleted
}

// DelayState is a fixed-lag FIFO: flow pushed at step t is dequeued at step
// t+DelaySteps. A zero-length delay is not represented by this type at all
// (spec's boundary behaviour treats Delay(0) as a plain Link, wired
// directly in internal/lp's build-time balance row).
type DelayState struct {
	Steps int
	buf   []float64
	pos   int
}

// NewDelayState allocates the ring buffer, pre-filled with initial so the
// first Steps timesteps dequeue that value exactly as spec requires.
func NewDelayState(steps int, initial float64) *DelayState {
	buf := make([]float64, steps)
	for i := range buf {
		buf[i] = initial
	}
	return &DelayState{Steps: steps, buf: buf}
}

// Peek returns the value scheduled to release this step, without
// advancing the ring. The LP's delay outflow column bound must be pinned
// to this value before the solve runs.
func (d *DelayState) Peek() float64 {
	return d.buf[d.pos]
}

// Advance records this step's resolved inflow for release Steps timesteps
// from now and moves the ring forward. Called after the solve, once the
// step's actual inflow is known.
func (d *DelayState) Advance(inflow float64) {
	d.buf[d.pos] = inflow
	d.pos = (d.pos + 1) % d.Steps
}
