package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pywr-go/pywr/internal/pywrerr"
)

func TestStorageState_SeedAbsoluteAndProportional(t *testing.T) {
	var abs StorageState
	abs.Seed(false, 50, 200)
	require.Equal(t, 50.0, abs.Volume)

	var prop StorageState
	prop.Seed(true, 0.25, 200)
	require.Equal(t, 50.0, prop.Volume)
}

func TestStorageState_AdvanceClampsToBounds(t *testing.T) {
	s := StorageState{Volume: 10}
	err := s.Advance(-20, 1, 100)
	require.Equal(t, 0.0, s.Volume)
	require.Error(t, err, "a 10-unit overshoot far exceeds the 1e-4 tolerance at maxVolume=100")

	s = StorageState{Volume: 90}
	err = s.Advance(20, 1, 100)
	require.Equal(t, 100.0, s.Volume)
	require.Error(t, err)
}

func TestStorageState_AdvanceWithinToleranceReportsNoError(t *testing.T) {
	s := StorageState{Volume: 100}
	// Overshoots by 1e-8, well within the 1e-6*maxVolume=1e-4 tolerance at
	// maxVolume=100 -- ordinary solver rounding, not divergence.
	err := s.Advance(1e-8, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 100.0, s.Volume)
}

func TestStorageState_AdvanceBeyondToleranceReturnsStateError(t *testing.T) {
	s := StorageState{Volume: 100}
	err := s.Advance(1.0, 1, 100)
	require.Error(t, err)
	var se *pywrerr.StateError
	require.True(t, errors.As(err, &se))
	require.InDelta(t, 1.0, se.Delta, 1e-9)
	require.InDelta(t, 1e-4, se.Tolerance, 1e-12)
}

func TestStorageState_DrawFillBounds(t *testing.T) {
	s := StorageState{Volume: 40}
	lower, upper := s.DrawFillBounds(1, 100)
	require.InDelta(t, -40.0, lower, 1e-9)
	require.InDelta(t, 60.0, upper, 1e-9)
}

func TestRollingVirtualStorageState_EvictsOutsideWindow(t *testing.T) {
	r := NewRollingVirtualStorageState(3)
	r.Push(10)
	r.Push(10)
	r.Push(10)
	require.InDelta(t, 30.0, r.Depleted, 1e-9)
	r.Push(5) // evicts the first 10
	require.InDelta(t, 25.0, r.Depleted, 1e-9)
}

func TestRollingVirtualStorageState_WindowEqualToHorizonNeverEvicts(t *testing.T) {
	r := NewRollingVirtualStorageState(100)
	for i := 0; i < 10; i++ {
		r.Push(1)
	}
	require.InDelta(t, 10.0, r.Depleted, 1e-9)
	require.InDelta(t, 90.0, r.Remaining(100), 1e-9)
}

func TestDelayState_ZeroInitialFillReleasesFirst(t *testing.T) {
	d := NewDelayState(3, 7)
	require.Equal(t, 7.0, d.Peek())
	d.Advance(1)
	require.Equal(t, 7.0, d.Peek())
	d.Advance(2)
	require.Equal(t, 7.0, d.Peek())
	d.Advance(3)
	// fourth step: the value enqueued on the first Advance(1) call releases
	require.Equal(t, 1.0, d.Peek())
}
