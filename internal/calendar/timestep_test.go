package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_DailyThreeDays(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)

	tt, err := New(start, end, StepSpec{Kind: StepDays, N: 1})
	require.NoError(t, err)
	require.Equal(t, 3, tt.Len())
	require.True(t, tt.At(0).IsFirst)
	require.False(t, tt.At(1).IsFirst)
	require.InDelta(t, 1.0, tt.At(0).DurationDays, 1e-9)
}

func TestNew_MonthlyCadenceVariableDuration(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)

	tt, err := New(start, end, StepSpec{Kind: StepMonthly, N: 1})
	require.NoError(t, err)
	require.Equal(t, 3, tt.Len())
	require.InDelta(t, 31.0, tt.At(0).DurationDays, 1e-9) // January
	require.InDelta(t, 29.0, tt.At(1).DurationDays, 1e-9) // 2020 is a leap year
}

func TestNew_EndBeforeStart(t *testing.T) {
	start := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := New(start, end, StepSpec{Kind: StepDays, N: 1})
	require.Error(t, err)
}

func TestNew_InvalidStepN(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)
	_, err := New(start, end, StepSpec{Kind: StepDays, N: 0})
	require.Error(t, err)
}
