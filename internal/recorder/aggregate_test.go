package recorder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pywr-go/pywr/internal/scenario"
)

func TestAggregatedScalar_DailyBucketAndPercentiles(t *testing.T) {
	a := NewAggregatedScalar("flows", "out", BucketDaily)
	idx := scenario.Index{SimulationID: 0}
	a.Push(idx, ts(0, "2020-01-01"), "flows", []string{"out"}, []float64{1})
	a.Push(idx, ts(1, "2020-01-01"), "flows", []string{"out"}, []float64{3})
	a.Push(idx, ts(2, "2020-01-02"), "flows", []string{"out"}, []float64{10})

	day1 := a.Summarize(0, "2020-01-01")
	require.Equal(t, 2, day1.Count)
	require.InDelta(t, 4.0, day1.Sum, 1e-9)
	require.InDelta(t, 2.0, day1.Mean, 1e-9)

	day2 := a.Summarize(0, "2020-01-02")
	require.Equal(t, 1, day2.Count)
	require.InDelta(t, 10.0, day2.Sum, 1e-9)

	empty := a.Summarize(0, "2020-03-03")
	require.Equal(t, Summary{}, empty)
}

func TestAggregatedScalar_IgnoresOtherSetsAndLabels(t *testing.T) {
	a := NewAggregatedScalar("flows", "out", BucketStep)
	idx := scenario.Index{SimulationID: 1}
	a.Push(idx, ts(0, "2020-01-01"), "storage", []string{"out"}, []float64{99})
	a.Push(idx, ts(0, "2020-01-01"), "flows", []string{"in"}, []float64{50})
	a.Push(idx, ts(0, "2020-01-01"), "flows", []string{"out"}, []float64{7})

	keys := a.Keys()
	require.Len(t, keys, 1)
	s := a.Summarize(keys[0].SimulationID, keys[0].Bucket)
	require.Equal(t, 1, s.Count)
	require.InDelta(t, 7.0, s.Sum, 1e-9)
}
