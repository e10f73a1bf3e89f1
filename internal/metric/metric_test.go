package metric

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeState struct {
	inflow, outflow, volume, loss map[int]float64
	edgeFlow                      map[int]float64
	paramValue                    map[int]float64
	ts                            map[string]float64
}

func (f fakeState) NodeInflow(i int) (float64, error)  { return f.inflow[i], nil }
func (f fakeState) NodeOutflow(i int) (float64, error) { return f.outflow[i], nil }
func (f fakeState) NodeVolume(i int) (float64, error)  { return f.volume[i], nil }
func (f fakeState) NodeLoss(i int) (float64, error)    { return f.loss[i], nil }
func (f fakeState) EdgeFlow(i int) (float64, error)    { return f.edgeFlow[i], nil }
func (f fakeState) ParameterValue(i int) (float64, error) {
	return f.paramValue[i], nil
}
func (f fakeState) TimeseriesValue(col string, _ RowSelector) (float64, error) {
	return f.ts[col], nil
}

func TestAggregatedMetric_Ops(t *testing.T) {
	sr := fakeState{}
	ms := []Metric{Constant{V: 2}, Constant{V: 4}, Constant{V: 8}}

	sum, err := AggregatedMetric{Op: AggSum, Metrics: ms}.Eval(sr)
	require.NoError(t, err)
	require.Equal(t, 14.0, sum)

	prod, _ := AggregatedMetric{Op: AggProduct, Metrics: ms}.Eval(sr)
	require.Equal(t, 64.0, prod)

	min, _ := AggregatedMetric{Op: AggMin, Metrics: ms}.Eval(sr)
	require.Equal(t, 2.0, min)

	max, _ := AggregatedMetric{Op: AggMax, Metrics: ms}.Eval(sr)
	require.Equal(t, 8.0, max)

	mean, _ := AggregatedMetric{Op: AggMean, Metrics: ms}.Eval(sr)
	require.InDelta(t, 14.0/3.0, mean, 1e-9)
}

func TestNodeMetrics_Eval(t *testing.T) {
	sr := fakeState{
		inflow:  map[int]float64{0: 10},
		outflow: map[int]float64{0: 7},
		volume:  map[int]float64{1: 500},
		loss:    map[int]float64{2: 1.5},
	}
	v, err := NodeInflow{NodeIdx: 0, NodeName: "catchment"}.Eval(sr)
	require.NoError(t, err)
	require.Equal(t, 10.0, v)

	v, _ = NodeOutflow{NodeIdx: 0, NodeName: "catchment"}.Eval(sr)
	require.Equal(t, 7.0, v)

	v, _ = NodeVolume{NodeIdx: 1, NodeName: "reservoir"}.Eval(sr)
	require.Equal(t, 500.0, v)

	v, _ = NodeLoss{NodeIdx: 2, NodeName: "works"}.Eval(sr)
	require.Equal(t, 1.5, v)
}

func TestSet_PullAll(t *testing.T) {
	s := Set{Name: "demo", Metrics: []Metric{Constant{V: 1}, Constant{V: 2}}}
	vals, err := s.PullAll(fakeState{})
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2}, vals)
}
