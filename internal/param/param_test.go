package param

import (
	"testing"
	"time"

	"github.com/pywr-go/pywr/internal/calendar"
	"github.com/pywr-go/pywr/internal/metric"
	"github.com/stretchr/testify/require"
)

type fakeState struct {
	inflow map[int]float64
	ts     map[string]float64
}

func (f fakeState) NodeInflow(i int) (float64, error)     { return f.inflow[i], nil }
func (f fakeState) NodeOutflow(int) (float64, error)      { return 0, nil }
func (f fakeState) NodeVolume(int) (float64, error)       { return 0, nil }
func (f fakeState) NodeLoss(int) (float64, error)         { return 0, nil }
func (f fakeState) EdgeFlow(int) (float64, error)         { return 0, nil }
func (f fakeState) ParameterValue(int) (float64, error)   { return 0, nil }
func (f fakeState) TimeseriesValue(col string, _ metric.RowSelector) (float64, error) {
	return f.ts[col], nil
}

func ts(day int) calendar.Timestep {
	return calendar.Timestep{Index: day, Date: time.Date(2020, 1, 1+day, 0, 0, 0, 0, time.UTC), DayOfYearIdx: day}
}

func TestBuild_ClassifiesConstSimpleGeneral(t *testing.T) {
	c := NewConstant("c1", 5)
	daily, err := NewDailyProfile("d1", make([]float64, 365))
	require.NoError(t, err)

	generalMetric := metric.NodeInflow{NodeIdx: 0, NodeName: "n"}
	g := NewAggregated("g1", metric.AggSum, []metric.Metric{generalMetric})

	order, err := Build([]Parameter{c, daily, g})
	require.NoError(t, err)
	require.Equal(t, Const, order.Classes[0])
	require.Equal(t, Simple, order.Classes[1])
	require.Equal(t, General, order.Classes[2])
	require.ElementsMatch(t, []int{0}, order.ConstOrder)
	require.ElementsMatch(t, []int{1}, order.SimpleOrder)
	require.ElementsMatch(t, []int{2}, order.GeneralOrder)
}

func TestBuild_DependencyOrderingAndPropagation(t *testing.T) {
	// b depends on a via ParameterValue; a is Const, b should stay Const
	// too (no flow metric involved) but must still be ordered after a.
	a := NewConstant("a", 2)
	bDep := metric.ParameterValue{ParamIdx: 0, ParamName: "a"}
	b := NewAggregated("b", metric.AggSum, []metric.Metric{bDep})

	order, err := Build([]Parameter{a, b})
	require.NoError(t, err)
	require.Equal(t, Const, order.Classes[1])
	aPos, bPos := indexOf(order.ConstOrder, 0), indexOf(order.ConstOrder, 1)
	require.Less(t, aPos, bPos)
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func TestBuild_CircularDependencyDetected(t *testing.T) {
	aDep := metric.ParameterValue{ParamIdx: 1, ParamName: "b"}
	bDep := metric.ParameterValue{ParamIdx: 0, ParamName: "a"}
	a := NewAggregated("a", metric.AggSum, []metric.Metric{aDep})
	b := NewAggregated("b", metric.AggSum, []metric.Metric{bDep})

	_, err := Build([]Parameter{a, b})
	require.Error(t, err)
}

func TestDailyProfile_ReturnsCoefficientForDay(t *testing.T) {
	vals := make([]float64, 365)
	vals[10] = 42
	d, err := NewDailyProfile("d", vals)
	require.NoError(t, err)
	v, _, _, err := d.Compute(ts(10), fakeState{}, nil)
	require.NoError(t, err)
	require.Equal(t, 42.0, v)
}

func TestMonthlyProfile_StepMode(t *testing.T) {
	vals := make([]float64, 12)
	vals[0] = 7
	m, err := NewMonthlyProfile("m", vals, InterpStep)
	require.NoError(t, err)
	v, _, _, err := m.Compute(ts(0), fakeState{}, nil)
	require.NoError(t, err)
	require.Equal(t, 7.0, v)
}

func TestDelayParameter_LagsInputBySteps(t *testing.T) {
	input := metric.Constant{V: 15}
	d := NewDelayParameter("delay", input, 3, 1)
	internal := d.NewInternal()

	want := []float64{1, 1, 1, 15, 15}
	for i, w := range want {
		v, _, next, err := d.Compute(ts(i), fakeState{}, internal)
		require.NoError(t, err)
		require.Equal(t, w, v, "step %d", i)
		internal = next
	}
}

func TestDelayParameter_ZeroStepsIsPassthrough(t *testing.T) {
	d := NewDelayParameter("delay0", metric.Constant{V: 9}, 0, 0)
	v, _, _, err := d.Compute(ts(0), fakeState{}, d.NewInternal())
	require.NoError(t, err)
	require.Equal(t, 9.0, v)
}

func TestControlCurveIndex_PicksCorrectTier(t *testing.T) {
	prop := metric.Constant{V: 0.5}
	curves := []metric.Metric{metric.Constant{V: 0.8}, metric.Constant{V: 0.3}}
	p := NewControlCurveIndex("cci", prop, curves)
	v, _, _, err := p.Compute(ts(0), fakeState{}, nil)
	require.NoError(t, err)
	require.Equal(t, 1.0, v) // below curve[0]=0.8, above curve[1]=0.3
}

func TestInterpolated_ClampsAndInterpolates(t *testing.T) {
	p, err := NewInterpolated("interp", metric.Constant{V: 5}, []float64{0, 10}, []float64{0, 100})
	require.NoError(t, err)
	v, _, _, err := p.Compute(ts(0), fakeState{}, nil)
	require.NoError(t, err)
	require.InDelta(t, 50.0, v, 1e-9)
}

func TestThreshold_CrossesGE(t *testing.T) {
	p := NewThreshold("th", metric.Constant{V: 12}, metric.Constant{V: 10}, ThresholdGE, 1, 0)
	v, _, _, err := p.Compute(ts(0), fakeState{}, nil)
	require.NoError(t, err)
	require.Equal(t, 1.0, v)
}

func TestMuskingum_FirstStepPassesThrough(t *testing.T) {
	p := NewMuskingum("musk", metric.Constant{V: 20}, 1.0, 0.2, 1.0)
	v, _, next, err := p.Compute(ts(0), fakeState{}, p.NewInternal())
	require.NoError(t, err)
	require.Equal(t, 20.0, v)
	require.NotNil(t, next)
}
