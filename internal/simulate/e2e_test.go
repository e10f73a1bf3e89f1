package simulate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pywr-go/pywr/internal/calendar"
	"github.com/pywr-go/pywr/internal/lp"
	"github.com/pywr-go/pywr/internal/metric"
	"github.com/pywr-go/pywr/internal/network"
	"github.com/pywr-go/pywr/internal/param"
	"github.com/pywr-go/pywr/internal/scenario"
	_ "github.com/pywr-go/pywr/internal/solver/simplex"
)

func days(n int) (*calendar.Timestepper, error) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, n-1)
	return calendar.New(start, end, calendar.StepSpec{Kind: calendar.StepDays, N: 1})
}

func singleScenarioGrid(t *testing.T) *scenario.Grid {
	g, err := scenario.Build([]scenario.Group{{Name: "base", Size: 1}}, nil)
	require.NoError(t, err)
	return g
}

type recordingSink struct {
	pushes []float64
}

func (r *recordingSink) Push(_ scenario.Index, _ calendar.Timestep, _ string, _ []string, values []float64) {
	r.pushes = append(r.pushes, values...)
}

// trancheFlow reads a PiecewiseLink node's i-th tranche column directly.
// There is no metric.Metric variant for this since a tranche is an
// internal LP column, not an edge or a node's own inflow/outflow; this
// test package can reach scenarioState's unexported colVal/topo directly
// since it lives in the same package.
type trancheFlow struct {
	nodeIdx int
	tranche int
}

func (t trancheFlow) Eval(sr metric.StateReader) (float64, error) {
	ss := sr.(*scenarioState)
	return ss.colVal(ss.topo.Accessors[t.nodeIdx].Tranches[t.tranche].Col), nil
}
func (t trancheFlow) Kind() string { return "trancheFlow" }

func mustRun(t *testing.T, net *network.Network, steps *calendar.Timestepper, sink Sink) *RunResult {
	tmpl, topo, err := lp.Build(net)
	require.NoError(t, err)
	order, err := param.Build(nil)
	require.NoError(t, err)

	eng, err := NewEngine(Config{
		Net:        net,
		Tmpl:       tmpl,
		Topo:       topo,
		Steps:      steps,
		Params:     nil,
		Order:      order,
		SolverName: "simplex",
		Threads:    1,
		Sink:       sink,
	})
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), singleScenarioGrid(t))
	require.NoError(t, err)
	return res
}

// TestEngine_LinearChain runs spec §8 scenario 1 verbatim:
// input(max=10,cost=0) -> link -> output(max=10,cost=-10), 3 days: flow is
// 10 on every day.
func TestEngine_LinearChain(t *testing.T) {
	n := network.New()
	in, _ := n.AddNode(network.Node{Name: "in", Kind: network.Input, MaxFlow: network.ParamRef{Const: 10}})
	link, _ := n.AddNode(network.Node{Name: "link", Kind: network.Link})
	out, _ := n.AddNode(network.Node{Name: "out", Kind: network.Output, MaxFlow: network.ParamRef{Const: 10}, Cost: network.ParamRef{Const: -10}})
	edge1, err := n.AddEdge(in, link, "", "")
	require.NoError(t, err)
	_, err = n.AddEdge(link, out, "", "")
	require.NoError(t, err)

	n.MetricSets = []metric.Set{{Name: "flow", Metrics: []metric.Metric{metric.EdgeFlow{EdgeIdx: edge1}}}}

	steps, err := days(3)
	require.NoError(t, err)

	sink := &recordingSink{}
	res := mustRun(t, n, steps, sink)
	require.False(t, res.Failed())
	require.Len(t, res.Scenarios, 1)
	require.True(t, res.Scenarios[0].Completed)

	require.Len(t, sink.pushes, 3)
	for day, flow := range sink.pushes {
		require.InDelta(t, 10.0, flow, 1e-6, "day %d", day)
	}
}

// TestEngine_StorageBalance runs spec §8 scenario 2 verbatim:
// input(max=9) -> storage(init=500,max=1000,cost=-1) -> output(max=10,
// cost=-10), 365 days: storage decreases monotonically by 1/day and ends
// at 500-365=135, since output's cost dominates storage's own and always
// draws its full 10/day while only 9/day refills.
func TestEngine_StorageBalance(t *testing.T) {
	n := network.New()
	in, _ := n.AddNode(network.Node{Name: "in", Kind: network.Input, MaxFlow: network.ParamRef{Const: 9}})
	res, _ := n.AddNode(network.Node{
		Name: "res", Kind: network.Storage,
		MaxVolume:     network.ParamRef{Const: 1000},
		InitialVolume: network.InitialVolume{Kind: network.Absolute, Value: 500},
		Cost:          network.ParamRef{Const: -1},
	})
	out, _ := n.AddNode(network.Node{Name: "out", Kind: network.Output, MaxFlow: network.ParamRef{Const: 10}, Cost: network.ParamRef{Const: -10}})
	_, err := n.AddEdge(in, res, "", "")
	require.NoError(t, err)
	_, err = n.AddEdge(res, out, "", "")
	require.NoError(t, err)

	n.MetricSets = []metric.Set{{Name: "volume", Metrics: []metric.Metric{metric.NodeVolume{NodeIdx: res, NodeName: "res"}}}}

	steps, err := days(365)
	require.NoError(t, err)

	sink := &recordingSink{}
	result := mustRun(t, n, steps, sink)
	require.False(t, result.Failed())

	require.Len(t, sink.pushes, 365)
	for day := 1; day < len(sink.pushes); day++ {
		require.InDelta(t, sink.pushes[day-1]-1, sink.pushes[day], 1e-6, "day %d", day)
	}
	require.InDelta(t, 499.0, sink.pushes[0], 1e-6)
	require.InDelta(t, 135.0, sink.pushes[len(sink.pushes)-1], 1e-6)
}

// TestEngine_PiecewiseLink runs spec §8 scenario 3 verbatim: a
// PiecewiseLink with tranches [(cost=1,max=1),(cost=5,max=3),
// (cost=15,max=inf)] fed by 15 units of supply against a demand cost of
// -10: flows 1, 3, 11 on the three tranches, cheapest first, totaling 15.
func TestEngine_PiecewiseLink(t *testing.T) {
	n := network.New()
	in, _ := n.AddNode(network.Node{Name: "in", Kind: network.Input, MaxFlow: network.ParamRef{Const: 15}})
	pw, _ := n.AddNode(network.Node{Name: "pw", Kind: network.PiecewiseLink, Steps: []network.PiecewiseStep{
		{Cost: network.ParamRef{Const: 1}, MaxFlow: network.ParamRef{Const: 1}},
		{Cost: network.ParamRef{Const: 5}, MaxFlow: network.ParamRef{Const: 3}},
		{Cost: network.ParamRef{Const: 15}, MaxFlow: network.ParamRef{}}, // literal zero reads as unbounded
	}})
	out, _ := n.AddNode(network.Node{Name: "out", Kind: network.Output, MaxFlow: network.ParamRef{Const: 100}, Cost: network.ParamRef{Const: -10}})
	_, err := n.AddEdge(in, pw, "", "")
	require.NoError(t, err)
	_, err = n.AddEdge(pw, out, "", "")
	require.NoError(t, err)

	n.MetricSets = []metric.Set{{Name: "tranches", Metrics: []metric.Metric{
		trancheFlow{nodeIdx: pw, tranche: 0},
		trancheFlow{nodeIdx: pw, tranche: 1},
		trancheFlow{nodeIdx: pw, tranche: 2},
		metric.NodeInflow{NodeIdx: out, NodeName: "out"},
	}}}

	steps, err := days(1)
	require.NoError(t, err)
	sink := &recordingSink{}
	res := mustRun(t, n, steps, sink)
	require.False(t, res.Failed())

	require.Len(t, sink.pushes, 4)
	require.InDelta(t, 1.0, sink.pushes[0], 1e-6, "tranche 1")
	require.InDelta(t, 3.0, sink.pushes[1], 1e-6, "tranche 2")
	require.InDelta(t, 11.0, sink.pushes[2], 1e-6, "tranche 3")
	require.InDelta(t, 15.0, sink.pushes[3], 1e-6, "total")
}

// TestEngine_RollingLicence runs spec §8 scenario 4 verbatim: a 30-day
// rolling licence capped at 300 monitoring a 15-unit supply against a
// 10/day demand: demand holds at 10 until the cumulative window hits 300
// on day 30, then the licence forces it to 0 on day 31.
func TestEngine_RollingLicence(t *testing.T) {
	n := network.New()
	in, _ := n.AddNode(network.Node{Name: "in", Kind: network.Input, MaxFlow: network.ParamRef{Const: 15}})
	out, _ := n.AddNode(network.Node{Name: "out", Kind: network.Output, MaxFlow: network.ParamRef{Const: 10}, Cost: network.ParamRef{Const: -10}})
	_, err := n.AddEdge(in, out, "", "")
	require.NoError(t, err)
	_, err = n.AddNode(network.Node{
		Name: "licence", Kind: network.RollingVirtualStorage,
		VSNodes: []string{"in"}, VSWindow: 30, MaxVolume: network.ParamRef{Const: 300},
	})
	require.NoError(t, err)

	n.MetricSets = []metric.Set{{Name: "demand", Metrics: []metric.Metric{metric.NodeInflow{NodeIdx: out, NodeName: "out"}}}}

	steps, err := days(31)
	require.NoError(t, err)
	sink := &recordingSink{}
	res := mustRun(t, n, steps, sink)
	require.False(t, res.Failed())

	require.Len(t, sink.pushes, 31)
	for day := 0; day < 30; day++ {
		require.InDelta(t, 10.0, sink.pushes[day], 1e-6, "day %d", day+1)
	}
	require.InDelta(t, 0.0, sink.pushes[30], 1e-6, "day 31")
}

// TestEngine_MutualExclusivity runs spec §8 scenario 5 verbatim: two
// parallel links, each capacity 10, with demand costs -15 and -10: only
// the higher-value link (cost -15) carries flow; the other is exactly 0
// every step.
func TestEngine_MutualExclusivity(t *testing.T) {
	n := network.New()
	in, _ := n.AddNode(network.Node{Name: "in", Kind: network.Input, MaxFlow: network.ParamRef{Const: 10}})
	a, _ := n.AddNode(network.Node{Name: "a", Kind: network.Link})
	b, _ := n.AddNode(network.Node{Name: "b", Kind: network.Link})
	outA, _ := n.AddNode(network.Node{Name: "outA", Kind: network.Output, MaxFlow: network.ParamRef{Const: 10}, Cost: network.ParamRef{Const: -15}})
	outB, _ := n.AddNode(network.Node{Name: "outB", Kind: network.Output, MaxFlow: network.ParamRef{Const: 10}, Cost: network.ParamRef{Const: -10}})
	_, err := n.AddEdge(in, a, "", "")
	require.NoError(t, err)
	_, err = n.AddEdge(in, b, "", "")
	require.NoError(t, err)
	_, err = n.AddEdge(a, outA, "", "")
	require.NoError(t, err)
	_, err = n.AddEdge(b, outB, "", "")
	require.NoError(t, err)
	_, err = n.AddNode(network.Node{
		Name: "excl", Kind: network.Aggregated,
		AggregatedNodes: []string{"a", "b"},
		Exclusive:       network.ExclusiveRelationship{Enabled: true, MinActive: 0, MaxActive: 1},
	})
	require.NoError(t, err)

	n.MetricSets = []metric.Set{{Name: "branches", Metrics: []metric.Metric{
		metric.NodeOutflow{NodeIdx: a, NodeName: "a"},
		metric.NodeOutflow{NodeIdx: b, NodeName: "b"},
	}}}

	steps, err := days(2)
	require.NoError(t, err)
	sink := &recordingSink{}
	res := mustRun(t, n, steps, sink)
	require.False(t, res.Failed())

	require.Len(t, sink.pushes, 4) // 2 metrics x 2 days
	for day := 0; day < 2; day++ {
		flowA, flowB := sink.pushes[day*2], sink.pushes[day*2+1]
		require.InDelta(t, 10.0, flowA, 1e-6, "day %d link a", day)
		require.InDelta(t, 0.0, flowB, 1e-6, "day %d link b", day)
	}
}

// TestEngine_Delay runs spec §8 scenario 6 verbatim: Delay(3) of a
// catchment's 15-unit flow into a demand: outflow is the delay's seeded
// initial value for the first 3 steps, then 15.
func TestEngine_Delay(t *testing.T) {
	const delayInitial = 2.0

	n := network.New()
	in, _ := n.AddNode(network.Node{Name: "in", Kind: network.Catchment, MinFlow: network.ParamRef{Const: 15}, MaxFlow: network.ParamRef{Const: 15}})
	d, _ := n.AddNode(network.Node{Name: "d", Kind: network.Delay, DelaySteps: 3, DelayInitial: delayInitial})
	out, _ := n.AddNode(network.Node{Name: "out", Kind: network.Output, MaxFlow: network.ParamRef{Const: 20}, Cost: network.ParamRef{Const: -1}})
	_, err := n.AddEdge(in, d, "", "")
	require.NoError(t, err)
	_, err = n.AddEdge(d, out, "", "")
	require.NoError(t, err)

	n.MetricSets = []metric.Set{{Name: "delayed", Metrics: []metric.Metric{metric.NodeOutflow{NodeIdx: d, NodeName: "d"}}}}

	steps, err := days(5)
	require.NoError(t, err)
	sink := &recordingSink{}
	res := mustRun(t, n, steps, sink)
	require.False(t, res.Failed())

	require.Len(t, sink.pushes, 5)
	for day := 0; day < 3; day++ {
		require.InDelta(t, delayInitial, sink.pushes[day], 1e-6, "day %d", day)
	}
	for day := 3; day < 5; day++ {
		require.InDelta(t, 15.0, sink.pushes[day], 1e-6, "day %d", day)
	}
}

// TestEngine_ContextCancellation checks that an already-cancelled context
// stops the feeder before it ever dispatches a scenario to a worker: no
// ScenarioResult is produced for any scenario in the grid.
func TestEngine_ContextCancellation(t *testing.T) {
	n := network.New()
	in, _ := n.AddNode(network.Node{Name: "in", Kind: network.Input, MaxFlow: network.ParamRef{Const: 10}})
	out, _ := n.AddNode(network.Node{Name: "out", Kind: network.Output, MaxFlow: network.ParamRef{Const: 10}, Cost: network.ParamRef{Const: -10}})
	_, err := n.AddEdge(in, out, "", "")
	require.NoError(t, err)

	steps, err := days(10)
	require.NoError(t, err)

	tmpl, topo, err := lp.Build(n)
	require.NoError(t, err)
	order, err := param.Build(nil)
	require.NoError(t, err)

	eng, err := NewEngine(Config{Net: n, Tmpl: tmpl, Topo: topo, Steps: steps, Order: order, SolverName: "simplex", Threads: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := eng.Run(ctx, singleScenarioGrid(t))
	require.NoError(t, err)
	require.Empty(t, res.Scenarios)
}

// TestEngine_SinkStaysEmptyWithoutMetricSets checks that a network with no
// MetricSets pushes nothing to the Sink.
func TestEngine_SinkStaysEmptyWithoutMetricSets(t *testing.T) {
	// No MetricSets are attached in this minimal fixture, so the sink
	// should stay empty; this documents that metric wiring is opt-in via
	// Network.MetricSets, not automatic.
	n := network.New()
	in, _ := n.AddNode(network.Node{Name: "in", Kind: network.Input, MaxFlow: network.ParamRef{Const: 10}})
	out, _ := n.AddNode(network.Node{Name: "out", Kind: network.Output, MaxFlow: network.ParamRef{Const: 10}, Cost: network.ParamRef{Const: -10}})
	_, err := n.AddEdge(in, out, "", "")
	require.NoError(t, err)

	steps, err := days(2)
	require.NoError(t, err)

	sink := &recordingSink{}
	res := mustRun(t, n, steps, sink)
	require.False(t, res.Failed())
	require.Empty(t, sink.pushes)
}
