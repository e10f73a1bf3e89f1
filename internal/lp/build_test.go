package lp

import (
	"math"
	"testing"

	"github.com/pywr-go/pywr/internal/network"
	"github.com/stretchr/testify/require"
)

func linearChain(t *testing.T) *network.Network {
	n := network.New()
	in, err := n.AddNode(network.Node{Name: "in", Kind: network.Input, MaxFlow: network.ParamRef{Const: 10}})
	require.NoError(t, err)
	link, err := n.AddNode(network.Node{Name: "link", Kind: network.Link})
	require.NoError(t, err)
	out, err := n.AddNode(network.Node{Name: "out", Kind: network.Output, MaxFlow: network.ParamRef{Const: 10}, Cost: network.ParamRef{Const: -10}})
	require.NoError(t, err)
	_, err = n.AddEdge(in, link, "", "")
	require.NoError(t, err)
	_, err = n.AddEdge(link, out, "", "")
	require.NoError(t, err)
	return n
}

func TestBuild_LinearChain(t *testing.T) {
	n := linearChain(t)
	tmpl, topo, err := Build(n)
	require.NoError(t, err)
	require.Equal(t, 2, tmpl.NCols) // one column per edge
	require.Len(t, topo.Accessors, 3)

	inAcc := topo.Accessors[0]
	require.Equal(t, 10.0, tmpl.RowUpper[inAcc.FlowRow])

	linkAcc := topo.Accessors[1]
	require.NotEqual(t, -1, linkAcc.FlowRow)
	require.Len(t, linkAcc.InflowCols, 1)
	require.Len(t, linkAcc.OutflowCols, 1)

	outAcc := topo.Accessors[2]
	require.Equal(t, -10.0, tmpl.ColObj[outAcc.CostCols[0]])
}

func TestBuild_Storage(t *testing.T) {
	n := network.New()
	in, _ := n.AddNode(network.Node{Name: "in", Kind: network.Catchment, MinFlow: network.ParamRef{Const: 5}, MaxFlow: network.ParamRef{Const: 5}})
	res, _ := n.AddNode(network.Node{Name: "res", Kind: network.Storage, MaxVolume: network.ParamRef{Const: 100}})
	out, _ := n.AddNode(network.Node{Name: "out", Kind: network.Output, MaxFlow: network.ParamRef{Const: 10}})
	_, err := n.AddEdge(in, res, "", "")
	require.NoError(t, err)
	_, err = n.AddEdge(res, out, "", "")
	require.NoError(t, err)

	tmpl, topo, err := Build(n)
	require.NoError(t, err)
	resAcc := topo.Accessors[res]
	require.True(t, resAcc.IsStorage)
	require.NotEqual(t, -1, resAcc.FlowRow)
	require.Equal(t, math.Inf(-1), tmpl.RowLower[resAcc.FlowRow])
	require.Equal(t, math.Inf(1), tmpl.RowUpper[resAcc.FlowRow])
}

func TestBuild_PiecewiseLink(t *testing.T) {
	n := network.New()
	in, _ := n.AddNode(network.Node{Name: "in", Kind: network.Input, MaxFlow: network.ParamRef{Const: 20}})
	pw, _ := n.AddNode(network.Node{Name: "pw", Kind: network.PiecewiseLink, Steps: []network.PiecewiseStep{
		{Cost: network.ParamRef{Const: 1}, MaxFlow: network.ParamRef{Const: 5}},
		{Cost: network.ParamRef{Const: 10}, MaxFlow: network.ParamRef{Const: 100}},
	}})
	out, _ := n.AddNode(network.Node{Name: "out", Kind: network.Output, MaxFlow: network.ParamRef{Const: 20}})
	_, err := n.AddEdge(in, pw, "", "")
	require.NoError(t, err)
	_, err = n.AddEdge(pw, out, "", "")
	require.NoError(t, err)

	tmpl, topo, err := Build(n)
	require.NoError(t, err)
	pwAcc := topo.Accessors[pw]
	require.Len(t, pwAcc.Tranches, 2)
	require.Equal(t, 5.0, tmpl.ColUpper[pwAcc.Tranches[0].Col])
	require.Equal(t, 1.0, tmpl.ColObj[pwAcc.Tranches[0].Col])
	require.Equal(t, 10.0, tmpl.ColObj[pwAcc.Tranches[1].Col])
}

func TestBuild_AggregatedExclusive(t *testing.T) {
	n := network.New()
	in, _ := n.AddNode(network.Node{Name: "in", Kind: network.Input, MaxFlow: network.ParamRef{Const: 10}})
	a, _ := n.AddNode(network.Node{Name: "a", Kind: network.Output, MaxFlow: network.ParamRef{Const: 5}})
	b, _ := n.AddNode(network.Node{Name: "b", Kind: network.Output, MaxFlow: network.ParamRef{Const: 5}})
	_, err := n.AddEdge(in, a, "", "")
	require.NoError(t, err)
	_, err = n.AddEdge(in, b, "", "")
	require.NoError(t, err)
	_, err = n.AddNode(network.Node{
		Name: "excl", Kind: network.Aggregated,
		AggregatedNodes: []string{"a", "b"},
		Exclusive:       network.ExclusiveRelationship{Enabled: true, MinActive: 0, MaxActive: 1},
	})
	require.NoError(t, err)

	// a and b are Output nodes: their "representative flow column" is
	// their inflow column, not outflow — expandAggregated requires
	// exactly one OutflowCol, so this network should fail to build,
	// documenting the exclusivity simplification.
	_, _, err = Build(n)
	require.Error(t, err)
}

func TestBuild_RiverSplit(t *testing.T) {
	n := network.New()
	in, _ := n.AddNode(network.Node{Name: "in", Kind: network.Input, MaxFlow: network.ParamRef{Const: 10}})
	split, _ := n.AddNode(network.Node{Name: "split", Kind: network.RiverSplit, Splits: []network.RiverSplitTarget{
		{Slot: "left", Factor: network.ParamRef{Const: 0.6}},
		{Slot: "right", Factor: network.ParamRef{Const: 0.4}},
	}})
	left, _ := n.AddNode(network.Node{Name: "left", Kind: network.Output, MaxFlow: network.ParamRef{Const: 10}})
	right, _ := n.AddNode(network.Node{Name: "right", Kind: network.Output, MaxFlow: network.ParamRef{Const: 10}})
	_, err := n.AddEdge(in, split, "", "")
	require.NoError(t, err)
	_, err = n.AddEdge(split, left, "left", "")
	require.NoError(t, err)
	_, err = n.AddEdge(split, right, "right", "")
	require.NoError(t, err)

	_, topo, err := Build(n)
	require.NoError(t, err)
	require.Len(t, topo.Accessors[split].SplitCols, 2)
	require.Len(t, topo.Accessors[split].SplitEntries, 1)
}
