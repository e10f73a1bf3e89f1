package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pywr-go/pywr/internal/network"
	"github.com/pywr-go/pywr/internal/pywrerr"
)

func rawNodes(t *testing.T, objs ...map[string]any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(objs))
	for i, o := range objs {
		b, err := json.Marshal(o)
		require.NoError(t, err)
		out[i] = b
	}
	return out
}

func TestBuild_LinearChain(t *testing.T) {
	doc := &ModelDoc{
		Calendar: CalendarDoc{Start: "2020-01-01", End: "2020-01-03", Step: StepDoc{Kind: "days", N: 1}},
		Nodes: rawNodes(t,
			map[string]any{"type": "input", "name": "in", "max_flow": map[string]any{"const": 10.0}},
			map[string]any{"type": "link", "name": "mid"},
			map[string]any{"type": "output", "name": "out", "max_flow": map[string]any{"const": 10.0}, "cost": map[string]any{"const": -10.0}},
		),
		Edges: []EdgeDoc{{From: "in", To: "mid"}, {From: "mid", To: "out"}},
		MetricSets: []MetricSetDoc{
			{Name: "flows", Metrics: rawNodes(t, map[string]any{"type": "node_outflow", "node": "in"}), Labels: []string{"in"}},
		},
	}

	built, err := Build(doc)
	require.NoError(t, err)
	require.Len(t, built.Net.Nodes, 3)
	require.Len(t, built.Net.Edges, 2)
	require.Len(t, built.Net.MetricSets, 1)
	require.Equal(t, "simplex", built.Solver)
	require.Equal(t, 3, built.Steps.Len())
	require.Equal(t, 1, built.Grid.Len())
}

func TestBuild_UnknownNodeType(t *testing.T) {
	doc := &ModelDoc{
		Calendar: CalendarDoc{Start: "2020-01-01", End: "2020-01-01"},
		Nodes:    rawNodes(t, map[string]any{"type": "not_a_kind", "name": "x"}),
	}
	_, err := Build(doc)
	require.Error(t, err)
	var schemaErr *pywrerr.SchemaError
	require.True(t, errors.As(err, &schemaErr))
}

func TestBuild_DuplicateNodeNameIsBuildError(t *testing.T) {
	doc := &ModelDoc{
		Calendar: CalendarDoc{Start: "2020-01-01", End: "2020-01-01"},
		Nodes: rawNodes(t,
			map[string]any{"type": "input", "name": "dup"},
			map[string]any{"type": "output", "name": "dup"},
		),
	}
	_, err := Build(doc)
	require.Error(t, err)
	var buildErr *pywrerr.BuildError
	require.True(t, errors.As(err, &buildErr))
}

func TestBuild_ParametersWireIntoAggregatedNode(t *testing.T) {
	doc := &ModelDoc{
		Calendar: CalendarDoc{Start: "2020-01-01", End: "2020-01-01"},
		Nodes: rawNodes(t,
			map[string]any{"type": "input", "name": "in"},
			map[string]any{"type": "output", "name": "out"},
		),
		Edges: []EdgeDoc{{From: "in", To: "out"}},
		Parameters: rawNodes(t,
			map[string]any{"type": "constant", "name": "base_cost", "value": -5.0},
			map[string]any{
				"type": "aggregated", "name": "total_cost", "op": "sum",
				"metrics": []map[string]any{{"type": "parameter_value", "parameter": "base_cost"}},
			},
		),
	}

	built, err := Build(doc)
	require.NoError(t, err)
	require.Len(t, built.Params, 2)
	require.Contains(t, built.Order.ConstOrder, 0)
	require.Contains(t, built.Order.ConstOrder, 1)
}

func TestBuild_UnknownParameterReferenceFails(t *testing.T) {
	doc := &ModelDoc{
		Calendar: CalendarDoc{Start: "2020-01-01", End: "2020-01-01"},
		Nodes:    rawNodes(t, map[string]any{"type": "input", "name": "in"}),
		Parameters: rawNodes(t, map[string]any{
			"type": "aggregated", "name": "bad", "op": "sum",
			"metrics": []map[string]any{{"type": "parameter_value", "parameter": "does_not_exist"}},
		}),
	}
	_, err := Build(doc)
	require.Error(t, err)
}

func TestDecodeNode_StorageAndVirtualStorage(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"type": "storage", "name": "res", "max_volume": map[string]any{"const": 1000.0},
		"initial_volume": map[string]any{"kind": "proportional", "value": 0.5},
	})
	require.NoError(t, err)
	node, err := decodeNode(raw)
	require.NoError(t, err)
	require.Equal(t, network.Storage, node.Kind)
	require.Equal(t, network.Proportional, node.InitialVolume.Kind)
	require.InDelta(t, 0.5, node.InitialVolume.Value, 1e-9)

	rawVS, err := json.Marshal(map[string]any{
		"type": "rolling_virtual_storage", "name": "licence",
		"vs_nodes": []string{"in"}, "vs_window": 3, "max_volume": map[string]any{"const": 15.0},
	})
	require.NoError(t, err)
	vsNode, err := decodeNode(rawVS)
	require.NoError(t, err)
	require.Equal(t, network.RollingVirtualStorage, vsNode.Kind)
	require.Equal(t, 3, vsNode.VSWindow)
	require.Equal(t, []string{"in"}, vsNode.VSNodes)
}

func baseDoc() *ModelDoc {
	return &ModelDoc{
		Calendar: CalendarDoc{Start: "2020-01-01", End: "2020-01-03", Step: StepDoc{Kind: "days", N: 1}},
		Nodes: []json.RawMessage{
			mustMarshal(map[string]any{"type": "input", "name": "in", "max_flow": map[string]any{"const": 10.0}}),
			mustMarshal(map[string]any{"type": "output", "name": "out", "max_flow": map[string]any{"const": 10.0}, "cost": map[string]any{"const": -10.0}}),
		},
		Edges: []EdgeDoc{{From: "in", To: "out"}},
		MetricSets: []MetricSetDoc{
			{Name: "flows", Metrics: []json.RawMessage{mustMarshal(map[string]any{"type": "node_outflow", "node": "in"})}},
		},
	}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func TestBuild_TableAndInlineTimeseriesAreResolvable(t *testing.T) {
	doc := baseDoc()
	doc.Tables = []TableDoc{{Name: "flows_csv", URL: "flows.csv"}}
	doc.Timeseries = []TimeseriesDoc{
		{Name: "inline_ts", Values: []float64{1, 2, 3}},
		{Name: "table_ts", Table: "flows_csv"},
	}
	built, err := Build(doc)
	require.NoError(t, err)
	require.Len(t, built.Tables, 1)
	require.Len(t, built.Timeseries, 2)
}

func TestBuild_TimeseriesRejectsBothValuesAndTable(t *testing.T) {
	doc := baseDoc()
	doc.Tables = []TableDoc{{Name: "flows_csv", URL: "flows.csv"}}
	doc.Timeseries = []TimeseriesDoc{{Name: "bad", Values: []float64{1}, Table: "flows_csv"}}
	_, err := Build(doc)
	require.Error(t, err)
}

func TestBuild_TimeseriesRejectsNeitherValuesNorTable(t *testing.T) {
	doc := baseDoc()
	doc.Timeseries = []TimeseriesDoc{{Name: "bad"}}
	_, err := Build(doc)
	require.Error(t, err)
}

func TestBuild_TimeseriesRejectsUnknownTable(t *testing.T) {
	doc := baseDoc()
	doc.Timeseries = []TimeseriesDoc{{Name: "bad", Table: "does_not_exist"}}
	_, err := Build(doc)
	require.Error(t, err)
}

func TestBuild_DuplicateTableNameRejected(t *testing.T) {
	doc := baseDoc()
	doc.Tables = []TableDoc{{Name: "dup", URL: "a.csv"}, {Name: "dup", URL: "b.csv"}}
	_, err := Build(doc)
	require.Error(t, err)
}

func TestBuild_OutputResolvesAgainstDeclaredMetricSet(t *testing.T) {
	doc := baseDoc()
	doc.Outputs = []OutputDoc{{Name: "out1", Kind: "csv", Filename: "out.csv", MetricSet: "flows"}}
	built, err := Build(doc)
	require.NoError(t, err)
	require.Len(t, built.Outputs, 1)
}

func TestBuild_OutputRejectsUnknownMetricSet(t *testing.T) {
	doc := baseDoc()
	doc.Outputs = []OutputDoc{{Name: "out1", Kind: "csv", Filename: "out.csv", MetricSet: "does_not_exist"}}
	_, err := Build(doc)
	require.Error(t, err)
}

func TestBuild_OutputRejectsUnknownKind(t *testing.T) {
	doc := baseDoc()
	doc.Outputs = []OutputDoc{{Name: "out1", Kind: "yaml", Filename: "out.yaml", MetricSet: "flows"}}
	_, err := Build(doc)
	require.Error(t, err)
}

func TestDecodeParameter_RejectsExternal(t *testing.T) {
	raw, err := json.Marshal(map[string]any{"type": "external", "name": "py"})
	require.NoError(t, err)
	_, err = decodeParameter(raw, network.New(), map[string]int{})
	require.Error(t, err)
}
