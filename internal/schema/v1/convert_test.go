package v1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvertV1ToV2_RenamesTimestepperAndEdges(t *testing.T) {
	legacy := &LegacyModelDoc{
		Version:     "1",
		Timestepper: legacyTimestepperDoc{Start: "2020-01-01", End: "2020-01-05", Timestep: legacyTimestepDoc{Kind: "days", N: 1}},
		Nodes: []map[string]any{
			{"type": "input", "name": "in"},
			{"type": "output", "name": "out"},
		},
		Edges: []legacyEdgeDoc{{FromNode: "in", ToNode: "out"}},
	}

	doc, err := ConvertV1ToV2(legacy)
	require.NoError(t, err)
	require.Equal(t, "2", doc.Version)
	require.Equal(t, "2020-01-01", doc.Calendar.Start)
	require.Equal(t, "2020-01-05", doc.Calendar.End)
	require.Equal(t, "days", doc.Calendar.Step.Kind)
	require.Len(t, doc.Edges, 1)
	require.Equal(t, "in", doc.Edges[0].From)
	require.Equal(t, "out", doc.Edges[0].To)
	require.Len(t, doc.Nodes, 2)
}

func TestConvertV1ToV2_RejectsBadStartDate(t *testing.T) {
	legacy := &LegacyModelDoc{Timestepper: legacyTimestepperDoc{Start: "not-a-date", End: "2020-01-05"}}
	_, err := ConvertV1ToV2(legacy)
	require.Error(t, err)
}
