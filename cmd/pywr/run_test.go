package pywr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pywr-go/pywr/internal/calendar"
	"github.com/pywr-go/pywr/internal/scenario"
	"github.com/pywr-go/pywr/internal/schema"
)

func resetRunFlags(t *testing.T) {
	t.Helper()
	runOutput, runFormat, runHDF5, runThreads, runSolver, runDataPath, runOutputPath = "", "long", "", 0, "", "", ""
	t.Cleanup(func() {
		runOutput, runFormat, runHDF5, runThreads, runSolver, runDataPath, runOutputPath = "", "long", "", 0, "", "", ""
	})
}

func TestDoRun_WritesCSVOutput(t *testing.T) {
	resetRunFlags(t)
	dir := t.TempDir()
	modelPath := writeModel(t, minimalModelJSON)
	runOutput = filepath.Join(dir, "out.csv")

	require.NoError(t, doRun(modelPath))

	contents, err := os.ReadFile(runOutput)
	require.NoError(t, err)
	require.NotEmpty(t, contents)
}

func TestDoRun_MissingFile(t *testing.T) {
	resetRunFlags(t)
	err := doRun("/nonexistent/model.json")
	require.Error(t, err)
}

func TestDoRun_OutputsEntryWritesItsOwnFile(t *testing.T) {
	resetRunFlags(t)
	dir := t.TempDir()

	modelPath := writeModel(t, `{
	  "calendar": {"start": "2020-01-01", "end": "2020-01-01", "step": {"kind": "days", "n": 1}},
	  "nodes": [
	    {"type": "input", "name": "in", "max_flow": {"const": 10}},
	    {"type": "output", "name": "out", "max_flow": {"const": 10}, "cost": {"const": -10}}
	  ],
	  "edges": [{"from": "in", "to": "out"}],
	  "metric_sets": [
	    {"name": "flows", "metrics": [{"type": "node_outflow", "node": "in"}]}
	  ],
	  "outputs": [
	    {"name": "flows_out", "kind": "csv", "filename": "flows.csv", "metric_set": "flows"}
	  ]
	}`)
	runOutputPath = dir

	require.NoError(t, doRun(modelPath))

	contents, err := os.ReadFile(filepath.Join(dir, "flows.csv"))
	require.NoError(t, err)
	require.NotEmpty(t, contents)
}

func TestRunSink_UnknownOutputKindErrors(t *testing.T) {
	resetRunFlags(t)
	_, _, err := runSink([]schema.OutputDoc{{Name: "bad", Kind: "yaml", Filename: "x.yaml", MetricSet: "flows"}})
	require.Error(t, err)
}

func TestOutputFilterSink_DropsOtherMetricSets(t *testing.T) {
	inner := &recordingPushSink{}
	filter := outputFilterSink{setName: "wanted", inner: inner}

	idx := scenario.Index{SimulationID: 0}
	ts := calendar.Timestep{}

	filter.Push(idx, ts, "other", nil, []float64{1})
	require.Empty(t, inner.pushes)

	filter.Push(idx, ts, "wanted", nil, []float64{42})
	require.Equal(t, []float64{42}, inner.pushes)
}

type recordingPushSink struct {
	pushes []float64
}

func (r *recordingPushSink) Push(_ scenario.Index, _ calendar.Timestep, _ string, _ []string, values []float64) {
	r.pushes = append(r.pushes, values...)
}
