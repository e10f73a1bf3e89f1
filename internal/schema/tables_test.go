package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestResolvePath_RelativeJoinsDataPath(t *testing.T) {
	require.Equal(t, filepath.Join("data", "flows.csv"), ResolvePath("flows.csv", "data"))
}

func TestResolvePath_AbsoluteIsUnchanged(t *testing.T) {
	abs := filepath.Join(string(filepath.Separator), "abs", "flows.csv")
	require.Equal(t, abs, ResolvePath(abs, "data"))
}

func TestLoadTable_PlainValueColumn(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "flows.csv", "1.5\n2.5\n3.5\n")

	values, err := LoadTable(TableDoc{Name: "flows", URL: "flows.csv"}, dir)
	require.NoError(t, err)
	require.Equal(t, []float64{1.5, 2.5, 3.5}, values)
}

func TestLoadTable_SkipsHeaderRow(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "flows.csv", "date,value\n2020-01-01,1.5\n2020-01-02,2.5\n")

	values, err := LoadTable(TableDoc{Name: "flows", URL: "flows.csv"}, dir)
	require.NoError(t, err)
	require.Equal(t, []float64{1.5, 2.5}, values)
}

func TestLoadTable_MissingFileErrors(t *testing.T) {
	_, err := LoadTable(TableDoc{Name: "flows", URL: "does_not_exist.csv"}, t.TempDir())
	require.Error(t, err)
}

func TestResolveTimeseries_InlineAndTableBacked(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "flows.csv", "10\n20\n30\n")

	built := &Built{
		Tables: map[string]TableDoc{"flows_csv": {Name: "flows_csv", URL: "flows.csv"}},
		Timeseries: []TimeseriesDoc{
			{Name: "inline_ts", Values: []float64{1, 2, 3}},
			{Name: "table_ts", Column: "table_col", Table: "flows_csv"},
		},
	}

	cols, err := ResolveTimeseries(built, dir)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, cols["inline_ts"])
	require.Equal(t, []float64{10, 20, 30}, cols["table_col"])
}

func TestResolveTimeseries_UnknownTableErrors(t *testing.T) {
	built := &Built{
		Tables:     map[string]TableDoc{},
		Timeseries: []TimeseriesDoc{{Name: "bad", Table: "missing"}},
	}
	_, err := ResolveTimeseries(built, t.TempDir())
	require.Error(t, err)
}
