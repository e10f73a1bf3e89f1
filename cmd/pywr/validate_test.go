package pywr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const minimalModelJSON = `{
  "calendar": {"start": "2020-01-01", "end": "2020-01-03", "step": {"kind": "days", "n": 1}},
  "nodes": [
    {"type": "input", "name": "in", "max_flow": {"const": 10}},
    {"type": "link", "name": "mid"},
    {"type": "output", "name": "out", "max_flow": {"const": 10}, "cost": {"const": -10}}
  ],
  "edges": [
    {"from": "in", "to": "mid"},
    {"from": "mid", "to": "out"}
  ]
}`

func writeModel(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDoValidate_ValidModel(t *testing.T) {
	path := writeModel(t, minimalModelJSON)
	require.NoError(t, doValidate(path))
}

func TestDoValidate_MissingFile(t *testing.T) {
	err := doValidate("/nonexistent/model.json")
	require.Error(t, err)
	ce, ok := err.(*cliError)
	require.True(t, ok)
	require.Equal(t, exitModelInvalid, ce.Code)
}

func TestDoValidate_UnknownNodeType(t *testing.T) {
	path := writeModel(t, `{"calendar":{"start":"2020-01-01","end":"2020-01-01"},"nodes":[{"type":"not_a_kind","name":"x"}]}`)
	err := doValidate(path)
	require.Error(t, err)
}
