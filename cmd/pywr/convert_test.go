package pywr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const legacyModelYAML = `
version: "1"
timestepper:
  start: "2020-01-01"
  end: "2020-01-02"
  timestep:
    kind: days
    n: 1
nodes:
  - type: input
    name: in
  - type: output
    name: out
edges:
  - from_node: in
    to_node: out
`

func TestDoConvert_LegacyDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(legacyModelYAML), 0o644))
	require.NoError(t, doConvert(path))
}

func TestDoConvert_MissingFile(t *testing.T) {
	err := doConvert("/nonexistent/legacy.yaml")
	require.Error(t, err)
}
