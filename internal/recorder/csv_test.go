package recorder

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pywr-go/pywr/internal/calendar"
	"github.com/pywr-go/pywr/internal/scenario"
)

func ts(idx int, date string) calendar.Timestep {
	d, _ := time.Parse("2006-01-02", date)
	return calendar.Timestep{Index: idx, Date: d, DurationDays: 1}
}

func TestCSVWriter_LongFormat(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf, Long)
	w.Push(scenario.Index{SimulationID: 0}, ts(0, "2020-01-01"), "flows", []string{"a", "b"}, []float64{1.5, 2.5})
	require.NoError(t, w.Close())

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3) // header + 2 rows
	require.Contains(t, lines[0], "scenario_index")
	require.Contains(t, lines[0], "time_start")
	require.Contains(t, lines[0], "time_end")
	require.Contains(t, lines[1], "2020-01-02") // time_end for the 2020-01-01 timestep
	require.Contains(t, lines[1], "flows")
}

func TestCSVWriter_WideFormat(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf, Wide)
	w.Push(scenario.Index{SimulationID: 0}, ts(0, "2020-01-01"), "flows", []string{"a"}, []float64{1.0})
	w.Push(scenario.Index{SimulationID: 0}, ts(0, "2020-01-01"), "flows", []string{"b"}, []float64{2.0})
	w.Push(scenario.Index{SimulationID: 0}, ts(1, "2020-01-02"), "flows", []string{"a"}, []float64{3.0})
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3) // header + 2 timesteps
	require.Contains(t, lines[0], "flows.a")
	require.Contains(t, lines[0], "flows.b")

	// second data row (timestep 1) never got flows.b, so its cell is empty
	require.Equal(t, 4, strings.Count(lines[2], ","))
}
