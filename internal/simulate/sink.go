package simulate

import (
	"github.com/pywr-go/pywr/internal/calendar"
	"github.com/pywr-go/pywr/internal/scenario"
)

// Sink receives one metric set's pulled values for one scenario/timestep.
// internal/recorder's writers satisfy this structurally; simulate never
// imports recorder, avoiding an import cycle since recorder consumes
// simulate's run rather than the other way around.
type Sink interface {
	Push(idx scenario.Index, ts calendar.Timestep, setName string, labels []string, values []float64)
}

// NopSink discards every push, used when a caller only wants ScenarioResult
// summaries (e.g. `pywr run` with no output requested).
type NopSink struct{}

func (NopSink) Push(scenario.Index, calendar.Timestep, string, []string, []float64) {}

// ScenarioResult is one scenario's outcome: either it ran to completion or
// it failed at a specific timestep.
type ScenarioResult struct {
	Index       scenario.Index
	Completed   bool
	FailedAt    int // timestep index, -1 if Completed
	Err         error
}

// RunResult aggregates every scenario's outcome from one Engine.Run call.
type RunResult struct {
	Scenarios []ScenarioResult
}

// Failed reports whether any scenario in the run did not complete.
func (r *RunResult) Failed() bool {
	for _, s := range r.Scenarios {
		if !s.Completed {
			return true
		}
	}
	return false
}
