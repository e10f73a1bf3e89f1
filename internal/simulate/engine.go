// Package simulate is the run-level orchestrator: it partitions a scenario
// grid across a worker pool, drives each scenario's per-timestep protocol
// (internal/lp coefficient refresh -> internal/solver solve -> state
// advance -> metric push), and funnels every scenario's outcome back to the
// caller. See spec §5.
package simulate

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/pywr-go/pywr/internal/calendar"
	"github.com/pywr-go/pywr/internal/lp"
	"github.com/pywr-go/pywr/internal/network"
	"github.com/pywr-go/pywr/internal/param"
	"github.com/pywr-go/pywr/internal/scenario"
	"github.com/pywr-go/pywr/internal/solver"
)

// Config wires everything an Engine needs to run a scenario grid: the
// shared, immutable network/LP/parameter build, plus per-run knobs.
type Config struct {
	Net   *network.Network
	Tmpl  *lp.Template
	Topo  *lp.Topology
	Steps *calendar.Timestepper

	// Params and Order are shared read-only across every scenario; only a
	// scenario's own paramInternal carry and timeseries table vary.
	Params []param.Parameter
	Order  *param.Order

	SolverName string
	Threads    int // 0 means runtime.GOMAXPROCS(0)

	// TimeseriesFor supplies a scenario's timeseries columns, keyed by
	// column name. Optional: a nil func means no Timeseries-class
	// parameters are in play.
	TimeseriesFor func(scenario.Index) map[string][]float64

	Sink Sink
}

// Engine runs one Config's scenario grid to completion.
type Engine struct {
	cfg Config

	sinkMu sync.Mutex

	solveDuration prometheus.Histogram
	scenariosDone prometheus.Counter
}

// NewEngine validates and wraps a Config. The two prometheus collectors are
// ambient observability (spec explicitly scopes metrics endpoints out of
// the core feature set, see SPEC_FULL §4.0) registered against the default
// registry so `cmd/pywr serve-metrics` can expose them without this package
// needing to know about HTTP.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Net == nil || cfg.Tmpl == nil || cfg.Topo == nil || cfg.Steps == nil {
		return nil, fmt.Errorf("simulate: Config missing Net/Tmpl/Topo/Steps")
	}
	if cfg.SolverName == "" {
		cfg.SolverName = "simplex"
	}
	if cfg.Sink == nil {
		cfg.Sink = NopSink{}
	}
	e := &Engine{
		cfg: cfg,
		solveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "pywr_solve_duration_seconds",
			Help: "LP solve duration per timestep.",
		}),
		scenariosDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pywr_scenarios_completed_total",
			Help: "Number of scenarios that finished (successfully or not).",
		}),
	}
	_ = prometheus.Register(e.solveDuration)
	_ = prometheus.Register(e.scenariosDone)
	return e, nil
}

// Run partitions grid across a bounded worker pool, one goroutine per
// worker, each owning a private scenarioState for the scenario it is
// currently running. context cancellation is checked at the top of every
// timestep loop, matching the teacher's ubiquitous context.Context
// threading.
func (e *Engine) Run(ctx context.Context, grid *scenario.Grid) (*RunResult, error) {
	threads := e.cfg.Threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	indices := grid.Indices()
	if threads > len(indices) {
		threads = len(indices)
	}
	if threads < 1 {
		threads = 1
	}

	work := make(chan scenario.Index)
	results := make(chan ScenarioResult, len(indices))

	var wg sync.WaitGroup
	for w := 0; w < threads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker(ctx, work, results)
		}()
	}

	go func() {
		defer close(work)
		for _, idx := range indices {
			select {
			case <-ctx.Done():
				return
			default:
			}
			select {
			case work <- idx:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	out := &RunResult{Scenarios: make([]ScenarioResult, 0, len(indices))}
	for r := range results {
		out.Scenarios = append(out.Scenarios, r)
	}
	return out, nil
}

func (e *Engine) worker(ctx context.Context, work <-chan scenario.Index, results chan<- ScenarioResult) {
	backend, err := solver.New(e.cfg.SolverName)
	if err != nil {
		logrus.Errorf("simulate: worker could not create solver %q: %v", e.cfg.SolverName, err)
		return
	}
	handle, err := backend.Build(e.cfg.Tmpl)
	if err != nil {
		logrus.Errorf("simulate: worker could not build solver handle: %v", err)
		return
	}

	for idx := range work {
		var ts map[string][]float64
		if e.cfg.TimeseriesFor != nil {
			ts = e.cfg.TimeseriesFor(idx)
		}
		s := newScenarioState(e.cfg.Net, e.cfg.Tmpl, e.cfg.Topo, e.cfg.Params, e.cfg.Order, ts, idx.SimulationID)
		s.backend = backend
		s.handle = handle

		res := e.runScenario(ctx, idx, s)
		e.scenariosDone.Inc()
		results <- res
	}
}

func (e *Engine) runScenario(ctx context.Context, idx scenario.Index, s *scenarioState) ScenarioResult {
	steps := e.cfg.Steps.Steps()
	for i, ts := range steps {
		select {
		case <-ctx.Done():
			return ScenarioResult{Index: idx, Completed: false, FailedAt: i, Err: ctx.Err()}
		default:
		}

		start := time.Now()
		err := s.step(ts, ts.DurationDays)
		e.solveDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			return ScenarioResult{Index: idx, Completed: false, FailedAt: i, Err: err}
		}

		e.pushMetrics(idx, ts, s)
	}
	return ScenarioResult{Index: idx, Completed: true, FailedAt: -1}
}

func (e *Engine) pushMetrics(idx scenario.Index, ts calendar.Timestep, s *scenarioState) {
	for _, set := range e.cfg.Net.MetricSets {
		values, err := set.PullAll(s)
		if err != nil {
			logrus.Warnf("simulate: metric set %q: %v", set.Name, err)
			continue
		}
		e.sinkMu.Lock()
		e.cfg.Sink.Push(idx, ts, set.Name, set.Labels, values)
		e.sinkMu.Unlock()
	}
}
