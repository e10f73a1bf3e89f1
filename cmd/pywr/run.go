package pywr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pywr-go/pywr/internal/calendar"
	"github.com/pywr-go/pywr/internal/lp"
	"github.com/pywr-go/pywr/internal/recorder"
	"github.com/pywr-go/pywr/internal/scenario"
	"github.com/pywr-go/pywr/internal/schema"
	"github.com/pywr-go/pywr/internal/simulate"
)

var (
	runOutput     string
	runFormat     string
	runHDF5       string
	runThreads    int
	runSolver     string
	runDataPath   string
	runOutputPath string
)

var runCmd = &cobra.Command{
	Use:   "run <model.json>",
	Short: "Run a model document to completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return doRun(args[0])
	},
}

func init() {
	runCmd.Flags().StringVar(&runOutput, "output", "", "CSV output path; empty disables CSV output")
	runCmd.Flags().StringVar(&runFormat, "format", "long", "CSV shape: long or wide")
	runCmd.Flags().StringVar(&runHDF5, "hdf5", "", "binary column-store output path; empty disables it")
	runCmd.Flags().IntVar(&runThreads, "threads", 0, "worker threads; 0 uses all available cores")
	runCmd.Flags().StringVar(&runSolver, "solver", "", "override the document's solver backend")
	runCmd.Flags().StringVar(&runDataPath, "data-path", "", "base directory for resolving tables[].url relative paths")
	runCmd.Flags().StringVar(&runOutputPath, "output-path", "", "base directory for resolving outputs[].filename relative paths")
}

func doRun(path string) error {
	doc, err := schema.Load(path)
	if err != nil {
		return fail(exitModelInvalid, "loading model: %w", err)
	}
	if runSolver != "" {
		doc.Solver = runSolver
	}
	if runThreads > 0 {
		doc.Threads = runThreads
	}

	built, err := schema.Build(doc)
	if err != nil {
		return fail(exitModelInvalid, "building model: %w", err)
	}

	tmpl, topo, err := lp.Build(built.Net)
	if err != nil {
		return fail(exitModelInvalid, "building LP template: %w", err)
	}

	var timeseriesFor func(scenario.Index) map[string][]float64
	if len(built.Timeseries) > 0 {
		cols, err := schema.ResolveTimeseries(built, runDataPath)
		if err != nil {
			return fail(exitModelInvalid, "resolving timeseries: %w", err)
		}
		timeseriesFor = func(scenario.Index) map[string][]float64 { return cols }
	}

	sink, closeSink, err := runSink(built.Outputs)
	if err != nil {
		return fail(exitUsage, "opening output: %w", err)
	}
	defer closeSink()

	eng, err := simulate.NewEngine(simulate.Config{
		Net: built.Net, Tmpl: tmpl, Topo: topo, Steps: built.Steps,
		Params: built.Params, Order: built.Order,
		SolverName: built.Solver, Threads: built.Threads,
		TimeseriesFor: timeseriesFor,
		Sink:          sink,
	})
	if err != nil {
		return fail(exitModelInvalid, "constructing engine: %w", err)
	}

	logrus.Infof("running %d scenario(s) over %d timestep(s) with solver %q", built.Grid.Len(), built.Steps.Len(), built.Solver)
	result, err := eng.Run(context.Background(), built.Grid)
	if err != nil {
		return fail(exitRunFailed, "run: %w", err)
	}
	if result.Failed() {
		for _, s := range result.Scenarios {
			if !s.Completed {
				logrus.Errorf("scenario %d failed at timestep %d: %v", s.Index.SimulationID, s.FailedAt, s.Err)
			}
		}
		return fail(exitRunFailed, "one or more scenarios failed to complete")
	}
	logrus.Info("run complete")
	return nil
}

// runSink builds a fan-out sink from --output/--hdf5 plus every document-level
// outputs[] entry, or NopSink if none was requested, plus the cleanup
// callback that flushes/closes every writer.
func runSink(outputs []schema.OutputDoc) (simulate.Sink, func(), error) {
	var sinks []simulate.Sink
	var closers []func() error

	if runOutput != "" {
		w, closer, err := buildCSVSink(runOutput, runFormat)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, w)
		closers = append(closers, closer)
	}

	if runHDF5 != "" {
		w, closer, err := buildHDF5Sink(runHDF5)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, w)
		closers = append(closers, closer)
	}

	for _, out := range outputs {
		filename := out.Filename
		if runOutputPath != "" && !filepath.IsAbs(filename) {
			filename = filepath.Join(runOutputPath, filename)
		}
		var w simulate.Sink
		var closer func() error
		var err error
		switch out.Kind {
		case "csv":
			w, closer, err = buildCSVSink(filename, out.Format)
		case "hdf5":
			w, closer, err = buildHDF5Sink(filename)
		default:
			err = fmt.Errorf("output %q: unknown kind %q", out.Name, out.Kind)
		}
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, outputFilterSink{setName: out.MetricSet, inner: w})
		closers = append(closers, closer)
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logrus.Warnf("closing output: %v", err)
			}
		}
	}

	if len(sinks) == 0 {
		return simulate.NopSink{}, closeAll, nil
	}
	if len(sinks) == 1 {
		return sinks[0], closeAll, nil
	}
	return fanoutSink(sinks), closeAll, nil
}

// buildCSVSink opens path and wraps it in a recorder.CSVWriter, returning a
// closer that flushes the writer before closing the file.
func buildCSVSink(path, format string) (simulate.Sink, func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	shape := recorder.Long
	if format == "wide" {
		shape = recorder.Wide
	}
	w := recorder.NewCSVWriter(f, shape)
	return w, func() error {
		if err := w.Close(); err != nil {
			return err
		}
		return f.Close()
	}, nil
}

// buildHDF5Sink opens path and returns a recorder.HDF5Writer whose closer
// performs the writer's single WriteTo pass, since HDF5Writer buffers every
// row in memory until the run completes (see internal/recorder).
func buildHDF5Sink(path string) (simulate.Sink, func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	w := recorder.NewHDF5Writer()
	return w, func() error {
		if _, err := w.WriteTo(f); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}, nil
}

// outputFilterSink restricts an inner Sink to pushes from one named metric
// set, giving a document-level outputs[] entry its own recorder without it
// seeing every other metric set in the model.
type outputFilterSink struct {
	setName string
	inner   simulate.Sink
}

func (o outputFilterSink) Push(idx scenario.Index, ts calendar.Timestep, setName string, labels []string, values []float64) {
	if setName != o.setName {
		return
	}
	o.inner.Push(idx, ts, setName, labels, values)
}

// multiSink fans one push out to every wrapped sink, used when more than one
// output destination is requested for the same run.
type multiSink []simulate.Sink

func (m multiSink) Push(idx scenario.Index, ts calendar.Timestep, setName string, labels []string, values []float64) {
	for _, s := range m {
		s.Push(idx, ts, setName, labels, values)
	}
}

func fanoutSink(sinks []simulate.Sink) simulate.Sink {
	return multiSink(sinks)
}
