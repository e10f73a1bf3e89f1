package recorder

import (
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pywr-go/pywr/internal/calendar"
	"github.com/pywr-go/pywr/internal/scenario"
)

// Bucket is the calendar granularity an AggregatedScalar groups values by.
type Bucket int

const (
	// BucketStep keys by the raw timestep index: no aggregation across time.
	BucketStep Bucket = iota
	BucketDaily
	BucketMonthly
	BucketAnnual
)

func bucketKey(b Bucket, ts calendar.Timestep) string {
	switch b {
	case BucketDaily:
		return ts.Date.Format("2006-01-02")
	case BucketMonthly:
		return ts.Date.Format("2006-01")
	case BucketAnnual:
		return ts.Date.Format("2006")
	default:
		return strconv.Itoa(ts.Index)
	}
}

// AggregatedScalar is a simulate.Sink that accumulates one metric's values
// per (scenario, bucket) and reports running summary statistics on demand,
// generalizing the teacher's TraceSummary running-aggregate idiom (mean,
// max, distribution) from admission/routing counters to arbitrary
// float64-valued metrics, with gonum/stat providing quantiles the teacher
// never needed.
type AggregatedScalar struct {
	set    string
	label  string
	bucket Bucket

	values map[aggKey][]float64
}

type aggKey struct {
	sim int
	key string
}

// NewAggregatedScalar accumulates only pushes matching (set, label); label
// == "" matches every label in the set.
func NewAggregatedScalar(set, label string, bucket Bucket) *AggregatedScalar {
	return &AggregatedScalar{set: set, label: label, bucket: bucket, values: make(map[aggKey][]float64)}
}

// Push implements simulate.Sink.
func (a *AggregatedScalar) Push(idx scenario.Index, ts calendar.Timestep, setName string, labels []string, values []float64) {
	if setName != a.set {
		return
	}
	for _, row := range expand(idx, ts, setName, labels, values) {
		if a.label != "" && row.Label != a.label {
			continue
		}
		k := aggKey{sim: idx.SimulationID, key: bucketKey(a.bucket, ts)}
		a.values[k] = append(a.values[k], row.Value)
	}
}

// Summary is one bucket's aggregate statistics.
type Summary struct {
	Sum    float64
	Mean   float64
	P50    float64
	P95    float64
	Count  int
}

// Summarize computes Summary for one scenario's bucket. Returns the zero
// Summary if nothing was pushed for that key.
func (a *AggregatedScalar) Summarize(simulationID int, bucketKeyStr string) Summary {
	xs, ok := a.values[aggKey{sim: simulationID, key: bucketKeyStr}]
	if !ok || len(xs) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	sum := floats.Sum(sorted)
	return Summary{
		Sum:   sum,
		Mean:  stat.Mean(sorted, nil),
		P50:   stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Count: len(sorted),
	}
}

// BucketKey identifies one scenario's aggregation bucket.
type BucketKey struct {
	SimulationID int
	Bucket       string
}

// Keys reports every (simulation, bucket) key that has received a push, in
// no particular order; callers sort as needed for stable output.
func (a *AggregatedScalar) Keys() []BucketKey {
	out := make([]BucketKey, 0, len(a.values))
	for k := range a.values {
		out = append(out, BucketKey{SimulationID: k.sim, Bucket: k.key})
	}
	return out
}
