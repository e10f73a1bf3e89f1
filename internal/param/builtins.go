package param

import (
	"fmt"
	"math"
	"time"

	"github.com/pywr-go/pywr/internal/calendar"
	"github.com/pywr-go/pywr/internal/metric"
	"github.com/pywr-go/pywr/internal/pywrerr"
)

// base bundles the bookkeeping every built-in parameter needs: its name and
// the metrics it reads. Embedding it satisfies most of the Parameter
// interface so each family only implements Compute (and After, when it has
// carry to update).
type base struct {
	name string
	deps []metric.Metric
}

func (b base) Name() string          { return b.name }
func (b base) Deps() []metric.Metric { return b.deps }
func (b base) NewInternal() any      { return nil }
func (b base) After(_ calendar.Timestep, _ metric.StateReader, internal any) (any, error) {
	return internal, nil
}

// ConstantParameter always returns the same literal value.
type ConstantParameter struct {
	base
	Value float64
}

// NewConstant builds a Const-classified parameter with a fixed value.
func NewConstant(name string, value float64) *ConstantParameter {
	return &ConstantParameter{base: base{name: name}, Value: value}
}

func (p *ConstantParameter) Baseline() Class { return Const }
func (p *ConstantParameter) EvalPhase() Phase { return Before }
func (p *ConstantParameter) Compute(calendar.Timestep, metric.StateReader, any) (float64, map[string]float64, any, error) {
	return p.Value, nil, nil, nil
}

// DailyProfileParameter holds 365 or 366 daily coefficients, indexed by
// day-of-year.
type DailyProfileParameter struct {
	base
	Values [366]float64 // Values[365] unused when the model calendar has no leap day
}

// NewDailyProfile validates the coefficient count (365 or 366) and builds
// the profile.
func NewDailyProfile(name string, values []float64) (*DailyProfileParameter, error) {
	if len(values) != 365 && len(values) != 366 {
		return nil, fmt.Errorf("param %q: DailyProfile needs 365 or 366 values, got %d", name, len(values))
	}
	p := &DailyProfileParameter{base: base{name: name}}
	copy(p.Values[:], values)
	return p, nil
}

func (p *DailyProfileParameter) Baseline() Class  { return Simple }
func (p *DailyProfileParameter) EvalPhase() Phase  { return Before }
func (p *DailyProfileParameter) Compute(ts calendar.Timestep, _ metric.StateReader, _ any) (float64, map[string]float64, any, error) {
	idx := ts.DayOfYearIdx
	if idx < 0 || idx >= len(p.Values) {
		return 0, nil, nil, &pywrerr.DataError{
			Ctx:    pywrerr.Context{Component: "param", Entity: p.name, Scenario: -1, Timestep: ts.Index},
			Reason: fmt.Sprintf("day-of-year index %d out of range", idx),
		}
	}
	return p.Values[idx], nil, nil, nil
}

// Interp selects how MonthlyProfile transitions between months.
type Interp int

const (
	InterpStep Interp = iota // value held constant through the month
	InterpLinear              // linear from this month's value on day 1 toward next month's value
)

// MonthlyProfileParameter holds 12 monthly coefficients.
type MonthlyProfileParameter struct {
	base
	Values [12]float64
	Interp Interp
}

// NewMonthlyProfile validates the coefficient count (12) and builds the
// profile.
func NewMonthlyProfile(name string, values []float64, interp Interp) (*MonthlyProfileParameter, error) {
	if len(values) != 12 {
		return nil, fmt.Errorf("param %q: MonthlyProfile needs 12 values, got %d", name, len(values))
	}
	p := &MonthlyProfileParameter{base: base{name: name}, Interp: interp}
	copy(p.Values[:], values)
	return p, nil
}

func (p *MonthlyProfileParameter) Baseline() Class { return Simple }
func (p *MonthlyProfileParameter) EvalPhase() Phase { return Before }
func (p *MonthlyProfileParameter) Compute(ts calendar.Timestep, _ metric.StateReader, _ any) (float64, map[string]float64, any, error) {
	m := int(ts.Date.Month()) - 1
	if p.Interp == InterpStep {
		return p.Values[m], nil, nil, nil
	}
	// Linear interpolation between the current and next month's values,
	// weighted by fractional progress through the current month.
	day := ts.Date.Day()
	daysInMonth := time.Date(ts.Date.Year(), ts.Date.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	frac := (float64(day) - 1) / float64(daysInMonth)
	next := (m + 1) % 12
	v := p.Values[m]*(1-frac) + p.Values[next]*frac
	return v, nil, nil, nil
}

// AggregatedParameter reduces several metrics with Sum/Product/Min/Max/Mean.
type AggregatedParameter struct {
	base
	Op metric.AggOp
}

// NewAggregated builds an Aggregated parameter over the given metrics.
func NewAggregated(name string, op metric.AggOp, metrics []metric.Metric) *AggregatedParameter {
	return &AggregatedParameter{base: base{name: name, deps: metrics}, Op: op}
}

func (p *AggregatedParameter) Baseline() Class { return Const }
func (p *AggregatedParameter) EvalPhase() Phase { return Before }
func (p *AggregatedParameter) Compute(_ calendar.Timestep, sr metric.StateReader, _ any) (float64, map[string]float64, any, error) {
	v, err := (metric.AggregatedMetric{Op: p.Op, Metrics: p.deps}).Eval(sr)
	if err != nil {
		return 0, nil, nil, err
	}
	return v, nil, nil, nil
}

// ControlCurveIndexParameter returns the index of the first control curve
// whose value the current storage proportion is above, counting from 0 at
// the top curve. Curves must be supplied high-to-low.
type ControlCurveIndexParameter struct {
	base
	StorageProportion metric.Metric
	Curves            []metric.Metric // evaluated high to low
}

// NewControlCurveIndex builds a control-curve-index parameter.
func NewControlCurveIndex(name string, storageProportion metric.Metric, curves []metric.Metric) *ControlCurveIndexParameter {
	deps := append([]metric.Metric{storageProportion}, curves...)
	return &ControlCurveIndexParameter{base: base{name: name, deps: deps}, StorageProportion: storageProportion, Curves: curves}
}

func (p *ControlCurveIndexParameter) Baseline() Class { return Const }
func (p *ControlCurveIndexParameter) EvalPhase() Phase { return Before }
func (p *ControlCurveIndexParameter) Compute(_ calendar.Timestep, sr metric.StateReader, _ any) (float64, map[string]float64, any, error) {
	prop, err := p.StorageProportion.Eval(sr)
	if err != nil {
		return 0, nil, nil, err
	}
	for i, c := range p.Curves {
		cv, err := c.Eval(sr)
		if err != nil {
			return 0, nil, nil, err
		}
		if prop >= cv {
			return float64(i), nil, nil, nil
		}
	}
	return float64(len(p.Curves)), nil, nil, nil
}

// PolynomialParameter evaluates c0 + c1*x + c2*x^2 + ... over one input
// metric.
type PolynomialParameter struct {
	base
	Input        metric.Metric
	Coefficients []float64
}

// NewPolynomial builds a polynomial parameter over a single input metric.
func NewPolynomial(name string, input metric.Metric, coeffs []float64) *PolynomialParameter {
	return &PolynomialParameter{base: base{name: name, deps: []metric.Metric{input}}, Input: input, Coefficients: coeffs}
}

func (p *PolynomialParameter) Baseline() Class { return Const }
func (p *PolynomialParameter) EvalPhase() Phase { return Before }
func (p *PolynomialParameter) Compute(_ calendar.Timestep, sr metric.StateReader, _ any) (float64, map[string]float64, any, error) {
	x, err := p.Input.Eval(sr)
	if err != nil {
		return 0, nil, nil, err
	}
	v := 0.0
	xp := 1.0
	for _, c := range p.Coefficients {
		v += c * xp
		xp *= x
	}
	return v, nil, nil, nil
}

// InterpolatedParameter piecewise-linearly interpolates Values over X as a
// function of one input metric, clamping outside the table's range.
type InterpolatedParameter struct {
	base
	Input  metric.Metric
	X, Y   []float64 // X strictly increasing, parallel to Y
}

// NewInterpolated validates the table shape and builds the parameter.
func NewInterpolated(name string, input metric.Metric, x, y []float64) (*InterpolatedParameter, error) {
	if len(x) != len(y) || len(x) < 2 {
		return nil, fmt.Errorf("param %q: Interpolated needs >=2 matching X/Y points", name)
	}
	for i := 1; i < len(x); i++ {
		if x[i] <= x[i-1] {
			return nil, fmt.Errorf("param %q: Interpolated X must be strictly increasing", name)
		}
	}
	return &InterpolatedParameter{base: base{name: name, deps: []metric.Metric{input}}, Input: input, X: x, Y: y}, nil
}

func (p *InterpolatedParameter) Baseline() Class { return Const }
func (p *InterpolatedParameter) EvalPhase() Phase { return Before }
func (p *InterpolatedParameter) Compute(_ calendar.Timestep, sr metric.StateReader, _ any) (float64, map[string]float64, any, error) {
	x, err := p.Input.Eval(sr)
	if err != nil {
		return 0, nil, nil, err
	}
	if x <= p.X[0] {
		return p.Y[0], nil, nil, nil
	}
	n := len(p.X)
	if x >= p.X[n-1] {
		return p.Y[n-1], nil, nil, nil
	}
	for i := 1; i < n; i++ {
		if x <= p.X[i] {
			frac := (x - p.X[i-1]) / (p.X[i] - p.X[i-1])
			return p.Y[i-1] + frac*(p.Y[i]-p.Y[i-1]), nil, nil, nil
		}
	}
	return p.Y[n-1], nil, nil, nil
}

// AsymmetricParameter returns one of two metrics depending on the sign of
// the trend in an input metric relative to its previous value: RisingValue
// when the input did not decrease since last step, FallingValue otherwise.
type AsymmetricParameter struct {
	base
	Input                    metric.Metric
	RisingValue, FallingValue metric.Metric
}

// NewAsymmetric builds an asymmetric-response parameter.
func NewAsymmetric(name string, input, rising, falling metric.Metric) *AsymmetricParameter {
	return &AsymmetricParameter{
		base:         base{name: name, deps: []metric.Metric{input, rising, falling}},
		Input:        input,
		RisingValue:  rising,
		FallingValue: falling,
	}
}

func (p *AsymmetricParameter) Baseline() Class { return Const }
func (p *AsymmetricParameter) EvalPhase() Phase { return Before }
func (p *AsymmetricParameter) Compute(_ calendar.Timestep, sr metric.StateReader, internal any) (float64, map[string]float64, any, error) {
	x, err := p.Input.Eval(sr)
	if err != nil {
		return 0, nil, nil, err
	}
	prev, _ := internal.(float64)
	var out metric.Metric
	if x >= prev {
		out = p.RisingValue
	} else {
		out = p.FallingValue
	}
	v, err := out.Eval(sr)
	if err != nil {
		return 0, nil, nil, err
	}
	return v, nil, x, nil
}

// ThresholdParameter returns OnValue when Input crosses Threshold in the
// configured direction, OffValue otherwise.
type ThresholdDirection int

const (
	ThresholdGE ThresholdDirection = iota
	ThresholdLE
)

type ThresholdParameter struct {
	base
	Input              metric.Metric
	Threshold          metric.Metric
	Direction          ThresholdDirection
	OnValue, OffValue  float64
}

// NewThreshold builds a threshold-response parameter.
func NewThreshold(name string, input, threshold metric.Metric, dir ThresholdDirection, onValue, offValue float64) *ThresholdParameter {
	return &ThresholdParameter{
		base:      base{name: name, deps: []metric.Metric{input, threshold}},
		Input:     input,
		Threshold: threshold,
		Direction: dir,
		OnValue:   onValue,
		OffValue:  offValue,
	}
}

func (p *ThresholdParameter) Baseline() Class { return Const }
func (p *ThresholdParameter) EvalPhase() Phase { return Before }
func (p *ThresholdParameter) Compute(_ calendar.Timestep, sr metric.StateReader, _ any) (float64, map[string]float64, any, error) {
	x, err := p.Input.Eval(sr)
	if err != nil {
		return 0, nil, nil, err
	}
	th, err := p.Threshold.Eval(sr)
	if err != nil {
		return 0, nil, nil, err
	}
	crossed := false
	switch p.Direction {
	case ThresholdGE:
		crossed = x >= th
	case ThresholdLE:
		crossed = x <= th
	}
	if crossed {
		return p.OnValue, nil, nil, nil
	}
	return p.OffValue, nil, nil, nil
}

// DelayParameter exposes a parameter-level fixed-length delay over an input
// metric, distinct from a Delay node — used when a parameter value itself
// (not a flow) needs lagging, e.g. delaying a forecast signal.
type DelayParameter struct {
	base
	Input   metric.Metric
	Steps   int
	InitialValue float64
}

// NewDelayParameter builds a parameter-level delay.
func NewDelayParameter(name string, input metric.Metric, steps int, initial float64) *DelayParameter {
	return &DelayParameter{base: base{name: name, deps: []metric.Metric{input}}, Input: input, Steps: steps, InitialValue: initial}
}

func (p *DelayParameter) Baseline() Class { return Const }
func (p *DelayParameter) EvalPhase() Phase { return Before }
func (p *DelayParameter) NewInternal() any {
	q := make([]float64, p.Steps)
	for i := range q {
		q[i] = p.InitialValue
	}
	return &delayRing{buf: q}
}

type delayRing struct {
	buf  []float64
	head int
}

func (p *DelayParameter) Compute(_ calendar.Timestep, sr metric.StateReader, internal any) (float64, map[string]float64, any, error) {
	if p.Steps == 0 {
		v, err := p.Input.Eval(sr)
		return v, nil, internal, err
	}
	ring, _ := internal.(*delayRing)
	if ring == nil {
		ring = p.NewInternal().(*delayRing)
	}
	out := ring.buf[ring.head]
	in, err := p.Input.Eval(sr)
	if err != nil {
		return 0, nil, ring, err
	}
	ring.buf[ring.head] = in
	ring.head = (ring.head + 1) % len(ring.buf)
	return out, nil, ring, nil
}

// MuskingumParameter implements the classic channel-routing recursion
// O_t = C0*I_t + C1*I_{t-1} + C2*O_{t-1}, with C0+C1+C2 == 1 derived from
// the storage-time constant K and weighting factor X.
type MuskingumParameter struct {
	base
	Input  metric.Metric
	K, X   float64
	DtDays float64
}

type muskingumState struct {
	prevIn, prevOut float64
	initialized     bool
}

// NewMuskingum builds a Muskingum routing parameter.
func NewMuskingum(name string, input metric.Metric, k, x, dtDays float64) *MuskingumParameter {
	return &MuskingumParameter{base: base{name: name, deps: []metric.Metric{input}}, Input: input, K: k, X: x, DtDays: dtDays}
}

func (p *MuskingumParameter) Baseline() Class { return Const }
func (p *MuskingumParameter) EvalPhase() Phase { return Before }
func (p *MuskingumParameter) NewInternal() any { return &muskingumState{} }

func (p *MuskingumParameter) coefficients() (c0, c1, c2 float64) {
	dt := p.DtDays
	denom := 2*p.K*(1-p.X) + dt
	c0 = (dt - 2*p.K*p.X) / denom
	c1 = (dt + 2*p.K*p.X) / denom
	c2 = (2*p.K*(1-p.X) - dt) / denom
	return
}

func (p *MuskingumParameter) Compute(_ calendar.Timestep, sr metric.StateReader, internal any) (float64, map[string]float64, any, error) {
	st, _ := internal.(*muskingumState)
	if st == nil {
		st = &muskingumState{}
	}
	in, err := p.Input.Eval(sr)
	if err != nil {
		return 0, nil, st, err
	}
	if !st.initialized {
		// First step: no routing history yet, outflow tracks inflow.
		next := &muskingumState{prevIn: in, prevOut: in, initialized: true}
		return in, nil, next, nil
	}
	c0, c1, c2 := p.coefficients()
	out := c0*in + c1*st.prevIn + c2*st.prevOut
	next := &muskingumState{prevIn: in, prevOut: out, initialized: true}
	return out, nil, next, nil
}

// TimeseriesParameter reads a single column of an external table, keyed by
// the current timestep's row.
type TimeseriesParameter struct {
	base
	Column string
}

// NewTimeseriesParameter builds a parameter that passes a table column
// through unchanged — used when a coefficient is driven directly by an
// input time series rather than composed from other metrics.
func NewTimeseriesParameter(name, column string) *TimeseriesParameter {
	m := metric.Timeseries{Column: column, Selector: metric.RowSelector{CurrentStep: true}}
	return &TimeseriesParameter{base: base{name: name, deps: []metric.Metric{m}}, Column: column}
}

func (p *TimeseriesParameter) Baseline() Class { return Simple }
func (p *TimeseriesParameter) EvalPhase() Phase { return Before }
func (p *TimeseriesParameter) Compute(_ calendar.Timestep, sr metric.StateReader, _ any) (float64, map[string]float64, any, error) {
	v, err := sr.TimeseriesValue(p.Column, metric.RowSelector{CurrentStep: true})
	if err != nil {
		return 0, nil, nil, err
	}
	return v, nil, nil, nil
}

// ExternalFunc is the signature an external ("Python") callable must
// implement: pure compute plus an optional after-solve hook. Both run
// outside any solver-held lock.
type ExternalFunc interface {
	Compute(ts calendar.Timestep, sr metric.StateReader) (float64, error)
	After(ts calendar.Timestep, sr metric.StateReader) error
}

// ExternalParameter wraps an opaque external callable (the spec's "Python"
// parameter family). One instance is constructed per scenario by the
// caller, so no state is shared across workers.
type ExternalParameter struct {
	base
	Phase Phase
	Fn    ExternalFunc
}

// NewExternal builds an external-callable parameter.
func NewExternal(name string, phase Phase, fn ExternalFunc, deps []metric.Metric) *ExternalParameter {
	return &ExternalParameter{base: base{name: name, deps: deps}, Phase: phase, Fn: fn}
}

func (p *ExternalParameter) Baseline() Class  { return General }
func (p *ExternalParameter) EvalPhase() Phase { return p.Phase }
func (p *ExternalParameter) Compute(ts calendar.Timestep, sr metric.StateReader, internal any) (float64, map[string]float64, any, error) {
	v, err := p.Fn.Compute(ts, sr)
	if err != nil {
		return 0, nil, internal, &pywrerr.UserCodeError{Ctx: pywrerr.Context{Component: "param", Entity: p.name, Scenario: -1, Timestep: ts.Index}, Reason: "external parameter compute failed", Wrapped: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, nil, internal, &pywrerr.UserCodeError{Ctx: pywrerr.Context{Component: "param", Entity: p.name, Scenario: -1, Timestep: ts.Index}, Reason: fmt.Sprintf("non-finite value %v", v)}
	}
	return v, nil, internal, nil
}
func (p *ExternalParameter) After(ts calendar.Timestep, sr metric.StateReader, internal any) (any, error) {
	if err := p.Fn.After(ts, sr); err != nil {
		return internal, &pywrerr.UserCodeError{Ctx: pywrerr.Context{Component: "param", Entity: p.name, Scenario: -1, Timestep: ts.Index}, Reason: "external parameter after-hook failed", Wrapped: err}
	}
	return internal, nil
}
