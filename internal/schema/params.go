package schema

import (
	"encoding/json"
	"fmt"

	"github.com/pywr-go/pywr/internal/network"
	"github.com/pywr-go/pywr/internal/param"
)

type paramEnvelope struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

func paramNameAndType(raw json.RawMessage) (string, string, error) {
	var e paramEnvelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return "", "", fmt.Errorf("decoding parameter: %w", err)
	}
	if e.Name == "" {
		return "", "", fmt.Errorf("parameter of type %q has no name", e.Type)
	}
	return e.Name, e.Type, nil
}

// decodeParameter builds one param.Parameter from its document entry. Every
// built-in family in internal/param/builtins.go except ExternalParameter has
// a case here: external ("Python") parameters wrap an opaque Go callable
// that has no JSON representation, so they must be registered
// programmatically rather than declared in a document.
func decodeParameter(raw json.RawMessage, net *network.Network, paramIdx map[string]int) (param.Parameter, error) {
	name, typ, err := paramNameAndType(raw)
	if err != nil {
		return nil, err
	}

	switch typ {
	case "constant":
		var d struct {
			Value float64 `json:"value"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		return param.NewConstant(name, d.Value), nil

	case "daily_profile":
		var d struct {
			Values []float64 `json:"values"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		p, err := param.NewDailyProfile(name, d.Values)
		if err != nil {
			return nil, err
		}
		return p, nil

	case "monthly_profile":
		var d struct {
			Values []float64 `json:"values"`
			Interp string    `json:"interp"` // "step" (default) or "linear"
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		interp := param.InterpStep
		if d.Interp == "linear" {
			interp = param.InterpLinear
		}
		p, err := param.NewMonthlyProfile(name, d.Values, interp)
		if err != nil {
			return nil, err
		}
		return p, nil

	case "aggregated":
		var d struct {
			Op      string            `json:"op"`
			Metrics []json.RawMessage `json:"metrics"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		op, err := parseAggOp(d.Op)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		metrics, err := decodeMetrics(d.Metrics, net, paramIdx)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		return param.NewAggregated(name, op, metrics), nil

	case "control_curve_index":
		var d struct {
			StorageProportion json.RawMessage   `json:"storage_proportion"`
			Curves            []json.RawMessage `json:"curves"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		sp, err := decodeMetric(d.StorageProportion, net, paramIdx)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: storage_proportion: %w", name, err)
		}
		curves, err := decodeMetrics(d.Curves, net, paramIdx)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: curves: %w", name, err)
		}
		return param.NewControlCurveIndex(name, sp, curves), nil

	case "polynomial":
		var d struct {
			Input        json.RawMessage `json:"input"`
			Coefficients []float64       `json:"coefficients"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		input, err := decodeMetric(d.Input, net, paramIdx)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: input: %w", name, err)
		}
		return param.NewPolynomial(name, input, d.Coefficients), nil

	case "interpolated":
		var d struct {
			Input json.RawMessage `json:"input"`
			X     []float64       `json:"x"`
			Y     []float64       `json:"y"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		input, err := decodeMetric(d.Input, net, paramIdx)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: input: %w", name, err)
		}
		p, err := param.NewInterpolated(name, input, d.X, d.Y)
		if err != nil {
			return nil, err
		}
		return p, nil

	case "asymmetric":
		var d struct {
			Input   json.RawMessage `json:"input"`
			Rising  json.RawMessage `json:"rising"`
			Falling json.RawMessage `json:"falling"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		input, err := decodeMetric(d.Input, net, paramIdx)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: input: %w", name, err)
		}
		rising, err := decodeMetric(d.Rising, net, paramIdx)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: rising: %w", name, err)
		}
		falling, err := decodeMetric(d.Falling, net, paramIdx)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: falling: %w", name, err)
		}
		return param.NewAsymmetric(name, input, rising, falling), nil

	case "threshold":
		var d struct {
			Input     json.RawMessage `json:"input"`
			Threshold json.RawMessage `json:"threshold"`
			Direction string          `json:"direction"` // "ge" (default) or "le"
			OnValue   float64         `json:"on_value"`
			OffValue  float64         `json:"off_value"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		input, err := decodeMetric(d.Input, net, paramIdx)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: input: %w", name, err)
		}
		threshold, err := decodeMetric(d.Threshold, net, paramIdx)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: threshold: %w", name, err)
		}
		dir := param.ThresholdGE
		if d.Direction == "le" {
			dir = param.ThresholdLE
		}
		return param.NewThreshold(name, input, threshold, dir, d.OnValue, d.OffValue), nil

	case "delay":
		var d struct {
			Input   json.RawMessage `json:"input"`
			Steps   int             `json:"steps"`
			Initial float64         `json:"initial"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		input, err := decodeMetric(d.Input, net, paramIdx)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: input: %w", name, err)
		}
		return param.NewDelayParameter(name, input, d.Steps, d.Initial), nil

	case "muskingum":
		var d struct {
			Input  json.RawMessage `json:"input"`
			K      float64         `json:"k"`
			X      float64         `json:"x"`
			DtDays float64         `json:"dt_days"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		input, err := decodeMetric(d.Input, net, paramIdx)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: input: %w", name, err)
		}
		return param.NewMuskingum(name, input, d.K, d.X, d.DtDays), nil

	case "timeseries":
		var d struct {
			Column string `json:"column"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		return param.NewTimeseriesParameter(name, d.Column), nil

	case "external":
		return nil, fmt.Errorf("parameter %q: external parameters cannot be declared in a document; register them programmatically and reference them by name", name)

	default:
		return nil, fmt.Errorf("parameter %q: unknown type %q", name, typ)
	}
}
