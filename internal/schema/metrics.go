package schema

import (
	"encoding/json"
	"fmt"

	"github.com/pywr-go/pywr/internal/metric"
	"github.com/pywr-go/pywr/internal/network"
)

type metricEnvelope struct {
	Type string `json:"type"`
}

func parseAggOp(s string) (metric.AggOp, error) {
	switch s {
	case "sum", "":
		return metric.AggSum, nil
	case "product":
		return metric.AggProduct, nil
	case "min":
		return metric.AggMin, nil
	case "max":
		return metric.AggMax, nil
	case "mean":
		return metric.AggMean, nil
	default:
		return 0, fmt.Errorf("unknown aggregation op %q", s)
	}
}

// decodeMetric reads one metric's "type" discriminator and decodes it into
// a metric.Metric, resolving node/edge references against net (which must
// already have every node and edge the document declares) and parameter
// references against paramIdx (name -> declaration index).
func decodeMetric(raw json.RawMessage, net *network.Network, paramIdx map[string]int) (metric.Metric, error) {
	var env metricEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding metric: %w", err)
	}

	switch env.Type {
	case "constant":
		var d struct {
			Value float64 `json:"value"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("metric constant: %w", err)
		}
		return metric.Constant{V: d.Value}, nil

	case "node_inflow", "node_outflow", "node_volume", "node_loss":
		var d struct {
			Node string `json:"node"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("metric %s: %w", env.Type, err)
		}
		idx, err := net.MustNodeByName(d.Node)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", env.Type, err)
		}
		switch env.Type {
		case "node_inflow":
			return metric.NodeInflow{NodeIdx: idx, NodeName: d.Node}, nil
		case "node_outflow":
			return metric.NodeOutflow{NodeIdx: idx, NodeName: d.Node}, nil
		case "node_volume":
			return metric.NodeVolume{NodeIdx: idx, NodeName: d.Node}, nil
		default:
			return metric.NodeLoss{NodeIdx: idx, NodeName: d.Node}, nil
		}

	case "edge_flow":
		var d struct {
			From     string `json:"from"`
			To       string `json:"to"`
			FromSlot string `json:"from_slot"`
			ToSlot   string `json:"to_slot"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("metric edge_flow: %w", err)
		}
		fromIdx, err := net.MustNodeByName(d.From)
		if err != nil {
			return nil, fmt.Errorf("metric edge_flow: %w", err)
		}
		toIdx, err := net.MustNodeByName(d.To)
		if err != nil {
			return nil, fmt.Errorf("metric edge_flow: %w", err)
		}
		for _, e := range net.Edges {
			if e.From == fromIdx && e.To == toIdx && e.FromSlot == d.FromSlot && e.ToSlot == d.ToSlot {
				return metric.EdgeFlow{EdgeIdx: e.Index}, nil
			}
		}
		return nil, fmt.Errorf("metric edge_flow: no edge %s->%s", d.From, d.To)

	case "parameter_value":
		var d struct {
			Parameter string `json:"parameter"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("metric parameter_value: %w", err)
		}
		idx, ok := paramIdx[d.Parameter]
		if !ok {
			return nil, fmt.Errorf("metric parameter_value: unknown parameter %q", d.Parameter)
		}
		return metric.ParameterValue{ParamIdx: idx, ParamName: d.Parameter}, nil

	case "timeseries":
		var d struct {
			Column      string `json:"column"`
			CurrentStep *bool  `json:"current_step"`
			Offset      int    `json:"offset"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("metric timeseries: %w", err)
		}
		sel := metric.RowSelector{CurrentStep: true, Offset: d.Offset}
		if d.CurrentStep != nil {
			sel.CurrentStep = *d.CurrentStep
		}
		return metric.Timeseries{Column: d.Column, Selector: sel}, nil

	case "aggregated":
		var d struct {
			Op      string            `json:"op"`
			Metrics []json.RawMessage `json:"metrics"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("metric aggregated: %w", err)
		}
		op, err := parseAggOp(d.Op)
		if err != nil {
			return nil, fmt.Errorf("metric aggregated: %w", err)
		}
		subs, err := decodeMetrics(d.Metrics, net, paramIdx)
		if err != nil {
			return nil, fmt.Errorf("metric aggregated: %w", err)
		}
		return metric.AggregatedMetric{Op: op, Metrics: subs}, nil

	default:
		return nil, fmt.Errorf("unknown metric type %q", env.Type)
	}
}

func decodeMetrics(raws []json.RawMessage, net *network.Network, paramIdx map[string]int) ([]metric.Metric, error) {
	out := make([]metric.Metric, len(raws))
	for i, r := range raws {
		m, err := decodeMetric(r, net, paramIdx)
		if err != nil {
			return nil, fmt.Errorf("metric %d: %w", i, err)
		}
		out[i] = m
	}
	return out, nil
}
