package schema

import (
	"encoding/json"
	"fmt"

	"github.com/pywr-go/pywr/internal/network"
)

func (r ParamRefDoc) toParamRef() network.ParamRef {
	return network.ParamRef{Name: r.Name, Const: r.Const}
}

type nodeEnvelope struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type initialVolumeDoc struct {
	Kind  string  `json:"kind"` // "absolute" (default) or "proportional"
	Value float64 `json:"value"`
}

func (d initialVolumeDoc) toInitialVolume() network.InitialVolume {
	kind := network.Absolute
	if d.Kind == "proportional" {
		kind = network.Proportional
	}
	return network.InitialVolume{Kind: kind, Value: d.Value}
}

// decodeNode reads one node's "type" discriminator and decodes the fields
// that type expects into a network.Node. Every kind in network.Kind's enum
// has a case here.
func decodeNode(raw json.RawMessage) (network.Node, error) {
	var env nodeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return network.Node{}, fmt.Errorf("decoding node: %w", err)
	}
	if env.Name == "" {
		return network.Node{}, fmt.Errorf("node of type %q has no name", env.Type)
	}

	switch env.Type {
	case "input", "output", "link", "catchment":
		var d struct {
			MinFlow ParamRefDoc `json:"min_flow"`
			MaxFlow ParamRefDoc `json:"max_flow"`
			Cost    ParamRefDoc `json:"cost"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return network.Node{}, fmt.Errorf("node %q: %w", env.Name, err)
		}
		kinds := map[string]network.Kind{
			"input": network.Input, "output": network.Output,
			"link": network.Link, "catchment": network.Catchment,
		}
		return network.Node{
			Name: env.Name, Kind: kinds[env.Type],
			MinFlow: d.MinFlow.toParamRef(), MaxFlow: d.MaxFlow.toParamRef(), Cost: d.Cost.toParamRef(),
		}, nil

	case "storage":
		var d struct {
			MaxVolume     ParamRefDoc      `json:"max_volume"`
			InitialVolume initialVolumeDoc `json:"initial_volume"`
			Cost          ParamRefDoc      `json:"cost"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return network.Node{}, fmt.Errorf("node %q: %w", env.Name, err)
		}
		return network.Node{
			Name: env.Name, Kind: network.Storage,
			MaxVolume: d.MaxVolume.toParamRef(), InitialVolume: d.InitialVolume.toInitialVolume(), Cost: d.Cost.toParamRef(),
		}, nil

	case "virtual_storage", "rolling_virtual_storage":
		var d struct {
			VSNodes       []string         `json:"vs_nodes"`
			VSFactors     []float64        `json:"vs_factors"`
			VSWindow      int              `json:"vs_window"`
			MaxVolume     ParamRefDoc      `json:"max_volume"`
			InitialVolume initialVolumeDoc `json:"initial_volume"`
			Cost          ParamRefDoc      `json:"cost"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return network.Node{}, fmt.Errorf("node %q: %w", env.Name, err)
		}
		kind := network.VirtualStorage
		if env.Type == "rolling_virtual_storage" {
			kind = network.RollingVirtualStorage
		}
		return network.Node{
			Name: env.Name, Kind: kind,
			VSNodes: d.VSNodes, VSFactors: d.VSFactors, VSWindow: d.VSWindow,
			MaxVolume: d.MaxVolume.toParamRef(), InitialVolume: d.InitialVolume.toInitialVolume(), Cost: d.Cost.toParamRef(),
		}, nil

	case "piecewise_link":
		var d struct {
			Steps []struct {
				Cost    ParamRefDoc `json:"cost"`
				MaxFlow ParamRefDoc `json:"max_flow"`
			} `json:"steps"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return network.Node{}, fmt.Errorf("node %q: %w", env.Name, err)
		}
		steps := make([]network.PiecewiseStep, len(d.Steps))
		for i, s := range d.Steps {
			steps[i] = network.PiecewiseStep{Cost: s.Cost.toParamRef(), MaxFlow: s.MaxFlow.toParamRef()}
		}
		return network.Node{Name: env.Name, Kind: network.PiecewiseLink, Steps: steps}, nil

	case "piecewise_storage":
		var d struct {
			MaxVolume     ParamRefDoc      `json:"max_volume"`
			InitialVolume initialVolumeDoc `json:"initial_volume"`
			Slices        []struct {
				ControlCurve ParamRefDoc `json:"control_curve"`
				Cost         ParamRefDoc `json:"cost"`
			} `json:"slices"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return network.Node{}, fmt.Errorf("node %q: %w", env.Name, err)
		}
		slices := make([]network.PiecewiseStorageSlice, len(d.Slices))
		for i, s := range d.Slices {
			slices[i] = network.PiecewiseStorageSlice{ControlCurve: s.ControlCurve.toParamRef(), Cost: s.Cost.toParamRef()}
		}
		return network.Node{
			Name: env.Name, Kind: network.PiecewiseStorage,
			MaxVolume: d.MaxVolume.toParamRef(), InitialVolume: d.InitialVolume.toInitialVolume(), Slices: slices,
		}, nil

	case "aggregated":
		var d struct {
			AggregatedNodes []string `json:"aggregated_nodes"`
			Exclusive       struct {
				Enabled   bool `json:"enabled"`
				MinActive int  `json:"min_active"`
				MaxActive int  `json:"max_active"`
			} `json:"exclusive"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return network.Node{}, fmt.Errorf("node %q: %w", env.Name, err)
		}
		return network.Node{
			Name: env.Name, Kind: network.Aggregated,
			AggregatedNodes: d.AggregatedNodes,
			Exclusive: network.ExclusiveRelationship{
				Enabled: d.Exclusive.Enabled, MinActive: d.Exclusive.MinActive, MaxActive: d.Exclusive.MaxActive,
			},
		}, nil

	case "loss_link", "water_treatment_works":
		var d struct {
			MinFlow    ParamRefDoc `json:"min_flow"`
			MaxFlow    ParamRefDoc `json:"max_flow"`
			Cost       ParamRefDoc `json:"cost"`
			LossFactor ParamRefDoc `json:"loss_factor"`
			LossKind   string      `json:"loss_kind"` // "net" (default) or "gross"
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return network.Node{}, fmt.Errorf("node %q: %w", env.Name, err)
		}
		kind := network.LossLink
		if env.Type == "water_treatment_works" {
			kind = network.WaterTreatmentWorks
		}
		lossKind := network.LossNet
		if d.LossKind == "gross" {
			lossKind = network.LossGross
		}
		return network.Node{
			Name: env.Name, Kind: kind,
			MinFlow: d.MinFlow.toParamRef(), MaxFlow: d.MaxFlow.toParamRef(), Cost: d.Cost.toParamRef(),
			LossFactor: d.LossFactor.toParamRef(), LossKind: lossKind,
		}, nil

	case "delay":
		var d struct {
			MinFlow      ParamRefDoc `json:"min_flow"`
			MaxFlow      ParamRefDoc `json:"max_flow"`
			Cost         ParamRefDoc `json:"cost"`
			DelaySteps   int         `json:"delay_steps"`
			DelayInitial float64     `json:"delay_initial"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return network.Node{}, fmt.Errorf("node %q: %w", env.Name, err)
		}
		return network.Node{
			Name: env.Name, Kind: network.Delay,
			MinFlow: d.MinFlow.toParamRef(), MaxFlow: d.MaxFlow.toParamRef(), Cost: d.Cost.toParamRef(),
			DelaySteps: d.DelaySteps, DelayInitial: d.DelayInitial,
		}, nil

	case "river":
		var d struct {
			MinFlow      ParamRefDoc `json:"min_flow"`
			MaxFlow      ParamRefDoc `json:"max_flow"`
			Cost         ParamRefDoc `json:"cost"`
			RoutingParam ParamRefDoc `json:"routing_param"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return network.Node{}, fmt.Errorf("node %q: %w", env.Name, err)
		}
		return network.Node{
			Name: env.Name, Kind: network.River,
			MinFlow: d.MinFlow.toParamRef(), MaxFlow: d.MaxFlow.toParamRef(), Cost: d.Cost.toParamRef(),
			RoutingParam: d.RoutingParam.toParamRef(),
		}, nil

	case "river_split":
		var d struct {
			Splits []struct {
				Slot   string      `json:"slot"`
				Factor ParamRefDoc `json:"factor"`
			} `json:"splits"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return network.Node{}, fmt.Errorf("node %q: %w", env.Name, err)
		}
		splits := make([]network.RiverSplitTarget, len(d.Splits))
		for i, s := range d.Splits {
			splits[i] = network.RiverSplitTarget{Slot: s.Slot, Factor: s.Factor.toParamRef()}
		}
		return network.Node{Name: env.Name, Kind: network.RiverSplit, Splits: splits}, nil

	case "reservoir":
		var d struct {
			MaxVolume     ParamRefDoc      `json:"max_volume"`
			InitialVolume initialVolumeDoc `json:"initial_volume"`
			Cost          ParamRefDoc      `json:"cost"`
			RoutingParam  ParamRefDoc      `json:"routing_param"`
		}
		if err := json.Unmarshal(raw, &d); err != nil {
			return network.Node{}, fmt.Errorf("node %q: %w", env.Name, err)
		}
		return network.Node{
			Name: env.Name, Kind: network.Reservoir,
			MaxVolume: d.MaxVolume.toParamRef(), InitialVolume: d.InitialVolume.toInitialVolume(), Cost: d.Cost.toParamRef(),
			RoutingParam: d.RoutingParam.toParamRef(),
		}, nil

	default:
		return network.Node{}, fmt.Errorf("node %q: unknown type %q", env.Name, env.Type)
	}
}
