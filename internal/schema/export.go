package schema

import "encoding/json"

// ExportJSONSchema returns a JSON Schema document describing the shape of a
// ModelDoc, for editor tooling and document authors. It is hand-written
// rather than reflected off ModelDoc's struct tags: nodes/parameters/metrics
// are tagged unions keyed by a runtime "type" string, a shape
// encoding/json's own reflection (and every schema-generation library in
// this repo's dependency pack, of which there are none) cannot derive
// automatically without a oneOf/discriminator description hand-authored
// per family anyway.
func ExportJSONSchema() ([]byte, error) {
	schema := map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title":   "pywr model document",
		"type":    "object",
		"required": []string{"calendar", "nodes", "edges"},
		"properties": map[string]any{
			"version": map[string]any{"type": "string"},
			"calendar": map[string]any{
				"type":     "object",
				"required": []string{"start", "end"},
				"properties": map[string]any{
					"start": map[string]any{"type": "string", "format": "date"},
					"end":   map[string]any{"type": "string", "format": "date"},
					"step": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"kind": map[string]any{"enum": []string{"days", "hours", "monthly", "annual"}},
							"n":    map[string]any{"type": "integer", "minimum": 1},
						},
					},
				},
			},
			"scenarios": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"name", "size"},
					"properties": map[string]any{
						"name":   map[string]any{"type": "string"},
						"size":   map[string]any{"type": "integer", "minimum": 1},
						"labels": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"subset": map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
					},
				},
			},
			"nodes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"type", "name"},
					"properties": map[string]any{
						"type": map[string]any{"enum": []string{
							"input", "output", "link", "catchment", "storage",
							"virtual_storage", "rolling_virtual_storage",
							"piecewise_link", "piecewise_storage", "aggregated",
							"loss_link", "water_treatment_works", "delay",
							"river", "river_split", "reservoir",
						}},
						"name": map[string]any{"type": "string"},
					},
				},
			},
			"edges": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"from", "to"},
					"properties": map[string]any{
						"from":      map[string]any{"type": "string"},
						"to":        map[string]any{"type": "string"},
						"from_slot": map[string]any{"type": "string"},
						"to_slot":   map[string]any{"type": "string"},
					},
				},
			},
			"parameters": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"type", "name"},
					"properties": map[string]any{
						"type": map[string]any{"enum": []string{
							"constant", "daily_profile", "monthly_profile", "aggregated",
							"control_curve_index", "polynomial", "interpolated",
							"asymmetric", "threshold", "delay", "muskingum", "timeseries",
						}},
						"name": map[string]any{"type": "string"},
					},
				},
			},
			"metric_sets": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"name", "metrics"},
					"properties": map[string]any{
						"name":    map[string]any{"type": "string"},
						"labels":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"metrics": map[string]any{"type": "array"},
					},
				},
			},
			"solver":  map[string]any{"type": "string"},
			"threads": map[string]any{"type": "integer", "minimum": 0},
		},
	}
	return json.MarshalIndent(schema, "", "  ")
}
