// Package v1 upgrades pre-v2 model documents (YAML, "timestepper" instead
// of "calendar", edges keyed by from_node/to_node) to the current
// internal/schema.ModelDoc shape. Grounded on the teacher's
// workload.UpgradeV1ToV2: an in-place, idempotent, warn-and-map upgrade
// rather than a hard error on deprecated field names.
package v1

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/pywr-go/pywr/internal/schema"
)

type legacyTimestepDoc struct {
	Kind string `yaml:"kind"`
	N    int    `yaml:"n"`
}

type legacyTimestepperDoc struct {
	Start    string            `yaml:"start"`
	End      string            `yaml:"end"`
	Timestep legacyTimestepDoc `yaml:"timestep"`
}

type legacyEdgeDoc struct {
	FromNode string `yaml:"from_node"`
	ToNode   string `yaml:"to_node"`
	FromSlot string `yaml:"from_slot,omitempty"`
	ToSlot   string `yaml:"to_slot,omitempty"`
}

type legacyScenarioGroupDoc struct {
	Name   string   `yaml:"name"`
	Size   int      `yaml:"size"`
	Labels []string `yaml:"labels,omitempty"`
	Subset []int    `yaml:"subset,omitempty"`
}

type legacyMetricSetDoc struct {
	Name    string           `yaml:"name"`
	Metrics []map[string]any `yaml:"metrics"`
	Labels  []string         `yaml:"labels,omitempty"`
}

// LegacyModelDoc is the pre-v2 document shape. Node, parameter, and metric
// bodies are unchanged from v2 (same "type" discriminator and field names),
// so they decode as generic maps and round-trip through JSON unmodified;
// only the sections above renamed across the v1/v2 boundary need their own
// structs.
type LegacyModelDoc struct {
	Version     string                   `yaml:"version"`
	Timestepper legacyTimestepperDoc     `yaml:"timestepper"`
	Scenarios   []legacyScenarioGroupDoc `yaml:"scenarios,omitempty"`
	Nodes       []map[string]any         `yaml:"nodes"`
	Edges       []legacyEdgeDoc          `yaml:"edges"`
	Parameters  []map[string]any         `yaml:"parameters,omitempty"`
	MetricSets  []legacyMetricSetDoc     `yaml:"metric_sets,omitempty"`
	Solver      string                   `yaml:"solver,omitempty"`
	Threads     int                      `yaml:"threads,omitempty"`
}

// LoadLegacy reads a v1 YAML model document from path.
func LoadLegacy(path string) (*LegacyModelDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema/v1: reading %s: %w", path, err)
	}
	var doc LegacyModelDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema/v1: parsing %s: %w", path, err)
	}
	return &doc, nil
}

// ConvertV1ToV2 maps a legacy document onto schema.ModelDoc. It is
// idempotent in spirit: calling it on a document that happens to already
// carry v2-shaped nodes/parameters/metric bodies is harmless since those
// sections pass through unchanged.
func ConvertV1ToV2(legacy *LegacyModelDoc) (*schema.ModelDoc, error) {
	logrus.Warnf("model document version %q predates v2; auto-converting: timestepper -> calendar, from_node/to_node -> from/to", legacy.Version)

	if _, err := time.Parse("2006-01-02", legacy.Timestepper.Start); err != nil {
		return nil, fmt.Errorf("schema/v1: timestepper.start: %w", err)
	}

	doc := &schema.ModelDoc{
		Version: "2",
		Calendar: schema.CalendarDoc{
			Start: legacy.Timestepper.Start,
			End:   legacy.Timestepper.End,
			Step:  schema.StepDoc{Kind: legacy.Timestepper.Timestep.Kind, N: legacy.Timestepper.Timestep.N},
		},
		Solver:  legacy.Solver,
		Threads: legacy.Threads,
	}

	for _, g := range legacy.Scenarios {
		doc.Scenarios = append(doc.Scenarios, schema.ScenarioGroupDoc{
			Name: g.Name, Size: g.Size, Labels: g.Labels, Subset: g.Subset,
		})
	}

	for i, n := range legacy.Nodes {
		raw, err := json.Marshal(n)
		if err != nil {
			return nil, fmt.Errorf("schema/v1: node %d: %w", i, err)
		}
		doc.Nodes = append(doc.Nodes, raw)
	}

	for _, e := range legacy.Edges {
		doc.Edges = append(doc.Edges, schema.EdgeDoc{
			From: e.FromNode, To: e.ToNode, FromSlot: e.FromSlot, ToSlot: e.ToSlot,
		})
	}

	for i, p := range legacy.Parameters {
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("schema/v1: parameter %d: %w", i, err)
		}
		doc.Parameters = append(doc.Parameters, raw)
	}

	for _, ms := range legacy.MetricSets {
		set := schema.MetricSetDoc{Name: ms.Name, Labels: ms.Labels}
		for i, m := range ms.Metrics {
			raw, err := json.Marshal(m)
			if err != nil {
				return nil, fmt.Errorf("schema/v1: metric set %q metric %d: %w", ms.Name, i, err)
			}
			set.Metrics = append(set.Metrics, raw)
		}
		doc.MetricSets = append(doc.MetricSets, set)
	}

	return doc, nil
}

// LoadAndConvert reads a v1 YAML document and converts it to the current
// ModelDoc shape in one step.
func LoadAndConvert(path string) (*schema.ModelDoc, error) {
	legacy, err := LoadLegacy(path)
	if err != nil {
		return nil, err
	}
	return ConvertV1ToV2(legacy)
}
