// Package tools presents remote warehouse tools as locally callable units:
// a descriptor the model can read, a registry the loop can look them up in,
// and a dispatcher that validates arguments before anything crosses the wire.
package tools

import (
	"encoding/json"
	"sort"

	"github.com/voxalytics/voxalytics/pkg/models"
	"github.com/voxalytics/voxalytics/pkg/warehouse"
)

// Parameter kinds understood by the dispatcher. Anything else in a remote
// schema degrades to KindAny and passes through unvalidated.
const (
	KindString  = "string"
	KindInteger = "integer"
	KindNumber  = "number"
	KindBoolean = "boolean"
	KindAny     = "any"
)

// ParameterSpec describes one argument of a tool, interpreted generically by
// the dispatcher.
type ParameterSpec struct {
	Name        string
	Kind        string
	Required    bool
	Description string
}

// Descriptor is the immutable local description of one remote tool, built
// once at connection time.
type Descriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
	Parameters  []ParameterSpec
}

// DescriptorFromDefinition parses a warehouse tool definition into a
// Descriptor. A missing or malformed schema yields a zero-parameter tool,
// which stays callable with an empty argument set.
func DescriptorFromDefinition(def warehouse.ToolDefinition) Descriptor {
	desc := Descriptor{
		Name:        def.Name,
		Description: def.Description,
	}

	var schema map[string]any
	if len(def.InputSchema) > 0 {
		_ = json.Unmarshal(def.InputSchema, &schema)
	}
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	desc.InputSchema = schema
	desc.Parameters = parseParameters(schema)
	return desc
}

func parseParameters(schema map[string]any) []ParameterSpec {
	props, _ := schema["properties"].(map[string]any)
	required := map[string]bool{}
	if raw, ok := schema["required"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				required[s] = true
			}
		}
	}

	params := make([]ParameterSpec, 0, len(props))
	for name, raw := range props {
		spec := ParameterSpec{Name: name, Kind: KindAny, Required: required[name]}
		if sub, ok := raw.(map[string]any); ok {
			if t, ok := sub["type"].(string); ok {
				switch t {
				case "string", "integer", "number", "boolean":
					spec.Kind = t
				}
			}
			if d, ok := sub["description"].(string); ok {
				spec.Description = d
			}
		}
		params = append(params, spec)
	}
	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })
	return params
}

// Definition renders the descriptor into the provider-agnostic shape offered
// to the model.
func (d Descriptor) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.InputSchema,
	}
}

// Parameter returns the spec for a named parameter, if declared.
func (d Descriptor) Parameter(name string) (ParameterSpec, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}
