package actions

import (
	"fmt"
	"sort"

	json "github.com/json-iterator/go"
)

// ParamType is the wire-level type tag of a declared action parameter.
// Using a closed set keeps validation table-driven and prevents handlers
// from declaring shapes the policy cannot express in JSON.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamInt    ParamType = "integer"
	ParamFloat  ParamType = "number"
	ParamBool   ParamType = "boolean"
)

// ParamSpec describes a single business parameter of an action.
type ParamSpec struct {
	Name     string      `json:"name"`
	Type     ParamType   `json:"type"`
	Required bool        `json:"required"`
	Default  interface{} `json:"default,omitempty"`
}

// ParameterSchema is the ordered list of business parameters an action
// accepts. Order is the declared order; capability identifiers are never
// part of it.
type ParameterSchema []ParamSpec

// ActionSchema is the immutable description of one registered action.
// Capabilities lists the identifiers of injected dependencies (e.g. the
// device handle) that the dispatcher resolves from the caller-supplied
// capability context. The policy never sees them.
type ActionSchema struct {
	Name         string
	Description  string
	Params       ParameterSchema
	Capabilities []string
}

// Validate checks an ActionSchema for internal consistency prior to
// registration.
func (s ActionSchema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("action schema requires a name")
	}
	seen := make(map[string]struct{}, len(s.Params))
	for _, p := range s.Params {
		if p.Name == "" {
			return fmt.Errorf("action %q declares a parameter with an empty name", s.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("action %q declares parameter %q twice", s.Name, p.Name)
		}
		seen[p.Name] = struct{}{}
		switch p.Type {
		case ParamString, ParamInt, ParamFloat, ParamBool:
		default:
			return fmt.Errorf("action %q parameter %q has unknown type %q", s.Name, p.Name, p.Type)
		}
		if p.Required && p.Default != nil {
			return fmt.Errorf("action %q parameter %q is required but also carries a default", s.Name, p.Name)
		}
	}
	capSeen := make(map[string]struct{}, len(s.Capabilities))
	for _, id := range s.Capabilities {
		if id == "" {
			return fmt.Errorf("action %q declares an empty capability identifier", s.Name)
		}
		if _, dup := capSeen[id]; dup {
			return fmt.Errorf("action %q declares capability %q twice", s.Name, id)
		}
		if _, clash := seen[id]; clash {
			return fmt.Errorf("action %q capability %q collides with a parameter of the same name", s.Name, id)
		}
		capSeen[id] = struct{}{}
	}
	return nil
}

// ParameterDescriptor is the policy-facing view of one parameter.
type ParameterDescriptor struct {
	Name     string      `json:"name"`
	Type     ParamType   `json:"type"`
	Required bool        `json:"required"`
	Default  interface{} `json:"default,omitempty"`
}

// ActionDescriptor is the policy-facing view of one action. It carries
// no handler or capability information.
type ActionDescriptor struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Parameters  []ParameterDescriptor `json:"parameters"`
}

// CombinedSchema describes the full action surface offered to the
// policy: exactly one of the listed actions may be chosen per step.
type CombinedSchema struct {
	Actions []ActionDescriptor `json:"actions"`
}

// Names returns the action names in registration order.
func (c CombinedSchema) Names() []string {
	names := make([]string, 0, len(c.Actions))
	for _, a := range c.Actions {
		names = append(names, a.Name)
	}
	return names
}

// JSONSchema renders the combined schema as a JSON Schema object whose
// instances are single-key objects: the key selects the action, the
// value carries that action's parameter payload.
func (c CombinedSchema) JSONSchema() ([]byte, error) {
	properties := make(map[string]interface{}, len(c.Actions))
	for _, a := range c.Actions {
		paramProps := make(map[string]interface{}, len(a.Parameters))
		var required []string
		for _, p := range a.Parameters {
			prop := map[string]interface{}{"type": string(p.Type)}
			if p.Default != nil {
				prop["default"] = p.Default
			}
			paramProps[p.Name] = prop
			if p.Required {
				required = append(required, p.Name)
			}
		}
		action := map[string]interface{}{
			"type":        "object",
			"description": a.Description,
			"properties":  paramProps,
		}
		if len(required) > 0 {
			sort.Strings(required)
			action["required"] = required
		}
		properties[a.Name] = action
	}
	root := map[string]interface{}{
		"type":          "object",
		"properties":    properties,
		"minProperties": 1,
		"maxProperties": 1,
	}
	return json.Marshal(root)
}
