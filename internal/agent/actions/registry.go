package actions

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Handler is the single fixed contract every action conforms to. It
// receives the validated parameters and the resolved capabilities and
// returns either a plain string, an Outcome (value or pointer), or nil;
// anything else is rejected by the dispatcher as an invalid result.
type Handler func(ctx context.Context, params Params, caps Capabilities) (interface{}, error)

// RegisteredAction pairs an immutable schema with its handler. Instances
// are owned exclusively by the Catalog.
type RegisteredAction struct {
	Schema  ActionSchema
	Handler Handler
}

// Catalog is the keyed collection of registered actions, built once at
// startup. Registration is not concurrency-safe; reads are safe for
// concurrent callers once registration has completed.
type Catalog struct {
	logger  *zap.Logger
	actions map[string]*RegisteredAction
	order   []string
	exclude map[string]struct{}
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithExcludedActions suppresses registration of the named actions.
// Register calls for them succeed silently, mirroring an operator
// stripping capabilities from a deployment without touching call sites.
func WithExcludedActions(names ...string) CatalogOption {
	return func(c *Catalog) {
		for _, n := range names {
			c.exclude[n] = struct{}{}
		}
	}
}

// NewCatalog creates an empty action catalog.
func NewCatalog(logger *zap.Logger, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		logger:  logger.Named("action_catalog"),
		actions: make(map[string]*RegisteredAction),
		exclude: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds an action to the catalog. Registering a second action
// under an existing name is rejected with a DuplicateAction error;
// the silent-overwrite behavior of earlier revisions hid wiring bugs.
func (c *Catalog) Register(schema ActionSchema, handler Handler) error {
	if _, skip := c.exclude[schema.Name]; skip {
		c.logger.Debug("Skipping excluded action", zap.String("action", schema.Name))
		return nil
	}
	if err := schema.Validate(); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("action %q registered without a handler", schema.Name)
	}
	if _, exists := c.actions[schema.Name]; exists {
		return newDuplicateAction(schema.Name)
	}
	c.actions[schema.Name] = &RegisteredAction{Schema: schema, Handler: handler}
	c.order = append(c.order, schema.Name)
	return nil
}

// Lookup returns the registered action under name.
func (c *Catalog) Lookup(name string) (*RegisteredAction, bool) {
	a, ok := c.actions[name]
	return a, ok
}

// Len returns the number of registered actions.
func (c *Catalog) Len() int { return len(c.actions) }

// ExportSchema builds the combined policy-facing schema. With no
// arguments every registered action is included; otherwise only the
// named subset, still in registration order. Capability identifiers
// never appear in the export.
func (c *Catalog) ExportSchema(include ...string) CombinedSchema {
	var filter map[string]struct{}
	if len(include) > 0 {
		filter = make(map[string]struct{}, len(include))
		for _, n := range include {
			filter[n] = struct{}{}
		}
	}

	out := CombinedSchema{}
	for _, name := range c.order {
		if filter != nil {
			if _, ok := filter[name]; !ok {
				continue
			}
		}
		a := c.actions[name]
		desc := ActionDescriptor{
			Name:        a.Schema.Name,
			Description: a.Schema.Description,
			Parameters:  make([]ParameterDescriptor, 0, len(a.Schema.Params)),
		}
		for _, p := range a.Schema.Params {
			desc.Parameters = append(desc.Parameters, ParameterDescriptor{
				Name:     p.Name,
				Type:     p.Type,
				Required: p.Required,
				Default:  p.Default,
			})
		}
		out.Actions = append(out.Actions, desc)
	}
	return out
}

// PromptDescription renders all registered actions as a compact text
// block for prompt builders: one line per action with its description
// and parameter shape.
func (c *Catalog) PromptDescription() string {
	var b strings.Builder
	for _, name := range c.order {
		a := c.actions[name]
		fmt.Fprintf(&b, "%s: \n{%s: {", a.Schema.Description, name)
		for i, p := range a.Schema.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: {type: %s", p.Name, p.Type)
			if !p.Required {
				b.WriteString(", optional")
			}
			b.WriteString("}")
		}
		b.WriteString("}}\n")
	}
	return b.String()
}
