package actions

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Dispatcher validates and executes policy-chosen invocations against
// the catalog. All failures come back as *DispatchError values; a raw
// handler fault never crosses the Dispatch boundary.
type Dispatcher struct {
	catalog *Catalog
	logger  *zap.Logger
	pool    *workerPool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithWorkers sets the maximum number of handler executions in flight.
func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		d.pool = newWorkerPool(int64(n))
	}
}

// NewDispatcher creates a dispatcher over the given catalog.
func NewDispatcher(catalog *Catalog, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		catalog: catalog,
		logger:  logger.Named("dispatcher"),
		pool:    newWorkerPool(4),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs one invocation: resolve the action, validate the raw
// parameters, resolve capabilities, execute the handler on the worker
// pool, and normalize the result. The returned error, when non-nil, is
// always a *DispatchError; the caller decides whether to retry, surface
// it to the policy, or abort. No retries happen here.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation, caps Capabilities) (Outcome, error) {
	start := time.Now()

	action, ok := d.catalog.Lookup(inv.Name)
	if !ok {
		err := newUnknownAction(inv.Name)
		d.logRecord(inv.Name, false, start, err)
		return Outcome{}, err
	}

	params, err := validateParams(action.Schema, inv.Params)
	if err != nil {
		d.logRecord(inv.Name, false, start, err)
		return Outcome{}, err
	}

	resolved, err := resolveCapabilities(action.Schema, caps)
	if err != nil {
		d.logRecord(inv.Name, false, start, err)
		return Outcome{}, err
	}

	raw, err := d.pool.run(ctx, func() (interface{}, error) {
		return action.Handler(ctx, params, resolved)
	})
	if err != nil {
		derr := newExecutionError(inv.Name, err)
		d.logRecord(inv.Name, false, start, derr)
		return Outcome{}, derr
	}

	outcome, err := normalizeResult(inv.Name, raw)
	if err != nil {
		d.logRecord(inv.Name, false, start, err)
		return Outcome{}, err
	}
	d.logRecord(inv.Name, outcome.Error == "", start, nil)
	return outcome, nil
}

func (d *Dispatcher) logRecord(action string, success bool, start time.Time, err error) {
	fields := []zap.Field{
		zap.String("action", action),
		zap.Bool("success", success),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		fields = append(fields, zap.String("error_kind", string(KindOf(err))), zap.Error(err))
		d.logger.Warn("Action dispatch failed", fields...)
		return
	}
	d.logger.Info("Action dispatched", fields...)
}

// validateParams checks the raw payload against the schema: required
// parameters present, present parameters type-compatible, defaults
// applied, unknown extras dropped. All offending parameter names are
// collected into a single validation error.
func validateParams(schema ActionSchema, raw map[string]interface{}) (Params, error) {
	values := make(map[string]interface{}, len(schema.Params))
	var offending []string
	var firstCause error

	for _, spec := range schema.Params {
		v, present := raw[spec.Name]
		if !present || v == nil {
			if spec.Default != nil {
				values[spec.Name] = spec.Default
				continue
			}
			if spec.Required {
				offending = append(offending, spec.Name)
				if firstCause == nil {
					firstCause = fmt.Errorf("required parameter %q missing", spec.Name)
				}
			}
			continue
		}
		coerced, ok := coerceValue(spec.Type, v)
		if !ok {
			offending = append(offending, spec.Name)
			if firstCause == nil {
				firstCause = fmt.Errorf("parameter %q: %T is not %s", spec.Name, v, spec.Type)
			}
			continue
		}
		values[spec.Name] = coerced
	}

	if len(offending) > 0 {
		return Params{}, newValidationError(schema.Name, offending, firstCause)
	}
	return Params{values: values}, nil
}

// coerceValue normalizes a raw JSON-decoded value to the declared
// parameter type. JSON numbers arrive as float64; integral floats are
// accepted for integer parameters, everything else is rejected.
func coerceValue(t ParamType, v interface{}) (interface{}, bool) {
	switch t {
	case ParamString:
		s, ok := v.(string)
		return s, ok
	case ParamBool:
		b, ok := v.(bool)
		return b, ok
	case ParamInt:
		switch n := v.(type) {
		case int:
			return n, true
		case int64:
			return int(n), true
		case float64:
			if n == float64(int(n)) {
				return int(n), true
			}
		}
		return nil, false
	case ParamFloat:
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		}
		return nil, false
	}
	return nil, false
}

// resolveCapabilities checks every declared capability is present in the
// caller-supplied context. A handler is never invoked with a silently
// nil capability.
func resolveCapabilities(schema ActionSchema, caps Capabilities) (Capabilities, error) {
	resolved := make(Capabilities, len(schema.Capabilities))
	for _, id := range schema.Capabilities {
		handle := caps.Get(id)
		if handle == nil {
			return nil, newCapabilityMissing(schema.Name, id)
		}
		resolved[id] = handle
	}
	return resolved, nil
}

// normalizeResult maps the handler's return value onto the fixed Outcome
// shape. Plain text becomes extracted content with a truncated long-term
// memory copy; a nil result is an empty success.
func normalizeResult(action string, raw interface{}) (Outcome, error) {
	switch v := raw.(type) {
	case nil:
		return Outcome{Success: true}, nil
	case string:
		return Outcome{
			Success:          true,
			ExtractedContent: v,
			LongTermMemory:   truncateRunes(v, maxMemoryChars),
		}, nil
	case Outcome:
		return v, nil
	case *Outcome:
		if v == nil {
			return Outcome{Success: true}, nil
		}
		return *v, nil
	default:
		return Outcome{}, newInvalidResult(action, fmt.Errorf("handler returned unsupported type %T", raw))
	}
}
