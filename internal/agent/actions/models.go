package actions

import (
	"fmt"
	"sort"
	"unicode/utf8"

	json "github.com/json-iterator/go"
)

// Invocation is one action choice produced by the policy-interpretation
// layer: the action name plus the raw, untyped parameter payload. It is
// consumed exactly once by Dispatch and never retained.
type Invocation struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params"`
}

// ParseInvocation decodes the aggregate form emitted by the policy: a
// single-key object whose key is the action name and whose value is the
// parameter payload. Zero keys or more than one key is a validation
// failure, not first-match-wins.
func ParseInvocation(data []byte) (Invocation, error) {
	var aggregate map[string]map[string]interface{}
	if err := json.Unmarshal(data, &aggregate); err != nil {
		return Invocation{}, newValidationError("", nil, fmt.Errorf("malformed invocation payload: %w", err))
	}
	return InvocationFromAggregate(aggregate)
}

// InvocationFromAggregate converts an aggregate action object (one field
// per available action, exactly one set) into a single Invocation.
func InvocationFromAggregate(aggregate map[string]map[string]interface{}) (Invocation, error) {
	if len(aggregate) == 0 {
		return Invocation{}, newValidationError("", nil, fmt.Errorf("no action selected"))
	}
	if len(aggregate) > 1 {
		names := make([]string, 0, len(aggregate))
		for name := range aggregate {
			names = append(names, name)
		}
		sort.Strings(names)
		return Invocation{}, newValidationError("", names, fmt.Errorf("multiple actions selected, expected exactly one"))
	}
	for name, params := range aggregate {
		if params == nil {
			params = map[string]interface{}{}
		}
		return Invocation{Name: name, Params: params}, nil
	}
	// unreachable
	return Invocation{}, newValidationError("", nil, fmt.Errorf("no action selected"))
}

// Params is the validated, typed view of an invocation's parameters that
// handlers receive. Defaults from the schema are already applied and
// unknown extras stripped.
type Params struct {
	values map[string]interface{}
}

// Has reports whether the named parameter was supplied or defaulted.
func (p Params) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// String returns the named string parameter, or "" when absent.
func (p Params) String(name string) string {
	v, _ := p.values[name].(string)
	return v
}

// Int returns the named integer parameter, or 0 when absent.
func (p Params) Int(name string) int {
	switch v := p.values[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Float returns the named numeric parameter, or 0 when absent.
func (p Params) Float(name string) float64 {
	switch v := p.values[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Bool returns the named boolean parameter, or false when absent.
func (p Params) Bool(name string) bool {
	v, _ := p.values[name].(bool)
	return v
}

// Capabilities is the per-invocation map of injected dependencies,
// keyed by capability identifier. It is supplied by the caller of
// Dispatch; the policy has no channel to populate or override it.
type Capabilities map[string]interface{}

// Get returns the capability handle registered under id, or nil.
func (c Capabilities) Get(id string) interface{} {
	if c == nil {
		return nil
	}
	return c[id]
}

// Outcome is the structured result of executing one action.
type Outcome struct {
	Success          bool   `json:"success"`
	IsDone           bool   `json:"is_done"`
	ExtractedContent string `json:"extracted_content,omitempty"`
	LongTermMemory   string `json:"long_term_memory,omitempty"`
	Error            string `json:"error,omitempty"`
}

// maxMemoryChars bounds the long-term memory copy made from plain text
// handler results.
const maxMemoryChars = 100

// truncateRunes returns at most limit runes of s.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
