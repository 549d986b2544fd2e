package history

import (
	"fmt"
	"sort"
	"strings"
)

// SensitiveValues holds the literal secrets that must never reach the
// policy, keyed by placeholder name. Two configuration shapes are
// accepted: a flat key→value map, and a domain→{key→value} map. When
// both define the same placeholder, the domain-scoped value wins.
type SensitiveValues struct {
	Flat     map[string]string
	ByDomain map[string]map[string]string
}

// IsEmpty reports whether no usable secret is configured.
func (s SensitiveValues) IsEmpty() bool {
	return len(s.merged()) == 0
}

// Placeholders returns the sorted placeholder names across both shapes.
func (s SensitiveValues) Placeholders() []string {
	merged := s.merged()
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// merged flattens both shapes into one placeholder→value map. Flat
// entries are applied first so domain-scoped entries take precedence.
// Empty values are skipped.
func (s SensitiveValues) merged() map[string]string {
	out := make(map[string]string)
	for key, val := range s.Flat {
		if val != "" {
			out[key] = val
		}
	}
	for _, entries := range s.ByDomain {
		for key, val := range entries {
			if val != "" {
				out[key] = val
			}
		}
	}
	return out
}

// Redact returns a copy of msg with every literal occurrence of a
// configured sensitive value replaced by its placeholder tag. The input
// message is never mutated.
func Redact(msg Message, secrets SensitiveValues) Message {
	merged := secrets.merged()
	if len(merged) == 0 {
		return msg
	}
	out := msg.clone()
	for i, part := range out.Parts {
		if part.Type != PartText || part.Text == "" {
			continue
		}
		text := part.Text
		for key, val := range merged {
			text = strings.ReplaceAll(text, val, fmt.Sprintf("<secret>%s</secret>", key))
		}
		out.Parts[i].Text = text
	}
	return out
}
