// Package mapping implements Mapping and Pipe (spec §4.4): declarative,
// path-addressed JSON-to-JSON transformers chained into a pipeline that
// terminates at the indexer. Grounded on the original RestPose
// Mapping/MappingActions/Pipe (src/jsonmanip/mapping.{h,cc} and
// src/jsonmanip/pipe.{h,cc}).
package mapping

import "github.com/restpose-go/corepose/categoriser"

// DefaultAction controls what happens to a field for which no mapping
// rule matched.
type DefaultAction int

const (
	PreserveTop DefaultAction = iota
	Discard
)

// MappingTarget is one destination a matched value is copied to,
// optionally run through a categoriser first.
type MappingTarget struct {
	Field       string
	Categoriser string
}

// MappingActions is one node of the path-keyed mapping tree: the targets
// triggered when this exact path is reached, plus children for deeper
// paths.
type MappingActions struct {
	Children     map[PathComponent]*MappingActions
	TargetFields []MappingTarget
}

// Find returns (creating if necessary) the node at path, a sequence of
// PathComponents, mirroring MappingActions::find.
func (a *MappingActions) Find(path []PathComponent) *MappingActions {
	node := a
	for _, comp := range path {
		if node.Children == nil {
			node.Children = make(map[PathComponent]*MappingActions)
		}
		child, ok := node.Children[comp]
		if !ok {
			child = &MappingActions{}
			node.Children[comp] = child
		}
		node = child
	}
	return node
}

// Mapping is one stage of a Pipe: an optional guard conditional, a
// path-addressed extraction tree, and a policy for unmatched fields.
type Mapping struct {
	When          *Conditional
	Actions       *MappingActions
	DefaultAction DefaultAction
}

// NewMapping returns an empty mapping with PreserveTop default handling.
func NewMapping() *Mapping {
	return &Mapping{Actions: &MappingActions{Children: make(map[PathComponent]*MappingActions)}}
}

// Categorisers resolves a categoriser by name; Mapping.Apply calls it
// lazily, only for targets that name one.
type Categorisers interface {
	Categoriser(name string) (categoriser.Categoriser, bool)
}

// Apply evaluates the mapping's `when` guard against input and, if it
// passes, walks input applying the mapping tree. It returns (output,
// true) on a match, or (nil, false) if `when` rejected the input.
func (m *Mapping) Apply(input map[string]interface{}, cats Categorisers) (map[string]interface{}, bool) {
	if !m.When.Test(input) {
		return nil, false
	}
	output := make(map[string]interface{})
	for key, val := range input {
		node, ok := m.Actions.Children[KeyComponent(key)]
		handledTop := false
		if ok {
			for _, t := range node.TargetFields {
				applyTarget(t, val, output, cats)
				handledTop = true
			}
			if walkChildren(node, val, output, cats) {
				handledTop = true
			}
		}
		if !handledTop && m.DefaultAction == PreserveTop {
			appendField(output, key, val)
		}
	}
	return output, true
}

// walkChildren descends into node's children following value's shape,
// applying any matched descendant's targets. It reports whether any
// target anywhere in the subtree matched, so the caller can tell a
// nested-only match from no match at all (spec §4.4 default_action
// applies to the whole top-level subtree, not just its exact node).
func walkChildren(node *MappingActions, value interface{}, output map[string]interface{}, cats Categorisers) bool {
	matched := false
	switch v := value.(type) {
	case map[string]interface{}:
		for k, cv := range v {
			sub, ok := node.Children[KeyComponent(k)]
			if !ok {
				continue
			}
			for _, t := range sub.TargetFields {
				applyTarget(t, cv, output, cats)
				matched = true
			}
			if walkChildren(sub, cv, output, cats) {
				matched = true
			}
		}
	case []interface{}:
		for i, cv := range v {
			sub, ok := node.Children[IndexComponent(i)]
			if !ok {
				continue
			}
			for _, t := range sub.TargetFields {
				applyTarget(t, cv, output, cats)
				matched = true
			}
			if walkChildren(sub, cv, output, cats) {
				matched = true
			}
		}
	}
	return matched
}

func applyTarget(t MappingTarget, value interface{}, output map[string]interface{}, cats Categorisers) {
	if t.Categoriser == "" {
		appendField(output, t.Field, value)
		return
	}

	text := flattenForCategoriser(value)
	if text == "" {
		appendField(output, t.Field, []interface{}{})
		return
	}
	var labels []string
	if cats != nil {
		if c, ok := cats.Categoriser(t.Categoriser); ok {
			labels = c.Categorise(text)
		}
	}
	out := make([]interface{}, len(labels))
	for i, l := range labels {
		out[i] = l
	}
	appendField(output, t.Field, out)
}

// flattenForCategoriser reduces value to the whitespace-joined string a
// categoriser expects: a string passes through, a non-string scalar is
// ignored, and an array of strings is space-joined (non-strings
// skipped).
func flattenForCategoriser(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []interface{}:
		var out string
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if out != "" {
				out += " "
			}
			out += s
		}
		return out
	default:
		return ""
	}
}

// appendField implements the output accumulation invariant (spec §4.4):
// every target field holds an array; appending an array flattens one
// level, appending an empty array resets to empty, appending a scalar
// appends one element.
func appendField(output map[string]interface{}, key string, value interface{}) {
	existing, ok := output[key].([]interface{})
	if !ok {
		existing = []interface{}{}
	}
	switch v := value.(type) {
	case []interface{}:
		if len(v) == 0 {
			existing = []interface{}{}
		} else {
			existing = append(existing, v...)
		}
	default:
		existing = append(existing, v)
	}
	output[key] = existing
}
