package mapping

import (
	"encoding/json"

	"github.com/restpose-go/corepose/rpcerr"
)

// pipeWire is Pipe's on-the-wire shape (spec §6).
type pipeWire struct {
	Mappings []*Mapping `json:"mappings"`
	ApplyAll bool       `json:"apply_all"`
	Target   string     `json:"target"`
}

// MarshalJSON implements json.Marshaler.
func (p *Pipe) MarshalJSON() ([]byte, error) {
	return json.Marshal(pipeWire{Mappings: p.Mappings, ApplyAll: p.ApplyAll, Target: p.Target})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Pipe) UnmarshalJSON(data []byte) error {
	var wire pipeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	p.Mappings = wire.Mappings
	p.ApplyAll = wire.ApplyAll
	p.Target = wire.Target
	return nil
}

type mappingTargetWire struct {
	From        json.RawMessage `json:"from"`
	To          string          `json:"to"`
	Categoriser string          `json:"categoriser,omitempty"`
}

type mappingWire struct {
	When    json.RawMessage     `json:"when,omitempty"`
	Default string              `json:"default,omitempty"`
	Map     []mappingTargetWire `json:"map,omitempty"`
}

// MarshalJSON implements json.Marshaler, flattening the mapping tree
// back into a list of {from, to, categoriser?} entries (spec §6).
func (m *Mapping) MarshalJSON() ([]byte, error) {
	wire := mappingWire{}
	if m.DefaultAction == Discard {
		wire.Default = "discard"
	}
	if m.When != nil {
		data, err := json.Marshal(m.When)
		if err != nil {
			return nil, err
		}
		wire.When = data
	}
	if m.Actions != nil {
		collectTargets(m.Actions, nil, &wire.Map)
	}
	return json.Marshal(wire)
}

func collectTargets(node *MappingActions, path []interface{}, out *[]mappingTargetWire) {
	for _, t := range node.TargetFields {
		fromJSON, _ := json.Marshal(path)
		*out = append(*out, mappingTargetWire{From: fromJSON, To: t.Field, Categoriser: t.Categoriser})
	}
	for comp, child := range node.Children {
		var step interface{}
		if comp.IsIndex {
			step = comp.Index
		} else {
			step = comp.Key
		}
		collectTargets(child, append(append([]interface{}{}, path...), step), out)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	var wire mappingWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	switch wire.Default {
	case "", "preserve_top":
		m.DefaultAction = PreserveTop
	case "discard":
		m.DefaultAction = Discard
	default:
		return rpcerr.New(rpcerr.InvalidValue, "mapping: invalid value for \"default\" parameter")
	}

	if len(wire.When) > 0 {
		var cond Conditional
		if err := json.Unmarshal(wire.When, &cond); err != nil {
			return err
		}
		m.When = &cond
	}

	m.Actions = &MappingActions{Children: make(map[PathComponent]*MappingActions)}
	for _, entry := range wire.Map {
		path, err := decodePath(entry.From)
		if err != nil {
			return err
		}
		node := m.Actions.Find(path)
		node.TargetFields = append(node.TargetFields, MappingTarget{Field: entry.To, Categoriser: entry.Categoriser})
	}
	return nil
}

func decodePath(raw json.RawMessage) ([]PathComponent, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []PathComponent{KeyComponent(single)}, nil
	}
	var items []interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, rpcerr.Wrap(rpcerr.InvalidValue, "mapping: invalid \"from\" path", err)
	}
	out := make([]PathComponent, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, KeyComponent(v))
		case float64:
			out = append(out, IndexComponent(int(v)))
		default:
			return nil, rpcerr.New(rpcerr.InvalidValue, "mapping: path component must be a string or integer")
		}
	}
	return out, nil
}

// conditionalWire is Conditional's on-the-wire shape: a single-key
// object naming the operator.
type conditionalWire struct {
	Exists *[]string          `json:"exists,omitempty"`
	Eq     *conditionalEqWire `json:"eq,omitempty"`
	And    []*Conditional     `json:"and,omitempty"`
	Or     []*Conditional     `json:"or,omitempty"`
	Not    *Conditional       `json:"not,omitempty"`
}

type conditionalEqWire struct {
	Path  []string    `json:"path"`
	Value interface{} `json:"value"`
}

// MarshalJSON implements json.Marshaler.
func (c *Conditional) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	wire := conditionalWire{}
	switch c.Op {
	case CondExists:
		wire.Exists = &c.Path
	case CondEq:
		wire.Eq = &conditionalEqWire{Path: c.Path, Value: c.Value}
	case CondAnd:
		wire.And = c.Children
	case CondOr:
		wire.Or = c.Children
	case CondNot:
		if len(c.Children) > 0 {
			wire.Not = c.Children[0]
		}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Conditional) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Conditional{}
		return nil
	}
	var wire conditionalWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch {
	case wire.Exists != nil:
		c.Op, c.Path = CondExists, *wire.Exists
	case wire.Eq != nil:
		c.Op, c.Path, c.Value = CondEq, wire.Eq.Path, wire.Eq.Value
	case wire.And != nil:
		c.Op, c.Children = CondAnd, wire.And
	case wire.Or != nil:
		c.Op, c.Children = CondOr, wire.Or
	case wire.Not != nil:
		c.Op, c.Children = CondNot, []*Conditional{wire.Not}
	default:
		return rpcerr.New(rpcerr.InvalidValue, "mapping: conditional must name exactly one operator")
	}
	return nil
}
