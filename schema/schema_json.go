package schema

import "encoding/json"

// schemaWire is the on-the-wire shape of a Schema (spec §6): patterns as
// an array of [glob, fieldconfig] pairs, fields as a plain object.
type schemaWire struct {
	Patterns [][2]json.RawMessage    `json:"patterns,omitempty"`
	Fields   map[string]*FieldConfig `json:"fields,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s *Schema) MarshalJSON() ([]byte, error) {
	wire := schemaWire{Fields: s.Fields}
	for _, p := range s.Patterns {
		globJSON, err := json.Marshal(p.Glob)
		if err != nil {
			return nil, err
		}
		cfgJSON, err := json.Marshal(p.Config)
		if err != nil {
			return nil, err
		}
		wire.Patterns = append(wire.Patterns, [2]json.RawMessage{globJSON, cfgJSON})
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler. TypeName is left untouched;
// the caller (CollectionConfig) knows it from the map key.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var wire schemaWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.Fields = wire.Fields
	if s.Fields == nil {
		s.Fields = make(map[string]*FieldConfig)
	}
	s.Patterns = nil
	for _, pair := range wire.Patterns {
		var glob string
		if err := json.Unmarshal(pair[0], &glob); err != nil {
			return err
		}
		var cfg FieldConfig
		if err := json.Unmarshal(pair[1], &cfg); err != nil {
			return err
		}
		s.Patterns = append(s.Patterns, PatternEntry{Glob: glob, Config: &cfg})
	}
	return nil
}

// Clone returns a deep copy of s, made by a JSON round trip.
func (s *Schema) Clone() *Schema {
	data, err := json.Marshal(s)
	if err != nil {
		return New(s.TypeName)
	}
	clone := New(s.TypeName)
	if err := json.Unmarshal(data, clone); err != nil {
		return New(s.TypeName)
	}
	return clone
}
