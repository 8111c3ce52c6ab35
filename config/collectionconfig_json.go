package config

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/restpose-go/corepose/mapping"
	"github.com/restpose-go/corepose/rpcerr"
	"github.com/restpose-go/corepose/schema"
)

// envelopeSchema is the meta-schema for the CollectionConfig envelope
// (spec §6): it validates shape (format is an integer, types/pipes/
// categorisers/categories are objects keyed by name) before any
// field-level decoding happens, the same two-step validate-then-decode
// the teacher applies to schema changes via gojsonschema.
var envelopeSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["format"],
  "properties": {
    "format": {"type": "integer"},
    "types": {"type": "object"},
    "default_type": {"type": "object"},
    "special_fields": {
      "type": "object",
      "properties": {
        "id_field": {"type": "string"},
        "type_field": {"type": "string"},
        "meta_field": {"type": "string"}
      }
    },
    "pipes": {"type": "object"},
    "categorisers": {"type": "object"},
    "categories": {"type": "object"}
  }
}`)

type specialFieldsWire struct {
	IDField   string `json:"id_field,omitempty"`
	TypeField string `json:"type_field,omitempty"`
	MetaField string `json:"meta_field,omitempty"`
}

type categoriserWire struct {
	Examples map[string][]string `json:"examples"`
}

type categoryWire struct {
	Parents map[string]string `json:"parents"`
}

type collectionConfigWire struct {
	Format        int                         `json:"format"`
	Types         map[string]*schema.Schema   `json:"types,omitempty"`
	DefaultType   *schema.Schema              `json:"default_type,omitempty"`
	SpecialFields specialFieldsWire           `json:"special_fields"`
	Pipes         map[string]*mapping.Pipe    `json:"pipes,omitempty"`
	Categorisers  map[string]*categoriserWire `json:"categorisers,omitempty"`
	Categories    map[string]*categoryWire    `json:"categories,omitempty"`
}

// MarshalJSON implements json.Marshaler, producing the envelope shape
// documented in spec §6.
func (c *CollectionConfig) MarshalJSON() ([]byte, error) {
	wire := collectionConfigWire{
		Format:      c.Format,
		Types:       c.Types,
		DefaultType: c.DefaultTypeConfig,
		SpecialFields: specialFieldsWire{
			IDField:   c.IDField,
			TypeField: c.TypeField,
			MetaField: c.MetaField,
		},
		Pipes: c.Pipes,
	}
	if len(c.Categorisers) > 0 {
		wire.Categorisers = make(map[string]*categoriserWire, len(c.Categorisers))
		for name, cs := range c.Categorisers {
			wire.Categorisers[name] = &categoriserWire{Examples: cs.Examples}
		}
	}
	if len(c.Categories) > 0 {
		wire.Categories = make(map[string]*categoryWire, len(c.Categories))
		for name, h := range c.Categories {
			wire.Categories[name] = &categoryWire{Parents: h.Parents}
		}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler. It first validates the
// envelope shape against envelopeSchema, then decodes the whole document
// into its wire form, then checks the format bounds, and only then applies
// the decoded sections (spec §3 invariant: format outside
// [ConfigFormatOldest, ConfigFormat] fails the load outright).
func (c *CollectionConfig) UnmarshalJSON(data []byte) error {
	result, err := gojsonschema.Validate(envelopeSchema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return rpcerr.Wrap(rpcerr.InvalidValue, "config: validate collection configuration envelope", err)
	}
	if !result.Valid() {
		return rpcerr.New(rpcerr.InvalidValue, fmt.Sprintf("config: invalid collection configuration envelope: %v", result.Errors()))
	}

	var wire collectionConfigWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return rpcerr.Wrap(rpcerr.InvalidValue, "config: decode collection configuration", err)
	}
	if wire.Format < ConfigFormatOldest || wire.Format > ConfigFormat {
		return rpcerr.New(rpcerr.InvalidValue, fmt.Sprintf("config: configuration format %d outside supported range [%d,%d]", wire.Format, ConfigFormatOldest, ConfigFormat))
	}

	c.setDefault()
	c.Format = wire.Format

	if wire.DefaultType != nil {
		c.DefaultTypeConfig = wire.DefaultType
	}
	if wire.SpecialFields.IDField != "" {
		c.IDField = wire.SpecialFields.IDField
	}
	if wire.SpecialFields.TypeField != "" {
		c.TypeField = wire.SpecialFields.TypeField
	}
	if wire.SpecialFields.MetaField != "" {
		c.MetaField = wire.SpecialFields.MetaField
	}
	for name, s := range wire.Types {
		s.TypeName = name
		if _, err := c.SetSchema(name, s); err != nil {
			return err
		}
	}
	for name, p := range wire.Pipes {
		c.SetPipe(name, p)
	}
	for name, cw := range wire.Categorisers {
		spec := NewCategoriserSpec()
		for label, examples := range cw.Examples {
			spec.Train(label, examples...)
		}
		c.SetCategoriser(name, spec)
	}
	for name, catw := range wire.Categories {
		h := NewCategoryHierarchy()
		for k, v := range catw.Parents {
			h.AddCategory(k, v)
		}
		c.Categories[name] = h
	}
	// A configuration freshly decoded from its persisted form is not
	// "changed" — only mutations made after load are.
	c.Changed = false
	return nil
}
