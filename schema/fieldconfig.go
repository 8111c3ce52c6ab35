// Package schema implements Schema (spec §4.3): a per-document-type
// field configuration that turns input JSON into an engine.Document, and
// translates a query JSON tree into an engine.Query. Grounded on
// spec.md's §3/§4.3 (no original_source schema.{h,cc} was retrieved in
// the reference pack) and on the teacher's storage/document.go for the
// JSON-field-walk shape.
package schema

// FieldType is one of the field-config variants named in spec §3.
type FieldType string

const (
	FieldID        FieldType = "id"
	FieldExact     FieldType = "exact"
	FieldText      FieldType = "text"
	FieldTimestamp FieldType = "timestamp"
	FieldCat       FieldType = "cat"
	FieldStored    FieldType = "stored"
	FieldMeta      FieldType = "meta"
)

// TooLongAction is the oversize-value policy named in spec §4.3.
type TooLongAction string

const (
	TooLongError    TooLongAction = "error"
	TooLongHash     TooLongAction = "hash"
	TooLongTruncate TooLongAction = "truncate"
)

// FieldConfig describes how one field name (or pattern match) is
// processed during indexing.
type FieldConfig struct {
	Type FieldType `json:"type"`

	// Indexing (Prefix: term prefix; Slot: value slot for timestamp
	// values and range queries)
	Prefix string `json:"prefix,omitempty"`
	Slot   int    `json:"slot,omitempty"`

	// Oversize-value policy (exact/text)
	MaxLength     int           `json:"max_length,omitempty"`
	TooLongAction TooLongAction `json:"too_long_action,omitempty"`

	// Display (stored/meta, or any type with StoreField set)
	StoreField bool `json:"store_field,omitempty"`

	// Processor names a text-field stemmer/tokeniser. It is stored and
	// round-tripped but not consulted: text fields are always split on
	// whitespace, with no stemming.
	Processor string `json:"processor,omitempty"`
}

// Equal reports whether two field configs are identical, used to
// enforce Schema's monotone-merge invariant.
func (f *FieldConfig) Equal(other *FieldConfig) bool {
	if f == nil || other == nil {
		return f == other
	}
	return *f == *other
}
