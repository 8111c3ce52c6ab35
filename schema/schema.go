package schema

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/restpose-go/corepose/engine"
	"github.com/restpose-go/corepose/rpcerr"
)

// PatternEntry is one (glob, FieldConfig) pair; Schema.Patterns is
// insertion-ordered and the first glob match wins for a previously
// unseen field name (spec §3 Schema invariants).
type PatternEntry struct {
	Glob   string
	Config *FieldConfig
}

// Schema is the field-typed document contract for one doc_type within a
// collection.
type Schema struct {
	TypeName string
	Fields   map[string]*FieldConfig
	Patterns []PatternEntry
}

// New returns an empty schema for typeName.
func New(typeName string) *Schema {
	return &Schema{TypeName: typeName, Fields: make(map[string]*FieldConfig)}
}

// MergeFrom merges other's fields and patterns into s. Redefining an
// existing field with a different config fails; redefining with the
// same config is a no-op; new fields are always accepted (spec §3).
func (s *Schema) MergeFrom(other *Schema) error {
	for name, cfg := range other.Fields {
		existing, ok := s.Fields[name]
		if !ok {
			s.Fields[name] = cfg
			continue
		}
		if !existing.Equal(cfg) {
			return rpcerr.New(rpcerr.InvalidValue, fmt.Sprintf("schema: field %q redefined with a different configuration", name))
		}
	}
	for _, p := range other.Patterns {
		found := false
		for _, existing := range s.Patterns {
			if existing.Glob == p.Glob {
				found = true
				if !existing.Config.Equal(p.Config) {
					return rpcerr.New(rpcerr.InvalidValue, fmt.Sprintf("schema: pattern %q redefined with a different configuration", p.Glob))
				}
				break
			}
		}
		if !found {
			s.Patterns = append(s.Patterns, p)
		}
	}
	return nil
}

// configFor resolves the FieldConfig for fieldName: an explicit field
// definition wins, otherwise the first matching glob pattern in
// insertion order, otherwise nil (field is dropped during indexing).
func (s *Schema) configFor(fieldName string) *FieldConfig {
	if cfg, ok := s.Fields[fieldName]; ok {
		return cfg
	}
	for _, p := range s.Patterns {
		if ok, _ := filepath.Match(p.Glob, fieldName); ok {
			return p.Config
		}
	}
	return nil
}

// idComponentForbidden holds the characters spec §6 disallows in a type
// or id value used to build a unique idterm.
const idComponentForbidden = "\x00\x01\x02\x03\x04\x05\x06\x07\x08\x09\x0a\x0b\x0c\x0d\x0e\x0f" +
	"\x10\x11\x12\x13\x14\x15\x16\x17\x18\x19\x1a\x1b\x1c\x1d\x1e\x1f:/\\.,[]{}"

func validateIDComponent(what, value string) error {
	if value == "" {
		return rpcerr.New(rpcerr.InvalidValue, fmt.Sprintf("schema: %s must not be empty", what))
	}
	if strings.ContainsAny(value, idComponentForbidden) {
		return rpcerr.New(rpcerr.InvalidValue, fmt.Sprintf("schema: %s contains a disallowed character", what))
	}
	return nil
}

// checkConsistent validates that input[field] (the type_field/id_field
// special field, spec §4.3) is consistent with the caller-supplied
// value: absent is fine, a bare scalar or a length-1 array is accepted
// and must match, a length-0 or length->1 array is rejected outright
// (spec §4.3, grounded on the original's process_doc type/id
// consistency check, collconfig.cc:595-733).
func checkConsistent(field, what, supplied string, input map[string]interface{}) error {
	if field == "" {
		return nil
	}
	raw, ok := input[field]
	if !ok {
		return nil
	}
	stored, err := idStyleValue(raw)
	if err != nil {
		return rpcerr.Wrap(rpcerr.InvalidValue, fmt.Sprintf("schema: %s field %q", what, field), err)
	}
	if stored != supplied {
		return rpcerr.New(rpcerr.InvalidValue, fmt.Sprintf(
			"schema: %s %q supplied differs from %q stored in document field %q", what, supplied, stored, field))
	}
	return nil
}

// idStyleValue reduces raw to a single string: a scalar is stringified,
// a length-1 array unwraps to its sole element, and a length-0 or
// length->1 array is an error (spec §4.3).
func idStyleValue(raw interface{}) (string, error) {
	arr, isArray := raw.([]interface{})
	if !isArray {
		return scalarToString(raw)
	}
	switch len(arr) {
	case 0:
		return "", rpcerr.New(rpcerr.InvalidValue, "no value stored (empty array)")
	case 1:
		return scalarToString(arr[0])
	default:
		return "", rpcerr.New(rpcerr.InvalidValue, "multiple values stored (array length > 1)")
	}
}

func scalarToString(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", rpcerr.New(rpcerr.InvalidValue, "value is not a string or number")
	}
}

// ProcessContext carries the collection-level configuration Process
// needs but that belongs to CollectionConfig, not Schema, avoiding an
// import cycle between the schema and config packages.
type ProcessContext struct {
	DocType   string
	ID        string
	IDField   string
	TypeField string
	MetaField string
}

// Process builds an engine.Document from input according to the
// schema's field configuration, returning the document's unique idterm
// ("\t" + type + "\t" + id). Oversize field values are handled per their
// FieldConfig's TooLongAction.
func (s *Schema) Process(ctx ProcessContext, input map[string]interface{}) (engine.Document, string, error) {
	if err := validateIDComponent("doc type", ctx.DocType); err != nil {
		return engine.Document{}, "", err
	}
	if err := validateIDComponent("document id", ctx.ID); err != nil {
		return engine.Document{}, "", err
	}
	if err := checkConsistent(ctx.TypeField, "document type", ctx.DocType, input); err != nil {
		return engine.Document{}, "", err
	}
	if err := checkConsistent(ctx.IDField, "document id", ctx.ID, input); err != nil {
		return engine.Document{}, "", err
	}

	var doc engine.Document
	stored := make(map[string]interface{})

	for key, val := range input {
		if key == ctx.IDField || key == ctx.TypeField {
			continue
		}
		cfg := s.configFor(key)
		if cfg == nil {
			continue
		}
		if err := applyField(&doc, stored, cfg, key, val); err != nil {
			return engine.Document{}, "", err
		}
	}

	if len(stored) > 0 {
		data, err := json.Marshal(stored)
		if err != nil {
			return engine.Document{}, "", rpcerr.Wrap(rpcerr.InvalidValue, "schema: marshal stored fields", err)
		}
		doc.Data = data
	}

	idterm := "\t" + ctx.DocType + "\t" + ctx.ID
	doc.AddTerm(idterm)
	return doc, idterm, nil
}

func applyField(doc *engine.Document, stored map[string]interface{}, cfg *FieldConfig, key string, val interface{}) error {
	var err error
	switch cfg.Type {
	case FieldID, FieldExact, FieldCat:
		err = applyTermField(doc, cfg, val)
	case FieldText:
		err = applyTextField(doc, cfg, val)
	case FieldTimestamp:
		err = applyTimestampField(doc, cfg, val)
	case FieldStored, FieldMeta:
		// Pure display fields are always stored, regardless of
		// StoreField (there's nothing else they could do).
		stored[key] = asArray(val)
		return nil
	}
	if err != nil {
		return err
	}
	if cfg.StoreField {
		stored[key] = asArray(val)
	}
	return nil
}

// asArray wraps val as a []interface{}, matching the "every field
// accumulates into an array" display convention (spec §4.4/§8 scenario 1).
func asArray(val interface{}) []interface{} {
	if arr, ok := val.([]interface{}); ok {
		return arr
	}
	return []interface{}{val}
}

func valuesOf(val interface{}) []string {
	switch v := val.(type) {
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func applyTermField(doc *engine.Document, cfg *FieldConfig, val interface{}) error {
	for _, s := range valuesOf(val) {
		term, err := applyOversizePolicy(cfg, s)
		if err != nil {
			return err
		}
		doc.AddTerm(cfg.Prefix + term)
	}
	return nil
}

func applyTextField(doc *engine.Document, cfg *FieldConfig, val interface{}) error {
	for _, s := range valuesOf(val) {
		text, err := applyOversizePolicy(cfg, s)
		if err != nil {
			return err
		}
		pos := 0
		for _, word := range strings.Fields(strings.ToLower(text)) {
			doc.AddPositionalTerm(cfg.Prefix+word, pos)
			pos++
		}
	}
	return nil
}

func applyTimestampField(doc *engine.Document, cfg *FieldConfig, val interface{}) error {
	var text string
	switch v := val.(type) {
	case string:
		text = v
	case float64:
		text = strconv.FormatInt(int64(v), 10)
	default:
		return rpcerr.New(rpcerr.InvalidValue, "schema: timestamp field requires a string or number")
	}
	// Normalise to RFC3339 so lexical comparison matches chronological
	// order, matching how ValueRangeQuery compares values.
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		text = t.UTC().Format(time.RFC3339)
	}
	doc.SetValue(cfg.Slot, text)
	if cfg.Prefix != "" {
		doc.AddTerm(cfg.Prefix + text)
	}
	return nil
}

// applyOversizePolicy enforces a field's max_length / too_long_action
// (spec §4.3).
func applyOversizePolicy(cfg *FieldConfig, value string) (string, error) {
	if cfg.MaxLength <= 0 || len(value) <= cfg.MaxLength {
		return value, nil
	}
	switch cfg.TooLongAction {
	case TooLongTruncate:
		return value[:cfg.MaxLength], nil
	case TooLongHash:
		sum := sha1.Sum([]byte(value))
		hash := hex.EncodeToString(sum[:])
		keep := cfg.MaxLength - len(hash)
		if keep < 0 {
			keep = 0
		}
		if keep > len(value) {
			keep = len(value)
		}
		return value[:keep] + hash, nil
	case TooLongError:
		fallthrough
	default:
		return "", rpcerr.New(rpcerr.InvalidValue, fmt.Sprintf("schema: value exceeds max_length %d", cfg.MaxLength))
	}
}
