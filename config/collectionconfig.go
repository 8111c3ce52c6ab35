// Package config implements CollectionConfig and CollectionConfigs (spec
// §3/§4): the aggregate of schemas, pipes, categorisers and category
// hierarchies that governs how one collection processes and queries
// documents. Grounded on the original RestPose
// src/jsonxapian/collconfig.{h,cc} and collconfigs.{h,cc}.
package config

import (
	"fmt"

	"github.com/restpose-go/corepose/categoriser"
	"github.com/restpose-go/corepose/mapping"
	"github.com/restpose-go/corepose/rpcerr"
	"github.com/restpose-go/corepose/schema"
)

// Format bounds accepted on load (spec §3/§6): a config whose "format"
// falls outside this range is rejected outright, carrying the same
// single-version window the teacher's config versioning uses.
const (
	ConfigFormatOldest = 3
	ConfigFormat       = 3
)

// CollectionConfig is all the configuration needed to process and query
// documents in one collection.
type CollectionConfig struct {
	Name string

	// DefaultTypeConfig is the JSON blueprint used to lazily create a
	// schema the first time an unknown doc type is seen.
	DefaultTypeConfig *schema.Schema

	IDField   string
	TypeField string
	MetaField string

	Types        map[string]*schema.Schema
	Pipes        map[string]*mapping.Pipe
	Categorisers map[string]*CategoriserSpec
	Categories   map[string]*CategoryHierarchy

	Format  int
	Changed bool
}

// New returns a CollectionConfig with the default schema set up (spec
// §4: set_default), mirroring CollectionConfig::set_default.
func New(name string) *CollectionConfig {
	c := &CollectionConfig{Name: name}
	c.setDefault()
	return c
}

func (c *CollectionConfig) setDefault() {
	c.DefaultTypeConfig = schema.New("")
	c.IDField = "id"
	c.TypeField = "type"
	c.MetaField = "meta"
	c.Types = make(map[string]*schema.Schema)
	c.Pipes = make(map[string]*mapping.Pipe)
	c.Categorisers = make(map[string]*CategoriserSpec)
	c.Categories = make(map[string]*CategoryHierarchy)
	c.Format = ConfigFormat
	c.Changed = false
	c.SetPipe("default", &mapping.Pipe{})
}

// Clone returns an entirely independent deep copy, the same way
// CollectionConfig::clone round-trips through JSON.
func (c *CollectionConfig) Clone() (*CollectionConfig, error) {
	data, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}
	clone := &CollectionConfig{Name: c.Name}
	if err := clone.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return clone, nil
}

// Schema returns the schema for typeName, lazily creating it from
// DefaultTypeConfig (and recording it under Types, marking the config
// changed) if the type hasn't been seen before.
func (c *CollectionConfig) Schema(typeName string) *schema.Schema {
	if s, ok := c.Types[typeName]; ok {
		return s
	}
	s := schema.New(typeName)
	s.Fields = cloneFields(c.DefaultTypeConfig.Fields)
	s.Patterns = append([]schema.PatternEntry(nil), c.DefaultTypeConfig.Patterns...)
	// The default blueprint is internally consistent by construction,
	// so a merge against a freshly created empty schema cannot fail.
	merged, _ := c.SetSchema(typeName, s)
	return merged
}

func cloneFields(fields map[string]*schema.FieldConfig) map[string]*schema.FieldConfig {
	out := make(map[string]*schema.FieldConfig, len(fields))
	for k, v := range fields {
		cfg := *v
		out[k] = &cfg
	}
	return out
}

// SetSchema merges other into the existing schema for typeName,
// creating an empty schema first if this is a new type (spec §4:
// set_schema takes a copy and merges field definitions, never
// discarding what's already there). Fails if other conflicts with an
// already-registered field definition.
func (c *CollectionConfig) SetSchema(typeName string, other *schema.Schema) (*schema.Schema, error) {
	existing, ok := c.Types[typeName]
	if !ok {
		existing = schema.New(typeName)
		c.Types[typeName] = existing
	}
	if err := existing.MergeFrom(other); err != nil {
		return nil, err
	}
	c.Changed = true
	return existing, nil
}

// GetSchema returns the schema registered for typeName, or (nil,
// false) if none has been set.
func (c *CollectionConfig) GetSchema(typeName string) (*schema.Schema, bool) {
	s, ok := c.Types[typeName]
	return s, ok
}

// GetPipe returns the named pipe, or an InvalidValue error if unknown.
func (c *CollectionConfig) GetPipe(name string) (*mapping.Pipe, error) {
	p, ok := c.Pipes[name]
	if !ok {
		return nil, rpcerr.New(rpcerr.InvalidValue, fmt.Sprintf("config: no pipe named %q", name))
	}
	return p, nil
}

// SetPipe replaces (or creates) the named pipe outright.
func (c *CollectionConfig) SetPipe(name string, p *mapping.Pipe) {
	c.Pipes[name] = p
	c.Changed = true
}

// GetCategoriser returns the named categoriser spec, or an
// InvalidValue error if unknown.
func (c *CollectionConfig) GetCategoriser(name string) (*CategoriserSpec, error) {
	cs, ok := c.Categorisers[name]
	if !ok {
		return nil, rpcerr.New(rpcerr.InvalidValue, fmt.Sprintf("config: no categoriser named %q", name))
	}
	return cs, nil
}

// SetCategoriser replaces (or creates) the named categoriser outright.
func (c *CollectionConfig) SetCategoriser(name string, cs *CategoriserSpec) {
	c.Categorisers[name] = cs
	c.Changed = true
}

// Categoriser resolves name to a runnable categoriser.Categoriser,
// implementing mapping.Categorisers so a CollectionConfig can be
// passed directly to Mapping.Apply.
func (c *CollectionConfig) Categoriser(name string) (categoriser.Categoriser, bool) {
	cs, ok := c.Categorisers[name]
	if !ok {
		return nil, false
	}
	return cs.Build(), true
}
