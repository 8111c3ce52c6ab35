package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restpose-go/corepose/mapping"
	"github.com/restpose-go/corepose/schema"
)

func TestNewHasDefaultPipeAndFields(t *testing.T) {
	c := New("coll1")
	assert.Equal(t, ConfigFormat, c.Format)
	assert.Equal(t, "id", c.IDField)
	_, err := c.GetPipe("default")
	assert.NoError(t, err)
}

func TestSchemaLazilyCreatesFromDefaultBlueprint(t *testing.T) {
	c := New("coll1")
	c.DefaultTypeConfig.Fields["title"] = &schema.FieldConfig{Type: schema.FieldText, Prefix: "T"}

	s := c.Schema("article")
	assert.Equal(t, "article", s.TypeName)
	assert.Contains(t, s.Fields, "title")
	assert.True(t, c.Changed)

	// Second call returns the same registered schema, not a fresh copy.
	again := c.Schema("article")
	assert.Same(t, s, again)
}

func TestSetSchemaMergesRatherThanReplaces(t *testing.T) {
	c := New("coll1")
	first := schema.New("article")
	first.Fields["title"] = &schema.FieldConfig{Type: schema.FieldText}
	_, err := c.SetSchema("article", first)
	require.NoError(t, err)

	second := schema.New("article")
	second.Fields["body"] = &schema.FieldConfig{Type: schema.FieldText}
	merged, err := c.SetSchema("article", second)
	require.NoError(t, err)
	assert.Contains(t, merged.Fields, "title")
	assert.Contains(t, merged.Fields, "body")
}

func TestSetSchemaRejectsConflictingRedefinition(t *testing.T) {
	c := New("coll1")
	first := schema.New("article")
	first.Fields["title"] = &schema.FieldConfig{Type: schema.FieldText}
	_, err := c.SetSchema("article", first)
	require.NoError(t, err)

	conflict := schema.New("article")
	conflict.Fields["title"] = &schema.FieldConfig{Type: schema.FieldExact}
	_, err = c.SetSchema("article", conflict)
	assert.Error(t, err)
}

func TestCategoriserBuildsFromTrainingExamples(t *testing.T) {
	c := New("coll1")
	spec := NewCategoriserSpec()
	spec.Train("english", "the quick brown fox")
	spec.Train("russian", "быстрая коричневая лиса")
	c.SetCategoriser("lang", spec)

	cat, ok := c.Categoriser("lang")
	require.True(t, ok)
	labels := cat.Categorise("the quick fox")
	require.NotEmpty(t, labels)
	assert.Equal(t, "english", labels[0])
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	c := New("coll1")
	c.Types["article"] = schema.New("article")
	c.Types["article"].Fields["title"] = &schema.FieldConfig{Type: schema.FieldText, Prefix: "T"}
	c.SetPipe("ingest", &mapping.Pipe{Target: "default"})
	spec := NewCategoriserSpec()
	spec.Train("english", "hello world")
	c.SetCategoriser("lang", spec)
	c.Categories["topic"] = NewCategoryHierarchy()
	c.Categories["topic"].AddCategory("sports", "")

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var loaded CollectionConfig
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, ConfigFormat, loaded.Format)
	assert.Contains(t, loaded.Types, "article")
	assert.Contains(t, loaded.Pipes, "ingest")
	assert.Contains(t, loaded.Categorisers, "lang")
	assert.Contains(t, loaded.Categories, "topic")
	assert.False(t, loaded.Changed)
}

func TestUnmarshalRejectsFormatOutOfRange(t *testing.T) {
	var c CollectionConfig
	err := json.Unmarshal([]byte(`{"format": 99}`), &c)
	assert.Error(t, err)
}

func TestUnmarshalRejectsMalformedEnvelope(t *testing.T) {
	var c CollectionConfig
	err := json.Unmarshal([]byte(`{"format": "not-a-number"}`), &c)
	assert.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	c := New("coll1")
	c.Types["article"] = schema.New("article")
	c.Types["article"].Fields["title"] = &schema.FieldConfig{Type: schema.FieldText}

	clone, err := c.Clone()
	require.NoError(t, err)
	clone.Types["article"].Fields["body"] = &schema.FieldConfig{Type: schema.FieldText}

	assert.NotContains(t, c.Types["article"].Fields, "body")
}

func TestCollectionConfigsGetReturnsIndependentClone(t *testing.T) {
	reg := NewCollectionConfigs()
	c := New("coll1")
	require.NoError(t, reg.Set(c))

	got, ok, err := reg.Get("coll1")
	require.NoError(t, err)
	require.True(t, ok)
	got.IDField = "mutated"

	got2, ok, err := reg.Get("coll1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "id", got2.IDField)
}

func TestCategoryHierarchyAncestors(t *testing.T) {
	h := NewCategoryHierarchy()
	h.AddCategory("football", "sports")
	h.AddCategory("sports", "")
	assert.Equal(t, []string{"sports"}, h.Ancestors("football"))
}
