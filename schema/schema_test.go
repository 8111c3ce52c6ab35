package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restpose-go/corepose/engine"
	"github.com/restpose-go/corepose/rpcerr"
)

func TestProcessBuildsDocumentAndIDTerm(t *testing.T) {
	s := New("default")
	s.Fields["foo"] = &FieldConfig{Type: FieldText, Prefix: "Tfoo", StoreField: true}

	doc, idterm, err := s.Process(ProcessContext{DocType: "default", ID: "1"}, map[string]interface{}{
		"foo": "Hello world",
	})
	require.NoError(t, err)
	assert.Equal(t, "\tdefault\t1", idterm)
	assert.Contains(t, doc.Terms(), idterm)
	assert.Contains(t, doc.Terms(), "Tfoohello")

	var stored map[string]interface{}
	require.NoError(t, json.Unmarshal(doc.Data, &stored))
	assert.Equal(t, []interface{}{"Hello world"}, stored["foo"])
}

func TestProcessAcceptsConsistentScalarTypeAndID(t *testing.T) {
	s := New("default")
	ctx := ProcessContext{DocType: "article", ID: "1", TypeField: "type", IDField: "id"}

	_, idterm, err := s.Process(ctx, map[string]interface{}{"type": "article", "id": "1"})
	require.NoError(t, err)
	assert.Equal(t, "\tarticle\t1", idterm)
}

func TestProcessAcceptsConsistentLengthOneArrayTypeAndID(t *testing.T) {
	s := New("default")
	ctx := ProcessContext{DocType: "article", ID: "1", TypeField: "type", IDField: "id"}

	_, _, err := s.Process(ctx, map[string]interface{}{
		"type": []interface{}{"article"},
		"id":   []interface{}{"1"},
	})
	require.NoError(t, err)
}

func TestProcessRejectsMismatchedType(t *testing.T) {
	s := New("default")
	ctx := ProcessContext{DocType: "article", ID: "1", TypeField: "type", IDField: "id"}

	_, _, err := s.Process(ctx, map[string]interface{}{"type": "comment"})
	require.Error(t, err)
	assert.True(t, rpcerr.Is(err, rpcerr.InvalidValue))
}

func TestProcessRejectsMismatchedID(t *testing.T) {
	s := New("default")
	ctx := ProcessContext{DocType: "article", ID: "1", TypeField: "type", IDField: "id"}

	_, _, err := s.Process(ctx, map[string]interface{}{"id": "2"})
	require.Error(t, err)
	assert.True(t, rpcerr.Is(err, rpcerr.InvalidValue))
}

func TestProcessRejectsEmptyArrayTypeOrID(t *testing.T) {
	s := New("default")
	ctx := ProcessContext{DocType: "article", ID: "1", TypeField: "type", IDField: "id"}

	_, _, err := s.Process(ctx, map[string]interface{}{"type": []interface{}{}})
	require.Error(t, err)

	_, _, err = s.Process(ctx, map[string]interface{}{"id": []interface{}{}})
	require.Error(t, err)
}

func TestProcessRejectsMultiValueTypeOrID(t *testing.T) {
	s := New("default")
	ctx := ProcessContext{DocType: "article", ID: "1", TypeField: "type", IDField: "id"}

	_, _, err := s.Process(ctx, map[string]interface{}{"type": []interface{}{"article", "comment"}})
	require.Error(t, err)

	_, _, err = s.Process(ctx, map[string]interface{}{"id": []interface{}{"1", "2"}})
	require.Error(t, err)
}

func TestMergeFromRejectsConflictingRedefinition(t *testing.T) {
	s := New("default")
	s.Fields["foo"] = &FieldConfig{Type: FieldText}

	other := New("default")
	other.Fields["foo"] = &FieldConfig{Type: FieldExact}
	assert.Error(t, s.MergeFrom(other))
}

func TestMergeFromSameConfigIsNoOp(t *testing.T) {
	s := New("default")
	s.Fields["foo"] = &FieldConfig{Type: FieldText}

	other := New("default")
	other.Fields["foo"] = &FieldConfig{Type: FieldText}
	assert.NoError(t, s.MergeFrom(other))
}

func TestPatternMatchFirstGlobWins(t *testing.T) {
	s := New("default")
	s.Patterns = []PatternEntry{
		{Glob: "meta_*", Config: &FieldConfig{Type: FieldMeta}},
		{Glob: "*", Config: &FieldConfig{Type: FieldStored}},
	}
	assert.Equal(t, FieldMeta, s.configFor("meta_source").Type)
	assert.Equal(t, FieldStored, s.configFor("anything").Type)
}

func TestOversizeTruncate(t *testing.T) {
	s := New("default")
	s.Fields["foo"] = &FieldConfig{Type: FieldExact, Prefix: "X", MaxLength: 5, TooLongAction: TooLongTruncate}

	doc, _, err := s.Process(ProcessContext{DocType: "t", ID: "1"}, map[string]interface{}{"foo": "abcdefgh"})
	require.NoError(t, err)
	assert.Contains(t, doc.Terms(), "Xabcde")
}

func TestOversizeErrorAborts(t *testing.T) {
	s := New("default")
	s.Fields["foo"] = &FieldConfig{Type: FieldExact, MaxLength: 3, TooLongAction: TooLongError}

	_, _, err := s.Process(ProcessContext{DocType: "t", ID: "1"}, map[string]interface{}{"foo": "abcdefgh"})
	assert.Error(t, err)
}

func TestInvalidIDRejected(t *testing.T) {
	s := New("default")
	_, _, err := s.Process(ProcessContext{DocType: "t", ID: "bad/id"}, map[string]interface{}{})
	assert.Error(t, err)
}

func TestParseQueryTermAndAnd(t *testing.T) {
	s := New("default")
	s.Fields["foo"] = &FieldConfig{Type: FieldExact, Prefix: "Xfoo"}

	q, err := s.ParseQuery(map[string]interface{}{
		"and": []interface{}{
			map[string]interface{}{"field": "foo", "value": "bar"},
		},
	})
	require.NoError(t, err)
	andQ, ok := q.(engine.AndQuery)
	require.True(t, ok)
	require.Len(t, andQ.Children, 1)
	termQ, ok := andQ.Children[0].(engine.TermQuery)
	require.True(t, ok)
	assert.Equal(t, "Xfoobar", termQ.Term)
}
