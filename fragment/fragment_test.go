package fragment

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restpose-go/corepose/engine"
)

func TestLifecycleTransitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frag0")
	f := New("frag0", path)
	assert.False(t, f.IsOpen())
	assert.False(t, f.IsWritable())

	require.NoError(t, f.OpenWritable())
	assert.True(t, f.IsWritable())

	var doc engine.Document
	doc.AddTerm("hello")
	require.NoError(t, f.AddDoc(doc, "\tdoc\t1"))
	require.NoError(t, f.Commit())

	count, err := f.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, f.OpenReadonly())
	assert.False(t, f.IsWritable())
	assert.True(t, f.IsOpen())

	count, err = f.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, f.Close())
	assert.False(t, f.IsOpen())
}

func TestMutationRequiresWritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frag0")
	f := New("frag0", path)
	require.NoError(t, f.OpenReadonly())

	var doc engine.Document
	err := f.AddDoc(doc, "\tdoc\t1")
	assert.Error(t, err)
}

func TestOpenWritableIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frag0")
	f := New("frag0", path)
	require.NoError(t, f.OpenWritable())

	var doc engine.Document
	doc.AddTerm("x")
	require.NoError(t, f.AddDoc(doc, "\tdoc\t1"))

	require.NoError(t, f.OpenWritable())
	count, err := f.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count, "reopening writable must not discard in-memory state")
}
