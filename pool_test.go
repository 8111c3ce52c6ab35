package corepose

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionPoolExistsReflectsDiskAndHandles(t *testing.T) {
	dir := t.TempDir()
	p := NewCollectionPool(Options{DataDir: dir})
	assert.False(t, p.Exists("coll1"))

	coll, err := p.GetWritable("coll1")
	require.NoError(t, err)
	assert.True(t, p.Exists("coll1"))
	p.ReleaseWritable("coll1", coll)
}

func TestCollectionPoolWritableIsExclusive(t *testing.T) {
	dir := t.TempDir()
	p := NewCollectionPool(Options{DataDir: dir})

	first, err := p.GetWritable("coll1")
	require.NoError(t, err)

	var gotSecond sync.WaitGroup
	gotSecond.Add(1)
	var second *Collection
	go func() {
		defer gotSecond.Done()
		c, err := p.GetWritable("coll1")
		require.NoError(t, err)
		second = c
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Nil(t, second, "second checkout must block while first is held")

	p.ReleaseWritable("coll1", first)
	gotSecond.Wait()
	assert.Same(t, first, second, "the pool reuses the same Collection instance for a name")
}

func TestCollectionPoolReadonlyCacheDisabledByDefault(t *testing.T) {
	dir := t.TempDir()
	p := NewCollectionPool(Options{DataDir: dir})

	w, err := p.GetWritable("coll1")
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	p.ReleaseWritable("coll1", w)

	r, err := p.GetReadonly("coll1")
	require.NoError(t, err)
	p.ReleaseReadonly("coll1", r)

	assert.Empty(t, p.readonly["coll1"], "MaxCachedReadersPerCollection defaults to 0: nothing is cached")
}

func TestCollectionPoolReadonlyCacheHonoursLimit(t *testing.T) {
	dir := t.TempDir()
	p := NewCollectionPool(Options{DataDir: dir, MaxCachedReadersPerCollection: 1})

	w, err := p.GetWritable("coll1")
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	p.ReleaseWritable("coll1", w)

	r, err := p.GetReadonly("coll1")
	require.NoError(t, err)
	p.ReleaseReadonly("coll1", r)
	assert.Len(t, p.readonly["coll1"], 1)

	r2, err := p.GetReadonly("coll1")
	require.NoError(t, err)
	assert.Empty(t, p.readonly["coll1"])
	p.ReleaseReadonly("coll1", r2)
}

func TestCollectionPoolDelRemovesDirectory(t *testing.T) {
	dir := t.TempDir()
	p := NewCollectionPool(Options{DataDir: dir})

	w, err := p.GetWritable("coll1")
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	p.ReleaseWritable("coll1", w)
	require.True(t, p.Exists("coll1"))

	require.NoError(t, p.Del("coll1"))
	assert.False(t, p.Exists("coll1"))
}
