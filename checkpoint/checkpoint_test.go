package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatedCheckpointStartsUnreached(t *testing.T) {
	cps := New()
	id := cps.Alloc()

	st, ok := cps.GetState(id)
	require.True(t, ok)
	assert.False(t, st.Reached)
	assert.Zero(t, st.TotalErrors)
	assert.Empty(t, st.Errors)
}

func TestGetStateUnknownCheckpoint(t *testing.T) {
	cps := New()
	_, ok := cps.GetState("does-not-exist")
	assert.False(t, ok)
}

func TestSetReachedWithoutPriorAllocCreatesCheckpoint(t *testing.T) {
	cps := New()
	cps.SetReached("external-id", nil)

	st, ok := cps.GetState("external-id")
	require.True(t, ok)
	assert.True(t, st.Reached)
}

func TestSetReachedCarriesErrorLog(t *testing.T) {
	cps := New()
	id := cps.Alloc()

	log := NewErrorLog(2)
	log.Append("boom 1", "user", "1")
	log.Append("boom 2", "user", "2")
	log.Append("boom 3", "user", "3")

	cps.SetReached(id, log)

	st, ok := cps.GetState(id)
	require.True(t, ok)
	assert.True(t, st.Reached)
	assert.Equal(t, 3, st.TotalErrors)
	assert.Len(t, st.Errors, 2)
	assert.Equal(t, "boom 1", st.Errors[0].Message)
}

func TestExpireRemovesStaleCheckpoints(t *testing.T) {
	cps := New()
	id := cps.Alloc()

	cps.Expire(-time.Second) // anything touched before "now" is stale

	_, ok := cps.GetState(id)
	assert.False(t, ok)
}

func TestExpireKeepsFreshCheckpoints(t *testing.T) {
	cps := New()
	id := cps.Alloc()

	cps.Expire(time.Hour)

	_, ok := cps.GetState(id)
	assert.True(t, ok)
}

func TestErrorLogCapsDetailButKeepsTotal(t *testing.T) {
	log := NewErrorLog(1)
	log.Append("a", "t", "1")
	log.Append("b", "t", "2")

	assert.Equal(t, 2, log.TotalErrors())
	assert.Len(t, log.Errors(), 1)
}

func TestIDsReflectsAllocatedCheckpoints(t *testing.T) {
	cps := New()
	id1 := cps.Alloc()
	id2 := cps.Alloc()

	ids := cps.IDs()
	assert.ElementsMatch(t, []string{id1, id2}, ids)
}
