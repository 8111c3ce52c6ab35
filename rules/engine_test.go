package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalNumberReadsDocField(t *testing.T) {
	e, err := New()
	require.NoError(t, err)

	score, err := e.EvalNumber(`doc.boost`, map[string]interface{}{"boost": 2.5})
	require.NoError(t, err)
	assert.Equal(t, 2.5, score)
}

func TestEvalNumberCachesCompiledProgram(t *testing.T) {
	e, err := New()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		score, err := e.EvalNumber(`1.0 + 1.0`, nil)
		require.NoError(t, err)
		assert.Equal(t, 2.0, score)
	}
}

func TestEvalNumberNonNumericResultIsZero(t *testing.T) {
	e, err := New()
	require.NoError(t, err)

	score, err := e.EvalNumber(`"not a number"`, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}
