package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-mfs/common"
)

func TestNewStateRejectsNonPositive(t *testing.T) {
	_, err := NewState(0)
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestLifecycle(t *testing.T) {
	s, err := NewState(3)
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, s.Phase())

	s.Begin()
	assert.Equal(t, PhaseRendering, s.Phase())
	assert.Equal(t, 1, s.Current())
	assert.Equal(t, float32(1), s.Weight())

	assert.False(t, s.Advance())
	assert.Equal(t, 2, s.Current())
	assert.Equal(t, float32(0.5), s.Weight())

	assert.False(t, s.Advance())
	assert.True(t, s.Advance())
	assert.True(t, s.Converged())
	assert.Equal(t, 3, s.Current())

	// converged stays put until reset
	assert.False(t, s.Advance())
	assert.Equal(t, 3, s.Current())

	s.Reset()
	assert.Equal(t, PhaseRendering, s.Phase())
	assert.Equal(t, 1, s.Current())
	assert.True(t, s.First())
	assert.Equal(t, uint64(1), s.Resets())
}

func TestCurrentNeverLeavesRange(t *testing.T) {
	s, err := NewState(5)
	require.NoError(t, err)
	s.Begin()
	for range 20 {
		s.Advance()
		assert.GreaterOrEqual(t, s.Current(), 1)
		assert.LessOrEqual(t, s.Current(), s.Max())
	}
}

func TestSetMax(t *testing.T) {
	s, err := NewState(2)
	require.NoError(t, err)
	s.Begin()
	s.Advance()
	require.NoError(t, s.SetMax(8))
	assert.Equal(t, 8, s.Max())
	assert.Equal(t, 2, s.Current())
	assert.Equal(t, uint64(0), s.Resets())

	require.NoError(t, s.SetMax(1))
	assert.Equal(t, 1, s.Current())
	assert.ErrorIs(t, s.SetMax(-1), common.ErrConfiguration)
}

func TestValueCopyCannotAdvanceOwner(t *testing.T) {
	s, err := NewState(4)
	require.NoError(t, err)
	s.Begin()
	snapshot := *s
	snapshot.Advance()
	assert.Equal(t, 1, s.Current())
}
