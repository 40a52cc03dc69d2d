package stage

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/frame"
)

func TestAccumulationIsTheRunningMean(t *testing.T) {
	tests := []struct {
		name   string
		frames []float32
	}{
		{name: "constant", frames: []float32{0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3}},
		{name: "ramp", frames: []float32{0.1, 0.4, 0.7}},
		{name: "single", frames: []float32{0.9}},
		{name: "hdr", frames: []float32{4, 0, 2, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRenderer(t, 2, 2)
			a, err := NewFrameAccumulationStage(r)
			require.NoError(t, err)
			t.Cleanup(a.Release)

			state, err := frame.NewState(len(tt.frames))
			require.NoError(t, err)
			state.Begin()

			var sum float32
			for i, v := range tt.frames {
				require.Equal(t, i+1, state.Current())
				require.NoError(t, a.Process(constantTexture(t, r, 3, 2, mgl32.Vec4{v, v / 2, 1 - v, 1}), *state))
				sum += v
				state.Advance()

				mean := sum / float32(i+1)
				for _, texel := range readTexels(t, r, a.Output()) {
					assert.InDelta(t, mean, texel[0], 1e-5*max(1, float64(mean)))
					assert.InDelta(t, mean/2, texel[1], 1e-5*max(1, float64(mean)))
					assert.InDelta(t, 1-mean, texel[2], 1e-5*max(1, float64(mean)))
					assert.InDelta(t, 1, texel[3], 1e-6)
				}
			}
			assert.True(t, state.Converged())
		})
	}
}

func TestAccumulationResetClearsHistory(t *testing.T) {
	r := newTestRenderer(t, 2, 2)
	a, err := NewFrameAccumulationStage(r)
	require.NoError(t, err)
	t.Cleanup(a.Release)

	// Reset before the first frame has nothing to clear.
	require.NoError(t, a.Reset())
	assert.Nil(t, a.Output())

	state, err := frame.NewState(4)
	require.NoError(t, err)
	state.Begin()
	sentinel := mgl32.Vec4{0.25, 0.5, 0.75, 1}
	require.NoError(t, a.Process(constantTexture(t, r, 2, 2, sentinel), *state))
	state.Advance()
	require.NoError(t, a.Process(constantTexture(t, r, 2, 2, sentinel), *state))

	require.NoError(t, a.Reset())
	for _, texel := range readTexels(t, r, a.Output()) {
		assert.Equal(t, mgl32.Vec4{}, texel)
	}

	state.Reset()
	next := mgl32.Vec4{1, 0, 0, 1}
	require.NoError(t, a.Process(constantTexture(t, r, 2, 2, next), *state))
	for _, texel := range readTexels(t, r, a.Output()) {
		assert.Equal(t, next, texel)
	}
}

func TestAccumulationFollowsInputSize(t *testing.T) {
	r := newTestRenderer(t, 2, 2)
	a, err := NewFrameAccumulationStage(r)
	require.NoError(t, err)
	t.Cleanup(a.Release)

	state, err := frame.NewState(2)
	require.NoError(t, err)
	state.Begin()
	require.NoError(t, a.Process(constantTexture(t, r, 4, 3, mgl32.Vec4{1, 1, 1, 1}), *state))
	assert.Equal(t, 4, a.Output().Width())
	assert.Equal(t, 3, a.Output().Height())

	state.Reset()
	require.NoError(t, a.Process(constantTexture(t, r, 5, 2, mgl32.Vec4{1, 1, 1, 1}), *state))
	assert.Equal(t, 5, a.Output().Width())
	assert.Equal(t, 2, a.Output().Height())

	assert.ErrorIs(t, a.Process(nil, *state), common.ErrResourceMismatch)
}
