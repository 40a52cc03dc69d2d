package stage

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/model"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/material"
)

var testLight = Light{Position: mgl32.Vec3{0, 8, 0}, Direction: DefaultLightDirection, Near: 0.1, Far: 50, Intensity: 1}

func TestShadowPassEmptySceneIsSentinel(t *testing.T) {
	for _, blur := range []int{0, 2} {
		r := newTestRenderer(t, 2, 2)
		s, err := NewShadowPass(r, WithShadowSize(16), WithShadowBlur(blur))
		require.NoError(t, err)
		t.Cleanup(s.Release)

		transform, err := s.Render(testLight, model.Drawables{}, material.Library{})
		require.NoError(t, err)
		for _, v := range transform {
			assert.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0))
		}
		assert.Equal(t, common.ShadowBias.Mul4(s.ViewProjection()), transform)
		assert.Equal(t, transform, s.Transform())

		texels := readTexels(t, r, s.Moments())
		require.Len(t, texels, 16*16)
		for _, m := range texels {
			assert.Equal(t, ShadowClear, m, "blur %d", blur)
		}
	}
}

func TestShadowTransformMapsIntoTextureSpace(t *testing.T) {
	r := newTestRenderer(t, 2, 2)
	s, err := NewShadowPass(r, WithShadowSize(16))
	require.NoError(t, err)
	t.Cleanup(s.Release)

	transform, err := s.Render(testLight, model.Drawables{}, material.Library{})
	require.NoError(t, err)

	// A point straight below the light lands in the middle of the map.
	p := transform.Mul4x1(mgl32.Vec4{0, 1, 0, 1})
	assert.InDelta(t, 0.5, p[0]/p[3], 1e-5)
	assert.InDelta(t, 0.5, p[1]/p[3], 1e-5)
	z := p[2] / p[3]
	assert.True(t, z > 0 && z < 1, "depth %v", z)
}

func TestShadowPassStoresDistanceMoments(t *testing.T) {
	r := newTestRenderer(t, 2, 2)
	s, err := NewShadowPass(r, WithShadowSize(32))
	require.NoError(t, err)
	t.Cleanup(s.Release)

	d := model.Drawables{}
	d.Add("stone", model.NewBox("box", mgl32.Vec3{0, 0.5, 0}, mgl32.Vec3{1, 1, 1}))
	lib := material.Library{}.Add(material.NewMaterial("stone", material.WithDiffuseColor(mgl32.Vec3{0.5, 0.5, 0.5})))
	_, err = s.Render(testLight, d, lib)
	require.NoError(t, err)

	texels := readTexels(t, r, s.Moments())
	center := texels[16*32+16]
	// The top face is seven units below the light.
	assert.InDelta(t, 7, center[0], 0.05)
	assert.InDelta(t, float64(center[0]*center[0]), center[1], 1e-3)
	assert.Equal(t, float32(1), center[2])
	assert.Equal(t, ShadowClear, texels[0])

	flux := readTexels(t, r, s.Flux())[16*32+16]
	assert.InDelta(t, 0.5, flux[0], 1.0/255)
	normal := readTexels(t, r, s.Normal())[16*32+16]
	assert.InDelta(t, 1, normal[1], 1e-5)
}

func TestShadowPassMissingMaterial(t *testing.T) {
	r := newTestRenderer(t, 2, 2)
	s, err := NewShadowPass(r, WithShadowSize(8))
	require.NoError(t, err)
	t.Cleanup(s.Release)

	d := model.Drawables{}
	d.Add("ghost", model.NewBox("box", mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}))
	_, err = s.Render(testLight, d, material.Library{})
	assert.ErrorIs(t, err, ErrMissingMaterial)
}

func TestNewShadowPassRejectsInvalidOptions(t *testing.T) {
	r := newTestRenderer(t, 2, 2)
	_, err := NewShadowPass(r, WithShadowSize(0))
	assert.ErrorIs(t, err, common.ErrConfiguration)
	_, err = NewShadowPass(r, WithShadowBlur(-1))
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestLightMatricesAvoidParallelUp(t *testing.T) {
	projection, view := lightMatrices(Light{Position: mgl32.Vec3{0, 5, 0}, Direction: lightUp})
	for _, m := range []mgl32.Mat4{projection, view} {
		for _, v := range m {
			assert.False(t, math.IsNaN(float64(v)))
		}
	}
}
