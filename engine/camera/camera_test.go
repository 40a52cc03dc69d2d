package camera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-mfs/common"
)

func TestCameraRevision(t *testing.T) {
	c := NewCamera(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{})
	r := c.Revision()

	c.SetEye(mgl32.Vec3{0, 0, 5})
	assert.Equal(t, r, c.Revision(), "identical pose must not invalidate")

	c.SetEye(mgl32.Vec3{0, 1, 5})
	assert.Greater(t, c.Revision(), r)

	r = c.Revision()
	c.SetCenter(mgl32.Vec3{1, 0, 0})
	assert.Greater(t, c.Revision(), r)
}

func TestCameraView(t *testing.T) {
	c := NewCamera(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{})
	p := c.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, -5, p.Z(), 1e-6)
}

func TestProjectionValidation(t *testing.T) {
	_, err := NewProjection(mgl32.DegToRad(45), 0, 10)
	assert.ErrorIs(t, err, common.ErrConfiguration)
	_, err = NewProjection(mgl32.DegToRad(45), 5, 1)
	assert.ErrorIs(t, err, common.ErrConfiguration)
	_, err = NewProjection(math.Pi, 1, 2)
	assert.ErrorIs(t, err, common.ErrConfiguration)

	p, err := NewProjection(mgl32.DegToRad(45), 0.1, 100)
	require.NoError(t, err)
	r := p.Revision()
	require.NoError(t, p.SetNearFar(0.1, 100))
	assert.Equal(t, r, p.Revision())
	require.NoError(t, p.SetNearFar(0.5, 50))
	assert.Greater(t, p.Revision(), r)
	assert.Error(t, p.SetNearFar(1, 1))
	assert.Equal(t, float32(0.5), p.Near())
}

func TestProjectionClipRange(t *testing.T) {
	p, err := NewProjection(mgl32.DegToRad(60), 1, 10)
	require.NoError(t, err)
	m := p.Matrix(1)

	near := m.Mul4x1(mgl32.Vec4{0, 0, -1, 1})
	far := m.Mul4x1(mgl32.Vec4{0, 0, -10, 1})
	assert.InDelta(t, -1, near.Z()/near.W(), 1e-5)
	assert.InDelta(t, 1, far.Z()/far.W(), 1e-5)
}

func TestViewport(t *testing.T) {
	v := NewViewport(0, 20)
	assert.Equal(t, 1, v.Width())
	seen := v.Revision()
	assert.False(t, v.Changed(seen))

	v.SetSize(1, 20)
	assert.False(t, v.Changed(seen))

	v.SetSize(40, 20)
	assert.True(t, v.Changed(seen))
	w, h := v.Size()
	assert.Equal(t, 40, w)
	assert.Equal(t, 20, h)
	assert.Equal(t, float32(2), v.Aspect())

	seen = v.Revision()
	v.SetOffset(3, 4)
	assert.True(t, v.Changed(seen))
	assert.Equal(t, 3, v.X())
	assert.Equal(t, 4, v.Y())
}

func TestControllerFromCameraRoundTrip(t *testing.T) {
	c := NewCamera(mgl32.Vec3{3, 4, 5}, mgl32.Vec3{1, 1, 1})
	cc := NewControllerFromCamera(c)
	assert.True(t, cc.Eye().ApproxEqualThreshold(c.Eye(), 1e-4), "%v", cc.Eye())
	assert.Equal(t, c.Center(), cc.Target())

	r := c.Revision()
	cc.Apply(c)
	// same pose within float tolerance may still bump once
	assert.GreaterOrEqual(t, c.Revision(), r)

	r = c.Revision()
	cc.OrbitLeft()
	cc.Apply(c)
	assert.Greater(t, c.Revision(), r)
}

func TestControllerBounds(t *testing.T) {
	cc := NewController(WithRadius(2), WithRadiusBounds(1, 3), WithZoomSpeed(1))
	cc.Zoom(5)
	assert.InDelta(t, 1, cc.Eye().Sub(cc.Target()).Len(), 1e-5)
	cc.Zoom(-10)
	assert.InDelta(t, 3, cc.Eye().Sub(cc.Target()).Len(), 1e-5)

	for range 200 {
		cc.OrbitUp()
	}
	assert.Less(t, cc.Eye().Y(), float32(3))

	before := cc.Target()
	cc.PanRight(1)
	assert.NotEqual(t, before, cc.Target())
	assert.Equal(t, before.Y(), cc.Target().Y())
}
