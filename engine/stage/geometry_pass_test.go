package stage

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/camera"
	"github.com/Carmen-Shannon/oxy-mfs/engine/kernel"
	"github.com/Carmen-Shannon/oxy-mfs/engine/model"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/material"
)

type geometryFixture struct {
	r        renderer.Renderer
	viewport camera.Viewport
	view     View
	shadow   ShadowPass
	in       GeometryInput
}

func newGeometryFixture(t *testing.T, w, h int, drawables model.Drawables, lib material.Library) *geometryFixture {
	t.Helper()
	r := newTestRenderer(t, w, h)
	vp := camera.NewViewport(w, h)
	cam := camera.NewCamera(mgl32.Vec3{0, 2, 6}, mgl32.Vec3{0, 0.5, 0})
	proj, err := camera.NewProjection(mgl32.DegToRad(40), 0.1, 50)
	require.NoError(t, err)
	view := NewView(cam, proj, w, h, kernel.Sample{}, 6, 0)

	shadow, err := NewShadowPass(r, WithShadowSize(16))
	require.NoError(t, err)
	t.Cleanup(shadow.Release)
	transform, err := shadow.Render(testLight, drawables, lib)
	require.NoError(t, err)

	return &geometryFixture{
		r:        r,
		viewport: vp,
		view:     view,
		shadow:   shadow,
		in: GeometryInput{
			Viewport:        vp.Snapshot(),
			View:            view,
			Light:           testLight,
			ShadowTransform: transform,
			Shadow:          shadow.Moments(),
			Drawables:       drawables,
			Materials:       lib,
			GroundColor:     mgl32.Vec3{0.8, 0.8, 0.8},
			Alpha:           0.5,
		},
	}
}

func boxDrawables() (model.Drawables, material.Library) {
	d := model.Drawables{}
	d.Add("stone", model.NewBox("box", mgl32.Vec3{0, 0.5, 0}, mgl32.Vec3{1, 1, 1}))
	lib := material.Library{}.Add(material.NewMaterial("stone", material.WithDiffuseColor(mgl32.Vec3{0.6, 0.6, 0.6})))
	return d, lib
}

func TestGeometryPassClearsEmptyTexels(t *testing.T) {
	f := newGeometryFixture(t, 8, 6, model.Drawables{}, material.Library{})
	g, err := NewGeometryPass(f.r, WithGround(false, 0))
	require.NoError(t, err)
	t.Cleanup(g.Release)

	require.NoError(t, g.Process(f.in))
	b := g.GBuffer()
	assert.Equal(t, 8, b.Width)
	assert.Equal(t, 6, b.Height)
	assert.Nil(t, b.Diffuse)
	for _, c := range readTexels(t, f.r, b.Color) {
		assert.InDelta(t, 0.8, c[0], 1.0/255)
	}
	for _, w := range readTexels(t, f.r, b.World) {
		assert.Equal(t, WorldClear, w)
	}
	for _, d := range readTexels(t, f.r, b.Depth) {
		assert.Equal(t, float32(1), d[0])
	}
}

func TestGeometryPassReallocatesOnViewportChange(t *testing.T) {
	d, lib := boxDrawables()
	f := newGeometryFixture(t, 8, 6, d, lib)
	g, err := NewGeometryPass(f.r)
	require.NoError(t, err)
	t.Cleanup(g.Release)

	require.NoError(t, g.Process(f.in))
	first := g.GBuffer().Color

	require.NoError(t, g.Process(f.in))
	assert.Same(t, first, g.GBuffer().Color)

	// The pass follows the snapshot it is given, not the live viewport.
	f.viewport.SetSize(5, 4)
	require.NoError(t, g.Process(f.in))
	assert.Same(t, first, g.GBuffer().Color)

	f.in.Viewport = f.viewport.Snapshot()
	require.NoError(t, g.Process(f.in))
	b := g.GBuffer()
	assert.NotSame(t, first, b.Color)
	for _, tex := range []renderer.Texture{b.Color, b.Normal, b.World, b.Depth} {
		assert.Equal(t, 5, tex.Width())
		assert.Equal(t, 4, tex.Height())
	}
}

func TestGeometryPassDeferredAttributes(t *testing.T) {
	d, lib := boxDrawables()
	f := newGeometryFixture(t, 8, 6, d, lib)
	g, err := NewGeometryPass(f.r, WithMode(ModeDeferred), WithGround(false, 0))
	require.NoError(t, err)
	t.Cleanup(g.Release)
	assert.Equal(t, ModeDeferred, g.Mode())

	require.NoError(t, g.Process(f.in))
	b := g.GBuffer()
	assert.Nil(t, b.Color)
	require.NotNil(t, b.Diffuse)

	center := 3*8 + 4
	diffuse := readTexels(t, f.r, b.Diffuse)[center]
	assert.InDelta(t, 0.6, diffuse[0], 1.0/255)
	world := readTexels(t, f.r, b.World)[center]
	assert.Equal(t, float32(1), world[3])
	assert.Equal(t, WorldClear, readTexels(t, f.r, b.World)[0])
	n := readTexels(t, f.r, b.Normal)[center]
	assert.InDelta(t, 1, mgl32.Vec3{n[0], n[1], n[2]}.Len(), 1e-4)
}

func TestGeometryPassPrepassHeuristic(t *testing.T) {
	d, lib := boxDrawables()
	tests := []struct {
		name    string
		options []GeometryPassBuilderOption
		want    bool
	}{
		{name: "auto below threshold", want: false},
		{name: "auto at threshold", options: []GeometryPassBuilderOption{WithPrepassThreshold(d.TriangleCount())}, want: true},
		{name: "forced on", options: []GeometryPassBuilderOption{WithPrepass(PrepassOn)}, want: true},
		{name: "forced off", options: []GeometryPassBuilderOption{WithPrepass(PrepassOff), WithPrepassThreshold(1)}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGeometryFixture(t, 8, 6, d, lib)
			g, err := NewGeometryPass(f.r, tt.options...)
			require.NoError(t, err)
			t.Cleanup(g.Release)
			require.NoError(t, g.Process(f.in))
			assert.Equal(t, tt.want, g.UsedPrepass())
		})
	}
}

func TestDeferredShadingNeedsDeferredGBuffer(t *testing.T) {
	d, lib := boxDrawables()
	f := newGeometryFixture(t, 8, 6, d, lib)
	g, err := NewGeometryPass(f.r)
	require.NoError(t, err)
	t.Cleanup(g.Release)
	require.NoError(t, g.Process(f.in))

	s, err := NewDeferredShadingStage(f.r)
	require.NoError(t, err)
	t.Cleanup(s.Release)
	err = s.Process(DeferredInput{GBuffer: g.GBuffer(), Shadow: f.shadow, Light: testLight})
	assert.ErrorIs(t, err, common.ErrResourceMismatch)
}

func TestDeferredShadingBackgroundAndIndirect(t *testing.T) {
	d, lib := boxDrawables()
	f := newGeometryFixture(t, 8, 6, d, lib)
	g, err := NewGeometryPass(f.r, WithMode(ModeDeferred), WithGround(false, 0))
	require.NoError(t, err)
	t.Cleanup(g.Release)
	require.NoError(t, g.Process(f.in))

	var shaded [][]float32
	for _, options := range [][]DeferredShadingBuilderOption{nil, {WithIndirect(1, 0.1)}} {
		s, err := NewDeferredShadingStage(f.r, options...)
		require.NoError(t, err)
		t.Cleanup(s.Release)
		in := DeferredInput{GBuffer: g.GBuffer(), Shadow: f.shadow, Light: testLight, Eye: f.view.Eye, GroundColor: mgl32.Vec3{0.1, 0.2, 0.3}}
		require.NoError(t, s.Process(in))

		texels := readTexels(t, f.r, s.Output())
		assert.Equal(t, mgl32.Vec4{0.1, 0.2, 0.3, 1}, texels[0])
		center := texels[3*8+4]
		assert.False(t, center.ApproxEqual(texels[0]))
		pixels, err := f.r.ReadPixels(s.Output())
		require.NoError(t, err)
		shaded = append(shaded, pixels)
	}
	// The bounce only adds light.
	for i := range shaded[0] {
		assert.GreaterOrEqual(t, shaded[1][i], shaded[0][i]-1e-6)
	}
}

func TestPostprocessingWithoutOcclusionCopiesColor(t *testing.T) {
	d, lib := boxDrawables()
	f := newGeometryFixture(t, 8, 6, d, lib)
	g, err := NewGeometryPass(f.r)
	require.NoError(t, err)
	t.Cleanup(g.Release)
	require.NoError(t, g.Process(f.in))
	b := g.GBuffer()

	off, err := NewPostprocessingStage(f.r, WithOcclusion(false, 0.5, 1))
	require.NoError(t, err)
	t.Cleanup(off.Release)
	require.NoError(t, off.Process(b.Color, b, f.view))
	assert.Equal(t, readTexels(t, f.r, b.Color), readTexels(t, f.r, off.Output()))

	on, err := NewPostprocessingStage(f.r, WithNoise(4, 3))
	require.NoError(t, err)
	t.Cleanup(on.Release)
	require.NoError(t, on.Process(b.Color, b, f.view))
	color, occluded := readTexels(t, f.r, b.Color), readTexels(t, f.r, on.Output())
	for i := range color {
		for c := range 3 {
			assert.LessOrEqual(t, occluded[i][c], color[i][c]+1e-6)
		}
	}

	assert.ErrorIs(t, on.Process(nil, b, f.view), common.ErrResourceMismatch)
}

func TestNewViewScalesJitter(t *testing.T) {
	cam := camera.NewCamera(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{})
	proj, err := camera.NewProjection(1, 0.1, 10)
	require.NoError(t, err)
	sample := kernel.Sample{AntiAliasing: mgl32.Vec2{0.5, -0.25}, DepthOfField: mgl32.Vec2{0.5, 0.5}}

	v := NewView(cam, proj, 100, 50, sample, 5, 0.2)
	assert.InDelta(t, 0.01, v.NDCOffset[0], 1e-7)
	assert.InDelta(t, -0.01, v.NDCOffset[1], 1e-7)
	assert.InDelta(t, 0.1, v.CoCPoint[0], 1e-7)
	assert.Equal(t, float32(5), v.FocalDist)
	assert.Equal(t, proj.Matrix(2), v.Projection)
	assert.Equal(t, cam.View(), v.ModelView)

	// Depth of field is off with a zero lens radius.
	v = NewView(cam, proj, 100, 50, sample, 5, 0)
	assert.Equal(t, mgl32.Vec2{}, v.CoCPoint)
}

func TestGeometryPassCullsMeshesOutsideTheFrustum(t *testing.T) {
	d, lib := boxDrawables()
	d.Add("stone", model.NewBox("behind", mgl32.Vec3{0, 0.5, 20}, mgl32.Vec3{1, 1, 1}))
	f := newGeometryFixture(t, 8, 6, d, lib)

	g, err := NewGeometryPass(f.r, WithGround(false, 0))
	require.NoError(t, err)
	t.Cleanup(g.Release)
	require.NoError(t, g.Process(f.in))
	assert.Equal(t, 1, g.Culled())

	all, err := NewGeometryPass(f.r, WithGround(false, 0), WithFrustumCulling(false))
	require.NoError(t, err)
	t.Cleanup(all.Release)
	require.NoError(t, all.Process(f.in))
	assert.Equal(t, 0, all.Culled())
}

func TestViewClipMatchesTheVertexStage(t *testing.T) {
	cam := camera.NewCamera(mgl32.Vec3{1, 2, 5}, mgl32.Vec3{0, 0.5, 0})
	proj, err := camera.NewProjection(mgl32.DegToRad(50), 0.1, 40)
	require.NoError(t, err)

	v := NewView(cam, proj, 8, 6, kernel.Sample{}, 4, 0)
	plain, clip := v.Projection.Mul4(v.ModelView), v.Clip()
	assert.InDeltaSlice(t, plain[:], clip[:], 1e-6)

	sample := kernel.Sample{AntiAliasing: mgl32.Vec2{0.25, -0.5}, DepthOfField: mgl32.Vec2{0.5, -1}}
	v = NewView(cam, proj, 8, 6, sample, 4, 0.5)
	p := mgl32.Vec3{0.3, -0.2, -1.5}

	view := v.ModelView.Mul4x1(p.Vec4(1))
	shear := v.CoCPoint.Mul(-view[2]/v.FocalDist - 1)
	view[0] += shear[0]
	view[1] += shear[1]
	want := v.Projection.Mul4x1(view)
	want[0] += v.NDCOffset[0] * want[3]
	want[1] += v.NDCOffset[1] * want[3]

	got := v.Clip().Mul4x1(p.Vec4(1))
	assert.InDeltaSlice(t, want[:], got[:], 1e-5)
}

func TestFrustumCullingKeepsGeometryShiftedIntoView(t *testing.T) {
	// The box sits right of the unsheared frustum; the lens offset shears it partly into view.
	d := model.Drawables{}
	d.Add("stone", model.NewBox("edge", mgl32.Vec3{25, 0, -40}, mgl32.Vec3{6, 6, 6}))
	lib := material.Library{}.Add(material.NewMaterial("stone", material.WithDiffuseColor(mgl32.Vec3{0.6, 0.6, 0.6})))
	f := newGeometryFixture(t, 8, 6, d, lib)

	cam := camera.NewCamera(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1})
	proj, err := camera.NewProjection(mgl32.DegToRad(40), 0.1, 50)
	require.NoError(t, err)
	f.in.View = NewView(cam, proj, 8, 6, kernel.Sample{DepthOfField: mgl32.Vec2{-1, 0}}, 6, 1)

	lo, hi := d["stone"][0].Bounds()
	require.False(t, common.ExtractFrustum(f.in.View.Projection.Mul4(f.in.View.ModelView)).IntersectsBox(lo, hi))

	images := make([][]mgl32.Vec4, 0, 2)
	for _, cull := range []bool{true, false} {
		g, err := NewGeometryPass(f.r, WithGround(false, 0), WithFrustumCulling(cull))
		require.NoError(t, err)
		t.Cleanup(g.Release)
		require.NoError(t, g.Process(f.in))
		assert.Equal(t, 0, g.Culled())
		images = append(images, readTexels(t, f.r, g.GBuffer().Color))

		drawn := 0
		for _, w := range readTexels(t, f.r, g.GBuffer().World) {
			if w[3] != 0 {
				drawn++
			}
		}
		assert.Positive(t, drawn)
	}
	assert.Equal(t, images[1], images[0])
}
