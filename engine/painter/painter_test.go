package painter

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/camera"
	"github.com/Carmen-Shannon/oxy-mfs/engine/kernel"
	"github.com/Carmen-Shannon/oxy-mfs/engine/model"
	"github.com/Carmen-Shannon/oxy-mfs/engine/preset"
	"github.com/Carmen-Shannon/oxy-mfs/engine/profiler"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/recorder"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-mfs/engine/stage"
)

const (
	testWidth  = 16
	testHeight = 12
)

func newTestRenderer(t *testing.T, w, h int) renderer.Renderer {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithSize(w, h), renderer.WithWorkers(2))
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func testPreset(maxFrames int) preset.Preset {
	p := preset.Default()
	p.MaxFrames = maxFrames
	return p
}

func newTestPainter(t *testing.T, r renderer.Renderer, scene Scene, options ...PainterBuilderOption) MultiFramePainter {
	t.Helper()
	options = append([]PainterBuilderOption{WithShadowOptions(stage.WithShadowSize(32))}, options...)
	p, err := NewMultiFramePainter(r, scene, options...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func solidImage(c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := range 2 {
		for x := range 2 {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func boxScene() Scene {
	d := model.Drawables{}
	d.Add("red", model.NewBox("red.box", mgl32.Vec3{0, 0.5, 0}, mgl32.Vec3{1, 1, 1}))
	return Scene{
		Drawables: d,
		Materials: material.Library{}.Add(material.NewMaterial("red", material.WithDiffuseColor(mgl32.Vec3{0.8, 0.2, 0.2}))),
	}
}

func emptyScene() Scene {
	return Scene{Drawables: model.Drawables{}, Materials: material.Library{}}
}

func paintN(t *testing.T, p MultiFramePainter, n int) Result {
	t.Helper()
	var res Result
	for range n {
		var err error
		res, err = p.Paint()
		require.NoError(t, err)
	}
	return res
}

func readOutput(t *testing.T, r renderer.Renderer, p MultiFramePainter) []float32 {
	t.Helper()
	pixels, err := r.ReadPixels(p.Output())
	require.NoError(t, err)
	return pixels
}

func TestConstantFramesAccumulateToTheSameColor(t *testing.T) {
	tests := []struct {
		name string
		mode stage.Mode
		want float32
	}{
		// The direct color target stores 8 bits per channel.
		{name: "direct", mode: stage.ModeDirect, want: 204.0 / 255.0},
		{name: "deferred", mode: stage.ModeDeferred, want: 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRenderer(t, testWidth, testHeight)
			p := newTestPainter(t, r, emptyScene(),
				WithPreset(testPreset(4)),
				WithMode(tt.mode),
				WithGeometryOptions(stage.WithGround(false, 0)))

			for i := 1; i <= 4; i++ {
				res, err := p.Paint()
				require.NoError(t, err)
				assert.Equal(t, i, res.Frame)
				assert.True(t, res.Rendered)
			}
			assert.True(t, p.State().Converged())

			pixels := readOutput(t, r, p)
			require.Len(t, pixels, testWidth*testHeight*4)
			for i := 0; i < len(pixels); i += 4 {
				assert.InDelta(t, tt.want, pixels[i], 1e-5)
				assert.InDelta(t, tt.want, pixels[i+1], 1e-5)
				assert.InDelta(t, tt.want, pixels[i+2], 1e-5)
				assert.InDelta(t, 1, pixels[i+3], 1e-5)
			}
		})
	}
}

func TestResizeRestartsAccumulation(t *testing.T) {
	r := newTestRenderer(t, testWidth, testHeight)
	p := newTestPainter(t, r, boxScene(), WithPreset(testPreset(8)))
	paintN(t, p, 3)
	assert.Equal(t, 4, p.State().Current())

	p.Viewport().SetSize(10, 8)
	res, err := p.Paint()
	require.NoError(t, err)
	assert.True(t, res.Reset)
	assert.Equal(t, 1, res.Frame)
	assert.Equal(t, uint64(1), p.State().Resets())
	assert.Equal(t, 10, p.Output().Width())
	assert.Equal(t, 8, p.Output().Height())
	assert.Equal(t, 10, r.Screen().Width())

	// Nothing of the three earlier samples survives: the result equals a fresh first frame.
	ref := newTestRenderer(t, 10, 8)
	fresh := newTestPainter(t, ref, boxScene(), WithPreset(testPreset(8)))
	paintN(t, fresh, 1)
	assert.InDeltaSlice(t, readOutput(t, ref, fresh), readOutput(t, r, p), 1e-6)
}

// resizingViewport grows the wrapped viewport right after the frame took its snapshot,
// like a window resize racing the render goroutine.
type resizingViewport struct {
	camera.Viewport
	armed         bool
	width, height int
}

func (v *resizingViewport) Snapshot() camera.ViewportState {
	snap := v.Viewport.Snapshot()
	if v.armed {
		v.armed = false
		v.Viewport.SetSize(v.width, v.height)
	}
	return snap
}

func TestResizeDuringAFrameWaitsForTheNextFrame(t *testing.T) {
	none := kernel.NewGenerator(kernel.WithStrategy(kernel.StrategyNone))
	r := newTestRenderer(t, testWidth, testHeight)
	vp := &resizingViewport{Viewport: camera.NewViewport(testWidth, testHeight), width: 2 * testWidth, height: 2 * testHeight}
	p := newTestPainter(t, r, boxScene(), WithPreset(testPreset(4)), WithKernelGenerator(none), WithViewport(vp))

	paintN(t, p, 1)
	before := readOutput(t, r, p)

	vp.armed = true
	res, err := p.Paint()
	require.NoError(t, err)
	assert.False(t, res.Reset)
	assert.Equal(t, 2, res.Frame)
	assert.Equal(t, testWidth, p.Output().Width())
	assert.Equal(t, testHeight, p.Output().Height())
	assert.Equal(t, testWidth, r.Screen().Width())
	// The second sample of a constant kernel leaves the mean untouched.
	assert.InDeltaSlice(t, before, readOutput(t, r, p), 1e-5)

	res, err = p.Paint()
	require.NoError(t, err)
	assert.True(t, res.Reset)
	assert.Equal(t, 1, res.Frame)
	assert.Equal(t, 2*testWidth, p.Output().Width())
	assert.Equal(t, 2*testHeight, p.Output().Height())
	assert.Equal(t, 2*testWidth, r.Screen().Width())
}

func TestIdentityKernelMatchesSingleFrame(t *testing.T) {
	none := kernel.NewGenerator(kernel.WithStrategy(kernel.StrategyNone))

	r := newTestRenderer(t, testWidth, testHeight)
	p := newTestPainter(t, r, boxScene(), WithPreset(testPreset(4)), WithKernelGenerator(none))
	res := paintN(t, p, 4)
	require.True(t, res.Converged)

	ref := newTestRenderer(t, testWidth, testHeight)
	single := newTestPainter(t, ref, boxScene(), WithPreset(testPreset(1)), WithKernelGenerator(none))
	paintN(t, single, 1)

	assert.InDeltaSlice(t, readOutput(t, ref, single), readOutput(t, r, p), 1e-5)
}

func TestPrepassDoesNotChangeTheImage(t *testing.T) {
	var images [][]float32
	for _, mode := range []stage.PrepassMode{stage.PrepassOff, stage.PrepassOn} {
		r := newTestRenderer(t, testWidth, testHeight)
		p := newTestPainter(t, r, boxScene(), WithPreset(testPreset(2)), WithGeometryOptions(stage.WithPrepass(mode)))
		res := paintN(t, p, 2)
		assert.Equal(t, mode == stage.PrepassOn, res.Prepass)
		images = append(images, readOutput(t, r, p))
	}
	assert.Equal(t, images[0], images[1])
}

func TestSceneDiffersFromBackground(t *testing.T) {
	for _, mode := range []stage.Mode{stage.ModeDirect, stage.ModeDeferred} {
		t.Run(mode.String(), func(t *testing.T) {
			r := newTestRenderer(t, testWidth, testHeight)
			p := newTestPainter(t, r, boxScene(), WithPreset(testPreset(1)), WithMode(mode),
				WithGeometryOptions(stage.WithGround(false, 0)))
			paintN(t, p, 1)

			pixels := readOutput(t, r, p)
			center := pixels[((testHeight/2)*testWidth+testWidth/2)*4:][:4]
			corner := pixels[:4]
			assert.NotEqual(t, corner, center)
			assert.Greater(t, center[0], center[1])
		})
	}
}

func TestDiffuseOnlyMaterialBindsOnlyTheDiffuseUnit(t *testing.T) {
	r := recorder.New(newTestRenderer(t, testWidth, testHeight))
	d := model.Drawables{}
	d.Add("textured", model.NewBox("textured.box", mgl32.Vec3{0, 0.5, 0}, mgl32.Vec3{1, 1, 1}))
	lib := material.Library{}.Add(material.NewMaterial("textured",
		material.WithTexture(material.TextureDiffuse, material.ImageSource("checker", solidImage(color.NRGBA{R: 255, G: 128, A: 255})))))
	p := newTestPainter(t, r, Scene{Drawables: d, Materials: lib}, WithPreset(testPreset(2)),
		WithGeometryOptions(stage.WithPrepass(stage.PrepassOn)))
	paintN(t, p, 2)

	scenePass := func(c recorder.Call) bool {
		return c.Pass == "shadow" || c.Pass == "geometry" || c.Pass == "geometry.prepass"
	}
	for _, unit := range []int{shader.UnitSpecular, shader.UnitEmissive, shader.UnitOpacity, shader.UnitBump} {
		n := r.Count(func(c recorder.Call) bool {
			return c.Kind == recorder.CallBindTexture && scenePass(c) && c.Unit == unit
		})
		assert.Zero(t, n, "unit %d", unit)
	}
	for _, pass := range []string{"shadow", "geometry"} {
		n := r.Count(func(c recorder.Call) bool {
			return c.Kind == recorder.CallBindTexture && c.Pass == pass && c.Unit == shader.UnitDiffuse
		})
		assert.Equal(t, 2, n, pass)
	}
}

func TestCullModeFollowsOpacityTexture(t *testing.T) {
	r := recorder.New(newTestRenderer(t, testWidth, testHeight))
	white := material.ImageSource("white", solidImage(color.NRGBA{R: 255, G: 255, B: 255, A: 255}))
	d := model.Drawables{}
	d.Add("leaf", model.NewBox("leaf.box", mgl32.Vec3{-1, 0.5, 0}, mgl32.Vec3{1, 1, 1}))
	d.Add("solid", model.NewBox("solid.box", mgl32.Vec3{1, 0.5, 0}, mgl32.Vec3{1, 1, 1}))
	lib := material.Library{}.Add(
		material.NewMaterial("leaf", material.WithTexture(material.TextureOpacity, white)),
		material.NewMaterial("solid"),
	)
	p := newTestPainter(t, r, Scene{Drawables: d, Materials: lib}, WithPreset(testPreset(1)),
		WithGeometryOptions(stage.WithPrepass(stage.PrepassOn)))
	paintN(t, p, 1)

	cull := map[string]renderer.CullMode{}
	current := renderer.CullMode(-1)
	prepassDraws := []string{}
	for _, c := range r.Calls() {
		switch {
		case c.Pass == "geometry.prepass" && c.Kind == recorder.CallDraw:
			prepassDraws = append(prepassDraws, c.Mesh)
		case c.Pass != "geometry":
		case c.Kind == recorder.CallSetCullMode:
			current = c.Cull
		case c.Kind == recorder.CallDraw:
			cull[c.Mesh] = current
		}
	}
	assert.Equal(t, map[string]renderer.CullMode{
		"leaf.box":  renderer.CullNone,
		"solid.box": renderer.CullBack,
		"ground":    renderer.CullBack,
	}, cull)
	assert.Equal(t, []string{"solid.box"}, prepassDraws)
}

func TestConvergedPainterSkipsTheScene(t *testing.T) {
	r := recorder.New(newTestRenderer(t, testWidth, testHeight))
	p := newTestPainter(t, r, boxScene(), WithPreset(testPreset(2)))
	res := paintN(t, p, 2)
	require.True(t, res.Converged)
	before := readOutput(t, r, p)

	r.Reset()
	res, err := p.Paint()
	require.NoError(t, err)
	assert.Equal(t, Result{Frame: 2, Max: 2, Converged: true}, res)
	begins := func(label string) int {
		return r.Count(func(c recorder.Call) bool { return c.Kind == recorder.CallBeginPass && c.Pass == label })
	}
	assert.Zero(t, begins("shadow"))
	assert.Zero(t, begins("geometry"))
	assert.Zero(t, begins("accumulate"))
	assert.Equal(t, 1, begins("blit"))
	assert.Equal(t, before, readOutput(t, r, p))
}

func TestConvergedPainterWithoutSkipStartsOver(t *testing.T) {
	r := newTestRenderer(t, testWidth, testHeight)
	p := newTestPainter(t, r, boxScene(), WithPreset(testPreset(2)), WithSkipConverged(false))
	paintN(t, p, 2)

	res, err := p.Paint()
	require.NoError(t, err)
	assert.True(t, res.Reset)
	assert.True(t, res.Rendered)
	assert.Equal(t, 1, res.Frame)
	assert.False(t, res.Converged)
}

func TestInvalidationRestartsAccumulation(t *testing.T) {
	tests := []struct {
		name       string
		invalidate func(p MultiFramePainter)
		reset      bool
	}{
		{name: "camera", invalidate: func(p MultiFramePainter) { p.Camera().SetEye(mgl32.Vec3{1, 2, 6}) }, reset: true},
		{name: "projection", invalidate: func(p MultiFramePainter) { _ = p.Projection().SetFovY(1) }, reset: true},
		{name: "light", invalidate: func(p MultiFramePainter) { p.SetLightPosition(mgl32.Vec3{1, 8, 0}) }, reset: true},
		{name: "same light", invalidate: func(p MultiFramePainter) { p.SetLightPosition(p.LightPosition()) }, reset: false},
		{name: "scene", invalidate: func(p MultiFramePainter) { p.SetScene(emptyScene()) }, reset: true},
		{name: "explicit", invalidate: func(p MultiFramePainter) { p.Invalidate() }, reset: true},
		{name: "nothing", invalidate: func(MultiFramePainter) {}, reset: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRenderer(t, testWidth, testHeight)
			p := newTestPainter(t, r, boxScene(), WithPreset(testPreset(8)))
			paintN(t, p, 2)

			tt.invalidate(p)
			res, err := p.Paint()
			require.NoError(t, err)
			assert.Equal(t, tt.reset, res.Reset)
			if tt.reset {
				assert.Equal(t, 1, res.Frame)
			} else {
				assert.Equal(t, 3, res.Frame)
			}
		})
	}
}

func TestSetPreset(t *testing.T) {
	r := newTestRenderer(t, testWidth, testHeight)
	p := newTestPainter(t, r, boxScene(), WithPreset(testPreset(4)))
	paintN(t, p, 2)

	bad := testPreset(4)
	bad.Near = 0
	assert.ErrorIs(t, p.SetPreset(bad), common.ErrConfiguration)
	assert.Equal(t, 4, p.Preset().MaxFrames)

	next, err := preset.Builtin("soft-shadows")
	require.NoError(t, err)
	require.NoError(t, p.SetPreset(next))
	assert.Equal(t, next.MaxFrames, p.Kernel().Len())
	assert.Equal(t, next.Light(), p.LightPosition())
	assert.Equal(t, next.Eye(), p.Camera().Eye())
	assert.InDelta(t, mgl32.DegToRad(next.FovY), p.Projection().FovY(), 1e-6)

	res, err := p.Paint()
	require.NoError(t, err)
	assert.True(t, res.Reset)
	assert.Equal(t, 1, res.Frame)
	assert.Equal(t, next.MaxFrames, res.Max)
	// A new frame count restarts accumulation once.
	assert.Equal(t, uint64(1), p.State().Resets())
}

func TestNewMultiFramePainterRejectsInvalidPreset(t *testing.T) {
	r := newTestRenderer(t, testWidth, testHeight)
	bad := testPreset(0)
	_, err := NewMultiFramePainter(r, boxScene(), WithPreset(bad))
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestMissingMaterialFails(t *testing.T) {
	r := newTestRenderer(t, testWidth, testHeight)
	d := model.Drawables{}
	d.Add("ghost", model.NewBox("ghost.box", mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}))
	p := newTestPainter(t, r, Scene{Drawables: d, Materials: material.Library{}}, WithPreset(testPreset(2)))

	_, err := p.Paint()
	assert.ErrorIs(t, err, stage.ErrMissingMaterial)
	assert.ErrorIs(t, err, common.ErrResourceMismatch)
}

func TestProfilerTimesEveryStage(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}
	prof := profiler.NewProfiler(profiler.WithClock(clock), profiler.WithInterval(time.Hour))

	r := newTestRenderer(t, testWidth, testHeight)
	p := newTestPainter(t, r, boxScene(), WithPreset(testPreset(2)), WithProfiler(prof))
	paintN(t, p, 1)

	for _, name := range []string{"shadow", "geometry", "postprocess", "accumulate", "blit"} {
		assert.Equal(t, time.Millisecond, prof.Last(name), name)
	}
	assert.Zero(t, prof.Last("shading"))
}
