// Package painter drives the multi-frame sampling pipeline. A painter owns the frame counter and
// the stages, polls the camera capabilities at the start of every frame and restarts the
// accumulation whenever the image it converges to would change.
package painter

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/camera"
	"github.com/Carmen-Shannon/oxy-mfs/engine/frame"
	"github.com/Carmen-Shannon/oxy-mfs/engine/kernel"
	"github.com/Carmen-Shannon/oxy-mfs/engine/logger"
	"github.com/Carmen-Shannon/oxy-mfs/engine/model"
	"github.com/Carmen-Shannon/oxy-mfs/engine/preset"
	"github.com/Carmen-Shannon/oxy-mfs/engine/profiler"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-mfs/engine/stage"
)

// Scene is the geometry a painter draws. The painter borrows both maps; callers hand over a new
// Scene through SetScene instead of mutating one that is being painted.
type Scene struct {
	Drawables model.Drawables
	Materials material.Library
}

// Result describes one call of Paint.
type Result struct {
	// Frame is the 1-based sample that was accumulated, or the converged sample count when the
	// frame was skipped.
	Frame int
	Max   int

	// Rendered is false when a converged image was only shown again.
	Rendered bool

	// Converged reports whether the accumulation holds every sample after this call.
	Converged bool

	// Reset reports whether the accumulation was restarted before this frame.
	Reset bool

	// Prepass reports whether the geometry pass pre-drew depth.
	Prepass bool
}

type painter struct {
	mu *sync.Mutex
	r  renderer.Renderer

	preset    preset.Preset
	generator kernel.Generator
	kernel    kernel.JitterKernel
	state     *frame.State

	camera     camera.Camera
	projection camera.Projection
	viewport   camera.Viewport

	extent         camera.ViewportState
	seenCamera     uint64
	seenProjection uint64

	scene Scene
	light mgl32.Vec3
	dirty bool
	// painted is false until the first frame, so the initial poll does not count as a reset.
	painted bool

	mode          stage.Mode
	skipConverged bool
	profiler      *profiler.Profiler

	shadowOptions   []stage.ShadowPassBuilderOption
	geometryOptions []stage.GeometryPassBuilderOption
	deferredOptions []stage.DeferredShadingBuilderOption
	postOptions     []stage.PostprocessingBuilderOption

	textures stage.TextureCache
	shadow   stage.ShadowPass
	geometry stage.GeometryPass
	deferred stage.DeferredShadingStage
	post     stage.PostprocessingStage
	accum    stage.FrameAccumulationStage
	blit     stage.BlitStage
}

// MultiFramePainter renders one jittered sample per Paint and shows the running mean of every
// sample since the last reset.
type MultiFramePainter interface {
	// Paint polls the viewport, camera and projection, renders the next sample through the shadow,
	// geometry, shading, postprocessing, accumulation and blit stages and presents the screen.
	// Once converged, Paint only shows the accumulation again unless the skip is disabled.
	//
	// Returns:
	//   - Result: what the call did
	//   - error: a configuration or backend failure; the session should be ended
	Paint() (Result, error)

	// State returns a copy of the frame counter.
	State() frame.State

	// Preset returns the active preset.
	Preset() preset.Preset

	// SetPreset validates and applies a preset: camera, projection, light, exposure, alpha
	// threshold and the sample count. Accumulation restarts.
	//
	// Parameters:
	//   - p: the preset
	//
	// Returns:
	//   - error: common.ErrConfiguration if the preset is invalid
	SetPreset(p preset.Preset) error

	// SetLightPosition moves the unjittered light. Accumulation restarts when it changes.
	//
	// Parameters:
	//   - pos: the world position of the light
	SetLightPosition(pos mgl32.Vec3)

	// LightPosition returns the unjittered light position.
	LightPosition() mgl32.Vec3

	// SetScene replaces the drawn geometry. Accumulation restarts.
	//
	// Parameters:
	//   - s: the new scene
	SetScene(s Scene)

	// Invalidate restarts accumulation on the next Paint.
	Invalidate()

	// Camera returns the camera polled by Paint.
	Camera() camera.Camera

	// Projection returns the projection polled by Paint.
	Projection() camera.Projection

	// Viewport returns the viewport polled by Paint.
	Viewport() camera.Viewport

	// Kernel returns the jitter samples of the current sample count.
	Kernel() kernel.JitterKernel

	// Output returns the accumulation texture. It is reallocated on resize.
	Output() renderer.Texture

	// Release frees every stage.
	Release()
}

var _ MultiFramePainter = &painter{}

// NewMultiFramePainter creates the stages on r. Without options the painter uses the default
// preset, a Halton kernel, direct shading and a viewport the size of the screen.
//
// Parameters:
//   - r: the renderer every stage draws with
//   - scene: the geometry to paint
//   - options: variadic list of PainterBuilderOption functions
//
// Returns:
//   - MultiFramePainter: the painter
//   - error: common.ErrConfiguration for an invalid preset, or a stage creation failure
func NewMultiFramePainter(r renderer.Renderer, scene Scene, options ...PainterBuilderOption) (MultiFramePainter, error) {
	p := &painter{
		mu:            &sync.Mutex{},
		r:             r,
		preset:        preset.Default(),
		scene:         scene,
		mode:          stage.ModeDirect,
		skipConverged: true,
	}
	for _, opt := range options {
		opt(p)
	}
	if err := p.preset.Validate(); err != nil {
		return nil, err
	}
	if p.generator == nil {
		p.generator = kernel.NewGenerator()
	}
	if p.viewport == nil {
		screen := r.Screen()
		p.viewport = camera.NewViewport(screen.Width(), screen.Height())
	}
	if p.camera == nil {
		p.camera = camera.NewCamera(p.preset.Eye(), p.preset.Center())
	}
	if p.projection == nil {
		proj, err := camera.NewProjection(mgl32.DegToRad(p.preset.FovY), p.preset.Near, p.preset.Far)
		if err != nil {
			return nil, err
		}
		p.projection = proj
	}
	p.light = p.preset.Light()

	var err error
	if p.kernel, err = p.generator.Generate(p.preset.MaxFrames); err != nil {
		return nil, err
	}
	if p.state, err = frame.NewState(p.preset.MaxFrames); err != nil {
		return nil, err
	}
	if err := p.createStages(); err != nil {
		p.Release()
		return nil, err
	}
	if err := p.shadow.SetAlpha(p.preset.Alpha); err != nil {
		p.Release()
		return nil, err
	}
	p.blit.SetExposure(p.preset.Exposure)

	logger.For("painter").Info("painter ready",
		"mode", p.mode.String(),
		"strategy", p.generator.Strategy().String(),
		"max_frames", p.preset.MaxFrames,
		"preset", p.preset.Name)
	return p, nil
}

// createStages builds the stage sequence. Shadow and geometry share one material texture cache.
func (p *painter) createStages() error {
	p.textures = stage.NewTextureCache(p.r)

	var err error
	shadowOptions := append([]stage.ShadowPassBuilderOption{stage.WithShadowTextures(p.textures)}, p.shadowOptions...)
	if p.shadow, err = stage.NewShadowPass(p.r, shadowOptions...); err != nil {
		return fmt.Errorf("painter: %w", err)
	}
	geometryOptions := append([]stage.GeometryPassBuilderOption{
		stage.WithGeometryTextures(p.textures),
		stage.WithMode(p.mode),
	}, p.geometryOptions...)
	if p.geometry, err = stage.NewGeometryPass(p.r, geometryOptions...); err != nil {
		return fmt.Errorf("painter: %w", err)
	}
	if p.geometry.Mode() == stage.ModeDeferred {
		if p.deferred, err = stage.NewDeferredShadingStage(p.r, p.deferredOptions...); err != nil {
			return fmt.Errorf("painter: %w", err)
		}
	}
	if p.post, err = stage.NewPostprocessingStage(p.r, p.postOptions...); err != nil {
		return fmt.Errorf("painter: %w", err)
	}
	if p.accum, err = stage.NewFrameAccumulationStage(p.r); err != nil {
		return fmt.Errorf("painter: %w", err)
	}
	if p.blit, err = stage.NewBlitStage(p.r); err != nil {
		return fmt.Errorf("painter: %w", err)
	}
	return nil
}

func (p *painter) State() frame.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.state
}

func (p *painter) Preset() preset.Preset {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.preset
}

func (p *painter) SetPreset(next preset.Preset) error {
	if err := next.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.projection.SetNearFar(next.Near, next.Far); err != nil {
		return err
	}
	if err := p.projection.SetFovY(mgl32.DegToRad(next.FovY)); err != nil {
		return err
	}
	if next.MaxFrames != p.preset.MaxFrames {
		k, err := p.generator.Generate(next.MaxFrames)
		if err != nil {
			return err
		}
		if err := p.state.SetMax(next.MaxFrames); err != nil {
			return err
		}
		p.kernel = k
	}
	if err := p.shadow.SetAlpha(next.Alpha); err != nil {
		return err
	}
	p.camera.SetLookAt(next.Eye(), next.Center(), mgl32.Vec3{0, 1, 0})
	p.blit.SetExposure(next.Exposure)
	p.light = next.Light()
	p.preset = next
	p.dirty = true
	logger.For("painter").Info("preset applied", "preset", next.Name, "max_frames", next.MaxFrames)
	return nil
}

func (p *painter) SetLightPosition(pos mgl32.Vec3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos == p.light {
		return
	}
	p.light = pos
	p.dirty = true
}

func (p *painter) LightPosition() mgl32.Vec3 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.light
}

func (p *painter) SetScene(s Scene) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scene = s
	p.dirty = true
}

func (p *painter) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = true
}

func (p *painter) Camera() camera.Camera { return p.camera }

func (p *painter) Projection() camera.Projection { return p.projection }

func (p *painter) Viewport() camera.Viewport { return p.viewport }

func (p *painter) Kernel() kernel.JitterKernel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kernel
}

func (p *painter) Output() renderer.Texture {
	return p.accum.Output()
}

// poll compares the capability revisions with the ones seen by the last frame. The viewport
// is applied to the renderer here, never mid-frame.
//
// Returns:
//   - bool: true if accumulation has to restart
func (p *painter) poll() bool {
	reset := p.dirty
	p.dirty = false

	if snap := p.viewport.Snapshot(); snap.Revision != p.extent.Revision {
		p.r.Resize(snap.Width, snap.Height)
		p.extent = snap
		logger.For("painter").Info("viewport resized", "width", snap.Width, "height", snap.Height)
		reset = true
	}
	if rev := p.camera.Revision(); rev != p.seenCamera {
		p.seenCamera = rev
		reset = true
	}
	if rev := p.projection.Revision(); rev != p.seenProjection {
		p.seenProjection = rev
		reset = true
	}
	return reset && p.painted
}

// restart clears the accumulation and starts over at sample 1.
func (p *painter) restart() error {
	p.state.Reset()
	if err := p.accum.Reset(); err != nil {
		return fmt.Errorf("painter: reset accumulation: %w", err)
	}
	logger.For("painter").Debug("accumulation restarted", "resets", p.state.Resets())
	return nil
}

// jitteredLight moves the light by the shadow sample on the x/z plane.
func (p *painter) jitteredLight(sample kernel.Sample) stage.Light {
	shift := sample.Shadow.Mul(p.preset.LightMaxShift)
	return stage.Light{
		Position:  p.light.Add(mgl32.Vec3{shift[0], 0, shift[1]}),
		Direction: stage.DefaultLightDirection,
		Near:      p.preset.Near,
		Far:       p.preset.Far,
		Intensity: p.preset.LightIntensity,
	}
}

// run times fn under name when a profiler is attached.
func (p *painter) run(name string, fn func() error) error {
	if p.profiler == nil {
		return fn()
	}
	return p.profiler.Stage(name, fn)
}

func (p *painter) Paint() (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var res Result
	reset := p.poll()
	if !reset && p.state.Converged() {
		if p.skipConverged {
			res.Frame, res.Max, res.Converged = p.state.Current(), p.state.Max(), true
			if err := p.run("blit", func() error { return p.blit.Process(p.accum.Output()) }); err != nil {
				return res, err
			}
			return res, p.r.Present()
		}
		// Without the skip the next sample cycle starts over.
		reset = true
	}
	if reset {
		if err := p.restart(); err != nil {
			return res, err
		}
		res.Reset = true
	}
	p.state.Begin()
	res.Max = p.state.Max()

	if err := p.render(); err != nil {
		return res, err
	}
	res.Frame, res.Rendered, res.Prepass = p.state.Current(), true, p.geometry.UsedPrepass()
	p.painted = true

	if p.profiler != nil {
		p.profiler.Tick(p.state.Current(), p.state.Max())
	}
	if p.state.Advance() {
		logger.For("painter").Info("converged", "frames", p.state.Max(), "resets", p.state.Resets())
	}
	res.Converged = p.state.Converged()
	return res, nil
}

// render draws and accumulates the current sample.
func (p *painter) render() error {
	current := p.state.Current()
	sample, err := p.kernel.Sample(current)
	if err != nil {
		return fmt.Errorf("painter: %w: %w", common.ErrStateInvariant, err)
	}
	light := p.jitteredLight(sample)
	view := stage.NewView(p.camera, p.projection, p.extent.Width, p.extent.Height, sample,
		p.preset.FocalDist, p.preset.FocalPoint*p.preset.DOFScale())
	log := logger.For("painter")
	log.Debug("frame", "frame", current, "max", p.state.Max(), "light", light.Position)

	var transform mgl32.Mat4
	err = p.run("shadow", func() error {
		var err error
		transform, err = p.shadow.Render(light, p.scene.Drawables, p.scene.Materials)
		return err
	})
	if err != nil {
		return err
	}

	err = p.run("geometry", func() error {
		return p.geometry.Process(stage.GeometryInput{
			Viewport:        p.extent,
			View:            view,
			Light:           light,
			ShadowTransform: transform,
			Shadow:          p.shadow.Moments(),
			Drawables:       p.scene.Drawables,
			Materials:       p.scene.Materials,
			GroundColor:     p.preset.Ground(),
			GroundHeight:    p.preset.GroundHeight,
			BumpType:        p.preset.BumpType,
			Alpha:           p.preset.Alpha,
		})
	})
	if err != nil {
		return err
	}
	gbuffer := p.geometry.GBuffer()

	color := gbuffer.Color
	if p.deferred != nil {
		err = p.run("shading", func() error {
			return p.deferred.Process(stage.DeferredInput{
				GBuffer:     gbuffer,
				Shadow:      p.shadow,
				Light:       light,
				Eye:         view.Eye,
				GroundColor: p.preset.Ground(),
			})
		})
		if err != nil {
			return err
		}
		color = p.deferred.Output()
	}

	if err := p.run("postprocess", func() error { return p.post.Process(color, gbuffer, view) }); err != nil {
		return err
	}
	if err := p.run("accumulate", func() error { return p.accum.Process(p.post.Output(), *p.state) }); err != nil {
		return err
	}
	if err := p.run("blit", func() error { return p.blit.Process(p.accum.Output()) }); err != nil {
		return err
	}
	return p.r.Present()
}

func (p *painter) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shadow != nil {
		p.shadow.Release()
	}
	if p.geometry != nil {
		p.geometry.Release()
	}
	if p.deferred != nil {
		p.deferred.Release()
	}
	if p.post != nil {
		p.post.Release()
	}
	if p.accum != nil {
		p.accum.Release()
	}
	if p.textures != nil {
		p.textures.Release()
	}
}
