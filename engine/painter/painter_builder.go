package painter

import (
	"github.com/Carmen-Shannon/oxy-mfs/engine/camera"
	"github.com/Carmen-Shannon/oxy-mfs/engine/kernel"
	"github.com/Carmen-Shannon/oxy-mfs/engine/preset"
	"github.com/Carmen-Shannon/oxy-mfs/engine/profiler"
	"github.com/Carmen-Shannon/oxy-mfs/engine/stage"
)

// PainterBuilderOption is a function that configures a painter during construction.
type PainterBuilderOption func(*painter)

// WithPreset is an option builder that sets the initial preset. It is validated by NewMultiFramePainter.
//
// Parameters:
//   - p: the preset
//
// Returns:
//   - PainterBuilderOption: a function that applies the preset to a painter
func WithPreset(p preset.Preset) PainterBuilderOption {
	return func(pt *painter) {
		pt.preset = p
	}
}

// WithMode is an option builder that selects direct or deferred shading.
func WithMode(m stage.Mode) PainterBuilderOption {
	return func(p *painter) {
		p.mode = m
	}
}

// WithKernelGenerator is an option builder that replaces the default Halton generator.
//
// Parameters:
//   - g: the generator producing the jitter samples
//
// Returns:
//   - PainterBuilderOption: a function that applies the generator to a painter
func WithKernelGenerator(g kernel.Generator) PainterBuilderOption {
	return func(p *painter) {
		p.generator = g
	}
}

// WithSkipConverged is an option builder that toggles re-showing the converged image instead
// of starting a new sample cycle. Enabled by default.
func WithSkipConverged(skip bool) PainterBuilderOption {
	return func(p *painter) {
		p.skipConverged = skip
	}
}

// WithCamera is an option builder that supplies the camera polled each frame.
func WithCamera(c camera.Camera) PainterBuilderOption {
	return func(p *painter) {
		p.camera = c
	}
}

// WithProjection is an option builder that supplies the projection polled each frame.
func WithProjection(pr camera.Projection) PainterBuilderOption {
	return func(p *painter) {
		p.projection = pr
	}
}

// WithViewport is an option builder that supplies the viewport polled each frame. The renderer
// is resized to it before the first frame.
func WithViewport(v camera.Viewport) PainterBuilderOption {
	return func(p *painter) {
		p.viewport = v
	}
}

// WithProfiler is an option builder that attaches a profiler timing every stage.
func WithProfiler(pr *profiler.Profiler) PainterBuilderOption {
	return func(p *painter) {
		p.profiler = pr
	}
}

// WithShadowOptions is an option builder that forwards options to the shadow pass.
//
// Parameters:
//   - options: the shadow pass options, applied after the painter's own
//
// Returns:
//   - PainterBuilderOption: a function that records the options
func WithShadowOptions(options ...stage.ShadowPassBuilderOption) PainterBuilderOption {
	return func(p *painter) {
		p.shadowOptions = append(p.shadowOptions, options...)
	}
}

// WithGeometryOptions is an option builder that forwards options to the geometry pass.
func WithGeometryOptions(options ...stage.GeometryPassBuilderOption) PainterBuilderOption {
	return func(p *painter) {
		p.geometryOptions = append(p.geometryOptions, options...)
	}
}

// WithDeferredOptions is an option builder that forwards options to the deferred shading stage.
func WithDeferredOptions(options ...stage.DeferredShadingBuilderOption) PainterBuilderOption {
	return func(p *painter) {
		p.deferredOptions = append(p.deferredOptions, options...)
	}
}

// WithPostprocessingOptions is an option builder that forwards options to the postprocessing stage.
func WithPostprocessingOptions(options ...stage.PostprocessingBuilderOption) PainterBuilderOption {
	return func(p *painter) {
		p.postOptions = append(p.postOptions, options...)
	}
}
