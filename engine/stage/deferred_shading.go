package stage

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
)

// DeferredInput is what DeferredShadingStage reads in one frame. Every texture is borrowed.
type DeferredInput struct {
	GBuffer GBuffer
	Shadow  ShadowPass
	Light   Light
	Eye     mgl32.Vec3

	GroundColor mgl32.Vec3
}

type deferredShading struct {
	mu *sync.Mutex
	r  renderer.Renderer

	indirect         bool
	indirectStrength float32
	indirectRadius   float32

	program renderer.Program
	out     output
}

// DeferredShadingStage lights the attributes of a deferred G-buffer with the shadowed point
// light and an optional single bounce gathered from the reflective shadow map.
type DeferredShadingStage interface {
	// Process shades every G-buffer texel. Texels without a surface get the ground color.
	//
	// Parameters:
	//   - in: the G-buffer, the rendered shadow pass and the light of the frame
	//
	// Returns:
	//   - error: common.ErrResourceMismatch when the G-buffer lacks deferred attributes
	Process(in DeferredInput) error

	// Output returns the shaded frame.
	Output() renderer.Texture

	// Release frees the output target.
	Release()
}

var _ DeferredShadingStage = &deferredShading{}

// NewDeferredShadingStage loads the deferred shading program.
//
// Parameters:
//   - r: the renderer
//   - options: variadic list of DeferredShadingBuilderOption functions
//
// Returns:
//   - DeferredShadingStage: the stage
//   - error: an error if the program can not be created
func NewDeferredShadingStage(r renderer.Renderer, options ...DeferredShadingBuilderOption) (DeferredShadingStage, error) {
	d := &deferredShading{
		mu:               &sync.Mutex{},
		r:                r,
		indirectStrength: 1,
		indirectRadius:   0.1,
		out:              output{label: "shaded", format: renderer.FormatRGBA32F},
	}
	for _, opt := range options {
		opt(d)
	}
	var err error
	if d.program, err = r.Program(shader.ProgramDeferredShading); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *deferredShading) Output() renderer.Texture {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out.texture()
}

func (d *deferredShading) Process(in DeferredInput) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b := in.GBuffer
	if b.Diffuse == nil || b.World == nil || in.Shadow == nil {
		return fmt.Errorf("deferred shading: %w: g-buffer has no deferred attributes", common.ErrResourceMismatch)
	}
	if _, err := d.out.ensure(d.r, b.Width, b.Height); err != nil {
		return fmt.Errorf("deferred shading: %w", err)
	}

	transform := in.Shadow.Transform()
	err := renderer.SetShared(map[string]any{
		"biasedShadowTransform":  transform,
		"inverseShadowTransform": transform.Inv(),
		"worldLightPos":          in.Light.Position,
		"lightIntensity":         in.Light.Intensity,
		"cameraEye":              in.Eye,
		"groundPlaneColor":       in.GroundColor,
		"useIndirect":            d.indirect,
		"indirectStrength":       d.indirectStrength,
		"indirectRadius":         d.indirectRadius,
	}, d.program)
	if err != nil {
		return err
	}
	return fullscreen(d.r, d.out.t.fb, "deferred", d.program, map[int]renderer.Texture{
		shader.DeferredUnitShadow:       in.Shadow.Moments(),
		shader.DeferredUnitDiffuse:      b.Diffuse,
		shader.DeferredUnitSpecular:     b.Specular,
		shader.DeferredUnitEmissive:     b.Emissive,
		shader.DeferredUnitFaceNormal:   b.FaceNormal,
		shader.DeferredUnitNormal:       b.Normal,
		shader.DeferredUnitWorldPos:     b.World,
		shader.DeferredUnitFlux:         in.Shadow.Flux(),
		shader.DeferredUnitShadowNormal: in.Shadow.Normal(),
	})
}

func (d *deferredShading) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.out.release()
}

// DeferredShadingBuilderOption is a function that configures the deferred shading stage.
type DeferredShadingBuilderOption func(*deferredShading)

// WithIndirect is an option builder that enables the reflective shadow map bounce.
//
// Parameters:
//   - strength: the scale of the gathered light
//   - radius: the gather radius in shadow map texture units
//
// Returns:
//   - DeferredShadingBuilderOption: a function that applies the indirect option to the stage
func WithIndirect(strength, radius float32) DeferredShadingBuilderOption {
	return func(d *deferredShading) {
		d.indirect = true
		d.indirectStrength = strength
		d.indirectRadius = radius
	}
}
