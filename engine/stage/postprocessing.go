package stage

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
)

type postprocessing struct {
	mu *sync.Mutex
	r  renderer.Renderer

	occlusion bool
	radius    float32
	strength  float32
	noiseSize int
	noiseSeed uint64

	program renderer.Program
	noise   renderer.Texture
	out     output
}

// PostprocessingStage darkens creases of the frame with screen space ambient occlusion. The
// geometry pass targets are only read.
type PostprocessingStage interface {
	// Process writes the occluded color of the frame. With occlusion disabled the color is copied.
	//
	// Parameters:
	//   - color: the shaded frame
	//   - gbuffer: the normal and world position targets of the frame
	//   - view: the view the frame was rendered with
	//
	// Returns:
	//   - error: common.ErrResourceMismatch when an input is missing, or a backend failure
	Process(color renderer.Texture, gbuffer GBuffer, view View) error

	// Output returns the processed frame.
	Output() renderer.Texture

	// Release frees the output target and the noise texture.
	Release()
}

var _ PostprocessingStage = &postprocessing{}

// NewPostprocessingStage loads the occlusion program and creates the rotation noise.
//
// Parameters:
//   - r: the renderer
//   - options: variadic list of PostprocessingBuilderOption functions
//
// Returns:
//   - PostprocessingStage: the stage
//   - error: an error if the program or the noise texture can not be created
func NewPostprocessingStage(r renderer.Renderer, options ...PostprocessingBuilderOption) (PostprocessingStage, error) {
	s := &postprocessing{
		mu:        &sync.Mutex{},
		r:         r,
		occlusion: true,
		radius:    0.5,
		strength:  1,
		noiseSize: 4,
		noiseSeed: 1,
		out:       output{label: "postprocess", format: renderer.FormatRGBA32F},
	}
	for _, opt := range options {
		opt(s)
	}
	var err error
	if s.program, err = r.Program(shader.ProgramSSAO); err != nil {
		return nil, err
	}
	if s.noise, err = NewNoiseTexture(r, s.noiseSize, s.noiseSeed); err != nil {
		return nil, fmt.Errorf("postprocess noise: %w", err)
	}
	return s, nil
}

func (s *postprocessing) Output() renderer.Texture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.texture()
}

func (s *postprocessing) Process(color renderer.Texture, gbuffer GBuffer, view View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if color == nil || gbuffer.Normal == nil || gbuffer.World == nil {
		return fmt.Errorf("postprocess: %w: missing input", common.ErrResourceMismatch)
	}
	if _, err := s.out.ensure(s.r, color.Width(), color.Height()); err != nil {
		return fmt.Errorf("postprocess: %w", err)
	}
	err := renderer.SetShared(map[string]any{
		"modelView":    view.ModelView,
		"projection":   view.Projection,
		"ndcOffset":    view.NDCOffset,
		"radius":       s.radius,
		"strength":     s.strength,
		"useOcclusion": s.occlusion,
	}, s.program)
	if err != nil {
		return err
	}
	return fullscreen(s.r, s.out.t.fb, "postprocess", s.program, map[int]renderer.Texture{
		shader.SSAOUnitColor:  color,
		shader.SSAOUnitNormal: gbuffer.Normal,
		shader.SSAOUnitNoise:  s.noise,
		shader.SSAOUnitWorld:  gbuffer.World,
	})
}

func (s *postprocessing) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.release()
	s.noise.Release()
}

// PostprocessingBuilderOption is a function that configures the postprocessing stage.
type PostprocessingBuilderOption func(*postprocessing)

// WithOcclusion is an option builder that configures ambient occlusion.
//
// Parameters:
//   - enabled: false copies the frame unchanged
//   - radius: the world space sample radius
//   - strength: the darkening scale
//
// Returns:
//   - PostprocessingBuilderOption: a function that applies the occlusion option to the stage
func WithOcclusion(enabled bool, radius, strength float32) PostprocessingBuilderOption {
	return func(s *postprocessing) {
		s.occlusion = enabled
		s.radius = radius
		s.strength = strength
	}
}

// WithNoise is an option builder that sets the size and seed of the rotation noise texture.
func WithNoise(size int, seed uint64) PostprocessingBuilderOption {
	return func(s *postprocessing) {
		s.noiseSize = size
		s.noiseSeed = seed
	}
}
