package stage

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/logger"
	"github.com/Carmen-Shannon/oxy-mfs/engine/model"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
)

// ShadowClear is the value of shadow map texels no geometry was rendered into.
var ShadowClear = mgl32.Vec4{common.MaxFloat, common.MaxFloat, 1, 0}

const (
	// shadowFovY is the opening angle of the shadow camera.
	shadowFovY = math.Pi / 2

	defaultLightNear  = 0.1
	defaultLightRange = 100
)

type shadowPass struct {
	mu *sync.Mutex
	r  renderer.Renderer

	size       int
	blurRadius int
	textures   TextureCache

	program    renderer.Program
	blur       renderer.Program
	target     *target
	blurTarget *target
	blurBack   renderer.Framebuffer

	viewProjection mgl32.Mat4
	transform      mgl32.Mat4
}

// ShadowPass renders the scene from the light into a variance shadow map together with the
// reflected flux and surface normals of a reflective shadow map.
type ShadowPass interface {
	// Render draws every drawable from the light. An empty drawable set leaves every texel at
	// ShadowClear.
	//
	// Parameters:
	//   - light: the jittered light of this frame
	//   - drawables: the scene batches keyed by material
	//   - materials: the material library
	//
	// Returns:
	//   - mgl32.Mat4: the biased transform from world space into shadow map texture space
	//   - error: ErrMissingMaterial, or a backend failure
	Render(light Light, drawables model.Drawables, materials material.Library) (mgl32.Mat4, error)

	// SetAlpha sets the opacity below which alpha tested texels cast no shadow.
	//
	// Parameters:
	//   - alpha: the threshold in [0, 1]
	//
	// Returns:
	//   - error: renderer.ErrUniform if the program rejects the value
	SetAlpha(alpha float32) error

	// Moments returns the variance map: distance, squared distance, coverage.
	Moments() renderer.Texture

	// Flux returns the light reflected by each shadow map texel.
	Flux() renderer.Texture

	// Normal returns the world normal of each shadow map texel.
	Normal() renderer.Texture

	// Transform returns the biased transform of the last Render.
	Transform() mgl32.Mat4

	// ViewProjection returns the unbiased light view projection of the last Render.
	ViewProjection() mgl32.Mat4

	// Size returns the edge length of the shadow map in texels.
	Size() int

	// Release frees the shadow targets.
	Release()
}

var _ ShadowPass = &shadowPass{}

// NewShadowPass allocates the shadow targets and programs.
//
// Parameters:
//   - r: the renderer
//   - options: variadic list of ShadowPassBuilderOption functions
//
// Returns:
//   - ShadowPass: the pass
//   - error: common.ErrConfiguration for invalid options or incomplete targets
func NewShadowPass(r renderer.Renderer, options ...ShadowPassBuilderOption) (ShadowPass, error) {
	s := &shadowPass{
		mu:             &sync.Mutex{},
		r:              r,
		size:           512,
		viewProjection: mgl32.Ident4(),
		transform:      common.ShadowBias,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.size <= 0 || s.blurRadius < 0 {
		return nil, fmt.Errorf("%w: shadow map size %d, blur radius %d", common.ErrConfiguration, s.size, s.blurRadius)
	}
	if s.textures == nil {
		s.textures = NewTextureCache(r)
	}

	var err error
	if s.program, err = r.Program(shader.ProgramShadowMap); err != nil {
		return nil, err
	}
	s.target, err = newTarget(r, "shadow", s.size, s.size,
		[]renderer.Format{renderer.FormatRGBA32F, renderer.FormatRGB8, renderer.FormatRGBA32F, renderer.FormatDepth32F},
		[]string{"moments", "flux", "normal", "depth"})
	if err != nil {
		return nil, err
	}

	if s.blurRadius > 0 {
		if s.blur, err = r.Program(shader.ProgramShadowBlur); err != nil {
			s.Release()
			return nil, err
		}
		s.blurTarget, err = newTarget(r, "shadowblur", s.size, s.size, []renderer.Format{renderer.FormatRGBA32F}, []string{"moments"})
		if err != nil {
			s.Release()
			return nil, err
		}
		s.blurBack, err = r.CreateFramebuffer(renderer.FramebufferDescriptor{Label: "shadowblur.back", Color: []renderer.Texture{s.Moments()}})
		if err != nil {
			s.Release()
			return nil, err
		}
	}
	logger.For("shadow").Info("shadow pass ready", "size", s.size, "blur", s.blurRadius)
	return s, nil
}

func (s *shadowPass) SetAlpha(alpha float32) error {
	return s.program.SetUniform("alpha", alpha)
}

func (s *shadowPass) Moments() renderer.Texture { return s.target.textures[0] }

func (s *shadowPass) Flux() renderer.Texture { return s.target.textures[1] }

func (s *shadowPass) Normal() renderer.Texture { return s.target.textures[2] }

func (s *shadowPass) Size() int { return s.size }

func (s *shadowPass) Transform() mgl32.Mat4 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transform
}

func (s *shadowPass) ViewProjection() mgl32.Mat4 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewProjection
}

// lightMatrices returns the view projection of the shadow camera.
func lightMatrices(light Light) (projection, view mgl32.Mat4) {
	dir := light.Direction
	if dir.Len() == 0 {
		dir = DefaultLightDirection
	}
	up := lightUp
	if math.Abs(float64(dir.Normalize().Dot(up))) > 0.999 {
		up = mgl32.Vec3{0, 0, 1}
	}
	near, far := light.Near, light.Far
	if near <= 0 {
		near = defaultLightNear
	}
	if far <= near {
		far = near + defaultLightRange
	}
	projection = mgl32.Perspective(shadowFovY, 1, near, far)
	view = mgl32.LookAtV(light.Position, light.Position.Add(dir), up)
	return projection, view
}

func (s *shadowPass) Render(light Light, drawables model.Drawables, materials material.Library) (mgl32.Mat4, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projection, view := lightMatrices(light)
	viewProjection := projection.Mul4(view)
	if err := s.program.SetUniform("lightViewProjection", viewProjection); err != nil {
		return mgl32.Mat4{}, err
	}
	if err := s.program.SetUniform("lightWorldPos", light.Position); err != nil {
		return mgl32.Mat4{}, err
	}
	if err := s.program.SetUniform("lightIntensity", light.Intensity); err != nil {
		return mgl32.Mat4{}, err
	}

	desc := renderer.PassDescriptor{
		Label:        "shadow",
		ClearColors:  []mgl32.Vec4{ShadowClear, {}, {}},
		DepthCompare: renderer.CompareLess,
	}
	err := runPass(s.r, s.target.fb, desc, func(p renderer.Pass) error {
		if err := p.SetProgram(s.program); err != nil {
			return err
		}
		for _, name := range drawables.Materials() {
			m, err := lookupMaterial(materials, name)
			if err != nil {
				return err
			}
			if err := s.bindMaterial(p, m); err != nil {
				return err
			}
			p.SetCullMode(renderer.CullNone)
			for _, mesh := range drawables[name] {
				if err := p.Draw(mesh); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return mgl32.Mat4{}, fmt.Errorf("shadow pass: %w", err)
	}

	if s.blurRadius > 0 {
		if err := s.blurMoments(); err != nil {
			return mgl32.Mat4{}, fmt.Errorf("shadow blur: %w", err)
		}
	}

	s.viewProjection = viewProjection
	s.transform = common.ShadowBias.Mul4(viewProjection)
	return s.transform, nil
}

// bindMaterial sets the material uniforms of the shadow program and binds the textures the
// material has. Only diffuse and opacity matter for shadows.
func (s *shadowPass) bindMaterial(p renderer.Pass, m material.Material) error {
	err := renderer.SetShared(map[string]any{
		"diffuseColor":      m.DiffuseColor(),
		"useDiffuseTexture": m.HasTexture(material.TextureDiffuse),
		"useOpacityTexture": m.HasTexture(material.TextureOpacity),
	}, s.program)
	if err != nil {
		return err
	}
	for _, tt := range []material.TextureType{material.TextureDiffuse, material.TextureOpacity} {
		if !m.HasTexture(tt) {
			continue
		}
		src, err := m.Texture(tt)
		if err != nil {
			return err
		}
		tex, err := s.textures.Texture(src)
		if err != nil {
			return err
		}
		if err := p.BindTexture(textureUnit(tt), tex); err != nil {
			return err
		}
	}
	return nil
}

// blurMoments runs the separable box filter: horizontal into the scratch target, vertical back.
func (s *shadowPass) blurMoments() error {
	if err := s.blur.SetUniform("radius", int32(s.blurRadius)); err != nil {
		return err
	}
	if err := s.blur.SetUniform("direction", mgl32.Vec2{1, 0}); err != nil {
		return err
	}
	if err := fullscreen(s.r, s.blurTarget.fb, "shadowblur.h", s.blur, map[int]renderer.Texture{0: s.Moments()}); err != nil {
		return err
	}
	if err := s.blur.SetUniform("direction", mgl32.Vec2{0, 1}); err != nil {
		return err
	}
	return fullscreen(s.r, s.blurBack, "shadowblur.v", s.blur, map[int]renderer.Texture{0: s.blurTarget.textures[0]})
}

func (s *shadowPass) Release() {
	if s.target != nil {
		s.target.release()
	}
	if s.blurTarget != nil {
		s.blurTarget.release()
	}
}

// textureUnit returns the sampler unit of a material texture slot.
func textureUnit(t material.TextureType) int {
	switch t {
	case material.TextureSpecular:
		return shader.UnitSpecular
	case material.TextureEmissive:
		return shader.UnitEmissive
	case material.TextureOpacity:
		return shader.UnitOpacity
	case material.TextureBump:
		return shader.UnitBump
	default:
		return shader.UnitDiffuse
	}
}
