package stage

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/camera"
	"github.com/Carmen-Shannon/oxy-mfs/engine/logger"
	"github.com/Carmen-Shannon/oxy-mfs/engine/model"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
)

// Mode selects the variant of the geometry pass.
type Mode int

const (
	// ModeDirect shades in the geometry pass and writes color, normal and world position.
	ModeDirect Mode = iota

	// ModeDeferred writes the material attributes for DeferredShadingStage.
	ModeDeferred
)

// String returns the name of the mode.
func (m Mode) String() string {
	if m == ModeDeferred {
		return "deferred"
	}
	return "direct"
}

// PrepassMode selects when the depth only prepass runs.
type PrepassMode int

const (
	// PrepassAuto runs the prepass once the opaque triangle count reaches the threshold.
	PrepassAuto PrepassMode = iota
	PrepassOn
	PrepassOff
)

// DefaultPrepassThreshold is the opaque triangle count from which PrepassAuto pre-draws depth.
const DefaultPrepassThreshold = 65536

// WorldClear marks G-buffer texels no surface was drawn into. Its w component is zero.
var WorldClear = mgl32.Vec4{common.MaxFloat, common.MaxFloat, common.MaxFloat, 0}

// GBuffer holds the targets of the geometry pass. Textures a mode does not write are nil.
// The textures are reallocated on resize and must not be kept across frames.
type GBuffer struct {
	// Color is the shaded color of ModeDirect.
	Color renderer.Texture

	// Diffuse, Specular, Emissive and FaceNormal are written by ModeDeferred. Specular
	// carries shininess / 256 in alpha.
	Diffuse    renderer.Texture
	Specular   renderer.Texture
	Emissive   renderer.Texture
	FaceNormal renderer.Texture

	Normal renderer.Texture
	World  renderer.Texture
	Depth  renderer.Texture

	Width  int
	Height int
}

// GeometryInput is everything the geometry pass reads in one frame.
type GeometryInput struct {
	// Viewport is the snapshot taken at the start of the frame. The targets are reallocated
	// when its revision differs from the one of the previous Process.
	Viewport camera.ViewportState
	View     View
	Light    Light

	// ShadowTransform maps world space into the shadow map returned by ShadowPass.Render.
	ShadowTransform mgl32.Mat4
	Shadow          renderer.Texture

	Drawables model.Drawables
	Materials material.Library

	GroundColor  mgl32.Vec3
	GroundHeight float32
	BumpType     material.BumpType
	Alpha        float32
}

type geometryPass struct {
	mu *sync.Mutex
	r  renderer.Renderer

	mode       Mode
	prepass    PrepassMode
	threshold  int
	drawGround bool
	groundSize float32
	textures   TextureCache

	surface renderer.Program
	ground  renderer.Program
	zonly   renderer.Program

	target  *target
	depthFB renderer.Framebuffer
	seen    uint64

	groundMesh   *model.Mesh
	groundHeight float32

	cull        bool
	frustum     common.Frustum
	usedPrepass bool
	culled      int
}

// GeometryPass rasterizes the scene from the jittered camera into the G-buffer.
type GeometryPass interface {
	// Process reallocates the targets when the viewport changed, optionally pre-draws depth and
	// draws every material batch followed by the ground plane.
	//
	// Parameters:
	//   - in: the inputs of the frame
	//
	// Returns:
	//   - error: ErrMissingMaterial, renderer.ErrIncompleteFramebuffer after a failed resize,
	//     or a backend failure
	Process(in GeometryInput) error

	// GBuffer returns the targets written by the last Process.
	GBuffer() GBuffer

	// Mode returns the configured variant.
	Mode() Mode

	// UsedPrepass reports whether the last Process ran the depth prepass.
	UsedPrepass() bool

	// Culled returns the number of meshes the last Process skipped because their bounds were
	// outside the view frustum.
	Culled() int

	// Release frees the targets.
	Release()
}

var _ GeometryPass = &geometryPass{}

// NewGeometryPass loads the programs of the configured mode. Targets are allocated by the first Process.
//
// Parameters:
//   - r: the renderer
//   - options: variadic list of GeometryPassBuilderOption functions
//
// Returns:
//   - GeometryPass: the pass
//   - error: an error if a program can not be created
func NewGeometryPass(r renderer.Renderer, options ...GeometryPassBuilderOption) (GeometryPass, error) {
	g := &geometryPass{
		mu:         &sync.Mutex{},
		r:          r,
		threshold:  DefaultPrepassThreshold,
		drawGround: true,
		cull:       true,
		groundSize: 200,
	}
	for _, opt := range options {
		opt(g)
	}
	if g.textures == nil {
		g.textures = NewTextureCache(r)
	}

	surfaceKey, groundKey := shader.ProgramModel, shader.ProgramGround
	if g.mode == ModeDeferred {
		surfaceKey, groundKey = shader.ProgramGBuffer, shader.ProgramGBufferGround
	}
	var err error
	if g.surface, err = r.Program(surfaceKey); err != nil {
		return nil, err
	}
	if g.ground, err = r.Program(groundKey); err != nil {
		return nil, err
	}
	if g.zonly, err = r.Program(shader.ProgramZOnly); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *geometryPass) Mode() Mode {
	return g.mode
}

func (g *geometryPass) UsedPrepass() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.usedPrepass
}

func (g *geometryPass) Culled() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.culled
}

func (g *geometryPass) GBuffer() GBuffer {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.target == nil {
		return GBuffer{}
	}
	t := g.target.textures
	b := GBuffer{Width: t[0].Width(), Height: t[0].Height()}
	if g.mode == ModeDeferred {
		b.Diffuse, b.Specular, b.Emissive, b.FaceNormal = t[0], t[1], t[2], t[3]
		b.Normal, b.World, b.Depth = t[4], t[5], t[6]
		return b
	}
	b.Color, b.Normal, b.World, b.Depth = t[0], t[1], t[2], t[3]
	return b
}

// resize allocates the targets at the viewport size.
func (g *geometryPass) resize(width, height int) error {
	if g.target != nil {
		g.target.release()
		g.target = nil
	}
	formats := []renderer.Format{renderer.FormatRGB8, renderer.FormatRGBA32F, renderer.FormatRGBA32F, renderer.FormatDepth32F}
	names := []string{"color", "normal", "world", "depth"}
	if g.mode == ModeDeferred {
		formats = []renderer.Format{
			renderer.FormatRGB8, renderer.FormatRGBA8, renderer.FormatRGB8, renderer.FormatRGBA32F,
			renderer.FormatRGBA32F, renderer.FormatRGBA32F, renderer.FormatDepth32F,
		}
		names = []string{"diffuse", "specular", "emissive", "face", "normal", "world", "depth"}
	}
	t, err := newTarget(g.r, "gbuffer", width, height, formats, names)
	if err != nil {
		return err
	}
	depth := t.textures[len(t.textures)-1]
	g.depthFB, err = g.r.CreateFramebuffer(renderer.FramebufferDescriptor{Label: "gbuffer.prepass", Depth: depth})
	if err != nil {
		t.release()
		return err
	}
	g.target = t
	logger.For("geometry").Info("g-buffer allocated", "mode", g.mode.String(), "width", width, "height", height)
	return nil
}

func (g *geometryPass) clearColors(groundColor mgl32.Vec3) []mgl32.Vec4 {
	if g.mode == ModeDeferred {
		return []mgl32.Vec4{{}, {}, {}, {}, {}, WorldClear}
	}
	return []mgl32.Vec4{groundColor.Vec4(1), {}, WorldClear}
}

// groundPlane returns the ground mesh at height, rebuilding it when the height changed.
func (g *geometryPass) groundPlane(height float32) *model.Mesh {
	if g.groundMesh == nil || g.groundHeight != height {
		g.groundMesh = model.NewPlane("ground", mgl32.Vec3{0, height, 0}, g.groundSize, 1)
		g.groundHeight = height
	}
	return g.groundMesh
}

func (g *geometryPass) opaqueTriangles(in GeometryInput) int {
	n := 0
	for name, meshes := range in.Drawables {
		if m, ok := in.Materials[name]; ok && m.AlphaTested() {
			continue
		}
		for _, mesh := range meshes {
			n += mesh.TriangleCount()
		}
	}
	return n
}

func (g *geometryPass) wantPrepass(in GeometryInput) bool {
	switch g.prepass {
	case PrepassOn:
		return true
	case PrepassOff:
		return false
	}
	return g.opaqueTriangles(in) >= g.threshold
}

func (g *geometryPass) Process(in GeometryInput) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.target == nil || in.Viewport.Revision != g.seen {
		g.seen = in.Viewport.Revision
		if err := g.resize(in.Viewport.Width, in.Viewport.Height); err != nil {
			return fmt.Errorf("geometry pass: %w", err)
		}
	}

	frame := in.View.uniforms()
	frame["biasedShadowTransform"] = in.ShadowTransform
	frame["worldLightPos"] = in.Light.Position
	frame["lightIntensity"] = in.Light.Intensity
	frame["groundPlaneColor"] = in.GroundColor
	frame["alpha"] = in.Alpha
	if err := renderer.SetShared(frame, g.surface, g.ground, g.zonly); err != nil {
		return err
	}

	g.frustum = common.ExtractFrustum(in.View.Clip())
	g.culled = 0

	g.usedPrepass = g.wantPrepass(in)
	if g.usedPrepass {
		if err := g.depthPrepass(in); err != nil {
			return fmt.Errorf("geometry prepass: %w", err)
		}
	}

	desc := renderer.PassDescriptor{
		Label:        "geometry",
		ClearColors:  g.clearColors(in.GroundColor),
		LoadDepth:    g.usedPrepass,
		DepthCompare: renderer.CompareLessEqual,
	}
	err := runPass(g.r, g.target.fb, desc, func(p renderer.Pass) error {
		if err := p.SetProgram(g.surface); err != nil {
			return err
		}
		if err := p.BindTexture(shader.UnitShadow, in.Shadow); err != nil {
			return err
		}
		for _, name := range in.Drawables.Materials() {
			m, err := lookupMaterial(in.Materials, name)
			if err != nil {
				return err
			}
			if err := g.bindMaterial(p, m, in.BumpType); err != nil {
				return err
			}
			p.SetCullMode(cullFor(m))
			for _, mesh := range in.Drawables[name] {
				if !g.visible(mesh) {
					g.culled++
					continue
				}
				if err := p.Draw(mesh); err != nil {
					return err
				}
			}
		}
		if !g.drawGround {
			return nil
		}
		if err := p.SetProgram(g.ground); err != nil {
			return err
		}
		if err := p.BindTexture(shader.UnitShadow, in.Shadow); err != nil {
			return err
		}
		p.SetCullMode(renderer.CullBack)
		return p.Draw(g.groundPlane(in.GroundHeight))
	})
	if err != nil {
		return fmt.Errorf("geometry pass: %w", err)
	}
	return nil
}

// visible reports whether the mesh bounds touch the frustum of the jittered view.
func (g *geometryPass) visible(mesh *model.Mesh) bool {
	if !g.cull {
		return true
	}
	lo, hi := mesh.Bounds()
	return g.frustum.IntersectsBox(lo, hi)
}

// depthPrepass draws the opaque batches into the depth target only.
func (g *geometryPass) depthPrepass(in GeometryInput) error {
	desc := renderer.PassDescriptor{Label: "geometry.prepass", DepthCompare: renderer.CompareLess}
	return runPass(g.r, g.depthFB, desc, func(p renderer.Pass) error {
		if err := p.SetProgram(g.zonly); err != nil {
			return err
		}
		p.SetCullMode(renderer.CullBack)
		for _, name := range in.Drawables.Materials() {
			m, err := lookupMaterial(in.Materials, name)
			if err != nil {
				return err
			}
			if m.AlphaTested() {
				continue
			}
			for _, mesh := range in.Drawables[name] {
				if !g.visible(mesh) {
					continue
				}
				if err := p.Draw(mesh); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// bindMaterial sets the material uniforms and binds only the textures the material has.
func (g *geometryPass) bindMaterial(p renderer.Pass, m material.Material, bump material.BumpType) error {
	if !m.HasTexture(material.TextureBump) {
		bump = material.BumpNone
	}
	err := renderer.SetShared(map[string]any{
		"diffuseColor":       m.DiffuseColor(),
		"specularColor":      m.SpecularColor(),
		"emissiveColor":      m.EmissiveColor(),
		"shininess":          m.SpecularFactor(),
		"bumpType":           int32(bump),
		"useDiffuseTexture":  m.HasTexture(material.TextureDiffuse),
		"useSpecularTexture": m.HasTexture(material.TextureSpecular),
		"useEmissiveTexture": m.HasTexture(material.TextureEmissive),
		"useOpacityTexture":  m.HasTexture(material.TextureOpacity),
	}, g.surface)
	if err != nil {
		return err
	}
	for _, tt := range m.PresentTextures() {
		src, err := m.Texture(tt)
		if err != nil {
			return err
		}
		tex, err := g.textures.Texture(src)
		if err != nil {
			return err
		}
		if err := p.BindTexture(textureUnit(tt), tex); err != nil {
			return err
		}
	}
	return nil
}

func (g *geometryPass) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.target != nil {
		g.target.release()
		g.target = nil
	}
}
