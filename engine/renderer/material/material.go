package material

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-mfs/common"
)

// TextureType identifies one optional texture slot of a material.
type TextureType int

const (
	TextureDiffuse TextureType = iota
	TextureSpecular
	TextureEmissive
	TextureOpacity
	TextureBump
)

// TextureTypes lists every slot in binding order.
var TextureTypes = []TextureType{TextureDiffuse, TextureSpecular, TextureEmissive, TextureOpacity, TextureBump}

func (t TextureType) String() string {
	switch t {
	case TextureDiffuse:
		return "diffuse"
	case TextureSpecular:
		return "specular"
	case TextureEmissive:
		return "emissive"
	case TextureOpacity:
		return "opacity"
	case TextureBump:
		return "bump"
	}
	return fmt.Sprintf("texture(%d)", int(t))
}

// material is the implementation of the Material interface.
type material struct {
	name           string
	diffuseColor   mgl32.Vec3
	specularColor  mgl32.Vec3
	emissiveColor  mgl32.Vec3
	specularFactor float32
	textures       map[TextureType]*TextureSource
}

// Material describes the surface of one group of drawables: constant colors, a specular
// exponent and up to five optional textures.
//
// Texture presence must be checked with HasTexture before a texture is bound. Requesting an
// absent texture through Texture is reported as a resource mismatch.
type Material interface {
	// Name retrieves the material identifier. Drawables are grouped by this key.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// DiffuseColor retrieves the diffuse color used when no diffuse texture is present.
	//
	// Returns:
	//   - mgl32.Vec3: the linear RGB diffuse color
	DiffuseColor() mgl32.Vec3

	// SpecularColor retrieves the specular color used when no specular texture is present.
	//
	// Returns:
	//   - mgl32.Vec3: the linear RGB specular color
	SpecularColor() mgl32.Vec3

	// EmissiveColor retrieves the emitted color used when no emissive texture is present.
	//
	// Returns:
	//   - mgl32.Vec3: the linear RGB emissive color
	EmissiveColor() mgl32.Vec3

	// SpecularFactor retrieves the Blinn-Phong exponent.
	//
	// Returns:
	//   - float32: the specular exponent
	SpecularFactor() float32

	// HasTexture reports whether the texture slot is populated.
	//
	// Parameters:
	//   - t: the texture slot
	//
	// Returns:
	//   - bool: true if a texture source is present
	HasTexture(t TextureType) bool

	// Texture retrieves a texture source.
	//
	// Parameters:
	//   - t: the texture slot
	//
	// Returns:
	//   - *TextureSource: the source
	//   - error: common.ErrResourceMismatch if the slot is empty
	Texture(t TextureType) (*TextureSource, error)

	// PresentTextures lists the populated slots in binding order.
	//
	// Returns:
	//   - []TextureType: the populated slots
	PresentTextures() []TextureType

	// AlphaTested reports whether the material has an opacity texture. Such geometry may be
	// double-sided and is drawn without back-face culling.
	//
	// Returns:
	//   - bool: true if an opacity texture is present
	AlphaTested() bool
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
//
// Parameters:
//   - name: the material identifier
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(name string, options ...MaterialBuilderOption) Material {
	m := &material{
		name:           name,
		diffuseColor:   mgl32.Vec3{0.8, 0.8, 0.8},
		specularColor:  mgl32.Vec3{0, 0, 0},
		specularFactor: 1,
		textures:       make(map[TextureType]*TextureSource),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) DiffuseColor() mgl32.Vec3 {
	return m.diffuseColor
}

func (m *material) SpecularColor() mgl32.Vec3 {
	return m.specularColor
}

func (m *material) EmissiveColor() mgl32.Vec3 {
	return m.emissiveColor
}

func (m *material) SpecularFactor() float32 {
	return m.specularFactor
}

func (m *material) HasTexture(t TextureType) bool {
	return m.textures[t] != nil
}

func (m *material) Texture(t TextureType) (*TextureSource, error) {
	src := m.textures[t]
	if src == nil {
		return nil, fmt.Errorf("%w: material %q has no %s texture", common.ErrResourceMismatch, m.name, t)
	}
	return src, nil
}

func (m *material) PresentTextures() []TextureType {
	out := make([]TextureType, 0, len(m.textures))
	for t, src := range m.textures {
		if src != nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *material) AlphaTested() bool {
	return m.HasTexture(TextureOpacity)
}

// Library maps material names to materials, as handed over by a scene loader.
type Library map[string]Material

// Add inserts materials keyed by their names.
func (l Library) Add(materials ...Material) Library {
	for _, m := range materials {
		l[m.Name()] = m
	}
	return l
}
