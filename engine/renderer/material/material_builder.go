package material

import (
	"github.com/go-gl/mathgl/mgl32"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithDiffuseColor is an option builder that sets the constant diffuse color.
//
// Parameters:
//   - c: the linear RGB color
//
// Returns:
//   - MaterialBuilderOption: a function that applies the diffuse color option to a material
func WithDiffuseColor(c mgl32.Vec3) MaterialBuilderOption {
	return func(m *material) {
		m.diffuseColor = c
	}
}

// WithSpecularColor is an option builder that sets the constant specular color.
//
// Parameters:
//   - c: the linear RGB color
//
// Returns:
//   - MaterialBuilderOption: a function that applies the specular color option to a material
func WithSpecularColor(c mgl32.Vec3) MaterialBuilderOption {
	return func(m *material) {
		m.specularColor = c
	}
}

// WithEmissiveColor is an option builder that sets the constant emitted color.
func WithEmissiveColor(c mgl32.Vec3) MaterialBuilderOption {
	return func(m *material) {
		m.emissiveColor = c
	}
}

// WithSpecularFactor is an option builder that sets the Blinn-Phong exponent.
//
// Parameters:
//   - f: the exponent, values below 1 are raised to 1
//
// Returns:
//   - MaterialBuilderOption: a function that applies the specular factor to a material
func WithSpecularFactor(f float32) MaterialBuilderOption {
	return func(m *material) {
		m.specularFactor = max(f, 1)
	}
}

// WithTexture is an option builder that populates a texture slot. A nil source leaves the slot empty.
//
// Parameters:
//   - t: the texture slot
//   - src: the texture source
//
// Returns:
//   - MaterialBuilderOption: a function that sets the texture on a material
func WithTexture(t TextureType, src *TextureSource) MaterialBuilderOption {
	return func(m *material) {
		if src == nil {
			delete(m.textures, t)
			return
		}
		m.textures[t] = src
	}
}
