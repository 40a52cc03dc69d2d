package stage

import (
	"image"
	"image/color"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/material"
)

func newTestRenderer(t *testing.T, w, h int) renderer.Renderer {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithSize(w, h), renderer.WithWorkers(2))
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

// constantTexture creates an RGBA32F texture with every texel set to c.
func constantTexture(t *testing.T, r renderer.Renderer, w, h int, c mgl32.Vec4) renderer.Texture {
	t.Helper()
	pixels := make([]float32, 0, w*h*4)
	for range w * h {
		pixels = append(pixels, c[:]...)
	}
	tex, err := r.CreateTexture(renderer.TextureDescriptor{
		Label: "constant", Width: w, Height: h, Format: renderer.FormatRGBA32F,
		Filter: renderer.FilterNearest, Wrap: renderer.WrapClamp, Pixels: pixels,
	})
	require.NoError(t, err)
	return tex
}

func readTexels(t *testing.T, r renderer.Renderer, tex renderer.Texture) []mgl32.Vec4 {
	t.Helper()
	pixels, err := r.ReadPixels(tex)
	require.NoError(t, err)
	out := make([]mgl32.Vec4, len(pixels)/4)
	for i := range out {
		out[i] = mgl32.Vec4{pixels[i*4], pixels[i*4+1], pixels[i*4+2], pixels[i*4+3]}
	}
	return out
}

func TestCullForOpacityTexture(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{A: 255})
	leaf := material.NewMaterial("leaf", material.WithTexture(material.TextureOpacity, material.ImageSource("mask", img)))
	stone := material.NewMaterial("stone", material.WithTexture(material.TextureDiffuse, material.ImageSource("rock", img)))

	assert.Equal(t, renderer.CullNone, cullFor(leaf))
	assert.Equal(t, renderer.CullBack, cullFor(stone))
}

func TestLookupMaterial(t *testing.T) {
	lib := material.Library{}.Add(material.NewMaterial("stone"))
	m, err := lookupMaterial(lib, "stone")
	require.NoError(t, err)
	assert.Equal(t, "stone", m.Name())

	_, err = lookupMaterial(lib, "moss")
	assert.ErrorIs(t, err, ErrMissingMaterial)
}

func TestTextureCacheUploadsOnce(t *testing.T) {
	r := newTestRenderer(t, 2, 2)
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{G: 255, A: 255})
	src := material.ImageSource("pair", img)

	c := NewTextureCache(r)
	a, err := c.Texture(src)
	require.NoError(t, err)
	b, err := c.Texture(src)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "pair", a.Label())
	assert.Equal(t, []mgl32.Vec4{{1, 0, 0, 1}, {0, 1, 0, 1}}, readTexels(t, r, a))

	c.Release()
	assert.Zero(t, c.Len())
}

func TestNoiseTextureIsDeterministic(t *testing.T) {
	r := newTestRenderer(t, 2, 2)
	a, err := NewNoiseTexture(r, 4, 7)
	require.NoError(t, err)
	b, err := NewNoiseTexture(r, 4, 7)
	require.NoError(t, err)
	c, err := NewNoiseTexture(r, 4, 8)
	require.NoError(t, err)

	assert.Equal(t, readTexels(t, r, a), readTexels(t, r, b))
	assert.NotEqual(t, readTexels(t, r, a), readTexels(t, r, c))

	_, err = NewNoiseTexture(r, 0, 1)
	assert.Error(t, err)
}
