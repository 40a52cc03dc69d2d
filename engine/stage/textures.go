// Package stage holds the render passes of the multi-frame pipeline. Each stage owns the
// targets it renders into and hands them to the next stage as borrowed textures that are
// valid until its next Process call.
package stage

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/material"
)

// TextureCache uploads material textures on first use and keeps them for the life of the pipeline.
type TextureCache interface {
	// Texture returns the uploaded texture of a source.
	//
	// Parameters:
	//   - src: the material texture source
	//
	// Returns:
	//   - renderer.Texture: the texture
	//   - error: a decode or upload failure
	Texture(src *material.TextureSource) (renderer.Texture, error)

	// Len returns the number of uploaded textures.
	Len() int

	// Release frees every uploaded texture.
	Release()
}

type textureCache struct {
	mu       *sync.Mutex
	r        renderer.Renderer
	textures map[*material.TextureSource]renderer.Texture
}

var _ TextureCache = &textureCache{}

// NewTextureCache creates an empty cache on r.
func NewTextureCache(r renderer.Renderer) TextureCache {
	return &textureCache{
		mu:       &sync.Mutex{},
		r:        r,
		textures: make(map[*material.TextureSource]renderer.Texture),
	}
}

func (c *textureCache) Texture(src *material.TextureSource) (renderer.Texture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.textures[src]; ok {
		return t, nil
	}
	img, err := src.Decode()
	if err != nil {
		return nil, err
	}
	w, h, pixels := renderer.PixelsFromImage(img)
	t, err := c.r.CreateTexture(renderer.TextureDescriptor{
		Label:  src.Name,
		Width:  w,
		Height: h,
		Format: renderer.FormatRGBA8,
		Filter: renderer.FilterLinear,
		Wrap:   renderer.WrapRepeat,
		Pixels: pixels,
	})
	if err != nil {
		return nil, fmt.Errorf("upload texture %s: %w", src.Name, err)
	}
	c.textures[src] = t
	return t, nil
}

func (c *textureCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.textures)
}

func (c *textureCache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for src, t := range c.textures {
		t.Release()
		delete(c.textures, src)
	}
}

// NewNoiseTexture creates a square texture of uniform random values. The same seed always
// produces the same texels, so it can be tiled over the screen without breaking determinism.
//
// Parameters:
//   - r: the renderer
//   - size: the edge length in texels
//   - seed: the generator seed
//
// Returns:
//   - renderer.Texture: an RGBA8 texture with nearest filtering and repeat wrap
//   - error: an error if size is not positive
func NewNoiseTexture(r renderer.Renderer, size int, seed uint64) (renderer.Texture, error) {
	rng := rand.New(rand.NewPCG(seed, 0x6e6f697365))
	pixels := make([]float32, size*size*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i] = float32(rng.IntN(256)) / 255
		pixels[i+1] = float32(rng.IntN(256)) / 255
		pixels[i+2] = float32(rng.IntN(256)) / 255
		pixels[i+3] = 1
	}
	return r.CreateTexture(renderer.TextureDescriptor{
		Label:  "noise",
		Width:  size,
		Height: size,
		Format: renderer.FormatRGBA8,
		Filter: renderer.FilterNearest,
		Wrap:   renderer.WrapRepeat,
		Pixels: pixels,
	})
}
