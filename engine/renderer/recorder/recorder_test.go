package recorder

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
)

func TestRecorderForwardsAndRecords(t *testing.T) {
	inner, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithSize(2, 2), renderer.WithWorkers(1))
	require.NoError(t, err)
	t.Cleanup(inner.Release)
	r := New(inner)

	src, err := r.CreateTexture(renderer.TextureDescriptor{Label: "src", Width: 2, Height: 2, Format: renderer.FormatRGBA32F,
		Pixels: []float32{1, 0, 0, 1, 1, 0, 0, 1, 1, 0, 0, 1, 1, 0, 0, 1}})
	require.NoError(t, err)
	blit, err := r.Program(shader.ProgramBlit)
	require.NoError(t, err)
	require.NoError(t, blit.SetUniform("exposure", float32(1)))

	p, err := r.BeginPass(r.Screen(), renderer.PassDescriptor{Label: "blit"})
	require.NoError(t, err)
	require.NoError(t, p.SetProgram(blit))
	require.NoError(t, p.BindTexture(0, src))
	p.SetCullMode(renderer.CullNone)
	require.NoError(t, p.DrawFullscreen())
	require.NoError(t, p.End())

	kinds := []CallKind{}
	for _, c := range r.Calls() {
		kinds = append(kinds, c.Kind)
		assert.Equal(t, "blit", c.Pass)
	}
	assert.Equal(t, []CallKind{CallBeginPass, CallSetProgram, CallBindTexture, CallSetCullMode, CallDrawFullscreen, CallEnd}, kinds)
	assert.Equal(t, 1, r.Count(func(c Call) bool { return c.Kind == CallBindTexture && c.Texture == "src" && c.Program == shader.ProgramBlit }))

	pixels, err := r.ReadPixels(r.Screen().Color()[0])
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, mgl32.Vec4{pixels[0], pixels[1], pixels[2], pixels[3]})

	r.Reset()
	assert.Empty(t, r.Calls())
}
