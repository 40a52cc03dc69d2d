package renderer

import (
	"github.com/Carmen-Shannon/oxy-mfs/engine/model"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// RendererBackendType identifies the backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeSoftware selects the CPU rasterizer. It needs no GPU and no window, which
	// makes it the backend of tests and offline rendering.
	BackendTypeSoftware RendererBackendType = iota

	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU
)

// String returns the name of the backend type.
func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	default:
		return "software"
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// Uniforms is a snapshot of program values handed to a backend with each draw.
type Uniforms map[string]any

// Float returns the named value as float32, or zero.
func (u Uniforms) Float(name string) float32 {
	switch v := u[name].(type) {
	case float32:
		return v
	case float64:
		return float32(v)
	}
	return 0
}

// Int returns the named value as int32, or zero. Booleans map to 0 and 1.
func (u Uniforms) Int(name string) int32 {
	switch v := u[name].(type) {
	case int:
		return int32(v)
	case int32:
		return v
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// Bool returns the named value as a boolean.
func (u Uniforms) Bool(name string) bool {
	return u.Int(name) != 0
}

// Vec2 returns the named value, or the zero vector.
func (u Uniforms) Vec2(name string) mgl32.Vec2 {
	v, _ := u[name].(mgl32.Vec2)
	return v
}

// Vec3 returns the named value, or the zero vector.
func (u Uniforms) Vec3(name string) mgl32.Vec3 {
	v, _ := u[name].(mgl32.Vec3)
	return v
}

// Vec4 returns the named value, or the zero vector.
func (u Uniforms) Vec4(name string) mgl32.Vec4 {
	v, _ := u[name].(mgl32.Vec4)
	return v
}

// Mat4 returns the named value, or the zero matrix.
func (u Uniforms) Mat4(name string) mgl32.Mat4 {
	v, _ := u[name].(mgl32.Mat4)
	return v
}

// drawCall is a fully validated draw handed to a backend pass.
type drawCall struct {
	program  *program
	uniforms Uniforms
	textures [shader.MaxUnits]Texture
	cull     CullMode

	// mesh is nil for fullscreen draws.
	mesh *model.Mesh
}

// backendProgram is the backend half of a Program.
type backendProgram interface {
	release()
}

// backendPass records or executes draws into one framebuffer.
type backendPass interface {
	draw(call drawCall) error
	end() error
}

// RendererBackend is the primitive device interface behind the Renderer. The Renderer does
// all state validation, so backends only translate validated calls.
type RendererBackend interface {
	// Type returns the backend's type.
	Type() RendererBackendType

	// CreateTexture allocates a texture. The descriptor has already been validated.
	//
	// Parameters:
	//   - desc: the texture descriptor
	//
	// Returns:
	//   - Texture: the created texture
	//   - error: an error if allocation fails
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// CreateProgram compiles a program.
	//
	// Parameters:
	//   - desc: the program declaration
	//
	// Returns:
	//   - backendProgram: the compiled program
	//   - error: an error if compilation fails or the backend has no implementation for the key
	CreateProgram(desc shader.Descriptor) (backendProgram, error)

	// Screen returns the texture presented to the display.
	Screen() Texture

	// ConfigureSurface resizes the screen texture and any surface behind it.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// BeginPass opens a pass on a validated framebuffer.
	//
	// Parameters:
	//   - fb: the target framebuffer
	//   - desc: load and depth state of the pass
	//
	// Returns:
	//   - backendPass: the open pass
	//   - error: an error if the pass could not be started
	BeginPass(fb Framebuffer, desc PassDescriptor) (backendPass, error)

	// ReadPixels returns four floats per texel of t, row 0 at the bottom. Depth textures
	// return the depth in the first channel.
	//
	// Parameters:
	//   - t: the texture to read
	//
	// Returns:
	//   - []float32: the texel values
	//   - error: an error if the texture belongs to another backend or readback fails
	ReadPixels(t Texture) ([]float32, error)

	// Present shows the screen texture.
	//
	// Returns:
	//   - error: an error if presentation fails
	Present() error

	// Release frees every backend resource.
	Release()
}
