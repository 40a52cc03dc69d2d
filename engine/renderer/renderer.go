package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-mfs/engine/logger"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	programCache map[string]*program
	screen       *framebuffer
	active       *pass

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	width                int
	height               int
	workers              int
	surface              SurfaceSource
	forceFallbackAdapter bool
	presentMode          PresentMode
}

// Renderer defines the interface for the rendering system.
//
// This is a high-level API over a RendererBackend. It owns a cache of programs keyed by
// registry name, validates framebuffers and enforces that exactly one pass is open at a time.
type Renderer interface {
	// Type returns the type of the backend in use.
	Type() RendererBackendType

	// CreateTexture creates a texture on the backend.
	//
	// Parameters:
	//   - desc: the texture descriptor
	//
	// Returns:
	//   - Texture: the created texture
	//   - error: ErrConfiguration for invalid descriptors, or a backend failure
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// CreateFramebuffer validates attachments and groups them into a render target.
	//
	// Parameters:
	//   - desc: the attachments
	//
	// Returns:
	//   - Framebuffer: the validated framebuffer
	//   - error: ErrIncompleteFramebuffer when attachments are missing or mismatched
	CreateFramebuffer(desc FramebufferDescriptor) (Framebuffer, error)

	// Program returns the cached program for key, compiling it on first use.
	//
	// Parameters:
	//   - key: a registered program key
	//
	// Returns:
	//   - Program: the program
	//   - error: ErrUnknownProgram for unregistered keys, or a compile failure
	Program(key string) (Program, error)

	// Screen returns the framebuffer shown by Present.
	Screen() Framebuffer

	// Resize changes the size of the screen framebuffer.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// BeginPass opens a pass on fb. Only one pass may be open at a time. Clears from desc are
	// applied when the pass begins.
	//
	// Parameters:
	//   - fb: a framebuffer created by this renderer, or Screen()
	//   - desc: load and depth state of the pass
	//
	// Returns:
	//   - Pass: the open pass
	//   - error: ErrPassActive when a pass is already open
	BeginPass(fb Framebuffer, desc PassDescriptor) (Pass, error)

	// ReadPixels reads back a texture with four floats per texel, row 0 at the bottom.
	//
	// Parameters:
	//   - t: the texture to read
	//
	// Returns:
	//   - []float32: the texel values
	//   - error: ErrPassActive while a pass is open, or a readback failure
	ReadPixels(t Texture) ([]float32, error)

	// Present shows the screen framebuffer.
	//
	// Returns:
	//   - error: ErrPassActive while a pass is open, or a presentation failure
	Present() error

	// Release frees all programs and backend resources.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer instance with the specified backend type.
//
// Parameters:
//   - backendType: the type of rendering backend to use
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
//   - error: an error if the backend could not be initialized
func NewRenderer(backendType RendererBackendType, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:           &sync.Mutex{},
		programCache: make(map[string]*program),
		backendType:  backendType,
		width:        1,
		height:       1,
		presentMode:  PresentModeVSync,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	var err error
	switch backendType {
	case BackendTypeWGPU:
		r.backend, err = newWGPURendererBackend(r.surface, r.forceFallbackAdapter, r.presentMode)
	default:
		r.backend = newSoftwareRendererBackend(r.workers)
	}
	if err != nil {
		return nil, fmt.Errorf("renderer: %s backend: %w", backendType, err)
	}

	r.Resize(r.width, r.height)
	logger.For("renderer").Info("renderer ready", "backend", backendType.String(), "width", r.width, "height", r.height)
	return r, nil
}

func (r *renderer) Type() RendererBackendType {
	return r.backendType
}

func (r *renderer) CreateTexture(desc TextureDescriptor) (Texture, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return r.backend.CreateTexture(desc)
}

func (r *renderer) CreateFramebuffer(desc FramebufferDescriptor) (Framebuffer, error) {
	fb, err := newFramebuffer(desc)
	if err != nil {
		return nil, err
	}
	for _, t := range fb.color {
		if t == r.backend.Screen() {
			return nil, fmt.Errorf("framebuffer %q: the screen texture can only be used through Screen(): %w", desc.Label, ErrIncompleteFramebuffer)
		}
	}
	return fb, nil
}

func (r *renderer) Program(key string) (Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.programCache[key]; ok {
		return p, nil
	}
	desc, err := shader.Lookup(key)
	if err != nil {
		return nil, err
	}
	impl, err := r.backend.CreateProgram(desc)
	if err != nil {
		return nil, fmt.Errorf("renderer: program %s: %w", key, err)
	}
	p := newProgram(desc, impl)
	r.programCache[key] = p
	return p, nil
}

func (r *renderer) Screen() Framebuffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.screen
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.width, r.height = max(width, 1), max(height, 1)
	r.backend.ConfigureSurface(r.width, r.height)
	screen := r.backend.Screen()
	r.screen = &framebuffer{
		label:  "screen",
		color:  []Texture{screen},
		width:  screen.Width(),
		height: screen.Height(),
	}
}

func (r *renderer) BeginPass(fb Framebuffer, desc PassDescriptor) (Pass, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, fmt.Errorf("renderer: pass %q begun while %q is open: %w", desc.Label, r.active.label, ErrPassActive)
	}
	if fb == nil {
		return nil, fmt.Errorf("renderer: pass %q has no framebuffer: %w", desc.Label, ErrIncompleteFramebuffer)
	}
	impl, err := r.backend.BeginPass(fb, desc)
	if err != nil {
		return nil, fmt.Errorf("renderer: pass %q: %w", desc.Label, err)
	}
	p := &pass{r: r, label: desc.Label, fb: fb, impl: impl, cull: CullNone}
	r.active = p
	return p, nil
}

// endPass clears the active pass once it has ended.
func (r *renderer) endPass(p *pass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == p {
		r.active = nil
	}
}

func (r *renderer) ReadPixels(t Texture) ([]float32, error) {
	r.mu.Lock()
	active := r.active
	r.mu.Unlock()
	if active != nil {
		return nil, fmt.Errorf("renderer: read back while pass %q is open: %w", active.label, ErrPassActive)
	}
	return r.backend.ReadPixels(t)
}

func (r *renderer) Present() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return fmt.Errorf("renderer: present while pass %q is open: %w", r.active.label, ErrPassActive)
	}
	return r.backend.Present()
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, p := range r.programCache {
		p.impl.release()
		delete(r.programCache, key)
	}
	r.backend.Release()
}
