package stage

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
)

// MaxExposure bounds the blit gain.
const MaxExposure = 16

type blit struct {
	mu       *sync.Mutex
	r        renderer.Renderer
	program  renderer.Program
	exposure float32
}

// BlitStage scales a frame by the exposure and writes it, clamped to [0, 1], into the screen.
type BlitStage interface {
	// Process draws src into the screen framebuffer.
	//
	// Parameters:
	//   - src: the frame to show
	//
	// Returns:
	//   - error: common.ErrResourceMismatch for a nil source, or a backend failure
	Process(src renderer.Texture) error

	// SetExposure sets the gain, clamped to [0, MaxExposure].
	SetExposure(exposure float32)

	// Exposure returns the clamped gain.
	Exposure() float32
}

var _ BlitStage = &blit{}

// NewBlitStage loads the blit program with an exposure of 1.
func NewBlitStage(r renderer.Renderer) (BlitStage, error) {
	prog, err := r.Program(shader.ProgramBlit)
	if err != nil {
		return nil, err
	}
	return &blit{mu: &sync.Mutex{}, r: r, program: prog, exposure: 1}, nil
}

func (b *blit) SetExposure(exposure float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if exposure != exposure {
		exposure = 1
	}
	b.exposure = common.Clamp(exposure, 0, MaxExposure)
}

func (b *blit) Exposure() float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exposure
}

func (b *blit) Process(src renderer.Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if src == nil {
		return fmt.Errorf("blit: %w: no source", common.ErrResourceMismatch)
	}
	if err := b.program.SetUniform("exposure", b.exposure); err != nil {
		return err
	}
	return fullscreen(b.r, b.r.Screen(), "blit", b.program, map[int]renderer.Texture{0: src})
}
