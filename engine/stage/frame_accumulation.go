package stage

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/frame"
	"github.com/Carmen-Shannon/oxy-mfs/engine/logger"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
)

type frameAccumulation struct {
	mu *sync.Mutex
	r  renderer.Renderer

	program renderer.Program

	// buffers ping-pong: the history is read from one while the blend is written into the other.
	buffers [2]output
	front   int
}

// FrameAccumulationStage keeps the running mean of every frame rendered since the last reset.
type FrameAccumulationStage interface {
	// Process blends current into the accumulation with weight 1/state.Current(). The first
	// frame replaces the accumulation.
	//
	// Parameters:
	//   - current: the color of this frame
	//   - state: the frame counter
	//
	// Returns:
	//   - error: common.ErrResourceMismatch for a missing input, or a backend failure
	Process(current renderer.Texture, state frame.State) error

	// Output returns the accumulation.
	Output() renderer.Texture

	// Reset clears the accumulation to zero.
	//
	// Returns:
	//   - error: a backend failure
	Reset() error

	// Release frees the buffers.
	Release()
}

var _ FrameAccumulationStage = &frameAccumulation{}

// NewFrameAccumulationStage loads the blend program. Buffers follow the size of the input.
//
// Parameters:
//   - r: the renderer
//
// Returns:
//   - FrameAccumulationStage: the stage
//   - error: an error if the program can not be created
func NewFrameAccumulationStage(r renderer.Renderer) (FrameAccumulationStage, error) {
	a := &frameAccumulation{
		mu: &sync.Mutex{},
		r:  r,
		buffers: [2]output{
			{label: "accumulation.a", format: renderer.FormatRGBA32F},
			{label: "accumulation.b", format: renderer.FormatRGBA32F},
		},
	}
	var err error
	if a.program, err = r.Program(shader.ProgramAccumulate); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *frameAccumulation) Output() renderer.Texture {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffers[a.front].texture()
}

func (a *frameAccumulation) Process(current renderer.Texture, state frame.State) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if current == nil {
		return fmt.Errorf("accumulate: %w: no frame", common.ErrResourceMismatch)
	}
	for i := range a.buffers {
		resized, err := a.buffers[i].ensure(a.r, current.Width(), current.Height())
		if err != nil {
			return fmt.Errorf("accumulate: %w", err)
		}
		if resized && !state.First() {
			logger.For("accumulate").Warn("accumulation resized without a reset", "frame", state.Current())
		}
	}

	history, next := a.buffers[a.front], a.buffers[1-a.front]
	if err := a.program.SetUniform("weight", state.Weight()); err != nil {
		return err
	}
	err := fullscreen(a.r, next.t.fb, "accumulate", a.program, map[int]renderer.Texture{
		shader.AccumulateUnitCurrent: current,
		shader.AccumulateUnitHistory: history.texture(),
	})
	if err != nil {
		return err
	}
	a.front = 1 - a.front
	return nil
}

func (a *frameAccumulation) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.buffers {
		b := &a.buffers[i]
		if b.t == nil {
			continue
		}
		if err := runPass(a.r, b.t.fb, renderer.PassDescriptor{Label: "accumulate.reset"}, func(renderer.Pass) error { return nil }); err != nil {
			return err
		}
	}
	return nil
}

func (a *frameAccumulation) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.buffers {
		a.buffers[i].release()
	}
}
