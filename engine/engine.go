package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-mfs/engine/logger"
	"github.com/Carmen-Shannon/oxy-mfs/engine/painter"
)

// Window is the part of window.Window the engine drives.
type Window interface {
	SetResizeCallback(callback func(width, height int))
	SetUpdateCallback(callback func())
	ProcessMessages()
	Close() error
}

// engine implements the Engine interface.
// Coordinates the tick, render and window threads.
type engine struct {
	tickRateChannel chan time.Duration

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once
	renderDone  chan struct{}

	window  Window
	painter painter.MultiFramePainter

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(res painter.Result)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	idleDelay        time.Duration // pause between re-blits of a converged image

	errMu sync.Mutex
	err   error
}

// Engine runs a MultiFramePainter continuously: a fixed-rate tick loop for input and camera
// updates, a render loop calling Paint, and the window message loop when a window is attached.
type Engine interface {
	// Window returns the attached window, or nil when running headless.
	//
	// Returns:
	//   - Window: the window instance
	Window() Window

	// Painter returns the painter driven by the render loop.
	//
	// Returns:
	//   - painter.MultiFramePainter: the painter
	Painter() painter.MultiFramePainter

	// SetTickRate sets the tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each tick.
	// Use this for input processing and camera movement.
	//
	// Parameters:
	//   - callback: function to call at the tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each Paint.
	//
	// Parameters:
	//   - callback: function receiving the result of the frame
	SetRenderCallback(callback func(res painter.Result))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run starts the loops and blocks until the window closes or Quit is called.
	//
	// Returns:
	//   - error: the paint failure that stopped the render loop, or nil
	Run() error

	// Quit signals all loops to stop. Safe to call multiple times and from any goroutine.
	Quit()
}

// NewEngine creates an Engine around a painter.
// With a window attached, framebuffer resizes are forwarded to the painter viewport and the
// window is closed from its message loop once the render loop has stopped.
//
// Parameters:
//   - p: the painter to drive
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(p painter.MultiFramePainter, options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		renderDone:      make(chan struct{}),
		painter:         p,
		engineTickRate:  time.Second / 60,
		idleDelay:       10 * time.Millisecond,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			e.painter.Viewport().SetSize(width, height)
		})
		e.window.SetUpdateCallback(func() {
			select {
			case <-e.renderDone:
				if err := e.window.Close(); err != nil {
					logger.For("engine").Warn("window close failed", "error", err)
				}
			default:
			}
		})
	}

	return e
}

func (e *engine) Window() Window {
	return e.window
}

func (e *engine) Painter() painter.MultiFramePainter {
	return e.painter
}

func (e *engine) Run() error {
	e.running.Store(true)
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
	e.running.Store(false)

	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

func (e *engine) Quit() {
	e.signalQuit()
}

func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) fail(err error) {
	e.errMu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.errMu.Unlock()
	e.signalQuit()
}

// handle launches the tick and render goroutines.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleTick()
	go e.handleRender()
}

// handleTick fires the tick callback at the configured rate and listens for rate changes.
func (e *engine) handleTick() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender paints frames until quit. A paint error or a panic stops the engine.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer close(e.renderDone)
	defer func() {
		if r := recover(); r != nil {
			logger.For("engine").Error("render loop recovered from panic", "panic", r)
			e.fail(fmt.Errorf("render loop panic: %v", r))
		}
	}()

	log := logger.For("engine")
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		start := time.Now()
		res, err := e.painter.Paint()
		if err != nil {
			log.Error("paint failed", "error", err)
			e.fail(err)
			return
		}

		if e.renderCallback != nil {
			e.renderCallback(res)
		}

		wait := time.Duration(0)
		if e.renderFrameLimit > 0 {
			wait = e.renderFrameLimit - time.Since(start)
		}
		if !res.Rendered {
			wait = max(wait, e.idleDelay)
		}
		if wait > 0 {
			select {
			case <-e.quitChannel:
				return
			case <-time.After(wait):
			}
		}
	}
}

func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	// Replace a pending update rather than block the caller.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(res painter.Result)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
