package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-mfs/engine/frame"
	"github.com/Carmen-Shannon/oxy-mfs/engine/model"
	"github.com/Carmen-Shannon/oxy-mfs/engine/painter"
	"github.com/Carmen-Shannon/oxy-mfs/engine/preset"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-mfs/engine/stage"
)

func newTestPainter(t *testing.T, maxFrames int) painter.MultiFramePainter {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithSize(8, 6), renderer.WithWorkers(2))
	require.NoError(t, err)
	t.Cleanup(r.Release)

	d := model.Drawables{}
	d.Add("stone", model.NewBox("box", mgl32.Vec3{0, 0.5, 0}, mgl32.Vec3{1, 1, 1}))
	scene := painter.Scene{
		Drawables: d,
		Materials: material.Library{}.Add(material.NewMaterial("stone")),
	}
	p0 := preset.Default()
	p0.MaxFrames = maxFrames
	p, err := painter.NewMultiFramePainter(r, scene,
		painter.WithPreset(p0),
		painter.WithShadowOptions(stage.WithShadowSize(16)))
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestRunPaintsUntilQuit(t *testing.T) {
	p := newTestPainter(t, 3)

	var mu sync.Mutex
	var results []painter.Result
	var e Engine
	e = NewEngine(p, WithIdleDelay(time.Millisecond), WithRenderCallback(func(res painter.Result) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, res)
		// Two re-blits after convergence.
		if len(results) == 5 {
			e.Quit()
		}
	}))

	done := make(chan error, 1)
	go func() { done <- e.Run() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("engine did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 5)
	for i, res := range results[:3] {
		assert.Equal(t, i+1, res.Frame)
		assert.True(t, res.Rendered)
	}
	assert.True(t, results[2].Converged)
	for _, res := range results[3:] {
		assert.False(t, res.Rendered)
		assert.True(t, res.Converged)
	}
	assert.Equal(t, frame.PhaseConverged, p.State().Phase())
}

type failingPainter struct {
	painter.MultiFramePainter
}

var errPaint = errors.New("device lost")

func (failingPainter) Paint() (painter.Result, error) {
	return painter.Result{}, errPaint
}

func TestRunReturnsPaintError(t *testing.T) {
	e := NewEngine(failingPainter{})
	assert.ErrorIs(t, e.Run(), errPaint)
	// Quit after the engine stopped is a no-op.
	e.Quit()
}

type panickingPainter struct {
	painter.MultiFramePainter
}

func (panickingPainter) Paint() (painter.Result, error) {
	panic("kernel out of range")
}

func TestRunRecoversFromRenderPanic(t *testing.T) {
	e := NewEngine(panickingPainter{})
	err := e.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kernel out of range")
}

type fakeWindow struct {
	resize    func(width, height int)
	update    func()
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeWindow() *fakeWindow {
	return &fakeWindow{closed: make(chan struct{})}
}

func (w *fakeWindow) SetResizeCallback(callback func(width, height int)) { w.resize = callback }

func (w *fakeWindow) SetUpdateCallback(callback func()) { w.update = callback }

func (w *fakeWindow) ProcessMessages() {
	for {
		select {
		case <-w.closed:
			return
		default:
		}
		if w.update != nil {
			w.update()
		}
		time.Sleep(time.Millisecond)
	}
}

func (w *fakeWindow) Close() error {
	w.closeOnce.Do(func() { close(w.closed) })
	return nil
}

func TestWindowResizeUpdatesViewport(t *testing.T) {
	p := newTestPainter(t, 2)
	w := newFakeWindow()
	e := NewEngine(p, WithWindow(w), WithRenderFrameLimit(200))
	require.NotNil(t, w.resize)
	assert.Same(t, w, e.Window())

	w.resize(5, 4)
	width, height := p.Viewport().Size()
	assert.Equal(t, 5, width)
	assert.Equal(t, 4, height)

	// Closing the window ends Run.
	require.NoError(t, w.Close())
	require.NoError(t, e.Run())
}

func TestQuitClosesWindow(t *testing.T) {
	p := newTestPainter(t, 2)
	w := newFakeWindow()
	e := NewEngine(p, WithWindow(w))

	done := make(chan error, 1)
	go func() { done <- e.Run() }()
	e.Quit()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("window loop did not stop")
	}
	select {
	case <-w.closed:
	default:
		t.Fatal("window still open")
	}
}

func TestTickCallbackRuns(t *testing.T) {
	p := newTestPainter(t, 1)
	ticks := make(chan float32, 1)
	e := NewEngine(p, WithTickRate(500), WithTickCallback(func(dt float32) {
		select {
		case ticks <- dt:
		default:
		}
	}))
	e.SetTickRate(1000)

	done := make(chan error, 1)
	go func() { done <- e.Run() }()
	select {
	case dt := <-ticks:
		assert.Greater(t, dt, float32(0))
	case <-time.After(5 * time.Second):
		t.Fatal("no tick")
	}
	e.Quit()
	require.NoError(t, <-done)
}
