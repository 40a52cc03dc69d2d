package main

import (
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/cobra"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine"
	"github.com/Carmen-Shannon/oxy-mfs/engine/camera"
	"github.com/Carmen-Shannon/oxy-mfs/engine/logger"
	"github.com/Carmen-Shannon/oxy-mfs/engine/painter"
	"github.com/Carmen-Shannon/oxy-mfs/engine/preset"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
	"github.com/Carmen-Shannon/oxy-mfs/engine/window"
)

// dragStep is the cursor travel in pixels that equals one orbit or pan step.
const dragStep = 4

// viewer maps window input onto the camera controller and the painter.
// Input arrives on the window thread and tick runs on the engine tick goroutine.
type viewer struct {
	mu         sync.Mutex
	p          painter.MultiFramePainter
	controller camera.Controller
	presets    []string
	next       int

	moved  atomic.Bool
	dragX  float32
	dragY  float32
}

func (v *viewer) key(code uint32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch code {
	case common.KeyLeft:
		v.controller.OrbitLeft()
	case common.KeyRight:
		v.controller.OrbitRight()
	case common.KeyUp:
		v.controller.OrbitUp()
	case common.KeyDown:
		v.controller.OrbitDown()
	case common.KeyW:
		v.controller.PanForward(1)
	case common.KeyS:
		v.controller.PanForward(-1)
	case common.KeyA:
		v.controller.PanRight(-1)
	case common.KeyD:
		v.controller.PanRight(1)
	case common.KeyJ, common.KeyL:
		step := float32(0.25)
		if code == common.KeyJ {
			step = -step
		}
		pos := v.p.LightPosition()
		v.p.SetLightPosition(pos.Add(mgl32.Vec3{step, 0, 0}))
		return
	case common.KeyP:
		v.cyclePreset()
		return
	case common.KeyR:
		v.p.Invalidate()
		return
	default:
		return
	}
	v.moved.Store(true)
}

func (v *viewer) cyclePreset() {
	v.next = (v.next + 1) % len(v.presets)
	p, err := preset.Builtin(v.presets[v.next])
	if err != nil {
		return
	}
	if err := v.p.SetPreset(p); err != nil {
		logger.For("mfsrender").Warn("preset rejected", "preset", p.Name, "error", err)
		return
	}
	v.controller = camera.NewControllerFromCamera(v.p.Camera())
	logger.For("mfsrender").Info("preset selected", "preset", p.Name)
}

func (v *viewer) drag(button window.MouseButton, dx, dy float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dragX += dx
	v.dragY += dy
	for v.dragX >= dragStep || v.dragX <= -dragStep {
		sign := float32(1)
		if v.dragX < 0 {
			sign = -1
		}
		if button == window.MouseButtonLeft {
			if sign > 0 {
				v.controller.OrbitRight()
			} else {
				v.controller.OrbitLeft()
			}
		} else {
			v.controller.PanRight(-sign)
		}
		v.dragX -= sign * dragStep
	}
	for v.dragY >= dragStep || v.dragY <= -dragStep {
		sign := float32(1)
		if v.dragY < 0 {
			sign = -1
		}
		if button == window.MouseButtonLeft {
			if sign > 0 {
				v.controller.OrbitUp()
			} else {
				v.controller.OrbitDown()
			}
		} else {
			v.controller.PanForward(sign)
		}
		v.dragY -= sign * dragStep
	}
	v.moved.Store(true)
}

func (v *viewer) scroll(delta float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.controller.Zoom(delta)
	v.moved.Store(true)
}

func (v *viewer) tick(float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.moved.Swap(false) {
		v.controller.Apply(v.p.Camera())
	}
}

func newViewCommand() *cobra.Command {
	var (
		flags         pipelineFlags
		width, height int
		vsync         bool
		fallback      bool
	)
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Render a scene into a window and refine it while the view is still",
		Long: `Render a scene into a window. Accumulation restarts whenever the view changes.

Controls: arrows or left drag orbit, W/A/S/D or middle drag pan, scroll zooms,
J/L move the light, P cycles the built-in presets, R restarts, Esc quits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scene, options, err := flags.build()
			if err != nil {
				return err
			}

			win, err := window.NewWindow(window.WithTitle("mfsrender"), window.WithSize(width, height))
			if err != nil {
				return err
			}
			defer win.Close()

			mode := renderer.PresentModeUncapped
			if vsync {
				mode = renderer.PresentModeVSync
			}
			r, err := renderer.NewRenderer(renderer.BackendTypeWGPU,
				renderer.WithSurface(win),
				renderer.WithSize(win.Size()),
				renderer.WithPresentMode(mode),
				renderer.WithForceFallbackAdapter(fallback))
			if err != nil {
				return err
			}
			defer r.Release()

			vw, vh := win.Size()
			options = append(options, painter.WithViewport(camera.NewViewport(vw, vh)))
			p, err := painter.NewMultiFramePainter(r, scene, options...)
			if err != nil {
				return err
			}
			defer p.Release()

			v := &viewer{
				p:          p,
				controller: camera.NewControllerFromCamera(p.Camera()),
				presets:    preset.Names(),
			}
			win.SetKeyDownCallback(v.key)
			win.SetDragCallback(v.drag)
			win.SetScrollCallback(v.scroll)

			e := engine.NewEngine(p,
				engine.WithWindow(win),
				engine.WithTickRate(60),
				engine.WithTickCallback(v.tick),
				engine.WithRenderCallback(func(res painter.Result) {
					if res.Rendered && res.Converged {
						logger.For("mfsrender").Info("view converged", "frames", res.Frame)
					}
				}))
			go func() {
				<-cmd.Context().Done()
				e.Quit()
			}()
			return e.Run()
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().IntVar(&width, "width", 1280, "window width")
	cmd.Flags().IntVar(&height, "height", 720, "window height")
	cmd.Flags().BoolVar(&vsync, "vsync", true, "wait for vertical blank when presenting")
	cmd.Flags().BoolVar(&fallback, "fallback-adapter", false, "force the software WebGPU adapter")
	return cmd
}
