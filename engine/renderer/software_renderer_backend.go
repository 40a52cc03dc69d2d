package renderer

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// softwareRendererBackend rasterizes on the CPU. Rows of the target are split into bands that
// the worker pool shades concurrently, each band running the draw's triangles in order.
type softwareRendererBackend struct {
	mu *sync.Mutex

	workers int
	pool    worker.DynamicWorkerPool
	taskID  int

	screen *softTexture
}

var _ RendererBackend = &softwareRendererBackend{}

func newSoftwareRendererBackend(workers int) RendererBackend {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &softwareRendererBackend{
		mu:      &sync.Mutex{},
		workers: workers,
		// Workers are reused across draws and idle-exit after a second without work.
		pool:   worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
		screen: newSoftTexture(TextureDescriptor{Label: "screen", Width: 1, Height: 1, Format: FormatRGBA8}),
	}
}

func (b *softwareRendererBackend) Type() RendererBackendType {
	return BackendTypeSoftware
}

func (b *softwareRendererBackend) CreateTexture(desc TextureDescriptor) (Texture, error) {
	return newSoftTexture(desc), nil
}

func (b *softwareRendererBackend) CreateProgram(desc shader.Descriptor) (backendProgram, error) {
	return newSoftwareProgram(desc)
}

func (b *softwareRendererBackend) Screen() Texture {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.screen
}

func (b *softwareRendererBackend) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.screen.width == width && b.screen.height == height {
		return
	}
	b.screen = newSoftTexture(TextureDescriptor{Label: "screen", Width: width, Height: height, Format: FormatRGBA8})
}

// own converts a texture to the backend's type.
func (b *softwareRendererBackend) own(t Texture) (*softTexture, error) {
	st, ok := t.(*softTexture)
	if !ok || st.data == nil {
		return nil, fmt.Errorf("software backend: texture %q is not a live software texture: %w", t.Label(), common.ErrResourceMismatch)
	}
	return st, nil
}

func (b *softwareRendererBackend) BeginPass(fb Framebuffer, desc PassDescriptor) (backendPass, error) {
	tg := &target{
		width:    fb.Width(),
		height:   fb.Height(),
		compare:  desc.DepthCompare,
		readOnly: desc.DepthReadOnly,
	}
	for _, c := range fb.Color() {
		st, err := b.own(c)
		if err != nil {
			return nil, err
		}
		tg.color = append(tg.color, st)
	}
	if fb.Depth() != nil {
		st, err := b.own(fb.Depth())
		if err != nil {
			return nil, err
		}
		tg.depth = st
	}

	if !desc.LoadColor {
		for i, c := range tg.color {
			c.clear(desc.ClearColor(i))
		}
	}
	if tg.depth != nil && !desc.LoadDepth {
		tg.depth.clear(mgl32.Vec4{1, 0, 0, 1})
	}
	return &softwarePass{b: b, target: tg}, nil
}

func (b *softwareRendererBackend) ReadPixels(t Texture) ([]float32, error) {
	st, err := b.own(t)
	if err != nil {
		return nil, err
	}
	return st.pixels(), nil
}

func (b *softwareRendererBackend) Present() error {
	return nil
}

func (b *softwareRendererBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.screen.Release()
}

// parallel runs fn over bands of rows [0, height) on the pool and waits for all of them.
func (b *softwareRendererBackend) parallel(height int, fn func(y0, y1 int)) {
	bands := min(b.workers*2, height)
	if bands <= 1 {
		fn(0, height)
		return
	}

	var wg sync.WaitGroup
	rows := (height + bands - 1) / bands
	for y0 := 0; y0 < height; y0 += rows {
		y1 := min(y0+rows, height)
		wg.Add(1)
		b.mu.Lock()
		id := b.taskID
		b.taskID++
		b.mu.Unlock()
		b.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				fn(y0, y1)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

type softwarePass struct {
	b      *softwareRendererBackend
	target *target
}

func (p *softwarePass) draw(call drawCall) error {
	var textures softTextures
	for unit, t := range call.textures {
		if t == nil {
			continue
		}
		st, err := p.b.own(t)
		if err != nil {
			return err
		}
		textures[unit] = st
	}
	impl, ok := call.program.impl.(*softwareProgram)
	if !ok {
		return fmt.Errorf("software backend: program %s was compiled by another backend: %w", call.program.Key(), common.ErrResourceMismatch)
	}
	sh := impl.bind(call.uniforms, textures)

	tg := *p.target
	tg.outputs = call.program.desc.Targets
	if call.mesh == nil {
		p.b.parallel(tg.height, func(y0, y1 int) { tg.fullscreen(&sh, y0, y1) })
		return nil
	}

	vertices := call.mesh.Vertices()
	clipped := make([]clipVertex, len(vertices))
	for i, v := range vertices {
		clipped[i].pos, clipped[i].in = sh.vertex(v)
	}
	indices := call.mesh.Indices()
	triangles := make([]triangle, 0, len(indices)/3)
	for i := 0; i+2 < len(indices); i += 3 {
		tri := [3]clipVertex{clipped[indices[i]], clipped[indices[i+1]], clipped[indices[i+2]]}
		triangles = append(triangles, assemble(tri, tg.width, tg.height, call.cull)...)
	}
	if len(triangles) == 0 {
		return nil
	}
	p.b.parallel(tg.height, func(y0, y1 int) {
		for i := range triangles {
			t := &triangles[i]
			if t.maxY < y0 || t.minY >= y1 {
				continue
			}
			tg.rasterize(t, &sh, y0, y1)
		}
	})
	return nil
}

func (p *softwarePass) end() error {
	return nil
}
