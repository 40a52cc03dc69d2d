package renderer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/model"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// uniformAlignment is the dynamic offset alignment of the uniform ring buffer.
const uniformAlignment = 256

var errWGPUReadback = errors.New("wgpu readback failed")

// wgpuRendererBackend records passes into command encoders and submits each on End.
//
// Offscreen textures keep row 0 at the bottom like the software backend, so passes into them
// flip clip y through the orientation header and wind front faces clockwise. The surface is
// presented as is.
type wgpuRendererBackend struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode

	// screen is either the surface placeholder or an offscreen texture when there is no surface.
	screen *wgpuTexture

	// placeholder stands in for filtered units a draw leaves empty.
	placeholder *wgpuTexture

	// Frame state of the acquired surface image, held from the first pass on the screen until Present.
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	preProcessor shader.PreProcessor
	pipelines    map[pipelineKey]*wgpu.RenderPipeline
	samplers     map[samplerKey]*wgpu.Sampler
	meshes       map[*model.Mesh]*meshBuffers

	uniformBuffer *wgpu.Buffer
	uniformSize   uint64
}

var _ RendererBackend = &wgpuRendererBackend{}

type wgpuTexture struct {
	label  string
	width  int
	height int
	format Format
	filter Filter
	wrap   Wrap

	// surface marks the placeholder standing for the current surface image.
	surface bool

	texture *wgpu.Texture
	view    *wgpu.TextureView
}

var _ Texture = &wgpuTexture{}

func (t *wgpuTexture) Label() string  { return t.label }
func (t *wgpuTexture) Width() int     { return t.width }
func (t *wgpuTexture) Height() int    { return t.height }
func (t *wgpuTexture) Format() Format { return t.format }

func (t *wgpuTexture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

type wgpuProgram struct {
	desc           shader.Descriptor
	module         *wgpu.ShaderModule
	uniformLayout  *wgpu.BindGroupLayout
	textureLayout  *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	uniformSize    uint64
}

func (p *wgpuProgram) release() {
	p.pipelineLayout.Release()
	if p.textureLayout != nil {
		p.textureLayout.Release()
	}
	p.uniformLayout.Release()
	p.module.Release()
}

type meshBuffers struct {
	vertex     *wgpu.Buffer
	index      *wgpu.Buffer
	indexCount uint32
}

type pipelineKey struct {
	program      *wgpuProgram
	formats      [shader.MaxTargets]wgpu.TextureFormat
	colorCount   int
	depth        bool
	depthWrite   bool
	compare      CompareFunc
	cull         CullMode
	presentation bool
}

type samplerKey struct {
	filter Filter
	wrap   Wrap
}

// newWGPURendererBackend requests an adapter and device. Without a surface source the screen
// is an offscreen texture that can be read back.
func newWGPURendererBackend(source SurfaceSource, forceFallbackAdapter bool, mode PresentMode) (RendererBackend, error) {
	runtime.LockOSThread()
	b := &wgpuRendererBackend{
		mu:           &sync.Mutex{},
		instance:     wgpu.CreateInstance(nil),
		presentMode:  wgpuPresentMode(mode),
		preProcessor: shader.NewPreProcessor(),
		pipelines:    make(map[pipelineKey]*wgpu.RenderPipeline),
		samplers:     make(map[samplerKey]*wgpu.Sampler),
		meshes:       make(map[*model.Mesh]*meshBuffers),
	}
	if source != nil {
		b.surface = b.instance.CreateSurface(source.SurfaceDescriptor())
	}

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	b.adapter = a

	// The G-buffer writes six color targets of up to 16 bytes each.
	limits := wgpu.DefaultLimits()
	limits.MaxColorAttachmentBytesPerSample = 64

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	b.surfaceFormat = wgpu.TextureFormatRGBA8Unorm
	if b.surface != nil {
		b.surfaceFormat = b.pickSurfaceFormat()
	}
	return b, nil
}

func wgpuPresentMode(mode PresentMode) wgpu.PresentMode {
	switch mode {
	case PresentModeVSync:
		return wgpu.PresentModeFifo
	default:
		return wgpu.PresentModeImmediate
	}
}

// pickSurfaceFormat prefers a linear 8-bit format so the blit output is presented unchanged.
func (b *wgpuRendererBackend) pickSurfaceFormat() wgpu.TextureFormat {
	capabilities := b.surface.GetCapabilities(b.adapter)
	for _, f := range capabilities.Formats {
		if f == wgpu.TextureFormatBGRA8Unorm || f == wgpu.TextureFormatRGBA8Unorm {
			return f
		}
	}
	return capabilities.Formats[0]
}

func (b *wgpuRendererBackend) Type() RendererBackendType {
	return BackendTypeWGPU
}

func textureFormat(f Format) wgpu.TextureFormat {
	switch f {
	case FormatBGRA8:
		return wgpu.TextureFormatBGRA8Unorm
	case FormatRG32F:
		return wgpu.TextureFormatRG32Float
	case FormatR32F:
		return wgpu.TextureFormatR32Float
	case FormatRGBA32F:
		return wgpu.TextureFormatRGBA32Float
	case FormatDepth32F:
		return wgpu.TextureFormatDepth32Float
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}

// texelSize returns the bytes per texel of the device format backing f.
func texelSize(f Format) int {
	switch f {
	case FormatRG32F:
		return 8
	case FormatRGBA32F:
		return 16
	default:
		return 4
	}
}

func (b *wgpuRendererBackend) CreateTexture(desc TextureDescriptor) (Texture, error) {
	if desc.Format.IsDepth() && desc.Pixels != nil {
		return nil, fmt.Errorf("texture %q: depth textures can not be initialized with data: %w", desc.Label, common.ErrConfiguration)
	}
	t := &wgpuTexture{
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		filter: desc.Filter,
		wrap:   desc.Wrap,
	}
	usage := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc
	if !desc.Format.IsDepth() {
		usage |= wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	}
	size := wgpu.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: 1}

	var err error
	t.texture, err = b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        textureFormat(desc.Format),
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", desc.Label, err)
	}
	t.view, err = t.texture.CreateView(nil)
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("texture %q view: %w", desc.Label, err)
	}

	if desc.Pixels != nil {
		data := encodeTexels(desc.Format, desc.Pixels)
		b.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Aspect:   wgpu.TextureAspectAll,
				Texture:  t.texture,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{X: 0, Y: 0, Z: 0},
			},
			data,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(texelSize(desc.Format) * desc.Width),
				RowsPerImage: uint32(desc.Height),
			},
			&size,
		)
	}
	return t, nil
}

// encodeTexels packs four floats per texel into the device layout of f.
func encodeTexels(f Format, pixels []float32) []byte {
	n := len(pixels) / 4
	out := make([]byte, 0, n*texelSize(f))
	unorm := func(v float32) byte {
		if v != v {
			return 0
		}
		return byte(math.Round(float64(common.Clamp(v, 0, 1)) * 255))
	}
	for i := range n {
		p := pixels[i*4 : i*4+4]
		switch f {
		case FormatRGBA8:
			out = append(out, unorm(p[0]), unorm(p[1]), unorm(p[2]), unorm(p[3]))
		case FormatRGB8:
			out = append(out, unorm(p[0]), unorm(p[1]), unorm(p[2]), 255)
		case FormatBGRA8:
			out = append(out, unorm(p[2]), unorm(p[1]), unorm(p[0]), unorm(p[3]))
		case FormatRG32F:
			out = common.AppendFloat32(common.AppendFloat32(out, p[0]), p[1])
		case FormatR32F, FormatDepth32F:
			out = common.AppendFloat32(out, p[0])
		default:
			for _, v := range p {
				out = common.AppendFloat32(out, v)
			}
		}
	}
	return out
}

// decodeTexels unpacks device rows into four floats per texel. Channels the format lacks are
// filled the way shaders read them.
func decodeTexels(f Format, data []byte, width, height, stride int) []float32 {
	out := make([]float32, 0, width*height*4)
	float := func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }
	for y := range height {
		row := data[y*stride:]
		for x := range width {
			switch f {
			case FormatRGBA8, FormatRGB8:
				p := row[x*4:]
				out = append(out, float32(p[0])/255, float32(p[1])/255, float32(p[2])/255, float32(p[3])/255)
			case FormatBGRA8:
				p := row[x*4:]
				out = append(out, float32(p[2])/255, float32(p[1])/255, float32(p[0])/255, float32(p[3])/255)
			case FormatRG32F:
				p := row[x*8:]
				out = append(out, float(p), float(p[4:]), 0, 1)
			case FormatR32F, FormatDepth32F:
				out = append(out, float(row[x*4:]), 0, 0, 1)
			default:
				p := row[x*16:]
				out = append(out, float(p), float(p[4:]), float(p[8:]), float(p[12:]))
			}
		}
	}
	return out
}

func (b *wgpuRendererBackend) CreateProgram(desc shader.Descriptor) (backendProgram, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	source, err := b.preProcessor.Process(desc)
	if err != nil {
		return nil, err
	}
	p := &wgpuProgram{desc: desc, uniformSize: uint64(desc.Layout().Size)}

	p.module, err = b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: source,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("shader module: %w", err)
	}

	p.uniformLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: desc.Key + " Uniforms",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   p.uniformSize,
			},
		}},
	})
	if err != nil {
		p.module.Release()
		return nil, fmt.Errorf("uniform layout: %w", err)
	}
	layouts := []*wgpu.BindGroupLayout{p.uniformLayout}

	if len(desc.Samplers) > 0 {
		entries := make([]wgpu.BindGroupLayoutEntry, 0, 2*len(desc.Samplers))
		for _, s := range desc.Samplers {
			entry := wgpu.BindGroupLayoutEntry{
				Binding:    uint32(shader.TextureBinding(s.Unit)),
				Visibility: wgpu.ShaderStageFragment,
			}
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
			entry.Texture.SampleType = wgpu.TextureSampleTypeUnfilterableFloat
			if s.Kind == shader.SamplerFilter {
				entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			}
			entries = append(entries, entry)
			if s.Kind == shader.SamplerFilter {
				sampler := wgpu.BindGroupLayoutEntry{
					Binding:    uint32(shader.SamplerBinding(s.Unit)),
					Visibility: wgpu.ShaderStageFragment,
				}
				sampler.Sampler.Type = wgpu.SamplerBindingTypeFiltering
				entries = append(entries, sampler)
			}
		}
		p.textureLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   desc.Key + " Textures",
			Entries: entries,
		})
		if err != nil {
			p.uniformLayout.Release()
			p.module.Release()
			return nil, fmt.Errorf("texture layout: %w", err)
		}
		layouts = append(layouts, p.textureLayout)
	}

	p.pipelineLayout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Key,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		if p.textureLayout != nil {
			p.textureLayout.Release()
		}
		p.uniformLayout.Release()
		p.module.Release()
		return nil, fmt.Errorf("pipeline layout: %w", err)
	}
	return p, nil
}

func (b *wgpuRendererBackend) Screen() Texture {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.screen
}

func (b *wgpuRendererBackend) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.screen != nil && b.screen.width == width && b.screen.height == height {
		return
	}
	if b.screen != nil {
		b.screen.Release()
	}

	if b.surface == nil {
		t, err := b.CreateTexture(TextureDescriptor{Label: "screen", Width: width, Height: height, Format: FormatRGBA8})
		if err != nil {
			panic(err)
		}
		b.screen = t.(*wgpuTexture)
		return
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	format := FormatRGBA8
	if b.surfaceFormat == wgpu.TextureFormatBGRA8Unorm {
		format = FormatBGRA8
	}
	b.screen = &wgpuTexture{label: "screen", width: width, height: height, format: format, surface: true}
}

// acquire returns the view of the current surface image, acquiring it on first use in a frame.
func (b *wgpuRendererBackend) acquire() (*wgpu.TextureView, error) {
	if b.frameView != nil {
		return b.frameView, nil
	}
	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, err
	}
	b.frameSurface = surfaceTexture
	b.frameView = view
	return view, nil
}

// placeholderTexture returns the white 1x1 texture bound to empty filtered units.
func (b *wgpuRendererBackend) placeholderTexture() (*wgpuTexture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.placeholder != nil {
		return b.placeholder, nil
	}
	t, err := b.CreateTexture(TextureDescriptor{Label: "placeholder", Width: 1, Height: 1, Format: FormatRGBA8, Pixels: []float32{1, 1, 1, 1}})
	if err != nil {
		return nil, err
	}
	b.placeholder = t.(*wgpuTexture)
	return b.placeholder, nil
}

func (b *wgpuRendererBackend) own(t Texture) (*wgpuTexture, error) {
	wt, ok := t.(*wgpuTexture)
	if !ok || (wt.view == nil && !wt.surface) {
		return nil, fmt.Errorf("wgpu backend: texture %q is not a live wgpu texture: %w", t.Label(), common.ErrResourceMismatch)
	}
	return wt, nil
}

func (b *wgpuRendererBackend) BeginPass(fb Framebuffer, desc PassDescriptor) (backendPass, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := &wgpuPass{b: b, desc: desc}
	for _, c := range fb.Color() {
		wt, err := b.own(c)
		if err != nil {
			return nil, err
		}
		view := wt.view
		if wt.surface {
			if view, err = b.acquire(); err != nil {
				return nil, fmt.Errorf("acquire surface: %w", err)
			}
			p.presentation = true
		}
		p.key.formats[p.key.colorCount] = textureFormat(wt.format)
		if wt.surface {
			p.key.formats[p.key.colorCount] = b.surfaceFormat
		}
		p.key.colorCount++
		p.colors = append(p.colors, view)
	}
	if fb.Depth() != nil {
		wt, err := b.own(fb.Depth())
		if err != nil {
			return nil, err
		}
		p.depth = wt.view
		p.key.depth = true
	}
	p.key.depthWrite = !desc.DepthReadOnly
	p.key.compare = desc.DepthCompare
	p.key.presentation = p.presentation
	return p, nil
}

// pipeline returns the cached render pipeline for key, creating it on first use.
func (b *wgpuRendererBackend) pipeline(key pipelineKey) (*wgpu.RenderPipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rp, ok := b.pipelines[key]; ok {
		return rp, nil
	}

	p := key.program
	targets := make([]wgpu.ColorTargetState, key.colorCount)
	for i := range targets {
		targets[i] = wgpu.ColorTargetState{Format: key.formats[i], WriteMask: wgpu.ColorWriteMaskNone}
		if i < p.desc.Targets {
			targets[i].WriteMask = wgpu.ColorWriteMaskAll
		}
	}

	var buffers []wgpu.VertexBufferLayout
	if !p.desc.Fullscreen {
		buffers = []wgpu.VertexBufferLayout{{
			ArrayStride: model.VertexSize,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
				{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 32, ShaderLocation: 3},
			},
		}}
	}

	frontFace := wgpu.FrontFaceCW
	if key.presentation {
		frontFace = wgpu.FrontFaceCCW
	}
	cull := wgpu.CullModeNone
	if key.cull == CullBack {
		cull = wgpu.CullModeBack
	}

	var depthStencil *wgpu.DepthStencilState
	if key.depth {
		compare := wgpu.CompareFunctionLess
		switch key.compare {
		case CompareLessEqual:
			compare = wgpu.CompareFunctionLessEqual
		case CompareAlways:
			compare = wgpu.CompareFunctionAlways
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: key.depthWrite,
			DepthCompare:      compare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.desc.Key + " Render Pipeline",
		Layout: p.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     p.module,
			EntryPoint: p.desc.VertexEntry,
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.module,
			EntryPoint: p.desc.FragmentEntry,
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: frontFace,
			CullMode:  cull,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return nil, fmt.Errorf("render pipeline %s: %w", p.desc.Key, err)
	}
	b.pipelines[key] = created
	return created, nil
}

func (b *wgpuRendererBackend) sampler(filter Filter, wrap Wrap) (*wgpu.Sampler, error) {
	key := samplerKey{filter: filter, wrap: wrap}
	if s, ok := b.samplers[key]; ok {
		return s, nil
	}
	address := wgpu.AddressModeRepeat
	if wrap == WrapClamp {
		address = wgpu.AddressModeClampToEdge
	}
	mode, mip := wgpu.FilterModeLinear, wgpu.MipmapFilterModeLinear
	if filter == FilterNearest {
		mode, mip = wgpu.FilterModeNearest, wgpu.MipmapFilterModeNearest
	}
	s, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  address,
		AddressModeV:  address,
		AddressModeW:  address,
		MagFilter:     mode,
		MinFilter:     mode,
		MipmapFilter:  mip,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, err
	}
	b.samplers[key] = s
	return s, nil
}

func (b *wgpuRendererBackend) meshBuffers(m *model.Mesh) (*meshBuffers, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if mb, ok := b.meshes[m]; ok {
		return mb, nil
	}

	vertexData := make([]byte, 0, len(m.Vertices())*model.VertexSize)
	for i := range m.Vertices() {
		vertexData = append(vertexData, m.Vertices()[i].Marshal()...)
	}
	indexData := common.SliceToBytes(m.Indices())
	mb := &meshBuffers{indexCount: uint32(len(m.Indices()))}

	var err error
	mb.vertex, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            m.Name() + " Vertex Buffer",
		Size:             uint64(len(vertexData)),
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	b.queue.WriteBuffer(mb.vertex, 0, vertexData)

	mb.index, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            m.Name() + " Index Buffer",
		Size:             uint64(len(indexData)),
		Usage:            wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		mb.vertex.Release()
		return nil, err
	}
	b.queue.WriteBuffer(mb.index, 0, indexData)

	b.meshes[m] = mb
	return mb, nil
}

// reserveUniforms grows the uniform ring buffer to hold at least size bytes.
func (b *wgpuRendererBackend) reserveUniforms(size uint64) error {
	if size <= b.uniformSize {
		return nil
	}
	grown := max(size, 2*b.uniformSize, 64*uniformAlignment)
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Uniform Ring Buffer",
		Size:  grown,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	if b.uniformBuffer != nil {
		b.uniformBuffer.Release()
	}
	b.uniformBuffer, b.uniformSize = buf, grown
	return nil
}

func (b *wgpuRendererBackend) ReadPixels(t Texture) ([]float32, error) {
	wt, err := b.own(t)
	if err != nil {
		return nil, err
	}
	if wt.surface {
		return nil, fmt.Errorf("wgpu backend: the presented surface can not be read back: %w", common.ErrResourceMismatch)
	}

	unpadded := uint32(texelSize(wt.format) * wt.width)
	align := uint32(wgpu.CopyBytesPerRowAlignment)
	stride := unpadded + (align-unpadded%align)%align
	size := uint64(stride) * uint64(wt.height)

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: wt.label + " Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer buf.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Release()
	aspect := wgpu.TextureAspectAll
	if wt.format.IsDepth() {
		aspect = wgpu.TextureAspectDepthOnly
	}
	err = encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: wt.texture, MipLevel: 0, Origin: wgpu.Origin3D{}, Aspect: aspect},
		&wgpu.ImageCopyBuffer{
			Buffer: buf,
			Layout: wgpu.TextureDataLayout{Offset: 0, BytesPerRow: stride, RowsPerImage: uint32(wt.height)},
		},
		&wgpu.Extent3D{Width: uint32(wt.width), Height: uint32(wt.height), DepthOrArrayLayers: 1},
	)
	if err != nil {
		return nil, err
	}
	commands, err := encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	b.queue.Submit(commands)
	commands.Release()

	var status wgpu.BufferMapAsyncStatus
	if err := buf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, err
	}
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("%w: map status %s", errWGPUReadback, status.String())
	}
	data := buf.GetMappedRange(0, uint(size))
	out := decodeTexels(wt.format, data, wt.width, wt.height, int(stride))
	buf.Unmap()
	return out, nil
}

func (b *wgpuRendererBackend) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Nothing was drawn to the surface this frame.
	if b.frameSurface == nil {
		return nil
	}
	b.surface.Present()
	b.frameView.Release()
	b.frameSurface.Release()
	b.frameView, b.frameSurface = nil, nil
	return nil
}

func (b *wgpuRendererBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for k, rp := range b.pipelines {
		rp.Release()
		delete(b.pipelines, k)
	}
	for k, s := range b.samplers {
		s.Release()
		delete(b.samplers, k)
	}
	for m, mb := range b.meshes {
		mb.vertex.Release()
		mb.index.Release()
		delete(b.meshes, m)
	}
	if b.uniformBuffer != nil {
		b.uniformBuffer.Release()
		b.uniformBuffer = nil
	}
	if b.frameView != nil {
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameView, b.frameSurface = nil, nil
	}
	if b.screen != nil {
		b.screen.Release()
	}
	if b.placeholder != nil {
		b.placeholder.Release()
	}
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	if b.surface != nil {
		b.surface.Release()
	}
	b.instance.Release()
}

// wgpuPass collects draws and encodes them into one render pass on end, once the size of the
// pass's uniform data is known.
type wgpuPass struct {
	b    *wgpuRendererBackend
	desc PassDescriptor
	key  pipelineKey

	colors       []*wgpu.TextureView
	depth        *wgpu.TextureView
	presentation bool

	draws []wgpuDraw
}

type wgpuDraw struct {
	program  *wgpuProgram
	pipeline *wgpu.RenderPipeline
	uniforms []byte
	textures []wgpu.BindGroupEntry
	mesh     *meshBuffers
}

func (p *wgpuPass) draw(call drawCall) error {
	impl, ok := call.program.impl.(*wgpuProgram)
	if !ok {
		return fmt.Errorf("wgpu backend: program %s was compiled by another backend: %w", call.program.Key(), common.ErrResourceMismatch)
	}
	key := p.key
	key.program = impl
	key.cull = call.cull
	rp, err := p.b.pipeline(key)
	if err != nil {
		return err
	}

	d := wgpuDraw{program: impl, pipeline: rp, uniforms: call.program.encode(call.uniforms)}
	orientation := float32(-1)
	if p.presentation {
		orientation = 1
	}
	copy(d.uniforms, common.AppendFloat32(nil, orientation))

	for _, s := range impl.desc.Samplers {
		var wt *wgpuTexture
		var err error
		if call.textures[s.Unit] == nil {
			wt, err = p.b.placeholderTexture()
		} else {
			wt, err = p.b.own(call.textures[s.Unit])
		}
		if err != nil {
			return err
		}
		d.textures = append(d.textures, wgpu.BindGroupEntry{
			Binding:     uint32(shader.TextureBinding(s.Unit)),
			TextureView: wt.view,
		})
		if s.Kind == shader.SamplerFilter {
			p.b.mu.Lock()
			smp, err := p.b.sampler(wt.filter, wt.wrap)
			p.b.mu.Unlock()
			if err != nil {
				return err
			}
			d.textures = append(d.textures, wgpu.BindGroupEntry{
				Binding: uint32(shader.SamplerBinding(s.Unit)),
				Sampler: smp,
			})
		}
	}

	if call.mesh != nil {
		if d.mesh, err = p.b.meshBuffers(call.mesh); err != nil {
			return err
		}
	}
	p.draws = append(p.draws, d)
	return nil
}

func (p *wgpuPass) end() error {
	b := p.b
	b.mu.Lock()
	defer b.mu.Unlock()

	offsets := make([]uint32, len(p.draws))
	var total uint64
	for i, d := range p.draws {
		offsets[i] = uint32(total)
		total += (uint64(len(d.uniforms)) + uniformAlignment - 1) / uniformAlignment * uniformAlignment
	}
	if err := b.reserveUniforms(total); err != nil {
		return err
	}
	for i, d := range p.draws {
		b.queue.WriteBuffer(b.uniformBuffer, uint64(offsets[i]), d.uniforms)
	}

	var release []*wgpu.BindGroup
	defer func() {
		for _, bg := range release {
			bg.Release()
		}
	}()
	uniformGroups := map[*wgpuProgram]*wgpu.BindGroup{}
	groupFor := func(prog *wgpuProgram) (*wgpu.BindGroup, error) {
		if bg, ok := uniformGroups[prog]; ok {
			return bg, nil
		}
		bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  prog.desc.Key + " Uniforms",
			Layout: prog.uniformLayout,
			Entries: []wgpu.BindGroupEntry{{
				Binding: 0,
				Buffer:  b.uniformBuffer,
				Offset:  0,
				Size:    prog.uniformSize,
			}},
		})
		if err != nil {
			return nil, err
		}
		release = append(release, bg)
		uniformGroups[prog] = bg
		return bg, nil
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	colorAttachments := make([]wgpu.RenderPassColorAttachment, len(p.colors))
	for i, view := range p.colors {
		c := p.desc.ClearColor(i)
		loadOp := wgpu.LoadOpClear
		if p.desc.LoadColor {
			loadOp = wgpu.LoadOpLoad
		}
		colorAttachments[i] = wgpu.RenderPassColorAttachment{
			View:       view,
			LoadOp:     loadOp,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])},
		}
	}
	passDesc := &wgpu.RenderPassDescriptor{ColorAttachments: colorAttachments}
	if p.depth != nil {
		depthLoad := wgpu.LoadOpClear
		if p.desc.LoadDepth {
			depthLoad = wgpu.LoadOpLoad
		}
		passDesc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            p.depth,
			DepthLoadOp:     depthLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}
	pass := encoder.BeginRenderPass(passDesc)

	for i, d := range p.draws {
		ug, err := groupFor(d.program)
		if err != nil {
			pass.End()
			return err
		}
		pass.SetPipeline(d.pipeline)
		pass.SetBindGroup(0, ug, []uint32{offsets[i]})
		if d.program.textureLayout != nil {
			tg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
				Label:   d.program.desc.Key + " Textures",
				Layout:  d.program.textureLayout,
				Entries: d.textures,
			})
			if err != nil {
				pass.End()
				return err
			}
			release = append(release, tg)
			pass.SetBindGroup(1, tg, nil)
		}
		if d.mesh == nil {
			pass.Draw(3, 1, 0, 0)
			continue
		}
		pass.SetVertexBuffer(0, d.mesh.vertex, 0, wgpu.WholeSize)
		pass.SetIndexBuffer(d.mesh.index, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(d.mesh.indexCount, 1, 0, 0, 0)
	}
	pass.End()

	commands, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(commands)
	commands.Release()
	return nil
}
