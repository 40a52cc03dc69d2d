package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrIncompleteFramebuffer is returned when framebuffer attachments are missing,
	// mismatched in size, or of a format that can not be attached where requested.
	ErrIncompleteFramebuffer = fmt.Errorf("incomplete framebuffer: %w", common.ErrConfiguration)

	// ErrUnknownProgram is returned when a program key is not registered.
	ErrUnknownProgram = shader.ErrUnknownProgram

	// ErrUniform is returned when a uniform is not declared by a program or the value does
	// not match its declared type.
	ErrUniform = fmt.Errorf("invalid uniform: %w", common.ErrConfiguration)

	// ErrNoProgram is returned when a pass draws or binds before a program is set.
	ErrNoProgram = fmt.Errorf("no program bound: %w", common.ErrStateInvariant)

	// ErrPassActive is returned when a pass is begun while another is still open, or when a
	// pass is used after End.
	ErrPassActive = fmt.Errorf("pass state: %w", common.ErrStateInvariant)

	// ErrUnboundTexture is returned when a draw is issued while a sampler unit declared by the
	// program has no texture, or a texture is bound to a unit the program does not declare.
	ErrUnboundTexture = fmt.Errorf("texture binding: %w", common.ErrResourceMismatch)
)

// Format is the storage format of a texture.
type Format int

const (
	FormatRGBA8 Format = iota
	FormatRGB8
	FormatBGRA8
	FormatRG32F
	FormatR32F
	FormatRGBA32F
	FormatDepth32F
)

// String returns the name of the format.
func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "rgba8"
	case FormatRGB8:
		return "rgb8"
	case FormatBGRA8:
		return "bgra8"
	case FormatRG32F:
		return "rg32f"
	case FormatR32F:
		return "r32f"
	case FormatRGBA32F:
		return "rgba32f"
	case FormatDepth32F:
		return "depth32f"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// IsDepth reports whether the format can only be attached as a depth buffer.
func (f Format) IsDepth() bool {
	return f == FormatDepth32F
}

// Normalized reports whether the format stores 8-bit unsigned normalized channels.
func (f Format) Normalized() bool {
	return f == FormatRGBA8 || f == FormatRGB8 || f == FormatBGRA8
}

// Filter selects texel filtering for filtered samplers.
type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
)

// Wrap selects how texture coordinates outside [0, 1] are resolved.
type Wrap int

const (
	WrapRepeat Wrap = iota
	WrapClamp
)

// CullMode selects which triangles are discarded before rasterization.
type CullMode int

const (
	CullNone CullMode = iota
	CullBack
)

// CompareFunc is the depth test used by a pass.
type CompareFunc int

const (
	CompareLess CompareFunc = iota
	CompareLessEqual
	CompareAlways
)

// Test reports whether a fragment at depth passes against the stored value.
func (c CompareFunc) Test(depth, stored float32) bool {
	switch c {
	case CompareLessEqual:
		return depth <= stored
	case CompareAlways:
		return true
	default:
		return depth < stored
	}
}

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	Label  string
	Width  int
	Height int
	Format Format
	Filter Filter
	Wrap   Wrap

	// Pixels optionally initializes the texture with four floats per texel, row 0 at the
	// bottom. Normalized formats clamp and quantize the values.
	Pixels []float32
}

// Validate checks dimensions and initial data of the descriptor.
func (d TextureDescriptor) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("texture %q: invalid size %dx%d: %w", d.Label, d.Width, d.Height, common.ErrConfiguration)
	}
	if d.Pixels != nil && len(d.Pixels) != d.Width*d.Height*4 {
		return fmt.Errorf("texture %q: %d initial values for %dx%d texels: %w", d.Label, len(d.Pixels), d.Width, d.Height, common.ErrConfiguration)
	}
	return nil
}

// FramebufferDescriptor groups textures into a render target.
type FramebufferDescriptor struct {
	Label string
	Color []Texture
	Depth Texture
}

// PassDescriptor configures attachment load behavior and depth state of a pass.
type PassDescriptor struct {
	Label string

	// ClearColors holds per attachment clear values. Missing entries clear to zero.
	ClearColors []mgl32.Vec4

	// LoadColor keeps the previous contents of the color attachments instead of clearing.
	LoadColor bool

	// LoadDepth keeps the previous depth values instead of clearing to 1.
	LoadDepth bool

	DepthCompare  CompareFunc
	DepthReadOnly bool
}

// ClearColor returns the clear value of the attachment at index.
func (d PassDescriptor) ClearColor(index int) mgl32.Vec4 {
	if index < len(d.ClearColors) {
		return d.ClearColors[index]
	}
	return mgl32.Vec4{}
}

// Texture is a backend owned image.
type Texture interface {
	// Label returns the debug name given at creation.
	Label() string

	// Width returns the width in texels.
	Width() int

	// Height returns the height in texels.
	Height() int

	// Format returns the storage format.
	Format() Format

	// Release frees the backend resources. The texture must not be used afterwards.
	Release()
}

// Framebuffer is a validated set of attachments of identical size.
type Framebuffer interface {
	// Label returns the debug name given at creation.
	Label() string

	// Color returns the color attachments in output location order.
	Color() []Texture

	// Depth returns the depth attachment, or nil when the framebuffer has none.
	Depth() Texture

	// Width returns the attachment width in texels.
	Width() int

	// Height returns the attachment height in texels.
	Height() int
}

type framebuffer struct {
	label  string
	color  []Texture
	depth  Texture
	width  int
	height int
}

var _ Framebuffer = &framebuffer{}

// newFramebuffer validates the descriptor and builds the framebuffer.
func newFramebuffer(desc FramebufferDescriptor) (*framebuffer, error) {
	if len(desc.Color) == 0 && desc.Depth == nil {
		return nil, fmt.Errorf("framebuffer %q has no attachments: %w", desc.Label, ErrIncompleteFramebuffer)
	}
	fb := &framebuffer{label: desc.Label, depth: desc.Depth, color: append([]Texture(nil), desc.Color...)}
	check := func(t Texture) error {
		if fb.width == 0 {
			fb.width, fb.height = t.Width(), t.Height()
		}
		if t.Width() != fb.width || t.Height() != fb.height {
			return fmt.Errorf("framebuffer %q: attachment %q is %dx%d, expected %dx%d: %w",
				desc.Label, t.Label(), t.Width(), t.Height(), fb.width, fb.height, ErrIncompleteFramebuffer)
		}
		return nil
	}
	for i, t := range fb.color {
		if t == nil {
			return nil, fmt.Errorf("framebuffer %q: color attachment %d is nil: %w", desc.Label, i, ErrIncompleteFramebuffer)
		}
		if t.Format().IsDepth() {
			return nil, fmt.Errorf("framebuffer %q: color attachment %q has depth format: %w", desc.Label, t.Label(), ErrIncompleteFramebuffer)
		}
		if err := check(t); err != nil {
			return nil, err
		}
	}
	if fb.depth != nil {
		if !fb.depth.Format().IsDepth() {
			return nil, fmt.Errorf("framebuffer %q: depth attachment %q has format %s: %w", desc.Label, fb.depth.Label(), fb.depth.Format(), ErrIncompleteFramebuffer)
		}
		if err := check(fb.depth); err != nil {
			return nil, err
		}
	}
	return fb, nil
}

func (f *framebuffer) Label() string {
	return f.label
}

func (f *framebuffer) Color() []Texture {
	return f.color
}

func (f *framebuffer) Depth() Texture {
	return f.depth
}

func (f *framebuffer) Width() int {
	return f.width
}

func (f *framebuffer) Height() int {
	return f.height
}
