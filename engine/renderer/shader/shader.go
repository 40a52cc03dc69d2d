// Package shader describes the GPU programs used by the multi-frame renderer. A program is
// a Descriptor: its uniform block, its sampler units and its WGSL source. Backends consume
// descriptors, the WebGPU backend compiles the pre-processed WGSL while the software backend
// pairs each key with an equivalent Go implementation.
package shader

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxUnits bounds the sampler units a Descriptor may declare.
const MaxUnits = 12

// MaxTargets bounds the color outputs of a fragment entry.
const MaxTargets = 8

// HeaderSize is the number of bytes reserved at the start of every uniform block for values
// the backend writes itself (render target orientation, see the target snippet).
const HeaderSize = 16

// UniformType enumerates the value types that may appear in a uniform block.
type UniformType int

const (
	UniformFloat UniformType = iota
	UniformInt
	UniformBool
	UniformVec2
	UniformVec3
	UniformVec4
	UniformMat4
)

// String returns the WGSL spelling of the type. Booleans are carried as i32.
func (t UniformType) String() string {
	switch t {
	case UniformFloat:
		return "f32"
	case UniformInt, UniformBool:
		return "i32"
	case UniformVec2:
		return "vec2<f32>"
	case UniformVec3:
		return "vec3<f32>"
	case UniformVec4:
		return "vec4<f32>"
	case UniformMat4:
		return "mat4x4<f32>"
	default:
		return fmt.Sprintf("UniformType(%d)", int(t))
	}
}

// layout returns the WGSL uniform address space alignment and size of the type.
func (t UniformType) layout() (align, size int) {
	switch t {
	case UniformVec2:
		return 8, 8
	case UniformVec3:
		return 16, 12
	case UniformVec4:
		return 16, 16
	case UniformMat4:
		return 16, 64
	default:
		return 4, 4
	}
}

// Uniform is a single named member of a program's uniform block.
type Uniform struct {
	Name string
	Type UniformType
}

// SamplerKind selects how a program reads a bound texture.
type SamplerKind int

const (
	// SamplerFetch reads individual texels without filtering. Required for 32-bit float targets.
	SamplerFetch SamplerKind = iota

	// SamplerFilter samples with the texture's filter and wrap modes.
	SamplerFilter
)

// Sampler declares a texture input of a program at a fixed unit.
type Sampler struct {
	Unit int
	Name string
	Kind SamplerKind
}

// Descriptor fully describes one program.
type Descriptor struct {
	// Key is the registry name of the program.
	Key string

	// Source is the raw WGSL containing @oxy: annotations.
	Source string

	// VertexEntry and FragmentEntry name the WGSL entry points.
	VertexEntry   string
	FragmentEntry string

	// Targets is the number of color outputs of the fragment entry, written to the first
	// attachments of the pass in location order. Zero makes a depth only program that leaves
	// every color attachment untouched.
	Targets int

	// Fullscreen programs draw a single screen covering triangle and take no vertex input.
	Fullscreen bool

	// Uniforms lists the block members in declaration order.
	Uniforms []Uniform

	// Samplers lists the texture inputs ordered by unit.
	Samplers []Sampler
}

// WritesColor reports whether the program produces color output.
func (d Descriptor) WritesColor() bool {
	return d.Targets > 0
}

// Uniform returns the declared uniform with the given name.
func (d Descriptor) Uniform(name string) (Uniform, bool) {
	for _, u := range d.Uniforms {
		if u.Name == name {
			return u, true
		}
	}
	return Uniform{}, false
}

// Sampler returns the sampler declared at unit.
func (d Descriptor) Sampler(unit int) (Sampler, bool) {
	for _, s := range d.Samplers {
		if s.Unit == unit {
			return s, true
		}
	}
	return Sampler{}, false
}

// Validate checks that uniform names are unique and sampler units are in range and unique.
func (d Descriptor) Validate() error {
	seen := map[string]bool{}
	for _, u := range d.Uniforms {
		if u.Name == "" || seen[u.Name] {
			return fmt.Errorf("shader %s: duplicate or empty uniform %q: %w", d.Key, u.Name, common.ErrConfiguration)
		}
		seen[u.Name] = true
	}
	units := map[int]bool{}
	for _, s := range d.Samplers {
		if s.Unit < 0 || s.Unit >= MaxUnits || units[s.Unit] {
			return fmt.Errorf("shader %s: invalid sampler unit %d: %w", d.Key, s.Unit, common.ErrConfiguration)
		}
		units[s.Unit] = true
	}
	if !slices.IsSortedFunc(d.Samplers, func(a, b Sampler) int { return a.Unit - b.Unit }) {
		return fmt.Errorf("shader %s: samplers must be ordered by unit: %w", d.Key, common.ErrConfiguration)
	}
	if d.Targets < 0 || d.Targets > MaxTargets {
		return fmt.Errorf("shader %s: %d color targets: %w", d.Key, d.Targets, common.ErrConfiguration)
	}
	if d.VertexEntry == "" || d.FragmentEntry == "" {
		return fmt.Errorf("shader %s: missing entry point: %w", d.Key, common.ErrConfiguration)
	}
	return nil
}

// Field is a uniform placed inside the block.
type Field struct {
	Uniform
	Offset int
}

// Layout is the byte layout of a uniform block.
type Layout struct {
	Fields []Field
	Size   int
}

// Field returns the placed uniform with the given name.
func (l Layout) Field(name string) (Field, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Layout computes the uniform address space layout of the block. The first HeaderSize bytes
// are reserved and the total size is rounded up to 16 bytes.
func (d Descriptor) Layout() Layout {
	offset := HeaderSize
	fields := make([]Field, 0, len(d.Uniforms))
	for _, u := range d.Uniforms {
		align, size := u.Type.layout()
		offset = roundUp(offset, align)
		fields = append(fields, Field{Uniform: u, Offset: offset})
		offset += size
	}
	return Layout{Fields: fields, Size: roundUp(offset, 16)}
}

func roundUp(v, align int) int {
	return (v + align - 1) / align * align
}

// CheckValue reports whether value is an acceptable Go representation for a uniform of type t.
//
// Parameters:
//   - t: the declared uniform type
//   - value: the candidate value
//
// Returns:
//   - bool: true when value can be encoded as t
func CheckValue(t UniformType, value any) bool {
	switch value.(type) {
	case float32, float64:
		return t == UniformFloat
	case int, int32:
		return t == UniformInt || t == UniformBool
	case bool:
		return t == UniformBool
	case mgl32.Vec2:
		return t == UniformVec2
	case mgl32.Vec3:
		return t == UniformVec3
	case mgl32.Vec4:
		return t == UniformVec4
	case mgl32.Mat4:
		return t == UniformMat4
	}
	return false
}

// Encode writes value into buf at the field's offset. CheckValue must have accepted the value.
func Encode(buf []byte, f Field, value any) {
	out := buf[f.Offset:f.Offset]
	switch v := value.(type) {
	case float32:
		common.AppendFloat32(out, v)
	case float64:
		common.AppendFloat32(out, float32(v))
	case int:
		common.AppendInt32(out, int32(v))
	case int32:
		common.AppendInt32(out, v)
	case bool:
		var i int32
		if v {
			i = 1
		}
		common.AppendInt32(out, i)
	case mgl32.Vec2:
		common.AppendFloat32(common.AppendFloat32(out, v[0]), v[1])
	case mgl32.Vec3:
		common.AppendFloat32(common.AppendFloat32(common.AppendFloat32(out, v[0]), v[1]), v[2])
	case mgl32.Vec4:
		for _, c := range v {
			out = common.AppendFloat32(out, c)
		}
	case mgl32.Mat4:
		common.AppendMat4(out, v)
	}
}
