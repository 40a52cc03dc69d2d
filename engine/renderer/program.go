package renderer

import (
	"fmt"
	"maps"
	"sync"

	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
)

// Program is a compiled shader program together with its current uniform values. Values
// persist across passes until they are overwritten.
type Program interface {
	// Key returns the registry key the program was created from.
	Key() string

	// Descriptor returns the declaration of the program.
	Descriptor() shader.Descriptor

	// SetUniform stores a uniform value used by subsequent draws.
	//
	// Parameters:
	//   - name: the declared uniform name
	//   - value: a float32, float64, int, int32, bool, mgl32.Vec2, mgl32.Vec3, mgl32.Vec4 or mgl32.Mat4
	//
	// Returns:
	//   - error: ErrUniform if the name is not declared or the value does not match its type
	SetUniform(name string, value any) error

	// Uniform returns the stored value of a uniform.
	//
	// Parameters:
	//   - name: the declared uniform name
	//
	// Returns:
	//   - any: the stored value
	//   - bool: false if no value was stored
	Uniform(name string) (any, bool)

	// Declares reports whether the program has a uniform with the given name.
	Declares(name string) bool
}

type program struct {
	mu     *sync.Mutex
	desc   shader.Descriptor
	layout shader.Layout
	values map[string]any
	impl   backendProgram
}

var _ Program = &program{}

func newProgram(desc shader.Descriptor, impl backendProgram) *program {
	return &program{
		mu:     &sync.Mutex{},
		desc:   desc,
		layout: desc.Layout(),
		values: make(map[string]any, len(desc.Uniforms)),
		impl:   impl,
	}
}

func (p *program) Key() string {
	return p.desc.Key
}

func (p *program) Descriptor() shader.Descriptor {
	return p.desc
}

func (p *program) Declares(name string) bool {
	_, ok := p.desc.Uniform(name)
	return ok
}

func (p *program) SetUniform(name string, value any) error {
	u, ok := p.desc.Uniform(name)
	if !ok {
		return fmt.Errorf("program %s: %q is not declared: %w", p.desc.Key, name, ErrUniform)
	}
	if !shader.CheckValue(u.Type, value) {
		return fmt.Errorf("program %s: %q expects %s, got %T: %w", p.desc.Key, name, u.Type, value, ErrUniform)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[name] = value
	return nil
}

func (p *program) Uniform(name string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[name]
	return v, ok
}

// snapshot copies the current values so a draw is unaffected by later SetUniform calls.
func (p *program) snapshot() Uniforms {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Uniforms(maps.Clone(p.values))
}

// encode lays out the values into the uniform block of the program. The header is left zero.
func (p *program) encode(values Uniforms) []byte {
	buf := make([]byte, p.layout.Size)
	for _, f := range p.layout.Fields {
		if v, ok := values[f.Name]; ok {
			shader.Encode(buf, f, v)
		}
	}
	return buf
}

// SetShared writes every value to each program that declares it. Values a program does not
// declare are skipped, so one map can feed a family of related programs.
//
// Parameters:
//   - values: uniform values keyed by name
//   - programs: the programs to update
//
// Returns:
//   - error: the first ErrUniform produced by a type mismatch
func SetShared(values map[string]any, programs ...Program) error {
	for _, p := range programs {
		for name, v := range values {
			if !p.Declares(name) {
				continue
			}
			if err := p.SetUniform(name, v); err != nil {
				return err
			}
		}
	}
	return nil
}
