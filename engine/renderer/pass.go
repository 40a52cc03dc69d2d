package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-mfs/engine/model"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
)

// Pass is an open render pass on one framebuffer. Texture bindings and the cull mode persist
// between draws of the pass. A pass must be ended before another can begin.
//
// Every fetch unit of the program must be bound before a draw. Filtered units may stay empty;
// programs only read them when the matching use flag uniform is set.
type Pass interface {
	// Label returns the debug name of the pass.
	Label() string

	// Framebuffer returns the target of the pass.
	Framebuffer() Framebuffer

	// SetProgram selects the program used by following draws. Texture bindings are kept.
	//
	// Parameters:
	//   - p: a program obtained from the same renderer
	//
	// Returns:
	//   - error: ErrPassActive if the pass has ended
	SetProgram(p Program) error

	// BindTexture binds t to a sampler unit of the current program.
	//
	// Parameters:
	//   - unit: the sampler unit
	//   - t: the texture, or nil to unbind
	//
	// Returns:
	//   - error: ErrNoProgram before SetProgram, ErrUnboundTexture if the program has no such unit
	BindTexture(unit int, t Texture) error

	// SetCullMode selects face culling for following mesh draws.
	SetCullMode(c CullMode)

	// Draw rasterizes a mesh with the current program and uniform values.
	//
	// Parameters:
	//   - m: the mesh to draw
	//
	// Returns:
	//   - error: ErrNoProgram before SetProgram, ErrUnboundTexture for missing inputs
	Draw(m *model.Mesh) error

	// DrawFullscreen covers the framebuffer with a single triangle.
	//
	// Returns:
	//   - error: ErrNoProgram before SetProgram, ErrUnboundTexture for missing inputs
	DrawFullscreen() error

	// End closes the pass. Calling End twice returns ErrPassActive.
	//
	// Returns:
	//   - error: an error if the backend failed to finish the pass
	End() error
}

type pass struct {
	r        *renderer
	label    string
	fb       Framebuffer
	impl     backendPass
	program  *program
	textures [shader.MaxUnits]Texture
	cull     CullMode
	ended    bool
}

var _ Pass = &pass{}

func (p *pass) Label() string {
	return p.label
}

func (p *pass) Framebuffer() Framebuffer {
	return p.fb
}

func (p *pass) SetProgram(prog Program) error {
	if p.ended {
		return fmt.Errorf("pass %q: set program after End: %w", p.label, ErrPassActive)
	}
	impl, ok := prog.(*program)
	if !ok || impl == nil {
		return fmt.Errorf("pass %q: program of another renderer: %w", p.label, ErrNoProgram)
	}
	p.program = impl
	return nil
}

func (p *pass) BindTexture(unit int, t Texture) error {
	if p.ended {
		return fmt.Errorf("pass %q: bind after End: %w", p.label, ErrPassActive)
	}
	if p.program == nil {
		return fmt.Errorf("pass %q: bind unit %d: %w", p.label, unit, ErrNoProgram)
	}
	if _, ok := p.program.desc.Sampler(unit); !ok {
		return fmt.Errorf("pass %q: program %s has no sampler unit %d: %w", p.label, p.program.Key(), unit, ErrUnboundTexture)
	}
	p.textures[unit] = t
	return nil
}

func (p *pass) SetCullMode(c CullMode) {
	p.cull = c
}

func (p *pass) Draw(m *model.Mesh) error {
	if m == nil {
		return fmt.Errorf("pass %q: nil mesh: %w", p.label, ErrUnboundTexture)
	}
	call, err := p.prepare(false)
	if err != nil {
		return err
	}
	call.mesh = m
	return p.impl.draw(call)
}

func (p *pass) DrawFullscreen() error {
	call, err := p.prepare(true)
	if err != nil {
		return err
	}
	return p.impl.draw(call)
}

// prepare validates the pass state and snapshots the program values.
func (p *pass) prepare(fullscreen bool) (drawCall, error) {
	if p.ended {
		return drawCall{}, fmt.Errorf("pass %q: draw after End: %w", p.label, ErrPassActive)
	}
	if p.program == nil {
		return drawCall{}, fmt.Errorf("pass %q: draw: %w", p.label, ErrNoProgram)
	}
	desc := p.program.desc
	if desc.Fullscreen != fullscreen {
		return drawCall{}, fmt.Errorf("pass %q: program %s does not support this draw kind: %w", p.label, desc.Key, ErrNoProgram)
	}
	if len(p.fb.Color()) < desc.Targets {
		return drawCall{}, fmt.Errorf("pass %q: program %s writes %d targets, framebuffer %q has %d: %w",
			p.label, desc.Key, desc.Targets, p.fb.Label(), len(p.fb.Color()), ErrIncompleteFramebuffer)
	}
	call := drawCall{program: p.program, uniforms: p.program.snapshot(), cull: p.cull}
	for _, s := range desc.Samplers {
		t := p.textures[s.Unit]
		if t == nil && s.Kind == shader.SamplerFilter {
			continue
		}
		if t == nil {
			return drawCall{}, fmt.Errorf("pass %q: program %s unit %d (%s) has no texture: %w", p.label, desc.Key, s.Unit, s.Name, ErrUnboundTexture)
		}
		if p.attached(t) {
			return drawCall{}, fmt.Errorf("pass %q: texture %q is both sampled and attached: %w", p.label, t.Label(), ErrUnboundTexture)
		}
		call.textures[s.Unit] = t
	}
	return call, nil
}

func (p *pass) attached(t Texture) bool {
	if p.fb.Depth() == t {
		return true
	}
	for _, c := range p.fb.Color() {
		if c == t {
			return true
		}
	}
	return false
}

func (p *pass) End() error {
	if p.ended {
		return fmt.Errorf("pass %q: already ended: %w", p.label, ErrPassActive)
	}
	p.ended = true
	defer p.r.endPass(p)
	return p.impl.end()
}
