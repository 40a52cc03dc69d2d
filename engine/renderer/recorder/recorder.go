// Package recorder wraps a Renderer and records every pass call made through it. Tests use
// the record to check which sampler units and cull modes a stage touched.
package recorder

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-mfs/engine/model"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
)

// CallKind identifies a recorded pass operation.
type CallKind int

const (
	CallBeginPass CallKind = iota
	CallSetProgram
	CallBindTexture
	CallSetCullMode
	CallDraw
	CallDrawFullscreen
	CallEnd
)

// String returns the name of the call kind.
func (k CallKind) String() string {
	switch k {
	case CallBeginPass:
		return "begin"
	case CallSetProgram:
		return "program"
	case CallBindTexture:
		return "bind"
	case CallSetCullMode:
		return "cull"
	case CallDraw:
		return "draw"
	case CallDrawFullscreen:
		return "fullscreen"
	case CallEnd:
		return "end"
	}
	return fmt.Sprintf("CallKind(%d)", int(k))
}

// Call is one recorded operation. Fields that do not apply to the kind are zero.
type Call struct {
	Kind CallKind

	// Pass is the label of the pass the call was made on.
	Pass string

	// Program is the key of the program current at the time of the call.
	Program string

	Unit    int
	Texture string
	Cull    renderer.CullMode
	Mesh    string
}

// Recorder is a Renderer that records pass calls before forwarding them.
type Recorder interface {
	renderer.Renderer

	// Calls returns a copy of the calls recorded so far.
	Calls() []Call

	// Count returns how many recorded calls match.
	//
	// Parameters:
	//   - match: the predicate
	//
	// Returns:
	//   - int: the number of matching calls
	Count(match func(Call) bool) int

	// Reset drops every recorded call.
	Reset()
}

type recorderImpl struct {
	renderer.Renderer

	mu    *sync.Mutex
	calls []Call
}

var _ Recorder = &recorderImpl{}

// New wraps r.
//
// Parameters:
//   - r: the renderer receiving the forwarded calls
//
// Returns:
//   - Recorder: the recording renderer
func New(r renderer.Renderer) Recorder {
	return &recorderImpl{Renderer: r, mu: &sync.Mutex{}}
}

func (r *recorderImpl) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorderImpl) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

func (r *recorderImpl) Count(match func(Call) bool) int {
	n := 0
	for _, c := range r.Calls() {
		if match(c) {
			n++
		}
	}
	return n
}

func (r *recorderImpl) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *recorderImpl) BeginPass(fb renderer.Framebuffer, desc renderer.PassDescriptor) (renderer.Pass, error) {
	p, err := r.Renderer.BeginPass(fb, desc)
	if err != nil {
		return nil, err
	}
	r.record(Call{Kind: CallBeginPass, Pass: desc.Label})
	return &recordingPass{Pass: p, r: r}, nil
}

type recordingPass struct {
	renderer.Pass

	r       *recorderImpl
	program string
}

func (p *recordingPass) call(kind CallKind) Call {
	return Call{Kind: kind, Pass: p.Label(), Program: p.program}
}

func (p *recordingPass) SetProgram(prog renderer.Program) error {
	if err := p.Pass.SetProgram(prog); err != nil {
		return err
	}
	p.program = prog.Key()
	p.r.record(p.call(CallSetProgram))
	return nil
}

func (p *recordingPass) BindTexture(unit int, t renderer.Texture) error {
	c := p.call(CallBindTexture)
	c.Unit = unit
	if t != nil {
		c.Texture = t.Label()
	}
	p.r.record(c)
	return p.Pass.BindTexture(unit, t)
}

func (p *recordingPass) SetCullMode(mode renderer.CullMode) {
	c := p.call(CallSetCullMode)
	c.Cull = mode
	p.r.record(c)
	p.Pass.SetCullMode(mode)
}

func (p *recordingPass) Draw(m *model.Mesh) error {
	c := p.call(CallDraw)
	if m != nil {
		c.Mesh = m.Name()
	}
	p.r.record(c)
	return p.Pass.Draw(m)
}

func (p *recordingPass) DrawFullscreen() error {
	p.r.record(p.call(CallDrawFullscreen))
	return p.Pass.DrawFullscreen()
}

func (p *recordingPass) End() error {
	p.r.record(p.call(CallEnd))
	return p.Pass.End()
}
