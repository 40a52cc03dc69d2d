package stage

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/material"
)

// Light is the point light of a frame, already moved by its jitter sample.
type Light struct {
	Position  mgl32.Vec3
	Direction mgl32.Vec3
	Near      float32
	Far       float32
	Intensity float32
}

// DefaultLightDirection points the shadow camera straight down.
var DefaultLightDirection = mgl32.Vec3{0, -1, 0}

// lightUp is the up vector of the shadow camera. It must not be parallel to the light direction.
var lightUp = mgl32.Vec3{1, 0, 0}

// ErrMissingMaterial is returned when drawables reference a material the library lacks.
var ErrMissingMaterial = fmt.Errorf("missing material: %w", common.ErrResourceMismatch)

func lookupMaterial(lib material.Library, name string) (material.Material, error) {
	m, ok := lib[name]
	if !ok || m == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingMaterial, name)
	}
	return m, nil
}

// cullFor returns the cull mode of a material. Alpha tested geometry may be seen from both sides.
func cullFor(m material.Material) renderer.CullMode {
	if m.AlphaTested() {
		return renderer.CullNone
	}
	return renderer.CullBack
}

// target is a set of same sized textures owned by one stage.
type target struct {
	textures []renderer.Texture
	fb       renderer.Framebuffer
}

func (t *target) release() {
	for _, tex := range t.textures {
		tex.Release()
	}
	t.textures = nil
	t.fb = nil
}

// newTarget creates textures of the given formats and groups them into a framebuffer. A depth
// format in the list becomes the depth attachment.
func newTarget(r renderer.Renderer, label string, width, height int, formats []renderer.Format, names []string) (*target, error) {
	t := &target{}
	desc := renderer.FramebufferDescriptor{Label: label}
	for i, f := range formats {
		tex, err := r.CreateTexture(renderer.TextureDescriptor{
			Label:  label + "." + names[i],
			Width:  width,
			Height: height,
			Format: f,
			Filter: renderer.FilterNearest,
			Wrap:   renderer.WrapClamp,
		})
		if err != nil {
			t.release()
			return nil, err
		}
		t.textures = append(t.textures, tex)
		if f.IsDepth() {
			desc.Depth = tex
		} else {
			desc.Color = append(desc.Color, tex)
		}
	}
	fb, err := r.CreateFramebuffer(desc)
	if err != nil {
		t.release()
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	t.fb = fb
	return t, nil
}

// runPass opens a pass, runs fn and always ends the pass again.
func runPass(r renderer.Renderer, fb renderer.Framebuffer, desc renderer.PassDescriptor, fn func(p renderer.Pass) error) (err error) {
	p, err := r.BeginPass(fb, desc)
	if err != nil {
		return err
	}
	defer func() {
		if endErr := p.End(); err == nil {
			err = endErr
		}
	}()
	return fn(p)
}

// fullscreen draws prog over fb with textures bound by unit.
func fullscreen(r renderer.Renderer, fb renderer.Framebuffer, label string, prog renderer.Program, textures map[int]renderer.Texture) error {
	return runPass(r, fb, renderer.PassDescriptor{Label: label, DepthCompare: renderer.CompareAlways}, func(p renderer.Pass) error {
		if err := p.SetProgram(prog); err != nil {
			return err
		}
		for unit, t := range textures {
			if err := p.BindTexture(unit, t); err != nil {
				return err
			}
		}
		return p.DrawFullscreen()
	})
}

// output is a single color target reallocated whenever the requested size changes.
type output struct {
	label  string
	format renderer.Format
	t      *target
}

// ensure makes the target width x height and reports whether it was reallocated.
func (o *output) ensure(r renderer.Renderer, width, height int) (bool, error) {
	if o.t != nil {
		tex := o.t.textures[0]
		if tex.Width() == width && tex.Height() == height {
			return false, nil
		}
		o.t.release()
		o.t = nil
	}
	t, err := newTarget(r, o.label, width, height, []renderer.Format{o.format}, []string{"color"})
	if err != nil {
		return false, err
	}
	o.t = t
	return true, nil
}

func (o *output) texture() renderer.Texture {
	if o.t == nil {
		return nil
	}
	return o.t.textures[0]
}

func (o *output) release() {
	if o.t != nil {
		o.t.release()
		o.t = nil
	}
}
