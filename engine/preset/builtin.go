package preset

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/material"
)

var builtin = map[string]func() Preset{
	"default": Default,
	"depth-of-field": func() Preset {
		p := Default()
		p.Name = "depth-of-field"
		p.UseDOF = true
		p.FocalDist = 5
		p.FocalPoint = 0.08
		p.MaxFrames = 64
		return p
	},
	"soft-shadows": func() Preset {
		p := Default()
		p.Name = "soft-shadows"
		p.LightPosition = [3]float32{1, 6, 1}
		p.LightMaxShift = 1.5
		p.MaxFrames = 64
		return p
	},
	"bumpy": func() Preset {
		p := Default()
		p.Name = "bumpy"
		p.BumpType = material.BumpNormal
		return p
	},
}

// Builtin returns a named built-in preset.
//
// Parameters:
//   - name: one of Names()
//
// Returns:
//   - Preset: the preset
//   - error: common.ErrConfiguration for unknown names
func Builtin(name string) (Preset, error) {
	fn, ok := builtin[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: unknown preset %q", common.ErrConfiguration, name)
	}
	return fn(), nil
}

// Names lists the built-in presets in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
