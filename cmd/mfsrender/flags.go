package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/kernel"
	"github.com/Carmen-Shannon/oxy-mfs/engine/painter"
	"github.com/Carmen-Shannon/oxy-mfs/engine/preset"
	"github.com/Carmen-Shannon/oxy-mfs/engine/profiler"
	"github.com/Carmen-Shannon/oxy-mfs/engine/stage"
	"github.com/Carmen-Shannon/oxy-mfs/examples"
)

// pipelineFlags are the scene and pipeline settings shared by render and view.
type pipelineFlags struct {
	preset string
	scene  string

	mode     string
	kernel   string
	seed     uint64
	frames   int
	exposure float32
	prepass  string

	occlusion  bool
	indirect   bool
	shadowSize int
	shadowBlur int
	ground     bool
	profile    bool

	fs *pflag.FlagSet
}

func (f *pipelineFlags) register(fs *pflag.FlagSet) {
	f.fs = fs
	fs.StringVar(&f.preset, "preset", "default", "built-in preset name or a .toml/.yaml preset file")
	fs.StringVar(&f.scene, "scene", "boxes", "demo scene name")
	fs.StringVar(&f.mode, "mode", "direct", "geometry pass variant: direct or deferred")
	fs.StringVar(&f.kernel, "kernel", "halton", "jitter kernel strategy: halton, random or none")
	fs.Uint64Var(&f.seed, "seed", 1, "jitter kernel seed")
	fs.IntVar(&f.frames, "frames", 0, "override the preset frame count")
	fs.Float32Var(&f.exposure, "exposure", 1, "override the preset exposure")
	fs.StringVar(&f.prepass, "prepass", "auto", "depth prepass: auto, on or off")
	fs.BoolVar(&f.occlusion, "ssao", true, "screen space ambient occlusion")
	fs.BoolVar(&f.indirect, "indirect", false, "reflective shadow map bounce (deferred mode only)")
	fs.IntVar(&f.shadowSize, "shadow-size", 512, "shadow map edge length in texels")
	fs.IntVar(&f.shadowBlur, "shadow-blur", 0, "shadow map box blur radius, 0 disables")
	fs.BoolVar(&f.ground, "ground", true, "draw the ground plane")
	fs.BoolVar(&f.profile, "profile", false, "log stage timings once per second")
}

// loadPreset resolves the preset flag and applies the overrides.
func (f *pipelineFlags) loadPreset() (preset.Preset, error) {
	var (
		p   preset.Preset
		err error
	)
	if _, statErr := os.Stat(f.preset); statErr == nil {
		p, err = preset.Load(f.preset)
	} else {
		p, err = preset.Builtin(f.preset)
	}
	if err != nil {
		return preset.Preset{}, err
	}
	if f.frames > 0 {
		p.MaxFrames = f.frames
	}
	if f.fs != nil && f.fs.Changed("exposure") {
		p.Exposure = f.exposure
	}
	return p, p.Validate()
}

func parseMode(name string) (stage.Mode, error) {
	for _, m := range []stage.Mode{stage.ModeDirect, stage.ModeDeferred} {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown mode %q", common.ErrConfiguration, name)
}

func parsePrepass(name string) (stage.PrepassMode, error) {
	switch name {
	case "auto":
		return stage.PrepassAuto, nil
	case "on":
		return stage.PrepassOn, nil
	case "off":
		return stage.PrepassOff, nil
	}
	return 0, fmt.Errorf("%w: unknown prepass mode %q", common.ErrConfiguration, name)
}

// build returns the demo scene and the painter options described by the flags.
func (f *pipelineFlags) build() (painter.Scene, []painter.PainterBuilderOption, error) {
	p, err := f.loadPreset()
	if err != nil {
		return painter.Scene{}, nil, err
	}
	scene, err := examples.Scene(f.scene)
	if err != nil {
		return painter.Scene{}, nil, err
	}
	mode, err := parseMode(f.mode)
	if err != nil {
		return painter.Scene{}, nil, err
	}
	prepass, err := parsePrepass(f.prepass)
	if err != nil {
		return painter.Scene{}, nil, err
	}
	strategy, err := kernel.ParseStrategy(f.kernel)
	if err != nil {
		return painter.Scene{}, nil, err
	}

	options := []painter.PainterBuilderOption{
		painter.WithPreset(p),
		painter.WithMode(mode),
		painter.WithKernelGenerator(kernel.NewGenerator(kernel.WithStrategy(strategy), kernel.WithSeed(f.seed))),
		painter.WithShadowOptions(stage.WithShadowSize(f.shadowSize), stage.WithShadowBlur(f.shadowBlur)),
		painter.WithGeometryOptions(stage.WithPrepass(prepass), stage.WithGround(f.ground, 200)),
		painter.WithPostprocessingOptions(stage.WithOcclusion(f.occlusion, 0.5, 1)),
	}
	if f.indirect {
		if mode != stage.ModeDeferred {
			return painter.Scene{}, nil, fmt.Errorf("%w: --indirect needs --mode deferred", common.ErrConfiguration)
		}
		options = append(options, painter.WithDeferredOptions(stage.WithIndirect(1, 0.1)))
	}
	if f.profile {
		options = append(options, painter.WithProfiler(profiler.NewProfiler()))
	}
	return scene, options, nil
}
