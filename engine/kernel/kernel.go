// Package kernel generates the per-frame jitter samples that drive progressive refinement:
// sub-pixel offsets for anti-aliasing, lens offsets for depth of field and light offsets
// for soft shadows.
package kernel

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-mfs/common"
)

// ErrInvalidFrameCount is returned by Generate when the requested length is not positive.
var ErrInvalidFrameCount = fmt.Errorf("%w: max frames must be positive", common.ErrConfiguration)

// Strategy selects the distribution the samples are drawn from.
type Strategy int

const (
	// StrategyHalton uses the base-2/base-3 Halton sequence shifted by a seeded rotation.
	StrategyHalton Strategy = iota
	// StrategyRandom draws independent samples from a seeded PCG source.
	StrategyRandom
	// StrategyNone produces all-zero samples, which renders every frame identically.
	StrategyNone
)

// String returns the lower-case strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyHalton:
		return "halton"
	case StrategyRandom:
		return "random"
	case StrategyNone:
		return "none"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy converts a strategy name back into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	for _, s := range []Strategy{StrategyHalton, StrategyRandom, StrategyNone} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kernel strategy %q", common.ErrConfiguration, name)
}

// Sample is the jitter for a single frame.
type Sample struct {
	// AntiAliasing is the sub-pixel offset in pixels, within [-0.5, 0.5]^2.
	AntiAliasing mgl32.Vec2
	// DepthOfField is the lens offset inside the unit disk.
	DepthOfField mgl32.Vec2
	// Shadow is the light offset inside the unit disk.
	Shadow mgl32.Vec2
}

// JitterKernel holds three parallel sample sequences of equal length, indexed by frame - 1.
type JitterKernel struct {
	AntiAliasing []mgl32.Vec2
	DepthOfField []mgl32.Vec2
	Shadow       []mgl32.Vec2
}

// Len returns the number of frames the kernel covers.
func (k JitterKernel) Len() int {
	return len(k.AntiAliasing)
}

// Sample returns the jitter of a 1-based frame number.
//
// Parameters:
//   - frame: the frame number, in [1, Len()]
//
// Returns:
//   - Sample: the samples of that frame
//   - error: ErrInvalidFrameCount wrapped with the offending frame when out of range
func (k JitterKernel) Sample(frame int) (Sample, error) {
	if frame < 1 || frame > k.Len() {
		return Sample{}, fmt.Errorf("frame %d outside kernel of length %d: %w", frame, k.Len(), ErrInvalidFrameCount)
	}
	i := frame - 1
	return Sample{
		AntiAliasing: k.AntiAliasing[i],
		DepthOfField: k.DepthOfField[i],
		Shadow:       k.Shadow[i],
	}, nil
}

// Generator produces JitterKernels. Implementations are deterministic: equal configuration
// and equal maxFrames always give bit-identical kernels.
type Generator interface {
	// Generate builds the three sample sequences for maxFrames frames.
	//
	// Parameters:
	//   - maxFrames: the sequence length, must be > 0
	//
	// Returns:
	//   - JitterKernel: the generated kernel
	//   - error: ErrInvalidFrameCount if maxFrames <= 0
	Generate(maxFrames int) (JitterKernel, error)

	// Strategy returns the configured sampling strategy.
	//
	// Returns:
	//   - Strategy: the strategy
	Strategy() Strategy

	// Seed returns the configured seed.
	//
	// Returns:
	//   - uint64: the seed
	Seed() uint64
}

type generatorImpl struct {
	strategy Strategy
	seed     uint64
}

var _ Generator = &generatorImpl{}

// NewGenerator creates a Generator. Without options it uses the Halton strategy and seed 1.
//
// Parameters:
//   - options: variadic list of GeneratorBuilderOption functions
//
// Returns:
//   - Generator: the configured generator
func NewGenerator(options ...GeneratorBuilderOption) Generator {
	g := &generatorImpl{
		strategy: StrategyHalton,
		seed:     1,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *generatorImpl) Strategy() Strategy {
	return g.strategy
}

func (g *generatorImpl) Seed() uint64 {
	return g.seed
}

func (g *generatorImpl) Generate(maxFrames int) (JitterKernel, error) {
	if maxFrames <= 0 {
		return JitterKernel{}, fmt.Errorf("generate %d frames: %w", maxFrames, ErrInvalidFrameCount)
	}

	k := JitterKernel{
		AntiAliasing: make([]mgl32.Vec2, maxFrames),
		DepthOfField: make([]mgl32.Vec2, maxFrames),
		Shadow:       make([]mgl32.Vec2, maxFrames),
	}
	if g.strategy == StrategyNone {
		return k, nil
	}

	// one stream per sequence so changing one use never perturbs the others
	aa := rand.New(rand.NewPCG(g.seed, 0x61612d6a69747465))
	dof := rand.New(rand.NewPCG(g.seed, 0x646f662d6a697474))
	shadow := rand.New(rand.NewPCG(g.seed, 0x736861646f772d6a))

	switch g.strategy {
	case StrategyHalton:
		fill(k.AntiAliasing, aa, toPixelOffset)
		fill(k.DepthOfField, dof, toDisk)
		fill(k.Shadow, shadow, toDisk)
	case StrategyRandom:
		random(k.AntiAliasing, aa, toPixelOffset)
		random(k.DepthOfField, dof, toDisk)
		random(k.Shadow, shadow, toDisk)
	default:
		return JitterKernel{}, fmt.Errorf("%w: unsupported kernel strategy %s", common.ErrConfiguration, g.strategy)
	}
	return k, nil
}

// fill writes a Cranley-Patterson rotated Halton (2, 3) sequence mapped through warp.
func fill(dst []mgl32.Vec2, r *rand.Rand, warp func(u, v float64) mgl32.Vec2) {
	du, dv := r.Float64(), r.Float64()
	for i := range dst {
		u := common.Fract(Halton(i+1, 2) + du)
		v := common.Fract(Halton(i+1, 3) + dv)
		dst[i] = warp(u, v)
	}
}

func random(dst []mgl32.Vec2, r *rand.Rand, warp func(u, v float64) mgl32.Vec2) {
	for i := range dst {
		dst[i] = warp(r.Float64(), r.Float64())
	}
}

// Halton returns the radical inverse of index in the given base.
//
// Parameters:
//   - index: the 1-based sequence index
//   - base: the prime base
//
// Returns:
//   - float64: the sample in [0, 1)
func Halton(index, base int) float64 {
	f, result := 1.0, 0.0
	for i := index; i > 0; i /= base {
		f /= float64(base)
		result += f * float64(i%base)
	}
	return result
}

func toPixelOffset(u, v float64) mgl32.Vec2 {
	return mgl32.Vec2{float32(u - 0.5), float32(v - 0.5)}
}

// toDisk applies Shirley's concentric square-to-disk mapping.
func toDisk(u, v float64) mgl32.Vec2 {
	a, b := 2*u-1, 2*v-1
	if a == 0 && b == 0 {
		return mgl32.Vec2{}
	}
	var r, phi float64
	if math.Abs(a) > math.Abs(b) {
		r, phi = a, (math.Pi/4)*(b/a)
	} else {
		r, phi = b, math.Pi/2-(math.Pi/4)*(a/b)
	}
	return mgl32.Vec2{float32(r * math.Cos(phi)), float32(r * math.Sin(phi))}
}
