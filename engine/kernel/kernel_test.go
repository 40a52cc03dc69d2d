package kernel

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-mfs/common"
)

func TestGenerateLengths(t *testing.T) {
	for _, strategy := range []Strategy{StrategyHalton, StrategyRandom, StrategyNone} {
		for _, n := range []int{1, 2, 7, 64, 256} {
			k, err := NewGenerator(WithStrategy(strategy)).Generate(n)
			require.NoError(t, err)
			assert.Len(t, k.AntiAliasing, n, strategy.String())
			assert.Len(t, k.DepthOfField, n, strategy.String())
			assert.Len(t, k.Shadow, n, strategy.String())
			assert.Equal(t, n, k.Len())
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	for _, strategy := range []Strategy{StrategyHalton, StrategyRandom} {
		a, err := NewGenerator(WithStrategy(strategy), WithSeed(42)).Generate(32)
		require.NoError(t, err)
		b, err := NewGenerator(WithStrategy(strategy), WithSeed(42)).Generate(32)
		require.NoError(t, err)
		assert.Equal(t, a, b, strategy.String())

		c, err := NewGenerator(WithStrategy(strategy), WithSeed(43)).Generate(32)
		require.NoError(t, err)
		assert.NotEqual(t, a.AntiAliasing, c.AntiAliasing, strategy.String())
	}
}

func TestGenerateRejectsNonPositive(t *testing.T) {
	for _, n := range []int{0, -1, -100} {
		_, err := NewGenerator().Generate(n)
		require.ErrorIs(t, err, ErrInvalidFrameCount)
		assert.ErrorIs(t, err, common.ErrConfiguration)
	}
}

func TestSampleRanges(t *testing.T) {
	for _, strategy := range []Strategy{StrategyHalton, StrategyRandom} {
		k, err := NewGenerator(WithStrategy(strategy), WithSeed(7)).Generate(512)
		require.NoError(t, err)
		for i := range k.Len() {
			aa := k.AntiAliasing[i]
			assert.True(t, aa.X() >= -0.5 && aa.X() <= 0.5, "aa x %v", aa)
			assert.True(t, aa.Y() >= -0.5 && aa.Y() <= 0.5, "aa y %v", aa)
			assert.LessOrEqual(t, k.DepthOfField[i].Len(), float32(1+1e-6))
			assert.LessOrEqual(t, k.Shadow[i].Len(), float32(1+1e-6))
		}
	}
}

func TestNoneIsIdentity(t *testing.T) {
	k, err := NewGenerator(WithStrategy(StrategyNone)).Generate(4)
	require.NoError(t, err)
	for f := 1; f <= 4; f++ {
		s, err := k.Sample(f)
		require.NoError(t, err)
		assert.Equal(t, Sample{}, s)
	}
}

func TestSampleIndexing(t *testing.T) {
	k, err := NewGenerator().Generate(3)
	require.NoError(t, err)

	s, err := k.Sample(2)
	require.NoError(t, err)
	assert.Equal(t, k.AntiAliasing[1], s.AntiAliasing)
	assert.Equal(t, k.Shadow[1], s.Shadow)

	_, err = k.Sample(0)
	assert.ErrorIs(t, err, ErrInvalidFrameCount)
	_, err = k.Sample(4)
	assert.ErrorIs(t, err, ErrInvalidFrameCount)
}

func TestHalton(t *testing.T) {
	tests := []struct {
		index, base int
		want        float64
	}{
		{1, 2, 0.5},
		{2, 2, 0.25},
		{3, 2, 0.75},
		{1, 3, 1.0 / 3},
		{2, 3, 2.0 / 3},
		{3, 3, 1.0 / 9},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Halton(tt.index, tt.base), 1e-12)
	}
}

func TestHaltonCoversPixel(t *testing.T) {
	// the rotated sequence must spread over all four pixel quadrants within a few frames
	k, err := NewGenerator(WithSeed(3)).Generate(16)
	require.NoError(t, err)
	quadrants := map[[2]bool]int{}
	for _, s := range k.AntiAliasing {
		quadrants[[2]bool{s.X() >= 0, s.Y() >= 0}]++
	}
	assert.Len(t, quadrants, 4)

	var mean mgl32.Vec2
	for _, s := range k.AntiAliasing {
		mean = mean.Add(s)
	}
	mean = mean.Mul(1.0 / 16)
	assert.InDelta(t, 0, mean.X(), 0.1)
	assert.InDelta(t, 0, mean.Y(), 0.1)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("random")
	require.NoError(t, err)
	assert.Equal(t, StrategyRandom, s)

	_, err = ParseStrategy("sobol")
	assert.ErrorIs(t, err, common.ErrConfiguration)
}
