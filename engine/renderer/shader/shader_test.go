package shader

import (
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometryLayoutPacksVec3WithScalar(t *testing.T) {
	d, err := Lookup(ProgramModel)
	require.NoError(t, err)
	l := d.Layout()

	expect := map[string]int{
		"modelView":          16,
		"projection":         80,
		"groundPlaneColor":   208,
		"focalDist":          220,
		"worldLightPos":      224,
		"alpha":              236,
		"bumpType":           284,
		"ndcOffset":          304,
		"cocPoint":           312,
		"useOpacityTexture":  328,
		"useDiffuseTexture":  300,
		"useSpecularTexture": 320,
	}
	for name, offset := range expect {
		f, ok := l.Field(name)
		require.True(t, ok, name)
		assert.Equal(t, offset, f.Offset, name)
	}
	assert.Equal(t, 336, l.Size)
}

func TestSharedGeometryLayout(t *testing.T) {
	base, err := Lookup(ProgramModel)
	require.NoError(t, err)
	for _, key := range []string{ProgramZOnly, ProgramGround, ProgramGBuffer, ProgramGBufferGround} {
		d, err := Lookup(key)
		require.NoError(t, err)
		assert.Equal(t, base.Layout(), d.Layout(), key)
	}
}

func TestProcessAllPrograms(t *testing.T) {
	pp := NewPreProcessor()
	for _, key := range Keys() {
		d, err := Lookup(key)
		require.NoError(t, err)
		out, err := pp.Process(d)
		require.NoError(t, err, key)
		assert.NotContains(t, out, annotationPrefix, key)
		assert.Contains(t, out, "fn "+d.VertexEntry+"(", key)
		assert.Contains(t, out, "fn "+d.FragmentEntry+"(", key)
		for _, s := range d.Samplers {
			assert.Contains(t, out, "var t_"+s.Name+": texture_2d<f32>;", key)
		}
	}
}

func TestProcessGeneratesBindings(t *testing.T) {
	d := Descriptor{
		Key:           "test",
		VertexEntry:   "vs",
		FragmentEntry: "fs",
		Source:        "// @oxy:uniforms\n// @oxy:textures\n// @oxy:include target\n// @oxy:include target",
		Uniforms:      []Uniform{{"gain", UniformFloat}, {"flag", UniformBool}},
		Samplers:      []Sampler{{0, "a", SamplerFetch}, {3, "b", SamplerFilter}},
	}
	out, err := NewPreProcessor().Process(d)
	require.NoError(t, err)

	assert.Contains(t, out, "    orientation: vec4<f32>,\n    gain: f32,\n    flag: i32,\n")
	assert.Contains(t, out, "@group(0) @binding(0) var<uniform> u: Uniforms;")
	assert.Contains(t, out, "@group(1) @binding(0) var t_a: texture_2d<f32>;")
	assert.NotContains(t, out, "var s_a")
	assert.Contains(t, out, "@group(1) @binding(6) var t_b: texture_2d<f32>;")
	assert.Contains(t, out, "@group(1) @binding(7) var s_b: sampler;")
	assert.Equal(t, 1, strings.Count(out, "fn to_target("))
}

func TestProcessRejectsMalformedAnnotations(t *testing.T) {
	pp := NewPreProcessor()
	for _, src := range []string{
		"// @oxy:include nothing",
		"// @oxy:include",
		"// @oxy:uniforms extra",
		"// @oxy:unknown",
		"// @oxy:",
	} {
		_, err := pp.Process(Descriptor{Key: "bad", VertexEntry: "vs", FragmentEntry: "fs", Source: src})
		assert.Error(t, err, src)
	}
}

func TestValidate(t *testing.T) {
	bad := []Descriptor{
		{Key: "dup", VertexEntry: "vs", FragmentEntry: "fs", Uniforms: []Uniform{{"a", UniformFloat}, {"a", UniformInt}}},
		{Key: "unit", VertexEntry: "vs", FragmentEntry: "fs", Samplers: []Sampler{{MaxUnits, "x", SamplerFetch}}},
		{Key: "order", VertexEntry: "vs", FragmentEntry: "fs", Samplers: []Sampler{{2, "x", SamplerFetch}, {1, "y", SamplerFetch}}},
		{Key: "entry"},
	}
	for _, d := range bad {
		assert.ErrorIs(t, d.Validate(), common.ErrConfiguration, d.Key)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("present")
	assert.True(t, errors.Is(err, ErrUnknownProgram))
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestCheckAndEncode(t *testing.T) {
	assert.True(t, CheckValue(UniformFloat, float32(1)))
	assert.True(t, CheckValue(UniformBool, true))
	assert.True(t, CheckValue(UniformBool, 1))
	assert.False(t, CheckValue(UniformVec3, mgl32.Vec2{}))
	assert.False(t, CheckValue(UniformFloat, "1"))

	d := Descriptor{Key: "enc", VertexEntry: "vs", FragmentEntry: "fs", Uniforms: []Uniform{{"v", UniformVec3}, {"b", UniformBool}}}
	l := d.Layout()
	buf := make([]byte, l.Size)
	v, _ := l.Field("v")
	b, _ := l.Field("b")
	Encode(buf, v, mgl32.Vec3{1, 2, 3})
	Encode(buf, b, true)
	assert.Equal(t, common.AppendFloat32(nil, 2), buf[v.Offset+4:v.Offset+8])
	assert.Equal(t, []byte{1, 0, 0, 0}, buf[b.Offset:b.Offset+4])
	assert.Equal(t, 28, b.Offset)
}

func TestRegisteredProgramsValidate(t *testing.T) {
	for _, key := range Keys() {
		d, err := Lookup(key)
		require.NoError(t, err)
		assert.NoError(t, d.Validate(), key)
	}
	zonly, err := Lookup(ProgramZOnly)
	require.NoError(t, err)
	assert.False(t, zonly.WritesColor())

	gbuffer, err := Lookup(ProgramGBuffer)
	require.NoError(t, err)
	assert.Equal(t, 6, gbuffer.Targets)
}
