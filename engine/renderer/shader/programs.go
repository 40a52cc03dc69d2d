package shader

import (
	_ "embed"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-mfs/common"
)

//go:embed assets/vertex.wgsl
var vertexSource string

//go:embed assets/target.wgsl
var targetSource string

//go:embed assets/fullscreen.wgsl
var fullscreenSource string

//go:embed assets/vsm.wgsl
var vsmSource string

//go:embed assets/shading.wgsl
var shadingSource string

//go:embed assets/geometry.wgsl
var geometrySource string

//go:embed assets/outputs.wgsl
var outputsSource string

//go:embed assets/model.wgsl
var modelSource string

//go:embed assets/ground.wgsl
var groundSource string

//go:embed assets/zonly.wgsl
var zonlySource string

//go:embed assets/shadowmap.wgsl
var shadowmapSource string

//go:embed assets/shadowblur.wgsl
var shadowblurSource string

//go:embed assets/deferred.wgsl
var deferredSource string

//go:embed assets/ssao.wgsl
var ssaoSource string

//go:embed assets/accumulate.wgsl
var accumulateSource string

//go:embed assets/blit.wgsl
var blitSource string

// ErrUnknownProgram is returned when a program key is not registered.
var ErrUnknownProgram = fmt.Errorf("unknown program: %w", common.ErrConfiguration)

// Program keys.
const (
	ProgramShadowMap       = "shadowmap"
	ProgramShadowBlur      = "shadowblur"
	ProgramZOnly           = "zonly"
	ProgramModel           = "model"
	ProgramGround          = "ground"
	ProgramGBuffer         = "gbuffer"
	ProgramGBufferGround   = "gbuffer_ground"
	ProgramDeferredShading = "deferredshading"
	ProgramSSAO            = "ssao"
	ProgramAccumulate      = "accumulate"
	ProgramBlit            = "blit"
)

// Sampler units shared by every program that draws meshes.
const (
	UnitShadow = iota
	UnitMask
	UnitNoise
	UnitDiffuse
	UnitSpecular
	UnitEmissive
	UnitOpacity
	UnitBump
)

// Sampler units of the deferred shading program.
const (
	DeferredUnitShadow = iota
	DeferredUnitDiffuse
	DeferredUnitSpecular
	DeferredUnitEmissive
	DeferredUnitFaceNormal
	DeferredUnitNormal
	DeferredUnitWorldPos
	DeferredUnitFlux
	DeferredUnitShadowNormal
)

// Sampler units of the screen space occlusion program. The noise texture keeps its shared unit.
const (
	SSAOUnitColor  = 0
	SSAOUnitNormal = 1
	SSAOUnitNoise  = UnitNoise
	SSAOUnitWorld  = 3
)

// Sampler units of the accumulation program.
const (
	AccumulateUnitCurrent = 0
	AccumulateUnitHistory = 1
)

// geometryUniforms is the block shared by every program that rasterizes scene meshes from
// the camera. Sharing one layout lets a single upload serve the whole pass.
var geometryUniforms = []Uniform{
	{"modelView", UniformMat4},
	{"projection", UniformMat4},
	{"biasedShadowTransform", UniformMat4},
	{"groundPlaneColor", UniformVec3},
	{"focalDist", UniformFloat},
	{"worldLightPos", UniformVec3},
	{"alpha", UniformFloat},
	{"cameraEye", UniformVec3},
	{"shininess", UniformFloat},
	{"diffuseColor", UniformVec3},
	{"lightIntensity", UniformFloat},
	{"specularColor", UniformVec3},
	{"bumpType", UniformInt},
	{"emissiveColor", UniformVec3},
	{"useDiffuseTexture", UniformBool},
	{"ndcOffset", UniformVec2},
	{"cocPoint", UniformVec2},
	{"useSpecularTexture", UniformBool},
	{"useEmissiveTexture", UniformBool},
	{"useOpacityTexture", UniformBool},
}

var materialSamplers = []Sampler{
	{UnitShadow, "shadow", SamplerFetch},
	{UnitDiffuse, "diffuse", SamplerFilter},
	{UnitSpecular, "specular", SamplerFilter},
	{UnitEmissive, "emissive", SamplerFilter},
	{UnitOpacity, "opacity", SamplerFilter},
	{UnitBump, "bump", SamplerFilter},
}

var registry = map[string]Descriptor{
	ProgramShadowMap: {
		Key:           ProgramShadowMap,
		Targets:       3,
		Source:        shadowmapSource,
		VertexEntry:   "vs_shadow",
		FragmentEntry: "fs_shadow",
		Uniforms: []Uniform{
			{"lightViewProjection", UniformMat4},
			{"lightWorldPos", UniformVec3},
			{"alpha", UniformFloat},
			{"diffuseColor", UniformVec3},
			{"lightIntensity", UniformFloat},
			{"useDiffuseTexture", UniformBool},
			{"useOpacityTexture", UniformBool},
		},
		Samplers: []Sampler{
			{UnitDiffuse, "diffuse", SamplerFilter},
			{UnitOpacity, "opacity", SamplerFilter},
		},
	},
	ProgramShadowBlur: {
		Key:           ProgramShadowBlur,
		Targets:       1,
		Source:        shadowblurSource,
		VertexEntry:   "vs_fullscreen",
		FragmentEntry: "fs_blur",
		Fullscreen:    true,
		Uniforms: []Uniform{
			{"direction", UniformVec2},
			{"radius", UniformInt},
		},
		Samplers: []Sampler{{0, "source", SamplerFetch}},
	},
	ProgramZOnly: {
		Key:           ProgramZOnly,
		Source:        zonlySource,
		VertexEntry:   "vs_geometry",
		FragmentEntry: "fs_zonly",
		Uniforms:      geometryUniforms,
	},
	ProgramModel: {
		Key:           ProgramModel,
		Targets:       3,
		Source:        modelSource,
		VertexEntry:   "vs_geometry",
		FragmentEntry: "fs_model",
		Uniforms:      geometryUniforms,
		Samplers:      materialSamplers,
	},
	ProgramGround: {
		Key:           ProgramGround,
		Targets:       3,
		Source:        groundSource,
		VertexEntry:   "vs_geometry",
		FragmentEntry: "fs_ground",
		Uniforms:      geometryUniforms,
		Samplers:      []Sampler{{UnitShadow, "shadow", SamplerFetch}},
	},
	ProgramGBuffer: {
		Key:           ProgramGBuffer,
		Targets:       6,
		Source:        modelSource,
		VertexEntry:   "vs_geometry",
		FragmentEntry: "fs_gbuffer",
		Uniforms:      geometryUniforms,
		Samplers:      materialSamplers,
	},
	ProgramGBufferGround: {
		Key:           ProgramGBufferGround,
		Targets:       6,
		Source:        groundSource,
		VertexEntry:   "vs_geometry",
		FragmentEntry: "fs_gbuffer_ground",
		Uniforms:      geometryUniforms,
		Samplers:      []Sampler{{UnitShadow, "shadow", SamplerFetch}},
	},
	ProgramDeferredShading: {
		Key:           ProgramDeferredShading,
		Targets:       1,
		Source:        deferredSource,
		VertexEntry:   "vs_fullscreen",
		FragmentEntry: "fs_deferred",
		Fullscreen:    true,
		Uniforms: []Uniform{
			{"biasedShadowTransform", UniformMat4},
			{"inverseShadowTransform", UniformMat4},
			{"worldLightPos", UniformVec3},
			{"lightIntensity", UniformFloat},
			{"cameraEye", UniformVec3},
			{"indirectStrength", UniformFloat},
			{"groundPlaneColor", UniformVec3},
			{"indirectRadius", UniformFloat},
			{"useIndirect", UniformBool},
		},
		Samplers: []Sampler{
			{DeferredUnitShadow, "shadow", SamplerFetch},
			{DeferredUnitDiffuse, "diffuse", SamplerFetch},
			{DeferredUnitSpecular, "specular", SamplerFetch},
			{DeferredUnitEmissive, "emissive", SamplerFetch},
			{DeferredUnitFaceNormal, "face", SamplerFetch},
			{DeferredUnitNormal, "normal", SamplerFetch},
			{DeferredUnitWorldPos, "world", SamplerFetch},
			{DeferredUnitFlux, "flux", SamplerFetch},
			{DeferredUnitShadowNormal, "shadowNormal", SamplerFetch},
		},
	},
	ProgramSSAO: {
		Key:           ProgramSSAO,
		Targets:       1,
		Source:        ssaoSource,
		VertexEntry:   "vs_fullscreen",
		FragmentEntry: "fs_ssao",
		Fullscreen:    true,
		Uniforms: []Uniform{
			{"modelView", UniformMat4},
			{"projection", UniformMat4},
			{"ndcOffset", UniformVec2},
			{"radius", UniformFloat},
			{"strength", UniformFloat},
			{"useOcclusion", UniformBool},
		},
		Samplers: []Sampler{
			{SSAOUnitColor, "color", SamplerFetch},
			{SSAOUnitNormal, "normal", SamplerFetch},
			{SSAOUnitNoise, "noise", SamplerFetch},
			{SSAOUnitWorld, "world", SamplerFetch},
		},
	},
	ProgramAccumulate: {
		Key:           ProgramAccumulate,
		Targets:       1,
		Source:        accumulateSource,
		VertexEntry:   "vs_fullscreen",
		FragmentEntry: "fs_accumulate",
		Fullscreen:    true,
		Uniforms:      []Uniform{{"weight", UniformFloat}},
		Samplers: []Sampler{
			{AccumulateUnitCurrent, "current", SamplerFetch},
			{AccumulateUnitHistory, "history", SamplerFetch},
		},
	},
	ProgramBlit: {
		Key:           ProgramBlit,
		Targets:       1,
		Source:        blitSource,
		VertexEntry:   "vs_fullscreen",
		FragmentEntry: "fs_blit",
		Fullscreen:    true,
		Uniforms:      []Uniform{{"exposure", UniformFloat}},
		Samplers:      []Sampler{{0, "source", SamplerFetch}},
	},
}

// Lookup returns the descriptor registered under key.
//
// Parameters:
//   - key: the program key
//
// Returns:
//   - Descriptor: the registered program
//   - error: ErrUnknownProgram when key is not registered
func Lookup(key string) (Descriptor, error) {
	d, ok := registry[key]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownProgram, key)
	}
	return d, nil
}

// Keys returns every registered program key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
