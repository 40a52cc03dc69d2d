package renderer

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-mfs/common"
	"github.com/Carmen-Shannon/oxy-mfs/engine/model"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// Shading constants shared with the WGSL sources.
const (
	ambient        = 0.15
	maxShininess   = 256.0
	shadowBias     = 0.995
	minVariance    = 0.00002
	bleedReduction = 0.2
	bumpScale      = 4.0
	rsmSamples     = 16
	aoSamples      = 8
	goldenAngle    = 2.39996323
)

// Varying slots written by the geometry vertex stage.
const (
	slotWorld   = 0
	slotNormal  = 3
	slotUV      = 6
	slotTangent = 8
)

// softTextures is the set of bound textures of one draw, indexed by sampler unit.
type softTextures [shader.MaxUnits]*softTexture

// binder builds the shader of a draw from its uniform snapshot and textures.
type binder func(u Uniforms, t softTextures) softwareShader

// softwarePrograms maps each registered program key to its CPU implementation.
var softwarePrograms = map[string]binder{
	shader.ProgramShadowMap:       bindShadowMap,
	shader.ProgramShadowBlur:      bindShadowBlur,
	shader.ProgramZOnly:           bindZOnly,
	shader.ProgramModel:           bindModel(false),
	shader.ProgramGBuffer:         bindModel(true),
	shader.ProgramGround:          bindGround(false),
	shader.ProgramGBufferGround:   bindGround(true),
	shader.ProgramDeferredShading: bindDeferred,
	shader.ProgramSSAO:            bindSSAO,
	shader.ProgramAccumulate:      bindAccumulate,
	shader.ProgramBlit:            bindBlit,
}

type softwareProgram struct {
	key  string
	bind binder
}

func (p *softwareProgram) release() {}

func newSoftwareProgram(desc shader.Descriptor) (*softwareProgram, error) {
	b, ok := softwarePrograms[desc.Key]
	if !ok {
		return nil, fmt.Errorf("software backend has no implementation of %q: %w", desc.Key, ErrUnknownProgram)
	}
	return &softwareProgram{key: desc.Key, bind: b}, nil
}

func (v *varyings) setVec2(slot int, x mgl32.Vec2) {
	copy(v[slot:slot+2], x[:])
}

func (v *varyings) setVec3(slot int, x mgl32.Vec3) {
	copy(v[slot:slot+3], x[:])
}

func (v *varyings) setVec4(slot int, x mgl32.Vec4) {
	copy(v[slot:slot+4], x[:])
}

func (v *varyings) vec2(slot int) mgl32.Vec2 {
	return mgl32.Vec2{v[slot], v[slot+1]}
}

func (v *varyings) vec3(slot int) mgl32.Vec3 {
	return mgl32.Vec3{v[slot], v[slot+1], v[slot+2]}
}

func (v *varyings) vec4(slot int) mgl32.Vec4 {
	return mgl32.Vec4{v[slot], v[slot+1], v[slot+2], v[slot+3]}
}

func smoothstep(lo, hi, x float32) float32 {
	t := common.Clamp((x-lo)/(hi-lo), 0, 1)
	return t * t * (3 - 2*t)
}

func pow(x, y float32) float32 {
	return float32(math.Pow(float64(x), float64(y)))
}

func project(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec4 {
	return m.Mul4x1(p.Vec4(1))
}

func outside(st mgl32.Vec2) bool {
	return st[0] < 0 || st[1] < 0 || st[0] > 1 || st[1] > 1
}

func minMax2(v mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{min(v[0], common.MaxFloat), min(v[1], common.MaxFloat)}
}

// geometryVertex applies the depth of field shear in view space and the anti-aliasing offset
// in clip space.
func geometryVertex(u Uniforms) vertexFunc {
	modelView := u.Mat4("modelView")
	projection := u.Mat4("projection")
	coc := u.Vec2("cocPoint")
	ndc := u.Vec2("ndcOffset")
	focal := u.Float("focalDist")
	return func(v model.Vertex) (mgl32.Vec4, varyings) {
		view := project(modelView, v.Position)
		shear := coc.Mul(-view[2]/focal - 1)
		view[0] += shear[0]
		view[1] += shear[1]
		clip := projection.Mul4x1(view)
		clip[0] += ndc[0] * clip[3]
		clip[1] += ndc[1] * clip[3]

		var out varyings
		out.setVec3(slotWorld, v.Position)
		out.setVec3(slotNormal, v.Normal)
		out.setVec2(slotUV, v.TexCoord)
		out.setVec4(slotTangent, v.Tangent)
		return clip, out
	}
}

type surface struct {
	albedo    mgl32.Vec3
	specular  mgl32.Vec3
	shininess float32
	emissive  mgl32.Vec3
	normal    mgl32.Vec3
	face      mgl32.Vec3
}

// lighting evaluates the point light with variance shadow mapping.
type lighting struct {
	shadow          *softTexture
	shadowTransform mgl32.Mat4
	lightPos        mgl32.Vec3
	eye             mgl32.Vec3
	intensity       float32
}

func newLighting(u Uniforms, shadow *softTexture) lighting {
	return lighting{
		shadow:          shadow,
		shadowTransform: u.Mat4("biasedShadowTransform"),
		lightPos:        u.Vec3("worldLightPos"),
		eye:             u.Vec3("cameraEye"),
		intensity:       u.Float("lightIntensity"),
	}
}

func chebyshev(m mgl32.Vec2, d float32) float32 {
	if d <= m[0] {
		return 1
	}
	variance := max(m[1]-m[0]*m[0], minVariance)
	delta := d - m[0]
	p := variance / (variance + delta*delta)
	return common.Clamp((p-bleedReduction)/(1-bleedReduction), 0, 1)
}

// moments filters the first two shadow map channels bilinearly.
func (l lighting) moments(st mgl32.Vec2) mgl32.Vec2 {
	px := st[0]*float32(l.shadow.width) - 0.5
	py := st[1]*float32(l.shadow.height) - 0.5
	bx, by := float32(math.Floor(float64(px))), float32(math.Floor(float64(py)))
	fx, fy := px-bx, py-by
	x0, y0 := int(bx), int(by)
	m := func(x, y int) mgl32.Vec2 { return l.shadow.load(x, y).Vec2() }
	mix := func(a, b mgl32.Vec2, f float32) mgl32.Vec2 { return minMax2(a.Add(b.Sub(a).Mul(f))) }
	bottom := mix(m(x0, y0), m(x0+1, y0), fx)
	top := mix(m(x0, y0+1), m(x0+1, y0+1), fx)
	return mix(bottom, top, fy)
}

func (l lighting) visibility(world mgl32.Vec3, dist float32) float32 {
	s := project(l.shadowTransform, world)
	if s[3] <= 0 {
		return 1
	}
	st := mgl32.Vec2{s[0] / s[3], s[1] / s[3]}
	if outside(st) {
		return 1
	}
	return chebyshev(l.moments(st), dist*shadowBias)
}

// shade is Blinn-Phong with ambient and emissive terms.
func (l lighting) shade(s surface, world mgl32.Vec3) mgl32.Vec3 {
	toLight := l.lightPos.Sub(world)
	dist := toLight.Len()
	dir := toLight.Mul(1 / max(dist, 0.000001))
	h := dir.Add(l.eye.Sub(world).Normalize()).Normalize()
	ndl := max(s.normal.Dot(dir), 0)
	var spec float32
	if ndl > 0 {
		spec = pow(max(s.normal.Dot(h), 0), s.shininess)
	}
	vis := l.visibility(world, dist)
	direct := s.albedo.Mul(ndl).Add(s.specular.Mul(spec)).Mul(l.intensity * vis)
	return s.emissive.Add(s.albedo.Mul(ambient)).Add(direct)
}

// output writes the surface either as lit color with normal and position, or as G-buffer.
func (l lighting) output(f *fragment, s surface, world mgl32.Vec3, gbuffer bool) {
	if gbuffer {
		f.out[0] = s.albedo.Vec4(1)
		f.out[1] = s.specular.Vec4(common.Clamp(s.shininess/maxShininess, 0, 1))
		f.out[2] = s.emissive.Vec4(1)
		f.out[3] = s.face.Vec4(1)
		f.out[4] = s.normal.Vec4(1)
		f.out[5] = world.Vec4(1)
		return
	}
	f.out[0] = l.shade(s, world).Vec4(1)
	f.out[1] = s.normal.Vec4(1)
	f.out[2] = world.Vec4(1)
}

func faceNormal(f *fragment) mgl32.Vec3 {
	n := f.in.vec3(slotNormal).Normalize()
	if !f.front {
		n = n.Mul(-1)
	}
	return n
}

func bindShadowMap(u Uniforms, t softTextures) softwareShader {
	lightVP := u.Mat4("lightViewProjection")
	lightPos := u.Vec3("lightWorldPos")
	color := u.Vec3("diffuseColor")
	intensity := u.Float("lightIntensity")
	alpha := u.Float("alpha")
	useDiffuse, useOpacity := u.Bool("useDiffuseTexture"), u.Bool("useOpacityTexture")
	return softwareShader{
		vertex: func(v model.Vertex) (mgl32.Vec4, varyings) {
			var out varyings
			out.setVec3(slotWorld, v.Position)
			out.setVec3(slotNormal, v.Normal)
			out.setVec2(slotUV, v.TexCoord)
			return project(lightVP, v.Position), out
		},
		fragment: func(f *fragment) bool {
			uv := f.in.vec2(slotUV)
			albedo := color
			opacity := float32(1)
			if useDiffuse {
				c := t[shader.UnitDiffuse].sample(uv)
				albedo = mgl32.Vec3{albedo[0] * c[0], albedo[1] * c[1], albedo[2] * c[2]}
			}
			if useOpacity {
				opacity = t[shader.UnitOpacity].sample(uv)[0]
			}
			if opacity < alpha {
				return false
			}
			d := f.in.vec3(slotWorld).Sub(lightPos).Len()
			f.out[0] = mgl32.Vec4{d, d * d, 1, 0}
			f.out[1] = albedo.Mul(intensity).Vec4(1)
			f.out[2] = f.in.vec3(slotNormal).Normalize().Vec4(1)
			return true
		},
	}
}

func bindShadowBlur(u Uniforms, t softTextures) softwareShader {
	src := t[0]
	dir := u.Vec2("direction")
	radius := int(u.Int("radius"))
	dx, dy := int(dir[0]), int(dir[1])
	return softwareShader{
		fragment: func(f *fragment) bool {
			x, y := src.texel(f.uv)
			var sum mgl32.Vec4
			for i := -radius; i <= radius; i++ {
				sum = sum.Add(src.load(x+dx*i, y+dy*i))
			}
			sum = sum.Mul(1 / float32(2*radius+1))
			for i := range sum {
				sum[i] = min(sum[i], common.MaxFloat)
			}
			f.out[0] = sum
			return true
		},
	}
}

func bindZOnly(u Uniforms, _ softTextures) softwareShader {
	return softwareShader{
		vertex:   geometryVertex(u),
		fragment: func(*fragment) bool { return true },
	}
}

func mulVec3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func bindModel(gbuffer bool) binder {
	return func(u Uniforms, t softTextures) softwareShader {
		light := newLighting(u, t[shader.UnitShadow])
		base := surface{
			albedo:    u.Vec3("diffuseColor"),
			specular:  u.Vec3("specularColor"),
			shininess: u.Float("shininess"),
			emissive:  u.Vec3("emissiveColor"),
		}
		alpha := u.Float("alpha")
		bump := material.BumpType(u.Int("bumpType"))
		useDiffuse, useSpecular := u.Bool("useDiffuseTexture"), u.Bool("useSpecularTexture")
		useEmissive, useOpacity := u.Bool("useEmissiveTexture"), u.Bool("useOpacityTexture")
		return softwareShader{
			vertex: geometryVertex(u),
			fragment: func(f *fragment) bool {
				uv := f.in.vec2(slotUV)
				s := base
				opacity := float32(1)
				if useDiffuse {
					s.albedo = mulVec3(s.albedo, t[shader.UnitDiffuse].sample(uv).Vec3())
				}
				if useSpecular {
					s.specular = mulVec3(s.specular, t[shader.UnitSpecular].sample(uv).Vec3())
				}
				if useEmissive {
					s.emissive = mulVec3(s.emissive, t[shader.UnitEmissive].sample(uv).Vec3())
				}
				if useOpacity {
					opacity = t[shader.UnitOpacity].sample(uv)[0]
				}

				n := faceNormal(f)
				s.face = n
				tan := f.in.vec4(slotTangent)
				tv := tan.Vec3().Sub(n.Mul(n.Dot(tan.Vec3()))).Normalize()
				bv := n.Cross(tv).Mul(tan[3])
				switch bump {
				case material.BumpNormal:
					m := t[shader.UnitBump].sample(uv).Vec3().Mul(2).Sub(mgl32.Vec3{1, 1, 1})
					n = tv.Mul(m[0]).Add(bv.Mul(m[1])).Add(n.Mul(m[2])).Normalize()
				case material.BumpHeight:
					bt := t[shader.UnitBump]
					sx, sy := 1/float32(bt.width), 1/float32(bt.height)
					h := bt.sample(uv)[0]
					hu := bt.sample(uv.Add(mgl32.Vec2{sx, 0}))[0]
					hv := bt.sample(uv.Add(mgl32.Vec2{0, sy}))[0]
					n = n.Sub(tv.Mul(hu - h).Add(bv.Mul(hv - h)).Mul(bumpScale)).Normalize()
				}
				s.normal = n

				if opacity < alpha {
					return false
				}
				light.output(f, s, f.in.vec3(slotWorld), gbuffer)
				return true
			},
		}
	}
}

func bindGround(gbuffer bool) binder {
	return func(u Uniforms, t softTextures) softwareShader {
		light := newLighting(u, t[shader.UnitShadow])
		color := u.Vec3("groundPlaneColor")
		return softwareShader{
			vertex: geometryVertex(u),
			fragment: func(f *fragment) bool {
				n := faceNormal(f)
				s := surface{albedo: color, shininess: 1, normal: n, face: n}
				light.output(f, s, f.in.vec3(slotWorld), gbuffer)
				return true
			},
		}
	}
}

// indirect gathers one bounce from the reflective shadow map around the receiver.
func indirect(l lighting, u Uniforms, t softTextures, world, n mgl32.Vec3) mgl32.Vec3 {
	s := project(l.shadowTransform, world)
	if s[3] <= 0 {
		return mgl32.Vec3{}
	}
	st := mgl32.Vec2{s[0] / s[3], s[1] / s[3]}
	inverse := u.Mat4("inverseShadowTransform")
	radius := u.Float("indirectRadius")
	flux, normals := t[shader.DeferredUnitFlux], t[shader.DeferredUnitShadowNormal]
	var sum mgl32.Vec3
	for i := range rsmSamples {
		r := radius * float32(math.Sqrt((float64(i)+0.5)/rsmSamples))
		a := float64(i) * goldenAngle
		sst := st.Add(mgl32.Vec2{float32(math.Cos(a)), float32(math.Sin(a))}.Mul(r))
		if outside(sst) {
			continue
		}
		x := common.Clamp(int(sst[0]*float32(flux.width)), 0, flux.width-1)
		y := common.Clamp(int(sst[1]*float32(flux.height)), 0, flux.height-1)
		d := l.shadow.load(x, y)[0]
		if d >= common.MaxFloat {
			continue
		}
		q := inverse.Mul4x1(mgl32.Vec4{sst[0], sst[1], 0.5, 1})
		p := l.lightPos.Add(q.Vec3().Mul(1 / q[3]).Sub(l.lightPos).Normalize().Mul(d))
		np := normals.load(x, y).Vec3()
		delta := world.Sub(p)
		dist2 := max(delta.Dot(delta), 0.01)
		w := max(np.Dot(delta), 0) * max(n.Dot(delta.Mul(-1)), 0) / (dist2 * dist2)
		sum = sum.Add(flux.load(x, y).Vec3().Mul(w * r * r))
	}
	return sum.Mul(u.Float("indirectStrength") / rsmSamples)
}

func bindDeferred(u Uniforms, t softTextures) softwareShader {
	light := newLighting(u, t[shader.DeferredUnitShadow])
	background := u.Vec3("groundPlaneColor").Vec4(1)
	useIndirect := u.Bool("useIndirect")
	worldTex := t[shader.DeferredUnitWorldPos]
	return softwareShader{
		fragment: func(f *fragment) bool {
			x, y := worldTex.texel(f.uv)
			world := worldTex.load(x, y)
			if world[3] == 0 {
				f.out[0] = background
				return true
			}
			spec := t[shader.DeferredUnitSpecular].load(x, y)
			s := surface{
				albedo:    t[shader.DeferredUnitDiffuse].load(x, y).Vec3(),
				specular:  spec.Vec3(),
				shininess: max(spec[3]*maxShininess, 1),
				emissive:  t[shader.DeferredUnitEmissive].load(x, y).Vec3(),
				normal:    t[shader.DeferredUnitNormal].load(x, y).Vec3().Normalize(),
				face:      t[shader.DeferredUnitFaceNormal].load(x, y).Vec3(),
			}
			color := light.shade(s, world.Vec3())
			if useIndirect {
				color = color.Add(mulVec3(s.albedo, indirect(light, u, t, world.Vec3(), s.face)))
			}
			f.out[0] = color.Vec4(1)
			return true
		},
	}
}

// kernelSample spirals over the unit hemisphere with samples denser near the origin.
func kernelSample(i int) mgl32.Vec3 {
	f := (float32(i) + 0.5) / aoSamples
	r := float32(math.Sqrt(float64(1 - f*f)))
	a := float64(i) * goldenAngle
	scale := 0.1 + (1-0.1)*f*f
	return mgl32.Vec3{r * float32(math.Cos(a)), r * float32(math.Sin(a)), f}.Mul(scale)
}

func bindSSAO(u Uniforms, t softTextures) softwareShader {
	modelView := u.Mat4("modelView")
	projection := u.Mat4("projection")
	ndc := u.Vec2("ndcOffset")
	radius, strength := u.Float("radius"), u.Float("strength")
	enabled := u.Bool("useOcclusion")
	colorTex, worldTex := t[shader.SSAOUnitColor], t[shader.SSAOUnitWorld]
	normalTex, noise := t[shader.SSAOUnitNormal], t[shader.SSAOUnitNoise]
	viewDepth := func(p mgl32.Vec3) float32 { return -project(modelView, p)[2] }
	return softwareShader{
		fragment: func(f *fragment) bool {
			x, y := colorTex.texel(f.uv)
			color := colorTex.load(x, y)
			f.out[0] = color
			if !enabled {
				return true
			}
			world := worldTex.load(x, y)
			if world[3] == 0 {
				return true
			}
			n := normalTex.load(x, y).Vec3().Normalize()
			rnd := noise.load(x%noise.width, y%noise.height).Vec3().Mul(2).Sub(mgl32.Vec3{1, 1, 1})
			tv := rnd.Sub(n.Mul(rnd.Dot(n))).Normalize()
			bv := n.Cross(tv)
			depth := viewDepth(world.Vec3())

			var occluded float32
			for i := range aoSamples {
				k := kernelSample(i)
				p := world.Vec3().Add(tv.Mul(k[0]).Add(bv.Mul(k[1])).Add(n.Mul(k[2])).Mul(radius))
				clip := projection.Mul4x1(project(modelView, p))
				if clip[3] <= 0 {
					continue
				}
				suv := mgl32.Vec2{
					(clip[0]/clip[3]+ndc[0])*0.5 + 0.5,
					(clip[1]/clip[3]+ndc[1])*0.5 + 0.5,
				}
				if suv[0] < 0 || suv[1] < 0 || suv[0] >= 1 || suv[1] >= 1 {
					continue
				}
				sx := common.Clamp(int(suv[0]*float32(worldTex.width)), 0, worldTex.width-1)
				sy := common.Clamp(int(suv[1]*float32(worldTex.height)), 0, worldTex.height-1)
				stored := worldTex.load(sx, sy)
				if stored[3] == 0 {
					continue
				}
				storedDepth := viewDepth(stored.Vec3())
				rng := smoothstep(0, 1, radius/max(float32(math.Abs(float64(depth-storedDepth))), 0.0001))
				if storedDepth < viewDepth(p)-0.02*radius {
					occluded += rng
				}
			}
			ao := common.Clamp(1-strength*occluded/aoSamples, 0, 1)
			f.out[0] = color.Vec3().Mul(ao).Vec4(color[3])
			return true
		},
	}
}

func bindAccumulate(u Uniforms, t softTextures) softwareShader {
	weight := u.Float("weight")
	current, history := t[shader.AccumulateUnitCurrent], t[shader.AccumulateUnitHistory]
	return softwareShader{
		fragment: func(f *fragment) bool {
			c := current.load(current.texel(f.uv))
			if weight >= 1 {
				f.out[0] = c
				return true
			}
			h := history.load(history.texel(f.uv))
			f.out[0] = h.Add(c.Sub(h).Mul(weight))
			return true
		},
	}
}

func bindBlit(u Uniforms, t softTextures) softwareShader {
	exposure := u.Float("exposure")
	src := t[0]
	return softwareShader{
		fragment: func(f *fragment) bool {
			c := src.load(src.texel(f.uv)).Vec3().Mul(exposure)
			f.out[0] = mgl32.Vec4{common.Clamp(c[0], 0, 1), common.Clamp(c[1], 0, 1), common.Clamp(c[2], 0, 1), 1}
			return true
		},
	}
}
