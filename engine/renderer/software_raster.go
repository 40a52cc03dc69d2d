package renderer

import (
	"github.com/Carmen-Shannon/oxy-mfs/engine/model"
	"github.com/Carmen-Shannon/oxy-mfs/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// maxVaryings is the number of interpolated floats a vertex stage may emit.
const maxVaryings = 16

type varyings [maxVaryings]float32

// fragment is the input and output of a fragment stage.
type fragment struct {
	x, y  int
	uv    mgl32.Vec2
	in    varyings
	front bool
	out   [shader.MaxTargets]mgl32.Vec4
}

// vertexFunc maps a vertex to clip space (z in [-w, w]) and its varyings.
type vertexFunc func(v model.Vertex) (mgl32.Vec4, varyings)

// fragmentFunc shades one fragment. Returning false discards it.
type fragmentFunc func(f *fragment) bool

// softwareShader is a program bound to the uniforms and textures of one draw.
type softwareShader struct {
	vertex   vertexFunc
	fragment fragmentFunc
}

// clipVertex is a vertex after the vertex stage.
type clipVertex struct {
	pos mgl32.Vec4
	in  varyings
}

// screenVertex is a vertex in window coordinates with perspective-divided varyings.
type screenVertex struct {
	x, y, z float32
	invW    float32
	in      varyings
}

// triangle is a screen space triangle wound counter-clockwise.
type triangle struct {
	v     [3]screenVertex
	area  float32
	front bool
	minY  int
	maxY  int
	minX  int
	maxX  int
}

// target is the framebuffer state a draw writes to.
type target struct {
	color    []*softTexture
	depth    *softTexture
	width    int
	height   int
	compare  CompareFunc
	readOnly bool

	// outputs is the number of leading color attachments the program writes.
	outputs int
}

// lerpClip interpolates two clip vertices.
func lerpClip(a, b clipVertex, t float32) clipVertex {
	var out clipVertex
	out.pos = a.pos.Add(b.pos.Sub(a.pos).Mul(t))
	for i := range out.in {
		out.in[i] = a.in[i] + (b.in[i]-a.in[i])*t
	}
	return out
}

// clipPolygon clips a convex polygon against the half space dist(v) >= 0.
func clipPolygon(poly []clipVertex, dist func(mgl32.Vec4) float32) []clipVertex {
	if len(poly) == 0 {
		return poly
	}
	out := make([]clipVertex, 0, len(poly)+2)
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		da, db := dist(a.pos), dist(b.pos)
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			out = append(out, lerpClip(a, b, da/(da-db)))
		}
	}
	return out
}

// minW keeps the perspective divide finite for vertices that survive near plane clipping.
const minW = 1e-6

// assemble clips a triangle against the near plane and converts the surviving fan to window
// coordinates with row 0 at the bottom.
func assemble(tri [3]clipVertex, width, height int, cull CullMode) []triangle {
	poly := []clipVertex{tri[0], tri[1], tri[2]}
	poly = clipPolygon(poly, func(p mgl32.Vec4) float32 { return p[2] + p[3] })
	poly = clipPolygon(poly, func(p mgl32.Vec4) float32 { return p[3] - minW })
	if len(poly) < 3 {
		return nil
	}

	screen := make([]screenVertex, len(poly))
	for i, c := range poly {
		invW := 1 / c.pos[3]
		s := screenVertex{
			x:    (c.pos[0]*invW*0.5 + 0.5) * float32(width),
			y:    (c.pos[1]*invW*0.5 + 0.5) * float32(height),
			z:    c.pos[2]*invW*0.5 + 0.5,
			invW: invW,
		}
		for j := range s.in {
			s.in[j] = c.in[j] * invW
		}
		screen[i] = s
	}

	out := make([]triangle, 0, len(screen)-2)
	for i := 1; i+1 < len(screen); i++ {
		t, ok := setupTriangle(screen[0], screen[i], screen[i+1], width, height, cull)
		if ok {
			out = append(out, t)
		}
	}
	return out
}

func edge(a, b screenVertex, px, py float32) float32 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// topLeft reports whether pixels exactly on the edge a->b belong to the triangle.
func topLeft(a, b screenVertex) bool {
	dy := b.y - a.y
	return dy < 0 || (dy == 0 && b.x < a.x)
}

func setupTriangle(a, b, c screenVertex, width, height int, cull CullMode) (triangle, bool) {
	area := edge(a, b, c.x, c.y)
	if area == 0 || area != area {
		return triangle{}, false
	}
	front := area > 0
	if cull == CullBack && !front {
		return triangle{}, false
	}
	if !front {
		b, c = c, b
		area = -area
	}
	t := triangle{v: [3]screenVertex{a, b, c}, area: area, front: front}
	minX, maxX := min(a.x, b.x, c.x), max(a.x, b.x, c.x)
	minY, maxY := min(a.y, b.y, c.y), max(a.y, b.y, c.y)
	t.minX = max(int(minX), 0)
	t.maxX = min(int(maxX)+1, width-1)
	t.minY = max(int(minY), 0)
	t.maxY = min(int(maxY)+1, height-1)
	if t.minX > t.maxX || t.minY > t.maxY {
		return triangle{}, false
	}
	return t, true
}

// rasterize draws the rows [y0, y1) of t.
func (tg *target) rasterize(t *triangle, sh *softwareShader, y0, y1 int) {
	a, b, c := t.v[0], t.v[1], t.v[2]
	tlA, tlB, tlC := topLeft(b, c), topLeft(c, a), topLeft(a, b)
	inv := 1 / t.area
	var f fragment
	for y := max(y0, t.minY); y <= min(y1-1, t.maxY); y++ {
		py := float32(y) + 0.5
		for x := t.minX; x <= t.maxX; x++ {
			px := float32(x) + 0.5
			w0 := edge(b, c, px, py)
			w1 := edge(c, a, px, py)
			w2 := edge(a, b, px, py)
			if !inside(w0, tlA) || !inside(w1, tlB) || !inside(w2, tlC) {
				continue
			}
			l0, l1, l2 := w0*inv, w1*inv, w2*inv
			z := l0*a.z + l1*b.z + l2*c.z
			if z < 0 || z > 1 {
				continue
			}
			if tg.depth != nil && !tg.compare.Test(z, tg.depth.depthAt(x, y)) {
				continue
			}
			invW := l0*a.invW + l1*b.invW + l2*c.invW
			for i := range f.in {
				f.in[i] = (l0*a.in[i] + l1*b.in[i] + l2*c.in[i]) / invW
			}
			f.x, f.y, f.front = x, y, t.front
			f.uv = mgl32.Vec2{px / float32(tg.width), py / float32(tg.height)}
			if !sh.fragment(&f) {
				continue
			}
			if tg.depth != nil && !tg.readOnly {
				tg.depth.setDepth(x, y, z)
			}
			tg.write(&f)
		}
	}
}

func inside(w float32, tl bool) bool {
	return w > 0 || (w == 0 && tl)
}

// fullscreen shades every pixel of rows [y0, y1).
func (tg *target) fullscreen(sh *softwareShader, y0, y1 int) {
	var f fragment
	for y := y0; y < y1; y++ {
		for x := 0; x < tg.width; x++ {
			f.x, f.y, f.front = x, y, true
			f.uv = mgl32.Vec2{(float32(x) + 0.5) / float32(tg.width), (float32(y) + 0.5) / float32(tg.height)}
			if !sh.fragment(&f) {
				continue
			}
			tg.write(&f)
		}
	}
}

func (tg *target) write(f *fragment) {
	for i := range min(tg.outputs, len(tg.color)) {
		tg.color[i].store(f.x, f.y, f.out[i])
	}
}
