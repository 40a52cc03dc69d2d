// Package model holds the drawable geometry consumed by the render passes: vertex layout,
// meshes, material-keyed drawable batches and a few procedural primitives.
package model

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-mfs/common"
)

// VertexSize is the byte size of one Vertex as uploaded to the GPU.
const VertexSize = 48

// Vertex is a single mesh vertex in world space. Its memory layout matches the
// GPU vertex buffer layout exactly (48 bytes, no padding).
type Vertex struct {
	Position mgl32.Vec3 // offset  0
	Normal   mgl32.Vec3 // offset 12
	TexCoord mgl32.Vec2 // offset 24
	Tangent  mgl32.Vec4 // offset 32: xyz tangent, w handedness of cross(normal, tangent)
}

// Marshal serializes the vertex into a 48-byte little-endian buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer
func (v *Vertex) Marshal() []byte {
	buf := make([]byte, 0, VertexSize)
	for _, f := range v.Position {
		buf = common.AppendFloat32(buf, f)
	}
	for _, f := range v.Normal {
		buf = common.AppendFloat32(buf, f)
	}
	for _, f := range v.TexCoord {
		buf = common.AppendFloat32(buf, f)
	}
	for _, f := range v.Tangent {
		buf = common.AppendFloat32(buf, f)
	}
	return buf
}

// Mesh is an indexed triangle list. Triangles wind counter-clockwise when seen from their front.
// A mesh is immutable once built, so backends may cache uploads keyed by the pointer.
type Mesh struct {
	name     string
	vertices []Vertex
	indices  []uint32
	lo, hi   mgl32.Vec3
}

// NewMesh validates and wraps a triangle list.
//
// Parameters:
//   - name: the mesh identifier
//   - vertices: the vertex array
//   - indices: triangle indices, three per triangle
//
// Returns:
//   - *Mesh: the new mesh
//   - error: common.ErrConfiguration if the index count is not a multiple of three or an index is out of range
func NewMesh(name string, vertices []Vertex, indices []uint32) (*Mesh, error) {
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: mesh %q has %d indices, not a multiple of 3", common.ErrConfiguration, name, len(indices))
	}
	for _, idx := range indices {
		if int(idx) >= len(vertices) {
			return nil, fmt.Errorf("%w: mesh %q index %d out of range [0, %d)", common.ErrConfiguration, name, idx, len(vertices))
		}
	}

	m := &Mesh{name: name, vertices: vertices, indices: indices}
	m.lo = mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	m.hi = mgl32.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for _, v := range vertices {
		for i := range 3 {
			m.lo[i] = min(m.lo[i], v.Position[i])
			m.hi[i] = max(m.hi[i], v.Position[i])
		}
	}
	return m, nil
}

// Name returns the mesh identifier.
func (m *Mesh) Name() string { return m.name }

// Vertices returns the vertex array. Callers must not modify it.
func (m *Mesh) Vertices() []Vertex { return m.vertices }

// Indices returns the index array. Callers must not modify it.
func (m *Mesh) Indices() []uint32 { return m.indices }

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int { return len(m.indices) / 3 }

// Bounds returns the axis-aligned bounding box of the vertex positions.
//
// Returns:
//   - lo: the minimum corner
//   - hi: the maximum corner
func (m *Mesh) Bounds() (lo, hi mgl32.Vec3) { return m.lo, m.hi }

// Triangle returns the three vertices of triangle i.
func (m *Mesh) Triangle(i int) (a, b, c *Vertex) {
	return &m.vertices[m.indices[3*i]], &m.vertices[m.indices[3*i+1]], &m.vertices[m.indices[3*i+2]]
}

// GenerateTangents fills vertex tangents from texture coordinate gradients, averaging over
// shared vertices. Vertices whose triangles have degenerate UVs get a tangent orthogonal to
// the normal.
func GenerateTangents(vertices []Vertex, indices []uint32) {
	tan := make([]mgl32.Vec3, len(vertices))
	bit := make([]mgl32.Vec3, len(vertices))
	for t := 0; t+2 < len(indices); t += 3 {
		i0, i1, i2 := indices[t], indices[t+1], indices[t+2]
		v0, v1, v2 := vertices[i0], vertices[i1], vertices[i2]
		e1, e2 := v1.Position.Sub(v0.Position), v2.Position.Sub(v0.Position)
		d1, d2 := v1.TexCoord.Sub(v0.TexCoord), v2.TexCoord.Sub(v0.TexCoord)
		det := d1.X()*d2.Y() - d2.X()*d1.Y()
		if det == 0 {
			continue
		}
		r := 1 / det
		sdir := e1.Mul(d2.Y() * r).Sub(e2.Mul(d1.Y() * r))
		tdir := e2.Mul(d1.X() * r).Sub(e1.Mul(d2.X() * r))
		for _, i := range [3]uint32{i0, i1, i2} {
			tan[i] = tan[i].Add(sdir)
			bit[i] = bit[i].Add(tdir)
		}
	}

	for i := range vertices {
		n := vertices[i].Normal
		t := tan[i].Sub(n.Mul(n.Dot(tan[i])))
		if t.Len() < 1e-8 {
			t = orthogonal(n)
		}
		t = t.Normalize()
		w := float32(1)
		if n.Cross(t).Dot(bit[i]) < 0 {
			w = -1
		}
		vertices[i].Tangent = t.Vec4(w)
	}
}

func orthogonal(n mgl32.Vec3) mgl32.Vec3 {
	if math.Abs(float64(n.X())) < 0.9 {
		return n.Cross(mgl32.Vec3{1, 0, 0})
	}
	return n.Cross(mgl32.Vec3{0, 1, 0})
}
