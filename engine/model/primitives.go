package model

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type face struct {
	n, u, v mgl32.Vec3
}

// faces of a unit cube; u x v == n so each quad winds counter-clockwise from outside
var boxFaces = [6]face{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
}

var quadCorners = [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

func appendQuad(vertices []Vertex, indices []uint32, center, half mgl32.Vec3, f face, uvScale float32) ([]Vertex, []uint32) {
	base := uint32(len(vertices))
	for _, c := range quadCorners {
		dir := f.n.Add(f.u.Mul(c[0])).Add(f.v.Mul(c[1]))
		p := center.Add(mgl32.Vec3{dir[0] * half[0], dir[1] * half[1], dir[2] * half[2]})
		vertices = append(vertices, Vertex{
			Position: p,
			Normal:   f.n,
			TexCoord: mgl32.Vec2{(c[0] + 1) / 2 * uvScale, (c[1] + 1) / 2 * uvScale},
			Tangent:  f.u.Vec4(1),
		})
	}
	indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	return vertices, indices
}

// NewBox builds an axis-aligned box with one UV square per face.
//
// Parameters:
//   - name: the mesh identifier
//   - center: the box center
//   - size: the edge lengths along x, y and z
//
// Returns:
//   - *Mesh: a 12-triangle mesh
func NewBox(name string, center, size mgl32.Vec3) *Mesh {
	half := size.Mul(0.5)
	vertices := make([]Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range boxFaces {
		vertices, indices = appendQuad(vertices, indices, center, half, f, 1)
	}
	m, _ := NewMesh(name, vertices, indices)
	return m
}

// NewPlane builds an upward-facing square of the given edge length at height y.
// Texture coordinates repeat uvScale times across the plane.
//
// Parameters:
//   - name: the mesh identifier
//   - center: the plane center
//   - size: the edge length
//   - uvScale: the texture repeat count
//
// Returns:
//   - *Mesh: a 2-triangle mesh
func NewPlane(name string, center mgl32.Vec3, size, uvScale float32) *Mesh {
	half := mgl32.Vec3{size / 2, 0, size / 2}
	vertices, indices := appendQuad(nil, nil, center, half, boxFaces[2], uvScale)
	m, _ := NewMesh(name, vertices, indices)
	return m
}

// NewSphere builds a UV sphere.
//
// Parameters:
//   - name: the mesh identifier
//   - center: the sphere center
//   - radius: the sphere radius
//   - rings: latitude subdivisions, at least 2
//   - segments: longitude subdivisions, at least 3
//
// Returns:
//   - *Mesh: the sphere mesh
func NewSphere(name string, center mgl32.Vec3, radius float32, rings, segments int) *Mesh {
	rings, segments = max(rings, 2), max(segments, 3)
	vertices := make([]Vertex, 0, (rings+1)*(segments+1))
	for i := 0; i <= rings; i++ {
		theta := math.Pi * float64(i) / float64(rings)
		st, ct := math.Sincos(theta)
		for j := 0; j <= segments; j++ {
			phi := 2 * math.Pi * float64(j) / float64(segments)
			sp, cp := math.Sincos(phi)
			n := mgl32.Vec3{float32(st * cp), float32(ct), float32(st * sp)}
			vertices = append(vertices, Vertex{
				Position: center.Add(n.Mul(radius)),
				Normal:   n,
				TexCoord: mgl32.Vec2{float32(j) / float32(segments), 1 - float32(i)/float32(rings)},
				Tangent:  mgl32.Vec4{float32(-sp), 0, float32(cp), -1},
			})
		}
	}

	stride := uint32(segments + 1)
	indices := make([]uint32, 0, rings*segments*6)
	for i := 0; i < rings; i++ {
		for j := 0; j < segments; j++ {
			a := uint32(i)*stride + uint32(j)
			b, c, d := a+stride, a+stride+1, a+1
			if i != rings-1 {
				indices = append(indices, a, c, b)
			}
			if i != 0 {
				indices = append(indices, a, d, c)
			}
		}
	}
	m, _ := NewMesh(name, vertices, indices)
	return m
}
