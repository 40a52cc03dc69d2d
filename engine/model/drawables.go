package model

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Drawables maps a material name to the meshes drawn with it. The render passes only borrow
// the meshes for the duration of a frame.
type Drawables map[string][]*Mesh

// Add appends meshes to a material's batch list.
//
// Parameters:
//   - materialName: the material key
//   - meshes: the meshes to append
func (d Drawables) Add(materialName string, meshes ...*Mesh) {
	d[materialName] = append(d[materialName], meshes...)
}

// Materials returns the material names in a stable order, so draw order is reproducible.
//
// Returns:
//   - []string: the sorted material names
func (d Drawables) Materials() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TriangleCount returns the total number of triangles across every batch.
func (d Drawables) TriangleCount() int {
	n := 0
	for _, meshes := range d {
		for _, m := range meshes {
			n += m.TriangleCount()
		}
	}
	return n
}

// Bounds returns the box enclosing every mesh.
//
// Returns:
//   - lo: the minimum corner
//   - hi: the maximum corner
//   - ok: false if there are no vertices at all
func (d Drawables) Bounds() (lo, hi mgl32.Vec3, ok bool) {
	lo = mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	hi = lo.Mul(-1)
	for _, meshes := range d {
		for _, m := range meshes {
			if len(m.vertices) == 0 {
				continue
			}
			ok = true
			for i := range 3 {
				lo[i] = min(lo[i], m.lo[i])
				hi[i] = max(hi[i], m.hi[i])
			}
		}
	}
	return lo, hi, ok
}
