package model

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-mfs/common"
)

// every triangle of a closed convex mesh must face away from its center
func assertOutwardWinding(t *testing.T, m *Mesh, center mgl32.Vec3) {
	t.Helper()
	for i := range m.TriangleCount() {
		a, b, c := m.Triangle(i)
		n := b.Position.Sub(a.Position).Cross(c.Position.Sub(a.Position))
		mid := a.Position.Add(b.Position).Add(c.Position).Mul(1.0 / 3)
		assert.Greater(t, n.Dot(mid.Sub(center)), float32(0), "%s triangle %d", m.Name(), i)
	}
}

func TestBox(t *testing.T) {
	center := mgl32.Vec3{1, 2, 3}
	box := NewBox("box", center, mgl32.Vec3{2, 4, 6})
	assert.Equal(t, 12, box.TriangleCount())
	assertOutwardWinding(t, box, center)

	lo, hi := box.Bounds()
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, lo)
	assert.Equal(t, mgl32.Vec3{2, 4, 6}, hi)
}

func TestSphere(t *testing.T) {
	center := mgl32.Vec3{0, 1, 0}
	s := NewSphere("sphere", center, 2, 8, 12)
	assert.Equal(t, 2*8*12-2*12, s.TriangleCount())
	assertOutwardWinding(t, s, center)
	for _, v := range s.Vertices() {
		assert.InDelta(t, 2, v.Position.Sub(center).Len(), 1e-5)
	}
}

func TestPlaneFacesUp(t *testing.T) {
	p := NewPlane("ground", mgl32.Vec3{0, -1, 0}, 10, 4)
	require.Equal(t, 2, p.TriangleCount())
	for i := range 2 {
		a, b, c := p.Triangle(i)
		n := b.Position.Sub(a.Position).Cross(c.Position.Sub(a.Position))
		assert.Greater(t, n.Y(), float32(0))
	}
	lo, hi := p.Bounds()
	assert.Equal(t, float32(-1), lo.Y())
	assert.Equal(t, float32(5), hi.X())
}

func TestNewMeshValidates(t *testing.T) {
	v := []Vertex{{}, {}, {}}
	_, err := NewMesh("bad-count", v, []uint32{0, 1})
	assert.ErrorIs(t, err, common.ErrConfiguration)
	_, err = NewMesh("bad-index", v, []uint32{0, 1, 3})
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestVertexMarshal(t *testing.T) {
	v := Vertex{Position: mgl32.Vec3{1, 2, 3}, Tangent: mgl32.Vec4{0, 0, 0, -1}}
	buf := v.Marshal()
	assert.Len(t, buf, VertexSize)
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, buf[0:4])
	assert.Equal(t, []byte{0, 0, 0x80, 0xbf}, buf[44:48])
}

func TestGenerateTangentsMatchesBox(t *testing.T) {
	box := NewBox("box", mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})
	vertices := append([]Vertex(nil), box.Vertices()...)
	for i := range vertices {
		vertices[i].Tangent = mgl32.Vec4{}
	}
	GenerateTangents(vertices, box.Indices())
	for i, v := range vertices {
		assert.True(t, v.Tangent.ApproxEqualThreshold(box.Vertices()[i].Tangent, 1e-5), "vertex %d: %v", i, v.Tangent)
	}
}

func TestDrawables(t *testing.T) {
	d := Drawables{}
	d.Add("wood", NewBox("a", mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}))
	d.Add("brick", NewBox("b", mgl32.Vec3{5, 0, 0}, mgl32.Vec3{1, 1, 1}))
	d.Add("wood", NewBox("c", mgl32.Vec3{0, 5, 0}, mgl32.Vec3{1, 1, 1}))

	assert.Equal(t, []string{"brick", "wood"}, d.Materials())
	assert.Equal(t, 36, d.TriangleCount())

	lo, hi, ok := d.Bounds()
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{-0.5, -0.5, -0.5}, lo)
	assert.Equal(t, mgl32.Vec3{5.5, 5.5, 0.5}, hi)

	_, _, ok = Drawables{}.Bounds()
	assert.False(t, ok)
}
