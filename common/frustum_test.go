package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestFrustumIntersectsBox(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	f := ExtractFrustum(proj.Mul4(view))

	tests := []struct {
		name   string
		lo, hi mgl32.Vec3
		want   bool
	}{
		{"origin", mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}, true},
		{"behind the eye", mgl32.Vec3{-1, -1, 8}, mgl32.Vec3{1, 1, 9}, false},
		{"beyond far", mgl32.Vec3{-1, -1, -200}, mgl32.Vec3{1, 1, -150}, false},
		{"far left", mgl32.Vec3{-60, -1, -1}, mgl32.Vec3{-50, 1, 1}, false},
		{"straddles the near plane", mgl32.Vec3{-1, -1, 4}, mgl32.Vec3{1, 1, 6}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IntersectsBox(tt.lo, tt.hi))
		})
	}
}
