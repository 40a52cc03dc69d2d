package stage

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-mfs/engine/camera"
	"github.com/Carmen-Shannon/oxy-mfs/engine/kernel"
)

// View is the jittered camera of one frame. Every program that rasterizes from the camera
// receives the same values so depth written by one program matches the depth of another.
type View struct {
	ModelView  mgl32.Mat4
	Projection mgl32.Mat4
	Eye        mgl32.Vec3

	// NDCOffset is the anti-aliasing shift in normalized device units.
	NDCOffset mgl32.Vec2

	// CoCPoint is the lens offset of the depth of field sample, zero when depth of field is off.
	CoCPoint mgl32.Vec2

	// FocalDist is the view distance that stays sharp under the lens offset.
	FocalDist float32
}

// NewView combines the camera capabilities with the jitter sample of a frame.
//
// Parameters:
//   - c: the camera
//   - p: the projection
//   - width, height: the target size in pixels
//   - sample: the jitter sample of the frame
//   - focalDist: the focal distance
//   - lensRadius: the depth of field sample scale, 0 disables depth of field
//
// Returns:
//   - View: the frame view
func NewView(c camera.Camera, p camera.Projection, width, height int, sample kernel.Sample, focalDist, lensRadius float32) View {
	width, height = max(width, 1), max(height, 1)
	// One pixel spans 2/width of the [-1, 1] clip range.
	ndc := mgl32.Vec2{2 * sample.AntiAliasing[0] / float32(width), 2 * sample.AntiAliasing[1] / float32(height)}
	return View{
		ModelView:  c.View(),
		Projection: p.Matrix(float32(width) / float32(height)),
		Eye:        c.Eye(),
		NDCOffset:  ndc,
		CoCPoint:   sample.DepthOfField.Mul(lensRadius),
		FocalDist:  focalDist,
	}
}

// Clip returns the full world to clip transform the geometry programs apply: the depth of
// field shear in view space followed by the projection and the anti-aliasing offset.
func (v View) Clip() mgl32.Mat4 {
	shear := mgl32.Ident4()
	if v.FocalDist != 0 {
		// x' = x + coc.x * (-z/focalDist - 1), likewise for y.
		shear[8] = -v.CoCPoint[0] / v.FocalDist
		shear[9] = -v.CoCPoint[1] / v.FocalDist
		shear[12] = -v.CoCPoint[0]
		shear[13] = -v.CoCPoint[1]
	}
	offset := mgl32.Ident4()
	offset[12] = v.NDCOffset[0]
	offset[13] = v.NDCOffset[1]
	return offset.Mul4(v.Projection).Mul4(shear).Mul4(v.ModelView)
}

// uniforms returns the camera values shared by the geometry programs.
func (v View) uniforms() map[string]any {
	return map[string]any{
		"modelView":  v.ModelView,
		"projection": v.Projection,
		"cameraEye":  v.Eye,
		"ndcOffset":  v.NDCOffset,
		"cocPoint":   v.CoCPoint,
		"focalDist":  v.FocalDist,
	}
}
