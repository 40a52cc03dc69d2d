// Package camera provides the camera, projection and viewport capabilities read by the
// render passes. Each capability carries a revision counter that increments on every
// mutation, which the painter polls to decide when accumulated samples become stale.
package camera

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

type cameraImpl struct {
	mu *sync.Mutex

	eye      mgl32.Vec3
	center   mgl32.Vec3
	up       mgl32.Vec3
	view     mgl32.Mat4
	revision uint64
}

// Camera defines a look-at camera.
type Camera interface {
	// Eye returns the camera position in world space.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position
	Eye() mgl32.Vec3

	// Center returns the point the camera looks at.
	//
	// Returns:
	//   - mgl32.Vec3: the look-at target
	Center() mgl32.Vec3

	// Up returns the camera's up vector.
	//
	// Returns:
	//   - mgl32.Vec3: the up vector
	Up() mgl32.Vec3

	// View returns the world-to-view matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the view matrix (column-major)
	View() mgl32.Mat4

	// Revision returns a counter that changes whenever the pose changes.
	//
	// Returns:
	//   - uint64: the current revision
	Revision() uint64

	// SetLookAt replaces the whole pose. Setting an identical pose does not bump the revision.
	//
	// Parameters:
	//   - eye: the new eye position
	//   - center: the new look-at target
	//   - up: the new up vector
	SetLookAt(eye, center, up mgl32.Vec3)

	// SetEye moves the camera while keeping its target.
	//
	// Parameters:
	//   - eye: the new eye position
	SetEye(eye mgl32.Vec3)

	// SetCenter retargets the camera while keeping its position.
	//
	// Parameters:
	//   - center: the new look-at target
	SetCenter(center mgl32.Vec3)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a look-at camera with a world-space +Y up vector.
//
// Parameters:
//   - eye: the camera position
//   - center: the look-at target
//
// Returns:
//   - Camera: the new camera at revision 1
func NewCamera(eye, center mgl32.Vec3) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		eye:    eye,
		center: center,
		up:     mgl32.Vec3{0, 1, 0},
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) updateMatrices() {
	c.view = mgl32.LookAtV(c.eye, c.center, c.up)
	c.revision++
}

func (c *cameraImpl) Eye() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eye
}

func (c *cameraImpl) Center() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.center
}

func (c *cameraImpl) Up() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) View() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *cameraImpl) Revision() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revision
}

func (c *cameraImpl) SetLookAt(eye, center, up mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eye == eye && c.center == center && c.up == up {
		return
	}
	c.eye, c.center, c.up = eye, center, up
	c.updateMatrices()
}

func (c *cameraImpl) SetEye(eye mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eye == eye {
		return
	}
	c.eye = eye
	c.updateMatrices()
}

func (c *cameraImpl) SetCenter(center mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.center == center {
		return
	}
	c.center = center
	c.updateMatrices()
}
