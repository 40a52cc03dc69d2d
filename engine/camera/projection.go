package camera

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-mfs/common"
)

type projectionImpl struct {
	mu *sync.Mutex

	fovY     float32
	near     float32
	far      float32
	revision uint64
}

// Projection defines a perspective projection. Matrices follow the GL clip convention
// with z in [-w, w]; backends with a [0, w] depth range convert in their vertex stage.
type Projection interface {
	// FovY returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: the field of view
	FovY() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// Matrix returns the projection matrix for an aspect ratio.
	//
	// Parameters:
	//   - aspect: width / height of the target
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix (column-major)
	Matrix(aspect float32) mgl32.Mat4

	// Revision returns a counter that changes whenever a parameter changes.
	//
	// Returns:
	//   - uint64: the current revision
	Revision() uint64

	// SetNearFar replaces the clipping planes.
	//
	// Parameters:
	//   - near: near plane distance, > 0
	//   - far: far plane distance, > near
	//
	// Returns:
	//   - error: common.ErrConfiguration if the planes are invalid
	SetNearFar(near, far float32) error

	// SetFovY replaces the vertical field of view.
	//
	// Parameters:
	//   - fovY: field of view in radians, in (0, pi)
	//
	// Returns:
	//   - error: common.ErrConfiguration if the angle is invalid
	SetFovY(fovY float32) error
}

var _ Projection = &projectionImpl{}

// NewProjection creates a perspective projection.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - near: near plane distance
//   - far: far plane distance
//
// Returns:
//   - Projection: the new projection at revision 1
//   - error: common.ErrConfiguration if the parameters are invalid
func NewProjection(fovY, near, far float32) (Projection, error) {
	p := &projectionImpl{mu: &sync.Mutex{}}
	if err := validate(fovY, near, far); err != nil {
		return nil, err
	}
	p.fovY, p.near, p.far = fovY, near, far
	p.revision = 1
	return p, nil
}

func validate(fovY, near, far float32) error {
	if fovY <= 0 || fovY >= math.Pi {
		return fmt.Errorf("%w: field of view %v outside (0, pi)", common.ErrConfiguration, fovY)
	}
	if near <= 0 || far <= near {
		return fmt.Errorf("%w: clip planes near=%v far=%v must satisfy 0 < near < far", common.ErrConfiguration, near, far)
	}
	return nil
}

func (p *projectionImpl) FovY() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fovY
}

func (p *projectionImpl) Near() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.near
}

func (p *projectionImpl) Far() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.far
}

func (p *projectionImpl) Matrix(aspect float32) mgl32.Mat4 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return mgl32.Perspective(p.fovY, aspect, p.near, p.far)
}

func (p *projectionImpl) Revision() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revision
}

func (p *projectionImpl) SetNearFar(near, far float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := validate(p.fovY, near, far); err != nil {
		return err
	}
	if p.near != near || p.far != far {
		p.near, p.far = near, far
		p.revision++
	}
	return nil
}

func (p *projectionImpl) SetFovY(fovY float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := validate(fovY, p.near, p.far); err != nil {
		return err
	}
	if p.fovY != fovY {
		p.fovY = fovY
		p.revision++
	}
	return nil
}
