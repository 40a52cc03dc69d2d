package camera

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// controllerImpl is the orbit implementation of Controller.
// The eye sits on a sphere around the target described by radius, azimuth and elevation.
type controllerImpl struct {
	mu *sync.Mutex

	target mgl32.Vec3

	radius    float32
	azimuth   float32 // horizontal angle around Y
	elevation float32 // vertical angle from the horizontal plane

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed float32
	zoomSpeed  float32
	panSpeed   float32
}

// Controller moves a Camera around a target in response to input.
type Controller interface {
	// OrbitLeft rotates the eye around the target by one orbit step.
	OrbitLeft()

	// OrbitRight rotates the eye around the target by one orbit step.
	OrbitRight()

	// OrbitUp raises the eye, within the elevation bounds.
	OrbitUp()

	// OrbitDown lowers the eye, within the elevation bounds.
	OrbitDown()

	// Zoom moves the eye toward (positive) or away from (negative) the target.
	//
	// Parameters:
	//   - delta: the number of zoom steps
	Zoom(delta float32)

	// PanForward moves eye and target along the horizontal view direction.
	//
	// Parameters:
	//   - delta: the number of pan steps
	PanForward(delta float32)

	// PanRight moves eye and target along the camera's right axis.
	//
	// Parameters:
	//   - delta: the number of pan steps
	PanRight(delta float32)

	// Eye returns the eye position implied by the orbit parameters.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position
	Eye() mgl32.Vec3

	// Target returns the orbit center.
	//
	// Returns:
	//   - mgl32.Vec3: the target
	Target() mgl32.Vec3

	// Apply writes the controller pose into a camera.
	//
	// Parameters:
	//   - c: the camera to update
	Apply(c Camera)
}

var _ Controller = &controllerImpl{}

// NewController creates an orbit controller.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - Controller: the newly created controller
func NewController(options ...ControllerBuilderOption) Controller {
	cc := &controllerImpl{
		mu:     &sync.Mutex{},
		radius: 10,

		elevation: float32(math.Pi / 6),

		minRadius:    0.5,
		maxRadius:    500,
		minElevation: -float32(math.Pi/2 - 0.05),
		maxElevation: float32(math.Pi/2 - 0.05),

		orbitSpeed: 0.03,
		zoomSpeed:  0.5,
		panSpeed:   0.25,
	}
	for _, option := range options {
		option(cc)
	}
	cc.clamp()
	return cc
}

// NewControllerFromCamera creates an orbit controller whose initial pose matches a camera.
//
// Parameters:
//   - c: the camera to read the pose from
//   - options: functional options applied after the pose is derived
//
// Returns:
//   - Controller: the newly created controller
func NewControllerFromCamera(c Camera, options ...ControllerBuilderOption) Controller {
	offset := c.Eye().Sub(c.Center())
	radius := offset.Len()
	var azimuth, elevation float64
	if radius > 0 {
		azimuth = math.Atan2(float64(offset.X()), float64(offset.Z()))
		elevation = math.Asin(float64(offset.Y() / radius))
	}
	base := []ControllerBuilderOption{
		WithTarget(c.Center()),
		WithRadius(radius),
		WithAzimuth(float32(azimuth)),
		WithElevation(float32(elevation)),
	}
	return NewController(append(base, options...)...)
}

func (cc *controllerImpl) clamp() {
	cc.radius = min(max(cc.radius, cc.minRadius), cc.maxRadius)
	cc.elevation = min(max(cc.elevation, cc.minElevation), cc.maxElevation)
}

// eye must be called with the mutex held.
func (cc *controllerImpl) eye() mgl32.Vec3 {
	se, ce := math.Sincos(float64(cc.elevation))
	sa, ca := math.Sincos(float64(cc.azimuth))
	return cc.target.Add(mgl32.Vec3{
		cc.radius * float32(ce*sa),
		cc.radius * float32(se),
		cc.radius * float32(ce*ca),
	})
}

func (cc *controllerImpl) OrbitLeft() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth -= cc.orbitSpeed
}

func (cc *controllerImpl) OrbitRight() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth += cc.orbitSpeed
}

func (cc *controllerImpl) OrbitUp() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.elevation += cc.orbitSpeed
	cc.clamp()
}

func (cc *controllerImpl) OrbitDown() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.elevation -= cc.orbitSpeed
	cc.clamp()
}

func (cc *controllerImpl) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius -= delta * cc.zoomSpeed
	cc.clamp()
}

func (cc *controllerImpl) PanForward(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	forward := cc.target.Sub(cc.eye())
	forward[1] = 0
	if forward.Len() < 1e-8 {
		return
	}
	cc.target = cc.target.Add(forward.Normalize().Mul(delta * cc.panSpeed))
}

func (cc *controllerImpl) PanRight(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	forward := cc.target.Sub(cc.eye())
	right := forward.Cross(mgl32.Vec3{0, 1, 0})
	if right.Len() < 1e-8 {
		return
	}
	cc.target = cc.target.Add(right.Normalize().Mul(delta * cc.panSpeed))
}

func (cc *controllerImpl) Eye() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.eye()
}

func (cc *controllerImpl) Target() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target
}

func (cc *controllerImpl) Apply(c Camera) {
	cc.mu.Lock()
	eye, target := cc.eye(), cc.target
	cc.mu.Unlock()
	c.SetLookAt(eye, target, mgl32.Vec3{0, 1, 0})
}
