package camera

import "github.com/go-gl/mathgl/mgl32"

// ControllerBuilderOption is a functional option for configuring a Controller.
type ControllerBuilderOption func(*controllerImpl)

// WithRadius sets the initial distance between eye and target.
//
// Parameters:
//   - radius: the orbit radius
//
// Returns:
//   - ControllerBuilderOption: functional option to set the radius
func WithRadius(radius float32) ControllerBuilderOption {
	return func(cc *controllerImpl) {
		cc.radius = radius
	}
}

// WithAzimuth sets the initial horizontal angle in radians.
//
// Parameters:
//   - azimuth: the angle around Y, 0 places the eye on +Z
//
// Returns:
//   - ControllerBuilderOption: functional option to set the azimuth
func WithAzimuth(azimuth float32) ControllerBuilderOption {
	return func(cc *controllerImpl) {
		cc.azimuth = azimuth
	}
}

// WithElevation sets the initial vertical angle in radians.
//
// Parameters:
//   - elevation: the angle above the horizontal plane
//
// Returns:
//   - ControllerBuilderOption: functional option to set the elevation
func WithElevation(elevation float32) ControllerBuilderOption {
	return func(cc *controllerImpl) {
		cc.elevation = elevation
	}
}

// WithTarget sets the orbit center.
//
// Parameters:
//   - target: the point the eye orbits around
//
// Returns:
//   - ControllerBuilderOption: functional option to set the target position
func WithTarget(target mgl32.Vec3) ControllerBuilderOption {
	return func(cc *controllerImpl) {
		cc.target = target
	}
}

// WithRadiusBounds sets the zoom limits.
//
// Parameters:
//   - lo: the closest allowed radius
//   - hi: the furthest allowed radius
//
// Returns:
//   - ControllerBuilderOption: functional option to set radius bounds
func WithRadiusBounds(lo, hi float32) ControllerBuilderOption {
	return func(cc *controllerImpl) {
		cc.minRadius, cc.maxRadius = lo, hi
	}
}

// WithOrbitSpeed sets the angle of one orbit step in radians.
func WithOrbitSpeed(speed float32) ControllerBuilderOption {
	return func(cc *controllerImpl) {
		cc.orbitSpeed = speed
	}
}

// WithZoomSpeed sets the distance of one zoom step.
func WithZoomSpeed(speed float32) ControllerBuilderOption {
	return func(cc *controllerImpl) {
		cc.zoomSpeed = speed
	}
}

// WithPanSpeed sets the distance of one pan step.
func WithPanSpeed(speed float32) ControllerBuilderOption {
	return func(cc *controllerImpl) {
		cc.panSpeed = speed
	}
}
