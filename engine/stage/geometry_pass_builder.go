package stage

// GeometryPassBuilderOption is a function that configures a geometry pass during construction.
type GeometryPassBuilderOption func(*geometryPass)

// WithMode is an option builder that selects the direct or deferred variant.
//
// Parameters:
//   - m: the mode, ModeDirect by default
//
// Returns:
//   - GeometryPassBuilderOption: a function that applies the mode to a geometry pass
func WithMode(m Mode) GeometryPassBuilderOption {
	return func(g *geometryPass) {
		g.mode = m
	}
}

// WithPrepass is an option builder that forces the depth prepass on or off.
//
// Parameters:
//   - m: the prepass mode, PrepassAuto by default
//
// Returns:
//   - GeometryPassBuilderOption: a function that applies the prepass mode to a geometry pass
func WithPrepass(m PrepassMode) GeometryPassBuilderOption {
	return func(g *geometryPass) {
		g.prepass = m
	}
}

// WithPrepassThreshold is an option builder that sets the opaque triangle count from which
// PrepassAuto runs the prepass.
func WithPrepassThreshold(triangles int) GeometryPassBuilderOption {
	return func(g *geometryPass) {
		g.threshold = triangles
	}
}

// WithFrustumCulling is an option builder that toggles skipping meshes outside the view frustum.
// Culling is on by default.
func WithFrustumCulling(enabled bool) GeometryPassBuilderOption {
	return func(g *geometryPass) {
		g.cull = enabled
	}
}

// WithGround is an option builder that toggles the ground plane.
//
// Parameters:
//   - enabled: true to draw the plane (default)
//   - size: the edge length of the plane in world units, values <= 0 keep the default
//
// Returns:
//   - GeometryPassBuilderOption: a function that applies the ground option to a geometry pass
func WithGround(enabled bool, size float32) GeometryPassBuilderOption {
	return func(g *geometryPass) {
		g.drawGround = enabled
		if size > 0 {
			g.groundSize = size
		}
	}
}

// WithGeometryTextures is an option builder that shares a material texture cache with other stages.
func WithGeometryTextures(c TextureCache) GeometryPassBuilderOption {
	return func(g *geometryPass) {
		g.textures = c
	}
}
