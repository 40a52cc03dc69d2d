package stage

// ShadowPassBuilderOption is a function that configures a shadow pass during construction.
type ShadowPassBuilderOption func(*shadowPass)

// WithShadowSize is an option builder that sets the edge length of the shadow map.
//
// Parameters:
//   - size: the size in texels, 512 by default
//
// Returns:
//   - ShadowPassBuilderOption: a function that applies the size option to a shadow pass
func WithShadowSize(size int) ShadowPassBuilderOption {
	return func(s *shadowPass) {
		s.size = size
	}
}

// WithShadowBlur is an option builder that enables the separable box blur of the variance map.
//
// Parameters:
//   - radius: the blur radius in texels, 0 disables the blur (default)
//
// Returns:
//   - ShadowPassBuilderOption: a function that applies the blur option to a shadow pass
func WithShadowBlur(radius int) ShadowPassBuilderOption {
	return func(s *shadowPass) {
		s.blurRadius = radius
	}
}

// WithShadowTextures is an option builder that shares a material texture cache with other stages.
func WithShadowTextures(c TextureCache) ShadowPassBuilderOption {
	return func(s *shadowPass) {
		s.textures = c
	}
}
