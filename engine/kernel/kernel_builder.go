package kernel

type GeneratorBuilderOption func(*generatorImpl)

// WithStrategy sets the sampling strategy.
//
// Parameters:
//   - strategy: the strategy to use
//
// Returns:
//   - GeneratorBuilderOption: a function that sets the strategy
func WithStrategy(strategy Strategy) GeneratorBuilderOption {
	return func(g *generatorImpl) {
		g.strategy = strategy
	}
}

// WithSeed sets the seed of the random rotation and of the random strategy.
//
// Parameters:
//   - seed: the seed value
//
// Returns:
//   - GeneratorBuilderOption: a function that sets the seed
func WithSeed(seed uint64) GeneratorBuilderOption {
	return func(g *generatorImpl) {
		g.seed = seed
	}
}
