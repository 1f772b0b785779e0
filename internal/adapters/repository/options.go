package repository

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithSeed fixes the seed of the node priority generator.
func WithSeed(seed uint64) Option {
	return func(s *TreapStore) {
		s.seed = seed
	}
}

// WithCapacityHint presizes the key index.
func WithCapacityHint(n int) Option {
	return func(s *TreapStore) {
		if n > 0 {
			s.capacityHint = n
		}
	}
}
