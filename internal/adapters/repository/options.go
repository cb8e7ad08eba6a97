package repository

// DefaultCapacity is the number of runs kept before the oldest is evicted.
const DefaultCapacity = 256

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithCapacity bounds the number of runs held in memory.
func WithCapacity(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}
