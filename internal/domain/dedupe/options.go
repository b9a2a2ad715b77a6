package dedupe

// Option applies a configuration option to the in-memory known-set.
type Option func(*inMemoryKnownSet)

// WithInitialCapacity pre-sizes the backing map. Non-positive values are ignored.
func WithInitialCapacity(n int) Option {
	return func(d *inMemoryKnownSet) {
		if n > 0 {
			d.initialCapacity = n
		}
	}
}
