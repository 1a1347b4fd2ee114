package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithLimit caps the number of kept records; the oldest saved record is
// evicted first. Zero keeps everything.
func WithLimit(limit int) Option {
	return func(s *MemoryStore) {
		if limit >= 0 {
			s.limit = limit
		}
	}
}
