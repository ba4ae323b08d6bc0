package edgestats

import "context"

// Store persists edge samples so percentile windows survive restarts.
// Implementations must bound each key's history to the tracker window.
type Store interface {
	// Append persists one sample under the key.
	Append(ctx context.Context, k Key, s Sample) error
	// Load returns the key's persisted samples, oldest first.
	Load(ctx context.Context, k Key) ([]Sample, error)
	// LoadAll returns every persisted key with its samples.
	LoadAll(ctx context.Context) (map[Key][]Sample, error)
	// Close releases underlying resources.
	Close() error
}
