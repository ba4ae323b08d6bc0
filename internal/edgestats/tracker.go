package edgestats

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config bounds the per-key rolling history.
type Config struct {
	MaxWindow int `yaml:"max_window"` // samples kept per key before FIFO eviction
	MinSample int `yaml:"min_sample"` // below this, percentile queries fail
}

// DefaultConfig returns the standard window bounds.
func DefaultConfig() *Config {
	return &Config{
		MaxWindow: 1000,
		MinSample: 50,
	}
}

// Sample is one recorded net edge observation for a key.
type Sample struct {
	NetEdge    float64   `json:"net_edge"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Statistics summarizes one key's current window.
type Statistics struct {
	Key    Key     `json:"key"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
	Ready  bool    `json:"ready"` // true once count >= MinSample
}

// bucket holds one key's window. The mutex serializes per-key access;
// distinct keys never contend with each other.
type bucket struct {
	mu      sync.Mutex
	samples []Sample  // insertion order, oldest first
	sorted  []float64 // same values kept sorted for percentile queries
}

// Tracker maintains bounded rolling edge histories keyed by
// (symbol, direction, timeframe) and answers empirical-CDF percentile
// queries against them. Safe for concurrent use.
type Tracker struct {
	cfg   *Config
	mu    sync.RWMutex // guards the buckets map, not bucket contents
	bkts  map[Key]*bucket
	store Store // optional write-through persistence, may be nil
}

// NewTracker builds a tracker with the given bounds. A nil config uses
// the defaults.
func NewTracker(cfg *Config) *Tracker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Tracker{
		cfg:  cfg,
		bkts: make(map[Key]*bucket),
	}
}

// WithStore attaches write-through persistence. Store failures are
// logged and never fail the in-memory record.
func (t *Tracker) WithStore(s Store) *Tracker {
	t.store = s
	return t
}

func (t *Tracker) getBucket(k Key) *bucket {
	t.mu.RLock()
	b, ok := t.bkts[k]
	t.mu.RUnlock()
	if ok {
		return b
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok = t.bkts[k]; ok {
		return b
	}
	b = &bucket{}
	t.bkts[k] = b
	return b
}

// Record appends a net edge observation to the key's window, evicting
// the oldest sample once the window is full. Invalid keys are rejected
// without touching any bucket.
func (t *Tracker) Record(ctx context.Context, k Key, netEdge float64) error {
	if err := k.Validate(); err != nil {
		return err
	}
	s := Sample{NetEdge: netEdge, RecordedAt: time.Now().UTC()}

	b := t.getBucket(k)
	b.mu.Lock()
	if len(b.samples) >= t.cfg.MaxWindow {
		evicted := b.samples[0].NetEdge
		b.samples = b.samples[1:]
		i := sort.SearchFloat64s(b.sorted, evicted)
		b.sorted = append(b.sorted[:i], b.sorted[i+1:]...)
	}
	b.samples = append(b.samples, s)
	i := sort.SearchFloat64s(b.sorted, netEdge)
	b.sorted = append(b.sorted, 0)
	copy(b.sorted[i+1:], b.sorted[i:])
	b.sorted[i] = netEdge
	b.mu.Unlock()

	if t.store != nil {
		if err := t.store.Append(ctx, k, s); err != nil {
			log.Warn().Err(err).Str("key", k.String()).Msg("edge store append failed")
		}
	}
	return nil
}

// Percentile returns the fraction of recorded samples strictly below
// netEdge, in [0, 1). It returns ErrInsufficientData until the key has
// accumulated MinSample observations.
func (t *Tracker) Percentile(k Key, netEdge float64) (float64, error) {
	if err := k.Validate(); err != nil {
		return 0, err
	}
	b := t.getBucket(k)
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sorted) < t.cfg.MinSample {
		return 0, ErrInsufficientData
	}
	below := sort.SearchFloat64s(b.sorted, netEdge)
	return float64(below) / float64(len(b.sorted)), nil
}

// Count reports how many samples the key currently holds.
func (t *Tracker) Count(k Key) int {
	b := t.getBucket(k)
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Statistics summarizes the key's window. Mean, min, max and median are
// zero when the window is empty.
func (t *Tracker) Statistics(k Key) Statistics {
	b := t.getBucket(k)
	b.mu.Lock()
	defer b.mu.Unlock()

	st := Statistics{Key: k, Count: len(b.sorted)}
	st.Ready = st.Count >= t.cfg.MinSample
	if st.Count == 0 {
		return st
	}
	st.Min = b.sorted[0]
	st.Max = b.sorted[st.Count-1]
	mid := st.Count / 2
	if st.Count%2 == 1 {
		st.Median = b.sorted[mid]
	} else {
		st.Median = (b.sorted[mid-1] + b.sorted[mid]) / 2
	}
	st.P25 = quantile(b.sorted, 0.25)
	st.P75 = quantile(b.sorted, 0.75)
	st.P90 = quantile(b.sorted, 0.90)
	var sum float64
	for _, v := range b.sorted {
		sum += v
	}
	st.Mean = sum / float64(st.Count)
	return st
}

// quantile reads the nearest-rank value from an ascending slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	i := int(q * float64(len(sorted)))
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}

// RecentRecords returns up to n most recent samples, newest last.
func (t *Tracker) RecentRecords(k Key, n int) []Sample {
	b := t.getBucket(k)
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.samples) {
		n = len(b.samples)
	}
	out := make([]Sample, n)
	copy(out, b.samples[len(b.samples)-n:])
	return out
}

// Keys lists every key with at least one sample.
func (t *Tracker) Keys() []Key {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Key, 0, len(t.bkts))
	for k := range t.bkts {
		out = append(out, k)
	}
	return out
}

// Restore bulk-loads persisted samples into the key's window, applying
// the same FIFO bound as live recording. Used at startup before any
// live traffic, so it takes the simple path through Record.
func (t *Tracker) Restore(ctx context.Context, k Key, samples []Sample) error {
	for _, s := range samples {
		if err := k.Validate(); err != nil {
			return err
		}
		b := t.getBucket(k)
		b.mu.Lock()
		if len(b.samples) >= t.cfg.MaxWindow {
			evicted := b.samples[0].NetEdge
			b.samples = b.samples[1:]
			i := sort.SearchFloat64s(b.sorted, evicted)
			b.sorted = append(b.sorted[:i], b.sorted[i+1:]...)
		}
		b.samples = append(b.samples, s)
		i := sort.SearchFloat64s(b.sorted, s.NetEdge)
		b.sorted = append(b.sorted, 0)
		copy(b.sorted[i+1:], b.sorted[i:])
		b.sorted[i] = s.NetEdge
		b.mu.Unlock()
	}
	return nil
}
