package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantward/edgegate/internal/backtest"
)

// ErrNotFound marks a lookup for an unregistered strategy version.
var ErrNotFound = errors.New("strategy version not registered")

// Store persists registry records. Writes are whole-record upserts;
// a failed write never leaves a partial record behind.
type Store interface {
	Upsert(ctx context.Context, m StrategyMetrics) error
	LoadAll(ctx context.Context) ([]StrategyMetrics, error)
	Close() error
}

// Registry holds the working set in memory and writes through to the
// store. Store failures are logged and do not fail the mutation; the
// in-memory record remains authoritative until the next successful
// write. Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]*StrategyMetrics
	store      Store // may be nil
}

// New builds an empty registry with optional persistence.
func New(store Store) *Registry {
	return &Registry{
		strategies: make(map[string]*StrategyMetrics),
		store:      store,
	}
}

// Load replaces the working set with the store's contents.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	records, err := r.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies = make(map[string]*StrategyMetrics, len(records))
	for i := range records {
		m := records[i]
		r.strategies[m.Key()] = &m
	}
	log.Info().Int("strategies", len(records)).Msg("registry loaded")
	return nil
}

func (r *Registry) persist(ctx context.Context, m *StrategyMetrics) {
	if r.store == nil {
		return
	}
	if err := r.store.Upsert(ctx, *m); err != nil {
		log.Error().Err(err).Str("strategy", m.StrategyID).
			Str("version", m.Version).Msg("registry persist failed")
	}
}

// Register creates the record if absent and returns a copy of it.
func (r *Registry) Register(ctx context.Context, strategyID, version string) StrategyMetrics {
	r.mu.Lock()
	key := strategyID + "_" + version
	m, ok := r.strategies[key]
	if !ok {
		m = &StrategyMetrics{
			StrategyID: strategyID,
			Version:    version,
			CreatedAt:  time.Now().UTC(),
			UpdatedAt:  time.Now().UTC(),
		}
		r.strategies[key] = m
	}
	snapshot := *m
	r.mu.Unlock()

	if !ok {
		r.persist(ctx, &snapshot)
	}
	return snapshot
}

// Get returns a copy of the record, or ErrNotFound.
func (r *Registry) Get(strategyID, version string) (StrategyMetrics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.strategies[strategyID+"_"+version]
	if !ok {
		return StrategyMetrics{}, fmt.Errorf("%w: %s v%s", ErrNotFound, strategyID, version)
	}
	return *m, nil
}

// List returns all records ordered by key.
func (r *Registry) List() []StrategyMetrics {
	r.mu.RLock()
	out := make([]StrategyMetrics, 0, len(r.strategies))
	for _, m := range r.strategies {
		out = append(out, *m)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// UpdateMetrics recomputes the record's aggregates from trades,
// registering the version if needed.
func (r *Registry) UpdateMetrics(ctx context.Context, strategyID, version string, trades []backtest.TradeRecord, initialCapital float64) StrategyMetrics {
	r.mu.Lock()
	key := strategyID + "_" + version
	m, ok := r.strategies[key]
	if !ok {
		m = &StrategyMetrics{
			StrategyID: strategyID,
			Version:    version,
			CreatedAt:  time.Now().UTC(),
		}
		r.strategies[key] = m
	}
	m.UpdateFromTrades(trades, initialCapital)
	snapshot := *m
	r.mu.Unlock()

	r.persist(ctx, &snapshot)
	return snapshot
}

// SetValidation records the offline validation outcomes.
func (r *Registry) SetValidation(ctx context.Context, strategyID, version string, backtestPassed, walkforwardPassed bool) error {
	r.mu.Lock()
	m, ok := r.strategies[strategyID+"_"+version]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s v%s", ErrNotFound, strategyID, version)
	}
	m.BacktestPassed = backtestPassed
	m.WalkforwardPassed = walkforwardPassed
	m.UpdatedAt = time.Now().UTC()
	snapshot := *m
	r.mu.Unlock()

	r.persist(ctx, &snapshot)
	return nil
}

// Approve flips approved_live when the record meets the requirements.
// Returns whether approval was granted and the specific shortfalls
// when it was not.
func (r *Registry) Approve(ctx context.Context, strategyID, version string, req Requirements) (bool, []string, error) {
	r.mu.Lock()
	m, ok := r.strategies[strategyID+"_"+version]
	if !ok {
		r.mu.Unlock()
		return false, nil, fmt.Errorf("%w: %s v%s", ErrNotFound, strategyID, version)
	}
	shortfalls := m.Shortfalls(req)
	if len(shortfalls) > 0 {
		r.mu.Unlock()
		return false, shortfalls, nil
	}
	now := time.Now().UTC()
	m.ApprovedLive = true
	m.ApprovedAt = &now
	m.UpdatedAt = now
	snapshot := *m
	r.mu.Unlock()

	r.persist(ctx, &snapshot)
	return true, nil, nil
}

// Enable turns on live trading for an approved version.
func (r *Registry) Enable(ctx context.Context, strategyID, version string) error {
	r.mu.Lock()
	m, ok := r.strategies[strategyID+"_"+version]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s v%s", ErrNotFound, strategyID, version)
	}
	if !m.ApprovedLive {
		r.mu.Unlock()
		return fmt.Errorf("strategy %s v%s is not approved for live trading", strategyID, version)
	}
	m.LiveEnabled = true
	m.UpdatedAt = time.Now().UTC()
	snapshot := *m
	r.mu.Unlock()

	r.persist(ctx, &snapshot)
	return nil
}

// Disable turns off live trading. Approval state is kept so the
// version can be re-enabled without revalidation.
func (r *Registry) Disable(ctx context.Context, strategyID, version, reason string) error {
	r.mu.Lock()
	m, ok := r.strategies[strategyID+"_"+version]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s v%s", ErrNotFound, strategyID, version)
	}
	m.LiveEnabled = false
	m.UpdatedAt = time.Now().UTC()
	snapshot := *m
	r.mu.Unlock()

	log.Warn().Str("strategy", strategyID).Str("version", version).
		Str("reason", reason).Msg("live trading disabled")
	r.persist(ctx, &snapshot)
	return nil
}
