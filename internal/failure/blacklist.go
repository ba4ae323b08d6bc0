// Package failure tracks systematically losing (strategy, condition)
// combinations. The blacklist blocks known losers on the live path;
// the miner discovers new patterns offline from trade history.
package failure

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantward/edgegate/internal/market"
)

// VolatilityBucket coarsens a raw volatility reading for grouping.
type VolatilityBucket string

const (
	VolLow    VolatilityBucket = "LOW"
	VolMedium VolatilityBucket = "MEDIUM"
	VolHigh   VolatilityBucket = "HIGH"
)

// ClassifyVolatility buckets a fractional volatility reading.
func ClassifyVolatility(v float64) VolatilityBucket {
	switch {
	case v < 0.01:
		return VolLow
	case v < 0.03:
		return VolMedium
	default:
		return VolHigh
	}
}

// BlacklistConfig holds the blocking thresholds.
type BlacklistConfig struct {
	Enabled          bool    `yaml:"enabled"`
	MinTrades        int     `yaml:"min_trades"`
	WinRateThreshold float64 `yaml:"win_rate_threshold"`
	EVThreshold      float64 `yaml:"ev_threshold"`
	PFThreshold      float64 `yaml:"pf_threshold"`
}

// DefaultBlacklistConfig returns the standard thresholds.
func DefaultBlacklistConfig() *BlacklistConfig {
	return &BlacklistConfig{
		Enabled:          true,
		MinTrades:        10,
		WinRateThreshold: 0.40,
		EVThreshold:      -50.0,
		PFThreshold:      0.8,
	}
}

// comboStats accumulates outcomes for one combination key.
type comboStats struct {
	StrategyID string           `json:"strategy_id"`
	Regime     market.Regime    `json:"regime"`
	VolBucket  VolatilityBucket `json:"vol_bucket,omitempty"`

	Trades    int     `json:"trades"`
	Wins      int     `json:"wins"`
	TotalPnL  float64 `json:"total_pnl"`
	GrossWin  float64 `json:"gross_win"`
	GrossLoss float64 `json:"gross_loss"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (c *comboStats) winRate() float64 {
	if c.Trades == 0 {
		return 0
	}
	return float64(c.Wins) / float64(c.Trades)
}

// expectedValue is average pnl per trade in account currency.
func (c *comboStats) expectedValue() float64 {
	if c.Trades == 0 {
		return 0
	}
	return c.TotalPnL / float64(c.Trades)
}

func (c *comboStats) profitFactor() float64 {
	if c.GrossLoss <= 0 {
		return 999.0
	}
	pf := c.GrossWin / c.GrossLoss
	if pf > 999.0 {
		pf = 999.0
	}
	return pf
}

// Blacklist maintains rolling outcome counts per combination and
// blocks combinations that meet the failure thresholds. Safe for
// concurrent use.
type Blacklist struct {
	cfg *BlacklistConfig

	mu      sync.RWMutex
	combos  map[string]*comboStats
	blocked map[string]string // key -> block reason
}

// NewBlacklist builds a blacklist. A nil config uses the defaults.
func NewBlacklist(cfg *BlacklistConfig) *Blacklist {
	if cfg == nil {
		cfg = DefaultBlacklistConfig()
	}
	return &Blacklist{
		cfg:     cfg,
		combos:  make(map[string]*comboStats),
		blocked: make(map[string]string),
	}
}

// comboKey joins the dimensions with increasing specificity.
func comboKey(strategyID string, regime market.Regime, vol *VolatilityBucket) string {
	parts := []string{strategyID, string(regime)}
	if vol != nil {
		parts = append(parts, string(*vol))
	}
	return strings.Join(parts, "|")
}

// Check reports whether the combination is allowed. The most specific
// key (with volatility) is consulted first, then the general one.
func (b *Blacklist) Check(strategyID string, regime market.Regime, volatility *float64) (bool, string) {
	if !b.cfg.Enabled {
		return true, "blacklist disabled"
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	if volatility != nil {
		bucket := ClassifyVolatility(*volatility)
		if reason, ok := b.blocked[comboKey(strategyID, regime, &bucket)]; ok {
			return false, "blacklisted: " + reason
		}
	}
	if reason, ok := b.blocked[comboKey(strategyID, regime, nil)]; ok {
		return false, "blacklisted: " + reason
	}
	return true, "not blacklisted"
}

// RecordOutcome folds one trade result into the combination's stats
// and blocks the combination once the thresholds are met.
func (b *Blacklist) RecordOutcome(strategyID string, regime market.Regime, volatility *float64, pnl float64) {
	var bucketPtr *VolatilityBucket
	if volatility != nil {
		bucket := ClassifyVolatility(*volatility)
		bucketPtr = &bucket
	}
	key := comboKey(strategyID, regime, bucketPtr)

	b.mu.Lock()
	defer b.mu.Unlock()

	cs, ok := b.combos[key]
	if !ok {
		cs = &comboStats{StrategyID: strategyID, Regime: regime}
		if bucketPtr != nil {
			cs.VolBucket = *bucketPtr
		}
		b.combos[key] = cs
	}

	cs.Trades++
	cs.TotalPnL += pnl
	if pnl > 0 {
		cs.Wins++
		cs.GrossWin += pnl
	} else if pnl < 0 {
		cs.GrossLoss += -pnl
	}
	cs.UpdatedAt = time.Now().UTC()

	if cs.Trades < b.cfg.MinTrades {
		return
	}
	if _, already := b.blocked[key]; already {
		return
	}

	var reason string
	switch {
	case cs.winRate() < b.cfg.WinRateThreshold:
		reason = fmt.Sprintf("win rate %.2f below %.2f over %d trades",
			cs.winRate(), b.cfg.WinRateThreshold, cs.Trades)
	case cs.expectedValue() < b.cfg.EVThreshold:
		reason = fmt.Sprintf("expected value %.2f below %.2f over %d trades",
			cs.expectedValue(), b.cfg.EVThreshold, cs.Trades)
	case cs.profitFactor() < b.cfg.PFThreshold:
		reason = fmt.Sprintf("profit factor %.2f below %.2f over %d trades",
			cs.profitFactor(), b.cfg.PFThreshold, cs.Trades)
	default:
		return
	}

	b.blocked[key] = reason
	log.Warn().Str("combination", key).Str("reason", reason).
		Msg("combination blacklisted")
}

// BlockedEntry is one blacklisted combination for reporting.
type BlockedEntry struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Blocked lists current blacklisted combinations.
func (b *Blacklist) Blocked() []BlockedEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]BlockedEntry, 0, len(b.blocked))
	for k, r := range b.blocked {
		out = append(out, BlockedEntry{Key: k, Reason: r})
	}
	return out
}
