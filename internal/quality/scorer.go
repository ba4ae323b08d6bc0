// Package quality scores candidate trades on a 0-100 composite scale
// before execution. The question it answers is not "can we trade" but
// "should we trade".
package quality

import (
	"sync"

	"github.com/quantward/edgegate/internal/market"
)

// Component names used in score breakdowns.
const (
	ComponentSignalStrength = "signal_strength"
	ComponentMarketMatch    = "market_state_match"
	ComponentHistorical     = "historical_performance"
	ComponentRiskReward     = "risk_reward_ratio"
)

// Config controls scoring behavior.
type Config struct {
	MinQualityScore float64 `yaml:"min_quality_score"`
	Enabled         bool    `yaml:"enabled"`

	WeightSignal     float64 `yaml:"weight_signal"`
	WeightMarket     float64 `yaml:"weight_market"`
	WeightHistorical float64 `yaml:"weight_historical"`
	WeightRiskReward float64 `yaml:"weight_risk_reward"`
}

// DefaultConfig returns the standard weights, which sum to 1.0.
func DefaultConfig() *Config {
	return &Config{
		MinQualityScore:  60.0,
		Enabled:          true,
		WeightSignal:     0.30,
		WeightMarket:     0.25,
		WeightHistorical: 0.25,
		WeightRiskReward: 0.20,
	}
}

// Input describes one candidate trade. HistoricalWinRate and
// RiskReward are nil when unknown and score neutrally.
type Input struct {
	Confidence        float64
	Regime            market.Regime
	StrategyType      string
	HistoricalWinRate *float64
	RiskReward        *float64
}

// Result is the scoring outcome with a per-component breakdown.
type Result struct {
	Score      float64            `json:"score"`
	Allowed    bool               `json:"allowed"`
	Components map[string]float64 `json:"components"`
}

// Stats summarizes scoring activity since construction.
type Stats struct {
	Enabled     bool    `json:"enabled"`
	TotalScored int     `json:"total_scored"`
	Passed      int     `json:"passed"`
	Blocked     int     `json:"blocked"`
	AvgScore    float64 `json:"avg_score"`
	PassRate    float64 `json:"pass_rate"`
}

// compatibility maps strategy type to per-regime match scores.
// "generic" is the fallback row for unrecognized strategy types.
var compatibility = map[string]map[market.Regime]float64{
	"trend_following": {
		market.TrendingUp:   90,
		market.TrendingDown: 90,
		market.Ranging:      30,
		market.Volatile:     50,
		market.Quiet:        40,
		market.Unknown:      50,
	},
	"mean_reversion": {
		market.TrendingUp:   40,
		market.TrendingDown: 40,
		market.Ranging:      90,
		market.Volatile:     30,
		market.Quiet:        70,
		market.Unknown:      50,
	},
	"breakout": {
		market.TrendingUp:   70,
		market.TrendingDown: 70,
		market.Ranging:      50,
		market.Volatile:     40,
		market.Quiet:        80,
		market.Unknown:      50,
	},
	"volatility": {
		market.TrendingUp:   50,
		market.TrendingDown: 50,
		market.Ranging:      40,
		market.Volatile:     95,
		market.Quiet:        20,
		market.Unknown:      50,
	},
	"generic": {
		market.TrendingUp:   70,
		market.TrendingDown: 70,
		market.Ranging:      70,
		market.Volatile:     60,
		market.Quiet:        60,
		market.Unknown:      50,
	},
}

// Scorer computes composite trade quality scores. Safe for concurrent
// use; only the running statistics are shared state.
type Scorer struct {
	cfg *Config

	mu     sync.Mutex
	scored int
	passed int
	recent []float64 // last 100 scores for the running average
}

// NewScorer builds a scorer. A nil config uses the defaults.
func NewScorer(cfg *Config) *Scorer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Scorer{cfg: cfg}
}

// Score evaluates one candidate trade. Deterministic for a given input.
func (s *Scorer) Score(in Input) Result {
	if !s.cfg.Enabled {
		return Result{Score: 100, Allowed: true, Components: map[string]float64{}}
	}

	components := map[string]float64{
		ComponentSignalStrength: in.Confidence * 100,
		ComponentMarketMatch:    marketMatchScore(in.StrategyType, in.Regime),
		ComponentHistorical:     historicalScore(in.HistoricalWinRate),
		ComponentRiskReward:     riskRewardScore(in.RiskReward),
	}

	total := components[ComponentSignalStrength]*s.cfg.WeightSignal +
		components[ComponentMarketMatch]*s.cfg.WeightMarket +
		components[ComponentHistorical]*s.cfg.WeightHistorical +
		components[ComponentRiskReward]*s.cfg.WeightRiskReward

	allowed := total >= s.cfg.MinQualityScore

	s.mu.Lock()
	s.scored++
	if allowed {
		s.passed++
	}
	s.recent = append(s.recent, total)
	if len(s.recent) > 100 {
		s.recent = s.recent[len(s.recent)-100:]
	}
	s.mu.Unlock()

	return Result{Score: total, Allowed: allowed, Components: components}
}

// Stats reports scoring activity since construction.
func (s *Scorer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Enabled:     s.cfg.Enabled,
		TotalScored: s.scored,
		Passed:      s.passed,
		Blocked:     s.scored - s.passed,
	}
	if len(s.recent) > 0 {
		var sum float64
		for _, v := range s.recent {
			sum += v
		}
		st.AvgScore = sum / float64(len(s.recent))
	}
	if s.scored > 0 {
		st.PassRate = float64(s.passed) / float64(s.scored)
	}
	return st
}

func marketMatchScore(strategyType string, regime market.Regime) float64 {
	row, ok := compatibility[strategyType]
	if !ok {
		row = compatibility["generic"]
	}
	if score, ok := row[regime]; ok {
		return score
	}
	return 50
}

// historicalScore maps win rate to 0-100 piecewise linearly with
// breakpoints at 0.40, 0.50 and 0.60. Unknown scores neutral.
func historicalScore(winRate *float64) float64 {
	if winRate == nil {
		return 50
	}
	wr := *winRate
	switch {
	case wr < 0.40:
		return 20
	case wr < 0.50:
		return 40 + (wr-0.40)*200
	case wr < 0.60:
		return 60 + (wr-0.50)*250
	default:
		return min100(85 + (wr-0.60)*150)
	}
}

// riskRewardScore steps the reward:risk ratio into bands. Unknown
// scores neutral.
func riskRewardScore(rr *float64) float64 {
	if rr == nil {
		return 60
	}
	switch {
	case *rr < 0.8:
		return 20
	case *rr < 1.2:
		return 50
	case *rr < 1.8:
		return 70
	case *rr < 2.5:
		return 85
	default:
		return 95
	}
}

func min100(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}
