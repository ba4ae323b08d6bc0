package market

import (
	"time"
)

// Regime classifies prevailing market conditions.
type Regime string

const (
	TrendingUp   Regime = "TRENDING_UP"
	TrendingDown Regime = "TRENDING_DOWN"
	Ranging      Regime = "RANGING"
	Volatile     Regime = "VOLATILE"
	Quiet        Regime = "QUIET"
	Unknown      Regime = "UNKNOWN"
)

// Regimes lists every classification the analyzer can emit. Lookup tables
// keyed by Regime should cover all of these.
func Regimes() []Regime {
	return []Regime{TrendingUp, TrendingDown, Ranging, Volatile, Quiet, Unknown}
}

// State is a snapshot of market conditions derived from a bar window.
// It is recomputed per call; only the latest instance is cached by the
// analyzer.
type State struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`

	Price          float64 `json:"price"`
	PriceChange1h  float64 `json:"price_change_1h"`
	PriceChange4h  float64 `json:"price_change_4h"`
	PriceChange24h float64 `json:"price_change_24h"`

	Volatility1h  float64 `json:"volatility_1h"`
	Volatility24h float64 `json:"volatility_24h"`

	Volume24h   float64 `json:"volume_24h"`
	VolumeRatio float64 `json:"volume_ratio"`

	Regime           Regime  `json:"regime"`
	RegimeConfidence float64 `json:"regime_confidence"`
}

// FavorsStrategy reports whether the current regime suits a strategy type.
func (s *State) FavorsStrategy(strategyType string) bool {
	if s.Regime == Unknown {
		return false
	}
	switch strategyType {
	case "trend_following":
		return s.Regime == TrendingUp || s.Regime == TrendingDown
	case "mean_reversion":
		return s.Regime == Ranging
	case "breakout":
		return s.Regime == Quiet || s.Regime == Ranging
	case "volatility":
		return s.Regime == Volatile
	default:
		return true
	}
}
