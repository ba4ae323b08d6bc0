package market

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// ClassifierConfig holds the thresholds used to classify a regime from a
// bar window. Returns and volatilities are fractional (0.02 = 2%).
type ClassifierConfig struct {
	VolatileAbove float64 `yaml:"volatile_above"` // 24h volatility above this → VOLATILE (0.05)
	QuietBelow    float64 `yaml:"quiet_below"`    // 24h volatility below this → QUIET (0.01)
	TrendAbove    float64 `yaml:"trend_above"`    // |24h change| above this → TRENDING (0.02)

	// Window sizes in bars, assuming 15m bars by default.
	BarsPerHour int `yaml:"bars_per_hour"` // 4
	BarsPerDay  int `yaml:"bars_per_day"`  // 96
}

// DefaultClassifierConfig returns production thresholds.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		VolatileAbove: 0.05,
		QuietBelow:    0.01,
		TrendAbove:    0.02,
		BarsPerHour:   4,
		BarsPerDay:    96,
	}
}

// Analyzer derives a market State from a bar window. Classification itself
// is a pure function of the window; the analyzer only caches the most
// recently produced State.
type Analyzer struct {
	cfg  ClassifierConfig
	last *State
}

// NewAnalyzer creates an analyzer. A nil config uses defaults.
func NewAnalyzer(cfg *ClassifierConfig) *Analyzer {
	c := DefaultClassifierConfig()
	if cfg != nil {
		c = *cfg
	}
	return &Analyzer{cfg: c}
}

// Latest returns the most recently computed state, or nil before the first
// Analyze call.
func (a *Analyzer) Latest() *State {
	return a.last
}

// Analyze computes the market state for a bar window. Windows shorter than
// two bars yield an UNKNOWN regime rather than an error.
func (a *Analyzer) Analyze(bars []Bar, symbol string) State {
	if len(bars) < 2 {
		state := State{
			Timestamp: time.Now().UTC(),
			Symbol:    symbol,
			Regime:    Unknown,
		}
		a.last = &state
		return state
	}

	latest := bars[len(bars)-1]
	state := State{
		Timestamp:      latest.Timestamp,
		Symbol:         symbol,
		Price:          latest.Close,
		PriceChange1h:  priceChange(bars, a.cfg.BarsPerHour),
		PriceChange4h:  priceChange(bars, 4*a.cfg.BarsPerHour),
		PriceChange24h: priceChange(bars, a.cfg.BarsPerDay),
		Volatility1h:   volatility(tail(bars, a.cfg.BarsPerHour)),
		Volatility24h:  volatility(tail(bars, a.cfg.BarsPerDay)),
	}

	day := tail(bars, a.cfg.BarsPerDay)
	for _, b := range day {
		state.Volume24h += b.Volume
	}
	if avg := state.Volume24h / float64(len(day)); avg > 0 {
		state.VolumeRatio = latest.Volume / avg
	} else {
		state.VolumeRatio = 1.0
	}

	state.Regime, state.RegimeConfidence = a.classify(&state)

	log.Debug().
		Str("symbol", symbol).
		Str("regime", string(state.Regime)).
		Float64("confidence", state.RegimeConfidence).
		Float64("vol_24h", state.Volatility24h).
		Msg("market state classified")

	a.last = &state
	return state
}

// classify maps a computed state to a regime. Volatility extremes take
// precedence over directional moves; anything that is neither extreme nor
// trending is RANGING.
func (a *Analyzer) classify(s *State) (Regime, float64) {
	if s.PriceChange24h == 0 && s.Volatility24h == 0 {
		return Unknown, 0.0
	}

	if s.Volatility24h > a.cfg.VolatileAbove {
		return Volatile, math.Min(s.Volatility24h/(2*a.cfg.VolatileAbove), 1.0)
	}
	if s.Volatility24h < a.cfg.QuietBelow {
		return Quiet, 1.0 - s.Volatility24h/a.cfg.QuietBelow
	}
	if s.PriceChange24h > a.cfg.TrendAbove {
		return TrendingUp, math.Min(s.PriceChange24h/(2.5*a.cfg.TrendAbove), 1.0)
	}
	if s.PriceChange24h < -a.cfg.TrendAbove {
		return TrendingDown, math.Min(-s.PriceChange24h/(2.5*a.cfg.TrendAbove), 1.0)
	}
	return Ranging, 1.0 - math.Abs(s.PriceChange24h)/a.cfg.TrendAbove
}

func priceChange(bars []Bar, periods int) float64 {
	if len(bars) < periods+1 {
		return 0.0
	}
	old := bars[len(bars)-periods-1].Close
	if old == 0 {
		return 0.0
	}
	return (bars[len(bars)-1].Close - old) / old
}

func volatility(bars []Bar) float64 {
	if len(bars) < 2 {
		return 0.0
	}
	var returns []float64
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev > 0 {
			returns = append(returns, (bars[i].Close-prev)/prev)
		}
	}
	if len(returns) == 0 {
		return 0.0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance)
}

func tail(bars []Bar, n int) []Bar {
	if len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}
