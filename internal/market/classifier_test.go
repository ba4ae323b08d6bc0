package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// synth builds a bar series from a closing-price walk; volume is constant.
func synth(closes []float64) []Bar {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{
			Timestamp: start.Add(time.Duration(i) * 15 * time.Minute),
			Open:      c,
			High:      c * 1.001,
			Low:       c * 0.999,
			Close:     c,
			Volume:    100,
		}
	}
	return bars
}

// rampBars climbs (or falls) with enough per-bar jitter to keep 24h
// volatility out of the QUIET band without tripping the VOLATILE one.
func rampBars(n int, start, step float64) []Bar {
	closes := make([]float64, n)
	for i := range closes {
		base := start + float64(i)*step
		if i%2 == 1 {
			base *= 1.015
		}
		closes[i] = base
	}
	return synth(closes)
}

func TestAnalyze_TrendingUp(t *testing.T) {
	a := NewAnalyzer(nil)
	bars := rampBars(100, 100.0, 0.06)

	state := a.Analyze(bars, "BTCUSDT")
	assert.Equal(t, TrendingUp, state.Regime)
	assert.Greater(t, state.PriceChange24h, 0.02)
	assert.Greater(t, state.RegimeConfidence, 0.0)
}

func TestAnalyze_TrendingDown(t *testing.T) {
	a := NewAnalyzer(nil)
	bars := rampBars(100, 105.0, -0.06)

	state := a.Analyze(bars, "BTCUSDT")
	assert.Equal(t, TrendingDown, state.Regime)
	assert.Less(t, state.PriceChange24h, -0.02)
}

func TestAnalyze_Volatile(t *testing.T) {
	a := NewAnalyzer(nil)
	closes := make([]float64, 100)
	for i := range closes {
		// Alternate ±8% swings; net change stays near zero.
		if i%2 == 0 {
			closes[i] = 100.0
		} else {
			closes[i] = 108.0
		}
	}
	state := a.Analyze(synth(closes), "ETHUSDT")
	assert.Equal(t, Volatile, state.Regime)
}

func TestAnalyze_Quiet(t *testing.T) {
	a := NewAnalyzer(nil)
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100.0 + 0.001*float64(i%2)
	}
	state := a.Analyze(synth(closes), "BTCUSDT")
	assert.Equal(t, Quiet, state.Regime)
}

func TestAnalyze_ShortWindowIsUnknown(t *testing.T) {
	a := NewAnalyzer(nil)
	state := a.Analyze(synth([]float64{100}), "BTCUSDT")
	assert.Equal(t, Unknown, state.Regime)
	assert.Zero(t, state.RegimeConfidence)
}

func TestAnalyze_CachesLatest(t *testing.T) {
	a := NewAnalyzer(nil)
	require.Nil(t, a.Latest())

	a.Analyze(rampBars(100, 100, 0.05), "BTCUSDT")
	require.NotNil(t, a.Latest())
	assert.Equal(t, "BTCUSDT", a.Latest().Symbol)
}

func TestFavorsStrategy(t *testing.T) {
	trending := &State{Regime: TrendingUp}
	ranging := &State{Regime: Ranging}
	unknown := &State{Regime: Unknown}

	assert.True(t, trending.FavorsStrategy("trend_following"))
	assert.False(t, trending.FavorsStrategy("mean_reversion"))
	assert.True(t, ranging.FavorsStrategy("mean_reversion"))
	assert.True(t, ranging.FavorsStrategy("breakout"))
	assert.False(t, unknown.FavorsStrategy("trend_following"))
	assert.True(t, trending.FavorsStrategy("some_generic_type"))
}
