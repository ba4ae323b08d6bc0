package walkforward

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantward/edgegate/internal/backtest"
	"github.com/quantward/edgegate/internal/market"
)

func mkBar(i int, open, high, low, close float64) market.Bar {
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	return market.Bar{
		Timestamp: base.Add(time.Duration(i) * 15 * time.Minute),
		Open:      open, High: high, Low: low, Close: close, Volume: 1000,
	}
}

// profitableBars alternate entry bars with bars that hit the target.
func profitableBars(n int) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		if i%2 == 0 {
			bars[i] = mkBar(i, 100, 100.5, 99.5, 100)
		} else {
			bars[i] = mkBar(i, 100, 103, 100, 102)
		}
	}
	return bars
}

// losingBars alternate entry bars with bars that slide through the stop.
func losingBars(n, offset int) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		if i%2 == 0 {
			bars[i] = mkBar(offset+i, 100, 100.5, 99.5, 100)
		} else {
			bars[i] = mkBar(offset+i, 100, 100, 95, 96)
		}
	}
	return bars
}

// scalper buys every even bar with both exits armed.
func scalper(_ market.Bar, i int) backtest.Signal {
	if i%2 == 0 {
		return backtest.Signal{Action: backtest.ActionLong, SizeUSD: 1000, TakeProfit: 101, StopLoss: 97}
	}
	return backtest.Hold()
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.TrainWindowSize = 40
	cfg.TestWindowSize = 40
	cfg.StepSize = 20
	return cfg
}

func TestValidate_InsufficientData(t *testing.T) {
	v := NewValidator(testConfig())
	rep := v.Validate(scalper, profitableBars(50), "s1", "1.0")
	assert.False(t, rep.Passed)
	assert.Contains(t, rep.FailReason, "insufficient data")
	assert.Zero(t, rep.TotalWindows)
}

func TestValidate_ConsistentStrategyPasses(t *testing.T) {
	v := NewValidator(testConfig())
	rep := v.Validate(scalper, profitableBars(200), "s1", "1.0")

	// Windows at step offsets: floor((200-80)/20)+1 = 7.
	assert.Equal(t, 7, rep.TotalWindows)
	assert.Equal(t, 7, rep.PassedWindows)
	assert.InDelta(t, 1.0, rep.Consistency, 1e-9)
	assert.True(t, rep.Passed)
	assert.Empty(t, rep.FailReason)

	// Identical train and test behavior means no degradation.
	for _, w := range rep.Windows {
		assert.InDelta(t, 0.0, w.Degradation, 1e-9)
		assert.Positive(t, w.TestResult.TotalPnL)
	}
}

func TestValidate_WindowBoundaries(t *testing.T) {
	bars := profitableBars(200)
	v := NewValidator(testConfig())
	rep := v.Validate(scalper, bars, "s1", "1.0")

	require.NotEmpty(t, rep.Windows)
	w0 := rep.Windows[0]
	assert.Equal(t, 0, w0.ID)
	assert.Equal(t, bars[0].Timestamp, w0.TrainStart)
	assert.Equal(t, bars[39].Timestamp, w0.TrainEnd)
	assert.Equal(t, bars[40].Timestamp, w0.TestStart)
	assert.Equal(t, bars[79].Timestamp, w0.TestEnd)

	w1 := rep.Windows[1]
	assert.Equal(t, bars[20].Timestamp, w1.TrainStart)
}

func TestValidate_DegradedTailLowersConsistency(t *testing.T) {
	v := NewValidator(testConfig())

	baseline := v.Validate(scalper, profitableBars(200), "s1", "1.0")
	degraded := append(profitableBars(120), losingBars(80, 120)...)
	rep := v.Validate(scalper, degraded, "s1", "1.0")

	assert.Equal(t, baseline.TotalWindows, rep.TotalWindows)
	assert.Less(t, rep.Consistency, baseline.Consistency)
	assert.False(t, rep.Passed)
	assert.Contains(t, rep.FailReason, "consistency")
}

func TestValidate_ParallelMatchesSequential(t *testing.T) {
	bars := append(profitableBars(120), losingBars(80, 120)...)

	seq := testConfig()
	seq.Parallelism = 1
	par := testConfig()
	par.Parallelism = 4

	repSeq := NewValidator(seq).Validate(scalper, bars, "s1", "1.0")
	repPar := NewValidator(par).Validate(scalper, bars, "s1", "1.0")

	assert.Equal(t, repSeq.PassedWindows, repPar.PassedWindows)
	assert.InDelta(t, repSeq.AvgTestPnL, repPar.AvgTestPnL, 1e-9)
	require.Equal(t, len(repSeq.Windows), len(repPar.Windows))
	for i := range repSeq.Windows {
		assert.Equal(t, repSeq.Windows[i].Passed, repPar.Windows[i].Passed)
	}
}

func TestRender(t *testing.T) {
	v := NewValidator(testConfig())
	rep := v.Validate(scalper, profitableBars(200), "s1", "1.0")
	out := Render(rep)
	assert.Contains(t, out, "windows passed: 7/7")
	assert.Contains(t, out, "overall: PASSED")
}
