package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantward/edgegate/internal/market"
)

func mkBar(i int, open, high, low, close float64) market.Bar {
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	return market.Bar{
		Timestamp: base.Add(time.Duration(i) * 15 * time.Minute),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1000,
	}
}

func flatBars(n int, price float64) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = mkBar(i, price, price, price, price)
	}
	return bars
}

func TestRun_EmptyData(t *testing.T) {
	e := NewEngine(nil)
	res := e.Run(func(market.Bar, int) Signal { return Hold() }, nil, "s1", "1.0")
	assert.False(t, res.Passed)
	assert.Equal(t, "no historical data", res.FailReason)
	assert.Zero(t, res.TotalBars)
}

func TestRun_NoEntriesFailsWithInsufficientTrades(t *testing.T) {
	e := NewEngine(nil)
	res := e.Run(func(market.Bar, int) Signal { return Hold() }, flatBars(50, 100), "s1", "1.0")
	assert.Zero(t, res.TotalTrades)
	assert.False(t, res.Passed)
	assert.Equal(t, "insufficient trades", res.FailReason)
}

func TestRun_StopBeatsTargetOnSameBar(t *testing.T) {
	bars := []market.Bar{
		mkBar(0, 100, 100, 100, 100),
		// This bar spans both the stop (95) and the target (110).
		mkBar(1, 100, 111, 94, 96),
		mkBar(2, 96, 96, 96, 96),
	}
	strategy := func(_ market.Bar, i int) Signal {
		if i == 0 {
			return Signal{Action: ActionLong, SizeUSD: 1000, StopLoss: 95, TakeProfit: 110}
		}
		return Hold()
	}
	e := NewEngine(nil)
	res := e.Run(strategy, bars, "s1", "1.0")

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, "stop_loss", tr.ExitReason)
	// Exits fill at the triggering bar's close.
	assert.Equal(t, 96.0, tr.ExitPrice)
	assert.InDelta(t, (96.0-100.0)*10, tr.PnL, 1e-9)
	assert.False(t, tr.Win)
}

func TestRun_TakeProfitLong(t *testing.T) {
	bars := []market.Bar{
		mkBar(0, 100, 100, 100, 100),
		mkBar(1, 100, 111, 99, 108),
	}
	strategy := func(_ market.Bar, i int) Signal {
		if i == 0 {
			return Signal{Action: ActionLong, SizeUSD: 1000, TakeProfit: 110}
		}
		return Hold()
	}
	res := NewEngine(nil).Run(strategy, bars, "s1", "1.0")

	require.Len(t, res.Trades, 1)
	assert.Equal(t, "take_profit", res.Trades[0].ExitReason)
	assert.InDelta(t, (108.0-100.0)*10, res.Trades[0].PnL, 1e-9)
	assert.True(t, res.Trades[0].Win)
}

func TestRun_ShortProfitsWhenPriceFalls(t *testing.T) {
	bars := []market.Bar{
		mkBar(0, 100, 100, 100, 100),
		mkBar(1, 100, 100, 89, 91),
	}
	strategy := func(_ market.Bar, i int) Signal {
		if i == 0 {
			return Signal{Action: ActionShort, SizeUSD: 1000, TakeProfit: 90}
		}
		return Hold()
	}
	res := NewEngine(nil).Run(strategy, bars, "s1", "1.0")

	require.Len(t, res.Trades, 1)
	assert.Equal(t, Short, res.Trades[0].Side)
	assert.Equal(t, "take_profit", res.Trades[0].ExitReason)
	assert.InDelta(t, (100.0-91.0)*10, res.Trades[0].PnL, 1e-9)
}

func TestRun_TrailingStop(t *testing.T) {
	bars := []market.Bar{
		mkBar(0, 100, 100, 100, 100),
		mkBar(1, 100, 120, 100, 119), // trail level 114, close above it
		mkBar(2, 119, 120, 112, 113), // close below 114, trail fires
	}
	strategy := func(_ market.Bar, i int) Signal {
		if i == 0 {
			return Signal{Action: ActionLong, SizeUSD: 1000, TrailingStopPct: 0.05}
		}
		return Hold()
	}
	res := NewEngine(nil).Run(strategy, bars, "s1", "1.0")

	require.Len(t, res.Trades, 1)
	assert.Equal(t, "trailing_stop", res.Trades[0].ExitReason)
	assert.Equal(t, 113.0, res.Trades[0].ExitPrice)
}

func TestRun_SignalDrivenExit(t *testing.T) {
	bars := flatBars(5, 100)
	strategy := func(_ market.Bar, i int) Signal {
		switch i {
		case 0:
			return Signal{Action: ActionLong, SizeUSD: 1000}
		case 3:
			return Signal{Action: ActionClose}
		default:
			return Hold()
		}
	}
	res := NewEngine(nil).Run(strategy, bars, "s1", "1.0")

	require.Len(t, res.Trades, 1)
	assert.Equal(t, "signal_exit", res.Trades[0].ExitReason)
	assert.Equal(t, 45*time.Minute, res.Trades[0].Duration)
}

func TestRun_OpenPositionClosedAtEnd(t *testing.T) {
	bars := []market.Bar{
		mkBar(0, 100, 100, 100, 100),
		mkBar(1, 100, 106, 100, 105),
	}
	strategy := func(_ market.Bar, i int) Signal {
		if i == 0 {
			return Signal{Action: ActionLong, SizeUSD: 1000}
		}
		return Hold()
	}
	res := NewEngine(nil).Run(strategy, bars, "s1", "1.0")

	require.Len(t, res.Trades, 1)
	assert.Equal(t, "backtest_end", res.Trades[0].ExitReason)
	assert.Equal(t, 105.0, res.Trades[0].ExitPrice)
}

// scalper enters on even bars and rides the next bar to its target.
func scalperFixture(trades int) ([]market.Bar, StrategyFunc) {
	bars := make([]market.Bar, trades*2)
	for i := range bars {
		if i%2 == 0 {
			bars[i] = mkBar(i, 100, 100.5, 99.5, 100)
		} else {
			bars[i] = mkBar(i, 100, 103, 100, 102)
		}
	}
	strategy := func(_ market.Bar, i int) Signal {
		if i%2 == 0 {
			return Signal{Action: ActionLong, SizeUSD: 1000, TakeProfit: 101}
		}
		return Hold()
	}
	return bars, strategy
}

func TestRun_ProfitableStrategyPasses(t *testing.T) {
	bars, strategy := scalperFixture(12)
	res := NewEngine(nil).Run(strategy, bars, "scalper", "2.1")

	assert.Equal(t, 12, res.TotalTrades)
	assert.InDelta(t, 1.0, res.WinRate, 1e-9)
	assert.InDelta(t, 240.0, res.TotalPnL, 1e-6)
	assert.True(t, res.Passed, "fail reason: %s", res.FailReason)
	assert.Empty(t, res.FailReason)
	assert.Equal(t, maxProfitFactor, res.ProfitFactor)
}

func TestRun_EquityCurveTracksCapital(t *testing.T) {
	bars, strategy := scalperFixture(3)
	res := NewEngine(nil).Run(strategy, bars, "scalper", "2.1")

	require.Len(t, res.EquityCurve, len(bars)+1)
	assert.Equal(t, 10000.0, res.EquityCurve[0])
	assert.InDelta(t, 10060.0, res.EquityCurve[len(res.EquityCurve)-1], 1e-6)
}

func TestRun_LosingStrategyFailsOnWinRate(t *testing.T) {
	// Enter long every even bar, stop out on the next bar's slide.
	bars := make([]market.Bar, 24)
	for i := range bars {
		if i%2 == 0 {
			bars[i] = mkBar(i, 100, 100, 100, 100)
		} else {
			bars[i] = mkBar(i, 100, 100, 95, 96)
		}
	}
	strategy := func(_ market.Bar, i int) Signal {
		if i%2 == 0 {
			return Signal{Action: ActionLong, SizeUSD: 1000, StopLoss: 97}
		}
		return Hold()
	}
	res := NewEngine(nil).Run(strategy, bars, "loser", "1.0")

	assert.Equal(t, 12, res.TotalTrades)
	assert.False(t, res.Passed)
	assert.Equal(t, "win rate below minimum", res.FailReason)
	assert.Negative(t, res.TotalPnL)
}
