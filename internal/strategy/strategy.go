// Package strategy provides reference decision functions for the
// validation pipeline. Each constructor returns a fresh closure holding
// its own rolling state, so a function must not be shared across
// concurrent simulations.
package strategy

import (
	"math"

	"github.com/quantward/edgegate/internal/backtest"
	"github.com/quantward/edgegate/internal/market"
)

// Names of the built-in strategies, usable from the CLI.
const (
	NameSMACross      = "sma_cross"
	NameMeanReversion = "mean_reversion"
	NameBreakout      = "breakout"
)

// Builders maps strategy names to their default constructors.
var Builders = map[string]func() backtest.StrategyFunc{
	NameSMACross:      func() backtest.StrategyFunc { return SMACross(10, 30, 0.03, 0.06) },
	NameMeanReversion: func() backtest.StrategyFunc { return MeanReversion(20, 2.0, 0.04) },
	NameBreakout:      func() backtest.StrategyFunc { return Breakout(20, 0.03) },
}

// window is a fixed-size rolling series of closes.
type window struct {
	vals []float64
	size int
}

func newWindow(size int) *window {
	return &window{size: size}
}

func (w *window) push(v float64) {
	w.vals = append(w.vals, v)
	if len(w.vals) > w.size {
		w.vals = w.vals[len(w.vals)-w.size:]
	}
}

func (w *window) full() bool { return len(w.vals) == w.size }

func (w *window) mean() float64 {
	sum := 0.0
	for _, v := range w.vals {
		sum += v
	}
	return sum / float64(len(w.vals))
}

func (w *window) std() float64 {
	m := w.mean()
	sum := 0.0
	for _, v := range w.vals {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(w.vals)))
}

func (w *window) max() float64 {
	hi := w.vals[0]
	for _, v := range w.vals[1:] {
		if v > hi {
			hi = v
		}
	}
	return hi
}

// SMACross goes long when the fast moving average crosses above the
// slow one and closes on the cross back down. Stops are set relative to
// the entry bar's close.
func SMACross(fast, slow int, stopPct, targetPct float64) backtest.StrategyFunc {
	fastW := newWindow(fast)
	slowW := newWindow(slow)
	prevDiff := 0.0
	havePrev := false
	inPosition := false

	return func(bar market.Bar, index int) backtest.Signal {
		fastW.push(bar.Close)
		slowW.push(bar.Close)
		if !slowW.full() {
			return backtest.Hold()
		}

		diff := fastW.mean() - slowW.mean()
		defer func() { prevDiff, havePrev = diff, true }()

		if !havePrev {
			return backtest.Hold()
		}

		crossedUp := prevDiff <= 0 && diff > 0
		crossedDown := prevDiff >= 0 && diff < 0

		switch {
		case crossedUp && !inPosition:
			inPosition = true
			return backtest.Signal{
				Action:     backtest.ActionLong,
				StopLoss:   bar.Close * (1 - stopPct),
				TakeProfit: bar.Close * (1 + targetPct),
			}
		case crossedDown && inPosition:
			inPosition = false
			return backtest.Signal{Action: backtest.ActionClose}
		default:
			return backtest.Hold()
		}
	}
}

// MeanReversion goes long when the close drops more than zEntry
// standard deviations below the rolling mean and exits once price
// recovers to the mean.
func MeanReversion(lookback int, zEntry, stopPct float64) backtest.StrategyFunc {
	w := newWindow(lookback)
	inPosition := false

	return func(bar market.Bar, index int) backtest.Signal {
		w.push(bar.Close)
		if !w.full() {
			return backtest.Hold()
		}

		std := w.std()
		if std == 0 {
			return backtest.Hold()
		}
		z := (bar.Close - w.mean()) / std

		switch {
		case !inPosition && z < -zEntry:
			inPosition = true
			return backtest.Signal{
				Action:   backtest.ActionLong,
				StopLoss: bar.Close * (1 - stopPct),
			}
		case inPosition && z >= 0:
			inPosition = false
			return backtest.Signal{Action: backtest.ActionClose}
		default:
			return backtest.Hold()
		}
	}
}

// Breakout goes long when the close exceeds the rolling high of the
// prior lookback bars, riding the move with a trailing stop.
func Breakout(lookback int, trailPct float64) backtest.StrategyFunc {
	w := newWindow(lookback)
	inPosition := false

	return func(bar market.Bar, index int) backtest.Signal {
		if !w.full() {
			w.push(bar.Close)
			return backtest.Hold()
		}
		priorHigh := w.max()
		w.push(bar.Close)

		if !inPosition && bar.Close > priorHigh {
			inPosition = true
			return backtest.Signal{
				Action:          backtest.ActionLong,
				TrailingStopPct: trailPct,
			}
		}
		// Trailing exits are handled by the engine; track state off the
		// next failed breakout so re-entries stay possible.
		if inPosition && bar.Close < priorHigh {
			inPosition = false
		}
		return backtest.Hold()
	}
}
