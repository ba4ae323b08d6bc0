package backtest

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantward/edgegate/internal/market"
)

// Profit factor is kept finite when there are no losing trades so
// results stay JSON-encodable.
const maxProfitFactor = 1000.0

// Config holds the simulation parameters and pass criteria.
type Config struct {
	InitialCapital      float64 `yaml:"initial_capital"`
	DefaultPositionFrac float64 `yaml:"default_position_frac"`

	MinTrades       int     `yaml:"min_trades"`
	MinWinRate      float64 `yaml:"min_win_rate"`
	MinProfitFactor float64 `yaml:"min_profit_factor"`
	MaxDrawdownFrac float64 `yaml:"max_drawdown_frac"`
}

// DefaultConfig returns the standard simulation parameters.
func DefaultConfig() *Config {
	return &Config{
		InitialCapital:      10000.0,
		DefaultPositionFrac: 0.02,
		MinTrades:           10,
		MinWinRate:          0.45,
		MinProfitFactor:     1.1,
		MaxDrawdownFrac:     0.30,
	}
}

// position is the single open position during a run.
type position struct {
	side            Side
	entryBar        int
	entryPrice      float64
	entryTime       time.Time
	quantity        float64
	sizeUSD         float64
	stopLoss        float64
	takeProfit      float64
	trailingStopPct float64
	highestPrice    float64
	lowestPrice     float64
	regime          market.Regime
}

// Engine runs one strategy over one bar sequence. Engines hold run
// state, so use a fresh engine (or sequential Run calls) per
// simulation; concurrent runs need separate engines.
type Engine struct {
	cfg      *Config
	analyzer *market.Analyzer

	capital     float64
	trades      []TradeRecord
	open        *position
	equityCurve []float64
	peakEquity  float64
	maxDrawdown float64
}

// NewEngine builds an engine. A nil config uses the defaults.
func NewEngine(cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg, analyzer: market.NewAnalyzer(nil)}
}

func (e *Engine) reset() {
	e.capital = e.cfg.InitialCapital
	e.trades = nil
	e.open = nil
	e.equityCurve = []float64{e.cfg.InitialCapital}
	e.peakEquity = e.cfg.InitialCapital
	e.maxDrawdown = 0
}

// Run simulates the strategy over the bars. Malformed input never
// panics or errors: an empty series yields passed=false with a
// diagnostic reason.
func (e *Engine) Run(strategy StrategyFunc, bars []market.Bar, strategyID, version string) Result {
	e.reset()

	res := Result{
		StrategyID: strategyID,
		Version:    version,
		TotalBars:  len(bars),
	}
	if len(bars) == 0 {
		res.FailReason = "no historical data"
		return res
	}
	res.StartTime = bars[0].Timestamp
	res.EndTime = bars[len(bars)-1].Timestamp

	log.Debug().Str("strategy", strategyID).Str("version", version).
		Int("bars", len(bars)).Float64("capital", e.cfg.InitialCapital).
		Msg("backtest starting")

	for i, bar := range bars {
		// Exit checks run before the strategy sees the bar, so a
		// freshly freed slot can re-enter on the same bar.
		if e.open != nil {
			if reason, hit := e.checkExit(bar); hit {
				e.closePosition(bar, bar.Close, reason, strategyID, version)
			}
		}

		sig := strategy(bar, i)
		if e.open == nil {
			switch sig.Action {
			case ActionLong:
				e.openPosition(bars, i, Long, sig)
			case ActionShort:
				e.openPosition(bars, i, Short, sig)
			}
		} else if sig.Action == ActionClose {
			e.closePosition(bar, bar.Close, "signal_exit", strategyID, version)
		}

		equity := e.capital
		if e.open != nil {
			equity += e.unrealizedPnL(bar.Close)
		}
		e.equityCurve = append(e.equityCurve, equity)
		if equity > e.peakEquity {
			e.peakEquity = equity
		}
		if dd := e.peakEquity - equity; dd > e.maxDrawdown {
			e.maxDrawdown = dd
		}
	}

	if e.open != nil {
		last := bars[len(bars)-1]
		e.closePosition(last, last.Close, "backtest_end", strategyID, version)
	}

	e.fillMetrics(&res)
	res.Passed, res.FailReason = e.evaluate(res)

	log.Debug().Str("strategy", strategyID).Int("trades", res.TotalTrades).
		Float64("pnl", res.TotalPnL).Bool("passed", res.Passed).
		Msg("backtest complete")
	return res
}

func (e *Engine) openPosition(bars []market.Bar, i int, side Side, sig Signal) {
	bar := bars[i]
	sizeUSD := sig.SizeUSD
	if sizeUSD <= 0 {
		sizeUSD = e.capital * e.cfg.DefaultPositionFrac
	}
	if bar.Close <= 0 {
		return
	}
	state := e.analyzer.Analyze(bars[:i+1], "")
	e.open = &position{
		side:            side,
		entryBar:        i,
		entryPrice:      bar.Close,
		entryTime:       bar.Timestamp,
		quantity:        sizeUSD / bar.Close,
		sizeUSD:         sizeUSD,
		stopLoss:        sig.StopLoss,
		takeProfit:      sig.TakeProfit,
		trailingStopPct: sig.TrailingStopPct,
		highestPrice:    bar.Close,
		lowestPrice:     bar.Close,
		regime:          state.Regime,
	}
}

// checkExit applies stop-loss, take-profit and trailing-stop triggers
// in that priority order. A bar whose range spans both stop and target
// resolves to the stop, the conservative assumption.
func (e *Engine) checkExit(bar market.Bar) (string, bool) {
	pos := e.open

	if bar.High > pos.highestPrice {
		pos.highestPrice = bar.High
	}
	if bar.Low < pos.lowestPrice {
		pos.lowestPrice = bar.Low
	}

	if pos.stopLoss > 0 {
		if pos.side == Long && bar.Low <= pos.stopLoss {
			return "stop_loss", true
		}
		if pos.side == Short && bar.High >= pos.stopLoss {
			return "stop_loss", true
		}
	}
	if pos.takeProfit > 0 {
		if pos.side == Long && bar.High >= pos.takeProfit {
			return "take_profit", true
		}
		if pos.side == Short && bar.Low <= pos.takeProfit {
			return "take_profit", true
		}
	}
	if pos.trailingStopPct > 0 {
		if pos.side == Long {
			if bar.Close <= pos.highestPrice*(1-pos.trailingStopPct) {
				return "trailing_stop", true
			}
		} else {
			if bar.Close >= pos.lowestPrice*(1+pos.trailingStopPct) {
				return "trailing_stop", true
			}
		}
	}
	return "", false
}

func (e *Engine) unrealizedPnL(price float64) float64 {
	if e.open.side == Long {
		return (price - e.open.entryPrice) * e.open.quantity
	}
	return (e.open.entryPrice - price) * e.open.quantity
}

// closePosition fills at the bar close price regardless of trigger.
func (e *Engine) closePosition(bar market.Bar, price float64, reason, strategyID, version string) {
	pos := e.open
	pnl := (price - pos.entryPrice) * pos.quantity
	if pos.side == Short {
		pnl = -pnl
	}

	e.trades = append(e.trades, TradeRecord{
		StrategyID: strategyID,
		Version:    version,
		Side:       pos.side,
		EntryTime:  pos.entryTime,
		ExitTime:   bar.Timestamp,
		EntryPrice: pos.entryPrice,
		ExitPrice:  price,
		Quantity:   pos.quantity,
		PnL:        pnl,
		PnLPct:     pnl / pos.sizeUSD,
		Win:        pnl > 0,
		ExitReason: reason,
		Duration:   bar.Timestamp.Sub(pos.entryTime),
		Regime:     pos.regime,
	})
	e.capital += pnl
	e.open = nil
}

func (e *Engine) fillMetrics(res *Result) {
	res.EquityCurve = e.equityCurve
	res.MaxDrawdown = e.maxDrawdown
	if len(e.trades) == 0 {
		return
	}

	res.Trades = e.trades
	res.TotalTrades = len(e.trades)
	var wins, losses float64
	for _, t := range e.trades {
		res.TotalPnL += t.PnL
		if t.PnL > 0 {
			res.WinningTrades++
			wins += t.PnL
		} else if t.PnL < 0 {
			res.LosingTrades++
			losses += -t.PnL
		}
	}
	res.WinRate = float64(res.WinningTrades) / float64(res.TotalTrades)

	switch {
	case losses > 0:
		res.ProfitFactor = wins / losses
		if res.ProfitFactor > maxProfitFactor {
			res.ProfitFactor = maxProfitFactor
		}
	case wins > 0:
		res.ProfitFactor = maxProfitFactor
	}

	if len(e.trades) > 1 {
		returns := make([]float64, len(e.trades))
		var mean float64
		for i, t := range e.trades {
			returns[i] = t.PnL / e.cfg.InitialCapital
			mean += returns[i]
		}
		mean /= float64(len(returns))
		var variance float64
		for _, r := range returns {
			variance += (r - mean) * (r - mean)
		}
		variance /= float64(len(returns))
		if std := math.Sqrt(variance); std > 0 {
			res.SharpeRatio = mean / std * math.Sqrt(252)
		}
	}
}

// evaluate applies the pass criteria in order and reports the first
// failure.
func (e *Engine) evaluate(res Result) (bool, string) {
	if res.TotalTrades < e.cfg.MinTrades {
		return false, "insufficient trades"
	}
	if res.WinRate < e.cfg.MinWinRate {
		return false, "win rate below minimum"
	}
	if res.TotalPnL <= 0 {
		return false, "non-positive pnl"
	}
	if res.ProfitFactor < e.cfg.MinProfitFactor {
		return false, "profit factor below minimum"
	}
	if res.MaxDrawdown >= e.cfg.InitialCapital*e.cfg.MaxDrawdownFrac {
		return false, "max drawdown above limit"
	}
	return true, ""
}
