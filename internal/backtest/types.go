// Package backtest simulates strategy decision functions bar-by-bar
// over historical data and scores the resulting trade population
// against pass criteria.
package backtest

import (
	"time"

	"github.com/quantward/edgegate/internal/market"
)

// Side is the position direction.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Action is what a strategy wants to do at a bar.
type Action string

const (
	ActionLong  Action = "LONG"
	ActionShort Action = "SHORT"
	ActionClose Action = "CLOSE"
	ActionHold  Action = "HOLD"
)

// Signal is a strategy's decision for one bar. Zero-valued risk fields
// disable the corresponding exit check; a zero SizeUSD falls back to
// the engine's default position fraction.
type Signal struct {
	Action          Action
	SizeUSD         float64
	StopLoss        float64
	TakeProfit      float64
	TrailingStopPct float64
}

// Hold is the no-op signal.
func Hold() Signal { return Signal{Action: ActionHold} }

// StrategyFunc is invoked once per bar with the bar and its index.
// It must be deterministic for reproducible simulations.
type StrategyFunc func(bar market.Bar, index int) Signal

// TradeRecord is one completed simulated trade.
type TradeRecord struct {
	StrategyID string        `json:"strategy_id"`
	Version    string        `json:"version"`
	Side       Side          `json:"side"`
	EntryTime  time.Time     `json:"entry_time"`
	ExitTime   time.Time     `json:"exit_time"`
	EntryPrice float64       `json:"entry_price"`
	ExitPrice  float64       `json:"exit_price"`
	Quantity   float64       `json:"quantity"`
	PnL        float64       `json:"pnl"`
	PnLPct     float64       `json:"pnl_pct"`
	Win        bool          `json:"win"`
	ExitReason string        `json:"exit_reason"`
	Duration   time.Duration `json:"duration"`
	Regime     market.Regime `json:"regime"` // regime at entry
}

// Result aggregates one simulation run.
type Result struct {
	StrategyID string    `json:"strategy_id"`
	Version    string    `json:"version"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	TotalBars  int       `json:"total_bars"`

	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	TotalPnL      float64 `json:"total_pnl"`
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	MaxDrawdown   float64 `json:"max_drawdown"`

	Trades      []TradeRecord `json:"trades"`
	EquityCurve []float64     `json:"equity_curve"`

	Passed     bool   `json:"passed"`
	FailReason string `json:"fail_reason,omitempty"`
}
