// Package registry is the durable store of per-(strategy, version)
// performance metrics and live-approval state.
package registry

import (
	"math"
	"time"

	"github.com/quantward/edgegate/internal/backtest"
)

// StrategyMetrics is the registry record for one strategy version.
type StrategyMetrics struct {
	StrategyID string `json:"strategy_id" db:"strategy_id"`
	Version    string `json:"version" db:"version"`

	TotalTrades   int     `json:"total_trades" db:"total_trades"`
	WinningTrades int     `json:"winning_trades" db:"winning_trades"`
	LosingTrades  int     `json:"losing_trades" db:"losing_trades"`
	TotalPnL      float64 `json:"total_pnl" db:"total_pnl"`
	WinRate       float64 `json:"win_rate" db:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor" db:"profit_factor"`
	SharpeRatio   float64 `json:"sharpe_ratio" db:"sharpe_ratio"`
	MaxDrawdown   float64 `json:"max_drawdown" db:"max_drawdown"`
	AvgTradePnL   float64 `json:"avg_trade_pnl" db:"avg_trade_pnl"`
	LargestWin    float64 `json:"largest_win" db:"largest_win"`
	LargestLoss   float64 `json:"largest_loss" db:"largest_loss"`

	BacktestPassed    bool `json:"backtest_passed" db:"backtest_passed"`
	WalkforwardPassed bool `json:"walkforward_passed" db:"walkforward_passed"`
	ApprovedLive      bool `json:"approved_live" db:"approved_live"`
	LiveEnabled       bool `json:"live_enabled" db:"live_enabled"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	ApprovedAt *time.Time `json:"approved_at,omitempty" db:"approved_at"`
}

// Key returns the registry key for this record.
func (m *StrategyMetrics) Key() string {
	return m.StrategyID + "_" + m.Version
}

// UpdateFromTrades recomputes the aggregate metrics from a trade
// population. Approval flags are untouched.
func (m *StrategyMetrics) UpdateFromTrades(trades []backtest.TradeRecord, initialCapital float64) {
	m.TotalTrades = len(trades)
	m.WinningTrades = 0
	m.LosingTrades = 0
	m.TotalPnL = 0
	m.LargestWin = 0
	m.LargestLoss = 0

	var grossWin, grossLoss float64
	for _, t := range trades {
		m.TotalPnL += t.PnL
		if t.PnL > 0 {
			m.WinningTrades++
			grossWin += t.PnL
			if t.PnL > m.LargestWin {
				m.LargestWin = t.PnL
			}
		} else if t.PnL < 0 {
			m.LosingTrades++
			grossLoss += -t.PnL
			if -t.PnL > m.LargestLoss {
				m.LargestLoss = -t.PnL
			}
		}
	}
	if m.TotalTrades == 0 {
		m.WinRate, m.ProfitFactor, m.SharpeRatio, m.AvgTradePnL = 0, 0, 0, 0
		m.UpdatedAt = time.Now().UTC()
		return
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	m.AvgTradePnL = m.TotalPnL / float64(m.TotalTrades)

	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossWin / grossLoss
		if m.ProfitFactor > 999.0 {
			m.ProfitFactor = 999.0
		}
	case grossWin > 0:
		m.ProfitFactor = 999.0
	default:
		m.ProfitFactor = 0
	}

	// Drawdown over the cumulative realized pnl curve.
	var equity, peak, maxDD float64
	for _, t := range trades {
		equity += t.PnL
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > maxDD {
			maxDD = dd
		}
	}
	m.MaxDrawdown = maxDD

	if m.TotalTrades > 1 && initialCapital > 0 {
		var mean float64
		returns := make([]float64, len(trades))
		for i, t := range trades {
			returns[i] = t.PnL / initialCapital
			mean += returns[i]
		}
		mean /= float64(len(returns))
		var variance float64
		for _, r := range returns {
			variance += (r - mean) * (r - mean)
		}
		variance /= float64(len(returns))
		if std := math.Sqrt(variance); std > 0 {
			m.SharpeRatio = mean / std * math.Sqrt(252)
		} else {
			m.SharpeRatio = 0
		}
	}
	m.UpdatedAt = time.Now().UTC()
}

// Requirements are the live-approval thresholds.
type Requirements struct {
	MinTrades       int     `yaml:"min_trades"`
	MinWinRate      float64 `yaml:"min_win_rate"`
	MinProfitFactor float64 `yaml:"min_profit_factor"`
	MinSharpe       float64 `yaml:"min_sharpe"`
	MinTotalPnL     float64 `yaml:"min_total_pnl"`
	MaxDrawdown     float64 `yaml:"max_drawdown"`
}

// DefaultRequirements returns the standard live-approval thresholds.
func DefaultRequirements() Requirements {
	return Requirements{
		MinTrades:       30,
		MinWinRate:      0.52,
		MinProfitFactor: 1.2,
		MinSharpe:       0.5,
		MinTotalPnL:     0.0,
		MaxDrawdown:     3000.0,
	}
}

// Shortfalls lists the requirements this record fails, empty when all
// are met.
func (m *StrategyMetrics) Shortfalls(req Requirements) []string {
	var out []string
	if m.TotalTrades < req.MinTrades {
		out = append(out, "trades")
	}
	if m.WinRate < req.MinWinRate {
		out = append(out, "win_rate")
	}
	if m.ProfitFactor < req.MinProfitFactor {
		out = append(out, "profit_factor")
	}
	if m.SharpeRatio < req.MinSharpe {
		out = append(out, "sharpe")
	}
	if m.TotalPnL < req.MinTotalPnL {
		out = append(out, "total_pnl")
	}
	if req.MaxDrawdown > 0 && m.MaxDrawdown > req.MaxDrawdown {
		out = append(out, "max_drawdown")
	}
	return out
}
