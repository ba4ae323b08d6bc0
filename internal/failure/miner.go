package failure

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/quantward/edgegate/internal/backtest"
	"github.com/quantward/edgegate/internal/market"
)

// Outcome is one historical trade enriched with the market conditions
// it executed under, the miner's unit of analysis.
type Outcome struct {
	StrategyID  string
	Regime      market.Regime
	Volatility  float64
	VolumeRatio float64
	ExitHourUTC int
	PnL         float64
}

// OutcomeFromTrade adapts a simulated trade, attaching the condition
// readings the trade record itself does not carry.
func OutcomeFromTrade(t backtest.TradeRecord, volatility, volumeRatio float64) Outcome {
	return Outcome{
		StrategyID:  t.StrategyID,
		Regime:      t.Regime,
		Volatility:  volatility,
		VolumeRatio: volumeRatio,
		ExitHourUTC: t.ExitTime.UTC().Hour(),
		PnL:         t.PnL,
	}
}

// GroupStats summarizes one mined group of outcomes.
type GroupStats struct {
	Trades        int     `json:"trades"`
	Wins          int     `json:"wins"`
	WinRate       float64 `json:"win_rate"`
	TotalPnL      float64 `json:"total_pnl"`
	ExpectedValue float64 `json:"expected_value"` // win_rate*avg_win - (1-win_rate)*avg_loss
	ProfitFactor  float64 `json:"profit_factor"`
}

// Pattern is one discovered failure pattern, ranked by severity.
type Pattern struct {
	ID         string            `json:"id"`
	Dimensions map[string]string `json:"dimensions"`
	Stats      GroupStats        `json:"stats"`
	Severity   float64           `json:"severity"`
}

// MinerConfig bounds pattern discovery.
type MinerConfig struct {
	MinSampleSize int     `yaml:"min_sample_size"`
	MinSeverity   float64 `yaml:"min_severity"`
}

// DefaultMinerConfig returns the standard mining bounds.
func DefaultMinerConfig() *MinerConfig {
	return &MinerConfig{
		MinSampleSize: 10,
		MinSeverity:   0.6,
	}
}

// Miner discovers failure patterns across condition dimensions:
// regime, volatility bucket, time-of-day period, volume tercile, and
// two-factor combinations of those.
type Miner struct {
	cfg *MinerConfig
}

// NewMiner builds a miner. A nil config uses the defaults.
func NewMiner(cfg *MinerConfig) *Miner {
	if cfg == nil {
		cfg = DefaultMinerConfig()
	}
	return &Miner{cfg: cfg}
}

func timePeriod(hour int) string {
	switch {
	case hour < 6:
		return "NIGHT_0_6"
	case hour < 12:
		return "MORNING_6_12"
	case hour < 18:
		return "AFTERNOON_12_18"
	default:
		return "EVENING_18_24"
	}
}

// Mine groups the outcomes along each analysis dimension, keeps groups
// that look like failure patterns, and returns them ranked by severity
// descending. Groups below MinSampleSize or MinSeverity are dropped.
func (m *Miner) Mine(outcomes []Outcome) []Pattern {
	if len(outcomes) < m.cfg.MinSampleSize {
		log.Debug().Int("outcomes", len(outcomes)).
			Int("min", m.cfg.MinSampleSize).Msg("too few trades to mine")
		return nil
	}

	volTerciles := volumeTerciles(outcomes)

	var patterns []Pattern
	dims := []struct {
		kind string
		key  func(Outcome) map[string]string
	}{
		{"strategy_regime", func(o Outcome) map[string]string {
			return map[string]string{"strategy_id": o.StrategyID, "regime": string(o.Regime)}
		}},
		{"strategy_volatility", func(o Outcome) map[string]string {
			return map[string]string{"strategy_id": o.StrategyID, "volatility": string(ClassifyVolatility(o.Volatility))}
		}},
		{"strategy_time", func(o Outcome) map[string]string {
			return map[string]string{"strategy_id": o.StrategyID, "time_period": timePeriod(o.ExitHourUTC)}
		}},
		{"strategy_volume", func(o Outcome) map[string]string {
			return map[string]string{"strategy_id": o.StrategyID, "volume": volTerciles(o.VolumeRatio)}
		}},
		{"regime_time", func(o Outcome) map[string]string {
			return map[string]string{
				"strategy_id": o.StrategyID,
				"regime":      string(o.Regime),
				"time_period": timePeriod(o.ExitHourUTC),
			}
		}},
		{"volatility_volume", func(o Outcome) map[string]string {
			return map[string]string{
				"strategy_id": o.StrategyID,
				"volatility":  string(ClassifyVolatility(o.Volatility)),
				"volume":      volTerciles(o.VolumeRatio),
			}
		}},
	}

	for _, dim := range dims {
		groups := make(map[string][]Outcome)
		labels := make(map[string]map[string]string)
		for _, o := range outcomes {
			lbl := dim.key(o)
			gk := dim.kind
			for _, name := range sortedKeys(lbl) {
				gk += "_" + lbl[name]
			}
			groups[gk] = append(groups[gk], o)
			labels[gk] = lbl
		}
		for gk, group := range groups {
			if len(group) < m.cfg.MinSampleSize {
				continue
			}
			stats := groupStats(group)
			if !isFailure(stats) {
				continue
			}
			sev := m.severity(stats)
			if sev < m.cfg.MinSeverity {
				continue
			}
			lbl := labels[gk]
			lbl["type"] = dim.kind
			patterns = append(patterns, Pattern{
				ID:         gk,
				Dimensions: lbl,
				Stats:      stats,
				Severity:   sev,
			})
		}
	}

	sort.Slice(patterns, func(i, j int) bool { return patterns[i].Severity > patterns[j].Severity })
	log.Info().Int("trades", len(outcomes)).Int("patterns", len(patterns)).
		Msg("failure pattern mining complete")
	return patterns
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// volumeTerciles returns a classifier that buckets volume ratios by
// the sample's own tercile boundaries.
func volumeTerciles(outcomes []Outcome) func(float64) string {
	vols := make([]float64, len(outcomes))
	for i, o := range outcomes {
		vols[i] = o.VolumeRatio
	}
	sort.Float64s(vols)
	p33 := vols[len(vols)/3]
	p66 := vols[len(vols)*2/3]
	return func(v float64) string {
		switch {
		case v < p33:
			return "LOW"
		case v < p66:
			return "MEDIUM"
		default:
			return "HIGH"
		}
	}
}

func groupStats(group []Outcome) GroupStats {
	st := GroupStats{Trades: len(group)}
	var grossWin, grossLoss float64
	var nLoss int
	for _, o := range group {
		st.TotalPnL += o.PnL
		if o.PnL > 0 {
			st.Wins++
			grossWin += o.PnL
		} else if o.PnL < 0 {
			grossLoss += -o.PnL
			nLoss++
		}
	}
	st.WinRate = float64(st.Wins) / float64(st.Trades)

	avgWin, avgLoss := 0.0, 0.0
	if st.Wins > 0 {
		avgWin = grossWin / float64(st.Wins)
	}
	if nLoss > 0 {
		avgLoss = grossLoss / float64(nLoss)
	}
	st.ExpectedValue = st.WinRate*avgWin - (1-st.WinRate)*avgLoss

	if grossLoss > 0 {
		st.ProfitFactor = grossWin / grossLoss
		if st.ProfitFactor > 999.0 {
			st.ProfitFactor = 999.0
		}
	} else {
		st.ProfitFactor = 999.0
	}
	return st
}

// isFailure mirrors the blacklist thresholds plus a combined
// weak-performance criterion for borderline groups.
func isFailure(st GroupStats) bool {
	return st.WinRate < 0.42 ||
		st.ExpectedValue < -30 ||
		st.ProfitFactor < 0.8 ||
		(st.WinRate < 0.48 && st.ExpectedValue < -10)
}

// severity scores a pattern in [0,1], discounted by sample confidence.
func (m *Miner) severity(st GroupStats) float64 {
	wrScore := (0.50 - st.WinRate) / 0.50
	if wrScore < 0 {
		wrScore = 0
	}
	evScore := -st.ExpectedValue / 100
	if evScore < 0 {
		evScore = 0
	} else if evScore > 1 {
		evScore = 1
	}
	pfScore := 0.0
	if st.ProfitFactor < 1.0 {
		pfScore = 1.0 - st.ProfitFactor
	}
	confidence := float64(st.Trades) / float64(m.cfg.MinSampleSize*3)
	if confidence > 1 {
		confidence = 1
	}
	return (0.4*wrScore + 0.4*evScore + 0.2*pfScore) * confidence
}

// Report renders ranked patterns as human-readable lines.
func Report(patterns []Pattern) []string {
	lines := make([]string, 0, len(patterns))
	for i, p := range patterns {
		lines = append(lines, fmt.Sprintf(
			"%d. %s severity=%.2f trades=%d win_rate=%.2f ev=%.2f pf=%.2f",
			i+1, p.ID, p.Severity, p.Stats.Trades, p.Stats.WinRate,
			p.Stats.ExpectedValue, p.Stats.ProfitFactor))
	}
	return lines
}
