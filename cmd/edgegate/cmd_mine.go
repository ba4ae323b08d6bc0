package main

import (
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantward/edgegate/internal/backtest"
	"github.com/quantward/edgegate/internal/config"
	"github.com/quantward/edgegate/internal/failure"
	"github.com/quantward/edgegate/internal/market"
	"github.com/quantward/edgegate/internal/strategy"
)

const mineLookback = 20

func mineCmd() *cobra.Command {
	var (
		strategyName string
		barsPath     string
		strategyID   string
		version      string
	)
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "Backtest a strategy and mine its losses for failure patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fn, err := resolveStrategy(strategyName)
			if err != nil {
				return err
			}
			bars, err := market.LoadBarsCSV(barsPath)
			if err != nil {
				return err
			}

			res := backtest.NewEngine(cfg.Backtest).Run(fn, bars, strategyID, version)
			outcomes := outcomesFromRun(res, bars)
			patterns := failure.NewMiner(cfg.Miner).Mine(outcomes)

			return emit(patterns, func() string {
				lines := failure.Report(patterns)
				if len(lines) == 0 {
					return "no failure patterns above the severity floor"
				}
				return strings.Join(lines, "\n")
			})
		},
	}
	cmd.Flags().StringVar(&strategyName, "strategy", strategy.NameSMACross, "built-in strategy name")
	cmd.Flags().StringVar(&barsPath, "bars", "", "CSV file of OHLCV bars")
	cmd.Flags().StringVar(&strategyID, "id", "cli", "strategy identifier")
	cmd.Flags().StringVar(&version, "version", "v1", "strategy version")
	cmd.MarkFlagRequired("bars")
	return cmd
}

// outcomesFromRun annotates each trade with the volatility and relative
// volume around its exit bar, the conditions the miner groups by.
func outcomesFromRun(res backtest.Result, bars []market.Bar) []failure.Outcome {
	index := make(map[time.Time]int, len(bars))
	for i, b := range bars {
		index[b.Timestamp] = i
	}

	outcomes := make([]failure.Outcome, 0, len(res.Trades))
	for _, t := range res.Trades {
		i, ok := index[t.ExitTime]
		if !ok {
			outcomes = append(outcomes, failure.OutcomeFromTrade(t, 0, 1))
			continue
		}
		outcomes = append(outcomes, failure.OutcomeFromTrade(t,
			returnVolatility(bars, i), relativeVolume(bars, i)))
	}
	return outcomes
}

// returnVolatility is the standard deviation of close-to-close returns
// over the lookback ending at bar i.
func returnVolatility(bars []market.Bar, i int) float64 {
	start := i - mineLookback
	if start < 1 {
		start = 1
	}
	var rets []float64
	for j := start; j <= i; j++ {
		prev := bars[j-1].Close
		if prev == 0 {
			continue
		}
		rets = append(rets, bars[j].Close/prev-1)
	}
	if len(rets) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	sum := 0.0
	for _, r := range rets {
		d := r - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(rets)))
}

// relativeVolume is bar i's volume relative to the lookback average.
func relativeVolume(bars []market.Bar, i int) float64 {
	start := i - mineLookback
	if start < 0 {
		start = 0
	}
	sum := 0.0
	n := 0
	for j := start; j <= i; j++ {
		sum += bars[j].Volume
		n++
	}
	if n == 0 || sum == 0 {
		return 1
	}
	avg := sum / float64(n)
	return bars[i].Volume / avg
}
