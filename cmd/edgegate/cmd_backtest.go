package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantward/edgegate/internal/backtest"
	"github.com/quantward/edgegate/internal/config"
	"github.com/quantward/edgegate/internal/market"
	"github.com/quantward/edgegate/internal/strategy"
)

func resolveStrategy(name string) (backtest.StrategyFunc, error) {
	build, ok := strategy.Builders[name]
	if !ok {
		names := make([]string, 0, len(strategy.Builders))
		for n := range strategy.Builders {
			names = append(names, n)
		}
		return nil, fmt.Errorf("unknown strategy %q, available: %s", name, strings.Join(names, ", "))
	}
	return build(), nil
}

func backtestCmd() *cobra.Command {
	var (
		strategyName string
		barsPath     string
		strategyID   string
		version      string
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Simulate a strategy over historical bars and score the result",
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
			return emit(res, func() string { return renderBacktest(res) })
		},
	}
	cmd.Flags().StringVar(&strategyName, "strategy", strategy.NameSMACross, "built-in strategy name")
	cmd.Flags().StringVar(&barsPath, "bars", "", "CSV file of OHLCV bars")
	cmd.Flags().StringVar(&strategyID, "id", "cli", "strategy identifier")
	cmd.Flags().StringVar(&version, "version", "v1", "strategy version")
	cmd.MarkFlagRequired("bars")
	return cmd
}

func renderBacktest(res backtest.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Backtest %s %s over %d bars\n", res.StrategyID, res.Version, res.TotalBars)
	fmt.Fprintf(&b, "  trades: %d (%d win / %d loss)  win rate: %.1f%%\n",
		res.TotalTrades, res.WinningTrades, res.LosingTrades, res.WinRate*100)
	fmt.Fprintf(&b, "  pnl: %.2f  profit factor: %.2f  sharpe: %.2f  max drawdown: %.2f\n",
		res.TotalPnL, res.ProfitFactor, res.SharpeRatio, res.MaxDrawdown)
	if res.Passed {
		b.WriteString("  PASSED\n")
	} else {
		fmt.Fprintf(&b, "  FAILED: %s\n", res.FailReason)
	}
	return b.String()
}
