package main

import (
	"github.com/spf13/cobra"

	"github.com/quantward/edgegate/internal/config"
	"github.com/quantward/edgegate/internal/market"
	"github.com/quantward/edgegate/internal/strategy"
	"github.com/quantward/edgegate/internal/walkforward"
)

func walkforwardCmd() *cobra.Command {
	var (
		strategyName string
		barsPath     string
		strategyID   string
		version      string
	)
	cmd := &cobra.Command{
		Use:   "walkforward",
		Short: "Validate a strategy across rolling train/test windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg.WalkForward.Backtest = cfg.Backtest
			fn, err := resolveStrategy(strategyName)
			if err != nil {
				return err
			}
			bars, err := market.LoadBarsCSV(barsPath)
			if err != nil {
				return err
			}

			rep := walkforward.NewValidator(cfg.WalkForward).Validate(fn, bars, strategyID, version)
			return emit(rep, func() string { return walkforward.Render(rep) })
		},
	}
	cmd.Flags().StringVar(&strategyName, "strategy", strategy.NameSMACross, "built-in strategy name")
	cmd.Flags().StringVar(&barsPath, "bars", "", "CSV file of OHLCV bars")
	cmd.Flags().StringVar(&strategyID, "id", "cli", "strategy identifier")
	cmd.Flags().StringVar(&version, "version", "v1", "strategy version")
	cmd.MarkFlagRequired("bars")
	return cmd
}
