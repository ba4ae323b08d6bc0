package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantward/edgegate/internal/config"
	"github.com/quantward/edgegate/internal/registry"
)

func strategiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategies",
		Short: "List registered strategies and their validation state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, err := registry.NewFileStore(cfg.Registry.FilePath)
			if err != nil {
				return err
			}
			reg := registry.New(store)
			if err := reg.Load(cmd.Context()); err != nil {
				return err
			}

			list := reg.List()
			return emit(list, func() string { return renderStrategies(list) })
		},
	}
	return cmd
}

func renderStrategies(list []registry.StrategyMetrics) string {
	if len(list) == 0 {
		return "no strategies registered"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-8s %7s %8s %7s %8s %-9s %-7s\n",
		"STRATEGY", "VERSION", "TRADES", "WINRATE", "PF", "PNL", "APPROVED", "ENABLED")
	for _, m := range list {
		fmt.Fprintf(&b, "%-20s %-8s %7d %7.1f%% %7.2f %8.2f %-9v %-7v\n",
			m.StrategyID, m.Version, m.TotalTrades, m.WinRate*100,
			m.ProfitFactor, m.TotalPnL, m.ApprovedLive, m.LiveEnabled)
	}
	return b.String()
}
