package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantward/edgegate/internal/admission"
	"github.com/quantward/edgegate/internal/backtest"
	"github.com/quantward/edgegate/internal/config"
	"github.com/quantward/edgegate/internal/market"
	"github.com/quantward/edgegate/internal/registry"
	"github.com/quantward/edgegate/internal/strategy"
	"github.com/quantward/edgegate/internal/walkforward"
)

// admitResult is the JSON shape of one full admission run.
type admitResult struct {
	Backtest    backtest.Result    `json:"backtest"`
	WalkForward walkforward.Report `json:"walkforward"`
	Approved    bool               `json:"approved"`
	Reason      string             `json:"reason"`
	Enabled     bool               `json:"enabled"`
}

func admitCmd() *cobra.Command {
	var (
		strategyName string
		barsPath     string
		strategyID   string
		version      string
		enable       bool
	)
	cmd := &cobra.Command{
		Use:   "admit",
		Short: "Run the full validation pipeline and request live approval",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
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

			store, err := registry.NewFileStore(cfg.Registry.FilePath)
			if err != nil {
				return err
			}
			reg := registry.New(store)
			if err := reg.Load(ctx); err != nil {
				return err
			}
			audit, err := admission.NewAuditLog(cfg.Registry.AuditPath)
			if err != nil {
				return err
			}
			gate := admission.NewGate(&admission.Config{Requirements: cfg.Requirements}, reg, audit)

			var out admitResult
			out.Backtest = backtest.NewEngine(cfg.Backtest).Run(fn, bars, strategyID, version)

			// Fresh closures per phase; strategies carry rolling state.
			wfFn, _ := resolveStrategy(strategyName)
			out.WalkForward = walkforward.NewValidator(cfg.WalkForward).Validate(wfFn, bars, strategyID, version)

			reg.Register(ctx, strategyID, version)
			reg.UpdateMetrics(ctx, strategyID, version, out.Backtest.Trades, cfg.Backtest.InitialCapital)

			out.Approved, out.Reason, err = gate.RequestApproval(ctx, strategyID, version,
				out.Backtest.Passed, out.WalkForward.Passed)
			if err != nil {
				return err
			}
			if out.Approved && enable {
				if err := gate.Enable(ctx, strategyID, version); err != nil {
					return err
				}
				out.Enabled = true
			}
			return emit(out, func() string { return renderAdmit(out) })
		},
	}
	cmd.Flags().StringVar(&strategyName, "strategy", strategy.NameSMACross, "built-in strategy name")
	cmd.Flags().StringVar(&barsPath, "bars", "", "CSV file of OHLCV bars")
	cmd.Flags().StringVar(&strategyID, "id", "cli", "strategy identifier")
	cmd.Flags().StringVar(&version, "version", "v1", "strategy version")
	cmd.Flags().BoolVar(&enable, "enable", false, "enable live trading immediately on approval")
	cmd.MarkFlagRequired("bars")
	return cmd
}

func renderAdmit(out admitResult) string {
	var b strings.Builder
	b.WriteString(renderBacktest(out.Backtest))
	fmt.Fprintf(&b, "Walk-forward: %d windows, consistency %.2f, passed=%v\n",
		len(out.WalkForward.Windows), out.WalkForward.Consistency, out.WalkForward.Passed)
	if out.Approved {
		fmt.Fprintf(&b, "APPROVED: %s\n", out.Reason)
		if out.Enabled {
			b.WriteString("live trading ENABLED\n")
		}
	} else {
		fmt.Fprintf(&b, "REJECTED: %s\n", out.Reason)
	}
	return b.String()
}
