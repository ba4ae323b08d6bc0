package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/quantward/edgegate/internal/config"
)

var configPath string

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:   "edgegate",
		Short: "Statistical edge gating and strategy validation",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			level, err := zerolog.ParseLevel(cfg.Log.Level)
			if err != nil {
				return fmt.Errorf("bad log level %q: %w", cfg.Log.Level, err)
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config (defaults apply when empty)")

	root.AddCommand(
		backtestCmd(),
		walkforwardCmd(),
		admitCmd(),
		mineCmd(),
		diagCmd(),
		strategiesCmd(),
		serveCmd(ctx),
	)
	return root.ExecuteContext(ctx)
}

// stdoutIsTTY decides between human tables and machine JSON.
func stdoutIsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// emit prints v as indented JSON when stdout is piped, or hands it to
// render for interactive use.
func emit(v any, render func() string) error {
	if stdoutIsTTY() {
		fmt.Println(render())
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
