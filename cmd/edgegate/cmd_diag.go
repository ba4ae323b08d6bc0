package main

import (
	"github.com/spf13/cobra"

	"github.com/quantward/edgegate/internal/config"
	"github.com/quantward/edgegate/internal/diagnostics"
)

func diagCmd() *cobra.Command {
	var (
		jsonlPath string
		blocks    int
	)
	cmd := &cobra.Command{
		Use:   "diag",
		Short: "Summarize recorded gate decisions from a JSONL file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			path := jsonlPath
			if path == "" {
				path = cfg.Diagnostics.JSONLPath
			}

			records, err := diagnostics.ReadJSONL(path)
			if err != nil {
				return err
			}
			rec := diagnostics.NewRecorder(cfg.Diagnostics.MaxRecent)
			for _, r := range records {
				rec.Record(r)
			}

			out := struct {
				Summary   diagnostics.Summary             `json:"summary"`
				Histogram diagnostics.PercentileHistogram `json:"histogram"`
				Blocks    []diagnostics.Record            `json:"recent_blocks"`
			}{rec.Summary(), rec.Histogram(), rec.RecentBlocks(blocks)}

			return emit(out, func() string {
				return diagnostics.RenderReport(out.Summary, out.Histogram)
			})
		},
	}
	cmd.Flags().StringVar(&jsonlPath, "file", "", "decision JSONL file (defaults to the configured sink path)")
	cmd.Flags().IntVar(&blocks, "blocks", 20, "recent blocked decisions to include")
	return cmd
}
