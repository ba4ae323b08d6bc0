package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantward/edgegate/internal/api"
	"github.com/quantward/edgegate/internal/config"
	"github.com/quantward/edgegate/internal/diagnostics"
	"github.com/quantward/edgegate/internal/edgestats"
	"github.com/quantward/edgegate/internal/failure"
	"github.com/quantward/edgegate/internal/gate"
	"github.com/quantward/edgegate/internal/metrics"
	"github.com/quantward/edgegate/internal/pipeline"
	"github.com/quantward/edgegate/internal/quality"
	"github.com/quantward/edgegate/internal/registry"
)

func serveCmd(ctx context.Context) *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the evaluation HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.API.ListenAddr = listenAddr
			}
			return runServer(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "listen address override")
	return cmd
}

func runServer(ctx context.Context, cfg *config.Config) error {
	tracker := edgestats.NewTracker(cfg.EdgeStats)
	if cfg.Redis.Enabled {
		store := edgestats.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.EdgeStats.MaxWindow)
		tracker.WithStore(store)
		restoreEdges(ctx, tracker, store)
		defer store.Close()
	}

	recorder := diagnostics.NewRecorder(cfg.Diagnostics.MaxRecent)
	if cfg.Diagnostics.JSONLPath != "" {
		sink, err := diagnostics.NewJSONLSink(cfg.Diagnostics.JSONLPath, float64(cfg.Diagnostics.MaxPerSecond))
		if err != nil {
			return err
		}
		recorder.WithSink(sink)
	}

	var store registry.Store
	if cfg.Postgres.Enabled {
		pg, err := registry.NewPostgresStore(cfg.Postgres.DSN, 5*time.Second)
		if err != nil {
			return err
		}
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		store = pg
	} else {
		fs, err := registry.NewFileStore(cfg.Registry.FilePath)
		if err != nil {
			return err
		}
		store = fs
	}
	reg := registry.New(store)
	if err := reg.Load(ctx); err != nil {
		return err
	}
	defer store.Close()

	promReg := prometheus.NewRegistry()
	eval := pipeline.NewEvaluator(
		tracker,
		gate.New(cfg.Gate),
		quality.NewScorer(cfg.Quality),
		failure.NewBlacklist(cfg.Blacklist),
		recorder,
		metrics.New(promReg),
	)

	srv := api.NewServer(api.Config{
		ListenAddr:   cfg.API.ListenAddr,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, api.Deps{
		Evaluator: eval,
		Tracker:   tracker,
		Recorder:  recorder,
		Registry:  reg,
		Gatherer:  promReg,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// restoreEdges reloads persisted sample windows so restarts keep their
// percentile history.
func restoreEdges(ctx context.Context, tracker *edgestats.Tracker, store *edgestats.RedisStore) {
	all, err := store.LoadAll(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("edge history restore failed, starting cold")
		return
	}
	for key, samples := range all {
		if err := tracker.Restore(ctx, key, samples); err != nil {
			log.Warn().Err(err).Str("key", key.String()).Msg("key restore failed")
		}
	}
	log.Info().Int("keys", len(all)).Msg("edge history restored")
}
