package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"botpulse/internal/api"
	"botpulse/internal/cache"
	"botpulse/internal/config"
	"botpulse/internal/performance"
	"botpulse/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tick scheduler and HTTP API until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		slog.Info("botpulse starting", "version", cfg.General.Version)

		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		c, closeCache, err := newCache(ctx, cfg.API)
		if err != nil {
			return err
		}
		defer closeCache()

		sched := scheduler.New(a.reader, a.engine(), a.store, performance.NewTracker(a.store), a.metrics, cfg.Schedule)
		server := api.NewServer(a.store, sched, c, a.metrics, cfg.API, cfg.General.Version)
		sched.OnTick(server.Publish)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return sched.Run(gctx)
		})
		g.Go(func() error {
			return server.ListenAndServe(gctx)
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("botpulse stopped with error", "error", err)
			return err
		}
		slog.Info("botpulse stopped")
		return nil
	},
}

// newCache picks Redis when an address is configured, otherwise memory.
func newCache(ctx context.Context, cfg config.APIConfig) (cache.Cache, func(), error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(), func() {}, nil
	}
	r, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, "botpulse:")
	if err != nil {
		return nil, nil, err
	}
	slog.Info("using redis response cache", "addr", cfg.RedisAddr)
	return r, func() {
		if err := r.Close(); err != nil {
			slog.Warn("closing redis", "error", err)
		}
	}, nil
}
