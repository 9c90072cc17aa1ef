package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"botpulse/internal/chain"
	"botpulse/internal/config"
	"botpulse/internal/db"
	"botpulse/internal/metrics"
	"botpulse/internal/retry"
	"botpulse/internal/risk"
	"botpulse/internal/simulation"
	"botpulse/internal/strategy"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = ""

var configPath string

var rootCmd = &cobra.Command{
	Use:           "botpulse",
	Short:         "Simulated performance tracker for on-chain trading bots",
	Long:          color.CyanString("botpulse") + "\nMirrors bot registry state from an EVM chain and runs a deterministic trading simulation per bot.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			configPath = "config.toml"
			if p := os.Getenv("BOTPULSE_CONFIG_PATH"); p != "" {
				configPath = p
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml (default $BOTPULSE_CONFIG_PATH or ./config.toml)")
	rootCmd.AddCommand(serveCmd, tickCmd, backfillCmd, replayCmd)
}

// loadConfig reads and validates the configuration and installs the JSON
// logger at the configured level.
func loadConfig() (*config.Config, error) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if version != "" {
		cfg.General.Version = version
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// app holds the components every subcommand shares.
type app struct {
	cfg      *config.Config
	eth      *chain.EthReader
	reader   chain.Reader
	policy   retry.Policy
	metrics  *metrics.Metrics
	risk     *risk.Manager
	strategy strategy.Strategy
	settings simulation.Settings

	store *db.Store
}

// newApp dials the chain and, when withStore is set, opens and migrates the
// store.
func newApp(ctx context.Context, cfg *config.Config, withStore bool) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}

	a.policy = retry.FromConfig(cfg.Retry)
	a.policy.OnRetry = a.metrics.RetryHook

	eth, err := chain.Dial(ctx, cfg.Chain.RPCEndpoint, cfg.Chain.RegistryAddress)
	if err != nil {
		return nil, err
	}
	a.eth = eth
	a.reader = retry.NewReader(eth, a.policy)

	chainID := cfg.Chain.ChainID
	if chainID == 0 {
		chainID, err = retry.Do(ctx, a.policy, eth.ChainID)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	slog.Info("chain connected", "chain_id", chainID, "registry", cfg.Chain.RegistryAddress)

	a.risk = risk.NewManager(cfg.Simulation, cfg.Chain.NativeDecimals)
	a.strategy = strategy.NewThreshold(strategy.DefaultBand)
	a.settings = simulation.Settings{
		ChainID:          chainID,
		TickInterval:     cfg.Schedule.TickInterval.Duration,
		TradeProbability: cfg.Simulation.TradeProbability,
		Profiles:         profiles(cfg.Profiles),
	}

	if withStore {
		store, err := db.Open(ctx, cfg.Storage)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening store: %w", err)
		}
		a.store = store
		if err := store.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("store initialized", "mode", store.Mode())
	}
	return a, nil
}

func (a *app) engine() *simulation.Engine {
	return simulation.NewEngine(a.reader, a.store, a.risk, a.strategy, a.settings)
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("closing store", "error", err)
		}
	}
	if a.eth != nil {
		a.eth.Close()
	}
}

// profiles keys the configured profiles by bot id, dropping keys that are
// not bot ids.
func profiles(in map[string]config.Profile) map[uint64]config.Profile {
	out := make(map[uint64]config.Profile, len(in))
	for k, p := range in {
		id, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			slog.Warn("ignoring profile with non-numeric bot id", "key", k)
			continue
		}
		out[id] = p
	}
	return out
}
