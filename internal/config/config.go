package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	// ErrMissingRegistry is returned when no bot registry address is configured.
	ErrMissingRegistry = errors.New("config: chain.registry_address not set")

	// ErrMissingRPCEndpoint is returned when no chain RPC endpoint is configured.
	ErrMissingRPCEndpoint = errors.New("config: chain.rpc_endpoint not set")
)

// EnvPrefix prefixes every environment override, e.g. BOTPULSE_CHAIN_RPC_ENDPOINT.
const EnvPrefix = "BOTPULSE"

type Config struct {
	General    GeneralConfig      `toml:"general"`
	Chain      ChainConfig        `toml:"chain"`
	Storage    StorageConfig      `toml:"storage"`
	Schedule   ScheduleConfig     `toml:"schedule"`
	Simulation SimulationConfig   `toml:"simulation"`
	Retry      RetryConfig        `toml:"retry"`
	Indexer    IndexerConfig      `toml:"indexer"`
	API        APIConfig          `toml:"api"`
	Profiles   map[string]Profile `toml:"profiles"`
}

type GeneralConfig struct {
	LogLevel string `toml:"log_level" split_words:"true"`
	Version  string `toml:"version" split_words:"true"`
}

type ChainConfig struct {
	RPCEndpoint     string `toml:"rpc_endpoint" split_words:"true"`
	RegistryAddress string `toml:"registry_address" split_words:"true"`
	// ChainID seeds the simulation. Zero means ask the RPC endpoint.
	ChainID        int64 `toml:"chain_id" split_words:"true"`
	NativeDecimals int32 `toml:"native_decimals" split_words:"true"`
}

type StorageConfig struct {
	// Backend is one of "auto", "sqlite", "sqlite3" or "postgres".
	Backend string `toml:"backend" split_words:"true"`
	Path    string `toml:"path" split_words:"true"`
	DSN     string `toml:"dsn" split_words:"true"`
}

type ScheduleConfig struct {
	TickInterval        Duration `toml:"tick_interval" split_words:"true"`
	PerformanceInterval Duration `toml:"performance_interval" split_words:"true"`
	MaxBots             uint64   `toml:"max_bots" split_words:"true"`
	BootTick            bool     `toml:"boot_tick" split_words:"true"`
}

type SimulationConfig struct {
	DefaultCooldownSeconds int64   `toml:"default_cooldown_seconds" split_words:"true"`
	TradeProbability       float64 `toml:"trade_probability" split_words:"true"`
}

type RetryConfig struct {
	MaxAttempts int      `toml:"max_attempts" split_words:"true"`
	BaseDelay   Duration `toml:"base_delay" split_words:"true"`
}

type IndexerConfig struct {
	ChunkSize    uint64 `toml:"chunk_size" split_words:"true"`
	FromBlock    uint64 `toml:"from_block" split_words:"true"`
	KafkaBrokers string `toml:"kafka_brokers" split_words:"true"`
	KafkaTopic   string `toml:"kafka_topic" split_words:"true"`
}

type APIConfig struct {
	ListenAddr    string   `toml:"listen_addr" split_words:"true"`
	AdminToken    string   `toml:"admin_token" split_words:"true"`
	CacheTTL      Duration `toml:"cache_ttl" split_words:"true"`
	RedisAddr     string   `toml:"redis_addr" split_words:"true"`
	RedisPassword string   `toml:"redis_password" split_words:"true"`
}

// Profile is an optional display label for a bot.
type Profile struct {
	Name   string `toml:"name"`
	Handle string `toml:"handle"`
}

// Duration wraps time.Duration for TOML and env unmarshaling.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load reads the TOML file at path over DefaultConfig, then applies .env and
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case os.IsNotExist(err):
		slog.Info("config file not found, using defaults and environment", "path", path)
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	sections := []struct {
		name string
		spec any
	}{
		{"GENERAL", &cfg.General},
		{"CHAIN", &cfg.Chain},
		{"STORAGE", &cfg.Storage},
		{"SCHEDULE", &cfg.Schedule},
		{"SIMULATION", &cfg.Simulation},
		{"RETRY", &cfg.Retry},
		{"INDEXER", &cfg.Indexer},
		{"API", &cfg.API},
	}
	for _, s := range sections {
		if err := envconfig.Process(EnvPrefix+"_"+s.name, s.spec); err != nil {
			return fmt.Errorf("%s: %w", strings.ToLower(s.name), err)
		}
	}
	return nil
}

// Validate checks required settings. It runs before anything is armed so a
// bad deployment fails at startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Chain.RPCEndpoint) == "" {
		return ErrMissingRPCEndpoint
	}
	if strings.TrimSpace(c.Chain.RegistryAddress) == "" {
		return ErrMissingRegistry
	}
	if c.Schedule.TickInterval.Duration <= 0 {
		return fmt.Errorf("config: schedule.tick_interval must be positive, got %s", c.Schedule.TickInterval.Duration)
	}
	if c.Simulation.TradeProbability < 0 || c.Simulation.TradeProbability > 1 {
		return fmt.Errorf("config: simulation.trade_probability must be in [0,1], got %v", c.Simulation.TradeProbability)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("config: retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Indexer.ChunkSize == 0 {
		return fmt.Errorf("config: indexer.chunk_size must be positive")
	}
	return nil
}

// Profile returns the configured display label for a bot, if any.
func (c *Config) Profile(botID uint64) (Profile, bool) {
	p, ok := c.Profiles[strconv.FormatUint(botID, 10)]
	return p, ok
}

// SlogLevel maps general.log_level onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.General.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
			Version:  "dev",
		},
		Chain: ChainConfig{
			NativeDecimals: 18,
		},
		Storage: StorageConfig{
			Backend: "auto",
			Path:    "./data/botpulse.db",
		},
		Schedule: ScheduleConfig{
			TickInterval:        Duration{60 * time.Second},
			PerformanceInterval: Duration{1 * time.Hour},
			BootTick:            true,
		},
		Simulation: SimulationConfig{
			DefaultCooldownSeconds: 300,
			TradeProbability:       0.25,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   Duration{1 * time.Second},
		},
		Indexer: IndexerConfig{
			ChunkSize:  100,
			KafkaTopic: "botpulse.events",
		},
		API: APIConfig{
			ListenAddr: ":8080",
			CacheTTL:   Duration{15 * time.Second},
		},
	}
}
